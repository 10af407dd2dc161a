package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// RevokeToken records a token id as revoked until it would have expired
// anyway, and drops revocations that are past their expiry.
func RevokeToken(ctx context.Context, q sqlx.ExecerContext, jti string, expiresAt time.Time) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	if _, err := PruneRevokedTokens(ctx, q, time.Now()); err != nil {
		return err
	}
	return nil
}

// PruneRevokedTokens deletes revocations that expired before now.
func PruneRevokedTokens(ctx context.Context, q sqlx.ExecerContext, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning revoked tokens: %w", err)
	}
	return res.RowsAffected()
}

// IsTokenRevoked reports whether a token id has been revoked.
func IsTokenRevoked(ctx context.Context, q sqlx.QueryerContext, jti string) (bool, error) {
	var revoked bool
	if err := sqlx.GetContext(ctx, q, &revoked,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	); err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}
