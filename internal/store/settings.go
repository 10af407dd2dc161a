package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const settingJWTSecret = "jwt_secret"

// GetOrInitSetting returns the value stored under key. When the key is unset,
// initial is stored first; concurrent callers all read back the same winner.
func GetOrInitSetting(ctx context.Context, q sqlx.ExtContext, key, initial string) (string, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`,
		key, initial,
	); err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}

	var value string
	if err := sqlx.GetContext(ctx, q, &value, `SELECT value FROM settings WHERE key = ?`, key); err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// GetJWTSecret returns the persisted token signing secret, generating a
// random 32-byte one on first use.
func GetJWTSecret(ctx context.Context, q sqlx.ExtContext) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return GetOrInitSetting(ctx, q, settingJWTSecret, hex.EncodeToString(buf))
}
