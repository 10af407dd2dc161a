package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
	"github.com/erazemk/consigna/internal/model"
)

const partnerSelect = `SELECT p.id, p.user_id, u.name, u.email, p.phone, p.percentage, p.active, p.created_at,
        (SELECT COUNT(*) FROM items i WHERE i.partner_id = p.id) AS item_count
 FROM partners p
 JOIN users u ON u.id = p.user_id`

// NewPartner holds the fields needed to register a partner and its account.
type NewPartner struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Percentage   decimal.Decimal
}

// PartnerUpdate holds optional partner changes; nil fields are left unchanged.
type PartnerUpdate struct {
	Name       *string
	Phone      *string
	Percentage *decimal.Decimal
	Active     *bool
}

// CreatePartner creates a partner and its login account in one transaction.
func CreatePartner(ctx context.Context, database *sqlx.DB, in NewPartner) (*model.Partner, error) {
	if !model.ValidPercentage(in.Percentage) {
		return nil, apperr.Validation("percentage must be between 0 and 100")
	}

	var partnerID int64
	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		user, err := CreateUser(ctx, tx, in.Name, in.Email, in.PasswordHash, model.RolePartner)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO partners (user_id, phone, percentage) VALUES (?, ?, ?)`,
			user.ID, in.Phone, in.Percentage,
		)
		if err != nil {
			return fmt.Errorf("creating partner: %w", err)
		}
		partnerID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting partner id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetPartner(ctx, database, partnerID)
}

// GetPartner returns a partner by ID.
func GetPartner(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Partner, error) {
	var p model.Partner
	err := sqlx.GetContext(ctx, q, &p, partnerSelect+` WHERE p.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting partner: %w", err)
	}
	return &p, nil
}

// ListPartners returns all partners, newest first.
func ListPartners(ctx context.Context, q sqlx.QueryerContext) ([]model.Partner, error) {
	var partners []model.Partner
	err := sqlx.SelectContext(ctx, q, &partners, partnerSelect+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing partners: %w", err)
	}
	return partners, nil
}

// UpdatePartner applies the non-nil fields of upd to the partner and its account.
func UpdatePartner(ctx context.Context, database *sqlx.DB, id int64, upd PartnerUpdate) (*model.Partner, error) {
	if upd.Percentage != nil && !model.ValidPercentage(*upd.Percentage) {
		return nil, apperr.Validation("percentage must be between 0 and 100")
	}

	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		var userID int64
		err := sqlx.GetContext(ctx, tx, &userID, `SELECT user_id FROM partners WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("partner not found")
		}
		if err != nil {
			return fmt.Errorf("getting partner: %w", err)
		}

		if upd.Phone != nil || upd.Percentage != nil || upd.Active != nil {
			var pct any
			if upd.Percentage != nil {
				pct = *upd.Percentage
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE partners SET phone = COALESCE(?, phone), percentage = COALESCE(?, percentage),
				        active = COALESCE(?, active)
				 WHERE id = ?`,
				upd.Phone, pct, upd.Active, id,
			)
			if err != nil {
				return fmt.Errorf("updating partner: %w", err)
			}
		}

		if upd.Name != nil || upd.Active != nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET name = COALESCE(?, name), active = COALESCE(?, active) WHERE id = ?`,
				upd.Name, upd.Active, userID,
			)
			if isUniqueViolation(err) {
				return apperr.Validation("email already registered to an active account")
			}
			if err != nil {
				return fmt.Errorf("updating partner account: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetPartner(ctx, database, id)
}

// DeactivatePartner disables a partner and its login. Partners are never
// hard-deleted because items and payments reference them.
func DeactivatePartner(ctx context.Context, database *sqlx.DB, id int64) error {
	inactive := false
	_, err := UpdatePartner(ctx, database, id, PartnerUpdate{Active: &inactive})
	return err
}
