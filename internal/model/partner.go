package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPercentage is the partner share used when none is given.
var DefaultPercentage = decimal.NewFromInt(50)

// Partner is a supplier who consigns items and receives a share of each sale.
type Partner struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	Name       string          `db:"name" json:"name"`
	Email      string          `db:"email" json:"email"`
	Phone      string          `db:"phone" json:"phone,omitempty"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
	Active     bool            `db:"active" json:"active"`
	ItemCount  int             `db:"item_count" json:"item_count"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ValidPercentage reports whether p lies in [0, 100].
func ValidPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(decimal.NewFromInt(100))
}
