package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale records an item being sold for a specific amount.
type Sale struct {
	ID           int64           `db:"id" json:"id"`
	ItemID       int64           `db:"item_id" json:"item_id"`
	SoldForValue decimal.Decimal `db:"sold_for_value" json:"sold_for_value"`
	SoldAt       time.Time       `db:"sold_at" json:"sold_at"`
}

// Payment is the partner payout owed for one sale.
type Payment struct {
	ID                 int64           `db:"id" json:"id"`
	SaleID             int64           `db:"sale_id" json:"sale_id"`
	PartnerID          int64           `db:"partner_id" json:"partner_id"`
	PercentageSnapshot decimal.Decimal `db:"percentage_snapshot" json:"percentage_snapshot"`
	PayoutAmount       decimal.Decimal `db:"payout_amount" json:"payout_amount"`
	Paid               bool            `db:"paid" json:"paid"`
	PaidAt             *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	Notes              string          `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// Payout computes a partner's share of a sale. The result is exact.
func Payout(soldFor, percentage decimal.Decimal) decimal.Decimal {
	return soldFor.Mul(percentage).Div(hundred)
}

// SaleDetail is a sale joined with its item and payment for listings.
type SaleDetail struct {
	Sale
	TagCode   string   `db:"tag_code" json:"tag_code"`
	BrandName string   `db:"brand_name" json:"brand_name"`
	SizeName  string   `db:"size_name" json:"size_name"`
	PartnerID int64    `db:"partner_id" json:"partner_id"`
	Payment   *Payment `db:"-" json:"payment,omitempty"`
}

// PaymentDetail is a payment joined with its sale and item.
type PaymentDetail struct {
	Payment
	TagCode      string          `db:"tag_code" json:"tag_code"`
	BrandName    string          `db:"brand_name" json:"brand_name"`
	SizeName     string          `db:"size_name" json:"size_name"`
	SoldForValue decimal.Decimal `db:"sold_for_value" json:"sold_for_value"`
	SoldAt       time.Time       `db:"sold_at" json:"sold_at"`
}
