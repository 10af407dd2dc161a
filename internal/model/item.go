package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the lifecycle state of a consigned item.
type ItemStatus string

// Item statuses.
const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusSold      ItemStatus = "sold"
)

// Item is a single consigned good identified by its tag code.
type Item struct {
	ID        int64           `db:"id" json:"id"`
	TagCode   string          `db:"tag_code" json:"tag_code"`
	CostValue decimal.Decimal `db:"cost_value" json:"cost_value"`
	ListValue decimal.Decimal `db:"list_value" json:"list_value"`
	PartnerID int64           `db:"partner_id" json:"partner_id"`
	BrandID   int64           `db:"brand_id" json:"brand_id"`
	SizeID    int64           `db:"size_id" json:"size_id"`
	Status    ItemStatus      `db:"status" json:"status"`
	Notes     string          `db:"notes" json:"notes,omitempty"`
	EnteredAt time.Time       `db:"entered_at" json:"entered_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`

	// Joined fields (not always populated).
	PartnerName string   `db:"partner_name" json:"partner_name,omitempty"`
	BrandName   string   `db:"brand_name" json:"brand_name,omitempty"`
	SizeName    string   `db:"size_name" json:"size_name,omitempty"`
	Photos      []string `db:"-" json:"photos"`
}

var hundred = decimal.NewFromInt(100)

// MarginAbsolute is list value minus cost, rounded to cents.
func (i *Item) MarginAbsolute() decimal.Decimal {
	return i.ListValue.Sub(i.CostValue).Round(2)
}

// MarginPercent is the margin relative to cost, rounded to two places.
// It is zero when the cost is not positive.
func (i *Item) MarginPercent() decimal.Decimal {
	if !i.CostValue.IsPositive() {
		return decimal.Zero
	}
	return i.ListValue.Sub(i.CostValue).Div(i.CostValue).Mul(hundred).Round(2)
}

// ItemPhoto is a processed photo attached to an item.
type ItemPhoto struct {
	ID     int64  `db:"id" json:"id"`
	ItemID int64  `db:"item_id" json:"item_id"`
	MIME   string `db:"mime" json:"mime"`
	Data   []byte `db:"data" json:"-"`
}

// PhotoURI is the stable reference under which an item photo is served.
func PhotoURI(itemID, photoID int64) string {
	return fmt.Sprintf("/api/items/%d/photos/%d", itemID, photoID)
}
