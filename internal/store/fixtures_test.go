package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/model"
)

type fixture struct {
	partner *model.Partner
	brand   *model.Brand
	size    *model.Size
}

func newFixture(t *testing.T, database *sqlx.DB) fixture {
	t.Helper()
	ctx := context.Background()

	partner, err := CreatePartner(ctx, database, NewPartner{
		Name:         "Maria",
		Email:        fmt.Sprintf("maria-%d@example.com", time.Now().UnixNano()),
		PasswordHash: "hash",
		Percentage:   decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	brand, err := CreateBrand(ctx, database, "Zara")
	require.NoError(t, err)
	size, err := CreateSize(ctx, database, "M", 2)
	require.NoError(t, err)

	return fixture{partner: partner, brand: brand, size: size}
}

func (f fixture) item(t *testing.T, database *sqlx.DB, tag string) *model.Item {
	t.Helper()

	item, err := CreateItem(context.Background(), database, NewItem{
		TagCode:   tag,
		CostValue: decimal.NewFromInt(10),
		ListValue: decimal.NewFromInt(20),
		PartnerID: f.partner.ID,
		BrandID:   f.brand.ID,
		SizeID:    f.size.ID,
	})
	require.NoError(t, err)
	return item
}

// sell records a sale and its payment without going through settlement.
func (f fixture) sell(t *testing.T, database *sqlx.DB, item *model.Item, soldFor string) (*model.Sale, *model.Payment) {
	t.Helper()
	ctx := context.Background()

	value := decimal.RequireFromString(soldFor)
	require.NoError(t, MarkItemSold(ctx, database, item.ID))
	sale, err := InsertSale(ctx, database, item.ID, value, time.Now())
	require.NoError(t, err)

	payment := &model.Payment{
		SaleID:             sale.ID,
		PartnerID:          item.PartnerID,
		PercentageSnapshot: f.partner.Percentage,
		PayoutAmount:       model.Payout(value, f.partner.Percentage),
		CreatedAt:          time.Now(),
	}
	require.NoError(t, InsertPayment(ctx, database, payment))
	return sale, payment
}
