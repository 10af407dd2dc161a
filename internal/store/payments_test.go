package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
)

func TestListSalesWithPayments(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	a := f.item(t, database, "L-1")
	b := f.item(t, database, "L-2")
	saleA, payA := f.sell(t, database, a, "20")
	f.sell(t, database, b, "30")

	_, err := MarkPaymentsPaid(ctx, database, []int64{payA.ID}, time.Now(), nil)
	require.NoError(t, err)

	sales, err := ListSales(ctx, database, SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 2)
	for _, s := range sales {
		require.NotNil(t, s.Payment)
		assert.Equal(t, "Zara", s.BrandName)
	}

	paid := true
	onlyPaid, err := ListSales(ctx, database, SaleFilter{Paid: &paid})
	require.NoError(t, err)
	require.Len(t, onlyPaid, 1)
	assert.Equal(t, saleA.ID, onlyPaid[0].ID)
	assert.True(t, onlyPaid[0].Payment.Paid)
}

func TestMarkPaymentsPaid(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	_, p1 := f.sell(t, database, f.item(t, database, "M-1"), "20")
	_, p2 := f.sell(t, database, f.item(t, database, "M-2"), "40")

	notes := "pix"
	paidAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n, err := MarkPaymentsPaid(ctx, database, []int64{p1.ID, 9999}, paidAt, &notes)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := GetPayment(ctx, database, p1.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
	assert.Equal(t, "pix", got.Notes)

	// Already-paid payments are neither re-dated nor counted.
	n, err = MarkPaymentsPaid(ctx, database, []int64{p1.ID, p2.ID}, time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ = GetPayment(ctx, database, p1.ID)
	assert.True(t, got.PaidAt.Equal(paidAt))
	assert.Equal(t, "pix", got.Notes)

	_, err = MarkPaymentsPaid(ctx, database, nil, time.Now(), nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListPaymentsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	_, p1 := f.sell(t, database, f.item(t, database, "F-1"), "10")
	_, p2 := f.sell(t, database, f.item(t, database, "F-2"), "20")
	_, p3 := f.sell(t, database, f.item(t, database, "F-3"), "30")

	_, err := MarkPaymentsPaid(ctx, database, []int64{p3.ID}, time.Now(), nil)
	require.NoError(t, err)

	unpaid := false
	pending, err := ListPayments(ctx, database, PaymentFilter{
		PartnerID:   &f.partner.ID,
		Paid:        &unpaid,
		OldestFirst: true,
	})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, p1.ID, pending[0].ID)
	assert.Equal(t, p2.ID, pending[1].ID)
	assert.Equal(t, "F-1", pending[0].TagCode)
	assert.True(t, pending[0].SoldForValue.Equal(decimal.NewFromInt(10)))

	subset, err := ListPayments(ctx, database, PaymentFilter{IDs: []int64{p1.ID, p3.ID}})
	require.NoError(t, err)
	assert.Len(t, subset, 2)
}

func TestDeletePaymentOnlyUnpaid(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	_, p := f.sell(t, database, f.item(t, database, "X-1"), "10")

	_, err := MarkPaymentsPaid(ctx, database, []int64{p.ID}, time.Now(), nil)
	require.NoError(t, err)

	removed, err := DeletePayment(ctx, database, p.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestUpdatePaymentNotes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	sale, p := f.sell(t, database, f.item(t, database, "N-1"), "10")

	got, err := UpdatePaymentNotes(ctx, database, p.ID, "paid in cash")
	require.NoError(t, err)
	assert.Equal(t, "paid in cash", got.Notes)

	bySale, err := GetPaymentBySale(ctx, database, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySale.ID)

	_, err = UpdatePaymentNotes(ctx, database, 9999, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
