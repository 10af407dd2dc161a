package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
	"github.com/erazemk/consigna/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)

	item := f.item(t, database, "T-100")
	assert.Equal(t, model.ItemStatusAvailable, item.Status)
	assert.Equal(t, "Maria", item.PartnerName)
	assert.Equal(t, "Zara", item.BrandName)
	assert.Equal(t, "M", item.SizeName)
	assert.Empty(t, item.Photos)
	assert.False(t, item.EnteredAt.IsZero())

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CostValue.Equal(decimal.NewFromInt(10)))

	missing, err := GetItem(ctx, database, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateItemValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	f.item(t, database, "DUP")

	base := NewItem{
		TagCode:   "DUP",
		CostValue: decimal.NewFromInt(1),
		ListValue: decimal.NewFromInt(2),
		PartnerID: f.partner.ID,
		BrandID:   f.brand.ID,
		SizeID:    f.size.ID,
	}

	_, err := CreateItem(ctx, database, base)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "duplicate tag: %v", err)

	noTag := base
	noTag.TagCode = " "
	_, err = CreateItem(ctx, database, noTag)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	badBrand := base
	badBrand.TagCode = "NEW"
	badBrand.BrandID = 9999
	_, err = CreateItem(ctx, database, badBrand)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "unknown brand: %v", err)

	negative := base
	negative.TagCode = "NEG"
	negative.CostValue = decimal.NewFromInt(-1)
	_, err = CreateItem(ctx, database, negative)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListItemsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	f.item(t, database, "A-1")
	sold := f.item(t, database, "A-2")
	require.NoError(t, MarkItemSold(ctx, database, sold.ID))

	all, err := ListItems(ctx, database, ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := ListItems(ctx, database, ItemFilter{Status: model.ItemStatusAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "A-1", available[0].TagCode)

	other := int64(9999)
	none, err := ListItems(ctx, database, ItemFilter{PartnerID: &other})
	require.NoError(t, err)
	assert.Empty(t, none)

	search, err := ListItems(ctx, database, ItemFilter{Search: "A-2"})
	require.NoError(t, err)
	assert.Len(t, search, 1)
}

func TestUpdateItemKeepsStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	item := f.item(t, database, "U-1")
	require.NoError(t, MarkItemSold(ctx, database, item.ID))

	list := decimal.RequireFromString("25.50")
	notes := "small stain"
	updated, err := UpdateItem(ctx, database, item.ID, ItemUpdate{ListValue: &list, Notes: &notes})
	require.NoError(t, err)
	assert.True(t, updated.ListValue.Equal(list))
	assert.Equal(t, "small stain", updated.Notes)
	assert.Equal(t, model.ItemStatusSold, updated.Status)

	_, err = UpdateItem(ctx, database, 9999, ItemUpdate{Notes: &notes})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMarkItemSold(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	item := f.item(t, database, "S-1")

	require.NoError(t, MarkItemSold(ctx, database, item.ID))

	err := MarkItemSold(ctx, database, item.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	err = MarkItemSold(ctx, database, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, MarkItemAvailable(ctx, database, item.ID))
	got, _ := GetItem(ctx, database, item.ID)
	assert.Equal(t, model.ItemStatusAvailable, got.Status)

	err = MarkItemAvailable(ctx, database, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCanDeleteAndDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	free := f.item(t, database, "D-1")
	sold := f.item(t, database, "D-2")
	f.sell(t, database, sold, "20")

	ok, err := CanDeleteItem(ctx, database, free.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CanDeleteItem(ctx, database, sold.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CanDeleteItem(ctx, database, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = DeleteItem(ctx, database, sold.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	require.NoError(t, DeleteItem(ctx, database, free.ID))
	got, err := GetItem(ctx, database, free.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestItemPhotos(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	item := f.item(t, database, "P-1")

	photo, err := AddItemPhoto(ctx, database, item.ID, []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)

	got, err := GetItem(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{model.PhotoURI(item.ID, photo.ID)}, got.Photos)

	stored, err := GetItemPhoto(ctx, database, item.ID, photo.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "image/jpeg", stored.MIME)
	assert.Equal(t, []byte{0xff, 0xd8}, stored.Data)

	wrongItem, err := GetItemPhoto(ctx, database, item.ID+1, photo.ID)
	require.NoError(t, err)
	assert.Nil(t, wrongItem)

	_, err = AddItemPhoto(ctx, database, 9999, []byte{1}, "image/jpeg")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, DeleteItemPhoto(ctx, database, item.ID, photo.ID))
	assert.True(t, apperr.Is(DeleteItemPhoto(ctx, database, item.ID, photo.ID), apperr.KindNotFound))
}

func TestDeleteItemRacingSaleIsInvalidState(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "race.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.EnsureSchema(database))

	ctx := context.Background()
	f := newFixture(t, database)

	for i := 0; i < 10; i++ {
		item := f.item(t, database, fmt.Sprintf("R-%d", i))

		var wg sync.WaitGroup
		var sellErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			sellErr = db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
				if err := MarkItemSold(ctx, tx, item.ID); err != nil {
					return err
				}
				_, err := InsertSale(ctx, tx, item.ID, decimal.NewFromInt(20), time.Now())
				return err
			})
		}()
		go func() {
			defer wg.Done()
			deleteErr = DeleteItem(ctx, database, item.ID)
		}()
		wg.Wait()

		// Exactly one side wins and the loser sees a typed error.
		if deleteErr == nil {
			assert.True(t, apperr.Is(sellErr, apperr.KindNotFound), "sell after delete: %v", sellErr)
		} else {
			assert.True(t, apperr.Is(deleteErr, apperr.KindInvalidState), "delete after sale: %v", deleteErr)
			assert.NoError(t, sellErr)
		}
	}
}
