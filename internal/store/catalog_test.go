package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
)

func TestBrandCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b, err := CreateBrand(ctx, database, "Farm")
	require.NoError(t, err)
	assert.True(t, b.Active)

	_, err = CreateBrand(ctx, database, "Farm")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = CreateBrand(ctx, database, "Animale")
	require.NoError(t, err)

	b, err = UpdateBrand(ctx, database, b.ID, "Farm Rio", false)
	require.NoError(t, err)
	assert.Equal(t, "Farm Rio", b.Name)
	assert.False(t, b.Active)

	active, err := ListBrands(ctx, database, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Animale", active[0].Name)

	all, err := ListBrands(ctx, database, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, DeleteBrand(ctx, database, b.ID))
	got, err := GetBrand(ctx, database, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = DeleteBrand(ctx, database, b.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteBrandInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	f.item(t, database, "T-1")

	err := DeleteBrand(ctx, database, f.brand.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	err = DeleteSize(ctx, database, f.size.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestSizesOrderedBySortOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for _, s := range []struct {
		name  string
		order int
	}{{"G", 3}, {"P", 1}, {"M", 2}} {
		_, err := CreateSize(ctx, database, s.name, s.order)
		require.NoError(t, err)
	}

	sizes, err := ListSizes(ctx, database, true)
	require.NoError(t, err)
	require.Len(t, sizes, 3)
	assert.Equal(t, []string{"P", "M", "G"}, []string{sizes[0].Name, sizes[1].Name, sizes[2].Name})

	_, err = UpdateSize(ctx, database, 9999, "X", 0, true)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
