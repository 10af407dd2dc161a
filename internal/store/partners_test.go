package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/db"
	"github.com/erazemk/consigna/internal/model"
)

func TestCreatePartnerLinksUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := CreatePartner(ctx, database, NewPartner{
		Name:         "Joana",
		Email:        "joana@example.com",
		PasswordHash: "hash",
		Phone:        "555-1234",
		Percentage:   decimal.RequireFromString("40.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Joana", p.Name)
	assert.True(t, p.Percentage.Equal(decimal.RequireFromString("40.5")))
	assert.True(t, p.Active)

	user, err := GetUser(ctx, database, p.UserID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, model.RolePartner, user.Role)
	require.NotNil(t, user.PartnerID)
	assert.Equal(t, p.ID, *user.PartnerID)
}

func TestCreatePartnerRejectsBadPercentage(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreatePartner(context.Background(), database, NewPartner{
		Name: "X", Email: "x@example.com", PasswordHash: "hash", Percentage: decimal.NewFromInt(101),
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreatePartnerDuplicateEmailLeavesNothing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateUser(ctx, database, "Admin", "taken@example.com", "hash", model.RoleAdmin)
	require.NoError(t, err)

	_, err = CreatePartner(ctx, database, NewPartner{
		Name: "X", Email: "taken@example.com", PasswordHash: "hash", Percentage: model.DefaultPercentage,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	partners, err := ListPartners(ctx, database)
	require.NoError(t, err)
	assert.Empty(t, partners)
}

func TestUpdatePartner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)

	name := "Maria Silva"
	pct := decimal.NewFromInt(60)
	p, err := UpdatePartner(ctx, database, f.partner.ID, PartnerUpdate{Name: &name, Percentage: &pct})
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", p.Name)
	assert.True(t, p.Percentage.Equal(pct))
	assert.Equal(t, f.partner.Phone, p.Phone)

	_, err = UpdatePartner(ctx, database, 9999, PartnerUpdate{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeactivatePartner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := newFixture(t, database)
	f.item(t, database, "T-1")

	require.NoError(t, DeactivatePartner(ctx, database, f.partner.ID))

	p, err := GetPartner(ctx, database, f.partner.ID)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, 1, p.ItemCount)

	user, err := GetUser(ctx, database, p.UserID)
	require.NoError(t, err)
	assert.False(t, user.Active)
}
