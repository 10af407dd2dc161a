package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/model"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"
	partnerID := int64(7)
	user := &model.User{ID: 3, Email: "p@example.com", Role: model.RolePartner, PartnerID: &partnerID}

	token, err := GenerateToken(secret, time.Hour, user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.UserID)
	assert.Equal(t, "p@example.com", claims.Email)
	assert.Equal(t, model.RolePartner, claims.Role)
	require.NotNil(t, claims.PartnerID)
	assert.Equal(t, int64(7), *claims.PartnerID)
	assert.NotEmpty(t, claims.ID)

	caller, err := claims.Caller()
	require.NoError(t, err)
	got, ok := caller.PartnerID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), got)
}

func TestTokensHaveUniqueIDs(t *testing.T) {
	user := &model.User{ID: 1, Role: model.RoleAdmin}
	a, err := GenerateToken("s", time.Hour, user)
	require.NoError(t, err)
	b, err := GenerateToken("s", time.Hour, user)
	require.NoError(t, err)

	ca, _ := ValidateToken("s", a)
	cb, _ := ValidateToken("s", b)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", time.Hour, &model.User{ID: 1, Role: model.RoleAdmin})

	_, err := ValidateToken("secret2", token)
	assert.Error(t, err)
}

func TestValidateTokenInvalid(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken("s", time.Nanosecond, &model.User{ID: 1, Role: model.RoleAdmin})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = ValidateToken("s", token)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	token, _ := GenerateToken("test", 2*time.Hour, &model.User{ID: 1, Role: model.RoleAdmin})
	claims, _ := ValidateToken("test", token)

	diff := time.Now().Add(2 * time.Hour).Sub(claims.ExpiresAt.Time)
	assert.InDelta(t, 0, diff.Seconds(), 5)
}

func TestCallerRejectsBadRoles(t *testing.T) {
	_, err := (&Claims{UserID: 1, Role: "manager"}).Caller()
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = (&Claims{UserID: 1, Role: model.RolePartner}).Caller()
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
