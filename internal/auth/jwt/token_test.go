package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() User {
	email := "rae@example.com"
	return User{
		ID:          uuid.New(),
		Email:       &email,
		DisplayName: "Rae",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := NewManager(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
	user := testUser()

	token, err := mgr.GenerateAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "rae@example.com", claims.Email)
	assert.Equal(t, "Rae", claims.DisplayName)
	assert.Equal(t, "mathsprint", claims.Issuer)
}

func TestRefreshTokenNotValidAsAccess(t *testing.T) {
	mgr := NewManager(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})

	refresh, err := mgr.GenerateRefreshToken(testUser())
	require.NoError(t, err)

	_, err = mgr.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = mgr.ValidateRefreshToken(refresh)
	assert.NoError(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	mgr := NewManager(TokenConfig{
		AccessSecret:  []byte("secret-a"),
		RefreshSecret: []byte("refresh-a"),
	})
	other := NewManager(TokenConfig{
		AccessSecret:  []byte("secret-b"),
		RefreshSecret: []byte("refresh-b"),
	})

	token, err := mgr.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	mgr := NewManager(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     -time.Minute,
	})

	token, err := mgr.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = mgr.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	mgr := NewManager(TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})

	_, err := mgr.ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
