package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathsprint/mathsprint/internal/auth/jwt"
)

func testTokenConfig() jwt.TokenConfig {
	return jwt.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	}
}

// meHandler is the /v1/users/me chain as the server wires it.
func meHandler(t *testing.T) (http.Handler, *jwt.Manager) {
	t.Helper()
	svc := NewService(nil, ServiceOptions{TokenConfig: testTokenConfig()}, zerolog.Nop())
	handlers := NewHTTPHandlers(svc, nil, zerolog.Nop())
	chain := Middleware(svc, zerolog.Nop())(RequireAuth(http.HandlerFunc(handlers.GetMe)))
	return chain, jwt.NewManager(testTokenConfig())
}

func TestMiddlewareResolvesBearerClaims(t *testing.T) {
	chain, mgr := meHandler(t)

	token, err := mgr.GenerateAccessToken(jwt.User{ID: uuid.New(), DisplayName: "Rae"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rae", body["display_name"])
	assert.NotEmpty(t, body["user_id"])
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	chain, _ := meHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	chain, _ := meHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	chain, mgr := meHandler(t)

	token, err := mgr.GenerateAccessToken(jwt.User{ID: uuid.New(), DisplayName: "Rae"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", token) // no Bearer prefix
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
