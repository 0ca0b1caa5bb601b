package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
)

const testSecret = "test-secret"

func signed(t *testing.T, secret string, claims CallerClaims) string {
	t.Helper()
	token, err := SignCallerToken(secret, claims)
	require.NoError(t, err)
	return "Bearer " + token
}

func captureCaller(got **entities.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	var caller *entities.Caller
	handler := NewAuthenticator(testSecret, "openimis").Middleware(captureCaller(&caller))

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", signed(t, testSecret, CallerClaims{
		AuditUserID: 7,
		Perms:       []string{"122101", "122102"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "clerk",
			Issuer:    "openimis",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, caller.IsAuthenticated())
	assert.Equal(t, "clerk", caller.UserID)
	assert.Equal(t, 7, caller.AuditUserID)
	assert.True(t, caller.HasPerms([]string{"122101", "122102"}))
}

func TestAuthMiddleware_NoHeaderIsAnonymous(t *testing.T) {
	var caller *entities.Caller
	handler := NewAuthenticator(testSecret, "").Middleware(captureCaller(&caller))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, caller.IsAuthenticated())
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	expired := CallerClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "clerk",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	valid := CallerClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "clerk", Issuer: "elsewhere"}}

	tests := []struct {
		name   string
		header string
	}{
		{"not bearer", "Basic abc"},
		{"wrong secret", signed(t, "other-secret", valid)},
		{"expired", signed(t, testSecret, expired)},
		{"wrong issuer", signed(t, testSecret, valid)},
		{"no subject", signed(t, testSecret, CallerClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "openimis"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAuthenticator(testSecret, "openimis").Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORSMiddleware([]string{"https://imis.example.org"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Origin", "https://imis.example.org")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://imis.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/items", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
