package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAuth(t *testing.T, key string) *Auth {
	t.Helper()
	return &Auth{
		Options: Options{
			Logger: zaptest.NewLogger(t),
		},
		jwtKey: []byte(key),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t, "test-signing-key-0123456789")

	token, err := a.CreateTokenFromClaims(Claims{
		Email: "dev@example.com",
		ID:    "user-1",
	})
	require.NoError(t, err)

	claims, err := a.verifyToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, "user-1", claims.ID)
}

func TestTokenRejectsWrongKey(t *testing.T) {
	a := newTestAuth(t, "test-signing-key-0123456789")
	b := newTestAuth(t, "a-different-key-0123456789")

	token, err := a.CreateTokenFromClaims(Claims{ID: "user-1"})
	require.NoError(t, err)

	claims, err := b.verifyToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t, "test-signing-key-0123456789")

	token, err := a.CreateRefreshTokenFromClaims(Claims{
		Email: "dev@example.com",
		ID:    "user-1",
	})
	require.NoError(t, err)

	refresh, err := a.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.NotNil(t, refresh)
	assert.Equal(t, "user-1", refresh.ID)
}

func TestMiddleware(t *testing.T) {
	a := newTestAuth(t, "test-signing-key-0123456789")

	var gotClaims *Claims
	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = r.Context().Value(Context).(*Claims)
		w.WriteHeader(http.StatusOK)
	}))

	// no Authorization header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid token
	token, err := a.CreateTokenFromClaims(Claims{Email: "dev@example.com", ID: "user-1"})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "user-1", gotClaims.ID)
}
