package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerify_AcceptsValidToken(t *testing.T) {
	v := NewVerifier("s3cret")
	tok := signToken(t, "s3cret", "alice", time.Hour)

	sub, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v := NewVerifier("s3cret")
	tok := signToken(t, "other-secret", "alice", time.Hour)

	_, err := v.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier("s3cret")
	tok := signToken(t, "s3cret", "alice", -time.Hour)

	_, err := v.Verify(tok)
	assert.Error(t, err)
}

func TestRequireAuth_InjectsUserIDOnSuccess(t *testing.T) {
	v := NewVerifier("s3cret")
	tok := signToken(t, "s3cret", "alice", time.Hour)

	var seenUser string
	handler := v.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/?token="+tok, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", seenUser)
}

func TestRequireAuth_RejectsMissingToken(t *testing.T) {
	v := NewVerifier("s3cret")
	handler := v.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyRequest_UsesBearerHeaderFallback(t *testing.T) {
	v := NewVerifier("s3cret")
	tok := signToken(t, "s3cret", "bob", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	sub, err := v.VerifyRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "bob", sub)
}
