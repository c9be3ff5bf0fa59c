package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixtura/petube/internal/errs"
)

func newTestGate(t *testing.T) (*Gate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	gate, err := NewGate(pemBytes)
	require.NoError(t, err)
	return gate, key
}

func TestGateVerify(t *testing.T) {
	gate, key := newTestGate(t)

	t.Run("valid token", func(t *testing.T) {
		tok, err := MintDevToken(key, "user-1", "Sam", "sam@example.com", time.Minute)
		require.NoError(t, err)
		claims, err := gate.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.ID())
		assert.Equal(t, "Sam", claims.Name)
		assert.Equal(t, "sam@example.com", claims.Email)
	})

	t.Run("expired token", func(t *testing.T) {
		tok, err := MintDevToken(key, "user-1", "", "", -time.Minute)
		require.NoError(t, err)
		_, err = gate.Verify(tok)
		assert.ErrorIs(t, err, errs.ErrTokenExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		tok, err := MintDevToken(other, "user-1", "", "", time.Minute)
		require.NoError(t, err)
		_, err = gate.Verify(tok)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = gate.Verify(tok)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok, err := MintDevToken(key, "", "", "", time.Minute)
		require.NoError(t, err)
		_, err = gate.Verify(tok)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := gate.Verify("not-a-token")
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	})
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		r, _ := http.NewRequest(http.MethodGet, "/room/42", nil)
		r.Header.Set("Authorization", "Bearer abc123")
		tok, err := TokenFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "abc123", tok)
	})

	t.Run("query fallback", func(t *testing.T) {
		r, _ := http.NewRequest(http.MethodGet, "/room/42?token=qrs789", nil)
		tok, err := TokenFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "qrs789", tok)
	})

	t.Run("header wins over query", func(t *testing.T) {
		r, _ := http.NewRequest(http.MethodGet, "/room/42?token=fromquery", nil)
		r.Header.Set("Authorization", "Bearer fromheader")
		tok, err := TokenFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "fromheader", tok)
	})

	t.Run("malformed header", func(t *testing.T) {
		r, _ := http.NewRequest(http.MethodGet, "/room/42", nil)
		r.Header.Set("Authorization", "Basic abc123")
		_, err := TokenFromRequest(r)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	})

	t.Run("missing", func(t *testing.T) {
		r, _ := http.NewRequest(http.MethodGet, "/room/42", nil)
		_, err := TokenFromRequest(r)
		assert.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}
