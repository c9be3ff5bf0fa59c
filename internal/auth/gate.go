// Package auth verifies bearer tokens minted by the external identity
// provider. Only verification lives here; minting is the IdP's job (the
// "token" CLI subcommand exists for local development).
package auth

import (
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mixtura/petube/internal/errs"
)

// Claims are the subject claims carried by an IdP token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ID returns the opaque subject id.
func (c *Claims) ID() string { return c.Subject }

// Gate verifies token signatures against the IdP public key.
type Gate struct {
	publicKey *rsa.PublicKey
}

// NewGate parses the PEM-encoded RSA public key and returns a gate.
func NewGate(publicKeyPEM []byte) (*Gate, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Gate{publicKey: key}, nil
}

// Verify checks the token signature and expiry and returns the claims.
func (g *Gate) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errs.ErrInvalidToken
		}
		return g.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ErrTokenExpired
		}
		return nil, errs.ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest extracts the bearer token from the Authorization header,
// falling back to the "token" query parameter (browsers cannot set headers
// on WebSocket upgrades).
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errs.ErrInvalidToken
		}
		return parts[1], nil
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	return "", errs.ErrUnauthorized
}
