// Package authn provides the default client-authentication mechanism
// invoked before signCredential, per spec.md §6.1's requirement that the
// core receive an authenticated caller identity without prescribing how.
package authn

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned when no credentials are presented.
var ErrMissingToken = errors.New("authn: missing bearer token")

// ErrInvalidToken is returned when the token fails signature or claim
// validation.
var ErrInvalidToken = errors.New("authn: invalid bearer token")

// BearerJWT authenticates callers using an HMAC-signed JWT, the simplest
// default suitable for a trusted-issuer deployment (e.g. a gateway that
// mints short-lived tokens for registered client applications).
type BearerJWT struct {
	secret []byte
}

// NewBearerJWT constructs a validator keyed by the given HMAC secret.
func NewBearerJWT(secret []byte) *BearerJWT {
	return &BearerJWT{secret: secret}
}

// Authenticate implements service.Authenticator. credentials is the raw
// JWT bytes (e.g. the Authorization header's bearer token with the
// "Bearer " prefix already stripped).
func (b *BearerJWT) Authenticate(ctx context.Context, credentials []byte) (string, error) {
	if len(credentials) == 0 {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(string(credentials), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authn: unexpected signing method %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}

	return sub, nil
}
