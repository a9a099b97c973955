package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type AuthConfig struct {
	// Secret is the HS256 key that bearer tokens are signed with.
	Secret string
	// Audience, if set, must appear in the token's aud claim.
	Audience string
}

func (a AuthConfig) Enabled() bool {
	return a.Secret != ""
}

// TokenValidator checks HS256 bearer tokens.
type TokenValidator struct {
	key      []byte
	audience string
}

func NewAuthValidator(conf AuthConfig) (*TokenValidator, error) {
	if conf.Secret == "" {
		return nil, errors.New("auth secret must be set")
	}
	return &TokenValidator{key: []byte(conf.Secret), audience: conf.Audience}, nil
}

func (v *TokenValidator) ValidateRequest(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return errUnauthorized("missing bearer token")
	}
	return v.Validate(token)
}

func (v *TokenValidator) Validate(token string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return errUnauthorized(fmt.Sprintf("invalid token: %s", err))
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return errUnauthorized("invalid token audience")
	}
	return nil
}
