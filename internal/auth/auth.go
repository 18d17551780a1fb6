// Package auth verifies identity tokens issued by the external identity
// provider. Tokens are HS256 JWTs; the subject is the stable user id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when the request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the identity asserted by a verified token.
type Claims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type tokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks token signatures and registered claims.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a Verifier for the shared secret. A non-empty issuer
// is enforced on every token.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates raw, returning its identity claims.
func (v *Verifier) Verify(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	tok, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	cl, ok := tok.Claims.(*tokenClaims)
	if !ok || cl.Subject == "" || cl.Email == "" {
		return Claims{}, fmt.Errorf("%w: subject and email are required", ErrInvalidToken)
	}
	return Claims{
		Subject: cl.Subject,
		Email:   strings.TrimSpace(cl.Email),
		Name:    cl.Name,
		Picture: cl.Picture,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
