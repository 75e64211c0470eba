// Package auth issues and checks the admin tokens that guard mutating API
// routes.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const (
	Subject    = "admin"
	Issuer     = "golfstats"
	DefaultTTL = 24 * time.Hour
	CookieName = "token"
)

var (
	ErrNoSecret     = errors.New("no secret key configured")
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the JWT claims of an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

// Signer issues and verifies HS256 tokens with one secret.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner returns a Signer; ttl <= 0 means DefaultTTL.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{key: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token and its expiry.
func (s *Signer) Issue() (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Role: Subject,
		StandardClaims: jwt.StandardClaims{
			Subject:   Subject,
			Issuer:    Issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, exp, nil
}

// Verify checks the signature, algorithm, expiry and subject of raw.
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid || claims.Subject != Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromRequest extracts the token from "Authorization: Bearer" or, failing
// that, the token cookie.
func FromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(token), nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrMissingToken
}

// Authorize verifies the token carried by r.
func (s *Signer) Authorize(r *http.Request) error {
	raw, err := FromRequest(r)
	if err != nil {
		return err
	}
	_, err = s.Verify(raw)
	return err
}
