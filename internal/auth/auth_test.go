package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/mickamy/golfstats/internal/auth"
)

func TestIssueVerify(t *testing.T) {
	t.Parallel()

	s, err := auth.NewSigner("s3cret", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, exp, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expiry in %s, want ~1h", d)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != auth.Subject || claims.Role != auth.Subject {
		t.Errorf("claims = %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	s, _ := auth.NewSigner("s3cret", time.Hour)
	other, _ := auth.NewSigner("other", time.Hour)
	foreign, _, _ := other.Issue()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		StandardClaims: jwt.StandardClaims{Subject: auth.Subject, ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatal(err)
	}
	wrongSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		StandardClaims: jwt.StandardClaims{Subject: "guest", ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatal(err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
		StandardClaims: jwt.StandardClaims{Subject: auth.Subject},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"other secret", foreign},
		{"expired", expired},
		{"wrong subject", wrongSubject},
		{"alg none", unsigned},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		if _, err := s.Verify(tt.token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("%s: Verify = %v, want ErrInvalidToken", tt.name, err)
		}
	}
}

func TestNewSignerRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := auth.NewSigner("", 0); !errors.Is(err, auth.ErrNoSecret) {
		t.Errorf("NewSigner(\"\") = %v, want ErrNoSecret", err)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	s, _ := auth.NewSigner("s3cret", 0)
	token, _, _ := s.Issue()

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantErr error
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, nil},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, nil},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token}) }, nil},
		{"missing", func(*http.Request) {}, auth.ErrMissingToken},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, auth.ErrMissingToken},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, auth.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/api/players", nil)
			tt.prepare(r)
			err := s.Authorize(r)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Authorize = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Authorize = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
