package jwt

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwtlib.Claims) string {
	t.Helper()
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestExpiresAtReadsUnverifiedClaim(t *testing.T) {
	exp := time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC)
	token := signed(t, jwtlib.RegisteredClaims{
		Subject:   "a@b.com",
		ExpiresAt: jwtlib.NewNumericDate(exp),
	})

	got, err := ExpiresAt(token)
	if err != nil {
		t.Fatalf("expires at: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got)
	}
	sub, err := Subject(token)
	if err != nil || sub != "a@b.com" {
		t.Fatalf("unexpected subject %q (%v)", sub, err)
	}
}

func TestExpiresAtWithoutExpiry(t *testing.T) {
	token := signed(t, jwtlib.RegisteredClaims{Subject: "x"})
	if _, err := ExpiresAt(token); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("expected ErrNoExpiry, got %v", err)
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	if _, err := Inspect("T1"); err == nil {
		t.Fatal("expected error for non-JWT token")
	}
}

func TestSubjectFallsBackToEmail(t *testing.T) {
	token := signed(t, Claims{Email: "c@d.com"})
	sub, err := Subject(token)
	if err != nil || sub != "c@d.com" {
		t.Fatalf("unexpected subject %q (%v)", sub, err)
	}
}
