package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no exp claim.
var ErrNoExpiry = errors.New("jwt: token has no expiry")

// Claims is the subset of access token claims the clients care about. The API signs
// its tokens; the dashboard never holds the key, so claims are read unverified and
// only used for display and cookie lifetimes.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// Inspect decodes token claims without verifying the signature.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of token.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Subject returns the sub claim, falling back to the email claim.
func Subject(token string) (string, error) {
	claims, err := Inspect(token)
	if err != nil {
		return "", err
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return claims.Email, nil
}
