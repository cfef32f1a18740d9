// Package session holds the client-side authentication state shared by the dashboard
// and the CLI, the stores that persist it and the login/logout state machine.
package session

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotLoggedIn is returned when an operation needs a logged in session.
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrInvalidSession is returned when a session claims to be logged in without a token.
	ErrInvalidSession = errors.New("session: logged in without access token")
)

// Session is the authentication state of one client.
type Session struct {
	LoggedIn     bool   `json:"logged_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserEmail    string `json:"user_email"`
}

// Valid reports whether s satisfies the LoggedIn implies AccessToken invariant.
func (s Session) Valid() bool {
	return !s.LoggedIn || strings.TrimSpace(s.AccessToken) != ""
}

// Empty reports whether s is the logged out zero value.
func (s Session) Empty() bool {
	return s == Session{}
}

// Store persists a single Session.
type Store interface {
	Get(ctx context.Context) (Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
