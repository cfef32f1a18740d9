package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrMissingCredentials is returned before any network call when email or password
// is blank.
var ErrMissingCredentials = errors.New("session: email and password are required")

// State is the position of a client in the login lifecycle.
type State int

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// Credentials are used once to build a login or registration request.
type Credentials struct {
	Email    string
	Password string
}

// TokenPair is what the API hands back on a successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticator talks to the auth endpoints of the API.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (TokenPair, error)
	Register(ctx context.Context, creds Credentials) error
}

// Auth drives login, registration and logout against a Store.
type Auth struct {
	api    Authenticator
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	loggingIn bool
}

// NewAuth constructs an Auth.
func NewAuth(api Authenticator, store Store, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Auth{api: api, store: store, logger: logger}
}

// State reports the current lifecycle state.
func (a *Auth) State(ctx context.Context) State {
	a.mu.Lock()
	loggingIn := a.loggingIn
	a.mu.Unlock()
	if loggingIn {
		return LoggingIn
	}
	s, err := a.store.Get(ctx)
	if err != nil || !s.LoggedIn {
		return LoggedOut
	}
	return LoggedIn
}

// Require returns the session when logged in and ErrNotLoggedIn otherwise. Every
// resource read or write goes through it.
func (a *Auth) Require(ctx context.Context) (Session, error) {
	s, err := a.store.Get(ctx)
	if err != nil {
		return Session{}, err
	}
	if !s.LoggedIn {
		return Session{}, ErrNotLoggedIn
	}
	return s, nil
}

// Login exchanges credentials for tokens and stores the logged in session. On
// failure the stored session is left as it was.
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}

	a.mu.Lock()
	a.loggingIn = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.loggingIn = false
		a.mu.Unlock()
	}()

	tokens, err := a.api.Login(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		a.logger.Warn("login failed", "user_email", email, "error", err)
		return Session{}, err
	}
	s := Session{
		LoggedIn:     true,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UserEmail:    email,
	}
	if !s.Valid() {
		return Session{}, ErrInvalidSession
	}
	if err := a.store.Set(ctx, s); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	a.logger.Info("user logged in", "user_email", email)
	return s, nil
}

// Register creates an account. The stored session is never modified.
func (a *Auth) Register(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	if err := a.api.Register(ctx, Credentials{Email: email, Password: password}); err != nil {
		a.logger.Warn("registration failed", "user_email", email, "error", err)
		return err
	}
	a.logger.Info("user registered", "user_email", email)
	return nil
}

// Logout clears the stored session.
func (a *Auth) Logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.logger.Info("user logged out")
	return nil
}
