// Package session keeps the dashboard's login state between browser requests.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Juauvitorsm/painel-empresas/pkg/jwt"
	core "github.com/Juauvitorsm/painel-empresas/pkg/session"
)

// ErrTampered is returned when a session cookie cannot be opened.
var ErrTampered = errors.New("session: cookie could not be verified")

// Manager loads and persists the session carried by a browser.
type Manager interface {
	// Load returns the empty session when the request carries none.
	Load(r *http.Request) (core.Session, error)
	Save(w http.ResponseWriter, r *http.Request, s core.Session) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// CookieOptions configures the cookie shared by both managers.
type CookieOptions struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Name == "" {
		o.Name = "painel_session"
	}
	if o.TTL <= 0 {
		o.TTL = 12 * time.Hour
	}
	return o
}

func (o CookieOptions) cookie(value string, expires time.Time) *http.Cookie {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		MaxAge:   maxAge,
	}
}

func (o CookieOptions) expired() *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}

// lifetime follows the access token's exp claim, capped by the configured TTL.
func (o CookieOptions) lifetime(s core.Session, now time.Time) time.Time {
	limit := now.Add(o.TTL)
	exp, err := jwt.ExpiresAt(s.AccessToken)
	if err != nil || exp.Before(now) || exp.After(limit) {
		return limit
	}
	return exp
}

// Bind adapts m to core.Store for the duration of one request so the shared
// login state machine can drive the browser session.
func Bind(m Manager, w http.ResponseWriter, r *http.Request) core.Store {
	return &requestStore{manager: m, w: w, r: r}
}

type requestStore struct {
	manager Manager
	w       http.ResponseWriter
	r       *http.Request
	current *core.Session
}

func (s *requestStore) Get(context.Context) (core.Session, error) {
	if s.current != nil {
		return *s.current, nil
	}
	sess, err := s.manager.Load(s.r)
	if err != nil {
		return core.Session{}, err
	}
	s.current = &sess
	return sess, nil
}

func (s *requestStore) Set(_ context.Context, sess core.Session) error {
	if !sess.Valid() {
		return core.ErrInvalidSession
	}
	if err := s.manager.Save(s.w, s.r, sess); err != nil {
		return err
	}
	s.current = &sess
	return nil
}

func (s *requestStore) Clear(context.Context) error {
	if err := s.manager.Clear(s.w, s.r); err != nil {
		return err
	}
	s.current = &core.Session{}
	return nil
}
