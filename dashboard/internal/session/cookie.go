package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Juauvitorsm/painel-empresas/pkg/crypto"
	core "github.com/Juauvitorsm/painel-empresas/pkg/session"
)

// CookieManager stores the whole session in an encrypted cookie.
type CookieManager struct {
	secret string
	opts   CookieOptions
	now    func() time.Time
}

// NewCookieManager validates the secret and returns a CookieManager.
func NewCookieManager(secret string, opts CookieOptions) (*CookieManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, crypto.ErrEmptySecret
	}
	return &CookieManager{secret: secret, opts: opts.withDefaults(), now: time.Now}, nil
}

func (m *CookieManager) Load(r *http.Request) (core.Session, error) {
	c, err := r.Cookie(m.opts.Name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return core.Session{}, nil
		}
		return core.Session{}, err
	}
	plain, err := crypto.OpenString(m.secret, c.Value)
	if err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	var sess core.Session
	if err := json.Unmarshal([]byte(plain), &sess); err != nil {
		return core.Session{}, fmt.Errorf("%w: %v", ErrTampered, err)
	}
	if !sess.Valid() {
		return core.Session{}, core.ErrInvalidSession
	}
	return sess, nil
}

func (m *CookieManager) Save(w http.ResponseWriter, _ *http.Request, sess core.Session) error {
	if !sess.Valid() {
		return core.ErrInvalidSession
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	sealed, err := crypto.SealString(m.secret, string(raw))
	if err != nil {
		return err
	}
	http.SetCookie(w, m.opts.cookie(sealed, m.opts.lifetime(sess, m.now())))
	return nil
}

func (m *CookieManager) Clear(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, m.opts.expired())
	return nil
}
