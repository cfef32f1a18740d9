package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

const (
	PathToken    = "/auth/token"
	PathRegister = "/auth/register"
)

// Login exchanges credentials for a token pair. The token endpoint takes an OAuth2
// password form (username, password) rather than JSON.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.TokenPair, error) {
	form := url.Values{}
	form.Set("username", creds.Email)
	form.Set("password", creds.Password)
	resp, err := c.Send(ctx, Request{Method: http.MethodPost, Path: PathToken, Form: form}, session.Session{})
	if err != nil {
		return session.TokenPair{}, err
	}
	var tokens session.TokenPair
	if err := resp.Decode(&tokens); err != nil {
		return session.TokenPair{}, &Failure{Kind: KindHTTP, StatusCode: resp.StatusCode, Message: "invalid token response", Err: err}
	}
	if strings.TrimSpace(tokens.AccessToken) == "" {
		return session.TokenPair{}, &Failure{Kind: KindHTTP, StatusCode: resp.StatusCode, Message: "token response without access_token"}
	}
	return tokens, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, creds session.Credentials) error {
	body := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}
	_, err := c.Send(ctx, Request{Method: http.MethodPost, Path: PathRegister, Body: body}, session.Session{})
	return err
}

// Get issues an authenticated GET and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, sess session.Session, path string) (Response, error) {
	return c.Send(ctx, Request{Method: http.MethodGet, Path: path, Authenticated: true}, sess)
}

var _ session.Authenticator = (*Client)(nil)
