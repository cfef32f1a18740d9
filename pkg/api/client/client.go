package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

const (
	maxBodySize       = 10 << 20
	sharedCallTimeout = 30 * time.Second
)

// Observer is notified once per round trip. status is 0 when the request never
// reached the API.
type Observer interface {
	ObserveAPICall(method, path string, status int, kind FailureKind, duration time.Duration)
}

// Client issues requests against the company API on behalf of a session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
	dedup      bool
	group      singleflight.Group
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a round trip observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithDeduplication collapses identical in-flight GET requests issued with the same
// token into one round trip.
func WithDeduplication(enabled bool) Option {
	return func(c *Client) {
		c.dedup = enabled
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base url: missing host")
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one call against the API.
type Request struct {
	Method string
	Path   string
	// Body is encoded as JSON when non-nil.
	Body any
	// Form is sent form-encoded instead of Body when non-nil.
	Form          url.Values
	Authenticated bool
}

// Response is a successful (HTTP 200) API reply.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Send performs req with the credentials of sess. Any error it returns is a *Failure.
// Requests are never retried.
func (c *Client) Send(ctx context.Context, req Request, sess session.Session) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	token := ""
	if req.Authenticated {
		token = strings.TrimSpace(sess.AccessToken)
		if token == "" {
			c.observe(req.Method, req.Path, 0, KindHTTP, 0)
			return Response{}, errNotAuthenticated()
		}
	}
	if c.dedup && req.Method == http.MethodGet {
		return c.sendShared(ctx, req, token)
	}
	return c.roundTrip(ctx, req, token)
}

// sendShared joins an identical in-flight GET. The shared round trip outlives the
// caller that started it; each caller stops waiting when its own ctx is done.
func (c *Client) sendShared(ctx context.Context, req Request, token string) (Response, error) {
	key := req.Path + "\x00" + token
	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return c.roundTrip(shared, req, token)
	})
	select {
	case <-ctx.Done():
		return Response{}, &Failure{Kind: KindConnection, Message: "request cancelled", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		shared := res.Val.(Response)
		return Response{StatusCode: shared.StatusCode, Body: append(json.RawMessage(nil), shared.Body...)}, nil
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request, token string) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := c.baseURL + req.Path

	var reader io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		reader = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, &Failure{Kind: KindHTTP, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return Response{}, &Failure{Kind: KindHTTP, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(method, req.Path, 0, KindConnection, time.Since(start))
		c.logger.Warn("api request failed", "method", method, "path", req.Path, "error", err)
		return Response{}, &Failure{Kind: KindConnection, Message: "connection error", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.observe(method, req.Path, resp.StatusCode, KindConnection, time.Since(start))
		return Response{}, &Failure{Kind: KindConnection, StatusCode: resp.StatusCode, Message: "connection error", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.observe(method, req.Path, resp.StatusCode, KindHTTP, time.Since(start))
		c.logger.Info("api request rejected", "method", method, "path", req.Path, "status", resp.StatusCode)
		return Response{}, &Failure{
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	c.observe(method, req.Path, resp.StatusCode, "", time.Since(start))
	c.logger.Debug("api request completed", "method", method, "path", req.Path, "status", resp.StatusCode, "bytes", len(body))
	return Response{StatusCode: resp.StatusCode, Body: json.RawMessage(body)}, nil
}

func (c *Client) observe(method, path string, status int, kind FailureKind, d time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveAPICall(method, path, status, kind, d)
}
