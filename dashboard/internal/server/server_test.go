package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Juauvitorsm/painel-empresas/pkg/config"
)

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedCall
	server   *httptest.Server
}

type recordedCall struct {
	method string
	path   string
	auth   string
	body   string
}

func (f *fakeAPI) calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.requests...)
}

func (f *fakeAPI) callsTo(path string) int {
	n := 0
	for _, c := range f.calls() {
		if c.path == path {
			n++
		}
	}
	return n
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedCall{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(body)})
		f.mu.Unlock()

		switch {
		case r.URL.Path == "/auth/token":
			form, _ := url.ParseQuery(string(body))
			if form.Get("username") != "a@b.com" || form.Get("password") != "pw" {
				http.Error(w, `{"detail":"Incorrect username or password"}`, http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"T1","refresh_token":"T2","token_type":"bearer"}`)
			return
		case r.URL.Path == "/auth/register":
			if strings.Contains(string(body), "taken@b.com") {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"detail":"Email already registered"}`)
				return
			}
			_, _ = io.WriteString(w, `{"email":"new@b.com"}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer T1" {
			http.Error(w, `{"detail":"Not authenticated"}`, http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/empresas/":
			_, _ = io.WriteString(w, `[{"id":1,"nome_empresa":"Acme","diretor_empresa":"Ana"}]`)
		case "/api/faturamento/":
			_, _ = io.WriteString(w, `{"id":9}`)
		case "/api/avaliacoes/":
			_, _ = io.WriteString(w, `[]`)
		case "/api/insights/":
			_, _ = io.WriteString(w, `[{"nome_empresa":"Acme","faturamento_total_anual":1500.5,"media_nota_empresa":8}]`)
		case "/api/media_notas_diretor/":
			_, _ = io.WriteString(w, `[{"diretor_empresa":"Ana","media_nota":8.5}]`)
		case "/api/pioresdiretores/", "/api/insights/maior_lucro/", "/api/melhoresdiretores/", "/api/faturamento_mensal_por_empresa/":
			_, _ = io.WriteString(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestServer(t *testing.T, api *fakeAPI, loginLimit int) *Server {
	t.Helper()
	return newTestServerWith(t, api, func(cfg *config.DashboardConfig) {
		cfg.LoginRateLimit = loginLimit
	})
}

func newTestServerWith(t *testing.T, api *fakeAPI, configure func(*config.DashboardConfig)) *Server {
	t.Helper()
	cfg := config.DashboardConfig{
		APIBaseURL:    api.server.URL,
		SessionSecret: "test-secret",
		SessionStore:  config.SessionStoreCookie,
		CookieName:    "painel_session",
	}
	if configure != nil {
		configure(&cfg)
	}
	srv, err := New(cfg,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithRegistry(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

type browser struct {
	t       *testing.T
	srv     *Server
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, srv *Server) *browser {
	return &browser{t: t, srv: srv, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.srv.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) login() {
	b.t.Helper()
	rec := b.do(http.MethodPost, "/login", url.Values{"email": {"a@b.com"}, "password": {"pw"}})
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/tabs/empresas") {
		b.t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
}

func flashLevel(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	return loc.Query().Get("level"), loc.Query().Get("flash")
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	for _, path := range []string{"/", "/tabs/empresas", "/insights", "/manage/faturamento"} {
		rec := b.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Fatalf("%s: expected redirect to /login, got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
	if len(api.calls()) != 0 {
		t.Fatalf("expected no API calls, got %v", api.calls())
	}
}

func TestLoginThenListing(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	b.login()

	rec := b.do(http.MethodGet, "/tabs/empresas", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{"Acme", "nome_empresa", "Bem-vindo, a@b.com!"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected %q in page", want)
		}
	}
	calls := api.calls()
	last := calls[len(calls)-1]
	if last.path != "/api/empresas/" || last.auth != "Bearer T1" {
		t.Fatalf("unexpected API call %+v", last)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestLoginFailureShowsInvalidCredentials(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	rec := b.do(http.MethodPost, "/login", url.Values{"email": {"a@b.com"}, "password": {"wrong"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Credenciais inválidas") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if len(b.cookies) != 0 {
		t.Fatalf("no session cookie expected, got %v", b.cookies)
	}
}

func TestLogoutThenProtectedPageMakesNoCall(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	b.login()

	rec := b.do(http.MethodPost, "/logout", nil)
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/login") {
		t.Fatalf("unexpected logout response %d", rec.Code)
	}
	before := len(api.calls())
	rec = b.do(http.MethodGet, "/tabs/empresas", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", rec.Code)
	}
	if len(api.calls()) != before {
		t.Fatal("no API call expected after logout")
	}
}

func TestRegisterShowsServerDetail(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))

	rec := b.do(http.MethodPost, "/register", url.Values{"email": {"taken@b.com"}, "password": {"pw"}})
	if !strings.Contains(rec.Body.String(), "Erro ao cadastrar: Email already registered") {
		t.Fatalf("unexpected register page %s", rec.Body.String())
	}
	rec = b.do(http.MethodPost, "/register", url.Values{"email": {"new@b.com"}, "password": {"pw"}})
	level, msg := flashLevel(t, rec)
	if level != "success" || !strings.Contains(msg, "cadastrado com sucesso") {
		t.Fatalf("unexpected flash %s %q", level, msg)
	}
}

func TestManageAddSendsTypedPayload(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	b.login()

	rec := b.do(http.MethodPost, "/manage/faturamento/add", url.Values{
		"id_empresa":         {"3"},
		"faturamento_mensal": {"1000"},
		"faturamento_anual":  {"12000"},
	})
	level, _ := flashLevel(t, rec)
	if level != "success" {
		t.Fatalf("expected success flash, got %q (%s)", level, rec.Header().Get("Location"))
	}
	calls := api.calls()
	last := calls[len(calls)-1]
	if last.method != http.MethodPost || last.path != "/api/faturamento/" {
		t.Fatalf("unexpected call %+v", last)
	}
	if last.body != `{"id_empresa":3,"faturamento_mensal":1000.0,"faturamento_anual":12000.0}` {
		t.Fatalf("unexpected body %s", last.body)
	}
}

func TestManageAddMissingFieldWarnsWithoutCall(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	b.login()
	before := len(api.calls())

	rec := b.do(http.MethodPost, "/manage/empresas/add", url.Values{"nome_empresa": {"Acme"}})
	level, msg := flashLevel(t, rec)
	if level != "warning" || !strings.Contains(msg, "campos obrigatórios") {
		t.Fatalf("unexpected flash %s %q", level, msg)
	}
	if len(api.calls()) != before {
		t.Fatal("validation failure must not reach the API")
	}
}

func TestInsightsPage(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	b.login()

	rec := b.do(http.MethodGet, "/insights", nil)
	page := rec.Body.String()
	for _, want := range []string{"R$ 1,500.50", "Ana", "Nota: 8.50", "Nenhum dado de piores diretores disponível."} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected %q in insights page", want)
		}
	}
	if api.callsTo("/api/melhoresdiretores/") != 1 {
		t.Fatal("expected best directors to be fetched under /api/")
	}
}

func TestLoginRateLimit(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 1))
	bad := url.Values{"email": {"a@b.com"}, "password": {"wrong"}}

	b.do(http.MethodPost, "/login", bad)
	rec := b.do(http.MethodPost, "/login", bad)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if api.callsTo("/auth/token") != 1 {
		t.Fatalf("expected one login attempt to reach the API, got %d", api.callsTo("/auth/token"))
	}
}

func postLoginFrom(srv *Server, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	form := url.Values{"email": {"a@b.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServer(t, api, 1)

	throttled := 0
	for i := 0; i < 20; i++ {
		rec := postLoginFrom(srv, "203.0.113.9:40000", fmt.Sprintf("198.51.100.%d", i+1))
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 19 {
		t.Fatalf("expected 19 throttled attempts, got %d", throttled)
	}
	if got := api.callsTo("/auth/token"); got != 1 {
		t.Fatalf("expected one login attempt to reach the API, got %d", got)
	}
}

func TestLoginRateLimitBehindTrustedProxy(t *testing.T) {
	api := newFakeAPI(t)
	srv := newTestServerWith(t, api, func(cfg *config.DashboardConfig) {
		cfg.LoginRateLimit = 1
		cfg.TrustedProxies = []string{"10.0.0.0/8"}
	})

	if rec := postLoginFrom(srv, "10.1.2.3:5000", "198.51.100.7, 10.0.0.2"); rec.Code == http.StatusTooManyRequests {
		t.Fatal("first attempt of a client must pass")
	}
	if rec := postLoginFrom(srv, "10.1.2.3:5000", "198.51.100.7"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the same forwarded client to be throttled, got %d", rec.Code)
	}
	if rec := postLoginFrom(srv, "10.1.2.3:5000", "198.51.100.8, 10.0.0.2"); rec.Code == http.StatusTooManyRequests {
		t.Fatal("another client behind the proxy has its own allowance")
	}
	if got := api.callsTo("/auth/token"); got != 2 {
		t.Fatalf("expected two login attempts to reach the API, got %d", got)
	}
}

func TestNewRejectsUnknownRateStore(t *testing.T) {
	api := newFakeAPI(t)
	cfg := config.DashboardConfig{
		APIBaseURL:     api.server.URL,
		SessionSecret:  "test-secret",
		LoginRateStore: "etcd",
	}
	if _, err := New(cfg, WithRegistry(prometheus.NewRegistry())); err == nil {
		t.Fatal("expected error for unknown LOGIN_RATE_STORE")
	}
	cfg.LoginRateStore = config.RateStoreRedis
	if _, err := New(cfg, WithRegistry(prometheus.NewRegistry())); err == nil || !strings.Contains(err.Error(), "REDIS_ADDR") {
		t.Fatalf("expected REDIS_ADDR error, got %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newFakeAPI(t)
	b := newBrowser(t, newTestServer(t, api, 0))
	b.login()
	b.do(http.MethodGet, "/tabs/empresas", nil)

	if rec := b.do(http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
	rec := b.do(http.MethodGet, "/metrics", nil)
	body := rec.Body.String()
	for _, want := range []string{"painel_dashboard_http_requests_total", "painel_api_client_requests_total"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
}

func TestAPIPathLabelFoldsIDs(t *testing.T) {
	if got := apiPathLabel("/api/empresas/7"); got != "/api/empresas/:id" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := apiPathLabel("/api/insights/maior_lucro/"); got != "/api/insights/maior_lucro/" {
		t.Fatalf("unexpected label %q", got)
	}
}
