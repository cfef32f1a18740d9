package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	dsession "github.com/Juauvitorsm/painel-empresas/dashboard/internal/session"
	apiclient "github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/config"
	"github.com/Juauvitorsm/painel-empresas/pkg/insights"
	"github.com/Juauvitorsm/painel-empresas/pkg/logger"
	"github.com/Juauvitorsm/painel-empresas/pkg/resource"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server hosts the dashboard web UI.
type Server struct {
	cfg       config.DashboardConfig
	api       *apiclient.Client
	sessions  dsession.Manager
	records   *resource.Controller
	views     *insights.Service
	attempts  AttemptCounter
	peers     peerResolver
	redis     *redis.Client
	metrics   *Metrics
	registry  prometheus.Registerer
	gatherer  prometheus.Gatherer
	templates *template.Template
	mux       *http.ServeMux
	logger    *slog.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithLogger overrides the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionManager replaces the session manager selected by SESSION_STORE.
func WithSessionManager(m dsession.Manager) Option {
	return func(s *Server) { s.sessions = m }
}

// WithAttemptCounter replaces the login attempt counter selected by LOGIN_RATE_STORE.
func WithAttemptCounter(c AttemptCounter) Option {
	return func(s *Server) { s.attempts = c }
}

// WithRegistry registers metrics with reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
		s.gatherer = reg
	}
}

// New constructs a configured server ready to serve HTTP traffic.
func New(cfg config.DashboardConfig, opts ...Option) (*Server, error) {
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.logger == nil {
		srv.logger = logger.New("dashboard", logger.ParseLevel(cfg.LogLevel))
	}
	srv.metrics = NewMetrics(srv.registry)

	apiClient, err := apiclient.New(cfg.APIBaseURL,
		apiclient.WithLogger(srv.logger),
		apiclient.WithObserver(srv.metrics),
		apiclient.WithDeduplication(cfg.DedupInflight),
	)
	if err != nil {
		return nil, err
	}
	srv.api = apiClient
	srv.records = resource.NewController(apiClient, srv.logger)
	srv.views = insights.NewService(apiClient, srv.logger)

	if srv.peers, err = newPeerResolver(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	if srv.sessions == nil {
		if srv.sessions, err = srv.newSessionManager(); err != nil {
			_ = srv.closeRedis()
			return nil, err
		}
	}
	if srv.attempts == nil {
		if srv.attempts, err = srv.newAttemptCounter(); err != nil {
			_ = srv.closeRedis()
			return nil, err
		}
	}

	tmplFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	templates, err := template.New("base").Funcs(templateFuncs).ParseFS(tmplFS, "*.html")
	if err != nil {
		return nil, err
	}
	srv.templates = templates
	srv.registerRoutes()
	return srv, nil
}

func (s *Server) newSessionManager() (dsession.Manager, error) {
	cfg := s.cfg
	opts := dsession.CookieOptions{Name: cfg.CookieName, Secure: cfg.CookieSecure, TTL: cfg.SessionTTL}
	switch strings.ToLower(strings.TrimSpace(cfg.SessionStore)) {
	case "", config.SessionStoreCookie:
		if strings.TrimSpace(cfg.SessionSecret) == "" {
			return nil, errors.New("SESSION_SECRET must be configured for cookie sessions")
		}
		return dsession.NewCookieManager(cfg.SessionSecret, opts)
	case config.SessionStoreMemory:
		return dsession.NewServerManager(dsession.NewMemoryBackend(), opts), nil
	case config.SessionStoreRedis:
		client, err := s.redisClient()
		if err != nil {
			return nil, fmt.Errorf("redis sessions: %w", err)
		}
		return dsession.NewServerManager(dsession.NewRedisBackend(client), opts), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}
}

func (s *Server) newAttemptCounter() (AttemptCounter, error) {
	switch strings.ToLower(strings.TrimSpace(s.cfg.LoginRateStore)) {
	case "", config.RateStoreMemory:
		return NewMemoryAttemptCounter(), nil
	case config.RateStoreRedis:
		client, err := s.redisClient()
		if err != nil {
			return nil, fmt.Errorf("redis login attempt counter: %w", err)
		}
		return NewRedisAttemptCounter(client), nil
	default:
		return nil, fmt.Errorf("unknown LOGIN_RATE_STORE %q", s.cfg.LoginRateStore)
	}
}

// redisClient dials REDIS_ADDR once; sessions and the attempt counter share it.
func (s *Server) redisClient() (*redis.Client, error) {
	if s.redis != nil {
		return s.redis, nil
	}
	if strings.TrimSpace(s.cfg.RedisAddr) == "" {
		return nil, errors.New("REDIS_ADDR must be configured")
	}
	client, err := dsession.DialRedis(context.Background(), s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	s.redis = client
	return client, nil
}

func (s *Server) closeRedis() error {
	if s.redis == nil {
		return nil
	}
	err := s.redis.Close()
	s.redis = nil
	return err
}

// ServeHTTP conforms to http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close releases the session backend and the shared Redis client.
func (s *Server) Close() error {
	var errs []error
	if closer, ok := s.sessions.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, s.closeRedis())
	return errors.Join(errs...)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.audit("/healthz", s.handleHealthz))
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/login", s.audit("/login", s.throttleLogin("/login", s.handleLogin)))
	s.mux.HandleFunc("/register", s.audit("/register", s.throttleLogin("/register", s.handleRegister)))
	s.mux.HandleFunc("/logout", s.audit("/logout", s.requireAuth(s.handleLogout)))
	s.mux.HandleFunc("/tabs/{resource}", s.audit("/tabs/{resource}", s.requireAuth(s.handleTab)))
	s.mux.HandleFunc("/insights", s.audit("/insights", s.requireAuth(s.handleInsights)))
	s.mux.HandleFunc("/manage/{resource}", s.audit("/manage/{resource}", s.requireAuth(s.handleManage)))
	s.mux.HandleFunc("/manage/{resource}/{action}", s.audit("/manage/{resource}/{action}", s.requireAuth(s.handleManageSubmit)))
	s.mux.HandleFunc("/", s.audit("/", s.requireAuth(s.handleHome)))
}

// authFor binds the login state machine to the browser session of this request.
func (s *Server) authFor(w http.ResponseWriter, r *http.Request) *session.Auth {
	return session.NewAuth(s.api, dsession.Bind(s.sessions, w, r), s.logger)
}

func (s *Server) render(w http.ResponseWriter, status int, tpl string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, tpl, data); err != nil {
		s.logger.Error("template render failed", "template", tpl, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// page fills the data shared by every logged in page.
func (s *Server) page(r *http.Request, title, active string) map[string]any {
	sess, _ := sessionFromContext(r.Context())
	return map[string]any{
		"Title":     title,
		"Flash":     flashFromRequest(r),
		"UserEmail": sess.UserEmail,
		"Resources": resource.All(),
		"Active":    active,
		"Refresh":   r.URL.Path,
	}
}

var templateFuncs = template.FuncMap{
	"inputType": func(k resource.Kind) string {
		switch k {
		case resource.Int, resource.Float:
			return "number"
		case resource.Date:
			return "date"
		default:
			return "text"
		}
	},
	"step": func(k resource.Kind) string {
		if k == resource.Float {
			return "0.01"
		}
		return "1"
	},
	"bound": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(*v)
	},
	"width": func(p float64) string {
		return fmt.Sprintf("%.1f%%", p)
	},
}

func successNotice(msg string) *resource.Notice {
	return &resource.Notice{Level: resource.LevelSuccess, Message: msg}
}

func warningNotice(msg string) *resource.Notice {
	return &resource.Notice{Level: resource.LevelWarning, Message: msg}
}

func errorNotice(msg string) *resource.Notice {
	return &resource.Notice{Level: resource.LevelError, Message: msg}
}

func flashFromRequest(r *http.Request) *resource.Notice {
	q := r.URL.Query()
	msg := strings.TrimSpace(q.Get("flash"))
	if msg == "" {
		return nil
	}
	level := resource.Level(q.Get("level"))
	switch level {
	case resource.LevelSuccess, resource.LevelInfo, resource.LevelWarning, resource.LevelError:
	default:
		level = resource.LevelInfo
	}
	return &resource.Notice{Level: level, Message: msg}
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target string, notice *resource.Notice) {
	if strings.TrimSpace(target) == "" {
		target = "/"
	}
	if notice == nil || strings.TrimSpace(notice.Message) == "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	q := u.Query()
	q.Set("flash", notice.Message)
	q.Set("level", string(notice.Level))
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
