package config

import "time"

// Session storage modes understood by the dashboard.
const (
	SessionStoreCookie = "cookie"
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Login attempt counter backends. The redis counter shares its client with redis
// sessions and is only used when LOGIN_RATE_STORE asks for it.
const (
	RateStoreMemory = "memory"
	RateStoreRedis  = "redis"
)

// DashboardConfig holds runtime configuration for the dashboard web server.
type DashboardConfig struct {
	Environment       string
	Addr              string
	APIBaseURL        string
	LogLevel          string
	SessionSecret     string
	CookieName        string
	CookieSecure      bool
	SessionStore      string
	SessionTTL        time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DedupInflight     bool
	LoginRateLimit    int
	LoginRateWindow   time.Duration
	LoginRateStore    string
	TrustedProxies    []string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

// LoadDashboardConfig constructs a DashboardConfig from environment variables.
func LoadDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Environment:       GetString("APP_ENV", "development"),
		Addr:              GetString("DASHBOARD_ADDR", ":8501"),
		APIBaseURL:        GetString("API_BASE_URL", "http://localhost:8000"),
		LogLevel:          GetString("LOG_LEVEL", "info"),
		SessionSecret:     GetString("SESSION_SECRET", ""),
		CookieName:        GetString("SESSION_COOKIE_NAME", "painel_session"),
		CookieSecure:      GetBool("SESSION_COOKIE_SECURE", false),
		SessionStore:      GetString("SESSION_STORE", SessionStoreCookie),
		SessionTTL:        time.Duration(GetInt("SESSION_TTL_MINUTES", 60*12)) * time.Minute,
		RedisAddr:         GetString("REDIS_ADDR", ""),
		RedisPassword:     GetString("REDIS_PASSWORD", ""),
		RedisDB:           GetInt("REDIS_DB", 0),
		DedupInflight:     GetBool("API_DEDUP_INFLIGHT", true),
		LoginRateLimit:    GetInt("LOGIN_RATE_LIMIT", 12),
		LoginRateWindow:   GetDuration("LOGIN_RATE_WINDOW", time.Minute),
		LoginRateStore:    GetString("LOGIN_RATE_STORE", RateStoreMemory),
		TrustedProxies:    GetList("TRUSTED_PROXIES"),
		ShutdownTimeout:   GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ReadHeaderTimeout: GetDuration("READ_HEADER_TIMEOUT", 5*time.Second),
	}
}
