package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// AttemptCounter counts credential submissions per key inside a fixed window.
type AttemptCounter interface {
	// Hit records one attempt and returns the attempts seen in the current window
	// and when that window ends.
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

// MemoryAttemptCounter keeps windows in process memory. Expired windows are pruned
// while counting.
type MemoryAttemptCounter struct {
	mu        sync.Mutex
	windows   map[string]attemptWindow
	lastPrune time.Time
	now       func() time.Time
}

type attemptWindow struct {
	attempts int
	resetAt  time.Time
}

// NewMemoryAttemptCounter returns an empty MemoryAttemptCounter.
func NewMemoryAttemptCounter() *MemoryAttemptCounter {
	return &MemoryAttemptCounter{windows: make(map[string]attemptWindow), now: time.Now}
}

func (c *MemoryAttemptCounter) Hit(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastPrune) >= window {
		for k, w := range c.windows {
			if !now.Before(w.resetAt) {
				delete(c.windows, k)
			}
		}
		c.lastPrune = now
	}
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = attemptWindow{resetAt: now.Add(window)}
	}
	w.attempts++
	c.windows[key] = w
	return w.attempts, w.resetAt, nil
}

// attemptScript bumps the counter and starts its window on the first attempt, in
// one round trip.
var attemptScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisAttemptCounter shares windows between dashboard replicas.
type RedisAttemptCounter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisAttemptCounter counts attempts through client, which stays owned by the
// caller.
func NewRedisAttemptCounter(client *redis.Client) *RedisAttemptCounter {
	return &RedisAttemptCounter{client: client, prefix: "painel:login_attempts:", timeout: 250 * time.Millisecond}
}

func (c *RedisAttemptCounter) Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	vals, err := attemptScript.Run(ctx, c.client, []string{c.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	ttl := window
	if len(vals) == 2 && vals[1] > 0 {
		ttl = time.Duration(vals[1]) * time.Millisecond
	}
	return int(vals[0]), time.Now().Add(ttl), nil
}

// throttleLogin limits credential submissions per route and client. Refused
// attempts re-render the login page instead of reaching the API.
func (s *Server) throttleLogin(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := s.cfg.LoginRateLimit
		if limit <= 0 || s.attempts == nil || r.Method != http.MethodPost {
			next(w, r)
			return
		}
		window := s.cfg.LoginRateWindow
		if window <= 0 {
			window = time.Minute
		}
		attempts, resetAt, err := s.attempts.Hit(r.Context(), route+"|"+s.peers.clientAddr(r), window)
		if err != nil {
			// Counter errors let the attempt through.
			s.logger.Error("login attempt counter failed", "route", route, "error", err)
			next(w, r)
			return
		}
		remaining := limit - attempts
		if remaining < 0 {
			remaining = 0
		}
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if attempts > limit {
			s.metrics.recordRateLimitHit(route, "peer")
			s.renderLogin(w, r, http.StatusTooManyRequests, errorNotice("Muitas tentativas. Aguarde um pouco e tente novamente."), "")
			return
		}
		next(w, r)
	}
}
