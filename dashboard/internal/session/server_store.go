package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	core "github.com/Juauvitorsm/painel-empresas/pkg/session"
)

// Backend keeps sessions keyed by an opaque id.
type Backend interface {
	Get(ctx context.Context, id string) (core.Session, bool, error)
	Put(ctx context.Context, id string, s core.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// ServerManager keeps tokens on the server. The browser only holds a random id.
type ServerManager struct {
	backend Backend
	opts    CookieOptions
	now     func() time.Time
}

// NewServerManager returns a ServerManager over backend.
func NewServerManager(backend Backend, opts CookieOptions) *ServerManager {
	return &ServerManager{backend: backend, opts: opts.withDefaults(), now: time.Now}
}

func (m *ServerManager) Load(r *http.Request) (core.Session, error) {
	id, ok := m.sessionID(r)
	if !ok {
		return core.Session{}, nil
	}
	sess, found, err := m.backend.Get(r.Context(), id)
	if err != nil {
		return core.Session{}, err
	}
	if !found {
		return core.Session{}, nil
	}
	return sess, nil
}

func (m *ServerManager) Save(w http.ResponseWriter, r *http.Request, sess core.Session) error {
	if !sess.Valid() {
		return core.ErrInvalidSession
	}
	// A fresh id on every login keeps a pre-login id from being reused.
	if id, ok := m.sessionID(r); ok {
		_ = m.backend.Delete(r.Context(), id)
	}
	id := uuid.NewString()
	now := m.now()
	expires := m.opts.lifetime(sess, now)
	if err := m.backend.Put(r.Context(), id, sess, expires.Sub(now)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	http.SetCookie(w, m.opts.cookie(id, expires))
	return nil
}

func (m *ServerManager) Clear(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, m.opts.expired())
	if id, ok := m.sessionID(r); ok {
		return m.backend.Delete(r.Context(), id)
	}
	return nil
}

// Close releases the backend.
func (m *ServerManager) Close() error {
	return m.backend.Close()
}

func (m *ServerManager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.opts.Name)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	session core.Session
	expires time.Time
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (b *MemoryBackend) Get(_ context.Context, id string) (core.Session, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return core.Session{}, false, nil
	}
	if b.now().After(e.expires) {
		delete(b.entries, id)
		return core.Session{}, false, nil
	}
	return e.session, true, nil
}

func (b *MemoryBackend) Put(_ context.Context, id string, s core.Session, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for k, e := range b.entries {
		if now.After(e.expires) {
			delete(b.entries, k)
		}
	}
	b.entries[id] = memoryEntry{session: s, expires: now.Add(ttl)}
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

// DialRedis connects to Redis and verifies the connection. The dashboard opens one
// client and shares it between sessions and the login attempt counter.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisBackend keeps sessions in Redis with a TTL per key. The client belongs to
// the caller; Close leaves it open.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend stores sessions through client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, prefix: "painel:session:"}
}

func (b *RedisBackend) Get(ctx context.Context, id string) (core.Session, bool, error) {
	raw, err := b.client.Get(ctx, b.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Session{}, false, nil
		}
		return core.Session{}, false, err
	}
	var sess core.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return core.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (b *RedisBackend) Put(ctx context.Context, id string, s core.Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, b.prefix+id, raw, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return b.client.Del(ctx, b.prefix+id).Err()
}

func (b *RedisBackend) Close() error { return nil }
