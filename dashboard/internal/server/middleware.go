package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

type contextKey int

const sessionContextKey contextKey = iota

func withSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

func sessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(session.Session)
	return sess, ok && sess.LoggedIn
}

// contextSetter lets handlers hand the enriched request context back to audit.
type contextSetter interface {
	SetContext(ctx context.Context)
}

// requireAuth sends logged out visitors to /login. A session that fails to load
// is cleared first.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(r)
		if err != nil {
			s.logger.Warn("session validation failed", "error", err)
			_ = s.sessions.Clear(w, r)
			redirectWithFlash(w, r, "/login", warningNotice("Sua sessão expirou. Faça login para continuar."))
			return
		}
		if !sess.LoggedIn {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := withSession(r.Context(), sess)
		if cs, ok := w.(contextSetter); ok {
			cs.SetContext(ctx)
		}
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = r.Context()
		}
		duration := time.Since(start)
		s.metrics.recordRequest(r.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
		}
		fields = append(fields, "client", s.peers.clientAddr(r))
		if sess, ok := sessionFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_email", sess.UserEmail)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("http_request", fields...)
		default:
			s.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
