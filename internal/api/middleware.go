package api

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/devroom/devroom/internal/auth"
)

type contextKey int

const (
	ctxKeyAuthUser contextKey = iota
	ctxKeyRequestID
	_              // reserved
	ctxKeyLogger
)

// AuthUser holds the account behind a verified session token.
type AuthUser struct {
	UserID  string
	Name    string
	Email   string
	IsAdmin bool
}

// getUserFromContext returns the authenticated user from the request context, or nil.
func getUserFromContext(ctx context.Context) *AuthUser {
	u, _ := ctx.Value(ctxKeyAuthUser).(*AuthUser)
	return u
}

// getRequestID returns the request ID from the context.
func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// logFor returns the context-scoped logger, falling back to the default logger.
func logFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// loggerMiddleware creates a per-request logger with the request ID and stores it in the context.
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := slog.Default().With("rid", getRequestID(r.Context()))
		ctx := context.WithValue(r.Context(), ctxKeyLogger, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware records request counts and categorizes response status codes.
func metricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RecordRequest()
			sc := &statusCapture{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sc, r)
			switch {
			case sc.code >= 500:
				m.RecordError()
			case sc.code >= 400:
				m.RecordClientError()
			}
		})
	}
}

// recoveryMiddleware catches panics and returns a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logFor(r.Context()).Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// generateRequestID creates a random hex string for request tracing.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// requestIDMiddleware generates a unique request ID and adds it to the context and response headers.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := generateRequestID()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusCapture wraps ResponseWriter to capture the status code.
type statusCapture struct {
	http.ResponseWriter
	code int
}

func (sc *statusCapture) WriteHeader(code int) {
	sc.code = code
	sc.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware chain.
func (sc *statusCapture) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(sc.ResponseWriter).Hijack()
	if err == nil {
		sc.code = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sc *statusCapture) Unwrap() http.ResponseWriter {
	return sc.ResponseWriter
}

// loggingMiddleware logs each request with method, path, status, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sc := &statusCapture{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sc, r)
		logFor(r.Context()).Info("req",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sc.code,
			"dur", time.Since(start).String(),
		)
	})
}

// bearerToken returns the token from an "Authorization: Bearer" header.
// ok is false when the header is absent; a malformed header yields an error.
func bearerToken(r *http.Request) (token string, ok bool, err error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", true, errors.New("invalid authorization format")
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), true, nil
}

// authenticate resolves a session token to the account it was issued for.
// A nil user with a nil error means the token is valid but the account is gone.
func (s *Server) authenticate(token string) (*AuthUser, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, nil
	}
	return &AuthUser{UserID: user.ID, Name: user.Name, Email: user.Email, IsAdmin: user.IsAdmin}, nil
}

// withAuth verifies the Bearer token, if any, and injects AuthUser into the
// context. When required is set a missing token is rejected.
func (s *Server) withAuth(required bool, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, present, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
			return
		}
		if !present {
			if required {
				writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing authorization header")
				return
			}
			handler(w, r)
			return
		}

		authUser, err := s.authenticate(token)
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
			return
		}
		if err != nil {
			logFor(r.Context()).Error("verify token", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to verify token")
			return
		}
		if authUser == nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "account no longer exists")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyAuthUser, authUser)
		// Enrich logger with user ID
		ctx = context.WithValue(ctx, ctxKeyLogger, logFor(ctx).With("uid", authUser.UserID))
		handler(w, r.WithContext(ctx))
	}
}

// requireAuth rejects requests without a valid Bearer token.
func (s *Server) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return s.withAuth(true, handler)
}

// optionalAuth accepts anonymous requests but still rejects bad tokens.
func (s *Server) optionalAuth(handler http.HandlerFunc) http.HandlerFunc {
	return s.withAuth(false, handler)
}

// requireAdmin checks the caller is an authenticated admin before invoking handler.
func (s *Server) requireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if user := getUserFromContext(r.Context()); !user.IsAdmin {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "admin access required")
			return
		}
		handler(w, r)
	})
}

// maxBytesMiddleware limits request body size to prevent abuse.
func maxBytesMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order (first applied is outermost).
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

