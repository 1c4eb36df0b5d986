package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/devroom/devroom/internal/auth"
	"github.com/devroom/devroom/internal/collab"
	"github.com/devroom/devroom/internal/hub"
	"github.com/devroom/devroom/internal/piston"
	"github.com/devroom/devroom/internal/serverdb"
	"github.com/devroom/devroom/internal/webhook"
)

// Assistant answers DevAi chat prompts.
type Assistant interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Deps are the external services the server talks to. A nil Assistant
// disables DevAi chat; a nil Executor selects a Piston client built from
// the config.
type Deps struct {
	Assistant Assistant
	Executor  collab.Executor
	Notifier  *webhook.Notifier
}

// Server is the HTTP and WebSocket server for devroom.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	tokens      *auth.TokenIssuer
	hub         *hub.Hub
	engine      *collab.Engine
	assistant   Assistant
	notifier    *webhook.Notifier
	metrics     *Metrics
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	sockets     sync.WaitGroup
}

// NewServer creates a new Server with the given config, store and services.
func NewServer(cfg Config, store *serverdb.ServerDB, deps Deps) (*Server, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		slog.Warn("JWT_SECRET not set, using insecure default secret")
		secret = auth.DefaultSecret
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	executor := deps.Executor
	if executor == nil {
		executor = piston.New(cfg.PistonURL, cfg.PistonTimeout)
	}

	s := &Server{
		config:      cfg,
		store:       store,
		tokens:      tokens,
		hub:         hub.New(slog.Default(), hub.Options{}),
		assistant:   deps.Assistant,
		notifier:    deps.Notifier,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	var notifier collab.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	s.engine = collab.New(collab.Config{
		Store:       store,
		Broadcaster: s.hub,
		Executor:    executor,
		Limiter:     socketLimiter{rl: s.rateLimiter, store: store},
		ExecLimit:   cfg.RateLimitExec,
		Notifier:    notifier,
		Recorder:    s.metrics,
		Logger:      slog.Default(),
	})

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Tokens returns the issuer used to sign session tokens.
func (s *Server) Tokens() *auth.TokenIssuer {
	return s.tokens
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, runs the background janitors and shuts
// everything down gracefully once ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.rateLimiter.Run(gctx, 5*time.Minute)
		return nil
	})
	g.Go(func() error {
		s.runJanitor(gctx, time.Hour)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runJanitor deletes expired auth and rate limit events, once at start and
// then every interval.
func (s *Server) runJanitor(ctx context.Context, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cleanup panic", "panic", r)
		}
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.cleanupEvents()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) cleanupEvents() {
	if s.config.AuthEventRetention > 0 {
		n, err := s.store.CleanupAuthEvents(s.config.AuthEventRetention)
		if err != nil {
			slog.Error("cleanup auth events", "err", err)
		} else if n > 0 {
			slog.Info("cleaned up auth events", "count", n)
		}
	}
	if s.config.RateLimitEventRetention > 0 {
		n, err := s.store.CleanupRateLimitEvents(s.config.RateLimitEventRetention)
		if err != nil {
			slog.Error("cleanup rate limit events", "err", err)
		} else if n > 0 {
			slog.Info("cleaned up rate limit events", "count", n)
		}
	}
}

// Shutdown stops accepting requests, closes every socket and waits for
// in-flight executions and webhooks.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.sockets.Wait()
		s.engine.Wait()
		s.notifier.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = fmt.Errorf("shutdown: %w", ctx.Err())
		}
	}
	return err
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Auth (public, rate limited per IP by middleware)
	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// DevAi
	mux.HandleFunc("POST /api/devai-chat", s.optionalAuth(s.withIPRateLimit(s.handleDevAIChat, endpointDevAI, s.config.RateLimitDevAI)))

	// Rooms
	mux.HandleFunc("GET /api/rooms", s.optionalAuth(s.handleListRooms))
	mux.HandleFunc("POST /api/rooms/join", s.optionalAuth(s.handleJoinRoom))
	mux.HandleFunc("GET /api/rooms/check", s.handleCheckRoom)
	mux.HandleFunc("POST /api/rooms/create", s.optionalAuth(s.handleCreateRoom))

	// Socket
	mux.HandleFunc("GET /ws", s.handleWS)

	// Admin
	mux.HandleFunc("GET /api/admin/stats", s.requireAdmin(s.handleAdminStats))
	mux.HandleFunc("GET /api/admin/rooms", s.requireAdmin(s.handleAdminListRooms))
	mux.HandleFunc("DELETE /api/admin/rooms/{roomId}", s.requireAdmin(s.handleAdminDeleteRoom))
	mux.HandleFunc("GET /api/admin/auth-events", s.requireAdmin(s.handleAdminAuthEvents))
	mux.HandleFunc("GET /api/admin/rate-limit-events", s.requireAdmin(s.handleAdminRateLimitEvents))

	return chain(mux,
		recoveryMiddleware,
		requestIDMiddleware,
		loggerMiddleware,
		metricsMiddleware(s.metrics),
		loggingMiddleware,
		maxBytesMiddleware(1<<20),
		s.CORSMiddleware,
		authRateLimitMiddleware(s.rateLimiter, s.config.RateLimitAuth, s.store),
	)
}

// handleRoot answers the liveness probe the frontend uses.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backend is running!"})
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot(s.hub.Count()))
}
