// Package web provides the HTTP surface of the import wizard: a JSON API
// with HTMX fragments, SSE progress and notification streams, and the CSV
// template download.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	mw "github.com/JonMunkholm/bulkimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server wires into each wizard.
type Deps struct {
	Importer core.Importer
	Notifier core.Notifier      // receives wizard and template notifications
	Stream   NotificationStream // backs GET /api/notifications; may be nil
	Limiter  *core.ImportLimiter
	Store    Pinger // checked by /healthz; may be nil
}

// Server is the HTTP server for the import wizard.
type Server struct {
	cfg      *config.Config
	deps     Deps
	emitter  *core.NotificationEmitter
	registry *Registry
	router   *chi.Mux
	server   *http.Server

	rate       *rateLimiter
	uploadRate *rateLimiter
}

// NewServer builds the router and the wizard registry.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Limiter == nil {
		deps.Limiter = core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		emitter: core.NewNotificationEmitter(deps.Notifier),
		router:  chi.NewRouter(),
	}
	s.registry = NewRegistry(cfg.Import.SessionTTL, s.newWizard)

	if cfg.Rate.Enabled {
		s.rate = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		if cfg.Rate.UploadLimit > 0 {
			s.uploadRate = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
		}
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) newWizard(ic core.ImportContext) *core.Wizard {
	return core.NewWizard(ic, s.deps.Importer, s.emitter, core.WizardConfig{
		Policy:        core.ScoreErrorPolicy(s.cfg.Import.ScoreErrorPolicy),
		ImportTimeout: s.cfg.Import.Timeout,
	})
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	if s.rate != nil {
		s.router.Use(s.rate.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Streams run without the request timeout.
		r.Get("/notifications", s.handleNotifications)
		r.Get("/wizards/{id}/progress", s.handleWizardProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/template", s.handleDownloadTemplate)

			r.Post("/wizards", s.handleOpenWizard)
			r.Get("/wizards/{id}", s.handleGetWizard)
			r.Post("/wizards/{id}/validate", s.handleValidate)
			r.Post("/wizards/{id}/next", s.handleNext)
			r.Post("/wizards/{id}/back", s.handleBack)
			r.Delete("/wizards/{id}", s.handleCloseWizard)

			r.Group(func(r chi.Router) {
				if s.uploadRate != nil {
					r.Use(s.uploadRate.middleware)
				}
				r.Post("/wizards/{id}/file", s.handleSelectFile)
				r.Post("/wizards/{id}/import", s.handleStartImport)
			})
		})
	})
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// RunSessionSweeper expires idle wizard sessions until ctx ends.
func (s *Server) RunSessionSweeper(ctx context.Context) {
	s.registry.Run(ctx)
}

// Shutdown stops accepting requests, waits for running imports to finish and
// closes every remaining wizard.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	if active := s.deps.Limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for imports to finish", "active", active)
		if drainErr := s.deps.Limiter.WaitForDrain(ctx); drainErr != nil {
			slog.Warn("imports still running at shutdown", "active", s.deps.Limiter.ActiveCount())
		}
	}

	s.registry.CloseAll()
	s.Close()
	return err
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	if s.rate != nil {
		s.rate.stop()
	}
	if s.uploadRate != nil {
		s.uploadRate.stop()
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Registry returns the wizard registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow consumes a token for ip if one is left in the current window.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr already reflects trusted proxy headers.
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
