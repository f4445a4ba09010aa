// Package http exposes the ledger as a JSON REST API.
package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// DefaultUser is the identity used when no API tokens are configured.
const DefaultUser = "default"

const maxBodyBytes = 1 << 20

type Options struct {
	Addr string
	// Tokens maps bearer tokens to user ids. Empty disables authentication.
	Tokens             map[string]string
	CORSOrigins        []string
	RateLimitPerMinute int
	// Ready reports whether storage is reachable; nil means always ready.
	Ready func(ctx context.Context) error
	// Headers defaults to DefaultHeadersConfig when zero.
	Headers HeadersConfig
	// Screen defaults to DefaultScreenConfig; non-empty fields override it.
	Screen ScreenConfig
	Logger *applog.Logger
}

type Server struct {
	http.Server
	ledger      *services.Ledger
	tokens      map[string]string
	ready       func(ctx context.Context) error
	logger      *applog.Logger
	structured  *applog.StructuredLogger
	rateLimiter *rateLimiter
	screen      *screen
	metrics     securityMetrics

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware and returns a server ready to
// ListenAndServe.
func NewServer(ledger *services.Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		ledger:      ledger,
		tokens:      opts.Tokens,
		ready:       opts.Ready,
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(opts.RateLimitPerMinute),
	}
	var rejected []string
	s.screen, rejected = newScreen(mergeScreenConfig(opts.Screen))
	for _, cidr := range rejected {
		logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr)
	}
	if len(s.tokens) == 0 {
		logger.Warn("No API tokens configured, all requests act as the default user", "user_id", DefaultUser)
	}

	if opts.Headers == (HeadersConfig{}) {
		opts.Headers = DefaultHeadersConfig()
	}
	s.Handler = s.routes(opts)
	return s
}

func mergeScreenConfig(cfg ScreenConfig) ScreenConfig {
	out := DefaultScreenConfig()
	if len(cfg.TrustedProxies) > 0 {
		out.TrustedProxies = cfg.TrustedProxies
	}
	if len(cfg.Patterns) > 0 {
		out.Patterns = cfg.Patterns
	}
	if len(cfg.Agents) > 0 {
		out.Agents = cfg.Agents
	}
	if cfg.MaxURLLength > 0 {
		out.MaxURLLength = cfg.MaxURLLength
	}
	return out
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withRequestID)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string { return requestIDFrom(r.Context()) }))
	r.Use(s.withRequestLogging)
	r.Use(securityHeaders(opts.Headers))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withRateLimit)
		r.Use(s.withAuth)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Get("/budgets", s.handleBudgets)
		r.Put("/budgets/{category}", s.handleSetBudget)
		r.Delete("/budgets/{category}", s.handleRemoveBudget)

		r.Get("/goal", s.handleGoal)
		r.Put("/goal", s.handleSetGoal)
		r.Post("/goal/deposits", s.handleDeposit)

		r.Get("/anomalies", s.handleAnomalies)
		r.Post("/anomalies/{id}/approve", s.handleApproveAnomaly)
		r.Delete("/anomalies/{id}", s.handleDismissAnomaly)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/spending-summary", s.handleSpendingSummary)
			r.Get("/series", s.handleSeries)
			r.Get("/forecast", s.handleForecast)
			r.Get("/runway", s.handleRunway)
			r.Get("/weekdays", s.handleWeekdays)
			r.Get("/dashboard", s.handleDashboard)
		})

		r.Route("/autopays", func(r chi.Router) {
			r.Get("/", s.handleListAutopays)
			r.Post("/", s.handleCreateAutopay)
			r.Get("/upcoming", s.handleUpcomingAutopays)
			r.Post("/process", s.handleProcessAutopays)
			r.Post("/{id}/toggle", s.handleToggleAutopay)
			r.Delete("/{id}", s.handleDeleteAutopay)
		})

		r.Get("/categories", s.handleCategories)
		r.Post("/categories", s.handleAddCategory)

		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/security-stats", s.handleSecurityStats)
	})

	return r
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleSecurityStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.snapshot())
}

// lookupUser resolves a bearer token in constant time per candidate.
func (s *Server) lookupUser(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	var user string
	for candidate, u := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			user = u
		}
	}
	return user, user != ""
}
