// Package http exposes the JSON API: entry/category/payment CRUD, grouped
// reports with windowed extension, and the operational endpoints.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping() error
}

// Options carries server settings that do not come from collaborators.
type Options struct {
	// DefaultOwner is used when a request carries no X-Owner header.
	DefaultOwner string
	// RateLimitPerMinute bounds write requests per client IP. Zero or
	// negative falls back to the limiter default.
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server

	ledger  *services.LedgerService
	reports *services.ReportService
	store   Pinger
	logger  *log.Logger

	defaultOwner string

	headers     *security.HeadersMiddleware
	ipExtractor *security.ClientIPExtractor
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires the mux and the middleware chain, returning a
// ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, reports *services.ReportService, store Pinger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:       ledger,
		reports:      reports,
		store:        store,
		logger:       logger,
		defaultOwner: opts.DefaultOwner,
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		ipExtractor:  security.NewClientIPExtractor(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		started:      time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.ipExtractor.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/categories", s.handleCategories)
	mux.HandleFunc("/api/v1/categories/", s.handleCategoryByID)
	mux.HandleFunc("/api/v1/entries", s.handleEntries)
	mux.HandleFunc("/api/v1/entries/", s.handleEntrySubtree)
	mux.HandleFunc("/api/v1/payments/", s.handlePaymentByID)
	mux.HandleFunc("/api/v1/recurring", s.handleRecurringRules)
	mux.HandleFunc("/api/v1/recurring/", s.handleRecurringRuleByID)
	mux.HandleFunc("/api/v1/report", s.handleReport)
	mux.HandleFunc("/api/v1/report/extend", s.handleReportExtend)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.limitWrites(handler)
	handler = s.headers.Middleware(handler)

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// limitWrites applies the rate limiter to state-changing requests only.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.ipExtractor.ExtractClientIP, nil)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"requests_total":        traceMetrics.TotalRequests,
		"errors_total":          traceMetrics.ErrorCount,
		"avg_response_time_us":  traceMetrics.AverageResponseTime,
		"rate_limit_hits_total": rateMetrics.TotalHits,
		"rate_limit_clients":    s.rateLimiter.ActiveClients(),
		"uptime_seconds":        int64(time.Since(s.started).Seconds()),
	})
}
