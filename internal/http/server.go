package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"clubledger/internal/log"
	"clubledger/internal/metrics"
	"clubledger/internal/middleware/ratelimit"
	"clubledger/internal/middleware/security"
	"clubledger/internal/middleware/trace"
	"clubledger/internal/services"
	"clubledger/internal/storage"
)

// Deps are the collaborators the API is served from.
type Deps struct {
	Tickets  *services.TicketService
	Reports  *services.ReportGenerator
	Settings storage.SettingsStore
	Metrics  *metrics.Metrics
	Logger   *log.Logger

	// NotificationsDefault applies when the settings store has no value.
	NotificationsDefault bool
	RateLimitPerMinute   int
}

// Server is the admin JSON API.
type Server struct {
	http.Server
	deps    Deps
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	started time.Time
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		deps:    deps,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(),
		started: time.Now(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	mux.HandleFunc("POST /api/tickets", s.handleCreateTicket)
	mux.HandleFunc("GET /api/tickets", s.handleListTickets)
	mux.HandleFunc("GET /api/tickets/{id}", s.handleGetTicket)
	mux.HandleFunc("PUT /api/tickets/{id}", s.handleUpdateTicket)
	mux.HandleFunc("DELETE /api/tickets/{id}", s.handleDeleteTicket)
	mux.HandleFunc("GET /api/totals", s.handleTotals)

	mux.HandleFunc("POST /api/admin/purge", s.handlePurge)
	mux.HandleFunc("GET /api/settings/notifications", s.handleGetNotifications)
	mux.HandleFunc("PUT /api/settings/notifications", s.handleSetNotifications)

	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("POST /api/reports/run", s.handleRunReport)
	mux.HandleFunc("DELETE /api/reports/{id}", s.handleDeleteReport)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(extractClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", extractClientIP(r), "path", r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})
	access := log.Middleware(deps.Logger, trace.RequestID)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(access(headers.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
