package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clubledger/internal/log"
	"clubledger/internal/metrics"
)

// MetricsServer builds the listener workers use to expose /metrics.
func MetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer serves m on addr in the background. An empty addr
// disables the listener and returns nil.
func StartMetricsServer(logger *log.Logger, addr string, m *metrics.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	srv := MetricsServer(addr, m)
	go func() {
		logger.Info("Metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener failed", log.FieldError, err)
		}
	}()
	return srv
}

// StopMetricsServer shuts down a server returned by StartMetricsServer.
func StopMetricsServer(ctx context.Context, logger *log.Logger, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Metrics listener shutdown", log.FieldError, err)
	}
}

// WorkerMetrics returns a registry when addr is set. Without a listener the
// counters would never be read, so nil is returned and callers skip them.
func WorkerMetrics(addr string) *metrics.Metrics {
	if addr == "" {
		return nil
	}
	return metrics.New()
}
