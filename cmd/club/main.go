package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"clubledger/internal/cache"
	"clubledger/internal/cli"
	apphttp "clubledger/internal/http"
	"clubledger/internal/log"
	"clubledger/internal/metrics"
	"clubledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	res := cli.InitBackend(context.Background(), logger, cfg)
	m := metrics.New()

	caches := cache.NewManager()
	caches.Register(res.Members)
	caches.StartCleanup(time.Minute)

	reports := services.NewReportGenerator(services.ReportDeps{
		Index:    res.Store,
		Tickets:  res.Store,
		Members:  res.Members,
		Blobs:    res.Blobs,
		Notifier: res.Notifier,
		Mirror:   res.Mirror,
		Metrics:  m,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Tickets:              services.NewTicketService(res.Store, m),
		Reports:              reports,
		Settings:             res.Store,
		Metrics:              m,
		Logger:               logger.WithComponent(log.ComponentHTTP),
		NotificationsDefault: cfg.NotificationsEnabled,
		RateLimitPerMinute:   cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting club server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"blob_backend", cfg.BlobBackend,
		"notifications", res.Notifier != nil,
		"sheets_mirror", res.Mirror != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
