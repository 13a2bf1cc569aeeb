package main

import (
	"context"
	"os"
	"time"

	"clubledger/internal/cache"
	"clubledger/internal/cli"
	"clubledger/internal/log"
	"clubledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentScheduler)

	logger.Info("Starting report-worker")

	res := cli.InitBackend(context.Background(), logger, cfg)
	m := cli.WorkerMetrics(cfg.MetricsAddr)
	metricsSrv := cli.StartMetricsServer(logger, cfg.MetricsAddr, m)

	caches := cache.NewManager()
	caches.Register(res.Members)
	caches.StartCleanup(time.Minute)

	generator := services.NewReportGenerator(services.ReportDeps{
		Index:    res.Store,
		Tickets:  res.Store,
		Members:  res.Members,
		Blobs:    res.Blobs,
		Notifier: res.Notifier,
		Mirror:   res.Mirror,
		Metrics:  m,
	})

	scheduler := services.NewReportScheduler(generator, res.Store, res.Store, services.ReportSchedulerConfig{
		CheckInterval:        cfg.ReportCheckInterval,
		RunDay:               cfg.ReportRunDay,
		StaleAfter:           cfg.ReportStaleAfter,
		NotificationsDefault: cfg.NotificationsEnabled,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler stop", log.FieldError, err)
		}
		cli.StopMetricsServer(ctx, logger, metricsSrv)
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if orphans, err := generator.OrphanedArtifacts(ctx); err != nil {
		logger.Warn("Orphaned artifact scan failed", log.FieldError, err)
	} else if len(orphans) > 0 {
		logger.Warn("Report artifacts without an index row", "count", len(orphans), "paths", orphans)
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start report scheduler", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Report scheduler configured",
		"interval", cfg.ReportCheckInterval,
		"run_day", cfg.ReportRunDay,
		"notifications", res.Notifier != nil)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report-worker shutdown complete")
}
