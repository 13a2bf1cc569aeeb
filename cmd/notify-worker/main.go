package main

import (
	"context"
	"errors"
	"os"
	"time"

	"clubledger/internal/amqp"
	"clubledger/internal/cache"
	"clubledger/internal/cli"
	"clubledger/internal/log"
	"clubledger/internal/notify"
	"clubledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentNotify)

	logger.Info("Starting notify-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notify-worker")
		os.Exit(1)
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	m := cli.WorkerMetrics(cfg.MetricsAddr)
	metricsSrv := cli.StartMetricsServer(logger, cfg.MetricsAddr, m)

	w := worker.NewNotificationWorker(notify.LogSink{Logger: logger.Logger}, m)
	caches := cache.NewManager()
	caches.Register(w)
	caches.StartCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		cli.StopMetricsServer(ctx, logger, metricsSrv)
		caches.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close", log.FieldError, err)
		}
	})

	go func() {
		if err := client.ConsumeNotifications(ctx, w.HandleNotification); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Notify-worker shutdown complete")
}
