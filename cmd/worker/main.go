package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portfolioHub/internal/config"
	"portfolioHub/internal/metrics"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/storage"
	"portfolioHub/internal/tasks"
	"portfolioHub/internal/worker"
)

func main() {
	config.LoadDotEnv()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	client, err := portfolioapi.NewClient(cfg.Upstream, portfolioapi.WithObserver(metrics.ObserveUpstream))
	if err != nil {
		log.Fatalf("init portfolio client: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeContactRelay, worker.NewContactRelayHandler(client, logger))
	mux.Handle(tasks.TypeAttachmentSweep, worker.NewAttachmentSweepHandler(storageClient, cfg.Attachment.StagedMaxAge, logger))

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(tasks.AttachmentSweepSchedule, tasks.NewAttachmentSweepTask()); err != nil {
		log.Fatalf("register attachment sweep: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	if cfg.Worker.MetricsPort > 0 {
		go serveMetrics(cfg.Worker.MetricsPort, logger)
	}

	logger.Info("worker service started", slog.String("redis_addr", redisOpt.Addr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("worker metrics server stopped", slog.Any("error", err))
	}
}
