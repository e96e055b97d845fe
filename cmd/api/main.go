package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"portfolioHub/internal/api"
	"portfolioHub/internal/attachment"
	"portfolioHub/internal/auth"
	"portfolioHub/internal/config"
	"portfolioHub/internal/drafts"
	"portfolioHub/internal/form"
	"portfolioHub/internal/metrics"
	"portfolioHub/internal/portfolioapi"
	"portfolioHub/internal/probe"
	"portfolioHub/internal/storage"
	"portfolioHub/internal/submit"
)

const (
	probePruneInterval = time.Minute
	probeMaxAge        = 30 * time.Minute
)

func main() {
	config.LoadDotEnv()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	upstream, err := portfolioapi.NewClient(cfg.Upstream, portfolioapi.WithObserver(metrics.ObserveUpstream))
	if err != nil {
		log.Fatalf("init portfolio client: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	queue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	scanner := attachment.NewClamdScanner(cfg.Attachment.ClamdAddress)
	if scanner == nil {
		logger.Warn("attachment virus scanning disabled")
	}

	probes := probe.NewRegistry(probe.Options{
		Debounce: cfg.Probe.Debounce,
		Logger:   logger,
		Observe: func(state probe.State, err error) {
			metrics.ObserveProbe(state.String(), err != nil)
		},
	})

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Sessions:  auth.NewSessions(auth.NewRedisTokenStore(redisClient), upstream, cfg.Session.TTL, logger),
		Portfolio: upstream,
		Drafts:    drafts.NewService(drafts.NewRedisStore(redisClient, cfg.Drafts.TTL), storageClient, logger),
		Probes:    probes,
		Submitter: submit.NewPipeline(upstream, storageClient, logger,
			submit.WithEncodeOptions(form.EncodeOptions{WireCompatible: cfg.Submit.WireCompatible}),
			submit.WithObserver(metrics.ObserveSubmission),
		),
		Intake:      attachment.NewIntake(storageClient, scanner, cfg.Attachment.MaxBytes, logger, metrics.ObserveAttachment),
		Attachments: storageClient,
		Redis:       redisClient,
		Queue:       queue,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneProbes(ctx, probes, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	probes.Prune(-time.Hour)
}

func pruneProbes(ctx context.Context, probes *probe.Registry, logger *slog.Logger) {
	ticker := time.NewTicker(probePruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := probes.Prune(probeMaxAge); n > 0 {
				logger.Debug("pruned idle probes", slog.Int("count", n))
			}
		}
	}
}
