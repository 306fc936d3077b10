package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video_pipeline_service/internal/transcoder/app"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"

	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.TranscodeWorker, config.EnvConfig.TranscodeWorkerLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.TranscodeWorker](config.EnvConfig.TranscodeWorker, config.EnvConfig.TranscodeWorkerYAMLPath)
	cfg.ApplyDefaults()

	if cfg.TranscoderSecret == "" {
		logger.Log.Fatal("transcoder_secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.NewObjectStore(ctx, cfg.Storage.Driver, database.StorageConnection{
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		User:          cfg.Storage.AccessKey,
		Password:      cfg.Storage.SecretKey,
		UseSSL:        cfg.Storage.UseSSL,
		Buckets:       []string{cfg.Storage.UploadsBucket, cfg.Storage.VideosBucket},
		RetryCount:    cfg.Storage.RetryCount,
		RetryInterval: time.Duration(cfg.Storage.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to object storage after retries",
			zap.String("endpoint", cfg.Storage.Endpoint), zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(ctx, cfg.MetricsAddr, !config.IsProduction())
	}

	jobs := app.NewDispatcherClient(cfg.APIBaseURL, cfg.TranscoderSecret, cfg.RequestTimeout)
	worker := app.NewWorker(jobs, store, cfg)
	if err := worker.Run(ctx); err != nil {
		logger.Log.Fatal("transcode worker stopped", zap.Error(err))
	}
}
