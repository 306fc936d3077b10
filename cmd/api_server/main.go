package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video_pipeline_service/internal/pipeline/api/handlers"
	"video_pipeline_service/internal/pipeline/api/router"
	"video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/middlewares"
	"video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const streamURLCachePrefix = "stream_url:"

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.APIServer, config.EnvConfig.APIServerLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.APIServer](config.EnvConfig.APIServer, config.EnvConfig.APIServerYAMLPath)
	cfg.ApplyDefaults()

	if cfg.JWTSecret == "" {
		logger.Log.Fatal("jwt_secret is required")
	}
	if cfg.TranscoderSecret == "" {
		logger.Log.Fatal("transcoder_secret is required")
	}
	token.SetSecret(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 連線 PostgreSQL
	db, err := database.NewPGConnection(database.Connection{
		ConnectStr:    cfg.PostgreSQL.DSN(),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries",
			zap.String("host", cfg.PostgreSQL.Host), zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Log.Fatal("get sql.DB failed", zap.Error(err))
	}
	defer sqlDB.Close()

	jobRepo := repository.NewPendingJobRepo(db)
	videoRepo := repository.NewVideoRepo(db)
	// 自動遷移資料表
	if err := jobRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal("資料表遷移失敗", zap.Error(err))
	}

	// 2. object storage
	store, err := database.NewObjectStore(ctx, cfg.Storage.Driver, storageConnection(cfg.Storage))
	if err != nil {
		logger.Log.Fatal("Unable to connect to object storage after retries",
			zap.String("driver", cfg.Storage.Driver), zap.String("endpoint", cfg.Storage.Endpoint), zap.Error(err))
	}

	// 3. redis, optional
	var urlCache database.RedisRepository[string]
	if cfg.Redis.Addr != "" || len(cfg.Redis.SentinelAddrs) > 0 {
		rdb, err := database.NewRedisClient(database.RedisConnection{
			Addr:          cfg.Redis.Addr,
			MasterName:    cfg.Redis.MasterName,
			SentinelAddrs: cfg.Redis.SentinelAddrs,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.RedisDB,
		})
		if err != nil {
			logger.Log.Fatal("redis connect failed", zap.Error(err))
		}
		defer rdb.Close()
		urlCache = database.NewRedisRepository[string](rdb, streamURLCachePrefix)
	} else {
		logger.Log.Info("redis not configured, stream url cache disabled")
	}

	uploadUC := app.NewUploadUseCase(jobRepo, store, cfg.Storage.UploadsBucket, cfg.Upload)
	dispatcherUC := app.NewDispatcherUseCase(jobRepo, store, cfg.Storage.UploadsBucket)
	videoUC := app.NewVideoUseCase(videoRepo, store, cfg.Storage.VideosBucket, cfg.StreamURLTTL, urlCache)

	// 创建 Fiber 应用
	r := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})
	r.Use(recover.New())

	// 添加日志中间件
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.APIServerLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open access log file", zap.Error(err))
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r, router.Handlers{
		Upload: handlers.NewUploadHandler(uploadUC),
		Job:    handlers.NewJobHandler(dispatcherUC),
		Video:  handlers.NewVideoHandler(videoUC),
		Ping:   sqlDB.Ping,
	}, cfg.TranscoderSecret)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down api server")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown failed", zap.Error(err))
		}
	}()

	// 启动服务器
	addr := cfg.IP + ":" + cfg.Port
	logger.Log.Info("api server listening", zap.String("addr", addr))
	if err := r.Listen(addr); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

func storageConnection(s config.StorageConfig) database.StorageConnection {
	return database.StorageConnection{
		Endpoint:      s.Endpoint,
		Region:        s.Region,
		User:          s.AccessKey,
		Password:      s.SecretKey,
		UseSSL:        s.UseSSL,
		Buckets:       []string{s.UploadsBucket, s.VideosBucket},
		RetryCount:    s.RetryCount,
		RetryInterval: time.Duration(s.RetryInterval),
	}
}
