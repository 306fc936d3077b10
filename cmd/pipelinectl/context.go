package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"

	"github.com/jackc/pgx/v4/pgxpool"
	"gorm.io/gorm"
)

type commandContext struct {
	configDir *string

	configOnce sync.Once
	config     config.APIServer
	configErr  error

	db   *gorm.DB
	pool *pgxpool.Pool
}

func newCommandContext(configDir *string) *commandContext {
	return &commandContext{configDir: configDir}
}

func (c *commandContext) ensureConfig() (config.APIServer, error) {
	c.configOnce.Do(func() {
		logger.Log = logger.Initialize("pipelinectl", config.EnvConfig.APIServerLogPath)

		dir := config.EnvConfig.APIServerYAMLPath
		if c.configDir != nil && strings.TrimSpace(*c.configDir) != "" {
			dir = strings.TrimSpace(*c.configDir)
		}
		cfg, err := config.ReadConfig[config.APIServer](config.EnvConfig.APIServer, dir)
		if err != nil {
			c.configErr = err
			return
		}
		cfg.ApplyDefaults()
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) connection(cfg config.APIServer) database.Connection {
	return database.Connection{
		ConnectStr:    cfg.PostgreSQL.DSN(),
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	}
}

func (c *commandContext) jobRepo() (repository.PendingJobRepo, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if c.db == nil {
		db, err := database.NewPGConnection(c.connection(cfg))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.db = db
	}
	return repository.NewPendingJobRepo(c.db), nil
}

// reaper wires repo, object store and the advisory lock
func (c *commandContext) reaper(ctx context.Context) (*app.Reaper, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	repo, err := c.jobRepo()
	if err != nil {
		return nil, err
	}
	if c.pool == nil {
		pool, err := database.NewDatabaseConnection(c.connection(cfg))
		if err != nil {
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		c.pool = pool
	}
	store, err := database.NewObjectStore(ctx, cfg.Storage.Driver, database.StorageConnection{
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		User:          cfg.Storage.AccessKey,
		Password:      cfg.Storage.SecretKey,
		UseSSL:        cfg.Storage.UseSSL,
		RetryCount:    cfg.Storage.RetryCount,
		RetryInterval: time.Duration(cfg.Storage.RetryInterval),
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	return app.NewReaper(repo, store, cfg.Storage.UploadsBucket, cfg.Reaper, database.NewAdvisoryLocker(c.pool)), nil
}

func (c *commandContext) close() {
	if c.pool != nil {
		c.pool.Close()
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Log.Sync()
}
