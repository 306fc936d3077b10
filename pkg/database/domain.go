package database

import (
	"time"
)

// Connection definition sql setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// StorageConnection definition object storage (minio / s3)
type StorageConnection struct {
	Endpoint string
	Region   string
	User     string
	Password string
	UseSSL   bool
	// Buckets created on connect when missing
	Buckets []string

	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis, sentinel mode when SentinelAddrs is set
type RedisConnection struct {
	Addr          string
	MasterName    string
	SentinelAddrs []string
	Password      string
	DB            int
}
