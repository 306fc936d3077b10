package config

import (
	"fmt"
	"time"
)

// APIServer definition api_server YAML structure
type APIServer struct {
	Port string `mapstructure:"port"`
	IP   string `mapstructure:"ip"`

	JWTSecret        string `mapstructure:"jwt_secret"`
	TranscoderSecret string `mapstructure:"transcoder_secret"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Storage    StorageConfig  `mapstructure:"storage"`
	Upload     UploadConfig   `mapstructure:"upload"`
	Reaper     ReaperConfig   `mapstructure:"reaper"`

	StreamURLTTL time.Duration `mapstructure:"stream_url_ttl"`
}

// TranscodeWorker definition transcode_worker YAML structure
type TranscodeWorker struct {
	APIBaseURL       string        `mapstructure:"api_base_url"`
	TranscoderSecret string        `mapstructure:"transcoder_secret"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ScratchDir       string        `mapstructure:"scratch_dir"`
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	FFprobePath      string        `mapstructure:"ffprobe_path"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`

	Storage StorageConfig `mapstructure:"storage"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RedisConfig definition redis setting, empty Addr and no sentinels disables the cache
type RedisConfig struct {
	Addr          string   `mapstructure:"addr"`
	MasterName    string   `mapstructure:"master_name"`
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`
	Password      string   `mapstructure:"password"`
	RedisDB       int      `mapstructure:"redis_db"`
}

// StorageConfig definition object storage setting
type StorageConfig struct {
	// Driver "minio" (default) or "s3"
	Driver        string `mapstructure:"driver"`
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	UploadsBucket string `mapstructure:"uploads_bucket"`
	VideosBucket  string `mapstructure:"videos_bucket"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// UploadConfig definition upload intent limits
type UploadConfig struct {
	MaxConcurrentInitiated int           `mapstructure:"max_concurrent_initiated"`
	MaxBytes               int64         `mapstructure:"max_bytes"`
	CredentialTTL          time.Duration `mapstructure:"credential_ttl"`
	PendingTTL             time.Duration `mapstructure:"pending_ttl"`
}

// ReaperConfig definition stale job sweep thresholds
type ReaperConfig struct {
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	ReclaimAfter      time.Duration `mapstructure:"reclaim_after"`
	TerminalRetention time.Duration `mapstructure:"terminal_retention"`
}

const (
	defaultMaxConcurrentInitiated = 2
	defaultMaxBytes               = 2000 * 1024 * 1024
	defaultCredentialTTL          = 900 * time.Second
	defaultPendingTTL             = 30 * time.Minute
	defaultStreamURLTTL           = 900 * time.Second
	defaultStaleAfter             = 24 * time.Hour
	defaultReclaimAfter           = 2 * time.Hour
	defaultTerminalRetention      = 7 * 24 * time.Hour
	defaultPollInterval           = 5 * time.Second
	defaultRequestTimeout         = 30 * time.Second
	defaultRetryCount             = 5
	defaultRetryInterval          = 3
)

// ApplyDefaults fill zero values
func (c *APIServer) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "3000"
	}
	if c.Upload.MaxConcurrentInitiated <= 0 {
		c.Upload.MaxConcurrentInitiated = defaultMaxConcurrentInitiated
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultMaxBytes
	}
	if c.Upload.CredentialTTL <= 0 {
		c.Upload.CredentialTTL = defaultCredentialTTL
	}
	if c.Upload.PendingTTL <= 0 {
		c.Upload.PendingTTL = defaultPendingTTL
	}
	if c.StreamURLTTL <= 0 {
		c.StreamURLTTL = defaultStreamURLTTL
	}
	if c.Reaper.StaleAfter <= 0 {
		c.Reaper.StaleAfter = defaultStaleAfter
	}
	if c.Reaper.ReclaimAfter <= 0 {
		c.Reaper.ReclaimAfter = defaultReclaimAfter
	}
	if c.Reaper.TerminalRetention <= 0 {
		c.Reaper.TerminalRetention = defaultTerminalRetention
	}
	c.PostgreSQL.applyDefaults()
	c.Storage.applyDefaults()
}

// ApplyDefaults fill zero values
func (c *TranscodeWorker) ApplyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "http://localhost:3000/api"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ScratchDir == "" {
		c.ScratchDir = "./tmp"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	c.Storage.applyDefaults()
}

func (d *DatabaseConfig) applyDefaults() {
	if d.RetryCount <= 0 {
		d.RetryCount = defaultRetryCount
	}
	if d.RetryInterval <= 0 {
		d.RetryInterval = defaultRetryInterval
	}
}

func (s *StorageConfig) applyDefaults() {
	if s.Driver == "" {
		s.Driver = "minio"
	}
	if s.Region == "" {
		s.Region = "us-east-1"
	}
	if s.RetryCount <= 0 {
		s.RetryCount = defaultRetryCount
	}
	if s.RetryInterval <= 0 {
		s.RetryInterval = defaultRetryInterval
	}
}

// DSN build the postgres connection string
func (d DatabaseConfig) DSN() string {
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		d.Host, d.User, d.Password, d.Database, port)
}
