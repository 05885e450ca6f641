package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SES       SESConfig       `yaml:"ses"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis connection settings. Redis backs the burst rate
// guard and distributed locks; when disabled both fall back to Postgres.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	FromAddress    string `yaml:"from_address"`
	FromName       string `yaml:"from_name"`
	ConfigSet      string `yaml:"configuration_set"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WorkerConfig holds dispatcher pool settings
type WorkerConfig struct {
	Concurrency          int      `yaml:"concurrency"`
	Queues               []string `yaml:"queues"`
	IdleSleepMillis      int      `yaml:"idle_sleep_millis"`
	LeaseTimeoutMinutes  int      `yaml:"lease_timeout_minutes"`
	RecoveryIntervalMins int      `yaml:"recovery_interval_mins"`
}

// IdleSleep returns the dispatcher idle sleep as a duration
func (c WorkerConfig) IdleSleep() time.Duration {
	return time.Duration(c.IdleSleepMillis) * time.Millisecond
}

// LeaseTimeout returns the in-flight job lease as a duration
func (c WorkerConfig) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutMinutes) * time.Minute
}

// SchedulerConfig holds recurring-job scheduler settings
type SchedulerConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
}

// TickInterval returns the scheduler tick interval as a duration
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// AnalysisConfig holds analysis pipeline settings
type AnalysisConfig struct {
	AnalyzerTimeoutSeconds int `yaml:"analyzer_timeout_seconds"`
	FetchTimeoutSeconds    int `yaml:"fetch_timeout_seconds"`
	TopIssuesLimit         int `yaml:"top_issues_limit"`
}

// AnalyzerTimeout returns the per-analyzer deadline as a duration
func (c AnalysisConfig) AnalyzerTimeout() time.Duration {
	return time.Duration(c.AnalyzerTimeoutSeconds) * time.Second
}

// FetchTimeout returns the page fetch deadline as a duration
func (c AnalysisConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// TrackingConfig holds tracking endpoint settings
type TrackingConfig struct {
	BaseURL string `yaml:"base_url"`
}

// CleanupConfig holds data retention settings
type CleanupConfig struct {
	FailedJobRetentionDays int `yaml:"failed_job_retention_days"`
	EmailLogRetentionDays  int `yaml:"email_log_retention_days"`
	SnapshotRetentionDays  int `yaml:"snapshot_retention_days"`
	BatchSize              int `yaml:"batch_size"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "eu-west-1"
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if len(cfg.Worker.Queues) == 0 {
		cfg.Worker.Queues = []string{"high", "normal", "low"}
	}
	if cfg.Worker.IdleSleepMillis == 0 {
		cfg.Worker.IdleSleepMillis = 250
	}
	if cfg.Worker.LeaseTimeoutMinutes == 0 {
		cfg.Worker.LeaseTimeoutMinutes = 10
	}
	if cfg.Worker.RecoveryIntervalMins == 0 {
		cfg.Worker.RecoveryIntervalMins = 2
	}
	if cfg.Scheduler.TickIntervalSeconds == 0 {
		cfg.Scheduler.TickIntervalSeconds = 60
	}
	if cfg.Analysis.AnalyzerTimeoutSeconds == 0 {
		cfg.Analysis.AnalyzerTimeoutSeconds = 30
	}
	if cfg.Analysis.FetchTimeoutSeconds == 0 {
		cfg.Analysis.FetchTimeoutSeconds = 20
	}
	if cfg.Analysis.TopIssuesLimit == 0 {
		cfg.Analysis.TopIssuesLimit = 5
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8080"
	}
	if cfg.Cleanup.FailedJobRetentionDays == 0 {
		cfg.Cleanup.FailedJobRetentionDays = 30
	}
	if cfg.Cleanup.EmailLogRetentionDays == 0 {
		cfg.Cleanup.EmailLogRetentionDays = 180
	}
	if cfg.Cleanup.SnapshotRetentionDays == 0 {
		cfg.Cleanup.SnapshotRetentionDays = 365
	}
	if cfg.Cleanup.BatchSize == 0 {
		cfg.Cleanup.BatchSize = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
// A missing config file is not an error; defaults plus env vars apply.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg *Config
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg = &Config{}
		applyDefaults(cfg)
	} else {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if from := os.Getenv("SES_FROM_ADDRESS"); from != "" {
		cfg.SES.FromAddress = from
	}
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.Concurrency = n
		}
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
