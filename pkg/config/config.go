package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	License    LicenseConfig
	Scan       ScanConfig
	Session    SessionConfig
	Orders     OrdersConfig
	Recording  RecordingConfig
	Activation ActivationConfig
	Host       HostConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Scan.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKTRACE_APP_ENV" default:"dev"`
	Port         string `envconfig:"PACKTRACE_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"PACKTRACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKTRACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Path            string        `envconfig:"PACKTRACE_DB_PATH" default:"packtrace.db"`
	BusyTimeout     time.Duration `envconfig:"PACKTRACE_DB_BUSY_TIMEOUT" default:"5s"`
	MaxOpenConns    int           `envconfig:"PACKTRACE_DB_MAX_OPEN_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"PACKTRACE_DB_CONN_MAX_LIFETIME" default:"1h"`
}

type RedisConfig struct {
	Enabled      bool          `envconfig:"PACKTRACE_REDIS_ENABLED" default:"false"`
	URL          string        `envconfig:"PACKTRACE_REDIS_URL"`
	Address      string        `envconfig:"PACKTRACE_REDIS_ADDR"`
	Password     string        `envconfig:"PACKTRACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKTRACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKTRACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKTRACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKTRACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKTRACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKTRACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type LicenseConfig struct {
	DailyFreeLimit     int           `envconfig:"PACKTRACE_LICENSE_DAILY_FREE_LIMIT" default:"5"`
	RenewalWarningDays int           `envconfig:"PACKTRACE_LICENSE_RENEWAL_WARNING_DAYS" default:"7"`
	GracePeriod        time.Duration `envconfig:"PACKTRACE_LICENSE_GRACE_PERIOD" default:"24h"`
	BackupTTL          time.Duration `envconfig:"PACKTRACE_LICENSE_BACKUP_TTL" default:"9600h"`
}

type ScanConfig struct {
	Rate         int           `envconfig:"PACKTRACE_SCAN_RATE" default:"10"`
	LockDuration time.Duration `envconfig:"PACKTRACE_SCAN_LOCK_DURATION" default:"3s"`
}

func (s ScanConfig) validate() error {
	if s.Rate <= 0 {
		return fmt.Errorf("scan rate must be positive")
	}
	if s.LockDuration <= 0 {
		return fmt.Errorf("scan lock duration must be positive")
	}
	return nil
}

// SampleInterval derives the minimum spacing between decode attempts.
func (s ScanConfig) SampleInterval() time.Duration {
	return time.Second / time.Duration(s.Rate)
}

type SessionConfig struct {
	PostBuffer time.Duration `envconfig:"PACKTRACE_SESSION_POST_BUFFER" default:"5s"`
}

func (s SessionConfig) validate() error {
	if s.PostBuffer <= 0 {
		return fmt.Errorf("session post buffer must be positive")
	}
	return nil
}

type OrdersConfig struct {
	Max           int `envconfig:"PACKTRACE_ORDERS_MAX" default:"500"`
	RetentionDays int `envconfig:"PACKTRACE_ORDERS_RETENTION_DAYS" default:"30"`
}

type RecordingConfig struct {
	OutputDir   string  `envconfig:"PACKTRACE_RECORDING_OUTPUT_DIR" default:"recordings"`
	BitrateMbps float64 `envconfig:"PACKTRACE_RECORDING_BITRATE_MBPS" default:"2.5"`
	DeviceID    string  `envconfig:"PACKTRACE_RECORDING_DEVICE_ID"`
}

type ActivationConfig struct {
	Endpoint string        `envconfig:"PACKTRACE_ACTIVATION_ENDPOINT"`
	Timeout  time.Duration `envconfig:"PACKTRACE_ACTIVATION_TIMEOUT" default:"10s"`
}

type HostConfig struct {
	Enabled bool          `envconfig:"PACKTRACE_HOST_ENABLED" default:"false"`
	PushURL string        `envconfig:"PACKTRACE_HOST_PUSH_URL"`
	Timeout time.Duration `envconfig:"PACKTRACE_HOST_TIMEOUT" default:"5s"`
}
