package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/quarrydb/quarry/pkg/types"
)

// envPrefix is prepended to every variable name, e.g. QUARRY_DATABASE_URL.
const envPrefix = "quarry"

// Config holds the full process configuration, loaded from the
// environment at startup. There is no live reconfiguration.
type Config struct {
	// Durable store
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Admission scheduler
	CheckIntervalSeconds       int `envconfig:"CHECK_INTERVAL_SECONDS" default:"10"`
	GlobalMaxParallel          int `envconfig:"GLOBAL_MAX_PARALLEL" default:"50"`
	DefaultUserMaxParallel     int `envconfig:"DEFAULT_USER_MAX_PARALLEL" default:"3"`
	DefaultQueueTimeoutSeconds int `envconfig:"DEFAULT_QUEUE_TIMEOUT_SECONDS" default:"3600"` // reserved, not enforced

	// Export
	DefaultExportType     string `envconfig:"DEFAULT_EXPORT_TYPE" default:"csv"`
	DefaultExportLocation string `envconfig:"DEFAULT_EXPORT_LOCATION"`
	TmpExportLocation     string `envconfig:"TMP_EXPORT_LOCATION" default:"/tmp/quarry"`

	// Default SSH transfer parameters, used when user settings do not
	// provide their own. Secret values are redacted from all logs.
	SSHHost             string `envconfig:"SSH_HOST"`
	SSHPort             int    `envconfig:"SSH_PORT" default:"22"`
	SSHUsername         string `envconfig:"SSH_USERNAME"`
	SSHPassword         string `envconfig:"SSH_PASSWORD"`
	SSHKey              string `envconfig:"SSH_KEY"`
	SSHKeyPassphrase    string `envconfig:"SSH_KEY_PASSPHRASE"`
	SSHKnownHosts       string `envconfig:"SSH_KNOWN_HOSTS"`
	SSHTimeoutSeconds   int    `envconfig:"SSH_TIMEOUT_SECONDS" default:"30"`
	SSHKeepaliveSeconds int    `envconfig:"SSH_KEEPALIVE_SECONDS" default:"30"`

	// Recovery
	StuckThresholdSeconds  int `envconfig:"STUCK_THRESHOLD_SECONDS" default:"1800"`
	ShutdownTimeoutSeconds int `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"60"`

	// Observability
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":9090"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON    bool   `envconfig:"LOG_JSON" default:"false"`
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enum values
func (c *Config) Validate() error {
	if c.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check interval must be positive, got %d", c.CheckIntervalSeconds)
	}
	if c.GlobalMaxParallel <= 0 {
		return fmt.Errorf("global max parallel must be positive, got %d", c.GlobalMaxParallel)
	}
	if c.DefaultUserMaxParallel <= 0 {
		return fmt.Errorf("default user max parallel must be positive, got %d", c.DefaultUserMaxParallel)
	}
	if c.DefaultUserMaxParallel > c.GlobalMaxParallel {
		return fmt.Errorf("default user max parallel (%d) exceeds global max parallel (%d)",
			c.DefaultUserMaxParallel, c.GlobalMaxParallel)
	}
	if !types.ExportType(c.DefaultExportType).Valid() {
		return fmt.Errorf("unknown default export type %q", c.DefaultExportType)
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		return fmt.Errorf("ssh port out of range: %d", c.SSHPort)
	}
	if c.TmpExportLocation == "" {
		return fmt.Errorf("tmp export location must not be empty")
	}
	if c.StuckThresholdSeconds <= 0 {
		return fmt.Errorf("stuck threshold must be positive, got %d", c.StuckThresholdSeconds)
	}
	return nil
}

// CheckInterval returns the scheduler tick period
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// SSHTimeout returns the SSH connect timeout
func (c *Config) SSHTimeout() time.Duration {
	return time.Duration(c.SSHTimeoutSeconds) * time.Second
}

// SSHKeepalive returns the SSH keepalive interval
func (c *Config) SSHKeepalive() time.Duration {
	return time.Duration(c.SSHKeepaliveSeconds) * time.Second
}

// StuckThreshold returns the age after which an ownerless in-flight
// query is considered stuck
func (c *Config) StuckThreshold() time.Duration {
	return time.Duration(c.StuckThresholdSeconds) * time.Second
}

// ShutdownTimeout returns how long shutdown waits for in-flight queries
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
