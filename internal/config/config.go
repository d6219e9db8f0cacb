package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of sprintctl.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Access    AccessConfig    `mapstructure:"access"`
	Report    ReportConfig    `mapstructure:"report"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type TimeoutConfig struct {
	Operation  time.Duration `mapstructure:"operation"`
	Completion time.Duration `mapstructure:"completion"`
}

type LifecycleConfig struct {
	DoneKeywords []string `mapstructure:"done_keywords"`
	ExtendDays   int      `mapstructure:"extend_days"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Stdout       bool   `mapstructure:"stdout"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// ReportConfig controls sprint reports. An empty Dir means the reports
// directory under the data dir.
type ReportConfig struct {
	Theme string `mapstructure:"theme"`
	Dir   string `mapstructure:"dir"`
}

// AccessConfig lists who may manage sprints. With Open set every user is
// allowed and Grants are ignored.
type AccessConfig struct {
	Open   bool    `mapstructure:"open"`
	Grants []Grant `mapstructure:"grants"`
}

type Grant struct {
	UserID    int64 `mapstructure:"user_id"`
	ProjectID int64 `mapstructure:"project_id"`
}

// Load reads configuration from the optional file at path, then from
// SPRINTLEDGER_* environment variables, falling back to defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("timeouts.operation", DefaultOperationTimeout)
	v.SetDefault("timeouts.completion", DefaultCompletionTimeout)
	v.SetDefault("lifecycle.done_keywords", DefaultDoneKeywords)
	v.SetDefault("lifecycle.extend_days", DefaultExtendDays)
	v.SetDefault("log.level", "info")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("access.open", true)
	v.SetDefault("report.theme", "default")
	v.SetDefault("report.dir", "")
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Timeouts.Operation <= 0 || c.Timeouts.Completion <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Lifecycle.ExtendDays <= 0 {
		return fmt.Errorf("lifecycle.extend_days must be positive")
	}
	return nil
}
