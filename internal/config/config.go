package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Config holds the full application configuration.
type Config struct {
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the forecast service client.
type APIConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout is the transport timeout, zero meaning none.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SessionConfig holds the ambient session selections.
type SessionConfig struct {
	Role     string `yaml:"role" mapstructure:"role"`
	Env      string `yaml:"env" mapstructure:"env"`
	StateDir string `yaml:"state_dir" mapstructure:"state_dir"`
}

// StoreConfig configures the local history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DashboardConfig tunes the dashboard fetches and derived views.
type DashboardConfig struct {
	PreviewLimit  int `yaml:"preview_limit" mapstructure:"preview_limit"`
	HistogramBins int `yaml:"histogram_bins" mapstructure:"histogram_bins"`
	TopN          int `yaml:"top_n" mapstructure:"top_n"`
}

// ServerConfig configures the local session API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads .env, the optional config file and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", forecastapi.DefaultBaseURL)
	v.SetDefault("api.timeout_secs", 0)
	v.SetDefault("api.rate_per_sec", 0)
	v.SetDefault("session.role", string(model.RoleEditor))
	v.SetDefault("session.env", string(model.EnvDev))
	v.SetDefault("session.state_dir", ".forecast")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", ".forecast/forecast.db")
	v.SetDefault("dashboard.preview_limit", 20)
	v.SetDefault("dashboard.histogram_bins", 20)
	v.SetDefault("dashboard.top_n", 6)
	v.SetDefault("server.port", 8090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required by mode ("client" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, "api.timeout_secs must be >= 0")
	}
	if c.API.RatePerSec < 0 {
		errs = append(errs, "api.rate_per_sec must be >= 0")
	}
	if _, ok := model.ParseRole(c.Session.Role); !ok {
		errs = append(errs, fmt.Sprintf("session.role %q is not one of viewer, editor, approver", c.Session.Role))
	}
	if _, ok := model.ParseEnvironment(c.Session.Env); !ok {
		errs = append(errs, fmt.Sprintf("session.env %q is not one of dev, prod", c.Session.Env))
	}
	if c.Dashboard.TopN < 1 {
		errs = append(errs, "dashboard.top_n must be >= 1")
	}

	switch mode {
	case "client":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
