package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Fallback FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig configures access to the upstream racing API.
// The header values and delay bounds mimic a browser session; they are
// traffic shaping, not a correctness mechanism.
type SourceConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	Referer     string        `yaml:"referer" mapstructure:"referer"`
	Origin      string        `yaml:"origin" mapstructure:"origin"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MinDelay    time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst   int           `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// IngestConfig configures pipeline execution.
type IngestConfig struct {
	// Workers bounds simultaneous in-flight races per stage, and therefore
	// outstanding HTTP requests and store connections.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// FallbackConfig configures the raw-payload fallback store.
type FallbackConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// Optional .env for local development; real deploys use the environment.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PMUETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("source.base_url", "https://online.turfinfo.api.pmu.fr/rest/client")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("source.referer", "https://www.pmu.fr/")
	v.SetDefault("source.origin", "https://www.pmu.fr")
	v.SetDefault("source.timeout", 20*time.Second)
	v.SetDefault("source.min_delay", 100*time.Millisecond)
	v.SetDefault("source.max_delay", 300*time.Millisecond)
	v.SetDefault("source.max_attempts", 3)
	v.SetDefault("source.rate_per_sec", 5.0)
	v.SetDefault("source.rate_burst", 5)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("fallback.path", "fallback.db")
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
