package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Match  MatchConfig  `yaml:"match" mapstructure:"match"`
	Link   LinkConfig   `yaml:"link" mapstructure:"link"`
	Redis  RedisConfig  `yaml:"redis" mapstructure:"redis"`
	Verify VerifyConfig `yaml:"verify" mapstructure:"verify"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MatchConfig configures the matching engine.
type MatchConfig struct {
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	IncludePartial   bool    `yaml:"include_partial" mapstructure:"include_partial"`
	PartialThreshold float64 `yaml:"partial_threshold" mapstructure:"partial_threshold"`
	MaxResults       int     `yaml:"max_results" mapstructure:"max_results"`
	EarlyExit        bool    `yaml:"early_exit" mapstructure:"early_exit"`
	PolicyFile       string  `yaml:"policy_file" mapstructure:"policy_file"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EffectiveWorkers returns the configured worker count, or the number of
// available processors when unset.
func (m MatchConfig) EffectiveWorkers() int {
	if m.Workers > 0 {
		return m.Workers
	}
	return runtime.NumCPU()
}

// LinkConfig configures linking actions.
type LinkConfig struct {
	MaxAttempts         int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RemoveLinkedOrphans bool   `yaml:"remove_linked_orphans" mapstructure:"remove_linked_orphans"`
	Locker              string `yaml:"locker" mapstructure:"locker"`
	LockTTLSecs         int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// RedisConfig configures the Redis connection used by the distributed locker.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// VerifyConfig configures the pre-ingestion verification gate.
type VerifyConfig struct {
	Enabled          bool    `yaml:"enabled" mapstructure:"enabled"`
	URL              string  `yaml:"url" mapstructure:"url"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequirePlausible bool    `yaml:"require_plausible" mapstructure:"require_plausible"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BASSET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "basset.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("match.workers", 0)
	v.SetDefault("match.include_partial", true)
	v.SetDefault("match.partial_threshold", 0.70)
	v.SetDefault("match.max_results", 25)
	v.SetDefault("match.early_exit", false)
	v.SetDefault("match.policy_file", "")
	v.SetDefault("match.timeout_secs", 30)
	v.SetDefault("link.max_attempts", 3)
	v.SetDefault("link.remove_linked_orphans", false)
	v.SetDefault("link.locker", "local")
	v.SetDefault("link.lock_ttl_secs", 30)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("verify.enabled", false)
	v.SetDefault("verify.url", "")
	v.SetDefault("verify.rate_per_sec", 5)
	v.SetDefault("verify.timeout_secs", 10)
	v.SetDefault("verify.require_plausible", true)
	v.SetDefault("verify.max_attempts", 3)
	v.SetDefault("verify.breaker_threshold", 5)
	v.SetDefault("verify.breaker_reset_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Validate checks the settings a command mode depends on. Every problem is
// reported, not just the first.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			add("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for the postgres driver")
		}
	default:
		add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}

	if c.Match.PartialThreshold < 0 || c.Match.PartialThreshold > 1 {
		add("match.partial_threshold must be within [0,1], got %v", c.Match.PartialThreshold)
	}
	if c.Match.MaxResults < 0 {
		add("match.max_results must be >= 0")
	}
	if c.Match.Workers < 0 {
		add("match.workers must be >= 0")
	}

	switch mode {
	case "cli", "migrate", "import":
	case "serve":
		if c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
		if c.Link.MaxAttempts < 1 {
			add("link.max_attempts must be >= 1")
		}
		switch c.Link.Locker {
		case "local":
		case "redis":
			if c.Redis.URL == "" {
				add("redis.url is required for the redis locker")
			}
		default:
			add("link.locker must be local or redis, got %q", c.Link.Locker)
		}
		if c.Verify.Enabled && c.Verify.RatePerSec <= 0 {
			add("verify.rate_per_sec must be > 0 when verification is enabled")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
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
