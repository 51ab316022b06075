package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zhukov-alex/snowflake/internal/audit"
	"github.com/zhukov-alex/snowflake/internal/idgen"
	"github.com/zhukov-alex/snowflake/internal/logger"
	"github.com/zhukov-alex/snowflake/internal/server"
)

const EnvPrefix = "SNOWFLAKE"

type Config struct {
	MetricsAddr string `mapstructure:"metrics_addr"`

	Generator GeneratorConfig `mapstructure:"generator"`
	Server    server.Config   `mapstructure:"server"`
	Audit     audit.Config    `mapstructure:"audit"`
	Logger    logger.Config   `mapstructure:"logger"`
}

// GeneratorConfig is the id generator plus its time source.
type GeneratorConfig struct {
	idgen.Config `mapstructure:",squash"`

	Clock ClockConfig `mapstructure:"clock"`
}

type ClockConfig struct {
	Type  string       `mapstructure:"type"`
	Redis *RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Timeout bounds a single TIME call.
	Timeout time.Duration `mapstructure:"timeout"`
}

func NewConfigInit(cfgFile *string) func() {
	return func() {
		if strings.TrimSpace(*cfgFile) == "" {
			log.Fatalf("invalid config file name")
		}
		if _, err := os.Stat(*cfgFile); err != nil {
			log.Fatalf("invalid config path: %v", err)
		}
		viper.SetConfigFile(*cfgFile)
		SetDefaults(viper.GetViper())

		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("Failed to read config: %v\n", err)
		}
	}
}

// envKeys are bound explicitly so that their environment overrides apply
// even when the file leaves them out. Other keys only pick up an override
// when the file or a default sets them.
var envKeys = []string{
	"metrics_addr",
	"generator.epoch",
	"generator.server_id",
	"generator.worker_id",
	"generator.sequence_bits",
	"generator.server_id_bits",
	"generator.worker_id_bits",
	"generator.max_clock_backward",
	"generator.strict_ids",
	"generator.clock.type",
}

// SetDefaults registers defaults and environment overrides, e.g.
// SNOWFLAKE_GENERATOR_WORKER_ID for generator.worker_id.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("server.max_batch", server.DefaultMaxBatch)
	v.SetDefault("generator.clock.type", "system")
}

func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return &cfg, nil
}

// NewDecode reads only what decoding ids needs: the logger and the
// generator layout. Other sections may be absent or incomplete.
func NewDecode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Logger.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: logger config: %w", err)
	}
	if err := cfg.Generator.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("config validation error: generator config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config: %w", err)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}
	return nil
}

func (g *GeneratorConfig) Validate() error {
	if err := g.Config.Validate(); err != nil {
		return err
	}
	switch g.Clock.Type {
	case "system":
	case "redis":
		if g.Clock.Redis == nil || g.Clock.Redis.Addr == "" {
			return fmt.Errorf("clock.redis.addr is required for clock type redis")
		}
		if g.Clock.Redis.Timeout <= 0 {
			return fmt.Errorf("clock.redis.timeout must be > 0")
		}
	default:
		return fmt.Errorf("unsupported clock type: %q", g.Clock.Type)
	}
	return nil
}
