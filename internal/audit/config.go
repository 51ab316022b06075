package audit

import (
	"fmt"
	"time"

	"github.com/zhukov-alex/snowflake/internal/output"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Output        output.Config `mapstructure:"output"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be > 0")
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	return nil
}
