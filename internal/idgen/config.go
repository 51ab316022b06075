package idgen

import (
	"fmt"
	"time"
)

const (
	DefaultEpoch        int64 = 1288834974657
	DefaultSequenceBits uint  = 12
	DefaultServerIDBits uint  = 5
	DefaultWorkerIDBits uint  = 5

	// usableBits excludes the sign bit.
	usableBits = 63
)

// Config describes a generator. Nil fields take their defaults when the
// generator is built; ServerID has no default.
type Config struct {
	Epoch            *int64        `mapstructure:"epoch"`
	ServerID         *uint64       `mapstructure:"server_id"`
	WorkerID         *uint64       `mapstructure:"worker_id"`
	SequenceBits     *uint         `mapstructure:"sequence_bits"`
	ServerIDBits     *uint         `mapstructure:"server_id_bits"`
	WorkerIDBits     *uint         `mapstructure:"worker_id_bits"`
	MaxClockBackward time.Duration `mapstructure:"max_clock_backward"`
	StrictIDs        bool          `mapstructure:"strict_ids"`
}

// Validate checks the fields that can be checked without a clock.
func (c *Config) Validate() error {
	if c.ServerID == nil {
		return &ConfigError{Field: "server_id", Err: ErrServerIDRequired}
	}
	if err := c.ValidateLayout(); err != nil {
		return err
	}
	if c.MaxClockBackward < 0 {
		return &ConfigError{Field: "max_clock_backward", Err: fmt.Errorf("must be >= 0")}
	}
	return nil
}

// ValidateLayout checks only what Layout depends on. It is enough for
// decoding ids.
func (c *Config) ValidateLayout() error {
	seq, srv, wrk := c.bits()
	if sum := seq + srv + wrk; sum > usableBits {
		return &ConfigError{
			Field: "bits",
			Err:   fmt.Errorf("sequence_bits + server_id_bits + worker_id_bits = %d, must be <= %d", sum, usableBits),
		}
	}
	return nil
}

func (c *Config) bits() (seq, srv, wrk uint) {
	return valueOr(c.SequenceBits, DefaultSequenceBits),
		valueOr(c.ServerIDBits, DefaultServerIDBits),
		valueOr(c.WorkerIDBits, DefaultWorkerIDBits)
}

func (c *Config) epoch() int64 {
	return valueOr(c.Epoch, DefaultEpoch)
}

// Layout returns the bit layout the config resolves to.
func (c *Config) Layout() Layout {
	seq, srv, wrk := c.bits()
	return NewLayout(c.epoch(), seq, srv, wrk)
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
