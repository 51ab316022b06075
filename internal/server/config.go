package server

import (
	"fmt"
	"time"
)

const DefaultMaxBatch = 4096

type Config struct {
	MaxBatch int         `mapstructure:"max_batch"`
	HTTP     *HTTPConfig `mapstructure:"http"`
	GRPC     *GRPCConfig `mapstructure:"grpc"`
	TCP      *TCPConfig  `mapstructure:"tcp"`
}

type HTTPConfig struct {
	BindAddr     string        `mapstructure:"bind_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	BindAddr    string        `mapstructure:"bind_addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type TCPConfig struct {
	BindAddr       string        `mapstructure:"bind_addr"`
	MaxConnections int           `mapstructure:"max_connections"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

func (c *Config) Validate() error {
	if c.MaxBatch <= 0 {
		return fmt.Errorf("max_batch must be > 0")
	}
	if c.HTTP == nil && c.GRPC == nil && c.TCP == nil {
		return fmt.Errorf("at least one of http, grpc, tcp must be configured")
	}
	if c.HTTP != nil {
		if err := c.HTTP.Validate(); err != nil {
			return fmt.Errorf("http config: %w", err)
		}
	}
	if c.GRPC != nil {
		if err := c.GRPC.Validate(); err != nil {
			return fmt.Errorf("grpc config: %w", err)
		}
	}
	if c.TCP != nil {
		if err := c.TCP.Validate(); err != nil {
			return fmt.Errorf("tcp config: %w", err)
		}
	}
	return nil
}

func (h *HTTPConfig) Validate() error {
	if h.BindAddr == "" {
		return fmt.Errorf("http.bind_addr is required")
	}
	if h.ReadTimeout <= 0 {
		return fmt.Errorf("http.read_timeout must be > 0")
	}
	if h.WriteTimeout <= 0 {
		return fmt.Errorf("http.write_timeout must be > 0")
	}
	return nil
}

func (g *GRPCConfig) Validate() error {
	if g.BindAddr == "" {
		return fmt.Errorf("grpc.bind_addr is required")
	}
	if g.ReadTimeout <= 0 {
		return fmt.Errorf("grpc.read_timeout must be > 0")
	}
	return nil
}

func (t *TCPConfig) Validate() error {
	if t.BindAddr == "" {
		return fmt.Errorf("tcp.bind_addr is required")
	}
	if t.MaxConnections <= 0 {
		return fmt.Errorf("tcp.max_connections must be > 0")
	}
	if t.ReadTimeout <= 0 {
		return fmt.Errorf("tcp.read_timeout must be > 0")
	}
	return nil
}
