package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	networkVsock = "vsock"
	networkTCP   = "tcp"

	defaultReadTimeout = 30 * time.Second
	defaultVsockPort   = 5000
)

// Config is the evaluation service configuration.
type Config struct {
	Listen      ListenConfig  `mapstructure:"listen"`
	Workers     WorkersConfig `mapstructure:"workers"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Log         LogConfig     `mapstructure:"log"`
	Seal        SealConfig    `mapstructure:"seal"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type ListenConfig struct {
	Network   string `mapstructure:"network"` // vsock or tcp
	Address   string `mapstructure:"address"` // tcp only
	VsockPort uint32 `mapstructure:"vsock_port"`
}

type WorkersConfig struct {
	Max int `mapstructure:"max"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"` // empty disables the /metrics endpoint
}

type SealConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	KeyFile string `mapstructure:"key_file"` // PEM EC private key, created if missing; empty means an ephemeral key
}

// LoadConfig reads evald.yaml (from path, or the working directory and
// /etc/evald when path is empty) and applies EVALD_* environment overrides,
// e.g. EVALD_WORKERS_MAX.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen.network", networkVsock)
	v.SetDefault("listen.address", "127.0.0.1:5000")
	v.SetDefault("listen.vsock_port", defaultVsockPort)
	v.SetDefault("workers.max", 0)
	v.SetDefault("read_timeout", defaultReadTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("seal.enabled", true)
	v.SetDefault("seal.key_file", "")
	v.SetDefault("metrics.address", "")

	v.SetEnvPrefix("EVALD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("evald")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/evald")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Workers.Max <= 0 {
		return fmt.Errorf("workers.max is required and must be positive, got %d", c.Workers.Max)
	}

	c.Listen.Network = strings.ToLower(strings.TrimSpace(c.Listen.Network))
	switch c.Listen.Network {
	case networkVsock:
		if c.Listen.VsockPort == 0 {
			return errors.New("listen.vsock_port is required for vsock")
		}
	case networkTCP:
		if c.Listen.Address == "" {
			return errors.New("listen.address is required for tcp")
		}
	default:
		return fmt.Errorf("listen.network must be %q or %q, got %q", networkVsock, networkTCP, c.Listen.Network)
	}

	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	return nil
}
