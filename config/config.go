// Package config loads process configuration from a YAML file, falling
// back to documented defaults for anything unset. Environment variables
// override individual fields so deployments can tune behavior without
// editing the file, following the layered config-file-plus-env convention
// used across the retrieval pack's service entry points.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// defaultAddress matches the original server's default bind address,
// preserved here as this project's default listen address.
const defaultAddress = ":16664"

// Config is the full set of tunables for cmd/server.
type Config struct {
	// ListenAddress is the host:port the TCP listener socket binds.
	ListenAddress string `yaml:"listen_address"`
	// SelectTimeout bounds how long one Process pass waits in select(2)
	// when nothing is ready, controlling how promptly a shutdown signal
	// is noticed.
	SelectTimeout time.Duration `yaml:"select_timeout"`
	// MetricsAddress is the host:port the Prometheus /metrics and health
	// endpoints are served from. Empty disables the metrics server.
	MetricsAddress string `yaml:"metrics_address"`
	// LogLevel selects the zap logging level; Validate accepts "debug",
	// "info", "warn" and "error".
	LogLevel string `yaml:"log_level"`
	// RecvBufferSize sizes the bufio.Reader wrapping each accepted
	// connection.
	RecvBufferSize int `yaml:"recv_buffer_size"`
	// SendBufferSize sizes the bufio.Writer wrapping each accepted
	// connection, and the chunk size a session splits outbound replies
	// into.
	SendBufferSize int `yaml:"send_buffer_size"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		ListenAddress:  defaultAddress,
		SelectTimeout:  200 * time.Millisecond,
		MetricsAddress: ":9090",
		LogLevel:       "info",
		RecvBufferSize: 4096,
		SendBufferSize: 4096,
	}
}

// Load reads path as YAML over top of Default, then applies any
// recognized environment variable overrides. path may be empty, in which
// case only defaults and environment overrides apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, errors.Wrapf(err, "config: file %q not found", path)
			}
			return cfg, errors.Wrapf(err, "config: reading %q", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "config: parsing %q", path)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPCUAGONM_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}
	if v := os.Getenv("OPCUAGONM_METRICS_ADDRESS"); v != "" {
		cfg.MetricsAddress = v
	}
	if v := os.Getenv("OPCUAGONM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OPCUAGONM_SELECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SelectTimeout = d
		}
	}
	if v := os.Getenv("OPCUAGONM_RECV_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RecvBufferSize = n
		}
	}
	if v := os.Getenv("OPCUAGONM_SEND_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SendBufferSize = n
		}
	}
}

// Validate rejects a configuration that would make the server unusable.
func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("config: listen_address must not be empty")
	}
	if c.SelectTimeout <= 0 {
		return errors.New("config: select_timeout must be positive")
	}
	if c.RecvBufferSize <= 0 {
		return errors.New("config: recv_buffer_size must be positive")
	}
	if c.SendBufferSize <= 0 {
		return errors.New("config: send_buffer_size must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
