// Package config loads ndbridge configuration.
//
// Configuration comes from a single YAML file named by the --config flag
// or the NDBRIDGE_CONFIG environment variable. Fields missing from the file
// keep their Default values.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/born-ml/ndbridge/internal/bridge"
	"github.com/born-ml/ndbridge/internal/ndarray"
	"github.com/born-ml/ndbridge/internal/parallel"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads the config path from.
const EnvVar = "NDBRIDGE_CONFIG"

// Memory backends.
const (
	BackendHeap = "heap"
	BackendMmap = "mmap"
)

// Config is the complete ndbridge configuration.
type Config struct {
	// Bridge configures conversions.
	Bridge BridgeConfig `yaml:"bridge"`

	// Memory configures the array runtime's allocator.
	Memory MemoryConfig `yaml:"memory"`

	// Log configures diagnostics.
	Log LogConfig `yaml:"log"`

	// Stress configures the stress command.
	Stress StressConfig `yaml:"stress"`
}

// BridgeConfig configures conversions.
type BridgeConfig struct {
	// StrictCast rejects 64-bit and unsigned 32-bit arrays whose values do
	// not fit the 32-bit signed fallback.
	// Default: true
	StrictCast bool `yaml:"strict_cast"`

	// AllowND permits matrices with more than two dimensions.
	// Default: true
	AllowND bool `yaml:"allow_nd"`
}

// MemoryConfig configures the array runtime's allocator.
type MemoryConfig struct {
	// Backend is "heap" or "mmap".
	// Default: heap
	Backend string `yaml:"backend"`

	// MmapThreshold is the smallest buffer in bytes served by mmap when
	// Backend is "mmap".
	// Default: 65536
	MmapThreshold int `yaml:"mmap_threshold"`

	// Limit caps the bytes of live array memory. Zero means unlimited.
	Limit int64 `yaml:"limit"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Development selects zap's human-readable development encoder.
	Development bool `yaml:"development"`
}

// StressConfig configures the stress command.
type StressConfig struct {
	// Workers is the number of concurrent converters. Zero uses one per CPU.
	Workers int `yaml:"workers"`

	// Iterations is the number of round trips each worker performs.
	// Default: 1000
	Iterations int `yaml:"iterations"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			StrictCast: true,
			AllowND:    true,
		},
		Memory: MemoryConfig{
			Backend:       BackendHeap,
			MmapThreshold: 64 << 10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Stress: StressConfig{
			Iterations: 1000,
		},
	}
}

// Load loads configuration from the file named by NDBRIDGE_CONFIG, or
// returns Default when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Memory.Backend {
	case BackendHeap, BackendMmap:
	default:
		errs = append(errs, fmt.Errorf("memory.backend must be %q or %q, got %q", BackendHeap, BackendMmap, c.Memory.Backend))
	}
	if c.Memory.MmapThreshold < 0 {
		errs = append(errs, fmt.Errorf("memory.mmap_threshold must not be negative"))
	}
	if c.Memory.Limit < 0 {
		errs = append(errs, fmt.Errorf("memory.limit must not be negative"))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Stress.Workers < 0 {
		errs = append(errs, fmt.Errorf("stress.workers must not be negative"))
	}
	if c.Stress.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("stress.iterations must be positive"))
	}

	return errors.Join(errs...)
}

// RuntimeOptions returns the array runtime options for the memory section.
func (c *Config) RuntimeOptions() []ndarray.Option {
	var opts []ndarray.Option
	if c.Memory.Limit > 0 {
		opts = append(opts, ndarray.WithMemoryLimit(c.Memory.Limit))
	}
	if c.Memory.Backend == BackendMmap {
		opts = append(opts, ndarray.WithMmapThreshold(c.Memory.MmapThreshold))
	}
	return opts
}

// ConverterOptions returns the conversion options for the bridge section.
func (c *Config) ConverterOptions() bridge.Options {
	return bridge.Options{
		StrictCast: c.Bridge.StrictCast,
		AllowND:    c.Bridge.AllowND,
	}
}

// ParallelConfig returns the worker configuration for the stress section.
func (c *Config) ParallelConfig() parallel.Config {
	cfg := parallel.DefaultConfig()
	if c.Stress.Workers > 0 {
		cfg.NumWorkers = c.Stress.Workers
		cfg.Enabled = c.Stress.Workers > 1
	}
	return cfg
}

// NewLogger builds a zap logger for the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
