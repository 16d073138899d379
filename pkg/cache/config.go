package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config carries every tunable of the cache engine. Zero values are filled
// in from defaults by Validate, so hosts can set only what they care about.
type Config struct {
	// Memory tier bounds.
	MaxEntries  int `yaml:"max_entries"`
	MaxMemoryMB int `yaml:"max_memory_mb"`

	// Compression policy.
	CompressionThresholdBytes int     `yaml:"compression_threshold_bytes"`
	CompressionMinRatio       float64 `yaml:"compression_min_ratio"`

	// Entries at or below this size are also kept in the memory tier;
	// larger values go to the remote tier only.
	SmallObjectThresholdBytes int64 `yaml:"small_object_threshold_bytes"`

	// Remote tier failure isolation.
	CircuitFailureThreshold uint32        `yaml:"circuit_failure_threshold"`
	CircuitRecoveryTimeout  time.Duration `yaml:"circuit_recovery_timeout"`

	// Remote tier concurrency bound.
	RemoteWorkers int `yaml:"remote_workers"`

	// Background loop intervals.
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	WarmInterval    time.Duration `yaml:"warm_interval"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries:                1000,
		MaxMemoryMB:               100,
		CompressionThresholdBytes: 1024,
		CompressionMinRatio:       1.2,
		SmallObjectThresholdBytes: 100 * 1024,
		CircuitFailureThreshold:   5,
		CircuitRecoveryTimeout:    60 * time.Second,
		RemoteWorkers:             4,
		MetricsInterval:           60 * time.Second,
		WarmInterval:              300 * time.Second,
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv applies STORYCACHE_* environment overrides.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("STORYCACHE_MAX_ENTRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxEntries = n
		}
	}
	if val := os.Getenv("STORYCACHE_MAX_MEMORY_MB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxMemoryMB = n
		}
	}
	if val := os.Getenv("STORYCACHE_COMPRESSION_THRESHOLD_BYTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.CompressionThresholdBytes = n
		}
	}
	if val := os.Getenv("STORYCACHE_SMALL_OBJECT_THRESHOLD_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.SmallObjectThresholdBytes = n
		}
	}
	if val := os.Getenv("STORYCACHE_CIRCUIT_FAILURE_THRESHOLD"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.CircuitFailureThreshold = uint32(n)
		}
	}
	if val := os.Getenv("STORYCACHE_CIRCUIT_RECOVERY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.CircuitRecoveryTimeout = d
		}
	}
	if val := os.Getenv("STORYCACHE_REMOTE_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.RemoteWorkers = n
		}
	}
	if val := os.Getenv("STORYCACHE_METRICS_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.MetricsInterval = d
		}
	}
	if val := os.Getenv("STORYCACHE_WARM_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.WarmInterval = d
		}
	}
}

// Validate fills unset fields from defaults and rejects inconsistent values.
func (c *Config) Validate() error {
	defaults := DefaultConfig()

	if c.MaxEntries == 0 {
		c.MaxEntries = defaults.MaxEntries
	}
	if c.MaxMemoryMB == 0 {
		c.MaxMemoryMB = defaults.MaxMemoryMB
	}
	if c.CompressionThresholdBytes == 0 {
		c.CompressionThresholdBytes = defaults.CompressionThresholdBytes
	}
	if c.CompressionMinRatio == 0 {
		c.CompressionMinRatio = defaults.CompressionMinRatio
	}
	if c.SmallObjectThresholdBytes == 0 {
		c.SmallObjectThresholdBytes = defaults.SmallObjectThresholdBytes
	}
	if c.CircuitFailureThreshold == 0 {
		c.CircuitFailureThreshold = defaults.CircuitFailureThreshold
	}
	if c.CircuitRecoveryTimeout == 0 {
		c.CircuitRecoveryTimeout = defaults.CircuitRecoveryTimeout
	}
	if c.RemoteWorkers == 0 {
		c.RemoteWorkers = defaults.RemoteWorkers
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = defaults.MetricsInterval
	}
	if c.WarmInterval == 0 {
		c.WarmInterval = defaults.WarmInterval
	}

	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries must be positive, got %d", c.MaxEntries)
	}
	if c.MaxMemoryMB < 0 {
		return fmt.Errorf("max_memory_mb must be positive, got %d", c.MaxMemoryMB)
	}
	if c.CompressionMinRatio < 1.0 {
		return fmt.Errorf("compression_min_ratio must be at least 1.0, got %f", c.CompressionMinRatio)
	}
	if c.RemoteWorkers < 0 {
		return fmt.Errorf("remote_workers must be positive, got %d", c.RemoteWorkers)
	}
	if c.SmallObjectThresholdBytes > int64(c.MaxMemoryMB)*1024*1024 {
		return fmt.Errorf("small_object_threshold_bytes %d exceeds the memory budget", c.SmallObjectThresholdBytes)
	}

	return nil
}

// MaxMemoryBytes returns the memory budget in bytes.
func (c *Config) MaxMemoryBytes() int64 {
	return int64(c.MaxMemoryMB) * 1024 * 1024
}
