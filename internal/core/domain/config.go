package domain

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from strings like
// "100ms" or "5s" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetryConfig tunes the retry wrapper.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   Duration `toml:"base_delay" validate:"gte=0"`
	MaxDelay    Duration `toml:"max_delay" validate:"gte=0"`
}

// RebuildConfig tunes the index rebuild service.
type RebuildConfig struct {
	Workers       int     `toml:"workers" validate:"gte=1,lte=64"`
	BatchesPerSec float64 `toml:"batches_per_sec" validate:"gt=0"`
}

// Config carries the engine's tunable settings.
type Config struct {
	// CacheSize bounds the LRU read caches, in entries.
	CacheSize int `toml:"cache_size" validate:"gte=1,lte=1000000"`

	Retry   RetryConfig   `toml:"retry"`
	Rebuild RebuildConfig `toml:"rebuild"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		CacheSize: 1000,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(100 * time.Millisecond),
			MaxDelay:    Duration(5 * time.Second),
		},
		Rebuild: RebuildConfig{
			Workers:       4,
			BatchesPerSec: 10,
		},
	}
}
