package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxChunkSize bounds the chunk size a chunked body may request.
const DefaultMaxChunkSize = 16 << 20

// Config holds server-wide settings. It is usually loaded from YAML:
//
//	addr: ":8080"
//	chunk_size: 4096
//	body_limit: 1048576
//	handler_timeout: 30s
//	rate_limit:
//	  rate: 50
//	  burst: 100
type Config struct {
	Addr              string           `yaml:"addr"`
	ChunkSize         int              `yaml:"chunk_size"`
	MaxChunkSize      int              `yaml:"max_chunk_size"`
	BodyLimit         int64            `yaml:"body_limit"`
	HandlerTimeout    time.Duration    `yaml:"handler_timeout"`
	ReadHeaderTimeout time.Duration    `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration    `yaml:"shutdown_timeout"`
	LogLevel          string           `yaml:"log_level"`
	RateLimit         *RateLimitConfig `yaml:"rate_limit"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ChunkSize:         DefaultChunkSize,
		MaxChunkSize:      DefaultMaxChunkSize,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		LogLevel:          "info",
	}
}

// ParseConfig decodes YAML on top of DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("relay: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("relay: load config: %w", err)
	}
	return ParseConfig(data)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("relay: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxChunkSize < c.ChunkSize {
		return fmt.Errorf("relay: max_chunk_size %d is below chunk_size %d", c.MaxChunkSize, c.ChunkSize)
	}
	if c.BodyLimit < 0 {
		return fmt.Errorf("relay: body_limit must not be negative, got %d", c.BodyLimit)
	}
	if c.RateLimit != nil && c.RateLimit.Rate < 0 {
		return fmt.Errorf("relay: rate_limit.rate must not be negative, got %v", c.RateLimit.Rate)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty value means info.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("relay: log_level: %w", err)
	}
	return lvl, nil
}
