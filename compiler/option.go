package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/dql"
	"github.com/syssam/dql/query"
)

// ErrInvalidConfig indicates an invalid compiler option.
var ErrInvalidConfig = errors.New("dql: invalid compiler configuration")

// ConfigError represents an invalid option value.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("dql: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("dql: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// Config holds the compiler settings.
type Config struct {
	Logger    *slog.Logger
	Cache     dql.Cache
	CacheTTL  time.Duration
	Workers   int
	KeyLoader query.KeyLoader
}

// Option configures a Compiler.
type Option func(*Config) error

// WithLogger sets the logger compiled statements are reported to.
// Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithCache caches compiled statements. A zero ttl never expires entries.
func WithCache(cache dql.Cache, ttl time.Duration) Option {
	return func(c *Config) error {
		if cache == nil {
			return NewConfigError("Cache", nil, "cache cannot be nil")
		}
		if ttl < 0 {
			return NewConfigError("CacheTTL", ttl, "ttl cannot be negative")
		}
		c.Cache, c.CacheTTL = cache, ttl
		return nil
	}
}

// WithWorkers bounds the number of statements CompileAll compiles at once.
// Default is 4.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return NewConfigError("Workers", n, "need at least one worker")
		}
		c.Workers = n
		return nil
	}
}

// WithKeyLoader sets the loader that executes the record-limiting subquery
// for dialects that cannot nest it. *sql.Driver implements it.
func WithKeyLoader(l query.KeyLoader) Option {
	return func(c *Config) error {
		c.KeyLoader = l
		return nil
	}
}
