package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const maxWalkDepth = 25

// configNames are the file names searched for when --config is not given.
var configNames = []string{"dqlc.yaml", "dqlc.yml"}

// Config is the dqlc configuration read from dqlc.yaml, DQLC_* environment
// variables and flags, in increasing precedence.
type Config struct {
	Registry      string        `mapstructure:"registry"`
	Dialect       string        `mapstructure:"dialect"`
	Quote         bool          `mapstructure:"quote"`
	DSN           string        `mapstructure:"dsn"`
	Format        string        `mapstructure:"format"`
	LogFormat     string        `mapstructure:"log_format"`
	Verbose       bool          `mapstructure:"verbose"`
	Workers       int           `mapstructure:"workers"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// flagKeys maps configuration keys to the persistent flags overriding them.
var flagKeys = map[string]string{
	"registry":   "registry",
	"dialect":    "dialect",
	"quote":      "quote",
	"dsn":        "dsn",
	"format":     "format",
	"log_format": "log-format",
	"verbose":    "verbose",
	"workers":    "workers",
}

// LoadConfig reads the configuration. It returns the path of the config
// file used, empty if none was found.
func LoadConfig(explicitPath string, flags *pflag.FlagSet) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DQLC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}
	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, path, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry", "")
	v.SetDefault("dialect", "sqlite3")
	v.SetDefault("quote", false)
	v.SetDefault("dsn", "")
	v.SetDefault("format", "text")
	v.SetDefault("log_format", "text")
	v.SetDefault("verbose", false)
	v.SetDefault("workers", 4)
	v.SetDefault("slow_threshold", 100*time.Millisecond)
}

func (c *Config) validate() error {
	if !isValid(c.Format, ValidFormats) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if !isValid(c.LogFormat, ValidFormats) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.LogFormat, ValidFormats)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// findConfigFile returns explicitPath if it exists. Otherwise it walks up
// from the working directory looking for dqlc.yaml, stopping at a .git
// directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	for range maxWalkDepth {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// resolvePath resolves a path of the config file relative to its directory.
func resolvePath(configPath, path string) string {
	if path == "" || configPath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(configPath), path)
}
