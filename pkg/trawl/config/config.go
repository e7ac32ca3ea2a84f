package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TRAWL_THREADS.
const EnvPrefix = "TRAWL"

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	MaxSize    string            `mapstructure:"max_size"`
	Console    string            `mapstructure:"console"`
	Components map[string]string `mapstructure:"components"`
}

// MaxSizeBytes parses MaxSize (e.g. "10MB"). An empty value yields 0.
func (l LoggingConfig) MaxSizeBytes() (int64, error) {
	if strings.TrimSpace(l.MaxSize) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(l.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid logging.max_size %q: %w", l.MaxSize, err)
	}
	return int64(n), nil
}

// DisplayConfig configures the live progress table.
type DisplayConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// OutputConfig configures result presentation.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Sort   string `mapstructure:"sort"`
	Limit  int    `mapstructure:"limit"`
}

// Config represents the application configuration.
type Config struct {
	DefaultPath string        `mapstructure:"default_path"`
	Threads     int           `mapstructure:"threads"`
	BatchSize   int           `mapstructure:"batch_size"`
	Exclude     []string      `mapstructure:"exclude"`
	Extensions  []string      `mapstructure:"extensions"`
	FirstPerDir bool          `mapstructure:"first_per_dir"`
	Display     DisplayConfig `mapstructure:"display"`
	Output      OutputConfig  `mapstructure:"output"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// NewViper returns a viper instance with trawl's defaults, config search
// paths, and environment binding. Callers may bind flags to it before
// calling Decode.
func NewViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("default_path", DefaultPath)
	v.SetDefault("threads", DefaultThreads)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("exclude", []string{})
	v.SetDefault("extensions", []string{})
	v.SetDefault("first_per_dir", false)

	v.SetDefault("display.enabled", true)
	v.SetDefault("display.interval", DefaultDisplayInterval)

	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("output.sort", DefaultSort)
	v.SetDefault("output.limit", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath
	v.SetDefault("logging.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.components", map[string]string{
		"scheduler": "info",
		"walker":    "warn",
		"pool":      "info",
	})

	return v, nil
}

// Read loads the config file into v. A missing file is not an error.
// When path is non-empty it names the file explicitly.
func Read(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, p := range cfg.Exclude {
		expanded, err := ExpandPath(p)
		if err != nil {
			return nil, err
		}
		cfg.Exclude[i] = expanded
	}
	defaultPath, err := ExpandPath(cfg.DefaultPath)
	if err != nil {
		return nil, err
	}
	cfg.DefaultPath = defaultPath

	return &cfg, nil
}

// Load loads configuration from the default file location and the
// environment.
//
// Config file location: $XDG_CONFIG_HOME/trawl/config.yaml, falling back
// to $HOME/.config/trawl/config.yaml.
func Load() (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	if err := Read(v, ""); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "trawl"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "trawl"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a commented default config file unless one exists.
// It returns the path and whether a file was written.
func WriteDefault() (string, bool, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(DefaultFileContents()), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write default config: %w", err)
	}
	return path, true, nil
}

// DefaultFileContents returns the commented default config file.
func DefaultFileContents() string {
	return fmt.Sprintf(`# trawl configuration

# Directory searched when no path argument is given
default_path: %s

# Worker goroutines (0 = derive from CPU count)
threads: %d

# Directories handed to one worker job
batch_size: %d

# Directories never opened (absolute paths, ~ is expanded)
exclude: []

# Extensions to match (without the dot); empty matches every extension
extensions: []

# Report at most one match per directory
first_per_dir: false

# Live progress table (only drawn when stderr is a terminal)
display:
  enabled: true
  interval: %s

# Result presentation
output:
  # plain, pretty, json, yaml
  format: %s
  # path, size, modified, created
  sort: %s
  # 0 = no limit
  limit: 0

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/trawl/trawl.log)
  path: ""
  max_size: %s
  # Also log to stderr at this level (empty disables)
  console: ""
  # Per-component log levels
  components:
    scheduler: info
    walker: warn
    pool: info
`, DefaultPath, DefaultThreads, DefaultBatchSize, DefaultDisplayInterval,
		DefaultOutputFormat, DefaultSort, DefaultLogMaxSize)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}
