package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ning0612/drivesync/internal/domain"
	"github.com/Ning0612/drivesync/internal/logger"
)

// Config represents the complete configuration for drivesync
type Config struct {
	// CredentialsFile is the service account key file
	CredentialsFile string `mapstructure:"credentials_file"`

	Drive  DriveConfig  `mapstructure:"drive"`
	Sheets SheetsConfig `mapstructure:"sheets"`
	Log    LogConfig    `mapstructure:"log"`
	State  StateConfig  `mapstructure:"state"`
}

// DriveConfig configures the Drive client
type DriveConfig struct {
	// Endpoint overrides the API base URL, e.g. for an emulator
	Endpoint string `mapstructure:"endpoint"`
	// DefaultParent is the folder new files go to when a record names none
	DefaultParent string `mapstructure:"default_parent"`
}

// SheetsConfig configures the Sheets client
type SheetsConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	// ValueInputOption is used for writes that do not set one (RAW or USER_ENTERED)
	ValueInputOption string `mapstructure:"value_input_option"`
}

// LogConfig configures logging
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// StateConfig configures the operation journal
type StateConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CredentialsFile) == "" {
		return fmt.Errorf("%w: credentials_file is required", domain.ErrConfigInvalid)
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("%w: unknown log level: %q", domain.ErrConfigInvalid, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format: %q", domain.ErrConfigInvalid, c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxAgeDays < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("%w: log rotation limits cannot be negative", domain.ErrConfigInvalid)
	}
	switch c.Sheets.ValueInputOption {
	case "RAW", "USER_ENTERED":
	default:
		return fmt.Errorf("%w: unknown value_input_option: %q", domain.ErrConfigInvalid, c.Sheets.ValueInputOption)
	}
	if c.State.DataDir == "" {
		return fmt.Errorf("%w: state.data_dir cannot be empty", domain.ErrConfigInvalid)
	}
	return nil
}

// LoggerConfig converts the log section into a logger.Config. Logs go to
// stderr, plus the rotated file when one is set.
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.Config{
		Level:   logger.ParseLevel(c.Log.Level),
		Format:  logger.ParseFormat(c.Log.Format),
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr}},
	}
	if c.Log.File != "" {
		cfg.Outputs = append(cfg.Outputs, logger.OutputConfig{Type: logger.OutputFile})
		cfg.File = logger.FileConfig{
			Enabled:    true,
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxAgeDays: c.Log.MaxAgeDays,
			MaxBackups: c.Log.MaxBackups,
			Compress:   c.Log.Compress,
		}
	}
	return cfg
}

// expandPaths expands ~ and environment variables in every path setting
func (c *Config) expandPaths() {
	if c.CredentialsFile != "" {
		c.CredentialsFile = ExpandPath(c.CredentialsFile)
	}
	if c.Log.File != "" {
		c.Log.File = ExpandPath(c.Log.File)
	}
	if c.State.DataDir != "" {
		c.State.DataDir = ExpandPath(c.State.DataDir)
	}
}

// DefaultDataDir returns where the journal lives when none is configured
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "drivesync")
	}
	return ".drivesync"
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	// Expand ~ to home directory
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	// Expand environment variables
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
