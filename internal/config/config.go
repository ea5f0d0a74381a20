package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration
type Config struct {
	App       AppConfig       `toml:"app"`
	Chat      ChatConfig      `toml:"chat"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
	Reconnect ReconnectConfig `toml:"reconnect"`
	REST      RESTConfig      `toml:"rest"`
	Logging   LoggingConfig   `toml:"logging"`
}

// AppConfig identifies the application account on the platform
type AppConfig struct {
	ID int `toml:"id"`
}

// ChatConfig contains the real-time endpoint settings
type ChatConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Domain   string `toml:"domain"`
	Resource string `toml:"resource"`
}

// TimeoutsConfig holds the protocol timeouts, in milliseconds
type TimeoutsConfig struct {
	LoginMS   int `toml:"login_ms"`
	RequestMS int `toml:"request_ms"`
	SendMS    int `toml:"send_ms"`
}

// ReconnectConfig controls automatic reconnection after an unexpected drop
type ReconnectConfig struct {
	Enabled     bool `toml:"enabled"`
	BaseDelayMS int  `toml:"base_delay_ms"`
	MaxDelayMS  int  `toml:"max_delay_ms"`
	MaxAttempts int  `toml:"max_attempts"`
}

// RESTConfig points at the out-of-band persistence store
type RESTConfig struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

// DefaultConfig returns the default configuration. The timeout defaults
// mirror the platform constants: 10 s login, 1 s request round trip.
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			Port:     5222,
			Resource: "quickchat",
		},
		Timeouts: TimeoutsConfig{
			LoginMS:   10000,
			RequestMS: 1000,
			SendMS:    1500,
		},
		Reconnect: ReconnectConfig{
			Enabled:     true,
			BaseDelayMS: 1000,
			MaxDelayMS:  30000,
			MaxAttempts: 5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Paths holds the XDG-compliant paths for the application
type Paths struct {
	ConfigDir string
	DataDir   string
}

// GetPaths returns XDG-compliant paths for the application
func GetPaths() (*Paths, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	configDir = filepath.Join(configDir, "quickchat")

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	dataDir = filepath.Join(dataDir, "quickchat")

	return &Paths{ConfigDir: configDir, DataDir: dataDir}, nil
}

// Load loads the configuration from the default config file location
func Load() (*Config, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(paths.ConfigDir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Logging.File = filepath.Join(paths.DataDir, "quickchat.log")
		return cfg, nil
	}

	return LoadFile(configPath)
}

// LoadFile loads the configuration from a specific file, applying defaults
// for anything the file leaves unset
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Chat.Domain == "" {
		cfg.Chat.Domain = cfg.Chat.Host
	}
	return cfg, nil
}
