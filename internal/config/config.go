package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "rolo"

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Import  ImportConfig  `mapstructure:"import"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds contact service configuration
type ServerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds local token storage configuration
type StoreConfig struct {
	Path string `mapstructure:"path"` // "" keeps tokens in memory only
}

// ImportConfig holds card import configuration
type ImportConfig struct {
	Concurrency int `mapstructure:"concurrency"` // Parallel creates per batch
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"` // "" logs to stderr
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://127.0.0.1:8000",
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join(defaultDataPath(), "session.db"),
		},
		Import: ImportConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "rolo.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", appName)
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// LoadConfig loads configuration from config.yaml and ROLO_* environment
// variables. Extra search directories are tried before the defaults.
func LoadConfig(dirs ...string) (*Config, error) {
	return load(viper.New(), dirs...)
}

func load(v *viper.Viper, dirs ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(defaultConfigPath())
	v.AddConfigPath(".")

	// ROLO_SERVER_URL overrides server.url
	v.SetEnvPrefix("ROLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults must be registered for AutomaticEnv to see nested keys
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("import.concurrency", cfg.Import.Concurrency)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server.url must start with http:// or https://")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Import.Concurrency < 1 {
		return fmt.Errorf("import.concurrency must be at least 1")
	}
	return nil
}

// SaveServerURL writes the server URL to the user config file
func SaveServerURL(url string) error {
	v := viper.New()
	configPath := defaultConfigPath()
	configFile := filepath.Join(configPath, "config.yaml")

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	v.Set("server.url", strings.TrimRight(url, "/"))

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
