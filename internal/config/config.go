// Package config loads scriptorium configuration from file, environment
// and defaults, with hot reload on file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// ConverterConfig holds document-to-image converter settings.
type ConverterConfig struct {
	// DPI is the render resolution passed to pdftoppm.
	DPI int `mapstructure:"dpi" yaml:"dpi"`
	// Workers bounds concurrent page renders; 0 means NumCPU.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Retries is the per-page retry attempt count for transient failures.
	Retries int `mapstructure:"retries" yaml:"retries"`
}

// ReconcileConfig holds counter reconciliation settings.
type ReconcileConfig struct {
	// IntervalMinutes between periodic sweeps; 0 disables the loop
	// (reconciliation stays available on demand via the admin endpoint).
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"`
}

// Config is the full scriptorium configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Converter ConverterConfig `mapstructure:"converter" yaml:"converter"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("server", defaults.Server)
	viper.SetDefault("converter", defaults.Converter)
	viper.SetDefault("reconcile", defaults.Reconcile)

	// Environment variables with SCRIPTORIUM_ prefix
	viper.SetEnvPrefix("SCRIPTORIUM")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.scriptorium")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Scriptorium configuration
# Values can also be set via SCRIPTORIUM_* environment variables.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
