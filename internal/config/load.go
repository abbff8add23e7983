package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	mu      sync.RWMutex
	current *Config
)

// Init initializes the configuration subsystem. It searches for a config
// file in priority order:
//  1. $AMP_CONFIG_DIR
//  2. ~/.config/amp/
//  3. the current working directory
//
// A missing config file is not an error; defaults apply. A present but
// invalid config file is.
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("AMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if envPath := os.Getenv("AMP_CONFIG_DIR"); envPath != "" {
		viper.AddConfigPath(envPath)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		viper.AddConfigPath(filepath.Join(home, ".config", "amp"))
	}
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file; %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config; %w", err)
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration; %w", err)
	}

	mu.Lock()
	current = cfg
	mu.Unlock()

	return nil
}

// Get returns the currently loaded configuration. It panics if Init has not
// been called; callers own the lifecycle and must call Init at startup.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		panic("config: Get called before Init")
	}
	return current
}

// Set overrides the active configuration. Intended for tests.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}
