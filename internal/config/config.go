// Package config handles configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the pulse configuration.
type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Logging LoggingConfig `toml:"logging"`
}

// GatewayConfig holds the platform gateway connection settings.
type GatewayConfig struct {
	Address string `toml:"address"`
	Token   string `toml:"token"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.expandPaths()

	return cfg, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if p := os.Getenv("PULSE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "config.toml")
}

// StateDir returns the pulse state directory.
func StateDir() string {
	if p := os.Getenv("PULSE_STATE_DIR"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulse")
}

// LogsDir returns the logs directory.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Address: "http://127.0.0.1:8800",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("PULSE_GATEWAY_ADDR"); addr != "" {
		c.Gateway.Address = addr
	}
	if token := os.Getenv("PULSE_GATEWAY_TOKEN"); token != "" {
		c.Gateway.Token = token
	}
	if level := os.Getenv("PULSE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expand := func(p string) string {
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		if strings.HasPrefix(p, "$HOME/") {
			return filepath.Join(home, p[6:])
		}
		return p
	}

	c.Logging.File = expand(c.Logging.File)
}

// Save writes the config to file.
func (c *Config) Save() error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// EnsureDirs creates necessary directories.
func EnsureDirs() error {
	dirs := []string{
		StateDir(),
		LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}
