// Package nodeconfig provides the YAML sidecar configuration file that
// persists across restarts: data directory, the miner's wallet alias,
// known peer bootstrap list, and logging level. Runtime consensus
// parameters (difficulty, reward, etc.) come from package config's
// environment variables instead — this sidecar only holds what a node
// operator would reasonably want to edit by hand and have survive a
// restart.
package nodeconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the node's persisted sidecar settings.
type Config struct {
	// DataDir is the directory holding the sqlite stores.
	DataDir string `yaml:"data_dir"`

	// MinerAlias is the wallet alias that receives mining rewards.
	MinerAlias string `yaml:"miner_alias"`

	// InitialPeers seeds the gossip peer set on first run.
	InitialPeers []string `yaml:"initial_peers"`

	// Logging holds logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "~/.pqchain",
		MinerAlias:   "Miner_Node_Wallet",
		InitialPeers: []string{},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigFileName is the default sidecar file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads the sidecar from dataDir, creating one with default
// values if it doesn't exist yet.
func LoadConfig(dataDir string) (*Config, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.DataDir = dataDir
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := []byte("# pqchain node configuration\n# generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ConfigPath returns the full path to the sidecar file for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
