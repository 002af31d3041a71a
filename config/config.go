package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "relay_config.json"
)

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if len(cfg.LedgerRPCURLs) == 0 {
		cfg.LedgerRPCURLs = []string{"http://localhost:8545"}
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 31337
	}
	if cfg.ContentStoreURL == "" {
		cfg.ContentStoreURL = "127.0.0.1:5001"
	}
	if cfg.ContentFetchTimeoutSeconds == 0 {
		cfg.ContentFetchTimeoutSeconds = 15
	}
	if cfg.InclusionTimeoutSeconds == 0 {
		cfg.InclusionTimeoutSeconds = 90
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.ExpirySweepIntervalSeconds == 0 {
		cfg.ExpirySweepIntervalSeconds = 3600
	}
	if cfg.DeclineRetentionSeconds == 0 {
		cfg.DeclineRetentionSeconds = 3 * 24 * 3600
	}
	if cfg.DBFileName == "" {
		cfg.DBFileName = "relay_data.db"
	}

	return nil
}

// Save writes the given config to <basePath>/config/relay_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/relay_config.json, applies
// defaults, and overlays secret material from the environment.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, configSubdir, configFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// The invocation's home wins over whatever was persisted.
	cfg.Home = basePath
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	cfg.applyEnvSecrets()
	return cfg, nil
}

// DefaultConfig returns a config populated with defaults, used by the
// init-config command.
func DefaultConfig(home string) *Config {
	cfg := &Config{
		LogLevel:  1,
		LogFormat: "console",
		Home:      home,
	}
	_ = validateConfig(cfg)
	return cfg
}

// applyEnvSecrets reads key material from the environment. Secrets are never
// persisted in the config file.
func (c *Config) applyEnvSecrets() {
	if v := os.Getenv("RELAY_ADMIN_KEY"); v != "" {
		c.RelayAdminKeyHex = v
	}
	if v := os.Getenv("VAULT_PASSPHRASE"); v != "" {
		c.VaultPassphrase = v
	}
}
