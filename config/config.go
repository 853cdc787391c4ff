package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/vault/lock"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/store"
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	logx.Info("CONFIG", "LoadGenesisConfig called with path: ", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode genesis YAML: %w", err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded genesis config: holdings=%d", len(cfgFile.Config.Holdings)))
	return &cfgFile.Config, nil
}

// LoadNodeConfig reads the [store], [log], [lock] and [rpc] sections from an .ini file.
// A missing file yields the defaults.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg := &NodeConfig{
		Store: store.DefaultStoreConfig(),
		Log:   logx.DefaultLogConfig(),
		Lock:  lock.DefaultConfig(),
		RPC:   DefaultRPCConfig(),
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logx.Warn("CONFIG", "Config file not found, using defaults: ", path)
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	if err := file.Section("store").MapTo(cfg.Store); err != nil {
		return nil, fmt.Errorf("invalid [store] section: %w", err)
	}
	if err := file.Section("log").MapTo(&cfg.Log); err != nil {
		return nil, fmt.Errorf("invalid [log] section: %w", err)
	}
	if err := file.Section("lock").MapTo(&cfg.Lock); err != nil {
		return nil, fmt.Errorf("invalid [lock] section: %w", err)
	}
	if err := file.Section("rpc").MapTo(&cfg.RPC); err != nil {
		return nil, fmt.Errorf("invalid [rpc] section: %w", err)
	}
	return cfg, nil
}
