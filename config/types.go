package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/vault/lock"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/store"
)

// GenesisHolding is a custody holding funded when the node is first set up
type GenesisHolding struct {
	Address string       `yaml:"address"`
	Amount  *uint256.Int `yaml:"-"`
}

// UnmarshalYAML reads amount as a decimal string or integer; "_" separators are allowed
func (g *GenesisHolding) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Address string `yaml:"address"`
		Amount  string `yaml:"amount"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return fmt.Errorf("holding %s: %w", raw.Address, err)
	}
	g.Address = raw.Address
	g.Amount = amount
	return nil
}

// GenesisConfig holds the configuration from genesis.yml
type GenesisConfig struct {
	Holdings []GenesisHolding `yaml:"holdings"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Config GenesisConfig `yaml:"config"`
}

// RPCConfig is the [rpc] section read by the serve command
type RPCConfig struct {
	Addr         string        `ini:"addr"`
	MaxClockSkew time.Duration `ini:"max_clock_skew"`
	IPRate       int           `ini:"ip_rate"`     // requests per second per client IP
	SignerRate   int           `ini:"signer_rate"` // requests per second per verified signer
}

func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		Addr:         ":8545",
		MaxClockSkew: 5 * time.Minute,
		IPRate:       50,
		SignerRate:   30,
	}
}

// NodeConfig groups the ini sections of the node config
type NodeConfig struct {
	Store *store.StoreConfig
	Log   logx.LogConfig
	Lock  lock.Config
	RPC   RPCConfig
}

// ParseAmount parses a non-negative decimal amount such as "1_000"
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("could not parse amount %q: %w", s, err)
	}
	return amount, nil
}
