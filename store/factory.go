package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezonai/vault/db"
)

// BoltFileName is the bbolt file created inside StoreConfig.Directory
const BoltFileName = "vault.db"

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// MemoryStoreType uses LevelDB over in-memory storage; data is lost on close
	MemoryStoreType StoreType = "memory"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// RocksDBStoreType needs a binary built with -tags rocksdb
	RocksDBStoreType StoreType = "rocksdb"

	// BoltStoreType keeps everything in a single bbolt file inside Directory
	BoltStoreType StoreType = "bolt"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `ini:"type" yaml:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `ini:"directory" yaml:"directory"`

	// RedisAddr and RedisDB select the Redis server for RedisStoreType
	RedisAddr string `ini:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `ini:"redis_db" yaml:"redis_db"`
}

// DefaultStoreConfig stores data in ./data with LevelDB
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Type:      LevelDBStoreType,
		Directory: "./data",
		RedisAddr: "localhost:6379",
	}
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	switch sc.Type {
	case "":
		return fmt.Errorf("store type cannot be empty")
	case LevelDBStoreType, RocksDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	case MemoryStoreType:
		return nil
	case RedisStoreType:
		if sc.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// Stores groups the stores sharing one provider
type Stores struct {
	Provider db.DatabaseProvider
	Vaults   VaultStore
	Holdings HoldingStore
}

// Close closes the shared provider once
func (s *Stores) Close() error {
	return s.Provider.Close()
}

// CreateStore creates store instances on top of a freshly opened provider
func CreateStore(config *StoreConfig) (*Stores, error) {
	provider, err := CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	stores, err := CreateStoreWithProvider(provider)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	return stores, nil
}

// CreateStoreWithProvider creates store instances sharing provider
func CreateStoreWithProvider(provider db.DatabaseProvider) (*Stores, error) {
	vaultStore, err := NewGenericVaultStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault store: %w", err)
	}

	holdingStore, err := NewGenericHoldingStore(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create holding store: %w", err)
	}

	return &Stores{
		Provider: provider,
		Vaults:   vaultStore,
		Holdings: holdingStore,
	}, nil
}

// CreateProvider creates a database provider based on the configuration
func CreateProvider(config *StoreConfig) (db.DatabaseProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		provider db.DatabaseProvider
		err      error
	)
	switch config.Type {
	case LevelDBStoreType:
		provider, err = db.NewLevelDBProvider(config.Directory)

	case MemoryStoreType:
		provider, err = db.NewMemLevelDBProvider()

	case RocksDBStoreType:
		provider, err = db.NewRocksDBProvider(config.Directory)

	case BoltStoreType:
		if err = os.MkdirAll(config.Directory, 0o755); err == nil {
			provider, err = db.NewBoltProvider(filepath.Join(config.Directory, BoltFileName))
		}

	case RedisStoreType:
		provider, err = db.NewRedisProvider(config.RedisAddr, config.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}
