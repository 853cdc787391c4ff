package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/types"
)

var (
	ErrVaultExisted = errors.New("vault existed")
	ErrNotIterable  = errors.New("database provider does not support iteration")
)

type VaultStore interface {
	// Create stores a new vault, returning ErrVaultExisted if its ID is taken
	Create(vault *types.Vault) error
	Store(vault *types.Vault) error
	// StoreInBatch stages the vault into batch; nothing is written until the batch commits
	StoreInBatch(batch db.DatabaseBatch, vault *types.Vault) error
	GetByID(id types.VaultID) (*types.Vault, error)
	ExistsByID(id types.VaultID) (bool, error)
	GetAll() ([]*types.Vault, error)
	MustClose()
}

type GenericVaultStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

func NewGenericVaultStore(dbProvider db.DatabaseProvider) (*GenericVaultStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericVaultStore{
		dbProvider: dbProvider,
	}, nil
}

func (vs *GenericVaultStore) Create(vault *types.Vault) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	key := vs.getDbKey(vault.ID)
	existed, err := vs.dbProvider.Has(key)
	if err != nil {
		return fmt.Errorf("could not check existence of vault: %w", err)
	}
	if existed {
		return ErrVaultExisted
	}

	if err := vs.dbProvider.Put(key, encodeVault(vault)); err != nil {
		return fmt.Errorf("failed to write vault to db: %w", err)
	}
	return nil
}

func (vs *GenericVaultStore) Store(vault *types.Vault) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if err := vs.dbProvider.Put(vs.getDbKey(vault.ID), encodeVault(vault)); err != nil {
		return fmt.Errorf("failed to write vault to db: %w", err)
	}
	return nil
}

func (vs *GenericVaultStore) StoreInBatch(batch db.DatabaseBatch, vault *types.Vault) error {
	if batch == nil {
		return fmt.Errorf("batch cannot be nil")
	}
	batch.Put(vs.getDbKey(vault.ID), encodeVault(vault))
	return nil
}

// GetByID returns vault instance from db, return both nil if not exist
func (vs *GenericVaultStore) GetByID(id types.VaultID) (*types.Vault, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	data, err := vs.dbProvider.Get(vs.getDbKey(id))
	if err != nil {
		return nil, fmt.Errorf("could not get vault %s from db: %w", id, err)
	}

	// Vault doesn't exist
	if data == nil {
		return nil, nil
	}

	return decodeVault(data)
}

func (vs *GenericVaultStore) ExistsByID(id types.VaultID) (bool, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	return vs.dbProvider.Has(vs.getDbKey(id))
}

// GetAll returns every stored vault. It needs an iterable provider.
func (vs *GenericVaultStore) GetAll() ([]*types.Vault, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	iterable, ok := vs.dbProvider.(db.IterableProvider)
	if !ok {
		return nil, ErrNotIterable
	}

	vaults := make([]*types.Vault, 0)
	var decodeErr error
	err := iterable.IteratePrefix([]byte(PrefixVault), func(key, value []byte) bool {
		v, err := decodeVault(value)
		if err != nil {
			decodeErr = fmt.Errorf("vault at key %s: %w", key, err)
			return false
		}
		vaults = append(vaults, v)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate vaults: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return vaults, nil
}

func (vs *GenericVaultStore) MustClose() {
	err := vs.dbProvider.Close()
	if err != nil {
		logx.Error("VAULT_STORE", "Failed to close db provider:", err.Error())
	}
}

func (vs *GenericVaultStore) getDbKey(id types.VaultID) []byte {
	return []byte(PrefixVault + id.String())
}
