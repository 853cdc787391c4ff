package store

import (
	"fmt"
	"sync"

	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/types"
)

type HoldingStore interface {
	Store(holding *types.Holding) error
	// StoreInBatch stages holdings into batch; nothing is written until the batch commits
	StoreInBatch(batch db.DatabaseBatch, holdings ...*types.Holding) error
	GetByOwner(owner types.Principal) (*types.Holding, error)
	MustClose()
}

type GenericHoldingStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

func NewGenericHoldingStore(dbProvider db.DatabaseProvider) (*GenericHoldingStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericHoldingStore{
		dbProvider: dbProvider,
	}, nil
}

func (hs *GenericHoldingStore) Store(holding *types.Holding) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if err := hs.dbProvider.Put(hs.getDbKey(holding.Owner), encodeHolding(holding)); err != nil {
		return fmt.Errorf("failed to write holding to db: %w", err)
	}
	return nil
}

func (hs *GenericHoldingStore) StoreInBatch(batch db.DatabaseBatch, holdings ...*types.Holding) error {
	if batch == nil {
		return fmt.Errorf("batch cannot be nil")
	}
	for _, holding := range holdings {
		batch.Put(hs.getDbKey(holding.Owner), encodeHolding(holding))
	}
	return nil
}

// GetByOwner returns holding instance from db, return both nil if not exist
func (hs *GenericHoldingStore) GetByOwner(owner types.Principal) (*types.Holding, error) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	data, err := hs.dbProvider.Get(hs.getDbKey(owner))
	if err != nil {
		return nil, fmt.Errorf("could not get holding %s from db: %w", owner, err)
	}
	if data == nil {
		return nil, nil
	}

	return decodeHolding(data)
}

func (hs *GenericHoldingStore) MustClose() {
	err := hs.dbProvider.Close()
	if err != nil {
		logx.Error("HOLDING_STORE", "Failed to close db provider:", err.Error())
	}
}

func (hs *GenericHoldingStore) getDbKey(owner types.Principal) []byte {
	return []byte(PrefixHolding + string(owner))
}
