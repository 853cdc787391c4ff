package db

import (
	"context"
	"fmt"

	"github.com/mezonai/vault/logx"
)

// DBTxManager commits a custody transfer as one batch: the updated holdings
// and whatever the caller stages alongside them, typically the vault record
// whose balance mirrors the transfer. Either every write lands or none does.
type DBTxManager struct {
	provider DatabaseProvider
}

func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch stages writes through fn and commits them if fn succeeds and ctx
// is still live. ctx is the lock context of the holdings being written, so a
// lock lost while fn ran discards the batch instead of committing it.
func (tm *DBTxManager) WithBatch(ctx context.Context, fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer func() {
		if err := batch.Close(); err != nil {
			logx.Error("TX_MANAGER", "Failed to close batch:", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return fmt.Errorf("batch aborted: %w", err)
	}
	if err := context.Cause(ctx); err != nil {
		batch.Reset()
		return fmt.Errorf("batch discarded: %w", err)
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("batch write failed: %w", err)
	}
	return nil
}
