//go:build rocksdb

package db

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/linxGnu/grocksdb"
)

// RocksDBProvider implements IterableProvider for RocksDB
type RocksDBProvider struct {
	once sync.Once
	db   *grocksdb.DB
	ro   *grocksdb.ReadOptions
	wo   *grocksdb.WriteOptions
}

// NewRocksDBProvider opens (or creates) a RocksDB database in directory.
// Writes are synced so a committed custody batch survives a crash.
func NewRocksDBProvider(directory string) (IterableProvider, error) {
	opts := grocksdb.NewDefaultOptions()
	defer opts.Destroy()
	opts.SetCreateIfMissing(true)

	rdb, err := grocksdb.OpenDb(opts, directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open RocksDB: %w", err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(true)
	return &RocksDBProvider{
		db: rdb,
		ro: grocksdb.NewDefaultReadOptions(),
		wo: wo,
	}, nil
}

// Get retrieves a value by key, returning nil if the key is absent
func (p *RocksDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(p.ro, key)
	if err != nil {
		return nil, err
	}
	defer value.Free()

	if !value.Exists() {
		return nil, nil
	}
	return append([]byte(nil), value.Data()...), nil
}

func (p *RocksDBProvider) Put(key, value []byte) error {
	return p.db.Put(p.wo, key, value)
}

func (p *RocksDBProvider) Delete(key []byte) error {
	return p.db.Delete(p.wo, key)
}

func (p *RocksDBProvider) Has(key []byte) (bool, error) {
	value, err := p.db.Get(p.ro, key)
	if err != nil {
		return false, err
	}
	defer value.Free()
	return value.Exists(), nil
}

// Close releases the options and the database handle once
func (p *RocksDBProvider) Close() error {
	p.once.Do(func() {
		p.ro.Destroy()
		p.wo.Destroy()
		p.db.Close()
	})
	return nil
}

func (p *RocksDBProvider) Batch() DatabaseBatch {
	return &RocksDBBatch{
		batch:    grocksdb.NewWriteBatch(),
		provider: p,
	}
}

// IteratePrefix walks keys starting with prefix in order until fn returns false
func (p *RocksDBProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	it := p.db.NewIterator(p.ro)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		v := it.Value()
		if !bytes.HasPrefix(k.Data(), prefix) {
			k.Free()
			v.Free()
			break
		}
		key := append([]byte(nil), k.Data()...)
		value := append([]byte(nil), v.Data()...)
		k.Free()
		v.Free()
		if !fn(key, value) {
			break
		}
	}
	return it.Err()
}

// RocksDBBatch implements DatabaseBatch for RocksDB
type RocksDBBatch struct {
	batch    *grocksdb.WriteBatch
	provider *RocksDBProvider
}

func (b *RocksDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *RocksDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *RocksDBBatch) Write() error {
	return b.provider.db.Write(b.provider.wo, b.batch)
}

func (b *RocksDBBatch) Reset() {
	b.batch.Clear()
}

func (b *RocksDBBatch) Close() error {
	b.batch.Destroy()
	return nil
}
