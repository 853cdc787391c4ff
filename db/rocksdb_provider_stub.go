//go:build !rocksdb

package db

import "errors"

// ErrRocksDBUnavailable is returned when the binary was built without the rocksdb tag
var ErrRocksDBUnavailable = errors.New("RocksDB support not compiled in, build with -tags rocksdb")

func NewRocksDBProvider(directory string) (IterableProvider, error) {
	return nil, ErrRocksDBUnavailable
}
