package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemProvider(t *testing.T) *LevelDBProvider {
	t.Helper()
	p, err := NewMemLevelDBProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestLevelDBProviderCRUD(t *testing.T) {
	p := newMemProvider(t)

	v, err := p.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, p.Put([]byte("k"), []byte("v")))
	ok, err := p.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = p.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, p.Delete([]byte("k")))
	ok, err = p.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLevelDBProviderOnDisk(t *testing.T) {
	dir := t.TempDir()

	p, err := NewLevelDBProvider(dir)
	require.NoError(t, err)
	require.NoError(t, p.Put([]byte("persist"), []byte("yes")))
	require.NoError(t, p.Close())
	// second close is a no-op
	require.NoError(t, p.Close())

	reopened, err := NewLevelDBProvider(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get([]byte("persist"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), v)
}

func TestLevelDBIteratePrefix(t *testing.T) {
	p := newMemProvider(t)
	require.NoError(t, p.Put([]byte("vault:a"), []byte("1")))
	require.NoError(t, p.Put([]byte("vault:b"), []byte("2")))
	require.NoError(t, p.Put([]byte("holding:a"), []byte("3")))

	seen := map[string]string{}
	err := p.IteratePrefix([]byte("vault:"), func(key, value []byte) bool {
		seen[string(key)] = string(value)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vault:a": "1", "vault:b": "2"}, seen)

	count := 0
	err = p.IteratePrefix([]byte("vault:"), func(key, value []byte) bool {
		count++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDBTxManagerCommitAndDiscard(t *testing.T) {
	p := newMemProvider(t)
	tm := NewDBTxManager(p)

	err := tm.WithBatch(context.Background(), func(batch DatabaseBatch) error {
		batch.Put([]byte("a"), []byte("1"))
		batch.Put([]byte("b"), []byte("2"))
		return nil
	})
	require.NoError(t, err)

	v, err := p.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	boom := errors.New("boom")
	err = tm.WithBatch(context.Background(), func(batch DatabaseBatch) error {
		batch.Put([]byte("c"), []byte("3"))
		batch.Delete([]byte("a"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := p.Has([]byte("c"))
	require.NoError(t, err)
	assert.False(t, ok, "discarded batch must not write")
	ok, err = p.Has([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok, "discarded batch must not delete")
}

func TestDBTxManagerDiscardsWhenContextIsDone(t *testing.T) {
	p := newMemProvider(t)
	tm := NewDBTxManager(p)

	lost := errors.New("lock lost")
	ctx, cancel := context.WithCancelCause(context.Background())
	err := tm.WithBatch(ctx, func(batch DatabaseBatch) error {
		batch.Put([]byte("holding:a"), []byte("1"))
		cancel(lost)
		return nil
	})
	require.ErrorIs(t, err, lost)

	ok, err := p.Has([]byte("holding:a"))
	require.NoError(t, err)
	assert.False(t, ok, "a batch whose context ended must not write")
}
