package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/types"
)

const testAdmin = types.Principal("4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := CreateStore(&StoreConfig{Type: MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	return stores
}

func TestVaultStoreCreateAndGet(t *testing.T) {
	stores := newTestStores(t)
	v := &types.Vault{ID: types.NewVaultID(), Admin: testAdmin, Name: "treasury", TotalBalance: 0}

	require.NoError(t, stores.Vaults.Create(v))

	got, err := stores.Vaults.GetByID(v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	ok, err := stores.Vaults.ExistsByID(v.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVaultStoreCreateRejectsExisting(t *testing.T) {
	stores := newTestStores(t)
	v := &types.Vault{ID: types.NewVaultID(), Admin: testAdmin, Name: "treasury"}
	require.NoError(t, stores.Vaults.Create(v))

	clash := &types.Vault{ID: v.ID, Admin: "someone-else", Name: "hijack", TotalBalance: 99}
	assert.ErrorIs(t, stores.Vaults.Create(clash), ErrVaultExisted)

	got, err := stores.Vaults.GetByID(v.ID)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, got.Admin)
	assert.Equal(t, uint64(0), got.TotalBalance)
}

func TestVaultStoreMissing(t *testing.T) {
	stores := newTestStores(t)

	got, err := stores.Vaults.GetByID(types.NewVaultID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestVaultStoreBatchIsInvisibleUntilWrite(t *testing.T) {
	stores := newTestStores(t)
	v := &types.Vault{ID: types.NewVaultID(), Admin: testAdmin, Name: "treasury"}
	require.NoError(t, stores.Vaults.Create(v))

	updated := v.Clone()
	updated.TotalBalance = math.MaxUint64

	batch := stores.Provider.Batch()
	require.NoError(t, stores.Vaults.StoreInBatch(batch, updated))

	got, err := stores.Vaults.GetByID(v.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.TotalBalance)

	require.NoError(t, batch.Write())
	got, err = stores.Vaults.GetByID(v.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got.TotalBalance)
}

func TestVaultStoreGetAll(t *testing.T) {
	stores := newTestStores(t)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, stores.Vaults.Create(&types.Vault{ID: types.NewVaultID(), Admin: testAdmin, Name: name}))
	}
	// holdings share the provider but must not show up as vaults
	require.NoError(t, stores.Holdings.Store(types.NewHolding(testAdmin)))

	all, err := stores.Vaults.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

type plainProvider struct{ db.DatabaseProvider }

func TestVaultStoreGetAllNeedsIterable(t *testing.T) {
	stores := newTestStores(t)
	vs, err := NewGenericVaultStore(plainProvider{stores.Provider})
	require.NoError(t, err)

	_, err = vs.GetAll()
	assert.ErrorIs(t, err, ErrNotIterable)
}

func TestHoldingStoreRoundTrip(t *testing.T) {
	stores := newTestStores(t)
	h := &types.Holding{Owner: testAdmin, Balance: new(uint256.Int).Lsh(uint256.NewInt(1), 100)}

	require.NoError(t, stores.Holdings.Store(h))
	got, err := stores.Holdings.GetByOwner(testAdmin)
	require.NoError(t, err)
	assert.Equal(t, h.Owner, got.Owner)
	assert.Equal(t, 0, h.Balance.Cmp(got.Balance))

	missing, err := stores.Holdings.GetByOwner("nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDecodeJSONFallback(t *testing.T) {
	id := types.NewVaultID()
	raw := []byte(`{"id":"` + id.String() + `","admin":"` + string(testAdmin) + `","name":"legacy","total_balance":42}`)

	v, err := decodeVault(raw)
	require.NoError(t, err)
	assert.Equal(t, id, v.ID)
	assert.Equal(t, "legacy", v.Name)
	assert.Equal(t, uint64(42), v.TotalBalance)

	h, err := decodeHolding([]byte(`{"owner":"` + string(testAdmin) + `","balance":"1000"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), h.Balance.Uint64())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeVault([]byte{0x0a, 0xff})
	assert.Error(t, err)

	_, err = decodeVault(encodeHolding(types.NewHolding(testAdmin)))
	assert.Error(t, err, "a holding is not a vault")
}

func TestStoreConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultStoreConfig().Validate())
	assert.NoError(t, (&StoreConfig{Type: MemoryStoreType}).Validate())
	assert.Error(t, (&StoreConfig{}).Validate())
	assert.Error(t, (&StoreConfig{Type: LevelDBStoreType}).Validate())
	assert.Error(t, (&StoreConfig{Type: RedisStoreType}).Validate())
	assert.NoError(t, (&StoreConfig{Type: RocksDBStoreType, Directory: "x"}).Validate())
	assert.Error(t, (&StoreConfig{Type: RocksDBStoreType}).Validate())
	assert.NoError(t, (&StoreConfig{Type: BoltStoreType, Directory: "x"}).Validate())
	assert.Error(t, (&StoreConfig{Type: "badger", Directory: "x"}).Validate())
}

func TestCreateStoreOnBolt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	stores, err := CreateStore(&StoreConfig{Type: BoltStoreType, Directory: dir})
	require.NoError(t, err)

	v := &types.Vault{ID: types.NewVaultID(), Admin: testAdmin, Name: "bolt", TotalBalance: 9}
	require.NoError(t, stores.Vaults.Create(v))
	require.NoError(t, stores.Close())

	stores, err = CreateStore(&StoreConfig{Type: BoltStoreType, Directory: dir})
	require.NoError(t, err)
	defer stores.Close()
	got, err := stores.Vaults.GetByID(v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	all, err := stores.Vaults.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
