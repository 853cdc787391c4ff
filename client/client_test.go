package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/custody"
	"github.com/mezonai/vault/db"
	vaulterrors "github.com/mezonai/vault/errors"
	"github.com/mezonai/vault/jsonrpc"
	"github.com/mezonai/vault/service"
	"github.com/mezonai/vault/store"
	"github.com/mezonai/vault/types"
	"github.com/mezonai/vault/vault"
)

func newTestClient(t *testing.T) (*VaultClient, *custody.Ledger) {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	stores, err := store.CreateStoreWithProvider(provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	custodian := custody.NewLedger(stores.Holdings, db.NewDBTxManager(provider), nil)
	server := jsonrpc.NewServer("", vault.NewLedger(stores.Vaults, custodian, nil, nil), custodian, nil, time.Minute)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, custodian
}

func vaultCode(t *testing.T, err error) vaulterrors.VaultErrorCode {
	t.Helper()
	var vaultErr *vaulterrors.VaultError
	require.True(t, errors.As(err, &vaultErr), "expected a VaultError, got %v", err)
	return vaultErr.Code
}

func TestClientConfig(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	c, err := NewClient(Config{Endpoint: "http://localhost:8545"})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "http://localhost:8545", c.cfg.Endpoint)
}

func TestClientVaultLifecycle(t *testing.T) {
	c, custodian := newTestClient(t)
	ctx := context.Background()

	adminAddr, adminKey, err := auth.GenerateKey()
	require.NoError(t, err)
	userAddr, userKey, err := auth.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, custodian.Fund(ctx, userAddr, uint256.NewInt(1000)))

	health, err := c.CheckHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.StatusServing, health.Status)

	created, err := c.Initialize(ctx, adminKey, "payroll")
	require.NoError(t, err)
	assert.Equal(t, adminAddr, created.Admin)
	assert.Equal(t, "payroll", created.Name)
	assert.Zero(t, created.TotalBalance)

	deposited, err := c.Deposit(ctx, userKey, created.ID, 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), deposited.TotalBalance)

	withdrawn, err := c.Withdraw(ctx, adminKey, created.ID, userAddr, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(350), withdrawn.TotalBalance)

	got, err := c.GetVault(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawn, got)

	vaults, err := c.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, vaults, 1)
	assert.Equal(t, created.ID, vaults[0].ID)

	balance, err := c.GetBalance(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(650), balance.Uint64())

	held, err := c.GetBalance(ctx, created.Holding())
	require.NoError(t, err)
	assert.Equal(t, uint64(350), held.Uint64())
}

func TestClientSurfacesVaultErrors(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, adminKey, err := auth.GenerateKey()
	require.NoError(t, err)
	otherAddr, otherKey, err := auth.GenerateKey()
	require.NoError(t, err)

	created, err := c.Initialize(ctx, adminKey, "ops")
	require.NoError(t, err)

	_, err = c.Withdraw(ctx, otherKey, created.ID, otherAddr, 1)
	assert.Equal(t, vaulterrors.ErrCodeUnauthorized, vaultCode(t, err))

	_, err = c.Withdraw(ctx, adminKey, created.ID, otherAddr, 1)
	assert.Equal(t, vaulterrors.ErrCodeInsufficientBalance, vaultCode(t, err))

	_, err = c.Deposit(ctx, otherKey, created.ID, 5)
	assert.Equal(t, vaulterrors.ErrCodeExternalTransferFailed, vaultCode(t, err))

	_, err = c.GetVault(ctx, types.NewVaultID())
	assert.Equal(t, vaulterrors.ErrCodeVaultNotFound, vaultCode(t, err))

	_, err = c.GetBalance(ctx, types.Principal("not-base58-0OIl"))
	assert.Equal(t, vaulterrors.ErrCodeInvalidAddress, vaultCode(t, err))
}

func TestClientStaleClockIsRejected(t *testing.T) {
	c, _ := newTestClient(t)
	c.now = func() time.Time { return time.Now().Add(-time.Hour) }

	_, adminKey, err := auth.GenerateKey()
	require.NoError(t, err)
	_, err = c.Initialize(context.Background(), adminKey, "late")
	assert.Equal(t, vaulterrors.ErrCodeUnauthenticated, vaultCode(t, err))
}
