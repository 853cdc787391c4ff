package custody

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/holiman/uint256"

	"github.com/mezonai/vault/config"
	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/lock"
	"github.com/mezonai/vault/store"
	"github.com/mezonai/vault/types"
)

func setupLedger(t *testing.T) (*Ledger, *store.Stores) {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	if err != nil {
		t.Fatalf("failed to open provider: %v", err)
	}
	stores, err := store.CreateStoreWithProvider(provider)
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })
	return NewLedger(stores.Holdings, db.NewDBTxManager(provider), nil), stores
}

func principalFor(seed string) types.Principal {
	return types.VaultPrincipal(types.VaultID(uuidFromSeed(seed)))
}

// uuidFromSeed gives tests stable, distinct addresses without key generation
func uuidFromSeed(seed string) [16]byte {
	var id [16]byte
	copy(id[:], seed)
	return id
}

func mustBalance(t *testing.T, l *Ledger, owner types.Principal) uint64 {
	t.Helper()
	bal, err := l.Balance(owner)
	if err != nil {
		t.Fatalf("Balance(%s) failed: %v", owner, err)
	}
	return bal.Uint64()
}

func TestTransfer(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	alice, bob := principalFor("alice"), principalFor("bob")

	if err := l.Fund(ctx, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	err := l.Transfer(ctx, TransferRequest{From: alice, To: bob, Authority: alice, Amount: 30}, nil)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if got := mustBalance(t, l, alice); got != 70 {
		t.Errorf("alice balance = %d, want 70", got)
	}
	if got := mustBalance(t, l, bob); got != 30 {
		t.Errorf("bob balance = %d, want 30", got)
	}
}

func TestTransferRejections(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	alice, bob := principalFor("alice"), principalFor("bob")
	if err := l.Fund(ctx, alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	tests := []struct {
		name    string
		req     TransferRequest
		wantErr error
	}{
		{"wrong authority", TransferRequest{From: alice, To: bob, Authority: bob, Amount: 1}, ErrUnauthorizedTransfer},
		{"invalid recipient", TransferRequest{From: alice, To: "bogus", Authority: alice, Amount: 1}, ErrInvalidOwner},
		{"missing holding", TransferRequest{From: bob, To: alice, Authority: bob, Amount: 0}, ErrHoldingNotFound},
		{"insufficient funds", TransferRequest{From: alice, To: bob, Authority: alice, Amount: 11}, ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Transfer(ctx, tt.req, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Transfer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := mustBalance(t, l, alice); got != 10 {
		t.Errorf("alice balance changed to %d", got)
	}
	if holding, _ := l.GetHolding(bob); holding != nil {
		t.Errorf("bob holding should not exist, got %+v", holding)
	}
}

func TestTransferOverflow(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	alice, bob := principalFor("alice"), principalFor("bob")

	full := new(uint256.Int).SetAllOne()
	if err := l.Fund(ctx, bob, full); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if err := l.Fund(ctx, alice, uint256.NewInt(1)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	err := l.Transfer(ctx, TransferRequest{From: alice, To: bob, Authority: alice, Amount: 1}, nil)
	if !errors.Is(err, ErrHoldingOverflow) {
		t.Fatalf("expected ErrHoldingOverflow, got %v", err)
	}
	if got := mustBalance(t, l, alice); got != 1 {
		t.Errorf("alice balance = %d, want 1", got)
	}
	if err := l.Fund(ctx, bob, uint256.NewInt(1)); !errors.Is(err, ErrHoldingOverflow) {
		t.Errorf("expected Fund to overflow, got %v", err)
	}
}

func TestSelfTransfer(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	alice := principalFor("alice")
	if err := l.Fund(ctx, alice, uint256.NewInt(5)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	if err := l.Transfer(ctx, TransferRequest{From: alice, To: alice, Authority: alice, Amount: 5}, nil); err != nil {
		t.Fatalf("self transfer failed: %v", err)
	}
	if got := mustBalance(t, l, alice); got != 5 {
		t.Errorf("alice balance = %d, want 5", got)
	}
}

func TestCommitIsAtomicWithTransfer(t *testing.T) {
	l, stores := setupLedger(t)
	ctx := context.Background()
	alice, bob := principalFor("alice"), principalFor("bob")
	if err := l.Fund(ctx, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	vault := &types.Vault{ID: types.NewVaultID(), Admin: alice, Name: "staged", TotalBalance: 40}
	err := l.Transfer(ctx, TransferRequest{From: alice, To: bob, Authority: alice, Amount: 40}, func(batch db.DatabaseBatch) error {
		return stores.Vaults.StoreInBatch(batch, vault)
	})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	stored, err := stores.Vaults.GetByID(vault.ID)
	if err != nil || stored == nil {
		t.Fatalf("staged vault not written: %v", err)
	}

	failing := errors.New("record rejected")
	other := &types.Vault{ID: types.NewVaultID(), Admin: alice, Name: "discarded"}
	err = l.Transfer(ctx, TransferRequest{From: alice, To: bob, Authority: alice, Amount: 10}, func(batch db.DatabaseBatch) error {
		if err := stores.Vaults.StoreInBatch(batch, other); err != nil {
			return err
		}
		return failing
	})
	if !errors.Is(err, failing) || !IsCommitError(err) {
		t.Fatalf("expected commit error wrapping %v, got %v", failing, err)
	}
	if got := mustBalance(t, l, alice); got != 60 {
		t.Errorf("alice balance = %d, want 60", got)
	}
	if got := mustBalance(t, l, bob); got != 40 {
		t.Errorf("bob balance = %d, want 40", got)
	}
	if exists, _ := stores.Vaults.ExistsByID(other.ID); exists {
		t.Error("vault staged by a failed commit was written")
	}
}

func TestFundFromGenesis(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	alice, bob := principalFor("alice"), principalFor("bob")

	holdings := []config.GenesisHolding{
		{Address: string(alice), Amount: uint256.NewInt(1_000)},
		{Address: string(bob), Amount: uint256.NewInt(2_000)},
	}
	if err := l.FundFromGenesis(ctx, holdings); err != nil {
		t.Fatalf("FundFromGenesis failed: %v", err)
	}
	if got := mustBalance(t, l, alice); got != 1_000 {
		t.Errorf("alice balance = %d, want 1000", got)
	}
	if got := mustBalance(t, l, bob); got != 2_000 {
		t.Errorf("bob balance = %d, want 2000", got)
	}

	err := l.FundFromGenesis(ctx, []config.GenesisHolding{{Address: "bad", Amount: uint256.NewInt(1)}})
	if !errors.Is(err, ErrInvalidOwner) {
		t.Errorf("expected ErrInvalidOwner, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	l, _ := setupLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alice := principalFor("alice")
	if err := l.Fund(ctx, alice, uint256.NewInt(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Fund error = %v, want context.Canceled", err)
	}
	err := l.Transfer(ctx, TransferRequest{From: alice, To: alice, Authority: alice}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Transfer error = %v, want context.Canceled", err)
	}
}

// redisLedger is one process's view of a store shared through redis
func redisLedger(t *testing.T, addr string) *Ledger {
	t.Helper()
	provider, err := db.NewRedisProvider(addr, 0)
	if err != nil {
		t.Fatalf("failed to open redis provider: %v", err)
	}
	stores, err := store.CreateStoreWithProvider(provider)
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	locker := lock.NewRedisLocker(provider.Client(), lock.Config{Type: lock.TypeRedis, ExpiryMs: 5_000, Tries: 5_000, RetryDelayMs: 1})
	return NewLedger(stores.Holdings, db.NewDBTxManager(provider), locker)
}

func TestTransfersAcrossProcessesConserveValue(t *testing.T) {
	mr := miniredis.RunT(t)
	first, second := redisLedger(t, mr.Addr()), redisLedger(t, mr.Addr())
	ctx := context.Background()
	src, vaultA, vaultB := principalFor("src"), principalFor("vault-a"), principalFor("vault-b")

	if err := first.Fund(ctx, src, uint256.NewInt(400)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	const workers, perWorker = 4, 25
	var failed atomic.Int32
	var wg sync.WaitGroup
	for _, target := range []struct {
		ledger *Ledger
		to     types.Principal
	}{{first, vaultA}, {second, vaultB}} {
		target := target
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					req := TransferRequest{From: src, To: target.to, Authority: src, Amount: 1}
					if err := target.ledger.Transfer(ctx, req, nil); err != nil {
						failed.Add(1)
						t.Errorf("transfer to %s failed: %v", target.to, err)
						return
					}
				}
			}()
		}
	}
	wg.Wait()
	if failed.Load() > 0 {
		t.FailNow()
	}

	srcBal, aBal, bBal := mustBalance(t, first, src), mustBalance(t, second, vaultA), mustBalance(t, first, vaultB)
	if sum := srcBal + aBal + bBal; sum != 400 {
		t.Fatalf("value not conserved: src=%d vaultA=%d vaultB=%d sum=%d, funded 400", srcBal, aBal, bBal, sum)
	}
	if srcBal != 200 || aBal != 100 || bBal != 100 {
		t.Errorf("balances src=%d vaultA=%d vaultB=%d, want 200/100/100", srcBal, aBal, bBal)
	}
}

// lostLocker runs fn as if its lock expired partway through
type lostLocker struct{}

func (lostLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithCancelCause(ctx)
	cancel(lock.ErrLockLost)
	return fn(lockCtx)
}

func TestTransferDiscardedWhenHoldingLockIsLost(t *testing.T) {
	provider, err := db.NewMemLevelDBProvider()
	if err != nil {
		t.Fatalf("failed to open provider: %v", err)
	}
	stores, err := store.CreateStoreWithProvider(provider)
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	ctx := context.Background()
	alice, bob := principalFor("alice"), principalFor("bob")
	if err := NewLedger(stores.Holdings, db.NewDBTxManager(provider), nil).Fund(ctx, alice, uint256.NewInt(50)); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}

	l := NewLedger(stores.Holdings, db.NewDBTxManager(provider), lostLocker{})
	committed := false
	err = l.Transfer(ctx, TransferRequest{From: alice, To: bob, Authority: alice, Amount: 20}, func(db.DatabaseBatch) error {
		committed = true
		return nil
	})
	if !errors.Is(err, lock.ErrLockLost) {
		t.Fatalf("Transfer error = %v, want ErrLockLost", err)
	}
	if !committed {
		t.Error("commit should have been staged before the lost lock was noticed")
	}
	if got := mustBalance(t, l, alice); got != 50 {
		t.Errorf("alice balance = %d, want 50", got)
	}
	if got := mustBalance(t, l, bob); got != 0 {
		t.Errorf("bob balance = %d, want 0", got)
	}
}
