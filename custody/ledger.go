package custody

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/mezonai/vault/config"
	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/lock"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/store"
	"github.com/mezonai/vault/types"
)

var (
	ErrUnauthorizedTransfer = errors.New("authority does not own the source holding")
	ErrHoldingNotFound      = errors.New("holding not found")
	ErrInsufficientFunds    = errors.New("insufficient funds in holding")
	ErrHoldingOverflow      = errors.New("holding balance overflow")
	ErrInvalidOwner         = errors.New("invalid holding owner")
)

// errCommit marks a failure raised by the caller's CommitFunc so it is not mistaken for a custody failure.
type errCommit struct{ err error }

func (e *errCommit) Error() string { return "commit failed: " + e.err.Error() }
func (e *errCommit) Unwrap() error { return e.err }

// IsCommitError reports whether err came from the caller's CommitFunc rather than from custody itself.
func IsCommitError(err error) bool {
	var ce *errCommit
	return errors.As(err, &ce)
}

// Ledger is the bundled Custodian: one single-asset holding per owner.
// Every read-modify-write of a holding runs under that holding's lock, so
// ledgers in different processes may share one store when they share a
// cross-process locker.
type Ledger struct {
	locker       lock.Locker
	holdingStore store.HoldingStore
	txManager    *db.DBTxManager
}

var _ Custodian = (*Ledger)(nil)

// NewLedger builds a custodian over holdingStore. A nil locker serializes in process only.
func NewLedger(holdingStore store.HoldingStore, txManager *db.DBTxManager, locker lock.Locker) *Ledger {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Ledger{
		locker:       locker,
		holdingStore: holdingStore,
		txManager:    txManager,
	}
}

func holdingLockKey(owner types.Principal) string {
	return store.PrefixHolding + string(owner)
}

// withHoldingLocks runs fn holding the lock of every owner, taken in sorted order
func (l *Ledger) withHoldingLocks(ctx context.Context, owners []types.Principal, fn func(ctx context.Context) error) error {
	keys := make([]string, 0, len(owners))
	seen := make(map[string]struct{}, len(owners))
	for _, owner := range owners {
		key := holdingLockKey(owner)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return l.lockAll(ctx, keys, fn)
}

func (l *Ledger) lockAll(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return l.locker.WithLock(ctx, keys[0], func(ctx context.Context) error {
		return l.lockAll(ctx, keys[1:], fn)
	})
}

// Transfer applies req and commit in one batch.
func (l *Ledger) Transfer(ctx context.Context, req TransferRequest, commit CommitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Authority != req.From {
		return ErrUnauthorizedTransfer
	}
	if err := req.To.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOwner, err)
	}

	err := l.withHoldingLocks(ctx, []types.Principal{req.From, req.To}, func(ctx context.Context) error {
		return l.transferLocked(ctx, req, commit)
	})
	if err != nil {
		return err
	}

	logx.Debug("CUSTODY", fmt.Sprintf("Transferred %d from %s to %s", req.Amount, req.From, req.To))
	return nil
}

// transferLocked expects the From and To holding locks to be held
func (l *Ledger) transferLocked(ctx context.Context, req TransferRequest, commit CommitFunc) error {
	from, err := l.holdingStore.GetByOwner(req.From)
	if err != nil {
		return fmt.Errorf("could not load source holding: %w", err)
	}
	if from == nil {
		return fmt.Errorf("%w: %s", ErrHoldingNotFound, req.From)
	}

	amount := uint256.NewInt(req.Amount)
	if from.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	updated := []*types.Holding{from}
	// a self transfer leaves the balance unchanged but still succeeds
	if req.To != req.From {
		to, err := l.holdingStore.GetByOwner(req.To)
		if err != nil {
			return fmt.Errorf("could not load destination holding: %w", err)
		}
		if to == nil {
			to = types.NewHolding(req.To)
		}
		if _, overflow := new(uint256.Int).AddOverflow(to.Balance, amount); overflow {
			return ErrHoldingOverflow
		}
		from.Balance.Sub(from.Balance, amount)
		to.Balance.Add(to.Balance, amount)
		updated = append(updated, to)
	}

	return l.txManager.WithBatch(ctx, func(batch db.DatabaseBatch) error {
		if err := l.holdingStore.StoreInBatch(batch, updated...); err != nil {
			return err
		}
		if commit == nil {
			return nil
		}
		if err := commit(batch); err != nil {
			return &errCommit{err: err}
		}
		return nil
	})
}

// Fund credits owner's holding from outside the system, creating it if needed.
func (l *Ledger) Fund(ctx context.Context, owner types.Principal, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := owner.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOwner, err)
	}

	return l.withHoldingLocks(ctx, []types.Principal{owner}, func(ctx context.Context) error {
		return l.fundLocked(ctx, owner, amount)
	})
}

// fundLocked expects owner's holding lock to be held
func (l *Ledger) fundLocked(ctx context.Context, owner types.Principal, amount *uint256.Int) error {
	holding, err := l.holdingStore.GetByOwner(owner)
	if err != nil {
		return fmt.Errorf("could not load holding: %w", err)
	}
	if holding == nil {
		holding = types.NewHolding(owner)
	}
	if _, overflow := holding.Balance.AddOverflow(holding.Balance, amount); overflow {
		return ErrHoldingOverflow
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.holdingStore.Store(holding); err != nil {
		return fmt.Errorf("failed to store holding: %w", err)
	}
	return nil
}

// FundFromGenesis seeds every holding listed in the genesis config.
func (l *Ledger) FundFromGenesis(ctx context.Context, holdings []config.GenesisHolding) error {
	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return err
		}
		owner := types.Principal(h.Address)
		if err := owner.Validate(); err != nil {
			return fmt.Errorf("genesis holding %s: %w: %v", h.Address, ErrInvalidOwner, err)
		}
		err := l.withHoldingLocks(ctx, []types.Principal{owner}, func(ctx context.Context) error {
			return l.fundLocked(ctx, owner, h.Amount)
		})
		if err != nil {
			return fmt.Errorf("could not fund genesis holding %s: %w", h.Address, err)
		}
		logx.Info("CUSTODY", fmt.Sprintf("Funded genesis holding %s with %s", h.Address, h.Amount.Dec()))
	}
	return nil
}

// GetHolding returns owner's holding, or nil if it has never been credited.
func (l *Ledger) GetHolding(owner types.Principal) (*types.Holding, error) {
	return l.holdingStore.GetByOwner(owner)
}

// Balance returns owner's balance; unknown owners hold zero.
func (l *Ledger) Balance(owner types.Principal) (*uint256.Int, error) {
	holding, err := l.holdingStore.GetByOwner(owner)
	if err != nil {
		return uint256.NewInt(0), err
	}
	if holding == nil {
		return uint256.NewInt(0), nil
	}
	return holding.Balance, nil
}
