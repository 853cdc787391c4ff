// Package vault is the bookkeeping core: it owns vault records and keeps
// each record's TotalBalance in lockstep with the custody holding it mirrors.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/custody"
	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/events"
	"github.com/mezonai/vault/lock"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/monitoring"
	"github.com/mezonai/vault/safemath"
	"github.com/mezonai/vault/security/validation"
	"github.com/mezonai/vault/store"
	"github.com/mezonai/vault/types"
)

var (
	ErrVaultNotFound          = errors.New("vault not found")
	ErrInsufficientBalance    = errors.New("insufficient vault balance")
	ErrExternalTransferFailed = errors.New("external transfer failed")
	ErrUnauthorized           = errors.New("caller is not the vault admin")
	ErrUnauthenticated        = errors.New("caller is not authenticated")
	ErrInvalidRecipient       = errors.New("invalid withdrawal recipient")
)

type Ledger struct {
	vaultStore store.VaultStore
	custodian  custody.Custodian
	locker     lock.Locker
	eventBus   *events.EventBus
}

// NewLedger wires the core. A nil locker falls back to an in-process KeyedMutex; eventBus may be nil.
func NewLedger(vaultStore store.VaultStore, custodian custody.Custodian, locker lock.Locker, eventBus *events.EventBus) *Ledger {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Ledger{
		vaultStore: vaultStore,
		custodian:  custodian,
		locker:     locker,
		eventBus:   eventBus,
	}
}

// Initialize creates an empty vault administered by admin.
func (l *Ledger) Initialize(ctx context.Context, admin auth.AuthorizedPrincipal, name string) (*types.Vault, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if admin.IsZero() {
		return nil, l.reject(auth.OpInitialize, types.VaultID{}, ErrUnauthenticated)
	}
	name, err := validation.NormalizeText("name", name)
	if err != nil {
		return nil, l.reject(auth.OpInitialize, types.VaultID{}, err)
	}
	if err := types.ValidateName(name); err != nil {
		return nil, l.reject(auth.OpInitialize, types.VaultID{}, err)
	}

	vault := &types.Vault{
		ID:    types.NewVaultID(),
		Admin: admin.Principal(),
		Name:  name,
	}
	if err := l.vaultStore.Create(vault); err != nil {
		return nil, l.reject(auth.OpInitialize, vault.ID, fmt.Errorf("could not create vault: %w", err))
	}

	logx.Info("VAULT", fmt.Sprintf("Initialized vault %s (%q) admin=%s", vault.ID, vault.Name, vault.Admin))
	monitoring.RecordOperation(auth.OpInitialize, monitoring.ResultOK)
	monitoring.IncVaultsCreated()
	l.publish(events.NewVaultInitialized(vault))
	return vault.Clone(), nil
}

// Deposit moves amount from the depositor's holding into the vault and credits the record.
func (l *Ledger) Deposit(ctx context.Context, id types.VaultID, depositor auth.AuthorizedPrincipal, amount uint64) (*types.Vault, error) {
	if depositor.IsZero() {
		return nil, l.reject(auth.OpDeposit, id, ErrUnauthenticated)
	}

	var result *types.Vault
	err := l.locker.WithLock(ctx, lockKey(id), func(ctx context.Context) error {
		vault, err := l.load(id)
		if err != nil {
			return err
		}

		// checked before custody is involved so an overflow never moves value
		newBalance, err := safemath.Credit(vault.TotalBalance, amount)
		if err != nil {
			return err
		}
		updated := vault.Clone()
		updated.TotalBalance = newBalance

		req := custody.TransferRequest{
			From:      depositor.Principal(),
			To:        vault.Holding(),
			Authority: depositor.Principal(),
			Amount:    amount,
		}
		if err := l.transfer(ctx, req, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, l.reject(auth.OpDeposit, id, err)
	}

	logx.Info("VAULT", fmt.Sprintf("Deposited %d into vault %s from %s | total=%d", amount, id, depositor, result.TotalBalance))
	monitoring.RecordOperation(auth.OpDeposit, monitoring.ResultOK)
	l.publish(events.NewFundsDeposited(result, depositor.Principal(), amount))
	return result.Clone(), nil
}

// Withdraw moves amount from the vault to recipient and debits the record. Only the admin may withdraw.
func (l *Ledger) Withdraw(ctx context.Context, id types.VaultID, caller auth.AuthorizedPrincipal, recipient types.Principal, amount uint64) (*types.Vault, error) {
	if caller.IsZero() {
		return nil, l.reject(auth.OpWithdraw, id, ErrUnauthenticated)
	}

	var result *types.Vault
	err := l.locker.WithLock(ctx, lockKey(id), func(ctx context.Context) error {
		vault, err := l.load(id)
		if err != nil {
			return err
		}
		if err := recipient.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		// paying the vault itself would shrink the record without moving value
		if recipient == vault.Holding() {
			return fmt.Errorf("%w: recipient is the vault holding", ErrInvalidRecipient)
		}
		if caller.Principal() != vault.Admin {
			return ErrUnauthorized
		}
		if vault.TotalBalance < amount {
			return ErrInsufficientBalance
		}

		newBalance, err := safemath.Debit(vault.TotalBalance, amount)
		if err != nil {
			return err
		}
		updated := vault.Clone()
		updated.TotalBalance = newBalance

		req := custody.TransferRequest{
			From:      vault.Holding(),
			To:        recipient,
			Authority: vault.Holding(),
			Amount:    amount,
		}
		if err := l.transfer(ctx, req, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, l.reject(auth.OpWithdraw, id, err)
	}

	logx.Info("VAULT", fmt.Sprintf("Withdrew %d from vault %s to %s | total=%d", amount, id, recipient, result.TotalBalance))
	monitoring.RecordOperation(auth.OpWithdraw, monitoring.ResultOK)
	l.publish(events.NewFundsWithdrawn(result, recipient, amount))
	return result.Clone(), nil
}

func (l *Ledger) GetVault(id types.VaultID) (*types.Vault, error) {
	return l.load(id)
}

func (l *Ledger) ListVaults() ([]*types.Vault, error) {
	return l.vaultStore.GetAll()
}

func (l *Ledger) load(id types.VaultID) (*types.Vault, error) {
	if id.IsZero() {
		return nil, ErrVaultNotFound
	}
	vault, err := l.vaultStore.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("could not load vault %s: %w", id, err)
	}
	if vault == nil {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, id)
	}
	return vault, nil
}

// transfer calls the custodian with updated staged into its commit, so the record
// and the holdings land together or not at all.
func (l *Ledger) transfer(ctx context.Context, req custody.TransferRequest, updated *types.Vault) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := l.custodian.Transfer(ctx, req, func(batch db.DatabaseBatch) error {
		return l.vaultStore.StoreInBatch(batch, updated)
	})
	monitoring.RecordCustodyTransfer(time.Since(start))
	if err == nil {
		return nil
	}
	if custody.IsCommitError(err) {
		return fmt.Errorf("could not commit vault record: %w", err)
	}
	return fmt.Errorf("%w: %w", ErrExternalTransferFailed, err)
}

func (l *Ledger) reject(op string, id types.VaultID, err error) error {
	code := Classify(err)
	logx.Warn("VAULT", fmt.Sprintf("Rejected %s on vault %s | code=%s | err=%v", op, id, code, err))
	monitoring.RecordRejected(op, monitoring.RejectedReason(code))
	if !id.IsZero() {
		l.publish(events.NewOperationFailed(id, op, err))
	}
	return err
}

func (l *Ledger) publish(event events.VaultEvent) {
	if l.eventBus == nil {
		return
	}
	l.eventBus.Publish(event)
}

func lockKey(id types.VaultID) string {
	return "vault:" + id.String()
}
