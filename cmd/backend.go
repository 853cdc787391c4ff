package cmd

import (
	"context"
	"crypto/ed25519"

	"github.com/holiman/uint256"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/client"
	"github.com/mezonai/vault/types"
)

// vaultBackend runs vault commands either against the local store or a remote server (--rpc)
type vaultBackend interface {
	Initialize(ctx context.Context, key ed25519.PrivateKey, name string) (*types.Vault, error)
	Deposit(ctx context.Context, key ed25519.PrivateKey, id types.VaultID, amount uint64) (*types.Vault, error)
	Withdraw(ctx context.Context, key ed25519.PrivateKey, id types.VaultID, recipient types.Principal, amount uint64) (*types.Vault, error)
	GetVault(ctx context.Context, id types.VaultID) (*types.Vault, error)
	ListVaults(ctx context.Context) ([]*types.Vault, error)
	GetBalance(ctx context.Context, owner types.Principal) (*uint256.Int, error)
	Close() error
}

func openBackend() (vaultBackend, error) {
	if rootConfig.RPCEndpoint != "" {
		c, err := client.NewClient(client.Config{Endpoint: rootConfig.RPCEndpoint})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	a, err := openApp()
	if err != nil {
		return nil, err
	}
	return &localBackend{app: a}, nil
}

type localBackend struct {
	app *app
}

func (b *localBackend) Initialize(ctx context.Context, key ed25519.PrivateKey, name string) (*types.Vault, error) {
	admin, err := authorize(key, &auth.Request{Op: auth.OpInitialize, Subject: name})
	if err != nil {
		return nil, err
	}
	return b.app.ledger.Initialize(ctx, admin, name)
}

func (b *localBackend) Deposit(ctx context.Context, key ed25519.PrivateKey, id types.VaultID, amount uint64) (*types.Vault, error) {
	depositor, err := authorize(key, &auth.Request{Op: auth.OpDeposit, Vault: id.String(), Amount: amount})
	if err != nil {
		return nil, err
	}
	return b.app.ledger.Deposit(ctx, id, depositor, amount)
}

func (b *localBackend) Withdraw(ctx context.Context, key ed25519.PrivateKey, id types.VaultID, recipient types.Principal, amount uint64) (*types.Vault, error) {
	caller, err := authorize(key, &auth.Request{Op: auth.OpWithdraw, Vault: id.String(), Subject: recipient.String(), Amount: amount})
	if err != nil {
		return nil, err
	}
	return b.app.ledger.Withdraw(ctx, id, caller, recipient, amount)
}

func (b *localBackend) GetVault(ctx context.Context, id types.VaultID) (*types.Vault, error) {
	return b.app.ledger.GetVault(id)
}

func (b *localBackend) ListVaults(ctx context.Context) ([]*types.Vault, error) {
	return b.app.ledger.ListVaults()
}

func (b *localBackend) GetBalance(ctx context.Context, owner types.Principal) (*uint256.Int, error) {
	return b.app.custody.Balance(owner)
}

func (b *localBackend) Close() error {
	b.app.close()
	return nil
}
