package client

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/holiman/uint256"

	"github.com/mezonai/vault/auth"
	vaulterrors "github.com/mezonai/vault/errors"
	"github.com/mezonai/vault/jsonrpc"
	"github.com/mezonai/vault/jsonx"
	"github.com/mezonai/vault/service"
	"github.com/mezonai/vault/types"
)

type Config struct {
	// Endpoint is the full URL of the JSON-RPC server, e.g. http://localhost:8545
	Endpoint string
}

// VaultClient signs requests locally and sends them to a vault JSON-RPC server
type VaultClient struct {
	cfg Config
	cli *jrpc2.Client
	now func() time.Time
}

type getVaultParams struct {
	VaultID string `json:"vault_id"`
}

type getBalanceParams struct {
	Address string `json:"address"`
}

type getBalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func NewClient(cfg Config) (*VaultClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("client: endpoint is required")
	}
	ch := jhttp.NewChannel(cfg.Endpoint, nil)
	return &VaultClient{
		cfg: cfg,
		cli: jrpc2.NewClient(ch, nil),
		now: time.Now,
	}, nil
}

func (c *VaultClient) Close() error {
	return c.cli.Close()
}

func (c *VaultClient) CheckHealth(ctx context.Context) (*service.HealthStatus, error) {
	var health service.HealthStatus
	if err := c.call(ctx, jsonrpc.MethodHealthCheck, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *VaultClient) Initialize(ctx context.Context, key ed25519.PrivateKey, name string) (*types.Vault, error) {
	req := &auth.Request{Op: auth.OpInitialize, Subject: name}
	return c.mutate(ctx, jsonrpc.MethodVaultInitialize, req, key)
}

func (c *VaultClient) Deposit(ctx context.Context, key ed25519.PrivateKey, id types.VaultID, amount uint64) (*types.Vault, error) {
	req := &auth.Request{Op: auth.OpDeposit, Vault: id.String(), Amount: amount}
	return c.mutate(ctx, jsonrpc.MethodVaultDeposit, req, key)
}

func (c *VaultClient) Withdraw(ctx context.Context, key ed25519.PrivateKey, id types.VaultID, recipient types.Principal, amount uint64) (*types.Vault, error) {
	req := &auth.Request{Op: auth.OpWithdraw, Vault: id.String(), Subject: recipient.String(), Amount: amount}
	return c.mutate(ctx, jsonrpc.MethodVaultWithdraw, req, key)
}

func (c *VaultClient) GetVault(ctx context.Context, id types.VaultID) (*types.Vault, error) {
	var v types.Vault
	if err := c.call(ctx, jsonrpc.MethodVaultGet, getVaultParams{VaultID: id.String()}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *VaultClient) ListVaults(ctx context.Context) ([]*types.Vault, error) {
	var vaults []*types.Vault
	if err := c.call(ctx, jsonrpc.MethodVaultList, nil, &vaults); err != nil {
		return nil, err
	}
	return vaults, nil
}

func (c *VaultClient) GetBalance(ctx context.Context, owner types.Principal) (*uint256.Int, error) {
	var res getBalanceResult
	if err := c.call(ctx, jsonrpc.MethodCustodyGetBalance, getBalanceParams{Address: owner.String()}, &res); err != nil {
		return nil, err
	}
	balance, err := uint256.FromDecimal(res.Balance)
	if err != nil {
		return nil, fmt.Errorf("client: bad balance %q from server: %w", res.Balance, err)
	}
	return balance, nil
}

// mutate stamps and signs req right before sending so the server's clock skew window applies
func (c *VaultClient) mutate(ctx context.Context, method string, req *auth.Request, key ed25519.PrivateKey) (*types.Vault, error) {
	req.Timestamp = uint64(c.now().UnixMilli())
	nonce, err := auth.NewNonce()
	if err != nil {
		return nil, err
	}
	req.Nonce = nonce
	if err := auth.Sign(req, key); err != nil {
		return nil, err
	}
	var v types.Vault
	if err := c.call(ctx, method, req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *VaultClient) call(ctx context.Context, method string, params, result interface{}) error {
	if err := c.cli.CallResult(ctx, method, params, result); err != nil {
		return fromRPCError(err)
	}
	return nil
}

// fromRPCError recovers the server's VaultError from the error data when present
func fromRPCError(err error) error {
	var rpcErr *jrpc2.Error
	if !errors.As(err, &rpcErr) || len(rpcErr.Data) == 0 {
		return err
	}
	var vaultErr vaulterrors.VaultError
	if jsonx.Unmarshal(rpcErr.Data, &vaultErr) != nil || vaultErr.Code == "" {
		return err
	}
	return &vaultErr
}
