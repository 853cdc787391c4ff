package cmd

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/config"
	"github.com/mezonai/vault/custody"
	"github.com/mezonai/vault/db"
	vaulterrors "github.com/mezonai/vault/errors"
	"github.com/mezonai/vault/events"
	"github.com/mezonai/vault/jsonx"
	"github.com/mezonai/vault/lock"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/monitoring"
	"github.com/mezonai/vault/store"
	"github.com/mezonai/vault/vault"
)

// app is everything one command invocation needs, opened from the node config
type app struct {
	cfg         *config.NodeConfig
	stores      *store.Stores
	custody     *custody.Ledger
	ledger      *vault.Ledger
	eventBus    *events.EventBus
	lockClient  redis.UniversalClient
	ownsLogFile bool
}

func loadNodeConfig() (*config.NodeConfig, error) {
	cfg, err := config.LoadNodeConfig(rootConfig.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", rootConfig.ConfigFile, err)
	}
	if rootConfig.StoreType != "" {
		cfg.Store.Type = store.StoreType(rootConfig.StoreType)
	}
	if rootConfig.DataDir != "" {
		cfg.Store.Directory = rootConfig.DataDir
	}
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadNodeConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if cfg.Log.File != "" && !cfg.Log.Stderr {
		logx.Init(cfg.Log)
		a.ownsLogFile = true
	}
	monitoring.InitMetrics()

	stores, err := store.CreateStore(cfg.Store)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.stores = stores

	locker, err := a.openLocker(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	if _, shared := stores.Provider.(*db.RedisProvider); shared && cfg.Lock.Type != lock.TypeRedis {
		logx.Warn("CLI", "Store is shared through redis but [lock] type is local; only one process may use it")
	}

	a.custody = custody.NewLedger(stores.Holdings, db.NewDBTxManager(stores.Provider), locker)
	a.eventBus = events.NewEventBus()
	a.ledger = vault.NewLedger(stores.Vaults, a.custody, locker, a.eventBus)
	return a, nil
}

// openLocker reuses the store's redis connection when both point at the same server
func (a *app) openLocker(cfg *config.NodeConfig) (lock.Locker, error) {
	if cfg.Lock.Type != lock.TypeRedis {
		return lock.New(cfg.Lock, nil)
	}
	if rp, ok := a.stores.Provider.(*db.RedisProvider); ok && cfg.Lock.RedisAddr == "" {
		return lock.New(cfg.Lock, rp.Client())
	}
	addr := cfg.Lock.RedisAddr
	if addr == "" {
		addr = cfg.Store.RedisAddr
	}
	a.lockClient = redis.NewClient(&redis.Options{Addr: addr})
	return lock.New(cfg.Lock, a.lockClient)
}

// sharedRedis is the redis that other processes on the same store also reach, if any
func (a *app) sharedRedis() redis.UniversalClient {
	if a.lockClient != nil {
		return a.lockClient
	}
	if rp, ok := a.stores.Provider.(*db.RedisProvider); ok {
		return rp.Client()
	}
	return nil
}

func (a *app) close() {
	if a.lockClient != nil {
		_ = a.lockClient.Close()
	}
	if a.stores != nil {
		if err := a.stores.Close(); err != nil {
			logx.Error("CLI", "Failed to close store: ", err)
		}
	}
	if a.ownsLogFile {
		_ = logx.Close()
	}
}

// authorize signs req with privateKey and verifies it. This is the
// only way the CLI obtains an AuthorizedPrincipal.
func authorize(privateKey ed25519.PrivateKey, req *auth.Request) (auth.AuthorizedPrincipal, error) {
	req.Timestamp = uint64(time.Now().UnixMilli())
	nonce, err := auth.NewNonce()
	if err != nil {
		return auth.AuthorizedPrincipal{}, err
	}
	req.Nonce = nonce
	if err := auth.Sign(req, privateKey); err != nil {
		return auth.AuthorizedPrincipal{}, err
	}
	return auth.Verify(req)
}

func loadKey(keyFile string) (ed25519.PrivateKey, error) {
	if keyFile == "" {
		return nil, vaulterrors.NewError(vaulterrors.ErrCodeUnauthenticated, "a private key file is required (-f)")
	}
	privateKey, err := auth.LoadPrivateKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidSigner, err)
	}
	return privateKey, nil
}

// parseUint64Amount accepts "1_000" style amounts that fit a vault balance
func parseUint64Amount(s string) (uint64, error) {
	amount, err := config.ParseAmount(s)
	if err != nil {
		return 0, vaulterrors.NewError(vaulterrors.ErrCodeInvalidAmount, err.Error())
	}
	if !amount.IsUint64() {
		return 0, vaulterrors.NewError(vaulterrors.ErrCodeInvalidAmount, fmt.Sprintf("amount %s exceeds the vault balance range", amount.Dec()))
	}
	return amount.Uint64(), nil
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := jsonx.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
