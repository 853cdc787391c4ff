package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/events"
	"github.com/mezonai/vault/exception"
	"github.com/mezonai/vault/jsonrpc"
	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/monitoring"
	"github.com/mezonai/vault/ratelimit"
	"github.com/mezonai/vault/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the vault ledger over JSON-RPC",
	Long: `Run a long-lived JSON-RPC server in front of the ledger. Every mutating call
carries a request signed by the caller. /metrics is served on the same address.

Example:
  serve --addr :8545 --config config.ini`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		cfg := a.cfg

		addr := cfg.RPC.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		limiterCfg := ratelimit.DefaultLimiterConfig()
		if cfg.RPC.IPRate > 0 {
			limiterCfg.IPConfig.MaxRequests = cfg.RPC.IPRate
		}
		if cfg.RPC.SignerRate > 0 {
			limiterCfg.SignerConfig.MaxRequests = cfg.RPC.SignerRate
		}
		limiter := ratelimit.NewLimiter(limiterCfg)
		defer limiter.Stop()

		server := jsonrpc.NewServer(addr, a.ledger, a.custody, limiter, cfg.RPC.MaxClockSkew)
		switch cfg.Store.Type {
		case store.LevelDBStoreType, store.RocksDBStoreType, store.BoltStoreType:
			server.SetStoreDirectory(cfg.Store.Directory)
		}
		if client := a.sharedRedis(); client != nil {
			server.SetReplayGuard(auth.NewRedisReplayGuard(client))
		}
		if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
			server.SetCORSConfig(corsCfg)
		}

		if vaults, err := a.ledger.ListVaults(); err != nil {
			logx.Warn("CLI", "Could not count stored vaults: ", err)
		} else {
			monitoring.SetVaultRecords(len(vaults))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		exception.SafeGo("audit-log", func() { logEvents(ctx, a.eventBus) })

		mux := http.NewServeMux()
		monitoring.RegisterMetrics(mux)
		server.Start(mux)

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logx.Info("CLI", "Shutting down JSON-RPC server")
		return server.Shutdown(shutdownCtx)
	},
}

// logEvents is the audit trail of a running server
func logEvents(ctx context.Context, bus *events.EventBus) {
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)
	logx.Info("AUDIT", fmt.Sprintf("Audit log subscribed | subscriber_id=%s | subscribers=%d", id, bus.GetTotalSubscriptions()))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			logx.Info("AUDIT", fmt.Sprintf("%s vault=%s at=%s", event.Type(), event.VaultID(), event.Timestamp().Format(time.RFC3339Nano)))
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides [rpc] addr")
}
