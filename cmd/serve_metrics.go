package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/monitoring"
)

var metricsAddr string

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Expose prometheus metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		monitoring.InitMetrics()

		mux := http.NewServeMux()
		monitoring.RegisterMetrics(mux)
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logx.Info("CLI", fmt.Sprintf("Serving metrics on %s/metrics", metricsAddr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logx.Info("CLI", "Shutting down metrics server")
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveMetricsCmd)

	serveMetricsCmd.Flags().StringVar(&metricsAddr, "addr", ":9100", "listen address")
}
