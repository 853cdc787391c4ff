package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/vault"
)

type RootConfig struct {
	ConfigFile string
	DataDir    string
	StoreType  string
	// RPCEndpoint sends vault and balance commands to a running server instead of the local store
	RPCEndpoint string
}

var rootConfig RootConfig

var rootCmd = &cobra.Command{
	Use:           "vaultctl",
	Short:         "Custodial vault ledger CLI",
	Long:          "Command line interface for creating vaults and moving custodied value in and out of them.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootConfig.ConfigFile, "config", "c", "config.ini", "node config file (.ini)")
	rootCmd.PersistentFlags().StringVarP(&rootConfig.DataDir, "data-dir", "d", "", "data directory, overrides [store] directory")
	rootCmd.PersistentFlags().StringVar(&rootConfig.StoreType, "store", "", "store backend (leveldb, bolt, memory, redis, rocksdb), overrides [store] type")
	rootCmd.PersistentFlags().StringVar(&rootConfig.RPCEndpoint, "rpc", "", "JSON-RPC endpoint, e.g. http://localhost:8545")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CLI", "Command execution failed: ", err)
		fmt.Fprintln(os.Stderr, vault.AsVaultError(err))
		os.Exit(1)
	}
}
