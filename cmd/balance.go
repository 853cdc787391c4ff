package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/vault/types"
)

var balanceAddress string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the custody balance of an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := types.Principal(balanceAddress)
		if err := owner.Validate(); err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		balance, err := backend.GetBalance(cmd.Context(), owner)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), balance.Dec())
		return err
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVarP(&balanceAddress, "address", "a", "", "holding address")
	_ = balanceCmd.MarkFlagRequired("address")
}
