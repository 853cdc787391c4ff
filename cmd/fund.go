package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/vault/config"
	"github.com/mezonai/vault/types"
)

type FundConfig struct {
	To          string
	Amount      string
	GenesisFile string
}

var fundConfig FundConfig

var fundCmd = &cobra.Command{
	Use:   "fund [flags]",
	Short: "Credit custody holdings from outside the ledger",
	Long: `Seed custody holdings, either one address at a time or from a genesis file.

Examples:
  # Fund one holding
  fund --to 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY --amount 1_000

  # Fund every holding listed in a genesis file
  fund --genesis config/genesis.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFund(cmd, fundConfig)
	},
}

func init() {
	rootCmd.AddCommand(fundCmd)

	fundCmd.Flags().StringVarP(&fundConfig.To, "to", "t", "", "address to fund")
	fundCmd.Flags().StringVarP(&fundConfig.Amount, "amount", "a", "", "amount to credit")
	fundCmd.Flags().StringVarP(&fundConfig.GenesisFile, "genesis", "g", "", "genesis file listing holdings")
}

func runFund(cmd *cobra.Command, fc FundConfig) error {
	if fc.GenesisFile == "" && fc.To == "" {
		return errors.New("either --genesis or --to is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if fc.GenesisFile != "" {
		genesis, err := config.LoadGenesisConfig(fc.GenesisFile)
		if err != nil {
			return err
		}
		if err := a.custody.FundFromGenesis(ctx, genesis.Holdings); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "funded %d holdings\n", len(genesis.Holdings))
		return err
	}

	amount, err := config.ParseAmount(fc.Amount)
	if err != nil {
		return err
	}
	owner := types.Principal(fc.To)
	if err := a.custody.Fund(ctx, owner, amount); err != nil {
		return err
	}
	balance, err := a.custody.Balance(owner)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", owner, balance.Dec())
	return err
}
