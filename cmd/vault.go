package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mezonai/vault/safemath"
	"github.com/mezonai/vault/types"
)

type VaultConfig struct {
	VaultID        string
	Name           string
	To             string
	Amount         string
	PrivateKeyFile string
}

var vaultConfig VaultConfig

// vaultView is what show/list print: the record plus its derived custody address
type vaultView struct {
	*types.Vault
	Holding  types.Principal `json:"holding"`
	Headroom uint64          `json:"headroom"`
}

func newVaultView(v *types.Vault) vaultView {
	return vaultView{
		Vault:    v,
		Holding:  v.Holding(),
		Headroom: safemath.Headroom(v.TotalBalance),
	}
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Create vaults and move value in and out of them",
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a vault administered by the key owner",
	Long: `Create an empty vault. The signer of the request becomes its only admin.

Example:
  vault init --name treasury -f admin.key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := loadKey(vaultConfig.PrivateKeyFile)
		if err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		vault, err := backend.Initialize(cmd.Context(), key, vaultConfig.Name)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), newVaultView(vault))
	},
}

var vaultDepositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Deposit from the key owner's holding into a vault",
	Long: `Move value from the signer's custody holding into the vault. Anyone may deposit.

Example:
  vault deposit --vault 0190f7a4-... --amount 1_000 -f depositor.key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, amount, err := parseVaultAndAmount()
		if err != nil {
			return err
		}
		key, err := loadKey(vaultConfig.PrivateKeyFile)
		if err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		vault, err := backend.Deposit(cmd.Context(), key, id, amount)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), newVaultView(vault))
	},
}

var vaultWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw from a vault to a recipient (admin only)",
	Long: `Move value from the vault's holding to the recipient. Only the vault admin may withdraw.

Example:
  vault withdraw --vault 0190f7a4-... --to 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY --amount 400 -f admin.key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, amount, err := parseVaultAndAmount()
		if err != nil {
			return err
		}
		key, err := loadKey(vaultConfig.PrivateKeyFile)
		if err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		vault, err := backend.Withdraw(cmd.Context(), key, id, types.Principal(vaultConfig.To), amount)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), newVaultView(vault))
	},
}

var vaultShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseVaultID(vaultConfig.VaultID)
		if err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		vault, err := backend.GetVault(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), newVaultView(vault))
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all vaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		vaults, err := backend.ListVaults(cmd.Context())
		if err != nil {
			return err
		}
		views := make([]vaultView, 0, len(vaults))
		for _, v := range vaults {
			views = append(views, newVaultView(v))
		}
		return printJSON(cmd.OutOrStdout(), views)
	},
}

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultInitCmd, vaultDepositCmd, vaultWithdrawCmd, vaultShowCmd, vaultListCmd)

	for _, c := range []*cobra.Command{vaultInitCmd, vaultDepositCmd, vaultWithdrawCmd} {
		c.Flags().StringVarP(&vaultConfig.PrivateKeyFile, "private-key-file", "f", "", "signer private key file")
	}
	for _, c := range []*cobra.Command{vaultDepositCmd, vaultWithdrawCmd, vaultShowCmd} {
		c.Flags().StringVarP(&vaultConfig.VaultID, "vault", "v", "", "vault id")
	}
	for _, c := range []*cobra.Command{vaultDepositCmd, vaultWithdrawCmd} {
		c.Flags().StringVarP(&vaultConfig.Amount, "amount", "a", "", "amount")
	}
	vaultInitCmd.Flags().StringVarP(&vaultConfig.Name, "name", "n", "", "vault name")
	vaultWithdrawCmd.Flags().StringVarP(&vaultConfig.To, "to", "t", "", "recipient address")
}

func parseVaultAndAmount() (types.VaultID, uint64, error) {
	id, err := types.ParseVaultID(vaultConfig.VaultID)
	if err != nil {
		return types.VaultID{}, 0, err
	}
	amount, err := parseUint64Amount(vaultConfig.Amount)
	if err != nil {
		return types.VaultID{}, 0, err
	}
	return id, amount, nil
}
