package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/vault/auth"
	"github.com/mezonai/vault/logx"
)

var keygenOutput string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 key and print its address",
	Long: `Generate a new ed25519 keypair. The hex seed is written to the output file
with owner-only permissions and the base58 address is printed.

Example:
  keygen -o admin.key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		address, privateKey, err := auth.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		if err := auth.SavePrivateKey(keygenOutput, privateKey); err != nil {
			return fmt.Errorf("failed to write key file: %w", err)
		}
		logx.Info("CLI", fmt.Sprintf("Generated key %s -> %s", address, keygenOutput))
		_, err = fmt.Fprintln(cmd.OutOrStdout(), address)
		return err
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "key.txt", "file to write the private key seed to")
}
