package cli

import (
	"fmt"
	"os"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	solanainfra "github.com/aaruvan/tokenchamp/internal/infra/solana"
)

// KeygenCmd returns the keygen command
func KeygenCmd() *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a mint authority keypair (Solana CLI compatible)",
		Long: `Generate an ed25519 keypair and write it as a JSON array of 64 bytes,
the format solana-keygen uses. Point SOLANA_KEYPAIR_PATH at the file, or store
its contents in Secret Manager and set SOLANA_MINT_KEY_SECRET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
				}
			}
			pub, err := writeKeypair(outPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen).Sprint("✓ wrote"), outPath)
			fmt.Fprintf(out, "   mint authority: %s\n", pub)
			fmt.Fprintln(out, "   fund this address before minting")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "champion-mint-authority.json", "Output keypair file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// writeKeypair generates a keypair, writes it with 0600 and returns the base58 pubkey.
func writeKeypair(path string) (string, error) {
	acc := types.NewAccount()
	data, err := solanainfra.EncodeKeypairJSON(acc)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write keypair: %w", err)
	}
	return acc.PublicKey.ToBase58(), nil
}
