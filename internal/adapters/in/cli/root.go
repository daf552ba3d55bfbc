package cli

import "github.com/spf13/cobra"

// RootCmd assembles the champion CLI.
func RootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "champion",
		Short:   "Champion NFT mint pipeline operator tool",
		Version: version,
		Long: `champion declares tournament winners, drives the mint pipeline
(image → metadata → on-chain mint) and inspects its state.

Configuration comes from the environment (or .env), the same as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(DeclareCmd())
	rootCmd.AddCommand(MintCmd())
	rootCmd.AddCommand(RetryCmd())
	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(ListCmd())
	rootCmd.AddCommand(UploadCmd())
	rootCmd.AddCommand(KeygenCmd())

	return rootCmd
}
