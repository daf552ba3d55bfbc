// internal/adapters/in/cli/winner_cmds.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// DeclareCmd returns the declare command
func DeclareCmd() *cobra.Command {
	var (
		in    windom.NewWinnerInput
		info  windom.ChampionInfo
		attrs []string
		mint  bool
	)

	cmd := &cobra.Command{
		Use:   "declare",
		Short: "Declare a tournament winner",
		Long: `Create a WinnerRecord in stage Declared.

Display fields may be omitted when --tournament-name and --team-name are given;
they are then derived from the tournament context.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseAttributes(attrs)
			if err != nil {
				return err
			}
			in.Attributes = parsed

			ctx := context.Background()
			c, err := buildContainer(ctx, mint)
			if err != nil {
				return err
			}
			defer c.Close()

			if !mint {
				rec, err := c.Tracker.Declare(ctx, in, info)
				if err != nil {
					return fmt.Errorf("declare: %w", err)
				}
				printRecord(cmd.OutOrStdout(), rec)
				return nil
			}

			// 既存の --id なら宣言はスキップして続きから mint する
			res, err := c.Orchestrator.Run(ctx, in, info)
			if err != nil {
				return fmt.Errorf("declare: %w", err)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.WinnerID, "id", "", "Winner ID (default: generated uuid)")
	f.StringVar(&in.TournamentID, "tournament", "", "Tournament ID")
	f.StringVar(&in.TeamID, "team", "", "Team ID")
	f.StringVar(&in.RecipientWalletAddress, "wallet", "", "Recipient wallet address")
	f.StringVar(&in.DisplayName, "name", "", "NFT display name")
	f.StringVar(&in.Description, "description", "", "NFT description")
	f.StringVar(&in.SourceImageURL, "image", "", "Source image URL")
	f.StringArrayVar(&attrs, "attr", nil, "Attribute Trait=Value (repeatable)")
	f.StringVar(&info.TournamentName, "tournament-name", "", "Tournament name for derived display fields")
	f.StringVar(&info.Month, "month", "", "Month for derived display fields")
	f.StringVar(&info.Year, "year", "", "Year for derived display fields")
	f.StringVar(&info.TeamName, "team-name", "", "Team name for derived display fields")
	f.BoolVar(&mint, "mint", false, "Run the mint pipeline right after declaring")
	_ = cmd.MarkFlagRequired("tournament")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("wallet")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

// MintCmd returns the mint command
func MintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint [winner-id]",
		Short: "Run (or resume) the mint pipeline for a winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := buildContainer(ctx, true)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Orchestrator.MintForWinner(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// RetryCmd returns the retry command
func RetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [winner-id]",
		Short: "Reset a Failed winner and run the pipeline again",
		Long: `Manual Failed → Declared reset. Stored image / metadata URIs and any
pending mint transaction are kept, so completed steps are not repeated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := buildContainer(ctx, true)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Orchestrator.Retry(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [winner-id]",
		Short: "Show a winner's pipeline state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := buildContainer(ctx, false)
			if err != nil {
				return err
			}
			defer c.Close()

			rec, err := c.Tracker.Get(ctx, args[0])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

// ListCmd returns the list command
func ListCmd() *cobra.Command {
	var (
		stage      string
		wallet     string
		tournament string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List winners, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := windom.ListFilter{Wallet: wallet, TournamentID: tournament, Limit: limit}
			if stage != "" {
				s, err := windom.ParseStage(stage)
				if err != nil {
					return fmt.Errorf("--stage %q: %w", stage, err)
				}
				f.Stages = []windom.Stage{s}
			}

			ctx := context.Background()
			c, err := buildContainer(ctx, false)
			if err != nil {
				return err
			}
			defer c.Close()

			recs, err := c.Tracker.List(ctx, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No winners found.")
				return nil
			}
			fmt.Fprintf(out, "Winners (%d):\n", len(recs))
			for _, r := range recs {
				printRow(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stage, "stage", "s", "", "Filter by stage (Declared, ImageStored, MetadataStored, Minted, Failed)")
	cmd.Flags().StringVar(&wallet, "wallet", "", "Filter by recipient wallet")
	cmd.Flags().StringVar(&tournament, "tournament", "", "Filter by tournament ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows")

	return cmd
}
