package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

func stageLabel(s windom.Stage) string {
	switch s {
	case windom.StageMinted:
		return color.New(color.FgGreen).Sprint(string(s))
	case windom.StageFailed:
		return color.New(color.FgRed).Sprint(string(s))
	case windom.StageDeclared:
		return color.New(color.FgYellow).Sprint(string(s))
	default:
		return color.New(color.FgCyan).Sprint(string(s))
	}
}

func printRecord(w io.Writer, r windom.WinnerRecord) {
	fmt.Fprintf(w, "Winner: %s [%s]\n", r.WinnerID, stageLabel(r.Stage))
	fmt.Fprintf(w, "   %s\n", r.DisplayName)
	fmt.Fprintf(w, "   tournament=%s team=%s\n", r.TournamentID, r.TeamID)
	fmt.Fprintf(w, "   recipient=%s\n", r.RecipientWalletAddress)
	if r.ImageURI != "" {
		fmt.Fprintf(w, "   image:    %s\n", r.ImageURI)
	}
	if r.MetadataURI != "" {
		fmt.Fprintf(w, "   metadata: %s\n", r.MetadataURI)
	}
	if r.TokenID != "" {
		fmt.Fprintf(w, "   token:    %s\n", r.TokenID)
		fmt.Fprintf(w, "   tx:       %s\n", r.TransactionSignature)
	}
	if r.Pending != nil && r.TokenID == "" {
		fmt.Fprintf(w, "   pending:  %s (prepared %s)\n", r.Pending.Signature, r.Pending.PreparedAt.Format(time.RFC3339))
	}
	if r.AttemptCount > 0 {
		fmt.Fprintf(w, "   attempts: %d\n", r.AttemptCount)
	}
	if r.LastError != "" {
		fmt.Fprintf(w, "   %s %s\n", color.New(color.FgRed).Sprint("last error:"), r.LastError)
	}
}

func printRow(w io.Writer, r windom.WinnerRecord) {
	fmt.Fprintf(w, "  - %s: %s [%s]\n", r.WinnerID, r.DisplayName, stageLabel(r.Stage))
}

func printResult(w io.Writer, res mintdom.Result) {
	if res.Status == mintdom.ResultMinted {
		fmt.Fprintf(w, "%s %s\n", color.New(color.FgGreen).Sprint("✓ minted"), res.WinnerID)
		fmt.Fprintf(w, "   token: %s\n", res.TokenID)
		fmt.Fprintf(w, "   tx:    %s\n", res.TransactionSignature)
		return
	}
	fmt.Fprintf(w, "%s %s\n", color.New(color.FgRed).Sprint("✗ failed"), res.WinnerID)
	fmt.Fprintf(w, "   %s\n", res.Error)
	switch res.Disposition {
	case mintdom.DispositionRetryLater:
		fmt.Fprintf(w, "   %s\n", color.New(color.FgYellow).Sprintf("retry later: champion retry %s", res.WinnerID))
	case mintdom.DispositionOperatorAction:
		fmt.Fprintf(w, "   %s\n", color.New(color.FgRed).Sprint("needs operator action before retry"))
	}
}

// parseAttributes parses "Trait=Value" pairs.
func parseAttributes(pairs []string) ([]windom.Attribute, error) {
	var out []windom.Attribute
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid attribute %q (want Trait=Value)", p)
		}
		out = append(out, windom.Attribute{TraitType: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
	}
	return out, nil
}
