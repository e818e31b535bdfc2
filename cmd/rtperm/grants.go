package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
)

var resetAll bool

// grantsCmd groups the ledger commands.
var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Manage stored capability grants",
}

var grantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored grants and recorded denials",
	Args:  cobra.NoArgs,
	RunE: withLedger(func(ctx *LedgerContext, _ []string) error {
		printLedger(ctx.Out, ctx.Store.ConfigPath(), ctx.Ledger)
		return nil
	}),
}

var grantsAddCmd = &cobra.Command{
	Use:   "add <pattern>...",
	Short: "Grant capabilities permanently",
	Long: `Store grants in the ledger. A pattern is a capability name or a doublestar
glob over names, for example "fs:read:/etc/**" or "network:outbound:*".`,
	Args: cobra.MinimumNArgs(1),
	RunE: withLedger(addGrants),
}

var grantsRevokeCmd = &cobra.Command{
	Use:   "revoke <pattern>...",
	Short: "Remove stored grants",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withLedger(revokeGrants),
}

var grantsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget recorded denials",
	Args:  cobra.NoArgs,
	RunE:  withLedger(resetLedger),
}

func init() {
	rootCmd.AddCommand(grantsCmd)
	grantsCmd.AddCommand(grantsListCmd, grantsAddCmd, grantsRevokeCmd, grantsResetCmd)

	grantsResetCmd.Flags().BoolVar(&resetAll, "all", false, "also remove every stored grant")
}

func addGrants(ctx *LedgerContext, patterns []string) error {
	for _, pattern := range patterns {
		if err := ctx.Ledger.Grant(pattern); err != nil {
			return fmt.Errorf("cannot grant %q: %w", pattern, err)
		}
		fmt.Fprintf(ctx.Out, "  ✓ %s\n", capabilities.Describe(pattern))
	}
	return ctx.Save()
}

func revokeGrants(ctx *LedgerContext, patterns []string) error {
	for _, pattern := range patterns {
		if !ctx.Ledger.Revoke(pattern) {
			return fmt.Errorf("no stored grant %q", pattern)
		}
		fmt.Fprintf(ctx.Out, "  - %s\n", capabilities.Describe(pattern))
	}
	return ctx.Save()
}

func resetLedger(ctx *LedgerContext, _ []string) error {
	if resetAll {
		ctx.Ledger = permissions.NewLedger()
	} else {
		ctx.Ledger.ResetDenials()
	}
	return ctx.Save()
}

func printLedger(out io.Writer, path string, ledger *permissions.Ledger) {
	fmt.Fprintf(out, "Grants file: %s\n", path)

	if len(ledger.Grants) == 0 {
		fmt.Fprintln(out, "\nNo stored grants.")
	} else {
		fmt.Fprintln(out, "\nGrants:")
		for _, grant := range ledger.Grants {
			fmt.Fprintf(out, "  %-30s %s\n", grant, capabilities.Describe(grant))
		}
	}

	if len(ledger.Denials) == 0 {
		return
	}
	names := make([]string, 0, len(ledger.Denials))
	for name := range ledger.Denials {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nDenials:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-30s %d\n", name, ledger.Denials[name])
	}
}
