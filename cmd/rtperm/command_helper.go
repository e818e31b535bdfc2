package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
)

// LedgerContext provides what the grants commands work on.
type LedgerContext struct {
	Store  ports.GrantStore
	Ledger *permissions.Ledger
	Out    io.Writer
}

// Save persists the ledger back to the store.
func (c *LedgerContext) Save() error {
	if err := c.Store.Save(c.Ledger); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Saved %s\n", c.Store.ConfigPath())
	return nil
}

// LedgerHandler is a function that executes with a loaded ledger.
type LedgerHandler func(*LedgerContext, []string) error

// withLedger wraps a handler with config and ledger loading.
//
// Usage:
//
//	cmd := &cobra.Command{
//	    Use: "list",
//	    RunE: withLedger(func(ctx *LedgerContext, args []string) error {
//	        return printLedger(ctx.Out, ctx.Ledger)
//	    }),
//	}
func withLedger(handler LedgerHandler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile, viper.GetViper())
		if err != nil {
			return err
		}
		return runWithStore(capabilities.NewFileStore(cfg.Grants.File), cmd.OutOrStdout(), handler, args)
	}
}

func runWithStore(store ports.GrantStore, out io.Writer, handler LedgerHandler, args []string) error {
	ledger, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load grants: %w", err)
	}
	return handler(&LedgerContext{Store: store, Ledger: ledger, Out: out}, args)
}
