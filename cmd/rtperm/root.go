package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd is the application entry point.
var rootCmd = &cobra.Command{
	Use:   "rtperm",
	Short: "Runtime capability negotiation",
	Long: `rtperm checks whether capabilities are granted, asks the host for the
missing ones, and shows a justification first when the host wants one.
Grants are kept in a YAML ledger; answers given "for this session" are
forgotten when the command exits.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var capErr *apperrors.CapabilityError
		if errors.As(err, &capErr) {
			fmt.Fprintln(os.Stderr, capErr.Error())
			os.Exit(2)
		}
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rtperm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	registerConfigFlags(rootCmd.PersistentFlags())

	if err := bindConfig(viper.GetViper(), rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Using TextHandler for CLI friendliness
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
