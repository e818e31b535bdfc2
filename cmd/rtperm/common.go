package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// CommonOptions contains flags shared by commands that wait on the host.
type CommonOptions struct {
	// Timeout bounds how long a check waits for answers.
	Timeout time.Duration

	Quiet bool
}

// DefaultCommonOptions returns sensible defaults.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{
		Timeout: 5 * time.Minute,
	}
}

// RegisterFlags adds common flags to a cobra command.
func (opts *CommonOptions) RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", opts.Timeout,
		"Abort the request if it is not answered in time (0 to disable)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false,
		"Quiet output (errors only)")
}

// ApplyToContext applies timeout to context.
// Returns new context and cancel function.
func (opts *CommonOptions) ApplyToContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	// No timeout - return no-op cancel
	return ctx, func() {}
}

// ValidateFlags validates common options.
func (opts *CommonOptions) ValidateFlags() error {
	if opts.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative, got %s", opts.Timeout)
	}
	if opts.Quiet && verbose {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	return nil
}
