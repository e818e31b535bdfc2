package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/application/services"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
	"github.com/reglet-dev/rtperm/internal/infrastructure/checkers"
	"github.com/reglet-dev/rtperm/internal/infrastructure/console"
	"github.com/reglet-dev/rtperm/internal/infrastructure/host"
	"github.com/reglet-dev/rtperm/internal/infrastructure/metrics"
	"github.com/reglet-dev/rtperm/internal/infrastructure/system"
)

// checkOptions holds flags for the check command.
type checkOptions struct {
	CommonOptions
	Code int
}

var checkOpts = checkOptions{CommonOptions: DefaultCommonOptions(), Code: 1}

// checkCmd implements the check command.
var checkCmd = &cobra.Command{
	Use:   "check <capability>...",
	Short: "Ensure capabilities are granted, prompting for the missing ones",
	Long: `Check each capability against the host. Capabilities that are already
granted are reported at once; the rest are requested from the host, after a
justification when the rationale policy asks for one.

Capability names are free-form. Names shaped like kind:detail are described
in prompts, for example:
  fs:read:/etc/hosts    network:outbound:443    exec:/bin/sh    env:HOME

The command exits with status 2 when any capability is denied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOpts.ValidateFlags(); err != nil {
			return err
		}
		cfg, err := loadConfig(cfgFile, viper.GetViper())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if checkOpts.Quiet {
			out = io.Discard
		}
		return runCheck(cmd.Context(), cfg, checkOpts, args, checkDeps{out: out})
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkOpts.RegisterFlags(checkCmd)
	checkCmd.Flags().IntVar(&checkOpts.Code, "code", checkOpts.Code, "request code reported with every outcome")
}

// checkDeps are the collaborators runCheck builds when left nil.
type checkDeps struct {
	out      io.Writer
	prompter ports.Prompter
	registry *prometheus.Registry
}

// runCheck negotiates names with a terminal host and returns a
// CapabilityError when any of them ends up not granted.
func runCheck(ctx context.Context, cfg *system.Config, opts checkOptions, names []string, deps checkDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runtimeGrants, err := cfg.Host.SupportsRuntimeGrants()
	if err != nil {
		return err
	}
	policy, err := capabilities.NewRationalePolicy(cfg.Rationale.Policy)
	if err != nil {
		return err
	}

	store := capabilities.NewFileStore(cfg.Grants.File)
	prompter := deps.prompter
	if prompter == nil {
		prompter = capabilities.NewTerminalPrompter(store.ConfigPath())
	}
	registry := deps.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	counters, err := metrics.NewProm("rtperm", registry)
	if err != nil {
		return err
	}

	h, err := host.NewTerminalHost(
		host.WithStore(store),
		host.WithPrompter(prompter),
		host.WithRationalePolicy(policy),
		host.WithAutoGrant(cfg.Host.AutoGrant),
	)
	if err != nil {
		return fmt.Errorf("failed to start host: %w", err)
	}
	defer h.Close()

	client := console.NewClient(deps.out, prompter)
	orchestrator := services.NewPermissionOrchestrator(
		checkers.New(runtimeGrants, h),
		metrics.Instrument(client, counters),
	)

	code := permissions.Code(opts.Code)
	slog.Debug("checking capabilities", "code", code, "capabilities", names, "runtime_grants", runtimeGrants)

	ctx, cancel := opts.ApplyToContext(ctx)
	defer cancel()

	relayCtx, stopRelay := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(relayCtx)
	g.Go(func() error {
		return relayResults(gctx, h.Results(), orchestrator)
	})

	client.Expect(code, names)
	if err := orchestrator.Check(code, names...); err != nil {
		stopRelay()
		_ = g.Wait()
		return err
	}

	outcome, waitErr := client.Wait(ctx)
	if waitErr != nil {
		orchestrator.Abort()
	}
	stopRelay()
	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, registry); err != nil {
			slog.Warn("metrics not exported", "error", err)
		}
	}

	if waitErr != nil {
		unanswered := permissions.NewSet(names...).Difference(permissions.NewSet(outcome.Granted...))
		reason := "request aborted"
		if errors.Is(waitErr, context.DeadlineExceeded) {
			reason = "request timed out"
		}
		return apperrors.NewCapabilityError(reason, unanswered.Sorted())
	}
	if len(outcome.Denied) > 0 {
		return apperrors.NewCapabilityError("capabilities denied", outcome.Denied)
	}
	return nil
}

// relayResults feeds host answers to the orchestrator until ctx ends or the
// host closes its result channel.
func relayResults(ctx context.Context, results <-chan host.Result, orchestrator *services.PermissionOrchestrator) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if err := orchestrator.DeliverResult(res.Code, res.Names, res.Grants); err != nil {
				slog.Warn("host result rejected", "session", res.SessionID, "error", err)
			}
		}
	}
}
