package main

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
	"github.com/reglet-dev/rtperm/internal/infrastructure/system"
)

// answerPrompter answers prompts from fixed tables and records what it was
// asked.
type answerPrompter struct {
	mu        sync.Mutex
	grant     map[string]bool
	always    bool
	confirm   bool
	block     bool
	asked     []string
	rationale [][]string
}

func (p *answerPrompter) IsInteractive() bool { return true }

func (p *answerPrompter) PromptForCapability(ctx context.Context, name string) (bool, bool, error) {
	if p.block {
		<-ctx.Done()
		return false, false, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, name)
	return p.grant[name], p.always, nil
}

func (p *answerPrompter) ConfirmRationale(_ context.Context, names []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rationale = append(p.rationale, names)
	return p.confirm, nil
}

func (p *answerPrompter) FormatNonInteractiveError([]string) error { return nil }

func testConfig(t *testing.T) *system.Config {
	t.Helper()
	cfg := system.DefaultConfig()
	cfg.Grants.File = filepath.Join(t.TempDir(), "grants.yaml")
	return cfg
}

func testOptions() checkOptions {
	return checkOptions{CommonOptions: CommonOptions{Timeout: 5 * time.Second}, Code: 9}
}

func TestRunCheck_AlreadyGranted(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store := capabilities.NewFileStore(cfg.Grants.File)
	ledger := permissions.NewLedger()
	require.NoError(t, ledger.Grant("fs:read:/etc/**"))
	require.NoError(t, store.Save(ledger))

	prompter := &answerPrompter{}
	var out bytes.Buffer
	err := runCheck(context.Background(), cfg, testOptions(), []string{"fs:read:/etc/hosts"}, checkDeps{out: &out, prompter: prompter})

	require.NoError(t, err)
	assert.Empty(t, prompter.asked)
	assert.Contains(t, out.String(), "Read files: /etc/hosts (granted)")
}

func TestRunCheck_PromptsAndReportsDenial(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	prompter := &answerPrompter{grant: map[string]bool{"camera": true}}
	registry := prometheus.NewRegistry()

	err := runCheck(context.Background(), cfg, testOptions(), []string{"camera", "location"},
		checkDeps{out: &bytes.Buffer{}, prompter: prompter, registry: registry})

	var capErr *apperrors.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, []string{"location"}, capErr.Denied)
	assert.ElementsMatch(t, []string{"camera", "location"}, prompter.asked)

	// The denial is remembered for the rationale policy
	saved, err := capabilities.NewFileStore(cfg.Grants.File).Load()
	require.NoError(t, err)
	assert.Equal(t, 1, saved.DenialCount("location"))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, fam := range families {
		names = append(names, fam.GetName())
	}
	assert.Contains(t, names, "rtperm_granted_total")
	assert.Contains(t, names, "rtperm_denied_total")
}

func TestRunCheck_RationaleAccepted(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store := capabilities.NewFileStore(cfg.Grants.File)
	ledger := permissions.NewLedger()
	ledger.RecordDenial("location")
	require.NoError(t, store.Save(ledger))

	prompter := &answerPrompter{grant: map[string]bool{"location": true}, confirm: true}
	err := runCheck(context.Background(), cfg, testOptions(), []string{"location"}, checkDeps{out: &bytes.Buffer{}, prompter: prompter})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"location"}}, prompter.rationale)
	assert.Equal(t, []string{"location"}, prompter.asked)
}

func TestRunCheck_RationaleDeclined(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Rationale.Policy = `kind == "exec"`
	prompter := &answerPrompter{confirm: false}

	err := runCheck(context.Background(), cfg, testOptions(), []string{"exec:/bin/sh"}, checkDeps{out: &bytes.Buffer{}, prompter: prompter})

	var capErr *apperrors.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, []string{"exec:/bin/sh"}, capErr.Denied)
	assert.Empty(t, prompter.asked, "declining the rationale must not prompt")
}

func TestRunCheck_LegacyHost(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Host.Version = "5.1.0"
	prompter := &answerPrompter{}

	err := runCheck(context.Background(), cfg, testOptions(), []string{"camera", "exec:/bin/sh"}, checkDeps{out: &bytes.Buffer{}, prompter: prompter})

	require.NoError(t, err)
	assert.Empty(t, prompter.asked)
}

func TestRunCheck_AutoGrant(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Host.AutoGrant = true
	prompter := &answerPrompter{}

	err := runCheck(context.Background(), cfg, testOptions(), []string{"camera"}, checkDeps{out: &bytes.Buffer{}, prompter: prompter})

	require.NoError(t, err)
	assert.Empty(t, prompter.asked)
}

func TestRunCheck_Timeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	prompter := &answerPrompter{block: true}
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond

	err := runCheck(context.Background(), cfg, opts, []string{"camera"}, checkDeps{out: &bytes.Buffer{}, prompter: prompter})

	var capErr *apperrors.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "request timed out", capErr.Reason)
	assert.Equal(t, []string{"camera"}, capErr.Denied)
}

func TestRunCheck_MetricsTextfile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Host.AutoGrant = true
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "rtperm.prom")

	err := runCheck(context.Background(), cfg, testOptions(), []string{"network:outbound:443"}, checkDeps{out: &bytes.Buffer{}, prompter: &answerPrompter{}})
	require.NoError(t, err)
	assert.FileExists(t, cfg.Metrics.Textfile)
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*system.Config)
		aspect string
	}{
		{name: "bad host version", mutate: func(c *system.Config) { c.Host.Version = "banana" }, aspect: "host.version"},
		{name: "bad policy", mutate: func(c *system.Config) { c.Rationale.Policy = "denials >" }, aspect: "rationale policy"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t)
			tt.mutate(cfg)
			err := runCheck(context.Background(), cfg, testOptions(), []string{"camera"}, checkDeps{out: &bytes.Buffer{}, prompter: &answerPrompter{}})

			var cfgErr *apperrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.aspect, cfgErr.Aspect)
		})
	}
}
