package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
)

func newTestStore(t *testing.T) *capabilities.FileStore {
	t.Helper()
	return capabilities.NewFileStore(filepath.Join(t.TempDir(), "grants.yaml"))
}

func TestGrants_AddAndRevoke(t *testing.T) {
	store := newTestStore(t)
	var out bytes.Buffer

	require.NoError(t, runWithStore(store, &out, addGrants, []string{"fs:read:/etc/**", "camera"}))
	assert.Contains(t, out.String(), "Read files: /etc/**")

	ledger, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ledger.Allows("fs:read:/etc/passwd"))
	assert.True(t, ledger.Allows("camera"))

	require.NoError(t, runWithStore(store, &out, revokeGrants, []string{"camera"}))
	ledger, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"fs:read:/etc/**"}, ledger.Grants)
}

func TestGrants_AddInvalidPattern(t *testing.T) {
	store := newTestStore(t)

	err := runWithStore(store, &bytes.Buffer{}, addGrants, []string{"fs:[read"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot grant "fs:[read"`)
	assert.NoFileExists(t, store.ConfigPath())
}

func TestGrants_RevokeMissing(t *testing.T) {
	store := newTestStore(t)

	err := runWithStore(store, &bytes.Buffer{}, revokeGrants, []string{"camera"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored grant")
}

func TestGrants_Reset(t *testing.T) {
	tests := []struct {
		name       string
		all        bool
		wantGrants []string
	}{
		{name: "denials only", all: false, wantGrants: []string{"camera"}},
		{name: "everything", all: true, wantGrants: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := resetAll
			resetAll = tt.all
			defer func() { resetAll = original }()

			store := newTestStore(t)
			ledger := permissions.NewLedger()
			require.NoError(t, ledger.Grant("camera"))
			ledger.RecordDenial("location")
			require.NoError(t, store.Save(ledger))

			require.NoError(t, runWithStore(store, &bytes.Buffer{}, resetLedger, nil))

			saved, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, 0, saved.DenialCount("location"))
			assert.ElementsMatch(t, tt.wantGrants, saved.Grants)
		})
	}
}

func TestPrintLedger(t *testing.T) {
	ledger := permissions.NewLedger()
	require.NoError(t, ledger.Grant("exec:/bin/sh"))
	ledger.RecordDenial("location")
	ledger.RecordDenial("location")

	var out bytes.Buffer
	printLedger(&out, "/home/u/.rtperm/grants.yaml", ledger)

	assert.Contains(t, out.String(), "Grants file: /home/u/.rtperm/grants.yaml")
	assert.Contains(t, out.String(), "Shell execution")
	assert.Regexp(t, `location\s+2`, out.String())

	out.Reset()
	printLedger(&out, "grants.yaml", permissions.NewLedger())
	assert.Contains(t, out.String(), "No stored grants.")
	assert.NotContains(t, out.String(), "Denials:")
}
