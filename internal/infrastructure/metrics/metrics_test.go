package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

type recordingClient struct {
	events []string
}

func (c *recordingClient) OnGranted(permissions.Code, []string)  { c.events = append(c.events, "granted") }
func (c *recordingClient) OnDenied(permissions.Code, []string)   { c.events = append(c.events, "denied") }
func (c *recordingClient) OnRationaleDismissed(permissions.Code) { c.events = append(c.events, "dismissed") }

func (c *recordingClient) ShowRationale(permissions.Code, []string, ports.RationaleDecision) ports.RationaleHandle {
	c.events = append(c.events, "rationale")
	return nil
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) (float64, bool) {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, pair := range pairs {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestNoopMetrics(t *testing.T) {
	var m Noop
	m.IncGranted("fs")
	m.IncDenied("fs")
	m.IncRationaleShown("fs")
	m.IncRationaleDismissed()
}

func TestInstrument(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewProm("rtperm", reg)
	require.NoError(t, err)

	next := &recordingClient{}
	client := Instrument(next, m)
	client.OnGranted(1, []string{"fs:read:/etc/hosts", "fs:write:/tmp", "camera"})
	client.OnDenied(1, []string{"exec:/bin/sh"})
	assert.Nil(t, client.ShowRationale(1, []string{"location", "exec:/bin/ls"}, func(bool) error { return nil }))
	client.OnRationaleDismissed(1)

	assert.Equal(t, []string{"granted", "denied", "rationale", "dismissed"}, next.events)

	families, err := reg.Gather()
	require.NoError(t, err)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"rtperm_granted_total", map[string]string{"kind": "fs"}, 2},
		{"rtperm_granted_total", map[string]string{"kind": "camera"}, 1},
		{"rtperm_denied_total", map[string]string{"kind": "exec"}, 1},
		{"rtperm_rationale_shown_total", map[string]string{"kind": "location"}, 1},
		{"rtperm_rationale_shown_total", map[string]string{"kind": "exec"}, 1},
		{"rtperm_rationale_dismissed_total", map[string]string{}, 1},
	}
	for _, tt := range tests {
		got, ok := counterValue(families, tt.name, tt.labels)
		require.True(t, ok, "missing %s %v", tt.name, tt.labels)
		assert.Equal(t, tt.want, got, "%s %v", tt.name, tt.labels)
	}
}

func TestNewProm_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewProm("rtperm", reg)
	require.NoError(t, err)

	_, err = NewProm("rtperm", reg)
	assert.Error(t, err)
}

func TestInstrument_NilMetrics(t *testing.T) {
	t.Parallel()

	next := &recordingClient{}
	Instrument(next, nil).OnGranted(1, []string{"camera"})
	assert.Equal(t, []string{"granted"}, next.events)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewProm("rtperm", reg)
	require.NoError(t, err)
	m.IncDenied("network")

	path := filepath.Join(t.TempDir(), "rtperm.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rtperm_denied_total{kind="network"} 1`)
}

func TestWriteTextfile_BadPath(t *testing.T) {
	t.Parallel()

	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "rtperm.prom"), prometheus.NewRegistry())
	assert.Error(t, err)
}
