package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Allows(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Grant("camera"))
	require.NoError(t, l.Grant("fs:read:/etc/**"))
	require.NoError(t, l.Grant("network:*"))

	tests := []struct {
		name     string
		expected bool
	}{
		{"camera", true},
		{"microphone", false},
		{"fs:read:/etc/hosts", true},
		{"fs:read:/etc/ssh/sshd_config", true},
		{"fs:read:/var/log/syslog", false},
		{"fs:write:/etc/hosts", false},
		{"network:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, l.Allows(tt.name))
		})
	}
}

func TestLedger_GrantAndRevoke(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	require.NoError(t, l.Grant("camera"))
	require.NoError(t, l.Grant("camera"))
	assert.Len(t, l.Grants, 1)

	assert.ErrorIs(t, l.Grant(" "), ErrBlankCapability)
	assert.Error(t, l.Grant("fs:[read"))

	assert.True(t, l.Revoke("camera"))
	assert.False(t, l.Revoke("camera"))
	assert.False(t, l.Allows("camera"))
}

func TestLedger_Denials(t *testing.T) {
	t.Parallel()

	l := &Ledger{}
	assert.Equal(t, 0, l.DenialCount("camera"))

	l.RecordDenial("camera")
	l.RecordDenial("camera")
	assert.Equal(t, 2, l.DenialCount("camera"))

	clone := l.Clone()
	l.ResetDenials()
	assert.Equal(t, 0, l.DenialCount("camera"))
	assert.Equal(t, 2, clone.DenialCount("camera"))
}
