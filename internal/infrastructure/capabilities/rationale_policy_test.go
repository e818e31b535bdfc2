package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
)

func TestRationalePolicy_Default(t *testing.T) {
	t.Parallel()

	policy, err := NewRationalePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRationalePolicy, policy.String())

	needed, err := policy.Evaluate("camera", 0)
	require.NoError(t, err)
	assert.False(t, needed)

	needed, err = policy.Evaluate("camera", 1)
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestRationalePolicy_Custom(t *testing.T) {
	t.Parallel()

	policy, err := NewRationalePolicy(`kind == "exec" || denials >= 2`)
	require.NoError(t, err)

	tests := []struct {
		name     string
		denials  int
		expected bool
	}{
		{"exec:/bin/sh", 0, true},
		{"fs:read:/etc/hosts", 1, false},
		{"fs:read:/etc/hosts", 2, true},
		{"camera", 0, false},
	}

	for _, tt := range tests {
		needed, err := policy.Evaluate(tt.name, tt.denials)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, needed, "%s with %d denials", tt.name, tt.denials)
	}
}

func TestRationalePolicy_Invalid(t *testing.T) {
	t.Parallel()

	tests := []string{
		"invalid syntax ((",
		`name + "x"`,
		"unknownVar > 1",
	}

	for _, expression := range tests {
		_, err := NewRationalePolicy(expression)
		var cfgErr *apperrors.ConfigurationError
		require.ErrorAs(t, err, &cfgErr, expression)
		assert.Equal(t, "rationale policy", cfgErr.Aspect)
	}
}
