// Package system provides infrastructure for system-level configuration.
// This includes loading the system config file (~/.rtperm/config.yaml) and
// deciding which host grant model applies.
package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
)

// RuntimeGrantConstraint is the host version range that supports runtime
// grants. Older hosts grant everything at install time.
const RuntimeGrantConstraint = ">= 6.0.0"

// Config represents the global configuration file (~/.rtperm/config.yaml).
type Config struct {
	Grants    GrantsConfig    `yaml:"grants"`
	Host      HostConfig      `yaml:"host"`
	Rationale RationaleConfig `yaml:"rationale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// GrantsConfig locates the grant ledger.
type GrantsConfig struct {
	// File is the ledger path. Empty means ~/.rtperm/grants.yaml.
	File string `yaml:"file"`
}

// HostConfig describes the host the orchestrator runs against.
type HostConfig struct {
	// RuntimeGrants forces the grant model when set.
	RuntimeGrants *bool `yaml:"runtime_grants"`

	// Version is the host version, checked against RuntimeGrantConstraint
	// when RuntimeGrants is unset.
	Version string `yaml:"version"`

	// AutoGrant grants every request without prompting.
	AutoGrant bool `yaml:"auto_grant"`
}

// RationaleConfig configures when a justification is shown.
type RationaleConfig struct {
	// Policy is an expr boolean over name, kind and denials.
	Policy string `yaml:"policy"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile is written after each check when set.
	Textfile string `yaml:"textfile"`
}

// SupportsRuntimeGrants reports whether the host grants capabilities at
// runtime. An explicit RuntimeGrants wins, then the host version, then true.
func (h HostConfig) SupportsRuntimeGrants() (bool, error) {
	if h.RuntimeGrants != nil {
		return *h.RuntimeGrants, nil
	}
	if h.Version == "" {
		return true, nil
	}

	v, err := semver.NewVersion(h.Version)
	if err != nil {
		return false, apperrors.NewConfigurationError("host.version",
			fmt.Sprintf("invalid host version %q", h.Version), err)
	}
	c, err := semver.NewConstraint(RuntimeGrantConstraint)
	if err != nil {
		return false, apperrors.NewConfigurationError("host.version", "invalid runtime grant constraint", err)
	}
	return c.Check(v), nil
}

// ConfigLoader loads system configuration from disk.
type ConfigLoader struct{}

// NewConfigLoader creates a new system config loader.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// DefaultConfig returns a Config with safe defaults for all fields.
// This is used when no system config file exists.
func DefaultConfig() *Config {
	return &Config{}
}

// DefaultConfigPath returns ~/.rtperm/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".rtperm", "config.yaml"), nil
}

// Load loads the system configuration from the specified path.
// If the file does not exist, returns DefaultConfig().
func (l *ConfigLoader) Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}

	//nolint:gosec // G304: path is the user's config file
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}

	return config, nil
}
