// Package checkers provides CapabilityChecker implementations for hosts with
// and without a runtime grant model.
package checkers

import (
	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

// ActiveChecker answers grant queries from a live host.
type ActiveChecker struct {
	host ports.HostContext
}

// NewActiveChecker creates a checker backed by host.
func NewActiveChecker(host ports.HostContext) *ActiveChecker {
	if host == nil {
		panic("checkers: nil host context")
	}
	return &ActiveChecker{host: host}
}

// IsGranted reports whether the host currently grants the capability.
func (c *ActiveChecker) IsGranted(name string) bool {
	return c.host.CheckPermission(name)
}

// NeedsRationale returns the capabilities the host wants justified first.
func (c *ActiveChecker) NeedsRationale(names []string) []string {
	needed := []string{}
	for _, name := range names {
		if c.host.ShouldShowRationale(name) {
			needed = append(needed, name)
		}
	}
	return needed
}

// RequestGrant asks the host to prompt for the capabilities.
func (c *ActiveChecker) RequestGrant(code permissions.Code, names []string) error {
	if len(names) == 0 {
		return apperrors.NewInvalidArgumentError("request grant", "no capabilities specified", permissions.ErrNoCapabilities)
	}
	c.host.RequestPermissions(code, append([]string{}, names...))
	return nil
}
