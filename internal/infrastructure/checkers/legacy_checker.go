package checkers

import (
	"fmt"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

// LegacyChecker serves hosts that grant every capability up front and have
// no runtime prompt.
type LegacyChecker struct{}

// NewLegacyChecker creates a LegacyChecker.
func NewLegacyChecker() *LegacyChecker {
	return &LegacyChecker{}
}

// IsGranted always reports true.
func (c *LegacyChecker) IsGranted(string) bool {
	return true
}

// NeedsRationale never asks for a rationale.
func (c *LegacyChecker) NeedsRationale([]string) []string {
	return []string{}
}

// RequestGrant is unreachable when IsGranted holds for every capability.
// Reaching it means the wrong checker was selected for the host.
func (c *LegacyChecker) RequestGrant(code permissions.Code, names []string) error {
	return apperrors.NewInvariantViolationError("legacy checker",
		fmt.Sprintf("request grant %d for %v on a host without runtime grants", code, names))
}
