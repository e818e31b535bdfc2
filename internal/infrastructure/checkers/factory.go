package checkers

import (
	"log/slog"

	"github.com/reglet-dev/rtperm/internal/application/ports"
)

// New selects the checker for a host. Hosts without runtime grants get the
// legacy checker and host is not consulted.
func New(runtimeGrants bool, host ports.HostContext) ports.CapabilityChecker {
	if !runtimeGrants {
		slog.Debug("host has no runtime grants, using legacy checker")
		return NewLegacyChecker()
	}
	return NewActiveChecker(host)
}
