// Package ports defines interfaces for infrastructure dependencies.
// These are the "ports" in hexagonal architecture - abstractions that
// the application layer depends on but doesn't implement.
package ports

import (
	"context"

	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

// CapabilityChecker is a stateless view over a host's grant model.
type CapabilityChecker interface {
	// IsGranted reports the current grant state. It must not have side effects.
	IsGranted(name string) bool

	// NeedsRationale returns the subset of names for which the host wants a
	// justification shown before prompting. Empty when none apply.
	NeedsRationale(names []string) []string

	// RequestGrant starts the host's asynchronous prompt and returns
	// immediately. The outcome arrives later through the result relay.
	// It must not call back into the orchestrator synchronously.
	RequestGrant(code permissions.Code, names []string) error
}

// RationaleDecision reports the user's answer to a rationale surface.
// Only the first call for a request has an effect.
type RationaleDecision func(accepted bool) error

// RationaleHandle lets the orchestrator close a rationale surface that is no
// longer needed.
type RationaleHandle interface {
	Dismiss()
}

// RequestClient receives lifecycle callbacks for a permission request and
// renders the rationale surface.
type RequestClient interface {
	// OnGranted reports capabilities newly granted for the request.
	OnGranted(code permissions.Code, names []string)

	// OnDenied reports capabilities newly denied for the request.
	OnDenied(code permissions.Code, names []string)

	// OnRationaleDismissed reports that the rationale surface is done.
	OnRationaleDismissed(code permissions.Code)

	// ShowRationale displays the justification for names and calls decide
	// once with the user's answer. The returned handle may be nil.
	ShowRationale(code permissions.Code, names []string, decide RationaleDecision) RationaleHandle
}

// HostContext is the live host an active checker consults.
type HostContext interface {
	// CheckPermission reports whether the host currently grants name.
	CheckPermission(name string) bool

	// ShouldShowRationale reports whether the host wants a justification
	// for name before prompting.
	ShouldShowRationale(name string) bool

	// RequestPermissions starts the host prompt for names without blocking.
	RequestPermissions(code permissions.Code, names []string)
}

// GrantStore persists and retrieves a host's grant ledger.
type GrantStore interface {
	Load() (*permissions.Ledger, error)
	Save(ledger *permissions.Ledger) error
	ConfigPath() string
}

// Prompter handles interactive capability authorization.
type Prompter interface {
	IsInteractive() bool
	PromptForCapability(ctx context.Context, name string) (granted bool, always bool, err error)
	ConfirmRationale(ctx context.Context, names []string) (bool, error)
	FormatNonInteractiveError(names []string) error
}
