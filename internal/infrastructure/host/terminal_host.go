// Package host provides a terminal-backed host that the active checker can
// consult: grants come from the ledger and from answers given this session,
// prompts run asynchronously and publish their outcome on a channel.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
	"github.com/reglet-dev/rtperm/internal/infrastructure/capabilities"
)

// Result is the host's answer to one RequestPermissions call. Names and
// Grants correspond index by index. Names may be shorter than the request
// when the prompt session was interrupted.
type Result struct {
	SessionID string
	Names     []string
	Grants    []bool
	Code      permissions.Code
}

// TerminalHost answers grant questions from a ledger and prompts the user on
// the terminal.
type TerminalHost struct {
	store     ports.GrantStore
	prompter  ports.Prompter
	policy    *capabilities.RationalePolicy
	autoGrant bool

	ctx     context.Context
	cancel  context.CancelFunc
	results chan Result
	wg      sync.WaitGroup

	// mu guards ledger, session and closed.
	mu      sync.Mutex
	ledger  *permissions.Ledger
	session permissions.Set
	// prompting serializes prompt sessions on the terminal.
	prompting sync.Mutex
	closed    bool
}

// Option configures a TerminalHost.
type Option func(*TerminalHost)

// WithStore sets the grant store.
func WithStore(s ports.GrantStore) Option {
	return func(h *TerminalHost) { h.store = s }
}

// WithPrompter sets the prompter.
func WithPrompter(p ports.Prompter) Option {
	return func(h *TerminalHost) { h.prompter = p }
}

// WithRationalePolicy sets the rationale policy.
func WithRationalePolicy(p *capabilities.RationalePolicy) Option {
	return func(h *TerminalHost) { h.policy = p }
}

// WithAutoGrant grants every requested capability without prompting.
func WithAutoGrant(enabled bool) Option {
	return func(h *TerminalHost) { h.autoGrant = enabled }
}

// NewTerminalHost creates a host and loads its ledger.
func NewTerminalHost(opts ...Option) (*TerminalHost, error) {
	h := &TerminalHost{
		results: make(chan Result, 1),
		session: permissions.NewSet(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.store == nil {
		h.store = capabilities.NewFileStore("")
	}
	if h.prompter == nil {
		h.prompter = capabilities.NewTerminalPrompter(h.store.ConfigPath())
	}
	if h.policy == nil {
		policy, err := capabilities.NewRationalePolicy("")
		if err != nil {
			return nil, err
		}
		h.policy = policy
	}

	ledger, err := h.store.Load()
	if err != nil {
		return nil, err
	}
	h.ledger = ledger
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h, nil
}

// Results delivers one Result per RequestPermissions call. It is closed by
// Close.
func (h *TerminalHost) Results() <-chan Result {
	return h.results
}

// CheckPermission reports whether the ledger or this session grants name.
func (h *TerminalHost) CheckPermission(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Has(name) || h.ledger.Allows(name)
}

// ShouldShowRationale evaluates the rationale policy for name.
func (h *TerminalHost) ShouldShowRationale(name string) bool {
	h.mu.Lock()
	denials := h.ledger.DenialCount(name)
	h.mu.Unlock()

	needed, err := h.policy.Evaluate(name, denials)
	if err != nil {
		slog.Warn("rationale policy evaluation failed", "capability", name, "error", err)
		return false
	}
	return needed
}

// RequestPermissions starts a prompt session for names and returns at once.
func (h *TerminalHost) RequestPermissions(code permissions.Code, names []string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		slog.Warn("permission request after host closed", "code", code)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	names = append([]string{}, names...)
	go func() {
		defer h.wg.Done()
		h.publish(h.prompt(code, names))
	}()
}

// Close cancels open prompts, waits for running sessions and closes Results.
func (h *TerminalHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	close(h.results)
	return nil
}

// Ledger returns a copy of the current ledger.
func (h *TerminalHost) Ledger() *permissions.Ledger {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ledger.Clone()
}

func (h *TerminalHost) prompt(code permissions.Code, names []string) Result {
	result := Result{
		SessionID: uuid.NewString(),
		Code:      code,
		Names:     []string{},
		Grants:    []bool{},
	}
	log := slog.With("session", result.SessionID, "code", code)

	if h.autoGrant {
		log.Warn("Auto-granting all requested capabilities (--auto-grant enabled)", "capabilities", names)
		for _, name := range names {
			result.Names = append(result.Names, name)
			result.Grants = append(result.Grants, true)
		}
		return result
	}

	if !h.prompter.IsInteractive() {
		log.Warn("denying capabilities", "error", h.prompter.FormatNonInteractiveError(names))
		for _, name := range names {
			result.Names = append(result.Names, name)
			result.Grants = append(result.Grants, false)
		}
		return result
	}

	h.prompting.Lock()
	defer h.prompting.Unlock()

	for _, name := range names {
		granted, always, err := h.prompter.PromptForCapability(h.ctx, name)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn("prompt interrupted", "capability", name, "error", err)
			}
			break
		}
		h.record(name, granted, always)
		result.Names = append(result.Names, name)
		result.Grants = append(result.Grants, granted)
	}

	log.Debug("prompt session finished", "names", result.Names, "grants", result.Grants)
	return result
}

// record applies one answer to the session and, when durable, to the ledger.
func (h *TerminalHost) record(name string, granted, always bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	persist := false
	switch {
	case granted && always:
		if err := h.ledger.Grant(name); err != nil {
			slog.Warn("cannot store grant, keeping it for this session", "capability", name, "error", err)
			h.session.Add(name)
			return
		}
		persist = true
	case granted:
		h.session.Add(name)
	default:
		h.ledger.RecordDenial(name)
		persist = true
	}

	if !persist {
		return
	}
	if err := h.store.Save(h.ledger); err != nil {
		slog.Error("failed to save grants", "path", h.store.ConfigPath(), "error", err)
		return
	}
	slog.Debug("grants saved", "path", h.store.ConfigPath())
}

func (h *TerminalHost) publish(result Result) {
	select {
	case h.results <- result:
	case <-h.ctx.Done():
		slog.Debug("dropping host result after close", "session", result.SessionID, "code", result.Code)
	}
}
