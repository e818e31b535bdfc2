// Package services contains application use cases.
package services

import (
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/reglet-dev/rtperm/internal/application/errors"
	"github.com/reglet-dev/rtperm/internal/application/ports"
	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

// State is the orchestrator's position in the request lifecycle.
type State int

const (
	// StateIdle means no request is in flight.
	StateIdle State = iota
	// StateChecking is the transient state while a check is evaluated.
	StateChecking
	// StateAwaitingRationaleDecision means a rationale is shown and the
	// user has not answered yet.
	StateAwaitingRationaleDecision
	// StateAwaitingHostResult means the host prompt was issued and its
	// asynchronous result has not arrived.
	StateAwaitingHostResult
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateAwaitingRationaleDecision:
		return "awaiting-rationale-decision"
	case StateAwaitingHostResult:
		return "awaiting-host-result"
	default:
		return "unknown"
	}
}

// notification is a client callback queued for delivery outside the lock.
type notification struct {
	req  *permissions.Request
	fire func()
}

// PermissionOrchestrator drives one permission request at a time through
// check, rationale, host prompt and result reconciliation.
//
// Check, DeliverResult, Abort and rationale decisions mutate the in-flight
// request under a single mutex. Client callbacks are queued in causal order
// while the lock is held and delivered once it is released, so callbacks may
// call back into the orchestrator.
type PermissionOrchestrator struct {
	checker ports.CapabilityChecker
	client  ports.RequestClient

	mu sync.Mutex
	// current is the in-flight request, nil when idle.
	current *permissions.Request
	// rationale holds the names waiting on the user's rationale decision.
	rationale permissions.Set
	handle    ports.RationaleHandle
	// outstanding counts RequestGrant calls still waiting for a result.
	outstanding int
	// sent holds names handed to the host and not yet resolved.
	sent permissions.Set

	outbox   []notification
	draining bool
}

// NewPermissionOrchestrator creates an idle orchestrator.
func NewPermissionOrchestrator(checker ports.CapabilityChecker, client ports.RequestClient) *PermissionOrchestrator {
	return &PermissionOrchestrator{
		checker: checker,
		client:  client,
		sent:    permissions.NewSet(),
	}
}

// State reports where the orchestrator is in the request lifecycle.
func (o *PermissionOrchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// InFlight returns the code of the in-flight request.
func (o *PermissionOrchestrator) InFlight() (permissions.Code, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return 0, false
	}
	return o.current.Code(), true
}

// Snapshot returns the granted, pending and denied capabilities of the
// in-flight request. All three are empty when idle.
func (o *PermissionOrchestrator) Snapshot() (granted, pending, denied []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return []string{}, []string{}, []string{}
	}
	return o.current.Granted(), o.current.Pending(), o.current.Denied()
}

// Check starts a request for the named capabilities.
// Capabilities the host already grants are reported right away. The rest are
// either sent to the host prompt or, when the host asks for it, held behind
// a rationale surface until the user answers.
func (o *PermissionOrchestrator) Check(code permissions.Code, names ...string) error {
	o.mu.Lock()
	err := o.checkLocked(code, names)
	o.mu.Unlock()

	o.flush()
	return err
}

func (o *PermissionOrchestrator) checkLocked(code permissions.Code, names []string) error {
	if o.current != nil {
		return apperrors.NewInvalidStateError("check", o.current.Code(), "another request is already in progress")
	}

	req, err := permissions.NewRequest(code, names...)
	if err != nil {
		return apperrors.NewInvalidArgumentError("check", "unusable capability set", err)
	}

	o.current = req
	for _, name := range req.Pending() {
		if o.checker.IsGranted(name) {
			req.Grant(name)
		}
	}

	granted := req.Granted()
	if req.IsSatisfied() {
		slog.Debug("all capabilities already granted", "code", code, "capabilities", granted)
		o.notifyGranted(req, granted)
		o.resetLocked()
		return nil
	}

	pending := req.PendingSet()
	needsRationale := permissions.NewSet(o.checker.NeedsRationale(pending.Sorted())...).Intersect(pending)
	direct := pending.Difference(needsRationale)

	if direct.Len() > 0 {
		if err := o.issueLocked(req, direct.Sorted()); err != nil {
			o.resetLocked()
			return err
		}
	}

	if len(granted) > 0 {
		o.notifyGranted(req, granted)
	}

	if needsRationale.Len() > 0 {
		o.rationale = needsRationale
		o.showRationale(req, needsRationale.Sorted())
	}

	slog.Debug("permission request started",
		"code", code,
		"granted", granted,
		"prompted", direct.Sorted(),
		"rationale", needsRationale.Sorted(),
		"state", o.stateLocked())
	return nil
}

// DeliverResult relays the host's asynchronous answer to a prompt.
// names and grants must correspond index by index. Results for another code,
// or arriving while idle, are ignored.
func (o *PermissionOrchestrator) DeliverResult(code permissions.Code, names []string, grants []bool) error {
	o.mu.Lock()
	err := o.deliverLocked(code, names, grants)
	o.mu.Unlock()

	o.flush()
	return err
}

func (o *PermissionOrchestrator) deliverLocked(code permissions.Code, names []string, grants []bool) error {
	req := o.current
	if req == nil || req.Code() != code {
		slog.Debug("ignoring host result without matching request", "code", code)
		return nil
	}
	if o.outstanding == 0 {
		slog.Debug("ignoring host result with no prompt outstanding", "code", code)
		return nil
	}

	if len(names) != len(grants) {
		o.resetLocked()
		return apperrors.NewContractViolationError(code,
			fmt.Sprintf("%d capabilities but %d grant results", len(names), len(grants)))
	}

	o.outstanding--

	granted := permissions.NewSet()
	denied := permissions.NewSet()
	for i, name := range names {
		if !o.sent.Has(name) || !req.IsPending(name) {
			continue
		}
		o.sent.Remove(name)
		if grants[i] {
			req.Grant(name)
			granted.Add(name)
		} else {
			req.Deny(name)
			denied.Add(name)
		}
	}

	if o.outstanding == 0 {
		// The host answered every prompt; whatever it left out was not granted.
		for _, name := range o.sent.Sorted() {
			if req.Deny(name) {
				denied.Add(name)
			}
		}
		o.sent = permissions.NewSet()
	}

	if granted.Len() > 0 {
		o.notifyGranted(req, granted.Sorted())
	}
	if denied.Len() > 0 {
		o.notifyDenied(req, denied.Sorted())
	}

	slog.Debug("host result reconciled",
		"code", code,
		"granted", granted.Sorted(),
		"denied", denied.Sorted())

	o.settleLocked()
	return nil
}

// Abort drops the in-flight request without invoking any callback.
// An open rationale surface is dismissed through its handle.
func (o *PermissionOrchestrator) Abort() {
	o.mu.Lock()
	req := o.current
	handle := o.handle
	if req != nil {
		slog.Debug("aborting permission request", "code", req.Code(), "state", o.stateLocked())
		o.dropNotifications(req)
		o.resetLocked()
	}
	o.mu.Unlock()

	if handle != nil {
		handle.Dismiss()
	}
}

// decisionFor builds the one-shot rationale callback for req.
func (o *PermissionOrchestrator) decisionFor(req *permissions.Request) ports.RationaleDecision {
	decided := false
	return func(accepted bool) error {
		o.mu.Lock()
		err := o.decideLocked(req, accepted, &decided)
		o.mu.Unlock()

		o.flush()
		return err
	}
}

func (o *PermissionOrchestrator) decideLocked(req *permissions.Request, accepted bool, decided *bool) error {
	if *decided || o.current != req || o.rationale.Len() == 0 {
		slog.Debug("ignoring stale rationale decision", "code", req.Code())
		return nil
	}
	*decided = true

	names := o.rationale.Sorted()
	o.rationale = nil
	o.handle = nil
	code := req.Code()

	if accepted {
		slog.Debug("rationale accepted", "code", code, "capabilities", names)
		if err := o.issueLocked(req, names); err != nil {
			o.dropNotifications(req)
			o.resetLocked()
			return err
		}
	} else {
		slog.Debug("rationale declined", "code", code, "capabilities", names)
		for _, name := range names {
			req.Deny(name)
		}
		o.notifyDenied(req, names)
	}

	o.enqueue(req, func() { o.client.OnRationaleDismissed(code) })
	o.settleLocked()
	return nil
}

// issueLocked hands names to the host prompt.
func (o *PermissionOrchestrator) issueLocked(req *permissions.Request, names []string) error {
	if err := o.checker.RequestGrant(req.Code(), names); err != nil {
		return fmt.Errorf("failed to request grant for %v: %w", names, err)
	}
	o.outstanding++
	o.sent.Add(names...)
	return nil
}

// settleLocked clears the request once nothing is left in flight for it.
func (o *PermissionOrchestrator) settleLocked() {
	if o.current == nil {
		return
	}
	if o.outstanding > 0 || o.rationale.Len() > 0 {
		return
	}
	slog.Debug("permission request finished",
		"code", o.current.Code(),
		"granted", o.current.Granted(),
		"denied", o.current.Denied())
	o.resetLocked()
}

func (o *PermissionOrchestrator) resetLocked() {
	o.current = nil
	o.rationale = nil
	o.handle = nil
	o.outstanding = 0
	o.sent = permissions.NewSet()
}

func (o *PermissionOrchestrator) stateLocked() State {
	switch {
	case o.current == nil:
		return StateIdle
	case o.rationale.Len() > 0:
		return StateAwaitingRationaleDecision
	case o.outstanding > 0:
		return StateAwaitingHostResult
	default:
		return StateChecking
	}
}

func (o *PermissionOrchestrator) notifyGranted(req *permissions.Request, names []string) {
	code := req.Code()
	o.enqueue(req, func() { o.client.OnGranted(code, names) })
}

func (o *PermissionOrchestrator) notifyDenied(req *permissions.Request, names []string) {
	code := req.Code()
	o.enqueue(req, func() { o.client.OnDenied(code, names) })
}

func (o *PermissionOrchestrator) showRationale(req *permissions.Request, names []string) {
	code := req.Code()
	decide := o.decisionFor(req)
	o.enqueue(req, func() {
		handle := o.client.ShowRationale(code, names, decide)

		o.mu.Lock()
		if o.current == req && o.rationale.Len() > 0 {
			o.handle = handle
			handle = nil
		}
		o.mu.Unlock()

		// Decided or aborted before the surface was registered.
		if handle != nil {
			handle.Dismiss()
		}
	})
}

func (o *PermissionOrchestrator) enqueue(req *permissions.Request, fire func()) {
	o.outbox = append(o.outbox, notification{req: req, fire: fire})
}

func (o *PermissionOrchestrator) dropNotifications(req *permissions.Request) {
	kept := o.outbox[:0]
	for _, n := range o.outbox {
		if n.req != req {
			kept = append(kept, n)
		}
	}
	o.outbox = kept
}

// flush delivers queued callbacks. Only one goroutine drains at a time; a
// callback that re-enters the orchestrator queues its own callbacks behind
// the current one.
func (o *PermissionOrchestrator) flush() {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	o.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			o.mu.Lock()
			o.draining = false
			o.mu.Unlock()
		}
	}()

	for {
		n, ok := o.next()
		if !ok {
			finished = true
			return
		}
		n.fire()
	}
}

func (o *PermissionOrchestrator) next() (notification, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.outbox) == 0 {
		o.draining = false
		return notification{}, false
	}
	n := o.outbox[0]
	o.outbox = o.outbox[1:]
	return n, true
}
