package permissions

import (
	"errors"
	"strings"
)

var (
	// ErrNoCapabilities is returned when a request names no capability.
	ErrNoCapabilities = errors.New("no capabilities requested")
	// ErrBlankCapability is returned when a capability name is empty.
	ErrBlankCapability = errors.New("blank capability name")
)

// Code correlates a request with the host's asynchronous answer to it.
type Code int

// Status is the resolution state of one capability inside a request.
type Status int

const (
	// StatusUnknown means the capability is not tracked by the request.
	StatusUnknown Status = iota
	// StatusPending means no decision has been made yet.
	StatusPending
	// StatusGranted means the capability was granted.
	StatusGranted
	// StatusDenied means the capability was denied.
	StatusDenied
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Request tracks per-capability status for one logical permission request.
// Every requested capability sits in exactly one of the granted, pending and
// denied sets. A capability only leaves pending by being granted or denied,
// and only returns to pending after it was removed.
//
// Request is not safe for concurrent use; its owner serializes access.
type Request struct {
	code      Code
	requested Set
	granted   Set
	pending   Set
	denied    Set
}

// NewRequest creates a request with every named capability pending.
// Duplicate names collapse into one entry.
func NewRequest(code Code, names ...string) (*Request, error) {
	if len(names) == 0 {
		return nil, ErrNoCapabilities
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, ErrBlankCapability
		}
	}

	return &Request{
		code:      code,
		requested: NewSet(names...),
		granted:   NewSet(),
		pending:   NewSet(names...),
		denied:    NewSet(),
	}, nil
}

// Code returns the caller-supplied correlation code.
func (r *Request) Code() Code {
	return r.code
}

// Grant moves a pending capability to granted.
// It returns false if the capability was not pending.
func (r *Request) Grant(name string) bool {
	if !r.pending.Has(name) {
		return false
	}
	r.pending.Remove(name)
	r.granted.Add(name)
	return true
}

// Deny moves a pending capability to denied.
// It returns false if the capability was not pending.
func (r *Request) Deny(name string) bool {
	if !r.pending.Has(name) {
		return false
	}
	r.pending.Remove(name)
	r.denied.Add(name)
	return true
}

// Remove stops tracking the named capabilities, whatever their status.
func (r *Request) Remove(names ...string) {
	r.pending.Remove(names...)
	r.granted.Remove(names...)
	r.denied.Remove(names...)
}

// Restore puts a removed capability back into pending so it can be checked
// again. Only capabilities from the original request that are currently
// untracked can be restored.
func (r *Request) Restore(name string) bool {
	if !r.requested.Has(name) || r.Status(name) != StatusUnknown {
		return false
	}
	r.pending.Add(name)
	return true
}

// Status returns where the capability currently sits.
func (r *Request) Status(name string) Status {
	switch {
	case r.pending.Has(name):
		return StatusPending
	case r.granted.Has(name):
		return StatusGranted
	case r.denied.Has(name):
		return StatusDenied
	default:
		return StatusUnknown
	}
}

// IsPending reports whether the capability still awaits a decision.
func (r *Request) IsPending(name string) bool {
	return r.pending.Has(name)
}

// Requested returns the original capability names, sorted.
func (r *Request) Requested() []string {
	return r.requested.Sorted()
}

// Granted returns the granted capabilities, sorted.
func (r *Request) Granted() []string {
	return r.granted.Sorted()
}

// Pending returns the undecided capabilities, sorted.
func (r *Request) Pending() []string {
	return r.pending.Sorted()
}

// Denied returns the denied capabilities, sorted.
func (r *Request) Denied() []string {
	return r.denied.Sorted()
}

// PendingSet returns a copy of the pending capabilities.
func (r *Request) PendingSet() Set {
	return r.pending.Clone()
}

// IsSatisfied reports whether every tracked capability has been decided.
func (r *Request) IsSatisfied() bool {
	return r.pending.Len() == 0
}

// HasGrants reports whether any capability was granted.
func (r *Request) HasGrants() bool {
	return r.granted.Len() > 0
}

// HasDenials reports whether any capability was denied.
func (r *Request) HasDenials() bool {
	return r.denied.Len() > 0
}
