package permissions

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Ledger is a host's durable record of capability decisions: the grants the
// user chose to keep and how often each capability was declined.
// Grants are capability names or doublestar patterns, so "fs:read:/etc/**"
// covers "fs:read:/etc/hosts".
type Ledger struct {
	Denials map[string]int
	Grants  []string
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Denials: make(map[string]int),
		Grants:  []string{},
	}
}

// Allows reports whether any grant covers the capability.
func (l *Ledger) Allows(name string) bool {
	for _, pattern := range l.Grants {
		if pattern == name {
			return true
		}
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Grant records a grant pattern. Adding a pattern twice is a no-op.
func (l *Ledger) Grant(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return ErrBlankCapability
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid grant pattern %q", pattern)
	}
	for _, existing := range l.Grants {
		if existing == pattern {
			return nil
		}
	}
	l.Grants = append(l.Grants, pattern)
	return nil
}

// Revoke removes a grant pattern and reports whether it was present.
func (l *Ledger) Revoke(pattern string) bool {
	for i, existing := range l.Grants {
		if existing == pattern {
			l.Grants = append(l.Grants[:i], l.Grants[i+1:]...)
			return true
		}
	}
	return false
}

// RecordDenial counts one more decline of the capability.
func (l *Ledger) RecordDenial(name string) {
	if l.Denials == nil {
		l.Denials = make(map[string]int)
	}
	l.Denials[name]++
}

// DenialCount returns how many times the capability was declined.
func (l *Ledger) DenialCount(name string) int {
	return l.Denials[name]
}

// ResetDenials forgets every recorded decline.
func (l *Ledger) ResetDenials() {
	l.Denials = make(map[string]int)
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		Denials: make(map[string]int, len(l.Denials)),
		Grants:  append([]string{}, l.Grants...),
	}
	for name, count := range l.Denials {
		out.Denials[name] = count
	}
	return out
}
