// Package apperrors defines application-level error types.
package apperrors

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

// InvalidStateError indicates an operation was called in a state that
// does not allow it, such as a second check while one is in flight.
type InvalidStateError struct {
	Op      string
	Message string
	Code    permissions.Code
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for %s (request %d in flight): %s", e.Op, e.Code, e.Message)
}

// NewInvalidStateError creates a new invalid state error.
func NewInvalidStateError(op string, inFlight permissions.Code, message string) *InvalidStateError {
	return &InvalidStateError{
		Op:      op,
		Code:    inFlight,
		Message: message,
	}
}

// InvalidArgumentError indicates a caller passed unusable input.
type InvalidArgumentError struct {
	Cause   error
	Op      string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid argument to %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid argument to %s: %s", e.Op, e.Message)
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.Cause
}

// NewInvalidArgumentError creates a new invalid argument error.
func NewInvalidArgumentError(op, message string, cause error) *InvalidArgumentError {
	return &InvalidArgumentError{
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// ContractViolationError indicates the host layer delivered data that breaks
// the result relay contract.
type ContractViolationError struct {
	Message string
	Code    permissions.Code
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("host contract violation for request %d: %s", e.Code, e.Message)
}

// NewContractViolationError creates a new contract violation error.
func NewContractViolationError(code permissions.Code, message string) *ContractViolationError {
	return &ContractViolationError{
		Code:    code,
		Message: message,
	}
}

// InvariantViolationError indicates code reached a path that correct callers
// can never reach.
type InvariantViolationError struct {
	Component string
	Message   string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Component, e.Message)
}

// NewInvariantViolationError creates a new invariant violation error.
func NewInvariantViolationError(component, message string) *InvariantViolationError {
	return &InvariantViolationError{
		Component: component,
		Message:   message,
	}
}

// CapabilityError indicates capabilities were not granted.
type CapabilityError struct {
	Reason string
	Denied []string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability error: %s (%d denied: %s)", e.Reason, len(e.Denied), strings.Join(e.Denied, ", "))
}

// NewCapabilityError creates a new capability error.
func NewCapabilityError(reason string, denied []string) *CapabilityError {
	return &CapabilityError{
		Denied: denied,
		Reason: reason,
	}
}

// ConfigurationError indicates system config or setup issue.
type ConfigurationError struct {
	Cause   error
	Aspect  string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error (%s): %s: %v", e.Aspect, e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Aspect, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(aspect, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Aspect:  aspect,
		Message: message,
		Cause:   cause,
	}
}
