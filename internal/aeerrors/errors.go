// Package aeerrors implements the catalog of error kinds shared across the
// journal, authority, capability, and ceremony layers (spec §7).
package aeerrors

import (
	"errors"
	"fmt"
)

// Kind is a closed catalog of error categories. Callers branch on Kind, never
// on error string contents.
type Kind int

const (
	Invalid Kind = iota
	NotFound
	PermissionDenied
	BudgetExceeded
	PreStateMismatch
	SignatureInvalid
	NamespaceMismatch
	Network
	Timeout
	Serialization
	Internal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case BudgetExceeded:
		return "budget_exceeded"
	case PreStateMismatch:
		return "prestate_mismatch"
	case SignatureInvalid:
		return "signature_invalid"
	case NamespaceMismatch:
		return "namespace_mismatch"
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Serialization:
		return "serialization"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind plus a human string and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the propagation policy in spec §7 treats this
// error as transient (safe for the caller to retry with a budget).
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case Network, PreStateMismatch, Timeout:
		return true
	default:
		return false
	}
}
