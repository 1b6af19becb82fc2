// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates input rejected before any side effect or external call.
var ErrValidation = errors.New("validation")

// ErrUnauthorized indicates a missing or invalid credential or signature.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates an authenticated caller acting outside its tenant or role.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidTransition indicates a status change the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDuplicate indicates an event that was already processed.
var ErrDuplicate = errors.New("duplicate event")

// ErrRetryLater indicates a transient condition; the caller should retry.
var ErrRetryLater = errors.New("temporarily unavailable, retry later")

// ErrUpstream indicates a failure reported by an external provider.
var ErrUpstream = errors.New("upstream provider error")

// Validationf returns an ErrValidation-wrapped error with a formatted message.
func Validationf(format string, args ...any) error {
	return &wrapped{sentinel: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// UpstreamError carries the provider's own message so it can be surfaced verbatim.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Provider + ": " + e.Message
}

// Unwrap allows errors.Is(err, ErrUpstream).
func (e *UpstreamError) Unwrap() error { return ErrUpstream }

type wrapped struct {
	sentinel error
	msg      string
}

func (e *wrapped) Error() string { return e.sentinel.Error() + ": " + e.msg }
func (e *wrapped) Unwrap() error { return e.sentinel }

// ClientFault reports whether the provider rejected the request itself
// (4xx other than 429) rather than failing to serve it.
func (e *UpstreamError) ClientFault() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429
}
