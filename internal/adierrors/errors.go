// Package adierrors implements the error taxonomy of spec §7: a set
// of sentinel "kinds" distinguishing terminal failures that must
// surface to the caller from recoverable conditions the core handles
// internally (InsufficientData, ProbeInconclusive, Timeout, ...).
package adierrors

import (
	stderrors "errors"
	"fmt"

	sharederrors "github.com/adinsight/adinsight/pkg/shared/errors"
	faster "github.com/go-faster/errors"
)

// Kind is one taxonomy entry from spec §7.
type Kind string

const (
	KindUpstreamUnavailable    Kind = "UpstreamUnavailable"
	KindInsufficientData       Kind = "InsufficientData"
	KindWindowOutOfRange       Kind = "WindowOutOfRange"
	KindUnknownTenant          Kind = "UnknownTenant"
	KindModelProtocolViolation Kind = "ModelProtocolViolation"
	KindProbeInconclusive      Kind = "ProbeInconclusive"
	KindTimeout                Kind = "Timeout"
	KindSessionExpired         Kind = "SessionExpired"
)

// Error carries a taxonomy Kind alongside the usual wrapped cause, so
// callers can branch with errors.As without parsing strings.
type Error struct {
	Kind      Kind
	Operation string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Operation)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Operation, e.Cause.Error())
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, &adierrors.Error{Kind: adierrors.KindX})
// style checks by comparing kinds when the target is itself an *Error.
func (e *Error) Is(target error) bool {
	var t *Error
	if stderrors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs a taxonomy error. Boundary errors (warehouse, model
// provider) are wrapped with go-faster/errors so a stack trace is
// attached; purely local/expected conditions (InsufficientData,
// ProbeInconclusive) are not, since they are not bugs to trace.
func New(kind Kind, operation string, cause error) *Error {
	switch kind {
	case KindUpstreamUnavailable, KindModelProtocolViolation:
		if cause != nil {
			cause = faster.Wrap(cause, operation)
		}
	}
	return &Error{Kind: kind, Operation: operation, Cause: cause}
}

// UpstreamUnavailable reports a terminal warehouse or model-provider
// failure after retries/circuit-breaker exhaustion.
func UpstreamUnavailable(operation string, cause error) error {
	return New(KindUpstreamUnavailable, operation, cause)
}

// WindowOutOfRange reports an analysis window outside [1, 365] days.
func WindowOutOfRange(windowDays int) error {
	return New(KindWindowOutOfRange, fmt.Sprintf("window_days=%d not in [1,365]", windowDays), nil)
}

// UnknownTenant reports a tenant short code absent from the registry.
func UnknownTenant(tenant string) error {
	return New(KindUnknownTenant, fmt.Sprintf("tenant %q", tenant), nil)
}

// ModelProtocolViolation reports grounding/schema failures in a
// model-produced object, carrying the validator's violation list.
func ModelProtocolViolation(violations []string) error {
	return New(KindModelProtocolViolation, sharederrors.Chain(stringsToErrors(violations)...).Error(), nil)
}

// SessionExpired reports a Session identifier that no longer resolves.
func SessionExpired(sessionID string) error {
	return New(KindSessionExpired, fmt.Sprintf("session %q", sessionID), nil)
}

// Timeout reports a deadline exceeded on a bounded operation.
func Timeout(operation string) error {
	return New(KindTimeout, operation, nil)
}

func stringsToErrors(ss []string) []error {
	out := make([]error, len(ss))
	for i, s := range ss {
		out[i] = stderrors.New(s)
	}
	return out
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
