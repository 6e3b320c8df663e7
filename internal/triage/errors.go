package triage

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by every narrative validation failure.
var ErrInvalidInput = errors.New("invalid input")

// FailureKind classifies a boundary collaborator failure for operators.
// Triage logic treats every kind as an absent vote.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureAuth        FailureKind = "auth"
	FailureQuota       FailureKind = "quota"
	FailureTransport   FailureKind = "transport"
	FailureMalformed   FailureKind = "malformed"
	FailureEmpty       FailureKind = "empty"
	FailureUnavailable FailureKind = "unavailable"
	FailureInternal    FailureKind = "internal"
)

// CollaboratorError is the typed failure returned by generation and
// classification adapters.
type CollaboratorError struct {
	Kind FailureKind
	Err  error
}

// NewCollaboratorError wraps err with a failure kind.
func NewCollaboratorError(kind FailureKind, err error) error {
	return &CollaboratorError{Kind: kind, Err: err}
}

func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// KindOf reports the failure kind of err. Untyped context errors map to
// timeout, anything else to transport.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTimeout
	}
	return FailureTransport
}

// HTTPStatusKind maps an upstream HTTP status to a failure kind.
func HTTPStatusKind(status int) FailureKind {
	switch {
	case status == 401 || status == 403:
		return FailureAuth
	case status == 429:
		return FailureQuota
	case status == 408 || status == 504:
		return FailureTimeout
	case status == 503:
		return FailureUnavailable
	case status >= 400 && status < 500:
		return FailureMalformed
	default:
		return FailureTransport
	}
}
