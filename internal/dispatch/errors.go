// ABOUTME: Fixed execution error taxonomy and the wire-shaped dispatch outcome types.
// ABOUTME: Raw errors are normalized here so nothing unanticipated reaches the wire.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/upstream"
	"github.com/murmurchat/concierge/internal/validate"
)

// Code is one of the fixed error taxonomy values. The set is closed; every
// failure a dispatch can produce maps onto exactly one of these.
type Code string

const (
	CodeInvalidCapability   Code = "invalid_capability"
	CodeInvalidParameters   Code = "invalid_parameters"
	CodePermissionDenied    Code = "permission_denied"
	CodeTimeout             Code = "timeout"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeInternal            Code = "internal_error"
)

// Outcome is the single value a dispatch returns: either a typed result
// (Status "ok" with Data) or a structured error (Status "error" with Code
// and Message). It is immutable once constructed and returned exactly once.
type Outcome struct {
	Status      string               `json:"status"`
	ExecutionID string               `json:"executionId"`
	Data        json.RawMessage      `json:"data,omitempty"`
	Code        Code                 `json:"code,omitempty"`
	Message     string               `json:"message,omitempty"`
	Details     []validate.Violation `json:"details,omitempty"`
}

// OK reports whether the outcome is a success.
func (o *Outcome) OK() bool { return o.Status == "ok" }

func okOutcome(executionID string, data json.RawMessage) *Outcome {
	return &Outcome{Status: "ok", ExecutionID: executionID, Data: data}
}

func errOutcome(executionID string, code Code, message string) *Outcome {
	return &Outcome{Status: "error", ExecutionID: executionID, Code: code, Message: message}
}

// classifyHandlerError maps a handler-returned error onto the taxonomy.
// Collaborator not-found is folded into upstream_unavailable: the taxonomy
// stays closed and the collaborator is what failed to produce the resource.
func classifyHandlerError(err error) Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, capability.ErrInvalidInput):
		return CodeInvalidParameters
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, upstream.ErrNotFound):
		return CodeUpstreamUnavailable
	default:
		return CodeInternal
	}
}
