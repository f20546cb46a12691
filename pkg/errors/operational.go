// Package errors carries transport and storage failures together with the run they concern.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OperationalError wraps a failure talking to the flow server or a local store
// with the flow, run and node it concerned.
type OperationalError struct {
	Operation  string         // What was being done ("fetch run", "push data", ...)
	FlowID     string         // Which flow
	RunID      string         // Which run (if applicable)
	NodeID     string         // Which node (if applicable)
	StatusCode int            // HTTP status, 0 when the request never completed
	Timestamp  time.Time      // When the error occurred
	Attributes map[string]any // Additional context (optional)
	Cause      error          // Underlying error
}

// NewOperationalError creates an OperationalError wrapping cause.
//
// Returns nil if cause is nil (no error to wrap).
//
// Example:
//
//	if err != nil {
//	    return NewOperationalError("fetch run", flowID, runID, "", err)
//	}
func NewOperationalError(operation, flowID, runID, nodeID string, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation: operation,
		FlowID:    flowID,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// WithStatus records the HTTP status code returned by the server.
func (e *OperationalError) WithStatus(code int) *OperationalError {
	if e != nil {
		e.StatusCode = code
	}
	return e
}

// WithAttr attaches one piece of additional context.
func (e *OperationalError) WithAttr(key string, value any) *OperationalError {
	if e == nil {
		return nil
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = value
	return e
}

// Error implements the error interface.
//
// Format: "[timestamp] operation: flow={id} run={id} node={id} status={code}: {cause}"
// Empty identifiers and a zero status are omitted.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s:", e.Timestamp.Format(time.RFC3339), e.Operation)
	if e.FlowID != "" {
		fmt.Fprintf(&b, " flow=%s", e.FlowID)
	}
	if e.RunID != "" {
		fmt.Fprintf(&b, " run=%s", e.RunID)
	}
	if e.NodeID != "" {
		fmt.Fprintf(&b, " node=%s", e.NodeID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// StatusCode extracts the HTTP status recorded anywhere in err's chain, or 0.
func StatusCode(err error) int {
	var op *OperationalError
	if errors.As(err, &op) {
		return op.StatusCode
	}
	return 0
}
