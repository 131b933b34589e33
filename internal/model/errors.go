package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a field that violates an invariant: an empty
// required string, a confidence outside [0,1], a negative weight.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation on an unknown node or edge id.
type NotFoundError struct {
	Kind string // "node" or "edge"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IntegrityError reports a mutation that would break referential
// integrity: an edge to a missing endpoint, or a duplicate node id.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "integrity: " + e.Reason
}

// NodeNotFound is shorthand for a node NotFoundError.
func NodeNotFound(id string) error { return &NotFoundError{Kind: "node", ID: id} }

// EdgeNotFound is shorthand for an edge NotFoundError.
func EdgeNotFound(id string) error { return &NotFoundError{Kind: "edge", ID: id} }

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsIntegrity reports whether err wraps an *IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
