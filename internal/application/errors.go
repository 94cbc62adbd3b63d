package application

import (
	"errors"
	"fmt"

	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrCollaboratorUnavailable wraps failures of the stores the services
	// read from and write to. The cause stays reachable through errors.Is/As.
	ErrCollaboratorUnavailable = errors.New("application: collaborator unavailable")
	// ErrStale is returned when a concurrent writer changed the record first.
	ErrStale = errors.New("application: stale record")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ConflictScope tells which check detected a conflict.
type ConflictScope string

const (
	ConflictScopeSchedule ConflictScope = "schedule"
	ConflictScopeFacility ConflictScope = "facility"
)

// ConflictError is returned when a create or update would overlap an
// occupying event. ConflictingEvent may be nil when the overlap was only
// detected at commit time and the winner could not be reloaded.
type ConflictError struct {
	Scope            ConflictScope
	ConflictingEvent *scheduler.Event
	Suggestions      []scheduler.Suggestion
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c.ConflictingEvent != nil {
		return fmt.Sprintf("%s conflict with event %s", c.Scope, c.ConflictingEvent.ID)
	}
	return fmt.Sprintf("%s conflict", c.Scope)
}

func unavailable(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCollaboratorUnavailable, operation, err)
}
