// internal/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrNotReversible     = errors.New("entry is not reversible")
	ErrSourceUnavailable = errors.New("no snapshot source available")
)

// ParseError describes one input row that could not be turned into a record.
// Rows that fail are skipped; the loader keeps going.
type ParseError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

type FieldViolation struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Fields  []FieldViolation
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type NotReversibleError struct {
	EntryID string
	Reason  string
}

func (e *NotReversibleError) Error() string {
	return fmt.Sprintf("audit entry %s cannot be reverted: %s", e.EntryID, e.Reason)
}

func (e *NotReversibleError) Is(target error) bool { return target == ErrNotReversible }

type SourceFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

type SourceUnavailableError struct {
	Failures []SourceFailure
}

func (e *SourceUnavailableError) Error() string {
	if len(e.Failures) == 0 {
		return "no snapshot sources configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Source+": "+f.Reason)
	}
	return "all snapshot sources failed: " + strings.Join(parts, "; ")
}

func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }
