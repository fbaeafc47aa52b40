package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrQuotaExceeded is returned when a plan's usage ceiling has been reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrAgentNotAllowed is returned when a plan's agent subset excludes a
	// requested agent.
	ErrAgentNotAllowed = errors.New("agent not allowed on this plan")

	// ErrExportNotAllowed is returned when a plan's export-format subset
	// excludes a requested format.
	ErrExportNotAllowed = errors.New("export format not allowed on this plan")

	// ErrInvalidCredentials is returned by login when the email/password pair
	// does not match a known user.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// QuotaError carries the upgrade suggestion alongside ErrQuotaExceeded so API
// handlers can surface it without a second quota lookup.
type QuotaError struct {
	Feature           string
	Limit             int
	Used              int
	UpgradeSuggestion string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d used", e.Feature, e.Used, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
