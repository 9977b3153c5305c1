package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for data-access failures.
var (
	ErrNotFound = errors.New("not found")
)

// Error codes for transfer and scoring failure scenarios.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeDuplicateConflict = "DUPLICATE_CONFLICT"
	ErrCodePartialFailure    = "PARTIAL_FAILURE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// TransferError is a structured failure from the transfer engine. Reason is
// surfaced verbatim to the caller.
type TransferError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// NewTransferError creates a TransferError with the given code and reason.
func NewTransferError(code, reason string) *TransferError {
	return &TransferError{Code: code, Reason: reason}
}

// NewDuplicateConflictError reports that the transfer would create duplicate
// classifications, interpretations, or scores for the destination owner.
func NewDuplicateConflictError(reason string) *TransferError {
	return &TransferError{Code: ErrCodeDuplicateConflict, Reason: reason}
}

// NewNotFoundError reports a missing record or user.
func NewNotFoundError(reason string) *TransferError {
	return &TransferError{Code: ErrCodeNotFound, Reason: reason}
}

// ValidationError represents input validation errors.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// PartialFailureError aggregates per-object failures from the apply stage
// while preserving the PKs that did go through.
type PartialFailureError struct {
	UpdatedPKs []string
	FailedPKs  []string
	Causes     []error
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: %d of %d object updates failed",
		ErrCodePartialFailure, len(e.FailedPKs), len(e.FailedPKs)+len(e.UpdatedPKs))
}

// Unwrap exposes the underlying causes to errors.Is/As.
func (e *PartialFailureError) Unwrap() []error { return e.Causes }
