package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies application errors so transport layers can map them to responses.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInvalidSignature  ErrorKind = "invalid_signature"
	KindAlreadySettled    ErrorKind = "already_settled"
	KindValidation        ErrorKind = "validation"
	KindConflict          ErrorKind = "conflict"
	KindDependencyFailure ErrorKind = "dependency_failure"
)

// AppError is an error carrying a kind and a client-safe message.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *AppError) Unwrap() error { return e.Err }

// NewNotFoundError reports that the named entity does not exist.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewForbiddenError reports that the actor has no rights over the entity.
func NewForbiddenError(msg string) *AppError {
	return &AppError{Kind: KindForbidden, Message: msg}
}

// NewUnauthorizedError reports a missing or invalid credential.
func NewUnauthorizedError(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

// NewInvalidTransitionError reports a state machine violation, naming both states.
func NewInvalidTransitionError(from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot change status from %q to %q", from, to),
	}
}

// NewInvalidStateError reports an operation that is not allowed in the current state.
func NewInvalidStateError(msg string) *AppError {
	return &AppError{Kind: KindInvalidTransition, Message: msg}
}

// NewInvalidSignatureError reports a failed webhook authenticity check.
func NewInvalidSignatureError(err error) *AppError {
	return &AppError{Kind: KindInvalidSignature, Message: "invalid webhook signature", Err: err}
}

// NewAlreadySettledError reports an idempotent settlement skip.
func NewAlreadySettledError(bookingID uint64) *AppError {
	return &AppError{Kind: KindAlreadySettled, Message: fmt.Sprintf("booking %d already paid", bookingID)}
}

// NewValidationError reports invalid input.
func NewValidationError(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

// NewConflictError reports a conflicting concurrent or duplicate operation.
func NewConflictError(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

// NewDependencyError wraps a failure from an external collaborator.
func NewDependencyError(dependency string, err error) *AppError {
	return &AppError{Kind: KindDependencyFailure, Message: dependency + " failed", Err: err}
}

// KindOf returns the kind of err, or "" when err is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
