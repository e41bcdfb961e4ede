package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures. The values double as APIError.Type.
type ErrorKind string

const (
	KindValidation       ErrorKind = "ValidationError"
	KindNotFound         ErrorKind = "NotFound"
	KindUnauthorized     ErrorKind = "Unauthorized"
	KindAlreadyConverted ErrorKind = "AlreadyConverted"
	KindPersistence      ErrorKind = "PersistenceFailure"
	KindImportRow        ErrorKind = "ImportRowError"
	KindTimeout          ErrorKind = "Timeout"
	KindConflict         ErrorKind = "Conflict"
)

// AppError is the error type returned by services.
type AppError struct {
	Kind      ErrorKind
	Message   string
	CaseID    string
	RMANumber string
	Err       error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.CaseID != "" {
		msg = fmt.Sprintf("%s (case %s)", msg, e.CaseID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation       = &AppError{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound         = &AppError{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized     = &AppError{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrAlreadyConverted = &AppError{Kind: KindAlreadyConverted, Message: "already converted"}
	ErrPersistence      = &AppError{Kind: KindPersistence, Message: "persistence failure"}
	ErrTimeout          = &AppError{Kind: KindTimeout, Message: "timeout"}
	ErrConflict         = &AppError{Kind: KindConflict, Message: "conflict"}
)

func NewValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func NewPersistenceError(err error, format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewConflictError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewAlreadyConvertedError(caseID, rmaNumber string) *AppError {
	return &AppError{
		Kind:      KindAlreadyConverted,
		Message:   fmt.Sprintf("DTR already converted to RMA %s", rmaNumber),
		CaseID:    caseID,
		RMANumber: rmaNumber,
	}
}

// KindOf returns the kind of an AppError anywhere in err's chain, or
// PersistenceFailure for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindPersistence
}
