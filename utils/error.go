package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind tags every domain error so callers can branch on the failure class
// instead of parsing messages. The excluded controller layer maps kinds to
// transport responses.
type ErrorKind string

const (
	ErrorKindNotFound             ErrorKind = "NotFound"
	ErrorKindInvalidState         ErrorKind = "InvalidState"
	ErrorKindInsufficientQuantity ErrorKind = "InsufficientQuantity"
	ErrorKindValidationFailure    ErrorKind = "ValidationFailure"
	ErrorKindConflict             ErrorKind = "Conflict"
	ErrorKindOnHold               ErrorKind = "OnHold"
)

type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string { return e.Message }

var ErrorRecordNotFound = &DomainError{Kind: ErrorKindNotFound, Message: "record not found"}

func NotFoundError(entity string, id interface{}) error {
	return &DomainError{
		Kind:    ErrorKindNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
	}
}

func InvalidStateError(entity string, id interface{}, status string, operation string) error {
	return &DomainError{
		Kind:    ErrorKindInvalidState,
		Message: fmt.Sprintf("%s %v is %s; cannot %s", entity, id, status, operation),
	}
}

// InsufficientQuantityError names both sides so an operator can act on the
// message without the UI reformatting it.
func InsufficientQuantityError(entity string, id interface{}, available decimal.Decimal, requested decimal.Decimal) error {
	return &DomainError{
		Kind:    ErrorKindInsufficientQuantity,
		Message: fmt.Sprintf("insufficient quantity on %s %v: available=%s, requested=%s", entity, id, available.String(), requested.String()),
	}
}

func ValidationError(format string, args ...interface{}) error {
	return &DomainError{
		Kind:    ErrorKindValidationFailure,
		Message: fmt.Sprintf(format, args...),
	}
}

func ConflictError(format string, args ...interface{}) error {
	return &DomainError{
		Kind:    ErrorKindConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

func OnHoldError(entity string, id interface{}, reason string) error {
	return &DomainError{
		Kind:    ErrorKindOnHold,
		Message: fmt.Sprintf("%s %v has an active hold: %s", entity, id, reason),
	}
}

func IsKind(err error, kind ErrorKind) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind == kind
	}
	return false
}
