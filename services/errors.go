// services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures so the HTTP layer can pick a status code
// without string matching.
type ErrorKind int

const (
	KindInfrastructure ErrorKind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindUnauthorized
	KindProcessingFailure
	KindStorageFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindProcessingFailure:
		return "processing_failure"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "infrastructure"
	}
}

// Error is the typed failure every service returns. Issues carries the full
// list for batch validation so callers can report every problem at once.
type Error struct {
	Kind    ErrorKind
	Message string
	Issues  []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Issues) > 0 {
		msg += ": " + strings.Join(e.Issues, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string, issues ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Issues: issues}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func ProcessingFailure(message string, err error) *Error {
	return &Error{Kind: KindProcessingFailure, Message: message, Err: err}
}

func StorageFailure(message string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: message, Err: err}
}

func Infrastructure(message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInfrastructure for anything untyped.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
