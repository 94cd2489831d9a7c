// Package apperr defines the typed errors returned by the device services.
// Every error carries a Kind (which maps onto an HTTP status) and a stable
// Code that callers can match on.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindConflict
)

// Stable error codes.
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeValidation = "VALIDATION_ERROR"

	CodeDeviceNotFound           = "DEVICE_NOT_FOUND"
	CodeDeviceModelNotFound      = "DEVICE_MODEL_NOT_FOUND"
	CodeDeviceTypeNotFound       = "DEVICE_TYPE_NOT_FOUND"
	CodeUserNotFound             = "USER_NOT_FOUND"
	CodeOwnerNotFound            = "OWNER_NOT_FOUND"
	CodeDeviceAssignmentNotFound = "DEVICE_ASSIGNMENT_NOT_FOUND"

	CodeModelNotOfType            = "DEVICE_MODEL_NOT_BELONG_TO_DEVICE_TYPE"
	CodeDeviceCodeExists          = "DEVICE_CODE_IS_EXISTING"
	CodeScrappedWithAssignee      = "SCRAPPED_DEVICE_CANNOT_HAVE_ASSIGNEE"
	CodeDeleteWithAssignee        = "CANNOT_DELETE_WHEN_HAS_ASSIGNEE"
	CodeDeleteWithAssignHistory   = "CANNOT_DELETE_WHEN_HAVE_DEVICE_ASSIGN_HISTORY"
	CodeDeleteWithRepairHistory   = "CANNOT_DELETE_WHEN_HAVE_DEVICE_REPAIR_HISTORY"
	CodeAssignmentAlreadyReturned = "DEVICE_ASSIGNMENT_ALREADY_RETURNED"
	CodeAssignmentAlreadyOpen     = "DEVICE_ASSIGNMENT_ALREADY_OPEN"
	CodeDeleteModelWithDevices    = "CANNOT_DELETE_MODEL_WHEN_HAS_DEVICES"
)

// ErrNoRows is returned by repositories when a single-row lookup finds nothing.
var ErrNoRows = errors.New("no rows")

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func BadRequest(code, msg string) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf returns the code of err if it is (or wraps) an *Error, else "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// From returns err as an *Error, wrapping unclassified errors as Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
