package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to callers.
const (
	CodeValidation      = "VALIDATION_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeStore           = "STORE_ERROR"
	CodeRequest         = "REQUEST_FAILED"
	CodeInternal        = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewVersionConflict reports a stale expected version. currentVersion lets
// the caller re-fetch and retry.
func NewVersionConflict(currentVersion int64) error {
	return NewDomainError(CodeVersionConflict,
		"ticket has been modified by another user",
		http.StatusConflict,
		map[string]any{"currentVersion": currentVersion})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewStoreError wraps a persistence failure. The cause is kept for logs but
// never rendered to callers.
func NewStoreError(err error) error {
	return &DomainError{
		Code:       CodeStore,
		Message:    "storage failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := CodeInternal
		switch fiberErr.Code {
		case http.StatusNotFound:
			code = CodeNotFound
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			code = CodeValidation
		case http.StatusUnauthorized:
			code = CodeUnauthorized
		default:
			if fiberErr.Code < http.StatusInternalServerError {
				code = CodeRequest
			}
		}
		return NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
