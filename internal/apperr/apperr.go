package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the HTTP surface and the pipelines. Worker code keys
// retry/report decisions off Code; handlers map Status onto the response.
const (
	CodeNotFound        = "not_found"
	CodeForbidden       = "forbidden"
	CodeConflict        = "conflict"
	CodeValidation      = "validation"
	CodeTooManyRequests = "too_many_requests"
	CodeToolchain       = "toolchain_error"
	CodeTranscription   = "transcription_error"
	CodeStorage         = "storage_error"
	CodeDatabase        = "database_error"
	CodeTimeout         = "timeout"
	CodeCancelled       = "cancelled"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(err error) *Error   { return New(http.StatusNotFound, CodeNotFound, err) }
func Forbidden(err error) *Error  { return New(http.StatusForbidden, CodeForbidden, err) }
func Conflict(err error) *Error   { return New(http.StatusConflict, CodeConflict, err) }
func Validation(err error) *Error { return New(http.StatusBadRequest, CodeValidation, err) }
func TooManyRequests(err error) *Error {
	return New(http.StatusTooManyRequests, CodeTooManyRequests, err)
}
func Toolchain(err error) *Error {
	return New(http.StatusInternalServerError, CodeToolchain, err)
}
func Transcription(err error) *Error {
	return New(http.StatusInternalServerError, CodeTranscription, err)
}
func Storage(err error) *Error  { return New(http.StatusBadGateway, CodeStorage, err) }
func Database(err error) *Error { return New(http.StatusInternalServerError, CodeDatabase, err) }
func Timeout(err error) *Error  { return New(http.StatusGatewayTimeout, CodeTimeout, err) }
func Cancelled(err error) *Error {
	return New(http.StatusConflict, CodeCancelled, err)
}

// Toolchainf wraps subprocess stderr into a toolchain_error.
func Toolchainf(format string, args ...any) *Error {
	return Toolchain(fmt.Errorf(format, args...))
}

func IsCode(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// StatusOf returns the HTTP status for err, defaulting to 500 for errors
// that did not originate as an *Error.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code, or "internal" for plain errors.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal"
}
