// Package errors provides a single structured error type shared by the
// HTTP auth gateway and the TCP messaging broker, so both surfaces report
// failures through the same code/message/timestamp shape.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode classifies a failure independent of which surface reports it.
type ErrorCode string

const (
	ErrBadRequest   ErrorCode = "BAD_REQUEST"   // malformed frame or request body
	ErrAuthFailure  ErrorCode = "AUTH_FAILURE"  // bad credentials, bad or expired token
	ErrNotFound     ErrorCode = "NOT_FOUND"     // unknown user, missing key, missing conversation
	ErrConflict     ErrorCode = "CONFLICT"      // username already taken
	ErrStoreFailure ErrorCode = "STORE_FAILURE" // database unreachable or query failed
	ErrFatal        ErrorCode = "FATAL"         // unrecoverable startup failure
)

// StatusCodes maps an ErrorCode to the HTTP status the auth gateway returns.
// The messaging broker never uses these; it renders errors as inline
// protocol frames instead (see internal/broker).
var StatusCodes = map[ErrorCode]int{
	ErrBadRequest:   http.StatusBadRequest,
	ErrAuthFailure:  http.StatusUnauthorized,
	ErrNotFound:     http.StatusNotFound,
	ErrConflict:     http.StatusUnauthorized, // signup replies 401 "User Already Exist", not 409
	ErrStoreFailure: http.StatusInternalServerError,
	ErrFatal:        http.StatusInternalServerError,
}

// AppError is the structured error both surfaces produce and the central
// fiber.ErrorHandler consumes.
type AppError struct {
	Code      ErrorCode   `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) StatusCode() int {
	if code, ok := StatusCodes[e.Code]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewWithDetails(code ErrorCode, message string, details interface{}) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Wrap converts any error into an AppError, passing an existing AppError
// through unchanged.
func Wrap(err error, code ErrorCode) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(code, err.Error())
}

func IsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}
