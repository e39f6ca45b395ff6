package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Stable error codes returned in API error payloads so clients can branch on
// failures without parsing messages.
const (
	CodeValidation   = "VALIDATION"
	CodeNameTooLong  = "NAME_TOO_LONG"
	CodeDescTooLong  = "DESCRIPTION_TOO_LONG"
	CodeRateLimit    = "RATE_LIMIT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeBanned       = "BANNED"
	CodeInternal     = "INTERNAL"
)

// ErrorResponse is the uniform error payload shape.
type ErrorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	Details           string `json:"details,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Length            int    `json:"length,omitempty"`
}

// AppError is the error type services return to handlers. Message is safe to
// show to clients; Err carries the internal cause for logging.
type AppError struct {
	Code       string
	Message    string
	Err        error
	RetryAfter time.Duration
	Length     int
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates an error for a missing resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: resource + " not found"}
}

// NewValidationError creates an error for invalid input.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewUnauthorizedError creates an error for missing or bad credentials.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewForbiddenError creates an error for an authenticated caller lacking
// permission.
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewConflictError creates an error for a state conflict such as a duplicate
// join.
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal server error", Err: err}
}

// NewBannedError creates the error returned to banned accounts.
func NewBannedError() *AppError {
	return &AppError{Code: CodeBanned, Message: "account is banned"}
}

// NewRateLimitError creates a throttling error with the remaining wait,
// rounded up to whole seconds with a one second floor.
func NewRateLimitError(action string, retryAfter time.Duration) *AppError {
	if retryAfter < time.Second {
		retryAfter = time.Second
	} else {
		retryAfter = retryAfter.Round(time.Second)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
	}
	return &AppError{
		Code:       CodeRateLimit,
		Message:    fmt.Sprintf("too many %s attempts, retry in %ds", action, int(retryAfter.Seconds())),
		RetryAfter: retryAfter,
	}
}

// NewTooLongError creates a length-limit error carrying the offending length.
func NewTooLongError(code, field string, length, max int) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf("%s exceeds %d characters", field, max),
		Length:  length,
	}
}

// StatusForError maps an error to the HTTP status it should produce.
func StatusForError(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation, CodeNameTooLong, CodeDescTooLong:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden, CodeBanned:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeConflict:
		return fiber.StatusConflict
	case CodeRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes the uniform error payload for err.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	resp := ErrorResponse{Error: "internal server error", Code: CodeInternal}
	var appErr *AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = appErr.Code
		if appErr.RetryAfter > 0 {
			resp.RetryAfterSeconds = int(appErr.RetryAfter.Seconds())
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", resp.RetryAfterSeconds))
		}
		if appErr.Length > 0 {
			resp.Length = appErr.Length
		}
	} else if err != nil && status < fiber.StatusInternalServerError {
		resp.Error = err.Error()
		resp.Code = ""
	}
	return c.Status(status).JSON(resp)
}

// IsSchemaMissingError reports whether err looks like a missing table or
// column, which happens when migrations have not run yet.
func IsSchemaMissingError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "undefined column")
}
