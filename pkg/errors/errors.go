package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidState       = errors.New("operation not allowed in current state")
	ErrConflict           = errors.New("conflict")
	ErrValidationFailed   = errors.New("validation failed")
	ErrIncompleteCheckout = errors.New("incomplete checkout")
	ErrUnsupportedVersion = errors.New("unsupported event version")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrInternal           = errors.New("internal error")
	ErrServiceUnavail     = errors.New("service unavailable")
)

// Item-level validation codes produced by price/availability re-checks.
const (
	ItemIssueUnavailable       = "PRODUCT_UNAVAILABLE"
	ItemIssueInsufficientStock = "INSUFFICIENT_STOCK"
)

// ItemIssue identifies a single offending line item in a validation failure.
// Requested and Available are only meaningful for INSUFFICIENT_STOCK.
type ItemIssue struct {
	ProductID string `json:"product_id"`
	Code      string `json:"code"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Issues  []ItemIssue `json:"issues,omitempty"`
	Status  int         `json:"-"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidState creates a 409 error for an operation that is illegal in the
// aggregate's current status or step.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrInvalidState,
	}
}

// Conflict creates a 409 error for optimistic-concurrency violations.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// ValidationFailed creates a 422 error carrying one issue per offending line
// item, so callers can surface the exact products that failed re-validation.
func ValidationFailed(issues []ItemIssue) *AppError {
	ids := make([]string, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ProductID
	}
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Message: fmt.Sprintf("validation failed for products: %s", strings.Join(ids, ", ")),
		Issues:  issues,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrValidationFailed,
	}
}

// IncompleteCheckout creates a 409 error for a confirmation attempted before
// all required checkout steps were submitted.
func IncompleteCheckout(missing string) *AppError {
	return &AppError{
		Code:    "INCOMPLETE_CHECKOUT",
		Message: fmt.Sprintf("checkout cannot be confirmed: %s missing", missing),
		Status:  http.StatusConflict,
		Err:     ErrIncompleteCheckout,
	}
}

// UnsupportedEventVersion creates an error for an event translator that
// received a schema version it has no mapping for.
func UnsupportedEventVersion(eventType string, version int) *AppError {
	return &AppError{
		Code:    "UNSUPPORTED_EVENT_VERSION",
		Message: fmt.Sprintf("no translation for %s version %d", eventType, version),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrUnsupportedVersion,
	}
}

// PaymentFailed creates a 422 error for a payment initiation failure.
func PaymentFailed(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_FAILED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrPaymentFailed,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IssuesFromError extracts the per-item issues carried by a VALIDATION_FAILED
// error. Returns nil for any other error.
func IssuesFromError(err error) []ItemIssue {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Issues
	}
	return nil
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict), errors.Is(err, ErrIncompleteCheckout):
		return http.StatusConflict
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrUnsupportedVersion), errors.Is(err, ErrPaymentFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
