package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"

	CodeSlotConflict         = "SLOT_CONFLICT"
	CodeRetryConflict        = "RETRY_CONFLICT"
	CodeInsufficientCapacity = "INSUFFICIENT_CAPACITY"
	CodeInvalidTransition    = "INVALID_STATE_TRANSITION"
	CodeSignatureInvalid     = "SIGNATURE_VERIFICATION_FAILED"
	CodeGatewayUnavailable   = "GATEWAY_UNAVAILABLE"
	CodeRefundFailed         = "REFUND_INITIATION_FAILED"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// SlotConflict means at least one requested slot is booked or held by
// someone else. The caller should reselect slots.
func SlotConflict(eventID string, slots []int) *AppError {
	return &AppError{
		Code:       CodeSlotConflict,
		Message:    "one or more requested slots are unavailable",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"event_id": eventID,
			"slots":    slots,
		},
	}
}

// RetryConflict means the optimistic write lost its version race more
// times than the retry budget allows. The operation is safe to retry.
func RetryConflict(eventID string) *AppError {
	return &AppError{
		Code:       CodeRetryConflict,
		Message:    "event is under heavy contention, please retry",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"event_id": eventID},
	}
}

func InsufficientCapacity(eventID string, requested, free int) *AppError {
	return &AppError{
		Code:       CodeInsufficientCapacity,
		Message:    "event does not have enough free slots",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"event_id":  eventID,
			"requested": requested,
			"free":      free,
		},
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot move booking from %s to %s", from, to),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"from": from,
			"to":   to,
		},
	}
}

func SignatureInvalid(message string) *AppError {
	return &AppError{
		Code:       CodeSignatureInvalid,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func GatewayUnavailable(err error) *AppError {
	return &AppError{
		Code:       CodeGatewayUnavailable,
		Message:    "payment gateway is temporarily unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func RefundFailed(bookingID string, err error) *AppError {
	return &AppError{
		Code:       CodeRefundFailed,
		Message:    "refund could not be initiated",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"booking_id": bookingID},
		Err:        err,
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
