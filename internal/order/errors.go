package order

import "net/http"

type ErrorCode string

const (
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCartEmpty         ErrorCode = "CART_EMPTY"
	ErrLineUnavailable   ErrorCode = "LINE_UNAVAILABLE"
	ErrLineNotFound      ErrorCode = "LINE_NOT_FOUND"
	ErrProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"
	ErrStoreClosed       ErrorCode = "STORE_CLOSED"
	ErrMenuNotLoaded     ErrorCode = "MENU_NOT_LOADED"
	ErrSubmissionPending ErrorCode = "SUBMISSION_PENDING"
	ErrNothingPending    ErrorCode = "NOTHING_PENDING"
	ErrStorage           ErrorCode = "STORAGE_ERROR"
	ErrOrderRejected     ErrorCode = "ORDER_REJECTED"
)

// Error is the user-facing error shape. Local problems are always
// recoverable by editing the cart or the checkout form.
type Error struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ValidationError(code ErrorCode, message string, details map[string]any) *Error {
	return newError(code, message, http.StatusBadRequest, details)
}

func NotFoundError(code ErrorCode, message string) *Error {
	return newError(code, message, http.StatusNotFound, nil)
}

func ConflictError(code ErrorCode, message string) *Error {
	return newError(code, message, http.StatusConflict, nil)
}

func StorageError(message string) *Error {
	return newError(ErrStorage, message, http.StatusServiceUnavailable, nil)
}

func RejectedError(message string) *Error {
	return newError(ErrOrderRejected, message, http.StatusUnprocessableEntity, nil)
}
