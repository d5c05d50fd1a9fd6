package common

import "net/http"

// AppError is an application error that maps onto an HTTP status code.
// Services return it when they want to control the status the handler
// responds with instead of defaulting to 500.
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewBadRequestError creates a 400 application error.
func NewBadRequestError(message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Code: "bad_request", Message: message}
}

// NewNotFoundError creates a 404 application error.
func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Code: "not_found", Message: message}
}

// NewConflictError creates a 409 application error.
func NewConflictError(message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Code: "conflict", Message: message}
}

// NewInternalServerError creates a 500 application error.
func NewInternalServerError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Code: "internal_error", Message: message}
}
