package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
)

// ErrUnsupported: операция отключена конфигурацией. Является разновидностью конфликта.
var ErrUnsupported = fmt.Errorf("%w: operation disabled", ErrConflict)

// Error несет вид ошибки, сообщение и (опционально) поле, вызвавшее ошибку.
type Error struct {
	Kind    error
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(field, message string) error {
	return &Error{Kind: ErrValidation, Field: field, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func Unsupported(message string) error {
	return &Error{Kind: ErrUnsupported, Message: message}
}

func NotFound(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found"}
}

func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsForbidden(err error) bool   { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool    { return errors.Is(err, ErrConflict) }
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }

type APIError struct {
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(err error) *APIError {
	apiErr := &APIError{Message: err.Error(), Code: HTTPStatusFromError(err)}
	var typed *Error
	if errors.As(err, &typed) {
		apiErr.Message = typed.Message
		apiErr.Field = typed.Field
	}
	if apiErr.Code == http.StatusInternalServerError {
		apiErr.Message = ErrInternalServer.Error()
	}
	return apiErr
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
