package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrUnknownParser = errors.New("unknown downstream parser")
	ErrNotReady      = errors.New("phrase dictionary not loaded")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrUnavailable   = errors.New("dependency unavailable")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error chain onto the status the API answers with.
// An AppError anywhere in the chain wins over sentinel matching.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownParser):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
