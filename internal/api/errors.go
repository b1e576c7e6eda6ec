package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	apperrors "github.com/musictaggerz/tagger-server/internal/errors"
	"github.com/musictaggerz/tagger-server/internal/store"
)

// APIError implements huma.StatusError and maps pipeline errors to HTTP
// responses with a consistent structure.
type APIError struct {
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to surface pipeline errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				return &APIError{
					status:  appErr.HTTPStatus(),
					Code:    string(appErr.Code),
					Message: appErr.Message,
					Details: appErr.Details,
				}
			}

			if isNotFoundError(err) {
				return &APIError{
					status:  http.StatusNotFound,
					Code:    string(apperrors.CodeNotFound),
					Message: err.Error(),
				}
			}
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
	}
}

func isNotFoundError(err error) bool {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.HTTPCode() == http.StatusNotFound {
		return true
	}
	return errors.Is(err, store.ErrAlbumNotFound)
}

func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperrors.CodeValidation)
	case http.StatusNotFound:
		return string(apperrors.CodeNotFound)
	case http.StatusConflict:
		return string(apperrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(apperrors.CodeRateLimited)
	default:
		return string(apperrors.CodeInternal)
	}
}
