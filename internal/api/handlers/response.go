package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of a failed query
type errorResponse struct {
	Type    apperrors.ErrorType `json:"type"`
	Message string              `json:"message"`
}

// mutationErrorResponse is the body of a failed create or update
type mutationErrorResponse struct {
	Type apperrors.ErrorType `json:"type"`
	entities.MutationError
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger().Error().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, errType apperrors.ErrorType, message string) {
	respondWithJSON(w, statusCode, errorResponse{Type: errType, Message: message})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeAuthenticationRequired:
		return http.StatusUnauthorized
	case apperrors.ErrorTypePermissionDenied:
		return http.StatusForbidden
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeCodeAlreadyExists:
		return http.StatusConflict
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeReferenceNotFound:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError writes a query failure. Store failures are logged and
// reported without their cause.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	errType := apperrors.TypeOf(err)
	message := "internal server error"
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	}
	respondWithError(w, status, errType, message)
}

// respondWithMutationError writes a create or update failure in the
// structured title/list shape, titled with the entry code.
func respondWithMutationError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := statusFor(err)
	detail := entities.ErrorDetail{Message: "internal server error"}
	if appErr, ok := apperrors.As(err); ok {
		detail.Message = appErr.Message
		if status == http.StatusInternalServerError {
			detail.Detail = title
		}
	}
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("mutation failed")
	}
	respondWithJSON(w, status, mutationErrorResponse{
		Type:          apperrors.TypeOf(err),
		MutationError: entities.MutationError{Title: title, List: []entities.ErrorDetail{detail}},
	})
}

func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is empty")
		}
		return apperrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
