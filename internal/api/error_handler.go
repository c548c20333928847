package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   string            `json:"error"`
	Code    domain.Code       `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusByCode maps domain error codes to HTTP statuses.
var statusByCode = map[domain.Code]int{
	domain.CodeEntityNotFound:            http.StatusNotFound,
	domain.CodeEntityAlreadyExists:       http.StatusConflict,
	domain.CodeBusinessRuleViolation:     http.StatusUnprocessableEntity,
	domain.CodeInsufficientPermissions:   http.StatusForbidden,
	domain.CodeInvalidStateTransition:    http.StatusConflict,
	domain.CodeLimitExceeded:             http.StatusUnprocessableEntity,
	domain.CodeInvalidContentOperation:   http.StatusUnprocessableEntity,
	domain.CodeInvalidCollaboration:      http.StatusUnprocessableEntity,
	domain.CodeInactiveUserAccount:       http.StatusForbidden,
	domain.CodeArchivedDocumentOperation: http.StatusConflict,
	domain.CodeConcurrencyConflict:       http.StatusConflict,
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error codes to HTTP statuses and exposes their context.
//   - Logs storage and unexpected errors without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": ...}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrInvalidUsername), errors.Is(err, domain.ErrInvalidEmail):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	}

	var de *domain.Error
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status, errorResponse{Error: de.Message, Code: de.Code, Details: domain.ContextOf(de)}
		}
	}

	// Storage failures and anything unexpected: log the real cause, return a
	// generic message.
	log.Error().
		Err(err).
		Str("code", string(domain.CodeOf(err))).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
