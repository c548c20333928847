package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/domain"
)

func TestHTTPErrorHandler_MapsDomainCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.EntityNotFound("User", "7"), http.StatusNotFound},
		{"conflict", domain.EntityAlreadyExists("User", "username", "alice"), http.StatusConflict},
		{"stale version", fmt.Errorf("wrapped: %w", domain.ConcurrencyConflict("User", "7", 3, 4)), http.StatusConflict},
		{"forbidden", domain.InsufficientPermissions(7, "user", "manage"), http.StatusForbidden},
		{"inactive", domain.InactiveUserAccount(7, "locked"), http.StatusForbidden},
		{"limit", domain.LimitExceeded("roles_per_user", 3, 4), http.StatusUnprocessableEntity},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"bad email", fmt.Errorf("%w: %q", domain.ErrInvalidEmail, "x"), http.StatusBadRequest},
		{"storage", domain.StorageFailure("user.find_by_id", errors.New("conn reset")), http.StatusInternalServerError},
		{"echo", echo.NewHTTPError(http.StatusUnauthorized, "invalid token"), http.StatusUnauthorized},
	}

	e := echo.New()
	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			h(tc.err, c)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestHTTPErrorHandler_ExposesContextNotCause(t *testing.T) {
	e := echo.New()
	h := NewHTTPErrorHandler(zerolog.Nop())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	h(domain.ConcurrencyConflict("User", "7", 3, 4), c)

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Code != domain.CodeConcurrencyConflict || body.Details[domain.KeyActualVersion] != "4" {
		t.Fatalf("unexpected body: %+v", body)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	h(domain.StorageFailure("user.find_by_id", errors.New("password=hunter2")), c)
	body = errorResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Error != "internal server error" || body.Details != nil {
		t.Fatalf("storage failure leaked: %+v", body)
	}
}
