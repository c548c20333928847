package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-core/internal/api/middleware"
	"github.com/99minutos/identity-core/internal/core/domain"
)

// ctxUserID extracts the caller identity injected by the Auth middleware.
// A missing value means the route was mounted without Auth.
func ctxUserID(c echo.Context) (domain.UserID, error) {
	id, ok := c.Get(middleware.KeyUserID).(domain.UserID)
	if !ok || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}

// ctxActor names the caller in audit fields and events.
func ctxActor(c echo.Context) string {
	if name, ok := c.Get(middleware.KeyUsername).(string); ok && name != "" {
		return name
	}
	return "anonymous"
}

// pathUserID parses the :id route parameter.
func pathUserID(c echo.Context) (domain.UserID, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return domain.UserID(id), nil
}
