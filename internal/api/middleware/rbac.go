package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// RBAC admits requests whose token carries at least one of allowedRoles.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles, _ := c.Get(KeyRoles).([]string)
			for _, r := range roles {
				if slices.Contains(allowedRoles, r) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
	}
}

// Authorizer makes the live permission decision for a user.
type Authorizer interface {
	Authorize(ctx context.Context, id domain.UserID, resource, action string) error
}

// RequirePermission checks resource:action against current storage rather
// than the token, so revoked roles take effect before the token expires.
func RequirePermission(authz Authorizer, resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(KeyUserID).(domain.UserID)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if err := authz.Authorize(c.Request().Context(), id, resource, action); err != nil {
				return err
			}
			return next(c)
		}
	}
}
