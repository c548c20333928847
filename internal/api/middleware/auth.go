package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// Context keys set by Auth.
const (
	KeyUserID      = "user_id"
	KeyUsername    = "username"
	KeyRoles       = "roles"
	KeyAuthorities = "authorities"
)

// Auth validates the JWT and injects claims into context.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			// JSON numbers decode as float64.
			rawID, ok := claims[KeyUserID].(float64)
			if !ok || rawID <= 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing user identity")
			}

			c.Set(KeyUserID, domain.UserID(rawID))
			c.Set(KeyUsername, claims[KeyUsername])
			c.Set(KeyRoles, stringClaims(claims[KeyRoles]))
			c.Set(KeyAuthorities, stringClaims(claims[KeyAuthorities]))

			return next(c)
		}
	}
}

func stringClaims(v any) []string {
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
