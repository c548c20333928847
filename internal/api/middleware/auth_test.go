package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-core/internal/core/domain"
)

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":     7,
		"username":    "alice",
		"roles":       []string{"ADMIN"},
		"authorities": []string{"user:manage"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	mw := Auth("secret")
	handler := mw(func(c echo.Context) error {
		called = true
		if c.Get(KeyUserID) != domain.UserID(7) {
			t.Fatalf("user_id not set")
		}
		if c.Get(KeyUsername) != "alice" {
			t.Fatalf("username not set")
		}
		if roles, _ := c.Get(KeyRoles).([]string); len(roles) != 1 || roles[0] != "ADMIN" {
			t.Fatalf("roles not set: %v", c.Get(KeyRoles))
		}
		if auths, _ := c.Get(KeyAuthorities).([]string); len(auths) != 1 || auths[0] != "user:manage" {
			t.Fatalf("authorities not set: %v", c.Get(KeyAuthorities))
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func serveAuth(t *testing.T, authHeader string) int {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Auth("secret")(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec.Code
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString([]byte("other"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	cases := map[string]string{
		"missing header":    "",
		"wrong scheme":      "Token abc",
		"malformed token":   "Bearer not-a-token",
		"expired token":     "Bearer " + sign(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Minute).Unix()}),
		"missing user id":   "Bearer " + sign(t, jwt.MapClaims{"username": "alice"}),
		"foreign signature": "Bearer " + foreign,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if code := serveAuth(t, header); code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", code)
			}
		})
	}
}
