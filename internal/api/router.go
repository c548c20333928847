package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/api/handler"
	"github.com/99minutos/identity-core/internal/api/middleware"
	"github.com/99minutos/identity-core/internal/core/ports"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Auth      ports.AuthService
	Access    ports.AccessService
	Audit     ports.EventStore
	Checks    map[string]handler.Check
	JWTSecret string
	Log       zerolog.Logger

	// RoleAssigners gate role replacement on the token's roles; defaults to ADMIN.
	RoleAssigners []string
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("identity"))
	e.Use(requestLogger(d.Log))

	authHandler := handler.NewAuthHandler(d.Auth, d.Access)
	userHandler := handler.NewUserHandler(d.Access, d.Audit)
	authenticated := middleware.Auth(d.JWTSecret)
	canRead := middleware.RequirePermission(d.Access, "user", "read")
	canManage := middleware.RequirePermission(d.Access, "user", "manage")
	assigners := d.RoleAssigners
	if len(assigners) == 0 {
		assigners = []string{"ADMIN"}
	}

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.GET("/me", authHandler.Me, authenticated)

	// --- User administration ---
	users := e.Group("/users", authenticated)
	users.GET("", userHandler.List, canRead)
	users.GET("/:id", userHandler.Get, canRead)
	users.GET("/:id/events", userHandler.Events, canRead)
	users.PATCH("/:id", userHandler.UpdateProfile, canManage)
	users.PUT("/:id/roles", userHandler.ChangeRoles, middleware.RBAC(assigners...), canManage)
	users.POST("/:id/deactivate", userHandler.Deactivate, canManage)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}

// requestLogger emits one structured line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
