package ports

import (
	"context"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to AuthService.Register.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	// Roles names the roles to grant; empty means the configured defaults.
	Roles     []string
	CreatedBy string
}

// LoginInput carries credentials plus request metadata recorded on the audit event.
type LoginInput struct {
	Login     string // username or email
	Password  string
	IPAddress string
	UserAgent string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) (string, *domain.User, error)
}
