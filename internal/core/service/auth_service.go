package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
	"github.com/99minutos/identity-core/internal/metrics"
)

const (
	// DefaultRole is granted when a registration names no roles.
	DefaultRole = "USER"

	minPasswordLength = 8
	selfActor         = "self"
)

var _ ports.AuthService = (*AuthService)(nil)

// AuthService implements registration and login.
type AuthService struct {
	users     ports.UserRepository
	roles     ports.RoleRepository
	sink      ports.EventSink
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	sink ports.EventSink,
	jwtSecret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		roles:     roles,
		sink:      sink,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an active account holding the requested roles, or
// DefaultRole when none are named.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	username, err := domain.NewUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := domain.NewEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.BusinessRuleViolation("password_min_length",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength),
			map[string]string{"minLength": strconv.Itoa(minPasswordLength)})
	}

	roleIDs, err := s.resolveRoles(ctx, in.Roles)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = selfActor
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Status:       domain.ActiveStatus(),
		CreatedBy:    createdBy,
	}

	created, err := s.users.Create(ctx, user, roleIDs)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", int64(created.ID)).Str("username", string(created.Username)).Msg("user registered")
	publish(ctx, s.sink, s.log, events.NewUserCreated(
		created.ID, created.UUID.String(), created.Username, created.Email, created.RoleNames(), createdBy))
	return created, nil
}

// resolveRoles maps role names to ids. Every name must exist and be active.
func (s *AuthService) resolveRoles(ctx context.Context, names []string) ([]domain.RoleID, error) {
	if len(names) == 0 {
		names = []string{DefaultRole}
	}
	seen := make(map[string]struct{}, len(names))
	ids := make([]domain.RoleID, 0, len(names))
	for _, raw := range names {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		role, found, err := s.roles.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, domain.BusinessRuleViolation("role_must_exist",
				fmt.Sprintf("role %s does not exist", name), map[string]string{"role": name})
		}
		if !role.Active {
			return nil, domain.BusinessRuleViolation("role_must_be_active",
				fmt.Sprintf("role %s is inactive", name), map[string]string{"role": name})
		}
		ids = append(ids, role.ID)
	}
	return ids, nil
}

// Login authenticates by username or email and returns a signed token.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (string, *domain.User, error) {
	token, user, err := s.login(ctx, in)
	metrics.LoginAttemptsTotal.WithLabelValues(loginResult(err)).Inc()
	return token, user, err
}

func (s *AuthService) login(ctx context.Context, in ports.LoginInput) (string, *domain.User, error) {
	login := strings.TrimSpace(in.Login)
	if login == "" || in.Password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, found, err := s.users.FindByUsernameOrEmail(ctx, login)
	if err != nil {
		return "", nil, err
	}
	if !found {
		return "", nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !user.Status.Usable() {
		return "", nil, domain.InactiveUserAccount(user.ID, user.Status.Reason())
	}

	at := s.now()
	updated, found, err := s.users.UpdateLastLogin(ctx, user.ID, at)
	if err != nil {
		return "", nil, err
	}
	if !found {
		return "", nil, domain.EntityNotFound(entityUser, userKey(user.ID))
	}

	token, err := s.generateToken(updated, at)
	if err != nil {
		return "", nil, fmt.Errorf("login: sign token: %w", err)
	}

	publish(ctx, s.sink, s.log, events.NewUserLoggedIn(updated.ID, updated.Username, at, in.IPAddress, in.UserAgent))
	return token, updated, nil
}

func (s *AuthService) generateToken(user *domain.User, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id":     int64(user.ID),
		"username":    string(user.Username),
		"roles":       user.RoleNames(),
		"authorities": user.Authorities(),
		"iat":         issuedAt.Unix(),
		"exp":         issuedAt.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case domain.IsCode(err, domain.CodeInactiveUserAccount):
		return "inactive"
	default:
		return "error"
	}
}
