package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`

	DB     DBConfig
	Access AccessConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Events EventsConfig
}

type DBConfig struct {
	Driver          string        `env:"DB_DRIVER,            default=postgres"`
	DSN             string        `env:"DB_DSN,               default=postgres://localhost:5432/identity?sslmode=disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,    default=25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,    default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME, default=5m"`
}

type AccessConfig struct {
	// HydrateMaxConcurrency bounds the per-call fan-out of the hydrators.
	HydrateMaxConcurrency int `env:"HYDRATE_MAX_CONCURRENCY, default=8"`
	MaxRolesPerUser       int `env:"MAX_ROLES_PER_USER,      default=10"`

	// RoleAssigners are the token roles allowed to replace a user's roles.
	RoleAssigners []string `env:"ROLE_ASSIGNERS, default=ADMIN"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type EventsConfig struct {
	Workers int    `env:"EVENT_WORKERS, default=8"`
	Stream  string `env:"EVENT_STREAM,  default=identity:events"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.JWTSecret == "" && c.Env != "development" {
		return errors.New("JWT_SECRET is required outside development")
	}
	if c.Access.HydrateMaxConcurrency <= 0 || c.Access.MaxRolesPerUser <= 0 {
		return errors.New("HYDRATE_MAX_CONCURRENCY and MAX_ROLES_PER_USER must be positive")
	}
	if len(c.Access.RoleAssigners) == 0 {
		return errors.New("ROLE_ASSIGNERS must name at least one role")
	}
	return nil
}

// IsDevelopment enables pretty logs and a throwaway signing secret.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }
