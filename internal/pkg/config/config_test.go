package config

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DB.Driver != "postgres" || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Access.HydrateMaxConcurrency != 8 || cfg.Access.MaxRolesPerUser != 10 || !slices.Equal(cfg.Access.RoleAssigners, []string{"ADMIN"}) {
		t.Fatalf("unexpected access defaults: %+v", cfg.Access)
	}
	if cfg.Events.Stream != "identity:events" || cfg.DB.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":                     "production",
		"JWT_SECRET":              "s3cret",
		"DB_DRIVER":               "sqlite",
		"DB_DSN":                  "file:identity.db",
		"HYDRATE_MAX_CONCURRENCY": "2",
		"EVENT_WORKERS":           "4",
		"ROLE_ASSIGNERS":          "ADMIN,SECURITY",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.Access.HydrateMaxConcurrency != 2 || cfg.Events.Workers != 4 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !slices.Equal(cfg.Access.RoleAssigners, []string{"ADMIN", "SECURITY"}) {
		t.Fatalf("unexpected role assigners: %v", cfg.Access.RoleAssigners)
	}
	if cfg.IsDevelopment() {
		t.Fatal("production must not be development")
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":      {"DB_DRIVER": "oracle"},
		"secret":      {"ENV": "production"},
		"concurrency": {"HYDRATE_MAX_CONCURRENCY": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(context.Background(), envconfig.MapLookuper(env))
			if err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}
