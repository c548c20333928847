package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/99minutos/identity-core/internal/api"
	"github.com/99minutos/identity-core/internal/api/handler"
	"github.com/99minutos/identity-core/internal/core/hydrator"
	"github.com/99minutos/identity-core/internal/core/service"
	mongostore "github.com/99minutos/identity-core/internal/infrastructure/db/mongo"
	redisstream "github.com/99minutos/identity-core/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-core/internal/infrastructure/db/sqldb"
	"github.com/99minutos/identity-core/internal/infrastructure/queue"
	"github.com/99minutos/identity-core/internal/pkg/config"
	"github.com/99minutos/identity-core/pkg/logger"
)

const (
	serviceName     = "identity-core"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = uuid.NewString()
		log.Warn().Msg("JWT_SECRET not set; using an ephemeral development secret")
	}

	// --- Relational store ---
	db, err := sqldb.Connect(ctx, sqldb.Config{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, logger.Component("sqldb"))
	if err != nil {
		return err
	}
	defer db.Close()
	exec := sqldb.NewExecutor(db, logger.Component("sqldb"))

	// --- Event sinks ---
	mongoClient, mongoDB, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()
	eventStore := mongostore.NewEventStore(mongoDB)
	if err := eventStore.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure event indexes")
	}

	rdb, err := redisstream.Connect(ctx, redisstream.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()
	streamSink := redisstream.NewStreamSink(rdb, cfg.Events.Stream, logger.Component("stream"))

	fanout := queue.NewFanout(
		queue.NamedSink{Name: "mongo", Sink: eventStore},
		queue.NamedSink{Name: "redis_stream", Sink: streamSink},
	)
	dispatcher := queue.NewDispatcher(cfg.Events.Workers, fanout, logger.Component("dispatcher"))
	// Workers outlive the signal context so Stop can drain queued events.
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	// --- Core ---
	users := hydrator.NewUserHydrator(exec, cfg.Access.HydrateMaxConcurrency, logger.Component("hydrator"))
	roles := hydrator.NewRoleHydrator(exec, cfg.Access.HydrateMaxConcurrency, logger.Component("hydrator"))
	authService := service.NewAuthService(users, roles, dispatcher, jwtSecret, cfg.TokenTTL, logger.Component("auth"))
	accessService := service.NewAccessService(users, roles, dispatcher, cfg.Access.MaxRolesPerUser, logger.Component("access"))

	e := api.NewRouter(api.Deps{
		Auth:      authService,
		Access:    accessService,
		Audit:     eventStore,
		JWTSecret: jwtSecret,
		Log:       logger.Component("http"),
		Checks: map[string]handler.Check{
			"sql":     exec.Ping,
			"mongodb": func(ctx context.Context) error { return mongostore.Ping(ctx, mongoClient) },
			"redis":   func(ctx context.Context) error { return redisstream.Ping(ctx, rdb) },
		},
		RoleAssigners: cfg.Access.RoleAssigners,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("db_driver", cfg.DB.Driver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	return nil
}
