// Package sqldb runs query.Executor statements on database/sql through sqlx.
// Supported drivers are "postgres" (lib/pq), "pgx" (pgx stdlib) and
// "sqlite" (modernc).
package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultRetries         = 5
	defaultRetryInterval   = 2 * time.Second
	pingTimeout            = 5 * time.Second

	sqliteForeignKeys = "_pragma=foreign_keys(1)"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config holds the connection and pool settings.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int
	RetryInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.Retries <= 0 {
		c.Retries = defaultRetries
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	return c
}

// Connect opens the pool, retrying while the database comes up, and
// verifies it with a ping.
func Connect(ctx context.Context, cfg Config, log zerolog.Logger) (*sqlx.DB, error) {
	cfg = cfg.withDefaults()
	switch cfg.Driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", cfg.Driver)
	}
	if cfg.Driver == DriverSQLite {
		cfg.DSN = sqliteDSN(cfg.DSN)
	}

	var (
		db  *sqlx.DB
		err error
	)
	for attempt := 1; attempt <= cfg.Retries; attempt++ {
		db, err = sqlx.Open(cfg.Driver, cfg.DSN)
		if err == nil {
			err = ping(ctx, db)
			if err == nil {
				break
			}
			_ = db.Close()
		}
		log.Warn().Err(err).
			Str("driver", cfg.Driver).
			Int("attempt", attempt).
			Int("max_attempts", cfg.Retries).
			Msg("database connection failed")
		if attempt == cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sqldb connect after %d attempts: %w", cfg.Retries, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off per
// connection unless the DSN asks for it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteForeignKeys
	}
	return dsn + "?" + sqliteForeignKeys
}

func ping(ctx context.Context, db *sqlx.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}
