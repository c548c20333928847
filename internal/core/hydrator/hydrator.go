// Package hydrator rebuilds User and Role aggregates from relational rows.
//
// Every lookup runs a root query, then loads each root's active roles and
// each role's permissions concurrently, and merges bottom-up. A failure at
// any level cancels the rest of that call and no aggregate is returned.
// Absence is reported through a bool, never as an error.
package hydrator

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/query"
	"github.com/99minutos/identity-core/internal/metrics"
)

const (
	resultFound  = "found"
	resultAbsent = "absent"
	resultError  = "error"

	levelRoot        = "root"
	levelRoles       = "roles"
	levelPermissions = "permissions"
)

var (
	errNoRows        = sql.ErrNoRows
	errNoReturnedRow = errors.New("write returned no row")
)

// Overridden in tests.
var now = func() time.Time { return time.Now().UTC() }

func observe(op, result string, start time.Time) {
	metrics.HydrationDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

// failed records err and returns it. Storage failures are logged; domain
// outcomes such as conflicts are left to the caller.
func failed(log zerolog.Logger, op string, start time.Time, err error) error {
	observe(op, resultError, start)
	code := domain.CodeOf(err)
	metrics.HydrationErrorsTotal.WithLabelValues(op, string(code)).Inc()
	if code == domain.CodeStorageFailure {
		log.Warn().Err(err).Str("op", op).Msg("hydration failed")
	}
	return err
}

// atomically runs fn in a transaction when exec supports one.
func atomically(ctx context.Context, exec query.Executor, fn func(query.Executor) error) error {
	if tx, ok := exec.(query.Transactor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(exec)
}
