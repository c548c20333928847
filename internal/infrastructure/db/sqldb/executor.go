package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/query"
)

var (
	_ query.Executor   = (*Executor)(nil)
	_ query.Transactor = (*Executor)(nil)
)

// Executor implements query.Executor. Statements are written with ?
// placeholders and rebound for the pool's driver.
type Executor struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	log zerolog.Logger
}

func NewExecutor(db *sqlx.DB, log zerolog.Logger) *Executor {
	return &Executor{db: db, ext: db, log: log}
}

func (e *Executor) QueryOne(ctx context.Context, q query.Query) (query.Row, bool, error) {
	start := time.Now()
	rows, err := e.ext.QueryxContext(ctx, e.ext.Rebind(q.SQL), q.Args...)
	if err != nil {
		return query.Row{}, false, classify(q.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return query.Row{}, false, classify(q.Name, err)
		}
		e.trace(q, start, 0)
		return query.Row{}, false, nil
	}
	row, err := scan(rows)
	if err != nil {
		return query.Row{}, false, classify(q.Name, err)
	}
	e.trace(q, start, 1)
	return row, true, nil
}

func (e *Executor) QueryMany(ctx context.Context, q query.Query) ([]query.Row, error) {
	start := time.Now()
	rows, err := e.ext.QueryxContext(ctx, e.ext.Rebind(q.SQL), q.Args...)
	if err != nil {
		return nil, classify(q.Name, err)
	}
	defer rows.Close()

	out := []query.Row{}
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, classify(q.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(q.Name, err)
	}
	e.trace(q, start, len(out))
	return out, nil
}

func (e *Executor) Exec(ctx context.Context, q query.Query) (int64, error) {
	start := time.Now()
	res, err := e.ext.ExecContext(ctx, e.ext.Rebind(q.SQL), q.Args...)
	if err != nil {
		return 0, classify(q.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(q.Name, err)
	}
	e.trace(q, start, int(n))
	return n, nil
}

// InTx runs fn inside a transaction. Nested calls reuse the outer one.
func (e *Executor) InTx(ctx context.Context, fn func(query.Executor) error) (err error) {
	if e.db == nil {
		return fn(e)
	}
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("tx.begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				e.log.Warn().Err(rbErr).Msg("transaction rollback failed")
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = classify("tx.commit", cErr)
		}
	}()
	return fn(&Executor{ext: tx, log: e.log})
}

// Ping checks the pool; used by readiness probes.
func (e *Executor) Ping(ctx context.Context) error {
	if e.db == nil {
		return fmt.Errorf("sqldb: ping inside transaction")
	}
	return e.db.PingContext(ctx)
}

func (e *Executor) trace(q query.Query, start time.Time, rows int) {
	e.log.Debug().
		Str("query", q.Name).
		Int("rows", rows).
		Dur("elapsed", time.Since(start)).
		Msg("query executed")
}

func scan(rows *sqlx.Rows) (query.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return query.Row{}, err
	}
	vals, err := rows.SliceScan()
	if err != nil {
		return query.Row{}, err
	}
	return query.NewRow(cols, vals), nil
}
