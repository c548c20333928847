package sqldb

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/99minutos/identity-core/internal/core/query"
)

// SQLSTATE codes shared by both Postgres drivers.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// classify wraps a driver error in a *query.Error, recognizing constraint
// violations from every supported driver.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	qe := &query.Error{Op: op, Kind: query.KindBackend, Err: err}

	var (
		pqErr     *pq.Error
		pgErr     *pgconn.PgError
		sqliteErr *msqlite.Error
	)
	switch {
	case errors.As(err, &pqErr):
		qe.Kind = kindFromSQLState(string(pqErr.Code))
		qe.Constraint = pqErr.Constraint
	case errors.As(err, &pgErr):
		qe.Kind = kindFromSQLState(pgErr.Code)
		qe.Constraint = pgErr.ConstraintName
	case errors.As(err, &sqliteErr):
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			qe.Kind = query.KindUniqueViolation
			qe.Constraint = sqliteConstraint(sqliteErr.Error())
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			qe.Kind = query.KindForeignKey
		}
	}
	return qe
}

func kindFromSQLState(code string) query.Kind {
	switch strings.TrimSpace(code) {
	case sqlStateUniqueViolation:
		return query.KindUniqueViolation
	case sqlStateForeignKeyViolation:
		return query.KindForeignKey
	default:
		return query.KindBackend
	}
}

// sqliteConstraint extracts "table.column" from messages such as
// "UNIQUE constraint failed: users.username (2067)".
func sqliteConstraint(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.Index(rest, " ("); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
