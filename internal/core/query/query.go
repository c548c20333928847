// Package query defines the relational executor contract the hydrator runs
// against, and the row type it maps from.
package query

import (
	"context"
	"errors"
	"fmt"
)

// Query is one parameterized statement. SQL uses ? placeholders; executors
// rebind them for their driver. Name tags logs, metrics and errors.
type Query struct {
	Name string
	SQL  string
	Args []any
}

// New builds a named query.
func New(name, sql string, args ...any) Query {
	return Query{Name: name, SQL: sql, Args: args}
}

// Executor runs queries against a relational backend. Implementations must
// honour ctx cancellation on in-flight statements.
type Executor interface {
	// QueryOne returns the first row. found is false when the statement
	// produced no rows; that is not an error.
	QueryOne(ctx context.Context, q Query) (row Row, found bool, err error)
	// QueryMany returns every row, or an empty slice.
	QueryMany(ctx context.Context, q Query) ([]Row, error)
	// Exec runs a statement and returns the affected row count.
	Exec(ctx context.Context, q Query) (int64, error)
}

// Kind classifies backend failures.
type Kind int

const (
	KindBackend Kind = iota
	KindUniqueViolation
	KindForeignKey
)

func (k Kind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique_violation"
	case KindForeignKey:
		return "foreign_key_violation"
	default:
		return "backend"
	}
}

// Error is returned by executors for every backend failure. Constraint holds
// the constraint or column reference reported by the driver, when known.
type Error struct {
	Op         string
	Kind       Kind
	Constraint string
	Err        error
}

func (e *Error) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: %s on %s: %v", e.Op, e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, and false when
// err was not produced by an executor.
func KindOf(err error) (Kind, string, bool) {
	var qe *Error
	if !errors.As(err, &qe) {
		return KindBackend, "", false
	}
	return qe.Kind, qe.Constraint, true
}

// Transactor is implemented by executors that can run several statements
// atomically. fn receives an Executor bound to the transaction; returning an
// error rolls it back.
type Transactor interface {
	InTx(ctx context.Context, fn func(Executor) error) error
}
