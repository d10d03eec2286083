// Package adapter gives client applications one calling convention for
// stored operations on either side of a migration. Operations are invoked by
// name with positional arguments and always come back as a tabular Result,
// regardless of which engine ran them.
package adapter

import (
	"context"
	"fmt"
	"strings"
)

// Config describes one database endpoint.
type Config struct {
	DSN    string
	Schema string // target schema (PostgreSQL) or owner (SQL Anywhere)

	// NoResultOps names operations that mutate without producing rows on
	// engines where that distinction exists. Calls to these return a single
	// rows_affected row so every operation stays tabular.
	NoResultOps []string
}

func (c Config) isNoResult(op string) bool {
	for _, n := range c.NoResultOps {
		if strings.EqualFold(n, op) {
			return true
		}
	}
	return false
}

// Result is the uniform outcome of a Call. Column names are lower-cased so
// callers can switch engines without renaming fields.
type Result struct {
	Columns []string
	Rows    [][]any
}

// RowsAffected returns the mutation count of a no-result operation, or -1
// when the result does not carry one.
func (r *Result) RowsAffected() int64 {
	if len(r.Columns) != 1 || r.Columns[0] != "rows_affected" || len(r.Rows) != 1 {
		return -1
	}
	if n, ok := r.Rows[0][0].(int64); ok {
		return n
	}
	return -1
}

// Adapter is the engine-independent surface client applications hold during
// a migration. Implementations are safe for concurrent Calls after Connect.
type Adapter interface {
	Connect(ctx context.Context) error
	Close() error
	Call(ctx context.Context, operation string, args ...any) (*Result, error)
}

// ConnectError wraps connection and handshake failures.
type ConnectError struct {
	Driver string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("adapter connect (%s): %v", e.Driver, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// QueryError wraps failures of a named operation, keeping the operation name
// for callers that retry or report per-operation.
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("adapter call %s: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// validOperationName rejects names that cannot be a bare identifier;
// operation names are interpolated into statements and must never carry
// quoting tricks.
func validOperationName(op string) error {
	if op == "" {
		return fmt.Errorf("empty operation name")
	}
	for i, r := range op {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return fmt.Errorf("invalid operation name %q", op)
		}
	}
	return nil
}

func lowerColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToLower(c)
	}
	return out
}
