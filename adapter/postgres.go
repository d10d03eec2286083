package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres calls migrated plpgsql functions. Every translated operation
// returns a result set, so a single SELECT * FROM fn(...) form covers both
// query and mutation operations.
type Postgres struct {
	cfg Config
	db  *sql.DB
}

func NewPostgres(cfg Config) *Postgres {
	return &Postgres{cfg: cfg}
}

func (p *Postgres) Connect(ctx context.Context) error {
	db, err := sql.Open("pgx", p.cfg.DSN)
	if err != nil {
		return &ConnectError{Driver: "pgx", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &ConnectError{Driver: "pgx", Err: err}
	}
	p.db = db
	return nil
}

func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) Call(ctx context.Context, operation string, args ...any) (*Result, error) {
	if err := validOperationName(operation); err != nil {
		return nil, &QueryError{Operation: operation, Err: err}
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("SELECT * FROM %s.%s(%s)",
		quoteIdent(p.cfg.Schema), quoteIdent(operation), strings.Join(placeholders, ", "))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Operation: operation, Err: err}
	}
	defer rows.Close()
	res, err := collectRows(rows)
	if err != nil {
		return nil, &QueryError{Operation: operation, Err: err}
	}
	return res, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func collectRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: lowerColumns(cols)}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}
