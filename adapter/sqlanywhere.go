package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

// SQLAnywhere calls stored procedures on a SQL Anywhere server over its TDS
// listener. It exists so client applications can run against the source with
// the same Adapter they will point at PostgreSQL after cutover.
type SQLAnywhere struct {
	cfg Config
	db  *sql.DB
}

func NewSQLAnywhere(cfg Config) *SQLAnywhere {
	return &SQLAnywhere{cfg: cfg}
}

func (s *SQLAnywhere) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlserver", s.cfg.DSN)
	if err != nil {
		return &ConnectError{Driver: "sqlserver", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &ConnectError{Driver: "sqlserver", Err: err}
	}
	s.db = db
	return nil
}

func (s *SQLAnywhere) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLAnywhere) Call(ctx context.Context, operation string, args ...any) (*Result, error) {
	if err := validOperationName(operation); err != nil {
		return nil, &QueryError{Operation: operation, Err: err}
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
	}
	query := fmt.Sprintf("CALL %s.%s(%s)",
		quoteBracket(s.cfg.Schema), quoteBracket(operation), strings.Join(placeholders, ", "))

	if s.cfg.isNoResult(operation) {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, &QueryError{Operation: operation, Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, &QueryError{Operation: operation, Err: err}
		}
		return &Result{Columns: []string{"rows_affected"}, Rows: [][]any{{n}}}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Operation: operation, Err: err}
	}
	defer rows.Close()
	out, err := collectRows(rows)
	if err != nil {
		return nil, &QueryError{Operation: operation, Err: err}
	}
	return out, nil
}

func quoteBracket(name string) string {
	return `[` + strings.ReplaceAll(name, `]`, `]]`) + `]`
}
