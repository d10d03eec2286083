package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Per-table movement states recorded in the progress table.
const (
	statusPending = "pending"
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

const progressTable = "_anyferry_progress"

// tableProgress is the committed movement state for one table. RowOffset is
// the number of rows durably committed on the target; LastKey is the highest
// committed key for keyset-paged tables.
type tableProgress struct {
	RowOffset int64
	LastKey   *int64
	Status    string
}

// ensureProgressTable creates the resume-state table in the target schema.
// Progress rows commit in the same transaction as their batch, so a re-run
// can trust them absolutely.
func ensureProgressTable(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
  table_name text PRIMARY KEY,
  row_offset bigint NOT NULL DEFAULT 0,
  last_key   bigint,
  status     text NOT NULL DEFAULT 'pending',
  updated_at timestamptz NOT NULL DEFAULT now()
)`, pgIdent(schema), progressTable)
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create progress table: %w", err)
	}
	return nil
}

func loadProgress(ctx context.Context, pool *pgxpool.Pool, schema, table string) (tableProgress, error) {
	var p tableProgress
	err := pool.QueryRow(ctx,
		fmt.Sprintf("SELECT row_offset, last_key, status FROM %s.%s WHERE table_name = $1",
			pgIdent(schema), progressTable),
		table,
	).Scan(&p.RowOffset, &p.LastKey, &p.Status)
	if err == pgx.ErrNoRows {
		return tableProgress{Status: statusPending}, nil
	}
	if err != nil {
		return tableProgress{}, fmt.Errorf("load progress for %s: %w", table, err)
	}
	return p, nil
}

// recordBatch upserts the committed offset inside the batch transaction.
func recordBatch(ctx context.Context, tx pgx.Tx, schema, table string, offset int64, lastKey *int64) error {
	q := fmt.Sprintf(`INSERT INTO %s.%s (table_name, row_offset, last_key, status, updated_at)
VALUES ($1, $2, $3, '%s', now())
ON CONFLICT (table_name) DO UPDATE
SET row_offset = EXCLUDED.row_offset, last_key = EXCLUDED.last_key,
    status = EXCLUDED.status, updated_at = now()`,
		pgIdent(schema), progressTable, statusRunning)
	if _, err := tx.Exec(ctx, q, table, offset, lastKey); err != nil {
		return fmt.Errorf("record progress for %s: %w", table, err)
	}
	return nil
}

func markTableStatus(ctx context.Context, pool *pgxpool.Pool, schema, table, status string) error {
	q := fmt.Sprintf(`INSERT INTO %s.%s (table_name, status, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (table_name) DO UPDATE SET status = EXCLUDED.status, updated_at = now()`,
		pgIdent(schema), progressTable)
	if _, err := pool.Exec(ctx, q, table, status); err != nil {
		return fmt.Errorf("mark %s %s: %w", table, status, err)
	}
	return nil
}

// resetProgress zeroes the committed state for one table (used when a
// PK-less table cannot resume mid-stream and must restart).
func resetProgress(ctx context.Context, pool *pgxpool.Pool, schema, table string) error {
	q := fmt.Sprintf(`UPDATE %s.%s SET row_offset = 0, last_key = NULL, status = '%s', updated_at = now()
WHERE table_name = $1`, pgIdent(schema), progressTable, statusPending)
	if _, err := pool.Exec(ctx, q, table); err != nil {
		return fmt.Errorf("reset progress for %s: %w", table, err)
	}
	return nil
}
