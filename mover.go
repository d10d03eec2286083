package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// migratePhaseData moves the rows of every table in one phase. Tables run
// concurrently up to cfg.Workers; each worker holds its own source
// connection. A failed table fails the phase after in-flight tables finish
// or the shared context cancels them between batches.
func migratePhaseData(ctx context.Context, cfg *MigrationConfig, src SourceDB, pool *pgxpool.Pool, catalog *Catalog, phase *Phase) error {
	workers := cfg.Workers
	if max := src.MaxWorkers(); max > 0 && workers > max {
		workers = max
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range phase.Tables {
		t := catalog.TableByPGName(name)
		if t == nil {
			return fmt.Errorf("phase %d names unknown table %s", phase.Index, name)
		}
		g.Go(func() error {
			db, err := src.OpenDB(cfg.Source.DSN)
			if err != nil {
				return fmt.Errorf("open source for %s: %w", t.SourceName, err)
			}
			defer db.Close()
			db.SetMaxOpenConns(1)
			if err := migrateTable(ctx, cfg, src, db, pool, t); err != nil {
				if markErr := markTableStatus(context.WithoutCancel(ctx), pool, cfg.Schema, t.PGName, statusFailed); markErr != nil {
					log.Printf("  warning: %v", markErr)
				}
				return fmt.Errorf("table %s: %w", t.SourceName, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// migrateTable streams one table in fixed-size batches. Each batch commits
// atomically with its progress row, so resuming after a crash replays
// nothing and skips nothing.
func migrateTable(ctx context.Context, cfg *MigrationConfig, src SourceDB, srcDB *sql.DB, pool *pgxpool.Pool, t *Table) error {
	prog, err := loadProgress(ctx, pool, cfg.Schema, t.PGName)
	if err != nil {
		return err
	}
	if prog.Status == statusDone {
		log.Printf("  %s: already done, skipping", t.PGName)
		return nil
	}

	keyCol, keyset := singleIntPKColumn(t)
	if !keyset && t.PrimaryKey == nil && prog.RowOffset > 0 {
		// Without a key there is no stable resume point; start the
		// table over rather than guess at row identity.
		log.Printf("  %s: no primary key, restarting from row 0", t.PGName)
		if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s.%s", pgIdent(cfg.Schema), pgIdent(t.PGName))); err != nil {
			return fmt.Errorf("truncate for restart: %w", err)
		}
		if err := resetProgress(ctx, pool, cfg.Schema, t.PGName); err != nil {
			return err
		}
		prog = tableProgress{Status: statusPending}
	}

	offset := prog.RowOffset
	var lastKey int64
	if keyset && prog.LastKey != nil {
		lastKey = *prog.LastKey
	}
	if offset > 0 {
		log.Printf("  %s: resuming at row %d", t.PGName, offset)
	}

	pgCols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		pgCols[i] = c.PGName
	}
	keyIdx := -1
	if keyset {
		for i, c := range t.Columns {
			if c.PGName == keyCol {
				keyIdx = i
			}
		}
		if keyIdx < 0 {
			keyset = false
		}
	}

	batchSize := int64(cfg.BatchSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var query string
		if keyset {
			query = src.KeysetSelect(t, keyCol, lastKey, batchSize)
		} else {
			query = src.SelectRows(t, batchSize, offset, false)
		}
		rows, batchLastKey, err := readBatch(ctx, src, srcDB, t, cfg.TypeMapping, query, keyIdx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}
		offset += int64(len(rows))
		var lk *int64
		if keyset {
			lastKey = batchLastKey
			lk = &lastKey
		}
		if err := writeBatch(ctx, cfg, pool, t, pgCols, rows, offset, lk); err != nil {
			return err
		}
		if int64(len(rows)) < batchSize {
			break
		}
	}

	if err := markTableStatus(ctx, pool, cfg.Schema, t.PGName, statusDone); err != nil {
		return err
	}
	log.Printf("  %s: %d rows moved", t.PGName, offset)
	return nil
}

// readBatch runs one page query and returns transformed rows ready for COPY.
func readBatch(ctx context.Context, src SourceDB, srcDB *sql.DB, t *Table, typeMap TypeMappingConfig, query string, keyIdx int) ([][]any, int64, error) {
	rows, err := srcDB.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("read batch: %w", err)
	}
	defer rows.Close()

	var out [][]any
	var lastKey int64
	for rows.Next() {
		raw := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		vals := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			v, err := src.TransformValue(raw[i], c, typeMap)
			if err != nil {
				return nil, 0, fmt.Errorf("column %s: %w", c.SourceName, err)
			}
			vals[i] = v
		}
		if keyIdx >= 0 {
			k, err := asInt64(raw[keyIdx])
			if err != nil {
				return nil, 0, fmt.Errorf("key column %s: %w", t.Columns[keyIdx].SourceName, err)
			}
			lastKey = k
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read batch: %w", err)
	}
	return out, lastKey, nil
}

// writeBatch copies one batch into the target and records progress in the
// same transaction, retrying transient failures up to cfg.MaxRetries times.
func writeBatch(ctx context.Context, cfg *MigrationConfig, pool *pgxpool.Pool, t *Table, pgCols []string, rows [][]any, offset int64, lastKey *int64) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("  %s: retrying batch at row %d (attempt %d/%d)", t.PGName, offset, attempt, cfg.MaxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		lastErr = copyBatchTx(ctx, cfg, pool, t, pgCols, rows, offset, lastKey)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("batch ending at row %d failed after %d retries: %w", offset, cfg.MaxRetries, lastErr)
}

func copyBatchTx(ctx context.Context, cfg *MigrationConfig, pool *pgxpool.Pool, t *Table, pgCols []string, rows [][]any, offset int64, lastKey *int64) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{cfg.Schema, t.PGName},
		pgCols,
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := recordBatch(ctx, tx, cfg.Schema, t.PGName, offset, lastKey); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case []byte:
		var out int64
		if _, err := fmt.Sscan(string(n), &out); err != nil {
			return 0, fmt.Errorf("non-integer key value %q", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("non-integer key value of type %T", v)
	}
}
