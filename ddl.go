package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// collectUnmappedTypeErrors runs the mapper over the whole catalog before any
// data is touched. Every unmapped or ambiguous column is reported at once so
// the operator can resolve them in a single config pass.
func collectUnmappedTypeErrors(src SourceDB, catalog *Catalog, typeMap TypeMappingConfig) []string {
	if catalog == nil {
		return nil
	}

	var errs []string
	for _, t := range catalog.Tables {
		for _, col := range t.Columns {
			if _, err := src.MapType(col, typeMap); err != nil {
				errs = append(errs, fmt.Sprintf("%s.%s (%s): %v", t.SourceName, col.SourceName, col.ColumnType, err))
			}
		}
	}
	return errs
}

// createPhaseTables generates and executes CREATE TABLE DDL for one phase.
// Tables are created bare (optionally UNLOGGED) with no PKs, FKs, or indexes;
// constraints attach after the phase's data has loaded.
func createPhaseTables(ctx context.Context, pool *pgxpool.Pool, src SourceDB, catalog *Catalog, phase Phase, cfg *MigrationConfig) error {
	for _, name := range phase.Tables {
		t := catalog.TableByPGName(name)
		if t == nil {
			return fmt.Errorf("phase %d names unknown table %s", phase.Index, name)
		}
		ddl, err := generateCreateTable(src, t, cfg)
		if err != nil {
			return fmt.Errorf("table %s: %w", t.PGName, err)
		}
		log.Printf("  creating %s.%s", cfg.Schema, t.PGName)
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w\nDDL: %s", t.PGName, err, ddl)
		}
	}
	return nil
}

// generateCreateTable produces the CREATE TABLE statement for one table.
func generateCreateTable(src SourceDB, t *Table, cfg *MigrationConfig) (string, error) {
	var b strings.Builder
	unlogged := ""
	if cfg.UnloggedTables {
		unlogged = "UNLOGGED "
	}
	fmt.Fprintf(&b, "CREATE %sTABLE %s.%s (\n", unlogged, pgIdent(cfg.Schema), pgIdent(t.PGName))

	for i, col := range t.Columns {
		pgType, err := src.MapType(col, cfg.TypeMapping)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.SourceName, err)
		}
		fmt.Fprintf(&b, "  %s %s", pgIdent(col.PGName), pgType)

		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}

		if cfg.PreserveDefaults {
			dflt, err := src.MapDefault(col, pgType, cfg.TypeMapping)
			if err != nil {
				return "", fmt.Errorf("column %s default: %w", col.SourceName, err)
			}
			if dflt != "" {
				fmt.Fprintf(&b, " DEFAULT %s", dflt)
			}
		}

		if i < len(t.Columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}

	b.WriteString(")")
	return b.String(), nil
}
