package main

import (
	"context"
	"fmt"
	"log"
)

// finishPhase completes one phase after its data has loaded:
// 1. SET LOGGED, 2. primary keys, 3. indexes, 4. foreign keys.
// Constraints go on after the bulk load so COPY runs unchecked; the
// validator then proves the data would have satisfied them anyway.
func finishPhase(ctx context.Context, exec schemaExecutor, cfg *MigrationConfig, catalog *Catalog, phase *Phase) error {
	tables := make([]*Table, 0, len(phase.Tables))
	for _, name := range phase.Tables {
		t := catalog.TableByPGName(name)
		if t == nil {
			return fmt.Errorf("phase %d names unknown table %s", phase.Index, name)
		}
		tables = append(tables, t)
	}

	steps := []struct {
		name string
		fn   func(context.Context, schemaExecutor, []*Table, string) error
	}{
		{"SET LOGGED", setLogged},
		{"primary keys", addPrimaryKeys},
		{"indexes", addIndexes},
		{"foreign keys", addForeignKeys},
	}
	if !cfg.UnloggedTables {
		steps = steps[1:]
	}

	for _, step := range steps {
		log.Printf("  %s...", step.name)
		if err := step.fn(ctx, exec, tables, cfg.Schema); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

// execSQL runs a single statement and wraps errors with the statement text.
func execSQL(ctx context.Context, exec schemaExecutor, desc, query string) error {
	if _, err := exec.Exec(ctx, query); err != nil {
		return fmt.Errorf("%s: %w\nSQL: %s", desc, err, query)
	}
	return nil
}

// setLogged converts phase tables back from UNLOGGED. A no-op on tables an
// earlier run already converted.
func setLogged(ctx context.Context, exec schemaExecutor, tables []*Table, pgSchema string) error {
	for _, t := range tables {
		q := fmt.Sprintf("ALTER TABLE %s.%s SET LOGGED", pgIdent(pgSchema), pgIdent(t.PGName))
		if err := execSQL(ctx, exec, t.PGName, q); err != nil {
			return err
		}
	}
	return nil
}

func addPrimaryKeys(ctx context.Context, exec schemaExecutor, tables []*Table, pgSchema string) error {
	for _, t := range tables {
		if t.PrimaryKey == nil {
			continue
		}
		attached, err := hasPrimaryKey(ctx, exec, pgSchema, t.PGName)
		if err != nil {
			return err
		}
		if attached {
			continue
		}
		q := fmt.Sprintf("ALTER TABLE %s.%s ADD PRIMARY KEY (%s)",
			pgIdent(pgSchema), pgIdent(t.PGName), quotedColumnList(t.PrimaryKey.Columns))
		if err := execSQL(ctx, exec, t.PGName+" PK", q); err != nil {
			return err
		}
	}
	return nil
}

// addIndexes creates non-primary indexes. Indexes with expression key parts
// cannot be rebuilt from a column list; they are reported and skipped, never
// mangled into something that only looks equivalent.
func addIndexes(ctx context.Context, exec schemaExecutor, tables []*Table, pgSchema string) error {
	for _, t := range tables {
		for _, idx := range t.Indexes {
			if reason := indexUnsupportedReason(&idx); reason != "" {
				log.Printf("    skipped index %s on %s: %s", idx.SourceName, t.PGName, reason)
				continue
			}
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			idxName := fmt.Sprintf("%s_%s", t.PGName, idx.Name)
			q := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s.%s (%s)",
				unique, pgIdent(idxName), pgIdent(pgSchema), pgIdent(t.PGName), indexColumnList(&idx))
			if err := execSQL(ctx, exec, idxName, q); err != nil {
				return err
			}
		}
	}
	return nil
}

// addForeignKeys attaches the phase tables' outgoing constraints. Deferred
// edges belong to circular-reference groups: the planner guarantees every
// referenced table loaded in this same phase, so by this point both ends are
// complete and the constraint can go on. They are created DEFERRABLE so a
// future client transaction can reload the cycle the same way.
func addForeignKeys(ctx context.Context, exec schemaExecutor, tables []*Table, pgSchema string) error {
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			attached, err := constraintExists(ctx, exec, pgSchema, t.PGName, fk.Name)
			if err != nil {
				return err
			}
			if attached {
				continue
			}
			deferrable := ""
			if fk.Deferred {
				deferrable = " DEFERRABLE INITIALLY IMMEDIATE"
			}
			q := fmt.Sprintf(
				"ALTER TABLE %s.%s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s.%s(%s) ON UPDATE %s ON DELETE %s%s",
				pgIdent(pgSchema), pgIdent(t.PGName),
				pgIdent(fk.Name),
				quotedColumnList(fk.Columns),
				pgIdent(pgSchema), pgIdent(fk.RefPGTable),
				quotedColumnList(fk.RefColumns),
				fk.UpdateRule, fk.DeleteRule, deferrable,
			)
			if err := execSQL(ctx, exec, fk.Name, q); err != nil {
				return err
			}
			if fk.Deferred {
				log.Printf("    deferred constraint %s attached", fk.Name)
			}
		}
	}
	return nil
}

// hasPrimaryKey reports whether the table already carries a primary key, so
// a resumed run can re-enter constraint attachment without tripping on work
// an interrupted run completed.
func hasPrimaryKey(ctx context.Context, exec schemaExecutor, pgSchema, table string) (bool, error) {
	var exists bool
	err := exec.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM pg_constraint c
  JOIN pg_class rel ON rel.oid = c.conrelid
  JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
  WHERE nsp.nspname = $1 AND rel.relname = $2 AND c.contype = 'p')`,
		pgSchema, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check primary key on %s: %w", table, err)
	}
	return exists, nil
}

// constraintExists reports whether a named constraint is already attached.
func constraintExists(ctx context.Context, exec schemaExecutor, pgSchema, table, name string) (bool, error) {
	var exists bool
	err := exec.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM pg_constraint c
  JOIN pg_class rel ON rel.oid = c.conrelid
  JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
  WHERE nsp.nspname = $1 AND rel.relname = $2 AND c.conname = $3)`,
		pgSchema, table, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check constraint %s on %s: %w", name, table, err)
	}
	return exists, nil
}

// resetSequences runs once after the last phase: every autoincrement column
// gets an owned sequence positioned past the loaded maximum.
func resetSequences(ctx context.Context, exec schemaExecutor, catalog *Catalog, pgSchema string) error {
	for i := range catalog.Tables {
		t := &catalog.Tables[i]
		for _, col := range t.Columns {
			if col.Extra != "autoincrement" {
				continue
			}
			seqName := fmt.Sprintf("%s_%s_seq", t.PGName, col.PGName)
			stmts := []string{
				fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s.%s", pgIdent(pgSchema), pgIdent(seqName)),
				fmt.Sprintf("SELECT setval('%s.%s', COALESCE((SELECT MAX(%s) FROM %s.%s), 0) + 1, false)",
					pgSchema, seqName,
					pgIdent(col.PGName), pgIdent(pgSchema), pgIdent(t.PGName)),
				fmt.Sprintf("ALTER TABLE %s.%s ALTER COLUMN %s SET DEFAULT nextval('%s.%s')",
					pgIdent(pgSchema), pgIdent(t.PGName), pgIdent(col.PGName),
					pgSchema, seqName),
				fmt.Sprintf("ALTER SEQUENCE %s.%s OWNED BY %s.%s.%s",
					pgIdent(pgSchema), pgIdent(seqName),
					pgIdent(pgSchema), pgIdent(t.PGName), pgIdent(col.PGName)),
			}
			for _, q := range stmts {
				if err := execSQL(ctx, exec, seqName, q); err != nil {
					return err
				}
			}
			log.Printf("    sequence %s.%s reset", pgSchema, seqName)
		}
	}
	return nil
}
