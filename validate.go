package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const validationTable = "_anyferry_validation"

// ensureValidationTable creates the audit table for check outcomes.
func ensureValidationTable(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
  object_name text NOT NULL,
  check_name  text NOT NULL,
  passed      boolean NOT NULL,
  detail      text NOT NULL DEFAULT '',
  checked_at  timestamptz NOT NULL DEFAULT now()
)`, pgIdent(schema), validationTable)
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create validation table: %w", err)
	}
	return nil
}

func storeValidationRecords(ctx context.Context, pool *pgxpool.Pool, schema string, recs []ValidationRecord) error {
	q := fmt.Sprintf("INSERT INTO %s.%s (object_name, check_name, passed, detail) VALUES ($1, $2, $3, $4)",
		pgIdent(schema), validationTable)
	for _, r := range recs {
		if _, err := pool.Exec(ctx, q, r.Table, r.Check, r.Passed, r.Detail); err != nil {
			return fmt.Errorf("store validation record: %w", err)
		}
	}
	return nil
}

// validatePhase proves a finished phase before the pipeline moves on: exact
// row counts, head and tail samples in key order, and orphan scans for every
// attached foreign key. Any failed check halts phase progression.
func validatePhase(ctx context.Context, cfg *MigrationConfig, src SourceDB, srcDB *sql.DB, pool *pgxpool.Pool, catalog *Catalog, phase *Phase) ([]ValidationRecord, error) {
	var recs []ValidationRecord
	for _, name := range phase.Tables {
		t := catalog.TableByPGName(name)
		if t == nil {
			return nil, fmt.Errorf("phase %d names unknown table %s", phase.Index, name)
		}
		r, err := checkRowCount(ctx, cfg, src, srcDB, pool, t)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
		if !r.Passed {
			// Samples against a wrong-sized table just repeat the news.
			continue
		}
		sampleRecs, err := checkSamples(ctx, cfg, src, srcDB, pool, t)
		if err != nil {
			return nil, err
		}
		recs = append(recs, sampleRecs...)
		fkRecs, err := checkFKOrphans(ctx, cfg, pool, t)
		if err != nil {
			return nil, err
		}
		recs = append(recs, fkRecs...)
	}
	return recs, nil
}

func checkRowCount(ctx context.Context, cfg *MigrationConfig, src SourceDB, srcDB *sql.DB, pool *pgxpool.Pool, t *Table) (ValidationRecord, error) {
	var srcCount int64
	if err := srcDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+src.QualifiedTableName(t)).Scan(&srcCount); err != nil {
		return ValidationRecord{}, fmt.Errorf("source count for %s: %w", t.SourceName, err)
	}
	var dstCount int64
	if err := pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", pgIdent(cfg.Schema), pgIdent(t.PGName))).Scan(&dstCount); err != nil {
		return ValidationRecord{}, fmt.Errorf("target count for %s: %w", t.PGName, err)
	}
	r := ValidationRecord{Table: t.PGName, Check: "row_count", Passed: srcCount == dstCount}
	if r.Passed {
		r.Detail = fmt.Sprintf("%d rows", srcCount)
	} else {
		r.Detail = fmt.Sprintf("source=%d target=%d", srcCount, dstCount)
	}
	return r, nil
}

// checkSamples compares the first and last sample_rows rows of both sides,
// field by field, in deterministic key order.
func checkSamples(ctx context.Context, cfg *MigrationConfig, src SourceDB, srcDB *sql.DB, pool *pgxpool.Pool, t *Table) ([]ValidationRecord, error) {
	var recs []ValidationRecord
	for _, dir := range []struct {
		name string
		desc bool
	}{{"sample_head", false}, {"sample_tail", true}} {
		srcRows, err := readSourceSample(ctx, cfg, src, srcDB, t, dir.desc)
		if err != nil {
			return nil, err
		}
		dstRows, err := readTargetSample(ctx, cfg, src, pool, t, dir.desc)
		if err != nil {
			return nil, err
		}
		r := ValidationRecord{Table: t.PGName, Check: dir.name, Passed: true}
		if detail := compareSamples(t, srcRows, dstRows); detail != "" {
			r.Passed = false
			r.Detail = detail
		} else {
			r.Detail = fmt.Sprintf("%d rows compared", len(srcRows))
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func readSourceSample(ctx context.Context, cfg *MigrationConfig, src SourceDB, srcDB *sql.DB, t *Table, desc bool) ([][]string, error) {
	pgTypes, err := columnPGTypes(src, t, cfg.TypeMapping)
	if err != nil {
		return nil, err
	}
	query := src.SelectRows(t, int64(cfg.SampleRows), 0, desc)
	rows, err := srcDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("source sample for %s: %w", t.SourceName, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		raw := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("source sample scan: %w", err)
		}
		vals := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			v, err := src.TransformValue(raw[i], c, cfg.TypeMapping)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.SourceName, err)
			}
			// bytea renders as \x hex on the target side.
			if b, ok := v.([]byte); ok && pgTypes[i] == "bytea" {
				vals[i] = fmt.Sprintf("\\x%x", b)
				continue
			}
			vals[i] = normalizeValue(v)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func columnPGTypes(src SourceDB, t *Table, typeMap TypeMappingConfig) ([]string, error) {
	types := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		pgType, err := src.MapType(c, typeMap)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.SourceName, err)
		}
		types[i] = pgType
	}
	return types, nil
}

// readTargetSample casts every column to text so comparison does not depend
// on driver scan types.
func readTargetSample(ctx context.Context, cfg *MigrationConfig, src SourceDB, pool *pgxpool.Pool, t *Table, desc bool) ([][]string, error) {
	pgTypes, err := columnPGTypes(src, t, cfg.TypeMapping)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		// timestamptz text carries the session zone offset; render in UTC to
		// match the source side's normalized form.
		if pgTypes[i] == "timestamptz" {
			cols[i] = fmt.Sprintf("(%s AT TIME ZONE 'UTC')::text", pgIdent(c.PGName))
			continue
		}
		cols[i] = pgIdent(c.PGName) + "::text"
	}
	order := make([]string, 0, len(t.Columns))
	var orderCols []string
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) > 0 {
		orderCols = t.PrimaryKey.Columns
	} else {
		for _, c := range t.Columns {
			orderCols = append(orderCols, c.PGName)
		}
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	for _, c := range orderCols {
		order = append(order, pgIdent(c)+dir)
	}
	query := fmt.Sprintf("SELECT %s FROM %s.%s ORDER BY %s LIMIT %d",
		strings.Join(cols, ", "), pgIdent(cfg.Schema), pgIdent(t.PGName),
		strings.Join(order, ", "), cfg.SampleRows)

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("target sample for %s: %w", t.PGName, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		raw := make([]*string, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("target sample scan: %w", err)
		}
		vals := make([]string, len(t.Columns))
		for i, s := range raw {
			if s == nil {
				vals[i] = nullToken
			} else {
				vals[i] = canonicalText(*s)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func compareSamples(t *Table, srcRows, dstRows [][]string) string {
	if len(srcRows) != len(dstRows) {
		return fmt.Sprintf("sample size mismatch: source=%d target=%d", len(srcRows), len(dstRows))
	}
	for i := range srcRows {
		for j := range srcRows[i] {
			if srcRows[i][j] != dstRows[i][j] {
				return fmt.Sprintf("row %d column %s: source=%q target=%q",
					i, t.Columns[j].PGName, srcRows[i][j], dstRows[i][j])
			}
		}
	}
	return ""
}

// checkFKOrphans scans for child rows whose parent is missing. The
// constraints are already attached at this point, so a hit means the
// constraint itself is wrong, which is worth knowing loudly.
func checkFKOrphans(ctx context.Context, cfg *MigrationConfig, pool *pgxpool.Pool, t *Table) ([]ValidationRecord, error) {
	var recs []ValidationRecord
	for _, fk := range t.ForeignKeys {
		var conds []string
		for _, c := range fk.Columns {
			conds = append(conds, fmt.Sprintf("c.%s IS NOT NULL", pgIdent(c)))
		}
		var joins []string
		for i, c := range fk.Columns {
			joins = append(joins, fmt.Sprintf("p.%s = c.%s", pgIdent(fk.RefColumns[i]), pgIdent(c)))
		}
		q := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s.%s c WHERE %s AND NOT EXISTS (SELECT 1 FROM %s.%s p WHERE %s)",
			pgIdent(cfg.Schema), pgIdent(t.PGName), strings.Join(conds, " AND "),
			pgIdent(cfg.Schema), pgIdent(fk.RefPGTable), strings.Join(joins, " AND "))
		var orphans int64
		if err := pool.QueryRow(ctx, q).Scan(&orphans); err != nil {
			return nil, fmt.Errorf("orphan scan %s: %w", fk.Name, err)
		}
		r := ValidationRecord{Table: t.PGName, Check: "fk_orphans", Passed: orphans == 0}
		if r.Passed {
			r.Detail = fk.Name
		} else {
			r.Detail = fmt.Sprintf("%s: %d orphaned rows", fk.Name, orphans)
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// validateProcedures confirms every installed translation exists on the
// target with the expected argument count.
func validateProcedures(ctx context.Context, pool *pgxpool.Pool, cfg *MigrationConfig, catalog *Catalog, translations []ProcTranslation) ([]ValidationRecord, error) {
	byName := make(map[string]*Procedure, len(catalog.Procedures))
	for i := range catalog.Procedures {
		byName[catalog.Procedures[i].PGName] = &catalog.Procedures[i]
	}
	var recs []ValidationRecord
	for _, tr := range translations {
		if tr.NeedsReview {
			recs = append(recs, ValidationRecord{
				Table: tr.Name, Check: "procedure", Passed: false,
				Detail: "not installed: " + strings.Join(tr.Notes, "; "),
			})
			continue
		}
		p := byName[tr.Name]
		wantArgs := 0
		if p != nil {
			for _, param := range p.Params {
				if param.Mode == ParamIn || param.Mode == ParamInOut {
					wantArgs++
				}
			}
		}
		var gotArgs int
		err := pool.QueryRow(ctx,
			`SELECT p.pronargs FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname = $1 AND p.proname = $2`,
			cfg.Schema, tr.Name).Scan(&gotArgs)
		if err != nil {
			recs = append(recs, ValidationRecord{
				Table: tr.Name, Check: "procedure", Passed: false,
				Detail: fmt.Sprintf("not found in target schema: %v", err),
			})
			continue
		}
		r := ValidationRecord{Table: tr.Name, Check: "procedure", Passed: gotArgs == wantArgs}
		if r.Passed {
			r.Detail = fmt.Sprintf("%d args", gotArgs)
		} else {
			r.Detail = fmt.Sprintf("argument count mismatch: source=%d target=%d", wantArgs, gotArgs)
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func failedChecks(recs []ValidationRecord) []ValidationRecord {
	var failed []ValidationRecord
	for _, r := range recs {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func logValidationRecords(recs []ValidationRecord) {
	for _, r := range recs {
		status := "ok"
		if !r.Passed {
			status = "FAILED"
		}
		log.Printf("    %s %s: %s (%s)", r.Table, r.Check, status, r.Detail)
	}
}

const nullToken = "<null>"

var (
	numericTextRE  = regexp.MustCompile(`^-?\d+\.\d*0+$`)
	trailingZeroRE = regexp.MustCompile(`\.?0+$`)
)

// normalizeValue renders a source-side Go value in the same canonical text
// form PostgreSQL produces for the loaded column.
func normalizeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return nullToken
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []byte:
		return canonicalText(string(x))
	case string:
		return canonicalText(x)
	case time.Time:
		return canonicalText(x.UTC().Format("2006-01-02 15:04:05.999999"))
	case float32:
		return canonicalText(fmt.Sprintf("%g", x))
	case float64:
		return canonicalText(fmt.Sprintf("%g", x))
	default:
		return canonicalText(fmt.Sprintf("%v", x))
	}
}

// canonicalText folds representation differences that are not data
// differences: char(n) space padding, numeric trailing zeros, and
// PostgreSQL's t/f boolean text.
func canonicalText(s string) string {
	s = strings.TrimRight(s, " ")
	switch s {
	case "t":
		return "true"
	case "f":
		return "false"
	}
	if numericTextRE.MatchString(s) {
		return trailingZeroRE.ReplaceAllString(s, "")
	}
	return s
}
