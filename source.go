package main

import (
	"database/sql"
	"fmt"
)

// SourceDB abstracts source database operations so anyferry can support
// multiple source engines (SQL Anywhere, MySQL, SQLite). It is a sealed
// contract: one concrete variant per engine, selected at configuration time.
type SourceDB interface {
	// Name returns a human-readable name for the source ("SQL Anywhere", "MySQL", "SQLite").
	Name() string

	// OpenDB opens a database connection with driver-specific options.
	OpenDB(dsn string) (*sql.DB, error)

	// ExtractDBName extracts a logical database name from the DSN (for logging
	// and catalog queries).
	ExtractDBName(dsn string) (string, error)

	// DiscoverCatalog reads all tables (columns, indexes, foreign keys, row
	// counts, owners) and stored procedures.
	DiscoverCatalog(db *sql.DB, dbName string) (*Catalog, error)

	// IntrospectSourceObjects discovers views and triggers that need manual migration.
	IntrospectSourceObjects(db *sql.DB, dbName string) (*SourceObjects, error)

	// MapType returns the PostgreSQL type for a source column. Unmapped types
	// are errors; the mapper never guesses a lossy conversion.
	MapType(col Column, typeMap TypeMappingConfig) (string, error)

	// MapDefault returns the PostgreSQL DEFAULT expression for a source column.
	MapDefault(col Column, pgType string, typeMap TypeMappingConfig) (string, error)

	// TransformValue converts a source row value to its PostgreSQL equivalent.
	TransformValue(val any, col Column, typeMap TypeMappingConfig) (any, error)

	// QuoteIdentifier quotes a source identifier for use in queries.
	QuoteIdentifier(name string) string

	// QualifiedTableName returns the table reference used in source-side queries.
	QualifiedTableName(t *Table) string

	// SelectRows builds a deterministic paged SELECT over all columns, ordered
	// by the table's primary key (or all columns when no PK exists). desc
	// reverses the order for tail sampling.
	SelectRows(t *Table, limit, offset int64, desc bool) string

	// KeysetSelect builds a SELECT for the next batch after a committed
	// integer key value. Only valid for tables with a single integer PK column.
	KeysetSelect(t *Table, keyCol string, afterKey, limit int64) string

	// MaxWorkers returns the maximum number of parallel workers.
	// 0 means use the config value; >0 caps workers to this value.
	MaxWorkers() int

	// ValidateTypeMapping checks for source-specific type mapping options that are invalid.
	ValidateTypeMapping(typeMap TypeMappingConfig) error

	// SetSnakeCaseIdentifiers enables or disables snake_case conversion for
	// source identifiers. When false, identifiers are lowercased to match
	// PostgreSQL's default case folding.
	SetSnakeCaseIdentifiers(enabled bool)
}

// newSourceDB returns a SourceDB implementation for the given source type.
func newSourceDB(sourceType string) (SourceDB, error) {
	switch sourceType {
	case "sqlanywhere":
		return &sqlanywhereSourceDB{}, nil
	case "mysql":
		return &mysqlSourceDB{}, nil
	case "sqlite":
		return &sqliteSourceDB{}, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q (must be sqlanywhere, mysql or sqlite)", sourceType)
	}
}

// sourceColumnName maps a PG column name back to its source spelling.
func sourceColumnName(t *Table, pgName string) string {
	for i := range t.Columns {
		if t.Columns[i].PGName == pgName {
			return t.Columns[i].SourceName
		}
	}
	return pgName
}

// singleIntPKColumn returns the PG name of the table's primary key column when
// the PK is a single integer-typed column, enabling keyset pagination.
func singleIntPKColumn(t *Table) (string, bool) {
	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) != 1 {
		return "", false
	}
	pgName := t.PrimaryKey.Columns[0]
	for i := range t.Columns {
		if t.Columns[i].PGName != pgName {
			continue
		}
		switch t.Columns[i].DataType {
		case "tinyint", "smallint", "int", "integer", "bigint",
			"unsigned smallint", "unsigned int", "unsigned bigint":
			return pgName, true
		}
		return "", false
	}
	return "", false
}

// orderColumns returns the source-side ORDER BY column list for deterministic
// row order: PK columns when present, otherwise every column in ordinal order.
func orderColumns(t *Table) []string {
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) > 0 {
		cols := make([]string, len(t.PrimaryKey.Columns))
		for i, c := range t.PrimaryKey.Columns {
			cols[i] = sourceColumnName(t, c)
		}
		return cols
	}
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = t.Columns[i].SourceName
	}
	return cols
}
