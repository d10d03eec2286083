package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type sqliteSourceDB struct {
	snakeCase bool
}

func (s *sqliteSourceDB) Name() string { return "SQLite" }

func (s *sqliteSourceDB) SetSnakeCaseIdentifiers(enabled bool) { s.snakeCase = enabled }

func (s *sqliteSourceDB) ident(name string) string {
	if s.snakeCase {
		return toSnakeCase(name)
	}
	return strings.ToLower(name)
}

func (s *sqliteSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	uri, err := sqliteReadOnlyURI(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *sqliteSourceDB) ExtractDBName(dsn string) (string, error) {
	path := dsn
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err == nil {
			path = u.Path
			if path == "" {
				path = u.Opaque
			}
		} else {
			path = strings.TrimPrefix(dsn, "file:")
			if idx := strings.IndexByte(path, '?'); idx >= 0 {
				path = path[:idx]
			}
		}
	}
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" {
		return "sqlite", nil
	}
	return base, nil
}

// sqliteReadOnlyURI normalizes a DSN to a read-only file URI. The source is
// never written.
func sqliteReadOnlyURI(dsn string) (string, error) {
	if dsn == ":memory:" || dsn == "file::memory:" || strings.Contains(dsn, "mode=memory") {
		return "", fmt.Errorf("in-memory SQLite databases are not supported (each sql.Open gets a separate DB)")
	}
	if !strings.HasPrefix(dsn, "file:") {
		return "file:" + dsn + "?mode=ro", nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URI: %w", err)
	}
	q := u.Query()
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *sqliteSourceDB) DiscoverCatalog(db *sql.DB, _ string) (*Catalog, error) {
	tables, err := s.discoverTables(db)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	for i := range tables {
		t := &tables[i]

		cols, err := s.discoverColumns(db, t.SourceName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s: %w", t.SourceName, err)
		}
		t.Columns = cols

		indexes, err := s.discoverIndexes(db, t.SourceName)
		if err != nil {
			return nil, fmt.Errorf("discover indexes for %s: %w", t.SourceName, err)
		}
		for _, idx := range indexes {
			if idx.IsPrimary {
				pk := idx
				t.PrimaryKey = &pk
			} else {
				t.Indexes = append(t.Indexes, idx)
			}
		}

		fks, err := s.discoverForeignKeys(db, t.SourceName)
		if err != nil {
			return nil, fmt.Errorf("discover foreign keys for %s: %w", t.SourceName, err)
		}
		t.ForeignKeys = fks

		if err := db.QueryRow(
			fmt.Sprintf("SELECT COUNT(*) FROM %s", s.QuoteIdentifier(t.SourceName)),
		).Scan(&t.RowCount); err != nil {
			return nil, fmt.Errorf("count rows for %s: %w", t.SourceName, err)
		}
	}

	// SQLite has no stored procedures.
	return &Catalog{Tables: tables}, nil
}

func (s *sqliteSourceDB) discoverTables(db *sql.DB) ([]Table, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, Table{
			SourceName: name,
			PGName:     s.ident(name),
			Owner:      "main",
		})
	}
	return tables, rows.Err()
}

func (s *sqliteSourceDB) discoverColumns(db *sql.DB, tableName string) ([]Column, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_xinfo(%s)", s.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var cid, pk, notnull, hidden int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk, &hidden); err != nil {
			return nil, err
		}

		col := Column{
			SourceName: name,
			PGName:     s.ident(name),
			DataType:   strings.ToLower(sqliteBaseType(colType)),
			ColumnType: strings.ToLower(colType),
			Nullable:   notnull == 0,
			OrdinalPos: cid + 1,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		switch hidden {
		case 2, 3:
			col.Extra = "computed"
		}
		parseSQLiteTypeParams(&col, colType)

		// INTEGER PRIMARY KEY is a rowid alias and behaves as autoincrement.
		if pk > 0 && strings.EqualFold(colType, "integer") {
			col.Extra = "autoincrement"
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// sqliteBaseType extracts the base type name for SQLite's flexible type system.
func sqliteBaseType(declaredType string) string {
	dt := strings.TrimSpace(declaredType)
	if dt == "" {
		return "blob" // no declared type = BLOB affinity
	}
	if idx := strings.IndexByte(dt, '('); idx >= 0 {
		dt = dt[:idx]
	}
	return strings.TrimSpace(dt)
}

func parseSQLiteTypeParams(col *Column, declaredType string) {
	open := strings.IndexByte(declaredType, '(')
	close := strings.LastIndexByte(declaredType, ')')
	if open < 0 || close <= open {
		return
	}
	parts := strings.Split(declaredType[open+1:close], ",")
	if len(parts) >= 1 {
		if n, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &col.Precision); n == 1 && err == nil {
			col.CharMaxLen = col.Precision
		}
	}
	if len(parts) >= 2 {
		fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &col.Scale)
	}
}

func (s *sqliteSourceDB) discoverIndexes(db *sql.DB, tableName string) ([]Index, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA index_list(%s)", s.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}

		// PKs are built from table_info below.
		if origin == "pk" {
			continue
		}

		idx := Index{
			Name:       s.ident(name),
			SourceName: name,
			Unique:     unique == 1,
			Type:       "BTREE",
		}
		if partial == 1 {
			idx.HasExpression = true
		}

		colRows, err := db.Query(fmt.Sprintf("PRAGMA index_info(%s)", s.QuoteIdentifier(name)))
		if err != nil {
			return nil, err
		}
		for colRows.Next() {
			var seqno, cid int
			var colName sql.NullString
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return nil, err
			}
			if !colName.Valid {
				idx.HasExpression = true
				continue
			}
			idx.Columns = append(idx.Columns, s.ident(colName.String))
			idx.ColumnOrders = append(idx.ColumnOrders, "ASC")
		}
		colRows.Close()

		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := s.buildPKFromTableInfo(db, tableName)
	if err != nil {
		return nil, err
	}
	if pk != nil {
		indexes = append(indexes, *pk)
	}
	return indexes, nil
}

func (s *sqliteSourceDB) buildPKFromTableInfo(db *sql.DB, tableName string) (*Index, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", s.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkCol struct {
		name  string
		pkPos int
	}
	var pkCols []pkCol

	for rows.Next() {
		var cid, notnull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pkCols = append(pkCols, pkCol{name: name, pkPos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(pkCols) == 0 {
		return nil, nil
	}

	slices.SortFunc(pkCols, func(a, b pkCol) int { return a.pkPos - b.pkPos })

	idx := &Index{
		Name:       "primary",
		SourceName: "PRIMARY",
		Unique:     true,
		IsPrimary:  true,
		Type:       "BTREE",
	}
	for _, pc := range pkCols {
		idx.Columns = append(idx.Columns, s.ident(pc.name))
		idx.ColumnOrders = append(idx.ColumnOrders, "ASC")
	}
	return idx, nil
}

func (s *sqliteSourceDB) discoverForeignKeys(db *sql.DB, tableName string) ([]ForeignKey, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA foreign_key_list(%s)", s.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fkMap := make(map[int]*ForeignKey)
	var fkOrder []int

	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		fk, ok := fkMap[id]
		if !ok {
			fk = &ForeignKey{
				Name:       fmt.Sprintf("fk_%s_%d", s.ident(tableName), id),
				RefTable:   refTable,
				RefPGTable: s.ident(refTable),
				UpdateRule: strings.ToUpper(onUpdate),
				DeleteRule: strings.ToUpper(onDelete),
			}
			if fk.UpdateRule == "" {
				fk.UpdateRule = "NO ACTION"
			}
			if fk.DeleteRule == "" {
				fk.DeleteRule = "NO ACTION"
			}
			fkMap[id] = fk
			fkOrder = append(fkOrder, id)
		}
		fk.Columns = append(fk.Columns, s.ident(from))
		// A NULL "to" column means the FK references the parent's PK.
		if to.Valid {
			fk.RefColumns = append(fk.RefColumns, s.ident(to.String))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var fks []ForeignKey
	for _, id := range fkOrder {
		fks = append(fks, *fkMap[id])
	}
	return fks, nil
}

func (s *sqliteSourceDB) IntrospectSourceObjects(db *sql.DB, _ string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(db,
		"SELECT name FROM sqlite_master WHERE type='view' ORDER BY name",
		&objs.Views); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}
	if err := collectStringRows(db,
		"SELECT name FROM sqlite_master WHERE type='trigger' ORDER BY name",
		&objs.Triggers); err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}
	return objs, nil
}

// --- Type mapping ---

func (s *sqliteSourceDB) MapType(col Column, typeMap TypeMappingConfig) (string, error) {
	return sqliteMapType(col, typeMap)
}

func sqliteMapType(col Column, typeMap TypeMappingConfig) (string, error) {
	if pgType, ok := typeOverride(col, typeMap); ok {
		return pgType, nil
	}

	switch strings.ToUpper(sqliteBaseType(col.ColumnType)) {
	case "TINYINT", "SMALLINT":
		return "smallint", nil
	case "INT", "MEDIUMINT":
		return "integer", nil
	case "INTEGER", "BIGINT":
		// INTEGER columns hold 64-bit values in SQLite regardless of the
		// declared name, so bigint is the same-width target, not a widening.
		return "bigint", nil
	case "REAL", "DOUBLE", "FLOAT":
		return "double precision", nil
	case "VARCHAR", "CHAR", "TEXT", "CLOB":
		return "text", nil
	case "BLOB":
		return "bytea", nil
	case "NUMERIC", "DECIMAL":
		if col.Precision > 0 {
			if col.Scale > 0 {
				return fmt.Sprintf("numeric(%d,%d)", col.Precision, col.Scale), nil
			}
			return fmt.Sprintf("numeric(%d)", col.Precision), nil
		}
		return "numeric", nil
	case "BOOLEAN", "BOOL":
		return "boolean", nil
	case "DATETIME", "TIMESTAMP":
		return "timestamp", nil
	case "DATE":
		return "date", nil
	case "TIME":
		return "time", nil
	case "JSON":
		if typeMap.JSONAsJSONB {
			return "jsonb", nil
		}
		return "json", nil
	default:
		if typeMap.UnknownAsText {
			return "text", nil
		}
		return "", fmt.Errorf("unsupported SQLite type %q", col.ColumnType)
	}
}

func (s *sqliteSourceDB) MapDefault(col Column, pgType string, _ TypeMappingConfig) (string, error) {
	if col.Default == nil {
		return "", nil
	}

	raw := strings.TrimSpace(*col.Default)
	upper := strings.ToUpper(raw)

	if upper == "NULL" {
		return "", nil
	}
	switch upper {
	case "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "TRUE", "FALSE":
		return upper, nil
	}

	if isNumericLiteral(raw) {
		if pgType == "boolean" {
			switch raw {
			case "0":
				return "FALSE", nil
			case "1":
				return "TRUE", nil
			}
		}
		return raw, nil
	}

	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		inner := strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
		return pgLiteral(inner), nil
	}

	return "", fmt.Errorf("unsupported expression default %q for column %s", raw, col.SourceName)
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	hasDot := false
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	if start >= len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] == '.' {
			if hasDot {
				return false
			}
			hasDot = true
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (s *sqliteSourceDB) TransformValue(val any, col Column, typeMap TypeMappingConfig) (any, error) {
	if val == nil {
		return nil, nil
	}
	switch strings.ToUpper(sqliteBaseType(col.ColumnType)) {
	case "BOOLEAN", "BOOL":
		switch v := val.(type) {
		case int64:
			return v != 0, nil
		case bool:
			return v, nil
		}
		return val, nil
	default:
		return val, nil
	}
}

// --- Query building ---

func (s *sqliteSourceDB) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *sqliteSourceDB) QualifiedTableName(t *Table) string {
	return s.QuoteIdentifier(t.SourceName)
}

func (s *sqliteSourceDB) selectColumns(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = s.QuoteIdentifier(t.Columns[i].SourceName)
	}
	return strings.Join(cols, ", ")
}

func (s *sqliteSourceDB) SelectRows(t *Table, limit, offset int64, desc bool) string {
	dir := ""
	if desc {
		dir = " DESC"
	}
	order := make([]string, 0, len(t.Columns))
	for _, c := range orderColumns(t) {
		order = append(order, s.QuoteIdentifier(c)+dir)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		s.selectColumns(t), s.QualifiedTableName(t), strings.Join(order, ", "), limit, offset)
}

func (s *sqliteSourceDB) KeysetSelect(t *Table, keyCol string, afterKey, limit int64) string {
	key := s.QuoteIdentifier(sourceColumnName(t, keyCol))
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s > %d ORDER BY %s LIMIT %d",
		s.selectColumns(t), s.QualifiedTableName(t), key, afterKey, key, limit)
}

func (s *sqliteSourceDB) MaxWorkers() int { return 1 }

func (s *sqliteSourceDB) ValidateTypeMapping(typeMap TypeMappingConfig) error {
	var errs []string
	if typeMap.SetMode != "text" {
		errs = append(errs, fmt.Sprintf("set_mode=%q is a MySQL-only option", typeMap.SetMode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid type_mapping for SQLite source: %s", strings.Join(errs, "; "))
	}
	return nil
}
