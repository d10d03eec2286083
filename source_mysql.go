package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type mysqlSourceDB struct {
	snakeCase bool
}

func (m *mysqlSourceDB) Name() string { return "MySQL" }

func (m *mysqlSourceDB) SetSnakeCaseIdentifiers(enabled bool) { m.snakeCase = enabled }

func (m *mysqlSourceDB) ident(name string) string {
	if m.snakeCase {
		return toSnakeCase(name)
	}
	return strings.ToLower(name)
}

func (m *mysqlSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

func (m *mysqlSourceDB) ExtractDBName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("mysql dsn must name a database")
	}
	return cfg.DBName, nil
}

func (m *mysqlSourceDB) DiscoverCatalog(db *sql.DB, dbName string) (*Catalog, error) {
	tables, err := m.discoverTables(db, dbName)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	for i := range tables {
		t := &tables[i]

		cols, err := m.discoverColumns(db, dbName, t.SourceName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s: %w", t.SourceName, err)
		}
		t.Columns = cols

		indexes, err := m.discoverIndexes(db, dbName, t.SourceName)
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

		fks, err := m.discoverForeignKeys(db, dbName, t.SourceName)
		if err != nil {
			return nil, fmt.Errorf("discover foreign keys for %s: %w", t.SourceName, err)
		}
		t.ForeignKeys = fks

		// TABLE_ROWS is an estimate for InnoDB; exact counts come from the
		// validator's COUNT(*) pass.
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM " + m.QuoteIdentifier(dbName) + "." + m.QuoteIdentifier(t.SourceName),
		).Scan(&t.RowCount); err != nil {
			return nil, fmt.Errorf("count rows for %s: %w", t.SourceName, err)
		}
	}

	procs, err := m.discoverProcedures(db, dbName)
	if err != nil {
		return nil, fmt.Errorf("discover procedures: %w", err)
	}

	return &Catalog{Tables: tables, Procedures: procs}, nil
}

func (m *mysqlSourceDB) discoverTables(db *sql.DB, dbName string) ([]Table, error) {
	rows, err := db.Query(
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`,
		dbName,
	)
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
			PGName:     m.ident(name),
			Owner:      dbName,
		})
	}
	return tables, rows.Err()
}

func (m *mysqlSourceDB) discoverColumns(db *sql.DB, dbName, tableName string) ([]Column, error) {
	rows, err := db.Query(
		`SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		        COALESCE(CHARACTER_MAXIMUM_LENGTH, 0),
		        COALESCE(NUMERIC_PRECISION, 0),
		        COALESCE(NUMERIC_SCALE, 0),
		        IS_NULLABLE, COLUMN_DEFAULT, EXTRA, ORDINAL_POSITION
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable string
		var dflt sql.NullString
		if err := rows.Scan(
			&c.SourceName, &c.DataType, &c.ColumnType,
			&c.CharMaxLen, &c.Precision, &c.Scale,
			&nullable, &dflt, &c.Extra, &c.OrdinalPos,
		); err != nil {
			return nil, err
		}
		c.PGName = m.ident(c.SourceName)
		c.Nullable = nullable == "YES"
		if dflt.Valid {
			c.Default = &dflt.String
		}
		c.DataType = strings.ToLower(c.DataType)
		c.ColumnType = strings.ToLower(c.ColumnType)
		extra := strings.ToLower(c.Extra)
		switch {
		case strings.Contains(extra, "auto_increment"):
			c.Extra = "autoincrement"
		case strings.Contains(extra, "virtual generated"), strings.Contains(extra, "stored generated"):
			c.Extra = "computed"
			c.Default = nil
		default:
			c.Extra = ""
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (m *mysqlSourceDB) discoverIndexes(db *sql.DB, dbName, tableName string) ([]Index, error) {
	rows, err := db.Query(
		`SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE, SEQ_IN_INDEX, INDEX_TYPE, COLLATION, SUB_PART
		 FROM INFORMATION_SCHEMA.STATISTICS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY INDEX_NAME, SEQ_IN_INDEX`,
		dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexMap := make(map[string]*Index)
	var indexOrder []string

	for rows.Next() {
		var idxName, indexType string
		var colName, collation sql.NullString
		var subPart sql.NullInt64
		var nonUnique, seqInIndex int
		if err := rows.Scan(&idxName, &colName, &nonUnique, &seqInIndex, &indexType, &collation, &subPart); err != nil {
			return nil, err
		}

		idx, ok := indexMap[idxName]
		if !ok {
			idx = &Index{
				Name:       m.ident(idxName),
				SourceName: idxName,
				Unique:     nonUnique == 0,
				IsPrimary:  idxName == "PRIMARY",
				Type:       strings.ToUpper(indexType),
			}
			indexMap[idxName] = idx
			indexOrder = append(indexOrder, idxName)
		}

		// Prefix (SUB_PART) and expression key-parts have no direct PG
		// equivalent; flag the whole index for the compatibility report.
		if subPart.Valid || !colName.Valid {
			idx.HasExpression = true
			if !colName.Valid {
				continue
			}
		}

		idx.Columns = append(idx.Columns, m.ident(colName.String))
		if collation.Valid && strings.EqualFold(collation.String, "D") {
			idx.ColumnOrders = append(idx.ColumnOrders, "DESC")
		} else {
			idx.ColumnOrders = append(idx.ColumnOrders, "ASC")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var indexes []Index
	for _, name := range indexOrder {
		indexes = append(indexes, *indexMap[name])
	}
	return indexes, nil
}

func (m *mysqlSourceDB) discoverForeignKeys(db *sql.DB, dbName, tableName string) ([]ForeignKey, error) {
	rows, err := db.Query(
		`SELECT kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME,
		        kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME,
		        rc.UPDATE_RULE, rc.DELETE_RULE
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		 JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		   ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
		   AND kcu.TABLE_SCHEMA = rc.CONSTRAINT_SCHEMA
		 WHERE kcu.TABLE_SCHEMA = ? AND kcu.TABLE_NAME = ?
		   AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`,
		dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fkMap := make(map[string]*ForeignKey)
	var fkOrder []string

	for rows.Next() {
		var fkName, colName, refTable, refCol, updateRule, deleteRule string
		if err := rows.Scan(&fkName, &colName, &refTable, &refCol, &updateRule, &deleteRule); err != nil {
			return nil, err
		}

		fk, ok := fkMap[fkName]
		if !ok {
			fk = &ForeignKey{
				Name:       m.ident(fkName),
				RefTable:   refTable,
				RefPGTable: m.ident(refTable),
				UpdateRule: updateRule,
				DeleteRule: deleteRule,
			}
			fkMap[fkName] = fk
			fkOrder = append(fkOrder, fkName)
		}
		fk.Columns = append(fk.Columns, m.ident(colName))
		fk.RefColumns = append(fk.RefColumns, m.ident(refCol))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var fks []ForeignKey
	for _, name := range fkOrder {
		fks = append(fks, *fkMap[name])
	}
	return fks, nil
}

func (m *mysqlSourceDB) discoverProcedures(db *sql.DB, dbName string) ([]Procedure, error) {
	rows, err := db.Query(
		`SELECT ROUTINE_NAME, ROUTINE_DEFINITION
		 FROM INFORMATION_SCHEMA.ROUTINES
		 WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE'
		 ORDER BY ROUTINE_NAME`,
		dbName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procs []Procedure
	for rows.Next() {
		var p Procedure
		var body sql.NullString
		if err := rows.Scan(&p.SourceName, &body); err != nil {
			return nil, err
		}
		p.PGName = m.ident(p.SourceName)
		p.Owner = dbName
		p.Body = body.String
		procs = append(procs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range procs {
		p := &procs[i]
		params, err := m.procedureParams(db, dbName, p.SourceName)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: %w", p.SourceName, err)
		}
		p.Params = params
		// INFORMATION_SCHEMA carries no declared result shape for MySQL
		// procedures; whether one returns rows depends on the body.
		p.NoResultSet = !strings.Contains(strings.ToLower(p.Body), "select")
	}
	return procs, nil
}

func (m *mysqlSourceDB) procedureParams(db *sql.DB, dbName, procName string) ([]ProcParam, error) {
	rows, err := db.Query(
		`SELECT PARAMETER_NAME, DTD_IDENTIFIER, PARAMETER_MODE, ORDINAL_POSITION
		 FROM INFORMATION_SCHEMA.PARAMETERS
		 WHERE SPECIFIC_SCHEMA = ? AND SPECIFIC_NAME = ? AND PARAMETER_NAME IS NOT NULL
		 ORDER BY ORDINAL_POSITION`,
		dbName, procName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []ProcParam
	for rows.Next() {
		var name, srcType, modeStr string
		var pos int
		if err := rows.Scan(&name, &srcType, &modeStr, &pos); err != nil {
			return nil, err
		}
		mode := ParamIn
		switch strings.ToUpper(modeStr) {
		case "OUT":
			mode = ParamOut
		case "INOUT":
			mode = ParamInOut
		}
		params = append(params, ProcParam{
			Name:       m.ident(name),
			SourceType: strings.ToLower(srcType),
			Mode:       mode,
			Position:   pos,
		})
	}
	return params, rows.Err()
}

func (m *mysqlSourceDB) IntrospectSourceObjects(db *sql.DB, dbName string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(db, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME
	`, &objs.Views, dbName); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	if err := collectStringRows(db, `
		SELECT TRIGGER_NAME
		FROM INFORMATION_SCHEMA.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY TRIGGER_NAME
	`, &objs.Triggers, dbName); err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}

	return objs, nil
}

// --- Type mapping ---

func (m *mysqlSourceDB) MapType(col Column, typeMap TypeMappingConfig) (string, error) {
	return mysqlMapType(col, typeMap)
}

func mysqlMapType(col Column, typeMap TypeMappingConfig) (string, error) {
	if pgType, ok := typeOverride(col, typeMap); ok {
		return pgType, nil
	}

	isUnsigned := strings.Contains(col.ColumnType, "unsigned")
	if isUnsigned && !typeMap.WidenUnsignedIntegers {
		switch col.DataType {
		case "smallint", "mediumint", "int", "bigint":
			return "", fmt.Errorf("unsigned %s does not fit the same-width PG type; set widen_unsigned_integers or add a type_mapping.overrides entry", col.DataType)
		}
	}

	switch col.DataType {
	case "tinyint":
		return "smallint", nil
	case "smallint":
		if isUnsigned {
			return "integer", nil
		}
		return "smallint", nil
	case "mediumint":
		return "integer", nil
	case "int":
		if isUnsigned {
			return "bigint", nil
		}
		return "integer", nil
	case "bigint":
		if isUnsigned {
			return "numeric(20)", nil
		}
		return "bigint", nil
	case "float":
		return "real", nil
	case "double":
		return "double precision", nil
	case "decimal":
		return fmt.Sprintf("numeric(%d,%d)", col.Precision, col.Scale), nil
	case "char":
		if typeMap.CharAsVarchar {
			return fmt.Sprintf("varchar(%d)", col.CharMaxLen), nil
		}
		return fmt.Sprintf("char(%d)", col.CharMaxLen), nil
	case "varchar":
		return fmt.Sprintf("varchar(%d)", col.CharMaxLen), nil
	case "text", "mediumtext", "longtext", "tinytext":
		return "text", nil
	case "json":
		if typeMap.JSONAsJSONB {
			return "jsonb", nil
		}
		return "json", nil
	case "enum":
		return "text", nil
	case "set":
		if typeMap.SetMode == "text_array" {
			return "text[]", nil
		}
		return "text", nil
	case "timestamp":
		return "timestamptz", nil
	case "datetime":
		return "timestamp", nil
	case "year":
		return "integer", nil
	case "date":
		return "date", nil
	case "time":
		return "time", nil
	case "bit", "binary", "varbinary", "blob", "mediumblob", "longblob", "tinyblob":
		return "bytea", nil
	default:
		if typeMap.UnknownAsText {
			return "text", nil
		}
		return "", fmt.Errorf("unsupported MySQL type %q (column_type=%q)", col.DataType, col.ColumnType)
	}
}

func (m *mysqlSourceDB) MapDefault(col Column, pgType string, typeMap TypeMappingConfig) (string, error) {
	if col.Default == nil {
		return "", nil
	}

	raw := strings.TrimSpace(*col.Default)
	if strings.EqualFold(raw, "null") {
		return "", nil
	}

	lower := strings.ToLower(raw)
	switch lower {
	case "current_timestamp", "current_timestamp()", "now()", "localtimestamp", "localtimestamp()":
		return "CURRENT_TIMESTAMP", nil
	}

	unquoted := raw
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		unquoted = strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}

	switch {
	case isNumericType(pgType):
		if _, err := strconv.ParseFloat(unquoted, 64); err != nil {
			return "", fmt.Errorf("unsupported numeric default %q", raw)
		}
		return unquoted, nil
	case pgType == "json" || pgType == "jsonb":
		return fmt.Sprintf("%s::%s", pgLiteral(unquoted), pgType), nil
	case pgType == "bytea":
		return "", fmt.Errorf("bytea defaults are not supported (value %q)", raw)
	default:
		return pgLiteral(unquoted), nil
	}
}

func (m *mysqlSourceDB) TransformValue(val any, col Column, typeMap TypeMappingConfig) (any, error) {
	return mysqlTransformValue(val, col, typeMap)
}

func mysqlTransformValue(val any, col Column, typeMap TypeMappingConfig) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch {
	case col.DataType == "set" && typeMap.SetMode == "text_array":
		var raw string
		switch v := val.(type) {
		case []byte:
			raw = string(v)
		case string:
			raw = v
		default:
			return nil, fmt.Errorf("cannot coerce set value of type %T to text[]", val)
		}
		raw = strings.ReplaceAll(raw, "\x00", "")
		if raw == "" {
			return []string{}, nil
		}
		return strings.Split(raw, ","), nil

	case col.DataType == "year":
		switch v := val.(type) {
		case int64:
			return v, nil
		case []byte:
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse year value %q: %w", string(v), err)
			}
			return n, nil
		}
		return nil, fmt.Errorf("cannot coerce year value of type %T to integer", val)

	case col.DataType == "date" || col.DataType == "timestamp" || col.DataType == "datetime":
		// Zero dates have no PG representation.
		if t, ok := val.(time.Time); ok && t.IsZero() {
			return nil, nil
		}
		return val, nil

	case col.DataType == "varchar" || col.DataType == "char" ||
		col.DataType == "text" || col.DataType == "mediumtext" ||
		col.DataType == "longtext" || col.DataType == "tinytext" ||
		col.DataType == "json" ||
		col.DataType == "enum" || col.DataType == "set":
		if !typeMap.SanitizeNullBytes {
			return val, nil
		}
		switch v := val.(type) {
		case []byte:
			return strings.ReplaceAll(string(v), "\x00", ""), nil
		case string:
			return strings.ReplaceAll(v, "\x00", ""), nil
		}
		return val, nil

	default:
		return val, nil
	}
}

// --- Query building ---

func (m *mysqlSourceDB) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m *mysqlSourceDB) QualifiedTableName(t *Table) string {
	return m.QuoteIdentifier(t.Owner) + "." + m.QuoteIdentifier(t.SourceName)
}

func (m *mysqlSourceDB) selectColumns(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = m.QuoteIdentifier(t.Columns[i].SourceName)
	}
	return strings.Join(cols, ", ")
}

func (m *mysqlSourceDB) SelectRows(t *Table, limit, offset int64, desc bool) string {
	dir := ""
	if desc {
		dir = " DESC"
	}
	order := make([]string, 0, len(t.Columns))
	for _, c := range orderColumns(t) {
		order = append(order, m.QuoteIdentifier(c)+dir)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		m.selectColumns(t), m.QualifiedTableName(t), strings.Join(order, ", "), limit, offset)
}

func (m *mysqlSourceDB) KeysetSelect(t *Table, keyCol string, afterKey, limit int64) string {
	key := m.QuoteIdentifier(sourceColumnName(t, keyCol))
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s > %d ORDER BY %s LIMIT %d",
		m.selectColumns(t), m.QualifiedTableName(t), key, afterKey, key, limit)
}

func (m *mysqlSourceDB) MaxWorkers() int { return 0 }

func (m *mysqlSourceDB) ValidateTypeMapping(_ TypeMappingConfig) error { return nil }
