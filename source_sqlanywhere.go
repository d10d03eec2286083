package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // TDS driver; SQL Anywhere exposes a TDS listener
)

// sqlanywhereSourceDB reads a SAP SQL Anywhere database through its TDS
// network listener using the sqlserver driver. The catalog is read from the
// SYS system views (SYSTAB, SYSTABCOL, SYSIDX, SYSFKEY, SYSPROCEDURE).
type sqlanywhereSourceDB struct {
	snakeCase bool
}

// system owners whose tables and procedures are never migrated.
var saSystemOwners = []string{"SYS", "dbo", "rs_systabgroup", "SYS_SPATIAL_ADMIN_ROLE"}

func (s *sqlanywhereSourceDB) Name() string { return "SQL Anywhere" }

func (s *sqlanywhereSourceDB) SetSnakeCaseIdentifiers(enabled bool) { s.snakeCase = enabled }

func (s *sqlanywhereSourceDB) ident(name string) string {
	if s.snakeCase {
		return toSnakeCase(name)
	}
	return strings.ToLower(name)
}

func (s *sqlanywhereSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlanywhere: %w", err)
	}
	return db, nil
}

func (s *sqlanywhereSourceDB) ExtractDBName(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlanywhere dsn: %w", err)
	}
	if name := u.Query().Get("database"); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("sqlanywhere dsn must carry a database query parameter")
}

func (s *sqlanywhereSourceDB) DiscoverCatalog(db *sql.DB, dbName string) (*Catalog, error) {
	tables, tableIDs, err := s.discoverTables(db)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	for i := range tables {
		t := &tables[i]
		id := tableIDs[i]

		cols, err := s.discoverColumns(db, id)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s: %w", t.SourceName, err)
		}
		t.Columns = cols

		indexes, err := s.discoverIndexes(db, id)
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
	}

	// Foreign keys need every table's id → name mapping, so resolve them in a
	// second pass.
	idToTable := make(map[int64]*Table, len(tables))
	for i := range tables {
		idToTable[tableIDs[i]] = &tables[i]
	}
	if err := s.discoverForeignKeys(db, idToTable); err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}

	procs, err := s.discoverProcedures(db)
	if err != nil {
		return nil, fmt.Errorf("discover procedures: %w", err)
	}

	return &Catalog{Tables: tables, Procedures: procs}, nil
}

func saOwnerFilter(column string) string {
	quoted := make([]string, len(saSystemOwners))
	for i, o := range saSystemOwners {
		quoted[i] = "'" + o + "'"
	}
	return fmt.Sprintf("%s NOT IN (%s)", column, strings.Join(quoted, ", "))
}

func (s *sqlanywhereSourceDB) discoverTables(db *sql.DB) ([]Table, []int64, error) {
	rows, err := db.Query(
		`SELECT t.table_id, t.table_name, u.user_name, t."count"
		 FROM SYS.SYSTAB t JOIN SYS.SYSUSER u ON u.user_id = t.creator
		 WHERE t.table_type = 1 AND ` + saOwnerFilter("u.user_name") + `
		 ORDER BY t.table_name`,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var tables []Table
	var ids []int64
	for rows.Next() {
		var id, count int64
		var name, owner string
		if err := rows.Scan(&id, &name, &owner, &count); err != nil {
			return nil, nil, err
		}
		tables = append(tables, Table{
			SourceName: name,
			PGName:     s.ident(name),
			Owner:      owner,
			RowCount:   count,
		})
		ids = append(ids, id)
	}
	return tables, ids, rows.Err()
}

func (s *sqlanywhereSourceDB) discoverColumns(db *sql.DB, tableID int64) ([]Column, error) {
	rows, err := db.Query(
		`SELECT c.column_name, d.domain_name, c.width, c.scale, c.nulls, c."default", c.column_id, c.max_identity, c.column_type
		 FROM SYS.SYSTABCOL c JOIN SYS.SYSDOMAIN d ON d.domain_id = c.domain_id
		 WHERE c.table_id = @p1
		 ORDER BY c.column_id`,
		tableID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var width, scale, maxIdentity int64
		var nulls, colType string
		var dflt sql.NullString
		if err := rows.Scan(&c.SourceName, &c.DataType, &width, &scale, &nulls, &dflt, &c.OrdinalPos, &maxIdentity, &colType); err != nil {
			return nil, err
		}
		c.PGName = s.ident(c.SourceName)
		c.DataType = strings.ToLower(c.DataType)
		c.Nullable = nulls == "Y"
		c.Precision = width
		c.Scale = scale
		c.CharMaxLen = width
		c.ColumnType = saColumnType(c.DataType, width, scale)
		if colType == "C" {
			// Computed column: "default" holds the compute expression, which
			// must not become a PG DEFAULT. Values materialize as plain data.
			c.Extra = "computed"
		} else if dflt.Valid {
			v := dflt.String
			c.Default = &v
			if strings.EqualFold(strings.TrimSpace(v), "autoincrement") ||
				strings.EqualFold(strings.TrimSpace(v), "global autoincrement") {
				c.Extra = "autoincrement"
			}
		}
		if maxIdentity > 0 && c.Extra == "" {
			c.Extra = "autoincrement"
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// saColumnType reconstructs the declared type text from domain, width and scale.
func saColumnType(domain string, width, scale int64) string {
	switch domain {
	case "char", "nchar", "varchar", "nvarchar", "binary", "varbinary":
		if width > 0 {
			return fmt.Sprintf("%s(%d)", domain, width)
		}
		return domain
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", domain, width, scale)
	default:
		return domain
	}
}

func (s *sqlanywhereSourceDB) discoverIndexes(db *sql.DB, tableID int64) ([]Index, error) {
	rows, err := db.Query(
		`SELECT i.index_id, i.index_name, i.index_category, i."unique"
		 FROM SYS.SYSIDX i
		 WHERE i.table_id = @p1 AND i.index_category IN (1, 3)
		 ORDER BY i.index_id`,
		tableID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type idxHead struct {
		id       int64
		category int
	}
	var heads []idxHead
	var indexes []Index
	for rows.Next() {
		var id int64
		var category, unique int
		var name string
		if err := rows.Scan(&id, &name, &category, &unique); err != nil {
			return nil, err
		}
		heads = append(heads, idxHead{id: id, category: category})
		indexes = append(indexes, Index{
			Name:       s.ident(name),
			SourceName: name,
			Unique:     unique == 1 || unique == 2 || category == 1,
			IsPrimary:  category == 1,
			Type:       "BTREE",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range indexes {
		cols, orders, err := s.indexColumns(db, tableID, heads[i].id)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
		indexes[i].ColumnOrders = orders
		if len(cols) == 0 {
			indexes[i].HasExpression = true
		}
	}
	return indexes, nil
}

func (s *sqlanywhereSourceDB) indexColumns(db *sql.DB, tableID, indexID int64) ([]string, []string, error) {
	rows, err := db.Query(
		`SELECT c.column_name, ic."order"
		 FROM SYS.SYSIDXCOL ic
		 JOIN SYS.SYSTABCOL c ON c.table_id = ic.table_id AND c.column_id = ic.column_id
		 WHERE ic.table_id = @p1 AND ic.index_id = @p2
		 ORDER BY ic.sequence`,
		tableID, indexID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols, orders []string
	for rows.Next() {
		var name, order string
		if err := rows.Scan(&name, &order); err != nil {
			return nil, nil, err
		}
		cols = append(cols, s.ident(name))
		if strings.EqualFold(order, "D") {
			orders = append(orders, "DESC")
		} else {
			orders = append(orders, "ASC")
		}
	}
	return cols, orders, rows.Err()
}

func (s *sqlanywhereSourceDB) discoverForeignKeys(db *sql.DB, idToTable map[int64]*Table) error {
	rows, err := db.Query(
		`SELECT fk.foreign_table_id, fk.foreign_index_id, fk.primary_table_id, i.index_name
		 FROM SYS.SYSFKEY fk
		 JOIN SYS.SYSIDX i ON i.table_id = fk.foreign_table_id AND i.index_id = fk.foreign_index_id
		 ORDER BY fk.foreign_table_id, fk.foreign_index_id`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type fkHead struct {
		childID, indexID, parentID int64
		name                       string
	}
	var heads []fkHead
	for rows.Next() {
		var h fkHead
		if err := rows.Scan(&h.childID, &h.indexID, &h.parentID, &h.name); err != nil {
			return err
		}
		heads = append(heads, h)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, h := range heads {
		child, ok := idToTable[h.childID]
		if !ok {
			continue // FK on a system or temporary table
		}
		parent, ok := idToTable[h.parentID]
		if !ok {
			// Parent outside the migrated set; the planner reports this as a
			// malformed graph rather than skipping it silently.
			parent = &Table{SourceName: fmt.Sprintf("table_id %d", h.parentID), PGName: fmt.Sprintf("missing_%d", h.parentID)}
		}

		cols, refCols, err := s.foreignKeyColumns(db, h.childID, h.indexID)
		if err != nil {
			return err
		}
		child.ForeignKeys = append(child.ForeignKeys, ForeignKey{
			Name:       s.ident(h.name),
			Columns:    cols,
			RefTable:   parent.SourceName,
			RefPGTable: parent.PGName,
			RefColumns: refCols,
			// SQL Anywhere defaults to RESTRICT semantics; CASCADE variants
			// are implemented as system triggers and are not carried over.
			UpdateRule: "NO ACTION",
			DeleteRule: "NO ACTION",
		})
	}
	return nil
}

func (s *sqlanywhereSourceDB) foreignKeyColumns(db *sql.DB, tableID, indexID int64) (cols, refCols []string, err error) {
	rows, err := db.Query(
		`SELECT c.column_name, pc.column_name
		 FROM SYS.SYSIDXCOL ic
		 JOIN SYS.SYSTABCOL c ON c.table_id = ic.table_id AND c.column_id = ic.column_id
		 JOIN SYS.SYSIDX i ON i.table_id = ic.table_id AND i.index_id = ic.index_id
		 JOIN SYS.SYSFKEY fk ON fk.foreign_table_id = ic.table_id AND fk.foreign_index_id = ic.index_id
		 JOIN SYS.SYSTABCOL pc ON pc.table_id = fk.primary_table_id AND pc.column_id = ic.primary_column_id
		 WHERE ic.table_id = @p1 AND ic.index_id = @p2
		 ORDER BY ic.sequence`,
		tableID, indexID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var local, ref string
		if err := rows.Scan(&local, &ref); err != nil {
			return nil, nil, err
		}
		cols = append(cols, s.ident(local))
		refCols = append(refCols, s.ident(ref))
	}
	return cols, refCols, rows.Err()
}

func (s *sqlanywhereSourceDB) discoverProcedures(db *sql.DB) ([]Procedure, error) {
	rows, err := db.Query(
		`SELECT p.proc_id, p.proc_name, u.user_name, p.proc_defn
		 FROM SYS.SYSPROCEDURE p JOIN SYS.SYSUSER u ON u.user_id = p.creator
		 WHERE ` + saOwnerFilter("u.user_name") + `
		 ORDER BY p.proc_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type procHead struct {
		id   int64
		proc Procedure
	}
	var heads []procHead
	for rows.Next() {
		var id int64
		var p Procedure
		var body sql.NullString
		if err := rows.Scan(&id, &p.SourceName, &p.Owner, &body); err != nil {
			return nil, err
		}
		p.PGName = s.ident(p.SourceName)
		p.Body = body.String
		heads = append(heads, procHead{id: id, proc: p})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var procs []Procedure
	for _, h := range heads {
		p := h.proc
		params, result, err := s.procedureParams(db, h.id)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: %w", p.SourceName, err)
		}
		p.Params = params
		p.Result = result
		// A procedure with no declared result columns returns nothing on the
		// source engine; the uniform target contract makes it return a
		// rows_affected row instead. That difference is flagged, not hidden.
		p.NoResultSet = len(result) == 0
		procs = append(procs, p)
	}
	return procs, nil
}

func (s *sqlanywhereSourceDB) procedureParams(db *sql.DB, procID int64) ([]ProcParam, []ResultColumn, error) {
	rows, err := db.Query(
		`SELECT pp.parm_name, d.domain_name, pp.width, pp.scale, pp.parm_type, pp.parm_mode_in, pp.parm_mode_out, pp.parm_id
		 FROM SYS.SYSPROCPARM pp JOIN SYS.SYSDOMAIN d ON d.domain_id = pp.domain_id
		 WHERE pp.proc_id = @p1
		 ORDER BY pp.parm_id`,
		procID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var params []ProcParam
	var result []ResultColumn
	for rows.Next() {
		var name, domain, modeIn, modeOut string
		var width, scale int64
		var parmType, parmID int
		if err := rows.Scan(&name, &domain, &width, &scale, &parmType, &modeIn, &modeOut, &parmID); err != nil {
			return nil, nil, err
		}
		srcType := saColumnType(strings.ToLower(domain), width, scale)

		// parm_type 4 rows describe the declared result set shape.
		if parmType == 4 {
			result = append(result, ResultColumn{Name: s.ident(name), SourceType: srcType})
			continue
		}
		if parmType != 0 {
			continue // internal parameter kinds (SQLSTATE, etc.)
		}
		mode := ParamIn
		switch {
		case modeIn == "Y" && modeOut == "Y":
			mode = ParamInOut
		case modeOut == "Y":
			mode = ParamOut
		}
		params = append(params, ProcParam{
			Name:       s.ident(name),
			SourceType: srcType,
			Mode:       mode,
			Position:   parmID,
		})
	}
	return params, result, rows.Err()
}

func (s *sqlanywhereSourceDB) IntrospectSourceObjects(db *sql.DB, _ string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(db, `
		SELECT t.table_name
		FROM SYS.SYSTAB t JOIN SYS.SYSUSER u ON u.user_id = t.creator
		WHERE t.table_type = 21 AND `+saOwnerFilter("u.user_name")+`
		ORDER BY t.table_name
	`, &objs.Views); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	if err := collectStringRows(db, `
		SELECT tr.trigger_name
		FROM SYS.SYSTRIGGER tr
		JOIN SYS.SYSTAB t ON t.table_id = tr.table_id
		JOIN SYS.SYSUSER u ON u.user_id = t.creator
		WHERE tr.trigger_name IS NOT NULL AND `+saOwnerFilter("u.user_name")+`
		ORDER BY tr.trigger_name
	`, &objs.Triggers); err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}

	return objs, nil
}

// --- Type mapping ---

func (s *sqlanywhereSourceDB) MapType(col Column, typeMap TypeMappingConfig) (string, error) {
	return sqlanywhereMapType(col, typeMap)
}

func sqlanywhereMapType(col Column, typeMap TypeMappingConfig) (string, error) {
	if pgType, ok := typeOverride(col, typeMap); ok {
		return pgType, nil
	}

	switch col.DataType {
	case "bit":
		return "boolean", nil
	case "tinyint":
		// 1-byte unsigned; smallint is the narrowest PostgreSQL container.
		return "smallint", nil
	case "smallint":
		return "smallint", nil
	case "int", "integer":
		return "integer", nil
	case "bigint":
		return "bigint", nil
	case "unsigned smallint":
		if typeMap.WidenUnsignedIntegers {
			return "integer", nil
		}
		return "", fmt.Errorf("unsigned smallint does not fit smallint; set widen_unsigned_integers or add a type_mapping.overrides entry")
	case "unsigned int":
		if typeMap.WidenUnsignedIntegers {
			return "bigint", nil
		}
		return "", fmt.Errorf("unsigned int does not fit integer; set widen_unsigned_integers or add a type_mapping.overrides entry")
	case "unsigned bigint":
		if typeMap.WidenUnsignedIntegers {
			return "numeric(20)", nil
		}
		return "", fmt.Errorf("unsigned bigint does not fit bigint; set widen_unsigned_integers or add a type_mapping.overrides entry")
	case "decimal", "numeric":
		return fmt.Sprintf("numeric(%d,%d)", col.Precision, col.Scale), nil
	case "float":
		// SQL Anywhere FLOAT without precision is single precision.
		return "real", nil
	case "real":
		return "real", nil
	case "double":
		return "double precision", nil
	case "money":
		return "numeric(19,4)", nil
	case "smallmoney":
		return "numeric(10,4)", nil
	case "char", "nchar":
		if typeMap.CharAsVarchar {
			return fmt.Sprintf("varchar(%d)", col.CharMaxLen), nil
		}
		return fmt.Sprintf("char(%d)", col.CharMaxLen), nil
	case "varchar", "nvarchar":
		return fmt.Sprintf("varchar(%d)", col.CharMaxLen), nil
	case "long varchar", "long nvarchar", "text", "ntext":
		return "text", nil
	case "xml":
		return "xml", nil
	case "uniqueidentifier":
		if typeMap.UUIDColumns {
			return "uuid", nil
		}
		return "varchar(36)", nil
	case "binary", "varbinary", "long binary", "image":
		return "bytea", nil
	case "date":
		return "date", nil
	case "time":
		return "time", nil
	case "datetime", "smalldatetime", "timestamp":
		return "timestamp", nil
	case "timestamp with time zone":
		return "timestamptz", nil
	default:
		if typeMap.UnknownAsText {
			return "text", nil
		}
		return "", fmt.Errorf("unsupported SQL Anywhere type %q (column_type=%q)", col.DataType, col.ColumnType)
	}
}

// typeOverride applies an operator-supplied mapping, matching the full
// declared type first and the base type second.
func typeOverride(col Column, typeMap TypeMappingConfig) (string, bool) {
	if typeMap.Overrides == nil {
		return "", false
	}
	if pgType, ok := typeMap.Overrides[col.ColumnType]; ok {
		return pgType, true
	}
	if pgType, ok := typeMap.Overrides[col.DataType]; ok {
		return pgType, true
	}
	return "", false
}

func (s *sqlanywhereSourceDB) MapDefault(col Column, pgType string, typeMap TypeMappingConfig) (string, error) {
	return sqlanywhereMapDefault(col, pgType)
}

func sqlanywhereMapDefault(col Column, pgType string) (string, error) {
	if col.Default == nil {
		return "", nil
	}

	raw := strings.TrimSpace(*col.Default)
	lower := strings.ToLower(raw)
	switch lower {
	case "", "null":
		return "", nil
	case "autoincrement", "global autoincrement":
		return "", nil // sequence attached after data load
	case "current timestamp", "current_timestamp", "now()", "getdate()", "timestamp":
		return "CURRENT_TIMESTAMP", nil
	case "current date", "current_date", "today()":
		return "CURRENT_DATE", nil
	case "current time", "current_time":
		return "CURRENT_TIME", nil
	case "current user", "current_user", "user":
		return "CURRENT_USER", nil
	case "newid()":
		if pgType == "uuid" {
			return "gen_random_uuid()", nil
		}
		return "", fmt.Errorf("newid() default requires a uuid column (got %s)", pgType)
	}

	unquoted := raw
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		unquoted = strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}

	switch {
	case pgType == "boolean":
		switch unquoted {
		case "0":
			return "FALSE", nil
		case "1":
			return "TRUE", nil
		default:
			return "", fmt.Errorf("unsupported boolean default %q", raw)
		}
	case isNumericType(pgType):
		if _, err := strconv.ParseFloat(unquoted, 64); err != nil {
			return "", fmt.Errorf("unsupported numeric default %q", raw)
		}
		return unquoted, nil
	case pgType == "bytea":
		return "", fmt.Errorf("bytea defaults are not supported (value %q)", raw)
	default:
		return pgLiteral(unquoted), nil
	}
}

func (s *sqlanywhereSourceDB) TransformValue(val any, col Column, typeMap TypeMappingConfig) (any, error) {
	return sqlanywhereTransformValue(val, col, typeMap)
}

func sqlanywhereTransformValue(val any, col Column, typeMap TypeMappingConfig) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch col.DataType {
	case "uniqueidentifier":
		if !typeMap.UUIDColumns {
			return val, nil
		}
		b, ok := val.([]byte)
		if !ok {
			if s, ok := val.(string); ok {
				return strings.ToLower(s), nil
			}
			return nil, fmt.Errorf("expected GUID payload, got %T", val)
		}
		if len(b) != 16 {
			return nil, fmt.Errorf("expected 16-byte GUID payload, got %d bytes", len(b))
		}
		return guidToString(b), nil

	case "char", "nchar", "varchar", "nvarchar", "long varchar", "long nvarchar", "text", "ntext", "xml":
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

	case "money", "smallmoney", "decimal", "numeric":
		// The TDS driver surfaces exact numerics as byte strings; pgx accepts
		// the textual form for numeric columns.
		if b, ok := val.([]byte); ok {
			return string(b), nil
		}
		return val, nil

	default:
		return val, nil
	}
}

// guidToString formats a TDS GUID payload, whose first three fields arrive in
// little-endian byte order.
func guidToString(b []byte) string {
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%x-%x",
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8:10], b[10:16])
}

// --- Query building ---

func (s *sqlanywhereSourceDB) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *sqlanywhereSourceDB) QualifiedTableName(t *Table) string {
	return s.QuoteIdentifier(t.Owner) + "." + s.QuoteIdentifier(t.SourceName)
}

func (s *sqlanywhereSourceDB) selectColumns(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i := range t.Columns {
		cols[i] = s.QuoteIdentifier(t.Columns[i].SourceName)
	}
	return strings.Join(cols, ", ")
}

func (s *sqlanywhereSourceDB) SelectRows(t *Table, limit, offset int64, desc bool) string {
	dir := ""
	if desc {
		dir = " DESC"
	}
	order := make([]string, 0, len(t.Columns))
	for _, c := range orderColumns(t) {
		order = append(order, s.QuoteIdentifier(c)+dir)
	}
	return fmt.Sprintf("SELECT TOP %d START AT %d %s FROM %s ORDER BY %s",
		limit, offset+1, s.selectColumns(t), s.QualifiedTableName(t), strings.Join(order, ", "))
}

func (s *sqlanywhereSourceDB) KeysetSelect(t *Table, keyCol string, afterKey, limit int64) string {
	key := s.QuoteIdentifier(sourceColumnName(t, keyCol))
	return fmt.Sprintf("SELECT TOP %d %s FROM %s WHERE %s > %d ORDER BY %s",
		limit, s.selectColumns(t), s.QualifiedTableName(t), key, afterKey, key)
}

func (s *sqlanywhereSourceDB) MaxWorkers() int { return 0 }

func (s *sqlanywhereSourceDB) ValidateTypeMapping(typeMap TypeMappingConfig) error {
	if typeMap.SetMode != "text" {
		return fmt.Errorf("set_mode=%q is a MySQL-only option", typeMap.SetMode)
	}
	if typeMap.JSONAsJSONB {
		return fmt.Errorf("json_as_jsonb is a MySQL/SQLite-only option")
	}
	return nil
}
