package main

// Column represents a single column from the source engine's catalog.
type Column struct {
	SourceName string
	PGName     string
	DataType   string // normalized base type, e.g. "varchar", "unsigned int"
	ColumnType string // full declared type, e.g. "varchar(128)", "numeric(10,2)"
	CharMaxLen int64
	Precision  int64
	Scale      int64
	Nullable   bool
	Default    *string
	Extra      string // e.g. "autoincrement", "computed"
	OrdinalPos int
}

// Index represents a source index (may span multiple columns).
type Index struct {
	Name          string
	SourceName    string
	Columns       []string // PG column names, in key order
	ColumnOrders  []string // ASC/DESC per column
	Unique        bool
	IsPrimary     bool
	Type          string // BTREE, HASH, ...
	HasExpression bool   // function/expression key-parts, not representable as a column list
}

// ForeignKey represents a source foreign key constraint. A deferred edge is
// part of a circular reference group: its constraint is attached only after
// every table in the group has loaded.
type ForeignKey struct {
	Name       string
	Columns    []string // local PG column names
	RefTable   string   // referenced source table name
	RefPGTable string   // referenced PG table name
	RefColumns []string // referenced PG column names
	UpdateRule string   // CASCADE, SET NULL, ...
	DeleteRule string
	Deferred   bool
}

// Table holds the full introspected definition of one source table.
// Immutable once discovery completes.
type Table struct {
	SourceName  string
	PGName      string
	Owner       string
	RowCount    int64
	Columns     []Column
	PrimaryKey  *Index
	Indexes     []Index // non-primary indexes
	ForeignKeys []ForeignKey
}

// ParamMode distinguishes procedure parameter directions.
type ParamMode string

const (
	ParamIn    ParamMode = "in"
	ParamOut   ParamMode = "out"
	ParamInOut ParamMode = "inout"
)

// ProcParam is one declared parameter of a stored procedure.
type ProcParam struct {
	Name       string
	SourceType string
	Mode       ParamMode
	Position   int
}

// ResultColumn is one column of a procedure's declared result shape.
type ResultColumn struct {
	Name       string
	SourceType string
}

// Procedure holds one stored procedure from the source catalog. NoResultSet
// marks procedures that mutate without returning rows on the source engine;
// the target contract is uniform tabular, so these are translated to return a
// single rows_affected row and the difference is reported, never hidden.
type Procedure struct {
	SourceName  string
	PGName      string
	Owner       string
	Params      []ProcParam
	Result      []ResultColumn
	Body        string // raw source definition text
	NoResultSet bool
}

// Catalog is the complete discovery output for one source database.
type Catalog struct {
	Tables     []Table
	Procedures []Procedure
}

// TableByPGName returns the table with the given PG name, or nil.
func (c *Catalog) TableByPGName(name string) *Table {
	for i := range c.Tables {
		if c.Tables[i].PGName == name {
			return &c.Tables[i]
		}
	}
	return nil
}

// Phase is an ordered group of tables with no unresolved dependency on a
// later phase. Deferred phases hold circular-reference groups whose internal
// foreign keys are attached only after every member table has loaded.
type Phase struct {
	Index    int
	Tables   []string // PG table names
	Deferred bool
}

// Plan is the ordered phase list produced by the dependency planner.
type Plan struct {
	Phases []Phase
}

// PhaseOf returns the phase index containing the given PG table name, or -1.
func (p *Plan) PhaseOf(table string) int {
	for _, ph := range p.Phases {
		for _, t := range ph.Tables {
			if t == table {
				return ph.Index
			}
		}
	}
	return -1
}

// ValidationRecord is the stored outcome of one post-phase check.
type ValidationRecord struct {
	Table  string // PG table or procedure name
	Check  string // "row_count", "sample", "fk_orphans", "procedure"
	Passed bool
	Detail string
}

// SourceObjects holds non-table source objects that are reported but not
// migrated automatically (views and triggers; procedures go through the
// translator).
type SourceObjects struct {
	Views    []string
	Triggers []string
}
