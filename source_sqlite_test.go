package main

import (
	"strings"
	"testing"
)

func TestSQLiteMapType(t *testing.T) {
	typeMap := TypeMappingConfig{SetMode: "text"}
	tests := []struct {
		columnType string
		want       string
	}{
		{"INTEGER", "bigint"},
		{"integer", "bigint"},
		{"BIGINT", "bigint"},
		{"INT", "integer"},
		{"SMALLINT", "smallint"},
		{"TINYINT", "smallint"},
		{"REAL", "double precision"},
		{"DOUBLE", "double precision"},
		{"TEXT", "text"},
		{"VARCHAR(100)", "text"},
		{"CHAR(2)", "text"},
		{"CLOB", "text"},
		{"BLOB", "bytea"},
		{"", "bytea"}, // no declared type = BLOB affinity
		{"NUMERIC", "numeric"},
		{"NUMERIC(10)", "numeric(10)"},
		{"DECIMAL(10,2)", "numeric(10,2)"},
		{"BOOLEAN", "boolean"},
		{"DATETIME", "timestamp"},
		{"TIMESTAMP", "timestamp"},
		{"DATE", "date"},
		{"TIME", "time"},
		{"JSON", "json"},
	}
	for _, tt := range tests {
		col := Column{ColumnType: tt.columnType}
		parseSQLiteTypeParams(&col, tt.columnType)
		got, err := sqliteMapType(col, typeMap)
		if err != nil {
			t.Errorf("MapType(%q): %v", tt.columnType, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MapType(%q) = %q, want %q", tt.columnType, got, tt.want)
		}
	}
}

func TestSQLiteMapTypeUnknown(t *testing.T) {
	typeMap := TypeMappingConfig{SetMode: "text"}
	if _, err := sqliteMapType(Column{ColumnType: "GEOMETRY"}, typeMap); err == nil {
		t.Error("unknown declared type mapped without an override")
	}
	typeMap.Overrides = map[string]string{"GEOMETRY": "bytea"}
	got, err := sqliteMapType(Column{ColumnType: "GEOMETRY", DataType: "GEOMETRY"}, typeMap)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got != "bytea" {
		t.Errorf("override = %q, want bytea", got)
	}
}

func TestSQLiteMapDefault(t *testing.T) {
	str := func(s string) *string { return &s }
	s := &sqliteSourceDB{}
	typeMap := TypeMappingConfig{SetMode: "text"}
	tests := []struct {
		name   string
		col    Column
		pgType string
		want   string
		err    bool
	}{
		{"nil", Column{}, "bigint", "", false},
		{"null", Column{Default: str("NULL")}, "bigint", "", false},
		{"current_timestamp", Column{Default: str("CURRENT_TIMESTAMP")}, "timestamp", "CURRENT_TIMESTAMP", false},
		{"number", Column{Default: str("42")}, "bigint", "42", false},
		{"negative", Column{Default: str("-1.5")}, "double precision", "-1.5", false},
		{"bool literal", Column{Default: str("1")}, "boolean", "TRUE", false},
		{"string", Column{Default: str("'pending'")}, "text", "'pending'", false},
		{"escaped quote", Column{Default: str("'it''s'")}, "text", "'it''s'", false},
		{"expression", Column{Default: str("(hex(randomblob(16)))")}, "text", "", true},
	}
	for _, tt := range tests {
		got, err := s.MapDefault(tt.col, tt.pgType, typeMap)
		if tt.err {
			if err == nil {
				t.Errorf("%s: expected error, got %q", tt.name, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsNumericLiteral(t *testing.T) {
	valid := []string{"0", "42", "-1", "+7", "3.14", "-0.5"}
	for _, s := range valid {
		if !isNumericLiteral(s) {
			t.Errorf("isNumericLiteral(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "-", "1.2.3", "abc", "1e5", "0x10"}
	for _, s := range invalid {
		if isNumericLiteral(s) {
			t.Errorf("isNumericLiteral(%q) = true, want false", s)
		}
	}
}

func TestSQLiteTransformValue(t *testing.T) {
	s := &sqliteSourceDB{}
	typeMap := TypeMappingConfig{SetMode: "text"}

	v, err := s.TransformValue(int64(1), Column{ColumnType: "BOOLEAN"}, typeMap)
	if err != nil || v != true {
		t.Errorf("boolean 1 = %#v, %v", v, err)
	}
	v, err = s.TransformValue(int64(0), Column{ColumnType: "BOOLEAN"}, typeMap)
	if err != nil || v != false {
		t.Errorf("boolean 0 = %#v, %v", v, err)
	}
	v, err = s.TransformValue(nil, Column{ColumnType: "TEXT"}, typeMap)
	if err != nil || v != nil {
		t.Errorf("nil passthrough = %#v, %v", v, err)
	}
}

func TestSQLiteReadOnlyURI(t *testing.T) {
	got, err := sqliteReadOnlyURI("/data/app.db")
	if err != nil {
		t.Fatalf("plain path: %v", err)
	}
	if got != "file:/data/app.db?mode=ro" {
		t.Errorf("plain path = %q", got)
	}

	got, err = sqliteReadOnlyURI("file:/data/app.db?cache=shared")
	if err != nil {
		t.Fatalf("file URI: %v", err)
	}
	if !strings.Contains(got, "mode=ro") || !strings.Contains(got, "cache=shared") {
		t.Errorf("file URI = %q, want mode=ro and cache=shared preserved", got)
	}

	for _, dsn := range []string{":memory:", "file::memory:", "file:test.db?mode=memory"} {
		if _, err := sqliteReadOnlyURI(dsn); err == nil {
			t.Errorf("in-memory DSN %q accepted", dsn)
		}
	}
}

func TestSQLiteExtractDBName(t *testing.T) {
	s := &sqliteSourceDB{}
	tests := []struct {
		dsn, want string
	}{
		{"/data/app.db", "app"},
		{"app.sqlite3", "app"},
		{"file:/data/warehouse.db?mode=ro", "warehouse"},
	}
	for _, tt := range tests {
		got, err := s.ExtractDBName(tt.dsn)
		if err != nil {
			t.Errorf("ExtractDBName(%q): %v", tt.dsn, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractDBName(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
