package main

import (
	"strings"
	"testing"
)

func TestIndexUnsupportedReason(t *testing.T) {
	tests := []struct {
		name string
		idx  Index
		want string // substring of the reason, empty = supported
	}{
		{"plain btree", Index{Columns: []string{"a"}, Type: "BTREE"}, ""},
		{"untyped", Index{Columns: []string{"a"}}, ""},
		{"expression", Index{Columns: []string{"a"}, HasExpression: true}, "expression"},
		{"hash", Index{Columns: []string{"a"}, Type: "HASH"}, "not supported"},
		{"no columns", Index{Type: "BTREE"}, "no plain column"},
	}
	for _, tt := range tests {
		got := indexUnsupportedReason(&tt.idx)
		if tt.want == "" {
			if got != "" {
				t.Errorf("%s: unexpected reason %q", tt.name, got)
			}
			continue
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("%s: reason %q does not contain %q", tt.name, got, tt.want)
		}
	}
}

func TestCollectIndexCompatibilityWarnings(t *testing.T) {
	catalog := &Catalog{
		Tables: []Table{
			{
				SourceName: "Orders",
				PGName:     "orders",
				Indexes: []Index{
					{Name: "idx_state", SourceName: "IdxState", Columns: []string{"state"}, Type: "BTREE"},
					{Name: "idx_expr", SourceName: "IdxExpr", HasExpression: true},
				},
			},
		},
	}
	warnings := collectIndexCompatibilityWarnings(catalog)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "Orders.IdxExpr") {
		t.Errorf("warning = %q", warnings[0])
	}
}
