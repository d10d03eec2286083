package main

import (
	"strings"
	"testing"
)

func TestCollectComputedColumnWarnings(t *testing.T) {
	catalog := &Catalog{
		Tables: []Table{
			{
				SourceName: "Orders",
				PGName:     "orders",
				Columns: []Column{
					{SourceName: "OrderID", Extra: "autoincrement"},
					{SourceName: "TotalWithTax", Extra: "computed"},
				},
			},
			{
				SourceName: "Customers",
				PGName:     "customers",
				Columns: []Column{
					{SourceName: "Name"},
				},
			},
		},
	}

	warnings := collectComputedColumnWarnings(catalog)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "Orders.TotalWithTax") {
		t.Errorf("warning should name the column: %s", warnings[0])
	}
	if !strings.Contains(warnings[0], "materialized") {
		t.Errorf("warning should state the materialization policy: %s", warnings[0])
	}

	if got := collectComputedColumnWarnings(nil); got != nil {
		t.Errorf("nil catalog: got %v, want nil", got)
	}
	if got := collectComputedColumnWarnings(&Catalog{}); got != nil {
		t.Errorf("empty catalog: got %v, want nil", got)
	}
}
