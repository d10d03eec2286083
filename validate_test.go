package main

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, nullToken},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"int64", int64(42), "42"},
		{"string", "hello", "hello"},
		{"bytes", []byte("hello"), "hello"},
		{"char padding", "ab   ", "ab"},
		{"time", ts, "2026-03-15 10:30:00"},
		{"float", float64(3.5), "3.5"},
	}
	for _, tt := range tests {
		if got := normalizeValue(tt.in); got != tt.want {
			t.Errorf("%s: normalizeValue = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCanonicalText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"t", "true"},
		{"f", "false"},
		{"123.4500", "123.45"},
		{"123.000", "123"},
		{"-5.10", "-5.1"},
		{"123.45", "123.45"},
		{"0100", "0100"}, // leading zeros are data, not formatting
		{"padded   ", "padded"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := canonicalText(tt.in); got != tt.want {
			t.Errorf("canonicalText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompareSamples(t *testing.T) {
	tbl := &Table{
		PGName: "orders",
		Columns: []Column{
			{PGName: "id"},
			{PGName: "state"},
		},
	}

	same := [][]string{{"1", "open"}, {"2", "closed"}}
	if detail := compareSamples(tbl, same, [][]string{{"1", "open"}, {"2", "closed"}}); detail != "" {
		t.Errorf("equal samples reported mismatch: %s", detail)
	}

	detail := compareSamples(tbl, same, [][]string{{"1", "open"}, {"2", "open"}})
	if detail == "" {
		t.Fatal("differing samples reported equal")
	}
	if !strings.Contains(detail, "state") {
		t.Errorf("mismatch detail does not name the column: %s", detail)
	}

	if detail := compareSamples(tbl, same, same[:1]); !strings.Contains(detail, "size mismatch") {
		t.Errorf("size mismatch not reported: %s", detail)
	}
}

func TestFailedChecks(t *testing.T) {
	recs := []ValidationRecord{
		{Table: "a", Check: "row_count", Passed: true},
		{Table: "b", Check: "row_count", Passed: false},
		{Table: "b", Check: "sample_head", Passed: false},
	}
	failed := failedChecks(recs)
	if len(failed) != 2 {
		t.Fatalf("failedChecks = %d, want 2", len(failed))
	}
	for _, f := range failed {
		if f.Table != "b" {
			t.Errorf("unexpected failed record %+v", f)
		}
	}
}
