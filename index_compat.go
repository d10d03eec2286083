package main

import (
	"fmt"
	"strings"
)

// indexUnsupportedReason reports why an index cannot be recreated on the
// target, or "" when it can.
func indexUnsupportedReason(idx *Index) string {
	if idx.HasExpression {
		return "expression index key-parts are not currently supported"
	}
	if idx.Type != "" && !strings.EqualFold(idx.Type, "BTREE") {
		return fmt.Sprintf("index type %q is not supported", idx.Type)
	}
	if len(idx.Columns) == 0 {
		return "index has no plain column key-parts"
	}
	return ""
}

func collectIndexCompatibilityWarnings(catalog *Catalog) []string {
	var warnings []string
	for i := range catalog.Tables {
		t := &catalog.Tables[i]
		for j := range t.Indexes {
			idx := &t.Indexes[j]
			if reason := indexUnsupportedReason(idx); reason != "" {
				warnings = append(warnings,
					fmt.Sprintf("%s.%s (%s): %s", t.SourceName, idx.SourceName, idx.Name, reason),
				)
			}
		}
	}
	return warnings
}
