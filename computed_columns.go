package main

import "fmt"

// collectComputedColumnWarnings reports computed/generated columns. Their
// current values move over as plain data; the compute expression is not
// recreated on the target.
func collectComputedColumnWarnings(catalog *Catalog) []string {
	if catalog == nil {
		return nil
	}
	var warnings []string
	for _, t := range catalog.Tables {
		for _, c := range t.Columns {
			if c.Extra != "computed" {
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"computed column %s.%s will be materialized as plain data; its expression is not recreated",
				t.SourceName, c.SourceName,
			))
		}
	}
	return warnings
}
