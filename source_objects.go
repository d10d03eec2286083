package main

import "fmt"

// sourceObjectWarnings renders the report of non-table source objects that
// require manual attention. Views and triggers are never migrated silently;
// procedures are handled by the translator and reported there.
func sourceObjectWarnings(objs *SourceObjects) []string {
	if objs == nil {
		return nil
	}
	if len(objs.Views) == 0 && len(objs.Triggers) == 0 {
		return nil
	}

	warnings := []string{
		fmt.Sprintf(
			"source contains non-table objects not migrated automatically (%d views, %d triggers)",
			len(objs.Views), len(objs.Triggers),
		),
	}
	for _, v := range objs.Views {
		warnings = append(warnings, fmt.Sprintf("view: %s", v))
	}
	for _, t := range objs.Triggers {
		warnings = append(warnings, fmt.Sprintf("trigger: %s", t))
	}
	return warnings
}
