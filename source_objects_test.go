package main

import (
	"strings"
	"testing"
)

func TestSourceObjectWarnings(t *testing.T) {
	if warnings := sourceObjectWarnings(nil); warnings != nil {
		t.Errorf("nil objects produced warnings: %v", warnings)
	}
	if warnings := sourceObjectWarnings(&SourceObjects{}); warnings != nil {
		t.Errorf("empty objects produced warnings: %v", warnings)
	}

	objs := &SourceObjects{
		Views:    []string{"v_active_orders", "v_revenue"},
		Triggers: []string{"trg_audit"},
	}
	warnings := sourceObjectWarnings(objs)
	if len(warnings) != 4 {
		t.Fatalf("got %d warnings, want 4: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "2 views, 1 triggers") {
		t.Errorf("summary = %q", warnings[0])
	}
	if warnings[1] != "view: v_active_orders" {
		t.Errorf("warnings[1] = %q", warnings[1])
	}
	if warnings[3] != "trigger: trg_audit" {
		t.Errorf("warnings[3] = %q", warnings[3])
	}
}
