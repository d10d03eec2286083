package main

import (
	"strings"
	"testing"
)

// planCatalog builds a catalog from a table → referenced tables map.
func planCatalog(deps map[string][]string) *Catalog {
	c := &Catalog{}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	// Insertion order must not matter; keep it deterministic for the test.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		t := Table{SourceName: name, PGName: name}
		for _, ref := range deps[name] {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Name:       "fk_" + name + "_" + ref,
				Columns:    []string{ref + "_id"},
				RefTable:   ref,
				RefPGTable: ref,
				RefColumns: []string{"id"},
				UpdateRule: "NO ACTION",
				DeleteRule: "NO ACTION",
			})
		}
		c.Tables = append(c.Tables, t)
	}
	return c
}

func TestBuildPlanChain(t *testing.T) {
	// c depends on b depends on a: three phases in order.
	catalog := planCatalog(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(plan.Phases) != 3 {
		t.Fatalf("got %d phases, want 3", len(plan.Phases))
	}
	for i, want := range []string{"a", "b", "c"} {
		if len(plan.Phases[i].Tables) != 1 || plan.Phases[i].Tables[0] != want {
			t.Errorf("phase %d = %v, want [%s]", i, plan.Phases[i].Tables, want)
		}
		if plan.Phases[i].Deferred {
			t.Errorf("phase %d marked deferred for an acyclic chain", i)
		}
	}
	if err := checkPlanInvariant(catalog, plan); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestBuildPlanIndependentTablesShareAPhase(t *testing.T) {
	catalog := planCatalog(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a", "b"},
	})
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(plan.Phases) != 2 {
		t.Fatalf("got %d phases, want 2", len(plan.Phases))
	}
	if got := strings.Join(plan.Phases[0].Tables, ","); got != "a,b" {
		t.Errorf("phase 0 = %q, want %q", got, "a,b")
	}
	if got := strings.Join(plan.Phases[1].Tables, ","); got != "c" {
		t.Errorf("phase 1 = %q, want %q", got, "c")
	}
}

func TestBuildPlanCircularPair(t *testing.T) {
	catalog := planCatalog(map[string][]string{
		"x": {"y"},
		"y": {"x"},
	})
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(plan.Phases) != 1 {
		t.Fatalf("got %d phases, want 1", len(plan.Phases))
	}
	ph := plan.Phases[0]
	if !ph.Deferred {
		t.Error("circular pair phase not marked deferred")
	}
	if got := strings.Join(ph.Tables, ","); got != "x,y" {
		t.Errorf("phase tables = %q, want %q", got, "x,y")
	}
	for i := range catalog.Tables {
		for _, fk := range catalog.Tables[i].ForeignKeys {
			if !fk.Deferred {
				t.Errorf("constraint %s inside the cycle not marked deferred", fk.Name)
			}
		}
	}
	if err := checkPlanInvariant(catalog, plan); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestBuildPlanCycleWithDownstream(t *testing.T) {
	// z hangs off the cycle: it must land in a later phase.
	catalog := planCatalog(map[string][]string{
		"x": {"y"},
		"y": {"x"},
		"z": {"x"},
	})
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(plan.Phases) != 2 {
		t.Fatalf("got %d phases, want 2: %+v", len(plan.Phases), plan.Phases)
	}
	if !plan.Phases[0].Deferred {
		t.Error("cycle phase not marked deferred")
	}
	if plan.PhaseOf("z") != 1 {
		t.Errorf("PhaseOf(z) = %d, want 1", plan.PhaseOf("z"))
	}
	if err := checkPlanInvariant(catalog, plan); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestBuildPlanSelfReference(t *testing.T) {
	// A self-referencing table phases normally; only the constraint defers.
	catalog := planCatalog(map[string][]string{
		"folders": {"folders"},
		"files":   {"folders"},
	})
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(plan.Phases) != 2 {
		t.Fatalf("got %d phases, want 2", len(plan.Phases))
	}
	if plan.Phases[0].Deferred {
		t.Error("self-reference should not create a deferred phase")
	}
	folders := catalog.TableByPGName("folders")
	if !folders.ForeignKeys[0].Deferred {
		t.Error("self-referencing constraint not marked deferred")
	}
}

func TestBuildPlanMissingParent(t *testing.T) {
	catalog := planCatalog(map[string][]string{
		"orders": {"customers", "products"},
		"items":  {"orders"},
	})
	_, err := buildPlan(catalog)
	if err == nil {
		t.Fatal("expected error for missing referenced tables")
	}
	for _, want := range []string{"customers", "products", "fk_orders_customers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	deps := map[string][]string{
		"a": nil, "b": nil, "c": {"a"}, "d": {"b"}, "e": {"c", "d"},
	}
	first, err := buildPlan(planCatalog(deps))
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := buildPlan(planCatalog(deps))
		if err != nil {
			t.Fatalf("buildPlan: %v", err)
		}
		if len(again.Phases) != len(first.Phases) {
			t.Fatalf("phase count changed between runs")
		}
		for p := range first.Phases {
			if strings.Join(first.Phases[p].Tables, ",") != strings.Join(again.Phases[p].Tables, ",") {
				t.Fatalf("phase %d order changed between runs", p)
			}
		}
	}
}

func TestDescribePlan(t *testing.T) {
	catalog := planCatalog(map[string][]string{"a": nil, "b": {"a"}})
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	out := describePlan(catalog, plan)
	if !strings.Contains(out, "phase 1:") || !strings.Contains(out, "phase 2:") {
		t.Errorf("describePlan output missing phases:\n%s", out)
	}
	if !strings.Contains(out, "a (0 rows)") {
		t.Errorf("describePlan output missing table line:\n%s", out)
	}
}
