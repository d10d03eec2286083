package main

import (
	"fmt"
	"sort"
	"strings"
)

// buildPlan orders the catalog's tables into migration phases. Acyclic
// dependencies layer via topological sort: a table's phase is one past the
// latest phase among its parents. Circular reference groups (strongly
// connected components with more than one table, or a self-referencing FK)
// are isolated into deferred-constraint phases: their internal foreign keys
// are marked Deferred on the table descriptors and attached only after every
// table in the group has loaded.
//
// A foreign key whose parent table is missing from the catalog is a planning
// error, reported with table and constraint names.
func buildPlan(catalog *Catalog) (*Plan, error) {
	tables := make([]string, 0, len(catalog.Tables))
	index := make(map[string]int, len(catalog.Tables))
	for i := range catalog.Tables {
		name := catalog.Tables[i].PGName
		index[name] = len(tables)
		tables = append(tables, name)
	}

	// adjacency: child → parents (the tables it depends on)
	parents := make([][]int, len(tables))
	var missing []string
	for i := range catalog.Tables {
		t := &catalog.Tables[i]
		for j := range t.ForeignKeys {
			fk := &t.ForeignKeys[j]
			p, ok := index[fk.RefPGTable]
			if !ok {
				missing = append(missing, fmt.Sprintf("%s.%s references unknown table %s", t.PGName, fk.Name, fk.RefPGTable))
				continue
			}
			if p == index[t.PGName] {
				// Self-reference: always a deferred constraint, but the table
				// itself phases normally.
				fk.Deferred = true
				continue
			}
			parents[index[t.PGName]] = append(parents[index[t.PGName]], p)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dependency graph is malformed:\n  %s", strings.Join(missing, "\n  "))
	}

	comps := stronglyConnected(len(tables), parents)

	// Component membership and sizes.
	compOf := make([]int, len(tables))
	compSize := make([]int, len(comps))
	for ci, comp := range comps {
		compSize[ci] = len(comp)
		for _, v := range comp {
			compOf[v] = ci
		}
	}

	// Mark internal edges of multi-table components as deferred constraints.
	for i := range catalog.Tables {
		t := &catalog.Tables[i]
		ti := index[t.PGName]
		for j := range t.ForeignKeys {
			fk := &t.ForeignKeys[j]
			if fk.Deferred {
				continue
			}
			p := index[fk.RefPGTable]
			if compOf[ti] == compOf[p] && compSize[compOf[ti]] > 1 {
				fk.Deferred = true
			}
		}
	}

	// Layer the condensation: phase(comp) = 1 + max(phase(parent comps)).
	compPhase := make([]int, len(comps))
	var phaseOfComp func(ci int) int
	phaseOfComp = func(ci int) int {
		if compPhase[ci] != 0 {
			return compPhase[ci]
		}
		max := 0
		for _, v := range comps[ci] {
			for _, p := range parents[v] {
				pc := compOf[p]
				if pc == ci {
					continue
				}
				if ph := phaseOfComp(pc); ph > max {
					max = ph
				}
			}
		}
		compPhase[ci] = max + 1
		return compPhase[ci]
	}
	for ci := range comps {
		phaseOfComp(ci)
	}

	// Deferred groups get their own phase so the constraint step is visible
	// in the plan; plain components at the same depth share a phase.
	type phaseKey struct {
		depth    int
		deferred bool
		comp     int // distinct key per deferred group; -1 for shared phases
	}
	grouped := make(map[phaseKey][]string)
	for ci, comp := range comps {
		deferred := len(comp) > 1
		key := phaseKey{depth: compPhase[ci], deferred: deferred, comp: -1}
		if deferred {
			key.comp = ci
		}
		for _, v := range comp {
			grouped[key] = append(grouped[key], tables[v])
		}
	}

	keys := make([]phaseKey, 0, len(grouped))
	for k := range grouped {
		sort.Strings(grouped[k])
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].depth != keys[j].depth {
			return keys[i].depth < keys[j].depth
		}
		if keys[i].deferred != keys[j].deferred {
			return !keys[i].deferred // plain phase before deferred groups at equal depth
		}
		return grouped[keys[i]][0] < grouped[keys[j]][0]
	})

	plan := &Plan{}
	for i, k := range keys {
		names := grouped[k]
		plan.Phases = append(plan.Phases, Phase{
			Index:    i,
			Tables:   names,
			Deferred: k.deferred,
		})
	}
	return plan, nil
}

// stronglyConnected runs Tarjan's algorithm over the child→parent adjacency
// and returns the components.
func stronglyConnected(n int, adj [][]int) [][]int {
	const unvisited = -1
	indexOf := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range indexOf {
		indexOf[i] = unvisited
	}

	var stack []int
	var comps [][]int
	counter := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		indexOf[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if indexOf[w] == unvisited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && indexOf[w] < lowlink[v] {
				lowlink[v] = indexOf[w]
			}
		}

		if lowlink[v] == indexOf[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			comps = append(comps, comp)
		}
	}

	for v := 0; v < n; v++ {
		if indexOf[v] == unvisited {
			strongconnect(v)
		}
	}
	return comps
}

// checkPlanInvariant verifies that every non-deferred FK edge points to an
// earlier-or-equal phase. Used by tests and by `anyferry plan`.
func checkPlanInvariant(catalog *Catalog, plan *Plan) error {
	for i := range catalog.Tables {
		t := &catalog.Tables[i]
		childPhase := plan.PhaseOf(t.PGName)
		if childPhase < 0 {
			return fmt.Errorf("table %s was not assigned a phase", t.PGName)
		}
		for _, fk := range t.ForeignKeys {
			if fk.Deferred {
				continue
			}
			parentPhase := plan.PhaseOf(fk.RefPGTable)
			if parentPhase < 0 {
				return fmt.Errorf("table %s was not assigned a phase", fk.RefPGTable)
			}
			if parentPhase > childPhase {
				return fmt.Errorf("constraint %s on %s points to %s in a later phase (%d > %d)",
					fk.Name, t.PGName, fk.RefPGTable, parentPhase, childPhase)
			}
		}
	}
	return nil
}

// describePlan renders the phase plan for logs and the `plan` subcommand.
func describePlan(catalog *Catalog, plan *Plan) string {
	var b strings.Builder
	for _, ph := range plan.Phases {
		tag := ""
		if ph.Deferred {
			tag = " [deferred-constraint group]"
		}
		fmt.Fprintf(&b, "phase %d%s:\n", ph.Index+1, tag)
		for _, name := range ph.Tables {
			t := catalog.TableByPGName(name)
			fmt.Fprintf(&b, "  %s (%d rows)\n", name, t.RowCount)
		}
	}
	return b.String()
}
