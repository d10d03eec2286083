package main

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcTranslation is the outcome of translating one stored procedure.
// NeedsReview translations are never installed: the original body used
// constructs with no mechanical plpgsql equivalent, and Notes says which.
type ProcTranslation struct {
	Name        string
	SQL         string
	NeedsReview bool
	Notes       []string
}

// translateProcedures converts every discovered procedure to a plpgsql
// function returning a result set. Procedures that cannot be translated are
// flagged, not skipped silently.
func translateProcedures(src SourceDB, catalog *Catalog, typeMap TypeMappingConfig, pgSchema string) []ProcTranslation {
	out := make([]ProcTranslation, 0, len(catalog.Procedures))
	for i := range catalog.Procedures {
		out = append(out, translateProcedure(src, &catalog.Procedures[i], typeMap, pgSchema))
	}
	return out
}

// applyProcedures installs clean translations and reports the rest.
func applyProcedures(ctx context.Context, pool *pgxpool.Pool, translations []ProcTranslation) error {
	for _, tr := range translations {
		if tr.NeedsReview {
			log.Printf("  %s: requires manual review:", tr.Name)
			for _, n := range tr.Notes {
				log.Printf("    - %s", n)
			}
			continue
		}
		if _, err := pool.Exec(ctx, tr.SQL); err != nil {
			return fmt.Errorf("create function %s: %w\nSQL: %s", tr.Name, err, tr.SQL)
		}
		log.Printf("  %s: installed", tr.Name)
	}
	return nil
}

func translateProcedure(src SourceDB, p *Procedure, typeMap TypeMappingConfig, pgSchema string) ProcTranslation {
	tr := ProcTranslation{Name: p.PGName}

	args, argNotes := translateParams(src, p, typeMap)
	tr.Notes = append(tr.Notes, argNotes...)

	body, ok := extractBody(p.Body)
	if !ok {
		tr.Notes = append(tr.Notes, "could not locate BEGIN ... END block in source definition")
		tr.NeedsReview = true
		return tr
	}

	if blockers := unsupportedConstructs(body); len(blockers) > 0 {
		tr.Notes = append(tr.Notes, blockers...)
		tr.NeedsReview = true
		return tr
	}

	body, rewriteNotes := rewriteBody(body)
	tr.Notes = append(tr.Notes, rewriteNotes...)

	declares, stmts, declNotes, declOK := splitDeclarations(src, body, typeMap)
	tr.Notes = append(tr.Notes, declNotes...)
	if !declOK {
		tr.NeedsReview = true
		return tr
	}

	if strings.Contains(strings.Join(stmts, ";"), "@") {
		tr.Notes = append(tr.Notes, "body uses T-SQL @variable syntax; rewrite variables by hand")
		tr.NeedsReview = true
		return tr
	}

	// A body that returns rows needs a declared column list for RETURNS
	// TABLE. Without one the installed function would fail on its first
	// call with a result-shape mismatch, so it goes to manual review.
	if !p.NoResultSet && len(p.Result) == 0 && !hasOutParams(p) {
		for _, s := range stmts {
			if isSelectStatement(s) {
				tr.Notes = append(tr.Notes, "body returns rows but the catalog declares no result shape; declare the result columns by hand")
				tr.NeedsReview = true
				return tr
			}
		}
	}

	resultCols, resNotes := translateResultShape(src, p, typeMap)
	tr.Notes = append(tr.Notes, resNotes...)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE FUNCTION %s.%s(%s)\n", pgIdent(pgSchema), pgIdent(p.PGName), strings.Join(args, ", "))
	fmt.Fprintf(&b, "RETURNS TABLE(%s)\n", strings.Join(resultCols, ", "))
	b.WriteString("LANGUAGE plpgsql\nAS $proc$\n")
	if len(declares) > 0 {
		b.WriteString("DECLARE\n")
		for _, d := range declares {
			fmt.Fprintf(&b, "  %s;\n", d)
		}
	}
	b.WriteString("BEGIN\n")
	for _, s := range stmts {
		if isSelectStatement(s) && !p.NoResultSet {
			s = "RETURN QUERY " + s
		}
		fmt.Fprintf(&b, "  %s;\n", reindent(s))
	}
	if p.NoResultSet {
		// Source contract returned nothing; the target contract is uniform
		// tabular, so surface the mutation count as a one-row result.
		b.WriteString("  GET DIAGNOSTICS rows_affected = ROW_COUNT;\n")
		b.WriteString("  RETURN NEXT;\n")
		tr.Notes = append(tr.Notes, "source procedure returned no result set; target returns a single rows_affected row")
	} else if len(p.Result) == 0 && hasOutParams(p) {
		// Only folded OUT/INOUT values to return: emit them as one row.
		for _, param := range p.Params {
			if param.Mode == ParamInOut {
				fmt.Fprintf(&b, "  %s_out := %s;\n", pgIdent(param.Name), pgIdent(param.Name))
			}
		}
		b.WriteString("  RETURN NEXT;\n")
	}
	b.WriteString("END;\n$proc$")

	tr.SQL = b.String()
	return tr
}

func hasOutParams(p *Procedure) bool {
	for _, param := range p.Params {
		if param.Mode == ParamOut || param.Mode == ParamInOut {
			return true
		}
	}
	return false
}

func translateParams(src SourceDB, p *Procedure, typeMap TypeMappingConfig) (args []string, notes []string) {
	for _, param := range p.Params {
		if param.Mode == ParamOut {
			// OUT params fold into the result shape in translateResultShape.
			continue
		}
		pgType, err := mapProcType(src, param.SourceType, typeMap)
		if err != nil {
			pgType = "text"
			notes = append(notes, fmt.Sprintf("parameter %s: %v; declared as text", param.Name, err))
		}
		// INOUT becomes a plain input: OUT-style modes cannot combine with
		// RETURNS TABLE, so the output half folds into the result shape.
		args = append(args, fmt.Sprintf("%s %s", pgIdent(param.Name), pgType))
	}
	return args, notes
}

func translateResultShape(src SourceDB, p *Procedure, typeMap TypeMappingConfig) (cols []string, notes []string) {
	if p.NoResultSet {
		return []string{"rows_affected bigint"}, nil
	}
	for _, rc := range p.Result {
		pgType, err := mapProcType(src, rc.SourceType, typeMap)
		if err != nil {
			pgType = "text"
			notes = append(notes, fmt.Sprintf("result column %s: %v; declared as text", rc.Name, err))
		}
		cols = append(cols, fmt.Sprintf("%s %s", pgIdent(rc.Name), pgType))
	}
	for _, param := range p.Params {
		if param.Mode != ParamOut && param.Mode != ParamInOut {
			continue
		}
		pgType, err := mapProcType(src, param.SourceType, typeMap)
		if err != nil {
			pgType = "text"
			notes = append(notes, fmt.Sprintf("%s parameter %s: %v; declared as text", param.Mode, param.Name, err))
		}
		name := param.Name
		if param.Mode == ParamInOut {
			// The input half keeps the bare name; the result column must not
			// collide with it.
			name += "_out"
		}
		cols = append(cols, fmt.Sprintf("%s %s", pgIdent(name), pgType))
		notes = append(notes, fmt.Sprintf("%s parameter %s folded into the result row as %s", param.Mode, param.Name, name))
	}
	if len(cols) == 0 {
		cols = []string{"rows_affected bigint"}
		notes = append(notes, "procedure declared a result set with no columns; returning rows_affected instead")
	}
	return cols, notes
}

var sourceTypeRE = regexp.MustCompile(`^([a-z ]+?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?$`)

// mapProcType maps a declared type string like "numeric(10,2)" through the
// owning engine's column mapper, so procedure parameters and variables get
// the same treatment as table columns.
func mapProcType(src SourceDB, srcType string, typeMap TypeMappingConfig) (string, error) {
	s := strings.ToLower(strings.TrimSpace(srcType))
	// MySQL DTD identifiers carry attributes after the width: "int(10) unsigned".
	base := strings.ReplaceAll(s, " unsigned", "")
	base = strings.ReplaceAll(base, " zerofill", "")
	m := sourceTypeRE.FindStringSubmatch(base)
	if m == nil {
		return "", fmt.Errorf("unparseable type %q", srcType)
	}
	col := Column{DataType: strings.TrimSpace(m[1]), ColumnType: s}
	if m[2] != "" {
		n, _ := strconv.ParseInt(m[2], 10, 64)
		col.CharMaxLen = n
		col.Precision = n
	}
	if m[3] != "" {
		n, _ := strconv.ParseInt(m[3], 10, 64)
		col.Scale = n
	}
	return src.MapType(col, typeMap)
}

var (
	beginRE = regexp.MustCompile(`(?is)\bbegin\b`)
	endRE   = regexp.MustCompile(`(?is)\bend\b`)
)

// extractBody returns the text between the outermost BEGIN and END.
func extractBody(defn string) (string, bool) {
	start := beginRE.FindStringIndex(defn)
	if start == nil {
		return "", false
	}
	ends := endRE.FindAllStringIndex(defn, -1)
	if len(ends) == 0 {
		return "", false
	}
	last := ends[len(ends)-1]
	if last[0] <= start[1] {
		return "", false
	}
	return strings.TrimSpace(defn[start[1]:last[0]]), true
}

var blockerPatterns = []struct {
	re   *regexp.Regexp
	note string
}{
	{regexp.MustCompile(`(?i)\bcursor\b`), "cursor logic has no mechanical translation"},
	{regexp.MustCompile(`(?i)\bexecute\s+immediate\b`), "EXECUTE IMMEDIATE requires manual conversion to EXECUTE ... USING"},
	{regexp.MustCompile(`(?i)\bgoto\b`), "GOTO has no plpgsql equivalent"},
	{regexp.MustCompile(`(?i)\bresignal\b`), "RESIGNAL error handling must be rewritten with RAISE"},
	{regexp.MustCompile(`(?i)\bset\s+temporary\s+option\b`), "SET TEMPORARY OPTION is engine-specific"},
	{regexp.MustCompile(`(?i)\btrigger\s+event\b`), "TRIGGER EVENT is engine-specific"},
	{regexp.MustCompile(`(?i)\bcall\s+(?:sa_|xp_|sp_)`), "calls an engine system procedure"},
	{regexp.MustCompile(`(?i)\binto\s+#\w+`), "temporary # tables must become CREATE TEMP TABLE"},
	{regexp.MustCompile(`(?i)\bselect\s+top\b`), "TOP must be rewritten as LIMIT by hand (clause position differs)"},
}

func unsupportedConstructs(body string) []string {
	var notes []string
	for _, p := range blockerPatterns {
		if p.re.MatchString(body) {
			notes = append(notes, p.note)
		}
	}
	return notes
}

var (
	lineCommentRE = regexp.MustCompile(`(?m)//(.*)$`)
	isnullRE      = regexp.MustCompile(`(?i)\bisnull\s*\(`)
	getdateRE     = regexp.MustCompile(`(?i)\bgetdate\s*\(\s*\)`)
	currentTsRE   = regexp.MustCompile(`(?i)\bcurrent\s+timestamp\b`)
	currentDateRE = regexp.MustCompile(`(?i)\bcurrent\s+date\b`)
	newidRE       = regexp.MustCompile(`(?i)\bnewid\s*\(\s*\)`)
	identityRE    = regexp.MustCompile(`(?i)@@identity\b`)
	messageRE     = regexp.MustCompile(`(?im)^\s*message\s+(.+?)\s+to\s+client\s*$`)
	setAssignRE   = regexp.MustCompile(`(?im)^(\s*)set\s+(\w+)\s*=`)
)

// rewriteBody applies the mechanical Watcom-SQL to plpgsql rewrites.
func rewriteBody(body string) (string, []string) {
	var notes []string
	body = lineCommentRE.ReplaceAllString(body, "--$1")
	body = isnullRE.ReplaceAllString(body, "COALESCE(")
	body = getdateRE.ReplaceAllString(body, "now()")
	body = currentTsRE.ReplaceAllString(body, "now()")
	body = currentDateRE.ReplaceAllString(body, "current_date")
	body = newidRE.ReplaceAllString(body, "gen_random_uuid()")
	if identityRE.MatchString(body) {
		body = identityRE.ReplaceAllString(body, "lastval()")
		notes = append(notes, "@@identity rewritten as lastval(); verify the preceding insert targets the intended sequence")
	}
	if messageRE.MatchString(body) {
		body = messageRE.ReplaceAllString(body, "RAISE NOTICE '%', $1")
		notes = append(notes, "MESSAGE ... TO CLIENT rewritten as RAISE NOTICE")
	}
	body = setAssignRE.ReplaceAllString(body, "$1$2 :=")
	return body, notes
}

var declareRE = regexp.MustCompile(`(?is)^declare\s+(\w+)\s+(.+)$`)

// splitDeclarations pulls leading DECLARE statements out of the body; plpgsql
// wants them in a DECLARE section before BEGIN, with mapped types.
func splitDeclarations(src SourceDB, body string, typeMap TypeMappingConfig) (declares, stmts, notes []string, ok bool) {
	ok = true
	inBody := false
	for _, s := range splitStatements(body) {
		m := declareRE.FindStringSubmatch(s)
		if m == nil || inBody {
			inBody = true
			stmts = append(stmts, s)
			continue
		}
		pgType, err := mapProcType(src, m[2], typeMap)
		if err != nil {
			notes = append(notes, fmt.Sprintf("variable %s: %v", m[1], err))
			ok = false
			continue
		}
		declares = append(declares, fmt.Sprintf("%s %s", m[1], pgType))
	}
	return declares, stmts, notes, ok
}

var selectIntoRE = regexp.MustCompile(`(?i)\binto\b`)

// isSelectStatement reports whether a statement produces rows for the caller.
// SELECT ... INTO assigns to variables and stays as-is.
func isSelectStatement(s string) bool {
	return strings.EqualFold(firstWord(s), "select") && !selectIntoRE.MatchString(s)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// reindent normalizes a statement's interior newlines to the function body's
// indentation level.
func reindent(s string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = "  " + strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "\n")
}
