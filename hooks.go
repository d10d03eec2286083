package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// runHookFiles executes the operator SQL files registered for one pipeline
// point. Paths resolve relative to the config file and {{schema}} expands to
// the target schema before splitting.
func runHookFiles(ctx context.Context, pool *pgxpool.Pool, cfg *MigrationConfig, files []string, point string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", point, len(files))

	for _, f := range files {
		raw, err := os.ReadFile(cfg.resolvePath(f))
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", point, f, err)
		}
		stmts := splitStatements(strings.ReplaceAll(string(raw), "{{schema}}", cfg.Schema))
		log.Printf("    %s: %d statements", f, len(stmts))

		for i, stmt := range stmts {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", point, f, i+1, err, stmt)
			}
		}
	}
	return nil
}

// splitStatements cuts SQL text at semicolons outside single-quoted strings.
// Doubled quotes inside a string are the standard escape and stay quoted.
func splitStatements(sql string) []string {
	var out []string
	var buf strings.Builder
	quoted := false

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				buf.WriteString("''")
				i++
				continue
			}
			quoted = !quoted
			buf.WriteByte(c)
		case c == ';' && !quoted:
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return out
}
