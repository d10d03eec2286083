//go:build integration

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestIntegration_SQLite(t *testing.T) {
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		t.Skip("POSTGRES_DSN env var required")
	}

	ctx := context.Background()
	tmpDir := t.TempDir()

	sqliteFile := filepath.Join(tmpDir, "test.db")
	seedSQLite(t, sqliteFile)

	const pgSchema = "inttest"
	cfg := writeIntegrationConfig(t, tmpDir, pgSchema, sqliteFile, pgDSN)

	src, err := newSourceDB(cfg.Source.Type)
	if err != nil {
		t.Fatalf("newSourceDB: %v", err)
	}
	src.SetSnakeCaseIdentifiers(cfg.SnakeCaseIdentifiers)

	srcDB, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer srcDB.Close()

	dbName, err := src.ExtractDBName(cfg.Source.DSN)
	if err != nil {
		t.Fatalf("extract db name: %v", err)
	}

	catalog, err := src.DiscoverCatalog(srcDB, dbName)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(catalog.Tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(catalog.Tables))
	}

	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	// users → posts → comments forces one phase per table.
	if len(plan.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d: %s", len(plan.Phases), describePlan(catalog, plan))
	}
	for _, phase := range plan.Phases {
		if phase.Deferred {
			t.Fatalf("expected no deferred phases, got %s", describePlan(catalog, plan))
		}
	}

	pgPool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pgPool.Close()
	t.Cleanup(func() {
		pgPool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(pgSchema)))
	})

	if err := prepareTargetSchema(ctx, pgPool, cfg.Schema, cfg.OnSchemaExists); err != nil {
		t.Fatalf("prepare schema: %v", err)
	}
	if err := ensureProgressTable(ctx, pgPool, cfg.Schema); err != nil {
		t.Fatalf("ensure progress table: %v", err)
	}
	if err := ensureValidationTable(ctx, pgPool, cfg.Schema); err != nil {
		t.Fatalf("ensure validation table: %v", err)
	}

	for _, phase := range plan.Phases {
		if err := createPhaseTables(ctx, pgPool, src, catalog, phase, cfg); err != nil {
			t.Fatalf("createPhaseTables: %v", err)
		}
	}

	for i := range plan.Phases {
		phase := &plan.Phases[i]
		if err := migratePhaseData(ctx, cfg, src, pgPool, catalog, phase); err != nil {
			t.Fatalf("phase %d data: %v", i, err)
		}
		if err := finishPhase(ctx, pgPool, cfg, catalog, phase); err != nil {
			t.Fatalf("phase %d constraints: %v", i, err)
		}
		recs, err := validatePhase(ctx, cfg, src, srcDB, pgPool, catalog, phase)
		if err != nil {
			t.Fatalf("phase %d validation: %v", i, err)
		}
		if err := storeValidationRecords(ctx, pgPool, cfg.Schema, recs); err != nil {
			t.Fatalf("store validation records: %v", err)
		}
		if failed := failedChecks(recs); len(failed) > 0 {
			for _, rec := range failed {
				t.Errorf("phase %d check failed: %s %s: %s", i, rec.Table, rec.Check, rec.Detail)
			}
			t.FailNow()
		}
	}

	if err := resetSequences(ctx, pgPool, catalog, cfg.Schema); err != nil {
		t.Fatalf("resetSequences: %v", err)
	}

	// --- Assertions ---
	assertRowCount(t, pgPool, pgSchema, "users", 5)
	assertRowCount(t, pgPool, pgSchema, "posts", 5)
	assertRowCount(t, pgPool, pgSchema, "comments", 10)

	for _, tbl := range []string{"users", "posts", "comments"} {
		assertPKExists(t, pgPool, pgSchema, tbl)
	}

	assertFKExists(t, pgPool, pgSchema, "posts", "users")
	assertFKExists(t, pgPool, pgSchema, "comments", "posts")
	assertFKExists(t, pgPool, pgSchema, "comments", "users")

	// Spot-check data
	var name string
	err = pgPool.QueryRow(ctx,
		fmt.Sprintf("SELECT name FROM %s.users WHERE id = 1", pgIdent(pgSchema)),
	).Scan(&name)
	if err != nil {
		t.Fatalf("spot-check query: %v", err)
	}
	if name != "Alice" {
		t.Errorf("expected user 1 name 'Alice', got %q", name)
	}

	// Sequences pick up after the migrated maximum.
	var newID int
	err = pgPool.QueryRow(ctx,
		fmt.Sprintf("INSERT INTO %s.users (name) VALUES ('Frank') RETURNING id", pgIdent(pgSchema)),
	).Scan(&newID)
	if err != nil {
		t.Fatalf("insert after sequence reset: %v", err)
	}
	if newID != 6 {
		t.Errorf("expected next id 6, got %d", newID)
	}

	// Every table finished in the progress ledger.
	var done int
	err = pgPool.QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s.%s WHERE status = 'done'", pgIdent(pgSchema), progressTable,
	)).Scan(&done)
	if err != nil {
		t.Fatalf("read progress ledger: %v", err)
	}
	if done != 3 {
		t.Errorf("expected 3 tables marked done, got %d", done)
	}
}

func TestIntegration_SQLiteCircularReferences(t *testing.T) {
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		t.Skip("POSTGRES_DSN env var required")
	}

	ctx := context.Background()
	tmpDir := t.TempDir()

	sqliteFile := filepath.Join(tmpDir, "circular.db")
	seedSQLiteCircular(t, sqliteFile)

	const pgSchema = "inttest_circ"
	cfg := writeIntegrationConfig(t, tmpDir, pgSchema, sqliteFile, pgDSN)

	src, err := newSourceDB(cfg.Source.Type)
	if err != nil {
		t.Fatalf("newSourceDB: %v", err)
	}
	src.SetSnakeCaseIdentifiers(cfg.SnakeCaseIdentifiers)

	srcDB, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer srcDB.Close()

	dbName, err := src.ExtractDBName(cfg.Source.DSN)
	if err != nil {
		t.Fatalf("extract db name: %v", err)
	}

	catalog, err := src.DiscoverCatalog(srcDB, dbName)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	// teams ↔ employees collapse into one deferred phase.
	var deferred *Phase
	for i := range plan.Phases {
		if plan.Phases[i].Deferred {
			deferred = &plan.Phases[i]
		}
	}
	if deferred == nil {
		t.Fatalf("expected a deferred phase, got %s", describePlan(catalog, plan))
	}
	if len(deferred.Tables) != 2 {
		t.Fatalf("expected 2 tables in deferred phase, got %v", deferred.Tables)
	}

	pgPool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pgPool.Close()
	t.Cleanup(func() {
		pgPool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(pgSchema)))
	})

	if err := prepareTargetSchema(ctx, pgPool, cfg.Schema, cfg.OnSchemaExists); err != nil {
		t.Fatalf("prepare schema: %v", err)
	}
	if err := ensureProgressTable(ctx, pgPool, cfg.Schema); err != nil {
		t.Fatalf("ensure progress table: %v", err)
	}
	if err := ensureValidationTable(ctx, pgPool, cfg.Schema); err != nil {
		t.Fatalf("ensure validation table: %v", err)
	}

	for _, phase := range plan.Phases {
		if err := createPhaseTables(ctx, pgPool, src, catalog, phase, cfg); err != nil {
			t.Fatalf("createPhaseTables: %v", err)
		}
	}
	for i := range plan.Phases {
		phase := &plan.Phases[i]
		if err := migratePhaseData(ctx, cfg, src, pgPool, catalog, phase); err != nil {
			t.Fatalf("phase %d data: %v", i, err)
		}
		if err := finishPhase(ctx, pgPool, cfg, catalog, phase); err != nil {
			t.Fatalf("phase %d constraints: %v", i, err)
		}
		recs, err := validatePhase(ctx, cfg, src, srcDB, pgPool, catalog, phase)
		if err != nil {
			t.Fatalf("phase %d validation: %v", i, err)
		}
		if failed := failedChecks(recs); len(failed) > 0 {
			for _, rec := range failed {
				t.Errorf("phase %d check failed: %s %s: %s", i, rec.Table, rec.Check, rec.Detail)
			}
			t.FailNow()
		}
	}

	assertRowCount(t, pgPool, pgSchema, "teams", 2)
	assertRowCount(t, pgPool, pgSchema, "employees", 3)

	assertFKExists(t, pgPool, pgSchema, "employees", "teams")
	assertFKExists(t, pgPool, pgSchema, "teams", "employees")

	// Circular-group constraints must be deferrable so a future bulk reload
	// can defer them inside one transaction.
	assertFKDeferrable(t, pgPool, pgSchema, "teams", "employees")
	assertFKDeferrable(t, pgPool, pgSchema, "employees", "teams")
}

// TestIntegration_SQLiteResume simulates a crashed run by editing the
// progress ledger, then re-runs the phase and checks each resume path: done
// tables are skipped, keyset tables continue past the committed key, and
// key-less tables restart from zero without duplicating rows.
func TestIntegration_SQLiteResume(t *testing.T) {
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		t.Skip("POSTGRES_DSN env var required")
	}

	ctx := context.Background()
	tmpDir := t.TempDir()

	sqliteFile := filepath.Join(tmpDir, "resume.db")
	seedSQLiteResume(t, sqliteFile)

	const pgSchema = "inttest_resume"
	cfg := writeIntegrationConfig(t, tmpDir, pgSchema, sqliteFile, pgDSN)

	src, err := newSourceDB(cfg.Source.Type)
	if err != nil {
		t.Fatalf("newSourceDB: %v", err)
	}
	src.SetSnakeCaseIdentifiers(cfg.SnakeCaseIdentifiers)

	srcDB, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer srcDB.Close()

	dbName, err := src.ExtractDBName(cfg.Source.DSN)
	if err != nil {
		t.Fatalf("extract db name: %v", err)
	}
	catalog, err := src.DiscoverCatalog(srcDB, dbName)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	plan, err := buildPlan(catalog)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	// No foreign keys: everything loads in one phase.
	if len(plan.Phases) != 1 {
		t.Fatalf("expected 1 phase, got %d: %s", len(plan.Phases), describePlan(catalog, plan))
	}

	pgPool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pgPool.Close()
	t.Cleanup(func() {
		pgPool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(pgSchema)))
	})

	if err := prepareTargetSchema(ctx, pgPool, cfg.Schema, cfg.OnSchemaExists); err != nil {
		t.Fatalf("prepare schema: %v", err)
	}
	if err := ensureProgressTable(ctx, pgPool, cfg.Schema); err != nil {
		t.Fatalf("ensure progress table: %v", err)
	}
	phase := &plan.Phases[0]
	if err := createPhaseTables(ctx, pgPool, src, catalog, *phase, cfg); err != nil {
		t.Fatalf("createPhaseTables: %v", err)
	}
	if err := migratePhaseData(ctx, cfg, src, pgPool, catalog, phase); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := finishPhase(ctx, pgPool, cfg, catalog, phase); err != nil {
		t.Fatalf("first finishPhase: %v", err)
	}

	// Rewind the ledger as if the run died mid-table. items committed two
	// rows by keyset; events committed two rows with no key to resume on;
	// notes finished.
	rewinds := []string{
		fmt.Sprintf("DELETE FROM %s.items WHERE id > 2", pgIdent(pgSchema)),
		fmt.Sprintf("UPDATE %s.%s SET status = 'running', row_offset = 2, last_key = 2 WHERE table_name = 'items'",
			pgIdent(pgSchema), progressTable),
		fmt.Sprintf("DELETE FROM %s.events WHERE seq > 2", pgIdent(pgSchema)),
		fmt.Sprintf("UPDATE %s.%s SET status = 'running', row_offset = 2, last_key = NULL WHERE table_name = 'events'",
			pgIdent(pgSchema), progressTable),
		fmt.Sprintf("DELETE FROM %s.notes", pgIdent(pgSchema)),
	}
	for _, q := range rewinds {
		if _, err := pgPool.Exec(ctx, q); err != nil {
			t.Fatalf("rewind %q: %v", q[:min(len(q), 60)], err)
		}
	}

	if err := migratePhaseData(ctx, cfg, src, pgPool, catalog, phase); err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	// Constraint attachment re-runs on resume; it must tolerate the PKs and
	// indexes the first run already attached.
	if err := finishPhase(ctx, pgPool, cfg, catalog, phase); err != nil {
		t.Fatalf("resumed finishPhase: %v", err)
	}

	// Keyset table resumed past the committed key: full count, no duplicates.
	assertRowCount(t, pgPool, pgSchema, "items", 5)
	var distinct int
	if err := pgPool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT id) FROM %s.items", pgIdent(pgSchema)),
	).Scan(&distinct); err != nil {
		t.Fatalf("distinct items: %v", err)
	}
	if distinct != 5 {
		t.Errorf("items resumed with duplicated rows: %d distinct ids of 5", distinct)
	}

	// Key-less table restarted from zero rather than guessing at row identity.
	assertRowCount(t, pgPool, pgSchema, "events", 4)

	// Done table skipped entirely: the deleted rows prove no reload happened.
	assertRowCount(t, pgPool, pgSchema, "notes", 0)

	var done int
	if err := pgPool.QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s.%s WHERE status = 'done'", pgIdent(pgSchema), progressTable,
	)).Scan(&done); err != nil {
		t.Fatalf("read progress ledger: %v", err)
	}
	if done != 3 {
		t.Errorf("expected 3 tables marked done after resume, got %d", done)
	}
}

func writeIntegrationConfig(t *testing.T, dir, pgSchema, sourceDSN, pgDSN string) *MigrationConfig {
	t.Helper()

	tomlContent := fmt.Sprintf(`schema = %q
workers = 2
unlogged_tables = true
on_schema_exists = "recreate"

[source]
type = "sqlite"
dsn = %q

[target]
dsn = %q
allow_insecure = true
`, pgSchema, sourceDSN, pgDSN)

	cfgPath := filepath.Join(dir, "migration.toml")
	if err := os.WriteFile(cfgPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func seedSQLite(t *testing.T, dbPath string) {
	t.Helper()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite for seeding: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT
		)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			body TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			content TEXT,
			FOREIGN KEY (post_id) REFERENCES posts(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		"INSERT INTO users (name, email) VALUES ('Alice', 'alice@example.com')",
		"INSERT INTO users (name, email) VALUES ('Bob', NULL)",
		"INSERT INTO users (name, email) VALUES ('Charlie', 'charlie@example.com')",
		"INSERT INTO users (name, email) VALUES ('Diana', 'diana@example.com')",
		"INSERT INTO users (name, email) VALUES ('Eve', NULL)",

		"INSERT INTO posts (user_id, title, body) VALUES (1, 'First Post', 'Hello world')",
		"INSERT INTO posts (user_id, title, body) VALUES (2, 'Bobs Post', 'Content here')",
		"INSERT INTO posts (user_id, title, body) VALUES (3, 'Thoughts', 'Some thoughts')",
		"INSERT INTO posts (user_id, title, body) VALUES (4, 'Update', NULL)",
		"INSERT INTO posts (user_id, title, body) VALUES (5, 'Hello', 'Eve here')",

		"INSERT INTO comments (post_id, user_id, content) VALUES (1, 2, 'Nice post!')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (1, 3, 'Great read')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (2, 1, 'Thanks Bob')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (2, 4, 'Interesting')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (3, 5, 'I agree')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (3, 1, 'Me too')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (4, 2, 'Good update')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (4, 3, 'Thanks')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (5, 1, 'Welcome Eve')",
		"INSERT INTO comments (post_id, user_id, content) VALUES (5, 4, 'Hi Eve!')",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed sqlite %q: %v", stmt[:min(len(stmt), 60)], err)
		}
	}
}

// seedSQLiteCircular builds a teams↔employees pair: every employee belongs to
// a team and every team names a lead employee. SQLite does not enforce
// foreign keys by default, so the forward reference seeds cleanly.
func seedSQLiteCircular(t *testing.T, dbPath string) {
	t.Helper()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite for seeding: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			lead_id INTEGER NOT NULL,
			FOREIGN KEY (lead_id) REFERENCES employees(id)
		)`,
		`CREATE TABLE employees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			team_id INTEGER NOT NULL,
			FOREIGN KEY (team_id) REFERENCES teams(id)
		)`,

		"INSERT INTO teams (name, lead_id) VALUES ('Platform', 1)",
		"INSERT INTO teams (name, lead_id) VALUES ('Data', 3)",

		"INSERT INTO employees (name, team_id) VALUES ('Alice', 1)",
		"INSERT INTO employees (name, team_id) VALUES ('Bob', 1)",
		"INSERT INTO employees (name, team_id) VALUES ('Charlie', 2)",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed sqlite %q: %v", stmt[:min(len(stmt), 60)], err)
		}
	}
}

// seedSQLiteResume builds three independent tables: items has an integer
// primary key (keyset pagination), events has no primary key at all, and
// notes is a plain keyed table.
func seedSQLiteResume(t *testing.T, dbPath string) {
	t.Helper()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite for seeding: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL
		)`,
		`CREATE TABLE events (
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT
		)`,
		`CREATE TABLE notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			body TEXT
		)`,

		"INSERT INTO items (label) VALUES ('alpha')",
		"INSERT INTO items (label) VALUES ('bravo')",
		"INSERT INTO items (label) VALUES ('charlie')",
		"INSERT INTO items (label) VALUES ('delta')",
		"INSERT INTO items (label) VALUES ('echo')",

		"INSERT INTO events (seq, kind, detail) VALUES (1, 'start', NULL)",
		"INSERT INTO events (seq, kind, detail) VALUES (2, 'tick', 'first')",
		"INSERT INTO events (seq, kind, detail) VALUES (3, 'tick', 'second')",
		"INSERT INTO events (seq, kind, detail) VALUES (4, 'stop', NULL)",

		"INSERT INTO notes (body) VALUES ('one')",
		"INSERT INTO notes (body) VALUES ('two')",
		"INSERT INTO notes (body) VALUES ('three')",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed sqlite %q: %v", stmt[:min(len(stmt), 60)], err)
		}
	}
}

func assertRowCount(t *testing.T, pool *pgxpool.Pool, schema, table string, want int) {
	t.Helper()
	var got int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", pgIdent(schema), pgIdent(table))
	if err := pool.QueryRow(context.Background(), q).Scan(&got); err != nil {
		t.Fatalf("count %s.%s: %v", schema, table, err)
	}
	if got != want {
		t.Errorf("%s.%s row count: got %d, want %d", schema, table, got, want)
	}
}

func assertPKExists(t *testing.T, pool *pgxpool.Pool, schema, table string) {
	t.Helper()
	var count int
	err := pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM pg_constraint c
		JOIN pg_namespace n ON n.oid = c.connamespace
		JOIN pg_class r ON r.oid = c.conrelid
		WHERE n.nspname = $1 AND r.relname = $2 AND c.contype = 'p'
	`, schema, table).Scan(&count)
	if err != nil {
		t.Fatalf("check PK on %s.%s: %v", schema, table, err)
	}
	if count == 0 {
		t.Errorf("no primary key found on %s.%s", schema, table)
	}
}

func assertFKExists(t *testing.T, pool *pgxpool.Pool, schema, fromTable, toTable string) {
	t.Helper()
	var count int
	err := pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM pg_constraint c
		JOIN pg_namespace n ON n.oid = c.connamespace
		JOIN pg_class src ON src.oid = c.conrelid
		JOIN pg_class dst ON dst.oid = c.confrelid
		WHERE n.nspname = $1 AND src.relname = $2 AND dst.relname = $3 AND c.contype = 'f'
	`, schema, fromTable, toTable).Scan(&count)
	if err != nil {
		t.Fatalf("check FK %s.%s→%s: %v", schema, fromTable, toTable, err)
	}
	if count == 0 {
		t.Errorf("no foreign key from %s.%s → %s.%s", schema, fromTable, schema, toTable)
	}
}

func assertFKDeferrable(t *testing.T, pool *pgxpool.Pool, schema, fromTable, toTable string) {
	t.Helper()
	var deferrable bool
	err := pool.QueryRow(context.Background(), `
		SELECT bool_and(c.condeferrable) FROM pg_constraint c
		JOIN pg_namespace n ON n.oid = c.connamespace
		JOIN pg_class src ON src.oid = c.conrelid
		JOIN pg_class dst ON dst.oid = c.confrelid
		WHERE n.nspname = $1 AND src.relname = $2 AND dst.relname = $3 AND c.contype = 'f'
	`, schema, fromTable, toTable).Scan(&deferrable)
	if err != nil {
		t.Fatalf("check deferrable FK %s.%s→%s: %v", schema, fromTable, toTable, err)
	}
	if !deferrable {
		t.Errorf("foreign key %s.%s → %s.%s should be deferrable", schema, fromTable, schema, toTable)
	}
}
