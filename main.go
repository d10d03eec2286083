package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"anyferry/adapter"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "anyferry [config.toml]",
	Short:   "SQL Anywhere to PostgreSQL migration tool",
	Version: versionString(),
	Args:    cobra.MaximumNArgs(1),
	RunE:    runMigration,
}

var planCmd = &cobra.Command{
	Use:   "plan [config.toml]",
	Short: "Discover the source schema and print the phased migration plan",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

var validateCmd = &cobra.Command{
	Use:   "validate [config.toml]",
	Short: "Re-run validation checks against an already-migrated target",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

var callCmd = &cobra.Command{
	Use:   "call [config.toml] <procedure> [args...]",
	Short: "Invoke a migrated procedure on the target through the adapter",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCall,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to migration TOML config file")
	rootCmd.AddCommand(planCmd, validateCmd, callCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig loads the config named by the positional arg or --config flag.
func resolveConfig(args []string) (*MigrationConfig, error) {
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return nil, fmt.Errorf("config file required: anyferry <config.toml> or anyferry --config <config.toml>")
	}
	return loadConfig(cfgPath)
}

// discover opens the source, introspects its catalog, and reports
// compatibility findings. The returned *sql.DB stays open for validation.
func discover(ctx context.Context, cfg *MigrationConfig) (SourceDB, *Catalog, *SourceObjects, error) {
	src, err := newSourceDB(cfg.Source.Type)
	if err != nil {
		return nil, nil, nil, err
	}
	src.SetSnakeCaseIdentifiers(cfg.SnakeCaseIdentifiers)

	log.Printf("connecting to %s...", src.Name())
	db, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open source: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("ping source: %w", err)
	}

	dbName, err := src.ExtractDBName(cfg.Source.DSN)
	if err != nil {
		return nil, nil, nil, err
	}

	log.Printf("discovering %s schema '%s'...", src.Name(), dbName)
	catalog, err := src.DiscoverCatalog(db, dbName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("discover catalog: %w", err)
	}
	log.Printf("found %d tables, %d procedures", len(catalog.Tables), len(catalog.Procedures))
	for _, t := range catalog.Tables {
		log.Printf("  %s → %s (%d cols, %d indexes, %d fks)",
			t.SourceName, t.PGName, len(t.Columns), len(t.Indexes), len(t.ForeignKeys))
	}
	for _, w := range collectComputedColumnWarnings(catalog) {
		log.Printf("  WARN: %s", w)
	}
	if warnings := collectIndexCompatibilityWarnings(catalog); len(warnings) > 0 {
		log.Printf("index compatibility report: %d index(es) may require manual handling", len(warnings))
		for _, w := range warnings {
			log.Printf("  WARN: %s", w)
		}
	}

	objs, err := src.IntrospectSourceObjects(db, dbName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("introspect source objects: %w", err)
	}
	for _, w := range sourceObjectWarnings(objs) {
		log.Printf("  WARN: %s", w)
	}

	// Unmapped types fail here, before anything touches the target.
	if errs := collectUnmappedTypeErrors(src, catalog, cfg.TypeMapping); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("  ERROR: %s", e)
		}
		return nil, nil, nil, fmt.Errorf("%d column(s) have no type mapping; add type_mapping overrides or opt-ins", len(errs))
	}

	return src, catalog, objs, nil
}

func runMigration(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	start := time.Now()

	log.Printf("anyferry %s — %s → PostgreSQL migration", versionString(), cfg.Source.Type)
	log.Printf("config: workers=%d schema=%s on_schema_exists=%s unlogged_tables=%t batch_size=%d max_retries=%d",
		cfg.Workers, cfg.Schema, cfg.OnSchemaExists, cfg.UnloggedTables, cfg.BatchSize, cfg.MaxRetries)

	src, catalog, _, err := discover(ctx, cfg)
	if err != nil {
		return err
	}

	plan, err := buildPlan(catalog)
	if err != nil {
		return err
	}
	log.Printf("migration plan:\n%s", describePlan(catalog, plan))

	log.Printf("connecting to PostgreSQL...")
	pool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	if !cfg.DataOnly {
		log.Printf("preparing schema '%s'...", cfg.Schema)
		if err := prepareTargetSchema(ctx, pool, cfg.Schema, cfg.OnSchemaExists); err != nil {
			return err
		}
	}
	if err := ensureProgressTable(ctx, pool, cfg.Schema); err != nil {
		return err
	}
	if err := ensureValidationTable(ctx, pool, cfg.Schema); err != nil {
		return err
	}

	if !cfg.DataOnly {
		log.Printf("creating tables...")
		for _, phase := range plan.Phases {
			if err := createPhaseTables(ctx, pool, src, catalog, phase, cfg); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
		}
	}

	if cfg.SchemaOnly {
		for i := range plan.Phases {
			if err := finishPhase(ctx, pool, cfg, catalog, &plan.Phases[i]); err != nil {
				return fmt.Errorf("phase %d constraints: %w", i, err)
			}
		}
		if !cfg.SkipProcedures {
			if err := applyProcedures(ctx, pool, translateProcedures(src, catalog, cfg.TypeMapping, cfg.Schema)); err != nil {
				return err
			}
		}
		log.Printf("schema-only migration completed in %s", time.Since(start).Round(time.Millisecond))
		return nil
	}

	if err := runHookFiles(ctx, pool, cfg, cfg.Hooks.BeforeData, "before_data"); err != nil {
		return fmt.Errorf("before_data hooks: %w", err)
	}

	// Validation reads the source directly; keep one connection for it.
	valDB, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		return fmt.Errorf("open source for validation: %w", err)
	}
	defer valDB.Close()
	valDB.SetMaxOpenConns(1)

	// Each phase loads, gets its constraints, and must validate clean
	// before the next phase starts.
	for i := range plan.Phases {
		phase := &plan.Phases[i]
		tag := ""
		if phase.Deferred {
			tag = " (deferred constraint group)"
		}
		log.Printf("phase %d%s: migrating %d tables with %d workers...", phase.Index, tag, len(phase.Tables), cfg.Workers)
		if err := migratePhaseData(ctx, cfg, src, pool, catalog, phase); err != nil {
			return fmt.Errorf("phase %d data: %w", phase.Index, err)
		}
		// Constraints attach even on data-only re-runs: an interrupted
		// migration resumes with data_only, and the tables it completes
		// still need their PKs, indexes, and FKs. Attachment is
		// re-entrant, so phases the first run finished are unaffected.
		if err := runHookFiles(ctx, pool, cfg, cfg.Hooks.BeforeConstraints, "before_constraints"); err != nil {
			return fmt.Errorf("before_constraints hooks: %w", err)
		}
		if err := finishPhase(ctx, pool, cfg, catalog, phase); err != nil {
			return fmt.Errorf("phase %d constraints: %w", phase.Index, err)
		}
		log.Printf("phase %d: validating...", phase.Index)
		recs, err := validatePhase(ctx, cfg, src, valDB, pool, catalog, phase)
		if err != nil {
			return fmt.Errorf("phase %d validation: %w", phase.Index, err)
		}
		logValidationRecords(recs)
		if err := storeValidationRecords(ctx, pool, cfg.Schema, recs); err != nil {
			return err
		}
		if failed := failedChecks(recs); len(failed) > 0 {
			return fmt.Errorf("phase %d failed %d validation check(s); halting before phase %d", phase.Index, len(failed), phase.Index+1)
		}
	}

	if err := runHookFiles(ctx, pool, cfg, cfg.Hooks.AfterData, "after_data"); err != nil {
		return fmt.Errorf("after_data hooks: %w", err)
	}

	log.Printf("resetting sequences...")
	if err := resetSequences(ctx, pool, catalog, cfg.Schema); err != nil {
		return fmt.Errorf("sequences: %w", err)
	}

	if !cfg.SkipProcedures && len(catalog.Procedures) > 0 {
		log.Printf("translating %d procedures...", len(catalog.Procedures))
		translations := translateProcedures(src, catalog, cfg.TypeMapping, cfg.Schema)
		if err := applyProcedures(ctx, pool, translations); err != nil {
			return err
		}
		recs, err := validateProcedures(ctx, pool, cfg, catalog, translations)
		if err != nil {
			return err
		}
		logValidationRecords(recs)
		if err := storeValidationRecords(ctx, pool, cfg.Schema, recs); err != nil {
			return err
		}
	}

	if err := runHookFiles(ctx, pool, cfg, cfg.Hooks.AfterAll, "after_all"); err != nil {
		return fmt.Errorf("after_all hooks: %w", err)
	}

	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}
	_, catalog, _, err := discover(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	plan, err := buildPlan(catalog)
	if err != nil {
		return err
	}
	fmt.Println(describePlan(catalog, plan))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	src, catalog, _, err := discover(ctx, cfg)
	if err != nil {
		return err
	}
	plan, err := buildPlan(catalog)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := ensureValidationTable(ctx, pool, cfg.Schema); err != nil {
		return err
	}

	valDB, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer valDB.Close()
	valDB.SetMaxOpenConns(1)

	var all []ValidationRecord
	for i := range plan.Phases {
		recs, err := validatePhase(ctx, cfg, src, valDB, pool, catalog, &plan.Phases[i])
		if err != nil {
			return err
		}
		all = append(all, recs...)
	}
	logValidationRecords(all)
	if err := storeValidationRecords(ctx, pool, cfg.Schema, all); err != nil {
		return err
	}
	if failed := failedChecks(all); len(failed) > 0 {
		return fmt.Errorf("%d validation check(s) failed", len(failed))
	}
	log.Printf("all %d checks passed", len(all))
	return nil
}

// runCall exercises a migrated procedure the way client applications do,
// through the adapter package.
func runCall(cmd *cobra.Command, args []string) error {
	var procArgs []string
	cfg, err := resolveConfig(args)
	if err == nil {
		procArgs = args[1:]
	} else {
		// No config positional; fall back to the flag.
		cfg, err = resolveConfig(nil)
		if err != nil {
			return err
		}
		procArgs = args
	}
	if len(procArgs) == 0 {
		return fmt.Errorf("procedure name required")
	}

	ctx := cmd.Context()
	ad := adapter.NewPostgres(adapter.Config{DSN: cfg.Target.DSN, Schema: cfg.Schema})
	if err := ad.Connect(ctx); err != nil {
		return err
	}
	defer ad.Close()

	callArgs := make([]any, len(procArgs)-1)
	for i, a := range procArgs[1:] {
		callArgs[i] = a
	}
	res, err := ad.Call(ctx, procArgs[0], callArgs...)
	if err != nil {
		return err
	}

	fmt.Println(formatResult(res))
	return nil
}

func formatResult(res *adapter.Result) string {
	out := ""
	for i, c := range res.Columns {
		if i > 0 {
			out += "\t"
		}
		out += c
	}
	for _, row := range res.Rows {
		out += "\n"
		for i, v := range row {
			if i > 0 {
				out += "\t"
			}
			out += fmt.Sprintf("%v", v)
		}
	}
	return out
}

type schemaExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// prepareTargetSchema creates the target schema, honoring the configured
// conflict behavior.
func prepareTargetSchema(ctx context.Context, exec schemaExecutor, schema, onSchemaExists string) error {
	switch onSchemaExists {
	case "recreate":
		if _, err := exec.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(schema))); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	case "error":
		var exists bool
		if err := exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)", schema).Scan(&exists); err != nil {
			return fmt.Errorf("check schema existence: %w", err)
		}
		if exists {
			return fmt.Errorf("schema %q already exists in target database (on_schema_exists=error)", schema)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	default:
		return fmt.Errorf("unsupported on_schema_exists value %q", onSchemaExists)
	}
	return nil
}
