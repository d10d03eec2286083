package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Source               SourceConfig      `toml:"source"`
	Target               TargetConfig      `toml:"target"`
	Schema               string            `toml:"schema"`
	OnSchemaExists       string            `toml:"on_schema_exists"` // error|recreate
	SchemaOnly           bool              `toml:"schema_only"`
	DataOnly             bool              `toml:"data_only"` // resume: skip schema prep and table creation; constraints still attach
	UnloggedTables       bool              `toml:"unlogged_tables"`
	PreserveDefaults     bool              `toml:"preserve_defaults"`
	SnakeCaseIdentifiers bool              `toml:"snake_case_identifiers"`
	Workers              int               `toml:"workers"`
	BatchSize            int               `toml:"batch_size"`
	MaxRetries           int               `toml:"max_retries"`
	SampleRows           int               `toml:"sample_rows"`
	SkipProcedures       bool              `toml:"skip_procedures"`
	Hooks                HooksConfig       `toml:"hooks"`
	TypeMapping          TypeMappingConfig `toml:"type_mapping"`

	// configDir is the directory containing the TOML file, used to resolve relative SQL paths.
	configDir string
}

// SourceConfig identifies the source database engine and connection string.
type SourceConfig struct {
	Type string `toml:"type"` // "sqlanywhere", "mysql" or "sqlite"
	DSN  string `toml:"dsn"`
}

// TargetConfig identifies the PostgreSQL target. When the host is not
// loopback, the DSN must request TLS (sslmode=require or stronger) unless
// allow_insecure is set for private-network targets.
type TargetConfig struct {
	DSN           string `toml:"dsn"`
	AllowInsecure bool   `toml:"allow_insecure"`
}

// HooksConfig lists operator SQL files run at fixed pipeline points.
type HooksConfig struct {
	BeforeData        []string `toml:"before_data"`
	AfterData         []string `toml:"after_data"`
	BeforeConstraints []string `toml:"before_constraints"`
	AfterAll          []string `toml:"after_all"`
}

// TypeMappingConfig controls explicit, opt-in type coercions. The mapper
// never widens or guesses by default: unsigned integers and unmapped source
// types are errors until the operator decides via these options.
type TypeMappingConfig struct {
	WidenUnsignedIntegers bool              `toml:"widen_unsigned_integers"`
	UUIDColumns           bool              `toml:"uniqueidentifier_as_uuid"`
	CharAsVarchar         bool              `toml:"char_as_varchar"`
	JSONAsJSONB           bool              `toml:"json_as_jsonb"`
	SetMode               string            `toml:"set_mode"` // text|text_array (MySQL only)
	UnknownAsText         bool              `toml:"unknown_as_text"`
	SanitizeNullBytes     bool              `toml:"sanitize_null_bytes"`
	Overrides             map[string]string `toml:"overrides"` // source type → PG type, operator-decided
}

// loadConfig reads a TOML config file and returns a MigrationConfig with defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		OnSchemaExists:       "error",
		PreserveDefaults:     true,
		SnakeCaseIdentifiers: true,
		BatchSize:            5000,
		MaxRetries:           3,
		SampleRows:           100,
		TypeMapping:          defaultTypeMappingConfig(),
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers()
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative")
	}
	if cfg.SampleRows <= 0 {
		return nil, fmt.Errorf("sample_rows must be positive")
	}

	cfg.Schema = strings.TrimSpace(cfg.Schema)
	if cfg.Schema == "" {
		return nil, fmt.Errorf("schema is required")
	}

	switch cfg.OnSchemaExists {
	case "error", "recreate":
	default:
		return nil, fmt.Errorf("on_schema_exists must be one of: error, recreate")
	}
	switch cfg.TypeMapping.SetMode {
	case "text", "text_array":
	default:
		return nil, fmt.Errorf("type_mapping.set_mode must be one of: text, text_array")
	}
	for src, pg := range cfg.TypeMapping.Overrides {
		if strings.TrimSpace(src) == "" || strings.TrimSpace(pg) == "" {
			return nil, fmt.Errorf("type_mapping.overrides entries must map a source type to a PG type")
		}
	}

	if cfg.SchemaOnly && cfg.DataOnly {
		return nil, fmt.Errorf("schema_only and data_only are mutually exclusive")
	}

	if cfg.Source.Type == "" {
		return nil, fmt.Errorf("source.type is required (must be sqlanywhere, mysql or sqlite)")
	}
	src, err := newSourceDB(cfg.Source.Type)
	if err != nil {
		return nil, err
	}
	if cfg.Source.DSN == "" {
		return nil, fmt.Errorf("source.dsn is required")
	}
	if err := src.ValidateTypeMapping(cfg.TypeMapping); err != nil {
		return nil, err
	}
	if max := src.MaxWorkers(); max > 0 && cfg.Workers > max {
		cfg.Workers = max
	}

	if cfg.Target.DSN == "" {
		return nil, fmt.Errorf("target.dsn is required")
	}
	if err := checkTargetTransport(cfg.Target); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkTargetTransport enforces encrypted transport for non-local targets.
// Managed cloud targets cross a public network; plaintext is refused unless
// the operator explicitly allows it for a private-network host.
func checkTargetTransport(target TargetConfig) error {
	host, sslmode, err := parseTargetDSN(target.DSN)
	if err != nil {
		return err
	}
	if isLoopbackHost(host) || target.AllowInsecure {
		return nil
	}
	switch sslmode {
	case "require", "verify-ca", "verify-full":
		return nil
	}
	return fmt.Errorf("target host %q is remote: dsn must set sslmode=require (or stronger), or set target.allow_insecure for private networks", host)
}

// parseTargetDSN extracts host and sslmode from a postgres:// URL or
// keyword/value DSN.
func parseTargetDSN(dsn string) (host, sslmode string, err error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse target dsn: %w", err)
		}
		return u.Hostname(), u.Query().Get("sslmode"), nil
	}
	// keyword/value form: host=... sslmode=...
	for _, field := range strings.Fields(dsn) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "host":
			host = v
		case "sslmode":
			sslmode = v
		}
	}
	if host == "" {
		return "", "", fmt.Errorf("target dsn has no recognizable host")
	}
	return host, sslmode, nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" || host == "" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	// Unix-socket directory paths count as local.
	return strings.HasPrefix(host, "/")
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

func defaultTypeMappingConfig() TypeMappingConfig {
	return TypeMappingConfig{
		WidenUnsignedIntegers: false,
		UUIDColumns:           true,
		CharAsVarchar:         false,
		JSONAsJSONB:           false,
		SetMode:               "text",
		UnknownAsText:         false,
		SanitizeNullBytes:     true,
	}
}
