package config

import "testing"

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: "postgres://localhost/seriesdb", MaxConns: 10, MinConns: 2},
		Import:   ImportConfig{SourceTag: "catalog-dump"},
	}
}

func TestValidateOK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateMissingDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Database.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing DSN")
	}
}

func TestValidateConnBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Database.MaxConns = 1
	cfg.Database.MinConns = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for max_conns < min_conns")
	}
}

func TestValidateEmptySourceTag(t *testing.T) {
	cfg := validConfig()
	cfg.Import.SourceTag = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for empty source_tag")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DSN", "postgres://localhost/seriesdb_test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/seriesdb_test" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Import.SourceTag != "catalog-dump" {
		t.Errorf("Import.SourceTag = %q, want default catalog-dump", cfg.Import.SourceTag)
	}
}
