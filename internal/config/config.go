package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Import   ImportConfig   `yaml:"import"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds destination PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// SourceConfig holds source catalog settings: where the raw export lives and
// where the indexed snapshot is materialized.
type SourceConfig struct {
	DumpPath     string `yaml:"dump_path"     env:"SOURCE_DUMP_PATH"`
	SnapshotPath string `yaml:"snapshot_path" env:"SOURCE_SNAPSHOT_PATH" env-default:"./catalog-snapshot.db"`
}

// ImportConfig holds reconciliation engine settings.
type ImportConfig struct {
	// SourceTag labels provenance records written by the engine.
	SourceTag string `yaml:"source_tag" env:"IMPORT_SOURCE_TAG" env-default:"catalog-dump"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
