package types

import "time"

// Config represents the main configuration structure
type Config struct {
	Version    string     `yaml:"version"`
	Source     Database   `yaml:"source"`
	Target     Database   `yaml:"target"`
	Migration  Migration  `yaml:"migration"`
	Compare    Compare    `yaml:"compare"`
	Processing Processing `yaml:"processing"`
}

// Database holds connection configuration for one instance.
// For sqlite, Database is the path of the database file and Host/Port are ignored.
type Database struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// WithoutDatabase returns a copy of the configuration with no database selected,
// used for server-level administration such as creating the target database.
func (d Database) WithoutDatabase() Database {
	d.Database = ""
	return d
}

// Migration holds replication options
type Migration struct {
	ChunkSize      int           `yaml:"chunk_size"`
	Workers        int           `yaml:"workers"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	CreateDatabase bool          `yaml:"create_database"`
	ValidateCounts bool          `yaml:"validate_counts"`
	DryRun         bool          `yaml:"dry_run"`
	// HeartbeatBatchInterval controls how many batches between PROGRESS lines.
	// It is copied from the processing section when a run starts.
	HeartbeatBatchInterval int `yaml:"-"`
}

// Compare holds schema comparison options
type Compare struct {
	SchemaFile string `yaml:"schema_file"`
	ReportPath string `yaml:"report_path"`
}

// Processing holds processing configuration
type Processing struct {
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
	// HeartbeatBatchInterval controls how many batches between PROGRESS heartbeats
	HeartbeatBatchInterval int `yaml:"heartbeat_batch_interval"`
}
