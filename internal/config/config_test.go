package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
version: "1"
source:
  type: mysql
  host: ${SYNC_TEST_HOST}
  user: root
  password: ${SYNC_TEST_PASSWORD}
  database: archeryhub
target:
  type: sqlite
  database: mirror.db
migration:
  workers: 4
  query_timeout: 90s
`

func TestParseExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("SYNC_TEST_HOST", "db.internal")
	t.Setenv("SYNC_TEST_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Source.Host != "db.internal" || cfg.Source.Password != "s3cret" {
		t.Errorf("env placeholders not expanded: %+v", cfg.Source)
	}
	if cfg.Source.Port != 3306 {
		t.Errorf("expected default mysql port 3306, got %d", cfg.Source.Port)
	}
	if cfg.Migration.ChunkSize != DefaultChunkSize {
		t.Errorf("expected default chunk size %d, got %d", DefaultChunkSize, cfg.Migration.ChunkSize)
	}
	if cfg.Migration.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Migration.Workers)
	}
	if cfg.Migration.QueryTimeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %s", cfg.Migration.QueryTimeout)
	}
	if !cfg.Migration.CreateDatabase || !cfg.Migration.ValidateCounts {
		t.Errorf("create_database and validate_counts should default to true")
	}
	if cfg.Compare.ReportPath != DefaultReportPath {
		t.Errorf("unexpected report path %q", cfg.Compare.ReportPath)
	}
	if cfg.Migration.HeartbeatBatchInterval != DefaultHeartbeat {
		t.Errorf("heartbeat interval not propagated: %d", cfg.Migration.HeartbeatBatchInterval)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing source type",
			doc:  "source: {host: a, database: b}\ntarget: {type: sqlite, database: t.db}",
			want: "source.type is required",
		},
		{
			name: "unsupported engine",
			doc:  "source: {type: oracle, host: a, database: b}\ntarget: {type: sqlite, database: t.db}",
			want: "not supported",
		},
		{
			name: "missing host",
			doc:  "source: {type: mysql, database: b}\ntarget: {type: sqlite, database: t.db}",
			want: "source.host is required",
		},
		{
			name: "missing target database",
			doc:  "source: {type: sqlite, database: s.db}\ntarget: {type: mysql, host: h}",
			want: "target.database is required",
		},
		{
			name: "negative chunk size",
			doc:  "source: {type: sqlite, database: s.db}\ntarget: {type: sqlite, database: t.db}\nmigration: {chunk_size: -1}",
			want: "chunk_size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyOverridesFromEnv(t *testing.T) {
	cfg, err := Parse([]byte("source: {type: sqlite, database: s.db}\ntarget: {type: sqlite, database: t.db}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	t.Setenv("SCHEMASYNC_MIGRATION_CHUNK_SIZE", "250")
	t.Setenv("SCHEMASYNC_COMPARE_REPORT_PATH", "drift.txt")

	if err := ApplyOverrides(cfg, NewViper()); err != nil {
		t.Fatalf("ApplyOverrides failed: %v", err)
	}
	if cfg.Migration.ChunkSize != 250 {
		t.Errorf("expected chunk size 250, got %d", cfg.Migration.ChunkSize)
	}
	if cfg.Compare.ReportPath != "drift.txt" {
		t.Errorf("expected report path override, got %q", cfg.Compare.ReportPath)
	}
	if cfg.Migration.Workers != DefaultWorkers {
		t.Errorf("unset override changed workers to %d", cfg.Migration.Workers)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "source: {type: sqlite, database: s.db}\ntarget: {type: sqlite, database: t.db}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Target.Database != "t.db" {
		t.Errorf("unexpected target database %q", cfg.Target.Database)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
