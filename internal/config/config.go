package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"schema-sync/pkg/types"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize    = 500
	DefaultWorkers      = 1
	DefaultQueryTimeout = 5 * time.Minute
	DefaultSchemaFile   = "schema.sql"
	DefaultReportPath   = "schema_report.txt"
	DefaultLogPath      = "logs/schema-sync.log"
	DefaultHeartbeat    = 10
)

var supportedTypes = map[string]bool{
	"mysql":    true,
	"sqlite":   true,
	"postgres": true,
}

// LoadConfig loads configuration from config.yaml file
func LoadConfig(configPath string) (*types.Config, error) {
	// If no path provided, use default
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// .env only fills variables that are not already set in the process environment.
	if _, err := os.Stat(".env"); err == nil {
		if m, err := godotenv.Read(".env"); err == nil {
			for k, v := range m {
				if os.Getenv(k) == "" {
					os.Setenv(k, v)
				}
			}
		}
	}

	return Parse(data)
}

// Parse expands ${VAR} placeholders from the environment, decodes the YAML document,
// applies defaults and validates the result.
func Parse(data []byte) (*types.Config, error) {
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	config := types.Config{
		Migration: types.Migration{
			QueryTimeout:   DefaultQueryTimeout,
			CreateDatabase: true,
			ValidateCounts: true,
		},
	}
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ApplyOverrides copies flag and environment values bound in v over the file
// configuration. Only keys that were explicitly set take effect.
func ApplyOverrides(config *types.Config, v *viper.Viper) error {
	if v == nil {
		return nil
	}
	if v.IsSet("migration.chunk_size") {
		config.Migration.ChunkSize = v.GetInt("migration.chunk_size")
	}
	if v.IsSet("migration.workers") {
		config.Migration.Workers = v.GetInt("migration.workers")
	}
	if v.IsSet("migration.query_timeout") {
		config.Migration.QueryTimeout = v.GetDuration("migration.query_timeout")
	}
	if v.IsSet("migration.dry_run") {
		config.Migration.DryRun = v.GetBool("migration.dry_run")
	}
	if v.IsSet("compare.schema_file") {
		config.Compare.SchemaFile = v.GetString("compare.schema_file")
	}
	if v.IsSet("compare.report_path") {
		config.Compare.ReportPath = v.GetString("compare.report_path")
	}
	if v.IsSet("processing.log_level") {
		config.Processing.LogLevel = v.GetString("processing.log_level")
	}
	return validateConfig(config)
}

// NewViper returns a viper instance reading SCHEMASYNC_* environment variables,
// e.g. SCHEMASYNC_MIGRATION_CHUNK_SIZE for migration.chunk_size.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("schemasync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"migration.chunk_size",
		"migration.workers",
		"migration.query_timeout",
		"migration.dry_run",
		"compare.schema_file",
		"compare.report_path",
		"processing.log_level",
	} {
		// AutomaticEnv only resolves keys viper already knows about.
		_ = v.BindEnv(key)
	}
	return v
}

func applyDefaults(config *types.Config) {
	if config.Migration.ChunkSize == 0 {
		config.Migration.ChunkSize = DefaultChunkSize
	}
	if config.Migration.Workers == 0 {
		config.Migration.Workers = DefaultWorkers
	}
	if config.Compare.SchemaFile == "" {
		config.Compare.SchemaFile = DefaultSchemaFile
	}
	if config.Compare.ReportPath == "" {
		config.Compare.ReportPath = DefaultReportPath
	}
	if config.Processing.LogPath == "" {
		config.Processing.LogPath = DefaultLogPath
	}
	if config.Processing.HeartbeatBatchInterval <= 0 {
		config.Processing.HeartbeatBatchInterval = DefaultHeartbeat
	}
	config.Migration.HeartbeatBatchInterval = config.Processing.HeartbeatBatchInterval

	for _, db := range []*types.Database{&config.Source, &config.Target} {
		db.Type = strings.ToLower(db.Type)
		if db.Port == 0 {
			switch db.Type {
			case "mysql":
				db.Port = 3306
			case "postgres":
				db.Port = 5432
			}
		}
	}
}

// validateConfig performs basic validation on the configuration
func validateConfig(config *types.Config) error {
	if err := validateDatabase("source", &config.Source); err != nil {
		return err
	}
	if err := validateDatabase("target", &config.Target); err != nil {
		return err
	}

	if config.Migration.ChunkSize <= 0 {
		return fmt.Errorf("migration.chunk_size must be positive, got %d", config.Migration.ChunkSize)
	}
	if config.Migration.Workers < 1 {
		return fmt.Errorf("migration.workers must be at least 1, got %d", config.Migration.Workers)
	}
	if config.Migration.QueryTimeout < 0 {
		return fmt.Errorf("migration.query_timeout must not be negative")
	}

	return nil
}

func validateDatabase(role string, db *types.Database) error {
	if db.Type == "" {
		return fmt.Errorf("%s.type is required", role)
	}
	if !supportedTypes[db.Type] {
		return fmt.Errorf("%s.type %q is not supported (mysql, sqlite, postgres)", role, db.Type)
	}
	if db.Type != "sqlite" && db.Host == "" {
		return fmt.Errorf("%s.host is required", role)
	}
	if db.Database == "" {
		return fmt.Errorf("%s.database is required", role)
	}
	return nil
}
