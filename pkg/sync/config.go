package sync

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Insert modes.
const (
	InsertModeServer = "server"
	InsertModeClient = "client"
)

// Config represents the complete sync configuration
type Config struct {
	Version string     `yaml:"version"`
	Sync    SyncConfig `yaml:"sync"`
}

// SyncConfig contains the main sync configuration
type SyncConfig struct {
	Name string `yaml:"name"`
	// Interval between cycles when running continuously.
	Interval    time.Duration     `yaml:"interval"`
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Tables      []TableConfig     `yaml:"tables"`
	Performance PerformanceConfig `yaml:"performance"`
	History     HistoryConfig     `yaml:"history"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SourceConfig describes where source tables are described from. The
// statements always run on the destination, which must be able to read
// the source tables (foreign tables, ATTACH, or the same database).
// Without a DSN the source tables are described through the destination.
type SourceConfig struct {
	Type            string `yaml:"type,omitempty"`
	DSN             string `yaml:"dsn,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"` // MySQL option file
	Schema          string `yaml:"schema,omitempty"`
}

// DestinationConfig defines the database the sync statements run on.
type DestinationConfig struct {
	Type   string   `yaml:"type"` // postgresql, mysql, sqlite, duckdb
	DSN    string   `yaml:"dsn"`
	Schema string   `yaml:"schema,omitempty"`
	Init   []string `yaml:"init,omitempty"`
}

// TableConfig defines one source/destination table pair.
type TableConfig struct {
	Name              string   `yaml:"name"`
	SourceTable       string   `yaml:"source_table"`
	DestinationTable  string   `yaml:"destination_table"`
	SourceSchema      string   `yaml:"source_schema,omitempty"`
	DestinationSchema string   `yaml:"destination_schema,omitempty"`
	PrimaryKey        []string `yaml:"primary_key,omitempty"`
	TimestampColumn   string   `yaml:"timestamp_column,omitempty"`
	DeletedColumn     string   `yaml:"deleted_column,omitempty"`
	Revive            bool     `yaml:"revive"`
	InsertMode        string   `yaml:"insert_mode"`
	BatchSize         int      `yaml:"batch_size"`
}

// PerformanceConfig defines performance tuning parameters
type PerformanceConfig struct {
	Threads    int `yaml:"threads"`
	MaxRetries int `yaml:"max_retries"`
}

// HistoryConfig defines where cycle results are recorded.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Table   string `yaml:"table"`
}

// MetricsConfig defines the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // file path or stdout
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate checks if the configuration is valid and fills in defaults.
func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("version is required")
	}
	if c.Sync.Name == "" {
		return errors.New("sync.name is required")
	}
	if c.Sync.Destination.Type == "" {
		return errors.New("sync.destination.type is required")
	}
	if ParseTargetType(c.Sync.Destination.Type) == TargetTypeUnknown {
		return fmt.Errorf("unsupported destination type: %s", c.Sync.Destination.Type)
	}
	if c.Sync.Destination.DSN == "" {
		return errors.New("sync.destination.dsn is required")
	}
	if c.Sync.Source.DSN != "" {
		if c.Sync.Source.Type == "" {
			return errors.New("sync.source.type is required when sync.source.dsn is set")
		}
		if ParseTargetType(c.Sync.Source.Type) == TargetTypeUnknown {
			return fmt.Errorf("unsupported source type: %s", c.Sync.Source.Type)
		}
	}
	if c.Sync.Source.CredentialsFile != "" && ParseTargetType(c.Sync.Source.Type) != TargetTypeMySQL {
		return errors.New("sync.source.credentials_file is only supported for mysql sources")
	}
	if c.Sync.Interval < 0 {
		return errors.New("sync.interval must not be negative")
	}

	if len(c.Sync.Tables) == 0 {
		return errors.New("at least one table is required")
	}
	seen := make(map[string]struct{}, len(c.Sync.Tables))
	for i := range c.Sync.Tables {
		tbl := &c.Sync.Tables[i]
		if tbl.Name == "" {
			return fmt.Errorf("tables[%d].name is required", i)
		}
		if _, ok := seen[tbl.Name]; ok {
			return fmt.Errorf("tables[%d].name %q is duplicated", i, tbl.Name)
		}
		seen[tbl.Name] = struct{}{}
		if tbl.SourceTable == "" {
			tbl.SourceTable = tbl.Name
		}
		if tbl.DestinationTable == "" {
			tbl.DestinationTable = tbl.Name
		}
		if tbl.SourceSchema == "" {
			tbl.SourceSchema = c.Sync.Source.Schema
		}
		if tbl.DestinationSchema == "" {
			tbl.DestinationSchema = c.Sync.Destination.Schema
		}
		if tbl.SourceSchema == tbl.DestinationSchema && tbl.SourceTable == tbl.DestinationTable {
			return fmt.Errorf("tables[%d] uses the same table as source and destination", i)
		}
		switch tbl.InsertMode {
		case "":
			tbl.InsertMode = InsertModeServer
		case InsertModeServer, InsertModeClient:
		default:
			return fmt.Errorf("tables[%d].insert_mode must be %q or %q", i, InsertModeServer, InsertModeClient)
		}
		if tbl.BatchSize < 0 {
			return fmt.Errorf("tables[%d].batch_size must not be negative", i)
		}
		if tbl.BatchSize == 0 {
			tbl.BatchSize = 1000
		}
	}

	if c.Sync.Performance.Threads < 0 {
		return errors.New("sync.performance.threads must not be negative")
	}
	if c.Sync.Performance.MaxRetries < 0 {
		return errors.New("sync.performance.max_retries must not be negative")
	}

	// Set defaults
	if c.Sync.Performance.Threads == 0 {
		c.Sync.Performance.Threads = 4
	}
	if c.Sync.Performance.MaxRetries == 0 {
		c.Sync.Performance.MaxRetries = 3
	}
	if c.Sync.History.Table == "" {
		c.Sync.History.Table = "keysync_history"
	}
	if c.Sync.Logging.Level == "" {
		c.Sync.Logging.Level = "info"
	}
	if c.Sync.Logging.Format == "" {
		c.Sync.Logging.Format = "json"
	}
	if c.Sync.Logging.Output == "" {
		c.Sync.Logging.Output = "stdout"
	}
	return nil
}
