package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("testdata/example-config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "crm-to-api", config.Sync.Name)
	assert.Equal(t, 10*time.Minute, config.Sync.Interval)
	assert.Equal(t, "postgresql", config.Sync.Destination.Type)
	assert.Equal(t, TargetTypePostgreSQL, ParseTargetType(config.Sync.Destination.Type))

	require.Len(t, config.Sync.Tables, 2)
	opp := config.Sync.Tables[0]
	assert.Equal(t, "opportunity", opp.SourceTable)
	assert.Equal(t, "opportunity", opp.DestinationTable)
	assert.Equal(t, "legacy", opp.SourceSchema)
	assert.Equal(t, "api", opp.DestinationSchema)
	assert.Equal(t, InsertModeServer, opp.InsertMode)
	assert.Equal(t, 1000, opp.BatchSize)
	assert.False(t, opp.Revive)

	account := config.Sync.Tables[1]
	assert.Equal(t, "s_org_ext", account.SourceTable)
	assert.Equal(t, "account", account.DestinationTable)
	assert.Equal(t, []string{"row_id"}, account.PrimaryKey)
	assert.True(t, account.Revive)
	assert.Equal(t, InsertModeClient, account.InsertMode)
	assert.Equal(t, 500, account.BatchSize)

	assert.Equal(t, 2, config.Sync.Performance.Threads)
	assert.Equal(t, 3, config.Sync.Performance.MaxRetries)
	assert.True(t, config.Sync.History.Enabled)
	assert.Equal(t, "keysync_history", config.Sync.History.Table)
	assert.Equal(t, ":9090", config.Sync.Metrics.Listen)
	assert.Equal(t, "debug", config.Sync.Logging.Level)
	assert.Equal(t, "text", config.Sync.Logging.Format)
	assert.Equal(t, "stdout", config.Sync.Logging.Output)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("testdata/does-not-exist.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestParseConfigRejectsBadYAML(t *testing.T) {
	_, err := ParseConfig([]byte("version: [1.0"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func validConfig() Config {
	return Config{
		Version: "1.0",
		Sync: SyncConfig{
			Name: "test",
			Destination: DestinationConfig{
				Type: "sqlite",
				DSN:  "/tmp/keysync.db",
			},
			Tables: []TableConfig{
				{Name: "accounts", SourceTable: "src_accounts", DestinationTable: "accounts"},
			},
		},
	}
}

func TestConfigDefaults(t *testing.T) {
	config := validConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 4, config.Sync.Performance.Threads)
	assert.Equal(t, 3, config.Sync.Performance.MaxRetries)
	assert.Equal(t, "keysync_history", config.Sync.History.Table)
	assert.Equal(t, "info", config.Sync.Logging.Level)
	assert.Equal(t, "json", config.Sync.Logging.Format)
	assert.Equal(t, "stdout", config.Sync.Logging.Output)
	assert.Equal(t, InsertModeServer, config.Sync.Tables[0].InsertMode)
	assert.Equal(t, 1000, config.Sync.Tables[0].BatchSize)

	// A pair that differs only by schema is allowed.
	config = validConfig()
	config.Sync.Source.Schema = "legacy"
	config.Sync.Destination.Schema = "api"
	config.Sync.Tables = []TableConfig{{Name: "opportunity"}}
	require.NoError(t, config.Validate())
	assert.Equal(t, "opportunity", config.Sync.Tables[0].DestinationTable)
	assert.Equal(t, "legacy", config.Sync.Tables[0].SourceSchema)
	assert.Equal(t, "api", config.Sync.Tables[0].DestinationSchema)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing version",
			mutate:  func(c *Config) { c.Version = "" },
			wantErr: "version is required",
		},
		{
			name:    "missing sync name",
			mutate:  func(c *Config) { c.Sync.Name = "" },
			wantErr: "sync.name is required",
		},
		{
			name:    "missing destination type",
			mutate:  func(c *Config) { c.Sync.Destination.Type = "" },
			wantErr: "sync.destination.type is required",
		},
		{
			name:    "unsupported destination type",
			mutate:  func(c *Config) { c.Sync.Destination.Type = "oracle" },
			wantErr: "unsupported destination type: oracle",
		},
		{
			name:    "missing destination DSN",
			mutate:  func(c *Config) { c.Sync.Destination.DSN = "" },
			wantErr: "sync.destination.dsn is required",
		},
		{
			name:    "source DSN without type",
			mutate:  func(c *Config) { c.Sync.Source.DSN = "user:pass@tcp(localhost:3306)/crm" },
			wantErr: "sync.source.type is required",
		},
		{
			name: "unsupported source type",
			mutate: func(c *Config) {
				c.Sync.Source.DSN = "user:pass@tcp(localhost:3306)/crm"
				c.Sync.Source.Type = "db2"
			},
			wantErr: "unsupported source type: db2",
		},
		{
			name: "credentials file on a postgres source",
			mutate: func(c *Config) {
				c.Sync.Source.DSN = "postgres://localhost/crm"
				c.Sync.Source.Type = "postgresql"
				c.Sync.Source.CredentialsFile = "/etc/keysync/my.cnf"
			},
			wantErr: "credentials_file is only supported for mysql sources",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Sync.Interval = -time.Second },
			wantErr: "sync.interval must not be negative",
		},
		{
			name:    "no tables",
			mutate:  func(c *Config) { c.Sync.Tables = nil },
			wantErr: "at least one table is required",
		},
		{
			name:    "unnamed table",
			mutate:  func(c *Config) { c.Sync.Tables[0].Name = "" },
			wantErr: "tables[0].name is required",
		},
		{
			name: "duplicated table",
			mutate: func(c *Config) {
				c.Sync.Tables = append(c.Sync.Tables, c.Sync.Tables[0])
			},
			wantErr: `tables[1].name "accounts" is duplicated`,
		},
		{
			name:    "same source and destination",
			mutate:  func(c *Config) { c.Sync.Tables[0].DestinationTable = "src_accounts" },
			wantErr: "same table as source and destination",
		},
		{
			name:    "bad insert mode",
			mutate:  func(c *Config) { c.Sync.Tables[0].InsertMode = "bulk" },
			wantErr: "tables[0].insert_mode must be",
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.Sync.Tables[0].BatchSize = -1 },
			wantErr: "tables[0].batch_size must not be negative",
		},
		{
			name:    "negative threads",
			mutate:  func(c *Config) { c.Sync.Performance.Threads = -1 },
			wantErr: "sync.performance.threads must not be negative",
		},
		{
			name:    "negative max retries",
			mutate:  func(c *Config) { c.Sync.Performance.MaxRetries = -2 },
			wantErr: "sync.performance.max_retries must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)
			assert.ErrorContains(t, config.Validate(), tt.wantErr)
		})
	}
}

func TestParseTargetType(t *testing.T) {
	assert.Equal(t, TargetTypeMySQL, ParseTargetType("mysql"))
	assert.Equal(t, TargetTypePostgreSQL, ParseTargetType("postgres"))
	assert.Equal(t, TargetTypePostgreSQL, ParseTargetType("postgresql"))
	assert.Equal(t, TargetTypeSQLite, ParseTargetType("sqlite"))
	assert.Equal(t, TargetTypeDuckDB, ParseTargetType("duckdb"))
	assert.Equal(t, TargetTypeUnknown, ParseTargetType("oracle"))

	assert.Equal(t, "postgresql", TargetTypePostgreSQL.String())
	assert.Equal(t, "unknown", TargetTypeUnknown.String())
}
