package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sink names
const (
	SinkClickHouse = "clickhouse"
	SinkParquet    = "parquet"
)

// Config holds all configuration for the loader
type Config struct {
	// ClickHouse connection
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDB       string
	ClickHouseUser     string
	ClickHousePassword string
	PointsTable        string
	MetricsTable       string

	// Input
	Dir        string
	Extensions []string

	// Parser settings
	SourceTZOffsetHours int
	BatchSize           int
	Workers             int

	// Output
	Sink       string // clickhouse or parquet
	ParquetDir string
	ReadOnly   bool // Parse archives but discard points

	// Import journal
	JournalPath  string
	SkipImported bool
	KeepGoing    bool // Continue with the next file after a failed one

	CellMapPath string

	// Observability
	LogLevel        string
	LogFile         string
	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string
}

// Load reads configuration from environment variables.
// CLI flags are applied on top by the caller, who then calls Validate.
func Load() *Config {
	cwd, _ := os.Getwd()

	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:       getEnv("CLICKHOUSE_DB", "exa"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		PointsTable:        getEnv("CLICKHOUSE_TABLE", "iostat"),
		MetricsTable:       getEnv("CLICKHOUSE_METRICS_TABLE", "iostat_imports"),

		Dir:        getEnv("IOSTAT_DIR", cwd),
		Extensions: parseList(getEnv("IOSTAT_EXTENSIONS", ".bz2"), ","),

		SourceTZOffsetHours: getEnvInt("SOURCE_TZ_OFFSET_HOURS", 3),
		BatchSize:           getEnvInt("BATCH_SIZE", 2000),
		Workers:             getEnvInt("WORKERS", 1),

		Sink:       getEnv("SINK", SinkClickHouse),
		ParquetDir: getEnv("PARQUET_DIR", "parquet"),
		ReadOnly:   getEnvBool("READ_ONLY", false),

		JournalPath:  getEnv("JOURNAL_PATH", ""),
		SkipImported: getEnvBool("SKIP_IMPORTED", true),
		KeepGoing:    getEnvBool("KEEP_GOING", false),

		CellMapPath: getEnv("CELL_MAP_PATH", ""),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", ""),
		TracingProtocol: getEnv("TRACING_PROTOCOL", "grpc"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("IOSTAT_DIR is required")
	}
	if c.SourceTZOffsetHours < -12 || c.SourceTZOffsetHours > 14 {
		return fmt.Errorf("SOURCE_TZ_OFFSET_HOURS must be between -12 and 14")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("IOSTAT_EXTENSIONS must list at least one extension")
	}

	if c.ReadOnly {
		return nil
	}

	switch c.Sink {
	case SinkClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
		if c.PointsTable == "" || c.MetricsTable == "" {
			return fmt.Errorf("CLICKHOUSE_TABLE and CLICKHOUSE_METRICS_TABLE are required")
		}
	case SinkParquet:
		if c.ParquetDir == "" {
			return fmt.Errorf("PARQUET_DIR is required for the parquet sink")
		}
	default:
		return fmt.Errorf("unknown SINK %q (use %s or %s)", c.Sink, SinkClickHouse, SinkParquet)
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parseList splits a separated list, dropping empty items
func parseList(s, sep string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
