// Package configs provides application configuration loaded from
// environment variables. The config is built once at startup and passed
// into component constructors; there is no ambient global state.
package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"finishtime/bfsp/internal/models"
)

// AppConfig holds all application configuration.
// Load it once at startup using Load().
type AppConfig struct {
	// StartDate and EndDate bound the coverage range, inclusive.
	StartDate time.Time
	EndDate   time.Time

	// Types are the market types to ingest.
	Types []models.MarketType

	// Countries are the country codes to ingest, as configured
	// (lower-cased; "uk" and "gb" are both accepted).
	Countries []string

	// Store holds object-store connection settings.
	Store StoreConfig

	// Catalog holds catalog connection settings.
	Catalog CatalogConfig

	// Pipeline holds batch execution settings.
	Pipeline PipelineConfig

	// Retry holds the fetch retry policy settings.
	Retry RetryConfig

	// MetricsAddr, when set, exposes Prometheus metrics on this address.
	MetricsAddr string
}

// StoreConfig holds object-store settings.
type StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Bucket is the bucket holding raw mirrors, datasets and reports.
	Bucket string

	// RawPrefix is the prefix for raw mirror files (the existence index).
	RawPrefix string

	// ReportPrefix is the prefix run reports are persisted under.
	ReportPrefix string
}

// CatalogConfig holds catalog connection settings.
type CatalogConfig struct {
	DSN      string
	Database string
}

// PipelineConfig holds batch execution settings.
type PipelineConfig struct {
	// SourceBaseURL overrides the origin base URL; empty selects the
	// production Betfair endpoint.
	SourceBaseURL string

	// Mode selects the execution strategy: "sequential" or "pool".
	Mode string

	// Workers is the pool size when Mode is "pool".
	Workers int

	// RequestTimeout bounds each origin HTTP request.
	RequestTimeout time.Duration

	// TaskDelay is the cooperative throttle between origin requests.
	TaskDelay time.Duration
}

// RetryConfig holds fetch retry settings.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
}

// DatasetLocationBase returns the external URL of the bucket root, used
// when defining catalog tables over dataset prefixes.
func (c *AppConfig) DatasetLocationBase() string {
	scheme := "http"
	if c.Store.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/", scheme, c.Store.Endpoint, c.Store.Bucket)
}

// Load reads configuration from the environment, attempting a .env file
// first for local development. Missing required variables, unparseable
// dates and empty lists are fatal startup errors: no work may start on
// an invalid configuration.
func Load() (*AppConfig, error) {
	_ = godotenv.Load() // .env is optional

	var missing []string
	requireEnv := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	startStr := requireEnv("START_DATE")
	endStr := requireEnv("END_DATE")
	typesStr := requireEnv("TYPES")
	countriesStr := requireEnv("COUNTRIES")
	bucket := requireEnv("S3_BUCKET")

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing mandatory environment variables: %s", strings.Join(missing, ", "))
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid START_DATE %q, expected YYYY-MM-DD: %w", startStr, err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid END_DATE %q, expected YYYY-MM-DD: %w", endStr, err)
	}
	if start.After(end) {
		return nil, fmt.Errorf("START_DATE %s cannot be after END_DATE %s", startStr, endStr)
	}

	types, err := parseTypes(typesStr)
	if err != nil {
		return nil, err
	}

	countries := splitList(countriesStr)
	if len(countries) == 0 {
		return nil, errors.New("COUNTRIES must contain at least one country code")
	}

	mode := getEnv("MODE", "sequential")
	if mode != "sequential" && mode != "pool" {
		return nil, fmt.Errorf("invalid MODE %q, expected sequential or pool", mode)
	}

	return &AppConfig{
		StartDate: start,
		EndDate:   end,
		Types:     types,
		Countries: countries,
		Store: StoreConfig{
			Endpoint:     getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:    getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:       getEnvBool("MINIO_USE_SSL", false),
			Bucket:       bucket,
			RawPrefix:    getEnv("RAW_DATA_PREFIX", "data/"),
			ReportPrefix: getEnv("REPORT_PREFIX", "reports/"),
		},
		Catalog: CatalogConfig{
			DSN:      getCatalogDSN(),
			Database: getEnv("CLICKHOUSE_DB", "finish_time_predict"),
		},
		Pipeline: PipelineConfig{
			SourceBaseURL:  getEnv("SOURCE_BASE_URL", ""),
			Mode:           mode,
			Workers:        getEnvInt("WORKERS", 2),
			RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 5)) * time.Second,
			TaskDelay:      time.Duration(getEnvInt("TASK_DELAY_SECONDS", 1)) * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:   getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			BaseDelay:     time.Duration(getEnvInt("RETRY_BASE_DELAY_SECONDS", 1)) * time.Second,
			BackoffFactor: getEnvFloat("RETRY_BACKOFF_FACTOR", 2.0),
		},
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}, nil
}

// getCatalogDSN constructs the ClickHouse DSN from environment variables.
func getCatalogDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "default")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "finish_time_predict")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

func parseTypes(s string) ([]models.MarketType, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, errors.New("TYPES must contain at least one market type")
	}
	types := make([]models.MarketType, 0, len(parts))
	for _, p := range parts {
		mt, err := models.ParseMarketType(p)
		if err != nil {
			return nil, fmt.Errorf("invalid TYPES entry: %w", err)
		}
		types = append(types, mt)
	}
	return types, nil
}

// splitList splits a comma-separated list, trimming and lower-casing
// entries and dropping empty ones.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
