package configs

import (
	"strings"
	"testing"
	"time"

	"finishtime/bfsp/internal/models"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("START_DATE", "2024-01-01")
	t.Setenv("END_DATE", "2024-01-31")
	t.Setenv("TYPES", "win,place")
	t.Setenv("COUNTRIES", "gb,ire")
	t.Setenv("S3_BUCKET", "bfsp")
}

func TestLoadValid(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected StartDate %v", cfg.StartDate)
	}
	if !cfg.EndDate.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected EndDate %v", cfg.EndDate)
	}
	if len(cfg.Types) != 2 || cfg.Types[0] != models.Win || cfg.Types[1] != models.Place {
		t.Errorf("Unexpected Types %v", cfg.Types)
	}
	if len(cfg.Countries) != 2 || cfg.Countries[0] != "gb" || cfg.Countries[1] != "ire" {
		t.Errorf("Unexpected Countries %v", cfg.Countries)
	}
	if cfg.Store.Bucket != "bfsp" {
		t.Errorf("Unexpected Bucket %q", cfg.Store.Bucket)
	}
	if cfg.Store.RawPrefix != "data/" {
		t.Errorf("Expected default raw prefix, got %q", cfg.Store.RawPrefix)
	}
	if cfg.Pipeline.Mode != "sequential" {
		t.Errorf("Expected default mode sequential, got %q", cfg.Pipeline.Mode)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Expected default 5 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Pipeline.TaskDelay != time.Second {
		t.Errorf("Expected default 1s task delay, got %v", cfg.Pipeline.TaskDelay)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setValidEnv(t)
	t.Setenv("S3_BUCKET", "")
	t.Setenv("COUNTRIES", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for missing required variables")
	}
	for _, name := range []string{"S3_BUCKET", "COUNTRIES"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("Expected %s named in error, got %q", name, err)
		}
	}
}

func TestLoadInvalidDates(t *testing.T) {
	setValidEnv(t)
	t.Setenv("START_DATE", "01/01/2024")

	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed START_DATE")
	}
}

func TestLoadStartAfterEnd(t *testing.T) {
	setValidEnv(t)
	t.Setenv("START_DATE", "2024-02-01")
	t.Setenv("END_DATE", "2024-01-01")

	if _, err := Load(); err == nil {
		t.Error("Expected error when START_DATE is after END_DATE")
	}
}

func TestLoadInvalidType(t *testing.T) {
	setValidEnv(t)
	t.Setenv("TYPES", "win,exotic")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown market type")
	}
}

func TestLoadInvalidMode(t *testing.T) {
	setValidEnv(t)
	t.Setenv("MODE", "turbo")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown MODE")
	}
}

func TestLoadOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("MODE", "pool")
	t.Setenv("WORKERS", "8")
	t.Setenv("TASK_DELAY_SECONDS", "3")
	t.Setenv("RETRY_BACKOFF_FACTOR", "1.5")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("METRICS_ADDR", ":9091")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pipeline.Mode != "pool" || cfg.Pipeline.Workers != 8 {
		t.Errorf("Unexpected pipeline config %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.TaskDelay != 3*time.Second {
		t.Errorf("Expected 3s task delay, got %v", cfg.Pipeline.TaskDelay)
	}
	if cfg.Retry.BackoffFactor != 1.5 {
		t.Errorf("Expected backoff factor 1.5, got %v", cfg.Retry.BackoffFactor)
	}
	if !cfg.Store.UseSSL {
		t.Error("Expected UseSSL true")
	}
	if cfg.MetricsAddr != ":9091" {
		t.Errorf("Expected metrics addr :9091, got %q", cfg.MetricsAddr)
	}
}

func TestLoadCountryListNormalization(t *testing.T) {
	setValidEnv(t)
	t.Setenv("COUNTRIES", " GB , IRE ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Countries) != 2 || cfg.Countries[0] != "gb" || cfg.Countries[1] != "ire" {
		t.Errorf("Expected trimmed lower-cased list, got %v", cfg.Countries)
	}
}

func TestDatasetLocationBase(t *testing.T) {
	cfg := &AppConfig{Store: StoreConfig{Endpoint: "minio.local:9000", Bucket: "bfsp"}}
	if got := cfg.DatasetLocationBase(); got != "http://minio.local:9000/bfsp/" {
		t.Errorf("Unexpected location base %q", got)
	}

	cfg.Store.UseSSL = true
	if got := cfg.DatasetLocationBase(); got != "https://minio.local:9000/bfsp/" {
		t.Errorf("Unexpected https location base %q", got)
	}
}
