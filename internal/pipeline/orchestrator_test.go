package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"finishtime/bfsp/internal/dataset"
	"finishtime/bfsp/internal/faulttolerance"
	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/scraper"
	"finishtime/bfsp/internal/storage"
)

const winCSV = "EVENT_ID,EVENT_DT,SELECTION_ID,SELECTION_NAME,WIN_LOSE,BSP\n" +
	"100,05-01-2024 14:30,200,Lucky Star,1,4.5\n" +
	"100,05-01-2024 14:30,201,Rock On,0,8.0\n"

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// stubCatalog satisfies storage.Catalog with no backing store.
type stubCatalog struct{}

func (stubCatalog) DistinctSelectionKeys(context.Context, string, string, time.Time, time.Time) (map[storage.SelectionKey]struct{}, error) {
	return nil, nil
}
func (stubCatalog) DistinctEventDates(context.Context, string, string) (map[string]struct{}, error) {
	return nil, nil
}
func (stubCatalog) CreateTable(context.Context, string, []models.Column, string) error { return nil }
func (stubCatalog) DropTable(context.Context, string) error                            { return nil }
func (stubCatalog) Close() error                                                       { return nil }

// originServer serves CSV bodies by URL path and counts requests per path.
type originServer struct {
	mu     sync.Mutex
	bodies map[string]string
	hits   map[string]int
	server *httptest.Server
}

func newOriginServer(t *testing.T, bodies map[string]string) *originServer {
	t.Helper()
	o := &originServer{bodies: bodies, hits: make(map[string]int)}
	o.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits[r.URL.Path]++
		body, ok := o.bodies[r.URL.Path]
		o.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(o.server.Close)

	return o
}

func (o *originServer) hitCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func newTestOrchestrator(t *testing.T, origin *originServer, store storage.ObjectStore, cfg OrchestratorConfig) *Orchestrator {
	t.Helper()
	logger := newTestLogger()

	writer := dataset.NewWriter(store, stubCatalog{}, dataset.Config{
		RawPrefix:    "data/",
		LocationBase: "https://minio.local/bfsp/",
	}, logger)

	retryer := faulttolerance.NewRetryer(faulttolerance.RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 2.0,
		Name:          "fetch",
		IsTerminal: func(err error) bool {
			return errors.Is(err, scraper.ErrNotFound)
		},
	}, logger)

	locator := scraper.NewLocator(origin.server.URL)
	p := New(locator, scraper.NewFetcher(5*time.Second, logger), retryer, writer, logger)

	if cfg.RawPrefix == "" {
		cfg.RawPrefix = "data/"
	}
	if cfg.ReportPrefix == "" {
		cfg.ReportPrefix = "reports/"
	}
	if cfg.TaskDelay == 0 {
		cfg.TaskDelay = time.Millisecond
	}
	return NewOrchestrator(p, store, cfg, logger)
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
}

func TestOrchestratorRun(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	origin := newOriginServer(t, map[string]string{
		"/dwbfpricesukwin05012024.csv": winCSV,
		// No place file: the origin answers 404 for it.
	})

	store := storage.NewMemStore()
	o := newTestOrchestrator(t, origin, store, OrchestratorConfig{
		Countries: []string{"gb"},
		Types:     models.AllMarketTypes,
		StartDate: day,
		EndDate:   day,
		Mode:      ModeSequential,
		Now:       fixedNow,
	})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(report.Successful) != 1 {
		t.Errorf("Expected 1 success, got %d", len(report.Successful))
	}
	if len(report.Failed) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(report.Failed))
	}
	if report.Failed[0].Key.Type != models.Place {
		t.Errorf("Expected the place key to fail, got %+v", report.Failed[0].Key)
	}
	if !strings.Contains(report.Failed[0].Error, "not published") {
		t.Errorf("Expected a not-published failure, got %q", report.Failed[0].Error)
	}

	// 404 is terminal: one request, no retries.
	if n := origin.hitCount("/dwbfpricesukplace05012024.csv"); n != 1 {
		t.Errorf("Expected 1 request for the missing place file, got %d", n)
	}

	// Raw mirror and dataset file were written for the win key.
	if _, err := store.Get(context.Background(), "data/wingb20240105.parquet"); err != nil {
		t.Errorf("Expected raw mirror for the win key: %v", err)
	}
	datasetKeys, _ := store.List(context.Background(), models.DatasetPrefix(models.Win))
	if len(datasetKeys) != 1 {
		t.Errorf("Expected 1 win dataset file, got %d", len(datasetKeys))
	}

	// The run report was persisted.
	reportKeys, _ := store.List(context.Background(), "reports/")
	if len(reportKeys) != 1 {
		t.Fatalf("Expected 1 persisted report, got %d", len(reportKeys))
	}
	body, _ := store.Get(context.Background(), reportKeys[0])
	if !strings.Contains(string(body), "Successful downloads: 1") {
		t.Errorf("Persisted report missing success count:\n%s", body)
	}
}

func TestOrchestratorSkipsIndexedKeys(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	origin := newOriginServer(t, map[string]string{
		"/dwbfpricesukwin05012024.csv":   winCSV,
		"/dwbfpricesukplace05012024.csv": winCSV,
	})

	store := storage.NewMemStore()
	cfg := OrchestratorConfig{
		Countries: []string{"gb"},
		Types:     models.AllMarketTypes,
		StartDate: day,
		EndDate:   day,
		Mode:      ModeSequential,
		Now:       fixedNow,
	}

	if _, err := newTestOrchestrator(t, origin, store, cfg).Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if _, err := newTestOrchestrator(t, origin, store, cfg).Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	// The second run must find both raw mirrors in the index and never
	// touch the origin again.
	for _, path := range []string{"/dwbfpricesukwin05012024.csv", "/dwbfpricesukplace05012024.csv"} {
		if n := origin.hitCount(path); n != 1 {
			t.Errorf("Expected exactly 1 request for %s across both runs, got %d", path, n)
		}
	}
}

func TestOrchestratorSkipsFutureDates(t *testing.T) {
	origin := newOriginServer(t, map[string]string{
		"/dwbfpricesukwin10012024.csv": winCSV,
	})

	store := storage.NewMemStore()
	o := newTestOrchestrator(t, origin, store, OrchestratorConfig{
		Countries: []string{"gb"},
		Types:     []models.MarketType{models.Win},
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
		Mode:      ModeSequential,
		Now:       fixedNow,
	})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if total := len(report.Successful) + len(report.Failed); total != 1 {
		t.Errorf("Expected only today's key processed, got %d outcomes", total)
	}
	if n := origin.hitCount("/dwbfpricesukwin11012024.csv"); n != 0 {
		t.Errorf("Future date must never be fetched, got %d requests", n)
	}
}

func TestOrchestratorPoolMode(t *testing.T) {
	bodies := make(map[string]string)
	for day := 1; day <= 5; day++ {
		bodies[fmt.Sprintf("/dwbfpricesukwin%02d012024.csv", day)] = winCSV
	}
	origin := newOriginServer(t, bodies)

	store := storage.NewMemStore()
	o := newTestOrchestrator(t, origin, store, OrchestratorConfig{
		Countries: []string{"gb"},
		Types:     []models.MarketType{models.Win},
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Mode:      ModePool,
		Workers:   3,
		Now:       fixedNow,
	})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Successful) != 5 {
		t.Errorf("Expected 5 successes, got %d: %+v", len(report.Successful), report.Failed)
	}
	if len(report.Failed) != 0 {
		t.Errorf("Expected no failures, got %+v", report.Failed)
	}
}

func TestOrchestratorEmptyFileIsSuccess(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	origin := newOriginServer(t, map[string]string{
		"/dwbfpricesukwin05012024.csv": "EVENT_ID,EVENT_DT,SELECTION_ID,SELECTION_NAME\n",
	})

	store := storage.NewMemStore()
	o := newTestOrchestrator(t, origin, store, OrchestratorConfig{
		Countries: []string{"gb"},
		Types:     []models.MarketType{models.Win},
		StartDate: day,
		EndDate:   day,
		Mode:      ModeSequential,
		Now:       fixedNow,
	})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Successful) != 1 || len(report.Failed) != 0 {
		t.Errorf("Header-only file must count as success, got %d/%d", len(report.Successful), len(report.Failed))
	}

	// Nothing to mirror or append when the file has no rows.
	if _, err := store.Get(context.Background(), "data/wingb20240105.parquet"); err == nil {
		t.Error("Expected no raw mirror for an empty file")
	}
}
