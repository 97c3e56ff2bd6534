// Command backfill audits the catalog for missing coverage and re-runs
// the fetch pipeline for whatever is absent. BACKFILL_MODE selects the
// audit granularity: "dates" diffs missing event dates per country,
// "rows" anti-joins individual (event_id, selection_id) pairs.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"finishtime/bfsp/configs"
	"finishtime/bfsp/internal/dataset"
	"finishtime/bfsp/internal/faulttolerance"
	"finishtime/bfsp/internal/pipeline"
	"finishtime/bfsp/internal/reconciler"
	"finishtime/bfsp/internal/scraper"
	"finishtime/bfsp/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := configs.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	mode := os.Getenv("BACKFILL_MODE")
	if mode == "" {
		mode = "dates"
	}
	if mode != "dates" && mode != "rows" {
		logger.Fatalf("Invalid BACKFILL_MODE %q, expected dates or rows", mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		UseSSL:    cfg.Store.UseSSL,
		Bucket:    cfg.Store.Bucket,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to object store: %v", err)
	}

	catalog, err := storage.NewClickHouseCatalog(cfg.Catalog.DSN, cfg.Catalog.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to catalog: %v", err)
	}
	defer catalog.Close()

	writer := dataset.NewWriter(store, catalog, dataset.Config{
		RawPrefix:    cfg.Store.RawPrefix,
		LocationBase: cfg.DatasetLocationBase(),
	}, logger)

	fetcher := scraper.NewFetcher(cfg.Pipeline.RequestTimeout, logger)
	retryer := faulttolerance.NewRetryer(faulttolerance.RetryConfig{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BaseDelay:     cfg.Retry.BaseDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
		Name:          "fetch",
		IsTerminal: func(err error) bool {
			return errors.Is(err, scraper.ErrNotFound)
		},
	}, logger)

	locator := scraper.NewLocator(cfg.Pipeline.SourceBaseURL)
	pl := pipeline.New(locator, fetcher, retryer, writer, logger)
	rec := reconciler.New(catalog, pl, writer, logger)

	switch mode {
	case "rows":
		for _, country := range cfg.Countries {
			logger.Infof("Row-level backfill for %s", country)
			if err := rec.BackfillRows(ctx, country, cfg.StartDate, cfg.EndDate); err != nil {
				logger.Fatalf("Row-level backfill failed for %s: %v", country, err)
			}
		}
	default:
		report, err := rec.BackfillDates(ctx, cfg.Countries, cfg.StartDate, cfg.EndDate)
		if err != nil {
			logger.Fatalf("Backfill aborted: %v", err)
		}
		if key, err := report.Persist(ctx, store, cfg.Store.ReportPrefix); err != nil {
			logger.Errorf("Failed to persist report: %v", err)
			logger.Info("Full report:\n" + report.Render())
		} else {
			logger.Infof("Report saved to %s", key)
		}
		logger.Info("\n" + report.Render())
	}

	logger.Info("Backfill complete")
}
