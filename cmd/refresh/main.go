// Command refresh downloads Betfair SP files for a date range and
// ingests them into the price datasets, skipping keys whose raw mirror
// already exists.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"finishtime/bfsp/configs"
	"finishtime/bfsp/internal/dataset"
	"finishtime/bfsp/internal/faulttolerance"
	"finishtime/bfsp/internal/pipeline"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

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
	orch := pipeline.NewOrchestrator(pl, store, pipeline.OrchestratorConfig{
		Countries:    cfg.Countries,
		Types:        cfg.Types,
		StartDate:    cfg.StartDate,
		EndDate:      cfg.EndDate,
		Mode:         cfg.Pipeline.Mode,
		Workers:      cfg.Pipeline.Workers,
		RawPrefix:    cfg.Store.RawPrefix,
		ReportPrefix: cfg.Store.ReportPrefix,
		TaskDelay:    cfg.Pipeline.TaskDelay,
	}, logger)

	logger.Infof("Starting refresh for %s to %s (countries=%v, types=%v)",
		cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"), cfg.Countries, cfg.Types)

	report, err := orch.Run(ctx)
	if err != nil {
		logger.Fatalf("Refresh aborted: %v", err)
	}

	logger.Info("\n" + report.Render())
	logger.Info("Refresh complete")
}
