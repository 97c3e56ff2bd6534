// Command rebuild regenerates the price datasets and catalog tables from
// the raw mirror files. The destructive overwrite of each dataset prefix
// is an explicit, sequenced step per market type; nothing runs in
// parallel with it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"finishtime/bfsp/configs"
	"finishtime/bfsp/internal/dataset"
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

	for _, mt := range cfg.Types {
		logger.Infof("Rebuilding dataset for type %s", mt)
		rows, err := writer.RebuildFromRaw(ctx, mt)
		if err != nil {
			// A failed destructive rebuild must halt: continuing with the
			// next type risks mixing rebuilt and stale state.
			logger.Fatalf("Rebuild failed for type %s: %v", mt, err)
		}
		logger.Infof("Rebuilt type %s with %d rows", mt, rows)
	}

	logger.Info("Rebuild complete")
}
