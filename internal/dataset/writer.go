// Package dataset persists canonical rows into the partitioned parquet
// datasets and keeps the catalog table definitions in sync.
package dataset

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/storage"
)

// Mode selects the write semantics for a dataset write.
type Mode int

const (
	// Append adds a new file to the dataset without touching existing
	// data. Re-running the same coverage key without a pre-check will
	// duplicate rows; duplication avoidance is the existence index's and
	// the reconciler's responsibility, not the writer's.
	Append Mode = iota

	// Overwrite deletes every object under the dataset prefix first,
	// then writes. The only mode with replacement semantics, used for
	// full-table rebuilds.
	Overwrite
)

// Config holds the storage layout the writer operates on.
type Config struct {
	// RawPrefix is the object prefix holding per-fetch raw mirrors.
	RawPrefix string

	// LocationBase is the external URL of the bucket root, used when
	// defining catalog tables over the dataset prefixes.
	LocationBase string
}

// Writer persists canonical rows. Every dataset write re-asserts the
// canonical schema on the catalog table so type definitions stay
// consistent as new files are merged in.
type Writer struct {
	store   storage.ObjectStore
	catalog storage.Catalog
	cfg     Config
	logger  *logrus.Logger
}

func NewWriter(store storage.ObjectStore, catalog storage.Catalog, cfg Config, logger *logrus.Logger) *Writer {
	return &Writer{store: store, catalog: catalog, cfg: cfg, logger: logger}
}

// WriteRawMirror stores the normalized rows for one coverage key as a
// single parquet object under the raw prefix, named deterministically by
// the key. The mirror allows replay and debugging without re-fetching
// from the origin, and its file name feeds the existence index.
func (w *Writer) WriteRawMirror(ctx context.Context, key models.CoverageKey, rows []models.Row) error {
	body, err := encodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encoding raw mirror for %s: %w", key, err)
	}
	objectKey := w.cfg.RawPrefix + key.RawFileName()
	if err := w.store.Put(ctx, objectKey, body, "application/octet-stream"); err != nil {
		return fmt.Errorf("writing raw mirror %s: %w", objectKey, err)
	}
	w.logger.Infof("Wrote raw mirror %s (%d rows)", objectKey, len(rows))
	return nil
}

// Write persists rows into the dataset backing the market type's
// canonical table. In Overwrite mode, failing to clear the old data
// halts the whole operation rather than risk new files landing alongside
// stale data under a to-be-deleted prefix.
func (w *Writer) Write(ctx context.Context, rows []models.Row, mt models.MarketType, mode Mode) error {
	if len(rows) == 0 {
		return nil
	}

	prefix := models.DatasetPrefix(mt)
	table := models.TableName(mt)

	if mode == Overwrite {
		existing, err := w.store.List(ctx, prefix)
		if err != nil {
			return fmt.Errorf("listing %s before overwrite: %w", prefix, err)
		}
		if len(existing) > 0 {
			if err := w.store.Remove(ctx, existing); err != nil {
				return fmt.Errorf("clearing %s before overwrite: %w", prefix, err)
			}
			w.logger.Infof("Removed %d existing objects under %s", len(existing), prefix)
		}
		if err := w.catalog.DropTable(ctx, table); err != nil {
			return fmt.Errorf("dropping %s before overwrite: %w", table, err)
		}
	}

	body, err := encodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encoding dataset file for %s: %w", table, err)
	}

	objectKey := fmt.Sprintf("%spart-%s.parquet", prefix, uuid.NewString())
	if err := w.store.Put(ctx, objectKey, body, "application/octet-stream"); err != nil {
		return fmt.Errorf("writing dataset file %s: %w", objectKey, err)
	}
	w.logger.Infof("Wrote %d rows to %s", len(rows), objectKey)

	location := w.cfg.LocationBase + prefix + "*.parquet"
	if err := w.catalog.CreateTable(ctx, table, models.SchemaColumns, location); err != nil {
		return fmt.Errorf("syncing table %s: %w", table, err)
	}
	return nil
}

// encodeParquet serializes canonical rows to a snappy-compressed parquet
// file in memory.
func encodeParquet(rows []models.Row) ([]byte, error) {
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[models.Row](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadRows decodes a parquet object previously written by this package.
func ReadRows(body []byte) ([]models.Row, error) {
	return parquet.Read[models.Row](bytes.NewReader(body), int64(len(body)))
}
