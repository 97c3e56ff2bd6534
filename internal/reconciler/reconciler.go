// Package reconciler audits coverage against the catalog and drives
// backfills for whatever is missing.
//
// Catalog presence is the authoritative membership check, independent of
// the file-name existence index: the index only proves a raw mirror was
// written, not that the rows ever became queryable.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"finishtime/bfsp/internal/dataset"
	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/pipeline"
	"finishtime/bfsp/internal/scraper"
	"finishtime/bfsp/internal/storage"
)

// Reconciler diffs expected coverage against catalog-observed coverage
// and re-drives the fetch pipeline for the missing set only.
type Reconciler struct {
	catalog  storage.Catalog
	pipeline *pipeline.Pipeline
	writer   *dataset.Writer
	logger   *logrus.Logger
}

func New(catalog storage.Catalog, p *pipeline.Pipeline, writer *dataset.Writer, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		catalog:  catalog,
		pipeline: p,
		writer:   writer,
		logger:   logger,
	}
}

// MissingDates returns the dates in [from, to] with no rows in table for
// the given country, in ascending order. The country is canonicalized
// before querying, since the catalog stores canonical codes.
func (r *Reconciler) MissingDates(ctx context.Context, table, country string, from, to time.Time) ([]time.Time, error) {
	present, err := r.catalog.DistinctEventDates(ctx, table, models.CanonicalCountry(country))
	if err != nil {
		return nil, fmt.Errorf("auditing %s coverage for %s: %w", table, country, err)
	}

	var missing []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if _, ok := present[d.Format("2006-01-02")]; !ok {
			missing = append(missing, d)
		}
	}
	return missing, nil
}

// BackfillDates audits each country's coverage over [from, to] against
// the win table and re-drives the full pipeline for every missing date,
// both market types. Per-key failures land in the report; a failed audit
// query aborts, since without it no work set can be computed.
func (r *Reconciler) BackfillDates(ctx context.Context, countries []string, from, to time.Time) (*pipeline.Report, error) {
	report := pipeline.NewReport()

	for _, country := range countries {
		missing, err := r.MissingDates(ctx, models.TableName(models.Win), country, from, to)
		if err != nil {
			return nil, err
		}
		r.logger.Infof("Country %s is missing %d dates in range", country, len(missing))

		for _, date := range missing {
			for _, mt := range models.AllMarketTypes {
				key := models.CoverageKey{Country: country, Type: mt, Date: date}
				link := r.pipeline.Link(key)

				if err := r.pipeline.ProcessKey(ctx, key); err != nil {
					r.logger.Errorf("Backfill failed for %s: %v", key, err)
					report.AddFailure(key, link, err)
					continue
				}
				report.AddSuccess(key, link)
			}
		}
	}

	return report, nil
}

// MissingRows anti-joins fetched rows against the catalog-present
// selection keys, returning only the rows the catalog does not have.
func MissingRows(fetched []models.Row, present map[storage.SelectionKey]struct{}) []models.Row {
	var missing []models.Row
	for _, row := range fetched {
		key := storage.SelectionKey{EventID: row.EventID, SelectionID: row.SelectionID}
		if _, ok := present[key]; !ok {
			missing = append(missing, row)
		}
	}
	return missing
}

// BackfillRows is the row-level reconciliation: it fetches the whole
// range for one country, compares individual (event_id, selection_id)
// pairs against each price table and appends only the rows the catalog
// is missing. It catches writer failures the file-name index cannot see.
func (r *Reconciler) BackfillRows(ctx context.Context, country string, from, to time.Time) error {
	byType := make(map[models.MarketType][]models.Row)

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, mt := range models.AllMarketTypes {
			key := models.CoverageKey{Country: country, Type: mt, Date: d}
			rows, err := r.pipeline.FetchRows(ctx, key)
			if err != nil {
				if errors.Is(err, scraper.ErrNotFound) {
					r.logger.Infof("No source file for %s", key)
					continue
				}
				r.logger.Errorf("Skipping %s: %v", key, err)
				continue
			}
			byType[mt] = append(byType[mt], rows...)
		}
	}

	for _, mt := range models.AllMarketTypes {
		fetched := byType[mt]
		if len(fetched) == 0 {
			r.logger.Infof("No source rows for type %s, skipping", mt)
			continue
		}

		table := models.TableName(mt)
		present, err := r.catalog.DistinctSelectionKeys(ctx, table, models.CanonicalCountry(country), from, to)
		if err != nil {
			return fmt.Errorf("auditing %s keys: %w", table, err)
		}

		missing := MissingRows(fetched, present)
		r.logger.Infof("Found %d missing rows for %s (of %d fetched)", len(missing), table, len(fetched))
		if len(missing) == 0 {
			continue
		}

		if err := r.writer.Write(ctx, missing, mt, dataset.Append); err != nil {
			return fmt.Errorf("appending missing rows to %s: %w", table, err)
		}
	}

	return nil
}
