package dataset

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/normalizer"
)

// rawFilePattern matches raw mirror file names. The name encodes the
// coverage key, so it is the source of truth for type and country when
// rebuilding from mirrors whose embedded columns may predate a schema fix.
var rawFilePattern = regexp.MustCompile(`^(win|place)([a-z]{2,3})(\d{4})(\d{2})(\d{2})\.parquet$`)

// RebuildFromRaw reads every raw mirror file for one market type,
// re-stamps the filename-derived columns, combines the rows and writes
// them in Overwrite mode, recreating the catalog table. It returns the
// number of rows written.
//
// Unreadable mirror files are skipped with a warning rather than failing
// the rebuild; they surface in the next catalog reconciliation pass.
func (w *Writer) RebuildFromRaw(ctx context.Context, mt models.MarketType) (int, error) {
	keys, err := w.store.List(ctx, w.cfg.RawPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing raw mirrors: %w", err)
	}

	var combined []models.Row
	files := 0
	for _, key := range keys {
		name := strings.TrimPrefix(key, w.cfg.RawPrefix)
		m := rawFilePattern.FindStringSubmatch(name)
		if m == nil || m[1] != string(mt) {
			continue
		}

		body, err := w.store.Get(ctx, key)
		if err != nil {
			w.logger.Warnf("Skipping unreadable raw mirror %s: %v", key, err)
			continue
		}
		rows, err := ReadRows(body)
		if err != nil {
			w.logger.Warnf("Skipping undecodable raw mirror %s: %v", key, err)
			continue
		}

		country := models.CanonicalCountry(m[2])
		for i := range rows {
			rows[i].Type = string(mt)
			rows[i].Country = country
			rows[i].SelectionNameCleaned = normalizer.CleanName(rows[i].SelectionName, country)
			rows[i].EventDate = rows[i].EventDT.Format("2006-01-02")
			rows[i].Year = int32(rows[i].EventDT.Year())
		}
		combined = append(combined, rows...)
		files++
	}

	if len(combined) == 0 {
		w.logger.Warnf("No raw mirror data found for type %s, leaving dataset untouched", mt)
		return 0, nil
	}

	w.logger.Infof("Rebuilding %s from %d raw files (%d rows)", models.TableName(mt), files, len(combined))
	if err := w.Write(ctx, combined, mt, Overwrite); err != nil {
		return 0, err
	}
	return len(combined), nil
}
