// Package normalizer parses raw Betfair SP CSV files into canonical rows.
//
// Source files drift across years: column sets change, header casing is
// inconsistent and timestamp formats vary. The normalizer absorbs all of
// that so every row leaving this package conforms to models.SchemaColumns.
package normalizer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"finishtime/bfsp/internal/models"
)

// ErrMalformedSource marks a file whose identity columns are missing or
// unparseable. Such a file is never partially ingested and never retried;
// re-fetching will not fix malformed upstream data.
var ErrMalformedSource = errors.New("malformed source file")

// identityColumns must all be present for a file to be ingested at all.
var identityColumns = []string{"event_id", "event_dt", "selection_id", "selection_name"}

// eventDTLayouts are tried in order when parsing event_dt. The explicit
// Betfair layout comes first; the rest cover formats seen in older files.
var eventDTLayouts = []string{
	"02-01-2006 15:04",
	"02-01-2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// illegalNameSymbols is the symbol set stripped from selection names.
const illegalNameSymbols = "'$@#^(%*)._ "

// Normalize parses raw CSV bytes into canonical rows for one coverage
// key. The returned rows carry the canonical country code and derived
// columns; any canonical column the source file lacks is a typed null.
//
// A file missing an identity column, or whose identity values cannot be
// coerced, yields ErrMalformedSource and no rows. A file with a header
// but no data rows (or an empty body) yields an empty result and no
// error.
func Normalize(raw []byte, country string, mt models.MarketType) ([]models.Row, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedSource, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeColumnName(name)] = i
	}
	for _, name := range identityColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing identity column %q", ErrMalformedSource, name)
		}
	}

	canonicalCountry := models.CanonicalCountry(country)

	var rows []models.Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSource, line, err)
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		eventID, err := strconv.ParseInt(field("event_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: event_id %q is not an integer", ErrMalformedSource, line, field("event_id"))
		}
		selectionID, err := strconv.ParseInt(field("selection_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: selection_id %q is not an integer", ErrMalformedSource, line, field("selection_id"))
		}
		eventDT, err := parseEventDT(field("event_dt"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSource, line, err)
		}

		selectionName := field("selection_name")

		rows = append(rows, models.Row{
			EventID:              eventID,
			MenuHint:             optionalString(field("menu_hint")),
			EventName:            optionalString(field("event_name")),
			EventDT:              eventDT,
			SelectionID:          selectionID,
			SelectionName:        selectionName,
			WinLose:              optionalInt32(field("win_lose")),
			BSP:                  optionalFloat(field("bsp")),
			PPWAP:                optionalFloat(field("ppwap")),
			MorningWAP:           optionalFloat(field("morningwap")),
			PPMax:                optionalFloat(field("ppmax")),
			PPMin:                optionalFloat(field("ppmin")),
			IPMax:                optionalFloat(field("ipmax")),
			IPMin:                optionalFloat(field("ipmin")),
			MorningTradedVol:     optionalFloat(field("morningtradedvol")),
			PPTradedVol:          optionalFloat(field("pptradedvol")),
			IPTradedVol:          optionalFloat(field("iptradedvol")),
			Country:              canonicalCountry,
			Type:                 string(mt),
			SelectionNameCleaned: CleanName(selectionName, canonicalCountry),
			EventDate:            eventDT.Format("2006-01-02"),
			Year:                 int32(eventDT.Year()),
		})
	}

	return rows, nil
}

// parseEventDT parses a race start timestamp, trying the explicit
// Betfair layout first, and truncates it to minute precision so the
// same source row always normalizes to the same timestamp.
func parseEventDT(s string) (time.Time, error) {
	for _, layout := range eventDTLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(time.Minute), nil
		}
	}
	return time.Time{}, fmt.Errorf("event_dt %q matched no known layout", s)
}

// normalizeColumnName folds a header cell to the canonical column
// naming: lower-cased, trimmed, spaces collapsed to underscores.
func normalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}

// CleanName normalizes a selection name into a join-friendly identifier:
// case-folded and trimmed, leading digits dropped, the illegal symbol
// set stripped, and the canonical country appended as a suffix.
func CleanName(name, country string) string {
	x := strings.ToLower(strings.TrimSpace(name))
	for len(x) > 0 && x[0] >= '0' && x[0] <= '9' {
		x = x[1:]
	}
	x = strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalNameSymbols, r) {
			return -1
		}
		return r
	}, x)
	return x + "_" + country
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt32(s string) *int32 {
	if s == "" {
		return nil
	}
	// Some files carry win_lose as a float literal ("1.0").
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int32(f)
	return &v
}

func optionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
