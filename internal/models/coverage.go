package models

import (
	"fmt"
	"strings"
	"time"
)

// MarketType is the betting market a price file covers.
type MarketType string

const (
	Win   MarketType = "win"
	Place MarketType = "place"
)

// AllMarketTypes lists every supported market type.
var AllMarketTypes = []MarketType{Win, Place}

// ParseMarketType parses a market type string, case-insensitively.
func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(strings.ToLower(strings.TrimSpace(s))) {
	case Win:
		return Win, nil
	case Place:
		return Place, nil
	}
	return "", fmt.Errorf("unknown market type %q", s)
}

// CanonicalCountry folds a country code to its canonical form:
// lower-cased, with "uk" stored as "gb".
func CanonicalCountry(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "uk" {
		return "gb"
	}
	return c
}

// OriginCountry maps a country code to the segment Betfair uses in
// download URLs. The origin publishes GB files under "uk"; every other
// code passes through lower-cased.
func OriginCountry(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "gb" {
		return "uk"
	}
	return c
}

// CoverageKey identifies one unit of ingestible data: a price file for
// one country, market type and calendar day.
type CoverageKey struct {
	Country string
	Type    MarketType
	Date    time.Time
}

// RawFileName is the deterministic name of the raw mirror object for
// this key, relative to the raw data prefix. The name doubles as the
// membership key of the file-based existence index, so it must never
// change shape.
func (k CoverageKey) RawFileName() string {
	return fmt.Sprintf("%s%s%04d%02d%02d.parquet",
		k.Type, k.Country, k.Date.Year(), int(k.Date.Month()), k.Date.Day())
}

func (k CoverageKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Country, k.Type, k.Date.Format("2006-01-02"))
}

// TableName returns the canonical catalog table for a market type.
func TableName(mt MarketType) string {
	return fmt.Sprintf("betfair_%s_prices", mt)
}

// DatasetPrefix returns the object-storage prefix holding the dataset
// files backing TableName(mt).
func DatasetPrefix(mt MarketType) string {
	return fmt.Sprintf("%s_price_datasets/", mt)
}
