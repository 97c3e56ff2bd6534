package models

import (
	"testing"
	"time"
)

func TestRawFileName(t *testing.T) {
	key := CoverageKey{
		Country: "gb",
		Type:    Win,
		Date:    time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if got := key.RawFileName(); got != "wingb20240105.parquet" {
		t.Errorf("Unexpected raw file name %q", got)
	}

	key = CoverageKey{
		Country: "ire",
		Type:    Place,
		Date:    time.Date(2020, 11, 13, 0, 0, 0, 0, time.UTC),
	}
	if got := key.RawFileName(); got != "placeire20201113.parquet" {
		t.Errorf("Unexpected raw file name %q", got)
	}
}

func TestParseMarketType(t *testing.T) {
	for input, want := range map[string]MarketType{
		"win":    Win,
		"WIN":    Win,
		" Place": Place,
	} {
		got, err := ParseMarketType(input)
		if err != nil {
			t.Errorf("ParseMarketType(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("ParseMarketType(%q) = %q, expected %q", input, got, want)
		}
	}

	if _, err := ParseMarketType("exotic"); err == nil {
		t.Error("Expected error for unknown market type")
	}
}

func TestCountryMapping(t *testing.T) {
	if got := CanonicalCountry("UK"); got != "gb" {
		t.Errorf("CanonicalCountry(UK) = %q", got)
	}
	if got := CanonicalCountry("fr"); got != "fr" {
		t.Errorf("CanonicalCountry(fr) = %q", got)
	}
	if got := OriginCountry("gb"); got != "uk" {
		t.Errorf("OriginCountry(gb) = %q", got)
	}
	if got := OriginCountry("ire"); got != "ire" {
		t.Errorf("OriginCountry(ire) = %q", got)
	}
}

func TestTableNames(t *testing.T) {
	if got := TableName(Win); got != "betfair_win_prices" {
		t.Errorf("Unexpected table name %q", got)
	}
	if got := DatasetPrefix(Place); got != "place_price_datasets/" {
		t.Errorf("Unexpected dataset prefix %q", got)
	}
}
