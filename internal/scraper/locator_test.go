package scraper

import (
	"testing"
	"time"

	"finishtime/bfsp/internal/models"
)

func TestPriceURL(t *testing.T) {
	locator := NewLocator("")

	tests := []struct {
		name     string
		country  string
		mt       models.MarketType
		date     time.Time
		expected string
	}{
		{
			name:     "gb maps to uk segment",
			country:  "gb",
			mt:       models.Win,
			date:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: "https://promo.betfair.com/betfairsp/prices/dwbfpricesukwin01012024.csv",
		},
		{
			name:     "other countries pass through",
			country:  "ire",
			mt:       models.Place,
			date:     time.Date(2020, 11, 13, 0, 0, 0, 0, time.UTC),
			expected: "https://promo.betfair.com/betfairsp/prices/dwbfpricesireplace13112020.csv",
		},
		{
			name:     "date is zero padded",
			country:  "fr",
			mt:       models.Win,
			date:     time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC),
			expected: "https://promo.betfair.com/betfairsp/prices/dwbfpricesfrwin03022023.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := locator.PriceURL(tt.country, tt.mt, tt.date)
			if got != tt.expected {
				t.Errorf("Expected URL %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNewLocatorBaseURL(t *testing.T) {
	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	custom := NewLocator("http://127.0.0.1:9999/")
	if got := custom.PriceURL("gb", models.Win, date); got != "http://127.0.0.1:9999/dwbfpricesukwin15062024.csv" {
		t.Errorf("Unexpected URL for custom base: %q", got)
	}

	// Empty base selects the production endpoint.
	def := NewLocator("")
	if got := def.PriceURL("gb", models.Win, date); got != DefaultBaseURL+"/dwbfpricesukwin15062024.csv" {
		t.Errorf("Unexpected URL for default base: %q", got)
	}
}

func TestPriceURLDeterminism(t *testing.T) {
	locator := NewLocator("")
	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	first := locator.PriceURL("gb", models.Win, date)
	second := locator.PriceURL("gb", models.Win, date)

	if first != second {
		t.Errorf("Same inputs produced different URLs: %q vs %q", first, second)
	}
}
