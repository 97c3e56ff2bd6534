// Package scraper locates and downloads starting-price files from the
// Betfair promo endpoint.
package scraper

import (
	"fmt"
	"strings"
	"time"

	"finishtime/bfsp/internal/models"
)

// DefaultBaseURL is the location Betfair publishes daily SP files under.
const DefaultBaseURL = "https://promo.betfair.com/betfairsp/prices"

// Locator builds download URLs for coverage keys. The base URL is fixed
// at construction, so PriceURL stays a pure function of the key: the
// skip logic and replay machinery both rely on the same key always
// producing the same URL.
type Locator struct {
	baseURL string
}

// NewLocator creates a Locator. An empty baseURL selects the production
// endpoint.
func NewLocator(baseURL string) Locator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Locator{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// PriceURL builds the download URL for one coverage key.
//
// Example: PriceURL("gb", models.Win, 1 Jan 2024) ->
// <base>/dwbfpricesukwin01012024.csv
func (l Locator) PriceURL(country string, mt models.MarketType, date time.Time) string {
	return fmt.Sprintf("%s/dwbfprices%s%s%s.csv",
		l.baseURL,
		models.OriginCountry(country),
		strings.ToLower(string(mt)),
		date.Format("02012006"),
	)
}
