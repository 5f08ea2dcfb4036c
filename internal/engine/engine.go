// Package engine drives one review-harvest session per URL over a page.Page.
package engine

import (
	"context"

	"github.com/law-makers/revscrape/pkg/models"
)

// Scraper is the interface that all harvest engines must implement
type Scraper interface {
	// Run harvests url and reports how the session ended
	Run(ctx context.Context, url string) (*models.Report, error)

	// Scrape harvests url and returns the records collected. It never fails:
	// errors are logged and yield an empty or partial result.
	Scrape(ctx context.Context, url string) models.ScrapeResult

	// Name returns the name of the scraper implementation
	Name() string
}
