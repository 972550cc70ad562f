package scraper

import (
	"context"

	"github.com/solosuccess/competitor-intel/internal/models"
)

// Scraper defines the contract for fetching a page snapshot
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedContent, error)
}
