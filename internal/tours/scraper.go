package tours

import (
	"context"
	"log"
	"strings"

	"github.com/stellarlinkco/huarazbot/internal/fetch"
)

// Scraper fetches the configured tour pages and extracts a record from each.
type Scraper struct {
	baseURL string
	paths   []string
	getter  fetch.Getter
}

func NewScraper(baseURL string, paths []string, getter fetch.Getter) *Scraper {
	return &Scraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		paths:   append([]string(nil), paths...),
		getter:  getter,
	}
}

// ScrapePage fetches and extracts a single page.
func (s *Scraper) ScrapePage(ctx context.Context, path string) fetch.Result[TourRecord] {
	pageURL := s.baseURL + path
	log.Printf("[prices] scraping %s", pageURL)

	body, err := s.getter.Get(ctx, pageURL)
	if err != nil {
		return fetch.Classify[TourRecord](err, fetch.KindFetchFailed)
	}

	rec, err := Extract(path, pageURL, body)
	if err != nil {
		return fetch.Fail[TourRecord](fetch.KindParseFailed, err)
	}
	return fetch.Ok(rec)
}

// ScrapeAll scrapes every configured page in order. Pages that fail are
// logged and skipped; the returned slice holds whatever succeeded.
func (s *Scraper) ScrapeAll(ctx context.Context) []TourRecord {
	records := make([]TourRecord, 0, len(s.paths))
	for _, path := range s.paths {
		if ctx != nil && ctx.Err() != nil {
			log.Printf("[prices] scrape cancelled after %d pages: %v", len(records), ctx.Err())
			break
		}
		res := s.ScrapePage(ctx, path)
		rec, err := res.Unwrap()
		if !res.IsOk() {
			log.Printf("[prices] skip %s (%s): %v", path, res.Kind(), err)
			continue
		}
		log.Printf("[prices] extracted %s (%s) - %s", rec.Name, rec.Category, priceOrDefault(rec.Price, "sin precio"))
		records = append(records, rec)
	}
	log.Printf("[prices] scrape finished: %d/%d pages", len(records), len(s.paths))
	return records
}

func priceOrDefault(price, fallback string) string {
	if price == "" {
		return fallback
	}
	return price
}
