package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"rental_scrooper/config"
	"rental_scrooper/models"
)

// ScrapeError reports a failed scrape. Navigation and browser failures are
// not retried here.
type ScrapeError struct {
	URL  string
	Page int
	Err  error
}

func (e *ScrapeError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("scrape failed: %v", e.Err)
	}
	return fmt.Sprintf("scrape %s (page %d) failed: %v", e.URL, e.Page, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// Archiver keeps the HTML of pages that rendered no listings so selector
// drift can be inspected later.
type Archiver interface {
	Archive(ctx context.Context, name string, html []byte) error
}

type Scraper struct {
	baseURL     string
	navTimeout  time.Duration
	waitTimeout time.Duration
	archiver    Archiver
	log         zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger) *Scraper {
	return &Scraper{
		baseURL:     cfg.BaseURL,
		navTimeout:  cfg.Browser.NavTimeout,
		waitTimeout: cfg.Browser.WaitTimeout,
		log:         log,
	}
}

func (s *Scraper) SetArchiver(a Archiver) {
	s.archiver = a
}

func (s *Scraper) BaseURL() string {
	return s.baseURL
}

// Scrape walks pages 1..filter.PageCount on a single page resource and
// returns the cards in page order, then DOM order. The page is released on
// every return path.
func (s *Scraper) Scrape(ctx context.Context, session Session, filter models.SearchFilter) (records []models.RawListingRecord, err error) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, &ScrapeError{Err: fmt.Errorf("open page: %w", err)}
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("Failed to close page")
		}
	}()

	for n := 1; n <= filter.PageCount; n++ {
		url := BuildSearchURL(s.baseURL, filter, n)
		if err := ctx.Err(); err != nil {
			return nil, &ScrapeError{URL: url, Page: n, Err: err}
		}

		found, err := s.scrapePage(ctx, page, filter, url, n)
		if err != nil {
			return nil, &ScrapeError{URL: url, Page: n, Err: err}
		}
		records = append(records, found...)
	}

	s.log.Info().
		Str("postal_code", filter.PostalCode).
		Int("pages", filter.PageCount).
		Int("listings", len(records)).
		Msg("Scrape finished")
	return records, nil
}

func (s *Scraper) scrapePage(ctx context.Context, page Page, filter models.SearchFilter, url string, n int) ([]models.RawListingRecord, error) {
	s.log.Debug().Str("url", url).Int("page", n).Msg("Navigating")
	if err := page.Navigate(ctx, url, s.navTimeout); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	timedOut := false
	if err := page.WaitForVisible(listSelector, s.waitTimeout); err != nil {
		if !errors.Is(err, ErrWaitTimeout) {
			return nil, fmt.Errorf("wait for listings: %w", err)
		}
		timedOut = true
		s.log.Warn().Str("url", url).Dur("timeout", s.waitTimeout).Msg("Listings did not become visible, extracting anyway")
	}

	records, err := Extract(page, filter.Category, s.baseURL)
	if err != nil {
		return nil, err
	}

	if timedOut && len(records) == 0 {
		s.archive(ctx, page, filter, n)
	}

	s.log.Debug().Str("url", url).Int("listings", len(records)).Msg("Page extracted")
	return records, nil
}

func (s *Scraper) archive(ctx context.Context, page Page, filter models.SearchFilter, n int) {
	if s.archiver == nil {
		return
	}
	html, err := page.Content()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read page content for archive")
		return
	}
	name := fmt.Sprintf("%s_%s_p%d_%s.html", filter.PostalCode, filter.Category, n, time.Now().UTC().Format("20060102T150405"))
	if err := s.archiver.Archive(ctx, name, []byte(html)); err != nil {
		s.log.Warn().Err(err).Str("name", name).Msg("Failed to archive page")
		return
	}
	s.log.Info().Str("name", name).Msg("Archived empty result page")
}
