package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"rental_scrooper/cache"
	"rental_scrooper/identity"
	"rental_scrooper/models"
	"rental_scrooper/normalize"
	"rental_scrooper/scraper"
	"rental_scrooper/storage"
)

const (
	cacheNamespace   = "kleinanzeigen_search"
	defaultListLimit = 50
)

// PersistenceError means the scrape succeeded but the store rejected the
// result. The accompanying SearchResult still carries the listings.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist listings: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RunRecorder keeps the operational history of refresh runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error)
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error
	Log(ctx context.Context, runID *int64, level models.LogLevel, message, searchName string) error
}

type SearchResult struct {
	SearchURL string                     `json:"search_url"`
	Listings  []models.NormalizedListing `json:"listings"`
	CacheHit  bool                       `json:"cache_hit"`
	Inserted  int                        `json:"inserted"`
	Updated   int                        `json:"updated"`
}

// RentalService is the entry point for callers: scrape, normalize, cache,
// persist.
type RentalService struct {
	scraper *scraper.Scraper
	session scraper.Session
	store   storage.ListingStore
	cache   *cache.Cache
	runs    RunRecorder
	timeout time.Duration
	log     zerolog.Logger
}

func NewRentalService(
	scr *scraper.Scraper,
	session scraper.Session,
	store storage.ListingStore,
	c *cache.Cache,
	timeout time.Duration,
	log zerolog.Logger,
) *RentalService {
	return &RentalService{
		scraper: scr,
		session: session,
		store:   store,
		cache:   c,
		timeout: timeout,
		log:     log,
	}
}

// SetRunRecorder enables run bookkeeping for Refresh.
func (s *RentalService) SetRunRecorder(r RunRecorder) {
	s.runs = r
}

// CacheKey is the fingerprint of every filter field.
func CacheKey(filter models.SearchFilter) string {
	return identity.RequestFingerprint(cacheNamespace, filter.WithDefaults().CacheParams())
}

// SearchListings scrapes and normalizes without touching cache or store.
func (s *RentalService) SearchListings(ctx context.Context, filter models.SearchFilter) ([]models.NormalizedListing, error) {
	filter = filter.WithDefaults()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raws, err := s.scraper.Scrape(ctx, s.session, filter)
	if err != nil {
		return nil, err
	}
	return normalize.Listings(raws, filter.Context()), nil
}

// SearchWithCacheAndPersistence serves a search from cache when possible,
// otherwise scrapes, caches and persists it. A store failure still returns
// the scraped listings, together with a *PersistenceError.
func (s *RentalService) SearchWithCacheAndPersistence(ctx context.Context, filter models.SearchFilter) (*SearchResult, error) {
	filter = filter.WithDefaults()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	key := CacheKey(filter)
	result := &SearchResult{SearchURL: scraper.BuildSearchURL(s.scraper.BaseURL(), filter, 1)}

	var cached []models.NormalizedListing
	if s.cache.Get(ctx, key, &cached) {
		s.log.Debug().Str("key", key).Int("listings", len(cached)).Msg("Cache hit")
		result.Listings = cached
		result.CacheHit = true
		return result, nil
	}

	listings, err := s.SearchListings(ctx, filter)
	if err != nil {
		return nil, err
	}
	result.Listings = listings

	s.cache.Set(ctx, key, listings, 0)

	inserted, updated, err := s.store.BulkUpsert(ctx, listings, filter.Context())
	if err != nil {
		s.log.Error().Err(err).Str("postal_code", filter.PostalCode).Msg("Failed to persist listings")
		return result, &PersistenceError{Err: err}
	}
	result.Inserted = inserted
	result.Updated = updated

	s.log.Info().
		Str("postal_code", filter.PostalCode).
		Int("found", len(listings)).
		Int("inserted", inserted).
		Int("updated", updated).
		Msg("Search persisted")
	return result, nil
}

// Refresh is the scheduled path: it never reads the cache, always scrapes,
// persists, rewrites the cache entry and records a run.
func (s *RentalService) Refresh(ctx context.Context, name string, filter models.SearchFilter) (*SearchResult, error) {
	filter = filter.WithDefaults()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	key := CacheKey(filter)
	run := &models.ScrapeRun{
		SearchName: name,
		CacheKey:   key,
		SearchURL:  scraper.BuildSearchURL(s.scraper.BaseURL(), filter, 1),
		StartedAt:  time.Now(),
		Status:     models.RunStatusRunning,
	}
	s.startRun(ctx, run)
	s.runLog(ctx, run, models.LogLevelInfo, fmt.Sprintf("Starting refresh of %s (%d pages)", name, filter.PageCount))

	result := &SearchResult{SearchURL: run.SearchURL}
	listings, err := s.SearchListings(ctx, filter)
	if err != nil {
		s.runLog(ctx, run, models.LogLevelError, fmt.Sprintf("Scrape failed: %v", err))
		s.finishRun(ctx, run, models.RunStatusFailed, err)
		return nil, err
	}
	result.Listings = listings
	run.ListingsFound = len(listings)

	s.cache.Set(ctx, key, listings, 0)

	inserted, updated, err := s.store.BulkUpsert(ctx, listings, filter.Context())
	if err != nil {
		s.runLog(ctx, run, models.LogLevelError, fmt.Sprintf("Persist failed: %v", err))
		s.finishRun(ctx, run, models.RunStatusPartial, err)
		return result, &PersistenceError{Err: err}
	}
	result.Inserted, result.Updated = inserted, updated
	run.ListingsNew, run.ListingsUpdated = inserted, updated

	s.runLog(ctx, run, models.LogLevelInfo,
		fmt.Sprintf("Refresh complete: %d found, %d new, %d updated", len(listings), inserted, updated))
	s.finishRun(ctx, run, models.RunStatusCompleted, nil)
	return result, nil
}

func (s *RentalService) GetListing(ctx context.Context, externalID string) (*models.NormalizedListing, error) {
	l, err := s.store.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return l, nil
}

func (s *RentalService) ListStored(ctx context.Context, limit, offset int) ([]models.NormalizedListing, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	listings, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return listings, nil
}

func (s *RentalService) CountStored(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, &PersistenceError{Err: err}
	}
	return n, nil
}

// IsScrapeError reports whether err came from the scraper rather than the
// store or filter validation.
func IsScrapeError(err error) bool {
	var se *scraper.ScrapeError
	return errors.As(err, &se)
}

// Run bookkeeping failures are logged and never fail a refresh.

func (s *RentalService) startRun(ctx context.Context, run *models.ScrapeRun) {
	if s.runs == nil {
		return
	}
	id, err := s.runs.CreateRun(ctx, run)
	if err != nil {
		s.log.Warn().Err(err).Str("search", run.SearchName).Msg("Failed to create run record")
		return
	}
	run.ID = id
}

func (s *RentalService) finishRun(ctx context.Context, run *models.ScrapeRun, status models.RunStatus, runErr error) {
	// Record the outcome even when the caller gave up.
	ctx = context.WithoutCancel(ctx)
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}

	event := s.log.Info()
	if status != models.RunStatusCompleted {
		event = s.log.Warn()
	}
	event.Str("search", run.SearchName).
		Str("status", string(status)).
		Int("found", run.ListingsFound).
		Int("new", run.ListingsNew).
		Int("updated", run.ListingsUpdated).
		Dur("duration", now.Sub(run.StartedAt)).
		Msg("Run finished")

	if s.runs == nil || run.ID == 0 {
		return
	}
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		s.log.Warn().Err(err).Int64("run_id", run.ID).Msg("Failed to update run record")
	}
}

func (s *RentalService) runLog(ctx context.Context, run *models.ScrapeRun, level models.LogLevel, message string) {
	if s.runs == nil || run.ID == 0 {
		return
	}
	if err := s.runs.Log(context.WithoutCancel(ctx), &run.ID, level, message, run.SearchName); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write run log")
	}
}
