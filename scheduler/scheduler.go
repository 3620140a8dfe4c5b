package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"rental_scrooper/config"
	"rental_scrooper/models"
	"rental_scrooper/services"
)

// ErrAlreadyRunning is returned when a search is triggered while its
// previous run has not finished.
var ErrAlreadyRunning = errors.New("search already running")

// Refresher re-scrapes and persists one named search.
type Refresher interface {
	Refresh(ctx context.Context, name string, filter models.SearchFilter) (*services.SearchResult, error)
}

type Scheduler struct {
	cfg       *config.Config
	refresher Refresher
	cron      *cron.Cron
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	log       zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

func New(cfg *config.Config, refresher Refresher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		refresher: refresher,
		cron:      cron.New(),
		stopCh:    make(chan struct{}),
		log:       log,
		running:   make(map[string]bool),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		s.log.Info().Str("cron", s.cfg.Scheduler.Cron).Msg("Starting scheduler")
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.RunAll(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		s.log.Info().Dur("interval", s.cfg.Scheduler.Interval).Msg("Starting scheduler")
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.RunAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.log.Info().Msg("No schedule configured, searches only run on demand")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		// Waits for running cron jobs.
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// RunAll refreshes every configured search in name order. One failing
// search does not stop the others.
func (s *Scheduler) RunAll(ctx context.Context) {
	names := make([]string, 0, len(s.cfg.Searches))
	for name := range s.cfg.Searches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if err := s.RunSearch(ctx, name); err != nil {
			s.log.Error().Err(err).Str("search", name).Msg("Scheduled run error")
		}
	}
}

func (s *Scheduler) RunSearch(ctx context.Context, name string) error {
	search, ok := s.cfg.Searches[name]
	if !ok {
		return fmt.Errorf("unknown search: %s", name)
	}

	if !s.acquire(name) {
		s.log.Warn().Str("search", name).Msg("Previous run still active, skipping")
		return ErrAlreadyRunning
	}
	defer s.release(name)

	result, err := s.refresher.Refresh(ctx, name, search.Filter)
	if err != nil {
		return err
	}
	s.log.Info().
		Str("search", name).
		Int("found", len(result.Listings)).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Msg("Search refreshed")
	return nil
}

func (s *Scheduler) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}
