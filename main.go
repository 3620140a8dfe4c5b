package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"rental_scrooper/cache"
	"rental_scrooper/config"
	"rental_scrooper/logging"
	"rental_scrooper/models"
	"rental_scrooper/scheduler"
	"rental_scrooper/scraper"
	"rental_scrooper/services"
	"rental_scrooper/storage"
)

var (
	scrapeNow  = flag.Bool("scrape", false, "Refresh configured searches once and exit")
	searchName = flag.String("search", "", "Only refresh this configured search (with -scrape)")
	postalCode = flag.String("postal", "", "Run an ad-hoc search for this postal code and print JSON")
	maxPrice   = flag.Int("max-price", 0, "Max rent for -postal")
	radius     = flag.Int("radius", models.DefaultRadius, "Radius in km for -postal")
	pages      = flag.Int("pages", models.DefaultPageCount, "Result pages for -postal")
	showStatus = flag.Bool("status", false, "Print recent runs and stored listing count, then exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup, notably the
// Playwright driver shutdown, runs before the process exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return 1
	}

	var sinks []io.Writer
	if cfg.FluentHost != "" {
		fw, err := logging.NewFluentWriter(cfg.FluentHost, cfg.FluentPort)
		if err != nil {
			log.Warn().Err(err).Msg("Could not set up fluent logging")
		} else {
			defer fw.Close()
			sinks = append(sinks, fw)
		}
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel, sinks...)
	if err != nil {
		log.Warn().Err(err).Msg("Could not set up file logging")
	} else {
		defer logFile.Close()
	}

	log.Info().Int("searches", len(cfg.Searches)).Msg("Starting rental_scrooper")
	for name, search := range cfg.Searches {
		log.Info().Str("search", name).Str("url", scraper.BuildSearchURL(cfg.BaseURL, search.Filter, 1)).Msg("Search configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite always holds the run log; listings move to Postgres when configured.
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open SQLite")
		return 1
	}
	defer sqliteStore.Close()
	log.Info().Str("path", cfg.DBPath).Msg("SQLite database opened")

	var listingStore storage.ListingStore = sqliteStore
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Postgres")
			return 1
		}
		defer pgStore.Close()
		listingStore = pgStore
		log.Info().Str("url", maskConnectionString(cfg.DatabaseURL)).Msg("Connected to Postgres")
	}

	if *showStatus {
		if err := printStatus(ctx, sqliteStore, listingStore); err != nil {
			log.Error().Err(err).Msg("Status failed")
			return 1
		}
		return 0
	}

	backend, err := cache.NewBackend(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("Cache backend unavailable, running without cache")
	}
	responseCache := cache.New(backend, cfg.Cache.TTL, logging.For("cache"))
	defer responseCache.Close()
	log.Info().Bool("enabled", responseCache.Available()).Str("backend", cfg.Cache.Backend).Msg("Cache configured")

	session := scraper.NewPlaywrightSession(cfg.Browser, logging.For("browser"))
	defer session.Close()

	scr := scraper.New(cfg, logging.For("scraper"))
	if archiver := newArchiver(ctx, cfg); archiver != nil {
		scr.SetArchiver(archiver)
	}

	rentals := services.NewRentalService(scr, session, listingStore, responseCache, cfg.ScrapeTimeout, logging.For("rentals"))
	rentals.SetRunRecorder(sqliteStore)

	sched := scheduler.New(cfg, rentals, logging.For("scheduler"))

	if *postalCode != "" {
		filter := models.SearchFilter{PostalCode: *postalCode, Radius: *radius, PageCount: *pages}
		if *maxPrice > 0 {
			filter.MaxPrice = models.IntPtr(*maxPrice)
		}
		if err := postalSearch(ctx, rentals, filter, os.Stdout); err != nil {
			log.Error().Err(err).Bool("scrape_error", services.IsScrapeError(err)).Msg("Search failed")
			return 1
		}
		return 0
	}

	if *scrapeNow {
		log.Info().Msg("Running scrape...")
		if *searchName != "" {
			if err := sched.RunSearch(ctx, *searchName); err != nil {
				log.Error().Err(err).Str("search", *searchName).Msg("Scrape failed")
				return 1
			}
		} else {
			sched.RunAll(ctx)
		}
		log.Info().Msg("Scrape complete!")
		return 0
	}

	// Daemon mode
	if err := sched.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start scheduler")
		return 1
	}

	log.Info().Msg("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")
	cancel()
	sched.Stop()
	log.Info().Msg("Goodbye!")
	return 0
}

type searcher interface {
	SearchWithCacheAndPersistence(ctx context.Context, filter models.SearchFilter) (*services.SearchResult, error)
}

// postalSearch runs an ad-hoc search and writes the result as JSON. A result
// that came with a persistence error is still written.
func postalSearch(ctx context.Context, s searcher, filter models.SearchFilter, w io.Writer) error {
	result, err := s.SearchWithCacheAndPersistence(ctx, filter)
	if result != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil && err == nil {
			err = fmt.Errorf("write result: %w", encErr)
		}
	}
	return err
}

func newArchiver(ctx context.Context, cfg *config.Config) scraper.Archiver {
	switch {
	case cfg.Archive.S3Bucket != "":
		a, err := storage.NewS3Archiver(ctx, storage.S3Config{
			Bucket:          cfg.Archive.S3Bucket,
			Region:          cfg.Archive.S3Region,
			Endpoint:        cfg.Archive.S3Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("S3 archive disabled")
			return nil
		}
		log.Info().Str("bucket", cfg.Archive.S3Bucket).Msg("Archiving empty pages to S3")
		return a
	case cfg.Archive.Dir != "":
		a, err := storage.NewFileArchiver(cfg.Archive.Dir)
		if err != nil {
			log.Warn().Err(err).Msg("File archive disabled")
			return nil
		}
		log.Info().Str("dir", cfg.Archive.Dir).Msg("Archiving empty pages to disk")
		return a
	}
	return nil
}

func printStatus(ctx context.Context, runs *storage.SQLiteStore, listings storage.ListingStore) error {
	count, err := listings.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Stored listings: %d\n\n", count)

	recent, err := runs.RecentRuns(ctx, 10)
	if err != nil {
		return err
	}
	fmt.Printf("%-20s %-10s %-20s %6s %6s %8s\n", "SEARCH", "STATUS", "STARTED", "FOUND", "NEW", "UPDATED")
	for _, r := range recent {
		fmt.Printf("%-20s %-10s %-20s %6d %6d %8d\n",
			r.SearchName, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.ListingsFound, r.ListingsNew, r.ListingsUpdated)
		if r.ErrorMessage != "" {
			fmt.Printf("  error: %s\n", r.ErrorMessage)
		}
	}
	return nil
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
