package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"rental_scrooper/models"
)

// SQLiteStore holds listings plus the operational run log. The run log
// always lives here, even when listings go to Postgres.
type SQLiteStore struct {
	db *sql.DB
}

var _ ListingStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rentals (
		external_id TEXT PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		price INTEGER,
		old_price INTEGER,
		description TEXT NOT NULL DEFAULT '',
		rental_space REAL,
		nbr_rooms REAL,
		location TEXT NOT NULL DEFAULT '',
		views INTEGER,
		additional_costs REAL,
		deposit REAL,
		available_from TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		radius INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		search_name TEXT,
		cache_key TEXT,
		search_url TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER,
		listings_new INTEGER,
		listings_updated INTEGER,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		search_name TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rentals_postal ON rentals(postal_code, updated_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Listings
// =============================================================================

func sqliteUpsertQuery() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(listingColumns)), ", ")
	return fmt.Sprintf(`
		INSERT INTO rentals (%s)
		VALUES (%s)
		ON CONFLICT(external_id) DO UPDATE SET
			%s`,
		strings.Join(listingColumns, ", "), placeholders, mergeAssignments())
}

var sqliteUpsert = sqliteUpsertQuery()

func (s *SQLiteStore) Upsert(ctx context.Context, l models.NormalizedListing, sc models.ScrapeContext) (models.UpsertOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.UpsertSkipped, err
	}
	defer tx.Rollback()

	outcome, err := upsertSQLite(ctx, tx, withContext(l, sc), time.Now().UTC())
	if err != nil {
		return outcome, err
	}
	return outcome, tx.Commit()
}

// BulkUpsert writes all listings in one transaction. Listings without an
// external id are skipped and not counted.
func (s *SQLiteStore) BulkUpsert(ctx context.Context, listings []models.NormalizedListing, sc models.ScrapeContext) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	inserted, updated := 0, 0
	for _, l := range listings {
		outcome, err := upsertSQLite(ctx, tx, withContext(l, sc), now)
		if errors.Is(err, ErrMissingExternalID) {
			continue
		}
		if err != nil {
			return 0, 0, fmt.Errorf("upsert %s: %w", l.ExternalID, err)
		}
		switch outcome {
		case models.UpsertInserted:
			inserted++
		case models.UpsertUpdated:
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func upsertSQLite(ctx context.Context, tx *sql.Tx, l models.NormalizedListing, now time.Time) (models.UpsertOutcome, error) {
	if l.ExternalID == "" {
		return models.UpsertSkipped, ErrMissingExternalID
	}

	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM rentals WHERE external_id = ?`, l.ExternalID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return models.UpsertSkipped, err
	}
	found := err == nil

	l.CreatedAt = now
	l.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, sqliteUpsert, listingArgs(&l)...); err != nil {
		return models.UpsertSkipped, err
	}

	if found {
		return models.UpsertUpdated, nil
	}
	return models.UpsertInserted, nil
}

func (s *SQLiteStore) GetByExternalID(ctx context.Context, externalID string) (*models.NormalizedListing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+strings.Join(listingColumns, ", ")+`
		FROM rentals WHERE external_id = ?`, externalID)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// List returns listings most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]models.NormalizedListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+strings.Join(listingColumns, ", ")+`
		FROM rentals ORDER BY updated_at DESC, external_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.NormalizedListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rentals`).Scan(&count)
	return count, err
}

// =============================================================================
// Runs & logs
// =============================================================================

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (search_name, cache_key, search_url, started_at, status,
			listings_found, listings_new, listings_updated, error_message)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, '')`,
		run.SearchName, run.CacheKey, run.SearchURL, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_new = ?, listings_updated = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsNew,
		run.ListingsUpdated, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runID *int64, level models.LogLevel, message, searchName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message, search_name)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, searchName)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, search_name, cache_key, search_url, started_at, finished_at, status,
			listings_found, listings_new, listings_updated, error_message
		FROM scrape_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.SearchName, &r.CacheKey, &r.SearchURL, &r.StartedAt, &r.FinishedAt,
			&r.Status, &r.ListingsFound, &r.ListingsNew, &r.ListingsUpdated, &errMsg); err != nil {
			return nil, err
		}
		r.ErrorMessage = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunLogs returns the log lines of one run in order.
func (s *SQLiteStore) RunLogs(ctx context.Context, runID int64) ([]models.ScrapeLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, level, message, search_name
		FROM scrape_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.SearchName); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
