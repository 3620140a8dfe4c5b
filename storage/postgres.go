package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rental_scrooper/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ ListingStore = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rentals (
			id UUID PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			price INTEGER,
			old_price INTEGER,
			description TEXT NOT NULL DEFAULT '',
			rental_space DOUBLE PRECISION,
			nbr_rooms DOUBLE PRECISION,
			location TEXT NOT NULL DEFAULT '',
			views INTEGER,
			additional_costs DOUBLE PRECISION,
			deposit DOUBLE PRECISION,
			available_from TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			location_id TEXT NOT NULL DEFAULT '',
			radius INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_postal ON rentals(postal_code, updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func postgresUpsertQuery() string {
	placeholders := make([]string, 0, len(listingColumns)+1)
	for i := 1; i <= len(listingColumns)+1; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
	}
	// xmax is 0 only for rows created by this statement.
	return fmt.Sprintf(`
		INSERT INTO rentals (id, %s)
		VALUES (%s)
		ON CONFLICT (external_id) DO UPDATE SET
			%s
		RETURNING (xmax = 0)`,
		strings.Join(listingColumns, ", "), strings.Join(placeholders, ", "), mergeAssignments())
}

var postgresUpsert = postgresUpsertQuery()

func (s *PostgresStore) Upsert(ctx context.Context, l models.NormalizedListing, sc models.ScrapeContext) (models.UpsertOutcome, error) {
	return upsertPostgres(ctx, s.pool, withContext(l, sc), time.Now().UTC())
}

// BulkUpsert writes all listings in one transaction. Listings without an
// external id are skipped and not counted.
func (s *PostgresStore) BulkUpsert(ctx context.Context, listings []models.NormalizedListing, sc models.ScrapeContext) (int, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	inserted, updated := 0, 0
	for _, l := range listings {
		outcome, err := upsertPostgres(ctx, tx, withContext(l, sc), now)
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

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, updated, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsertPostgres(ctx context.Context, q pgQuerier, l models.NormalizedListing, now time.Time) (models.UpsertOutcome, error) {
	if l.ExternalID == "" {
		return models.UpsertSkipped, ErrMissingExternalID
	}

	l.CreatedAt = now
	l.UpdatedAt = now
	args := append([]any{uuid.New()}, listingArgs(&l)...)

	var inserted bool
	if err := q.QueryRow(ctx, postgresUpsert, args...).Scan(&inserted); err != nil {
		return models.UpsertSkipped, err
	}
	if inserted {
		return models.UpsertInserted, nil
	}
	return models.UpsertUpdated, nil
}

func (s *PostgresStore) GetByExternalID(ctx context.Context, externalID string) (*models.NormalizedListing, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+strings.Join(listingColumns, ", ")+`
		FROM rentals WHERE external_id = $1`, externalID)

	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]models.NormalizedListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+strings.Join(listingColumns, ", ")+`
		FROM rentals ORDER BY updated_at DESC, external_id LIMIT $1 OFFSET $2`, limit, offset)
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

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rentals`).Scan(&count)
	return count, err
}
