package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rental_scrooper/models"
)

// Requires TEST_DATABASE_URL pointing at a disposable database, skipped
// otherwise.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Skipf("Postgres is not available, skipping test: %v", err)
	}
	_, err = store.pool.Exec(context.Background(), `TRUNCATE rentals`)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresBulkUpsert_Idempotent(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	inserted, updated, err := store.BulkUpsert(ctx, sampleListings(), testContext)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, updated)

	inserted, updated, err = store.BulkUpsert(ctx, sampleListings(), testContext)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, updated)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPostgresUpsert_CoalescesEmptyFields(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	original := sampleListings()[0]

	_, err := store.Upsert(ctx, original, testContext)
	require.NoError(t, err)

	outcome, err := store.Upsert(ctx, models.NormalizedListing{ExternalID: original.ExternalID}, testContext)
	require.NoError(t, err)
	assert.Equal(t, models.UpsertUpdated, outcome)

	got, err := store.GetByExternalID(ctx, original.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, original.Description, got.Description)
	assert.Equal(t, 950, *got.Price)
}
