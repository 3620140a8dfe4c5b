package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rental_scrooper/models"
)

// ErrMissingExternalID is returned for listings that cannot be keyed.
var ErrMissingExternalID = errors.New("listing has no external id")

// ListingStore is the durable owner of listing state, keyed by external id.
// Updates coalesce: an empty or null incoming field keeps the stored value.
type ListingStore interface {
	Upsert(ctx context.Context, l models.NormalizedListing, sc models.ScrapeContext) (models.UpsertOutcome, error)
	BulkUpsert(ctx context.Context, listings []models.NormalizedListing, sc models.ScrapeContext) (inserted, updated int, err error)
	GetByExternalID(ctx context.Context, externalID string) (*models.NormalizedListing, error)
	List(ctx context.Context, limit, offset int) ([]models.NormalizedListing, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

var (
	textColumns = []string{
		"url", "title", "description", "location", "available_from",
		"postal_code", "category", "location_id",
	}
	numericColumns = []string{
		"price", "old_price", "rental_space", "nbr_rooms", "views",
		"additional_costs", "deposit",
	}

	// Order of listingArgs and of the scan targets in scanListing.
	listingColumns = []string{
		"external_id", "url", "title", "price", "old_price", "description",
		"rental_space", "nbr_rooms", "location", "views", "additional_costs",
		"deposit", "available_from", "postal_code", "category", "location_id",
		"radius", "created_at", "updated_at",
	}
)

// mergeAssignments renders the ON CONFLICT update list shared by both
// backends. created_at is never touched on update.
func mergeAssignments() string {
	parts := make([]string, 0, len(textColumns)+len(numericColumns)+2)
	for _, c := range textColumns {
		parts = append(parts, fmt.Sprintf("%s = COALESCE(NULLIF(excluded.%s, ''), rentals.%s)", c, c, c))
	}
	for _, c := range numericColumns {
		parts = append(parts, fmt.Sprintf("%s = COALESCE(excluded.%s, rentals.%s)", c, c, c))
	}
	parts = append(parts,
		"radius = COALESCE(NULLIF(excluded.radius, 0), rentals.radius)",
		"updated_at = excluded.updated_at",
	)
	return strings.Join(parts, ",\n\t\t\t")
}

func withContext(l models.NormalizedListing, sc models.ScrapeContext) models.NormalizedListing {
	l.ExternalID = strings.TrimSpace(l.ExternalID)
	l.PostalCode = sc.PostalCode
	l.Category = sc.Category
	l.LocationID = sc.LocationID
	l.Radius = sc.Radius
	return l
}

func listingArgs(l *models.NormalizedListing) []any {
	return []any{
		l.ExternalID, l.URL, l.Title, l.Price, l.OldPrice, l.Description,
		l.RentalSpace, l.Rooms, l.Location, l.Views, l.AdditionalCosts,
		l.Deposit, l.AvailableFrom, l.PostalCode, l.Category, l.LocationID,
		l.Radius, l.CreatedAt, l.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.NormalizedListing, error) {
	var l models.NormalizedListing
	err := row.Scan(
		&l.ExternalID, &l.URL, &l.Title, &l.Price, &l.OldPrice, &l.Description,
		&l.RentalSpace, &l.Rooms, &l.Location, &l.Views, &l.AdditionalCosts,
		&l.Deposit, &l.AvailableFrom, &l.PostalCode, &l.Category, &l.LocationID,
		&l.Radius, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
