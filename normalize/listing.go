package normalize

import (
	"strings"

	"rental_scrooper/models"
)

// Listing converts a scraped card into its persisted form. It is the only
// path from RawListingRecord to NormalizedListing.
func Listing(raw models.RawListingRecord, sc models.ScrapeContext) models.NormalizedListing {
	l := models.NormalizedListing{
		ExternalID:  strings.TrimSpace(raw.ExternalID),
		URL:         strings.TrimSpace(raw.URL),
		Title:       collapse(raw.Title),
		Price:       Price(raw.PriceText),
		OldPrice:    Price(raw.OldPriceText),
		Description: collapse(raw.Description),
		Location:    collapse(raw.Location),
		PostalCode:  sc.PostalCode,
		Category:    sc.Category,
		LocationID:  sc.LocationID,
		Radius:      sc.Radius,
	}

	if raw.RentalSpaceText != nil {
		l.RentalSpace = Area(*raw.RentalSpaceText)
	}
	if raw.RoomsText != nil {
		l.Rooms = Rooms(*raw.RoomsText)
	}
	if raw.AvailableFrom != nil {
		l.AvailableFrom = strings.TrimSpace(*raw.AvailableFrom)
	}

	l.AdditionalCosts = ExtractAdditionalCosts(l.Description)
	l.Deposit = ExtractDeposit(l.Description)

	return l
}

// Listings converts a page of records, preserving order.
func Listings(raws []models.RawListingRecord, sc models.ScrapeContext) []models.NormalizedListing {
	out := make([]models.NormalizedListing, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Listing(raw, sc))
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
