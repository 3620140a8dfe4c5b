package models

import "time"

// RawListingRecord is one search result card as scraped, before any parsing.
// Empty strings mean the value was not rendered; nil detail fields mean no
// candidate text was found anywhere on the card.
type RawListingRecord struct {
	ExternalID      string
	URL             string
	Title           string
	PriceText       string
	OldPriceText    string
	Description     string
	Location        string
	RentalSpaceText *string
	RoomsText       *string
	AvailableFrom   *string
}

// NormalizedListing is the typed, persistence-ready form of a listing.
// ExternalID is the business key.
type NormalizedListing struct {
	ExternalID      string    `json:"adid" db:"external_id"`
	URL             string    `json:"url" db:"url"`
	Title           string    `json:"title" db:"title"`
	Price           *int      `json:"price" db:"price"`
	OldPrice        *int      `json:"old_price" db:"old_price"`
	Description     string    `json:"description" db:"description"`
	RentalSpace     *float64  `json:"rental_space" db:"rental_space"`
	Rooms           *float64  `json:"nbr_rooms" db:"nbr_rooms"`
	Location        string    `json:"location" db:"location"`
	Views           *int      `json:"views" db:"views"`
	AdditionalCosts *float64  `json:"additional_costs" db:"additional_costs"`
	Deposit         *float64  `json:"deposit" db:"deposit"`
	AvailableFrom   string    `json:"available_from" db:"available_from"`
	PostalCode      string    `json:"postal_code" db:"postal_code"`
	Category        string    `json:"category" db:"category"`
	LocationID      string    `json:"location_id" db:"location_id"`
	Radius          int       `json:"radius" db:"radius"`
	CreatedAt       time.Time `json:"created_at,omitzero" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at,omitzero" db:"updated_at"`
}

type UpsertOutcome string

const (
	UpsertInserted UpsertOutcome = "inserted"
	UpsertUpdated  UpsertOutcome = "updated"
	UpsertSkipped  UpsertOutcome = "skipped"
)
