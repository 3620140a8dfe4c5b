package models

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultCategory  = "c203" // Wohnung mieten
	DefaultRadius    = 5
	DefaultPageCount = 1
	MaxPageCount     = 10
	MaxRadius        = 100
)

// SearchFilter describes one logical rental search. It is only used to
// derive search URLs and cache fingerprints and is never persisted as-is.
type SearchFilter struct {
	PostalCode string `json:"postal_code" yaml:"postal_code"`
	Category   string `json:"category" yaml:"category"`
	LocationID string `json:"location_id" yaml:"location_id"`
	Radius     int    `json:"radius" yaml:"radius"`
	MinPrice   *int   `json:"min_price" yaml:"min_price"`
	MaxPrice   *int   `json:"max_price" yaml:"max_price"`
	PageCount  int    `json:"page_count" yaml:"page_count"`
}

// WithDefaults returns a copy with unset fields filled in.
func (f SearchFilter) WithDefaults() SearchFilter {
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	if f.Category == "" {
		f.Category = DefaultCategory
	}
	if f.Radius == 0 {
		f.Radius = DefaultRadius
	}
	if f.PageCount == 0 {
		f.PageCount = DefaultPageCount
	}
	return f
}

func (f SearchFilter) Validate() error {
	var errs []error
	if f.PostalCode == "" {
		errs = append(errs, errors.New("postal code is required"))
	}
	if f.Category == "" {
		errs = append(errs, errors.New("category is required"))
	}
	if f.Radius < 1 || f.Radius > MaxRadius {
		errs = append(errs, fmt.Errorf("radius must be between 1 and %d, got %d", MaxRadius, f.Radius))
	}
	if f.PageCount < 1 || f.PageCount > MaxPageCount {
		errs = append(errs, fmt.Errorf("page count must be between 1 and %d, got %d", MaxPageCount, f.PageCount))
	}
	if f.MinPrice != nil && *f.MinPrice < 0 {
		errs = append(errs, errors.New("min price must not be negative"))
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		errs = append(errs, errors.New("max price must not be negative"))
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		errs = append(errs, fmt.Errorf("min price %d exceeds max price %d", *f.MinPrice, *f.MaxPrice))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid search filter: %w", errors.Join(errs...))
	}
	return nil
}

// CacheParams returns every field that influences a search result. Leaving
// one out would let distinct searches share a cache entry.
func (f SearchFilter) CacheParams() map[string]any {
	return map[string]any{
		"postal_code": f.PostalCode,
		"category":    f.Category,
		"location_id": f.LocationID,
		"radius":      f.Radius,
		"min_price":   f.MinPrice,
		"max_price":   f.MaxPrice,
		"page_count":  f.PageCount,
	}
}

// Context returns the attributes stored alongside every listing found by
// this search.
func (f SearchFilter) Context() ScrapeContext {
	return ScrapeContext{
		PostalCode: f.PostalCode,
		Category:   f.Category,
		LocationID: f.LocationID,
		Radius:     f.Radius,
	}
}

// ScrapeContext is the search under which a listing was last observed.
type ScrapeContext struct {
	PostalCode string `json:"postal_code"`
	Category   string `json:"category"`
	LocationID string `json:"location_id"`
	Radius     int    `json:"radius"`
}

func IntPtr(v int) *int { return &v }
