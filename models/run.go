package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one execution of a search, scheduled or on demand.
type ScrapeRun struct {
	ID              int64      `json:"id" db:"id"`
	SearchName      string     `json:"search_name" db:"search_name"`
	CacheKey        string     `json:"cache_key" db:"cache_key"`
	SearchURL       string     `json:"search_url" db:"search_url"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	ListingsFound   int        `json:"listings_found" db:"listings_found"`
	ListingsNew     int        `json:"listings_new" db:"listings_new"`
	ListingsUpdated int        `json:"listings_updated" db:"listings_updated"`
	ErrorMessage    string     `json:"error_message" db:"error_message"`
}
