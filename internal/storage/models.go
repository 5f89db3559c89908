package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TimeLayout is the local-naive timestamp format used in the activities
// table and everywhere activity timestamps cross a process boundary.
const TimeLayout = "2006-01-02T15:04:05"

// DateLayout is the calendar-day format accepted by range queries.
const DateLayout = "2006-01-02"

// Activity is one closed focus interval. Domain is empty for non-browser
// processes; StartTime/EndTime are TimeLayout strings in local time.
type Activity struct {
	ID              int64  `json:"id"`
	ProcessName     string `json:"process_name"`
	WindowTitle     string `json:"window_title"`
	Domain          string `json:"domain,omitempty"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// AppSummary is one row of a per-process aggregation for a day.
type AppSummary struct {
	ProcessName  string  `json:"process_name"`
	TotalSeconds int64   `json:"total_seconds"`
	Percentage   float64 `json:"percentage"`
}

// DomainSummary is one row of a per-domain aggregation for a day.
// Activities without a domain are excluded from the grouping.
type DomainSummary struct {
	Domain       string  `json:"domain"`
	TotalSeconds int64   `json:"total_seconds"`
	Percentage   float64 `json:"percentage"`
}
