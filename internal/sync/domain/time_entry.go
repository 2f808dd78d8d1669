package domain

import "time"

type TimeEntry struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"` // weak reference into projects
	Date        string    `json:"date"`      // ISO day, e.g. "2026-08-28"
	Description string    `json:"description"`
	Hours       float64   `json:"hours"`
	Billable    bool      `json:"billable"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e TimeEntry) Valid() bool {
	return e.ID != "" && e.Hours >= 0
}
