package domain

import "time"

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ClientID    string    `json:"clientId"` // weak reference into clients
	HourlyRate  float64   `json:"hourlyRate"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p Project) Valid() bool {
	return p.ID != "" && p.Name != "" && p.HourlyRate >= 0
}
