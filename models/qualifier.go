package models

import "time"

type HeatStatus string

const (
	HeatStatusScheduled  HeatStatus = "scheduled"
	HeatStatusInProgress HeatStatus = "in_progress"
	HeatStatusCompleted  HeatStatus = "completed"
)

// Qualifier is one competitor's slot in a qualifying heat: the heat pairs
// two slots (track 1 and track 2) under the same heat number. Heats are
// produced in batches by the heat generator and consumed in scheduled order.
type Qualifier struct {
	ID             int        `json:"id" db:"id"`
	EventID        int        `json:"event_id" db:"event_id"`
	CompetitorID   int        `json:"competitor_id" db:"competitor_id"`
	HeatNumber     int        `json:"heat_number" db:"heat_number"`
	TrackNumber    int        `json:"track_number" db:"track_number"`
	ScheduledOrder int        `json:"scheduled_order" db:"scheduled_order"`
	Status         HeatStatus `json:"status" db:"status"`
	Time           *float64   `json:"time,omitempty" db:"time"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`

	Competitor *Competitor `json:"competitor,omitempty" db:"-"`
}
