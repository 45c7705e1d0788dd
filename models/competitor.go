package models

import "time"

type Competitor struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	RacerNumber int       `json:"racer_number" db:"racer_number"`
	BuilderName *string   `json:"builder_name,omitempty" db:"builder_name"`
	PhotoKey    *string   `json:"-" db:"photo_key"`
	PhotoURL    *string   `json:"photo_url,omitempty" db:"-"`
	CheckedIn   bool      `json:"checked_in" db:"checked_in"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// BestTime is the competitor's best qualifying time for the event in
	// question. Derived from qualifier rows, never stored.
	BestTime *float64 `json:"best_time,omitempty" db:"-"`
}
