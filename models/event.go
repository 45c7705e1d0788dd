package models

import "time"

// Event is one race occasion. At most one event is active system-wide;
// the active event is the one operated by the timing system.
type Event struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	EventDate time.Time `json:"event_date" db:"event_date"`
	Location  *string   `json:"location,omitempty" db:"location"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
