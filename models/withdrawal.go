package models

import "time"

// Withdrawal marks a competitor inactive for an event. Once any bracket
// match exists for the event, a withdrawal is terminal.
type Withdrawal struct {
	ID           int       `json:"id" db:"id"`
	EventID      int       `json:"event_id" db:"event_id"`
	CompetitorID int       `json:"competitor_id" db:"competitor_id"`
	Reason       *string   `json:"reason,omitempty" db:"reason"`
	WithdrawnBy  *string   `json:"withdrawn_by,omitempty" db:"withdrawn_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// WithdrawalImpact is the dry-run preview of a withdrawal's effect on
// not-yet-run units of competition.
type WithdrawalImpact struct {
	ScheduledHeats    int `json:"scheduled_heats"`
	IncompleteMatches int `json:"incomplete_matches"`
	CompletedMatches  int `json:"completed_matches"`
}
