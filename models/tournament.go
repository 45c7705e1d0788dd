package models

import "time"

// TournamentStatus mirrors the ENUM in the database.
type TournamentStatus string

const (
	TournamentStatusPending   TournamentStatus = "pending"
	TournamentStatusActive    TournamentStatus = "active"
	TournamentStatusCompleted TournamentStatus = "completed"
)

// TournamentInstance binds one external-authority bracket tournament 1:1
// to an event. The authority owns the bracket tree; locally we keep only
// the binding plus the seed map.
type TournamentInstance struct {
	ID                   int              `json:"id" db:"id"`
	EventID              int              `json:"event_id" db:"event_id"`
	ChallongeTournamentID string          `json:"challonge_tournament_id" db:"challonge_tournament_id"`
	ChallongeURL         string           `json:"challonge_url" db:"challonge_url"`
	TournamentType       string           `json:"tournament_type" db:"tournament_type"`
	Status               TournamentStatus `json:"status" db:"status"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// SeedEntry maps a local competitor to the authority's participant id for
// one tournament instance. Seed rank is derived from qualifying time at
// registration (fastest = seed 1).
type SeedEntry struct {
	ID                     int       `json:"id" db:"id"`
	TournamentID           int       `json:"tournament_id" db:"tournament_id"`
	CompetitorID           int       `json:"competitor_id" db:"competitor_id"`
	ChallongeParticipantID string    `json:"challonge_participant_id" db:"challonge_participant_id"`
	Seed                   *int      `json:"seed,omitempty" db:"seed"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}
