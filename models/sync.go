package models

import "time"

// SyncRecord is the idempotency ledger entry proving a local match result
// has been pushed to the authority. Keyed uniquely by match id; presence
// means sync already happened and must not be repeated without an explicit
// operator override that deletes the record first.
type SyncRecord struct {
	ID                  int       `json:"id" db:"id"`
	MatchID             int       `json:"match_id" db:"match_id"`
	TournamentID        int       `json:"tournament_id" db:"tournament_id"`
	ChallongeMatchID    string    `json:"challonge_match_id" db:"challonge_match_id"`
	ScoresCSV           string    `json:"scores_csv" db:"scores_csv"`
	WinnerParticipantID string    `json:"winner_participant_id" db:"winner_participant_id"`
	SyncedAt            time.Time `json:"synced_at" db:"synced_at"`
}
