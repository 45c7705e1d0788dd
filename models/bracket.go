package models

import "time"

type BracketGroup string

const (
	GroupWinner BracketGroup = "winner"
	GroupLoser  BracketGroup = "loser"
	GroupFinal  BracketGroup = "final"
)

type MatchFormat string

const (
	FormatSingle  MatchFormat = "single"
	FormatBestOf3 MatchFormat = "best_of_3"
)

// BracketMatch is the local mirror of one authority bracket match,
// augmented with event-specific data: track assignment, best-of-N state
// and hardware-timed results.
//
// Invariant: once WinnerCompetitorID is set the competitor slots are
// frozen; reconciliation may only touch ordering metadata.
type BracketMatch struct {
	ID                 int          `json:"id" db:"id"`
	EventID            int          `json:"event_id" db:"event_id"`
	ChallongeMatchID   *string      `json:"challonge_match_id,omitempty" db:"challonge_match_id"`
	ChallongeRound     *int         `json:"challonge_round,omitempty" db:"challonge_round"`
	SuggestedPlayOrder *int         `json:"suggested_play_order,omitempty" db:"suggested_play_order"`
	BracketGroup       BracketGroup `json:"bracket_group" db:"bracket_group"`
	RoundNumber        int          `json:"round_number" db:"round_number"`
	MatchNumber        int          `json:"match_number" db:"match_number"`
	Track1CompetitorID *int         `json:"track1_competitor_id,omitempty" db:"track1_competitor_id"`
	Track2CompetitorID *int         `json:"track2_competitor_id,omitempty" db:"track2_competitor_id"`
	Track1Time         *float64     `json:"track1_time,omitempty" db:"track1_time"`
	Track2Time         *float64     `json:"track2_time,omitempty" db:"track2_time"`
	MatchFormat        MatchFormat  `json:"match_format" db:"match_format"`
	TotalRounds        int          `json:"total_rounds" db:"total_rounds"`
	CurrentRound       int          `json:"current_round" db:"current_round"`
	RoundsWonTrack1    int          `json:"rounds_won_track1" db:"rounds_won_track1"`
	RoundsWonTrack2    int          `json:"rounds_won_track2" db:"rounds_won_track2"`
	WinnerCompetitorID *int         `json:"winner_competitor_id,omitempty" db:"winner_competitor_id"`
	WinnerTrack        *int         `json:"winner_track,omitempty" db:"winner_track"`
	IsCompleted        bool         `json:"is_completed" db:"is_completed"`
	IsForfeit          bool         `json:"is_forfeit" db:"is_forfeit"`
	ForfeitReason      *string      `json:"forfeit_reason,omitempty" db:"forfeit_reason"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`

	Track1Competitor *Competitor `json:"track1_competitor,omitempty" db:"-"`
	Track2Competitor *Competitor `json:"track2_competitor,omitempty" db:"-"`
}

// Decided reports whether the match has a result of any kind: a winner,
// a forfeit completion, or both slots empty after a double withdrawal.
func (m *BracketMatch) Decided() bool {
	return m.WinnerCompetitorID != nil || m.IsCompleted
}

// IsBye reports whether the match has exactly one assigned competitor.
func (m *BracketMatch) IsBye() bool {
	return (m.Track1CompetitorID != nil) != (m.Track2CompetitorID != nil)
}

// CompetitorOnTrack returns the competitor id assigned to the given track,
// or nil for an empty slot.
func (m *BracketMatch) CompetitorOnTrack(track int) *int {
	if track == 1 {
		return m.Track1CompetitorID
	}
	return m.Track2CompetitorID
}
