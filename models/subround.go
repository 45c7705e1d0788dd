package models

import "time"

// SubRound is one timed heat inside a best-of-N bracket match. Track
// assignment alternates between odd and even sub-rounds to cancel lane
// bias: round 1 runs racer1 on track 1, round 2 swaps them, round 3 swaps
// back.
type SubRound struct {
	ID                 int       `json:"id" db:"id"`
	MatchID            int       `json:"match_id" db:"match_id"`
	RoundNumber        int       `json:"round_number" db:"round_number"`
	Racer1ID           *int      `json:"racer1_id,omitempty" db:"racer1_id"`
	Racer2ID           *int      `json:"racer2_id,omitempty" db:"racer2_id"`
	Racer1Track        int       `json:"racer1_track" db:"racer1_track"`
	Racer2Track        int       `json:"racer2_track" db:"racer2_track"`
	Racer1Time         *float64  `json:"racer1_time,omitempty" db:"racer1_time"`
	Racer2Time         *float64  `json:"racer2_time,omitempty" db:"racer2_time"`
	WinnerCompetitorID *int      `json:"winner_competitor_id,omitempty" db:"winner_competitor_id"`
	IsForfeit          bool      `json:"is_forfeit" db:"is_forfeit"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// RacerOnTrack returns the competitor assigned to the given track in this
// sub-round, honouring the alternating assignment.
func (r *SubRound) RacerOnTrack(track int) *int {
	if r.Racer1Track == track {
		return r.Racer1ID
	}
	if r.Racer2Track == track {
		return r.Racer2ID
	}
	return nil
}

// TimeOnTrack returns the recorded time for the given track, if any.
func (r *SubRound) TimeOnTrack(track int) *float64 {
	if r.Racer1Track == track {
		return r.Racer1Time
	}
	if r.Racer2Track == track {
		return r.Racer2Time
	}
	return nil
}
