package models

type HeatType string

const (
	HeatTypeQualifier HeatType = "qualifier"
	HeatTypeBracket   HeatType = "bracket"
)

// HeatSlot is one track's entry in a unified heat view.
type HeatSlot struct {
	TrackNumber int      `json:"track_number"`
	CompetitorID int     `json:"competitor_id"`
	Name        string   `json:"racer_name,omitempty"`
	RacerNumber int      `json:"racer_number,omitempty"`
	PhotoURL    *string  `json:"racer_photo_url,omitempty"`
	Time        *float64 `json:"time,omitempty"`
}

// HeatView is the unified current/upcoming unit of competition exposed to
// operators and the timing client. HeatNumber is a sequential display
// index (position in play order), not a database key.
type HeatView struct {
	HeatNumber int      `json:"heat_number"`
	Type       HeatType `json:"type"`
	Slots      []HeatSlot `json:"racers"`

	// Qualifier-only metadata: the stored heat number, which timing
	// submissions address.
	QualifierHeatNumber *int `json:"qualifier_heat_number,omitempty"`

	// Bracket-only metadata.
	MatchID         *int          `json:"match_id,omitempty"`
	BracketGroup    *BracketGroup `json:"bracket_group,omitempty"`
	RoundNumber     *int          `json:"round_number,omitempty"`
	MatchNumber     *int          `json:"match_number,omitempty"`
	MatchFormat     *MatchFormat  `json:"match_format,omitempty"`
	CurrentRound    *int          `json:"current_round,omitempty"`
	RoundsWonTrack1 *int          `json:"rounds_won_track1,omitempty"`
	RoundsWonTrack2 *int          `json:"rounds_won_track2,omitempty"`
}
