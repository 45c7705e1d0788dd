package models

// Phase is the current stage of an event, derived from qualifying and
// bracket records (never stored).
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseQualifying Phase = "qualifying"
	PhaseBrackets   Phase = "brackets"
	PhaseComplete   Phase = "complete"
)
