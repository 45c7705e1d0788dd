package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Authentication and authorization
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrForbiddenOperation = errors.New("operation not allowed for the current operator")

	// Tournament lifecycle
	ErrTournamentAlreadyExists  = errors.New("a bracket tournament already exists for this event")
	ErrTournamentNotStarted     = errors.New("bracket tournament has not been started")
	ErrTournamentAlreadyStarted = errors.New("bracket tournament has already been started")
	ErrNoEligibleCompetitors    = errors.New("no eligible competitors to register")

	// Bracket mirror
	ErrBracketNotGenerated   = errors.New("bracket has not been generated for this event")
	ErrUnknownParticipant    = errors.New("authority participant has no local seed mapping")
	ErrAuthorityEmptyBracket = errors.New("authority returned no matches")

	// Match engine
	ErrMatchAlreadyDecided = errors.New("match already has a result")
	ErrMatchMissingRacer   = errors.New("match does not have both racers assigned")
	ErrMatchNotBye         = errors.New("match is not a bye")
	ErrInvalidTrack        = errors.New("track number must be 1 or 2")

	// Result sync
	ErrMatchNotCompleted  = errors.New("match is not completed")
	ErrMatchNotLinked     = errors.New("match is not linked to an authority match")
	ErrMatchAlreadySynced = errors.New("match result already synced")

	// Withdrawals
	ErrWithdrawalTerminal  = errors.New("withdrawal cannot be reversed once bracket play has started")
	ErrCompetitorWithdrawn = errors.New("competitor is withdrawn from this event")
)
