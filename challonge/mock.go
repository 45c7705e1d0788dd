package challonge

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory Client for tests. It records every mutating call
// so tests can assert call counts and ordering.
type Mock struct {
	mu sync.Mutex

	Tournaments  map[string]*Tournament
	Participants map[string][]Participant
	Matches      map[string][]Match

	// Call log, in order: "CreateTournament", "StartTournament",
	// "UpdateMatch:<matchID>", "DeactivateParticipant:<participantID>", ...
	Calls []string

	// MatchUpdates records every UpdateMatch payload by match id.
	MatchUpdates map[string][]MatchUpdate

	// Deactivated records participant ids passed to DeactivateParticipant.
	Deactivated []string

	// Err, when set, is returned by every call.
	Err error

	nextID int64
}

func NewMock() *Mock {
	return &Mock{
		Tournaments:  make(map[string]*Tournament),
		Participants: make(map[string][]Participant),
		Matches:      make(map[string][]Match),
		MatchUpdates: make(map[string][]MatchUpdate),
		nextID:       1000,
	}
}

func (m *Mock) record(call string) {
	m.Calls = append(m.Calls, call)
}

func (m *Mock) CreateTournament(ctx context.Context, t NewTournament) (*Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateTournament")
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	tournament := &Tournament{
		ID:             m.nextID,
		Name:           t.Name,
		URL:            t.URL,
		TournamentType: t.TournamentType,
		State:          "pending",
	}
	m.Tournaments[fmt.Sprint(tournament.ID)] = tournament
	return tournament, nil
}

func (m *Mock) GetTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetTournament")
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tournaments[tournamentID]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: "tournament not found"}
	}
	return t, nil
}

func (m *Mock) StartTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StartTournament")
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tournaments[tournamentID]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: "tournament not found"}
	}
	t.State = "underway"
	return t, nil
}

func (m *Mock) FinalizeTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FinalizeTournament")
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tournaments[tournamentID]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: "tournament not found"}
	}
	t.State = "complete"
	return t, nil
}

func (m *Mock) AddParticipant(ctx context.Context, tournamentID string, p NewParticipant) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AddParticipant")
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	participant := Participant{
		ID:     m.nextID,
		Name:   p.Name,
		Seed:   p.Seed,
		Active: true,
	}
	m.Participants[tournamentID] = append(m.Participants[tournamentID], participant)
	return &participant, nil
}

func (m *Mock) GetParticipants(ctx context.Context, tournamentID string) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetParticipants")
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]Participant(nil), m.Participants[tournamentID]...), nil
}

func (m *Mock) DeactivateParticipant(ctx context.Context, tournamentID, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeactivateParticipant:" + participantID)
	if m.Err != nil {
		return m.Err
	}
	m.Deactivated = append(m.Deactivated, participantID)
	participants := m.Participants[tournamentID]
	for i := range participants {
		if fmt.Sprint(participants[i].ID) == participantID {
			participants[i].Active = false
		}
	}
	return nil
}

func (m *Mock) GetMatches(ctx context.Context, tournamentID string) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetMatches")
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]Match(nil), m.Matches[tournamentID]...), nil
}

func (m *Mock) UpdateMatch(ctx context.Context, tournamentID, matchID string, u MatchUpdate) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateMatch:" + matchID)
	if m.Err != nil {
		return nil, m.Err
	}
	m.MatchUpdates[matchID] = append(m.MatchUpdates[matchID], u)
	matches := m.Matches[tournamentID]
	for i := range matches {
		if fmt.Sprint(matches[i].ID) == matchID {
			matches[i].ScoresCSV = u.ScoresCSV
			matches[i].WinnerID = &u.WinnerID
			matches[i].State = "complete"
			return &matches[i], nil
		}
	}
	return nil, &APIError{StatusCode: 404, Body: "match not found"}
}

// Ensure Mock implements Client
var _ Client = (*Mock)(nil)
