// Package challonge provides a client for the Challonge tournament API
// (v1), which acts as the external bracket authority for race events.
package challonge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is returned for any non-2xx response from the authority so
// callers can tell "your request was invalid" apart from "the external
// system is unavailable".
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("challonge API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsAPIError reports whether err originates from the tournament authority.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Tournament is the authority's tournament resource, unwrapped from its
// {"tournament": {...}} envelope.
type Tournament struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	URL               string  `json:"url"`
	TournamentType    string  `json:"tournament_type"`
	State             string  `json:"state"`
	StartedAt         *string `json:"started_at"`
	CompletedAt       *string `json:"completed_at"`
	ParticipantsCount int     `json:"participants_count"`
}

type tournamentEnvelope struct {
	Tournament Tournament `json:"tournament"`
}

// Participant is the authority's participant resource.
type Participant struct {
	ID           int64   `json:"id"`
	TournamentID int64   `json:"tournament_id"`
	Name         string  `json:"name"`
	Seed         int     `json:"seed"`
	Active       bool    `json:"active"`
	Misc         *string `json:"misc"`
	FinalRank    *int    `json:"final_rank"`
}

type participantEnvelope struct {
	Participant Participant `json:"participant"`
}

// Match is the authority's match resource. Round is signed: positive for
// the winner bracket, negative for the loser bracket.
type Match struct {
	ID                 int64   `json:"id"`
	TournamentID       int64   `json:"tournament_id"`
	State              string  `json:"state"`
	Player1ID          *int64  `json:"player1_id"`
	Player2ID          *int64  `json:"player2_id"`
	WinnerID           *int64  `json:"winner_id"`
	LoserID            *int64  `json:"loser_id"`
	Round              int     `json:"round"`
	SuggestedPlayOrder *int    `json:"suggested_play_order"`
	ScoresCSV          string  `json:"scores_csv"`
	StartedAt          *string `json:"started_at"`
	CompletedAt        *string `json:"completed_at"`
}

type matchEnvelope struct {
	Match Match `json:"match"`
}

// NewTournament are the fields sent when creating a tournament.
type NewTournament struct {
	Name                string `json:"name"`
	URL                 string `json:"url"`
	Description         string `json:"description,omitempty"`
	TournamentType      string `json:"tournament_type"`
	OpenSignup          bool   `json:"open_signup"`
	HoldThirdPlaceMatch bool   `json:"hold_third_place_match"`
	ShowRounds          bool   `json:"show_rounds"`
	HideForum           bool   `json:"hide_forum"`
	AcceptAttachments   bool   `json:"accept_attachments"`
}

// NewParticipant are the fields sent when adding a participant.
type NewParticipant struct {
	Name string `json:"name"`
	Seed int    `json:"seed"`
	Misc string `json:"misc,omitempty"`
}

// MatchUpdate carries a result push: the serialized score string and the
// winning participant id.
type MatchUpdate struct {
	ScoresCSV string `json:"scores_csv"`
	WinnerID  int64  `json:"winner_id"`
}

// Client is the consumed surface of the tournament authority.
type Client interface {
	CreateTournament(ctx context.Context, t NewTournament) (*Tournament, error)
	GetTournament(ctx context.Context, tournamentID string) (*Tournament, error)
	StartTournament(ctx context.Context, tournamentID string) (*Tournament, error)
	FinalizeTournament(ctx context.Context, tournamentID string) (*Tournament, error)
	AddParticipant(ctx context.Context, tournamentID string, p NewParticipant) (*Participant, error)
	GetParticipants(ctx context.Context, tournamentID string) ([]Participant, error)
	// DeactivateParticipant deletes the participant upstream. On a started
	// tournament Challonge marks them inactive and auto-forfeits their
	// remaining matches; this is the withdrawal primitive.
	DeactivateParticipant(ctx context.Context, tournamentID, participantID string) error
	GetMatches(ctx context.Context, tournamentID string) ([]Match, error)
	UpdateMatch(ctx context.Context, tournamentID, matchID string, u MatchUpdate) (*Match, error)
}

// HTTPClient talks to the real Challonge v1 API using HTTP basic auth.
type HTTPClient struct {
	baseURL    string
	username   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, username, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		username: username,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewHTTPClientWithHTTPClient uses a caller-provided http.Client (tests).
func NewHTTPClientWithHTTPClient(baseURL, username, apiKey string, httpClient *http.Client) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, username: username, apiKey: apiKey, httpClient: httpClient}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach tournament authority: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: errorSummary(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse authority response: %w", err)
		}
	}
	return nil
}

// errorSummary extracts Challonge's {"errors": [...]} body when present.
func errorSummary(body []byte) string {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		out := parsed.Errors[0]
		for _, e := range parsed.Errors[1:] {
			out += ", " + e
		}
		return out
	}
	return string(body)
}

func (c *HTTPClient) CreateTournament(ctx context.Context, t NewTournament) (*Tournament, error) {
	var env tournamentEnvelope
	payload := map[string]NewTournament{"tournament": t}
	if err := c.do(ctx, http.MethodPost, "/tournaments.json", payload, &env); err != nil {
		return nil, err
	}
	return &env.Tournament, nil
}

func (c *HTTPClient) GetTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	var env tournamentEnvelope
	if err := c.do(ctx, http.MethodGet, "/tournaments/"+tournamentID+".json", nil, &env); err != nil {
		return nil, err
	}
	return &env.Tournament, nil
}

func (c *HTTPClient) StartTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	var env tournamentEnvelope
	if err := c.do(ctx, http.MethodPost, "/tournaments/"+tournamentID+"/start.json", nil, &env); err != nil {
		return nil, err
	}
	return &env.Tournament, nil
}

func (c *HTTPClient) FinalizeTournament(ctx context.Context, tournamentID string) (*Tournament, error) {
	var env tournamentEnvelope
	if err := c.do(ctx, http.MethodPost, "/tournaments/"+tournamentID+"/finalize.json", nil, &env); err != nil {
		return nil, err
	}
	return &env.Tournament, nil
}

func (c *HTTPClient) AddParticipant(ctx context.Context, tournamentID string, p NewParticipant) (*Participant, error) {
	var env participantEnvelope
	payload := map[string]NewParticipant{"participant": p}
	if err := c.do(ctx, http.MethodPost, "/tournaments/"+tournamentID+"/participants.json", payload, &env); err != nil {
		return nil, err
	}
	return &env.Participant, nil
}

func (c *HTTPClient) GetParticipants(ctx context.Context, tournamentID string) ([]Participant, error) {
	var envs []participantEnvelope
	if err := c.do(ctx, http.MethodGet, "/tournaments/"+tournamentID+"/participants.json", nil, &envs); err != nil {
		return nil, err
	}
	participants := make([]Participant, 0, len(envs))
	for _, env := range envs {
		participants = append(participants, env.Participant)
	}
	return participants, nil
}

func (c *HTTPClient) DeactivateParticipant(ctx context.Context, tournamentID, participantID string) error {
	return c.do(ctx, http.MethodDelete, "/tournaments/"+tournamentID+"/participants/"+participantID+".json", nil, nil)
}

func (c *HTTPClient) GetMatches(ctx context.Context, tournamentID string) ([]Match, error) {
	var envs []matchEnvelope
	if err := c.do(ctx, http.MethodGet, "/tournaments/"+tournamentID+"/matches.json", nil, &envs); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(envs))
	for _, env := range envs {
		matches = append(matches, env.Match)
	}
	return matches, nil
}

func (c *HTTPClient) UpdateMatch(ctx context.Context, tournamentID, matchID string, u MatchUpdate) (*Match, error) {
	var env matchEnvelope
	payload := map[string]MatchUpdate{"match": u}
	if err := c.do(ctx, http.MethodPut, "/tournaments/"+tournamentID+"/matches/"+matchID+".json", payload, &env); err != nil {
		return nil, err
	}
	return &env.Match, nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
