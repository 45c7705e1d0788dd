package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brickrace/race-server/models"
)

var ErrBracketMatchNotFound = errors.New("bracket match not found")

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.BracketMatch) (int, error)
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) (int, error)
	GetByID(ctx context.Context, id int) (*models.BracketMatch, error)
	GetByChallongeMatchID(ctx context.Context, eventID int, challongeMatchID string) (*models.BracketMatch, error)
	// ListByEvent returns matches in frozen play order: suggested play
	// order when the authority provided one, creation order otherwise.
	ListByEvent(ctx context.Context, eventID int) ([]models.BracketMatch, error)
	UpdateSlots(ctx context.Context, exec SQLExecutor, id int, track1, track2 *int) error
	// LinkChallongeMatch adopts an authority match id for a mirror row
	// created before the link was known.
	LinkChallongeMatch(ctx context.Context, exec SQLExecutor, id int, challongeMatchID string) error
	UpdateOrdering(ctx context.Context, exec SQLExecutor, id int, group models.BracketGroup, roundNumber, matchNumber int, challongeRound, suggestedPlayOrder *int) error
	UpdateTrackTime(ctx context.Context, exec SQLExecutor, id, track int, time float64) error
	UpdateBestOfState(ctx context.Context, exec SQLExecutor, id, currentRound, winsTrack1, winsTrack2 int) error
	SetWinner(ctx context.Context, exec SQLExecutor, id, winnerCompetitorID, winnerTrack int) error
	SetForfeit(ctx context.Context, exec SQLExecutor, id int, winnerCompetitorID, winnerTrack *int, reason string) error
	ListIncompleteByCompetitor(ctx context.Context, eventID, competitorID int) ([]models.BracketMatch, error)
	CountCompletedByCompetitor(ctx context.Context, eventID, competitorID int) (int, error)
	ListCompletedUnsynced(ctx context.Context, eventID int) ([]models.BracketMatch, error)
	ExistsByEvent(ctx context.Context, eventID int) (bool, error)
	CountUndecidedByEvent(ctx context.Context, eventID int) (int, error)
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

const bracketColumns = `id, event_id, challonge_match_id, challonge_round, suggested_play_order,
	bracket_group, round_number, match_number,
	track1_competitor_id, track2_competitor_id, track1_time, track2_time,
	match_format, total_rounds, current_round, rounds_won_track1, rounds_won_track2,
	winner_competitor_id, winner_track, is_completed, is_forfeit, forfeit_reason, created_at`

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, match *models.BracketMatch) (int, error) {
	query := `
		INSERT INTO bracket_matches (
			event_id, challonge_match_id, challonge_round, suggested_play_order,
			bracket_group, round_number, match_number,
			track1_competitor_id, track2_competitor_id,
			match_format, total_rounds, current_round
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.EventID,
		match.ChallongeMatchID,
		match.ChallongeRound,
		match.SuggestedPlayOrder,
		match.BracketGroup,
		match.RoundNumber,
		match.MatchNumber,
		match.Track1CompetitorID,
		match.Track2CompetitorID,
		match.MatchFormat,
		match.TotalRounds,
		match.CurrentRound,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create bracket match: %w", err)
	}
	return match.ID, nil
}

func (r *postgresBracketRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) (int, error) {
	query := `DELETE FROM bracket_matches WHERE event_id = $1`

	result, err := exec.ExecContext(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bracket matches for event %d: %w", eventID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(affected), nil
}

func scanBracketMatch(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.BracketMatch, error) {
	match := &models.BracketMatch{}
	err := scanner.Scan(
		&match.ID,
		&match.EventID,
		&match.ChallongeMatchID,
		&match.ChallongeRound,
		&match.SuggestedPlayOrder,
		&match.BracketGroup,
		&match.RoundNumber,
		&match.MatchNumber,
		&match.Track1CompetitorID,
		&match.Track2CompetitorID,
		&match.Track1Time,
		&match.Track2Time,
		&match.MatchFormat,
		&match.TotalRounds,
		&match.CurrentRound,
		&match.RoundsWonTrack1,
		&match.RoundsWonTrack2,
		&match.WinnerCompetitorID,
		&match.WinnerTrack,
		&match.IsCompleted,
		&match.IsForfeit,
		&match.ForfeitReason,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (r *postgresBracketRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.BracketMatch, error) {
	match, err := scanBracketMatch(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketMatchNotFound
		}
		return nil, fmt.Errorf("failed to get bracket match: %w", err)
	}
	return match, nil
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.BracketMatch, error) {
	query := `SELECT ` + bracketColumns + ` FROM bracket_matches WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *postgresBracketRepository) GetByChallongeMatchID(ctx context.Context, eventID int, challongeMatchID string) (*models.BracketMatch, error) {
	query := `SELECT ` + bracketColumns + ` FROM bracket_matches WHERE event_id = $1 AND challonge_match_id = $2`
	return r.getOne(ctx, query, eventID, challongeMatchID)
}

func (r *postgresBracketRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.BracketMatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bracket matches: %w", err)
	}
	defer rows.Close()

	var matches []models.BracketMatch
	for rows.Next() {
		match, err := scanBracketMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bracket match: %w", err)
		}
		matches = append(matches, *match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bracket matches: %w", err)
	}
	return matches, nil
}

func (r *postgresBracketRepository) ListByEvent(ctx context.Context, eventID int) ([]models.BracketMatch, error) {
	query := `
		SELECT ` + bracketColumns + `
		FROM bracket_matches
		WHERE event_id = $1
		ORDER BY suggested_play_order ASC NULLS LAST, id`
	return r.list(ctx, query, eventID)
}

func (r *postgresBracketRepository) UpdateSlots(ctx context.Context, exec SQLExecutor, id int, track1, track2 *int) error {
	query := `
		UPDATE bracket_matches
		SET track1_competitor_id = $1, track2_competitor_id = $2
		WHERE id = $3 AND winner_competitor_id IS NULL AND is_completed = FALSE`

	result, err := exec.ExecContext(ctx, query, track1, track2, id)
	if err != nil {
		return fmt.Errorf("failed to update slots for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) LinkChallongeMatch(ctx context.Context, exec SQLExecutor, id int, challongeMatchID string) error {
	query := `UPDATE bracket_matches SET challonge_match_id = $1 WHERE id = $2`

	result, err := exec.ExecContext(ctx, query, challongeMatchID, id)
	if err != nil {
		return fmt.Errorf("failed to link match %d to authority match %s: %w", id, challongeMatchID, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) UpdateOrdering(ctx context.Context, exec SQLExecutor, id int, group models.BracketGroup, roundNumber, matchNumber int, challongeRound, suggestedPlayOrder *int) error {
	query := `
		UPDATE bracket_matches
		SET bracket_group = $1, round_number = $2, match_number = $3,
		    challonge_round = $4, suggested_play_order = $5
		WHERE id = $6`

	result, err := exec.ExecContext(ctx, query, group, roundNumber, matchNumber, challongeRound, suggestedPlayOrder, id)
	if err != nil {
		return fmt.Errorf("failed to update ordering for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) UpdateTrackTime(ctx context.Context, exec SQLExecutor, id, track int, time float64) error {
	column := "track1_time"
	if track == 2 {
		column = "track2_time"
	}
	query := fmt.Sprintf(`UPDATE bracket_matches SET %s = $1 WHERE id = $2`, column)

	result, err := exec.ExecContext(ctx, query, time, id)
	if err != nil {
		return fmt.Errorf("failed to record track %d time for match %d: %w", track, id, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) UpdateBestOfState(ctx context.Context, exec SQLExecutor, id, currentRound, winsTrack1, winsTrack2 int) error {
	query := `
		UPDATE bracket_matches
		SET current_round = $1, rounds_won_track1 = $2, rounds_won_track2 = $3
		WHERE id = $4`

	result, err := exec.ExecContext(ctx, query, currentRound, winsTrack1, winsTrack2, id)
	if err != nil {
		return fmt.Errorf("failed to update best-of state for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) SetWinner(ctx context.Context, exec SQLExecutor, id, winnerCompetitorID, winnerTrack int) error {
	query := `
		UPDATE bracket_matches
		SET winner_competitor_id = $1, winner_track = $2, is_completed = TRUE
		WHERE id = $3`

	result, err := exec.ExecContext(ctx, query, winnerCompetitorID, winnerTrack, id)
	if err != nil {
		return fmt.Errorf("failed to set winner for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) SetForfeit(ctx context.Context, exec SQLExecutor, id int, winnerCompetitorID, winnerTrack *int, reason string) error {
	query := `
		UPDATE bracket_matches
		SET winner_competitor_id = $1, winner_track = $2,
		    is_completed = TRUE, is_forfeit = TRUE, forfeit_reason = $3
		WHERE id = $4`

	result, err := exec.ExecContext(ctx, query, winnerCompetitorID, winnerTrack, reason, id)
	if err != nil {
		return fmt.Errorf("failed to forfeit match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) ListIncompleteByCompetitor(ctx context.Context, eventID, competitorID int) ([]models.BracketMatch, error) {
	query := `
		SELECT ` + bracketColumns + `
		FROM bracket_matches
		WHERE event_id = $1
		  AND is_completed = FALSE
		  AND (track1_competitor_id = $2 OR track2_competitor_id = $2)
		ORDER BY suggested_play_order ASC NULLS LAST, id`
	return r.list(ctx, query, eventID, competitorID)
}

func (r *postgresBracketRepository) CountCompletedByCompetitor(ctx context.Context, eventID, competitorID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bracket_matches
		WHERE event_id = $1
		  AND is_completed = TRUE
		  AND (track1_competitor_id = $2 OR track2_competitor_id = $2)`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID, competitorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed matches: %w", err)
	}
	return count, nil
}

func (r *postgresBracketRepository) ListCompletedUnsynced(ctx context.Context, eventID int) ([]models.BracketMatch, error) {
	query := `
		SELECT m.id, m.event_id, m.challonge_match_id, m.challonge_round, m.suggested_play_order,
		       m.bracket_group, m.round_number, m.match_number,
		       m.track1_competitor_id, m.track2_competitor_id, m.track1_time, m.track2_time,
		       m.match_format, m.total_rounds, m.current_round, m.rounds_won_track1, m.rounds_won_track2,
		       m.winner_competitor_id, m.winner_track, m.is_completed, m.is_forfeit, m.forfeit_reason, m.created_at
		FROM bracket_matches m
		LEFT JOIN sync_records s ON s.match_id = m.id
		WHERE m.event_id = $1
		  AND m.is_completed = TRUE
		  AND m.challonge_match_id IS NOT NULL
		  AND s.id IS NULL
		ORDER BY m.suggested_play_order ASC NULLS LAST, m.id`
	return r.list(ctx, query, eventID)
}

func (r *postgresBracketRepository) ExistsByEvent(ctx context.Context, eventID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM bracket_matches WHERE event_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check bracket existence: %w", err)
	}
	return exists, nil
}

func (r *postgresBracketRepository) CountUndecidedByEvent(ctx context.Context, eventID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bracket_matches
		WHERE event_id = $1 AND winner_competitor_id IS NULL AND is_completed = FALSE`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count undecided matches: %w", err)
	}
	return count, nil
}
