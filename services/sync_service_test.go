package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/models"
)

type syncFixture struct {
	service        SyncService
	client         *challonge.Mock
	bracketRepo    *fakeBracketRepo
	tournamentRepo *fakeTournamentRepo
	syncRepo       *fakeSyncRepo
	instance       *models.TournamentInstance
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	bracketRepo := newFakeBracketRepo()
	tournamentRepo := newFakeTournamentRepo()
	syncRepo := newFakeSyncRepo(bracketRepo)
	client := challonge.NewMock()

	instance := tournamentRepo.addInstance(models.TournamentInstance{
		EventID:               1,
		ChallongeTournamentID: "555",
		TournamentType:        "double elimination",
		Status:                models.TournamentStatusActive,
	})
	client.Tournaments["555"] = &challonge.Tournament{ID: 555, State: "underway"}
	tournamentRepo.addSeed(models.SeedEntry{TournamentID: instance.ID, CompetitorID: 10, ChallongeParticipantID: "7001"})
	tournamentRepo.addSeed(models.SeedEntry{TournamentID: instance.ID, CompetitorID: 20, ChallongeParticipantID: "7002"})

	service := NewSyncService(newTxDB(t), client, bracketRepo, tournamentRepo, syncRepo, testLogger())
	return &syncFixture{
		service:        service,
		client:         client,
		bracketRepo:    bracketRepo,
		tournamentRepo: tournamentRepo,
		syncRepo:       syncRepo,
		instance:       instance,
	}
}

func (f *syncFixture) addCompletedMatch(challongeMatchID string, winnerID, winnerTrack int) *models.BracketMatch {
	match := models.BracketMatch{
		EventID:            1,
		BracketGroup:       models.GroupWinner,
		RoundNumber:        1,
		Track1CompetitorID: intPtr(10),
		Track2CompetitorID: intPtr(20),
		Track1Time:         floatPtr(2.134),
		Track2Time:         floatPtr(2.401),
		MatchFormat:        models.FormatSingle,
		TotalRounds:        1,
		CurrentRound:       1,
		WinnerCompetitorID: &winnerID,
		WinnerTrack:        &winnerTrack,
		IsCompleted:        true,
	}
	if challongeMatchID != "" {
		match.ChallongeMatchID = &challongeMatchID
	}
	return f.bracketRepo.add(match)
}

func TestSyncMatchPushesScoreAndLedgers(t *testing.T) {
	f := newSyncFixture(t)
	match := f.addCompletedMatch("9001", 10, 1)
	f.client.Matches["555"] = []challonge.Match{{ID: 9001, Player1ID: int64Ptr(7001), Player2ID: int64Ptr(7002)}}

	record, err := f.service.SyncMatch(context.Background(), match.ID, false)
	require.NoError(t, err)

	assert.Equal(t, match.ID, record.MatchID)
	assert.Equal(t, "9001", record.ChallongeMatchID)
	assert.Equal(t, "2.134-2.401", record.ScoresCSV)
	assert.Equal(t, "7001", record.WinnerParticipantID)

	updates := f.client.MatchUpdates["9001"]
	require.Len(t, updates, 1)
	assert.Equal(t, "2.134-2.401", updates[0].ScoresCSV)
	assert.Equal(t, int64(7001), updates[0].WinnerID)
}

func TestSyncMatchIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	match := f.addCompletedMatch("9001", 10, 1)
	f.client.Matches["555"] = []challonge.Match{{ID: 9001, Player1ID: int64Ptr(7001), Player2ID: int64Ptr(7002)}}
	ctx := context.Background()

	_, err := f.service.SyncMatch(ctx, match.ID, false)
	require.NoError(t, err)

	_, err = f.service.SyncMatch(ctx, match.ID, false)
	assert.ErrorIs(t, err, ErrMatchAlreadySynced)
	require.Len(t, f.client.MatchUpdates["9001"], 1)

	// force clears the ledger entry and pushes again.
	_, err = f.service.SyncMatch(ctx, match.ID, true)
	require.NoError(t, err)
	assert.Len(t, f.client.MatchUpdates["9001"], 2)
}

func TestSyncMatchRejectsIncomplete(t *testing.T) {
	f := newSyncFixture(t)
	match := f.bracketRepo.add(models.BracketMatch{
		EventID:            1,
		ChallongeMatchID:   strPtr("9001"),
		Track1CompetitorID: intPtr(10),
		Track2CompetitorID: intPtr(20),
		MatchFormat:        models.FormatSingle,
	})

	_, err := f.service.SyncMatch(context.Background(), match.ID, false)
	assert.ErrorIs(t, err, ErrMatchNotCompleted)
}

func TestSyncMatchLinksByParticipantPair(t *testing.T) {
	f := newSyncFixture(t)
	match := f.addCompletedMatch("", 20, 2)
	f.client.Matches["555"] = []challonge.Match{
		{ID: 9100, Player1ID: int64Ptr(7002), Player2ID: int64Ptr(7001)},
	}

	record, err := f.service.SyncMatch(context.Background(), match.ID, false)
	require.NoError(t, err)

	assert.Equal(t, "9100", record.ChallongeMatchID)
	stored := f.bracketRepo.matches[match.ID]
	require.NotNil(t, stored.ChallongeMatchID)
	assert.Equal(t, "9100", *stored.ChallongeMatchID)
}

func TestSyncMatchUnlinkedWithoutPair(t *testing.T) {
	f := newSyncFixture(t)
	match := f.addCompletedMatch("", 10, 1)
	f.client.Matches["555"] = []challonge.Match{
		{ID: 9100, Player1ID: int64Ptr(7001), Player2ID: int64Ptr(9999)},
	}

	_, err := f.service.SyncMatch(context.Background(), match.ID, false)
	assert.ErrorIs(t, err, ErrMatchNotLinked)
}

func TestSyncEventCollectsAuthorityFailures(t *testing.T) {
	f := newSyncFixture(t)
	good := f.addCompletedMatch("9001", 10, 1)
	bad := f.addCompletedMatch("9002", 20, 2)
	// Only 9001 exists upstream; 9002 draws a 404 APIError.
	f.client.Matches["555"] = []challonge.Match{{ID: 9001, Player1ID: int64Ptr(7001), Player2ID: int64Ptr(7002)}}

	report, err := f.service.SyncEvent(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, bad.ID, report.Failed[0].MatchID)

	// The good match is ledgered; a second pass pushes nothing new.
	report, err = f.service.SyncEvent(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Synced)
	assert.Len(t, f.client.MatchUpdates["9001"], 1)
	_ = good
}

func TestSyncEventSkipsNoWinnerMatches(t *testing.T) {
	f := newSyncFixture(t)
	match := f.bracketRepo.add(models.BracketMatch{
		EventID:          1,
		ChallongeMatchID: strPtr("9001"),
		MatchFormat:      models.FormatSingle,
		IsCompleted:      true,
		IsForfeit:        true,
	})

	report, err := f.service.SyncEvent(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Synced)
	_ = match
}

func TestSyncEventForceClearsLedgerFirst(t *testing.T) {
	f := newSyncFixture(t)
	match := f.addCompletedMatch("9001", 10, 1)
	f.client.Matches["555"] = []challonge.Match{{ID: 9001, Player1ID: int64Ptr(7001), Player2ID: int64Ptr(7002)}}
	ctx := context.Background()

	_, err := f.service.SyncMatch(ctx, match.ID, false)
	require.NoError(t, err)

	report, err := f.service.SyncEvent(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Synced)
	require.Len(t, f.client.MatchUpdates["9001"], 1)

	report, err = f.service.SyncEvent(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Len(t, f.client.MatchUpdates["9001"], 2)
}

func TestMatchScoreShapes(t *testing.T) {
	t.Run("best of n uses win counts", func(t *testing.T) {
		match := &models.BracketMatch{
			MatchFormat:     models.FormatBestOf3,
			RoundsWonTrack1: 2,
			RoundsWonTrack2: 1,
			Track1Time:      floatPtr(2.0),
			Track2Time:      floatPtr(2.1),
			WinnerTrack:     intPtr(1),
		}
		assert.Equal(t, "2-1", matchScore(match).CSV())
	})

	t.Run("single format uses raw times", func(t *testing.T) {
		match := &models.BracketMatch{
			MatchFormat: models.FormatSingle,
			Track1Time:  floatPtr(2.134),
			Track2Time:  floatPtr(2.401),
			WinnerTrack: intPtr(1),
		}
		assert.Equal(t, "2.134-2.401", matchScore(match).CSV())
	})

	t.Run("forfeit without times is symbolic", func(t *testing.T) {
		match := &models.BracketMatch{
			MatchFormat: models.FormatSingle,
			WinnerTrack: intPtr(2),
			IsForfeit:   true,
		}
		assert.Equal(t, "0-1", matchScore(match).CSV())
	})

	t.Run("best of n forfeit before any sub-round", func(t *testing.T) {
		match := &models.BracketMatch{
			MatchFormat: models.FormatBestOf3,
			WinnerTrack: intPtr(1),
			IsForfeit:   true,
		}
		assert.Equal(t, "1-0", matchScore(match).CSV())
	})
}
