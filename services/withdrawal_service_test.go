package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/models"
)

type withdrawalFixture struct {
	service        WithdrawalService
	client         *challonge.Mock
	withdrawalRepo *fakeWithdrawalRepo
	qualifierRepo  *fakeQualifierRepo
	bracketRepo    *fakeBracketRepo
	tournamentRepo *fakeTournamentRepo
	competitorRepo *fakeCompetitorRepo
	syncRepo       *fakeSyncRepo
	publisher      *fakePublisher
}

func newWithdrawalFixture(t *testing.T) *withdrawalFixture {
	t.Helper()
	f := &withdrawalFixture{
		client:         challonge.NewMock(),
		withdrawalRepo: newFakeWithdrawalRepo(),
		qualifierRepo:  newFakeQualifierRepo(),
		bracketRepo:    newFakeBracketRepo(),
		tournamentRepo: newFakeTournamentRepo(),
		competitorRepo: newFakeCompetitorRepo(),
		publisher:      &fakePublisher{},
	}
	f.syncRepo = newFakeSyncRepo(f.bracketRepo)
	f.competitorRepo.add(models.Competitor{ID: 10, Name: "Red Baron", RacerNumber: 7})
	f.competitorRepo.add(models.Competitor{ID: 20, Name: "Blue Comet", RacerNumber: 12})
	db := newTxDB(t)
	syncService := NewSyncService(db, f.client, f.bracketRepo, f.tournamentRepo, f.syncRepo, testLogger())
	f.service = NewWithdrawalService(db, f.client, f.withdrawalRepo,
		f.qualifierRepo, f.bracketRepo, f.tournamentRepo, f.competitorRepo,
		syncService, f.publisher, testLogger())
	return f
}

func (f *withdrawalFixture) seedTournament() {
	instance := f.tournamentRepo.addInstance(models.TournamentInstance{
		EventID:               1,
		ChallongeTournamentID: "555",
		Status:                models.TournamentStatusActive,
	})
	f.tournamentRepo.addSeed(models.SeedEntry{TournamentID: instance.ID, CompetitorID: 10, ChallongeParticipantID: "7001"})
	f.tournamentRepo.addSeed(models.SeedEntry{TournamentID: instance.ID, CompetitorID: 20, ChallongeParticipantID: "7002"})
}

func TestWithdrawCascadesAfterUpstreamDeactivation(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.seedTournament()

	f.qualifierRepo.add(models.Qualifier{EventID: 1, CompetitorID: 10, HeatNumber: 3, TrackNumber: 1, Status: models.HeatStatusScheduled})
	f.qualifierRepo.add(models.Qualifier{EventID: 1, CompetitorID: 10, HeatNumber: 1, TrackNumber: 2, Status: models.HeatStatusCompleted, Time: floatPtr(2.4)})

	f.client.Matches["555"] = []challonge.Match{
		{ID: 9001, Round: 1, Player1ID: int64Ptr(7001), Player2ID: int64Ptr(7002)},
	}
	pending := f.bracketRepo.add(models.BracketMatch{
		EventID:            1,
		ChallongeMatchID:   strPtr("9001"),
		Track1CompetitorID: intPtr(10),
		Track2CompetitorID: intPtr(20),
		MatchFormat:        models.FormatSingle,
	})
	decided := f.bracketRepo.add(models.BracketMatch{
		EventID:            1,
		Track1CompetitorID: intPtr(20),
		Track2CompetitorID: intPtr(10),
		WinnerCompetitorID: intPtr(10),
		WinnerTrack:        intPtr(2),
		IsCompleted:        true,
		MatchFormat:        models.FormatSingle,
	})

	withdrawal, err := f.service.Withdraw(context.Background(), 1, 10, "car broke", strPtr("race_director"))
	require.NoError(t, err)

	assert.Equal(t, []string{"7001"}, f.client.Deactivated)
	require.NotNil(t, withdrawal.Reason)
	assert.Equal(t, "car broke", *withdrawal.Reason)

	// The scheduled slot is gone, the completed run stays.
	scheduled, err := f.qualifierRepo.CountScheduledByCompetitor(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, scheduled)
	total, err := f.qualifierRepo.CountByEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// The open match forfeits to the opponent; the decided one is untouched.
	forfeited := f.bracketRepo.matches[pending.ID]
	assert.True(t, forfeited.IsForfeit)
	assert.Equal(t, 20, *forfeited.WinnerCompetitorID)
	assert.Equal(t, 2, *forfeited.WinnerTrack)
	assert.Equal(t, "withdrawal: car broke", *forfeited.ForfeitReason)

	untouched := f.bracketRepo.matches[decided.ID]
	assert.False(t, untouched.IsForfeit)
	assert.Equal(t, 10, *untouched.WinnerCompetitorID)

	// The forfeit win is pushed to the authority and ledgered.
	updates := f.client.MatchUpdates["9001"]
	require.Len(t, updates, 1)
	assert.Equal(t, "0-1", updates[0].ScoresCSV)
	assert.Equal(t, int64(7002), updates[0].WinnerID)
	record, err := f.syncRepo.GetByMatchID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "9001", record.ChallongeMatchID)

	assert.Contains(t, f.publisher.messages, "COMPETITOR_WITHDRAWN")
}

func TestWithdrawSucceedsWhenForfeitPushFails(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.seedTournament()

	// The match was never linked and the authority has nothing to pair it
	// with, so the push cannot land.
	pending := f.bracketRepo.add(models.BracketMatch{
		EventID:            1,
		Track1CompetitorID: intPtr(10),
		Track2CompetitorID: intPtr(20),
		MatchFormat:        models.FormatSingle,
	})

	_, err := f.service.Withdraw(context.Background(), 1, 10, "", nil)
	require.NoError(t, err)

	forfeited := f.bracketRepo.matches[pending.ID]
	assert.True(t, forfeited.IsForfeit)
	assert.Equal(t, 20, *forfeited.WinnerCompetitorID)
	assert.Empty(t, f.client.MatchUpdates)
}

func TestWithdrawAbortsWhenAuthorityRefuses(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.seedTournament()
	f.client.Err = &challonge.APIError{StatusCode: 422, Body: "tournament locked"}

	f.qualifierRepo.add(models.Qualifier{EventID: 1, CompetitorID: 10, HeatNumber: 3, TrackNumber: 1, Status: models.HeatStatusScheduled})

	_, err := f.service.Withdraw(context.Background(), 1, 10, "", nil)
	require.Error(t, err)

	// Nothing changed locally: the authority is told first.
	_, err = f.withdrawalRepo.GetByEventAndCompetitor(context.Background(), 1, 10)
	assert.Error(t, err)
	scheduled, err := f.qualifierRepo.CountScheduledByCompetitor(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, scheduled)
}

func TestWithdrawBeforeTournamentSkipsUpstream(t *testing.T) {
	f := newWithdrawalFixture(t)

	withdrawal, err := f.service.Withdraw(context.Background(), 1, 10, "", nil)
	require.NoError(t, err)

	assert.Empty(t, f.client.Deactivated)
	assert.Nil(t, withdrawal.Reason)
	assert.Nil(t, withdrawal.WithdrawnBy)
}

func TestWithdrawTwiceConflicts(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.seedTournament()
	ctx := context.Background()

	_, err := f.service.Withdraw(ctx, 1, 10, "", nil)
	require.NoError(t, err)

	_, err = f.service.Withdraw(ctx, 1, 10, "", nil)
	assert.ErrorIs(t, err, ErrCompetitorWithdrawn)
	assert.Len(t, f.client.Deactivated, 1)
}

func TestWithdrawUnknownCompetitor(t *testing.T) {
	f := newWithdrawalFixture(t)

	_, err := f.service.Withdraw(context.Background(), 1, 999, "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReinstateBeforeBracket(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()

	_, err := f.service.Withdraw(ctx, 1, 10, "", nil)
	require.NoError(t, err)

	require.NoError(t, f.service.Reinstate(ctx, 1, 10))

	_, err = f.withdrawalRepo.GetByEventAndCompetitor(ctx, 1, 10)
	assert.Error(t, err)

	// Withdrawing again afterwards works.
	_, err = f.service.Withdraw(ctx, 1, 10, "", nil)
	assert.NoError(t, err)
}

func TestReinstateTerminalOnceBracketExists(t *testing.T) {
	f := newWithdrawalFixture(t)
	ctx := context.Background()

	_, err := f.service.Withdraw(ctx, 1, 10, "", nil)
	require.NoError(t, err)

	f.bracketRepo.add(models.BracketMatch{EventID: 1, Track1CompetitorID: intPtr(20), MatchFormat: models.FormatSingle})

	err = f.service.Reinstate(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrWithdrawalTerminal)
}

func TestReinstateWithoutWithdrawal(t *testing.T) {
	f := newWithdrawalFixture(t)

	err := f.service.Reinstate(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreviewCountsImpact(t *testing.T) {
	f := newWithdrawalFixture(t)

	f.qualifierRepo.add(models.Qualifier{EventID: 1, CompetitorID: 10, HeatNumber: 2, TrackNumber: 1, Status: models.HeatStatusScheduled})
	f.qualifierRepo.add(models.Qualifier{EventID: 1, CompetitorID: 10, HeatNumber: 4, TrackNumber: 2, Status: models.HeatStatusScheduled})
	f.bracketRepo.add(models.BracketMatch{
		EventID:            1,
		Track1CompetitorID: intPtr(10),
		Track2CompetitorID: intPtr(20),
		MatchFormat:        models.FormatSingle,
	})
	f.bracketRepo.add(models.BracketMatch{
		EventID:            1,
		Track1CompetitorID: intPtr(10),
		Track2CompetitorID: intPtr(20),
		WinnerCompetitorID: intPtr(10),
		WinnerTrack:        intPtr(1),
		IsCompleted:        true,
		MatchFormat:        models.FormatSingle,
	})

	impact, err := f.service.Preview(context.Background(), 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, impact.ScheduledHeats)
	assert.Equal(t, 1, impact.IncompleteMatches)
	assert.Equal(t, 1, impact.CompletedMatches)
}
