package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTxDB returns a *sql.DB whose transactions always succeed. Services
// run their writes through runInTx; the fakes below hold the state, so
// the transactions themselves are empty shells.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 64; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

// fakeBracketRepo is an in-memory BracketRepository.
type fakeBracketRepo struct {
	nextID  int
	matches map[int]*models.BracketMatch
	synced  map[int]bool
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{
		matches: make(map[int]*models.BracketMatch),
		synced:  make(map[int]bool),
	}
}

func (f *fakeBracketRepo) add(match models.BracketMatch) *models.BracketMatch {
	f.nextID++
	match.ID = f.nextID
	f.matches[match.ID] = &match
	return &match
}

func (f *fakeBracketRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.BracketMatch) (int, error) {
	f.nextID++
	match.ID = f.nextID
	stored := *match
	f.matches[match.ID] = &stored
	return match.ID, nil
}

func (f *fakeBracketRepo) DeleteByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) (int, error) {
	deleted := 0
	for id, m := range f.matches {
		if m.EventID == eventID {
			delete(f.matches, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeBracketRepo) GetByID(_ context.Context, id int) (*models.BracketMatch, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, repositories.ErrBracketMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeBracketRepo) GetByChallongeMatchID(_ context.Context, eventID int, challongeMatchID string) (*models.BracketMatch, error) {
	for _, m := range f.matches {
		if m.EventID == eventID && m.ChallongeMatchID != nil && *m.ChallongeMatchID == challongeMatchID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, repositories.ErrBracketMatchNotFound
}

func (f *fakeBracketRepo) ListByEvent(_ context.Context, eventID int) ([]models.BracketMatch, error) {
	var out []models.BracketMatch
	for _, m := range f.matches {
		if m.EventID == eventID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.SuggestedPlayOrder == nil && b.SuggestedPlayOrder == nil:
			return a.ID < b.ID
		case a.SuggestedPlayOrder == nil:
			return false
		case b.SuggestedPlayOrder == nil:
			return true
		case *a.SuggestedPlayOrder != *b.SuggestedPlayOrder:
			return *a.SuggestedPlayOrder < *b.SuggestedPlayOrder
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (f *fakeBracketRepo) UpdateSlots(_ context.Context, _ repositories.SQLExecutor, id int, track1, track2 *int) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	if m.WinnerCompetitorID != nil || m.IsCompleted {
		return nil
	}
	m.Track1CompetitorID = track1
	m.Track2CompetitorID = track2
	return nil
}

func (f *fakeBracketRepo) LinkChallongeMatch(_ context.Context, _ repositories.SQLExecutor, id int, challongeMatchID string) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	m.ChallongeMatchID = &challongeMatchID
	return nil
}

func (f *fakeBracketRepo) UpdateOrdering(_ context.Context, _ repositories.SQLExecutor, id int, group models.BracketGroup, roundNumber, matchNumber int, challongeRound, suggestedPlayOrder *int) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	m.BracketGroup = group
	m.RoundNumber = roundNumber
	m.MatchNumber = matchNumber
	m.ChallongeRound = challongeRound
	m.SuggestedPlayOrder = suggestedPlayOrder
	return nil
}

func (f *fakeBracketRepo) UpdateTrackTime(_ context.Context, _ repositories.SQLExecutor, id, track int, time float64) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	if track == 1 {
		m.Track1Time = &time
	} else {
		m.Track2Time = &time
	}
	return nil
}

func (f *fakeBracketRepo) UpdateBestOfState(_ context.Context, _ repositories.SQLExecutor, id, currentRound, winsTrack1, winsTrack2 int) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	m.CurrentRound = currentRound
	m.RoundsWonTrack1 = winsTrack1
	m.RoundsWonTrack2 = winsTrack2
	return nil
}

func (f *fakeBracketRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, id, winnerCompetitorID, winnerTrack int) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	m.WinnerCompetitorID = &winnerCompetitorID
	m.WinnerTrack = &winnerTrack
	m.IsCompleted = true
	return nil
}

func (f *fakeBracketRepo) SetForfeit(_ context.Context, _ repositories.SQLExecutor, id int, winnerCompetitorID, winnerTrack *int, reason string) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrBracketMatchNotFound
	}
	m.WinnerCompetitorID = winnerCompetitorID
	m.WinnerTrack = winnerTrack
	m.IsCompleted = true
	m.IsForfeit = true
	m.ForfeitReason = &reason
	return nil
}

func (f *fakeBracketRepo) ListIncompleteByCompetitor(_ context.Context, eventID, competitorID int) ([]models.BracketMatch, error) {
	var out []models.BracketMatch
	for _, m := range f.matches {
		if m.EventID != eventID || m.IsCompleted {
			continue
		}
		if (m.Track1CompetitorID != nil && *m.Track1CompetitorID == competitorID) ||
			(m.Track2CompetitorID != nil && *m.Track2CompetitorID == competitorID) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBracketRepo) CountCompletedByCompetitor(_ context.Context, eventID, competitorID int) (int, error) {
	count := 0
	for _, m := range f.matches {
		if m.EventID != eventID || !m.IsCompleted {
			continue
		}
		if (m.Track1CompetitorID != nil && *m.Track1CompetitorID == competitorID) ||
			(m.Track2CompetitorID != nil && *m.Track2CompetitorID == competitorID) {
			count++
		}
	}
	return count, nil
}

func (f *fakeBracketRepo) ListCompletedUnsynced(_ context.Context, eventID int) ([]models.BracketMatch, error) {
	var out []models.BracketMatch
	for _, m := range f.matches {
		if m.EventID == eventID && m.IsCompleted && m.ChallongeMatchID != nil && !f.synced[m.ID] {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBracketRepo) ExistsByEvent(_ context.Context, eventID int) (bool, error) {
	for _, m := range f.matches {
		if m.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBracketRepo) CountUndecidedByEvent(_ context.Context, eventID int) (int, error) {
	count := 0
	for _, m := range f.matches {
		if m.EventID == eventID && m.WinnerCompetitorID == nil && !m.IsCompleted {
			count++
		}
	}
	return count, nil
}

// fakeSubRoundRepo is an in-memory SubRoundRepository.
type fakeSubRoundRepo struct {
	nextID    int
	subRounds map[int]*models.SubRound
}

func newFakeSubRoundRepo() *fakeSubRoundRepo {
	return &fakeSubRoundRepo{subRounds: make(map[int]*models.SubRound)}
}

func (f *fakeSubRoundRepo) Create(_ context.Context, _ repositories.SQLExecutor, subRound *models.SubRound) (int, error) {
	f.nextID++
	subRound.ID = f.nextID
	stored := *subRound
	f.subRounds[subRound.ID] = &stored
	return subRound.ID, nil
}

func (f *fakeSubRoundRepo) ListByMatch(_ context.Context, matchID int) ([]models.SubRound, error) {
	var out []models.SubRound
	for _, sr := range f.subRounds {
		if sr.MatchID == matchID {
			out = append(out, *sr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (f *fakeSubRoundRepo) GetByMatchRound(_ context.Context, matchID, roundNumber int) (*models.SubRound, error) {
	for _, sr := range f.subRounds {
		if sr.MatchID == matchID && sr.RoundNumber == roundNumber {
			copied := *sr
			return &copied, nil
		}
	}
	return nil, repositories.ErrSubRoundNotFound
}

func (f *fakeSubRoundRepo) UpdateRacers(_ context.Context, _ repositories.SQLExecutor, id int, racer1ID, racer2ID *int) error {
	stored, ok := f.subRounds[id]
	if !ok {
		return repositories.ErrSubRoundNotFound
	}
	stored.Racer1ID = racer1ID
	stored.Racer2ID = racer2ID
	return nil
}

func (f *fakeSubRoundRepo) RecordResult(_ context.Context, _ repositories.SQLExecutor, subRound *models.SubRound) error {
	stored, ok := f.subRounds[subRound.ID]
	if !ok {
		return repositories.ErrSubRoundNotFound
	}
	stored.Racer1Time = subRound.Racer1Time
	stored.Racer2Time = subRound.Racer2Time
	stored.WinnerCompetitorID = subRound.WinnerCompetitorID
	stored.IsForfeit = subRound.IsForfeit
	return nil
}

func (f *fakeSubRoundRepo) DeleteByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	for id, sr := range f.subRounds {
		if sr.MatchID == matchID {
			delete(f.subRounds, id)
		}
	}
	return nil
}

// fakeTournamentRepo is an in-memory TournamentRepository.
type fakeTournamentRepo struct {
	nextID    int
	instances map[int]*models.TournamentInstance
	seeds     []models.SeedEntry
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{instances: make(map[int]*models.TournamentInstance)}
}

func (f *fakeTournamentRepo) addInstance(instance models.TournamentInstance) *models.TournamentInstance {
	f.nextID++
	instance.ID = f.nextID
	f.instances[instance.ID] = &instance
	return &instance
}

func (f *fakeTournamentRepo) addSeed(seed models.SeedEntry) {
	seed.ID = len(f.seeds) + 1
	f.seeds = append(f.seeds, seed)
}

func (f *fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, instance *models.TournamentInstance) (int, error) {
	for _, existing := range f.instances {
		if existing.EventID == instance.EventID {
			return 0, repositories.ErrTournamentExists
		}
	}
	f.nextID++
	instance.ID = f.nextID
	stored := *instance
	f.instances[instance.ID] = &stored
	return instance.ID, nil
}

func (f *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.TournamentInstance, error) {
	instance, ok := f.instances[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *instance
	return &copied, nil
}

func (f *fakeTournamentRepo) GetByEventID(_ context.Context, eventID int) (*models.TournamentInstance, error) {
	for _, instance := range f.instances {
		if instance.EventID == eventID {
			copied := *instance
			return &copied, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (f *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	instance, ok := f.instances[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	instance.Status = status
	return nil
}

func (f *fakeTournamentRepo) CreateSeed(_ context.Context, _ repositories.SQLExecutor, seed *models.SeedEntry) (int, error) {
	for _, existing := range f.seeds {
		if existing.TournamentID == seed.TournamentID && existing.CompetitorID == seed.CompetitorID {
			return 0, repositories.ErrSeedExists
		}
	}
	seed.ID = len(f.seeds) + 1
	f.seeds = append(f.seeds, *seed)
	return seed.ID, nil
}

func (f *fakeTournamentRepo) ListSeeds(_ context.Context, tournamentID int) ([]models.SeedEntry, error) {
	var out []models.SeedEntry
	for _, seed := range f.seeds {
		if seed.TournamentID == tournamentID {
			out = append(out, seed)
		}
	}
	return out, nil
}

func (f *fakeTournamentRepo) GetSeedByCompetitor(_ context.Context, tournamentID, competitorID int) (*models.SeedEntry, error) {
	for _, seed := range f.seeds {
		if seed.TournamentID == tournamentID && seed.CompetitorID == competitorID {
			copied := seed
			return &copied, nil
		}
	}
	return nil, repositories.ErrSeedNotFound
}

func (f *fakeTournamentRepo) GetSeedByParticipantID(_ context.Context, tournamentID int, participantID string) (*models.SeedEntry, error) {
	for _, seed := range f.seeds {
		if seed.TournamentID == tournamentID && seed.ChallongeParticipantID == participantID {
			copied := seed
			return &copied, nil
		}
	}
	return nil, repositories.ErrSeedNotFound
}

// fakeSyncRepo is an in-memory SyncRepository. When linked to a
// fakeBracketRepo it keeps ListCompletedUnsynced consistent.
type fakeSyncRepo struct {
	nextID  int
	records map[int]*models.SyncRecord
	bracket *fakeBracketRepo
}

func newFakeSyncRepo(bracket *fakeBracketRepo) *fakeSyncRepo {
	return &fakeSyncRepo{records: make(map[int]*models.SyncRecord), bracket: bracket}
}

func (f *fakeSyncRepo) Create(_ context.Context, _ repositories.SQLExecutor, record *models.SyncRecord) (int, error) {
	for _, existing := range f.records {
		if existing.MatchID == record.MatchID {
			return 0, repositories.ErrSyncRecordExists
		}
	}
	f.nextID++
	record.ID = f.nextID
	stored := *record
	f.records[record.ID] = &stored
	if f.bracket != nil {
		f.bracket.synced[record.MatchID] = true
	}
	return record.ID, nil
}

func (f *fakeSyncRepo) GetByMatchID(_ context.Context, matchID int) (*models.SyncRecord, error) {
	for _, record := range f.records {
		if record.MatchID == matchID {
			copied := *record
			return &copied, nil
		}
	}
	return nil, repositories.ErrSyncRecordNotFound
}

func (f *fakeSyncRepo) DeleteByMatchID(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	for id, record := range f.records {
		if record.MatchID == matchID {
			delete(f.records, id)
			if f.bracket != nil {
				delete(f.bracket.synced, matchID)
			}
			return nil
		}
	}
	return repositories.ErrSyncRecordNotFound
}

func (f *fakeSyncRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	deleted := 0
	for id, record := range f.records {
		if record.TournamentID == tournamentID {
			if f.bracket != nil {
				delete(f.bracket.synced, record.MatchID)
			}
			delete(f.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeSyncRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.SyncRecord, error) {
	var out []models.SyncRecord
	for _, record := range f.records {
		if record.TournamentID == tournamentID {
			out = append(out, *record)
		}
	}
	return out, nil
}

// fakeQualifierRepo is an in-memory QualifierRepository.
type fakeQualifierRepo struct {
	nextID     int
	qualifiers map[int]*models.Qualifier
}

func newFakeQualifierRepo() *fakeQualifierRepo {
	return &fakeQualifierRepo{qualifiers: make(map[int]*models.Qualifier)}
}

func (f *fakeQualifierRepo) add(q models.Qualifier) *models.Qualifier {
	f.nextID++
	q.ID = f.nextID
	f.qualifiers[q.ID] = &q
	return &q
}

func (f *fakeQualifierRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, qualifiers []models.Qualifier) error {
	for i := range qualifiers {
		f.nextID++
		qualifiers[i].ID = f.nextID
		stored := qualifiers[i]
		f.qualifiers[stored.ID] = &stored
	}
	return nil
}

func (f *fakeQualifierRepo) ListByEvent(_ context.Context, eventID int) ([]models.Qualifier, error) {
	var out []models.Qualifier
	for _, q := range f.qualifiers {
		if q.EventID == eventID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledOrder != out[j].ScheduledOrder {
			return out[i].ScheduledOrder < out[j].ScheduledOrder
		}
		return out[i].TrackNumber < out[j].TrackNumber
	})
	return out, nil
}

func (f *fakeQualifierRepo) GetHeat(_ context.Context, eventID, heatNumber int) ([]models.Qualifier, error) {
	var out []models.Qualifier
	for _, q := range f.qualifiers {
		if q.EventID == eventID && q.HeatNumber == heatNumber {
			out = append(out, *q)
		}
	}
	if len(out) == 0 {
		return nil, repositories.ErrQualifierNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackNumber < out[j].TrackNumber })
	return out, nil
}

func (f *fakeQualifierRepo) NextScheduledHeatNumber(_ context.Context, eventID int) (int, error) {
	best := -1
	for _, q := range f.qualifiers {
		if q.EventID == eventID && q.Status == models.HeatStatusScheduled {
			if best == -1 || q.HeatNumber < best {
				best = q.HeatNumber
			}
		}
	}
	if best == -1 {
		return 0, repositories.ErrQualifierNotFound
	}
	return best, nil
}

func (f *fakeQualifierRepo) MaxHeatNumber(_ context.Context, eventID int) (int, error) {
	max := 0
	for _, q := range f.qualifiers {
		if q.EventID == eventID && q.HeatNumber > max {
			max = q.HeatNumber
		}
	}
	return max, nil
}

func (f *fakeQualifierRepo) RecordTime(_ context.Context, _ repositories.SQLExecutor, id int, time float64) error {
	q, ok := f.qualifiers[id]
	if !ok {
		return repositories.ErrQualifierNotFound
	}
	q.Time = &time
	q.Status = models.HeatStatusCompleted
	return nil
}

func (f *fakeQualifierRepo) SetHeatStatus(_ context.Context, _ repositories.SQLExecutor, eventID, heatNumber int, status models.HeatStatus) error {
	for _, q := range f.qualifiers {
		if q.EventID == eventID && q.HeatNumber == heatNumber {
			q.Status = status
		}
	}
	return nil
}

func (f *fakeQualifierRepo) CountByEvent(_ context.Context, eventID int) (int, error) {
	count := 0
	for _, q := range f.qualifiers {
		if q.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (f *fakeQualifierRepo) CountIncompleteByEvent(_ context.Context, eventID int) (int, error) {
	count := 0
	for _, q := range f.qualifiers {
		if q.EventID == eventID && q.Status != models.HeatStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeQualifierRepo) CountScheduledByCompetitor(_ context.Context, eventID, competitorID int) (int, error) {
	count := 0
	for _, q := range f.qualifiers {
		if q.EventID == eventID && q.CompetitorID == competitorID && q.Status == models.HeatStatusScheduled {
			count++
		}
	}
	return count, nil
}

func (f *fakeQualifierRepo) DeleteScheduledByCompetitor(_ context.Context, _ repositories.SQLExecutor, eventID, competitorID int) (int, error) {
	deleted := 0
	for id, q := range f.qualifiers {
		if q.EventID == eventID && q.CompetitorID == competitorID && q.Status == models.HeatStatusScheduled {
			delete(f.qualifiers, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeWithdrawalRepo is an in-memory WithdrawalRepository.
type fakeWithdrawalRepo struct {
	nextID      int
	withdrawals map[int]*models.Withdrawal
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{withdrawals: make(map[int]*models.Withdrawal)}
}

func (f *fakeWithdrawalRepo) Create(_ context.Context, _ repositories.SQLExecutor, withdrawal *models.Withdrawal) (int, error) {
	for _, existing := range f.withdrawals {
		if existing.EventID == withdrawal.EventID && existing.CompetitorID == withdrawal.CompetitorID {
			return 0, repositories.ErrAlreadyWithdrawn
		}
	}
	f.nextID++
	withdrawal.ID = f.nextID
	stored := *withdrawal
	f.withdrawals[withdrawal.ID] = &stored
	return withdrawal.ID, nil
}

func (f *fakeWithdrawalRepo) GetByEventAndCompetitor(_ context.Context, eventID, competitorID int) (*models.Withdrawal, error) {
	for _, w := range f.withdrawals {
		if w.EventID == eventID && w.CompetitorID == competitorID {
			copied := *w
			return &copied, nil
		}
	}
	return nil, repositories.ErrWithdrawalNotFound
}

func (f *fakeWithdrawalRepo) ListByEvent(_ context.Context, eventID int) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for _, w := range f.withdrawals {
		if w.EventID == eventID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeWithdrawalRepo) Delete(_ context.Context, _ repositories.SQLExecutor, eventID, competitorID int) error {
	for id, w := range f.withdrawals {
		if w.EventID == eventID && w.CompetitorID == competitorID {
			delete(f.withdrawals, id)
			return nil
		}
	}
	return repositories.ErrWithdrawalNotFound
}

// fakeCompetitorRepo is an in-memory CompetitorRepository. Eligible
// competitors are provided directly by the test.
type fakeCompetitorRepo struct {
	competitors map[int]*models.Competitor
	eligible    []models.Competitor
}

func newFakeCompetitorRepo() *fakeCompetitorRepo {
	return &fakeCompetitorRepo{competitors: make(map[int]*models.Competitor)}
}

func (f *fakeCompetitorRepo) add(c models.Competitor) *models.Competitor {
	f.competitors[c.ID] = &c
	return &c
}

func (f *fakeCompetitorRepo) Create(_ context.Context, competitor *models.Competitor) (int, error) {
	for _, existing := range f.competitors {
		if existing.RacerNumber == competitor.RacerNumber {
			return 0, repositories.ErrDuplicateRacerNumber
		}
	}
	competitor.ID = len(f.competitors) + 1
	stored := *competitor
	f.competitors[competitor.ID] = &stored
	return competitor.ID, nil
}

func (f *fakeCompetitorRepo) GetByID(_ context.Context, id int) (*models.Competitor, error) {
	c, ok := f.competitors[id]
	if !ok {
		return nil, repositories.ErrCompetitorNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCompetitorRepo) GetByIDs(_ context.Context, ids []int) (map[int]*models.Competitor, error) {
	out := make(map[int]*models.Competitor, len(ids))
	for _, id := range ids {
		if c, ok := f.competitors[id]; ok {
			copied := *c
			out[id] = &copied
		}
	}
	return out, nil
}

func (f *fakeCompetitorRepo) List(_ context.Context) ([]models.Competitor, error) {
	var out []models.Competitor
	for _, c := range f.competitors {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RacerNumber < out[j].RacerNumber })
	return out, nil
}

func (f *fakeCompetitorRepo) Update(_ context.Context, competitor *models.Competitor) error {
	stored, ok := f.competitors[competitor.ID]
	if !ok {
		return repositories.ErrCompetitorNotFound
	}
	*stored = *competitor
	return nil
}

func (f *fakeCompetitorRepo) SetCheckedIn(_ context.Context, id int, checkedIn bool) error {
	c, ok := f.competitors[id]
	if !ok {
		return repositories.ErrCompetitorNotFound
	}
	c.CheckedIn = checkedIn
	return nil
}

func (f *fakeCompetitorRepo) SetPhotoKey(_ context.Context, id int, photoKey string) error {
	c, ok := f.competitors[id]
	if !ok {
		return repositories.ErrCompetitorNotFound
	}
	c.PhotoKey = &photoKey
	return nil
}

func (f *fakeCompetitorRepo) ListEligible(_ context.Context, eventID int) ([]models.Competitor, error) {
	return append([]models.Competitor(nil), f.eligible...), nil
}

// fakeEventRepo is an in-memory EventRepository.
type fakeEventRepo struct {
	events map[int]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]*models.Event)}
}

func (f *fakeEventRepo) add(e models.Event) *models.Event {
	f.events[e.ID] = &e
	return &e
}

func (f *fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeEventRepo) GetBySlug(_ context.Context, slug string) (*models.Event, error) {
	for _, e := range f.events {
		if e.Slug == slug {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEventNotFound
}

func (f *fakeEventRepo) GetActive(_ context.Context) (*models.Event, error) {
	for _, e := range f.events {
		if e.Active {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEventNotFound
}

// fakePublisher records realtime messages.
type fakePublisher struct {
	messages []string
}

func (f *fakePublisher) PublishToEvent(eventID int, messageType string, payload interface{}) {
	f.messages = append(f.messages, messageType)
}

var (
	_ repositories.BracketRepository    = (*fakeBracketRepo)(nil)
	_ repositories.SubRoundRepository   = (*fakeSubRoundRepo)(nil)
	_ repositories.TournamentRepository = (*fakeTournamentRepo)(nil)
	_ repositories.SyncRepository       = (*fakeSyncRepo)(nil)
	_ repositories.QualifierRepository  = (*fakeQualifierRepo)(nil)
	_ repositories.WithdrawalRepository = (*fakeWithdrawalRepo)(nil)
	_ repositories.CompetitorRepository = (*fakeCompetitorRepo)(nil)
	_ repositories.EventRepository      = (*fakeEventRepo)(nil)
)
