package reward

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/domain/ledger/ledgertest"
	"github.com/echoapp/echo-rewards/internal/domain/milestone"
	"github.com/echoapp/echo-rewards/internal/domain/seasonal"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
)

type fakeTransactor struct{ calls int }

func (f *fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context, q sqlx.ExtContext) error) error {
	f.calls++
	return fn(ctx, nil)
}

type fakeStreaks struct {
	mu       sync.Mutex
	states   map[uuid.UUID]streak.State
	failLock int
}

func (f *fakeStreaks) LockForUpdate(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID) (*streak.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLock > 0 {
		f.failLock--
		return nil, streak.ErrInternal
	}
	s, ok := f.states[userID]
	if !ok {
		s = *streak.NewState(userID)
		f.states[userID] = s
	}
	return &s, nil
}

func (f *fakeStreaks) Save(_ context.Context, _ sqlx.ExtContext, s *streak.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[s.UserID] = *s
	return nil
}

func (f *fakeStreaks) Get(_ context.Context, userID uuid.UUID) (*streak.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.states[userID]
	return &s, nil
}

type fakeActivity struct {
	counts    map[uuid.UUID]map[activity.Action]int64
	processed map[string]bool
}

func (f *fakeActivity) Increment(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID, action activity.Action, _ time.Time) (int64, error) {
	if f.counts[userID] == nil {
		f.counts[userID] = map[activity.Action]int64{}
	}
	f.counts[userID][action]++
	return f.counts[userID][action], nil
}

func (f *fakeActivity) Counts(_ context.Context, userID uuid.UUID) (map[activity.Action]int64, error) {
	return f.counts[userID], nil
}

func (f *fakeActivity) Processed(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID, eventID string) (bool, error) {
	return f.processed[userID.String()+"/"+eventID], nil
}

func (f *fakeActivity) MarkProcessed(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID, eventID string, _ time.Time) error {
	f.processed[userID.String()+"/"+eventID] = true
	return nil
}

type fallbackLocations struct{ fallback *time.Location }

func (f fallbackLocations) ResolveEvent(_ context.Context, _ uuid.UUID, tz string) *time.Location {
	if loc, err := time.LoadLocation(tz); err == nil && tz != "" {
		return loc
	}
	return f.fallback
}

type countingBalances struct{ invalidated int }

func (c *countingBalances) InvalidateBalance(context.Context, uuid.UUID) { c.invalidated++ }

type harness struct {
	coord    *Coordinator
	tx       *fakeTransactor
	streaks  *fakeStreaks
	activity *fakeActivity
	ledger   *ledgertest.Memory
	balances *countingBalances
}

var springID = uuid.MustParse("22222222-2222-2222-2222-222222222222")

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := milestone.NewCatalog([]milestone.Milestone{
		{ID: "PRESENCE_3", Title: "Three days", Streak: streak.KindPresence, Required: 3, RewardCredits: 5},
		{ID: "KINDNESS_3", Streak: streak.KindKindness, Required: 3, RewardCredits: 7},
		{ID: "FIRST_ECHO", Action: activity.ActionEchoSent, Required: 1, RewardCredits: 10},
		{ID: "TWO_REPLIES", Action: activity.ActionEchoReplied, Required: 2, RewardCredits: 25},
	})
	require.NoError(t, err)

	spring := seasonal.Event{
		ID:     springID,
		Name:   "Spring",
		Window: seasonal.Window{StartMonth: time.March, StartDay: 1, EndMonth: time.March, EndDay: 31},
		Rules: seasonal.Rules{
			{RuleType: seasonal.RuleSendPositive, BonusCredits: 2, DailyCap: 1},
			{RuleType: seasonal.RuleComeback, BonusCredits: 20, OncePerSeason: true},
		},
	}
	events := seasonal.NewCatalog(func(context.Context) ([]seasonal.Event, error) {
		return []seasonal.Event{spring}, nil
	}, time.Hour)

	h := &harness{
		tx:       &fakeTransactor{},
		streaks:  &fakeStreaks{states: map[uuid.UUID]streak.State{}},
		activity: &fakeActivity{counts: map[uuid.UUID]map[activity.Action]int64{}, processed: map[string]bool{}},
		ledger:   ledgertest.New(),
		balances: &countingBalances{},
	}
	h.coord = NewCoordinator(Deps{
		Transactor: h.tx,
		Streaks:    h.streaks,
		Activity:   h.activity,
		Ledger:     h.ledger,
		Seasonal:   seasonal.NewEngine(events, h.ledger),
		Milestones: catalog,
		Locations:  fallbackLocations{fallback: time.UTC},
		Balances:   h.balances,
	})
	h.coord.now = func() time.Time { return time.Date(2026, time.March, 20, 12, 0, 0, 0, time.UTC) }
	return h
}

func day(d int, hour int) time.Time {
	return time.Date(2026, time.March, d, hour, 0, 0, 0, time.UTC)
}

func appOpen(userID uuid.UUID, at time.Time) DomainEvent {
	return DomainEvent{ID: uuid.NewString(), Kind: KindAppOpened, UserID: userID, Timestamp: at}
}

func echo(userID uuid.UUID, sentiment Sentiment, at time.Time) DomainEvent {
	return DomainEvent{ID: uuid.NewString(), Kind: KindEchoSent, UserID: userID, Sentiment: sentiment, Timestamp: at}
}

func TestHandleRejectsMalformedEvents(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	bad := []DomainEvent{
		{Kind: KindAppOpened, UserID: userID, Timestamp: day(1, 9)},
		{ID: "x", Kind: "WAVE", UserID: userID, Timestamp: day(1, 9)},
		{ID: "x", Kind: KindAppOpened, Timestamp: day(1, 9)},
		{ID: "x", Kind: KindAppOpened, UserID: userID},
		{ID: "x", Kind: KindEchoSent, UserID: userID, Timestamp: day(1, 9), Sentiment: "ANGRY"},
	}
	for _, ev := range bad {
		_, err := h.coord.Handle(context.Background(), ev)
		assert.ErrorIs(t, err, ErrInvalidEvent)
	}
	assert.Zero(t, h.tx.calls)
}

func TestPresenceStreakPaysAtThresholdOnce(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	for d := 1; d <= 3; d++ {
		_, err := h.coord.Handle(context.Background(), appOpen(userID, day(d, 9)))
		require.NoError(t, err)
	}

	rows := h.ledger.Rows(userID, ledger.TxTypeStreakReward)
	require.Len(t, rows, 1)
	assert.Equal(t, "STREAK_PRESENCE_3_1", rows[0].Related())
	assert.Equal(t, int64(5), rows[0].Amount)
	assert.Equal(t, 1, h.balances.invalidated)

	// same-day replay: streak unchanged, nothing new
	res, err := h.coord.Handle(context.Background(), appOpen(userID, day(3, 20)))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeUnchanged, res.Transitions[0].Outcome)
	assert.Empty(t, res.Granted)
	assert.Equal(t, int64(5), h.ledger.Balance(userID))
}

func TestGraceBridgesOneMissedDay(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	for _, d := range []int{1, 2, 4} {
		_, err := h.coord.Handle(context.Background(), appOpen(userID, day(d, 9)))
		require.NoError(t, err)
	}

	state, err := h.streaks.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Presence.Count)
	assert.Equal(t, 1, state.Presence.Cycle)
	require.NotNil(t, state.GracePeriodUsedAt)
	assert.Len(t, h.ledger.Rows(userID, ledger.TxTypeStreakReward), 1)
}

func TestPositiveEchoesRespectSeasonalDailyCap(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	for hour := 9; hour < 12; hour++ {
		_, err := h.coord.Handle(context.Background(), echo(userID, SentimentPositive, day(10, hour)))
		require.NoError(t, err)
	}

	season := h.ledger.Rows(userID, ledger.TxTypeSeasonReward)
	require.Len(t, season, 1)
	assert.Equal(t, int64(2), season[0].Amount)

	first := h.ledger.Rows(userID, ledger.TxTypeMilestoneReward)
	require.Len(t, first, 1)
	assert.Equal(t, "MILESTONE_FIRST_ECHO", first[0].Related())

	state, _ := h.streaks.Get(context.Background(), userID)
	assert.Equal(t, 1, state.Kindness.Count)
	assert.Equal(t, int64(3), h.activity.counts[userID][activity.ActionEchoSent])
}

func TestNegativeEchoSkipsKindnessAndSeason(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	res, err := h.coord.Handle(context.Background(), echo(userID, SentimentNegative, day(10, 9)))
	require.NoError(t, err)
	assert.Empty(t, res.Transitions)
	assert.Empty(t, h.ledger.Rows(userID, ledger.TxTypeSeasonReward))

	// still counts as an echo for one-time milestones
	assert.Len(t, h.ledger.Rows(userID, ledger.TxTypeMilestoneReward), 1)
}

func TestComebackOnlyAfterBrokenStreak(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	res, err := h.coord.Handle(context.Background(), appOpen(userID, day(1, 9)))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeStarted, res.Transitions[0].Outcome)
	assert.Empty(t, h.ledger.Rows(userID, ledger.TxTypeSeasonReward))

	res, err = h.coord.Handle(context.Background(), appOpen(userID, day(8, 9)))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeReset, res.Transitions[0].Outcome)
	assert.Equal(t, 2, res.Transitions[0].After.Cycle)

	comeback := h.ledger.Rows(userID, ledger.TxTypeSeasonReward)
	require.Len(t, comeback, 1)
	assert.Equal(t, int64(20), comeback[0].Amount)
	assert.Contains(t, comeback[0].Related(), string(seasonal.RuleComeback))
}

func TestEventTimezoneDecidesLocalDay(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	ev := appOpen(userID, time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC))
	ev.Timezone = "Asia/Tokyo"
	res, err := h.coord.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", res.LocalDate.String())

	ev.ID = uuid.NewString()
	ev.Timezone = "Not/AZone"
	res, err = h.coord.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", res.LocalDate.String())
}

func TestFailureRetriedOnceThenDropped(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	h.streaks.failLock = 1
	res, err := h.coord.Handle(context.Background(), appOpen(userID, day(1, 9)))
	require.NoError(t, err)
	assert.False(t, res.Dropped)
	assert.Equal(t, 2, h.tx.calls)

	h.streaks.failLock = 2
	res, err = h.coord.Handle(context.Background(), appOpen(userID, day(2, 9)))
	require.NoError(t, err, "reward failures never fail the caller")
	assert.True(t, res.Dropped)
	assert.Empty(t, res.Granted)
	assert.Equal(t, 4, h.tx.calls)
}

func TestLedgerFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	h.ledger.FailNext = 2

	res, err := h.coord.Handle(context.Background(), echo(userID, SentimentPositive, day(5, 9)))
	require.NoError(t, err)
	assert.True(t, res.Dropped)
	assert.Empty(t, h.ledger.Rows(userID, ""))
}

func TestRedeliveredEventIsNoOp(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	reply := DomainEvent{ID: "reply-1", Kind: KindEchoReplied, UserID: userID, Timestamp: day(10, 9)}
	first, err := h.coord.Handle(context.Background(), reply)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Empty(t, first.Granted)
	before := h.ledger.Balance(userID)

	res, err := h.coord.Handle(context.Background(), reply)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Empty(t, res.Granted)
	assert.Empty(t, res.Transitions)
	assert.Equal(t, before, h.ledger.Balance(userID))
	assert.Empty(t, h.ledger.Rows(userID, ledger.TxTypeMilestoneReward))
	assert.Equal(t, int64(1), h.activity.counts[userID][activity.ActionEchoReplied])

	// a genuinely new reply still reaches the milestone
	second := reply
	second.ID = "reply-2"
	res, err = h.coord.Handle(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, res.Granted, 1)
	assert.Equal(t, "MILESTONE_TWO_REPLIES", res.Granted[0].Related())
	assert.Equal(t, before+25, h.ledger.Balance(userID))
}

func TestRedeliveredEchoKeepsStreakAndSeason(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	ev := echo(userID, SentimentPositive, day(10, 9))
	_, err := h.coord.Handle(context.Background(), ev)
	require.NoError(t, err)
	balance := h.ledger.Balance(userID)
	rows := len(h.ledger.Rows(userID, ""))

	res, err := h.coord.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, balance, h.ledger.Balance(userID))
	assert.Len(t, h.ledger.Rows(userID, ""), rows)
	assert.Equal(t, int64(1), h.activity.counts[userID][activity.ActionEchoSent])
}

func TestFailedAttemptDoesNotMarkEvent(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	h.streaks.failLock = 2
	ev := appOpen(userID, day(1, 9))
	res, err := h.coord.Handle(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, res.Dropped)

	res, err = h.coord.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, streak.OutcomeStarted, res.Transitions[0].Outcome)
}
