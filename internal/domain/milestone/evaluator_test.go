package milestone

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/domain/ledger/ledgertest"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
)

type fakeStreaks struct{ state *streak.State }

func (f fakeStreaks) Get(context.Context, uuid.UUID) (*streak.State, error) { return f.state, nil }

type fakeCounts map[activity.Action]int64

func (f fakeCounts) Counts(context.Context, uuid.UUID) (map[activity.Action]int64, error) {
	return f, nil
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]Milestone{
		{ID: "PRESENCE_3", Streak: streak.KindPresence, Required: 3, RewardCredits: 5},
		{ID: "PRESENCE_7", Streak: streak.KindPresence, Required: 7, RewardCredits: 15},
		{ID: "KINDNESS_3", Streak: streak.KindKindness, Required: 3, RewardCredits: 5},
		{ID: "FIRST_ECHO", Action: activity.ActionEchoSent, Required: 1, RewardCredits: 10},
		{ID: "FIRST_REPLY", Action: activity.ActionEchoReplied, Required: 1, RewardCredits: 10},
	})
	require.NoError(t, err)
	return c
}

func grant(t *testing.T, mem *ledgertest.Memory, userID uuid.UUID, txType ledger.TxType, related string) {
	t.Helper()
	_, err := mem.Append(context.Background(), nil, &ledger.CreditTransaction{
		UserID: userID, Amount: 5, Type: txType, RelatedID: ledger.RelatedID(related),
	})
	require.NoError(t, err)
}

func byID(statuses []MilestoneStatus) map[string]MilestoneStatus {
	out := map[string]MilestoneStatus{}
	for _, s := range statuses {
		out[s.ID] = s
	}
	return out
}

func TestGetStatuses(t *testing.T) {
	userID := uuid.New()
	state := streak.NewState(userID)
	state.Presence = streak.Track{Count: 4, Cycle: 2}
	state.Kindness = streak.Track{Count: 5, Cycle: 1}

	mem := ledgertest.New()
	grant(t, mem, userID, ledger.TxTypeStreakReward, StreakRelatedID(streak.KindPresence, 3, 2))
	grant(t, mem, userID, ledger.TxTypeMilestoneReward, OneTimeRelatedID("FIRST_ECHO"))

	e := NewEvaluator(testCatalog(t), fakeStreaks{state}, fakeCounts{activity.ActionEchoSent: 3}, mem)
	statuses, err := e.GetStatuses(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, statuses, 5)
	assert.Equal(t, "PRESENCE_3", statuses[0].ID)

	got := byID(statuses)
	assert.Equal(t, StatusClaimed, got["PRESENCE_3"].Status)
	assert.Equal(t, 3, got["PRESENCE_3"].Progress)
	assert.Equal(t, 100, got["PRESENCE_3"].Percentage)

	assert.Equal(t, StatusInProgress, got["PRESENCE_7"].Status)
	assert.Equal(t, 57, got["PRESENCE_7"].Percentage)

	// reached but never paid: no ghost claim
	assert.Equal(t, StatusInProgress, got["KINDNESS_3"].Status)
	assert.Equal(t, 100, got["KINDNESS_3"].Percentage)

	assert.Equal(t, StatusClaimed, got["FIRST_ECHO"].Status)
	assert.Equal(t, TypeOneTime, got["FIRST_ECHO"].Type)
	assert.Equal(t, StatusLocked, got["FIRST_REPLY"].Status)
	assert.Equal(t, 0, got["FIRST_REPLY"].Percentage)
}

func TestGetStatusesRewardFromEarlierCycleDoesNotClaim(t *testing.T) {
	userID := uuid.New()
	state := streak.NewState(userID)
	state.Presence = streak.Track{Count: 1, Cycle: 3}

	mem := ledgertest.New()
	grant(t, mem, userID, ledger.TxTypeStreakReward, StreakRelatedID(streak.KindPresence, 3, 2))

	e := NewEvaluator(testCatalog(t), fakeStreaks{state}, fakeCounts{}, mem)
	statuses, err := e.GetStatuses(context.Background(), userID)
	require.NoError(t, err)

	got := byID(statuses)
	assert.Equal(t, StatusInProgress, got["PRESENCE_3"].Status)
	assert.Equal(t, 33, got["PRESENCE_3"].Percentage)
	assert.Equal(t, StatusLocked, got["KINDNESS_3"].Status)
}

func TestRelatedIDs(t *testing.T) {
	assert.Equal(t, "STREAK_PRESENCE_7_2", StreakRelatedID(streak.KindPresence, 7, 2))
	assert.Equal(t, "MILESTONE_FIRST_ECHO", OneTimeRelatedID("FIRST_ECHO"))
}
