package milestone

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
)

type StreakReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*streak.State, error)
}

type CountReader interface {
	Counts(ctx context.Context, userID uuid.UUID) (map[activity.Action]int64, error)
}

// RewardLookup reports which related ids already have a ledger row.
type RewardLookup interface {
	RelatedExists(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, relatedIDs []string) (map[string]bool, error)
}

// Evaluator derives milestone statuses from stored streaks, activity
// counters and ledger rows. It never writes and takes no locks.
type Evaluator struct {
	catalog *Catalog
	streaks StreakReader
	counts  CountReader
	rewards RewardLookup
}

func NewEvaluator(catalog *Catalog, streaks StreakReader, counts CountReader, rewards RewardLookup) *Evaluator {
	return &Evaluator{catalog: catalog, streaks: streaks, counts: counts, rewards: rewards}
}

// GetStatuses returns one status per catalog entry, in catalog order.
// A milestone is CLAIMED only when its reward row exists in the ledger.
func (e *Evaluator) GetStatuses(ctx context.Context, userID uuid.UUID) ([]MilestoneStatus, error) {
	state, err := e.streaks.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := e.counts.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}

	milestones := e.catalog.All()
	keys := make([]string, len(milestones))
	progress := make([]int, len(milestones))
	for i, m := range milestones {
		if m.Type() == TypeStreak {
			track := state.Track(m.Streak)
			progress[i] = track.Count
			keys[i] = StreakRelatedID(m.Streak, m.Required, track.Cycle)
		} else {
			progress[i] = int(counts[m.Action])
			keys[i] = OneTimeRelatedID(m.ID)
		}
		if progress[i] > m.Required {
			progress[i] = m.Required
		}
	}

	claimed, err := e.rewards.RelatedExists(ctx, nil, userID, keys)
	if err != nil {
		return nil, err
	}

	out := make([]MilestoneStatus, 0, len(milestones))
	for i, m := range milestones {
		status := StatusInProgress
		switch {
		case progress[i] == 0:
			status = StatusLocked
		case progress[i] >= m.Required && claimed[keys[i]]:
			status = StatusClaimed
		}
		out = append(out, MilestoneStatus{
			ID:            m.ID,
			Title:         m.Title,
			Type:          m.Type(),
			Progress:      progress[i],
			Required:      m.Required,
			Percentage:    progress[i] * 100 / m.Required,
			Status:        status,
			RewardCredits: m.RewardCredits,
		})
	}
	return out, nil
}
