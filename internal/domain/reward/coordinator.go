package reward

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/domain/milestone"
	"github.com/echoapp/echo-rewards/internal/domain/seasonal"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
	"github.com/echoapp/echo-rewards/internal/pkg/database"
	"github.com/echoapp/echo-rewards/internal/pkg/logger"
	"github.com/echoapp/echo-rewards/internal/pkg/metrics"
)

const maxAttempts = 2

// LocationResolver picks the calendar an event's day is counted in.
type LocationResolver interface {
	ResolveEvent(ctx context.Context, userID uuid.UUID, tz string) *time.Location
}

// SeasonalEvaluator appends seasonal bonuses inside the caller's transaction.
type SeasonalEvaluator interface {
	Evaluate(ctx context.Context, q sqlx.ExtContext, in seasonal.Evaluation) ([]ledger.CreditTransaction, error)
}

// BalanceInvalidator drops cached balances after the coordinator writes.
type BalanceInvalidator interface {
	InvalidateBalance(ctx context.Context, userID uuid.UUID)
}

// Deps wires a Coordinator.
type Deps struct {
	Transactor database.Transactor
	Streaks    streak.Store
	Activity   activity.Store
	Ledger     ledger.Store
	Seasonal   SeasonalEvaluator
	Milestones *milestone.Catalog
	Locations  LocationResolver
	Balances   BalanceInvalidator
}

// Coordinator turns domain events into streak updates and ledger rows.
// All writes for one event happen in one transaction that holds the user's
// streak row lock, so concurrent events for a user are serialized.
type Coordinator struct {
	deps Deps
	now  func() time.Time
}

func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{deps: deps, now: time.Now}
}

// Handle processes one event. It only returns an error when the event itself
// is malformed; reward failures are logged, retried once and then dropped.
func (c *Coordinator) Handle(ctx context.Context, ev DomainEvent) (*Result, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	ctx = logger.With(ctx, map[string]string{
		"user_id":    ev.UserID.String(),
		"event_id":   ev.ID,
		"event_kind": string(ev.Kind),
	})
	log := logger.FromContext(ctx)

	loc := c.deps.Locations.ResolveEvent(ctx, ev.UserID, ev.Timezone)
	today := calendar.DateOf(ev.Timestamp, loc)

	var (
		res     *Result
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		u := &unit{c: c, ev: ev, loc: loc, today: today, res: &Result{EventID: ev.ID, LocalDate: today}}
		lastErr = c.deps.Transactor.InTx(ctx, u.run)
		if lastErr == nil {
			res = u.res
			break
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("reward processing failed")
	}

	if lastErr != nil {
		metrics.RecordFailure("coordinator")
		log.Error().Err(lastErr).Msg("reward processing dropped")
		return &Result{EventID: ev.ID, LocalDate: today, Dropped: true}, nil
	}

	if len(res.Granted) > 0 && c.deps.Balances != nil {
		c.deps.Balances.InvalidateBalance(ctx, ev.UserID)
	}
	if res.Replayed {
		log.Debug().Msg("domain event already processed")
		return res, nil
	}
	log.Debug().Int("granted", len(res.Granted)).Int64("credits", res.Credits()).Msg("domain event processed")
	return res, nil
}

// unit is the state of one transactional attempt.
type unit struct {
	c     *Coordinator
	ev    DomainEvent
	loc   *time.Location
	today calendar.Date
	res   *Result
}

func (u *unit) run(ctx context.Context, q sqlx.ExtContext) error {
	d := u.c.deps

	// The lock is taken for every event so seasonal cap checks are serialized too.
	state, err := d.Streaks.LockForUpdate(ctx, q, u.ev.UserID)
	if err != nil {
		return err
	}

	// A redelivered event id is a no-op: counters, streaks and rewards stay as the first delivery left them.
	seen, err := d.Activity.Processed(ctx, q, u.ev.UserID, u.ev.ID)
	if err != nil {
		return err
	}
	if seen {
		u.res.Replayed = true
		return nil
	}

	changed := false
	for _, kind := range u.ev.streakKinds() {
		tr := streak.Touch(state, kind, u.today, u.c.now())
		u.res.Transitions = append(u.res.Transitions, tr)
		changed = changed || tr.Changed()
	}
	if changed {
		if err := d.Streaks.Save(ctx, q, state); err != nil {
			return err
		}
	}

	if err := u.streakRewards(ctx, q); err != nil {
		return err
	}
	if err := u.oneTimeRewards(ctx, q); err != nil {
		return err
	}

	for _, rt := range u.ev.ruleTypes(u.res.Transitions) {
		granted, err := d.Seasonal.Evaluate(ctx, q, seasonal.Evaluation{
			UserID:   u.ev.UserID,
			RuleType: rt,
			At:       u.ev.Timestamp,
			Location: u.loc,
			SourceID: u.ev.ID,
		})
		if err != nil {
			return err
		}
		u.res.Granted = append(u.res.Granted, granted...)
	}
	return d.Activity.MarkProcessed(ctx, q, u.ev.UserID, u.ev.ID, u.c.now())
}

func (u *unit) streakRewards(ctx context.Context, q sqlx.ExtContext) error {
	catalog := u.c.deps.Milestones
	for _, tr := range u.res.Transitions {
		for _, threshold := range tr.Crossed(catalog.StreakThresholds(tr.Kind)) {
			m, ok := catalog.StreakMilestone(tr.Kind, threshold)
			if !ok {
				continue
			}
			tx := &ledger.CreditTransaction{
				UserID:      u.ev.UserID,
				Amount:      m.RewardCredits,
				Type:        ledger.TxTypeStreakReward,
				RelatedID:   ledger.RelatedID(milestone.StreakRelatedID(tr.Kind, threshold, tr.After.Cycle)),
				Description: m.Title,
				Metadata: ledger.Metadata{
					"milestone_id": m.ID,
					"streak":       string(tr.Kind),
					"threshold":    threshold,
					"cycle":        tr.After.Cycle,
					"local_date":   u.today.String(),
				},
			}
			if err := u.append(ctx, q, tx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *unit) oneTimeRewards(ctx context.Context, q sqlx.ExtContext) error {
	d := u.c.deps
	action := u.ev.Kind.Action()

	count, err := d.Activity.Increment(ctx, q, u.ev.UserID, action, u.ev.Timestamp)
	if err != nil {
		return err
	}

	var reached []milestone.Milestone
	var keys []string
	for _, m := range d.Milestones.ForAction(action) {
		if count >= int64(m.Required) {
			reached = append(reached, m)
			keys = append(keys, milestone.OneTimeRelatedID(m.ID))
		}
	}
	if len(reached) == 0 {
		return nil
	}

	// Earlier milestones stay reached forever; only pay the ones not yet in the ledger.
	paid, err := d.Ledger.RelatedExists(ctx, q, u.ev.UserID, keys)
	if err != nil {
		return err
	}
	for i, m := range reached {
		if paid[keys[i]] {
			continue
		}
		tx := &ledger.CreditTransaction{
			UserID:      u.ev.UserID,
			Amount:      m.RewardCredits,
			Type:        ledger.TxTypeMilestoneReward,
			RelatedID:   ledger.RelatedID(keys[i]),
			Description: m.Title,
			Metadata: ledger.Metadata{
				"milestone_id": m.ID,
				"action":       string(action),
				"count":        count,
			},
		}
		if err := u.append(ctx, q, tx); err != nil {
			return err
		}
	}
	return nil
}

// append writes a reward row; a duplicate key means it was already paid.
func (u *unit) append(ctx context.Context, q sqlx.ExtContext, tx *ledger.CreditTransaction) error {
	if _, err := u.c.deps.Ledger.Append(ctx, q, tx); err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			metrics.RecordDuplicateKey()
			logger.FromContext(ctx).Debug().Str("related_id", tx.Related()).Msg("reward already granted")
			return nil
		}
		return err
	}
	metrics.RecordGrant(string(tx.Type), tx.Amount)
	logger.FromContext(ctx).Info().
		Str("related_id", tx.Related()).
		Int64("amount", tx.Amount).
		Str("tx_type", string(tx.Type)).
		Msg("reward granted")
	u.res.Granted = append(u.res.Granted, *tx)
	return nil
}
