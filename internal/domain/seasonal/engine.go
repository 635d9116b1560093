package seasonal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
	"github.com/echoapp/echo-rewards/internal/pkg/logger"
	"github.com/echoapp/echo-rewards/internal/pkg/metrics"
)

// Skip reasons, also used as metric labels.
const (
	SkipOncePerSeason = "once_per_season"
	SkipCooldown      = "cooldown"
	SkipDailyCap      = "daily_cap"
	SkipWeeklyCap     = "weekly_cap"
	SkipMaxTotal      = "max_total"
	SkipDuplicate     = "duplicate"
)

// ActiveEvent is an event resolved for a concrete date.
type ActiveEvent struct {
	Event      Event
	SeasonYear int
	StartDate  calendar.Date
	EndDate    calendar.Date
}

// Evaluation is one rule evaluation request.
type Evaluation struct {
	UserID   uuid.UUID
	RuleType RuleType
	At       time.Time
	Location *time.Location
	// SourceID is the triggering domain event id. It makes replays idempotent.
	SourceID string
}

// Engine resolves active events and grants their bonuses through the ledger.
type Engine struct {
	catalog *Catalog
	ledger  ledger.Store
	now     func() time.Time
}

func NewEngine(catalog *Catalog, store ledger.Store) *Engine {
	return &Engine{catalog: catalog, ledger: store, now: time.Now}
}

// GetActiveEvent returns the first event whose window contains date, or nil.
func (e *Engine) GetActiveEvent(ctx context.Context, date calendar.Date) (*ActiveEvent, error) {
	events, err := e.catalog.Events(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if year, ok := ev.Contains(date); ok {
			start, end := ev.Instance(year)
			return &ActiveEvent{Event: ev, SeasonYear: year, StartDate: start, EndDate: end}, nil
		}
	}
	return nil, nil
}

// RelatedPrefix is the ledger key prefix shared by every grant of one rule
// in one season instance.
func RelatedPrefix(eventID uuid.UUID, rt RuleType, seasonYear int) string {
	return fmt.Sprintf("SEASON_%s_%s_%d_", eventID, rt, seasonYear)
}

// Evaluate checks every matching rule of the active event and appends the
// bonuses that pass their caps. Failed checks are skips, not errors. q joins
// the caller's transaction; the caller must hold the per-user lock.
func (e *Engine) Evaluate(ctx context.Context, q sqlx.ExtContext, in Evaluation) ([]ledger.CreditTransaction, error) {
	if !in.RuleType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, in.RuleType)
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	// Producer clocks may run ahead; a bonus is never dated after it was granted.
	if now := e.now(); in.At.After(now) {
		in.At = now
	}
	today := calendar.DateOf(in.At, loc)

	active, err := e.GetActiveEvent(ctx, today)
	if err != nil || active == nil {
		return nil, err
	}

	var granted []ledger.CreditTransaction
	for _, rule := range active.Event.RulesFor(in.RuleType) {
		tx, err := e.evaluateRule(ctx, q, in, active, rule, today, loc)
		if err != nil {
			return granted, err
		}
		if tx != nil {
			granted = append(granted, *tx)
		}
	}
	return granted, nil
}

func (e *Engine) evaluateRule(ctx context.Context, q sqlx.ExtContext, in Evaluation, active *ActiveEvent, rule Rule, today calendar.Date, loc *time.Location) (*ledger.CreditTransaction, error) {
	prefix := RelatedPrefix(active.Event.ID, rule.RuleType, active.SeasonYear)

	season, err := e.ledger.QueryByRelatedPrefix(ctx, q, in.UserID, prefix)
	if err != nil {
		return nil, err
	}

	if rule.OncePerSeason && len(season) > 0 {
		e.skip(ctx, in, active, SkipOncePerSeason)
		return nil, nil
	}
	if cd := rule.Cooldown(); cd > 0 && len(season) > 0 {
		last := season[len(season)-1].CreatedAt
		if in.At.Sub(last) < cd {
			e.skip(ctx, in, active, SkipCooldown)
			return nil, nil
		}
	}
	if rule.DailyCap > 0 {
		n, err := e.countWindow(ctx, q, in.UserID, prefix, today.Start(loc), today.AddDays(1).Start(loc))
		if err != nil {
			return nil, err
		}
		if n >= rule.DailyCap {
			e.skip(ctx, in, active, SkipDailyCap)
			return nil, nil
		}
	}
	if rule.WeeklyCap > 0 {
		week := today.WeekStart()
		n, err := e.countWindow(ctx, q, in.UserID, prefix, week.Start(loc), week.AddDays(7).Start(loc))
		if err != nil {
			return nil, err
		}
		if n >= rule.WeeklyCap {
			e.skip(ctx, in, active, SkipWeeklyCap)
			return nil, nil
		}
	}
	if rule.MaxTotal > 0 && len(season) >= rule.MaxTotal {
		e.skip(ctx, in, active, SkipMaxTotal)
		return nil, nil
	}

	suffix := in.SourceID
	if suffix == "" {
		suffix = strconv.Itoa(len(season) + 1)
	}
	tx := &ledger.CreditTransaction{
		UserID:      in.UserID,
		Amount:      rule.BonusCredits,
		Type:        ledger.TxTypeSeasonReward,
		RelatedID:   ledger.RelatedID(prefix + suffix),
		Description: active.Event.Name + " bonus",
		CreatedAt:   in.At.UTC(),
		Metadata: ledger.Metadata{
			"event_id":    active.Event.ID.String(),
			"event_name":  active.Event.Name,
			"rule_type":   string(rule.RuleType),
			"season_year": active.SeasonYear,
			"local_date":  today.String(),
		},
	}
	if _, err := e.ledger.Append(ctx, q, tx); err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			metrics.RecordDuplicateKey()
			e.skip(ctx, in, active, SkipDuplicate)
			return nil, nil
		}
		return nil, err
	}

	metrics.RecordGrant(string(tx.Type), tx.Amount)
	logger.FromContext(ctx).Info().
		Str("user_id", in.UserID.String()).
		Str("related_id", tx.Related()).
		Int64("amount", tx.Amount).
		Msg("seasonal bonus granted")
	return tx, nil
}

// countWindow counts this rule's rows created in [start, end).
func (e *Engine) countWindow(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, prefix string, start, end time.Time) (int, error) {
	rows, err := e.ledger.QueryWindow(ctx, q, userID, ledger.TxTypeSeasonReward, start, end)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if strings.HasPrefix(row.Related(), prefix) {
			n++
		}
	}
	return n, nil
}

func (e *Engine) skip(ctx context.Context, in Evaluation, active *ActiveEvent, reason string) {
	metrics.RecordSkip(reason)
	logger.FromContext(ctx).Debug().
		Str("user_id", in.UserID.String()).
		Str("event_id", active.Event.ID.String()).
		Str("rule_type", string(in.RuleType)).
		Str("reason", reason).
		Msg("seasonal bonus skipped")
}
