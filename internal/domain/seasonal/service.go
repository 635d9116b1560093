package seasonal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service is the admin surface over seasonal events.
type Service struct {
	repo    Repository
	catalog *Catalog
	now     func() time.Time
}

func NewService(repo Repository, catalog *Catalog) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

// Validate checks an event against itself and against the other configured
// events. An entry of others with the same id is the row being updated.
func Validate(e *Event, others []Event) error {
	if strings.TrimSpace(e.Name) == "" {
		return &ConfigError{Field: "name", Message: "name is required"}
	}
	if cerr := e.Window.validate(); cerr != nil {
		return cerr
	}
	if len(e.Rules) == 0 {
		return &ConfigError{Field: "rules", Message: "at least one rule is required"}
	}

	seen := make(map[RuleType]bool, len(e.Rules))
	for i, r := range e.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		switch {
		case !r.RuleType.Valid():
			return &ConfigError{Field: field + ".rule_type", Message: fmt.Sprintf("unknown rule type %q", r.RuleType)}
		case seen[r.RuleType]:
			return &ConfigError{Field: field + ".rule_type", Message: fmt.Sprintf("duplicate rule type %s", r.RuleType)}
		case r.BonusCredits <= 0:
			return &ConfigError{Field: field + ".bonus_credits", Message: "bonus must be positive"}
		case r.DailyCap < 0 || r.WeeklyCap < 0 || r.MaxTotal < 0 || r.CooldownHours < 0:
			return &ConfigError{Field: field, Message: "caps and cooldown must not be negative"}
		case r.DailyCap > 0 && r.WeeklyCap > 0 && r.WeeklyCap < r.DailyCap:
			return &ConfigError{Field: field + ".weekly_cap", Message: "weekly cap is below daily cap"}
		}
		seen[r.RuleType] = true
	}

	for _, other := range others {
		if other.ID == e.ID {
			continue
		}
		if e.Window.Overlaps(other.Window) {
			return &ConfigError{Field: "window", Message: fmt.Sprintf("overlaps event %q", other.Name)}
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req EventRequest) (*Event, error) {
	now := s.now().UTC()
	e := &Event{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Window:    req.window(),
		Rules:     req.rules(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, e, s.check(e)); err != nil {
		return nil, err
	}
	s.catalog.Invalidate()

	log.Info().Str("event_id", e.ID.String()).Str("name", e.Name).Msg("seasonal event created")
	return e, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req EventRequest) (*Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Name = strings.TrimSpace(req.Name)
	e.Window = req.window()
	e.Rules = req.rules()
	e.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, e, s.check(e)); err != nil {
		return nil, err
	}
	s.catalog.Invalidate()

	log.Info().Str("event_id", e.ID.String()).Msg("seasonal event updated")
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.catalog.Invalidate()

	log.Info().Str("event_id", id.String()).Msg("seasonal event deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByYear returns every event with the concrete dates of the season
// starting in year, ordered by start date.
func (s *Service) ListByYear(ctx context.Context, year int) ([]EventInstance, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]EventInstance, 0, len(events))
	for _, e := range events {
		start, end := e.Instance(year)
		out = append(out, EventInstance{Event: e, SeasonYear: year, StartDate: start, EndDate: end})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// check validates e against whatever is stored when the write runs.
func (s *Service) check(e *Event) CheckFunc {
	return func(stored []Event) error {
		return Validate(e, stored)
	}
}
