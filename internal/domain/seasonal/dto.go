package seasonal

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// RuleRequest is one rule of an admin write.
type RuleRequest struct {
	RuleType      string `json:"rule_type" validate:"required,rule_type"`
	BonusCredits  int64  `json:"bonus_credits" validate:"gt=0"`
	DailyCap      int    `json:"daily_cap" validate:"gte=0"`
	WeeklyCap     int    `json:"weekly_cap" validate:"gte=0"`
	MaxTotal      int    `json:"max_total" validate:"gte=0"`
	OncePerSeason bool   `json:"once_per_season"`
	CooldownHours int    `json:"cooldown_hours" validate:"gte=0"`
}

// EventRequest is the body of create and update.
type EventRequest struct {
	Name       string        `json:"name" validate:"required,min=2,max=120"`
	StartMonth int           `json:"start_month" validate:"required,min=1,max=12"`
	StartDay   int           `json:"start_day" validate:"required,min=1,max=31"`
	EndMonth   int           `json:"end_month" validate:"required,min=1,max=12"`
	EndDay     int           `json:"end_day" validate:"required,min=1,max=31"`
	Rules      []RuleRequest `json:"rules" validate:"required,min=1,dive"`
}

func (r EventRequest) window() Window {
	return Window{
		StartMonth: time.Month(r.StartMonth),
		StartDay:   r.StartDay,
		EndMonth:   time.Month(r.EndMonth),
		EndDay:     r.EndDay,
	}
}

func (r EventRequest) rules() Rules {
	out := make(Rules, 0, len(r.Rules))
	for _, rr := range r.Rules {
		out = append(out, Rule{
			RuleType:      RuleType(strings.ToUpper(strings.TrimSpace(rr.RuleType))),
			BonusCredits:  rr.BonusCredits,
			DailyCap:      rr.DailyCap,
			WeeklyCap:     rr.WeeklyCap,
			MaxTotal:      rr.MaxTotal,
			OncePerSeason: rr.OncePerSeason,
			CooldownHours: rr.CooldownHours,
		})
	}
	return out
}

// EventInstance is an event with its concrete dates for one season year.
type EventInstance struct {
	Event
	SeasonYear int           `json:"season_year"`
	StartDate  calendar.Date `json:"start_date"`
	EndDate    calendar.Date `json:"end_date"`
}

// ActiveResponse is the public theming payload.
type ActiveResponse struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	SeasonYear int           `json:"season_year"`
	StartDate  calendar.Date `json:"start_date"`
	EndDate    calendar.Date `json:"end_date"`
	RuleTypes  []RuleType    `json:"rule_types"`
}

func ActiveResponseFrom(a *ActiveEvent) *ActiveResponse {
	seen := map[RuleType]bool{}
	types := make([]RuleType, 0, len(a.Event.Rules))
	for _, r := range a.Event.Rules {
		if !seen[r.RuleType] {
			seen[r.RuleType] = true
			types = append(types, r.RuleType)
		}
	}
	return &ActiveResponse{
		ID:         a.Event.ID,
		Name:       a.Event.Name,
		SeasonYear: a.SeasonYear,
		StartDate:  a.StartDate,
		EndDate:    a.EndDate,
		RuleTypes:  types,
	}
}
