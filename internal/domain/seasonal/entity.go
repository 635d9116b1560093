package seasonal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleType is the domain-event category a rule reacts to.
type RuleType string

const (
	RuleSendPositive RuleType = "SEND_POSITIVE"
	RuleRespond      RuleType = "RESPOND"
	RuleComeback     RuleType = "COMEBACK"
)

var AllRuleTypes = []RuleType{RuleSendPositive, RuleRespond, RuleComeback}

func ParseRuleType(s string) (RuleType, error) {
	rt := RuleType(strings.ToUpper(strings.TrimSpace(s)))
	if !rt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRuleType, s)
	}
	return rt, nil
}

func (rt RuleType) Valid() bool {
	switch rt {
	case RuleSendPositive, RuleRespond, RuleComeback:
		return true
	}
	return false
}

// Rule is one bonus rule of an event. Zero caps mean unlimited.
type Rule struct {
	RuleType      RuleType `json:"rule_type"`
	BonusCredits  int64    `json:"bonus_credits"`
	DailyCap      int      `json:"daily_cap"`
	WeeklyCap     int      `json:"weekly_cap"`
	MaxTotal      int      `json:"max_total"`
	OncePerSeason bool     `json:"once_per_season"`
	CooldownHours int      `json:"cooldown_hours"`
}

func (r Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownHours) * time.Hour
}

// Rules is stored as a JSONB array and decoded once per catalog load.
type Rules []Rule

func (r Rules) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

func (r *Rules) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Rules{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("seasonal: cannot scan %T into Rules", src)
	}

	var out Rules
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	for _, rule := range out {
		if !rule.RuleType.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRuleType, rule.RuleType)
		}
	}
	*r = out
	return nil
}

// Event is an admin-configured recurring bonus window.
type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Window    `json:"window"`
	Rules     Rules     `db:"rules" json:"rules"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RulesFor returns the event's rules of one type, in configured order.
func (e *Event) RulesFor(rt RuleType) []Rule {
	var out []Rule
	for _, r := range e.Rules {
		if r.RuleType == rt {
			out = append(out, r)
		}
	}
	return out
}
