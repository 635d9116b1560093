package milestone

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the immutable milestone list, in file order.
type Catalog struct {
	milestones []Milestone
	byStreak   map[streak.Kind][]Milestone
	byAction   map[activity.Action][]Milestone
}

type catalogFile struct {
	Milestones []Milestone `yaml:"milestones"`
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading milestone catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewCatalog(f.Milestones)
}

func NewCatalog(milestones []Milestone) (*Catalog, error) {
	c := &Catalog{
		byStreak: map[streak.Kind][]Milestone{},
		byAction: map[activity.Action][]Milestone{},
	}
	ids := map[string]bool{}
	thresholds := map[string]bool{}

	for i, m := range milestones {
		switch {
		case m.ID == "":
			return nil, fmt.Errorf("%w: milestone %d has no id", ErrInvalidCatalog, i)
		case ids[m.ID]:
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, m.ID)
		case m.Required <= 0:
			return nil, fmt.Errorf("%w: %s: required must be positive", ErrInvalidCatalog, m.ID)
		case m.RewardCredits <= 0:
			return nil, fmt.Errorf("%w: %s: reward_credits must be positive", ErrInvalidCatalog, m.ID)
		case (m.Streak == "") == (m.Action == ""):
			return nil, fmt.Errorf("%w: %s: set exactly one of streak or action", ErrInvalidCatalog, m.ID)
		}
		ids[m.ID] = true

		if m.Streak != "" {
			kind, err := streak.ParseKind(string(m.Streak))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, m.ID, err)
			}
			m.Streak = kind
			// one reward per (kind, threshold, cycle) key
			key := fmt.Sprintf("%s/%d", kind, m.Required)
			if thresholds[key] {
				return nil, fmt.Errorf("%w: %s: threshold %d repeated for %s", ErrInvalidCatalog, m.ID, m.Required, kind)
			}
			thresholds[key] = true
			c.byStreak[kind] = append(c.byStreak[kind], m)
		} else {
			action, err := activity.ParseAction(string(m.Action))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, m.ID, err)
			}
			m.Action = action
			c.byAction[action] = append(c.byAction[action], m)
		}
		c.milestones = append(c.milestones, m)
	}

	for kind := range c.byStreak {
		list := c.byStreak[kind]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Required < list[j].Required })
	}
	return c, nil
}

// All returns every milestone in catalog order.
func (c *Catalog) All() []Milestone {
	return c.milestones
}

// StreakThresholds returns the ascending counts at which kind pays out.
func (c *Catalog) StreakThresholds(kind streak.Kind) []int {
	list := c.byStreak[kind]
	out := make([]int, 0, len(list))
	for _, m := range list {
		out = append(out, m.Required)
	}
	return out
}

// StreakMilestone returns the milestone for kind at threshold.
func (c *Catalog) StreakMilestone(kind streak.Kind, threshold int) (Milestone, bool) {
	for _, m := range c.byStreak[kind] {
		if m.Required == threshold {
			return m, true
		}
	}
	return Milestone{}, false
}

// ForAction returns the one-time milestones counted by action.
func (c *Catalog) ForAction(action activity.Action) []Milestone {
	return c.byAction[action]
}
