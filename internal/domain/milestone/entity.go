package milestone

import (
	"fmt"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
)

// Type tells which counter drives a milestone.
type Type string

const (
	TypeStreak  Type = "STREAK"
	TypeOneTime Type = "ONE_TIME"
)

// Status is derived on every read and never stored.
type Status string

const (
	StatusLocked     Status = "LOCKED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusClaimed    Status = "CLAIMED"
)

// Milestone is a static catalog entry. Exactly one of Streak and Action is set.
type Milestone struct {
	ID            string          `yaml:"id" json:"id"`
	Title         string          `yaml:"title" json:"title"`
	Streak        streak.Kind     `yaml:"streak" json:"streak,omitempty"`
	Action        activity.Action `yaml:"action" json:"action,omitempty"`
	Required      int             `yaml:"required" json:"required"`
	RewardCredits int64           `yaml:"reward_credits" json:"reward_credits"`
}

func (m Milestone) Type() Type {
	if m.Streak != "" {
		return TypeStreak
	}
	return TypeOneTime
}

// StreakRelatedID keys the reward for reaching threshold in one cycle of a streak.
func StreakRelatedID(kind streak.Kind, threshold, cycle int) string {
	return fmt.Sprintf("STREAK_%s_%d_%d", kind.Code(), threshold, cycle)
}

// OneTimeRelatedID keys the single lifetime reward of a one-time milestone.
func OneTimeRelatedID(id string) string {
	return "MILESTONE_" + id
}

// MilestoneStatus is one catalog entry as seen by a user.
type MilestoneStatus struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Type          Type   `json:"type"`
	Progress      int    `json:"progress"`
	Required      int    `json:"required"`
	Percentage    int    `json:"percentage"`
	Status        Status `json:"status"`
	RewardCredits int64  `json:"reward_credits"`
}
