package streak

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// Kind is one of the three independent streak tracks.
type Kind string

const (
	KindPresence Kind = "presence"
	KindKindness Kind = "kindness"
	KindResponse Kind = "response"
)

// AllKinds in display order.
var AllKinds = []Kind{KindPresence, KindKindness, KindResponse}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindPresence, KindKindness, KindResponse:
		return true
	}
	return false
}

// Code is the upper-case form used inside ledger related ids.
func (k Kind) Code() string {
	return strings.ToUpper(string(k))
}

// Track is the state of one streak kind.
type Track struct {
	Count          int           `json:"count"`
	Cycle          int           `json:"cycle"`
	LastActiveDate calendar.Date `json:"last_active_date"`
}

// State is the one-row-per-user streak record.
type State struct {
	UserID            uuid.UUID
	Presence          Track
	Kindness          Track
	Response          Track
	GracePeriodUsedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewState is the state of a user that has never been touched.
func NewState(userID uuid.UUID) *State {
	return &State{UserID: userID}
}

func (s *State) Track(kind Kind) Track {
	switch kind {
	case KindPresence:
		return s.Presence
	case KindKindness:
		return s.Kindness
	case KindResponse:
		return s.Response
	}
	return Track{}
}

func (s *State) setTrack(kind Kind, t Track) {
	switch kind {
	case KindPresence:
		s.Presence = t
	case KindKindness:
		s.Kindness = t
	case KindResponse:
		s.Response = t
	}
}

// GraceUsed reports whether the account's single grace token is spent.
func (s *State) GraceUsed() bool {
	return s.GracePeriodUsedAt != nil
}

// stateRow is the flat user_streaks row.
type stateRow struct {
	UserID            uuid.UUID     `db:"user_id"`
	PresenceCount     int           `db:"presence_count"`
	PresenceCycle     int           `db:"presence_cycle"`
	PresenceLast      calendar.Date `db:"presence_last_active"`
	KindnessCount     int           `db:"kindness_count"`
	KindnessCycle     int           `db:"kindness_cycle"`
	KindnessLast      calendar.Date `db:"kindness_last_active"`
	ResponseCount     int           `db:"response_count"`
	ResponseCycle     int           `db:"response_cycle"`
	ResponseLast      calendar.Date `db:"response_last_active"`
	GracePeriodUsedAt *time.Time    `db:"grace_period_used_at"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

func (r stateRow) toState() *State {
	return &State{
		UserID:            r.UserID,
		Presence:          Track{Count: r.PresenceCount, Cycle: r.PresenceCycle, LastActiveDate: r.PresenceLast},
		Kindness:          Track{Count: r.KindnessCount, Cycle: r.KindnessCycle, LastActiveDate: r.KindnessLast},
		Response:          Track{Count: r.ResponseCount, Cycle: r.ResponseCycle, LastActiveDate: r.ResponseLast},
		GracePeriodUsedAt: r.GracePeriodUsedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
