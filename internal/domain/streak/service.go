package streak

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// LocationResolver maps a user to the timezone their calendar days live in.
type LocationResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) *time.Location
}

// Service is the read side of streaks. Writes go through the reward coordinator.
type Service struct {
	repo      Store
	locations LocationResolver
	now       func() time.Time
}

func NewService(repo Store, locations LocationResolver) *Service {
	return &Service{repo: repo, locations: locations, now: time.Now}
}

// Overview returns every track as seen on the user's local today.
func (s *Service) Overview(ctx context.Context, userID uuid.UUID) (*OverviewResponse, error) {
	state, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if s.locations != nil {
		loc = s.locations.Resolve(ctx, userID)
	}
	today := calendar.DateOf(s.now(), loc)

	resp := &OverviewResponse{
		Today:          today,
		GraceAvailable: !state.GraceUsed(),
		GraceUsedAt:    state.GracePeriodUsedAt,
		Tracks:         make([]TrackResponse, 0, len(AllKinds)),
	}
	for _, kind := range AllKinds {
		t := state.Track(kind)
		alive := IsAlive(t, today, state.GraceUsed())
		count := t.Count
		if !alive {
			count = 0
		}
		resp.Tracks = append(resp.Tracks, TrackResponse{
			Kind:           kind,
			Count:          count,
			StoredCount:    t.Count,
			Cycle:          t.Cycle,
			LastActiveDate: t.LastActiveDate,
			Alive:          alive,
			ActiveToday:    t.LastActiveDate == today,
		})
	}
	return resp, nil
}
