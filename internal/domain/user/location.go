package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocationResolver decides which calendar a user's days are counted in:
// the zone sent with the event, then the stored zone, then the server default.
type LocationResolver struct {
	repo     Repository
	fallback *time.Location
}

func NewLocationResolver(repo Repository, fallback *time.Location) *LocationResolver {
	if fallback == nil {
		fallback = time.UTC
	}
	return &LocationResolver{repo: repo, fallback: fallback}
}

// Resolve returns the stored zone or the server default.
func (r *LocationResolver) Resolve(ctx context.Context, userID uuid.UUID) *time.Location {
	s, err := r.repo.GetSettings(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load user timezone")
		}
		log.Warn().
			Str("user_id", userID.String()).
			Str("fallback", r.fallback.String()).
			Msg("user timezone unknown, using server day")
		return r.fallback
	}

	loc, err := s.Location()
	if err != nil {
		log.Warn().Str("user_id", userID.String()).Str("timezone", s.Timezone).Msg("stored timezone invalid, using server day")
		return r.fallback
	}
	return loc
}

// ResolveEvent prefers tz when it names a real zone and remembers it for
// later reads that carry no zone. Call it outside the reward transaction.
func (r *LocationResolver) ResolveEvent(ctx context.Context, userID uuid.UUID, tz string) *time.Location {
	if tz == "" {
		return r.Resolve(ctx, userID)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn().Str("user_id", userID.String()).Str("timezone", tz).Msg("event timezone invalid, ignoring")
		return r.Resolve(ctx, userID)
	}

	changed, err := r.repo.UpsertTimezone(ctx, userID, loc.String())
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to remember user timezone")
	} else if changed {
		log.Debug().Str("user_id", userID.String()).Str("timezone", loc.String()).Msg("user timezone stored")
	}
	return loc
}
