package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeRepo struct {
	zones   map[uuid.UUID]string
	getErr  error
	upserts int
}

func (f *fakeRepo) GetSettings(_ context.Context, userID uuid.UUID) (*Settings, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	tz, ok := f.zones[userID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return &Settings{UserID: userID, Timezone: tz}, nil
}

func (f *fakeRepo) UpsertTimezone(_ context.Context, userID uuid.UUID, tz string) (bool, error) {
	f.upserts++
	changed := f.zones[userID] != tz
	f.zones[userID] = tz
	return changed, nil
}

func TestResolveOrder(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	known, unknown := uuid.New(), uuid.New()
	repo := &fakeRepo{zones: map[uuid.UUID]string{known: "Asia/Tokyo"}}
	r := NewLocationResolver(repo, berlin)

	assert.Equal(t, "Asia/Tokyo", r.Resolve(context.Background(), known).String())
	assert.Equal(t, berlin, r.Resolve(context.Background(), unknown))

	// event zone wins and is remembered
	loc := r.ResolveEvent(context.Background(), unknown, "America/New_York")
	assert.Equal(t, "America/New_York", loc.String())
	assert.Equal(t, "America/New_York", r.Resolve(context.Background(), unknown).String())

	// a bad event zone falls back to the stored one without overwriting it
	loc = r.ResolveEvent(context.Background(), known, "Not/AZone")
	assert.Equal(t, "Asia/Tokyo", loc.String())
	assert.Equal(t, 1, repo.upserts)
}

func TestResolveFallsBackOnStoreError(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("db down")}
	r := NewLocationResolver(repo, nil)
	assert.Equal(t, time.UTC, r.Resolve(context.Background(), uuid.New()))
}
