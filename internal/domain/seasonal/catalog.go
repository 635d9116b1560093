package seasonal

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Loader returns every configured event ordered by created_at, id.
type Loader func(ctx context.Context) ([]Event, error)

// Catalog holds the decoded event list for the engine. It reloads after
// staleAfter and whenever an admin write invalidates it.
type Catalog struct {
	load       Loader
	staleAfter time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	events   []Event
	loadedAt time.Time
	valid    bool
}

func NewCatalog(load Loader, staleAfter time.Duration) *Catalog {
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	return &Catalog{load: load, staleAfter: staleAfter, now: time.Now}
}

// Events returns the current snapshot. Callers must not mutate it.
func (c *Catalog) Events(ctx context.Context) ([]Event, error) {
	c.mu.RLock()
	if c.valid && c.now().Sub(c.loadedAt) < c.staleAfter {
		events := c.events
		c.mu.RUnlock()
		return events, nil
	}
	stale := c.events
	hadSnapshot := c.valid || stale != nil
	c.mu.RUnlock()

	events, err := c.Refresh(ctx)
	if err != nil {
		if hadSnapshot {
			log.Warn().Err(err).Msg("seasonal catalog refresh failed, serving stale snapshot")
			return stale, nil
		}
		return nil, err
	}
	return events, nil
}

// Refresh reloads the snapshot now.
func (c *Catalog) Refresh(ctx context.Context) ([]Event, error) {
	events, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.events = events
	c.loadedAt = c.now()
	c.valid = true
	c.mu.Unlock()

	log.Debug().Int("events", len(events)).Msg("seasonal catalog loaded")
	return events, nil
}

// Invalidate forces the next read to reload.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
