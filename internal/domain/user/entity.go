package user

import (
	"time"

	"github.com/google/uuid"
)

// Settings holds the per-user preferences the reward engine reads.
type Settings struct {
	UserID    uuid.UUID `db:"user_id"`
	Timezone  string    `db:"timezone"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Location parses the stored zone name.
func (s *Settings) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}
