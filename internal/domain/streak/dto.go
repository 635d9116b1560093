package streak

import (
	"time"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// TrackResponse is one streak as shown to the user. Count drops to 0 once
// the streak can no longer be extended; StoredCount keeps the persisted value.
type TrackResponse struct {
	Kind           Kind          `json:"kind"`
	Count          int           `json:"count"`
	StoredCount    int           `json:"stored_count"`
	Cycle          int           `json:"cycle"`
	LastActiveDate calendar.Date `json:"last_active_date"`
	Alive          bool          `json:"alive"`
	ActiveToday    bool          `json:"active_today"`
}

type OverviewResponse struct {
	Today          calendar.Date   `json:"today"`
	Tracks         []TrackResponse `json:"tracks"`
	GraceAvailable bool            `json:"grace_available"`
	GraceUsedAt    *time.Time      `json:"grace_used_at,omitempty"`
}
