package seasonal

import (
	"time"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// leapReference is used wherever a window must be compared without a year.
const leapReference = 2024

// Window is a recurring (month, day) range, both ends inclusive. A window
// whose start falls after its end wraps the new year; that season instance
// belongs to the year in which it started.
type Window struct {
	StartMonth time.Month `db:"start_month" json:"start_month"`
	StartDay   int        `db:"start_day" json:"start_day"`
	EndMonth   time.Month `db:"end_month" json:"end_month"`
	EndDay     int        `db:"end_day" json:"end_day"`
}

// Wraps reports whether the window crosses Dec 31.
func (w Window) Wraps() bool {
	if w.StartMonth != w.EndMonth {
		return w.StartMonth > w.EndMonth
	}
	return w.StartDay > w.EndDay
}

// Instance returns the concrete dates of the season that starts in year.
func (w Window) Instance(year int) (start, end calendar.Date) {
	start = bound(year, w.StartMonth, w.StartDay)
	endYear := year
	if w.Wraps() {
		endYear++
	}
	end = bound(endYear, w.EndMonth, w.EndDay)
	return start, end
}

// Contains reports whether d falls inside the window and, if so, the year
// the containing season started in.
func (w Window) Contains(d calendar.Date) (seasonYear int, ok bool) {
	if start, end := w.Instance(d.Year); !d.Before(start) && !d.After(end) {
		return d.Year, true
	}
	if w.Wraps() {
		if start, end := w.Instance(d.Year - 1); !d.Before(start) && !d.After(end) {
			return d.Year - 1, true
		}
	}
	return 0, false
}

// Overlaps compares two windows on a leap reference year so Feb 29 counts.
func (w Window) Overlaps(other Window) bool {
	for _, a := range w.dayRanges() {
		for _, b := range other.dayRanges() {
			if a[0] <= b[1] && b[0] <= a[1] {
				return true
			}
		}
	}
	return false
}

// dayRanges returns the window as day-of-year ranges, split at Dec 31 when it wraps.
func (w Window) dayRanges() [][2]int {
	start := dayOfYear(w.StartMonth, w.StartDay)
	end := dayOfYear(w.EndMonth, w.EndDay)
	if !w.Wraps() {
		return [][2]int{{start, end}}
	}
	last := dayOfYear(time.December, 31)
	return [][2]int{{start, last}, {1, end}}
}

func dayOfYear(m time.Month, d int) int {
	return time.Date(leapReference, m, d, 0, 0, 0, 0, time.UTC).YearDay()
}

// bound clamps days that do not exist in year (Feb 29 on non-leap years).
func bound(year int, m time.Month, d int) calendar.Date {
	if max := calendar.DaysIn(year, m); d > max {
		d = max
	}
	return calendar.NewDate(year, m, d)
}

// validate checks the window against the leap reference year.
func (w Window) validate() *ConfigError {
	if w.StartMonth < time.January || w.StartMonth > time.December {
		return &ConfigError{Field: "window.start_month", Message: "month must be between 1 and 12"}
	}
	if w.EndMonth < time.January || w.EndMonth > time.December {
		return &ConfigError{Field: "window.end_month", Message: "month must be between 1 and 12"}
	}
	if w.StartDay < 1 || w.StartDay > calendar.DaysIn(leapReference, w.StartMonth) {
		return &ConfigError{Field: "window.start_day", Message: "day does not exist in month"}
	}
	if w.EndDay < 1 || w.EndDay > calendar.DaysIn(leapReference, w.EndMonth) {
		return &ConfigError{Field: "window.end_day", Message: "day does not exist in month"}
	}
	return nil
}
