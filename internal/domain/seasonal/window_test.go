package seasonal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

func win(sm time.Month, sd int, em time.Month, ed int) Window {
	return Window{StartMonth: sm, StartDay: sd, EndMonth: em, EndDay: ed}
}

func TestWindowContainsPlain(t *testing.T) {
	w := win(time.February, 10, time.February, 16)

	year, ok := w.Contains(calendar.NewDate(2026, time.February, 10))
	assert.True(t, ok)
	assert.Equal(t, 2026, year)

	_, ok = w.Contains(calendar.NewDate(2026, time.February, 16))
	assert.True(t, ok, "end day is inclusive")

	_, ok = w.Contains(calendar.NewDate(2026, time.February, 17))
	assert.False(t, ok)
}

func TestWindowWrappingYear(t *testing.T) {
	w := win(time.December, 28, time.January, 3)
	assert.True(t, w.Wraps())

	year, ok := w.Contains(calendar.NewDate(2026, time.December, 30))
	assert.True(t, ok)
	assert.Equal(t, 2026, year)

	year, ok = w.Contains(calendar.NewDate(2027, time.January, 2))
	assert.True(t, ok)
	assert.Equal(t, 2026, year, "season belongs to the year it started")

	_, ok = w.Contains(calendar.NewDate(2027, time.January, 4))
	assert.False(t, ok)
	_, ok = w.Contains(calendar.NewDate(2026, time.December, 27))
	assert.False(t, ok)

	start, end := w.Instance(2026)
	assert.Equal(t, "2026-12-28", start.String())
	assert.Equal(t, "2027-01-03", end.String())
}

func TestWindowFeb29Clamps(t *testing.T) {
	w := win(time.February, 29, time.March, 2)

	start, _ := w.Instance(2027)
	assert.Equal(t, "2027-02-28", start.String())

	start, _ = w.Instance(2028)
	assert.Equal(t, "2028-02-29", start.String())

	_, ok := w.Contains(calendar.NewDate(2027, time.February, 28))
	assert.True(t, ok)
}

func TestWindowOverlaps(t *testing.T) {
	newYear := win(time.December, 28, time.January, 3)

	assert.True(t, newYear.Overlaps(win(time.January, 1, time.January, 10)))
	assert.True(t, newYear.Overlaps(win(time.December, 1, time.December, 28)))
	assert.False(t, newYear.Overlaps(win(time.January, 4, time.December, 27)))
	assert.True(t, win(time.February, 29, time.February, 29).Overlaps(win(time.February, 20, time.March, 1)))
	assert.False(t, win(time.March, 1, time.March, 5).Overlaps(win(time.March, 6, time.March, 9)))
}

func TestWindowValidate(t *testing.T) {
	assert.Nil(t, win(time.February, 29, time.March, 1).validate())
	assert.NotNil(t, win(time.February, 30, time.March, 1).validate())
	assert.NotNil(t, win(13, 1, time.March, 1).validate())
	assert.NotNil(t, win(time.April, 1, time.April, 31).validate())
}
