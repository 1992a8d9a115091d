// Package calendar implements the trading-day axis used for all window arithmetic.
// Windows are always counted in open trading days, never in calendar days.
package calendar

import (
	"slices"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// Direction selects which neighbouring trading day Correct returns.
type Direction int

const (
	// Forward corrects to the nearest trading day at or after the date.
	Forward Direction = iota
	// Backward corrects to the nearest trading day at or before the date.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}

	return "forward"
}

// Calendar is an ordered, de-duplicated sequence of open trading days.
type Calendar struct {
	days []time.Time
}

// New builds a calendar from trading day flags. Closed days are dropped, open days are
// normalised to UTC midnight, sorted and de-duplicated.
func New(tradingDays []types.TradingDay) *Calendar {
	days := make([]time.Time, 0, len(tradingDays))

	for _, td := range tradingDays {
		if td.IsOpen {
			days = append(days, types.Day(td.Date))
		}
	}

	return FromDays(days)
}

// FromDays builds a calendar from open days only.
func FromDays(days []time.Time) *Calendar {
	normalised := make([]time.Time, 0, len(days))
	for _, d := range days {
		normalised = append(normalised, types.Day(d))
	}

	slices.SortFunc(normalised, func(a, b time.Time) int { return a.Compare(b) })
	normalised = slices.CompactFunc(normalised, func(a, b time.Time) bool { return a.Equal(b) })

	return &Calendar{days: normalised}
}

// Len returns the number of trading days.
func (c *Calendar) Len() int {
	return len(c.days)
}

// First returns the first trading day.
func (c *Calendar) First() (time.Time, error) {
	if len(c.days) == 0 {
		return time.Time{}, errors.New(errors.ErrCodeCalendarEmpty, "trading calendar is empty")
	}

	return c.days[0], nil
}

// Last returns the last trading day.
func (c *Calendar) Last() (time.Time, error) {
	if len(c.days) == 0 {
		return time.Time{}, errors.New(errors.ErrCodeCalendarEmpty, "trading calendar is empty")
	}

	return c.days[len(c.days)-1], nil
}

// Index returns the position of date in the calendar and whether it is a trading day.
func (c *Calendar) Index(date time.Time) (int, bool) {
	date = types.Day(date)
	i := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(date) })

	if i < len(c.days) && c.days[i].Equal(date) {
		return i, true
	}

	return i, false
}

// Correct returns the nearest trading day at or after (Forward) or at or before (Backward)
// date. It fails only when no trading day exists on the requested side.
func (c *Calendar) Correct(date time.Time, direction Direction) (time.Time, error) {
	i, exact := c.Index(date)
	if exact {
		return c.days[i], nil
	}

	switch direction {
	case Backward:
		if i == 0 {
			return time.Time{}, errors.Newf(errors.ErrCodeNotATradingDay,
				"no trading day on or before %s", date.Format(types.DateLayout))
		}

		return c.days[i-1], nil
	default:
		if i >= len(c.days) {
			return time.Time{}, errors.Newf(errors.ErrCodeNotATradingDay,
				"no trading day on or after %s", date.Format(types.DateLayout))
		}

		return c.days[i], nil
	}
}

// Shift returns the trading day n positions away from date, which must itself be a
// trading day.
func (c *Calendar) Shift(date time.Time, n int) (time.Time, error) {
	i, ok := c.Index(date)
	if !ok {
		return time.Time{}, errors.Newf(errors.ErrCodeNotATradingDay,
			"%s is not a trading day", date.Format(types.DateLayout))
	}

	target := i + n
	if target < 0 || target >= len(c.days) {
		return time.Time{}, errors.Newf(errors.ErrCodeRangeExceeded,
			"shifting %s by %d trading days leaves the calendar (%d days)", date.Format(types.DateLayout), n, len(c.days))
	}

	return c.days[target], nil
}

// Normalize corrects a range to trading days: Min forward, Max backward. A range with
// no trading day inside is an invalid window.
func (c *Calendar) Normalize(r types.DateRange) (types.DateRange, error) {
	from, err := c.Correct(r.Min, Forward)
	if err != nil {
		return types.DateRange{}, errors.Wrapf(errors.ErrCodeInvalidWindow, err, "cannot correct start of %s", r)
	}

	to, err := c.Correct(r.Max, Backward)
	if err != nil {
		return types.DateRange{}, errors.Wrapf(errors.ErrCodeInvalidWindow, err, "cannot correct end of %s", r)
	}

	if to.Before(from) {
		return types.DateRange{}, errors.Newf(errors.ErrCodeInvalidWindow, "%s contains no trading day", r)
	}

	return types.DateRange{Min: from, Max: to}, nil
}

// Expand widens a trading-day range by pre days before and post days after.
func (c *Calendar) Expand(r types.DateRange, pre, post int) (types.DateRange, error) {
	from, err := c.Shift(r.Min, -pre)
	if err != nil {
		return types.DateRange{}, err
	}

	to, err := c.Shift(r.Max, post)
	if err != nil {
		return types.DateRange{}, err
	}

	return types.DateRange{Min: from, Max: to}, nil
}

// Days returns the trading days inside r, inclusive on both ends.
func (c *Calendar) Days(r types.DateRange) []time.Time {
	if r.IsEmpty() {
		return nil
	}

	lo, _ := c.Index(r.Min)
	hi, exact := c.Index(r.Max)

	if exact {
		hi++
	}

	if lo >= hi {
		return nil
	}

	return slices.Clone(c.days[lo:hi])
}
