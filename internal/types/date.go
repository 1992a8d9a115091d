package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the layout used for trading days in configs, manifests and output files.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}

	return t, nil
}

// TradingDay is a calendar date flagged open or closed.
type TradingDay struct {
	Date   time.Time `json:"date" yaml:"date"`
	IsOpen bool      `json:"is_open" yaml:"is_open"`
}

// DateRange is an inclusive (Min, Max) window of days.
type DateRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// NewDateRange builds a range from two days, normalised to UTC midnight.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{Min: Day(from), Max: Day(to)}
}

// IsZero reports whether the range was never set.
func (r DateRange) IsZero() bool {
	return r.Min.IsZero() && r.Max.IsZero()
}

// IsEmpty reports whether the range contains no day at all.
func (r DateRange) IsEmpty() bool {
	return r.IsZero() || r.Max.Before(r.Min)
}

// Union returns the smallest range covering both r and other. A zero range is the identity.
func (r DateRange) Union(other DateRange) DateRange {
	if r.IsZero() {
		return other
	}

	if other.IsZero() {
		return r
	}

	out := r
	if other.Min.Before(out.Min) {
		out.Min = other.Min
	}

	if other.Max.After(out.Max) {
		out.Max = other.Max
	}

	return out
}

// Contains reports whether day lies inside the range.
func (r DateRange) Contains(day time.Time) bool {
	day = Day(day)

	return !day.Before(r.Min) && !day.After(r.Max)
}

// Covers reports whether other lies entirely inside r.
func (r DateRange) Covers(other DateRange) bool {
	if other.IsZero() {
		return true
	}

	if r.IsZero() {
		return false
	}

	return !other.Min.Before(r.Min) && !other.Max.After(r.Max)
}

// String renders the range as "min..max".
func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Min.Format(DateLayout), r.Max.Format(DateLayout))
}

// MarshalJSON renders the range as a two element array of dates, the manifest format.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`["%s","%s"]`, r.Min.Format(DateLayout), r.Max.Format(DateLayout))), nil
}

// UnmarshalJSON parses the two element array written by MarshalJSON.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var bounds [2]string

	if err := json.Unmarshal(data, &bounds); err != nil {
		return fmt.Errorf("invalid date range %s: %w", string(data), err)
	}

	from, err := ParseDay(bounds[0])
	if err != nil {
		return err
	}

	to, err := ParseDay(bounds[1])
	if err != nil {
		return err
	}

	r.Min, r.Max = from, to

	return nil
}
