package calendar

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

// Mode selects how a calendar is generated when the upstream feed does not publish one.
type Mode string

const (
	// ModeWeekdays opens Monday to Friday except listed holidays (exchange equities).
	ModeWeekdays Mode = "weekdays"
	// ModeContinuous opens every day (crypto markets).
	ModeContinuous Mode = "continuous"
)

// Generate flags every calendar day between start and end as open or closed.
func Generate(mode Mode, start, end time.Time, holidays []time.Time) ([]types.TradingDay, error) {
	start, end = types.Day(start), types.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("calendar end %s is before start %s", end.Format(types.DateLayout), start.Format(types.DateLayout))
	}

	closed := make(map[time.Time]bool, len(holidays))
	for _, h := range holidays {
		closed[types.Day(h)] = true
	}

	var days []types.TradingDay

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		var open bool

		switch mode {
		case ModeContinuous:
			open = !closed[d]
		case ModeWeekdays:
			wd := d.Weekday()
			open = wd != time.Saturday && wd != time.Sunday && !closed[d]
		default:
			return nil, fmt.Errorf("unsupported calendar mode: %s", mode)
		}

		days = append(days, types.TradingDay{Date: d, IsOpen: open})
	}

	return days, nil
}
