package types

import (
	"fmt"
	"slices"
	"time"
)

// FieldGroup is one raw upstream table. Each group is persisted as its own cache table
// keyed by (symbol, date).
type FieldGroup string

const (
	// FieldGroupDaily holds daily OHLCV bars.
	FieldGroupDaily FieldGroup = "daily"
	// FieldGroupDailyBasic holds per-day trading statistics.
	FieldGroupDailyBasic FieldGroup = "daily_basic"
	// FieldGroupIndexDaily holds benchmark index bars.
	FieldGroupIndexDaily FieldGroup = "index_daily"
)

var fieldGroupColumns = map[FieldGroup][]string{
	FieldGroupDaily:      {"open", "high", "low", "close", "volume"},
	FieldGroupDailyBasic: {"vwap", "transactions", "amount"},
	FieldGroupIndexDaily: {"open", "high", "low", "close", "volume"},
}

// FieldGroups lists every known group in a stable order.
func FieldGroups() []FieldGroup {
	return []FieldGroup{FieldGroupDaily, FieldGroupDailyBasic, FieldGroupIndexDaily}
}

// ParseFieldGroup validates a group name.
func ParseFieldGroup(s string) (FieldGroup, error) {
	group := FieldGroup(s)
	if _, ok := fieldGroupColumns[group]; !ok {
		return "", fmt.Errorf("unknown field group: %s", s)
	}

	return group, nil
}

// Columns returns the value columns stored for the group.
func (g FieldGroup) Columns() []string {
	return slices.Clone(fieldGroupColumns[g])
}

// HasField reports whether field is a column of the group.
func (g FieldGroup) HasField(field string) bool {
	return slices.Contains(fieldGroupColumns[g], field)
}

// Record is one cached upstream row for an instrument on a trading day.
type Record struct {
	Symbol string             `json:"symbol"`
	Date   time.Time          `json:"date"`
	Fields map[string]float64 `json:"fields"`
}

// Instrument is an entry of the instrument catalog.
type Instrument struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	Market string `json:"market" yaml:"market"`
	Active bool   `json:"active" yaml:"active"`
}
