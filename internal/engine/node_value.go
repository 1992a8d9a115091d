package engine

import (
	"math"
	"slices"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

// NodeValue is the evaluated series of one node: a value per instrument and trading day of
// the node's range. Unavailable cells hold NaN.
type NodeValue struct {
	Days   []time.Time
	Values map[string][]float64

	index map[time.Time]int
}

// NewNodeValue creates a value over days with every cell unavailable for every symbol.
func NewNodeValue(days []time.Time, symbols []string) *NodeValue {
	v := &NodeValue{
		Days:   slices.Clone(days),
		Values: make(map[string][]float64, len(symbols)),
		index:  nil,
	}

	for _, symbol := range symbols {
		v.Values[symbol] = unavailable(len(days))
	}

	v.reindex()

	return v
}

func unavailable(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

func (v *NodeValue) reindex() {
	v.index = make(map[time.Time]int, len(v.Days))
	for i, d := range v.Days {
		v.index[d] = i
	}
}

// Position returns the index of day in Days.
func (v *NodeValue) Position(day time.Time) (int, bool) {
	if v.index == nil {
		v.reindex()
	}

	i, ok := v.index[types.Day(day)]

	return i, ok
}

// Get returns the value of symbol on day, None when it is unavailable or out of range.
func (v *NodeValue) Get(symbol string, day time.Time) optional.Option[float64] {
	series, ok := v.Values[symbol]
	if !ok {
		return optional.None[float64]()
	}

	i, ok := v.Position(day)
	if !ok || math.IsNaN(series[i]) {
		return optional.None[float64]()
	}

	return optional.Some(series[i])
}

// Series returns the values of symbol aligned with Days, nil for an unknown symbol.
func (v *NodeValue) Series(symbol string) []float64 {
	return v.Values[symbol]
}

// Symbols returns the instruments held, sorted.
func (v *NodeValue) Symbols() []string {
	symbols := make([]string, 0, len(v.Values))
	for symbol := range v.Values {
		symbols = append(symbols, symbol)
	}

	slices.Sort(symbols)

	return symbols
}

// Align returns the values of symbol on each of days, NaN where the node has none.
func (v *NodeValue) Align(symbol string, days []time.Time) []float64 {
	out := unavailable(len(days))
	series, ok := v.Values[symbol]

	if !ok {
		return out
	}

	for i, d := range days {
		if j, ok := v.Position(d); ok {
			out[i] = series[j]
		}
	}

	return out
}

// Trailing returns the n values of symbol ending on day, oldest first. It reports false when
// the node does not hold n days up to day.
func (v *NodeValue) Trailing(symbol string, day time.Time, n int) ([]float64, bool) {
	series, ok := v.Values[symbol]
	if !ok {
		return nil, false
	}

	j, ok := v.Position(day)
	if !ok || j+1 < n {
		return nil, false
	}

	return series[j-n+1 : j+1], true
}

// Clip returns the part of the value inside r.
func (v *NodeValue) Clip(r types.DateRange) *NodeValue {
	lo := 0
	for lo < len(v.Days) && v.Days[lo].Before(r.Min) {
		lo++
	}

	hi := lo
	for hi < len(v.Days) && !v.Days[hi].After(r.Max) {
		hi++
	}

	out := &NodeValue{
		Days:   slices.Clone(v.Days[lo:hi]),
		Values: make(map[string][]float64, len(v.Values)),
		index:  nil,
	}

	for symbol, series := range v.Values {
		out.Values[symbol] = slices.Clone(series[lo:hi])
	}

	out.reindex()

	return out
}
