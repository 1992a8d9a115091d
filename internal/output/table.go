// Package output joins the requested params into one wide feature table and writes it,
// with a manifest of the resolved graph, to the output directory.
package output

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/engine"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

const (
	// InstrumentColumn and DayColumn are the key columns of every feature table.
	InstrumentColumn = "instrument"
	DayColumn        = "trading_day"
)

// Row is one (instrument, trading day) of a feature table. Values are aligned with the table
// columns; NaN is a missing value.
type Row struct {
	Instrument string
	Day        time.Time
	Values     []float64
}

// Table is a materialised feature table.
type Table struct {
	Window  types.DateRange
	Columns []string
	Params  []types.NodeID
	Rows    []Row
}

// Materialize builds one row per instrument of universe and trading day of the graph window,
// with a column per requested param. Rows are ordered by instrument, then day.
func Materialize(result *engine.Result, g *graph.Graph, cal *calendar.Calendar, universe []string) (*Table, error) {
	if cal == nil || cal.Len() == 0 {
		return nil, errors.New(errors.ErrCodeCalendarEmpty, "no trading calendar loaded")
	}

	days := cal.Days(g.Window)
	if len(days) == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow, "%s contains no trading day", g.Window)
	}

	values := make([]*engine.NodeValue, 0, len(g.Roots))
	for _, id := range g.Roots {
		v, err := result.Value(id)
		if err != nil {
			return nil, errors.WithNode(id.String(), err)
		}

		values = append(values, v)
	}

	instruments := lo.Uniq(universe)
	slices.Sort(instruments)

	table := &Table{
		Window:  g.Window,
		Columns: columnNames(g),
		Params:  slices.Clone(g.Roots),
		Rows:    make([]Row, 0, len(instruments)*len(days)),
	}

	columns := make([][]float64, len(values))

	for _, instrument := range instruments {
		for k, v := range values {
			columns[k] = v.Align(instrument, days)
		}

		for i, d := range days {
			row := Row{Instrument: instrument, Day: d, Values: make([]float64, len(values))}
			for k := range values {
				row.Values[k] = columns[k][i]
			}

			table.Rows = append(table.Rows, row)
		}
	}

	return table, nil
}

// columnNames names each root param column by its param name, qualified with the owner when
// two requested params share a name.
func columnNames(g *graph.Graph) []string {
	names := lo.Map(g.Roots, func(id types.NodeID, _ int) string { return g.Nodes[id].Param.Name })
	counts := lo.CountValues(names)

	return lo.Map(g.Roots, func(id types.NodeID, i int) string {
		if counts[names[i]] > 1 {
			p := g.Nodes[id].Param

			return p.Owner + "/" + p.Name
		}

		return names[i]
	})
}

// Value returns the value of column in row, false when it is missing or unknown.
func (t *Table) Value(row Row, column string) (float64, bool) {
	k := slices.Index(t.Columns, column)
	if k < 0 || k >= len(row.Values) || math.IsNaN(row.Values[k]) {
		return 0, false
	}

	return row.Values[k], true
}
