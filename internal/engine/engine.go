// Package engine evaluates a resolved dependency graph node by node in graph order.
//
// Table nodes read the market data cache, param nodes aggregate their single source over the
// widened window and indicator nodes run their calculation function cell by cell. A cell that
// cannot be computed becomes unavailable and is recorded in CellFailures; only structural
// problems abort the evaluation.
package engine

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dataprep/internal/aggregate"
	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/indicator"
	"github.com/rxtech-lab/argo-dataprep/internal/logger"
	"github.com/rxtech-lab/argo-dataprep/internal/metrics"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// DataSource serves raw upstream rows. *cache.Store implements it.
type DataSource interface {
	Get(ctx context.Context, group types.FieldGroup, fields []string, instruments []string, start, end time.Time) ([]types.Record, error)
}

// Options tunes an Engine.
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Engine evaluates graphs against one data source and calendar.
type Engine struct {
	source   DataSource
	calendar *calendar.Calendar
	registry indicator.IndicatorRegistry
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// Result holds the values of every node of one evaluation. It lives for one run.
type Result struct {
	Values   map[types.NodeID]*NodeValue
	Failures *CellFailures
}

// Value returns the evaluated value of id.
func (r *Result) Value(id types.NodeID) (*NodeValue, error) {
	v, ok := r.Values[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNodeValueNotFound, "node %s has not been evaluated", id)
	}

	return v, nil
}

// NewEngine creates an engine.
func NewEngine(source DataSource, cal *calendar.Calendar, registry indicator.IndicatorRegistry, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewNopMetrics()
	}

	return &Engine{
		source:   source,
		calendar: cal,
		registry: registry,
		log:      log.Named("engine"),
		metrics:  m,
	}
}

// Evaluate walks g.Order once for the instruments of universe. benchmark is the symbol
// index_daily tables are read for; its series is shared by every instrument.
func (e *Engine) Evaluate(ctx context.Context, g *graph.Graph, universe []string, benchmark string) (*Result, error) {
	if len(universe) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "instrument universe is empty")
	}

	if e.calendar == nil || e.calendar.Len() == 0 {
		return nil, errors.New(errors.ErrCodeCalendarEmpty, "no trading calendar loaded")
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		Values:   make(map[types.NodeID]*NodeValue, len(g.Order)),
		Failures: newCellFailures(),
	}

	for _, id := range g.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := g.Nodes[id]

		var (
			value *NodeValue
			err   error
		)

		switch node.Kind {
		case types.NodeKindTable:
			value, err = e.evaluateTable(ctx, g, node, universe, benchmark)
		case types.NodeKindParam:
			value, err = e.evaluateParam(g, node, result)
		case types.NodeKindIndicator:
			value, err = e.evaluateIndicator(g, node, result)
		default:
			err = errors.Newf(errors.ErrCodeInvalidGraph, "unknown node kind %q", node.Kind)
		}

		if err != nil {
			return nil, errors.WithNode(id.String(), err)
		}

		result.Values[id] = value
		e.metrics.NodesEvaluated.WithLabelValues(string(node.Kind)).Inc()
		e.log.Debug("node evaluated", zap.String("node", id.String()), zap.Int("days", len(value.Days)))
	}

	for _, id := range result.Failures.Nodes() {
		f, _ := result.Failures.Node(id)
		e.log.Warn("indicator cells unavailable",
			zap.String("node", id.String()),
			zap.Int("cells", f.Count),
			zap.Any("reasons", f.Reasons),
			zap.String("sample_symbol", f.SampleSymbol),
			zap.Time("sample_day", f.SampleDay),
			zap.Error(f.Sample),
		)
	}

	return result, nil
}

func (e *Engine) evaluateTable(ctx context.Context, g *graph.Graph, node *graph.Node, universe []string, benchmark string) (*NodeValue, error) {
	rng := g.Ranges[node.ID]
	value := NewNodeValue(e.calendar.Days(rng), universe)

	instruments := universe
	if node.Group == types.FieldGroupIndexDaily {
		if benchmark == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "%s needs a benchmark symbol", node.Group)
		}

		instruments = []string{benchmark}
	}

	records, err := e.source.Get(ctx, node.Group, []string{node.Field}, instruments, rng.Min, rng.Max)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		i, ok := value.Position(record.Date)
		if !ok {
			continue
		}

		v, ok := record.Fields[node.Field]
		if !ok {
			continue
		}

		if node.Group == types.FieldGroupIndexDaily {
			for _, symbol := range universe {
				value.Values[symbol][i] = v
			}

			continue
		}

		if series, ok := value.Values[record.Symbol]; ok {
			series[i] = v
		}
	}

	return value, nil
}

func (e *Engine) evaluateParam(g *graph.Graph, node *graph.Node, result *Result) (*NodeValue, error) {
	source, err := result.Value(node.Deps[0])
	if err != nil {
		return nil, err
	}

	def := node.Param
	days := e.calendar.Days(g.ComputeRange(node.ID))
	symbols := source.Symbols()
	computed := NewNodeValue(days, symbols)

	for _, symbol := range symbols {
		series := source.Align(symbol, days)

		var out []float64

		switch def.AggFunc {
		case types.AggFuncNone, "":
			out = series
		case types.AggFuncSMA:
			out, err = aggregate.SMA(series, def.PrePeriod, def.PostPeriod)
		case types.AggFuncEMA:
			out, err = aggregate.EMA(series, def.PrePeriod)
		case types.AggFuncPredict:
			out, err = aggregate.Predict(series, def.PrePeriod, def.PostPeriod)
		default:
			err = errors.Newf(errors.ErrCodeInvalidAggregation, "unknown aggregation %q", def.AggFunc)
		}

		if err != nil {
			return nil, err
		}

		computed.Values[symbol] = out
	}

	return computed.Clip(g.Ranges[node.ID]), nil
}

func (e *Engine) evaluateIndicator(g *graph.Graph, node *graph.Node, result *Result) (*NodeValue, error) {
	def := node.Indicator

	fn, err := e.registry.GetIndicator(def.CalculationFn)
	if err != nil {
		return nil, err
	}

	if def.Window > 0 {
		if err := fn.Config(def.Window); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "cannot apply window %d to %s", def.Window, def.CalculationFn)
		}
	}

	if err := indicator.CheckArity(fn, len(node.Deps)); err != nil {
		return nil, err
	}

	deps := make([]*NodeValue, 0, len(node.Deps))
	for _, dep := range node.Deps {
		v, err := result.Value(dep)
		if err != nil {
			return nil, err
		}

		deps = append(deps, v)
	}

	days := e.calendar.Days(g.Ranges[node.ID])
	symbols := deps[0].Symbols()
	value := NewNodeValue(days, symbols)
	lookback := fn.Lookback()
	inputs := make([][]float64, len(deps))

	for _, symbol := range symbols {
		series := value.Values[symbol]

		for i, day := range days {
			reason := ""

			for k, dep := range deps {
				window, ok := dep.Trailing(symbol, day, lookback)
				if !ok {
					reason = ReasonInsufficientData

					break
				}

				if hasUnavailable(window) {
					reason = ReasonMissingInput

					break
				}

				inputs[k] = window
			}

			if reason != "" {
				e.absorb(result, node.ID, symbol, day, reason, nil)

				continue
			}

			v, err := fn.RawValue(inputs...)
			if err != nil {
				reason = ReasonDomainError
				if errors.IsInsufficientDataError(err) {
					reason = ReasonInsufficientData
				}

				e.absorb(result, node.ID, symbol, day, reason, err)

				continue
			}

			series[i] = v
		}
	}

	return value, nil
}

func (e *Engine) absorb(result *Result, id types.NodeID, symbol string, day time.Time, reason string, err error) {
	if err != nil {
		err = errors.Wrapf(errors.ErrCodeCellEvaluationFailure, err, "%s on %s", symbol, day.Format(types.DateLayout))
	}

	result.Failures.record(id, symbol, day, reason, err)
	e.metrics.CellFailures.WithLabelValues(id.String(), reason).Inc()

	if err != nil {
		e.log.Debug("indicator cell failed",
			zap.String("node", id.String()),
			zap.String("symbol", symbol),
			zap.Time("day", day),
			zap.Error(err),
		)
	}
}

func hasUnavailable(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}

	return false
}
