package graph

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/indicator"
	"github.com/rxtech-lab/argo-dataprep/internal/logger"
	"github.com/rxtech-lab/argo-dataprep/internal/metadata"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// DefaultMaxPredictChain is the longest allowed chain of forecast params feeding each other.
const DefaultMaxPredictChain = 5

// Options tunes a Builder.
type Options struct {
	// MaxPredictChain bounds chained PREDICT params. Zero means DefaultMaxPredictChain.
	MaxPredictChain int
	Logger          *logger.Logger
}

// Builder resolves parameter references against a metadata repository. Pass a
// metadata.RunContext as the repository to share lookups across one run.
type Builder struct {
	repo            metadata.Repository
	calendar        *calendar.Calendar
	registry        indicator.IndicatorRegistry
	maxPredictChain int
	log             *logger.Logger
}

// NewBuilder creates a builder over repo, cal and registry.
func NewBuilder(repo metadata.Repository, cal *calendar.Calendar, registry indicator.IndicatorRegistry, opts Options) *Builder {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	maxChain := opts.MaxPredictChain
	if maxChain <= 0 {
		maxChain = DefaultMaxPredictChain
	}

	return &Builder{
		repo:            repo,
		calendar:        cal,
		registry:        registry,
		maxPredictChain: maxChain,
		log:             log.Named("graph"),
	}
}

// resolution is the state of one Resolve call.
type resolution struct {
	*Builder
	ctx      context.Context
	owner    string
	graph    *Graph
	visiting map[types.NodeID]bool
}

// Resolve builds the graph of refs requested over [start, end]. Refs without an owner, and
// the references inside every definition they reach, are looked up for owner first and then
// for the shared owner.
func (b *Builder) Resolve(ctx context.Context, owner string, refs []types.Ref, start, end time.Time) (*Graph, error) {
	if len(refs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "at least one param is required")
	}

	if b.calendar == nil || b.calendar.Len() == 0 {
		return nil, errors.New(errors.ErrCodeCalendarEmpty, "no trading calendar loaded")
	}

	window, err := b.calendar.Normalize(types.NewDateRange(start, end))
	if err != nil {
		return nil, err
	}

	r := &resolution{
		Builder: b,
		ctx:     ctx,
		owner:   owner,
		graph: &Graph{
			Window:   window,
			Order:    nil,
			Ranges:   make(map[types.NodeID]types.DateRange),
			Expanded: make(map[types.NodeID]types.DateRange),
			Nodes:    make(map[types.NodeID]*Node),
			Roots:    nil,
		},
		visiting: make(map[types.NodeID]bool),
	}

	for _, ref := range refs {
		id, err := r.param(r.ownerOf(ref), ref.Name, window)
		if err != nil {
			return nil, err
		}

		if !slices.Contains(r.graph.Roots, id) {
			r.graph.Roots = append(r.graph.Roots, id)
		}
	}

	if err := r.finalize(); err != nil {
		return nil, err
	}

	if err := r.graph.Validate(); err != nil {
		return nil, err
	}

	b.log.Info("dependency graph resolved",
		zap.String("owner", owner),
		zap.String("window", window.String()),
		zap.Int("nodes", len(r.graph.Order)),
		zap.Int("roots", len(r.graph.Roots)),
	)

	return r.graph, nil
}

func (r *resolution) ownerOf(ref types.Ref) string {
	if ref.Owner != "" {
		return ref.Owner
	}

	return r.owner
}

// enter records rng for id. A new node is built (which visits its dependencies) and appended
// to the order afterwards. A known node keeps its position; when rng widens its range the
// new range is pushed down to its dependencies again.
func (r *resolution) enter(id types.NodeID, rng types.DateRange, build func() (*Node, error)) error {
	if r.visiting[id] {
		return errors.WithNode(id.String(), errors.New(errors.ErrCodeInvalidGraph, "dependency cycle"))
	}

	if node, ok := r.graph.Nodes[id]; ok {
		current := r.graph.Ranges[id]
		if current.Covers(rng) {
			return nil
		}

		r.graph.Ranges[id] = current.Union(rng)
		r.log.Debug("node range widened", zap.String("node", id.String()), zap.String("range", r.graph.Ranges[id].String()))

		r.visiting[id] = true
		defer delete(r.visiting, id)

		return r.propagate(node)
	}

	r.graph.Ranges[id] = r.graph.Ranges[id].Union(rng)
	r.visiting[id] = true
	defer delete(r.visiting, id)

	node, err := build()
	if err != nil {
		return errors.WithNode(id.String(), err)
	}

	r.graph.Nodes[id] = node
	r.graph.Order = append(r.graph.Order, id)
	r.log.Debug("node resolved", zap.String("node", id.String()), zap.String("range", r.graph.Ranges[id].String()))

	return nil
}

// propagate re-visits the dependencies of a known node with its current range.
func (r *resolution) propagate(node *Node) error {
	switch node.Kind {
	case types.NodeKindParam:
		window, err := r.window(node.Param, r.graph.Ranges[node.ID])
		if err != nil {
			return errors.WithNode(node.ID.String(), err)
		}

		return r.enter(node.Deps[0], window, nil)
	case types.NodeKindIndicator:
		for _, dep := range node.Deps {
			if err := r.enter(dep, r.graph.Ranges[node.ID], nil); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *resolution) param(owner, name string, rng types.DateRange) (types.NodeID, error) {
	def, err := r.repo.GetParam(r.ctx, owner, name)
	if err != nil {
		return "", errors.WithNode(types.ParamNodeID(owner, name).String(), err)
	}

	id := types.ParamNodeID(def.Owner, def.Name)

	err = r.enter(id, rng, func() (*Node, error) {
		if err := checkAggregation(def); err != nil {
			return nil, err
		}

		window, err := r.window(def, rng)
		if err != nil {
			return nil, err
		}

		source, err := r.source(def, window)
		if err != nil {
			return nil, err
		}

		return &Node{ID: id, Kind: types.NodeKindParam, Param: def, Deps: []types.NodeID{source}}, nil
	})

	return id, err
}

func (r *resolution) source(def metadata.ParamDef, rng types.DateRange) (types.NodeID, error) {
	switch def.SourceKind {
	case types.SourceKindTable:
		group, field, err := types.ParseTableSource(def.SourceID)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeTableNotFound, "invalid table source", err)
		}

		id := types.TableNodeID(group, field)

		return id, r.enter(id, rng, func() (*Node, error) {
			return &Node{ID: id, Kind: types.NodeKindTable, Group: group, Field: field}, nil
		})
	case types.SourceKindIndicator:
		ref := types.ParseRef(def.SourceID)

		return r.indicator(r.ownerOf(ref), ref.Name, rng)
	case types.SourceKindParam:
		ref := types.ParseRef(def.SourceID)

		return r.param(r.ownerOf(ref), ref.Name, rng)
	default:
		return "", errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown source kind %q", def.SourceKind)
	}
}

func (r *resolution) indicator(owner, name string, rng types.DateRange) (types.NodeID, error) {
	def, err := r.repo.GetIndicator(r.ctx, owner, name)
	if err != nil {
		return "", errors.WithNode(types.IndicatorNodeID(owner, name).String(), err)
	}

	id := types.IndicatorNodeID(def.Owner, def.Name)

	err = r.enter(id, rng, func() (*Node, error) {
		fn, err := r.registry.GetIndicator(def.CalculationFn)
		if err != nil {
			return nil, err
		}

		if err := indicator.CheckArity(fn, len(def.Params)); err != nil {
			return nil, err
		}

		deps := make([]types.NodeID, 0, len(def.Params))

		for _, p := range def.Params {
			dep, err := r.param(r.ownerOf(p), p.Name, rng)
			if err != nil {
				return nil, err
			}

			deps = append(deps, dep)
		}

		return &Node{ID: id, Kind: types.NodeKindIndicator, Indicator: def, Deps: deps}, nil
	})

	return id, err
}

// window widens rng to the days the aggregation of def reads: pre days back and post days
// forward. A forecast uses post as its horizon and reads no future day.
func (r *resolution) window(def metadata.ParamDef, rng types.DateRange) (types.DateRange, error) {
	post := def.PostPeriod
	if def.AggFunc == types.AggFuncPredict {
		post = 0
	}

	expanded, err := r.calendar.Expand(rng, def.PrePeriod, post)
	if err != nil {
		return types.DateRange{}, errors.Wrapf(errors.ErrCodeInvalidWindow, err, "cannot widen %s by %d days back and %d forward", rng, def.PrePeriod, post)
	}

	return expanded, nil
}

func checkAggregation(def metadata.ParamDef) error {
	agg, err := types.ParseAggFunc(string(def.AggFunc))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidAggregation, "invalid param aggregation", err)
	}

	switch agg {
	case types.AggFuncEMA:
		if def.PrePeriod < 1 {
			return errors.Newf(errors.ErrCodeInvalidWindow, "ema span (pre_period) must be at least 1, got %d", def.PrePeriod)
		}
	case types.AggFuncPredict:
		if def.PrePeriod < 1 {
			return errors.Newf(errors.ErrCodeInvalidWindow, "predict needs a trailing window (pre_period) of at least 1, got %d", def.PrePeriod)
		}
	}

	return nil
}

// finalize records the aggregation window of every param and bounds forecast chains.
func (r *resolution) finalize() error {
	depth := make(map[types.NodeID]int)

	var predictDepth func(id types.NodeID) int
	predictDepth = func(id types.NodeID) int {
		if d, ok := depth[id]; ok {
			return d
		}

		node := r.graph.Nodes[id]
		if node.Kind != types.NodeKindParam || node.Param.AggFunc != types.AggFuncPredict {
			depth[id] = 0

			return 0
		}

		depth[id] = 1 + predictDepth(node.Deps[0])

		return depth[id]
	}

	for _, id := range r.graph.Order {
		node := r.graph.Nodes[id]
		if node.Kind != types.NodeKindParam {
			continue
		}

		if d := predictDepth(id); d > r.maxPredictChain {
			return errors.WithNode(id.String(), errors.Newf(errors.ErrCodeInvalidGraph,
				"forecast chain of %d params exceeds the limit of %d", d, r.maxPredictChain))
		}

		window, err := r.window(node.Param, r.graph.Ranges[id])
		if err != nil {
			return errors.WithNode(id.String(), err)
		}

		r.graph.Expanded[id] = window
	}

	return nil
}
