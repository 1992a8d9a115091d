// Package graph resolves strategy parameters into a dependency graph of data nodes, each
// annotated with the trading-day range its consumers need.
package graph

import (
	"slices"

	"github.com/samber/lo"

	"github.com/rxtech-lab/argo-dataprep/internal/metadata"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// Node is one resolved data node. Exactly one of the kind specific groups of fields is set.
type Node struct {
	ID   types.NodeID
	Kind types.NodeKind

	// table nodes
	Group types.FieldGroup
	Field string

	// param nodes
	Param metadata.ParamDef

	// indicator nodes
	Indicator metadata.IndicatorDef

	// Deps are the direct dependencies in definition order.
	Deps []types.NodeID
}

// Graph is the output of a resolution pass.
type Graph struct {
	// Window is the requested range corrected to trading days.
	Window types.DateRange
	// Order lists every node after all of its dependencies.
	Order []types.NodeID
	// Ranges is the union of the ranges every consumer requested from a node.
	Ranges map[types.NodeID]types.DateRange
	// Expanded is the range a param node computes its aggregation over: its own range
	// widened by the pre and post periods.
	Expanded map[types.NodeID]types.DateRange
	Nodes    map[types.NodeID]*Node
	// Roots are the requested params in request order.
	Roots []types.NodeID
}

// Manifest is the reproducibility record of a resolution.
type Manifest struct {
	Order  []types.NodeID                    `json:"order"`
	Ranges map[types.NodeID]types.DateRange `json:"ranges"`
}

// Manifest returns the resolved order and ranges.
func (g *Graph) Manifest() Manifest {
	ranges := make(map[types.NodeID]types.DateRange, len(g.Ranges))
	for id, r := range g.Ranges {
		ranges[id] = r
	}

	return Manifest{Order: slices.Clone(g.Order), Ranges: ranges}
}

// Node returns the node with the given identity.
func (g *Graph) Node(id types.NodeID) (*Node, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidGraph, "node %s is not part of the graph", id)
	}

	return node, nil
}

// ComputeRange returns the range id is computed over, widened to the aggregation window for params.
func (g *Graph) ComputeRange(id types.NodeID) types.DateRange {
	if r, ok := g.Expanded[id]; ok {
		return r
	}

	return g.Ranges[id]
}

// Validate checks that every node is known, has a range and comes strictly after all of its
// dependencies in Order.
func (g *Graph) Validate() error {
	position := make(map[types.NodeID]int, len(g.Order))

	for i, id := range g.Order {
		if _, dup := position[id]; dup {
			return errors.WithNode(id.String(), errors.New(errors.ErrCodeInvalidGraph, "node appears twice in the evaluation order"))
		}

		position[id] = i
	}

	for i, id := range g.Order {
		node, ok := g.Nodes[id]
		if !ok {
			return errors.WithNode(id.String(), errors.New(errors.ErrCodeInvalidGraph, "node in order was never resolved"))
		}

		if r, ok := g.Ranges[id]; !ok || r.IsEmpty() {
			return errors.WithNode(id.String(), errors.New(errors.ErrCodeInvalidGraph, "node has no range"))
		}

		for _, dep := range node.Deps {
			j, ok := position[dep]
			if !ok || j >= i {
				return errors.WithNode(id.String(), errors.Newf(errors.ErrCodeInvalidGraph,
					"dependency %s is not evaluated before its dependent", dep))
			}
		}
	}

	missing := lo.Filter(g.Roots, func(id types.NodeID, _ int) bool {
		_, ok := position[id]

		return !ok
	})
	if len(missing) > 0 {
		return errors.Newf(errors.ErrCodeInvalidGraph, "requested params missing from the order: %v", missing)
	}

	return nil
}
