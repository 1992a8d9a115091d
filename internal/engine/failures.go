package engine

import (
	"slices"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

// Reasons a cell evaluated to unavailable.
const (
	ReasonMissingInput     = "missing_input"
	ReasonInsufficientData = "insufficient_data"
	ReasonDomainError      = "domain_error"
)

// NodeFailures summarises the absorbed cell failures of one indicator node.
type NodeFailures struct {
	Node    types.NodeID
	Count   int
	Reasons map[string]int
	// Sample is the first failure seen, kept for diagnostics.
	Sample       error
	SampleSymbol string
	SampleDay    time.Time
}

// CellFailures collects the cells that were turned into unavailable values during one
// evaluation instead of failing the run.
type CellFailures struct {
	nodes map[types.NodeID]*NodeFailures
}

func newCellFailures() *CellFailures {
	return &CellFailures{nodes: make(map[types.NodeID]*NodeFailures)}
}

func (c *CellFailures) record(node types.NodeID, symbol string, day time.Time, reason string, err error) {
	f, ok := c.nodes[node]
	if !ok {
		f = &NodeFailures{Node: node, Reasons: make(map[string]int)}
		c.nodes[node] = f
	}

	f.Count++
	f.Reasons[reason]++

	if f.Sample == nil && err != nil {
		f.Sample = err
		f.SampleSymbol = symbol
		f.SampleDay = day
	}
}

// Total is the number of failed cells across all nodes.
func (c *CellFailures) Total() int {
	total := 0
	for _, f := range c.nodes {
		total += f.Count
	}

	return total
}

// Node returns the failures of one node; ok is false when it had none.
func (c *CellFailures) Node(id types.NodeID) (NodeFailures, bool) {
	f, ok := c.nodes[id]
	if !ok {
		return NodeFailures{}, false
	}

	return *f, true
}

// Nodes lists the nodes with at least one failure, sorted.
func (c *CellFailures) Nodes() []types.NodeID {
	ids := make([]types.NodeID, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}
