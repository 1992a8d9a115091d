package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rxtech-lab/argo-dataprep/internal/engine"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/internal/version"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// ManifestFileName is the name of the manifest written next to the feature file.
const ManifestFileName = "manifest.json"

// Column maps an output column to the param node it was read from.
type Column struct {
	Name string       `json:"name"`
	Node types.NodeID `json:"node"`
}

// Manifest records how a feature table was produced: the resolved evaluation order and the
// range every node was computed over.
type Manifest struct {
	Version      string                           `json:"version"`
	ToolVersion  string                           `json:"tool_version"`
	RunID        string                           `json:"run_id"`
	CreatedAt    time.Time                        `json:"created_at"`
	Strategy     string                           `json:"strategy,omitempty"`
	Start        string                           `json:"start"`
	End          string                           `json:"end"`
	Universe     []string                         `json:"universe"`
	Columns      []Column                         `json:"columns"`
	Rows         int                              `json:"rows"`
	File         string                           `json:"file"`
	Order        []types.NodeID                   `json:"order"`
	Ranges       map[types.NodeID]types.DateRange `json:"ranges"`
	CellFailures map[types.NodeID]int             `json:"cell_failures,omitempty"`
}

// NewManifest describes table as produced from g. strategy is "owner/name" or empty for ad-hoc
// param lists.
func NewManifest(strategy string, table *Table, g *graph.Graph, universe []string, failures *engine.CellFailures) Manifest {
	resolved := g.Manifest()

	columns := make([]Column, len(table.Columns))
	for i, name := range table.Columns {
		columns[i] = Column{Name: name, Node: table.Params[i]}
	}

	m := Manifest{
		Version:     version.ManifestFormat,
		ToolVersion: version.GetVersion(),
		RunID:       uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Strategy:    strategy,
		Start:       table.Window.Min.Format(types.DateLayout),
		End:         table.Window.Max.Format(types.DateLayout),
		Universe:    universe,
		Columns:     columns,
		Rows:        len(table.Rows),
		Order:       resolved.Order,
		Ranges:      resolved.Ranges,
	}

	if failures != nil && failures.Total() > 0 {
		m.CellFailures = make(map[types.NodeID]int)
		for _, id := range failures.Nodes() {
			f, _ := failures.Node(id)
			m.CellFailures[id] = f.Count
		}
	}

	return m
}

// WriteManifest writes m as indented JSON into dir and returns its path.
func WriteManifest(dir string, m Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to encode manifest", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to create %s", dir)
	}

	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to write %s", path)
	}

	return path, nil
}

// ReadManifest reads a manifest and rejects formats this build cannot read.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest

	data, err := os.ReadFile(path)
	if err != nil {
		return m, errors.Wrapf(errors.ErrCodeManifestNotFound, err, "failed to read %s", path)
	}

	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrapf(errors.ErrCodeManifestVersion, err, "%s is not a manifest", path)
	}

	if err := version.CheckManifestCompatibility(version.ManifestFormat, m.Version); err != nil {
		return m, err
	}

	return m, nil
}
