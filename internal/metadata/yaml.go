package metadata

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// IndicatorDocument is the file form of an indicator; Active defaults to true when omitted.
type IndicatorDocument struct {
	Owner         string              `yaml:"owner" json:"owner"`
	Name          string              `yaml:"name" json:"name"`
	CalculationFn types.IndicatorType `yaml:"calculation_fn" json:"calculation_fn"`
	Active        *bool               `yaml:"active,omitempty" json:"active,omitempty"`
	Window        int                 `yaml:"window,omitempty" json:"window,omitempty"`
	Params        []types.Ref         `yaml:"params" json:"params"`
}

func (d IndicatorDocument) definition() IndicatorDef {
	active := true
	if d.Active != nil {
		active = *d.Active
	}

	return IndicatorDef{
		Owner:         d.Owner,
		Name:          d.Name,
		CalculationFn: d.CalculationFn,
		Active:        active,
		Window:        d.Window,
		Params:        d.Params,
	}
}

// Definitions is the content of a definitions file.
type Definitions struct {
	Strategies []Strategy          `yaml:"strategies" json:"strategies"`
	Params     []ParamDef          `yaml:"params" json:"params"`
	Indicators []IndicatorDocument `yaml:"indicators" json:"indicators"`
}

// LoadDefinitions reads and validates a definitions file. Definitions without an owner
// belong to SystemOwner.
func LoadDefinitions(path string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read definitions file %s", path)
	}

	return ParseDefinitions(data)
}

// ParseDefinitions decodes and validates definitions from YAML.
func ParseDefinitions(data []byte) (Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return Definitions{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse definitions", err)
	}

	for i := range defs.Strategies {
		if defs.Strategies[i].Owner == "" {
			defs.Strategies[i].Owner = SystemOwner
		}

		if err := defs.Strategies[i].Validate(); err != nil {
			return Definitions{}, err
		}
	}

	for i := range defs.Params {
		if defs.Params[i].Owner == "" {
			defs.Params[i].Owner = SystemOwner
		}

		if err := defs.Params[i].Validate(); err != nil {
			return Definitions{}, err
		}

		defs.Params[i] = defs.Params[i].normalize()
	}

	for i := range defs.Indicators {
		if defs.Indicators[i].Owner == "" {
			defs.Indicators[i].Owner = SystemOwner
		}

		if err := defs.Indicators[i].definition().Validate(); err != nil {
			return Definitions{}, err
		}
	}

	return defs, nil
}

// YAMLRepository serves definitions held in memory after loading a file.
type YAMLRepository struct {
	strategies map[string]Strategy
	params     map[string]ParamDef
	indicators map[string]IndicatorDef
}

// NewYAMLRepository loads the definitions file at path.
func NewYAMLRepository(path string) (*YAMLRepository, error) {
	defs, err := LoadDefinitions(path)
	if err != nil {
		return nil, err
	}

	return NewRepositoryFromDefinitions(defs)
}

// NewRepositoryFromDefinitions indexes defs. Duplicate (owner, name) pairs are rejected.
func NewRepositoryFromDefinitions(defs Definitions) (*YAMLRepository, error) {
	repo := &YAMLRepository{
		strategies: make(map[string]Strategy),
		params:     make(map[string]ParamDef),
		indicators: make(map[string]IndicatorDef),
	}

	for _, strategy := range defs.Strategies {
		if err := insertUnique(repo.strategies, key(strategy.Owner, strategy.Name), strategy, "strategy"); err != nil {
			return nil, err
		}
	}

	for _, param := range defs.Params {
		if err := insertUnique(repo.params, key(param.Owner, param.Name), param, "param"); err != nil {
			return nil, err
		}
	}

	for _, doc := range defs.Indicators {
		def := doc.definition()
		if err := insertUnique(repo.indicators, key(def.Owner, def.Name), def, "indicator"); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func insertUnique[T any](index map[string]T, k string, value T, kind string) error {
	if _, exists := index[k]; exists {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate %s %s", kind, k)
	}

	index[k] = value

	return nil
}

// GetStrategy implements Repository.
func (r *YAMLRepository) GetStrategy(_ context.Context, owner, name string) (Strategy, error) {
	strategy, ok, _ := lookup(owner, find(r.strategies, name))
	if !ok {
		return Strategy{}, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not found", key(owner, name))
	}

	return strategy, nil
}

// GetParam implements Repository.
func (r *YAMLRepository) GetParam(_ context.Context, owner, name string) (ParamDef, error) {
	param, ok, _ := lookup(owner, find(r.params, name))
	if !ok {
		return ParamDef{}, errors.Newf(errors.ErrCodeParamNotFound, "param %s not found", key(owner, name))
	}

	return param, nil
}

// GetIndicator implements Repository.
func (r *YAMLRepository) GetIndicator(_ context.Context, owner, name string) (IndicatorDef, error) {
	def, ok, _ := lookup(owner, find(r.indicators, name))
	if !ok {
		return IndicatorDef{}, errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator %s not found", key(owner, name))
	}

	return checkActive(def)
}

func find[T any](index map[string]T, name string) func(owner string) (T, bool, error) {
	return func(owner string) (T, bool, error) {
		value, ok := index[key(owner, name)]

		return value, ok, nil
	}
}

// String summarises the repository content.
func (r *YAMLRepository) String() string {
	return fmt.Sprintf("%d strategies, %d params, %d indicators", len(r.strategies), len(r.params), len(r.indicators))
}
