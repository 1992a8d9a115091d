// Package metadata reads strategy, parameter and indicator definitions.
//
// Definitions are owned: a lookup first tries the caller's owner and then falls back to the
// shared SystemOwner, so user definitions can shadow the built-in catalog.
package metadata

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// SystemOwner owns the shared definitions every user can reference.
const SystemOwner = "system"

// Strategy declares the parameters that make up the output table.
type Strategy struct {
	Owner string `yaml:"owner" json:"owner" validate:"required"`
	Name  string `yaml:"name" json:"name" validate:"required"`
	// Scope selects the instrument universe: "all", a market code or a comma separated symbol list.
	Scope string `yaml:"scope" json:"scope"`
	// Benchmark is the index symbol index_daily tables are read for.
	Benchmark string      `yaml:"benchmark" json:"benchmark"`
	Params    []types.Ref `yaml:"params" json:"params" validate:"required,min=1,dive"`
}

// ParamDef is a windowed aggregation over one source node.
type ParamDef struct {
	Owner      string           `yaml:"owner" json:"owner" validate:"required"`
	Name       string           `yaml:"name" json:"name" validate:"required"`
	SourceKind types.SourceKind `yaml:"source_kind" json:"source_kind" validate:"required,oneof=table indicator param"`
	// SourceID is "group.field" for tables and "owner/name" or "name" for indicators and params.
	SourceID   string        `yaml:"source_id" json:"source_id" validate:"required"`
	PrePeriod  int           `yaml:"pre_period" json:"pre_period" validate:"gte=0"`
	PostPeriod int           `yaml:"post_period" json:"post_period" validate:"gte=0"`
	AggFunc    types.AggFunc `yaml:"agg_func" json:"agg_func"`
}

// IndicatorDef is a multi-input calculation over parameters.
type IndicatorDef struct {
	Owner         string              `yaml:"owner" json:"owner" validate:"required"`
	Name          string              `yaml:"name" json:"name" validate:"required"`
	CalculationFn types.IndicatorType `yaml:"calculation_fn" json:"calculation_fn" validate:"required"`
	Active        bool                `yaml:"active" json:"active"`
	// Window configures trailing-window functions; zero keeps the function default.
	Window int         `yaml:"window" json:"window" validate:"gte=0"`
	Params []types.Ref `yaml:"params" json:"params" validate:"required,min=1,dive"`
}

// Repository is the read-only view of the definitions the graph builder needs.
type Repository interface {
	GetStrategy(ctx context.Context, owner, name string) (Strategy, error)
	GetParam(ctx context.Context, owner, name string) (ParamDef, error)
	GetIndicator(ctx context.Context, owner, name string) (IndicatorDef, error)
}

var validate = validator.New()

// Validate checks a strategy definition.
func (s Strategy) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid strategy %s/%s", s.Owner, s.Name)
	}

	return nil
}

// Validate checks a parameter definition, including its source and aggregation.
func (p ParamDef) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid param %s/%s", p.Owner, p.Name)
	}

	if _, err := types.ParseAggFunc(string(p.AggFunc)); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidAggregation, err, "invalid param %s/%s", p.Owner, p.Name)
	}

	if p.SourceKind == types.SourceKindTable {
		if _, _, err := types.ParseTableSource(p.SourceID); err != nil {
			return errors.Wrapf(errors.ErrCodeTableNotFound, err, "invalid param %s/%s", p.Owner, p.Name)
		}
	}

	return nil
}

// Validate checks an indicator definition.
func (d IndicatorDef) Validate() error {
	if err := validate.Struct(d); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid indicator %s/%s", d.Owner, d.Name)
	}

	return nil
}

// normalize fills the defaults a stored definition may omit.
func (p ParamDef) normalize() ParamDef {
	agg, err := types.ParseAggFunc(string(p.AggFunc))
	if err == nil {
		p.AggFunc = agg
	}

	return p
}

// ownerChain is the lookup order for owner: the owner itself, then the shared owner.
func ownerChain(owner string) []string {
	if owner == "" || owner == SystemOwner {
		return []string{SystemOwner}
	}

	return []string{owner, SystemOwner}
}

// lookup tries find for every owner in the chain. find reports false when the owner has no
// such definition.
func lookup[T any](owner string, find func(owner string) (T, bool, error)) (T, bool, error) {
	var zero T

	for _, candidate := range ownerChain(owner) {
		value, ok, err := find(candidate)
		if err != nil {
			return zero, false, err
		}

		if ok {
			return value, true, nil
		}
	}

	return zero, false, nil
}

// checkActive turns an inactive indicator into a not found error.
func checkActive(def IndicatorDef) (IndicatorDef, error) {
	if !def.Active {
		return IndicatorDef{}, errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator %s/%s is inactive", def.Owner, def.Name)
	}

	return def, nil
}

func key(owner, name string) string {
	return fmt.Sprintf("%s/%s", owner, name)
}
