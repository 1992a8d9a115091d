package indicator

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// Factory builds a fresh indicator instance so per-node configuration never leaks.
type Factory func() Indicator

// IndicatorRegistry manages all available calculation functions.
type IndicatorRegistry interface {
	RegisterIndicator(name types.IndicatorType, factory Factory) error
	GetIndicator(name types.IndicatorType) (Indicator, error)
	HasIndicator(name types.IndicatorType) bool
	ListIndicators() []types.IndicatorType
	RemoveIndicator(name types.IndicatorType) error
}

// IndicatorRegistryV1 manages all available calculation functions.
type IndicatorRegistryV1 struct {
	factories map[types.IndicatorType]Factory
	mu        sync.RWMutex
}

// NewIndicatorRegistry creates a new, empty indicator registry.
func NewIndicatorRegistry() IndicatorRegistry {
	return &IndicatorRegistryV1{
		factories: make(map[types.IndicatorType]Factory),
		mu:        sync.RWMutex{},
	}
}

// NewDefaultRegistry creates a registry holding every built-in calculation function.
func NewDefaultRegistry() IndicatorRegistry {
	registry := NewIndicatorRegistry()

	builtins := map[types.IndicatorType]Factory{
		types.IndicatorTypeSum:                   NewSum,
		types.IndicatorTypeDifference:            NewDifference,
		types.IndicatorTypeProduct:               NewProduct,
		types.IndicatorTypeRatio:                 NewRatio,
		types.IndicatorTypeLogRatio:              NewLogRatio,
		types.IndicatorTypeMean:                  NewMean,
		types.IndicatorTypeSpreadPct:             NewSpreadPct,
		types.IndicatorTypeHistoricalVolatility:  NewHistoricalVolatility,
		types.IndicatorTypeParkinsonVolatility:   NewParkinsonVolatility,
		types.IndicatorTypeGarmanKlassVolatility: NewGarmanKlassVolatility,
	}

	for name, factory := range builtins {
		// names are unique in the literal above
		_ = registry.RegisterIndicator(name, factory)
	}

	return registry
}

// RegisterIndicator adds a calculation function to the registry.
func (r *IndicatorRegistryV1) RegisterIndicator(name types.IndicatorType, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory == nil {
		return fmt.Errorf("RegisterIndicator: indicator %s has no factory", name)
	}

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("RegisterIndicator: indicator with name %s already registered", name)
	}

	r.factories[name] = factory

	return nil
}

// GetIndicator builds a new instance of the named calculation function.
func (r *IndicatorRegistryV1) GetIndicator(name types.IndicatorType) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "GetIndicator: indicator with name %s not found", name)
	}

	return factory(), nil
}

// HasIndicator reports whether name is registered.
func (r *IndicatorRegistryV1) HasIndicator(name types.IndicatorType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]

	return exists
}

// ListIndicators returns the registered names in sorted order.
func (r *IndicatorRegistryV1) ListIndicators() []types.IndicatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]types.IndicatorType, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// RemoveIndicator removes a calculation function from the registry.
func (r *IndicatorRegistryV1) RemoveIndicator(name types.IndicatorType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "RemoveIndicator: indicator with name %s not found", name)
	}

	delete(r.factories, name)

	return nil
}
