package metadata

import (
	"context"
)

// RunContext memoises definition lookups for one preparation run. It is created at the start
// of a run, passed to every resolver call and dropped with the run, so nothing is cached
// across runs. It is not safe for concurrent use.
type RunContext struct {
	repo       Repository
	strategies map[string]Strategy
	params     map[string]ParamDef
	indicators map[string]IndicatorDef
	lookups    int
}

// NewRunContext wraps repo with an empty per-run memo.
func NewRunContext(repo Repository) *RunContext {
	return &RunContext{
		repo:       repo,
		strategies: make(map[string]Strategy),
		params:     make(map[string]ParamDef),
		indicators: make(map[string]IndicatorDef),
		lookups:    0,
	}
}

// GetStrategy implements Repository.
func (r *RunContext) GetStrategy(ctx context.Context, owner, name string) (Strategy, error) {
	return memoise(r, r.strategies, key(owner, name), func() (Strategy, error) {
		return r.repo.GetStrategy(ctx, owner, name)
	})
}

// GetParam implements Repository.
func (r *RunContext) GetParam(ctx context.Context, owner, name string) (ParamDef, error) {
	return memoise(r, r.params, key(owner, name), func() (ParamDef, error) {
		return r.repo.GetParam(ctx, owner, name)
	})
}

// GetIndicator implements Repository.
func (r *RunContext) GetIndicator(ctx context.Context, owner, name string) (IndicatorDef, error) {
	return memoise(r, r.indicators, key(owner, name), func() (IndicatorDef, error) {
		return r.repo.GetIndicator(ctx, owner, name)
	})
}

// Lookups is the number of calls that reached the underlying repository.
func (r *RunContext) Lookups() int {
	return r.lookups
}

// memoise returns the cached value for k or loads and caches it. Failures are not cached.
func memoise[T any](r *RunContext, memo map[string]T, k string, load func() (T, error)) (T, error) {
	if value, ok := memo[k]; ok {
		return value, nil
	}

	r.lookups++

	value, err := load()
	if err != nil {
		return value, err
	}

	memo[k] = value

	return value, nil
}
