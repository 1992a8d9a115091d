// Package pipeline runs one feature preparation: it resolves a strategy into a dependency
// graph, evaluates it against the market data cache and writes the feature table.
package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dataprep/internal/cache"
	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/engine"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/indicator"
	"github.com/rxtech-lab/argo-dataprep/internal/logger"
	"github.com/rxtech-lab/argo-dataprep/internal/metadata"
	"github.com/rxtech-lab/argo-dataprep/internal/metrics"
	"github.com/rxtech-lab/argo-dataprep/internal/output"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
	"github.com/rxtech-lab/argo-dataprep/pkg/marketdata/provider"
)

// Options overrides the components a Pipeline would otherwise build from its Config.
type Options struct {
	Provider   provider.Provider
	Repository metadata.Repository
	Registry   indicator.IndicatorRegistry
	Logger     *logger.Logger
	// Registerer receives the prometheus collectors. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	OnProgress cache.ProgressFunc
}

// StrategyRef names a stored strategy.
type StrategyRef struct {
	Owner string
	Name  string
}

func (r StrategyRef) String() string {
	return r.Owner + "/" + r.Name
}

// Request is an ad-hoc list of params to prepare without a stored strategy.
type Request struct {
	Owner     string
	Params    []types.Ref
	Scope     string
	Benchmark string
}

// Output is what one preparation produced.
type Output struct {
	Table        *output.Table
	Manifest     output.Manifest
	TablePath    string
	ManifestPath string
	Failures     *engine.CellFailures
}

// Pipeline wires the cache, metadata and evaluation components of one process.
type Pipeline struct {
	config   Config
	format   output.Format
	store    *cache.Store
	repo     metadata.Repository
	registry indicator.IndicatorRegistry
	log      *logger.Logger
	metrics  *metrics.Metrics
	closers  []io.Closer
}

// New builds a pipeline. Components missing from opts are created from config.
func New(config Config, opts Options) (_ *Pipeline, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	format, err := output.ParseFormat(config.OutputFormat)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		if log, err = logger.NewLoggerWithLevel(config.LogLevel); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
		}
	}

	m, err := metrics.NewMetrics(opts.Registerer)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to register metrics", err)
	}

	p := &Pipeline{
		config:   config,
		format:   format,
		registry: opts.Registry,
		log:      log.Named("pipeline"),
		metrics:  m,
	}

	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	if p.registry == nil {
		p.registry = indicator.NewDefaultRegistry()
	}

	p.repo = opts.Repository
	if p.repo == nil {
		if p.repo, err = p.openRepository(); err != nil {
			return nil, err
		}
	}

	source := opts.Provider
	if source == nil {
		source, err = provider.NewMarketDataProvider(provider.ProviderType(config.Provider.Type), provider.Config{APIKey: config.Provider.APIKey})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidProvider, "failed to create market data provider", err)
		}
	}

	p.store, err = cache.Open(config.CachePath, source, nil, cache.Options{
		RowLimit:          config.Provider.RowLimit,
		RequestsPerSecond: config.Provider.RequestsPerSecond,
		BatchDelay:        config.Provider.BatchDelay,
		Logger:            log,
		Metrics:           m,
		OnProgress:        opts.OnProgress,
	})
	if err != nil {
		return nil, err
	}

	p.closers = append(p.closers, p.store)

	return p, nil
}

func (p *Pipeline) openRepository() (metadata.Repository, error) {
	switch p.config.Metadata.Type {
	case "yaml":
		return metadata.NewYAMLRepository(p.config.Metadata.Path)
	case "duckdb":
		repo, err := metadata.OpenDuckDBRepository(p.config.Metadata.Path)
		if err != nil {
			return nil, err
		}

		p.closers = append(p.closers, repo)

		return repo, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported metadata type %q", p.config.Metadata.Type)
	}
}

// Close releases the cache and metadata databases.
func (p *Pipeline) Close() error {
	var errs []error

	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	p.closers = nil

	return errors.Join(errs...)
}

// Store exposes the market data cache.
func (p *Pipeline) Store() *cache.Store {
	return p.store
}

// Metrics exposes the collectors of this pipeline.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// SyncCalendar regenerates the configured trading calendar into the cache and returns the
// number of open days.
func (p *Pipeline) SyncCalendar(ctx context.Context) (int, error) {
	days, err := p.config.TradingDays()
	if err != nil {
		return 0, err
	}

	if err := p.store.SyncCalendar(ctx, days); err != nil {
		return 0, err
	}

	cal := p.store.Calendar()

	first, err := cal.First()
	if err != nil {
		return 0, err
	}

	last, err := cal.Last()
	if err != nil {
		return 0, err
	}

	open := cal.Len()
	p.log.Info("trading calendar synced",
		zap.Int("open_days", open),
		zap.String("first", first.Format(types.DateLayout)),
		zap.String("last", last.Format(types.DateLayout)),
		zap.String("provider", p.config.Provider.Type),
	)

	return open, nil
}

// SyncInstruments refreshes the instrument catalog from the provider.
func (p *Pipeline) SyncInstruments(ctx context.Context) (int, error) {
	return p.store.SyncInstruments(ctx)
}

// Prepare builds the feature table of a stored strategy for [start, end].
func (p *Pipeline) Prepare(ctx context.Context, ref StrategyRef, start, end time.Time) (*Output, error) {
	run := metadata.NewRunContext(p.repo)

	strategy, err := run.GetStrategy(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, err
	}

	return p.prepare(ctx, run, ref.String(), Request{
		Owner:     ref.Owner,
		Params:    strategy.Params,
		Scope:     strategy.Scope,
		Benchmark: strategy.Benchmark,
	}, start, end)
}

// PrepareParams builds the feature table of an ad-hoc param list for [start, end].
func (p *Pipeline) PrepareParams(ctx context.Context, req Request, start, end time.Time) (*Output, error) {
	return p.prepare(ctx, metadata.NewRunContext(p.repo), "", req, start, end)
}

func (p *Pipeline) prepare(ctx context.Context, run *metadata.RunContext, label string, req Request, start, end time.Time) (*Output, error) {
	began := time.Now()

	cal, err := p.calendar(ctx)
	if err != nil {
		return nil, err
	}

	universe, err := p.universe(ctx, req.Scope)
	if err != nil {
		return nil, err
	}

	builder := graph.NewBuilder(run, cal, p.registry, graph.Options{
		MaxPredictChain: p.config.MaxPredictChain,
		Logger:          p.log,
	})

	g, err := builder.Resolve(ctx, req.Owner, req.Params, start, end)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngine(p.store, cal, p.registry, engine.Options{Logger: p.log, Metrics: p.metrics})

	result, err := eng.Evaluate(ctx, g, universe, req.Benchmark)
	if err != nil {
		return nil, err
	}

	table, err := output.Materialize(result, g, cal, universe)
	if err != nil {
		return nil, err
	}

	tablePath, err := output.NewWriter(p.config.OutputDir, p.format, p.log).WriteTable(ctx, table)
	if err != nil {
		return nil, err
	}

	manifest := output.NewManifest(label, table, g, universe, result.Failures)
	manifest.File = filepath.Base(tablePath)

	manifestPath, err := output.WriteManifest(p.config.OutputDir, manifest)
	if err != nil {
		return nil, err
	}

	p.log.Info("features prepared",
		zap.String("strategy", label),
		zap.String("run_id", manifest.RunID),
		zap.Stringer("window", g.Window),
		zap.Int("instruments", len(universe)),
		zap.Int("rows", len(table.Rows)),
		zap.Int("nodes", len(g.Order)),
		zap.Int("cell_failures", result.Failures.Total()),
		zap.String("path", tablePath),
		zap.Duration("elapsed", time.Since(began)),
	)

	return &Output{
		Table:        table,
		Manifest:     manifest,
		TablePath:    tablePath,
		ManifestPath: manifestPath,
		Failures:     result.Failures,
	}, nil
}

// calendar loads the stored calendar, generating it from config on first use.
func (p *Pipeline) calendar(ctx context.Context) (*calendar.Calendar, error) {
	cal, err := p.store.LoadCalendar(ctx)
	if err == nil {
		return cal, nil
	}

	if !errors.HasCode(err, errors.ErrCodeCalendarEmpty) {
		return nil, err
	}

	p.log.Info("no stored trading calendar, generating from config")

	if _, err := p.SyncCalendar(ctx); err != nil {
		return nil, err
	}

	return p.store.Calendar(), nil
}

// universe resolves scope against the stored catalog, fetching the catalog on first use.
func (p *Pipeline) universe(ctx context.Context, scope string) ([]string, error) {
	catalog, err := p.store.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	if len(catalog) == 0 {
		p.log.Info("no stored instrument catalog, fetching from provider")

		if _, err := p.SyncInstruments(ctx); err != nil {
			return nil, err
		}
	}

	return p.store.Instruments(ctx, scope)
}
