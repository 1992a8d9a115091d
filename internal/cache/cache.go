// Package cache persists upstream market data in a local DuckDB file and refills it from the
// remote provider one batch of instruments at a time.
//
// A batch is either complete for the requested trading days or refetched as a whole. A
// refill replaces the batch's rows inside one transaction, so a failed or short fetch never
// leaves a partially written batch behind.
//
// A Store is not safe for concurrent preparation runs.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/logger"
	"github.com/rxtech-lab/argo-dataprep/internal/metrics"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
	"github.com/rxtech-lab/argo-dataprep/pkg/marketdata/provider"
)

// DefaultRowLimit is the number of rows a single provider call may return.
const DefaultRowLimit = 5000

// Progress describes one processed cache batch.
type Progress struct {
	Group       types.FieldGroup
	Batch       int
	Batches     int
	Instruments int
	Hit         bool
}

// ProgressFunc is called after every batch of a Get.
type ProgressFunc func(Progress)

// Options tunes batching, rate limiting and instrumentation.
type Options struct {
	// RowLimit caps the rows requested per provider call. Zero means DefaultRowLimit.
	RowLimit int
	// RequestsPerSecond limits provider calls. Zero disables the limit.
	RequestsPerSecond float64
	// BatchDelay is the minimum pause between provider calls. The stricter of the two wins.
	BatchDelay time.Duration
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	OnProgress ProgressFunc
}

// Store is the persisted market data cache.
type Store struct {
	db       *sql.DB
	sq       squirrel.StatementBuilderType
	provider provider.Provider
	calendar *calendar.Calendar
	limiter  *rate.Limiter
	rowLimit int
	log      *logger.Logger
	metrics  *metrics.Metrics
	progress ProgressFunc
}

// Open opens (or creates) the cache at path; an empty path keeps it in memory. cal may be
// nil and set later with SetCalendar or LoadCalendar.
func Open(path string, p provider.Provider, cal *calendar.Calendar, opts Options) (*Store, error) {
	if p == nil {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "market data provider is required")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to open cache database", err)
	}

	for _, stmt := range schema() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()

			return nil, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to create cache tables", err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewNopMetrics()
	}

	rowLimit := opts.RowLimit
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	return &Store{
		db:       db,
		sq:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		provider: p,
		calendar: cal,
		limiter:  newLimiter(opts.RequestsPerSecond, opts.BatchDelay),
		rowLimit: rowLimit,
		log:      log.Named("cache"),
		metrics:  m,
		progress: opts.OnProgress,
	}, nil
}

func newLimiter(rps float64, delay time.Duration) *rate.Limiter {
	limit := rate.Inf

	if rps > 0 {
		limit = rate.Limit(rps)
	}

	if delay > 0 && rate.Every(delay) < limit {
		limit = rate.Every(delay)
	}

	return rate.NewLimiter(limit, 1)
}

// schema returns the statements creating every cache table. Rows are keyed by
// (symbol, trade_date) through the delete-then-insert refill, not a PRIMARY KEY: DuckDB
// rejects re-inserting a key deleted earlier in the same transaction.
func schema() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trading_calendar (
			trade_date DATE,
			is_open BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS instrument_catalog (
			symbol TEXT,
			name TEXT,
			market TEXT,
			active BOOLEAN
		)`,
	}

	for _, group := range types.FieldGroups() {
		columns := lo.Map(group.Columns(), func(c string, _ int) string { return c + " DOUBLE" })
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (symbol TEXT, trade_date DATE, %s)",
			group, strings.Join(columns, ", "),
		))
	}

	return stmts
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetCalendar replaces the calendar used to count expected rows.
func (s *Store) SetCalendar(cal *calendar.Calendar) {
	s.calendar = cal
}

// Calendar returns the calendar in use, nil if none was set or loaded.
func (s *Store) Calendar() *calendar.Calendar {
	return s.calendar
}

// OnProgress replaces the batch progress callback.
func (s *Store) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// Get returns the requested fields of group for every instrument and trading day in
// [start, end], fetching incomplete batches from the provider first. An empty fields list
// returns every column of the group. Records are ordered by symbol and date; missing values
// are NaN.
func (s *Store) Get(ctx context.Context, group types.FieldGroup, fields []string, instruments []string, start, end time.Time) ([]types.Record, error) {
	if _, err := types.ParseFieldGroup(string(group)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid field group", err)
	}

	if len(fields) == 0 {
		fields = group.Columns()
	}

	for _, field := range fields {
		if !group.HasField(field) {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "field %s is not a column of %s", field, group)
		}
	}

	instruments = lo.Uniq(instruments)
	if len(instruments) == 0 {
		return []types.Record{}, nil
	}

	if s.calendar == nil || s.calendar.Len() == 0 {
		return nil, errors.New(errors.ErrCodeCalendarEmpty, "no trading calendar loaded")
	}

	window, err := s.calendar.Normalize(types.NewDateRange(start, end))
	if err != nil {
		return nil, err
	}

	days := s.calendar.Days(window)
	batches := lo.Chunk(instruments, max(1, s.rowLimit/len(days)))

	for i, batch := range batches {
		hit, err := s.ensureBatch(ctx, group, batch, window, days)
		if err != nil {
			return nil, err
		}

		if s.progress != nil {
			s.progress(Progress{
				Group:       group,
				Batch:       i + 1,
				Batches:     len(batches),
				Instruments: len(batch),
				Hit:         hit,
			})
		}
	}

	return s.read(ctx, group, fields, instruments, window, days)
}

// ensureBatch makes sure the cache holds one row per instrument of batch and day of days. It
// reports whether the batch was already complete.
func (s *Store) ensureBatch(ctx context.Context, group types.FieldGroup, batch []string, window types.DateRange, days []time.Time) (bool, error) {
	expected := len(batch) * len(days)

	actual, err := s.count(ctx, group, batch, window)
	if err != nil {
		return false, err
	}

	if actual == expected {
		s.metrics.CacheBatches.WithLabelValues(string(group), "hit").Inc()
		s.log.Debug("cache hit",
			zap.String("group", string(group)),
			zap.Int("instruments", len(batch)),
			zap.String("range", window.String()),
		)

		return true, nil
	}

	s.metrics.CacheBatches.WithLabelValues(string(group), "miss").Inc()

	if err := s.limiter.Wait(ctx); err != nil {
		return false, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "rate limiter wait aborted", err)
	}

	s.log.Info("fetching market data",
		zap.String("provider", s.provider.Name()),
		zap.String("group", string(group)),
		zap.Strings("instruments", batch),
		zap.String("range", window.String()),
		zap.Int("cached", actual),
		zap.Int("expected", expected),
	)
	s.metrics.RemoteFetches.WithLabelValues(string(group)).Inc()

	records, err := s.provider.Fetch(ctx, group, batch, window.Min, window.Max)
	if err != nil {
		return false, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s from %s", group, s.provider.Name())
	}

	records, err = completeBatch(records, batch, days)
	if err != nil {
		return false, errors.Wrapf(errors.ErrCodeIncompleteUpstreamData, err, "%s %s", group, window)
	}

	if err := s.replace(ctx, group, batch, window, records); err != nil {
		return false, err
	}

	return false, nil
}

// completeBatch checks that the provider returned exactly one row for every (instrument, day)
// of the batch and nothing else.
func completeBatch(records []types.Record, batch []string, days []time.Time) ([]types.Record, error) {
	expected := len(batch) * len(days)
	if len(records) != expected {
		return nil, fmt.Errorf("provider returned %d rows, expected %d", len(records), expected)
	}

	wanted := lo.SliceToMap(batch, func(symbol string) (string, bool) { return symbol, true })
	open := lo.SliceToMap(days, func(d time.Time) (time.Time, bool) { return d, true })
	seen := make(map[string]bool, expected)
	kept := make([]types.Record, 0, expected)

	for _, record := range records {
		day := types.Day(record.Date)

		if !wanted[record.Symbol] {
			return nil, fmt.Errorf("unexpected instrument %s", record.Symbol)
		}

		if !open[day] {
			return nil, fmt.Errorf("row for %s on %s is not a trading day", record.Symbol, day.Format(types.DateLayout))
		}

		k := record.Symbol + "|" + day.Format(types.DateLayout)
		if seen[k] {
			return nil, fmt.Errorf("duplicate row for %s on %s", record.Symbol, day.Format(types.DateLayout))
		}

		seen[k] = true
		record.Date = day
		kept = append(kept, record)
	}

	return kept, nil
}

func (s *Store) count(ctx context.Context, group types.FieldGroup, batch []string, window types.DateRange) (int, error) {
	var n int

	err := s.sq.Select("COUNT(*)").
		From(string(group)).
		Where(squirrel.Eq{"symbol": batch}).
		Where("trade_date BETWEEN CAST(? AS DATE) AND CAST(? AS DATE)", window.Min, window.Max).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to count cached %s rows", group)
	}

	return n, nil
}

// replace swaps the batch's rows in window for records in one transaction.
func (s *Store) replace(ctx context.Context, group types.FieldGroup, batch []string, window types.DateRange, records []types.Record) error {
	columns := group.Columns()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to begin cache transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = s.sq.Delete(string(group)).
		Where(squirrel.Eq{"symbol": batch}).
		Where("trade_date BETWEEN CAST(? AS DATE) AND CAST(? AS DATE)", window.Min, window.Max).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "failed to clear cached %s rows", group)
	}

	placeholders := strings.Repeat(", ?", len(columns))
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (symbol, trade_date, %s) VALUES (?, CAST(? AS DATE)%s)",
		group, strings.Join(columns, ", "), placeholders,
	))
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to prepare cache insert", err)
	}
	defer stmt.Close()

	for _, record := range records {
		args := make([]any, 0, len(columns)+2)
		args = append(args, record.Symbol, record.Date)

		for _, column := range columns {
			args = append(args, nullable(record.Fields, column))
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "failed to insert %s row for %s", group, record.Symbol)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to commit cache refill", err)
	}

	return nil
}

func nullable(fields map[string]float64, column string) any {
	v, ok := fields[column]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	return v
}

func (s *Store) read(ctx context.Context, group types.FieldGroup, fields []string, instruments []string, window types.DateRange, days []time.Time) ([]types.Record, error) {
	open := lo.SliceToMap(days, func(d time.Time) (time.Time, bool) { return d, true })

	rows, err := s.sq.Select(append([]string{"symbol", "trade_date"}, fields...)...).
		From(string(group)).
		Where(squirrel.Eq{"symbol": instruments}).
		Where("trade_date BETWEEN CAST(? AS DATE) AND CAST(? AS DATE)", window.Min, window.Max).
		OrderBy("symbol", "trade_date").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to read cached %s rows", group)
	}
	defer rows.Close()

	records := make([]types.Record, 0, len(instruments)*len(days))
	values := make([]sql.NullFloat64, len(fields))

	for rows.Next() {
		var (
			symbol string
			day    time.Time
		)

		dest := []any{&symbol, &day}
		for i := range values {
			dest = append(dest, &values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to scan cached %s row", group)
		}

		day = types.Day(day)
		if !open[day] {
			continue
		}

		record := types.Record{Symbol: symbol, Date: day, Fields: make(map[string]float64, len(fields))}
		for i, field := range fields {
			record.Fields[field] = math.NaN()
			if values[i].Valid {
				record.Fields[field] = values[i].Float64
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "failed to read cached %s rows", group)
	}

	return records, nil
}
