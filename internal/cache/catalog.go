package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// ScopeAll selects every active instrument of the catalog.
const ScopeAll = "all"

// SyncCalendar replaces the persisted trading calendar with days and makes it the calendar
// of the store.
func (s *Store) SyncCalendar(ctx context.Context, days []types.TradingDay) error {
	cal := calendar.New(days)
	if cal.Len() == 0 {
		return errors.New(errors.ErrCodeCalendarEmpty, "refusing to store a calendar without trading days")
	}

	err := s.inTx(ctx, func(tx squirrel.BaseRunner) error {
		if _, err := s.sq.Delete("trading_calendar").RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}

		insert := s.sq.Insert("trading_calendar").Columns("trade_date", "is_open")
		for _, chunk := range lo.Chunk(days, 500) {
			q := insert
			for _, day := range chunk {
				q = q.Values(squirrel.Expr("CAST(? AS DATE)", types.Day(day.Date)), day.IsOpen)
			}

			if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to store trading calendar", err)
	}

	s.calendar = cal
	s.log.Info("trading calendar stored", zap.Int("days", len(days)), zap.Int("open", cal.Len()))

	return nil
}

// LoadCalendar reads the persisted trading calendar and makes it the calendar of the store.
func (s *Store) LoadCalendar(ctx context.Context) (*calendar.Calendar, error) {
	rows, err := s.sq.Select("trade_date").
		From("trading_calendar").
		Where(squirrel.Eq{"is_open": true}).
		OrderBy("trade_date").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to read trading calendar", err)
	}
	defer rows.Close()

	var days []time.Time

	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to scan trading day", err)
		}

		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to read trading calendar", err)
	}

	if len(days) == 0 {
		return nil, errors.New(errors.ErrCodeCalendarEmpty, "trading calendar is empty, run calendar sync first")
	}

	s.calendar = calendar.FromDays(days)

	return s.calendar, nil
}

// SyncInstruments refreshes the instrument catalog from the provider and returns the number
// of instruments stored.
func (s *Store) SyncInstruments(ctx context.Context) (int, error) {
	instruments, err := s.provider.Instruments(ctx)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to list instruments from %s", s.provider.Name())
	}

	if err := s.SaveInstruments(ctx, instruments); err != nil {
		return 0, err
	}

	s.log.Info("instrument catalog refreshed", zap.String("provider", s.provider.Name()), zap.Int("instruments", len(instruments)))

	return len(instruments), nil
}

// SaveInstruments replaces the instrument catalog.
func (s *Store) SaveInstruments(ctx context.Context, instruments []types.Instrument) error {
	instruments = lo.UniqBy(instruments, func(i types.Instrument) string { return i.Symbol })

	err := s.inTx(ctx, func(tx squirrel.BaseRunner) error {
		if _, err := s.sq.Delete("instrument_catalog").RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}

		for _, chunk := range lo.Chunk(instruments, 500) {
			q := s.sq.Insert("instrument_catalog").Columns("symbol", "name", "market", "active")
			for _, instrument := range chunk {
				q = q.Values(instrument.Symbol, instrument.Name, instrument.Market, instrument.Active)
			}

			if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to store instrument catalog", err)
	}

	return nil
}

// Catalog returns every instrument of the catalog ordered by symbol.
func (s *Store) Catalog(ctx context.Context) ([]types.Instrument, error) {
	rows, err := s.sq.Select("symbol", "name", "market", "active").
		From("instrument_catalog").
		OrderBy("symbol").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to read instrument catalog", err)
	}
	defer rows.Close()

	var instruments []types.Instrument

	for rows.Next() {
		var instrument types.Instrument
		if err := rows.Scan(&instrument.Symbol, &instrument.Name, &instrument.Market, &instrument.Active); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to scan instrument", err)
		}

		instruments = append(instruments, instrument)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to read instrument catalog", err)
	}

	return instruments, nil
}

// Instruments resolves a strategy scope to symbols: "all" or empty selects every active
// instrument, a market code selects the active instruments of that market, anything else is
// a comma separated symbol list that must exist in the catalog.
func (s *Store) Instruments(ctx context.Context, scope string) ([]string, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	if len(catalog) == 0 {
		return nil, errors.New(errors.ErrCodeInstrumentNotFound, "instrument catalog is empty, run instruments sync first")
	}

	return ResolveScope(catalog, scope)
}

// ResolveScope applies a scope to an instrument catalog.
func ResolveScope(catalog []types.Instrument, scope string) ([]string, error) {
	scope = strings.TrimSpace(scope)
	active := lo.Filter(catalog, func(i types.Instrument, _ int) bool { return i.Active })

	if scope == "" || strings.EqualFold(scope, ScopeAll) {
		return sortedSymbols(active), nil
	}

	market := lo.Filter(active, func(i types.Instrument, _ int) bool { return strings.EqualFold(i.Market, scope) })
	if len(market) > 0 {
		return sortedSymbols(market), nil
	}

	known := lo.SliceToMap(catalog, func(i types.Instrument) (string, bool) { return i.Symbol, true })
	symbols := lo.Uniq(lo.Compact(lo.Map(strings.Split(scope, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))

	missing := lo.Reject(symbols, func(symbol string, _ int) bool { return known[symbol] })
	if len(missing) > 0 {
		return nil, errors.Newf(errors.ErrCodeInstrumentNotFound, "unknown instruments in scope %q: %s", scope, strings.Join(missing, ", "))
	}

	return symbols, nil
}

func sortedSymbols(instruments []types.Instrument) []string {
	symbols := lo.Map(instruments, func(i types.Instrument, _ int) string { return i.Symbol })
	slices.Sort(symbols)

	return symbols
}

func (s *Store) inTx(ctx context.Context, fn func(tx squirrel.BaseRunner) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck // the original error matters

		return err
	}

	return tx.Commit()
}
