package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// Provider is the remote source of raw daily series. It returns rows for the requested
// instruments between start and end inclusive. It does not enforce the row count contract:
// callers compare what came back against what the trading calendar expects.
type Provider interface {
	// Name identifies the provider in logs and manifests.
	Name() string
	// Fetch returns every row of group for instruments on the days in [start, end].
	// Each record carries all columns of the group.
	// example:
	// Fetch(ctx, types.FieldGroupDaily, []string{"AAPL", "MSFT"}, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 8, 30, 0, 0, 0, 0, time.UTC))
	Fetch(ctx context.Context, group types.FieldGroup, instruments []string, start, end time.Time) ([]types.Record, error)
	// Instruments lists the tradable instruments the provider knows about.
	Instruments(ctx context.Context) ([]types.Instrument, error)
}

// Config carries the provider specific settings.
type Config struct {
	APIKey string
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(providerType ProviderType, config Config) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceClient()
	case ProviderPolygon:
		return NewPolygonClient(config.APIKey)
	default:
		return nil, fmt.Errorf("unsupported market data provider: %s", providerType)
	}
}

// recordSet collects rows keyed by (symbol, day) so duplicated bars and bars outside
// the requested window never reach the caller.
type recordSet struct {
	start   time.Time
	end     time.Time
	records map[string]map[time.Time]types.Record
}

func newRecordSet(start, end time.Time) *recordSet {
	return &recordSet{
		start:   types.Day(start),
		end:     types.Day(end),
		records: make(map[string]map[time.Time]types.Record),
	}
}

func (s *recordSet) add(symbol string, ts time.Time, fields map[string]float64) {
	day := types.Day(ts)
	if day.Before(s.start) || day.After(s.end) {
		return
	}

	bySymbol, ok := s.records[symbol]
	if !ok {
		bySymbol = make(map[time.Time]types.Record)
		s.records[symbol] = bySymbol
	}

	bySymbol[day] = types.Record{Symbol: symbol, Date: day, Fields: fields}
}

// list returns the collected rows ordered by symbol then date.
func (s *recordSet) list() []types.Record {
	out := make([]types.Record, 0)
	for _, bySymbol := range s.records {
		for _, record := range bySymbol {
			out = append(out, record)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}

		return out[i].Date.Before(out[j].Date)
	})

	return out
}

// barFields maps one OHLCV bar onto the columns of group.
func barFields(group types.FieldGroup, open, high, low, closePrice, volume, vwap float64, transactions int64) (map[string]float64, error) {
	switch group {
	case types.FieldGroupDaily, types.FieldGroupIndexDaily:
		return map[string]float64{
			"open":   open,
			"high":   high,
			"low":    low,
			"close":  closePrice,
			"volume": volume,
		}, nil
	case types.FieldGroupDailyBasic:
		return map[string]float64{
			"vwap":         vwap,
			"transactions": float64(transactions),
			"amount":       vwap * volume,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported field group: %s", group)
	}
}
