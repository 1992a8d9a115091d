package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/marketdata/provider"
)

// FetchCall records one Fetch request served by SyntheticProvider.
type FetchCall struct {
	Group       types.FieldGroup
	Instruments []string
	Start       time.Time
	End         time.Time
}

// SyntheticProvider is an in-memory provider.Provider serving generated bars for a fixed set
// of trading days. It records every call so tests can count remote round trips.
type SyntheticProvider struct {
	Seed   int64
	Config GeneratorConfig
	// Days the provider has data for
	Days []time.Time
	// Catalog is returned by Instruments
	Catalog []types.Instrument
	// Drop removes this many trailing rows per symbol from every response
	Drop map[string]int
	// Err is returned by every Fetch when set
	Err error

	mu    sync.Mutex
	calls []FetchCall
}

var _ provider.Provider = (*SyntheticProvider)(nil)

// NewSyntheticProvider serves bars for days generated from seed.
func NewSyntheticProvider(seed int64, days []time.Time) *SyntheticProvider {
	return &SyntheticProvider{
		Seed:    seed,
		Config:  DefaultConfig(),
		Days:    days,
		Catalog: nil,
		Drop:    map[string]int{},
		Err:     nil,
		mu:      sync.Mutex{},
		calls:   nil,
	}
}

func (p *SyntheticProvider) Name() string {
	return "synthetic"
}

// Bars returns the full generated series of symbol.
func (p *SyntheticProvider) Bars(symbol string) []Bar {
	config := p.Config
	config.Days = p.Days

	return GenerateSymbol(p.Seed, symbol, config)
}

func (p *SyntheticProvider) Fetch(_ context.Context, group types.FieldGroup, instruments []string, start, end time.Time) ([]types.Record, error) {
	p.mu.Lock()
	p.calls = append(p.calls, FetchCall{
		Group:       group,
		Instruments: append([]string(nil), instruments...),
		Start:       start,
		End:         end,
	})
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}

	window := types.NewDateRange(start, end)
	records := make([]types.Record, 0)

	for _, symbol := range instruments {
		symbolRecords := make([]types.Record, 0)

		for _, bar := range p.Bars(symbol) {
			if window.Contains(bar.Date) {
				symbolRecords = append(symbolRecords, bar.Record(group))
			}
		}

		drop := min(p.Drop[symbol], len(symbolRecords))
		records = append(records, symbolRecords[:len(symbolRecords)-drop]...)
	}

	return records, nil
}

func (p *SyntheticProvider) Instruments(_ context.Context) ([]types.Instrument, error) {
	return p.Catalog, nil
}

// Calls returns the Fetch requests served so far.
func (p *SyntheticProvider) Calls() []FetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]FetchCall(nil), p.calls...)
}

// CallCount is the number of Fetch requests served so far.
func (p *SyntheticProvider) CallCount() int {
	return len(p.Calls())
}
