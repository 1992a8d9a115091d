package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

func weekdays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	for d := start; len(days) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Days = weekdays(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), 100)

	data := gen.Generate(config)

	if len(data) != 100 {
		t.Errorf("expected 100 data points, got %d", len(data))
	}

	// Verify data is in chronological order
	for i := 1; i < len(data); i++ {
		if !data[i].Date.After(data[i-1].Date) {
			t.Errorf("data not in chronological order at index %d", i)
		}
	}

	for i, d := range data {
		if d.Symbol != config.Symbol {
			t.Errorf("expected symbol %s at index %d, got %s", config.Symbol, i, d.Symbol)
		}

		if d.Open <= 0 || d.High <= 0 || d.Low <= 0 || d.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, d.Open, d.High, d.Low, d.Close)
		}

		if d.High < d.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, d.High, d.Low)
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	// Same seed should produce same results
	config := DefaultConfig()
	config.Days = weekdays(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), 10)

	data1 := NewDataGenerator(42).Generate(config)
	data2 := NewDataGenerator(42).Generate(config)

	for i := range data1 {
		if data1[i].Close != data2[i].Close {
			t.Errorf("data not reproducible at index %d: got %f and %f",
				i, data1[i].Close, data2[i].Close)
		}
	}
}

func TestGenerateSymbol_IndependentOfOrder(t *testing.T) {
	config := DefaultConfig()
	config.Days = weekdays(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), 10)

	aapl := GenerateSymbol(7, "AAPL", config)
	_ = GenerateSymbol(7, "MSFT", config)
	again := GenerateSymbol(7, "AAPL", config)

	for i := range aapl {
		if aapl[i] != again[i] {
			t.Fatalf("bar %d differs between runs", i)
		}
	}

	msft := GenerateSymbol(7, "MSFT", config)
	if msft[0].Close == aapl[0].Close && msft[1].Close == aapl[1].Close {
		t.Error("different symbols produced identical data")
	}
}

func TestGenerateMultiSymbol(t *testing.T) {
	symbols := []string{"AAPL", "GOOG", "MSFT"}
	config := DefaultConfig()
	config.Days = weekdays(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), 20)

	data := NewDataGenerator(42).GenerateMultiSymbol(symbols, config)

	if len(data) != len(symbols)*20 {
		t.Errorf("expected %d data points, got %d", len(symbols)*20, len(data))
	}
}

func TestBarRecord(t *testing.T) {
	bar := Bar{Symbol: "AAPL", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, VWAP: 1.2, Transactions: 3}

	daily := bar.Record(types.FieldGroupDaily)
	if len(daily.Fields) != 5 || daily.Fields["close"] != 1.5 {
		t.Errorf("unexpected daily record %+v", daily)
	}

	basic := bar.Record(types.FieldGroupDailyBasic)
	if basic.Fields["amount"] != 12 || basic.Fields["transactions"] != 3 {
		t.Errorf("unexpected daily_basic record %+v", basic)
	}
}

func TestSyntheticProvider(t *testing.T) {
	days := weekdays(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), 10)
	p := NewSyntheticProvider(1, days)
	p.Drop["MSFT"] = 2

	records, err := p.Fetch(context.Background(), types.FieldGroupDaily, []string{"AAPL", "MSFT"}, days[0], days[4])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// five days for AAPL, three for MSFT
	if len(records) != 8 {
		t.Errorf("expected 8 records, got %d", len(records))
	}

	if p.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", p.CallCount())
	}

	p.Err = errors.New("offline")
	if _, err := p.Fetch(context.Background(), types.FieldGroupDaily, []string{"AAPL"}, days[0], days[0]); err == nil {
		t.Error("expected error")
	}

	if p.CallCount() != 2 {
		t.Errorf("expected 2 calls, got %d", p.CallCount())
	}
}
