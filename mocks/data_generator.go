package mocks

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

// DataGenerator generates realistic daily bars for testing.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Bar is one generated trading day of an instrument, carrying every raw column.
type Bar struct {
	Symbol       string
	Date         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	VWAP         float64
	Transactions int64
}

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	// Symbol is the trading symbol (e.g., "AAPL", "SPY")
	Symbol string
	// Days are the trading days to generate a bar for, in order
	Days []time.Time
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical daily volatility)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration without days.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		Days:           nil,
		InitialPrice:   100.0,
		Volatility:     0.02, // 2% per day
		Trend:          0.0,  // neutral
		VolumeBase:     1000000,
		VolumeVariance: 0.3,
	}
}

// Generate creates one bar per configured day.
// The generated data follows a geometric Brownian motion model for realistic price movements.
func (g *DataGenerator) Generate(config GeneratorConfig) []Bar {
	bars := make([]Bar, len(config.Days))
	currentPrice := config.InitialPrice

	for i, day := range config.Days {
		open := currentPrice

		// Using Box-Muller transform for normal distribution
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		// Price change with trend and volatility
		priceChange := config.Volatility * z
		drift := 0.0
		if len(config.Days) > 0 {
			drift = config.Trend / float64(len(config.Days)) // Distribute trend across bars
		}

		closePrice := open * (1 + priceChange + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99 // Prevent negative prices
		}

		// High and low are within the open-close range plus some extension
		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, closePrice) + highExtension
		low := math.Min(open, closePrice) - lowExtension
		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		// Volume with variance
		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars[i] = Bar{
			Symbol:       config.Symbol,
			Date:         types.Day(day),
			Open:         roundToDecimals(open, 4),
			High:         roundToDecimals(high, 4),
			Low:          roundToDecimals(low, 4),
			Close:        roundToDecimals(closePrice, 4),
			Volume:       roundToDecimals(volume, 2),
			VWAP:         roundToDecimals((high+low+closePrice)/3, 4),
			Transactions: int64(volume / 100),
		}

		// Update for next iteration
		currentPrice = closePrice
	}

	return bars
}

// GenerateMultiSymbol generates bars for multiple symbols.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, baseConfig GeneratorConfig) []Bar {
	var all []Bar

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		// Vary initial price and volatility slightly per symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		all = append(all, g.Generate(config)...)
	}

	return all
}

// GenerateSymbol generates the bars of symbol deterministically: the same symbol and seed
// always give the same path, whatever else was generated before.
func GenerateSymbol(seed int64, symbol string, baseConfig GeneratorConfig) []Bar {
	h := fnv.New64a()
	h.Write([]byte(symbol))

	//nolint:gosec // deterministic test data
	gen := NewDataGenerator(seed ^ int64(h.Sum64()))

	config := baseConfig
	config.Symbol = symbol

	return gen.Generate(config)
}

// Record converts the bar into the row of group.
func (b Bar) Record(group types.FieldGroup) types.Record {
	fields := map[string]float64{}

	switch group {
	case types.FieldGroupDaily, types.FieldGroupIndexDaily:
		fields["open"] = b.Open
		fields["high"] = b.High
		fields["low"] = b.Low
		fields["close"] = b.Close
		fields["volume"] = b.Volume
	case types.FieldGroupDailyBasic:
		fields["vwap"] = b.VWAP
		fields["transactions"] = float64(b.Transactions)
		fields["amount"] = b.VWAP * b.Volume
	}

	return types.Record{Symbol: b.Symbol, Date: b.Date, Fields: fields}
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
