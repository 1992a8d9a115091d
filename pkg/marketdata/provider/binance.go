package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

const (
	// binanceDailyInterval is the kline interval for daily bars.
	binanceDailyInterval = "1d"
	// binancePageSize is the maximum number of klines binance returns per request.
	binancePageSize = 1000
)

// BinanceKlinesService is the chained kline request builder.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient is the part of the binance client the provider needs.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
	ExchangeSymbols(ctx context.Context) ([]binance.Symbol, error)
}

type binanceClientAdapter struct {
	client *binance.Client
}

func (a *binanceClientAdapter) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesServiceAdapter{service: a.client.NewKlinesService()}
}

func (a *binanceClientAdapter) ExchangeSymbols(ctx context.Context) ([]binance.Symbol, error) {
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}

	return info.Symbols, nil
}

type binanceKlinesServiceAdapter struct {
	service *binance.KlinesService
}

func (s *binanceKlinesServiceAdapter) Symbol(symbol string) BinanceKlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *binanceKlinesServiceAdapter) Interval(interval string) BinanceKlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *binanceKlinesServiceAdapter) StartTime(startTime int64) BinanceKlinesService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *binanceKlinesServiceAdapter) EndTime(endTime int64) BinanceKlinesService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *binanceKlinesServiceAdapter) Limit(limit int) BinanceKlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *binanceKlinesServiceAdapter) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type BinanceClient struct {
	apiClient BinanceAPIClient
}

func NewBinanceClient() (Provider, error) {
	return NewBinanceClientWithAPI(&binanceClientAdapter{client: binance.NewClient("", "")}), nil
}

// NewBinanceClientWithAPI builds a client around an existing API implementation.
func NewBinanceClientWithAPI(apiClient BinanceAPIClient) *BinanceClient {
	return &BinanceClient{apiClient: apiClient}
}

func (c *BinanceClient) Name() string {
	return string(ProviderBinance)
}

// Fetch pages daily klines for every instrument of the batch. Binance has no index
// series, so index_daily is served from the benchmark pair's klines.
func (c *BinanceClient) Fetch(ctx context.Context, group types.FieldGroup, instruments []string, start, end time.Time) ([]types.Record, error) {
	set := newRecordSet(start, end)

	// Binance API uses milliseconds for timestamps
	startTimeMillis := types.Day(start).UnixMilli()
	endTimeMillis := types.Day(end).Add(24*time.Hour).UnixMilli() - 1

	for _, symbol := range instruments {
		currentStartTime := startTimeMillis

		for {
			klines, err := c.apiClient.NewKlinesService().
				Symbol(symbol).
				Interval(binanceDailyInterval).
				StartTime(currentStartTime).
				EndTime(endTimeMillis).
				Limit(binancePageSize).
				Do(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch klines for %s from Binance: %w", symbol, err)
			}

			if err := processKlines(set, group, symbol, klines); err != nil {
				return nil, fmt.Errorf("failed to process klines for %s: %w", symbol, err)
			}

			// Break conditions: no data or a short page (last page)
			if len(klines) < binancePageSize {
				break
			}

			// Use the close time of the last kline + 1ms to avoid duplicates
			currentStartTime = klines[len(klines)-1].CloseTime + 1
			if currentStartTime >= endTimeMillis {
				break
			}
		}
	}

	return set.list(), nil
}

// Instruments lists the pairs currently trading on the exchange.
func (c *BinanceClient) Instruments(ctx context.Context) ([]types.Instrument, error) {
	symbols, err := c.apiClient.ExchangeSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange info from Binance: %w", err)
	}

	instruments := make([]types.Instrument, 0, len(symbols))
	for _, symbol := range symbols {
		instruments = append(instruments, types.Instrument{
			Symbol: symbol.Symbol,
			Name:   symbol.BaseAsset + "/" + symbol.QuoteAsset,
			Market: "crypto",
			Active: symbol.Status == "TRADING",
		})
	}

	return instruments, nil
}

// processKlines converts Binance klines into records of group.
func processKlines(set *recordSet, group types.FieldGroup, symbol string, klines []*binance.Kline) error {
	for _, k := range klines {
		values, err := parseKlineValues(k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteAssetVolume)
		if err != nil {
			return err
		}

		open, high, low, closePrice, volume, quoteVolume := values[0], values[1], values[2], values[3], values[4], values[5]

		vwap := 0.0
		if volume > 0 {
			vwap = quoteVolume / volume
		}

		fields, err := barFields(group, open, high, low, closePrice, volume, vwap, k.TradeNum)
		if err != nil {
			return err
		}

		// Using OpenTime as the timestamp for the bar
		set.add(symbol, time.UnixMilli(k.OpenTime).UTC(), fields)
	}

	return nil
}

func parseKlineValues(raw ...string) ([]float64, error) {
	values := make([]float64, len(raw))

	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid kline value %q: %w", s, err)
		}

		values[i] = v
	}

	return values, nil
}
