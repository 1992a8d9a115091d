package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
)

// polygonIndexPrefix is how polygon distinguishes index tickers from equities.
const polygonIndexPrefix = "I:"

// PolygonAggsIterator is the subset of the polygon iterator used to page aggregates.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonTickersIterator is the subset of the polygon iterator used to page tickers.
type PolygonTickersIterator interface {
	Next() bool
	Item() models.Ticker
	Err() error
}

// PolygonAPIClient is the part of the polygon REST client the provider needs.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
	ListTickers(ctx context.Context, params *models.ListTickersParams, options ...models.RequestOption) PolygonTickersIterator
}

type polygonClientAdapter struct {
	client *polygon.Client
}

func (a *polygonClientAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

func (a *polygonClientAdapter) ListTickers(ctx context.Context, params *models.ListTickersParams, options ...models.RequestOption) PolygonTickersIterator {
	return a.client.ListTickers(ctx, params, options...)
}

type PolygonClient struct {
	apiClient PolygonAPIClient
}

func NewPolygonClient(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}

	return NewPolygonClientWithAPI(&polygonClientAdapter{client: polygon.New(apiKey)}), nil
}

// NewPolygonClientWithAPI builds a client around an existing API implementation.
func NewPolygonClientWithAPI(apiClient PolygonAPIClient) *PolygonClient {
	return &PolygonClient{apiClient: apiClient}
}

func (c *PolygonClient) Name() string {
	return string(ProviderPolygon)
}

// Fetch pages adjusted daily aggregates for every instrument of the batch.
func (c *PolygonClient) Fetch(ctx context.Context, group types.FieldGroup, instruments []string, start, end time.Time) ([]types.Record, error) {
	set := newRecordSet(start, end)

	for _, symbol := range instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		//nolint:exhaustruct // third-party struct with many optional fields
		params := models.ListAggsParams{
			Ticker:     polygonTicker(group, symbol),
			Multiplier: 1,
			Timespan:   models.Day,
			From:       models.Millis(types.Day(start)),
			To:         models.Millis(types.Day(end)),
		}.WithAdjusted(true).WithLimit(50000)

		iter := c.apiClient.ListAggs(ctx, params)
		for iter.Next() {
			agg := iter.Item()

			fields, err := barFields(group, agg.Open, agg.High, agg.Low, agg.Close, agg.Volume, agg.VWAP, agg.Transactions)
			if err != nil {
				return nil, err
			}

			set.add(symbol, time.Time(agg.Timestamp), fields)
		}

		if iter.Err() != nil {
			return nil, fmt.Errorf("error iterating polygon aggregates for %s: %w", symbol, iter.Err())
		}
	}

	return set.list(), nil
}

// Instruments lists the active tickers.
func (c *PolygonClient) Instruments(ctx context.Context) ([]types.Instrument, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListTickersParams{}.WithActive(true).WithLimit(1000)

	iter := c.apiClient.ListTickers(ctx, params)

	instruments := make([]types.Instrument, 0)

	for iter.Next() {
		ticker := iter.Item()
		instruments = append(instruments, types.Instrument{
			Symbol: ticker.Ticker,
			Name:   ticker.Name,
			Market: string(ticker.Market),
			Active: ticker.Active,
		})
	}

	if iter.Err() != nil {
		return nil, fmt.Errorf("error iterating polygon tickers: %w", iter.Err())
	}

	return instruments, nil
}

func polygonTicker(group types.FieldGroup, symbol string) string {
	if group == types.FieldGroupIndexDaily && !strings.HasPrefix(symbol, polygonIndexPrefix) {
		return polygonIndexPrefix + symbol
	}

	return symbol
}
