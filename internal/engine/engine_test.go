package engine

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/indicator"
	"github.com/rxtech-lab/argo-dataprep/internal/metadata"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

const engineDefinitions = `
params:
  - name: close
    source_kind: table
    source_id: daily.close
  - name: open
    source_kind: table
    source_id: daily.open
  - name: close_sma_2
    source_kind: table
    source_id: daily.close
    pre_period: 2
    agg_func: sma
  - name: close_ema_3
    source_kind: table
    source_id: daily.close
    pre_period: 3
    agg_func: ema
  - name: benchmark_close
    source_kind: table
    source_id: index_daily.close
  - name: close_to_open
    source_kind: indicator
    source_id: close_to_open
  - name: vol_3
    source_kind: indicator
    source_id: vol_3
  - name: vol_forecast
    source_kind: indicator
    source_id: vol_3
    pre_period: 4
    post_period: 2
    agg_func: predict
indicators:
  - name: close_to_open
    calculation_fn: ratio
    params:
      - name: close
      - name: open
  - name: vol_3
    calculation_fn: historical_volatility
    window: 3
    params:
      - name: close
`

type sourceCall struct {
	group       types.FieldGroup
	instruments []string
	start, end  time.Time
}

// fakeSource serves rows computed by value for every requested instrument and trading day.
type fakeSource struct {
	cal   *calendar.Calendar
	value func(group types.FieldGroup, field, symbol string, index int) float64
	err   error
	calls []sourceCall
}

func (s *fakeSource) Get(_ context.Context, group types.FieldGroup, fields []string, instruments []string, start, end time.Time) ([]types.Record, error) {
	s.calls = append(s.calls, sourceCall{group: group, instruments: instruments, start: start, end: end})

	if s.err != nil {
		return nil, s.err
	}

	var records []types.Record

	for _, symbol := range instruments {
		for _, d := range s.cal.Days(types.NewDateRange(start, end)) {
			i, _ := s.cal.Index(d)
			record := types.Record{Symbol: symbol, Date: d, Fields: map[string]float64{}}

			for _, field := range fields {
				record.Fields[field] = s.value(group, field, symbol, i)
			}

			records = append(records, record)
		}
	}

	return records, nil
}

type EngineTestSuite struct {
	suite.Suite
	cal     *calendar.Calendar
	source  *fakeSource
	builder *graph.Builder
	engine  *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func day(s string) time.Time {
	d, err := types.ParseDay(s)
	if err != nil {
		panic(err)
	}

	return d
}

func (suite *EngineTestSuite) SetupTest() {
	days, err := calendar.Generate(calendar.ModeWeekdays, day("2024-06-01"), day("2024-09-30"), nil)
	suite.Require().NoError(err)
	suite.cal = calendar.New(days)

	suite.source = &fakeSource{
		cal: suite.cal,
		value: func(group types.FieldGroup, field, symbol string, i int) float64 {
			base := 100.0
			if symbol == "MSFT" {
				base = 200
			}

			if group == types.FieldGroupIndexDaily {
				base = 5000
			}

			switch field {
			case "open":
				return (base + float64(i)) / 2
			default:
				return base + float64(i)
			}
		},
	}

	defs, err := metadata.ParseDefinitions([]byte(engineDefinitions))
	suite.Require().NoError(err)
	repo, err := metadata.NewRepositoryFromDefinitions(defs)
	suite.Require().NoError(err)

	registry := indicator.NewDefaultRegistry()
	suite.builder = graph.NewBuilder(repo, suite.cal, registry, graph.Options{})
	suite.engine = NewEngine(suite.source, suite.cal, registry, Options{})
}

func (suite *EngineTestSuite) evaluate(param string, universe ...string) (*graph.Graph, *Result, error) {
	g, err := suite.builder.Resolve(context.Background(), "system", []types.Ref{{Name: param}}, day("2024-08-01"), day("2024-08-09"))
	suite.Require().NoError(err)

	result, err := suite.engine.Evaluate(context.Background(), g, universe, "SPX")

	return g, result, err
}

func (suite *EngineTestSuite) index(d string) int {
	i, ok := suite.cal.Index(day(d))
	suite.Require().True(ok)

	return i
}

func (suite *EngineTestSuite) TestPassThroughIsClippedToRange() {
	_, result, err := suite.evaluate("close", "AAPL", "MSFT")
	suite.Require().NoError(err)

	value, err := result.Value(types.ParamNodeID("system", "close"))
	suite.Require().NoError(err)
	suite.Len(value.Days, 7)
	suite.Equal(day("2024-08-01"), value.Days[0])
	suite.Equal([]string{"AAPL", "MSFT"}, value.Symbols())

	got := value.Get("MSFT", day("2024-08-05"))
	suite.True(got.IsSome())
	suite.Equal(200+float64(suite.index("2024-08-05")), got.Unwrap())

	suite.True(value.Get("MSFT", day("2024-07-31")).IsNone())
	suite.True(value.Get("GOOG", day("2024-08-05")).IsNone())

	suite.Require().Len(suite.source.calls, 1)
	suite.Equal([]string{"AAPL", "MSFT"}, suite.source.calls[0].instruments)
	suite.Equal(0, result.Failures.Total())
}

func (suite *EngineTestSuite) TestSMAReadsPreviousDays() {
	g, result, err := suite.evaluate("close_sma_2", "AAPL")
	suite.Require().NoError(err)

	// the cache is read two trading days before the window
	suite.Equal(day("2024-07-30"), suite.source.calls[0].start)
	suite.Equal(day("2024-07-30"), g.Ranges[types.TableNodeID(types.FieldGroupDaily, "close")].Min)

	value, err := result.Value(types.ParamNodeID("system", "close_sma_2"))
	suite.Require().NoError(err)
	suite.Len(value.Days, 7)

	for _, d := range value.Days {
		i, _ := suite.cal.Index(d)
		suite.InDelta(100+float64(i)-1, value.Get("AAPL", d).Unwrap(), 1e-9)
	}
}

func (suite *EngineTestSuite) TestEMA() {
	_, result, err := suite.evaluate("close_ema_3", "AAPL")
	suite.Require().NoError(err)

	value, err := result.Value(types.ParamNodeID("system", "close_ema_3"))
	suite.Require().NoError(err)

	series := value.Series("AAPL")
	suite.Len(series, 7)

	for i := 1; i < len(series); i++ {
		// an increasing series keeps an increasing average that lags the series
		suite.Greater(series[i], series[i-1])
		suite.Less(series[i], 100+float64(suite.index("2024-08-01")+i))
	}
}

func (suite *EngineTestSuite) TestRowWiseIndicator() {
	_, result, err := suite.evaluate("close_to_open", "AAPL", "MSFT")
	suite.Require().NoError(err)

	value, err := result.Value(types.ParamNodeID("system", "close_to_open"))
	suite.Require().NoError(err)

	for _, symbol := range []string{"AAPL", "MSFT"} {
		for _, v := range value.Series(symbol) {
			suite.InDelta(2.0, v, 1e-9)
		}
	}
}

func (suite *EngineTestSuite) TestCellFailuresAreAbsorbed() {
	broken := suite.index("2024-08-06")
	value := suite.source.value
	suite.source.value = func(group types.FieldGroup, field, symbol string, i int) float64 {
		if symbol == "AAPL" && i == broken {
			if field == "open" {
				return 0
			}
		}

		if symbol == "MSFT" && i == broken && field == "close" {
			return math.NaN()
		}

		return value(group, field, symbol, i)
	}

	_, result, err := suite.evaluate("close_to_open", "AAPL", "MSFT")
	suite.Require().NoError(err)

	id := types.IndicatorNodeID("system", "close_to_open")
	ratio, err := result.Value(id)
	suite.Require().NoError(err)

	suite.True(ratio.Get("AAPL", day("2024-08-06")).IsNone())
	suite.True(ratio.Get("MSFT", day("2024-08-06")).IsNone())
	suite.True(ratio.Get("AAPL", day("2024-08-07")).IsSome())

	suite.Equal(2, result.Failures.Total())

	failures, ok := result.Failures.Node(id)
	suite.Require().True(ok)
	suite.Equal(map[string]int{ReasonDomainError: 1, ReasonMissingInput: 1}, failures.Reasons)
	suite.Equal("AAPL", failures.SampleSymbol)
	suite.True(errors.HasCode(failures.Sample, errors.ErrCodeCellEvaluationFailure))
	suite.Equal([]types.NodeID{id}, result.Failures.Nodes())
}

func (suite *EngineTestSuite) TestTrailingWindowAtRangeStart() {
	_, result, err := suite.evaluate("vol_3", "AAPL")
	suite.Require().NoError(err)

	id := types.IndicatorNodeID("system", "vol_3")
	value, err := result.Value(id)
	suite.Require().NoError(err)

	// returns over 3 days need 4 closes, which the window only holds from its fourth day on
	series := value.Series("AAPL")
	suite.True(math.IsNaN(series[0]))
	suite.True(math.IsNaN(series[2]))
	suite.False(math.IsNaN(series[3]))
	suite.Greater(series[3], 0.0)

	failures, ok := result.Failures.Node(id)
	suite.Require().True(ok)
	suite.Equal(3, failures.Reasons[ReasonInsufficientData])
	suite.Nil(failures.Sample)
}

func (suite *EngineTestSuite) TestForecastOverIndicator() {
	g, result, err := suite.evaluate("vol_forecast", "AAPL")
	suite.Require().NoError(err)

	id := types.ParamNodeID("system", "vol_forecast")
	suite.Equal(suite.cal.Days(g.Expanded[id])[0], g.Ranges[types.IndicatorNodeID("system", "vol_3")].Min)

	value, err := result.Value(id)
	suite.Require().NoError(err)
	suite.Len(value.Days, 7)

	volatility, err := result.Value(types.IndicatorNodeID("system", "vol_3"))
	suite.Require().NoError(err)

	for _, d := range value.Days {
		forecast := value.Get("AAPL", d)
		suite.Require().True(forecast.IsSome(), d.String())

		recent, ok := volatility.Trailing("AAPL", d, 4)
		suite.Require().True(ok)

		mean := 0.0
		n := 0
		for _, v := range recent {
			if !math.IsNaN(v) {
				mean += v
				n++
			}
		}
		mean /= float64(n)

		suite.GreaterOrEqual(forecast.Unwrap(), 0.5*mean-1e-9)
		suite.LessOrEqual(forecast.Unwrap(), 1.5*mean+1e-9)
	}
}

func (suite *EngineTestSuite) TestBenchmarkIsBroadcast() {
	_, result, err := suite.evaluate("benchmark_close", "AAPL", "MSFT")
	suite.Require().NoError(err)

	suite.Require().Len(suite.source.calls, 1)
	suite.Equal([]string{"SPX"}, suite.source.calls[0].instruments)

	value, err := result.Value(types.ParamNodeID("system", "benchmark_close"))
	suite.Require().NoError(err)
	suite.Equal(value.Series("AAPL"), value.Series("MSFT"))
	suite.Equal(5000+float64(suite.index("2024-08-01")), value.Series("AAPL")[0])

	g, err := suite.builder.Resolve(context.Background(), "system", []types.Ref{{Name: "benchmark_close"}}, day("2024-08-01"), day("2024-08-09"))
	suite.Require().NoError(err)

	_, err = suite.engine.Evaluate(context.Background(), g, []string{"AAPL"}, "")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *EngineTestSuite) TestStructuralFailures() {
	_, _, err := suite.evaluate("close")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	suite.source.err = errors.New(errors.ErrCodeIncompleteUpstreamData, "short batch")
	_, _, err = suite.evaluate("close", "AAPL")
	suite.True(errors.HasCode(err, errors.ErrCodeIncompleteUpstreamData))
	node, ok := errors.FailingNode(err)
	suite.True(ok)
	suite.Equal("table:daily.close", node)

	suite.source.err = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := suite.builder.Resolve(context.Background(), "system", []types.Ref{{Name: "close"}}, day("2024-08-01"), day("2024-08-09"))
	suite.Require().NoError(err)
	_, err = suite.engine.Evaluate(ctx, g, []string{"AAPL"}, "")
	suite.True(stderrors.Is(err, context.Canceled))

	_, err = (&Result{Values: map[types.NodeID]*NodeValue{}}).Value("param:system/nope")
	suite.True(errors.HasCode(err, errors.ErrCodeNodeValueNotFound))
}
