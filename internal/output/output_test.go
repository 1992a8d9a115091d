package output

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/engine"
	"github.com/rxtech-lab/argo-dataprep/internal/graph"
	"github.com/rxtech-lab/argo-dataprep/internal/metadata"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

type OutputTestSuite struct {
	suite.Suite
	calendar *calendar.Calendar
	graph    *graph.Graph
	result   *engine.Result
	close    types.NodeID
	vol      types.NodeID
}

func TestOutputSuite(t *testing.T) {
	suite.Run(t, new(OutputTestSuite))
}

func day(s string) time.Time {
	t, err := types.ParseDay(s)
	if err != nil {
		panic(err)
	}

	return t
}

func (suite *OutputTestSuite) SetupTest() {
	suite.calendar = calendar.FromDays([]time.Time{
		day("2024-07-31"), day("2024-08-01"), day("2024-08-02"), day("2024-08-05"), day("2024-08-06"),
	})

	suite.close = types.ParamNodeID("alice", "close")
	suite.vol = types.ParamNodeID("system", "vol")
	window := types.NewDateRange(day("2024-08-01"), day("2024-08-05"))

	suite.graph = &graph.Graph{
		Window: window,
		Order:  []types.NodeID{suite.close, suite.vol},
		Ranges: map[types.NodeID]types.DateRange{
			suite.close: types.NewDateRange(day("2024-07-31"), day("2024-08-05")),
			suite.vol:   window,
		},
		Nodes: map[types.NodeID]*graph.Node{
			suite.close: {ID: suite.close, Kind: types.NodeKindParam, Param: metadata.ParamDef{Owner: "alice", Name: "close"}},
			suite.vol:   {ID: suite.vol, Kind: types.NodeKindParam, Param: metadata.ParamDef{Owner: "system", Name: "vol"}},
		},
		Roots: []types.NodeID{suite.close, suite.vol},
	}

	closeValue := engine.NewNodeValue(suite.calendar.Days(suite.graph.Ranges[suite.close]), []string{"AAPL", "MSFT"})
	copy(closeValue.Values["AAPL"], []float64{0.5, 1.5, 2.5, 3.5})
	copy(closeValue.Values["MSFT"], []float64{10.5, 11.5, math.NaN(), 13.5})

	volValue := engine.NewNodeValue(suite.calendar.Days(window), []string{"AAPL", "MSFT"})
	copy(volValue.Values["AAPL"], []float64{0.25, math.NaN(), 0.75})

	suite.result = &engine.Result{Values: map[types.NodeID]*engine.NodeValue{
		suite.close: closeValue,
		suite.vol:   volValue,
	}}
}

func (suite *OutputTestSuite) table() *Table {
	table, err := Materialize(suite.result, suite.graph, suite.calendar, []string{"MSFT", "AAPL", "MSFT"})
	suite.Require().NoError(err)

	return table
}

func (suite *OutputTestSuite) TestMaterializeCoversWindowOnly() {
	table := suite.table()

	suite.Equal([]string{"close", "vol"}, table.Columns)
	suite.Require().Len(table.Rows, 6)

	first := table.Rows[0]
	suite.Equal("AAPL", first.Instrument)
	suite.Equal(day("2024-08-01"), first.Day)
	suite.Equal([]float64{1.5, 0.25}, first.Values)

	last := table.Rows[5]
	suite.Equal("MSFT", last.Instrument)
	suite.Equal(day("2024-08-05"), last.Day)

	v, ok := table.Value(last, "close")
	suite.True(ok)
	suite.Equal(13.5, v)

	_, ok = table.Value(last, "vol")
	suite.False(ok)

	_, ok = table.Value(table.Rows[4], "close")
	suite.False(ok)

	_, ok = table.Value(first, "unknown")
	suite.False(ok)
}

func (suite *OutputTestSuite) TestMaterializeInstrumentWithoutData() {
	table, err := Materialize(suite.result, suite.graph, suite.calendar, []string{"GOOG"})
	suite.Require().NoError(err)
	suite.Len(table.Rows, 3)

	for _, row := range table.Rows {
		suite.True(math.IsNaN(row.Values[0]))
		suite.True(math.IsNaN(row.Values[1]))
	}
}

func (suite *OutputTestSuite) TestMaterializeQualifiesCollidingNames() {
	suite.graph.Nodes[suite.vol].Param.Name = "close"

	table := suite.table()
	suite.Equal([]string{"alice/close", "system/close"}, table.Columns)
}

func (suite *OutputTestSuite) TestMaterializeMissingValue() {
	delete(suite.result.Values, suite.vol)

	_, err := Materialize(suite.result, suite.graph, suite.calendar, []string{"AAPL"})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNodeValueNotFound))

	node, ok := errors.FailingNode(err)
	suite.True(ok)
	suite.Equal(suite.vol.String(), node)
}

func (suite *OutputTestSuite) TestMaterializeEmptyWindow() {
	suite.graph.Window = types.NewDateRange(day("2024-08-03"), day("2024-08-04"))

	_, err := Materialize(suite.result, suite.graph, suite.calendar, []string{"AAPL"})
	suite.True(errors.IsInvalidWindow(err))

	_, err = Materialize(suite.result, suite.graph, nil, []string{"AAPL"})
	suite.True(errors.HasCode(err, errors.ErrCodeCalendarEmpty))
}

func (suite *OutputTestSuite) TestWriteCSV() {
	dir := suite.T().TempDir()

	path, err := NewWriter(dir, FormatCSV, nil).WriteTable(context.Background(), suite.table())
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(dir, "features.csv"), path)

	f, err := os.Open(path)
	suite.Require().NoError(err)

	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	suite.Require().NoError(err)
	suite.Require().Len(records, 7)

	suite.Equal([]string{"instrument", "trading_day", "close", "vol"}, records[0])
	suite.Equal([]string{"AAPL", "2024-08-01", "1.5", "0.25"}, records[1])
	suite.Equal([]string{"AAPL", "2024-08-02", "2.5", ""}, records[2])
	suite.Equal([]string{"MSFT", "2024-08-02", "", ""}, records[5])
}

func (suite *OutputTestSuite) TestWriteParquet() {
	dir := suite.T().TempDir()

	path, err := NewWriter(dir, FormatParquet, nil).WriteTable(context.Background(), suite.table())
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(dir, "features.parquet"), path)

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)

	defer db.Close()

	var rows, nulls int

	err = db.QueryRow("SELECT count(*), count(*) FILTER (WHERE vol IS NULL) FROM read_parquet(?)", path).Scan(&rows, &nulls)
	suite.Require().NoError(err)
	suite.Equal(6, rows)
	suite.Equal(4, nulls)
}

func (suite *OutputTestSuite) TestWriterLifecycle() {
	ctx := context.Background()
	w := NewWriter(suite.T().TempDir(), FormatCSV, nil)

	err := w.Write(ctx, Row{Instrument: "AAPL"})
	suite.True(errors.HasCode(err, errors.ErrCodeOutputWriteFailed))

	_, err = w.Finalize(ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeOutputWriteFailed))

	suite.True(errors.HasCode(w.Initialize(ctx, nil), errors.ErrCodeOutputWriteFailed))

	suite.Require().NoError(w.Initialize(ctx, []string{"close"}))
	err = w.Write(ctx, Row{Instrument: "AAPL", Day: day("2024-08-01"), Values: []float64{1, 2}})
	suite.True(errors.HasCode(err, errors.ErrCodeOutputWriteFailed))

	// closing without finalizing rolls back
	suite.NoError(w.Close())
	suite.NoError(w.Close())
}

func (suite *OutputTestSuite) TestParseFormat() {
	f, err := ParseFormat("")
	suite.NoError(err)
	suite.Equal(FormatCSV, f)

	f, err = ParseFormat("Parquet")
	suite.NoError(err)
	suite.Equal(FormatParquet, f)

	_, err = ParseFormat("xlsx")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *OutputTestSuite) TestManifestRoundTrip() {
	table := suite.table()
	dir := suite.T().TempDir()

	m := NewManifest("alice/momentum", table, suite.graph, []string{"AAPL", "MSFT"}, nil)
	m.File = "features.csv"

	path, err := WriteManifest(dir, m)
	suite.Require().NoError(err)

	read, err := ReadManifest(path)
	suite.Require().NoError(err)

	suite.Equal("1.1.0", read.Version)
	suite.NotEmpty(read.RunID)
	suite.Equal("2024-08-01", read.Start)
	suite.Equal("2024-08-05", read.End)
	suite.Equal(6, read.Rows)
	suite.Equal([]types.NodeID{suite.close, suite.vol}, read.Order)
	suite.Equal(suite.graph.Ranges[suite.close], read.Ranges[suite.close])
	suite.Equal([]Column{{Name: "close", Node: suite.close}, {Name: "vol", Node: suite.vol}}, read.Columns)
	suite.Empty(read.CellFailures)
}

func (suite *OutputTestSuite) TestReadManifestRejectsNewerFormat() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, ManifestFileName)

	data, err := json.Marshal(map[string]any{"version": "1.4.0", "run_id": "x"})
	suite.Require().NoError(err)
	suite.Require().NoError(os.WriteFile(path, data, 0o644))

	_, err = ReadManifest(path)
	suite.True(errors.HasCode(err, errors.ErrCodeManifestVersion))

	suite.Require().NoError(os.WriteFile(path, []byte("not json"), 0o644))
	_, err = ReadManifest(path)
	suite.True(errors.HasCode(err, errors.ErrCodeManifestVersion))

	_, err = ReadManifest(filepath.Join(dir, "missing.json"))
	suite.True(errors.HasCode(err, errors.ErrCodeManifestNotFound))
	suite.True(errors.IsNotFound(err))
}
