package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type DateTestSuite struct {
	suite.Suite
}

func TestDateSuite(t *testing.T) {
	suite.Run(t, new(DateTestSuite))
}

func day(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}

	return t
}

func (suite *DateTestSuite) TestDayTruncates() {
	loc := time.FixedZone("EST", -5*3600)
	t := time.Date(2024, 8, 1, 15, 30, 0, 0, loc)
	suite.Equal(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), Day(t))
}

func (suite *DateTestSuite) TestUnion() {
	a := NewDateRange(day("2024-08-05"), day("2024-08-20"))
	b := NewDateRange(day("2024-08-01"), day("2024-08-10"))

	union := a.Union(b)
	suite.Equal(day("2024-08-01"), union.Min)
	suite.Equal(day("2024-08-20"), union.Max)

	suite.Equal(a, DateRange{}.Union(a))
	suite.Equal(a, a.Union(DateRange{}))
}

func (suite *DateTestSuite) TestContainsAndCovers() {
	r := NewDateRange(day("2024-08-01"), day("2024-08-31"))
	suite.True(r.Contains(day("2024-08-01")))
	suite.True(r.Contains(day("2024-08-31")))
	suite.False(r.Contains(day("2024-09-01")))

	suite.True(r.Covers(NewDateRange(day("2024-08-05"), day("2024-08-06"))))
	suite.False(r.Covers(NewDateRange(day("2024-07-31"), day("2024-08-06"))))
	suite.True(r.Covers(DateRange{}))
	suite.False(DateRange{}.Covers(r))
}

func (suite *DateTestSuite) TestIsEmpty() {
	suite.True(DateRange{}.IsEmpty())
	suite.True(NewDateRange(day("2024-08-02"), day("2024-08-01")).IsEmpty())
	suite.False(NewDateRange(day("2024-08-01"), day("2024-08-01")).IsEmpty())
}

func (suite *DateTestSuite) TestJSON() {
	r := NewDateRange(day("2024-06-18"), day("2024-08-30"))

	data, err := json.Marshal(map[string]DateRange{"table:daily.close": r})
	suite.NoError(err)
	suite.JSONEq(`{"table:daily.close":["2024-06-18","2024-08-30"]}`, string(data))

	indented, err := json.MarshalIndent(r, "", "  ")
	suite.NoError(err)

	var decoded DateRange
	suite.NoError(json.Unmarshal(indented, &decoded))
	suite.Equal(r, decoded)

	suite.Error(json.Unmarshal([]byte(`["2024-13-01","2024-08-30"]`), &decoded))
	suite.Error(json.Unmarshal([]byte(`"2024-08-30"`), &decoded))
}

func (suite *DateTestSuite) TestString() {
	r := NewDateRange(day("2024-08-01"), day("2024-08-31"))
	suite.Equal("2024-08-01..2024-08-31", r.String())
}
