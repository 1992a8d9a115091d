package calendar

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type CalendarTestSuite struct {
	suite.Suite
	cal *Calendar
}

func TestCalendarSuite(t *testing.T) {
	suite.Run(t, new(CalendarTestSuite))
}

func mustDay(s string) time.Time {
	t, err := types.ParseDay(s)
	if err != nil {
		panic(err)
	}

	return t
}

func (suite *CalendarTestSuite) SetupTest() {
	// July and August 2024 on a Monday-Friday schedule with Independence Day closed
	days, err := Generate(ModeWeekdays, mustDay("2024-07-01"), mustDay("2024-08-31"), []time.Time{mustDay("2024-07-04")})
	suite.Require().NoError(err)
	suite.cal = New(days)
}

func (suite *CalendarTestSuite) TestNewDropsClosedAndDuplicates() {
	cal := New([]types.TradingDay{
		{Date: mustDay("2024-08-02"), IsOpen: true},
		{Date: mustDay("2024-08-01"), IsOpen: true},
		{Date: mustDay("2024-08-03"), IsOpen: false},
		{Date: time.Date(2024, 8, 2, 14, 0, 0, 0, time.UTC), IsOpen: true},
	})

	suite.Equal(2, cal.Len())

	first, err := cal.First()
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-01"), first)

	last, err := cal.Last()
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-02"), last)
}

func (suite *CalendarTestSuite) TestEmptyCalendar() {
	cal := New(nil)

	_, err := cal.First()
	suite.True(errors.HasCode(err, errors.ErrCodeCalendarEmpty))

	_, err = cal.Correct(mustDay("2024-08-01"), Forward)
	suite.True(errors.HasCode(err, errors.ErrCodeNotATradingDay))
}

func (suite *CalendarTestSuite) TestCorrect() {
	// Saturday corrects forward to Monday and backward to Friday
	fwd, err := suite.cal.Correct(mustDay("2024-08-03"), Forward)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-05"), fwd)

	bwd, err := suite.cal.Correct(mustDay("2024-08-03"), Backward)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-02"), bwd)

	// holiday
	fwd, err = suite.cal.Correct(mustDay("2024-07-04"), Forward)
	suite.NoError(err)
	suite.Equal(mustDay("2024-07-05"), fwd)

	// trading days are returned unchanged
	same, err := suite.cal.Correct(mustDay("2024-08-01"), Backward)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-01"), same)
}

func (suite *CalendarTestSuite) TestCorrectAtBoundaries() {
	_, err := suite.cal.Correct(mustDay("2024-06-30"), Backward)
	suite.True(errors.HasCode(err, errors.ErrCodeNotATradingDay))

	fwd, err := suite.cal.Correct(mustDay("2024-06-30"), Forward)
	suite.NoError(err)
	suite.Equal(mustDay("2024-07-01"), fwd)

	_, err = suite.cal.Correct(mustDay("2024-09-01"), Forward)
	suite.True(errors.HasCode(err, errors.ErrCodeNotATradingDay))

	bwd, err := suite.cal.Correct(mustDay("2024-09-01"), Backward)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-30"), bwd)
}

func (suite *CalendarTestSuite) TestCorrectForwardIsSmallestTradingDayOnOrAfter() {
	last, err := suite.cal.Last()
	suite.Require().NoError(err)

	for d := mustDay("2024-06-25"); !d.After(last); d = d.AddDate(0, 0, 1) {
		got, err := suite.cal.Correct(d, Forward)
		suite.Require().NoError(err, d)
		suite.False(got.Before(d))
		_, open := suite.cal.Index(got)
		suite.True(open)

		for between := d; between.Before(got); between = between.AddDate(0, 0, 1) {
			_, open := suite.cal.Index(between)
			suite.False(open, "%s skipped trading day %s", d, between)
		}
	}
}

func (suite *CalendarTestSuite) TestShift() {
	d, err := suite.cal.Shift(mustDay("2024-08-01"), 1)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-02"), d)

	// across a weekend
	d, err = suite.cal.Shift(mustDay("2024-08-02"), 1)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-05"), d)

	// across the holiday
	d, err = suite.cal.Shift(mustDay("2024-07-05"), -1)
	suite.NoError(err)
	suite.Equal(mustDay("2024-07-03"), d)

	_, err = suite.cal.Shift(mustDay("2024-08-03"), 1)
	suite.True(errors.HasCode(err, errors.ErrCodeNotATradingDay))

	_, err = suite.cal.Shift(mustDay("2024-07-01"), -1)
	suite.True(errors.HasCode(err, errors.ErrCodeRangeExceeded))

	_, err = suite.cal.Shift(mustDay("2024-08-30"), 1)
	suite.True(errors.HasCode(err, errors.ErrCodeRangeExceeded))
}

func (suite *CalendarTestSuite) TestShiftRoundTrip() {
	for _, d := range suite.cal.Days(types.NewDateRange(mustDay("2024-07-01"), mustDay("2024-08-31"))) {
		for _, n := range []int{-30, -5, -1, 0, 1, 5, 30} {
			shifted, err := suite.cal.Shift(d, n)
			if err != nil {
				suite.True(errors.HasCode(err, errors.ErrCodeRangeExceeded))
				continue
			}

			back, err := suite.cal.Shift(shifted, -n)
			suite.NoError(err)
			suite.Equal(d, back)
		}
	}
}

func (suite *CalendarTestSuite) TestDays() {
	r := types.NewDateRange(mustDay("2024-08-01"), mustDay("2024-08-31"))
	days := suite.cal.Days(r)
	suite.Len(days, 22)
	suite.Equal(mustDay("2024-08-01"), days[0])
	suite.Equal(mustDay("2024-08-30"), days[len(days)-1])

	// weekend only
	suite.Empty(suite.cal.Days(types.NewDateRange(mustDay("2024-08-03"), mustDay("2024-08-04"))))
	suite.Empty(suite.cal.Days(types.DateRange{}))
}

func (suite *CalendarTestSuite) TestNormalize() {
	r, err := suite.cal.Normalize(types.NewDateRange(mustDay("2024-08-03"), mustDay("2024-08-11")))
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-05"), r.Min)
	suite.Equal(mustDay("2024-08-09"), r.Max)

	_, err = suite.cal.Normalize(types.NewDateRange(mustDay("2024-08-03"), mustDay("2024-08-04")))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidWindow))

	_, err = suite.cal.Normalize(types.NewDateRange(mustDay("2024-09-02"), mustDay("2024-09-30")))
	suite.True(errors.IsInvalidWindow(err))
}

func (suite *CalendarTestSuite) TestExpand() {
	r, err := suite.cal.Expand(types.NewDateRange(mustDay("2024-08-05"), mustDay("2024-08-09")), 2, 1)
	suite.NoError(err)
	suite.Equal(mustDay("2024-08-01"), r.Min)
	suite.Equal(mustDay("2024-08-12"), r.Max)

	_, err = suite.cal.Expand(types.NewDateRange(mustDay("2024-07-02"), mustDay("2024-07-03")), 5, 0)
	suite.True(errors.HasCode(err, errors.ErrCodeRangeExceeded))
}
