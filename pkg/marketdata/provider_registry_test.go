package marketdata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (suite *ProviderRegistryTestSuite) TestGetSupportedProviders() {
	suite.Equal([]string{"binance", "polygon"}, GetSupportedProviders())
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo_Polygon() {
	info, err := GetProviderInfo("polygon")

	suite.NoError(err)
	suite.Equal("polygon", info.Name)
	suite.Equal("Polygon.io", info.DisplayName)
	suite.True(info.RequiresAuth)
	suite.Equal(calendar.ModeWeekdays, info.CalendarMode)
	suite.NotEmpty(info.Description)
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo_Binance() {
	info, err := GetProviderInfo("binance")

	suite.NoError(err)
	suite.Equal("binance", info.Name)
	suite.Equal("Binance", info.DisplayName)
	suite.False(info.RequiresAuth)
	suite.Equal(calendar.ModeContinuous, info.CalendarMode)
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo_InvalidProvider() {
	_, err := GetProviderInfo("invalid")

	suite.Error(err)
	suite.Contains(err.Error(), "unsupported provider")
}

func (suite *ProviderRegistryTestSuite) TestDefaultCalendarMode() {
	suite.Equal(calendar.ModeContinuous, DefaultCalendarMode("binance"))
	suite.Equal(calendar.ModeWeekdays, DefaultCalendarMode("polygon"))
	suite.Equal(calendar.ModeWeekdays, DefaultCalendarMode("yahoo"))
}

func (suite *ProviderRegistryTestSuite) TestProviderInfoJSON() {
	info, err := GetProviderInfo("binance")
	suite.Require().NoError(err)

	data, err := json.Marshal(info)
	suite.Require().NoError(err)
	suite.JSONEq(`{
		"name": "binance",
		"displayName": "Binance",
		"description": "Cryptocurrency daily klines, traded every calendar day",
		"requiresAuth": false,
		"calendarMode": "continuous",
		"fieldGroups": ["daily", "daily_basic", "index_daily"]
	}`, string(data))
}
