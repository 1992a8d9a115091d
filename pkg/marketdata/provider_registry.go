// Package marketdata describes the market data providers the cache can be filled from.
package marketdata

import (
	"fmt"
	"slices"

	"github.com/rxtech-lab/argo-dataprep/internal/calendar"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/marketdata/provider"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
	// CalendarMode is the calendar generated when the config does not name one.
	CalendarMode calendar.Mode      `json:"calendarMode"`
	FieldGroups  []types.FieldGroup `json:"fieldGroups"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderPolygon: {
		Name:         string(provider.ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US equity and index daily aggregates",
		RequiresAuth: true,
		CalendarMode: calendar.ModeWeekdays,
		FieldGroups:  []types.FieldGroup{types.FieldGroupDaily, types.FieldGroupDailyBasic, types.FieldGroupIndexDaily},
	},
	provider.ProviderBinance: {
		Name:         string(provider.ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency daily klines, traded every calendar day",
		RequiresAuth: false,
		CalendarMode: calendar.ModeContinuous,
		FieldGroups:  []types.FieldGroup{types.FieldGroupDaily, types.FieldGroupDailyBasic, types.FieldGroupIndexDaily},
	},
}

// GetSupportedProviders returns the names of all supported providers, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	slices.Sort(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[provider.ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, fmt.Errorf("unsupported provider: %s", providerName)
	}

	return info, nil
}

// DefaultCalendarMode returns the calendar a provider trades on, weekdays for unknown ones.
func DefaultCalendarMode(providerName string) calendar.Mode {
	info, err := GetProviderInfo(providerName)
	if err != nil {
		return calendar.ModeWeekdays
	}

	return info.CalendarMode
}
