package types

// IndicatorType names a registered calculation function. Indicator definitions refer to
// these names instead of carrying executable code.
type IndicatorType string

const (
	IndicatorTypeSum                   IndicatorType = "sum"
	IndicatorTypeDifference            IndicatorType = "difference"
	IndicatorTypeProduct               IndicatorType = "product"
	IndicatorTypeRatio                 IndicatorType = "ratio"
	IndicatorTypeLogRatio              IndicatorType = "log_ratio"
	IndicatorTypeMean                  IndicatorType = "mean"
	IndicatorTypeSpreadPct             IndicatorType = "spread_pct"
	IndicatorTypeHistoricalVolatility  IndicatorType = "historical_volatility"
	IndicatorTypeParkinsonVolatility   IndicatorType = "parkinson_volatility"
	IndicatorTypeGarmanKlassVolatility IndicatorType = "garman_klass_volatility"
)
