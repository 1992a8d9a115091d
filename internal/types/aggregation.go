package types

import (
	"fmt"
	"strings"
)

// AggFunc is the aggregation a parameter applies over its window.
type AggFunc string

const (
	AggFuncNone    AggFunc = "none"
	AggFuncSMA     AggFunc = "sma"
	AggFuncEMA     AggFunc = "ema"
	AggFuncPredict AggFunc = "predict"
)

// ParseAggFunc accepts the aggregation names case-insensitively; empty means none.
func ParseAggFunc(s string) (AggFunc, error) {
	switch AggFunc(strings.ToLower(strings.TrimSpace(s))) {
	case "", AggFuncNone:
		return AggFuncNone, nil
	case AggFuncSMA:
		return AggFuncSMA, nil
	case AggFuncEMA:
		return AggFuncEMA, nil
	case AggFuncPredict:
		return AggFuncPredict, nil
	default:
		return "", fmt.Errorf("unknown aggregation function: %s", s)
	}
}
