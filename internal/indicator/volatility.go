package indicator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

const (
	// DefaultVolatilityWindow is used when the definition does not set a window.
	DefaultVolatilityWindow = 20
	// tradingDaysPerYear annualises daily volatility.
	tradingDaysPerYear = 252
)

// annualise turns a daily volatility into an annual percentage.
func annualise(daily float64) float64 {
	return daily * math.Sqrt(tradingDaysPerYear) * 100
}

// volatility is the shared window handling of the volatility family.
type volatility struct {
	name   types.IndicatorType
	arity  int
	window int
	// extra rows needed beyond the window, 1 when the estimator uses returns
	extra int
	fn    func(window int, inputs [][]float64) (float64, error)
}

func (v *volatility) Name() types.IndicatorType {
	return v.name
}

func (v *volatility) Arity() int {
	return v.arity
}

func (v *volatility) Lookback() int {
	return v.window + v.extra
}

// Expected parameters: window (int).
func (v *volatility) Config(params ...any) error {
	window, err := parseWindow(params)
	if err != nil {
		return err
	}

	v.window = window

	return nil
}

func (v *volatility) RawValue(inputs ...[]float64) (float64, error) {
	if err := validateInputs(v, inputs); err != nil {
		return math.NaN(), err
	}

	trailing := make([][]float64, len(inputs))
	for i, input := range inputs {
		trailing[i] = tail(input, v.Lookback())
	}

	value, err := v.fn(v.window, trailing)
	if err != nil {
		return math.NaN(), errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "%s failed", v.name)
	}

	return value, nil
}

// NewHistoricalVolatility is the annualised sample standard deviation of simple returns
// of its single close input.
func NewHistoricalVolatility() Indicator {
	return &volatility{
		name:   types.IndicatorTypeHistoricalVolatility,
		arity:  1,
		window: DefaultVolatilityWindow,
		extra:  1,
		fn: func(window int, inputs [][]float64) (float64, error) {
			closes := inputs[0]
			returns := make([]float64, 0, window)

			for i := 1; i < len(closes); i++ {
				if closes[i-1] == 0 {
					return math.NaN(), fmt.Errorf("zero price in return window")
				}

				returns = append(returns, closes[i]/closes[i-1]-1)
			}

			return annualise(stat.StdDev(returns, nil)), nil
		},
	}
}

// NewParkinsonVolatility estimates volatility from the high and low inputs.
func NewParkinsonVolatility() Indicator {
	return &volatility{
		name:   types.IndicatorTypeParkinsonVolatility,
		arity:  2,
		window: DefaultVolatilityWindow,
		extra:  0,
		fn: func(window int, inputs [][]float64) (float64, error) {
			highs, lows := inputs[0], inputs[1]
			sum := 0.0

			for i := range highs {
				if highs[i] <= 0 || lows[i] <= 0 {
					return math.NaN(), fmt.Errorf("non-positive price in window")
				}

				hl := math.Log(highs[i] / lows[i])
				sum += hl * hl
			}

			return annualise(math.Sqrt(sum / (4 * float64(window) * math.Ln2))), nil
		},
	}
}

// NewGarmanKlassVolatility estimates volatility from the open, high, low and close inputs.
func NewGarmanKlassVolatility() Indicator {
	return &volatility{
		name:   types.IndicatorTypeGarmanKlassVolatility,
		arity:  4,
		window: DefaultVolatilityWindow,
		extra:  0,
		fn: func(window int, inputs [][]float64) (float64, error) {
			opens, highs, lows, closes := inputs[0], inputs[1], inputs[2], inputs[3]
			sum := 0.0

			for i := range opens {
				if opens[i] <= 0 || highs[i] <= 0 || lows[i] <= 0 || closes[i] <= 0 {
					return math.NaN(), fmt.Errorf("non-positive price in window")
				}

				hl := math.Log(highs[i] / lows[i])
				co := math.Log(closes[i] / opens[i])
				sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
			}

			variance := sum / float64(window)
			if variance < 0 {
				return math.NaN(), fmt.Errorf("negative variance %g", variance)
			}

			return annualise(math.Sqrt(variance)), nil
		},
	}
}
