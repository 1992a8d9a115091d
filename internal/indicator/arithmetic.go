package indicator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// rowWise is a calculation function over the current row of its inputs.
type rowWise struct {
	name  types.IndicatorType
	arity int
	fn    func(values []float64) (float64, error)
}

func (r *rowWise) Name() types.IndicatorType {
	return r.name
}

func (r *rowWise) Arity() int {
	return r.arity
}

func (r *rowWise) Lookback() int {
	return 1
}

// Config rejects any setting: row-wise functions have nothing to configure.
func (r *rowWise) Config(params ...any) error {
	if len(params) > 0 {
		return fmt.Errorf("%s takes no configuration, got %d parameters", r.name, len(params))
	}

	return nil
}

func (r *rowWise) RawValue(inputs ...[]float64) (float64, error) {
	if err := validateInputs(r, inputs); err != nil {
		return math.NaN(), err
	}

	value, err := r.fn(last(inputs))
	if err != nil {
		return math.NaN(), errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "%s failed", r.name)
	}

	return value, nil
}

// NewSum adds all inputs.
func NewSum() Indicator {
	return &rowWise{name: types.IndicatorTypeSum, arity: VariadicArity, fn: func(values []float64) (float64, error) {
		return floats.Sum(values), nil
	}}
}

// NewDifference subtracts the second input from the first.
func NewDifference() Indicator {
	return &rowWise{name: types.IndicatorTypeDifference, arity: 2, fn: func(values []float64) (float64, error) {
		return values[0] - values[1], nil
	}}
}

// NewProduct multiplies all inputs.
func NewProduct() Indicator {
	return &rowWise{name: types.IndicatorTypeProduct, arity: VariadicArity, fn: func(values []float64) (float64, error) {
		return floats.Prod(values), nil
	}}
}

// NewRatio divides the first input by the second.
func NewRatio() Indicator {
	return &rowWise{name: types.IndicatorTypeRatio, arity: 2, fn: func(values []float64) (float64, error) {
		if values[1] == 0 {
			return math.NaN(), fmt.Errorf("division by zero")
		}

		return values[0] / values[1], nil
	}}
}

// NewLogRatio is ln(first / second); both inputs must be positive.
func NewLogRatio() Indicator {
	return &rowWise{name: types.IndicatorTypeLogRatio, arity: 2, fn: func(values []float64) (float64, error) {
		if values[0] <= 0 || values[1] <= 0 {
			return math.NaN(), fmt.Errorf("log of non-positive value (%g / %g)", values[0], values[1])
		}

		return math.Log(values[0] / values[1]), nil
	}}
}

// NewMean averages all inputs.
func NewMean() Indicator {
	return &rowWise{name: types.IndicatorTypeMean, arity: VariadicArity, fn: func(values []float64) (float64, error) {
		return stat.Mean(values, nil), nil
	}}
}

// NewSpreadPct is (first - second) / second in percent.
func NewSpreadPct() Indicator {
	return &rowWise{name: types.IndicatorTypeSpreadPct, arity: 2, fn: func(values []float64) (float64, error) {
		if values[1] == 0 {
			return math.NaN(), fmt.Errorf("division by zero")
		}

		return (values[0] - values[1]) / values[1] * 100, nil
	}}
}
