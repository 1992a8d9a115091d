// Package indicator holds the registered calculation functions indicator definitions refer to.
//
// An indicator computes one cell of an indicator node: it receives the trailing values of each
// of its input series for one instrument on one trading day and returns a single float. Row-wise
// functions look at the current row only; the volatility family looks at a trailing window.
package indicator

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// VariadicArity marks an indicator that accepts any positive number of inputs.
const VariadicArity = -1

// Indicator interface defines methods that any calculation function must implement
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// Arity is the number of input series, or VariadicArity.
	Arity() int
	// Lookback is the number of trailing rows of every input RawValue needs, current row included.
	Lookback() int
	// Config applies definition level settings such as the window length.
	Config(params ...any) error
	// RawValue computes the cell. inputs[i] holds the Lookback() trailing values of input i,
	// oldest first.
	RawValue(inputs ...[]float64) (float64, error)
}

// CheckArity validates the number of inputs wired to ind.
func CheckArity(ind Indicator, inputs int) error {
	arity := ind.Arity()
	if arity == VariadicArity {
		if inputs == 0 {
			return errors.Newf(errors.ErrCodeInvalidParameter, "%s needs at least one input", ind.Name())
		}

		return nil
	}

	if inputs != arity {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s expects %d inputs, got %d", ind.Name(), arity, inputs)
	}

	return nil
}

// validateInputs checks every input carries exactly lookback finite values.
func validateInputs(ind Indicator, inputs [][]float64) error {
	if err := CheckArity(ind, len(inputs)); err != nil {
		return err
	}

	lookback := ind.Lookback()

	for i, input := range inputs {
		if len(input) < lookback {
			return errors.NewInsufficientDataErrorf(lookback, len(input), "",
				"%s input %d needs %d values, got %d", ind.Name(), i, lookback, len(input))
		}

		for _, v := range input[len(input)-lookback:] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Newf(errors.ErrCodeIndicatorCalculation, "%s input %d is unavailable", ind.Name(), i)
			}
		}
	}

	return nil
}

// parseWindow accepts the window as int or float, the way YAML and SQL hand it over.
func parseWindow(params []any) (int, error) {
	if len(params) != 1 {
		return 0, fmt.Errorf("Config expects 1 parameter: window (int)")
	}

	var window int

	switch v := params[0].(type) {
	case int:
		window = v
	case int64:
		window = int(v)
	case float64:
		window = int(v)
	default:
		return 0, fmt.Errorf("invalid type for window parameter, expected int or float")
	}

	if window <= 1 {
		return 0, fmt.Errorf("window must be greater than 1, got %d", window)
	}

	return window, nil
}

// last returns the current row of every input.
func last(inputs [][]float64) []float64 {
	out := make([]float64, len(inputs))
	for i, input := range inputs {
		out[i] = input[len(input)-1]
	}

	return out
}

// tail returns the trailing n values of input.
func tail(input []float64, n int) []float64 {
	return input[len(input)-n:]
}
