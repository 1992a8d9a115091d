// Package aggregate implements the window aggregations a parameter applies to its source
// series. Every function works on one instrument's series ordered by trading day; NaN marks
// an unavailable value and the output always has the length of the input.
package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

const (
	// DefaultHorizon is the number of forward steps a forecast produces when none is set.
	DefaultHorizon = 5
	// recentWindow is the number of trailing values the forecast trend is fitted on.
	recentWindow = 5
	// forecast outputs stay within these multiples of the recent mean
	clampLow  = 0.5
	clampHigh = 1.5
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SMA is a rolling mean over pre+post+1 values where the value at i covers
// series[i-pre : i+post+1]. A window that runs off either end or holds an unavailable
// value yields NaN.
func SMA(series []float64, pre, post int) ([]float64, error) {
	if pre < 0 || post < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow, "sma window must be non-negative, got pre=%d post=%d", pre, post)
	}

	out := nanSeries(len(series))
	size := pre + post + 1

	for i := pre; i+post < len(series); i++ {
		window := series[i-pre : i+post+1]

		sum := 0.0
		ok := true

		for _, v := range window {
			if !finite(v) {
				ok = false

				break
			}

			sum += v
		}

		if ok {
			out[i] = sum / float64(size)
		}
	}

	return out, nil
}

// EMA is the adjusted exponentially weighted mean with alpha = 2/(span+1). It is causal.
// Unavailable inputs keep their position in the weighting but contribute nothing, so the
// previous average carries over them.
func EMA(series []float64, span int) ([]float64, error) {
	if span < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow, "ema span must be at least 1, got %d", span)
	}

	alpha := 2 / (float64(span) + 1)
	decay := 1 - alpha

	out := nanSeries(len(series))
	numerator, denominator := 0.0, 0.0

	for i, v := range series {
		numerator *= decay
		denominator *= decay

		if finite(v) {
			numerator += v
			denominator++
		}

		if denominator > 0 {
			out[i] = numerator / denominator
		}
	}

	return out, nil
}

// Forecast extrapolates horizon steps from window. It fits a least squares trend over the
// most recent finite values, starts from their mean and re-applies the slope once per step.
// Every step is clamped to [0.5, 1.5] times the recent mean.
func Forecast(window []float64, horizon int) ([]float64, error) {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	recent := make([]float64, 0, recentWindow)
	for i := len(window) - 1; i >= 0 && len(recent) < recentWindow; i-- {
		if finite(window[i]) {
			recent = append(recent, window[i])
		}
	}

	if len(recent) == 0 {
		return nil, errors.NewInsufficientDataErrorf(1, 0, "", "forecast needs at least one available value")
	}

	// collected newest first
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	mean := stat.Mean(recent, nil)

	slope := 0.0
	if len(recent) > 1 {
		xs := make([]float64, len(recent))
		for i := range xs {
			xs[i] = float64(i)
		}

		_, slope = stat.LinearRegression(xs, recent, nil, false)
	}

	low, high := clampLow*mean, clampHigh*mean
	if low > high {
		low, high = high, low
	}

	out := make([]float64, horizon)
	prev := mean

	for k := range out {
		prev = math.Min(math.Max(prev+slope, low), high)
		out[k] = prev
	}

	return out, nil
}

// Predict runs Forecast over the trailing pre values ending at each index and keeps the
// forecast at step horizon. Indices without a full trailing window yield NaN.
func Predict(series []float64, pre, horizon int) ([]float64, error) {
	if pre < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow, "predict needs a trailing window of at least 1, got %d", pre)
	}

	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	out := nanSeries(len(series))

	for i := pre - 1; i < len(series); i++ {
		forecast, err := Forecast(series[i-pre+1:i+1], horizon)
		if err != nil {
			if errors.IsInsufficientDataError(err) {
				continue
			}

			return nil, err
		}

		out[i] = forecast[horizon-1]
	}

	return out, nil
}
