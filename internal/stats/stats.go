// Package stats holds the small numeric kernel shared by the analytical
// engines: percentiles, moments and correlation over plain float slices.
package stats

import (
	"math"
	"sort"

	"github.com/pizzaops/opsight/internal/models"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Std returns the sample standard deviation, 0 when fewer than two values.
func Std(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Percentile computes the p-th percentile (0..100) with linear interpolation
// between closest ranks. Returns 0 for an empty slice.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Median is the 50th percentile.
func Median(xs []float64) float64 {
	return Percentile(xs, 50)
}

// Pearson computes the correlation coefficient between two equal-length
// samples. Degenerate input (mismatched lengths, fewer than two points, zero
// variance on either side) yields a NumericError instead of NaN.
func Pearson(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, &models.NumericError{Op: "pearson"}
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, &models.NumericError{Op: "pearson"}
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

// CoefficientOfVariation returns std/mean as a percentage. Zero mean yields
// a NumericError.
func CoefficientOfVariation(xs []float64) (float64, error) {
	m := Mean(xs)
	if m == 0 {
		return 0, &models.NumericError{Op: "coefficient_of_variation"}
	}
	return Std(xs) / m * 100, nil
}

// RMSE of predictions against actuals.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	var ss float64
	for i := range actual {
		d := actual[i] - predicted[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(actual)))
}

// MAE of predictions against actuals.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// MAPE of predictions against actuals, in percent. Zero actuals are skipped;
// if every actual is zero the result is NaN.
func MAPE(actual, predicted []float64) float64 {
	var sum float64
	var n int
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n) * 100
}
