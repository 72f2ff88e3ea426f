package stats_test

import (
	"math"
	"testing"

	"github.com/pizzaops/opsight/internal/stats"
	"github.com/smartystreets/goconvey/convey"
)

func TestPercentile(t *testing.T) {
	convey.Convey("Given a small sorted sample", t, func() {
		xs := []float64{1, 2, 3, 4, 5}

		convey.Convey("Then percentiles interpolate between closest ranks", func() {
			convey.So(stats.Percentile(xs, 0), convey.ShouldEqual, 1)
			convey.So(stats.Percentile(xs, 50), convey.ShouldEqual, 3)
			convey.So(stats.Percentile(xs, 90), convey.ShouldAlmostEqual, 4.6, 1e-9)
			convey.So(stats.Percentile(xs, 100), convey.ShouldEqual, 5)
		})

		convey.Convey("Then p50 never exceeds p95", func() {
			convey.So(stats.Percentile(xs, 50), convey.ShouldBeLessThanOrEqualTo, stats.Percentile(xs, 95))
		})

		convey.Convey("Then input order does not matter", func() {
			shuffled := []float64{4, 1, 5, 3, 2}
			convey.So(stats.Percentile(shuffled, 90), convey.ShouldAlmostEqual, stats.Percentile(xs, 90), 1e-9)
		})
	})

	convey.Convey("Given an empty sample", t, func() {
		convey.So(stats.Percentile(nil, 95), convey.ShouldEqual, 0)
	})
}

func TestMoments(t *testing.T) {
	convey.Convey("Given a known sample", t, func() {
		xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

		convey.Convey("Then mean and sample std match hand computation", func() {
			convey.So(stats.Mean(xs), convey.ShouldEqual, 5)
			convey.So(stats.Std(xs), convey.ShouldAlmostEqual, math.Sqrt(32.0/7.0), 1e-9)
		})
	})

	convey.Convey("Given fewer than two values", t, func() {
		convey.So(stats.Std([]float64{3}), convey.ShouldEqual, 0)
	})
}

func TestPearson(t *testing.T) {
	convey.Convey("Given perfectly correlated samples", t, func() {
		xs := []float64{1, 2, 3, 4}
		ys := []float64{2, 4, 6, 8}

		r, err := stats.Pearson(xs, ys)
		convey.So(err, convey.ShouldBeNil)
		convey.So(r, convey.ShouldAlmostEqual, 1, 1e-9)
	})

	convey.Convey("Given a zero-variance side", t, func() {
		_, err := stats.Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})

		convey.Convey("Then a numeric error is returned instead of NaN", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given mismatched lengths", t, func() {
		_, err := stats.Pearson([]float64{1, 2}, []float64{1, 2, 3})
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestForecastErrors(t *testing.T) {
	convey.Convey("Given actuals and predictions", t, func() {
		actual := []float64{10, 0, 20}
		predicted := []float64{12, 1, 18}

		convey.Convey("Then RMSE and MAE pool all points", func() {
			convey.So(stats.MAE(actual, predicted), convey.ShouldAlmostEqual, 5.0/3.0, 1e-9)
			convey.So(stats.RMSE(actual, predicted), convey.ShouldAlmostEqual, math.Sqrt(3), 1e-9)
		})

		convey.Convey("Then MAPE skips zero actuals", func() {
			convey.So(stats.MAPE(actual, predicted), convey.ShouldAlmostEqual, 15, 1e-9)
		})
	})

	convey.Convey("Given all-zero actuals", t, func() {
		convey.So(math.IsNaN(stats.MAPE([]float64{0, 0}, []float64{1, 2})), convey.ShouldBeTrue)
	})
}
