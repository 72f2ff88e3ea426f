package forecast_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pizzaops/opsight/internal/forecast"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/smartystreets/goconvey/convey"
)

// dailySeries builds an hourly series with a clear 24-hour shape.
func dailySeries(days int) []forecast.SeriesPoint {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make([]forecast.SeriesPoint, 0, days*24)
	for i := 0; i < days*24; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		v := 50 + 20*math.Sin(2*math.Pi*float64(t.Hour())/24) + 0.01*float64(i)
		series = append(series, forecast.SeriesPoint{T: t, V: v})
	}
	return series
}

func TestEnsemble_FitAndPredict(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given an ensemble fitted on a month of hourly demand", t, func() {
		ens := forecast.NewEnsemble(cfg)
		err := ens.Fit(context.Background(), dailySeries(30))
		convey.So(err, convey.ShouldBeNil)
		convey.So(ens.State(), convey.ShouldEqual, forecast.EnsembleTrained)

		convey.Convey("Then strategy weights sum to one", func() {
			var sum float64
			weights := ens.Weights()
			convey.So(len(weights), convey.ShouldBeGreaterThanOrEqualTo, 1)
			for _, w := range weights {
				convey.So(w, convey.ShouldBeGreaterThan, 0)
				sum += w
			}
			convey.So(sum, convey.ShouldAlmostEqual, 1, 1e-6)
		})

		convey.Convey("Then the forecast has exactly the requested horizon", func() {
			points, err := ens.Predict(24)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(points), convey.ShouldEqual, 24)

			for i, p := range points {
				convey.So(p.Lower, convey.ShouldBeLessThanOrEqualTo, p.Ensemble)
				convey.So(p.Upper, convey.ShouldBeGreaterThanOrEqualTo, p.Ensemble)
				convey.So(p.Lower, convey.ShouldBeGreaterThanOrEqualTo, 0)
				if i > 0 {
					convey.So(p.Timestamp.Sub(points[i-1].Timestamp), convey.ShouldEqual, time.Hour)
				}
			}
		})

		convey.Convey("Then each point carries per-strategy values", func() {
			points, err := ens.Predict(6)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(points[0].ByStrategy), convey.ShouldEqual, len(ens.Weights()))
		})

		convey.Convey("Then the model comparison includes an ensemble row", func() {
			scores := ens.CompareModels()
			convey.So(len(scores), convey.ShouldEqual, len(ens.Weights())+1)
			convey.So(scores[len(scores)-1].Model, convey.ShouldEqual, "ensemble")

			var weightSum float64
			for _, s := range scores[:len(scores)-1] {
				weightSum += s.Weight
				convey.So(s.RMSE, convey.ShouldBeGreaterThanOrEqualTo, 0)
			}
			convey.So(weightSum, convey.ShouldAlmostEqual, 1, 1e-6)
		})
	})

	convey.Convey("Given an untrained ensemble", t, func() {
		ens := forecast.NewEnsemble(cfg)
		_, err := ens.Predict(24)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestEnsemble_Degraded(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given far too little history for any strategy", t, func() {
		ens := forecast.NewEnsemble(cfg)
		err := ens.Fit(context.Background(), dailySeries(30)[:10])
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the ensemble degrades instead of failing", func() {
			convey.So(ens.State(), convey.ShouldEqual, forecast.EnsembleDegraded)
			convey.So(ens.Weights(), convey.ShouldBeEmpty)
		})

		convey.Convey("Then the fallback still yields a wide, valid forecast", func() {
			points, err := ens.Predict(12)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(points), convey.ShouldEqual, 12)
			for _, p := range points {
				convey.So(p.Upper, convey.ShouldBeGreaterThanOrEqualTo, p.Lower)
				convey.So(p.Lower, convey.ShouldBeGreaterThanOrEqualTo, 0)
			}
		})
	})
}

func TestEnsemble_Cancellation(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a fit launched with an already-cancelled context", t, func() {
		ens := forecast.NewEnsemble(cfg)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := ens.Fit(ctx, dailySeries(30))

		convey.Convey("Then no result is installed", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(ens.State(), convey.ShouldEqual, forecast.EnsembleUntrained)
		})
	})
}

func TestEnsemble_MarkStale(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a trained ensemble superseded by new data", t, func() {
		ens := forecast.NewEnsemble(cfg)
		convey.So(ens.Fit(context.Background(), dailySeries(30)), convey.ShouldBeNil)

		ens.MarkStale()

		convey.Convey("Then the state flips to stale but predictions survive", func() {
			convey.So(ens.State(), convey.ShouldEqual, forecast.EnsembleStale)
			points, err := ens.Predict(6)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(points), convey.ShouldEqual, 6)
		})
	})
}

func TestBuildHourlySeries(t *testing.T) {
	convey.Convey("Given orders with an empty hour in the middle", t, func() {
		base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		rows := []models.FeatureRow{
			{OrderRecord: models.OrderRecord{PlacedAt: base.Add(5 * time.Minute)}},
			{OrderRecord: models.OrderRecord{PlacedAt: base.Add(20 * time.Minute)}},
			{OrderRecord: models.OrderRecord{PlacedAt: base.Add(2*time.Hour + 10*time.Minute)}},
		}

		series := forecast.BuildHourlySeries(rows)

		convey.Convey("Then the gap hour is zero-filled", func() {
			convey.So(len(series), convey.ShouldEqual, 3)
			convey.So(series[0].V, convey.ShouldEqual, 2)
			convey.So(series[1].V, convey.ShouldEqual, 0)
			convey.So(series[2].V, convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given no rows", t, func() {
		convey.So(forecast.BuildHourlySeries(nil), convey.ShouldBeNil)
	})
}

func TestPlanner(t *testing.T) {
	cfg := models.DefaultConfig()
	planner := forecast.NewPlanner(cfg)

	convey.Convey("Given forecast points across the demand range", t, func() {
		hour := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
		points := []models.ForecastPoint{
			{Timestamp: hour, Ensemble: 0},
			{Timestamp: hour.Add(time.Hour), Ensemble: 0.4},
			{Timestamp: hour.Add(2 * time.Hour), Ensemble: 10},
			{Timestamp: hour.Add(3 * time.Hour), Ensemble: 47},
		}

		plan := planner.Plan(points)

		convey.Convey("Then zero demand needs nobody", func() {
			convey.So(plan[0].PrepStaff, convey.ShouldEqual, 0)
			convey.So(plan[0].Drivers, convey.ShouldEqual, 0)
		})

		convey.Convey("Then a trickle of demand is floored at the minimum", func() {
			convey.So(plan[1].PrepStaff, convey.ShouldEqual, cfg.MinStaffPerHour)
			convey.So(plan[1].Drivers, convey.ShouldEqual, cfg.MinStaffPerHour)
		})

		convey.Convey("Then headcounts round up against the ratios", func() {
			convey.So(plan[2].PrepStaff, convey.ShouldEqual, 1)
			convey.So(plan[2].Drivers, convey.ShouldEqual, 2)
			convey.So(plan[3].PrepStaff, convey.ShouldEqual, 5)
			convey.So(plan[3].Drivers, convey.ShouldEqual, 10)
		})

		convey.Convey("Then headcounts never decrease as demand grows", func() {
			for i := 1; i < len(plan); i++ {
				convey.So(plan[i].PrepStaff, convey.ShouldBeGreaterThanOrEqualTo, plan[i-1].PrepStaff)
				convey.So(plan[i].Drivers, convey.ShouldBeGreaterThanOrEqualTo, plan[i-1].Drivers)
			}
		})
	})
}
