package complaint_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pizzaops/opsight/internal/complaint"
	"github.com/pizzaops/opsight/internal/factories"
	"github.com/pizzaops/opsight/internal/features"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/smartystreets/goconvey/convey"
)

func trainingRows(t *testing.T, cfg *models.Config, count int, scenario factories.Scenario) []models.FeatureRow {
	t.Helper()
	factory := factories.NewOrderFactory(cfg, scenario, 23)
	records := factory.CreateHistory(count, 28, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC))
	rows, err := features.Engineer(records, cfg)
	if err != nil {
		t.Fatalf("engineering features: %v", err)
	}
	return rows
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func TestTrain_InsufficientPositives(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a history with no complaints at all", t, func() {
		rows := trainingRows(t, cfg, 300, factories.Scenario{BaseComplaintRate: 0})
		model := complaint.NewModel(cfg)

		_, err := model.Train(rows)

		convey.Convey("Then training refuses with an insufficient-data error", func() {
			var insufficient *models.InsufficientDataError
			convey.So(errors.As(err, &insufficient), convey.ShouldBeTrue)
			convey.So(insufficient.Needed, convey.ShouldEqual, cfg.MinComplaintPositives)
			convey.So(insufficient.Got, convey.ShouldEqual, 0)
			convey.So(model.State(), convey.ShouldEqual, complaint.StateUntrained)
		})
	})

	convey.Convey("Given a trained model hit with degenerate new data", t, func() {
		model := complaint.NewModel(cfg)
		good := trainingRows(t, cfg, 2000, factories.DefaultScenario())
		_, err := model.Train(good)
		convey.So(err, convey.ShouldBeNil)

		bad := trainingRows(t, cfg, 100, factories.Scenario{BaseComplaintRate: 0})
		_, err = model.Train(bad)

		convey.Convey("Then the old artifact survives but is marked stale", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(model.State(), convey.ShouldEqual, complaint.StateTrained)
			convey.So(model.Stale(), convey.ShouldBeTrue)
		})
	})
}

func TestTrain_MetricsAndPrediction(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a trained model on a realistic history", t, func() {
		rows := trainingRows(t, cfg, 2500, factories.DefaultScenario())
		model := complaint.NewModel(cfg)

		metrics, err := model.Train(rows)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then metrics describe the dataset", func() {
			convey.So(metrics.NSamples, convey.ShouldEqual, len(rows))
			convey.So(metrics.NComplaints, convey.ShouldBeGreaterThanOrEqualTo, cfg.MinComplaintPositives)
			convey.So(metrics.AUCMean, convey.ShouldBeGreaterThan, 0.5)
			convey.So(metrics.F1Mean, convey.ShouldBeBetweenOrEqual, 0, 1)
		})

		convey.Convey("Then probabilities stay in (0, 1)", func() {
			probs, err := model.PredictProba(rows[:50])
			convey.So(err, convey.ShouldBeNil)
			for _, p := range probs {
				convey.So(p, convey.ShouldBeBetween, 0, 1)
			}
		})
	})
}

func TestExplain_AdditiveAttributions(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a trained model", t, func() {
		rows := trainingRows(t, cfg, 2000, factories.DefaultScenario())
		model := complaint.NewModel(cfg)
		_, err := model.Train(rows)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then contributions plus bias reconstruct the raw score", func() {
			for i := 0; i < 20; i++ {
				score, err := model.Explain(&rows[i])
				convey.So(err, convey.ShouldBeNil)

				sum := score.Bias
				for _, c := range score.Contributions {
					sum += c.Contribution
				}
				convey.So(sum, convey.ShouldAlmostEqual, logit(score.Probability), 1e-6)
			}
		})

		convey.Convey("Then contributions are ranked by absolute magnitude", func() {
			score, err := model.Explain(&rows[0])
			convey.So(err, convey.ShouldBeNil)
			for i := 1; i < len(score.Contributions); i++ {
				convey.So(math.Abs(score.Contributions[i].Contribution),
					convey.ShouldBeLessThanOrEqualTo,
					math.Abs(score.Contributions[i-1].Contribution))
			}
		})
	})
}

func TestPredict_UnseenCategoricals(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a trained model and an order from a brand-new driver", t, func() {
		rows := trainingRows(t, cfg, 2000, factories.DefaultScenario())
		model := complaint.NewModel(cfg)
		_, err := model.Train(rows)
		convey.So(err, convey.ShouldBeNil)

		unseen := rows[0]
		unseen.DeliveryDriver = "driver-never-seen-before"
		unseen.Stylist = "stylist-never-seen-before"

		probs, err := model.PredictProba([]models.FeatureRow{unseen})

		convey.Convey("Then scoring still succeeds with a valid probability", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(probs[0], convey.ShouldBeBetween, 0, 1)
			convey.So(math.IsNaN(probs[0]), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given an untrained model", t, func() {
		model := complaint.NewModel(cfg)
		_, err := model.PredictProba(nil)

		convey.Convey("Then prediction fails with a training error", func() {
			var trainErr *models.ModelTrainingError
			convey.So(errors.As(err, &trainErr), convey.ShouldBeTrue)
		})
	})
}

func TestRootCauseMatrix(t *testing.T) {
	convey.Convey("Given complaints split across reasons and timeliness", t, func() {
		mk := func(reason string, onTime, complained bool) models.FeatureRow {
			return models.FeatureRow{
				OrderRecord: models.OrderRecord{Complaint: complained, ComplaintReason: reason},
				OnTime:      onTime,
			}
		}
		rows := []models.FeatureRow{
			mk("cold food", true, true),
			mk("cold food", true, true),
			mk("late delivery", false, true),
			mk("", false, true),
			mk("", true, false), // no complaint, must not count
		}

		matrix := complaint.RootCauseMatrix(rows)

		convey.Convey("Then cell percentages sum to 100", func() {
			convey.So(matrix.TotalComplaints, convey.ShouldEqual, 4)
			var sum float64
			for _, cell := range matrix.Cells {
				sum += cell.Pct
			}
			convey.So(sum, convey.ShouldAlmostEqual, 100, 1e-9)
		})

		convey.Convey("Then blank reasons fall into the other bucket", func() {
			found := false
			for _, cell := range matrix.Cells {
				if cell.Reason == "other" {
					found = true
				}
			}
			convey.So(found, convey.ShouldBeTrue)
		})

		convey.Convey("Then the on-time complaint share is computed over complaints only", func() {
			convey.So(matrix.OnTimeComplaintPct, convey.ShouldAlmostEqual, 50, 1e-9)
		})
	})

	convey.Convey("Given no complaints", t, func() {
		matrix := complaint.RootCauseMatrix([]models.FeatureRow{{}})
		convey.So(matrix.TotalComplaints, convey.ShouldEqual, 0)
		convey.So(matrix.Cells, convey.ShouldBeEmpty)
	})
}

func TestGlobalImportance(t *testing.T) {
	cfg := models.DefaultConfig()

	convey.Convey("Given a trained model", t, func() {
		rows := trainingRows(t, cfg, 2000, factories.DefaultScenario())
		model := complaint.NewModel(cfg)
		_, err := model.Train(rows)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then importance comes back ranked and capped at topN", func() {
			importance := model.GlobalImportance(5)
			convey.So(len(importance), convey.ShouldEqual, 5)
			for i := 1; i < len(importance); i++ {
				convey.So(importance[i].Contribution, convey.ShouldBeLessThanOrEqualTo, importance[i-1].Contribution)
			}
			for _, f := range importance {
				convey.So(f.Feature, convey.ShouldNotBeEmpty)
				convey.So(f.Contribution, convey.ShouldBeGreaterThanOrEqualTo, 0)
			}
		})

		convey.Convey("Then a non-positive topN returns the full ranking", func() {
			all := model.GlobalImportance(0)
			convey.So(len(all), convey.ShouldBeGreaterThan, 5)
		})
	})
}
