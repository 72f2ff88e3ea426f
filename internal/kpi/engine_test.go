package kpi_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/pizzaops/opsight/internal/features"
	"github.com/pizzaops/opsight/internal/kpi"
	"github.com/pizzaops/opsight/internal/models"
	"github.com/smartystreets/goconvey/convey"
)

func makeRows(t *testing.T, cfg *models.Config, records []models.OrderRecord) []models.FeatureRow {
	t.Helper()
	rows, err := features.Engineer(records, cfg)
	if err != nil {
		t.Fatalf("engineering features: %v", err)
	}
	return rows
}

// kpiOrder has a 14 minute prep pipeline, so anything delivered within 11
// minutes lands on time.
func kpiOrder(i, hour int, delivery float64, mode, area, driver string, complaint bool) models.OrderRecord {
	o := models.OrderRecord{
		OrderID:          fmt.Sprintf("ord-%03d", i),
		PlacedAt:         time.Date(2026, 3, 2, hour, i%50, 0, 0, time.UTC),
		OrderMode:        mode,
		DeliveryArea:     area,
		DoughPrepTime:    3,
		StylingTime:      2,
		OvenTime:         8,
		BoxingTime:       1,
		DeliveryDuration: delivery,
		DoughPrepStaff:   "maya",
		OvenOperator:     "otto",
		DeliveryDriver:   driver,
		Complaint:        complaint,
	}
	if complaint {
		o.ComplaintReason = "Late delivery"
	}
	return o
}

// shopHistory is 9 orders: a fast driver, a slow one, and one below the
// scorecard minimum.
func shopHistory() []models.OrderRecord {
	records := []models.OrderRecord{
		kpiOrder(1, 12, 8, "app", "A", "ana", false),
		kpiOrder(2, 12, 10, "app", "A", "ana", false),
		kpiOrder(3, 12, 10, "app", "B", "ana", false),
		kpiOrder(4, 12, 12, "app", "B", "ana", true),
		kpiOrder(5, 13, 20, "phone", "C", "bo", false),
		kpiOrder(6, 13, 22, "phone", "C", "bo", false),
		kpiOrder(7, 13, 24, "phone", "C", "bo", false),
		kpiOrder(8, 9, 9, "app", "A", "cam", false),
		kpiOrder(9, 9, 10, "app", "A", "cam", false),
	}
	for i := 7; i < 9; i++ {
		records[i].DoughPrepStaff = "leo"
	}
	return records
}

func TestOverview(t *testing.T) {
	cfg := models.DefaultConfig()
	engine := kpi.NewEngine(cfg)

	convey.Convey("Given a mixed shop history", t, func() {
		rows := makeRows(t, cfg, shopHistory())
		kpis := engine.Overview(rows)

		convey.Convey("Then counts and rates follow the rows", func() {
			convey.So(kpis.TotalOrders, convey.ShouldEqual, 9)
			convey.So(kpis.OnTimeCount, convey.ShouldEqual, 5)
			convey.So(kpis.OnTimePct.Value, convey.ShouldAlmostEqual, 100*5.0/9, 1e-9)
			convey.So(kpis.ComplaintCount, convey.ShouldEqual, 1)
			convey.So(kpis.ComplaintRate.Value, convey.ShouldAlmostEqual, 100*1.0/9, 1e-9)
			convey.So(kpis.AvgPrepMin.Value, convey.ShouldAlmostEqual, 14, 1e-9)
			convey.So(kpis.AvgDeliveryMin.Value, convey.ShouldAlmostEqual, 14+125.0/9, 1e-9)
		})

		convey.Convey("Then each metric is graded against its target", func() {
			convey.So(kpis.OnTimePct.Target, convey.ShouldEqual, cfg.OnTimePctTarget)
			convey.So(kpis.OnTimePct.Status, convey.ShouldEqual, models.KPIStatusDanger)
			convey.So(kpis.ComplaintRate.Status, convey.ShouldEqual, models.KPIStatusDanger)
			convey.So(kpis.AvgPrepMin.Status, convey.ShouldEqual, models.KPIStatusGood)
			convey.So(kpis.AvgDeliveryMin.Status, convey.ShouldEqual, models.KPIStatusWarning)
		})

		convey.Convey("Then the busiest peak hour is reported", func() {
			convey.So(kpis.PeakHour, convey.ShouldNotBeNil)
			convey.So(*kpis.PeakHour, convey.ShouldEqual, 12)
			convey.So(kpis.PeakHourLoad, convey.ShouldEqual, 4)
		})
	})

	convey.Convey("Given a shop hitting every target", t, func() {
		var records []models.OrderRecord
		for i := 0; i < 5; i++ {
			records = append(records, kpiOrder(i, 12, 5, "app", "A", "ana", false))
		}
		kpis := engine.Overview(makeRows(t, cfg, records))

		convey.So(kpis.OnTimePct.Status, convey.ShouldEqual, models.KPIStatusGood)
		convey.So(kpis.ComplaintRate.Status, convey.ShouldEqual, models.KPIStatusGood)
		convey.So(kpis.AvgDeliveryMin.Status, convey.ShouldEqual, models.KPIStatusGood)
		convey.So(kpis.AvgPrepMin.Status, convey.ShouldEqual, models.KPIStatusGood)
	})

	convey.Convey("Given no rows", t, func() {
		kpis := engine.Overview(nil)

		convey.So(kpis.TotalOrders, convey.ShouldEqual, 0)
		convey.So(kpis.PeakHour, convey.ShouldBeNil)
	})
}

func TestDriverScorecards(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.MinStaffOrders = 3
	engine := kpi.NewEngine(cfg)

	convey.Convey("Given three drivers, one below the minimum order count", t, func() {
		rows := makeRows(t, cfg, shopHistory())
		cards := engine.DriverScorecards(rows)

		convey.Convey("Then the short-tenured driver is excluded", func() {
			convey.So(cards, convey.ShouldHaveLength, 2)
		})

		convey.Convey("Then cards come back fastest average first", func() {
			convey.So(cards[0].Driver, convey.ShouldEqual, "ana")
			convey.So(cards[0].Deliveries, convey.ShouldEqual, 4)
			convey.So(cards[0].AvgMinutes, convey.ShouldAlmostEqual, 10, 1e-9)
			convey.So(cards[0].P95Minutes, convey.ShouldAlmostEqual, 11.7, 1e-9)
			convey.So(cards[0].OnTimePct, convey.ShouldAlmostEqual, 75, 1e-9)
			convey.So(cards[0].ComplaintRate, convey.ShouldAlmostEqual, 25, 1e-9)
			convey.So(cards[0].AreasServed, convey.ShouldEqual, 2)

			convey.So(cards[1].Driver, convey.ShouldEqual, "bo")
			convey.So(cards[1].AvgMinutes, convey.ShouldAlmostEqual, 22, 1e-9)
			convey.So(cards[1].OnTimePct, convey.ShouldEqual, 0)
			convey.So(cards[1].AreasServed, convey.ShouldEqual, 1)
		})
	})
}

func TestStaffScorecards(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.MinStaffOrders = 3
	engine := kpi.NewEngine(cfg)

	convey.Convey("Given staffed dough prep and oven stages", t, func() {
		rows := makeRows(t, cfg, shopHistory())
		cards := engine.StaffScorecards(rows)

		convey.Convey("Then staff below the minimum are excluded and cards follow pipeline order", func() {
			convey.So(cards, convey.ShouldHaveLength, 2)
			convey.So(cards[0].Role, convey.ShouldEqual, models.StageDoughPrep)
			convey.So(cards[0].Name, convey.ShouldEqual, "maya")
			convey.So(cards[0].Orders, convey.ShouldEqual, 7)
			convey.So(cards[0].AvgStageMinutes, convey.ShouldAlmostEqual, 3, 1e-9)
			convey.So(cards[0].ComplaintRate, convey.ShouldAlmostEqual, 100*1.0/7, 1e-9)

			convey.So(cards[1].Role, convey.ShouldEqual, models.StageOven)
			convey.So(cards[1].Name, convey.ShouldEqual, "otto")
			convey.So(cards[1].Orders, convey.ShouldEqual, 9)
			convey.So(cards[1].AvgStageMinutes, convey.ShouldAlmostEqual, 8, 1e-9)
		})
	})
}

func TestModeComparison(t *testing.T) {
	cfg := models.DefaultConfig()
	engine := kpi.NewEngine(cfg)

	convey.Convey("Given app and phone orders", t, func() {
		rows := makeRows(t, cfg, shopHistory())
		modes := engine.ModeComparison(rows)

		convey.So(modes, convey.ShouldHaveLength, 2)
		convey.So(modes[0].Mode, convey.ShouldEqual, "app")
		convey.So(modes[0].Orders, convey.ShouldEqual, 6)
		convey.So(modes[0].ComplaintRate, convey.ShouldAlmostEqual, 100*1.0/6, 1e-9)
		convey.So(modes[1].Mode, convey.ShouldEqual, "phone")
		convey.So(modes[1].Orders, convey.ShouldEqual, 3)
		convey.So(modes[1].AvgDeliveryMinutes, convey.ShouldAlmostEqual, 22, 1e-9)
		convey.So(modes[1].AvgTotalMinutes, convey.ShouldAlmostEqual, 36, 1e-9)
	})
}
