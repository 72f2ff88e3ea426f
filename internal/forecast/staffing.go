package forecast

import (
	"math"

	"github.com/pizzaops/opsight/internal/models"
)

// Planner translates hourly demand forecasts into prep-staff and driver
// headcounts. Ratios and the per-hour floor come from configuration.
type Planner struct {
	cfg *models.Config
}

func NewPlanner(cfg *models.Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan produces one recommendation per forecast point. Headcounts round up,
// and any hour with non-zero predicted demand is floored at the configured
// minimum so a trickle of orders never leaves the store unstaffed.
func (p *Planner) Plan(points []models.ForecastPoint) []models.StaffingRecommendation {
	out := make([]models.StaffingRecommendation, 0, len(points))
	for _, pt := range points {
		demand := math.Max(0, pt.Ensemble)
		rec := models.StaffingRecommendation{
			Hour:            pt.Timestamp,
			PredictedOrders: demand,
			PrepStaff:       headcount(demand, p.cfg.OrdersPerPrepStaff, p.cfg.MinStaffPerHour),
			Drivers:         headcount(demand, p.cfg.OrdersPerDriver, p.cfg.MinStaffPerHour),
		}
		out = append(out, rec)
	}
	return out
}

func headcount(demand, perStaff float64, floor int) int {
	if demand <= 0 {
		return 0
	}
	n := int(math.Ceil(demand / perStaff))
	if n < floor {
		n = floor
	}
	return n
}
