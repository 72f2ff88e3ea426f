// Package kpi computes the executive summary over engineered order rows:
// headline metrics graded against configured targets, per-driver and
// per-staff scorecards and an order-mode comparison.
package kpi

import (
	"sort"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// Grading bands around a target. A metric inside the band is a warning,
// beyond it a danger.
const (
	warnBandBelow = 0.85
	warnBandAbove = 1.15
)

type Engine struct {
	cfg *models.Config
}

func NewEngine(cfg *models.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Summarize runs every KPI computation over one dataset.
func (e *Engine) Summarize(rows []models.FeatureRow) models.KPISummary {
	return models.KPISummary{
		Overview: e.Overview(rows),
		Drivers:  e.DriverScorecards(rows),
		Staff:    e.StaffScorecards(rows),
		Modes:    e.ModeComparison(rows),
	}
}

// Overview computes the dataset-level headline metrics and grades each
// against its configured target.
func (e *Engine) Overview(rows []models.FeatureRow) models.OverviewKPIs {
	kpis := models.OverviewKPIs{TotalOrders: len(rows)}
	if len(rows) == 0 {
		return kpis
	}

	var prep, process []float64
	peakLoad := make(map[int]int)
	for i := range rows {
		r := &rows[i]
		if r.OnTime {
			kpis.OnTimeCount++
		}
		if r.Complaint {
			kpis.ComplaintCount++
		}
		prep = append(prep, r.TotalPrepTime)
		process = append(process, r.TotalProcessTime)
		if r.IsPeakHour {
			peakLoad[r.HourOfDay]++
		}
	}

	n := float64(len(rows))
	kpis.OnTimePct = gradeHigher(float64(kpis.OnTimeCount)/n*100, e.cfg.OnTimePctTarget)
	kpis.ComplaintRate = gradeLower(float64(kpis.ComplaintCount)/n*100, e.cfg.ComplaintRateTarget)
	kpis.AvgDeliveryMin = gradeLower(stats.Mean(process), e.cfg.AvgDeliveryMinTarget)
	kpis.AvgPrepMin = gradeLower(stats.Mean(prep), e.cfg.AvgPrepMinTarget)

	// Busiest peak hour, smallest hour on ties.
	for hour, load := range peakLoad {
		if load > kpis.PeakHourLoad || (load == kpis.PeakHourLoad && kpis.PeakHour != nil && hour < *kpis.PeakHour) {
			h := hour
			kpis.PeakHour = &h
			kpis.PeakHourLoad = load
		}
	}
	return kpis
}

// DriverScorecards aggregates delivery metrics per driver. Drivers with
// fewer deliveries than the configured minimum are dropped so a single
// lucky run never tops the board. Sorted fastest average first.
func (e *Engine) DriverScorecards(rows []models.FeatureRow) []models.DriverScorecard {
	type acc struct {
		durations  []float64
		onTime     int
		complaints int
		areas      map[string]struct{}
	}
	byDriver := make(map[string]*acc)
	for i := range rows {
		r := &rows[i]
		if r.DeliveryDriver == "" {
			continue
		}
		a := byDriver[r.DeliveryDriver]
		if a == nil {
			a = &acc{areas: make(map[string]struct{})}
			byDriver[r.DeliveryDriver] = a
		}
		a.durations = append(a.durations, r.DeliveryDuration)
		if r.OnTime {
			a.onTime++
		}
		if r.Complaint {
			a.complaints++
		}
		a.areas[r.DeliveryArea] = struct{}{}
	}

	cards := make([]models.DriverScorecard, 0, len(byDriver))
	for driver, a := range byDriver {
		n := len(a.durations)
		if n < e.cfg.MinStaffOrders {
			continue
		}
		cards = append(cards, models.DriverScorecard{
			Driver:        driver,
			Deliveries:    n,
			AvgMinutes:    stats.Mean(a.durations),
			P95Minutes:    stats.Percentile(a.durations, 95),
			OnTimePct:     float64(a.onTime) / float64(n) * 100,
			ComplaintRate: float64(a.complaints) / float64(n) * 100,
			AreasServed:   len(a.areas),
		})
	}

	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].AvgMinutes != cards[j].AvgMinutes {
			return cards[i].AvgMinutes < cards[j].AvgMinutes
		}
		return cards[i].Driver < cards[j].Driver
	})
	return cards
}

// StaffScorecards aggregates each in-store role's stage time per staff
// member, gated on the same minimum order count as drivers. Cards come back
// grouped by pipeline order, fastest average first within a role.
func (e *Engine) StaffScorecards(rows []models.FeatureRow) []models.StaffScorecard {
	type key struct {
		stage string
		name  string
	}
	type acc struct {
		durations  []float64
		complaints int
	}
	byStaff := make(map[key]*acc)
	for i := range rows {
		r := &rows[i]
		for _, stage := range models.PrepStages {
			name := staffFor(&r.OrderRecord, stage)
			if name == "" {
				continue
			}
			k := key{stage: stage, name: name}
			a := byStaff[k]
			if a == nil {
				a = &acc{}
				byStaff[k] = a
			}
			a.durations = append(a.durations, r.StageDuration(stage))
			if r.Complaint {
				a.complaints++
			}
		}
	}

	cards := make([]models.StaffScorecard, 0, len(byStaff))
	for k, a := range byStaff {
		n := len(a.durations)
		if n < e.cfg.MinStaffOrders {
			continue
		}
		cards = append(cards, models.StaffScorecard{
			Role:            k.stage,
			Name:            k.name,
			Orders:          n,
			AvgStageMinutes: stats.Mean(a.durations),
			P95StageMinutes: stats.Percentile(a.durations, 95),
			ComplaintRate:   float64(a.complaints) / float64(n) * 100,
		})
	}

	rank := make(map[string]int, len(models.PrepStages))
	for i, stage := range models.PrepStages {
		rank[stage] = i
	}
	sort.SliceStable(cards, func(i, j int) bool {
		if rank[cards[i].Role] != rank[cards[j].Role] {
			return rank[cards[i].Role] < rank[cards[j].Role]
		}
		if cards[i].AvgStageMinutes != cards[j].AvgStageMinutes {
			return cards[i].AvgStageMinutes < cards[j].AvgStageMinutes
		}
		return cards[i].Name < cards[j].Name
	})
	return cards
}

// ModeComparison compares outcomes across order intake channels, sorted by
// mode name.
func (e *Engine) ModeComparison(rows []models.FeatureRow) []models.OrderModeStats {
	type acc struct {
		process    []float64
		delivery   []float64
		complaints int
	}
	byMode := make(map[string]*acc)
	for i := range rows {
		r := &rows[i]
		a := byMode[r.OrderMode]
		if a == nil {
			a = &acc{}
			byMode[r.OrderMode] = a
		}
		a.process = append(a.process, r.TotalProcessTime)
		a.delivery = append(a.delivery, r.DeliveryDuration)
		if r.Complaint {
			a.complaints++
		}
	}

	out := make([]models.OrderModeStats, 0, len(byMode))
	for mode, a := range byMode {
		n := len(a.process)
		out = append(out, models.OrderModeStats{
			Mode:               mode,
			Orders:             n,
			AvgTotalMinutes:    stats.Mean(a.process),
			AvgDeliveryMinutes: stats.Mean(a.delivery),
			ComplaintRate:      float64(a.complaints) / float64(n) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mode < out[j].Mode })
	return out
}

// gradeHigher grades a metric where exceeding the target is good.
func gradeHigher(value, target float64) models.KPIValue {
	status := models.KPIStatusDanger
	switch {
	case value >= target:
		status = models.KPIStatusGood
	case value >= target*warnBandBelow:
		status = models.KPIStatusWarning
	}
	return models.KPIValue{Value: value, Target: target, Status: status}
}

// gradeLower grades a metric where staying under the target is good.
func gradeLower(value, target float64) models.KPIValue {
	status := models.KPIStatusDanger
	switch {
	case value <= target:
		status = models.KPIStatusGood
	case value <= target*warnBandAbove:
		status = models.KPIStatusWarning
	}
	return models.KPIValue{Value: value, Target: target, Status: status}
}

func staffFor(o *models.OrderRecord, stage string) string {
	switch stage {
	case models.StageDoughPrep:
		return o.DoughPrepStaff
	case models.StageStyling:
		return o.Stylist
	case models.StageOven:
		return o.OvenOperator
	case models.StageBoxing:
		return o.Boxer
	}
	return ""
}
