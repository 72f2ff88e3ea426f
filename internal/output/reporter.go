package output

import (
	"encoding/json"
	"fmt"

	"github.com/pizzaops/opsight/internal/loader"
	"github.com/pizzaops/opsight/internal/models"
)

// Topic names for exported artifacts. File destinations turn these into
// file names, the Kafka destination into topic suffixes.
const (
	TopicFeatureRows   = "feature_rows"
	TopicBottlenecks   = "bottleneck_findings"
	TopicStageStats    = "stage_breakdown"
	TopicKPIOverview   = "kpi_overview"
	TopicDriverScores  = "driver_scorecards"
	TopicStaffScores   = "staff_scorecards"
	TopicOrderModes    = "order_mode_comparison"
	TopicAreas         = "area_findings"
	TopicOven          = "oven_correlation"
	TopicVariability   = "process_variability"
	TopicContributions = "stage_contributions"
	TopicRiskScores    = "complaint_risk_scores"
	TopicImportance    = "feature_importance"
	TopicRootCause     = "root_cause_matrix"
	TopicForecast      = "demand_forecast"
	TopicStaffing      = "staffing_plan"
	TopicModelScores   = "model_scores"
	TopicLoadReport    = "load_report"
)

// Reporter serializes analysis artifacts and fans them out to a
// destination. Each Write method sends one JSON record per row.
type Reporter struct {
	dest Destination
}

func NewReporter(dest Destination) *Reporter {
	return &Reporter{dest: dest}
}

func (r *Reporter) writeEach(topic string, n int, at func(int) any) error {
	for i := 0; i < n; i++ {
		msg, err := json.Marshal(at(i))
		if err != nil {
			return fmt.Errorf("failed to marshal %s record: %w", topic, err)
		}
		if err := r.dest.WriteMessage(topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) writeOne(topic string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", topic, err)
	}
	return r.dest.WriteMessage(topic, msg)
}

func (r *Reporter) WriteFeatureRows(rows []models.FeatureRow) error {
	return r.writeEach(TopicFeatureRows, len(rows), func(i int) any { return rows[i] })
}

func (r *Reporter) WriteBottlenecks(findings []models.BottleneckFinding) error {
	return r.writeEach(TopicBottlenecks, len(findings), func(i int) any { return findings[i] })
}

func (r *Reporter) WriteStageBreakdown(breakdown []models.StageStats) error {
	return r.writeEach(TopicStageStats, len(breakdown), func(i int) any { return breakdown[i] })
}

// WriteKPISummary fans the executive summary out across one topic per
// artifact: the overview as a single record, scorecards and the mode
// comparison as one record per row.
func (r *Reporter) WriteKPISummary(summary models.KPISummary) error {
	if err := r.writeOne(TopicKPIOverview, summary.Overview); err != nil {
		return err
	}
	if err := r.writeEach(TopicDriverScores, len(summary.Drivers), func(i int) any { return summary.Drivers[i] }); err != nil {
		return err
	}
	if err := r.writeEach(TopicStaffScores, len(summary.Staff), func(i int) any { return summary.Staff[i] }); err != nil {
		return err
	}
	return r.writeEach(TopicOrderModes, len(summary.Modes), func(i int) any { return summary.Modes[i] })
}

func (r *Reporter) WriteVariability(report models.VariabilityReport) error {
	return r.writeOne(TopicVariability, report)
}

func (r *Reporter) WriteStageContributions(contributions []models.StageContribution) error {
	return r.writeEach(TopicContributions, len(contributions), func(i int) any { return contributions[i] })
}

func (r *Reporter) WriteAreaFindings(findings []models.AreaFinding) error {
	return r.writeEach(TopicAreas, len(findings), func(i int) any { return findings[i] })
}

func (r *Reporter) WriteOvenCorrelation(corr models.OvenCorrelation) error {
	return r.writeOne(TopicOven, corr)
}

func (r *Reporter) WriteRiskScores(scores []models.ComplaintRiskScore) error {
	return r.writeEach(TopicRiskScores, len(scores), func(i int) any { return scores[i] })
}

func (r *Reporter) WriteFeatureImportance(importance []models.FeatureContribution) error {
	return r.writeEach(TopicImportance, len(importance), func(i int) any { return importance[i] })
}

func (r *Reporter) WriteRootCause(matrix models.RootCauseMatrix) error {
	return r.writeOne(TopicRootCause, matrix)
}

func (r *Reporter) WriteForecast(points []models.ForecastPoint) error {
	return r.writeEach(TopicForecast, len(points), func(i int) any { return points[i] })
}

func (r *Reporter) WriteStaffingPlan(plan []models.StaffingRecommendation) error {
	return r.writeEach(TopicStaffing, len(plan), func(i int) any { return plan[i] })
}

func (r *Reporter) WriteModelScores(scores []models.ModelScore) error {
	return r.writeEach(TopicModelScores, len(scores), func(i int) any { return scores[i] })
}

func (r *Reporter) WriteLoadReport(report *loader.Report) error {
	return r.writeOne(TopicLoadReport, report)
}

func (r *Reporter) Close() error {
	return r.dest.Close()
}
