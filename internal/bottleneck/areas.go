package bottleneck

import (
	"sort"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// Ratio cutoffs for a delivery area's mean duration against the fleet mean.
const (
	areaFlagRatio   = 1.2
	areaSevereRatio = 1.4
)

// AreaBottlenecks flags delivery areas running notably slower than the
// fleet-wide mean delivery duration. Worst hours per area are the three
// hours with the highest mean duration for that area.
func (d *Detector) AreaBottlenecks(rows []models.FeatureRow) []models.AreaFinding {
	byArea := make(map[string][]float64)
	var all []float64
	for i := range rows {
		byArea[rows[i].DeliveryArea] = append(byArea[rows[i].DeliveryArea], rows[i].DeliveryDuration)
		all = append(all, rows[i].DeliveryDuration)
	}
	if len(all) == 0 {
		return nil
	}
	fleetMean := stats.Mean(all)
	if fleetMean == 0 {
		return nil
	}

	var findings []models.AreaFinding
	for area, durations := range byArea {
		mean := stats.Mean(durations)
		ratio := mean / fleetMean
		if ratio <= areaFlagRatio {
			continue
		}
		severity := models.SeverityModerate
		if ratio > areaSevereRatio {
			severity = models.SeveritySevere
		}
		findings = append(findings, models.AreaFinding{
			Area:        area,
			MeanMinutes: mean,
			FleetMean:   fleetMean,
			Ratio:       ratio,
			Severity:    severity,
			OrderShare:  float64(len(durations)) / float64(len(all)) * 100,
			WorstHours:  d.worstHoursForArea(rows, area),
		})
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		}
		return findings[i].Ratio > findings[j].Ratio
	})
	return findings
}

func (d *Detector) worstHoursForArea(rows []models.FeatureRow, area string) []int {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i := range rows {
		if rows[i].DeliveryArea != area {
			continue
		}
		sums[rows[i].HourOfDay] += rows[i].DeliveryDuration
		counts[rows[i].HourOfDay]++
	}

	type hourMean struct {
		hour int
		mean float64
	}
	means := make([]hourMean, 0, len(sums))
	for h, sum := range sums {
		means = append(means, hourMean{h, sum / float64(counts[h])})
	}
	sort.Slice(means, func(i, j int) bool { return means[i].mean > means[j].mean })

	n := 3
	if len(means) < n {
		n = len(means)
	}
	hours := make([]int, 0, n)
	for _, hm := range means[:n] {
		hours = append(hours, hm.hour)
	}
	sort.Ints(hours)
	return hours
}

// Variability reports coefficient-of-variation per stage plus the most
// variable stage and hour. Degrades to an insufficient-data marker on
// degenerate samples.
func (d *Detector) Variability(rows []models.FeatureRow) models.VariabilityReport {
	report := models.VariabilityReport{StageCVs: make(map[string]float64)}

	var prep []float64
	for i := range rows {
		prep = append(prep, rows[i].TotalPrepTime)
	}
	cv, err := stats.CoefficientOfVariation(prep)
	if err != nil {
		report.Reason = "total prep time has zero mean"
		return report
	}
	report.DataSufficient = true
	report.PrepTimeCV = cv

	worst := ""
	for _, stage := range models.PrepStages {
		scv, err := stats.CoefficientOfVariation(stageDurations(rows, stage))
		if err != nil {
			continue
		}
		report.StageCVs[stage] = scv
		if worst == "" || scv > report.StageCVs[worst] {
			worst = stage
		}
	}
	report.MostVariableStage = worst

	byHour := make(map[int][]float64)
	for i := range rows {
		byHour[rows[i].HourOfDay] = append(byHour[rows[i].HourOfDay], rows[i].TotalProcessTime)
	}
	var worstHour int
	var worstCV float64
	for hour, values := range byHour {
		hcv, err := stats.CoefficientOfVariation(values)
		if err != nil {
			continue
		}
		if hcv > worstCV {
			worstCV = hcv
			worstHour = hour
		}
	}
	report.MostVariableHour = worstHour
	return report
}

// StageContributions averages each stage's share of total prep time across
// rows with a defined share.
func (d *Detector) StageContributions(rows []models.FeatureRow) []models.StageContribution {
	out := make([]models.StageContribution, 0, len(models.PrepStages))
	for _, stage := range models.PrepStages {
		var shares, durations []float64
		for i := range rows {
			durations = append(durations, rows[i].StageDuration(stage))
			if s := rows[i].StageShare(stage); s != nil {
				shares = append(shares, *s)
			}
		}
		if len(shares) == 0 {
			continue
		}
		out = append(out, models.StageContribution{
			Stage:           stage,
			AvgMinutes:      stats.Mean(durations),
			ContributionPct: stats.Mean(shares),
		})
	}
	return out
}
