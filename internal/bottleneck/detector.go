// Package bottleneck does process mining over engineered order rows: stage
// percentile analysis against configured benchmarks, hour-of-day strain
// detection, delivery-area comparisons and oven-temperature correlation.
package bottleneck

import (
	"fmt"
	"sort"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// severeRatio is the p95-to-benchmark cutoff separating moderate from
// severe findings.
const severeRatio = 1.25

type Detector struct {
	cfg *models.Config
}

func NewDetector(cfg *models.Config) *Detector {
	return &Detector{cfg: cfg}
}

// StageBreakdown aggregates duration statistics per prep stage plus
// delivery.
func (d *Detector) StageBreakdown(rows []models.FeatureRow) []models.StageStats {
	out := make([]models.StageStats, 0, len(models.PipelineStages))
	for _, stage := range models.PipelineStages {
		durations := stageDurations(rows, stage)
		if len(durations) == 0 {
			continue
		}
		bm := d.cfg.StageBenchmarks[stage]
		out = append(out, models.StageStats{
			Stage:  stage,
			Count:  len(durations),
			Mean:   stats.Mean(durations),
			Median: stats.Median(durations),
			Std:    stats.Std(durations),
			Min:    stats.Percentile(durations, 0),
			Max:    stats.Percentile(durations, 100),
			P25:    stats.Percentile(durations, 25),
			P75:    stats.Percentile(durations, 75),
			P95:    stats.Percentile(durations, 95),
			Target: bm.Target,
			P95Max: bm.P95Max,
		})
	}
	return out
}

// DetectBottlenecks compares each stage's observed p95 against its
// benchmark ceiling. Findings come back sorted severe first, ties broken by
// descending p95-to-benchmark ratio. Stages without a configured benchmark
// are skipped.
func (d *Detector) DetectBottlenecks(rows []models.FeatureRow, benchmarks map[string]models.StageBenchmark) []models.BottleneckFinding {
	var findings []models.BottleneckFinding
	for _, stage := range models.PrepStages {
		bm, ok := benchmarks[stage]
		if !ok || bm.P95Max <= 0 {
			continue
		}
		durations := stageDurations(rows, stage)
		if len(durations) == 0 {
			continue
		}
		p95 := stats.Percentile(durations, 95)
		ratio := p95 / bm.P95Max

		var over int
		for _, v := range durations {
			if v > bm.P95Max {
				over++
			}
		}

		findings = append(findings, models.BottleneckFinding{
			Stage:         stage,
			ObservedP95:   p95,
			BenchmarkP95:  bm.P95Max,
			Ratio:         ratio,
			Severity:      severityFor(ratio),
			PeakHours:     d.strainedHours(rows, stage, bm.P95Max),
			AffectedPct:   float64(over) / float64(len(durations)) * 100,
			ExcessMinutes: p95 - bm.P95Max,
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

func severityFor(ratio float64) models.Severity {
	switch {
	case ratio <= 1:
		return models.SeverityNone
	case ratio <= severeRatio:
		return models.SeverityModerate
	default:
		return models.SeveritySevere
	}
}

// strainedHours returns the hours whose local p95 exceeds the stage's global
// benchmark ceiling, sorted ascending.
func (d *Detector) strainedHours(rows []models.FeatureRow, stage string, ceiling float64) []int {
	byHour := make(map[int][]float64)
	for i := range rows {
		byHour[rows[i].HourOfDay] = append(byHour[rows[i].HourOfDay], rows[i].StageDuration(stage))
	}
	var hours []int
	for hour, durations := range byHour {
		if stats.Percentile(durations, 95) > ceiling {
			hours = append(hours, hour)
		}
	}
	sort.Ints(hours)
	return hours
}

// StageByHour pivots rows into a [hour][stage] mean-duration matrix for
// heatmap consumers.
func (d *Detector) StageByHour(rows []models.FeatureRow) map[int]map[string]float64 {
	sums := make(map[int]map[string]float64)
	counts := make(map[int]int)
	for i := range rows {
		h := rows[i].HourOfDay
		if sums[h] == nil {
			sums[h] = make(map[string]float64)
		}
		for _, stage := range models.PrepStages {
			sums[h][stage] += rows[i].StageDuration(stage)
		}
		counts[h]++
	}

	out := make(map[int]map[string]float64, len(sums))
	for h, stageSums := range sums {
		out[h] = make(map[string]float64, len(stageSums))
		for stage, sum := range stageSums {
			out[h][stage] = sum / float64(counts[h])
		}
	}
	return out
}

// OvenCorrelation analyzes oven temperature against oven duration and
// complaint rates per temperature zone. Rows without a temperature reading
// are excluded. Below the configured minimum sample the result degrades to
// an insufficient-data marker instead of a spurious coefficient.
func (d *Detector) OvenCorrelation(rows []models.FeatureRow) models.OvenCorrelation {
	var temps, durations []float64
	zoneCounts := make(map[models.TempZone]int)
	zoneComplaints := make(map[models.TempZone]int)

	for i := range rows {
		r := &rows[i]
		if r.OvenTemperature == nil || r.OvenTempZone == nil {
			continue
		}
		temps = append(temps, *r.OvenTemperature)
		durations = append(durations, r.OvenTime)
		zoneCounts[*r.OvenTempZone]++
		if r.Complaint {
			zoneComplaints[*r.OvenTempZone]++
		}
	}

	result := models.OvenCorrelation{SampleSize: len(temps)}
	if len(temps) < d.cfg.MinOvenSample {
		result.Reason = fmt.Sprintf("only %d orders carry an oven temperature, need %d", len(temps), d.cfg.MinOvenSample)
		return result
	}

	result.DataSufficient = true
	result.MeanTemp = stats.Mean(temps)
	result.StdTemp = stats.Std(temps)

	if corr, err := stats.Pearson(temps, durations); err == nil {
		result.TempVsDuration = &corr
	}

	result.ComplaintRateByZone = make(map[models.TempZone]float64, len(zoneCounts))
	result.ZoneDistribution = make(map[models.TempZone]float64, len(zoneCounts))
	for zone, count := range zoneCounts {
		result.ComplaintRateByZone[zone] = float64(zoneComplaints[zone]) / float64(count) * 100
		result.ZoneDistribution[zone] = float64(count) / float64(len(temps)) * 100
	}
	return result
}

func stageDurations(rows []models.FeatureRow, stage string) []float64 {
	out := make([]float64, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].StageDuration(stage))
	}
	return out
}
