// Package features derives the computed columns every downstream engine
// works from. The transform is pure: same records and config in, same rows
// out, no external state touched.
package features

import (
	"math"
	"time"

	"github.com/pizzaops/opsight/internal/models"
)

// Engineer turns validated order records into feature rows. The only error
// condition is a structural contract violation (a required duration carrying
// NaN), which upstream validation should have caught already.
func Engineer(records []models.OrderRecord, cfg *models.Config) ([]models.FeatureRow, error) {
	rows := make([]models.FeatureRow, 0, len(records))
	for i := range records {
		row, err := engineerOne(&records[i], cfg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func engineerOne(rec *models.OrderRecord, cfg *models.Config) (models.FeatureRow, error) {
	for _, stage := range models.PipelineStages {
		if math.IsNaN(rec.StageDuration(stage)) {
			return models.FeatureRow{}, &models.FeatureError{OrderID: rec.OrderID, Field: stage}
		}
	}

	row := models.FeatureRow{OrderRecord: *rec}

	row.TotalPrepTime = rec.DoughPrepTime + rec.StylingTime + rec.OvenTime + rec.BoxingTime
	row.TotalProcessTime = row.TotalPrepTime + rec.DeliveryDuration
	row.OnTime = row.TotalProcessTime <= cfg.DeliveryTargetMinutes

	row.HourOfDay = rec.PlacedAt.Hour()
	row.DayOfWeek = rec.PlacedAt.Weekday()
	row.IsWeekend = row.DayOfWeek == time.Saturday || row.DayOfWeek == time.Sunday
	row.IsPeakHour = cfg.PeakLunch.Contains(row.HourOfDay) || cfg.PeakDinner.Contains(row.HourOfDay)

	row.OvenTempZone = classifyTempZone(rec.OvenTemperature, cfg)
	row.DelayCategory = classifyDelay(row.TotalProcessTime, cfg)

	if row.TotalPrepTime > 0 {
		row.PctDoughPrep = share(rec.DoughPrepTime, row.TotalPrepTime)
		row.PctStyling = share(rec.StylingTime, row.TotalPrepTime)
		row.PctOven = share(rec.OvenTime, row.TotalPrepTime)
		row.PctBoxing = share(rec.BoxingTime, row.TotalPrepTime)
	}

	return row, nil
}

func share(part, total float64) *float64 {
	v := part / total * 100
	return &v
}

// classifyTempZone maps a temperature reading onto the configured band.
// A missing reading stays nil so oven analyses can exclude the row rather
// than treating "unknown" as a fourth zone.
func classifyTempZone(temp *float64, cfg *models.Config) *models.TempZone {
	if temp == nil {
		return nil
	}
	var zone models.TempZone
	switch {
	case *temp < cfg.OvenTempMinC:
		zone = models.TempZoneCold
	case *temp <= cfg.OvenTempMaxC:
		zone = models.TempZoneOptimal
	default:
		zone = models.TempZoneHot
	}
	return &zone
}

// classifyDelay buckets total process time into the bounded tiers. Boundary
// values land in the lower tier, so exactly 25 is on_time, 30 is at_risk and
// 40 is late.
func classifyDelay(totalMinutes float64, cfg *models.Config) models.DelayCategory {
	switch {
	case totalMinutes <= cfg.DeliveryWarningMinutes:
		return models.DelayOnTime
	case totalMinutes <= cfg.DeliveryTargetMinutes:
		return models.DelayAtRisk
	case totalMinutes <= cfg.DeliveryCriticalMinutes:
		return models.DelayLate
	default:
		return models.DelayCritical
	}
}
