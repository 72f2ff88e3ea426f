package models

import (
	"fmt"
	"time"
)

// OrderRecord is one validated row of the order table. Durations are in
// minutes. OvenTemperature is nil when the oven thermometer reading was not
// captured for the order.
type OrderRecord struct {
	OrderID          string     `json:"order_id"`
	PlacedAt         time.Time  `json:"placed_at"`
	OrderMode        string     `json:"order_mode"` // "app", "phone", "email"
	PizzaSize        string     `json:"pizza_size,omitempty"`
	DeliveryArea     string     `json:"delivery_area"`
	DoughPrepTime    float64    `json:"dough_prep_time"`
	StylingTime      float64    `json:"styling_time"`
	OvenTime         float64    `json:"oven_time"`
	BoxingTime       float64    `json:"boxing_time"`
	DeliveryDuration float64    `json:"delivery_duration"`
	OvenTemperature  *float64   `json:"oven_temperature,omitempty"`
	OrderTaker       string     `json:"order_taker,omitempty"`
	DoughPrepStaff   string     `json:"dough_prep_staff,omitempty"`
	Stylist          string     `json:"stylist,omitempty"`
	OvenOperator     string     `json:"oven_operator,omitempty"`
	Boxer            string     `json:"boxer,omitempty"`
	DeliveryDriver   string     `json:"delivery_driver"`
	Complaint        bool       `json:"complaint"`
	ComplaintReason  string     `json:"complaint_reason,omitempty"`
}

// Stage names of the in-store pipeline, in processing order. Delivery is
// tracked separately from the four prep stages.
const (
	StageDoughPrep = "dough_prep"
	StageStyling   = "styling"
	StageOven      = "oven"
	StageBoxing    = "boxing"
	StageDelivery  = "delivery"
)

// PrepStages lists the in-store stages that make up total prep time.
var PrepStages = []string{StageDoughPrep, StageStyling, StageOven, StageBoxing}

// PipelineStages lists every stage including delivery.
var PipelineStages = []string{StageDoughPrep, StageStyling, StageOven, StageBoxing, StageDelivery}

// StageDuration returns the recorded duration for a named stage.
func (o *OrderRecord) StageDuration(stage string) float64 {
	switch stage {
	case StageDoughPrep:
		return o.DoughPrepTime
	case StageStyling:
		return o.StylingTime
	case StageOven:
		return o.OvenTime
	case StageBoxing:
		return o.BoxingTime
	case StageDelivery:
		return o.DeliveryDuration
	}
	return 0
}

// Lint reports soft contract violations on the record. Violations are
// flagged for the caller to surface, never fatal to an analysis run.
func (o *OrderRecord) Lint() []string {
	var warnings []string
	for _, stage := range PipelineStages {
		if o.StageDuration(stage) < 0 {
			warnings = append(warnings, fmt.Sprintf("order %s: negative %s duration", o.OrderID, stage))
		}
	}
	if !o.Complaint && o.ComplaintReason != "" {
		warnings = append(warnings, fmt.Sprintf("order %s: complaint_reason set without complaint flag", o.OrderID))
	}
	return warnings
}

// TempZone classifies an oven temperature reading relative to the configured
// operating band.
type TempZone string

const (
	TempZoneCold    TempZone = "cold"
	TempZoneOptimal TempZone = "optimal"
	TempZoneHot     TempZone = "hot"
)

// DelayCategory buckets total process time into bounded tiers. Boundary
// values belong to the lower tier: exactly 25 minutes is on_time, exactly 30
// is at_risk, exactly 40 is late.
type DelayCategory string

const (
	DelayOnTime   DelayCategory = "on_time"
	DelayAtRisk   DelayCategory = "at_risk"
	DelayLate     DelayCategory = "late"
	DelayCritical DelayCategory = "critical"
)

// FeatureRow is an OrderRecord with all derived columns attached. Rows are
// produced once per engineering pass and never mutated afterwards; re-run the
// engine instead of patching fields in place.
type FeatureRow struct {
	OrderRecord

	TotalPrepTime    float64       `json:"total_prep_time"`
	TotalProcessTime float64       `json:"total_process_time"`
	OnTime           bool          `json:"on_time"`
	HourOfDay        int           `json:"hour_of_day"`
	DayOfWeek        time.Weekday  `json:"day_of_week"`
	IsWeekend        bool          `json:"is_weekend"`
	IsPeakHour       bool          `json:"is_peak_hour"`
	OvenTempZone     *TempZone     `json:"oven_temp_zone,omitempty"`
	DelayCategory    DelayCategory `json:"delay_category"`

	// Stage shares of total prep time, in percent. All nil when total prep
	// time is zero.
	PctDoughPrep *float64 `json:"pct_dough_prep,omitempty"`
	PctStyling   *float64 `json:"pct_styling,omitempty"`
	PctOven      *float64 `json:"pct_oven,omitempty"`
	PctBoxing    *float64 `json:"pct_boxing,omitempty"`
}

// StageShare returns the prep-time share for a stage, nil when undefined.
func (f *FeatureRow) StageShare(stage string) *float64 {
	switch stage {
	case StageDoughPrep:
		return f.PctDoughPrep
	case StageStyling:
		return f.PctStyling
	case StageOven:
		return f.PctOven
	case StageBoxing:
		return f.PctBoxing
	}
	return nil
}
