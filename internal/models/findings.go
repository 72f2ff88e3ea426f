package models

import "time"

// Severity tiers for bottleneck findings, ordered worst first.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Rank returns a sort key, lower meaning worse.
func (s Severity) Rank() int {
	switch s {
	case SeveritySevere:
		return 0
	case SeverityModerate:
		return 1
	}
	return 2
}

// StageStats summarizes one stage's duration distribution.
type StageStats struct {
	Stage  string  `json:"stage"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
	Target float64 `json:"target"`
	P95Max float64 `json:"benchmark_p95"`
}

// BottleneckFinding is one stage flagged against its benchmark. Generated
// fresh per analysis run, never persisted across runs.
type BottleneckFinding struct {
	Stage           string   `json:"stage"`
	ObservedP95     float64  `json:"observed_p95"`
	BenchmarkP95    float64  `json:"benchmark_p95"`
	Ratio           float64  `json:"ratio"`
	Severity        Severity `json:"severity"`
	PeakHours       []int    `json:"peak_hours"`
	AffectedPct     float64  `json:"affected_orders_pct"`
	ExcessMinutes   float64  `json:"excess_minutes"`
}

// AreaFinding flags a delivery area whose mean delivery duration runs above
// the fleet-wide mean.
type AreaFinding struct {
	Area        string   `json:"area"`
	MeanMinutes float64  `json:"mean_minutes"`
	FleetMean   float64  `json:"fleet_mean"`
	Ratio       float64  `json:"ratio"`
	Severity    Severity `json:"severity"`
	OrderShare  float64  `json:"order_share_pct"`
	WorstHours  []int    `json:"worst_hours"`
}

// OvenCorrelation is the oven-temperature sub-analysis. When fewer than the
// configured minimum of rows carry a temperature, DataSufficient is false,
// Reason explains why, and TempVsDuration stays nil.
type OvenCorrelation struct {
	DataSufficient      bool                 `json:"data_sufficient"`
	Reason              string               `json:"reason,omitempty"`
	SampleSize          int                  `json:"sample_size"`
	MeanTemp            float64              `json:"mean_temp"`
	StdTemp             float64              `json:"std_temp"`
	TempVsDuration      *float64             `json:"temp_vs_duration,omitempty"`
	ComplaintRateByZone map[TempZone]float64 `json:"complaint_rate_by_zone,omitempty"`
	ZoneDistribution    map[TempZone]float64 `json:"zone_distribution,omitempty"`
}

// VariabilityReport captures process variability: coefficient of variation
// per stage and the most strained stage and hour.
type VariabilityReport struct {
	DataSufficient    bool               `json:"data_sufficient"`
	Reason            string             `json:"reason,omitempty"`
	PrepTimeCV        float64            `json:"prep_time_cv"`
	StageCVs          map[string]float64 `json:"stage_cvs"`
	MostVariableStage string             `json:"most_variable_stage"`
	MostVariableHour  int                `json:"most_variable_hour"`
}

// StageContribution is a stage's average share of total prep time.
type StageContribution struct {
	Stage           string  `json:"stage"`
	AvgMinutes      float64 `json:"avg_minutes"`
	ContributionPct float64 `json:"contribution_pct"`
}

// FeatureContribution is one feature's signed share of a model score.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// ComplaintRiskScore is the per-order output of the complaint model. The
// contributions plus Bias sum to the raw model score (the logit).
type ComplaintRiskScore struct {
	OrderID       string                `json:"order_id"`
	Probability   float64               `json:"probability"`
	Predicted     bool                  `json:"predicted"`
	Bias          float64               `json:"bias"`
	Contributions []FeatureContribution `json:"contributions,omitempty"`
}

// RootCauseCell is one (reason, on-time) cell of the root-cause matrix.
type RootCauseCell struct {
	Reason string  `json:"reason"`
	OnTime bool    `json:"on_time"`
	Count  int     `json:"count"`
	Pct    float64 `json:"pct"` // share of all complaints
}

// RootCauseMatrix cross-tabulates complaint reason against on-time status.
// Cell percentages sum to 100 across the whole matrix.
type RootCauseMatrix struct {
	TotalComplaints    int             `json:"total_complaints"`
	Cells              []RootCauseCell `json:"cells"`
	OnTimeComplaintPct float64         `json:"on_time_complaint_pct"`
}

// ForecastPoint is one step of ensemble output.
type ForecastPoint struct {
	Timestamp  time.Time          `json:"timestamp"`
	ByStrategy map[string]float64 `json:"by_strategy"`
	Ensemble   float64            `json:"ensemble"`
	Lower      float64            `json:"lower"`
	Upper      float64            `json:"upper"`
}

// StaffingRecommendation maps a forecast point to headcount. Deterministic
// in the predicted volume.
type StaffingRecommendation struct {
	Hour            time.Time `json:"hour"`
	PredictedOrders float64   `json:"predicted_orders"`
	PrepStaff       int       `json:"prep_staff"`
	Drivers         int       `json:"drivers"`
}

// ModelScore is one row of the forecast model comparison table.
type ModelScore struct {
	Model  string  `json:"model"`
	RMSE   float64 `json:"rmse"`
	MAE    float64 `json:"mae"`
	MAPE   float64 `json:"mape"`
	Weight float64 `json:"weight"`
}
