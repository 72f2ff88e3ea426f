package models

// KPIStatus grades a metric against its configured target.
type KPIStatus string

const (
	KPIStatusGood    KPIStatus = "good"
	KPIStatusWarning KPIStatus = "warning"
	KPIStatusDanger  KPIStatus = "danger"
)

// KPIValue is a measured metric paired with its target and grade.
type KPIValue struct {
	Value  float64   `json:"value"`
	Target float64   `json:"target"`
	Status KPIStatus `json:"status"`
}

// OverviewKPIs are the dataset-level headline metrics. PeakHour is nil when
// no orders fall inside a configured peak window.
type OverviewKPIs struct {
	TotalOrders    int      `json:"total_orders"`
	OnTimeCount    int      `json:"on_time_count"`
	OnTimePct      KPIValue `json:"on_time_pct"`
	ComplaintCount int      `json:"complaint_count"`
	ComplaintRate  KPIValue `json:"complaint_rate"`
	AvgDeliveryMin KPIValue `json:"avg_delivery_min"`
	AvgPrepMin     KPIValue `json:"avg_prep_min"`
	PeakHour       *int     `json:"peak_hour,omitempty"`
	PeakHourLoad   int      `json:"peak_hour_load"`
}

// DriverScorecard summarizes one delivery driver. Drivers below the
// configured minimum order count are excluded from scorecards.
type DriverScorecard struct {
	Driver        string  `json:"driver"`
	Deliveries    int     `json:"deliveries"`
	AvgMinutes    float64 `json:"avg_minutes"`
	P95Minutes    float64 `json:"p95_minutes"`
	OnTimePct     float64 `json:"on_time_pct"`
	ComplaintRate float64 `json:"complaint_rate"`
	AreasServed   int     `json:"areas_served"`
}

// StaffScorecard summarizes one in-store staff member for the stage their
// role owns.
type StaffScorecard struct {
	Role            string  `json:"role"`
	Name            string  `json:"name"`
	Orders          int     `json:"orders"`
	AvgStageMinutes float64 `json:"avg_stage_minutes"`
	P95StageMinutes float64 `json:"p95_stage_minutes"`
	ComplaintRate   float64 `json:"complaint_rate"`
}

// OrderModeStats compares outcomes across order intake channels.
type OrderModeStats struct {
	Mode               string  `json:"order_mode"`
	Orders             int     `json:"orders"`
	AvgTotalMinutes    float64 `json:"avg_total_minutes"`
	AvgDeliveryMinutes float64 `json:"avg_delivery_minutes"`
	ComplaintRate      float64 `json:"complaint_rate"`
}

// KPISummary bundles every executive-level artifact for one dataset.
type KPISummary struct {
	Overview OverviewKPIs      `json:"overview"`
	Drivers  []DriverScorecard `json:"drivers"`
	Staff    []StaffScorecard  `json:"staff"`
	Modes    []OrderModeStats  `json:"modes"`
}
