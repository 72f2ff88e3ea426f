package forecast

import (
	"sort"
	"time"

	"github.com/pizzaops/opsight/internal/models"
)

// SeriesPoint is one step of the order-volume time series.
type SeriesPoint struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// BuildHourlySeries aggregates engineered rows into an hourly order-count
// series. Hours between the first and last order with no orders are filled
// with zero so the series has a fixed step.
func BuildHourlySeries(rows []models.FeatureRow) []SeriesPoint {
	if len(rows) == 0 {
		return nil
	}
	counts := make(map[time.Time]float64)
	var first, last time.Time
	for i := range rows {
		h := rows[i].PlacedAt.Truncate(time.Hour)
		counts[h]++
		if first.IsZero() || h.Before(first) {
			first = h
		}
		if h.After(last) {
			last = h
		}
	}

	var series []SeriesPoint
	for t := first; !t.After(last); t = t.Add(time.Hour) {
		series = append(series, SeriesPoint{T: t, V: counts[t]})
	}
	return series
}

// values extracts the series values.
func values(series []SeriesPoint) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		out[i] = series[i].V
	}
	return out
}

// sortSeries orders points chronologically in place.
func sortSeries(series []SeriesPoint) {
	sort.Slice(series, func(i, j int) bool { return series[i].T.Before(series[j].T) })
}
