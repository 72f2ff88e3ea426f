package complaint

import (
	"fmt"
	"math"
	"sort"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// unknownBucket is the reserved slot for categorical values never observed
// in training. Frozen into the encoder at fit time.
const unknownBucket = "unknown"

// openCategoricalColumns are the open-cardinality columns (staff names,
// drivers) that get learned frequency buckets instead of full one-hot.
var openCategoricalColumns = []string{
	"dough_prep_staff", "stylist", "oven_operator", "boxer", "delivery_driver",
}

// Encoder maps feature rows onto a fixed numeric vector. The layout is
// decided once at fit time and frozen into the model artifact: numeric and
// cyclical features first, then one-hot delivery area and order mode, then
// the learned staff buckets with their reserved unknown slot.
type Encoder struct {
	featureNames []string

	areas []string
	modes []string
	// bucket vocabulary per open column: value -> slot offset
	buckets map[string]map[string]int

	// standardization parameters per numeric feature index
	means []float64
	stds  []float64

	tempMedian float64 // fill-in for rows without an oven reading
	numNumeric int     // leading columns that get standardized

	cfg *models.Config
}

func newEncoder(cfg *models.Config) *Encoder {
	return &Encoder{
		buckets: make(map[string]map[string]int),
		cfg:     cfg,
	}
}

// FeatureNames returns the frozen feature layout.
func (e *Encoder) FeatureNames() []string { return e.featureNames }

// Fit learns the vocabulary and standardization parameters from training
// rows.
func (e *Encoder) Fit(rows []models.FeatureRow) {
	e.areas = distinctValues(rows, func(r *models.FeatureRow) string { return r.DeliveryArea })
	e.modes = distinctValues(rows, func(r *models.FeatureRow) string { return r.OrderMode })

	var temps []float64
	for i := range rows {
		if rows[i].OvenTemperature != nil {
			temps = append(temps, *rows[i].OvenTemperature)
		}
	}
	e.tempMedian = stats.Median(temps)
	if len(temps) == 0 {
		e.tempMedian = e.cfg.OvenTempOptimalC
	}

	e.featureNames = []string{
		"total_prep_time", "delivery_duration", "oven_temperature",
		"oven_temp_deviation", "hour_of_day", "dough_prep_time",
		"styling_time", "oven_time", "boxing_time",
		"is_peak_hour", "is_weekend",
		"dow_sin", "dow_cos", "hour_sin", "hour_cos",
	}
	e.numNumeric = 9 // the continuous block before binary and cyclical terms

	for _, area := range e.areas {
		e.featureNames = append(e.featureNames, "area_"+area)
	}
	for _, mode := range e.modes {
		e.featureNames = append(e.featureNames, "mode_"+mode)
	}

	for _, col := range openCategoricalColumns {
		vocab := topValues(rows, col, e.cfg.StaffBuckets)
		slots := make(map[string]int, len(vocab)+1)
		for _, v := range vocab {
			slots[v] = len(e.featureNames)
			e.featureNames = append(e.featureNames, fmt.Sprintf("%s=%s", col, v))
		}
		slots[unknownBucket] = len(e.featureNames)
		e.featureNames = append(e.featureNames, fmt.Sprintf("%s=%s", col, unknownBucket))
		e.buckets[col] = slots
	}

	// Standardize the continuous block from training statistics.
	raw := make([][]float64, len(rows))
	for i := range rows {
		raw[i] = e.rawVector(&rows[i])
	}
	e.means = make([]float64, e.numNumeric)
	e.stds = make([]float64, e.numNumeric)
	for j := 0; j < e.numNumeric; j++ {
		col := make([]float64, len(raw))
		for i := range raw {
			col[i] = raw[i][j]
		}
		e.means[j] = stats.Mean(col)
		e.stds[j] = stats.Std(col)
	}
}

// Transform encodes a single row against the frozen layout. Values unseen at
// fit time route to their column's unknown bucket.
func (e *Encoder) Transform(row *models.FeatureRow) []float64 {
	x := e.rawVector(row)
	for j := 0; j < e.numNumeric; j++ {
		if e.stds[j] > 0 {
			x[j] = (x[j] - e.means[j]) / e.stds[j]
		} else {
			x[j] = 0
		}
	}
	return x
}

// TransformAll encodes every row.
func (e *Encoder) TransformAll(rows []models.FeatureRow) [][]float64 {
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = e.Transform(&rows[i])
	}
	return out
}

func (e *Encoder) rawVector(row *models.FeatureRow) []float64 {
	temp := e.tempMedian
	if row.OvenTemperature != nil {
		temp = *row.OvenTemperature
	}

	x := make([]float64, len(e.featureNames))
	x[0] = row.TotalPrepTime
	x[1] = row.DeliveryDuration
	x[2] = temp
	x[3] = math.Abs(temp - e.cfg.OvenTempOptimalC)
	x[4] = float64(row.HourOfDay)
	x[5] = row.DoughPrepTime
	x[6] = row.StylingTime
	x[7] = row.OvenTime
	x[8] = row.BoxingTime
	x[9] = boolToFloat(row.IsPeakHour)
	x[10] = boolToFloat(row.IsWeekend)
	x[11] = math.Sin(2 * math.Pi * float64(row.DayOfWeek) / 7)
	x[12] = math.Cos(2 * math.Pi * float64(row.DayOfWeek) / 7)
	x[13] = math.Sin(2 * math.Pi * float64(row.HourOfDay) / 24)
	x[14] = math.Cos(2 * math.Pi * float64(row.HourOfDay) / 24)

	offset := 15
	for i, area := range e.areas {
		if row.DeliveryArea == area {
			x[offset+i] = 1
		}
	}
	offset += len(e.areas)
	for i, mode := range e.modes {
		if row.OrderMode == mode {
			x[offset+i] = 1
		}
	}

	for _, col := range openCategoricalColumns {
		slots := e.buckets[col]
		slot, ok := slots[openColumnValue(row, col)]
		if !ok {
			slot = slots[unknownBucket]
		}
		x[slot] = 1
	}
	return x
}

func openColumnValue(row *models.FeatureRow, col string) string {
	switch col {
	case "dough_prep_staff":
		return row.DoughPrepStaff
	case "stylist":
		return row.Stylist
	case "oven_operator":
		return row.OvenOperator
	case "boxer":
		return row.Boxer
	case "delivery_driver":
		return row.DeliveryDriver
	}
	return ""
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func distinctValues(rows []models.FeatureRow, get func(*models.FeatureRow) string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range rows {
		v := get(&rows[i])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// topValues returns the k most frequent non-empty values of an open column,
// in deterministic order.
func topValues(rows []models.FeatureRow, col string, k int) []string {
	counts := make(map[string]int)
	for i := range rows {
		if v := openColumnValue(&rows[i], col); v != "" {
			counts[v]++
		}
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	if len(values) > k {
		values = values[:k]
	}
	sort.Strings(values)
	return values
}
