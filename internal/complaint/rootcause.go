package complaint

import (
	"errors"
	"sort"

	"github.com/pizzaops/opsight/internal/models"
)

var errNotTrained = errors.New("model not trained")

// fallbackReason labels complaints filed without a reason category.
const fallbackReason = "other"

// RootCauseMatrix cross-tabulates complaint reason against the on-time flag.
// Cell percentages are shares of all complaints and sum to 100; the on-time
// complaint share separates quality-driven complaints from speed-driven
// ones. Needs no trained model.
func RootCauseMatrix(rows []models.FeatureRow) models.RootCauseMatrix {
	type key struct {
		reason string
		onTime bool
	}
	counts := make(map[key]int)
	total := 0
	onTimeComplaints := 0

	for i := range rows {
		if !rows[i].Complaint {
			continue
		}
		reason := rows[i].ComplaintReason
		if reason == "" {
			reason = fallbackReason
		}
		counts[key{reason, rows[i].OnTime}]++
		total++
		if rows[i].OnTime {
			onTimeComplaints++
		}
	}

	matrix := models.RootCauseMatrix{TotalComplaints: total}
	if total == 0 {
		return matrix
	}

	for k, count := range counts {
		matrix.Cells = append(matrix.Cells, models.RootCauseCell{
			Reason: k.reason,
			OnTime: k.onTime,
			Count:  count,
			Pct:    float64(count) / float64(total) * 100,
		})
	}
	sort.Slice(matrix.Cells, func(i, j int) bool {
		if matrix.Cells[i].Count != matrix.Cells[j].Count {
			return matrix.Cells[i].Count > matrix.Cells[j].Count
		}
		if matrix.Cells[i].Reason != matrix.Cells[j].Reason {
			return matrix.Cells[i].Reason < matrix.Cells[j].Reason
		}
		return matrix.Cells[i].OnTime && !matrix.Cells[j].OnTime
	})

	matrix.OnTimeComplaintPct = float64(onTimeComplaints) / float64(total) * 100
	return matrix
}
