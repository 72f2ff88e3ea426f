package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pizzaops/opsight/internal/models"
)

// columnMapping translates raw export headers to canonical field names. The
// POS export has leading spaces on some headers and two spellings of the
// oven temperature column depending on which machine produced the file.
var columnMapping = map[string]string{
	"Pizza No.":            "order_id",
	"Order Date":           "order_date",
	"Order Time":           "order_time",
	"Ord - Del time":       "total_process_time",
	"Order Receipt (mins)": "order_receipt_time",
	"Base prep (mins)":     "dough_prep_time",
	"Styling (mins)":       "styling_time",
	"Cooking Time (mins)":  "oven_time",
	"Boxing (mins)":        "boxing_time",
	"Delivery (mins)":      "delivery_duration",
	"Oven Temp °C":         "oven_temperature",
	"Oven Temp �C":         "oven_temperature",
	"Order Mode":           "order_mode",
	"Size":                 "pizza_size",
	"Area":                 "delivery_area",
	"Order Taker":          "order_taker",
	"Dough Prep":           "dough_prep_staff",
	"Stylist":              "stylist",
	"Oven":                 "oven_operator",
	"Boxer":                "boxer",
	"Deliverer":            "delivery_driver",
	"Cust. complaint":      "complaint",
	"Reason":               "complaint_reason",
}

var requiredColumns = []string{
	"order_id", "order_date", "order_time", "order_mode",
	"dough_prep_time", "styling_time", "oven_time", "boxing_time",
	"delivery_area", "delivery_duration", "delivery_driver", "complaint",
}

var dateLayouts = []string{
	"2006-01-02", "02/01/2006", "01/02/2006", "2006/01/02", "02-Jan-2006",
}

var timeLayouts = []string{
	"15:04:05", "15:04", "3:04 PM", "3:04:05 PM",
}

// Report summarises an ingestion run. Warnings never abort a load; missing
// required columns downgrade status to "warning" and the affected rows are
// dropped.
type Report struct {
	RowsRaw        int      `json:"rows_raw"`
	RowsClean      int      `json:"rows_clean"`
	RowsDropped    int      `json:"rows_dropped"`
	MissingColumns []string `json:"missing_columns,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Status         string   `json:"status"`
}

// LoadFile reads an order export from disk.
func LoadFile(path string) ([]models.OrderRecord, *Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening order file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a raw CSV export into validated order records. Headers are
// matched against the known raw names case-insensitively with whitespace
// stripped, so hand-edited exports still round-trip.
func Load(r io.Reader) ([]models.OrderRecord, *Report, error) {
	report := &Report{Status: "success"}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, raw := range header {
		index[standardizeName(raw)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			report.MissingColumns = append(report.MissingColumns, col)
		}
	}
	if len(report.MissingColumns) > 0 {
		report.Status = "warning"
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("missing required columns: %s", strings.Join(report.MissingColumns, ", ")))
	}

	var orders []models.OrderRecord
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error reading row %d: %w", line, err)
		}
		report.RowsRaw++

		if emptyRow(record) {
			report.RowsDropped++
			continue
		}

		order, warns := parseRow(record, index)
		report.Warnings = append(report.Warnings, warns...)
		if order == nil {
			report.RowsDropped++
			continue
		}
		report.Warnings = append(report.Warnings, order.Lint()...)
		orders = append(orders, *order)
	}

	report.RowsClean = len(orders)
	if report.RowsDropped > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("dropped %d unparseable or empty rows", report.RowsDropped))
	}
	return orders, report, nil
}

func parseRow(record []string, index map[string]int) (*models.OrderRecord, []string) {
	var warns []string
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	o := &models.OrderRecord{
		OrderID:         field("order_id"),
		OrderMode:       strings.ToLower(field("order_mode")),
		PizzaSize:       field("pizza_size"),
		DeliveryArea:    strings.ToUpper(field("delivery_area")),
		OrderTaker:      field("order_taker"),
		DoughPrepStaff:  field("dough_prep_staff"),
		Stylist:         field("stylist"),
		OvenOperator:    field("oven_operator"),
		Boxer:           field("boxer"),
		DeliveryDriver:  field("delivery_driver"),
		ComplaintReason: cleanReason(field("complaint_reason")),
	}
	if o.OrderID == "" {
		return nil, warns
	}

	placedAt, err := parseTimestamp(field("order_date"), field("order_time"))
	if err != nil {
		warns = append(warns, fmt.Sprintf("order %s: %v", o.OrderID, err))
		return nil, warns
	}
	o.PlacedAt = placedAt

	durations := []struct {
		name string
		dst  *float64
	}{
		{"dough_prep_time", &o.DoughPrepTime},
		{"styling_time", &o.StylingTime},
		{"oven_time", &o.OvenTime},
		{"boxing_time", &o.BoxingTime},
		{"delivery_duration", &o.DeliveryDuration},
	}
	for _, d := range durations {
		v, err := parseFloat(field(d.name))
		if err != nil {
			warns = append(warns, fmt.Sprintf("order %s: bad %s value %q, row dropped", o.OrderID, d.name, field(d.name)))
			return nil, warns
		}
		*d.dst = v
	}

	if raw := field("oven_temperature"); raw != "" {
		if v, err := parseFloat(raw); err == nil {
			o.OvenTemperature = &v
		} else {
			warns = append(warns, fmt.Sprintf("order %s: bad oven temperature %q", o.OrderID, raw))
		}
	}

	o.Complaint = parseBool(field("complaint"))
	if !o.Complaint {
		o.ComplaintReason = ""
	}
	return o, warns
}

func standardizeName(raw string) string {
	stripped := strings.TrimSpace(raw)
	for key, std := range columnMapping {
		if strings.EqualFold(strings.TrimSpace(key), stripped) {
			return std
		}
	}
	// fall back to snake_case so unknown columns stay addressable
	name := strings.ToLower(stripped)
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, ".", "")
}

func parseTimestamp(date, clock string) (time.Time, error) {
	var day time.Time
	var err error
	for _, layout := range dateLayouts {
		if day, err = time.Parse(layout, date); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable order date %q", date)
	}
	if clock == "" {
		return day, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable order time %q", clock)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty numeric field")
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

func cleanReason(s string) string {
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}

func emptyRow(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
