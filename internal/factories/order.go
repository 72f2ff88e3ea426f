package factories

import (
	"math"
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
	"github.com/pizzaops/opsight/internal/models"
)

var fake = faker.New()

// Scenario tunes the quality problems baked into a synthetic dataset. The
// zero value produces a clean shop with baseline noise only.
type Scenario struct {
	// SlowArea gets extra delivery minutes added on every order.
	SlowArea        string
	SlowAreaPenalty float64
	// ColdOvenRate is the fraction of orders run with the oven under
	// temperature; those orders complain at ColdOvenComplaintBoost times
	// the base rate.
	ColdOvenRate           float64
	ColdOvenComplaintBoost float64
	// BaseComplaintRate applies to orders with no quality problem.
	BaseComplaintRate float64
	// MissingTempRate is the fraction of orders with no thermometer reading.
	MissingTempRate float64
}

// DefaultScenario mirrors a shop with one underperforming delivery zone and
// an oven that drifts cold on a minority of bakes.
func DefaultScenario() Scenario {
	return Scenario{
		SlowArea:               "E",
		SlowAreaPenalty:        8,
		ColdOvenRate:           0.15,
		ColdOvenComplaintBoost: 3,
		BaseComplaintRate:      0.05,
		MissingTempRate:        0.1,
	}
}

// OrderFactory produces synthetic order histories for demos and tests. All
// randomness flows through one seeded source so a run is reproducible.
type OrderFactory struct {
	cfg      *models.Config
	scenario Scenario
	rng      *rand.Rand

	staff map[string][]string
}

var staffRoles = []string{"order_taker", "dough_prep", "stylist", "oven", "boxer", "driver"}

func NewOrderFactory(cfg *models.Config, scenario Scenario, seed int64) *OrderFactory {
	f := &OrderFactory{
		cfg:      cfg,
		scenario: scenario,
		rng:      rand.New(rand.NewSource(seed)),
		staff:    make(map[string][]string),
	}
	// small named crews so the same people recur across orders
	crewSize := map[string]int{
		"order_taker": 3, "dough_prep": 4, "stylist": 4,
		"oven": 3, "boxer": 3, "driver": 6,
	}
	for _, role := range staffRoles {
		for i := 0; i < crewSize[role]; i++ {
			f.staff[role] = append(f.staff[role], fake.Person().FirstName())
		}
	}
	return f
}

// CreateHistory generates count orders spread over the given number of days
// ending at end, with hourly volume following the lunch and dinner peaks.
func (f *OrderFactory) CreateHistory(count, days int, end time.Time) []models.OrderRecord {
	start := end.AddDate(0, 0, -days)
	orders := make([]models.OrderRecord, 0, count)
	for i := 0; i < count; i++ {
		orders = append(orders, *f.CreateOrder(f.SampleTime(start, days)))
	}
	return orders
}

// CreateOrder generates one order placed at the given time.
func (f *OrderFactory) CreateOrder(placedAt time.Time) *models.OrderRecord {
	o := &models.OrderRecord{
		OrderID:        cuid.New(),
		PlacedAt:       placedAt,
		OrderMode:      pick(f.rng, []string{"app", "app", "app", "phone", "phone", "email"}),
		PizzaSize:      pick(f.rng, []string{"S", "M", "M", "L", "L", "XL"}),
		DeliveryArea:   pick(f.rng, []string{"A", "B", "C", "D", "E"}),
		OrderTaker:     pick(f.rng, f.staff["order_taker"]),
		DoughPrepStaff: pick(f.rng, f.staff["dough_prep"]),
		Stylist:        pick(f.rng, f.staff["stylist"]),
		OvenOperator:   pick(f.rng, f.staff["oven"]),
		Boxer:          pick(f.rng, f.staff["boxer"]),
		DeliveryDriver: pick(f.rng, f.staff["driver"]),
	}

	peak := f.isPeak(placedAt.Hour())
	o.DoughPrepTime = f.stageTime(models.StageDoughPrep, peak)
	o.StylingTime = f.stageTime(models.StageStyling, peak)
	o.OvenTime = f.stageTime(models.StageOven, peak)
	o.BoxingTime = f.stageTime(models.StageBoxing, peak)

	o.DeliveryDuration = math.Max(2, f.gauss(14, 4))
	if peak {
		o.DeliveryDuration += math.Abs(f.gauss(3, 2))
	}
	if o.DeliveryArea == f.scenario.SlowArea {
		o.DeliveryDuration += f.scenario.SlowAreaPenalty
	}

	coldOven := f.rng.Float64() < f.scenario.ColdOvenRate
	if f.rng.Float64() >= f.scenario.MissingTempRate {
		temp := f.gauss(f.ovenMid(), 12)
		if coldOven {
			temp = f.cfg.OvenTempMinC - math.Abs(f.gauss(15, 8))
			// a cold oven also bakes slower
			o.OvenTime += math.Abs(f.gauss(3, 1.5))
		}
		o.OvenTemperature = &temp
	} else if coldOven {
		o.OvenTime += math.Abs(f.gauss(3, 1.5))
	}

	complaintRate := f.scenario.BaseComplaintRate
	if coldOven {
		complaintRate *= f.scenario.ColdOvenComplaintBoost
	}
	total := o.DoughPrepTime + o.StylingTime + o.OvenTime + o.BoxingTime + o.DeliveryDuration
	if total > f.cfg.DeliveryTargetMinutes {
		complaintRate = math.Min(1, complaintRate*2.5)
	}
	if f.rng.Float64() < complaintRate {
		o.Complaint = true
		o.ComplaintReason = f.complaintReason(coldOven, total)
	}
	return o
}

func (f *OrderFactory) complaintReason(coldOven bool, total float64) string {
	if coldOven && f.rng.Float64() < 0.7 {
		return "cold food"
	}
	if total > f.cfg.DeliveryTargetMinutes && f.rng.Float64() < 0.6 {
		return "late delivery"
	}
	return pick(f.rng, []string{"wrong order", "cold food", "late delivery", "damaged box", "other"})
}

func (f *OrderFactory) stageTime(stage string, peak bool) float64 {
	bench := f.cfg.StageBenchmarks[stage]
	v := f.gauss(bench.Target, bench.Target*0.25)
	if peak {
		v += math.Abs(f.gauss(bench.Target*0.15, bench.Target*0.1))
	}
	return math.Max(0.5, v)
}

// SampleTime draws a placement time with realistic hourly volume, heavy at
// lunch and dinner and sparse in between.
func (f *OrderFactory) SampleTime(start time.Time, days int) time.Time {
	day := start.AddDate(0, 0, f.rng.Intn(days))
	hour := f.sampleHour()
	return time.Date(day.Year(), day.Month(), day.Day(), hour, f.rng.Intn(60), f.rng.Intn(60), 0, time.UTC)
}

func (f *OrderFactory) sampleHour() int {
	for {
		h := 10 + f.rng.Intn(13) // open 10:00 to 22:59
		weight := 0.25
		if f.isPeak(h) {
			weight = 1.0
		}
		if f.rng.Float64() < weight {
			return h
		}
	}
}

func (f *OrderFactory) isPeak(hour int) bool {
	return f.cfg.PeakLunch.Contains(hour) || f.cfg.PeakDinner.Contains(hour)
}

func (f *OrderFactory) ovenMid() float64 {
	return f.cfg.OvenTempOptimalC
}

func (f *OrderFactory) gauss(mean, std float64) float64 {
	return mean + f.rng.NormFloat64()*std
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.Intn(len(items))]
}
