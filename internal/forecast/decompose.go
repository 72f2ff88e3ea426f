package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

var errNotFitted = errors.New("strategy not fitted")

// Decomposition is the additive seasonal-decomposition strategy: a linear
// trend plus hour-of-day and day-of-week components estimated from detrended
// residuals. The day-of-week term captures weekend and holiday-like weekly
// effects on top of the daily cycle.
type Decomposition struct {
	cfg *models.Config

	intercept float64
	slope     float64
	hourOfDay [24]float64
	dayOfWeek [7]float64
	resStd    float64
	lastT     time.Time
	lastIdx   int
	scores    validationScores
	fitted    bool
}

func NewDecomposition(cfg *models.Config) *Decomposition {
	return &Decomposition{cfg: cfg}
}

func (d *Decomposition) Name() string { return "seasonal_decomposition" }

// Fit estimates the components after forward-chaining validation. Needs at
// least two days of hourly data so every hour slot is observed.
func (d *Decomposition) Fit(series []SeriesPoint) error {
	if len(series) < 48 {
		return &models.ModelTrainingError{
			Model: d.Name(),
			Err:   &models.InsufficientDataError{Op: "decomposition fit", Needed: 48, Got: len(series)},
		}
	}

	scores, err := forwardChain(series, d.cfg.ForecastFolds, d.cfg.MinTrainFraction, func(train []SeriesPoint) (func(int) []float64, error) {
		if len(train) < 48 {
			return nil, &models.InsufficientDataError{Op: "decomposition window", Needed: 48, Got: len(train)}
		}
		m := fitComponents(train)
		return func(horizon int) []float64 {
			out := make([]float64, horizon)
			for k := 0; k < horizon; k++ {
				t := train[len(train)-1].T.Add(time.Duration(k+1) * time.Hour)
				out[k] = m.at(len(train)+k, t)
			}
			return out
		}, nil
	})
	if err != nil {
		return &models.ModelTrainingError{Model: d.Name(), Err: err}
	}
	d.scores = scores

	m := fitComponents(series)
	d.intercept = m.intercept
	d.slope = m.slope
	d.hourOfDay = m.hourOfDay
	d.dayOfWeek = m.dayOfWeek
	d.resStd = m.resStd
	d.lastT = series[len(series)-1].T
	d.lastIdx = len(series) - 1
	d.fitted = true
	return nil
}

func (d *Decomposition) Predict(horizon int) ([]Prediction, error) {
	if !d.fitted {
		return nil, &models.ModelTrainingError{Model: d.Name(), Err: errNotFitted}
	}
	m := components{
		intercept: d.intercept,
		slope:     d.slope,
		hourOfDay: d.hourOfDay,
		dayOfWeek: d.dayOfWeek,
	}
	halfWidth := 1.96 * d.resStd
	out := make([]Prediction, horizon)
	for k := 0; k < horizon; k++ {
		t := d.lastT.Add(time.Duration(k+1) * time.Hour)
		p := math.Max(0, m.at(d.lastIdx+1+k, t))
		out[k] = Prediction{Point: p, Lower: math.Max(0, p-halfWidth), Upper: p + halfWidth}
	}
	return out, nil
}

func (d *Decomposition) ValidationError() float64 { return d.scores.RMSE }

type components struct {
	intercept float64
	slope     float64
	hourOfDay [24]float64
	dayOfWeek [7]float64
	resStd    float64
}

func (c *components) at(idx int, t time.Time) float64 {
	return c.intercept + c.slope*float64(idx) + c.hourOfDay[t.Hour()] + c.dayOfWeek[int(t.Weekday())]
}

// fitComponents runs the additive decomposition: least-squares linear trend
// over the step index, then mean detrended residual per hour-of-day, then
// mean remaining residual per day-of-week.
func fitComponents(series []SeriesPoint) components {
	n := len(series)
	var c components

	// Linear trend by ordinary least squares on the step index.
	var sumX, sumY, sumXY, sumXX float64
	for i := range series {
		x := float64(i)
		sumX += x
		sumY += series[i].V
		sumXY += x * series[i].V
		sumXX += x * x
	}
	denom := float64(n)*sumXX - sumX*sumX
	if denom != 0 {
		c.slope = (float64(n)*sumXY - sumX*sumY) / denom
	}
	c.intercept = (sumY - c.slope*sumX) / float64(n)

	detrended := make([]float64, n)
	for i := range series {
		detrended[i] = series[i].V - (c.intercept + c.slope*float64(i))
	}

	var hourSum [24]float64
	var hourCount [24]int
	for i := range series {
		h := series[i].T.Hour()
		hourSum[h] += detrended[i]
		hourCount[h]++
	}
	for h := 0; h < 24; h++ {
		if hourCount[h] > 0 {
			c.hourOfDay[h] = hourSum[h] / float64(hourCount[h])
		}
	}

	var dowSum [7]float64
	var dowCount [7]int
	for i := range series {
		rem := detrended[i] - c.hourOfDay[series[i].T.Hour()]
		dow := int(series[i].T.Weekday())
		dowSum[dow] += rem
		dowCount[dow]++
	}
	for d := 0; d < 7; d++ {
		if dowCount[d] > 0 {
			c.dayOfWeek[d] = dowSum[d] / float64(dowCount[d])
		}
	}

	residuals := make([]float64, n)
	for i := range series {
		residuals[i] = series[i].V - c.at(i, series[i].T)
	}
	c.resStd = stats.Std(residuals)
	return c
}
