package forecast

import (
	"math"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// Fixed smoothing parameters. Tuning these per dataset buys little for
// hourly order counts and would make validation runs slower.
const (
	hwAlpha = 0.3
	hwBeta  = 0.05
	hwGamma = 0.2
)

// HoltWinters is the classical seasonal strategy: additive triple
// exponential smoothing capturing trend plus one fixed seasonality.
type HoltWinters struct {
	cfg    *models.Config
	season int

	level    float64
	trend    float64
	seasonal []float64
	resStd   float64
	offset   int // seasonal index of the first step after the series end
	scores   validationScores
	fitted   bool
}

func NewHoltWinters(cfg *models.Config) *HoltWinters {
	return &HoltWinters{cfg: cfg, season: cfg.SeasonLength}
}

func (h *HoltWinters) Name() string { return "holt_winters" }

// Fit smooths the full series after scoring itself by forward-chaining
// validation. Needs at least two full seasons.
func (h *HoltWinters) Fit(series []SeriesPoint) error {
	if len(series) < 2*h.season {
		return &models.ModelTrainingError{
			Model: h.Name(),
			Err:   &models.InsufficientDataError{Op: "holt-winters fit", Needed: 2 * h.season, Got: len(series)},
		}
	}

	scores, err := forwardChain(series, h.cfg.ForecastFolds, h.cfg.MinTrainFraction, func(train []SeriesPoint) (func(int) []float64, error) {
		if len(train) < 2*h.season {
			return nil, &models.InsufficientDataError{Op: "holt-winters window", Needed: 2 * h.season, Got: len(train)}
		}
		level, trend, seasonal, _ := smooth(values(train), h.season)
		return func(horizon int) []float64 {
			return project(level, trend, seasonal, len(train), horizon)
		}, nil
	})
	if err != nil {
		return &models.ModelTrainingError{Model: h.Name(), Err: err}
	}
	h.scores = scores

	h.level, h.trend, h.seasonal, h.resStd = smooth(values(series), h.season)
	h.offset = len(series)
	h.fitted = true
	return nil
}

func (h *HoltWinters) Predict(horizon int) ([]Prediction, error) {
	if !h.fitted {
		return nil, &models.ModelTrainingError{Model: h.Name(), Err: errNotFitted}
	}
	points := project(h.level, h.trend, h.seasonal, h.offset, horizon)
	out := make([]Prediction, horizon)
	halfWidth := 1.96 * h.resStd
	for k := range out {
		p := math.Max(0, points[k])
		out[k] = Prediction{Point: p, Lower: math.Max(0, p-halfWidth), Upper: p + halfWidth}
	}
	return out, nil
}

func (h *HoltWinters) ValidationError() float64 { return h.scores.RMSE }

// smooth runs additive triple exponential smoothing over the values and
// returns the final level, trend, seasonal components and the one-step
// residual standard deviation.
func smooth(xs []float64, season int) (level, trend float64, seasonal []float64, resStd float64) {
	// Initialize from the first two seasons.
	firstMean := stats.Mean(xs[:season])
	secondMean := stats.Mean(xs[season : 2*season])
	level = firstMean
	trend = (secondMean - firstMean) / float64(season)

	seasonal = make([]float64, season)
	for i := 0; i < season; i++ {
		seasonal[i] = (xs[i] - firstMean + xs[season+i] - secondMean) / 2
	}

	var residuals []float64
	for t := 0; t < len(xs); t++ {
		s := t % season
		oneStep := level + trend + seasonal[s]
		residuals = append(residuals, xs[t]-oneStep)

		prevLevel := level
		level = hwAlpha*(xs[t]-seasonal[s]) + (1-hwAlpha)*(level+trend)
		trend = hwBeta*(level-prevLevel) + (1-hwBeta)*trend
		seasonal[s] = hwGamma*(xs[t]-level) + (1-hwGamma)*seasonal[s]
	}
	// Skip the warm-up seasons when estimating residual spread.
	if len(residuals) > 2*season {
		residuals = residuals[2*season:]
	}
	resStd = stats.Std(residuals)
	return level, trend, seasonal, resStd
}

// project extends the smoothed state forward. offset is the index of the
// first projected step relative to the seasonal cycle.
func project(level, trend float64, seasonal []float64, offset, horizon int) []float64 {
	season := len(seasonal)
	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		out[k] = level + float64(k+1)*trend + seasonal[(offset+k)%season]
	}
	return out
}
