package forecast

import (
	"math"
	"time"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// Lag and rolling-window structure of the boosted feature set, in hours.
var (
	boostLags     = []int{1, 2, 24, 168}
	boostWindows  = []int{3, 24}
)

// minBoostRows is the minimum number of feature rows left after dropping
// the lag warm-up before boosting is worth fitting.
const minBoostRows = 24

// Boosted is the gradient-boosted strategy: shallow regression trees over
// lagged values, rolling means and calendar features, fit by least-squares
// boosting. Multi-step prediction is iterative, feeding predictions back
// into the lag window.
type Boosted struct {
	cfg *models.Config

	trees  []*regressionTree
	base   float64
	lr     float64
	resStd float64
	series []SeriesPoint
	scores validationScores
	fitted bool
}

func NewBoosted(cfg *models.Config) *Boosted {
	return &Boosted{cfg: cfg}
}

func (b *Boosted) Name() string { return "gradient_boosted" }

func maxLag() int {
	m := 0
	for _, l := range boostLags {
		if l > m {
			m = l
		}
	}
	for _, w := range boostWindows {
		if w > m {
			m = w
		}
	}
	return m
}

// Fit trains the boosted model after forward-chaining validation. The series
// must cover the longest lag (a week of hourly data) plus a day of rows.
func (b *Boosted) Fit(series []SeriesPoint) error {
	need := maxLag() + minBoostRows
	if len(series) < need {
		return &models.ModelTrainingError{
			Model: b.Name(),
			Err:   &models.InsufficientDataError{Op: "boosted fit", Needed: need, Got: len(series)},
		}
	}

	scores, err := forwardChain(series, b.cfg.ForecastFolds, b.cfg.MinTrainFraction, func(train []SeriesPoint) (func(int) []float64, error) {
		if len(train) < need {
			return nil, &models.InsufficientDataError{Op: "boosted window", Needed: need, Got: len(train)}
		}
		base, trees, lr, _ := boost(train, b.cfg)
		return func(horizon int) []float64 {
			return iterativeForecast(train, base, trees, lr, horizon)
		}, nil
	})
	if err != nil {
		return &models.ModelTrainingError{Model: b.Name(), Err: err}
	}
	b.scores = scores

	b.base, b.trees, b.lr, b.resStd = boost(series, b.cfg)
	b.series = series
	b.fitted = true
	return nil
}

func (b *Boosted) Predict(horizon int) ([]Prediction, error) {
	if !b.fitted {
		return nil, &models.ModelTrainingError{Model: b.Name(), Err: errNotFitted}
	}
	points := iterativeForecast(b.series, b.base, b.trees, b.lr, horizon)
	halfWidth := 1.96 * b.resStd
	out := make([]Prediction, horizon)
	for k := range out {
		out[k] = Prediction{Point: points[k], Lower: math.Max(0, points[k]-halfWidth), Upper: points[k] + halfWidth}
	}
	return out, nil
}

func (b *Boosted) ValidationError() float64 { return b.scores.RMSE }

// featureVector builds the boosted features for predicting history[idx],
// where history[:idx] is known. idx must be at least maxLag().
func featureVector(history []float64, idx int, t time.Time) []float64 {
	x := make([]float64, 0, len(boostLags)+len(boostWindows)+3)
	for _, lag := range boostLags {
		x = append(x, history[idx-lag])
	}
	for _, w := range boostWindows {
		x = append(x, stats.Mean(history[idx-w:idx]))
	}
	x = append(x, float64(t.Hour()), float64(t.Weekday()), boolFloat(isWeekend(t)))
	return x
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// boost fits least-squares gradient boosting and returns the base
// prediction, trees, shrinkage and the training residual spread.
func boost(series []SeriesPoint, cfg *models.Config) (float64, []*regressionTree, float64, float64) {
	warmup := maxLag()
	history := values(series)

	var X [][]float64
	var y []float64
	for i := warmup; i < len(series); i++ {
		X = append(X, featureVector(history, i, series[i].T))
		y = append(y, history[i])
	}

	base := stats.Mean(y)
	preds := make([]float64, len(y))
	for i := range preds {
		preds[i] = base
	}

	rounds := cfg.BoostRounds
	if rounds <= 0 {
		rounds = 60
	}
	depth := cfg.BoostDepth
	if depth <= 0 {
		depth = 2
	}
	lr := cfg.BoostLearningRate
	if lr <= 0 {
		lr = 0.1
	}

	trees := make([]*regressionTree, 0, rounds)
	residual := make([]float64, len(y))
	for round := 0; round < rounds; round++ {
		for i := range y {
			residual[i] = y[i] - preds[i]
		}
		tree := growTree(X, residual, depth)
		for i := range preds {
			preds[i] += lr * tree.predict(X[i])
		}
		trees = append(trees, tree)
	}

	final := make([]float64, len(y))
	for i := range y {
		final[i] = y[i] - preds[i]
	}
	return base, trees, lr, stats.Std(final)
}

// iterativeForecast rolls the model forward one step at a time, appending
// each prediction to the working history so later steps see it as a lag.
func iterativeForecast(series []SeriesPoint, base float64, trees []*regressionTree, lr float64, horizon int) []float64 {
	history := values(series)
	lastT := series[len(series)-1].T

	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		t := lastT.Add(time.Duration(k+1) * time.Hour)
		x := featureVector(history, len(history), t)
		p := base
		for _, tree := range trees {
			p += lr * tree.predict(x)
		}
		p = math.Max(0, p)
		out[k] = p
		history = append(history, p)
	}
	return out
}
