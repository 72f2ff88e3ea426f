package forecast

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
	"golang.org/x/sync/errgroup"
)

// EnsembleState is the ensemble lifecycle. Degraded means every strategy
// failed to fit and predictions come from the seasonal-naive fallback.
type EnsembleState int

const (
	EnsembleUntrained EnsembleState = iota
	EnsembleTrained
	EnsembleDegraded
	EnsembleStale
)

func (s EnsembleState) String() string {
	switch s {
	case EnsembleTrained:
		return "trained"
	case EnsembleDegraded:
		return "degraded"
	case EnsembleStale:
		return "stale"
	}
	return "untrained"
}

// fitted is one successfully trained strategy with its validation scores.
type fitted struct {
	strategy Forecaster
	scores   validationScores
	weight   float64
}

// Ensemble combines the three forecasting strategies, weighting each by its
// inverse validation RMSE. It owns all per-strategy state exclusively.
type Ensemble struct {
	cfg *models.Config

	mu       sync.RWMutex
	state    EnsembleState
	members  []fitted
	series   []SeriesPoint
	fallback seasonalNaive
}

func NewEnsemble(cfg *models.Config) *Ensemble {
	return &Ensemble{cfg: cfg}
}

// State returns the lifecycle state.
func (e *Ensemble) State() EnsembleState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// MarkStale flags the current fit as superseded by newer data. Predictions
// stay available until the next Fit replaces them.
func (e *Ensemble) MarkStale() {
	e.mu.Lock()
	if e.state == EnsembleTrained || e.state == EnsembleDegraded {
		e.state = EnsembleStale
	}
	e.mu.Unlock()
}

// Weights returns the current strategy weights. They sum to 1 whenever at
// least one strategy fit successfully.
func (e *Ensemble) Weights() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.members))
	for _, m := range e.members {
		out[m.strategy.Name()] = m.weight
	}
	return out
}

// Fit trains all three strategies independently and in parallel on the
// series; they share no mutable state. Strategies that fail to fit are
// excluded and the remaining weights renormalized. When everything fails
// the ensemble degrades to the seasonal-naive fallback rather than erroring.
func (e *Ensemble) Fit(ctx context.Context, series []SeriesPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sortSeries(series)

	strategies := []Forecaster{
		NewHoltWinters(e.cfg),
		NewDecomposition(e.cfg),
		NewBoosted(e.cfg),
	}

	errs := make([]error, len(strategies))
	g, _ := errgroup.WithContext(ctx)
	for i := range strategies {
		i := i
		g.Go(func() error {
			errs[i] = strategies[i].Fit(series)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// Results of a cancelled run are never installed.
		return err
	}

	var members []fitted
	var totalInvRMSE float64
	for i, s := range strategies {
		if errs[i] != nil {
			log.Printf("forecast strategy %s excluded: %v", s.Name(), errs[i])
			continue
		}
		rmse := s.ValidationError()
		if rmse <= 0 || math.IsNaN(rmse) {
			// Perfect or degenerate validation keeps a strategy usable but
			// caps its influence at the equivalent of a tiny error.
			rmse = 1e-9
		}
		members = append(members, fitted{strategy: s, scores: scoresOf(s)})
		totalInvRMSE += 1 / rmse
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.series = series
	e.fallback = newSeasonalNaive(series, e.cfg.SeasonLength)

	if len(members) == 0 {
		e.members = nil
		e.state = EnsembleDegraded
		log.Printf("all forecast strategies failed to fit; ensemble degraded to seasonal-naive fallback")
		return nil
	}

	for i := range members {
		rmse := members[i].scores.RMSE
		if rmse <= 0 || math.IsNaN(rmse) {
			rmse = 1e-9
		}
		members[i].weight = (1 / rmse) / totalInvRMSE
	}
	e.members = members
	e.state = EnsembleTrained
	return nil
}

func scoresOf(s Forecaster) validationScores {
	switch v := s.(type) {
	case *HoltWinters:
		return v.scores
	case *Decomposition:
		return v.scores
	case *Boosted:
		return v.scores
	}
	return validationScores{RMSE: s.ValidationError()}
}

// Predict returns exactly horizon forecast points. The ensemble point is
// the weight-blended strategy point; the interval blends per-strategy
// intervals by weight, never narrows below the best strategy's own
// interval, and widens further by the disagreement across strategy points.
func (e *Ensemble) Predict(horizon int) ([]models.ForecastPoint, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if horizon <= 0 {
		return nil, nil
	}
	switch e.state {
	case EnsembleUntrained:
		return nil, &models.ModelTrainingError{Model: "ensemble", Err: errNotFitted}
	case EnsembleDegraded:
		return e.fallback.predict(horizon), nil
	}

	type strategyRun struct {
		name   string
		weight float64
		rmse   float64
		preds  []Prediction
	}
	var runs []strategyRun
	for _, m := range e.members {
		preds, err := m.strategy.Predict(horizon)
		if err != nil {
			log.Printf("strategy %s failed at predict time: %v", m.strategy.Name(), err)
			continue
		}
		runs = append(runs, strategyRun{m.strategy.Name(), m.weight, m.scores.RMSE, preds})
	}
	if len(runs) == 0 {
		return e.fallback.predict(horizon), nil
	}

	// Renormalize in case a member dropped out at predict time.
	var totalWeight float64
	bestIdx := 0
	for i, r := range runs {
		totalWeight += r.weight
		if r.rmse < runs[bestIdx].rmse {
			bestIdx = i
		}
	}

	lastT := e.series[len(e.series)-1].T
	out := make([]models.ForecastPoint, horizon)
	for k := 0; k < horizon; k++ {
		point := 0.0
		blendedHalf := 0.0
		strategyPoints := make([]float64, len(runs))
		byStrategy := make(map[string]float64, len(runs))
		for i, r := range runs {
			w := r.weight / totalWeight
			point += w * r.preds[k].Point
			blendedHalf += w * (r.preds[k].Upper - r.preds[k].Lower) / 2
			strategyPoints[i] = r.preds[k].Point
			byStrategy[r.name] = r.preds[k].Point
		}

		bestHalf := (runs[bestIdx].preds[k].Upper - runs[bestIdx].preds[k].Lower) / 2
		half := math.Max(blendedHalf, bestHalf) + stats.Std(strategyPoints)

		out[k] = models.ForecastPoint{
			Timestamp:  lastT.Add(time.Duration(k+1) * time.Hour),
			ByStrategy: byStrategy,
			Ensemble:   point,
			Lower:      math.Max(0, point-half),
			Upper:      point + half,
		}
	}
	return out, nil
}

// CompareModels tabulates per-strategy validation metrics plus the
// ensemble. The ensemble row is the weight-blended strategy scores, which
// estimates (not re-measures) combined accuracy.
func (e *Ensemble) CompareModels() []models.ModelScore {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []models.ModelScore
	var ensRMSE, ensMAE, ensMAPE float64
	for _, m := range e.members {
		out = append(out, models.ModelScore{
			Model:  m.strategy.Name(),
			RMSE:   m.scores.RMSE,
			MAE:    m.scores.MAE,
			MAPE:   m.scores.MAPE,
			Weight: m.weight,
		})
		ensRMSE += m.weight * m.scores.RMSE
		ensMAE += m.weight * m.scores.MAE
		ensMAPE += m.weight * m.scores.MAPE
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RMSE < out[j].RMSE })
	if len(out) > 0 {
		out = append(out, models.ModelScore{Model: "ensemble", RMSE: ensRMSE, MAE: ensMAE, MAPE: ensMAPE, Weight: 1})
	}
	return out
}

// seasonalNaive is the trailing fallback used in the degraded state: repeat
// the last observed season with a wide interval.
type seasonalNaive struct {
	lastSeason []float64
	mean       float64
	halfWidth  float64
	lastT      time.Time
}

func newSeasonalNaive(series []SeriesPoint, season int) seasonalNaive {
	sn := seasonalNaive{}
	if len(series) == 0 {
		return sn
	}
	vals := values(series)
	sn.mean = stats.Mean(vals)
	sn.halfWidth = 3 * stats.Std(vals)
	sn.lastT = series[len(series)-1].T
	if len(vals) >= season {
		sn.lastSeason = vals[len(vals)-season:]
	}
	return sn
}

func (sn seasonalNaive) predict(horizon int) []models.ForecastPoint {
	out := make([]models.ForecastPoint, horizon)
	for k := 0; k < horizon; k++ {
		p := sn.mean
		if len(sn.lastSeason) > 0 {
			p = sn.lastSeason[k%len(sn.lastSeason)]
		}
		out[k] = models.ForecastPoint{
			Timestamp:  sn.lastT.Add(time.Duration(k+1) * time.Hour),
			ByStrategy: map[string]float64{"seasonal_naive": p},
			Ensemble:   p,
			Lower:      math.Max(0, p-sn.halfWidth),
			Upper:      p + sn.halfWidth,
		}
	}
	return out
}
