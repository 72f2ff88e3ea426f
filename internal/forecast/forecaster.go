// Package forecast predicts future order volume by combining three
// independent strategies into an accuracy-weighted ensemble, and translates
// the combined forecast into staffing recommendations.
package forecast

import (
	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// Prediction is one forecast step from a single strategy.
type Prediction struct {
	Point float64
	Lower float64
	Upper float64
}

// Forecaster is the capability every strategy implements. Fit runs
// forward-chaining expanding-window validation internally, so
// ValidationError never reflects lookahead.
type Forecaster interface {
	Name() string
	Fit(series []SeriesPoint) error
	Predict(horizon int) ([]Prediction, error)
	ValidationError() float64
}

// validationScores carries the forward-chaining metrics every strategy
// records during Fit.
type validationScores struct {
	RMSE float64
	MAE  float64
	MAPE float64
}

// windowFit fits a throwaway model on a training window and returns a
// predictor for the following steps.
type windowFit func(train []SeriesPoint) (func(horizon int) []float64, error)

// forwardChain validates a strategy by expanding-window cross-validation:
// each fold trains strictly on data preceding its validation window, so the
// scores carry no lookahead. Fold errors are pooled before computing the
// final metrics.
func forwardChain(series []SeriesPoint, folds int, minTrainFraction float64, fit windowFit) (validationScores, error) {
	n := len(series)
	start := int(float64(n) * minTrainFraction)
	if start < 1 {
		start = 1
	}
	if folds < 1 {
		folds = 1
	}
	if n-start < folds {
		return validationScores{}, &models.InsufficientDataError{
			Op:     "forward-chaining validation",
			Needed: start + folds,
			Got:    n,
		}
	}

	var actuals, predicted []float64
	for f := 0; f < folds; f++ {
		trainEnd := start + f*(n-start)/folds
		valEnd := start + (f+1)*(n-start)/folds
		if valEnd <= trainEnd {
			continue
		}
		predict, err := fit(series[:trainEnd])
		if err != nil {
			return validationScores{}, err
		}
		preds := predict(valEnd - trainEnd)
		for i := trainEnd; i < valEnd; i++ {
			actuals = append(actuals, series[i].V)
			predicted = append(predicted, preds[i-trainEnd])
		}
	}
	if len(actuals) == 0 {
		return validationScores{}, &models.InsufficientDataError{Op: "forward-chaining validation", Needed: 1, Got: 0}
	}

	return validationScores{
		RMSE: stats.RMSE(actuals, predicted),
		MAE:  stats.MAE(actuals, predicted),
		MAPE: stats.MAPE(actuals, predicted),
	}, nil
}
