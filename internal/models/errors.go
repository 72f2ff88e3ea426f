package models

import "fmt"

// FeatureError reports a structural violation of the input contract, such as
// a required duration column missing after upstream validation. It is the
// only error class that aborts an analysis run.
type FeatureError struct {
	OrderID string
	Field   string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature contract violation on order %s: missing required field %s", e.OrderID, e.Field)
}

// InsufficientDataError means too few rows or positive examples exist for a
// statistically meaningful computation. Engines recover by returning a
// partial result with an explicit sufficiency marker.
type InsufficientDataError struct {
	Op     string
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data (need %d, got %d)", e.Op, e.Needed, e.Got)
}

// ModelTrainingError wraps a failure of one strategy or model to converge.
// The ensemble excludes the strategy and renormalizes weights; the complaint
// model keeps its previous artifact flagged stale.
type ModelTrainingError struct {
	Model string
	Err   error
}

func (e *ModelTrainingError) Error() string {
	return fmt.Sprintf("training %s: %v", e.Model, e.Err)
}

func (e *ModelTrainingError) Unwrap() error { return e.Err }

// NumericError marks a degenerate computation (division by zero, zero
// variance). Callers substitute nil rather than letting NaN propagate into
// downstream comparisons.
type NumericError struct {
	Op string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("%s: degenerate numeric input", e.Op)
}
