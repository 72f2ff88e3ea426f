// Package complaint implements the complaint risk model: a class-weighted
// logistic classifier over engineered order features, validated by
// stratified k-fold cross-validation. The additive linear form keeps exact
// per-feature attributions available for explanations.
package complaint

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/pizzaops/opsight/internal/models"
	"github.com/pizzaops/opsight/internal/stats"
)

// State is the model lifecycle. A model is only ever trained or untrained;
// staleness is a flag on a trained model, never a fallback to untrained.
type State int

const (
	StateUntrained State = iota
	StateTrained
)

// ConfusionMatrix aggregated across validation folds.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Metrics reports cross-validated training quality.
type Metrics struct {
	F1Mean        float64         `json:"f1_mean"`
	F1Std         float64         `json:"f1_std"`
	PrecisionMean float64         `json:"precision_mean"`
	RecallMean    float64         `json:"recall_mean"`
	AUCMean       float64         `json:"auc_mean"`
	Confusion     ConfusionMatrix `json:"confusion"`
	NSamples      int             `json:"n_samples"`
	NComplaints   int             `json:"n_complaints"`
	ComplaintRate float64         `json:"complaint_rate_pct"`
}

// Model is the complaint risk classifier.
type Model struct {
	cfg *models.Config

	mu         sync.RWMutex
	state      State
	stale      bool
	enc        *Encoder
	weights    []float64
	bias       float64
	metrics    Metrics
	importance []models.FeatureContribution
}

func NewModel(cfg *models.Config) *Model {
	return &Model{cfg: cfg}
}

// State returns the lifecycle state.
func (m *Model) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stale reports whether the current artifact has been superseded by newer
// data or a failed retrain.
func (m *Model) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale
}

// MarkStale flags the current artifact without discarding it.
func (m *Model) MarkStale() {
	m.mu.Lock()
	m.stale = true
	m.mu.Unlock()
}

// Metrics returns the metrics of the active artifact.
func (m *Model) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Train fits the classifier on engineered rows. When the positive class is
// below the configured minimum it returns InsufficientDataError and leaves
// any previously trained artifact in place, flagged stale.
func (m *Model) Train(rows []models.FeatureRow) (Metrics, error) {
	y := make([]float64, len(rows))
	positives := 0
	for i := range rows {
		if rows[i].Complaint {
			y[i] = 1
			positives++
		}
	}
	if positives < m.cfg.MinComplaintPositives {
		m.mu.Lock()
		if m.state == StateTrained {
			m.stale = true
		}
		m.mu.Unlock()
		return Metrics{}, &models.InsufficientDataError{
			Op:     "complaint model training",
			Needed: m.cfg.MinComplaintPositives,
			Got:    positives,
		}
	}

	enc := newEncoder(m.cfg)
	enc.Fit(rows)
	X := enc.TransformAll(rows)

	metrics, err := m.crossValidate(X, y)
	if err != nil {
		m.mu.Lock()
		if m.state == StateTrained {
			m.stale = true
		}
		m.mu.Unlock()
		return Metrics{}, err
	}
	metrics.NSamples = len(rows)
	metrics.NComplaints = positives
	metrics.ComplaintRate = float64(positives) / float64(len(rows)) * 100

	weights, bias := trainLogistic(X, y, m.cfg)

	// Global importance: mean absolute contribution over training rows.
	importance := make([]models.FeatureContribution, len(enc.FeatureNames()))
	for j, name := range enc.FeatureNames() {
		var sum float64
		for i := range X {
			sum += math.Abs(weights[j] * X[i][j])
		}
		importance[j] = models.FeatureContribution{
			Feature:      name,
			Contribution: sum / float64(len(X)),
		}
	}
	sort.SliceStable(importance, func(i, j int) bool {
		return importance[i].Contribution > importance[j].Contribution
	})

	m.mu.Lock()
	m.state = StateTrained
	m.stale = false
	m.enc = enc
	m.weights = weights
	m.bias = bias
	m.metrics = metrics
	m.importance = importance
	m.mu.Unlock()
	return metrics, nil
}

// crossValidate runs stratified k-fold validation, training a throwaway
// classifier per fold.
func (m *Model) crossValidate(X [][]float64, y []float64) (Metrics, error) {
	k := m.cfg.CVFolds
	if k < 2 {
		k = 5
	}
	folds := stratifiedFolds(y, k, 42)

	var f1s, precisions, recalls, aucs []float64
	var confusion ConfusionMatrix

	for f := 0; f < k; f++ {
		var trainX [][]float64
		var trainY []float64
		var valX [][]float64
		var valY []float64
		for i := range X {
			if folds[i] == f {
				valX = append(valX, X[i])
				valY = append(valY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(valX) == 0 || countPositives(trainY) == 0 {
			continue
		}

		w, b := trainLogistic(trainX, trainY, m.cfg)
		probs := make([]float64, len(valX))
		for i := range valX {
			probs[i] = sigmoid(dot(w, valX[i]) + b)
		}

		var tp, fp, tn, fn int
		for i := range probs {
			predicted := probs[i] >= m.cfg.RiskThreshold
			actual := valY[i] == 1
			switch {
			case predicted && actual:
				tp++
			case predicted && !actual:
				fp++
			case !predicted && actual:
				fn++
			default:
				tn++
			}
		}
		confusion.TP += tp
		confusion.FP += fp
		confusion.TN += tn
		confusion.FN += fn

		precision := safeDiv(float64(tp), float64(tp+fp))
		recall := safeDiv(float64(tp), float64(tp+fn))
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		f1s = append(f1s, f1)
		precisions = append(precisions, precision)
		recalls = append(recalls, recall)
		aucs = append(aucs, rocAUC(valY, probs))
	}

	if len(f1s) == 0 {
		return Metrics{}, &models.ModelTrainingError{
			Model: "complaint",
			Err:   &models.InsufficientDataError{Op: "cross-validation folds", Needed: 1, Got: 0},
		}
	}

	return Metrics{
		F1Mean:        stats.Mean(f1s),
		F1Std:         stats.Std(f1s),
		PrecisionMean: stats.Mean(precisions),
		RecallMean:    stats.Mean(recalls),
		AUCMean:       stats.Mean(aucs),
		Confusion:     confusion,
	}, nil
}

// PredictProba returns the complaint probability per row. Rows with
// categorical values unseen at training time map to the unknown bucket.
func (m *Model) PredictProba(rows []models.FeatureRow) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateTrained {
		return nil, &models.ModelTrainingError{Model: "complaint", Err: errNotTrained}
	}
	probs := make([]float64, len(rows))
	for i := range rows {
		x := m.enc.Transform(&rows[i])
		probs[i] = sigmoid(dot(m.weights, x) + m.bias)
	}
	return probs, nil
}

// Score returns full per-order risk scores with ranked attributions at the
// configured threshold.
func (m *Model) Score(rows []models.FeatureRow) ([]models.ComplaintRiskScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateTrained {
		return nil, &models.ModelTrainingError{Model: "complaint", Err: errNotTrained}
	}
	scores := make([]models.ComplaintRiskScore, len(rows))
	for i := range rows {
		scores[i] = m.scoreOne(&rows[i])
	}
	return scores, nil
}

// Explain returns the attribution for a single row: signed per-feature
// contributions that sum with Bias to the raw model score.
func (m *Model) Explain(row *models.FeatureRow) (models.ComplaintRiskScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateTrained {
		return models.ComplaintRiskScore{}, &models.ModelTrainingError{Model: "complaint", Err: errNotTrained}
	}
	return m.scoreOne(row), nil
}

func (m *Model) scoreOne(row *models.FeatureRow) models.ComplaintRiskScore {
	x := m.enc.Transform(row)
	logit := m.bias
	contributions := make([]models.FeatureContribution, 0, len(x))
	for j, name := range m.enc.FeatureNames() {
		c := m.weights[j] * x[j]
		logit += c
		if x[j] != 0 {
			contributions = append(contributions, models.FeatureContribution{
				Feature:      name,
				Value:        x[j],
				Contribution: c,
			})
		}
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].Contribution) > math.Abs(contributions[j].Contribution)
	})
	return models.ComplaintRiskScore{
		OrderID:       row.OrderID,
		Probability:   sigmoid(logit),
		Predicted:     sigmoid(logit) >= m.cfg.RiskThreshold,
		Bias:          m.bias,
		Contributions: contributions,
	}
}

// GlobalImportance returns features ranked by mean absolute contribution
// over the training set.
func (m *Model) GlobalImportance(topN int) []models.FeatureContribution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topN <= 0 || topN > len(m.importance) {
		topN = len(m.importance)
	}
	out := make([]models.FeatureContribution, topN)
	copy(out, m.importance[:topN])
	return out
}

// trainLogistic fits weights and bias by full-batch gradient descent with
// inverse-class-frequency sample weights compensating the minority
// complaint class.
func trainLogistic(X [][]float64, y []float64, cfg *models.Config) ([]float64, float64) {
	n := len(X)
	if n == 0 {
		return nil, 0
	}
	dim := len(X[0])
	weights := make([]float64, dim)
	bias := 0.0

	pos := countPositives(y)
	neg := n - pos
	wPos, wNeg := 1.0, 1.0
	if pos > 0 && neg > 0 {
		wPos = float64(n) / (2 * float64(pos))
		wNeg = float64(n) / (2 * float64(neg))
	}

	epochs := cfg.TrainEpochs
	if epochs <= 0 {
		epochs = 300
	}
	lr := cfg.LearningRate
	if lr <= 0 {
		lr = 0.1
	}

	grad := make([]float64, dim)
	for epoch := 0; epoch < epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		var totalWeight float64
		for i := 0; i < n; i++ {
			p := sigmoid(dot(weights, X[i]) + bias)
			sw := wNeg
			if y[i] == 1 {
				sw = wPos
			}
			err := sw * (p - y[i])
			for j := 0; j < dim; j++ {
				grad[j] += err * X[i][j]
			}
			gradBias += err
			totalWeight += sw
		}
		for j := 0; j < dim; j++ {
			weights[j] -= lr * (grad[j]/totalWeight + cfg.L2Penalty*weights[j])
		}
		bias -= lr * gradBias / totalWeight
	}
	return weights, bias
}

// stratifiedFolds assigns each index a fold, distributing both classes
// evenly. Deterministic under a fixed seed.
func stratifiedFolds(y []float64, k int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	var posIdx, negIdx []int
	for i, v := range y {
		if v == 1 {
			posIdx = append(posIdx, i)
		} else {
			negIdx = append(negIdx, i)
		}
	}
	rng.Shuffle(len(posIdx), func(i, j int) { posIdx[i], posIdx[j] = posIdx[j], posIdx[i] })
	rng.Shuffle(len(negIdx), func(i, j int) { negIdx[i], negIdx[j] = negIdx[j], negIdx[i] })

	folds := make([]int, len(y))
	for i, idx := range posIdx {
		folds[idx] = i % k
	}
	for i, idx := range negIdx {
		folds[idx] = i % k
	}
	return folds
}

// rocAUC computes the area under the ROC curve by the rank statistic,
// averaging ranks across probability ties.
func rocAUC(y, probs []float64) float64 {
	type pair struct {
		p float64
		y float64
	}
	pairs := make([]pair, len(y))
	for i := range y {
		pairs[i] = pair{probs[i], y[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	ranks := make([]float64, len(pairs))
	for i := 0; i < len(pairs); {
		j := i
		for j < len(pairs) && pairs[j].p == pairs[i].p {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for t := i; t < j; t++ {
			ranks[t] = avg
		}
		i = j
	}

	var posRankSum float64
	var pos, neg int
	for i := range pairs {
		if pairs[i].y == 1 {
			posRankSum += ranks[i]
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (posRankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}

func countPositives(y []float64) int {
	n := 0
	for _, v := range y {
		if v == 1 {
			n++
		}
	}
	return n
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
