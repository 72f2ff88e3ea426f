package forecast

import (
	"github.com/pizzaops/opsight/internal/stats"
)

// regressionTree is a shallow CART-style tree fit on boosting residuals.
// Splits minimize the squared error of the two child means; candidate
// thresholds are taken at quartiles of the feature within the node.
type regressionTree struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *regressionTree
	right     *regressionTree
}

// minLeafSize stops splitting before leaves get noisy.
const minLeafSize = 5

func growTree(X [][]float64, y []float64, depth int) *regressionTree {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	return growNode(X, y, idx, depth)
}

func growNode(X [][]float64, y []float64, idx []int, depth int) *regressionTree {
	mean := meanAt(y, idx)
	if depth <= 0 || len(idx) < 2*minLeafSize {
		return &regressionTree{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(X, y, idx)
	if !ok {
		return &regressionTree{leaf: true, value: mean}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) < minLeafSize || len(rightIdx) < minLeafSize {
		return &regressionTree{leaf: true, value: mean}
	}

	return &regressionTree{
		feature:   feature,
		threshold: threshold,
		left:      growNode(X, y, leftIdx, depth-1),
		right:     growNode(X, y, rightIdx, depth-1),
	}
}

func bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	bestSSE := nodeSSE(y, idx)
	bestFeature, bestThreshold := -1, 0.0

	numFeatures := len(X[idx[0]])
	col := make([]float64, len(idx))
	for f := 0; f < numFeatures; f++ {
		for i, row := range idx {
			col[i] = X[row][f]
		}
		for _, q := range []float64{25, 50, 75} {
			threshold := stats.Percentile(col, q)
			sse, ok := splitSSE(X, y, idx, f, threshold)
			if ok && sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func splitSSE(X [][]float64, y []float64, idx []int, feature int, threshold float64) (float64, bool) {
	var lSum, rSum float64
	var lN, rN int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			lSum += y[i]
			lN++
		} else {
			rSum += y[i]
			rN++
		}
	}
	if lN < minLeafSize || rN < minLeafSize {
		return 0, false
	}
	lMean := lSum / float64(lN)
	rMean := rSum / float64(rN)

	var sse float64
	for _, i := range idx {
		var d float64
		if X[i][feature] <= threshold {
			d = y[i] - lMean
		} else {
			d = y[i] - rMean
		}
		sse += d * d
	}
	return sse, true
}

func nodeSSE(y []float64, idx []int) float64 {
	mean := meanAt(y, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return sse
}

func meanAt(y []float64, idx []int) float64 {
	vals := make([]float64, len(idx))
	for i, j := range idx {
		vals[i] = y[j]
	}
	return stats.Mean(vals)
}

func (t *regressionTree) predict(x []float64) float64 {
	if t.leaf {
		return t.value
	}
	if x[t.feature] <= t.threshold {
		return t.left.predict(x)
	}
	return t.right.predict(x)
}
