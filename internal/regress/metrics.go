package regress

import (
	"fmt"
	"math"
)

// Report bundles the standard regression metrics for one evaluation pass.
type Report struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
	N    int     `json:"n"`
}

// MSE returns the mean squared error. Mismatched slice lengths yield NaN;
// Evaluate reports the mismatch as an error instead.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) {
		return math.NaN()
	}
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

// RMSE returns the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 {
	return math.Sqrt(MSE(yTrue, yPred))
}

// MAE returns the mean absolute error, or NaN on mismatched lengths.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) {
		return math.NaN()
	}
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yPred[i] - yTrue[i])
	}
	return s / float64(len(yTrue))
}

// R2 returns the coefficient of determination. A constant yTrue or
// mismatched lengths yield NaN.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) != len(yPred) || len(yTrue) == 0 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		t := yTrue[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

// Evaluate computes all metrics at once.
func Evaluate(yTrue, yPred []float64) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("regress: yTrue has %d values, yPred has %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("regress: nothing to evaluate")
	}
	return &Report{
		MSE:  MSE(yTrue, yPred),
		RMSE: RMSE(yTrue, yPred),
		MAE:  MAE(yTrue, yPred),
		R2:   R2(yTrue, yPred),
		N:    len(yTrue),
	}, nil
}
