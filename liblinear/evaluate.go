package liblinear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Accuracy is the fraction of predictions in target equal to the true
// labels y. Both slices must have the same length.
func Accuracy(target []float64, y []float64) float64 {
	correct := 0
	for i := range y {
		if target[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// RegressionMetrics returns the mean squared error and the squared
// correlation coefficient of the predictions in target against y.
func RegressionMetrics(target []float64, y []float64) (mse float64, scc float64) {
	l := float64(len(y))
	d := floats.Distance(target, y, 2)
	r := stat.Correlation(target, y, nil)
	return d * d / l, r * r
}
