package liblinear

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
)

// PredictValues returns the predicted label and the decision value of every
// weight column (one for binary and regression models).
//
// Indices greater than NrFeature are ignored: test data may contain features
// never seen in training, and the bias term is added from the model itself,
// so a caller-supplied bias node is ignored as well. Indices below 1 are
// rejected with ErrInvalidFeatureIndex.
func PredictValues(model *Model, x []FeatureNode) (float64, []float64, error) {
	nrW := model.nrW()
	decValues := make([]float64, nrW)
	w := model.W

	for _, node := range x {
		if node.Index < 1 {
			return 0, nil, errors.Wrapf(ErrInvalidFeatureIndex, "index %d", node.Index)
		}
		// the dimension of testing data may exceed that of training
		if node.Index > model.NumFeatures {
			continue
		}
		floats.AddScaled(decValues, node.Value, w[(node.Index-1)*nrW:node.Index*nrW])
	}
	if model.Bias >= 0 {
		floats.AddScaled(decValues, model.Bias, w[model.NumFeatures*nrW:(model.NumFeatures+1)*nrW])
	}

	if model.IsRegressionModel() {
		return decValues[0], decValues, nil
	}
	if model.NumClass == 2 && nrW == 1 {
		if decValues[0] > 0 {
			return float64(model.Label[0]), decValues, nil
		}
		return float64(model.Label[1]), decValues, nil
	}

	decMaxIdx := 0
	for i := 1; i < model.NumClass; i++ {
		if decValues[i] > decValues[decMaxIdx] {
			decMaxIdx = i
		}
	}
	return float64(model.Label[decMaxIdx]), decValues, nil
}

// Predict uses the model to predict the result based on the input features x
func Predict(model *Model, x []FeatureNode) (float64, error) {
	label, _, err := PredictValues(model, x)
	return label, err
}

// PredictProbability gives the probability estimates of each class, in the
// order of Model.Label. Only logistic regression models support it.
func PredictProbability(model *Model, x []FeatureNode) (float64, []float64, error) {
	if !model.IsProbabilityModel() {
		return 0, nil, errors.Wrapf(ErrNotProbabilityModel, "solver %s", model.SolverType.Name())
	}

	label, decValues, err := PredictValues(model, x)
	if err != nil {
		return 0, nil, err
	}

	nrClass := model.NumClass
	probEstimates := make([]float64, nrClass)
	for i, dec := range decValues {
		probEstimates[i] = 1 / (1 + math.Exp(-dec))
	}

	if nrClass == 2 { // for binary classification
		probEstimates[1] = 1 - probEstimates[0]
	} else {
		floats.Scale(1/floats.Sum(probEstimates), probEstimates)
	}

	return label, probEstimates, nil
}
