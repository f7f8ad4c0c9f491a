package liblinear

// Model is a trained linear model. W is stored feature-major: the weight of
// feature j (1-based) for class column m is W[(j-1)*nrW+m], where nrW is 1
// for binary and regression models and NumClass otherwise. When Bias >= 0
// the row after the last feature holds the bias weights.
type Model struct {
	Bias        float64
	Label       []int
	NumClass    int
	NumFeatures int
	SolverType  *SolverType
	W           []float64
}

// NewModel wraps trained weights. label and w are copied.
func NewModel(bias float64, label []int, numClass int, numFeatures int, solverType *SolverType, w []float64) *Model {
	var labelCopy []int
	if label != nil {
		labelCopy = append([]int{}, label...)
	}
	var wCopy []float64
	if w != nil {
		wCopy = append([]float64{}, w...)
	}
	return &Model{
		Bias:        bias,
		Label:       labelCopy,
		NumClass:    numClass,
		NumFeatures: numFeatures,
		SolverType:  solverType,
		W:           wCopy,
	}
}

// NrFeature is the number of features seen in training, without the bias
func (model *Model) NrFeature() int {
	return model.NumFeatures
}

// NrClass is the number of classes; 2 for regression models
func (model *Model) NrClass() int {
	return model.NumClass
}

// Labels returns a copy of the class labels in internal order, nil for
// regression models.
func (model *Model) Labels() []int {
	if model.Label == nil {
		return nil
	}
	return append([]int(nil), model.Label...)
}

// FeatureWeights returns a copy of W
func (model *Model) FeatureWeights() []float64 {
	return append([]float64{}, model.W...)
}

// IsProbabilityModel reports whether PredictProbability is supported
func (model *Model) IsProbabilityModel() bool {
	return model.SolverType.IsLogisticRegressionSolver()
}

// IsRegressionModel reports whether the model predicts real values
func (model *Model) IsRegressionModel() bool {
	return model.SolverType.IsSupportVectorRegression()
}

// DecfunCoef is the coefficient of feature featIdx (1-based) in the decision
// function of the class at labelIdx. Out of range indices give 0. For binary
// models the second class gets the negated coefficient.
func (model *Model) DecfunCoef(featIdx int, labelIdx int) float64 {
	if featIdx > model.NumFeatures {
		return 0
	}
	return model.wValue(featIdx-1, labelIdx)
}

// DecfunBias is the intercept of the decision function of the class at
// labelIdx, 0 when the model has no positive bias.
func (model *Model) DecfunBias(labelIdx int) float64 {
	if model.Bias <= 0 {
		return 0
	}
	return model.Bias * model.wValue(model.NumFeatures, labelIdx)
}

func (model *Model) wValue(idx int, labelIdx int) float64 {
	if idx < 0 || idx > model.NumFeatures || idx >= model.wSize() {
		return 0
	}
	if model.IsRegressionModel() {
		return model.W[idx]
	}
	if labelIdx < 0 || labelIdx >= model.NumClass {
		return 0
	}
	if model.nrW() == 1 && model.NumClass == 2 {
		if labelIdx == 0 {
			return model.W[idx]
		}
		return -model.W[idx]
	}
	return model.W[idx*model.nrW()+labelIdx]
}

func (model *Model) nrW() int {
	if model.NumClass == 2 && model.SolverType != MCSVM_CS {
		return 1
	}
	return model.NumClass
}

func (model *Model) wSize() int {
	if model.Bias >= 0 {
		return model.NumFeatures + 1
	}
	return model.NumFeatures
}
