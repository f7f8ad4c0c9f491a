package liblinear

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParameterDefaultEps(t *testing.T) {
	for _, solverType := range SolverTypeValues() {
		param := NewParameter(solverType, 1, 0, 0.1, 0)
		assert.Equal(t, solverType.DefaultEps(), param.Eps, solverType.Name())
		assert.Equal(t, DefaultMaxIters, param.maxIters())
	}

	param := NewParameter(L2R_LR, 1, 0.5, 0.1, 20)
	assert.Equal(t, 0.5, param.Eps)
	assert.Equal(t, 20, param.maxIters())
}

func TestSetWeights(t *testing.T) {
	param := NewParameter(L2R_L1LOSS_SVC_DUAL, 100, 1e-3, 0.1, 1000)

	var expected []float64
	assert.Equal(t, expected, param.Weight)
	assert.Equal(t, 0, param.NumWeights())

	require.NoError(t, param.SetWeights([]float64{0.5, 1, 2, 3, 4, 5}, []int{1, 1, 1, 1, 2, 3}))
	assert.Equal(t, 6, param.NumWeights())

	err := param.SetWeights([]float64{0.5, 1, 2, 3, 4, 5}, []int{1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
	assert.Equal(t, 6, param.NumWeights())

	err = param.SetWeights([]float64{0}, []int{1})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "weight", validationErr.Field)
}

func TestGetWeights(t *testing.T) {
	param := NewParameter(L2R_L1LOSS_SVC_DUAL, 100, 1e-3, 0.1, 1000)
	weights := []float64{1, 1, 2, 3, 4, 5}
	weightLabels := []int{1, 1, 1, 1, 2, 3}

	require.NoError(t, param.SetWeights(weights, weightLabels))

	assert.Equal(t, param.Weights(), weights)
	param.Weights()[0]++
	assert.Equal(t, param.Weights(), weights)

	assert.Equal(t, param.WeightLabels(), weightLabels)
	param.WeightLabels()[0]++
	assert.Equal(t, param.WeightLabels(), weightLabels)

	weights[0] = 42
	assert.Equal(t, 1.0, param.Weights()[0])
}

func TestSetC(t *testing.T) {
	param := NewParameter(L2R_L1LOSS_SVC_DUAL, 100, 1e-3, 0.1, 1000)
	require.NoError(t, param.SetC(0.0001))
	assert.Equal(t, 0.0001, param.C)

	require.NoError(t, param.SetC(100))
	assert.Equal(t, 100.0, param.C)

	assert.Error(t, param.SetC(-1))
	assert.Error(t, param.SetC(0))
	assert.Equal(t, 100.0, param.C)
}

func TestSetEps(t *testing.T) {
	param := NewParameter(L2R_L1LOSS_SVC_DUAL, 100, 1e-3, 0.1, 1000)
	require.NoError(t, param.SetEps(0.0001))
	assert.Equal(t, 0.0001, param.Eps)

	assert.Error(t, param.SetEps(-1))
	assert.Error(t, param.SetEps(0))
	assert.Equal(t, 0.0001, param.Eps)
}

func TestSetSolverType(t *testing.T) {
	param := NewParameter(L2R_L1LOSS_SVC_DUAL, 100, 1e-3, 0.1, 1000)
	for _, solverType := range SolverTypeValues() {
		require.NoError(t, param.SetSolverType(solverType))
		assert.Equal(t, param.SolverType, solverType)
	}

	var nilSolverType *SolverType
	assert.Error(t, param.SetSolverType(nilSolverType))
}

func TestParameterClone(t *testing.T) {
	param := NewParameter(L2R_LR, 1, 0.01, 0.1, 1000)
	require.NoError(t, param.SetWeights([]float64{2}, []int{1}))
	param.InitSol = []float64{1, 2}

	c := param.clone()
	c.Weight[0] = 3
	c.InitSol[0] = 5
	assert.Equal(t, 2.0, param.Weight[0])
	assert.Equal(t, 1.0, param.InitSol[0])
}

func TestSolverTypeLookup(t *testing.T) {
	for _, solverType := range SolverTypeValues() {
		byID, err := SolverTypeByID(solverType.ID())
		require.NoError(t, err)
		assert.Same(t, solverType, byID)

		byName, err := SolverTypeByName(solverType.Name())
		require.NoError(t, err)
		assert.Same(t, solverType, byName)
	}

	_, err := SolverTypeByID(8)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = SolverTypeByName("L3R_LR")
	assert.True(t, errors.Is(err, ErrMalformedModel))

	assert.True(t, L1R_LR.IsLogisticRegressionSolver())
	assert.False(t, L1R_L2LOSS_SVC.IsLogisticRegressionSolver())
	assert.True(t, L2R_L1LOSS_SVR_DUAL.IsSupportVectorRegression())
	assert.Equal(t, 0.001, L2R_L2LOSS_SVR.DefaultEps())
}
