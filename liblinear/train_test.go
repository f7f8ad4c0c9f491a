package liblinear

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limhan.info/l1path/internal/testutil"
)

func init() {
	SetQuiet(true)
}

func smallProblem() *Problem {
	x := [][]FeatureNode{
		{NewFeatureNode(1, 1), NewFeatureNode(2, 1)},
		{NewFeatureNode(3, 1)},
		{NewFeatureNode(3, 1)},
		{NewFeatureNode(1, 2), NewFeatureNode(2, 1), NewFeatureNode(4, 1)},
	}
	return &Problem{
		Bias: -1,
		L:    4,
		N:    4,
		X:    x,
		Y:    []float64{0, 1, 1, 0},
	}
}

func TestTrainPredict(t *testing.T) {
	prob := smallProblem()

	for _, solver := range solverTypeValues {
		for C := 0.1; C <= 100; C *= 1.2 {
			if C < 0.2 && solver == L1R_L2LOSS_SVC {
				continue
			}
			if C < 0.7 && solver == L1R_LR {
				continue
			}
			if solver.IsSupportVectorRegression() {
				continue
			}

			param := NewParameter(solver, C, 0.1, 0.1, 1000)
			model, err := Train(prob, param)
			require.NoError(t, err)

			featureWeights := model.FeatureWeights()
			if solver == MCSVM_CS {
				assert.Equal(t, 8, len(featureWeights))
			} else {
				assert.Equal(t, 4, len(featureWeights))
			}

			for i, value := range prob.Y {
				prediction, err := Predict(model, prob.X[i])
				require.NoError(t, err)
				assert.Equal(t, value, prediction, fmt.Sprintf("assertion failed for solverType %v, C=%g", model.SolverType.Name(), C))

				if model.IsProbabilityModel() {
					probabilityPrediction, estimates, err := PredictProbability(model, prob.X[i])
					require.NoError(t, err)
					assert.Equal(t, prediction, probabilityPrediction)
					assert.GreaterOrEqual(t, estimates[int(probabilityPrediction)], 1.0/float64(model.NumClass))

					var estimationSum float64
					for _, estimate := range estimates {
						estimationSum += estimate
					}
					assert.InDelta(t, 1.0, estimationSum, 1e-9)
				}
			}
		}
	}
}

func TestTrainMultiClass(t *testing.T) {
	prob := problemFromLines(t, testutil.SeparableProblemLines(1, 20, 3, 3), 1)

	for _, solver := range solverTypeValues {
		if solver.IsSupportVectorRegression() {
			continue
		}
		param := NewParameter(solver, 10, 0, 0, 0)
		model, err := Train(prob, param)
		require.NoError(t, err, solver.Name())

		assert.Equal(t, 3, model.NrClass())
		assert.Equal(t, []int{1, 2, 3}, model.Labels())
		assert.Equal(t, 6, model.NrFeature())
		assert.Len(t, model.W, 7*3)

		target := make([]float64, prob.L)
		for i := range target {
			target[i], err = Predict(model, prob.X[i])
			require.NoError(t, err)
		}
		assert.GreaterOrEqual(t, Accuracy(target, prob.Y), 0.95, solver.Name())
	}
}

func TestTrainMCSVMCS(t *testing.T) {
	x := [][]FeatureNode{
		{NewFeatureNode(1, 1)},
		{NewFeatureNode(1, 2)},
		{NewFeatureNode(1, 3)},
	}
	prob := NewProblem(3, 1, []float64{1, 2, 3}, x, -1)

	model, err := Train(prob, NewParameter(MCSVM_CS, 1, 0.1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, MCSVM_CS, model.SolverType)
	assert.Equal(t, 3, model.NrClass())
	assert.Len(t, model.W, 3)

	// two classes still keep one weight column per class
	binary := NewProblem(2, 1, []float64{1, 2}, x[:2], -1)
	model, err = Train(binary, NewParameter(MCSVM_CS, 1, 0.1, 0, 0))
	require.NoError(t, err)
	assert.Len(t, model.W, 2)

	target, err := CrossValidation(problemFromLines(t, testutil.SeparableProblemLines(5, 10, 3, 1), 1), NewParameter(MCSVM_CS, 10, 0, 0, 0), 2)
	require.NoError(t, err)
	assert.Len(t, target, 30)
}

func TestTrainRegression(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		x1 := float64(i%7) / 7
		x2 := float64(i%5) / 5
		lines = append(lines, fmt.Sprintf("%g 1:%g 2:%g", 2*x1-x2+0.5, x1, x2))
	}
	prob := problemFromLines(t, lines, 1)

	for _, solver := range []*SolverType{L2R_L2LOSS_SVR, L2R_L2LOSS_SVR_DUAL, L2R_L1LOSS_SVR_DUAL} {
		param := NewParameter(solver, 100, 0.0001, 0.01, 10000)
		model, err := Train(prob, param)
		require.NoError(t, err, solver.Name())

		assert.True(t, model.IsRegressionModel())
		assert.Nil(t, model.Labels())
		assert.Len(t, model.W, 3)

		target := make([]float64, prob.L)
		for i := range target {
			target[i], err = Predict(model, prob.X[i])
			require.NoError(t, err)
		}
		mse, scc := RegressionMetrics(target, prob.Y)
		assert.Less(t, mse, 0.01, solver.Name())
		assert.Greater(t, scc, 0.95, solver.Name())
	}
}

func TestTrainL1RLRKeepsEmptyColumnZero(t *testing.T) {
	prob := twinProblem(21, 30)
	for _, c := range []float64{0.1, 1, 100} {
		model, err := Train(prob, NewParameter(L1R_LR, c, 0.01, 0, 0))
		require.NoError(t, err)
		assert.Zero(t, model.W[twinZeroValued-1])
		assert.Zero(t, model.W[twinFeatures-1])
	}
}

func TestTrainClassWeights(t *testing.T) {
	prob := twinProblem(22, 30)

	param := NewParameter(L2R_LR, 1, 0.01, 0, 0)
	require.NoError(t, param.SetWeights([]float64{5}, []int{1}))
	weighted, err := Train(prob, param)
	require.NoError(t, err)

	plain, err := Train(prob, NewParameter(L2R_LR, 1, 0.01, 0, 0))
	require.NoError(t, err)
	assert.NotEqual(t, plain.W, weighted.W)

	require.NoError(t, param.SetWeights([]float64{5}, []int{7}))
	_, err = Train(prob, param)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "weight_label", validationErr.Field)
}

func TestTrainInitialSolution(t *testing.T) {
	prob := twinProblem(23, 30)

	for _, solver := range []*SolverType{L2R_LR, L2R_L2LOSS_SVC, L1R_LR} {
		param := NewParameter(solver, 1, 0.001, 0, 0)
		model, err := Train(prob, param)
		require.NoError(t, err)

		param.InitSol = model.FeatureWeights()
		again, err := Train(prob, param)
		require.NoError(t, err, solver.Name())
		assert.InDeltaSlice(t, model.W, again.W, 0.05, solver.Name())
	}

	param := NewParameter(L2R_L1LOSS_SVC_DUAL, 1, 0.1, 0, 0)
	param.InitSol = make([]float64, prob.N)
	_, err := Train(prob, param)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	param = NewParameter(L2R_LR, 1, 0.1, 0, 0)
	param.InitSol = make([]float64, prob.N+1)
	_, err = Train(prob, param)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestCheckParameter(t *testing.T) {
	prob := smallProblem()
	valid := func() *Parameter { return NewParameter(L2R_LR, 1, 0.01, 0.1, 0) }

	require.NoError(t, CheckParameter(prob, valid()))

	assert.True(t, errors.Is(CheckParameter(prob, nil), ErrInvalidParameter))
	assert.True(t, errors.Is(CheckParameter(nil, valid()), ErrInvalidProblem))

	cases := map[string]func(p *Parameter){
		"unknown solver": func(p *Parameter) { p.SolverType = &SolverType{id: 42, name: "FOO"} },
		"nil solver":     func(p *Parameter) { p.SolverType = nil },
		"eps":            func(p *Parameter) { p.Eps = 0 },
		"C zero":         func(p *Parameter) { p.C = 0 },
		"C negative":     func(p *Parameter) { p.C = -1 },
		"C NaN":          func(p *Parameter) { p.C = math.NaN() },
		"p":              func(p *Parameter) { p.P = -0.1 },
		"weight count":   func(p *Parameter) { p.Weight = []float64{1}; p.WeightLabel = nil },
		"weight value":   func(p *Parameter) { p.Weight = []float64{-1}; p.WeightLabel = []int{1} },
		"weight label":   func(p *Parameter) { p.Weight = []float64{1}; p.WeightLabel = []int{3} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			param := valid()
			mutate(param)
			err := CheckParameter(prob, param)
			assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestTrainTooLargeProblem(t *testing.T) {
	l := 1000
	n := 20000000
	y := make([]float64, l)
	x := make([][]FeatureNode, l)

	for i := 0; i < l; i++ {
		x[i] = []FeatureNode{}
		y[i] = float64(i)
	}

	prob := NewProblem(l, n, y, x, -1)

	for _, solverType := range solverTypeValues {
		if solverType.IsSupportVectorRegression() {
			continue
		}

		param := NewParameter(solverType, 10, 0.1, 0.1, 1000)
		_, err := Train(prob, param)
		assert.True(t, errors.Is(err, ErrProblemTooLarge), solverType.Name())
	}
}

func TestTrainEmptyProblem(t *testing.T) {
	prob := NewProblem(0, 3, nil, nil, -1)
	_, err := Train(prob, NewParameter(L2R_LR, 1, 0.01, 0, 0))
	assert.True(t, errors.Is(err, ErrInvalidProblem))
}

func TestTrainDoesNotModifyProblem(t *testing.T) {
	prob := twinProblem(24, 20)
	y := append([]float64(nil), prob.Y...)
	first := append([]FeatureNode(nil), prob.X[0]...)

	for _, solver := range solverTypeValues {
		if solver.IsSupportVectorRegression() {
			continue
		}
		_, err := Train(prob, NewParameter(solver, 1, 0, 0, 0))
		require.NoError(t, err)
	}

	assert.Equal(t, y, prob.Y)
	assert.Equal(t, first, prob.X[0])
}

func TestTrainLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	param := NewParameter(L2R_LR, 1, 0.01, 0, 0)
	param.Logger = &logger
	_, err := Train(twinProblem(25, 20), param)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"solver":"L2R_LR"`)
	assert.Contains(t, buf.String(), "optimization finished")
}

func TestTrainL1RLRLogsOnceWithSolverField(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	param := NewParameter(L1R_LR, 1, 0.01, 0, 0)
	param.Logger = &logger
	_, err := Train(twinProblem(29, 20), param)
	require.NoError(t, err)
	_, err = TrainPath(twinProblem(29, 20), param, []float64{0.5, 1})
	require.NoError(t, err)

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	assert.Contains(t, out, "optimization finished")
	assert.Contains(t, out, "path step finished")
	for _, line := range strings.Split(out, "\n") {
		assert.Equal(t, 1, strings.Count(line, `"solver":"L1R_LR"`), line)
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	SetQuiet(false)
	defer func() {
		SetQuiet(true)
		SetLogger(zerolog.Nop())
	}()

	_, err := Train(twinProblem(26, 20), NewParameter(L1R_LR, 1, 0.01, 0, 0))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"solver":"L1R_LR"`)

	buf.Reset()
	SetQuiet(true)
	_, err = Train(twinProblem(26, 20), NewParameter(L1R_LR, 1, 0.01, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestTrainPath(t *testing.T) {
	prob := twinProblem(27, 40)
	cs := []float64{0.1, 0.5, 2}

	models, err := TrainPath(prob, NewParameter(L1R_LR, 1, 0.001, 0, 0), cs)
	require.NoError(t, err)
	require.Len(t, models, len(cs))

	for k, c := range cs {
		assert.Len(t, models[k].W, prob.N)
		assert.Equal(t, models[0].Label, models[k].Label)

		single, err := Train(prob, NewParameter(L1R_LR, c, 0.001, 0, 0))
		require.NoError(t, err)
		assert.InDeltaSlice(t, single.W, models[k].W, 0.02, "C=%g", c)
	}
}

func TestTrainPathMultiClass(t *testing.T) {
	prob := problemFromLines(t, testutil.SeparableProblemLines(2, 20, 3, 2), -1)
	cs := []float64{0.01, 1, 10}

	models, err := TrainPath(prob, NewParameter(L1R_LR, 1, 0.01, 0, 0), cs)
	require.NoError(t, err)

	last := models[len(models)-1]
	assert.Equal(t, 3, last.NumClass)
	assert.Len(t, last.W, prob.N*3)

	target := make([]float64, prob.L)
	for i := range target {
		target[i], err = Predict(last, prob.X[i])
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, Accuracy(target, prob.Y), 0.95)

	nnz := func(m *Model) int {
		n := 0
		for _, w := range m.W {
			if w != 0 {
				n++
			}
		}
		return n
	}
	assert.LessOrEqual(t, nnz(models[0]), nnz(last))
}

func TestTrainPathErrors(t *testing.T) {
	prob := twinProblem(28, 10)

	_, err := TrainPath(prob, NewParameter(L2R_LR, 1, 0.01, 0, 0), []float64{1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = TrainPath(prob, NewParameter(L1R_LR, 1, 0.01, 0, 0), []float64{2, 1})
	assert.True(t, errors.Is(err, ErrUnsortedPath))

	_, err = TrainPath(prob, NewParameter(L1R_LR, 1, 0.01, 0, 0), nil)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	param := NewParameter(L1R_LR, 1, 0.01, 0, 0)
	param.InitSol = make([]float64, prob.N)
	_, err = TrainPath(prob, param, []float64{1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}
