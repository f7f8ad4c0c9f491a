package liblinear

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	twinInformative = 2 // features 1 and 2
	twinIrrelevant  = 2 // features 3 and 4, mirrored in every twin pair
	twinZeroValued  = 5 // stored but always 0
	twinFeatures    = 6 // feature 6 never appears
)

// twinProblem builds pairs of examples that agree on every feature except
// the irrelevant ones, which are negated in the twin. The gradient of an
// irrelevant feature therefore cancels for any weights that keep it at zero.
func twinProblem(seed int64, pairs int) *Problem {
	random := rand.New(rand.NewSource(seed))
	y := make([]float64, 0, 2*pairs)
	x := make([][]FeatureNode, 0, 2*pairs)

	for k := 0; k < pairs; k++ {
		label := 1.0
		if k%2 == 1 {
			label = -1
		}
		f1 := label*(0.5+random.Float64()) + 0.3*random.NormFloat64()
		f2 := 0.5*label + random.NormFloat64()
		// some label noise keeps the classes overlapping
		if random.Float64() < 0.1 {
			label = -label
		}
		v3 := random.NormFloat64()
		v4 := random.NormFloat64()

		for _, sign := range []float64{1, -1} {
			y = append(y, label)
			x = append(x, []FeatureNode{
				NewFeatureNode(1, f1),
				NewFeatureNode(2, f2),
				NewFeatureNode(3, sign*v3),
				NewFeatureNode(4, sign*v4),
				NewFeatureNode(twinZeroValued, 0),
			})
		}
	}

	return NewProblem(len(y), twinFeatures, y, x, -1)
}

func newTestSolver(t *testing.T, prob *Problem, eps float64, opts ...L1RLRSolverOption) *L1RLRSolver {
	t.Helper()
	opts = append([]L1RLRSolverOption{WithLogger(zerolog.Nop())}, opts...)
	solver, err := NewL1RLRSolver(Transpose(prob), eps, opts...)
	require.NoError(t, err)
	t.Cleanup(solver.Close)
	return solver
}

func TestL1RLRSolverZeroBelowThreshold(t *testing.T) {
	prob := twinProblem(1, 50)
	cMin := 2 / maxLabelFeatureSum(prob)

	solver := newTestSolver(t, prob, 0.01)
	result, err := solver.Solve(0.5*cMin, 0.5*cMin, nil)
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.Equal(t, 0, result.NewtonIters)
	assert.Equal(t, 0, result.NonZeros)
	assert.Equal(t, make([]float64, twinFeatures), result.W)
}

func TestL1RLRSolverSparsity(t *testing.T) {
	prob := twinProblem(2, 100)
	solver := newTestSolver(t, prob, 0.001)

	results, err := solver.SolvePath([]float64{0.01, 0.1, 1, 10, 100})
	require.NoError(t, err)

	for _, result := range results {
		for j := twinInformative; j < twinInformative+twinIrrelevant; j++ {
			assert.Zero(t, result.W[j], "irrelevant feature %d at C=%g", j+1, result.Cp)
		}
		assert.Zero(t, result.W[twinZeroValued-1])
		assert.Zero(t, result.W[twinFeatures-1])
		assert.LessOrEqual(t, result.NonZeros, twinInformative)
	}

	last := results[len(results)-1]
	assert.NotZero(t, last.W[0])
	assert.Greater(t, last.W[0], 0.0)
}

func TestL1RLRSolverWarmStartEquivalence(t *testing.T) {
	prob := twinProblem(3, 60)
	cs := []float64{0.05, 0.2, 1}

	warmSolver := newTestSolver(t, prob, 1e-4)
	warm, err := warmSolver.SolvePath(cs)
	require.NoError(t, err)

	coldSolver := newTestSolver(t, prob, 1e-4)
	cold, err := coldSolver.Solve(cs[2], cs[2], nil)
	require.NoError(t, err)

	require.True(t, warm[2].Converged)
	require.True(t, cold.Converged)
	assert.InDelta(t, cold.Objective, warm[2].Objective, 1e-4*math.Abs(cold.Objective))
	assert.InDeltaSlice(t, cold.W, warm[2].W, 1e-2)
}

func TestL1RLRSolverConvergence(t *testing.T) {
	eps := 0.01
	prob := twinProblem(4, 50)
	solver := newTestSolver(t, prob, eps)

	for _, c := range []float64{0.1, 1, 4} {
		result, err := solver.Solve(c, c, nil)
		require.NoError(t, err)
		assert.True(t, result.Converged, "C=%g", c)
		assert.LessOrEqual(t, result.GradNorm, eps*result.GradNormScale)
		assert.Equal(t, c, result.Cp)
		assert.Equal(t, c, result.Cn)
	}
}

func TestL1RLRSolverIdempotence(t *testing.T) {
	prob := twinProblem(5, 40)
	solver := newTestSolver(t, prob, 0.001)

	results, err := solver.SolvePath([]float64{1, 1})
	require.NoError(t, err)
	require.True(t, results[0].Converged)
	assert.Equal(t, 0, results[1].NewtonIters)
	assert.Equal(t, results[0].W, results[1].W)

	again, err := solver.Solve(1, 1, results[0].W)
	require.NoError(t, err)
	assert.LessOrEqual(t, again.NewtonIters, 1)
	assert.InDeltaSlice(t, results[0].W, again.W, 1e-6)
}

func TestL1RLRSolverReproducible(t *testing.T) {
	prob := twinProblem(6, 40)
	cs := []float64{0.1, 1, 10}

	first, err := SolveL1RLRPath(Transpose(prob), cs, 0.01, WithSeed(7), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	second, err := SolveL1RLRPath(Transpose(prob), cs, 0.01, WithSeed(7), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, len(cs))
}

func TestL1RLRSolverClassWeights(t *testing.T) {
	prob := twinProblem(7, 40)

	weighted := newTestSolver(t, prob, 0.001, WithClassWeights(2, 0.5))
	paths, err := weighted.SolvePath([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, paths[0].Cp)
	assert.Equal(t, 0.5, paths[0].Cn)

	plain := newTestSolver(t, prob, 0.001)
	direct, err := plain.Solve(2, 0.5, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, direct.W, paths[0].W, 1e-2)
}

func TestL1RLRSolverUnsortedPath(t *testing.T) {
	solver := newTestSolver(t, twinProblem(8, 10), 0.01)

	_, err := solver.SolvePath([]float64{1, 0.5})
	assert.True(t, errors.Is(err, ErrUnsortedPath))

	_, err = solver.SolvePath([]float64{1, -1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	results, err := solver.SolvePath(nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestL1RLRSolverClosed(t *testing.T) {
	solver, err := NewL1RLRSolver(Transpose(twinProblem(9, 10)), 0.01, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	solver.Close()
	solver.Close()

	_, err = solver.Solve(1, 1, nil)
	assert.True(t, errors.Is(err, ErrSolverClosed))
	_, err = solver.SolvePath([]float64{1})
	assert.True(t, errors.Is(err, ErrSolverClosed))
}

func TestNewL1RLRSolverValidation(t *testing.T) {
	probCol := Transpose(twinProblem(10, 10))

	_, err := NewL1RLRSolver(nil, 0.01)
	assert.True(t, errors.Is(err, ErrInvalidProblem))

	_, err = NewL1RLRSolver(probCol, 0)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = NewL1RLRSolver(probCol, 0.01, WithClassWeights(0, 1))
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = NewL1RLRSolver(probCol, 0.01, WithMaxNewtonIter(0))
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	broken := NewProblem(2, 1, []float64{1, -1}, [][]FeatureNode{{NewFeatureNode(3, 1)}}, -1)
	_, err = NewL1RLRSolver(broken, 0.01)
	assert.True(t, errors.Is(err, ErrInvalidProblem))

	solver, err := NewL1RLRSolver(probCol, 0.01, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer solver.Close()

	_, err = solver.Solve(0, 1, nil)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
	_, err = solver.Solve(1, 1, []float64{1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestL1RLRSolverLogsWithSolverField(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	solver, err := NewL1RLRSolver(Transpose(twinProblem(11, 20)), 0.01, WithLogger(logger))
	require.NoError(t, err)
	defer solver.Close()

	_, err = solver.SolvePath([]float64{0.5, 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"solver":"L1R_LR"`)
	assert.Contains(t, out, "path step finished")
	assert.Contains(t, out, `"nnz"`)
}

func TestL1RLRSolverIterationCap(t *testing.T) {
	prob := twinProblem(12, 40)
	solver := newTestSolver(t, prob, 1e-12, WithMaxNewtonIter(1))

	result, err := solver.Solve(10, 10, nil)
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.Equal(t, 1, result.NewtonIters)
}
