package liblinear

import (
	"math"
	"math/rand"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// folds is a random partition of the examples: fold i holds the examples
// perm[start[i]:start[i+1]].
type folds struct {
	nrFold int
	perm   []int
	start  []int
}

func newFolds(l int, nrFold int, seed int64, logger zerolog.Logger) *folds {
	if nrFold > l {
		nrFold = l
		logger.Warn().Int("folds", nrFold).Msg("# folds > # data. Will use # folds = # data instead (i.e., leave-one-out cross validation)")
	}

	random := rand.New(rand.NewSource(seed))
	perm := make([]int, l)
	for i := 0; i < l; i++ {
		perm[i] = i
	}
	for i := 0; i < l; i++ {
		j := i + random.Intn(l-i)
		perm[i], perm[j] = perm[j], perm[i]
	}

	start := make([]int, nrFold+1)
	for i := 0; i <= nrFold; i++ {
		start[i] = i * l / nrFold
	}
	return &folds{nrFold: nrFold, perm: perm, start: start}
}

func checkFolds(prob *Problem, nrFold int) error {
	if nrFold < 2 {
		return newValidationError("nr_fold", "n-fold cross validation: n must >= 2", nrFold)
	}
	if prob.L < 2 {
		return errors.Wrapf(ErrInvalidProblem, "cross validation needs at least 2 examples, got %d", prob.L)
	}
	return nil
}

// trainingSet is prob without the examples of fold i
func (f *folds) trainingSet(prob *Problem, i int) *Problem {
	begin := f.start[i]
	end := f.start[i+1]
	l := prob.L - (end - begin)
	subProb := NewProblem(l, prob.N, make([]float64, l), make([][]FeatureNode, l), prob.Bias)

	k := 0
	for j := 0; j < prob.L; j++ {
		if j >= begin && j < end {
			continue
		}
		subProb.X[k] = prob.X[f.perm[j]]
		subProb.Y[k] = prob.Y[f.perm[j]]
		k++
	}
	return subProb
}

// predictFold writes the predictions of model for fold i into target
func (f *folds) predictFold(model *Model, prob *Problem, i int, target []float64) error {
	for j := f.start[i]; j < f.start[i+1]; j++ {
		label, err := Predict(model, prob.X[f.perm[j]])
		if err != nil {
			return err
		}
		target[f.perm[j]] = label
	}
	return nil
}

// each runs fn for every fold in its own goroutine and joins the errors
func (f *folds) each(fn func(i int) error) error {
	errs := make([]error, f.nrFold)
	var wg sync.WaitGroup
	for i := 0; i < f.nrFold; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := fn(i); err != nil {
				errs[i] = errors.Wrapf(err, "fold %d", i)
			}
		}(i)
	}
	wg.Wait()

	var err error
	for _, e := range errs {
		err = errors.CombineErrors(err, e)
	}
	return err
}

// CrossValidation splits prob into nrFold random folds, trains on all but
// one fold and predicts the held-out one. The returned slice holds the
// prediction for every example. Folds are trained concurrently.
func CrossValidation(prob *Problem, param *Parameter, nrFold int) ([]float64, error) {
	if err := CheckParameter(prob, param); err != nil {
		return nil, err
	}
	if err := checkFolds(prob, nrFold); err != nil {
		return nil, err
	}

	logger := solverLogger(param.Logger, param.SolverType)
	f := newFolds(prob.L, nrFold, param.Seed, logger)
	target := make([]float64, prob.L)

	err := f.each(func(i int) error {
		subModel, err := Train(f.trainingSet(prob, i), param.clone())
		if err != nil {
			return err
		}
		return f.predictFold(subModel, prob, i, target)
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// FindParameterC searches C = startC, 2*startC, ... up to maxC for the best
// cross validation accuracy. L2R_LR and L2R_L2LOSS_SVC warm-start every fold
// from its solution at the previous C and stop early once the solutions no
// longer change; L1R_LR solves every fold along the whole grid with one
// path solver. A non-positive startC is replaced by a value small enough
// that the first models are trivial.
func FindParameterC(prob *Problem, param *Parameter, nrFold int, startC float64, maxC float64) (*ParameterSearchResult, error) {
	if err := CheckParameter(prob, param); err != nil {
		return nil, err
	}
	if param.SolverType != L2R_LR && param.SolverType != L2R_L2LOSS_SVC && param.SolverType != L1R_LR {
		return nil, newValidationError("solver_type", "parameter search supports only L2R_LR, L2R_L2LOSS_SVC and L1R_LR", param.SolverType)
	}
	if err := checkFolds(prob, nrFold); err != nil {
		return nil, err
	}

	if startC <= 0 {
		startC = calcStartC(prob, param)
	}
	if !(maxC >= startC) {
		return nil, newValidationError("max_C", "maximum C is below the starting C", maxC)
	}

	logger := solverLogger(param.Logger, param.SolverType)
	f := newFolds(prob.L, nrFold, param.Seed, logger)

	if param.SolverType == L1R_LR {
		return findParameterCPath(prob, param, f, startC, maxC, logger)
	}
	return findParameterCWarmStart(prob, param, f, startC, maxC, logger)
}

func findParameterCWarmStart(prob *Problem, param *Parameter, f *folds, startC float64, maxC float64, logger zerolog.Logger) (*ParameterSearchResult, error) {
	const ratio = 2.0

	subProb := make([]*Problem, f.nrFold)
	for i := range subProb {
		subProb[i] = f.trainingSet(prob, i)
	}

	result := &ParameterSearchResult{BestC: math.NaN()}
	target := make([]float64, prob.L)
	prevW := make([][]float64, f.nrFold)
	changed := make([]bool, f.nrFold)
	numUnchangedW := 0

	c := startC
	for c <= maxC {
		err := f.each(func(i int) error {
			param1 := param.clone()
			param1.C = c
			param1.InitSol = prevW[i]

			subModel, err := Train(subProb[i], param1)
			if err != nil {
				return err
			}

			changed[i] = false
			if prevW[i] != nil {
				normWDiff := 0.0
				for j, wj := range subModel.W {
					normWDiff += (wj - prevW[i][j]) * (wj - prevW[i][j])
				}
				changed[i] = math.Sqrt(normWDiff) > 1e-15
			}
			prevW[i] = subModel.FeatureWeights()

			return f.predictFold(subModel, prob, i, target)
		})
		if err != nil {
			return nil, err
		}

		rate := Accuracy(target, prob.Y)
		result.add(c, rate)
		logger.Info().Float64("log2c", math.Log2(c)).Float64("rate", 100*rate).Msg("parameter search step")

		if numUnchangedW >= 0 {
			for _, ch := range changed {
				if ch {
					numUnchangedW = -1
					break
				}
			}
		}
		numUnchangedW++
		if numUnchangedW == 3 {
			break
		}
		c *= ratio
	}

	if c > maxC && maxC > startC {
		logger.Warn().Float64("max_C", maxC).Msg("maximum C reached")
	}
	return result, nil
}

func findParameterCPath(prob *Problem, param *Parameter, f *folds, startC float64, maxC float64, logger zerolog.Logger) (*ParameterSearchResult, error) {
	var cs []float64
	for c := startC; c <= maxC; c *= 2 {
		cs = append(cs, c)
	}

	targets := make([][]float64, len(cs))
	for k := range targets {
		targets[k] = make([]float64, prob.L)
	}

	pathParam := param.clone()
	pathParam.InitSol = nil

	err := f.each(func(i int) error {
		models, err := TrainPath(f.trainingSet(prob, i), pathParam, cs)
		if err != nil {
			return err
		}
		for k, model := range models {
			if err := f.predictFold(model, prob, i, targets[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ParameterSearchResult{BestC: math.NaN()}
	for k, c := range cs {
		rate := Accuracy(targets[k], prob.Y)
		result.add(c, rate)
		logger.Info().Float64("log2c", math.Log2(c)).Float64("rate", 100*rate).Msg("parameter search step")
	}
	return result, nil
}

// calcStartC is a power of two at or below the smallest C that gives a
// non-trivial model.
func calcStartC(prob *Problem, param *Parameter) float64 {
	minC := 1.0

	switch param.SolverType {
	case L2R_LR, L2R_L2LOSS_SVC:
		maxXTx := 0.0
		for i := 0; i < prob.L; i++ {
			xTx := sparseNrm2Sq(prob.X[i])
			if xTx > maxXTx {
				maxXTx = xTx
			}
		}
		if maxXTx > 0 {
			if param.SolverType == L2R_LR {
				minC = 1.0 / (float64(prob.L) * maxXTx)
			} else {
				minC = 1.0 / (2 * float64(prob.L) * maxXTx)
			}
		}
	case L1R_LR:
		// At w = 0 the gradient of feature j is -C/2 \sum_i y_i x_ij, so w
		// stays zero while C <= 2 / max_j |\sum_i y_i x_ij|.
		if maxYX := maxLabelFeatureSum(prob); maxYX > 0 {
			minC = 2 / maxYX
		}
	}

	return math.Pow(2, math.Floor(math.Log2(minC)))
}

// maxLabelFeatureSum is max_j |\sum_i y_i x_ij| over the one-vs-rest
// labelings of prob.
func maxLabelFeatureSum(prob *Problem) float64 {
	perm := make([]int, prob.L)
	groups := groupClasses(prob, perm)
	nrW := groups.nrClass
	if nrW == 2 {
		nrW = 1
	}

	maxYX := 0.0
	sums := make([]float64, prob.N)
	for class := 0; class < nrW; class++ {
		for j := range sums {
			sums[j] = 0
		}
		si := groups.start[class]
		ei := si + groups.count[class]
		for k := 0; k < prob.L; k++ {
			sign := -1.0
			if k >= si && k < ei {
				sign = 1
			}
			sparseAxpy(sign, prob.X[perm[k]], sums)
		}
		for _, s := range sums {
			maxYX = math.Max(maxYX, math.Abs(s))
		}
	}
	return maxYX
}
