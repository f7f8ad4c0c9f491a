package liblinear

import (
	"math"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	defaultMaxNewtonIter = 100
	maxNumLineSearch     = 20
)

// L1RLRResult is the outcome of one solve at one regularization strength.
type L1RLRResult struct {
	Cp float64
	Cn float64

	// W is owned by the caller.
	W []float64

	NewtonIters int
	CDCycles    int
	Objective   float64
	NonZeros    int

	// GradNorm is the 1-norm of the projected gradient at W. Converged
	// reports GradNorm <= eps*GradNormScale, where GradNormScale is the same
	// norm at w = 0 for this strength.
	GradNorm      float64
	GradNormScale float64
	Converged     bool
}

// L1RLRSolver solves L1-regularized logistic regression
//
//	min_w ||w||_1 + \sum_i C_i log(1 + exp(-y_i w^T x_i))
//
// with C_i = Cp for positive and Cn for negative examples, by the newGLMNET
// method of Yuan et al. (2011): a Newton-type outer loop whose quadratic
// sub-problem is minimized by randomly permuted coordinate descent, followed
// by a backtracking line search on the full objective.
//
// The working arrays are allocated once in NewL1RLRSolver and kept between
// calls, so a sweep over an increasing sequence of strengths (SolvePath)
// restarts each step from the previous weights and margins. A solver is bound
// to one problem and must not be used from several goroutines at once.
type L1RLRSolver struct {
	probCol *Problem
	eps     float64
	l       int
	wSize   int

	maxNewtonIter int
	maxInnerIter  int
	wp, wn        float64
	seed          int64
	rand          *rand.Rand
	logger        zerolog.Logger
	loggerSet     bool
	loggerTagged  bool
	closed        bool

	y         []int8
	index     []int
	emptyCol  []bool
	hDiag     []float64
	grad      []float64
	wpd       []float64
	xjNegSum  []float64 // sum of x_ij over negative examples, not scaled by C
	xTd       []float64
	expWTx    []float64
	expWTxNew []float64
	tau       []float64
	d         []float64
	w         []float64
}

// L1RLRSolverOption configures an L1RLRSolver
type L1RLRSolverOption func(*L1RLRSolver)

// WithLogger sends the solver diagnostics to l
func WithLogger(l zerolog.Logger) L1RLRSolverOption {
	return func(solver *L1RLRSolver) {
		solver.logger = l
		solver.loggerSet = true
	}
}

// withSolverLogger uses l as is; it already carries the solver field.
func withSolverLogger(l zerolog.Logger) L1RLRSolverOption {
	return func(solver *L1RLRSolver) {
		solver.logger = l
		solver.loggerSet = true
		solver.loggerTagged = true
	}
}

// WithMaxNewtonIter caps the outer iterations (default 100)
func WithMaxNewtonIter(n int) L1RLRSolverOption {
	return func(solver *L1RLRSolver) {
		solver.maxNewtonIter = n
	}
}

// WithMaxInnerIter caps the coordinate descent cycles per outer iteration (default 1000)
func WithMaxInnerIter(n int) L1RLRSolverOption {
	return func(solver *L1RLRSolver) {
		solver.maxInnerIter = n
	}
}

// WithSeed seeds the coordinate shuffle
func WithSeed(seed int64) L1RLRSolverOption {
	return func(solver *L1RLRSolver) {
		solver.seed = seed
	}
}

// WithClassWeights makes SolvePath use Cp = c*wp and Cn = c*wn
func WithClassWeights(wp, wn float64) L1RLRSolverOption {
	return func(solver *L1RLRSolver) {
		solver.wp = wp
		solver.wn = wn
	}
}

// NewL1RLRSolver allocates a solver for the column-major problem probCol
// (see Transpose); labels > 0 are positive.
func NewL1RLRSolver(probCol *Problem, eps float64, opts ...L1RLRSolverOption) (*L1RLRSolver, error) {
	if probCol == nil {
		return nil, errors.Wrap(ErrInvalidProblem, "problem is nil")
	}
	if !(eps > 0) {
		return nil, newValidationError("eps", "eps <= 0", eps)
	}

	l := probCol.L
	wSize := probCol.N
	if l < 0 || wSize < 0 || len(probCol.Y) != l || len(probCol.X) != wSize {
		return nil, errors.Wrapf(ErrInvalidProblem, "column problem l=%d n=%d has %d labels and %d columns", l, wSize, len(probCol.Y), len(probCol.X))
	}
	if l >= math.MaxInt32 || wSize >= math.MaxInt32 {
		return nil, errors.Wrapf(ErrProblemTooLarge, "%d examples, %d features", l, wSize)
	}
	if err := validateNodes(probCol.X, l); err != nil {
		return nil, err
	}

	solver := &L1RLRSolver{
		probCol:       probCol,
		eps:           eps,
		l:             l,
		wSize:         wSize,
		maxNewtonIter: defaultMaxNewtonIter,
		maxInnerIter:  DefaultMaxIters,
		wp:            1,
		wn:            1,
	}
	for _, opt := range opts {
		opt(solver)
	}

	if solver.maxNewtonIter <= 0 {
		return nil, newValidationError("max_newton_iter", "must be positive", solver.maxNewtonIter)
	}
	if solver.maxInnerIter <= 0 {
		return nil, newValidationError("max_inner_iter", "must be positive", solver.maxInnerIter)
	}
	if !validStrength(solver.wp) || !validStrength(solver.wn) {
		return nil, newValidationError("weight", "class weight must be positive", []float64{solver.wp, solver.wn})
	}
	if !solver.loggerSet {
		solver.logger = defaultLogger()
	}
	if !solver.loggerTagged {
		solver.logger = solver.logger.With().Str("solver", L1R_LR.Name()).Logger()
	}
	solver.rand = rand.New(rand.NewSource(solver.seed))

	solver.y = make([]int8, l)
	solver.xTd = make([]float64, l)
	solver.expWTx = make([]float64, l)
	solver.expWTxNew = make([]float64, l)
	solver.tau = make([]float64, l)
	solver.d = make([]float64, l)

	solver.index = make([]int, wSize)
	solver.emptyCol = make([]bool, wSize)
	solver.hDiag = make([]float64, wSize)
	solver.grad = make([]float64, wSize)
	solver.wpd = make([]float64, wSize)
	solver.xjNegSum = make([]float64, wSize)
	solver.w = make([]float64, wSize)

	for i := 0; i < l; i++ {
		if probCol.Y[i] > 0 {
			solver.y[i] = 1
		} else {
			solver.y[i] = -1
		}
	}

	for j := 0; j < wSize; j++ {
		solver.index[j] = j
		solver.emptyCol[j] = len(probCol.X[j]) == 0
		for _, x := range probCol.X[j] {
			if solver.y[x.Index-1] == -1 {
				solver.xjNegSum[j] += x.Value
			}
		}
	}

	return solver, nil
}

// Solve minimizes the objective for one pair of strengths starting from wInit
// (nil means all zero).
func (solver *L1RLRSolver) Solve(cp, cn float64, wInit []float64) (*L1RLRResult, error) {
	if solver.closed {
		return nil, ErrSolverClosed
	}
	if !validStrength(cp) {
		return nil, newValidationError("Cp", "C <= 0", cp)
	}
	if !validStrength(cn) {
		return nil, newValidationError("Cn", "C <= 0", cn)
	}
	if wInit != nil && len(wInit) != solver.wSize {
		return nil, newValidationError("w_init", "length differs from the number of features", len(wInit))
	}

	solver.setInitial(wInit)
	return solver.optimize(cp, cn), nil
}

// SolvePath solves at every strength of cs, which must be positive and
// non-decreasing. The first step starts from zero, every later step from the
// solution and margins of the step before.
func (solver *L1RLRSolver) SolvePath(cs []float64) ([]*L1RLRResult, error) {
	if solver.closed {
		return nil, ErrSolverClosed
	}
	for k, c := range cs {
		if !validStrength(c) {
			return nil, newValidationError("C", "C <= 0", c)
		}
		if k > 0 && c < cs[k-1] {
			return nil, errors.Wrapf(ErrUnsortedPath, "C[%d]=%g follows C[%d]=%g", k, c, k-1, cs[k-1])
		}
	}

	solver.setInitial(nil)
	results := make([]*L1RLRResult, 0, len(cs))
	for k, c := range cs {
		result := solver.optimize(c*solver.wp, c*solver.wn)
		solver.logger.Info().
			Int("step", k).
			Float64("C", c).
			Int("iter", result.NewtonIters).
			Int("nnz", result.NonZeros).
			Msg("path step finished")
		results = append(results, result)
	}
	return results, nil
}

// Close releases the working arrays. Later calls return ErrSolverClosed.
func (solver *L1RLRSolver) Close() {
	solver.closed = true
	solver.probCol = nil
	solver.y = nil
	solver.index = nil
	solver.emptyCol = nil
	solver.hDiag = nil
	solver.grad = nil
	solver.wpd = nil
	solver.xjNegSum = nil
	solver.xTd = nil
	solver.expWTx = nil
	solver.expWTxNew = nil
	solver.tau = nil
	solver.d = nil
	solver.w = nil
}

// setInitial loads w and recomputes exp(w^T x_i). Empty columns stay zero.
func (solver *L1RLRSolver) setInitial(wInit []float64) {
	w := solver.w
	for j := 0; j < solver.wSize; j++ {
		if wInit == nil || solver.emptyCol[j] {
			w[j] = 0
		} else {
			w[j] = wInit[j]
		}
	}
	solver.recomputeMargins()
}

func (solver *L1RLRSolver) recomputeMargins() {
	expWTx := solver.expWTx
	for i := 0; i < solver.l; i++ {
		expWTx[i] = 0
	}
	for j := 0; j < solver.wSize; j++ {
		if solver.w[j] == 0 {
			continue
		}
		sparseAxpy(solver.w[j], solver.probCol.X[j], expWTx)
	}
	for i := 0; i < solver.l; i++ {
		expWTx[i] = math.Exp(expWTx[i])
	}
}

func (solver *L1RLRSolver) updateTauD(C *[3]float64) {
	for i := 0; i < solver.l; i++ {
		c := C[solver.y[i]+1]
		tauTmp := 1 / (1 + solver.expWTx[i])
		solver.tau[i] = c * tauTmp
		solver.d[i] = c * solver.expWTx[i] * tauTmp * tauTmp
	}
}

// zeroGradNorm is the 1-norm of the projected gradient at w = 0.
func (solver *L1RLRSolver) zeroGradNorm(C *[3]float64) float64 {
	var norm float64
	for j := 0; j < solver.wSize; j++ {
		tmp := 0.0
		for _, x := range solver.probCol.X[j] {
			tmp += x.Value * C[solver.y[x.Index-1]+1] * 0.5
		}
		g := -tmp + C[0]*solver.xjNegSum[j]
		if g+1 < 0 {
			norm += -(g + 1)
		} else if g-1 > 0 {
			norm += g - 1
		}
	}
	return norm
}

func (solver *L1RLRSolver) optimize(cp, cn float64) *L1RLRResult {
	const (
		nu    = 1e-12
		sigma = 0.01
	)

	l := solver.l
	wSize := solver.wSize
	fl := float64(l)
	cols := solver.probCol.X
	y := solver.y
	index := solver.index
	w := solver.w
	wpd := solver.wpd
	hDiag := solver.hDiag
	grad := solver.grad
	xTd := solver.xTd
	expWTx := solver.expWTx
	expWTxNew := solver.expWTxNew
	tau := solver.tau
	D := solver.d
	C := [3]float64{cn, 0, cp}

	solver.updateTauD(&C)

	wNorm := 0.0
	for j := 0; j < wSize; j++ {
		wNorm += math.Abs(w[j])
		wpd[j] = w[j]
	}

	gNormScale := solver.zeroGradNorm(&C)
	innerEps := 1.0
	gMaxOld := math.Inf(1)
	gNorm1New := 0.0
	newtonIter := 0
	cdCycles := 0
	converged := false

	for {
		gMaxNew := 0.0
		gNorm1New = 0
		activeSize := wSize

		for s := 0; s < activeSize; s++ {
			j := index[s]
			hDiag[j] = nu

			tmp := 0.0
			for _, x := range cols[j] {
				ind := x.Index - 1
				hDiag[j] += x.Value * x.Value * D[ind]
				tmp += x.Value * tau[ind]
			}
			grad[j] = -tmp + cn*solver.xjNegSum[j]

			Gp := grad[j] + 1
			Gn := grad[j] - 1
			violation := 0.0
			if w[j] == 0 {
				if Gp < 0 {
					violation = -Gp
				} else if Gn > 0 {
					violation = Gn
				} else if Gp > gMaxOld/fl && Gn < -gMaxOld/fl {
					// outer-level shrinking
					activeSize--
					index[s], index[activeSize] = index[activeSize], index[s]
					s--
					continue
				}
			} else if w[j] > 0 {
				violation = math.Abs(Gp)
			} else {
				violation = math.Abs(Gn)
			}

			gMaxNew = math.Max(gMaxNew, violation)
			gNorm1New += violation
		}

		if newtonIter == 0 && gNormScale == 0 {
			gNormScale = gNorm1New
		}
		if gNorm1New <= solver.eps*gNormScale {
			converged = true
			break
		}
		if newtonIter >= solver.maxNewtonIter {
			break
		}

		iter := 0
		qpGMaxOld := math.Inf(1)
		qpActiveSize := activeSize

		for i := 0; i < l; i++ {
			xTd[i] = 0
		}

		// optimize QP over wpd
		for iter < solver.maxInnerIter {
			qpGMaxNew := 0.0
			qpGNorm1New := 0.0

			for j := 0; j < qpActiveSize; j++ {
				i := j + solver.rand.Intn(qpActiveSize-j)
				index[i], index[j] = index[j], index[i]
			}

			for s := 0; s < qpActiveSize; s++ {
				j := index[s]
				H := hDiag[j]

				G := grad[j] + (wpd[j]-w[j])*nu
				for _, x := range cols[j] {
					ind := x.Index - 1
					G += x.Value * D[ind] * xTd[ind]
				}

				Gp := G + 1
				Gn := G - 1
				violation := 0.0
				if wpd[j] == 0 {
					if Gp < 0 {
						violation = -Gp
					} else if Gn > 0 {
						violation = Gn
					} else if Gp > qpGMaxOld/fl && Gn < -qpGMaxOld/fl {
						// inner-level shrinking
						qpActiveSize--
						index[s], index[qpActiveSize] = index[qpActiveSize], index[s]
						s--
						continue
					}
				} else if wpd[j] > 0 {
					violation = math.Abs(Gp)
				} else {
					violation = math.Abs(Gn)
				}

				qpGMaxNew = math.Max(qpGMaxNew, violation)
				qpGNorm1New += violation

				// obtain solution of one-variable problem
				var z float64
				if Gp < H*wpd[j] {
					z = -Gp / H
				} else if Gn > H*wpd[j] {
					z = -Gn / H
				} else {
					z = -wpd[j]
				}

				if math.Abs(z) < 1.0e-12 {
					continue
				}
				z = math.Min(math.Max(z, -10.0), 10.0)

				wpd[j] += z
				sparseAxpy(z, cols[j], xTd)
			}

			iter++

			if qpGNorm1New <= innerEps*gNormScale {
				// inner stopping
				if qpActiveSize == activeSize {
					break
				}
				// active set reactivation
				qpActiveSize = activeSize
				qpGMaxOld = math.Inf(1)
				continue
			}

			qpGMaxOld = qpGMaxNew
		}

		if iter >= solver.maxInnerIter {
			solver.logger.Warn().Int("iter", newtonIter+1).Msg("reaching max number of inner iterations")
		}
		cdCycles += iter

		delta := 0.0
		wNormNew := 0.0
		for j := 0; j < wSize; j++ {
			delta += grad[j] * (wpd[j] - w[j])
			if wpd[j] != 0 {
				wNormNew += math.Abs(wpd[j])
			}
		}
		delta += wNormNew - wNorm

		negsumXTd := 0.0
		for i := 0; i < l; i++ {
			if y[i] == -1 {
				negsumXTd += C[0] * xTd[i]
			}
		}

		numLineSearch := 0
		for ; numLineSearch < maxNumLineSearch; numLineSearch++ {
			cond := wNormNew - wNorm + negsumXTd - sigma*delta

			for i := 0; i < l; i++ {
				expXTd := math.Exp(xTd[i])
				expWTxNew[i] = expWTx[i] * expXTd
				cond += C[y[i]+1] * math.Log((1+expWTxNew[i])/(expXTd+expWTxNew[i]))
			}

			if cond <= 0 {
				wNorm = wNormNew
				copy(w, wpd)
				copy(expWTx, expWTxNew)
				solver.updateTauD(&C)
				break
			}

			wNormNew = 0
			for j := 0; j < wSize; j++ {
				wpd[j] = (w[j] + wpd[j]) * 0.5
				if wpd[j] != 0 {
					wNormNew += math.Abs(wpd[j])
				}
			}
			delta *= 0.5
			negsumXTd *= 0.5
			for i := 0; i < l; i++ {
				xTd[i] *= 0.5
			}
		}

		// recompute some info due to too many line search steps
		if numLineSearch >= maxNumLineSearch {
			solver.logger.Warn().Int("iter", newtonIter+1).Msg("line search exhausted, margins recomputed")
			copy(wpd, w)
			solver.recomputeMargins()
			solver.updateTauD(&C)
		}

		if iter == 1 {
			innerEps *= 0.25
		}

		newtonIter++
		gMaxOld = gMaxNew

		solver.logger.Debug().Int("iter", newtonIter).Int("cd_cycles", iter).Msg("newton step")
	}

	if !converged {
		solver.logger.Warn().Int("iter", newtonIter).Msg("reaching max number of iterations")
	}

	// calculate objective value
	v := 0.0
	nnz := 0
	for j := 0; j < wSize; j++ {
		if w[j] != 0 {
			v += math.Abs(w[j])
			nnz++
		}
	}
	for i := 0; i < l; i++ {
		if y[i] == 1 {
			v += C[2] * math.Log(1+1/expWTx[i])
		} else {
			v += C[0] * math.Log(1+expWTx[i])
		}
	}

	solver.logger.Info().
		Int("iter", newtonIter).
		Float64("objective", v).
		Int("nnz", nnz).
		Int("features", wSize).
		Msg("optimization finished")

	return &L1RLRResult{
		Cp:            cp,
		Cn:            cn,
		W:             append([]float64(nil), w...),
		NewtonIters:   newtonIter,
		CDCycles:      cdCycles,
		Objective:     v,
		NonZeros:      nnz,
		GradNorm:      gNorm1New,
		GradNormScale: gNormScale,
		Converged:     converged,
	}
}

// SolveL1RLRPath solves the L1-regularized logistic regression path over cs
// on probCol and returns one weight vector per strength.
func SolveL1RLRPath(probCol *Problem, cs []float64, eps float64, opts ...L1RLRSolverOption) ([][]float64, error) {
	solver, err := NewL1RLRSolver(probCol, eps, opts...)
	if err != nil {
		return nil, err
	}
	defer solver.Close()

	results, err := solver.SolvePath(cs)
	if err != nil {
		return nil, err
	}

	ws := make([][]float64, len(results))
	for k, result := range results {
		ws[k] = result.W
	}
	return ws, nil
}

func validStrength(c float64) bool {
	return c > 0 && !math.IsInf(c, 1)
}
