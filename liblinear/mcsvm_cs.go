package liblinear

import (
	"math"
	"sort"
)

const mcsvmMaxIter = 100000

// solverMCSVMCS is the coordinate descent method for multi-class support
// vector machines by Crammer and Singer (Appendix of Fan et al., JMLR 2008):
//
//	min_{\alpha} 0.5 \sum_m ||w_m(\alpha)||^2 + \sum_i \sum_m e^m_i alpha^m_i
//	s.t. \alpha^m_i <= C^m_i \forall m,i , \sum_m \alpha^m_i=0 \forall i
//
// where e^m_i = 0 if y_i = m, e^m_i = 1 otherwise, C^m_i = C if m = y_i,
// C^m_i = 0 otherwise, and w_m(\alpha) = \sum_i \alpha^m_i x_i.
//
// prob.Y holds class indices 0..nrClass-1. The solution w is stored
// feature-major: w[(j-1)*nrClass+m].
type solverMCSVMCS struct {
	ctx     *solverContext
	prob    *Problem
	wSize   int
	l       int
	nrClass int
	eps     float64
	maxIter int
	B       []float64
	C       []float64
	G       []float64
}

func newSolverMCSVMCS(ctx *solverContext, prob *Problem, nrClass int, weightedC []float64, eps float64) *solverMCSVMCS {
	maxIter := mcsvmMaxIter
	if ctx.maxIter > maxIter {
		maxIter = ctx.maxIter
	}
	return &solverMCSVMCS{
		ctx:     ctx,
		prob:    prob,
		wSize:   prob.N,
		l:       prob.L,
		nrClass: nrClass,
		eps:     eps,
		maxIter: maxIter,
		B:       make([]float64, nrClass),
		C:       weightedC,
		G:       make([]float64, nrClass),
	}
}

func (solver *solverMCSVMCS) classOf(i int) int {
	return int(solver.prob.Y[i])
}

func (solver *solverMCSVMCS) solveSubProblem(Ai float64, yi int, Cyi float64, activeI int, alphaNew []float64) {
	D := make([]float64, activeI)
	copy(D, solver.B[:activeI])
	if yi < activeI {
		D[yi] += Ai * Cyi
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(D)))

	beta := D[0] - Ai*Cyi
	r := 1
	for ; r < activeI && beta < float64(r)*D[r]; r++ {
		beta += D[r]
	}
	beta /= float64(r)

	for r = 0; r < activeI; r++ {
		if r == yi {
			alphaNew[r] = math.Min(Cyi, (beta-solver.B[r])/Ai)
		} else {
			alphaNew[r] = math.Min(0, (beta-solver.B[r])/Ai)
		}
	}
}

func (solver *solverMCSVMCS) beShrunk(i int, m int, yi int, alphaI float64, minG float64) bool {
	bound := 0.0
	if m == yi {
		bound = solver.C[solver.classOf(i)]
	}
	return alphaI == bound && solver.G[m] < minG
}

func (solver *solverMCSVMCS) solve(w []float64) {
	l, nrClass := solver.l, solver.nrClass
	G, B := solver.G, solver.B
	alpha := make([]float64, l*nrClass)
	alphaNew := make([]float64, nrClass)
	index := make([]int, l)
	QD := make([]float64, l)
	dInd := make([]int, nrClass)
	dVal := make([]float64, nrClass)
	alphaIndex := make([]int, nrClass*l)
	yIndex := make([]int, l)
	activeSize := l
	activeSizeI := make([]int, l)
	epsShrink := math.Max(10.0*solver.eps, 1.0) // stopping tolerance for shrinking
	startFromAll := true

	for i := 0; i < solver.wSize*nrClass; i++ {
		w[i] = 0
	}

	for i := 0; i < l; i++ {
		for m := 0; m < nrClass; m++ {
			alphaIndex[i*nrClass+m] = m
		}
		QD[i] = sparseNrm2Sq(solver.prob.X[i])
		activeSizeI[i] = nrClass
		yIndex[i] = solver.classOf(i)
		index[i] = i
	}

	iter := 0
	for iter < solver.maxIter {
		stopping := math.Inf(-1)

		solver.ctx.shuffle(index, activeSize)

		for s := 0; s < activeSize; s++ {
			i := index[s]
			Ai := QD[i]
			alphaI := alpha[i*nrClass : (i+1)*nrClass]
			alphaIndexI := alphaIndex[i*nrClass : (i+1)*nrClass]

			if Ai <= 0 {
				continue
			}

			for m := 0; m < activeSizeI[i]; m++ {
				G[m] = 1
			}
			if yIndex[i] < activeSizeI[i] {
				G[yIndex[i]] = 0
			}

			for _, xi := range solver.prob.X[i] {
				wI := w[(xi.Index-1)*nrClass : xi.Index*nrClass]
				for m := 0; m < activeSizeI[i]; m++ {
					G[m] += wI[alphaIndexI[m]] * xi.Value
				}
			}

			minG := math.Inf(1)
			maxG := math.Inf(-1)
			for m := 0; m < activeSizeI[i]; m++ {
				if alphaI[alphaIndexI[m]] < 0 && G[m] < minG {
					minG = G[m]
				}
				if G[m] > maxG {
					maxG = G[m]
				}
			}
			if yIndex[i] < activeSizeI[i] {
				if alphaI[solver.classOf(i)] < solver.C[solver.classOf(i)] && G[yIndex[i]] < minG {
					minG = G[yIndex[i]]
				}
			}

			for m := 0; m < activeSizeI[i]; m++ {
				if solver.beShrunk(i, m, yIndex[i], alphaI[alphaIndexI[m]], minG) {
					activeSizeI[i]--
					for activeSizeI[i] > m {
						last := activeSizeI[i]
						if !solver.beShrunk(i, last, yIndex[i], alphaI[alphaIndexI[last]], minG) {
							alphaIndexI[m], alphaIndexI[last] = alphaIndexI[last], alphaIndexI[m]
							G[m], G[last] = G[last], G[m]
							if yIndex[i] == last {
								yIndex[i] = m
							} else if yIndex[i] == m {
								yIndex[i] = last
							}
							break
						}
						activeSizeI[i]--
					}
				}
			}

			if activeSizeI[i] <= 1 {
				activeSize--
				index[s], index[activeSize] = index[activeSize], index[s]
				s--
				continue
			}

			if maxG-minG <= 1e-12 {
				continue
			}
			stopping = math.Max(maxG-minG, stopping)

			for m := 0; m < activeSizeI[i]; m++ {
				B[m] = G[m] - Ai*alphaI[alphaIndexI[m]]
			}

			solver.solveSubProblem(Ai, yIndex[i], solver.C[solver.classOf(i)], activeSizeI[i], alphaNew)
			nzD := 0
			for m := 0; m < activeSizeI[i]; m++ {
				d := alphaNew[m] - alphaI[alphaIndexI[m]]
				alphaI[alphaIndexI[m]] = alphaNew[m]
				if math.Abs(d) >= 1e-12 {
					dInd[nzD] = alphaIndexI[m]
					dVal[nzD] = d
					nzD++
				}
			}

			for _, xi := range solver.prob.X[i] {
				wI := w[(xi.Index-1)*nrClass : xi.Index*nrClass]
				for m := 0; m < nzD; m++ {
					wI[dInd[m]] += dVal[m] * xi.Value
				}
			}
		}

		iter++

		if stopping < epsShrink {
			if stopping < solver.eps && startFromAll {
				break
			}
			activeSize = l
			for i := 0; i < l; i++ {
				activeSizeI[i] = nrClass
			}
			solver.ctx.logger.Debug().Int("iter", iter).Msg("shrinking reset")
			epsShrink = math.Max(epsShrink/2, solver.eps)
			startFromAll = true
		} else {
			startFromAll = false
		}
	}

	if iter >= solver.maxIter {
		solver.ctx.logger.Warn().Int("iter", iter).Msg("reaching max number of iterations")
	}

	// calculate objective value
	v := 0.0
	nSV := 0
	for i := 0; i < solver.wSize*nrClass; i++ {
		v += w[i] * w[i]
	}
	v = 0.5 * v
	for i := 0; i < l*nrClass; i++ {
		v += alpha[i]
		if math.Abs(alpha[i]) > 0 {
			nSV++
		}
	}
	for i := 0; i < l; i++ {
		v -= alpha[i*nrClass+solver.classOf(i)]
	}
	solver.ctx.logger.Info().Int("iter", iter).Float64("objective", v).Int("nSV", nSV).Msg("optimization finished")
}
