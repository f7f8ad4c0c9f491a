package liblinear

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"
)

// solverContext carries what one solver run owns besides its arrays.
// Every run gets its own random source so runs never share state.
type solverContext struct {
	rand    *rand.Rand
	logger  zerolog.Logger
	maxIter int
}

func newSolverContext(param *Parameter) *solverContext {
	return &solverContext{
		rand:    rand.New(rand.NewSource(param.Seed)),
		logger:  solverLogger(param.Logger, param.SolverType),
		maxIter: param.maxIters(),
	}
}

// shuffle randomly permutes index[:n] the way liblinear does.
func (ctx *solverContext) shuffle(index []int, n int) {
	for i := 0; i < n; i++ {
		j := i + ctx.rand.Intn(n-i)
		index[i], index[j] = index[j], index[i]
	}
}

func labelSigns(prob *Problem) []int8 {
	y := make([]int8, prob.L)
	for i := 0; i < prob.L; i++ {
		if prob.Y[i] > 0 {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}
	return y
}

// solveL2RL1L2Svc is the dual coordinate descent method for L2-regularized
// L1- and L2-loss SVC (Hsieh et al., ICML 2008):
//
//	min_\alpha  0.5(\alpha^T (Q + D)\alpha) - e^T \alpha,
//	   s.t.      0 <= \alpha_i <= upper_bound_i,
//
// where Qij = yi yj xi^T xj and D is a diagonal matrix. For L1-loss
// upper_bound_i = Cp or Cn and D_ii = 0; for L2-loss upper_bound_i = INF and
// D_ii = 1/(2*Cp) or 1/(2*Cn).
func solveL2RL1L2Svc(ctx *solverContext, prob *Problem, w []float64, eps float64, cp float64, cn float64, solverType *SolverType) {
	l := prob.L
	wSize := prob.N
	QD := make([]float64, l)
	index := make([]int, l)
	alpha := make([]float64, l)
	y := labelSigns(prob)
	activeSize := l

	// PG: projected gradient, for shrinking and stopping
	PGMaxOld := math.Inf(1)
	PGMinOld := math.Inf(-1)

	// default solverType: L2R_L2LOSS_SVC_DUAL
	diag := [3]float64{0.5 / cn, 0, 0.5 / cp}
	upperBound := [3]float64{math.Inf(1), 0, math.Inf(1)}
	if solverType == L2R_L1LOSS_SVC_DUAL {
		diag[0] = 0
		diag[2] = 0
		upperBound[0] = cn
		upperBound[2] = cp
	}

	for i := 0; i < wSize; i++ {
		w[i] = 0
	}

	for i := 0; i < l; i++ {
		QD[i] = diag[y[i]+1] + sparseNrm2Sq(prob.X[i])
		index[i] = i
	}

	iter := 0
	for iter < ctx.maxIter {
		PGMaxNew := math.Inf(-1)
		PGMinNew := math.Inf(1)

		ctx.shuffle(index, activeSize)

		for s := 0; s < activeSize; s++ {
			i := index[s]
			yi := float64(y[i])
			xi := prob.X[i]

			G := yi*sparseDot(w, xi) - 1

			C := upperBound[y[i]+1]
			G += alpha[i] * diag[y[i]+1]

			PG := 0.0
			if alpha[i] == 0 {
				if G > PGMaxOld {
					activeSize--
					index[s], index[activeSize] = index[activeSize], index[s]
					s--
					continue
				} else if G < 0 {
					PG = G
				}
			} else if alpha[i] == C {
				if G < PGMinOld {
					activeSize--
					index[s], index[activeSize] = index[activeSize], index[s]
					s--
					continue
				} else if G > 0 {
					PG = G
				}
			} else {
				PG = G
			}

			PGMaxNew = math.Max(PGMaxNew, PG)
			PGMinNew = math.Min(PGMinNew, PG)

			if math.Abs(PG) > 1.0e-12 {
				alphaOld := alpha[i]
				alpha[i] = math.Min(math.Max(alpha[i]-G/QD[i], 0.0), C)
				d := (alpha[i] - alphaOld) * yi
				sparseAxpy(d, xi, w)
			}
		}

		iter++

		if PGMaxNew-PGMinNew <= eps {
			if activeSize == l {
				break
			}
			activeSize = l
			ctx.logger.Debug().Int("iter", iter).Msg("shrinking reset")
			PGMaxOld = math.Inf(1)
			PGMinOld = math.Inf(-1)
			continue
		}
		PGMaxOld = PGMaxNew
		PGMinOld = PGMinNew
		if PGMaxOld <= 0 {
			PGMaxOld = math.Inf(1)
		}
		if PGMinOld >= 0 {
			PGMinOld = math.Inf(-1)
		}
	}

	if iter >= ctx.maxIter {
		ctx.logger.Warn().Int("iter", iter).Msg("reaching max number of iterations, using -s 2 may be faster")
	}

	// calculate objective value
	v := 0.0
	nSV := 0
	for i := 0; i < wSize; i++ {
		v += w[i] * w[i]
	}
	for i := 0; i < l; i++ {
		v += alpha[i] * (alpha[i]*diag[y[i]+1] - 2)
		if alpha[i] > 0 {
			nSV++
		}
	}
	ctx.logger.Info().Int("iter", iter).Float64("objective", v/2).Int("nSV", nSV).Msg("optimization finished")
}

// solveL2RLRDual is the coordinate descent method for the dual of
// L2-regularized logistic regression (Algorithm 5 of Yu et al., MLJ 2010):
//
//	min_\alpha  0.5(\alpha^T Q \alpha) + \sum \alpha_i log (\alpha_i) + (upper_bound_i - \alpha_i) log (upper_bound_i - \alpha_i),
//	   s.t.      0 <= \alpha_i <= upper_bound_i,
//
// where Qij = yi yj xi^T xj and upper_bound_i = Cp or Cn.
func solveL2RLRDual(ctx *solverContext, prob *Problem, w []float64, eps float64, cp float64, cn float64) {
	l := prob.L
	wSize := prob.N
	xTx := make([]float64, l)
	index := make([]int, l)
	alpha := make([]float64, 2*l) // store alpha and C - alpha
	y := labelSigns(prob)
	maxInnerIter := 100 // for inner Newton
	innerEps := 1e-2
	innerEpsMin := math.Min(1e-8, eps)
	upperBound := [3]float64{cn, 0, cp}

	// Initial alpha can be set here. Note that
	// 0 < alpha[i] < upper_bound[GETI(i)]
	// alpha[2*i] + alpha[2*i+1] = upper_bound[GETI(i)]
	for i := 0; i < l; i++ {
		alpha[2*i] = math.Min(0.001*upperBound[y[i]+1], 1e-8)
		alpha[2*i+1] = upperBound[y[i]+1] - alpha[2*i]
	}

	for i := 0; i < wSize; i++ {
		w[i] = 0
	}
	for i := 0; i < l; i++ {
		xi := prob.X[i]
		xTx[i] = sparseNrm2Sq(xi)
		sparseAxpy(float64(y[i])*alpha[2*i], xi, w)
		index[i] = i
	}

	iter := 0
	for iter < ctx.maxIter {
		ctx.shuffle(index, l)

		newtonIter := 0
		gMax := 0.0
		for s := 0; s < l; s++ {
			i := index[s]
			yi := float64(y[i])
			C := upperBound[y[i]+1]
			xi := prob.X[i]
			a := xTx[i]
			b := yi * sparseDot(w, xi)

			// Decide to minimize g_1(z) or g_2(z)
			ind1, ind2, sign := 2*i, 2*i+1, 1.0
			if 0.5*a*(alpha[ind2]-alpha[ind1])+b < 0 {
				ind1, ind2, sign = 2*i+1, 2*i, -1
			}

			//  g_t(z) = z*log(z) + (C-z)*log(C-z) + 0.5a(z-alpha_old)^2 + sign*b(z-alpha_old)
			alphaOld := alpha[ind1]
			z := alphaOld
			if C-z < 0.5*C {
				z = 0.1 * z
			}
			gp := a*(z-alphaOld) + sign*b + math.Log(z/(C-z))
			gMax = math.Max(gMax, math.Abs(gp))

			// Newton method on the sub-problem
			const eta = 0.1 // xi in the paper
			innerIter := 0
			for innerIter <= maxInnerIter {
				if math.Abs(gp) < innerEps {
					break
				}
				gpp := a + C/(C-z)/z
				tmpz := z - gp/gpp
				if tmpz <= 0 {
					z *= eta
				} else { // tmpz in (0, C)
					z = tmpz
				}
				gp = a*(z-alphaOld) + sign*b + math.Log(z/(C-z))
				newtonIter++
				innerIter++
			}

			if innerIter > 0 { // update w
				alpha[ind1] = z
				alpha[ind2] = C - z
				sparseAxpy(sign*(z-alphaOld)*yi, xi, w)
			}
		}

		iter++

		if gMax < eps {
			break
		}
		if newtonIter <= l/10 {
			innerEps = math.Max(innerEpsMin, 0.1*innerEps)
		}
	}

	if iter >= ctx.maxIter {
		ctx.logger.Warn().Int("iter", iter).Msg("reaching max number of iterations, using -s 0 may be faster")
	}

	// calculate objective value
	v := 0.0
	for i := 0; i < wSize; i++ {
		v += w[i] * w[i]
	}
	v *= 0.5
	for i := 0; i < l; i++ {
		ub := upperBound[y[i]+1]
		v += alpha[2*i]*math.Log(alpha[2*i]) + alpha[2*i+1]*math.Log(alpha[2*i+1]) - ub*math.Log(ub)
	}
	ctx.logger.Info().Int("iter", iter).Float64("objective", v).Msg("optimization finished")
}

// solveL2RL1L2Svr is the dual coordinate descent method for L2-regularized
// L1- and L2-loss support vector regression (Ho and Lin, 2012):
//
//	min_\beta  0.5\beta^T (Q + lambda I) \beta - p \sum_i |\beta_i| + \sum_i yi \beta_i,
//	   s.t.      -upper_bound_i <= \beta_i <= upper_bound_i,
//
// where Qij = xi^T xj. For L1-loss lambda = 0 and upper_bound_i = C; for
// L2-loss lambda = 1/(2*C) and upper_bound_i = INF.
func solveL2RL1L2Svr(ctx *solverContext, prob *Problem, w []float64, param *Parameter) {
	l := prob.L
	C := param.C
	p := param.P
	wSize := prob.N
	eps := param.Eps
	activeSize := l
	index := make([]int, l)

	gMaxOld := math.Inf(1)
	gNorm1Init := -1.0 // initialized at the first iteration
	beta := make([]float64, l)
	QD := make([]float64, l)
	y := prob.Y

	// L2R_L2LOSS_SVR_DUAL
	lambda := 0.5 / C
	upperBound := math.Inf(1)
	if param.SolverType == L2R_L1LOSS_SVR_DUAL {
		lambda = 0
		upperBound = C
	}

	for i := 0; i < wSize; i++ {
		w[i] = 0
	}
	for i := 0; i < l; i++ {
		QD[i] = sparseNrm2Sq(prob.X[i])
		index[i] = i
	}

	iter := 0
	for iter < ctx.maxIter {
		gMaxNew := 0.0
		gNorm1New := 0.0

		ctx.shuffle(index, activeSize)

		for s := 0; s < activeSize; s++ {
			i := index[s]
			G := -y[i] + lambda*beta[i]
			H := QD[i] + lambda

			xi := prob.X[i]
			G += sparseDot(w, xi)

			Gp := G + p
			Gn := G - p
			violation := 0.0
			if beta[i] == 0 {
				if Gp < 0 {
					violation = -Gp
				} else if Gn > 0 {
					violation = Gn
				} else if Gp > gMaxOld && Gn < -gMaxOld {
					activeSize--
					index[s], index[activeSize] = index[activeSize], index[s]
					s--
					continue
				}
			} else if beta[i] >= upperBound {
				if Gp > 0 {
					violation = Gp
				} else if Gp < -gMaxOld {
					activeSize--
					index[s], index[activeSize] = index[activeSize], index[s]
					s--
					continue
				}
			} else if beta[i] <= -upperBound {
				if Gn < 0 {
					violation = -Gn
				} else if Gn > gMaxOld {
					activeSize--
					index[s], index[activeSize] = index[activeSize], index[s]
					s--
					continue
				}
			} else if beta[i] > 0 {
				violation = math.Abs(Gp)
			} else {
				violation = math.Abs(Gn)
			}

			gMaxNew = math.Max(gMaxNew, violation)
			gNorm1New += violation

			// obtain Newton direction d
			var d float64
			if Gp < H*beta[i] {
				d = -Gp / H
			} else if Gn > H*beta[i] {
				d = -Gn / H
			} else {
				d = -beta[i]
			}

			if math.Abs(d) < 1.0e-12 {
				continue
			}

			betaOld := beta[i]
			beta[i] = math.Min(math.Max(beta[i]+d, -upperBound), upperBound)
			d = beta[i] - betaOld

			if d != 0 {
				sparseAxpy(d, xi, w)
			}
		}

		if iter == 0 {
			gNorm1Init = gNorm1New
		}
		iter++

		if gNorm1New <= eps*gNorm1Init {
			if activeSize == l {
				break
			}
			activeSize = l
			ctx.logger.Debug().Int("iter", iter).Msg("shrinking reset")
			gMaxOld = math.Inf(1)
			continue
		}

		gMaxOld = gMaxNew
	}

	if iter >= ctx.maxIter {
		ctx.logger.Warn().Int("iter", iter).Msg("reaching max number of iterations, using -s 11 may be faster")
	}

	// calculate objective value
	v := 0.0
	nSV := 0
	for i := 0; i < wSize; i++ {
		v += w[i] * w[i]
	}
	v = 0.5 * v
	for i := 0; i < l; i++ {
		v += p*math.Abs(beta[i]) - y[i]*beta[i] + 0.5*lambda*beta[i]*beta[i]
		if beta[i] != 0 {
			nSV++
		}
	}
	ctx.logger.Info().Int("iter", iter).Float64("objective", v).Int("nSV", nSV).Msg("optimization finished")
}
