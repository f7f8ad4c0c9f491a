package liblinear

import "math"

// solveL1RL2Svc is the coordinate descent method for L1-regularized L2-loss
// SVC (Yuan et al., JMLR 2010):
//
//	min_w \sum |wj| + C \sum max(0, 1-yi w^T xi)^2,
//
// on the column-major problem probCol. Labels are applied on the fly, the
// problem is never modified.
func solveL1RL2Svc(ctx *solverContext, probCol *Problem, w []float64, eps float64, cp float64, cn float64) {
	const sigma = 0.01

	l := probCol.L
	wSize := probCol.N
	activeSize := wSize
	cols := probCol.X

	gMaxOld := math.Inf(1)
	gNorm1Init := -1.0 // initialized at the first iteration
	var lossOld, lossNew float64

	index := make([]int, wSize)
	y := labelSigns(probCol)
	b := make([]float64, l) // b = 1-ywTx
	xjSq := make([]float64, wSize)
	C := [3]float64{cn, 0, cp}

	for j := 0; j < wSize; j++ {
		w[j] = 0
	}
	for i := 0; i < l; i++ {
		b[i] = 1
	}

	for j := 0; j < wSize; j++ {
		index[j] = j
		for _, x := range cols[j] {
			ind := x.Index - 1
			val := x.Value * float64(y[ind])
			xjSq[j] += C[y[ind]+1] * val * val
		}
	}

	// b += a * y .* x_j
	updateB := func(a float64, j int) {
		for _, x := range cols[j] {
			ind := x.Index - 1
			b[ind] += a * x.Value * float64(y[ind])
		}
	}

	iter := 0
	for iter < ctx.maxIter {
		gMaxNew := 0.0
		gNorm1New := 0.0

		ctx.shuffle(index, activeSize)

		for s := 0; s < activeSize; s++ {
			j := index[s]
			gLoss := 0.0
			H := 0.0

			for _, x := range cols[j] {
				ind := x.Index - 1
				if b[ind] > 0 {
					val := x.Value * float64(y[ind])
					tmp := C[y[ind]+1] * val
					gLoss -= tmp * b[ind]
					H += tmp * val
				}
			}
			gLoss *= 2

			G := gLoss
			H *= 2
			H = math.Max(H, 1e-12)

			Gp := G + 1
			Gn := G - 1
			violation := 0.0
			if w[j] == 0 {
				if Gp < 0 {
					violation = -Gp
				} else if Gn > 0 {
					violation = Gn
				} else if Gp > gMaxOld/float64(l) && Gn < -gMaxOld/float64(l) {
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

			// obtain Newton direction d
			var d float64
			if Gp < H*w[j] {
				d = -Gp / H
			} else if Gn > H*w[j] {
				d = -Gn / H
			} else {
				d = -w[j]
			}

			if math.Abs(d) < 1.0e-12 {
				continue
			}

			delta := math.Abs(w[j]+d) - math.Abs(w[j]) + G*d
			dOld := 0.0
			numLineSearch := 0
			for ; numLineSearch < maxNumLineSearch; numLineSearch++ {
				dDiff := dOld - d
				cond := math.Abs(w[j]+d) - math.Abs(w[j]) - sigma*delta

				appxcond := xjSq[j]*d*d + gLoss*d + cond
				if appxcond <= 0 {
					updateB(dDiff, j)
					break
				}

				if numLineSearch == 0 {
					lossOld = 0
					lossNew = 0
					for _, x := range cols[j] {
						ind := x.Index - 1
						if b[ind] > 0 {
							lossOld += C[y[ind]+1] * b[ind] * b[ind]
						}
						bNew := b[ind] + dDiff*x.Value*float64(y[ind])
						b[ind] = bNew
						if bNew > 0 {
							lossNew += C[y[ind]+1] * bNew * bNew
						}
					}
				} else {
					lossNew = 0
					for _, x := range cols[j] {
						ind := x.Index - 1
						bNew := b[ind] + dDiff*x.Value*float64(y[ind])
						b[ind] = bNew
						if bNew > 0 {
							lossNew += C[y[ind]+1] * bNew * bNew
						}
					}
				}

				cond = cond + lossNew - lossOld
				if cond <= 0 {
					break
				}
				dOld = d
				d *= 0.5
				delta *= 0.5
			}

			w[j] += d

			// recompute b[] if line search takes too many steps
			if numLineSearch >= maxNumLineSearch {
				ctx.logger.Debug().Int("feature", j).Msg("line search exhausted, recomputing b")
				for i := 0; i < l; i++ {
					b[i] = 1
				}
				for i := 0; i < wSize; i++ {
					if w[i] != 0 {
						updateB(-w[i], i)
					}
				}
			}
		}

		if iter == 0 {
			gNorm1Init = gNorm1New
		}
		iter++

		if gNorm1New <= eps*gNorm1Init {
			if activeSize == wSize {
				break
			}
			activeSize = wSize
			ctx.logger.Debug().Int("iter", iter).Msg("shrinking reset")
			gMaxOld = math.Inf(1)
			continue
		}

		gMaxOld = gMaxNew
	}

	if iter >= ctx.maxIter {
		ctx.logger.Warn().Int("iter", iter).Msg("reaching max number of iterations")
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
		if b[i] > 0 {
			v += C[y[i]+1] * b[i] * b[i]
		}
	}
	ctx.logger.Info().Int("iter", iter).Float64("objective", v).Int("nnz", nnz).Int("features", wSize).Msg("optimization finished")
}
