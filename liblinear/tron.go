package liblinear

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/tevino/abool"
	"gonum.org/v1/gonum/floats"
)

// function is a twice differentiable objective minimized by tron
type function interface {
	fun(w []float64) float64

	grad(w []float64, g []float64)

	hv(s []float64, hs []float64)

	nrVariable() int
}

// tron is the trust region Newton method of Lin, Weng and Keerthi (2008)
type tron struct {
	funObj  function
	eps     float64
	maxIter int
	epsCg   float64
	logger  zerolog.Logger
}

func newTron(funObj function, eps float64, maxIter int, epsCg float64, logger zerolog.Logger) *tron {
	return &tron{
		funObj:  funObj,
		eps:     eps,
		maxIter: maxIter,
		epsCg:   epsCg,
		logger:  logger,
	}
}

// minimize updates w in place and returns the number of accepted steps.
func (tr *tron) minimize(w []float64) int {
	// Parameters for updating the iterates.
	const (
		eta0 = 1e-4
		eta1 = 0.25
		eta2 = 0.75
	)

	// Parameters for updating the trust region size delta.
	const (
		sigma1 = 0.25
		sigma2 = 0.5
		sigma3 = 4.0
	)

	n := tr.funObj.nrVariable()
	s, r, g := make([]float64, n), make([]float64, n), make([]float64, n)

	// gradient norm at w = 0 for the stopping condition
	w0 := make([]float64, n)
	tr.funObj.fun(w0)
	tr.funObj.grad(w0, g)
	gnorm0 := floats.Norm(g, 2)

	f := tr.funObj.fun(w)
	tr.funObj.grad(w, g)
	delta := floats.Norm(g, 2)
	gnorm := delta

	search := gnorm > tr.eps*gnorm0
	iter := 1

	wNew := make([]float64, n)
	reachBoundary := abool.New()

	for iter <= tr.maxIter && search {
		cgIter := tr.trcg(delta, g, s, r, reachBoundary)

		copy(wNew, w)
		floats.Add(wNew, s)

		gs := floats.Dot(g, s)
		prered := -0.5 * (gs - floats.Dot(s, r))
		fnew := tr.funObj.fun(wNew)

		// Compute the actual reduction.
		actred := f - fnew

		// On the first iteration, adjust the initial step bound.
		snorm := floats.Norm(s, 2)
		if iter == 1 {
			delta = math.Min(delta, snorm)
		}

		// Compute prediction alpha*snorm of the step.
		var alpha float64
		if fnew-f-gs <= 0 {
			alpha = sigma3
		} else {
			alpha = math.Max(sigma1, -0.5*(gs/(fnew-f-gs)))
		}

		// Update the trust region bound according to the ratio of actual to
		// predicted reduction.
		if actred < eta0*prered {
			delta = math.Min(math.Max(alpha, sigma1)*snorm, sigma2*delta)
		} else if actred < eta1*prered {
			delta = math.Max(sigma1*delta, math.Min(alpha*snorm, sigma2*delta))
		} else if actred < eta2*prered {
			delta = math.Max(sigma1*delta, math.Min(alpha*snorm, sigma3*delta))
		} else if reachBoundary.IsSet() {
			delta = sigma3 * delta
		} else {
			delta = math.Max(delta, math.Min(alpha*snorm, sigma3*delta))
		}

		tr.logger.Debug().
			Int("iter", iter).
			Float64("act", actred).
			Float64("pre", prered).
			Float64("delta", delta).
			Float64("f", f).
			Float64("gnorm", gnorm).
			Int("cg", cgIter).
			Msg("trust region step")

		if actred > eta0*prered {
			iter++
			copy(w, wNew)
			f = fnew
			tr.funObj.grad(w, g)
			gnorm = floats.Norm(g, 2)
			if gnorm <= tr.eps*gnorm0 {
				break
			}
		}

		if f < -1.0e+32 {
			tr.logger.Warn().Msg("f < -1.0e+32")
			break
		}
		if prered <= 0 {
			tr.logger.Warn().Msg("prered <= 0")
			break
		}
		if math.Abs(actred) <= 1.0e-12*math.Abs(f) && math.Abs(prered) <= 1.0e-12*math.Abs(f) {
			tr.logger.Warn().Msg("actred and prered too small")
			break
		}
	}

	if iter > tr.maxIter {
		tr.logger.Warn().Int("iter", iter-1).Msg("reaching max number of iterations")
	}
	tr.logger.Info().Int("iter", iter-1).Float64("objective", f).Msg("optimization finished")

	return iter - 1
}

// trcg runs conjugate gradient on the trust region sub-problem. s is the
// step, r the residual.
func (tr *tron) trcg(delta float64, g []float64, s []float64, r []float64, reachBoundary *abool.AtomicBool) int {
	n := tr.funObj.nrVariable()
	d := make([]float64, n)
	hd := make([]float64, n)

	reachBoundary.UnSet()

	for i := 0; i < n; i++ {
		s[i] = 0
		r[i] = -g[i]
		d[i] = r[i]
	}

	cgTol := tr.epsCg * floats.Norm(g, 2)

	cgIter := 0
	rTr := floats.Dot(r, r)

	for floats.Norm(r, 2) > cgTol {
		cgIter++
		tr.funObj.hv(d, hd)

		alpha := rTr / floats.Dot(d, hd)
		floats.AddScaled(s, alpha, d)

		if floats.Norm(s, 2) > delta {
			tr.logger.Debug().Msg("cg reaches trust region boundary")
			reachBoundary.Set()
			floats.AddScaled(s, -alpha, d)

			std := floats.Dot(s, d)
			sts := floats.Dot(s, s)
			dtd := floats.Dot(d, d)
			dsq := delta * delta
			rad := math.Sqrt(std*std + dtd*(dsq-sts))

			if std >= 0 {
				alpha = (dsq - sts) / (std + rad)
			} else {
				alpha = (rad - std) / dtd
			}

			floats.AddScaled(s, alpha, d)
			floats.AddScaled(r, -alpha, hd)
			break
		}

		floats.AddScaled(r, -alpha, hd)
		rNewTrNew := floats.Dot(r, r)
		beta := rNewTrNew / rTr
		floats.Scale(beta, d)
		floats.Add(d, r)
		rTr = rNewTrNew
	}

	return cgIter
}
