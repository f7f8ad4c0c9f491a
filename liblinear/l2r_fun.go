package liblinear

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// l2rLRFun is 0.5 w^T w + \sum_i C_i log(1 + exp(-y_i w^T x_i))
type l2rLRFun struct {
	prob *Problem
	c    []float64
	z    []float64
	d    []float64
}

func newL2RLRFun(prob *Problem, c []float64) *l2rLRFun {
	return &l2rLRFun{
		prob: prob,
		c:    c,
		z:    make([]float64, prob.L),
		d:    make([]float64, prob.L),
	}
}

func (fn *l2rLRFun) nrVariable() int {
	return fn.prob.N
}

func (fn *l2rLRFun) fun(w []float64) float64 {
	y := fn.prob.Y
	xv(fn.prob, w, fn.z)

	f := floats.Dot(w, w) / 2
	for i := 0; i < fn.prob.L; i++ {
		yz := y[i] * fn.z[i]
		if yz >= 0 {
			f += fn.c[i] * math.Log(1+math.Exp(-yz))
		} else {
			f += fn.c[i] * (-yz + math.Log(1+math.Exp(yz)))
		}
	}
	return f
}

func (fn *l2rLRFun) grad(w []float64, g []float64) {
	y := fn.prob.Y
	for i := 0; i < fn.prob.L; i++ {
		fn.z[i] = 1 / (1 + math.Exp(-y[i]*fn.z[i]))
		fn.d[i] = fn.z[i] * (1 - fn.z[i])
		fn.z[i] = fn.c[i] * (fn.z[i] - 1) * y[i]
	}

	xTv(fn.prob, fn.z, g)
	floats.Add(g, w)
}

func (fn *l2rLRFun) hv(s []float64, hs []float64) {
	for i := range hs {
		hs[i] = 0
	}
	for i := 0; i < fn.prob.L; i++ {
		xi := fn.prob.X[i]
		xTs := fn.c[i] * fn.d[i] * sparseDot(s, xi)
		sparseAxpy(xTs, xi, hs)
	}
	floats.Add(hs, s)
}

// l2rL2SvcFun is 0.5 w^T w + \sum_i C_i max(0, 1 - y_i w^T x_i)^2
type l2rL2SvcFun struct {
	prob  *Problem
	c     []float64
	z     []float64
	i     []int
	sizeI int
}

func newL2RL2SvcFun(prob *Problem, c []float64) *l2rL2SvcFun {
	return &l2rL2SvcFun{
		prob: prob,
		c:    c,
		z:    make([]float64, prob.L),
		i:    make([]int, prob.L),
	}
}

func (fn *l2rL2SvcFun) nrVariable() int {
	return fn.prob.N
}

func (fn *l2rL2SvcFun) fun(w []float64) float64 {
	y := fn.prob.Y
	xv(fn.prob, w, fn.z)

	f := floats.Dot(w, w) / 2
	for i := 0; i < fn.prob.L; i++ {
		fn.z[i] = y[i] * fn.z[i]
		d := 1 - fn.z[i]
		if d > 0 {
			f += fn.c[i] * d * d
		}
	}
	return f
}

func (fn *l2rL2SvcFun) grad(w []float64, g []float64) {
	y := fn.prob.Y
	fn.sizeI = 0
	for i := 0; i < fn.prob.L; i++ {
		if fn.z[i] < 1 {
			fn.z[fn.sizeI] = fn.c[i] * y[i] * (fn.z[i] - 1)
			fn.i[fn.sizeI] = i
			fn.sizeI++
		}
	}

	fn.subXTv(fn.z, g)
	for i := range g {
		g[i] = w[i] + 2*g[i]
	}
}

func (fn *l2rL2SvcFun) hv(s []float64, hs []float64) {
	for i := range hs {
		hs[i] = 0
	}
	for k := 0; k < fn.sizeI; k++ {
		xi := fn.prob.X[fn.i[k]]
		wa := fn.c[fn.i[k]] * sparseDot(s, xi)
		sparseAxpy(wa, xi, hs)
	}
	for i := range hs {
		hs[i] = s[i] + 2*hs[i]
	}
}

// subXTv computes X_I^T v over the index set I found by grad.
func (fn *l2rL2SvcFun) subXTv(v []float64, xTv []float64) {
	for i := range xTv {
		xTv[i] = 0
	}
	for k := 0; k < fn.sizeI; k++ {
		sparseAxpy(v[k], fn.prob.X[fn.i[k]], xTv)
	}
}

// l2rL2SvrFun is 0.5 w^T w + \sum_i C_i max(0, |w^T x_i - y_i| - p)^2
type l2rL2SvrFun struct {
	*l2rL2SvcFun
	p float64
}

func newL2RL2SvrFun(prob *Problem, c []float64, p float64) *l2rL2SvrFun {
	return &l2rL2SvrFun{
		l2rL2SvcFun: newL2RL2SvcFun(prob, c),
		p:           p,
	}
}

func (fn *l2rL2SvrFun) fun(w []float64) float64 {
	y := fn.prob.Y
	xv(fn.prob, w, fn.z)

	f := floats.Dot(w, w) / 2
	for i := 0; i < fn.prob.L; i++ {
		d := fn.z[i] - y[i]
		if d < -fn.p {
			f += fn.c[i] * (d + fn.p) * (d + fn.p)
		} else if d > fn.p {
			f += fn.c[i] * (d - fn.p) * (d - fn.p)
		}
	}
	return f
}

func (fn *l2rL2SvrFun) grad(w []float64, g []float64) {
	y := fn.prob.Y
	fn.sizeI = 0
	for i := 0; i < fn.prob.L; i++ {
		d := fn.z[i] - y[i]

		// generate index set I
		if d < -fn.p {
			fn.z[fn.sizeI] = fn.c[i] * (d + fn.p)
			fn.i[fn.sizeI] = i
			fn.sizeI++
		} else if d > fn.p {
			fn.z[fn.sizeI] = fn.c[i] * (d - fn.p)
			fn.i[fn.sizeI] = i
			fn.sizeI++
		}
	}

	fn.subXTv(fn.z, g)
	for i := range g {
		g[i] = w[i] + 2*g[i]
	}
}

func xv(prob *Problem, v []float64, out []float64) {
	for i := 0; i < prob.L; i++ {
		out[i] = sparseDot(v, prob.X[i])
	}
}

func xTv(prob *Problem, v []float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	for i := 0; i < prob.L; i++ {
		sparseAxpy(v[i], prob.X[i], out)
	}
}
