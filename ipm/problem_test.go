// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// quadratic is a plain QP ½𝐱ᵀP𝐱 + 𝐪ᵀ𝐱 s.t. G𝐱 ⪯ 𝐡, A𝐱 = 𝐛 without slack,
// the caller is responsible for a strictly feasible start.
type quadratic struct {
	P *mat.SymDense
	q []float64
	G *mat.Dense
	h []float64
	A *mat.Dense
	b []float64

	final struct {
		called    bool
		x, l, v   []float64
		converged bool
	}
}

func (qp *quadratic) Dims() (n, m, p int) {
	return len(qp.q), len(qp.h), len(qp.b)
}

func (qp *quadratic) InitialPoint(x0 []float64) ([]float64, error) {
	return x0, nil
}

func (qp *quadratic) Objective(x []float64) (float64, error) {
	v := mat.NewVecDense(len(x), x)
	return 0.5*mat.Inner(v, qp.P, v) + floats.Dot(qp.q, x), nil
}

func (qp *quadratic) Gradient(x []float64) ([]float64, error) {
	g := mat.NewVecDense(len(x), nil)
	g.MulVec(qp.P, mat.NewVecDense(len(x), x))
	floats.Add(g.RawVector().Data, qp.q)
	return g.RawVector().Data, nil
}

func (qp *quadratic) Hessian([]float64) (mat.Symmetric, error) {
	return qp.P, nil
}

func (qp *quadratic) Inequality(x []float64) ([]float64, error) {
	f := mat.NewVecDense(len(qp.h), nil)
	f.MulVec(qp.G, mat.NewVecDense(len(x), x))
	floats.Sub(f.RawVector().Data, qp.h)
	return f.RawVector().Data, nil
}

func (qp *quadratic) Jacobian([]float64) (mat.Matrix, error) {
	return qp.G, nil
}

func (qp *quadratic) InequalityHessian([]float64, int) (mat.Symmetric, error) {
	return nil, nil
}

func (qp *quadratic) Equality() (mat.Matrix, []float64, error) {
	return qp.A, qp.b, nil
}

func (qp *quadratic) FinalPoint(x, lambda, nu []float64, converged bool) error {
	qp.final.called = true
	qp.final.x = slices.Clone(x)
	qp.final.l = slices.Clone(lambda)
	qp.final.v = slices.Clone(nu)
	qp.final.converged = converged
	return nil
}

// randomQP generates a bounded feasible QP with n variables, m inequalities and p equalities.
// The returned point is strictly feasible for the inequalities but violates the equalities.
func randomQP(rnd *rand.Rand, n, m, p int) (*quadratic, []float64) {

	M := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			M.Set(i, j, rnd.NormFloat64())
		}
	}
	P := mat.NewSymDense(n, nil)
	P.SymOuterK(1, M)
	for i := 0; i < n; i++ {
		P.SetSym(i, i, P.At(i, i)+1)
	}

	q := make([]float64, n)
	x0 := make([]float64, n)
	for i := range q {
		q[i] = rnd.NormFloat64()
		x0[i] = rnd.NormFloat64()
	}

	qp := &quadratic{P: P, q: q}

	if m > 0 {
		qp.G = mat.NewDense(m, n, nil)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				qp.G.Set(i, j, rnd.NormFloat64())
			}
		}
		h := mat.NewVecDense(m, nil)
		h.MulVec(qp.G, mat.NewVecDense(n, x0))
		qp.h = h.RawVector().Data
		for i := range qp.h {
			qp.h[i] += 0.5 + rnd.Float64()
		}
	}

	if p > 0 {
		xf := slices.Clone(x0)
		for i := range xf {
			xf[i] += 0.01 * rnd.NormFloat64()
		}
		qp.A = mat.NewDense(p, n, nil)
		for i := 0; i < p; i++ {
			for j := 0; j < n; j++ {
				qp.A.Set(i, j, rnd.NormFloat64())
			}
		}
		b := mat.NewVecDense(p, nil)
		b.MulVec(qp.A, mat.NewVecDense(n, xf))
		qp.b = b.RawVector().Data
	}

	return qp, x0
}

// ball minimizes 𝐜ᵀ𝐱 subject to ‖𝐱‖² ≤ 1, the solution is -𝐜/‖𝐜‖ with λ = ‖𝐜‖/2.
type ball struct {
	c []float64
}

func (b *ball) Dims() (n, m, p int) { return len(b.c), 1, 0 }

func (b *ball) InitialPoint(x0 []float64) ([]float64, error) { return x0, nil }

func (b *ball) Objective(x []float64) (float64, error) { return floats.Dot(b.c, x), nil }

func (b *ball) Gradient([]float64) ([]float64, error) { return slices.Clone(b.c), nil }

func (b *ball) Hessian([]float64) (mat.Symmetric, error) { return nil, nil }

func (b *ball) Inequality(x []float64) ([]float64, error) {
	return []float64{floats.Dot(x, x) - 1}, nil
}

func (b *ball) Jacobian(x []float64) (mat.Matrix, error) {
	d := slices.Clone(x)
	floats.Scale(2, d)
	return mat.NewDense(1, len(x), d), nil
}

func (b *ball) InequalityHessian(x []float64, _ int) (mat.Symmetric, error) {
	h := mat.NewSymDense(len(x), nil)
	for i := range x {
		h.SetSym(i, i, 2)
	}
	return h, nil
}

func (b *ball) Equality() (mat.Matrix, []float64, error) { return nil, nil, nil }

func (b *ball) FinalPoint([]float64, []float64, []float64, bool) error { return nil }

// hooked overrides selected hooks of an embedded problem.
type hooked struct {
	Problem
	initial   func(x0 []float64) ([]float64, error)
	objective func(x []float64) (float64, error)
	gradient  func(x []float64) ([]float64, error)
	hessian   func(x []float64) (mat.Symmetric, error)
	finalized bool
}

func (h *hooked) InitialPoint(x0 []float64) ([]float64, error) {
	if h.initial != nil {
		return h.initial(x0)
	}
	return h.Problem.InitialPoint(x0)
}

func (h *hooked) Objective(x []float64) (float64, error) {
	if h.objective != nil {
		return h.objective(x)
	}
	return h.Problem.Objective(x)
}

func (h *hooked) Gradient(x []float64) ([]float64, error) {
	if h.gradient != nil {
		return h.gradient(x)
	}
	return h.Problem.Gradient(x)
}

func (h *hooked) Hessian(x []float64) (mat.Symmetric, error) {
	if h.hessian != nil {
		return h.hessian(x)
	}
	return h.Problem.Hessian(x)
}

func (h *hooked) FinalPoint(x, lambda, nu []float64, converged bool) error {
	h.finalized = true
	return h.Problem.FinalPoint(x, lambda, nu, converged)
}
