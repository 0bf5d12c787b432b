// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Problem describes a convex program
//
//	minimize    f₀(𝐱)
//	subject to  fᵢ(𝐱) ≤ 0, i = 1,...,m
//	            A𝐱 = 𝐛
//
// where f₀ : ℝⁿ → ℝ and fᵢ : ℝⁿ → ℝ are convex and twice differentiable.
//
// The engine calls the hooks with read-only views of its own iterate.
// Implementations must not retain or modify the slices they receive,
// and must return freshly computed values.
// Any hook may fail; the error aborts the solve with ErrComputation.
type Problem interface {
	// Dims returns the number of variables n, inequality constraints m and equality constraints p.
	Dims() (n, m, p int)
	// InitialPoint produces the starting point 𝐱₀ ∈ ℝⁿ from the caller's guess.
	// The result must satisfy 𝐟(𝐱₀) ≺ 0 but need not satisfy A𝐱₀ = 𝐛.
	InitialPoint(x0 []float64) ([]float64, error)
	// Objective returns f₀(𝐱).
	Objective(x []float64) (float64, error)
	// Gradient returns ∇f₀(𝐱) ∈ ℝⁿ.
	Gradient(x []float64) ([]float64, error)
	// Hessian returns ∇²f₀(𝐱) ∈ 𝐒ⁿ, positive semidefinite on the feasible set.
	Hessian(x []float64) (mat.Symmetric, error)
	// Inequality returns 𝐟(𝐱) = (f₁(𝐱),...,fₘ(𝐱)). It is not called when m = 0.
	Inequality(x []float64) ([]float64, error)
	// Jacobian returns D𝐟(𝐱) ∈ ℝᵐˣⁿ. It is not called when m = 0.
	Jacobian(x []float64) (mat.Matrix, error)
	// InequalityHessian returns ∇²fᵢ(𝐱) ∈ 𝐒ⁿ for row i. A nil matrix stands for zero.
	InequalityHessian(x []float64, i int) (mat.Symmetric, error)
	// Equality returns A ∈ ℝᵖˣⁿ and 𝐛 ∈ ℝᵖ. It is not called when p = 0.
	Equality() (mat.Matrix, []float64, error)
	// FinalPoint receives the terminal iterate once the solve stops
	// with either Converged or MaxIterReached.
	FinalPoint(x, lambda, nu []float64, converged bool) error
}

// evalPoint holds the hook values at one location.
type evalPoint struct {
	f   float64
	g   []float64  // n
	fi  []float64  // m
	dfi mat.Matrix // m × n
}

// evaluator wraps a Problem and validates every hook result.
type evaluator struct {
	prob    Problem
	n, m, p int
}

func finite(v []float64) bool {
	for _, e := range v {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return false
		}
	}
	return true
}

func finiteMatrix(a mat.Matrix) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := a.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func (e *evaluator) objective(x []float64) (float64, error) {
	f, err := e.prob.Objective(x)
	if err != nil {
		return f, errors.Wrapf(ErrComputation, "objective: %v", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f, errors.Wrapf(ErrComputation, "objective is not finite: %g", f)
	}
	return f, nil
}

func (e *evaluator) gradient(x []float64) ([]float64, error) {
	g, err := e.prob.Gradient(x)
	switch {
	case err != nil:
		return nil, errors.Wrapf(ErrComputation, "gradient: %v", err)
	case len(g) != e.n:
		return nil, errors.Wrapf(ErrDimension, "gradient has length %d, want %d", len(g), e.n)
	case !finite(g):
		return nil, errors.Wrap(ErrComputation, "gradient is not finite")
	}
	return g, nil
}

func (e *evaluator) hessian(x []float64) (mat.Symmetric, error) {
	h, err := e.prob.Hessian(x)
	if err != nil {
		return nil, errors.Wrapf(ErrComputation, "hessian: %v", err)
	}
	if h == nil {
		return nil, nil
	}
	if r, c := h.Dims(); r != e.n || c != e.n {
		return nil, errors.Wrapf(ErrDimension, "hessian is %d×%d, want %d×%d", r, c, e.n, e.n)
	}
	if !finiteMatrix(h) {
		return nil, errors.Wrap(ErrComputation, "hessian is not finite")
	}
	return h, nil
}

func (e *evaluator) inequality(x []float64) ([]float64, error) {
	if e.m == 0 {
		return nil, nil
	}
	fi, err := e.prob.Inequality(x)
	switch {
	case err != nil:
		return nil, errors.Wrapf(ErrComputation, "inequality: %v", err)
	case len(fi) != e.m:
		return nil, errors.Wrapf(ErrDimension, "inequality has length %d, want %d", len(fi), e.m)
	case !finite(fi):
		return nil, errors.Wrap(ErrComputation, "inequality is not finite")
	}
	return fi, nil
}

func (e *evaluator) jacobian(x []float64) (mat.Matrix, error) {
	if e.m == 0 {
		return nil, nil
	}
	d, err := e.prob.Jacobian(x)
	if err != nil {
		return nil, errors.Wrapf(ErrComputation, "jacobian: %v", err)
	}
	if d == nil {
		return nil, errors.Wrap(ErrDimension, "jacobian is nil")
	}
	if r, c := d.Dims(); r != e.m || c != e.n {
		return nil, errors.Wrapf(ErrDimension, "jacobian is %d×%d, want %d×%d", r, c, e.m, e.n)
	}
	if !finiteMatrix(d) {
		return nil, errors.Wrap(ErrComputation, "jacobian is not finite")
	}
	return d, nil
}

func (e *evaluator) inequalityHessian(x []float64, i int) (mat.Symmetric, error) {
	h, err := e.prob.InequalityHessian(x, i)
	if err != nil {
		return nil, errors.Wrapf(ErrComputation, "inequality hessian %d: %v", i, err)
	}
	if h == nil {
		return nil, nil
	}
	if r, c := h.Dims(); r != e.n || c != e.n {
		return nil, errors.Wrapf(ErrDimension, "inequality hessian %d is %d×%d, want %d×%d", i, r, c, e.n, e.n)
	}
	if !finiteMatrix(h) {
		return nil, errors.Wrapf(ErrComputation, "inequality hessian %d is not finite", i)
	}
	return h, nil
}

func (e *evaluator) equality() (mat.Matrix, []float64, error) {
	if e.p == 0 {
		return nil, nil, nil
	}
	a, b, err := e.prob.Equality()
	switch {
	case err != nil:
		return nil, nil, errors.Wrapf(ErrComputation, "equality: %v", err)
	case a == nil:
		return nil, nil, errors.Wrap(ErrDimension, "equality matrix is nil")
	case len(b) != e.p:
		return nil, nil, errors.Wrapf(ErrDimension, "equality vector has length %d, want %d", len(b), e.p)
	}
	if r, c := a.Dims(); r != e.p || c != e.n {
		return nil, nil, errors.Wrapf(ErrDimension, "equality matrix is %d×%d, want %d×%d", r, c, e.p, e.n)
	}
	if !finiteMatrix(a) || !finite(b) {
		return nil, nil, errors.Wrap(ErrComputation, "equality system is not finite")
	}
	return a, b, nil
}

// point evaluates objective, gradient, inequality and jacobian at x.
func (e *evaluator) point(x []float64, pt *evalPoint) (err error) {
	if pt.f, err = e.objective(x); err != nil {
		return
	}
	if pt.g, err = e.gradient(x); err != nil {
		return
	}
	if pt.fi, err = e.inequality(x); err != nil {
		return
	}
	pt.dfi, err = e.jacobian(x)
	return
}
