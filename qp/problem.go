// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// augmented is the slack-augmented problem in 𝐳 = (𝐱, s) ∈ ℝⁿ⁺¹
//
//	minimize    ½𝐱ᵀP𝐱 + 𝐪ᵀ𝐱 + r
//	subject to  G𝐱 - 𝐡 - s𝟏 ⪯ 0
//	            A𝐱 = 𝐛
//	            s = 0
//
// It keeps non-owning references to the caller's data for the duration of one solve.
type augmented struct {
	n, m, p int
	P       mat.Symmetric
	q       []float64
	r       float64
	G       mat.Matrix
	h       []float64
	A       mat.Matrix
	b       []float64
	margin  float64
	// sink of the terminal point
	out *Solver
	x   []float64
}

func (a *augmented) Dims() (n, m, p int) {
	return a.n + 1, a.m, a.p + 1
}

// InitialPoint sets s₀ = max(G𝐱₀ - 𝐡) + margin, so that G𝐱₀ - 𝐡 - s₀𝟏 ⪯ -margin.
func (a *augmented) InitialPoint(z0 []float64) ([]float64, error) {
	z := slices.Clone(z0)
	s := zero
	if a.m > 0 {
		s = floats.Max(a.gx(z[:a.n]))
	}
	z[a.n] = s + a.margin
	return z, nil
}

// gx returns G𝐱 - 𝐡.
func (a *augmented) gx(x []float64) []float64 {
	v := mat.NewVecDense(a.m, nil)
	v.MulVec(a.G, mat.NewVecDense(a.n, x))
	d := v.RawVector().Data
	floats.Sub(d, a.h)
	return d
}

func (a *augmented) Objective(z []float64) (float64, error) {
	x := mat.NewVecDense(a.n, z[:a.n])
	return half*mat.Inner(x, a.P, x) + floats.Dot(a.q, z[:a.n]) + a.r, nil
}

// Gradient returns (P𝐱 + 𝐪, 0).
func (a *augmented) Gradient(z []float64) ([]float64, error) {
	g := make([]float64, a.n+1)
	v := mat.NewVecDense(a.n, g[:a.n])
	v.MulVec(a.P, mat.NewVecDense(a.n, z[:a.n]))
	floats.Add(g[:a.n], a.q)
	return g, nil
}

// Hessian returns [P 0; 0 0].
func (a *augmented) Hessian([]float64) (mat.Symmetric, error) {
	return bordered{a.P}, nil
}

// Inequality returns G𝐱 - 𝐡 - s𝟏.
func (a *augmented) Inequality(z []float64) ([]float64, error) {
	f := a.gx(z[:a.n])
	floats.AddConst(-z[a.n], f)
	return f, nil
}

// Jacobian returns [G -𝟏].
func (a *augmented) Jacobian([]float64) (mat.Matrix, error) {
	return slackColumn{a.G}, nil
}

// InequalityHessian is zero for linear constraints.
func (a *augmented) InequalityHessian([]float64, int) (mat.Symmetric, error) {
	return nil, nil
}

// Equality returns [A 0; 0 1] and (𝐛, 0).
func (a *augmented) Equality() (mat.Matrix, []float64, error) {
	b := make([]float64, a.p+1)
	copy(b, a.b)
	return slackRow{a.A, a.n, a.p}, b, nil
}

func (a *augmented) FinalPoint(z, lambda, nu []float64, converged bool) error {
	copy(a.x, z[:a.n])
	o := a.out
	o.slack = z[a.n]
	o.lambda = slices.Clone(lambda)
	o.nu = slices.Clone(nu[:a.p])
	o.converged = converged
	return nil
}

// bordered is the (n+1)×(n+1) symmetric view [P 0; 0 0].
type bordered struct {
	P mat.Symmetric
}

func (b bordered) Dims() (r, c int) {
	n, _ := b.P.Dims()
	return n + 1, n + 1
}

func (b bordered) At(i, j int) float64 {
	n, _ := b.P.Dims()
	if i == n || j == n {
		return zero
	}
	return b.P.At(i, j)
}

func (b bordered) T() mat.Matrix { return b }

func (b bordered) SymmetricDim() int {
	n, _ := b.P.Dims()
	return n + 1
}

// slackColumn is the m×(n+1) view [G -𝟏].
type slackColumn struct {
	G mat.Matrix
}

func (s slackColumn) Dims() (r, c int) {
	r, c = s.G.Dims()
	return r, c + 1
}

func (s slackColumn) At(i, j int) float64 {
	if _, n := s.G.Dims(); j == n {
		return -one
	}
	return s.G.At(i, j)
}

func (s slackColumn) T() mat.Matrix { return mat.Transpose{Matrix: s} }

// slackRow is the (p+1)×(n+1) view [A 0; 0 1]; A may be nil when p = 0.
type slackRow struct {
	A    mat.Matrix
	n, p int
}

func (s slackRow) Dims() (r, c int) {
	return s.p + 1, s.n + 1
}

func (s slackRow) At(i, j int) float64 {
	switch {
	case i == s.p:
		if j == s.n {
			return one
		}
		return zero
	case j == s.n:
		return zero
	}
	return s.A.At(i, j)
}

func (s slackRow) T() mat.Matrix { return mat.Transpose{Matrix: s} }
