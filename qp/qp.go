// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qp solves convex quadratic programs
//
//	minimize    ½𝐱ᵀP𝐱 + 𝐪ᵀ𝐱 + r
//	subject to  G𝐱 ⪯ 𝐡
//	            A𝐱 = 𝐛
//
// where 𝐱 ∈ ℝⁿ, P ∈ 𝐒ⁿ₊, G ∈ ℝᵐˣⁿ and A ∈ ℝᵖˣⁿ, with the primal-dual interior-point method.
//
// Internally a slack variable s ∈ ℝ is introduced for the infeasible start method:
//
//	minimize    ½𝐱ᵀP𝐱 + 𝐪ᵀ𝐱 + r
//	subject to  G𝐱 ⪯ 𝐡 + s𝟏
//	            A𝐱 = 𝐛
//	            s = 0
//
// so that any initial 𝐱 is strictly feasible for a large enough s.
package qp

import (
	"log/slog"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/convex/ipm"
)

const (
	zero = 0.0
	one  = 1.0
	half = 0.5

	defaultSlackMargin = 1.0
)

// Settings specifies the options of the QP solver.
type Settings struct {
	ipm.Settings
	// Initial margin of the slack variable: G𝐱₀ - 𝐡 - s₀𝟏 ⪯ -SlackMargin (default 1).
	SlackMargin float64
}

// New validates the settings and creates a QP solver.
func (s *Settings) New(logger *slog.Logger) (*Solver, error) {
	margin := s.SlackMargin
	if margin == zero {
		margin = defaultSlackMargin
	}
	if !(margin > zero) {
		return nil, errors.New("slack margin must greater than 0")
	}
	o, err := s.Settings.New(logger)
	if err != nil {
		return nil, err
	}
	return &Solver{optimizer: o, margin: margin}, nil
}

// Solver solves quadratic programs and remembers the outcome of the latest Solve.
// A Solver must not be used by concurrent goroutines; create one per goroutine.
type Solver struct {
	optimizer *ipm.Optimizer
	margin    float64

	converged bool
	slack     float64
	lambda    []float64
	nu        []float64
	summary   ipm.Summary
}

// Solve runs the solver with the given problem data.
//
// On input x contains the initial values of 𝐱, which need not be feasible.
// On return it is overwritten with the final iterate when the solve converged
// or exhausted the iteration budget; it is left untouched on error.
//
// G and A may be nil when there is no inequality or equality constraint,
// in which case h and b must be empty. Inconsistent shapes are reported as
// ipm.ErrDimension before any iteration.
func (s *Solver) Solve(x []float64,
	P mat.Symmetric, q []float64, r float64,
	G mat.Matrix, h []float64,
	A mat.Matrix, b []float64) error {

	s.converged, s.slack, s.lambda, s.nu = false, zero, nil, nil
	s.summary = ipm.Summary{}

	prob, err := s.check(x, P, q, r, G, h, A, b)
	if err != nil {
		s.summary.Status = ipm.BadDimension
		return err
	}
	prob.out, prob.x, prob.margin = s, x, s.margin

	n, m, p := prob.Dims()
	w := s.optimizer.Init(n, m, p)

	z0 := make([]float64, n)
	copy(z0, x)

	res, err := s.optimizer.Fit(prob, z0, w)
	s.summary = res.Summary
	return err
}

func (s *Solver) check(x []float64,
	P mat.Symmetric, q []float64, r float64,
	G mat.Matrix, h []float64,
	A mat.Matrix, b []float64) (*augmented, error) {

	n, m, p := len(x), len(h), len(b)

	dims := func(a mat.Matrix) (int, int) {
		if a == nil {
			return 0, 0
		}
		return a.Dims()
	}
	pr, pc := dims(P)
	gr, gc := dims(G)
	ar, ac := dims(A)

	var err error
	switch {
	case n == 0:
		err = errors.Wrap(ipm.ErrDimension, "x must not be empty")
	case pr != n || pc != n:
		err = errors.Wrapf(ipm.ErrDimension, "P is %d×%d, want %d×%d", pr, pc, n, n)
	case len(q) != n:
		err = errors.Wrapf(ipm.ErrDimension, "q has length %d, want %d", len(q), n)
	case G == nil && m > 0:
		err = errors.Wrapf(ipm.ErrDimension, "G is nil but h has length %d", m)
	case G != nil && (gr != m || gc != n):
		err = errors.Wrapf(ipm.ErrDimension, "G is %d×%d, want %d×%d", gr, gc, m, n)
	case A == nil && p > 0:
		err = errors.Wrapf(ipm.ErrDimension, "A is nil but b has length %d", p)
	case A != nil && (ar != p || ac != n):
		err = errors.Wrapf(ipm.ErrDimension, "A is %d×%d, want %d×%d", ar, ac, p, n)
	}
	if err != nil {
		return nil, err
	}

	return &augmented{
		n: n, m: m, p: p,
		P: P, q: q, r: r,
		G: G, h: h,
		A: A, b: b,
	}, nil
}

// IsConverged indicates if the previous Solve has converged.
func (s *Solver) IsConverged() bool { return s.converged }

// Slack returns the final slack s of the previous Solve.
func (s *Solver) Slack() float64 { return s.slack }

// Lambda returns the multipliers of G𝐱 ⪯ 𝐡 from the previous Solve.
func (s *Solver) Lambda() []float64 { return s.lambda }

// Nu returns the multipliers of A𝐱 = 𝐛 from the previous Solve.
func (s *Solver) Nu() []float64 { return s.nu }

// Summary returns the summary of the previous Solve.
func (s *Solver) Summary() ipm.Summary { return s.summary }
