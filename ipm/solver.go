// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type ipmSolver struct {
	optimizer *Optimizer
	workspace *Workspace
	eval      evaluator
	// equality system, fixed for the whole solve.
	a mat.Matrix
	b []float64
	// hook values at the current and trial iterate.
	cur, trial evalPoint
}

// stepTrace describes an accepted step.
type stepTrace struct {
	iter          int
	alpha         float64
	before, after float64
	x, lambda, fi []float64
}

// run drives the iteration from x0 until a terminal status.
func (s *ipmSolver) run(x0 []float64) (Status, error) {

	w, spec, log := s.workspace, &s.optimizer.spec, s.optimizer.logger
	n, m, p := s.eval.n, s.eval.m, s.eval.p

	w.reset()

	start, err := s.eval.prob.InitialPoint(slices.Clone(x0))
	switch {
	case err != nil:
		return ComputationFault, errors.Wrapf(ErrComputation, "initial point: %v", err)
	case len(start) != n:
		return BadDimension, errors.Wrapf(ErrDimension, "initial point has length %d, want %d", len(start), n)
	case !finite(start):
		return ComputationFault, errors.Wrap(ErrComputation, "initial point is not finite")
	}
	copy(w.x, start)

	if s.a, s.b, err = s.eval.equality(); err != nil {
		return statusOf(err), err
	}

	if spec.CheckDerivatives {
		if err = CheckDerivatives(s.eval.prob, w.x, spec.DerivativeTolerance); err != nil {
			return statusOf(err), err
		}
	}

	mu := spec.MuBarrier
	for {
		if err = s.eval.point(w.x, &s.cur); err != nil {
			return statusOf(err), errors.WithMessagef(err, "iteration %d", w.iter)
		}

		if k := violated(s.cur.fi); k >= 0 {
			return ComputationFault, errors.Wrapf(ErrComputation,
				"iteration %d: inequality %d is not strictly feasible (fᵢ = %g)", w.iter, k, s.cur.fi[k])
		}

		// 1/t = η/(μm)
		tinv := zero
		w.gap = zero
		if m > 0 {
			w.gap = -floats.Dot(s.cur.fi, w.lambda)
			tinv = w.gap / (mu * float64(m))
		}

		s.residual(w.x, w.lambda, w.nu, &s.cur, tinv, w.rd, w.rc, w.rp)
		w.rdNorm = floats.Norm(w.rd, 2)
		w.rpNorm = zero
		if p > 0 {
			w.rpNorm = floats.Norm(w.rp, 2)
		}
		w.resNorm = residualNorm(w.rd, w.rc, w.rp)

		log.Debug("ipm iteration",
			"iter", w.iter, "f", s.cur.f, "gap", w.gap,
			"rpri", w.rpNorm, "rdual", w.rdNorm, "residual", w.resNorm)

		if w.rpNorm <= spec.EpsFeasibility && w.rdNorm <= spec.EpsFeasibility && w.gap <= spec.EpsGap {
			log.Info("ipm converged", "iter", w.iter, "f", s.cur.f, "gap", w.gap)
			return Converged, nil
		}

		if w.iter >= spec.MaxIterations {
			log.Info("ipm reached max iterations", "iter", w.iter, "f", s.cur.f, "gap", w.gap,
				"rpri", w.rpNorm, "rdual", w.rdNorm)
			return MaxIterReached, nil
		}

		if err = s.newtonStep(); err != nil {
			return statusOf(err), errors.WithMessagef(err, "iteration %d", w.iter)
		}

		alpha, after, err := s.lineSearch(tinv)
		if err != nil {
			return statusOf(err), errors.WithMessagef(err, "iteration %d", w.iter)
		}

		copy(w.x, w.xt)
		copy(w.lambda, w.lt)
		copy(w.nu, w.nt)

		if s.optimizer.observe != nil {
			s.optimizer.observe(&stepTrace{
				iter: w.iter, alpha: alpha,
				before: w.resNorm, after: after,
				x: w.x, lambda: w.lambda, fi: s.trial.fi,
			})
		}

		log.Debug("ipm step", "iter", w.iter, "alpha", alpha, "residual", after)
		w.iter++
	}
}

// violated returns the first index with fᵢ ≥ 0, or -1 when 𝐟 ≺ 0.
func violated(fi []float64) int {
	for i, v := range fi {
		if !(v < zero) {
			return i
		}
	}
	return -1
}

// residual computes the modified KKT residuals at (𝐱, λ, ν)
//   - 𝐫𝒹 = ∇f₀(𝐱) + D𝐟(𝐱)ᵀλ + Aᵀν
//   - 𝐫𝒸 = -diag(λ)𝐟(𝐱) - (1/t)𝟏
//   - 𝐫ₚ = A𝐱 - 𝐛
func (s *ipmSolver) residual(x, lambda, nu []float64, pt *evalPoint, tinv float64, rd, rc, rp []float64) {

	n, m, p := s.eval.n, s.eval.m, s.eval.p

	copy(rd, pt.g)
	for i := 0; i < m; i++ {
		if l := lambda[i]; l != zero {
			for j := 0; j < n; j++ {
				rd[j] += pt.dfi.At(i, j) * l
			}
		}
		rc[i] = -lambda[i]*pt.fi[i] - tinv
	}
	for i := 0; i < p; i++ {
		v, r := nu[i], -s.b[i]
		for j := 0; j < n; j++ {
			aij := s.a.At(i, j)
			rd[j] += aij * v
			r += aij * x[j]
		}
		rp[i] = r
	}
}

// residualNorm returns ‖(𝐫𝒹,𝐫𝒸,𝐫ₚ)‖₂.
func residualNorm(rd, rc, rp []float64) float64 {
	ss := zero
	for _, r := range [][]float64{rd, rc, rp} {
		if len(r) > 0 {
			ss += math.Pow(floats.Norm(r, 2), 2)
		}
	}
	return math.Sqrt(ss)
}
