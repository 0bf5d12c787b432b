// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// trialStep sets the trial iterate (𝐱, λ, ν) + α(Δ𝐱, Δλ, Δν).
func (w *Workspace) trialStep(alpha float64) {
	floats.AddScaledTo(w.xt, w.x, alpha, w.dx)
	floats.AddScaledTo(w.lt, w.lambda, alpha, w.dl)
	floats.AddScaledTo(w.nt, w.nu, alpha, w.dnu)
}

// positive reports whether λ + αΔλ ≻ 0.
func (w *Workspace) positive(alpha float64) bool {
	for i, l := range w.lambda {
		if !(l+alpha*w.dl[i] > zero) {
			return false
		}
	}
	return true
}

// lineSearch performs the backtracking along the Newton direction with barrier 1/t held fixed.
//
// The first phase shrinks α until λ + αΔλ ≻ 0 and 𝐟(𝐱 + αΔ𝐱) ≺ 0.
// The second phase keeps shrinking until
//
//	‖𝐫(𝐱 + αΔ𝐱, λ + αΔλ, ν + αΔν)‖₂ ≤ (1 - βα)‖𝐫(𝐱, λ, ν)‖₂
//
// The feasibility phase is skipped when there are no inequality constraints.
// On success the trial iterate holds the accepted point and its residual norm is returned.
func (s *ipmSolver) lineSearch(tinv float64) (alpha, norm float64, err error) {

	w, line := s.workspace, s.optimizer.spec.LineSearch
	beta, shrink, floor := line.Beta, line.Shrink, line.MinStep

	alpha = one

	if s.eval.m > 0 {
		for {
			if alpha < floor {
				return alpha, norm, errors.Wrapf(ErrLineSearch,
					"no strictly feasible step above %g", floor)
			}
			if w.positive(alpha) {
				w.trialStep(alpha)
				fi, err := s.eval.inequality(w.xt)
				if err != nil {
					return alpha, norm, err
				}
				if violated(fi) < 0 {
					break
				}
			}
			alpha *= shrink
		}
	}

	for {
		if alpha < floor {
			return alpha, norm, errors.Wrapf(ErrLineSearch,
				"residual %g not sufficiently decreased above step %g", w.resNorm, floor)
		}

		w.trialStep(alpha)
		if err = s.eval.point(w.xt, &s.trial); err != nil {
			return
		}

		// 𝐟 is convex so shorter steps stay feasible, unless rounding says otherwise.
		if violated(s.trial.fi) < 0 && w.positive(alpha) {
			s.residual(w.xt, w.lt, w.nt, &s.trial, tinv, w.rdT, w.rcT, w.rpT)
			norm = residualNorm(w.rdT, w.rcT, w.rpT)
			if norm <= (one-beta*alpha)*w.resNorm {
				return
			}
		}
		alpha *= shrink
	}
}
