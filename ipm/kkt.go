// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"github.com/pkg/errors"
)

// newtonStep computes the primal-dual search direction (Δ𝐱, Δλ, Δν) from the linearized
// modified KKT conditions
//
//	⎡ H          D𝐟ᵀ       Aᵀ ⎤⎡Δ𝐱⎤     ⎡𝐫𝒹⎤
//	⎢ -diag(λ)D𝐟  -diag(𝐟)  0  ⎥⎢Δλ⎥ = - ⎢𝐫𝒸⎥
//	⎣ A           0         0  ⎦⎣Δν⎦     ⎣𝐫ₚ⎦
//
// where H = ∇²f₀(𝐱) + ∑λᵢ∇²fᵢ(𝐱). Since 𝐟 ≺ 0 the second block row is eliminated with
//
//	Δλ = diag(𝐟)⁻¹(𝐫𝒸 - diag(λ)D𝐟Δ𝐱)
//
// leaving the reduced (n+p)×(n+p) system
//
//	⎡ Hₚ𝒹 Aᵀ ⎤⎡Δ𝐱⎤     ⎡𝐫𝒹 + D𝐟ᵀdiag(𝐟)⁻¹𝐫𝒸⎤
//	⎣ A   0  ⎦⎣Δν⎦ = - ⎣         𝐫ₚ         ⎦
//
// with Hₚ𝒹 = H - D𝐟ᵀdiag(λ/𝐟)D𝐟, which is solved by LU factorization.
func (s *ipmSolver) newtonStep() error {

	w := s.workspace
	n, m, p := s.eval.n, s.eval.m, s.eval.p
	x, lambda := w.x, w.lambda
	fi, dfi := s.cur.fi, s.cur.dfi
	kkt, row := w.kkt, w.row

	kkt.Zero()

	hess, err := s.eval.hessian(x)
	if err != nil {
		return err
	}
	if hess != nil {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				kkt.Set(i, j, hess.At(i, j))
			}
		}
	}

	for k := 0; k < m; k++ {
		hk, err := s.eval.inequalityHessian(x, k)
		if err != nil {
			return err
		}
		if hk != nil {
			l := lambda[k]
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if v := hk.At(i, j); v != zero {
						kkt.Set(i, j, kkt.At(i, j)+l*v)
					}
				}
			}
		}

		// Rank-one barrier term -(λₖ/fₖ)∇fₖ∇fₖᵀ
		c := -lambda[k] / fi[k]
		for j := 0; j < n; j++ {
			row[j] = dfi.At(k, j)
		}
		for i, ri := range row {
			if ri == zero {
				continue
			}
			ci := c * ri
			for j, rj := range row {
				if rj != zero {
					kkt.Set(i, j, kkt.At(i, j)+ci*rj)
				}
			}
		}
	}

	for i := 0; i < p; i++ {
		for j := 0; j < n; j++ {
			aij := s.a.At(i, j)
			kkt.Set(n+i, j, aij)
			kkt.Set(j, n+i, aij)
		}
	}

	rhs := w.rhs
	for j := 0; j < n; j++ {
		v := w.rd[j]
		for k := 0; k < m; k++ {
			v += dfi.At(k, j) * w.rc[k] / fi[k]
		}
		rhs.SetVec(j, -v)
	}
	for i := 0; i < p; i++ {
		rhs.SetVec(n+i, -w.rp[i])
	}

	w.lu.Factorize(kkt)
	if err := w.lu.SolveVecTo(w.sol, false, rhs); err != nil {
		return errors.Wrapf(ErrLinearSolve, "kkt system: %v", err)
	}

	sol := w.sol.RawVector().Data
	if !finite(sol) {
		return errors.Wrap(ErrLinearSolve, "kkt solution is not finite")
	}
	copy(w.dx, sol[:n])
	copy(w.dnu, sol[n:n+p])

	for k := 0; k < m; k++ {
		v := zero
		for j := 0; j < n; j++ {
			v += dfi.At(k, j) * w.dx[j]
		}
		w.dl[k] = (w.rc[k] - lambda[k]*v) / fi[k]
	}

	return nil
}
