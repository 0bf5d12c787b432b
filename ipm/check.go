// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/convex/numdiff"
)

// CheckDerivatives compares the derivative hooks of prob against central finite differences at x:
//   - Gradient against the differences of Objective
//   - Hessian against the differences of Gradient
//   - Jacobian against the differences of Inequality
//   - InequalityHessian(i) against the differences of row i of Jacobian
//
// An entry passes when |analytic - approx| ≤ tol × max(1, |approx|).
// The first mismatch is reported as ErrComputation.
func CheckDerivatives(prob Problem, x []float64, tol float64) error {

	n, m, _ := prob.Dims()
	if len(x) != n {
		return errors.Wrapf(ErrDimension, "check point has length %d, want %d", len(x), n)
	}

	e := evaluator{prob: prob, n: n, m: m}
	approx := numdiff.Approx{Method: numdiff.Central}

	grad, err := e.gradient(x)
	if err != nil {
		return err
	}
	num, err := approx.Gradient(e.objective, x)
	if err != nil {
		return errors.Wrapf(ErrComputation, "approximate gradient: %v", err)
	}
	if err = compare("gradient", mat.NewDense(1, n, grad), mat.NewDense(1, n, num), tol); err != nil {
		return err
	}

	hess, err := e.hessian(x)
	if err != nil {
		return err
	}
	numHess, err := approx.Jacobian(e.gradient, x)
	if err != nil {
		return errors.Wrapf(ErrComputation, "approximate hessian: %v", err)
	}
	if err = compare("hessian", hess, numHess, tol); err != nil {
		return err
	}

	if m == 0 {
		return nil
	}

	jac, err := e.jacobian(x)
	if err != nil {
		return err
	}
	numJac, err := approx.Jacobian(e.inequality, x)
	if err != nil {
		return errors.Wrapf(ErrComputation, "approximate jacobian: %v", err)
	}
	if err = compare("jacobian", jac, numJac, tol); err != nil {
		return err
	}

	for i := 0; i < m; i++ {
		hi, err := e.inequalityHessian(x, i)
		if err != nil {
			return err
		}
		numHi, err := approx.Jacobian(func(x []float64) ([]float64, error) {
			d, err := e.jacobian(x)
			if err != nil {
				return nil, err
			}
			return mat.Row(nil, i, d), nil
		}, x)
		if err != nil {
			return errors.Wrapf(ErrComputation, "approximate inequality hessian %d: %v", i, err)
		}
		if err = compare("inequality hessian", hi, numHi, tol); err != nil {
			return errors.WithMessagef(err, "row %d", i)
		}
	}
	return nil
}

// compare checks analytic against approx entry-wise; a nil analytic matrix stands for zero.
func compare(name string, analytic mat.Matrix, approx *mat.Dense, tol float64) error {
	r, c := approx.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a, b := zero, approx.At(i, j)
			if analytic != nil {
				a = analytic.At(i, j)
			}
			if math.Abs(a-b) > tol*math.Max(one, math.Abs(b)) {
				return errors.Wrapf(ErrComputation, "%s mismatch at (%d, %d): %g, finite difference %g", name, i, j, a, b)
			}
		}
	}
	return nil
}
