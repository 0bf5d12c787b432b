// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates derivatives of vector functions by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// VecFunc evaluates 𝒇(𝐱) : ℝⁿ → ℝᵐ and returns a fresh m-vector.
type VecFunc func(x []float64) ([]float64, error)

// Approx estimates derivatives with finite differences.
type Approx struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = ε * sign(x₀) * max(1, |x₀|) with ε selected by Method.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x₀) * |x₀| when RelStep is provided.
	RelStep float64
	// Absolute step size to use. The RelStep is used when AbsStep is not provide.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
}

// Jacobian returns the m×n matrix J with Jᵢⱼ ≈ ∂𝒇ᵢ/∂𝐱ⱼ at x0.
// The x0 is not modified.
func (a *Approx) Jacobian(fun VecFunc, x0 []float64) (*mat.Dense, error) {

	n := len(x0)
	switch {
	case n == 0:
		return nil, errors.New("empty x0")
	case fun == nil:
		return nil, errors.New("object function is required")
	case a.Method != Forward && a.Method != Central:
		return nil, errors.New("unknown method")
	}

	x := slices.Clone(x0)
	f0, err := fun(x)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate at x0")
	}
	m := len(f0)
	if m == 0 {
		return nil, errors.New("function has empty output")
	}

	h := a.absoluteStep(x0)
	jac := mat.NewDense(m, n, nil)

	for j, s := range h {
		t := x[j]
		var d []float64
		switch a.Method {
		case Forward:
			x[j] = t + s
			f1, err := a.eval(fun, x, m)
			if err != nil {
				return nil, err
			}
			d = f1
			for i := range d {
				d[i] = (f1[i] - f0[i]) / s
			}
		case Central:
			s = math.Abs(s)
			x[j] = t - s
			f1, err := a.eval(fun, x, m)
			if err != nil {
				return nil, err
			}
			x[j] = t + s
			f2, err := a.eval(fun, x, m)
			if err != nil {
				return nil, err
			}
			d = f2
			for i := range d {
				d[i] = (f2[i] - f1[i]) / (2 * s)
			}
		}
		x[j] = t
		jac.SetCol(j, d)
	}
	return jac, nil
}

// Gradient returns ∇f(x0) for a scalar function f : ℝⁿ → ℝ.
func (a *Approx) Gradient(fun func(x []float64) (float64, error), x0 []float64) ([]float64, error) {
	if fun == nil {
		return nil, errors.New("object function is required")
	}
	jac, err := a.Jacobian(func(x []float64) ([]float64, error) {
		f, err := fun(x)
		return []float64{f}, err
	}, x0)
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, jac), nil
}

func (a *Approx) eval(fun VecFunc, x []float64, m int) ([]float64, error) {
	y, err := fun(x)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate at perturbed x")
	}
	if len(y) != m {
		return nil, errors.Errorf("function output length changed from %d to %d", m, len(y))
	}
	return y, nil
}

func (a *Approx) absoluteStep(x0 []float64) []float64 {
	h := make([]float64, len(x0))

	var eps float64
	switch a.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs, rel := a.AbsStep, a.RelStep
	for i, v := range x0 {
		if abs == 0 && rel == 0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
			continue
		}
		s := abs
		if s == 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		}
		// fall back to the default step when v + s rounds to v
		if (v+s)-v == 0 {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = s
	}
	return h
}
