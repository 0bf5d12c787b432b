// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import "github.com/pkg/errors"

const (
	zero = 0.0
	one  = 1.0
	half = 0.5
)

// Status is the terminal state of an interior-point run.
type Status int

const (
	// NotTerminated the iteration has not finished yet.
	NotTerminated Status = iota
	// Converged primal residual, dual residual and surrogate gap are below tolerance.
	Converged
	// MaxIterReached the iteration budget is exhausted, the last iterate is delivered.
	MaxIterReached
	// BadDimension problem data shapes are inconsistent.
	BadDimension
	// ComputationFault a hook failed or produced non-finite values.
	ComputationFault
	// LinearSolveFault the KKT system is singular or ill-conditioned.
	LinearSolveFault
	// LineSearchFault the step length collapsed below the floor.
	LineSearchFault
)

func (s Status) String() string {
	switch s {
	case NotTerminated:
		return "NotTerminated"
	case Converged:
		return "Converged"
	case MaxIterReached:
		return "MaxIterReached"
	case BadDimension:
		return "BadDimension"
	case ComputationFault:
		return "ComputationFault"
	case LinearSolveFault:
		return "LinearSolveFault"
	case LineSearchFault:
		return "LineSearchFault"
	}
	return "Unknown"
}

// Faulted reports whether s is a fatal terminal state.
func (s Status) Faulted() bool {
	return s >= BadDimension
}

var (
	// ErrDimension shape mismatch detected before iterating.
	ErrDimension = errors.New("ipm: dimension mismatch")
	// ErrComputation a hook returned an error or a non-finite value.
	ErrComputation = errors.New("ipm: computation error")
	// ErrLinearSolve the Newton system could not be solved.
	ErrLinearSolve = errors.New("ipm: linear solve error")
	// ErrLineSearch the backtracking step fell below the minimum step.
	ErrLineSearch = errors.New("ipm: line search error")
)

// statusOf maps an error returned by Fit to its terminal status.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return NotTerminated
	case errors.Is(err, ErrDimension):
		return BadDimension
	case errors.Is(err, ErrLinearSolve):
		return LinearSolveFault
	case errors.Is(err, ErrLineSearch):
		return LineSearchFault
	}
	return ComputationFault
}
