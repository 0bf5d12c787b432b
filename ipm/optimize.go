// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ipm

import (
	"io"
	"log/slog"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIterations  = 50
	defaultEpsFeasibility = 1e-8
	defaultEpsGap         = 1e-8
	defaultMuBarrier      = 10.0
	defaultBeta           = 0.05
	defaultShrink         = 0.5
	defaultMinStep        = 1e-10
	defaultDerivativeTol  = 1e-4
)

// LineSearch specifies the backtracking rule.
// Starting from α = 1 the step is multiplied by Shrink until
//   - λ + αΔλ ≻ 0 and 𝐟(𝐱 + αΔ𝐱) ≺ 0 (feasibility)
//   - ‖𝐫(α)‖ ≤ (1 - βα)‖𝐫(0)‖ (sufficient decrease)
//
// Falling below MinStep without satisfying both stops the solve with ErrLineSearch.
type LineSearch struct {
	Beta    float64 // 0 < β < ½, default 0.05
	Shrink  float64 // 0 < Shrink < 1, default 0.5
	MinStep float64 // 0 < MinStep < 1, default 1e-10
}

// Settings specifies the options of the primal-dual interior-point method.
// Zero fields are replaced by their defaults.
type Settings struct {
	// The iteration stop when the number of iteration reaches limit (default 50).
	MaxIterations int
	// Converged requires ‖𝐫ₚ‖₂ ≤ EpsFeasibility and ‖𝐫𝒹‖₂ ≤ EpsFeasibility (default 1e-8).
	EpsFeasibility float64
	// Converged requires the surrogate duality gap η ≤ EpsGap (default 1e-8).
	EpsGap float64
	// The barrier scale is set to t = μm/η on each iteration, μ > 1 (default 10).
	MuBarrier float64
	// Backtracking line-search options.
	LineSearch LineSearch
	// Compare the hooks against finite differences at the initial point.
	CheckDerivatives bool
	// Relative tolerance of the derivative check (default 1e-4).
	DerivativeTolerance float64
}

// New validates the settings and creates an optimizer.
// Iteration traces are written to logger at debug level; a nil logger discards them.
func (s *Settings) New(logger *slog.Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	spec := *s
	if spec.MaxIterations == 0 {
		spec.MaxIterations = defaultMaxIterations
	}
	if spec.EpsFeasibility == zero {
		spec.EpsFeasibility = defaultEpsFeasibility
	}
	if spec.EpsGap == zero {
		spec.EpsGap = defaultEpsGap
	}
	if spec.MuBarrier == zero {
		spec.MuBarrier = defaultMuBarrier
	}
	if spec.LineSearch.Beta == zero {
		spec.LineSearch.Beta = defaultBeta
	}
	if spec.LineSearch.Shrink == zero {
		spec.LineSearch.Shrink = defaultShrink
	}
	if spec.LineSearch.MinStep == zero {
		spec.LineSearch.MinStep = defaultMinStep
	}
	if spec.DerivativeTolerance == zero {
		spec.DerivativeTolerance = defaultDerivativeTol
	}

	line := spec.LineSearch
	switch {
	case spec.MaxIterations < 0:
		err = errors.New("max iteration must greater than 0")
	case !(spec.EpsFeasibility > zero):
		err = errors.New("feasibility tolerance must greater than 0")
	case !(spec.EpsGap > zero):
		err = errors.New("duality gap tolerance must greater than 0")
	case !(spec.MuBarrier > one):
		err = errors.New("barrier factor must greater than 1")
	case !(line.Beta > zero && line.Beta < half):
		err = errors.New("line search beta must in (0, 0.5)")
	case !(line.Shrink > zero && line.Shrink < one):
		err = errors.New("line search shrink must in (0, 1)")
	case !(line.MinStep > zero && line.MinStep < one):
		err = errors.New("line search min step must in (0, 1)")
	case !(spec.DerivativeTolerance > zero):
		err = errors.New("derivative tolerance must greater than 0")
	}

	if err != nil {
		return
	}

	optimizer = &Optimizer{spec: spec, logger: logger}
	return
}

// Optimizer implemented using the infeasible-start primal-dual interior-point method.
// An Optimizer is immutable and could be shared by concurrent solves.
type Optimizer struct {
	spec   Settings
	logger *slog.Logger
	// observe is called after every accepted step.
	observe func(st *stepTrace)
}

// Settings returns the effective settings with defaults filled in.
func (o *Optimizer) Settings() Settings {
	return o.spec
}

// Workspace contains the iterate and the buffers of one solve.
// Given n variables, m inequalities and p equalities,
// total work space is approximately float64[2×(n+p)² + 8n + 5m + 7p].
type Workspace struct {
	n, m, p int
	ipmCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK         bool      // Whether the optimization was converged.
	F          float64   // Final objective value.
	X          []float64 // Final primal point.
	Lambda, Nu []float64 // Final inequality and equality multipliers.
	Summary              // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status         Status  // Final status after optimization.
	NumIter        int     // Number of accepted Newton steps.
	Gap            float64 // Final surrogate duality gap η.
	PrimalResidual float64 // Final ‖A𝐱 - 𝐛‖₂.
	DualResidual   float64 // Final ‖∇f₀ + D𝐟ᵀλ + Aᵀν‖₂.
}

// Init allocate the workspace for a problem with n variables, m inequalities and p equalities.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init(n, m, p int) *Workspace {
	if n <= 0 || m < 0 || p < 0 {
		panic("workspace dimension must be positive")
	}
	w := new(Workspace)
	w.n, w.m, w.p = n, m, p
	w.init(n, m, p)
	return w
}

// Fit runs the interior-point iteration for prob from the guess x0 using workspace w.
//
// A nil error is returned when the solve converged or exhausted the iteration budget;
// Result.OK distinguishes the two. Any fatal failure is returned as an error wrapping
// one of ErrDimension, ErrComputation, ErrLinearSolve or ErrLineSearch, and
// FinalPoint is not called.
func (o *Optimizer) Fit(prob Problem, x0 []float64, w *Workspace) (*Result, error) {

	n, m, p := prob.Dims()
	res := &Result{}

	var err error
	switch {
	case n <= 0 || m < 0 || p < 0:
		err = errors.Wrapf(ErrDimension, "invalid problem dimension (%d, %d, %d)", n, m, p)
	case w.n != n || w.m != m || w.p != p:
		err = errors.Wrapf(ErrDimension, "workspace dimension (%d, %d, %d) not match problem (%d, %d, %d)", w.n, w.m, w.p, n, m, p)
	case len(x0) != n:
		err = errors.Wrapf(ErrDimension, "initial x has length %d, want %d", len(x0), n)
	}
	if err != nil {
		res.Status = BadDimension
		return res, err
	}

	solver := ipmSolver{
		optimizer: o,
		workspace: w,
		eval:      evaluator{prob: prob, n: n, m: m, p: p},
	}

	status, err := solver.run(x0)
	res.Summary = Summary{
		Status:         status,
		NumIter:        w.iter,
		Gap:            w.gap,
		PrimalResidual: w.rpNorm,
		DualResidual:   w.rdNorm,
	}
	if err != nil {
		return res, err
	}

	res.OK = status == Converged
	res.F = solver.cur.f
	res.X = slices.Clone(w.x)
	res.Lambda = slices.Clone(w.lambda)
	res.Nu = slices.Clone(w.nu)

	if err = prob.FinalPoint(w.x, w.lambda, w.nu, res.OK); err != nil {
		res.Status = ComputationFault
		return res, errors.Wrapf(ErrComputation, "final point: %v", err)
	}
	return res, nil
}

type ipmCtx struct {
	// iteration counter.
	iter int
	// surrogate duality gap η = -𝐟ᵀλ.
	gap float64
	// ‖𝐫ₚ‖₂, ‖𝐫𝒹‖₂ and ‖(𝐫𝒹,𝐫𝒸,𝐫ₚ)‖₂ at the current iterate.
	rpNorm, rdNorm, resNorm float64

	x, lambda, nu []float64 // current iterate: n, m, p
	dx, dl, dnu   []float64 // Newton direction: n, m, p
	xt, lt, nt    []float64 // trial iterate: n, m, p
	rd, rc, rp    []float64 // residuals at the current iterate: n, m, p
	rdT, rcT, rpT []float64 // residuals at the trial iterate: n, m, p
	row           []float64 // n
	kkt           *mat.Dense
	rhs, sol      *mat.VecDense
	lu            mat.LU
}

func (c *ipmCtx) init(n, m, p int) {
	wrk := make([]float64, 6*n+5*m+5*p)
	take := func(k int) (s []float64) {
		s, wrk = wrk[:k:k], wrk[k:]
		return
	}
	c.x, c.lambda, c.nu = take(n), take(m), take(p)
	c.dx, c.dl, c.dnu = take(n), take(m), take(p)
	c.xt, c.lt, c.nt = take(n), take(m), take(p)
	c.rd, c.rc, c.rp = take(n), take(m), take(p)
	c.rdT, c.rcT, c.rpT = take(n), take(m), take(p)
	c.row = take(n)
	c.kkt = mat.NewDense(n+p, n+p, nil)
	c.rhs = mat.NewVecDense(n+p, nil)
	c.sol = mat.NewVecDense(n+p, nil)
}

// reset prepares the multipliers for a new solve: λ = 𝟏, ν = 𝟎.
func (c *ipmCtx) reset() {
	c.iter = 0
	c.gap, c.rpNorm, c.rdNorm, c.resNorm = zero, zero, zero, zero
	for i := range c.lambda {
		c.lambda[i] = one
	}
	for i := range c.nu {
		c.nu[i] = zero
	}
}
