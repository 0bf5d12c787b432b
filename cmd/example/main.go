// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command example traces a small risk-return portfolio frontier with the QP solver.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/convex/qp"
)

func main() {
	verbose := flag.Bool("v", false, "log every interior-point iteration")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(logger)

	// minimize    μ𝐱ᵀS𝐱 - p̄ᵀ𝐱
	// subject to  𝐱 ⪰ 0, 𝟏ᵀ𝐱 = 1
	S := mat.NewSymDense(4, []float64{
		4e-2, 6e-3, -4e-3, 0.0,
		6e-3, 1e-2, 0.0, 0.0,
		-4e-3, 0.0, 2.5e-3, 0.0,
		0.0, 0.0, 0.0, 0.0,
	})
	pbar := []float64{.12, .10, .07, .03}

	G := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		G.Set(i, i, -1)
	}
	h := make([]float64, 4)
	A := mat.NewDense(1, 4, []float64{1, 1, 1, 1})
	b := []float64{1}

	q := make([]float64, 4)
	floats.ScaleTo(q, -1, pbar)

	settings := qp.Settings{}
	settings.MaxIterations = 100
	solver, err := settings.New(logger)
	if err != nil {
		slog.Error("invalid settings", "err", err)
		os.Exit(1)
	}

	var P mat.SymDense
	for _, mu := range []float64{0.1, 1, 10, 100} {
		P.ScaleSym(2*mu, S)

		x := []float64{0.25, 0.25, 0.25, 0.25}
		if err := solver.Solve(x, &P, q, 0, G, h, A, b); err != nil {
			slog.Error("solve failed", "mu", mu, "status", solver.Summary().Status, "err", err)
			continue
		}

		v := mat.NewVecDense(4, x)
		risk := mat.Inner(v, S, v)
		ret := floats.Dot(pbar, x)
		slog.Info("portfolio",
			"mu", mu,
			"converged", solver.IsConverged(),
			"iterations", solver.Summary().NumIter,
			"return", ret,
			"risk", risk)
		fmt.Printf("μ=%-6g x=%.4f return=%.4f risk=%.5f\n", mu, x, ret, risk)
	}
}
