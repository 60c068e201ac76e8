// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pcg implements a preconditioned conjugate gradient solver for
// the SPD Newton system A x = b, grounded on
// original_source/src/core/pcg_solver.cpp's solve/apply_preconditioner
// loop structure. AndoSim uses a scalar diagonal (Jacobi) preconditioner
// rather than the original's 3x3 block-Jacobi variant, and never mixes
// the two preconditioner shapes.
package pcg

import "math"

// Result reports the outcome of one PCG solve.
type Result struct {
	Iterations int
	Converged  bool
	Residual   float64 // final relative L-infinity residual
}

// Matrix is the minimal matrix-vector product contract PCG needs; the
// caller supplies an internal/sparse.Matrix (or any other type with the
// same shape) through this interface so pcg has no direct dependency on
// internal/sparse.
type Matrix interface {
	MulVec(x []float64) []float64
	Diagonal(i int) float64
}

// Solve runs PCG on A x = b, updating x in place (x is both the initial
// guess and the output). tol is a relative L-infinity residual
// tolerance; maxIters caps the iteration count.
func Solve(a Matrix, b []float64, x []float64, tol float64, maxIters int) Result {
	n := len(b)
	precond := buildJacobiPreconditioner(a, n)

	r := residual(a, b, x)
	z := applyPreconditioner(precond, r)
	p := append([]float64(nil), z...)
	rz := dot(r, z)

	bNorm := linf(b)
	if bNorm == 0 {
		bNorm = 1
	}

	relResidual := linf(r) / bNorm
	if relResidual <= tol {
		return Result{Iterations: 0, Converged: true, Residual: relResidual}
	}

	for iter := 1; iter <= maxIters; iter++ {
		ap := a.MulVec(p)
		pAp := dot(p, ap)
		if pAp == 0 {
			return Result{Iterations: iter, Converged: false, Residual: relResidual}
		}
		alpha := rz / pAp

		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}

		relResidual = linf(r) / bNorm
		if relResidual <= tol {
			return Result{Iterations: iter, Converged: true, Residual: relResidual}
		}

		z = applyPreconditioner(precond, r)
		rzNew := dot(r, z)
		beta := rzNew / rz
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
		rz = rzNew
	}

	return Result{Iterations: maxIters, Converged: false, Residual: relResidual}
}

// buildJacobiPreconditioner extracts and inverts the scalar diagonal of
// A, guarding against a zero or negative diagonal (which should already
// have been ridge-corrected upstream by sparse.Matrix.AddRidge).
func buildJacobiPreconditioner(a Matrix, n int) []float64 {
	inv := make([]float64, n)
	for i := 0; i < n; i++ {
		d := a.Diagonal(i)
		if d <= 0 {
			inv[i] = 1
			continue
		}
		inv[i] = 1.0 / d
	}
	return inv
}

func applyPreconditioner(inv []float64, r []float64) []float64 {
	z := make([]float64, len(r))
	for i := range r {
		z[i] = inv[i] * r[i]
	}
	return z
}

func residual(a Matrix, b, x []float64) []float64 {
	ax := a.MulVec(x)
	r := make([]float64, len(b))
	for i := range b {
		r[i] = b[i] - ax[i]
	}
	return r
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func linf(v []float64) float64 {
	m := 0.0
	for _, vi := range v {
		a := math.Abs(vi)
		if a > m {
			m = a
		}
	}
	return m
}
