// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spd implements the symmetrize/eigen-clamp/recompose SPD
// projection used on every 3×3 elasticity and dynamic-stiffness block
// before it is scattered into the global Hessian. It is the direct
// analogue of the original source's
// Eigen::SelfAdjointEigenSolver<Mat3>-based Stiffness::enforce_spd.
// AndoSim uses gonum's symmetric eigendecomposition (gonum.org/v1/gonum
// is the dependency RuiCat-circuit's gonum.org/v1/plot pulls in, and
// that repo imports gonum.org/v1/gonum/mat directly for its own vector
// type) rather than hand-rolling a 3×3 eigensolver.
package spd

import "gonum.org/v1/gonum/mat"

// Mat3 is a dense row-major 3x3 matrix.
type Mat3 [3][3]float64

// Project symmetrizes H, clamps negative/small eigenvalues to epsilon,
// and recomposes, making the result symmetric positive (semi-)definite
// with a floor of epsilon on every eigenvalue.
func Project(h Mat3, epsilon float64) Mat3 {
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, 0.5*(h[i][j]+h[j][i]))
		}
	}

	var eig mat.EigenSym
	ok := eig.Factorize(sym, true)
	if !ok {
		// Factorization failure (e.g. non-finite input): fall back to an
		// epsilon-scaled identity, which is still SPD and keeps PCG well
		// posed.
		return Mat3{{epsilon, 0, 0}, {0, epsilon, 0}, {0, 0, epsilon}}
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	for i := range values {
		if values[i] < epsilon {
			values[i] = epsilon
		}
	}

	// Recompose: H = V * diag(values) * Vᵀ
	var diag mat.Dense
	diag.Mul(&vectors, diagMat(values))
	var out mat.Dense
	out.Mul(&diag, vectors.T())

	var result Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			result[i][j] = out.At(i, j)
		}
	}
	return result
}

func diagMat(values []float64) *mat.Dense {
	d := mat.NewDense(len(values), len(values), nil)
	for i, v := range values {
		d.Set(i, i, v)
	}
	return d
}

// ProjectIdempotent reports whether Project(Project(h)) == Project(h)
// within tol: projection must be a true idempotent projector, not just
// a one-shot clamp.
func ProjectIdempotent(h Mat3, epsilon, tol float64) bool {
	once := Project(h, epsilon)
	twice := Project(once, epsilon)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := once[i][j] - twice[i][j]
			if d < 0 {
				d = -d
			}
			if d > tol {
				return false
			}
		}
	}
	return true
}
