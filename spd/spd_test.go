// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spd

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_spd01_project_leaves_already_spd_matrix_unchanged(tst *testing.T) {
	chk.PrintTitle("spd01: Project is a near-identity on a matrix already SPD with a margin above epsilon")

	h := Mat3{{4, 0, 0}, {0, 4, 0}, {0, 0, 4}}
	out := Project(h, 1e-8)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if diff := out[i][j] - h[i][j]; diff > 1e-9 || diff < -1e-9 {
				tst.Fatalf("Project changed an already-SPD entry [%d][%d]: %g -> %g", i, j, h[i][j], out[i][j])
			}
		}
	}
}

func Test_spd02_project_clamps_negative_eigenvalues(tst *testing.T) {
	chk.PrintTitle("spd02: Project floors a negative-eigenvalue block at epsilon")

	h := Mat3{{-4, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	epsilon := 1e-6
	out := Project(h, epsilon)

	// any vector's quadratic form x^T H x must now be non-negative
	xs := [][3]float64{{1, 0, 0}, {0, 1, 0}, {1, 1, 1}, {1, -1, 0.5}}
	for _, x := range xs {
		q := 0.0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				q += x[i] * out[i][j] * x[j]
			}
		}
		if q < -1e-9 {
			tst.Fatalf("Project(%v) is not PSD: x^T H x = %g for x=%v", h, q, x)
		}
	}
}

func Test_spd03_project_is_idempotent(tst *testing.T) {
	chk.PrintTitle("spd03: project(project(H)) == project(H) within 1e-10")

	h := Mat3{{-1, 2, 0}, {2, 3, -1}, {0, -1, 5}}
	if !ProjectIdempotent(h, 1e-6, 1e-10) {
		tst.Fatalf("expected Project to be idempotent on %v", h)
	}
}

func Test_spd04_project_degenerate_zero_block_falls_back_to_scaled_identity(tst *testing.T) {
	chk.PrintTitle("spd04: Project on an all-zero block still returns an SPD result")

	out := Project(Mat3{}, 1e-6)
	for i := 0; i < 3; i++ {
		if out[i][i] < 1e-6-1e-12 {
			tst.Fatalf("diagonal entry [%d][%d] = %g, want >= epsilon", i, i, out[i][i])
		}
	}
}
