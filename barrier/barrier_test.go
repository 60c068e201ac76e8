// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package barrier

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_barrier01_limits(tst *testing.T) {
	chk.PrintTitle("barrier01: V,V',V'' -> 0 as g -> ḡ⁻")

	gBar, k := 1e-3, 1.0e6
	gNear := gBar - 1e-6
	gMid := gBar / 2

	vNear := math.Abs(Energy(gNear, gBar, k))
	vMid := math.Abs(Energy(gMid, gBar, k))
	ratio := vNear / vMid
	if ratio > 1e-2 {
		tst.Fatalf("V(ḡ-1e-6)/V(ḡ/2) = %g, want -> 0", ratio)
	}

	if Energy(gBar, gBar, k) != 0 {
		tst.Fatalf("V(g>=ḡ) must be exactly 0")
	}
	if Energy(gBar*1.5, gBar, k) != 0 {
		tst.Fatalf("V(g>ḡ) must be exactly 0")
	}

	prev, prev2 := math.Inf(1), math.Inf(1)
	for _, g := range []float64{gBar - 1e-4, gBar - 1e-5, gBar - 1e-6, gBar - 1e-7} {
		dV := math.Abs(Gradient(g, gBar, k))
		d2V := math.Abs(Hessian(g, gBar, k))
		if dV >= prev || d2V >= prev2 {
			tst.Fatalf("V'(%g) = %g and V''(%g) = %g should shrink toward the outer edge", g, dV, g, d2V)
		}
		prev, prev2 = dV, d2V
	}
	if prev > 1e-3 || prev2 > 1e-3*math.Abs(Hessian(gMid, gBar, k)) {
		tst.Fatalf("V'(ḡ-1e-7) = %g, V''(ḡ-1e-7) = %g, want both -> 0", prev, prev2)
	}
}

func Test_barrier02_derivative_consistency(tst *testing.T) {
	chk.PrintTitle("barrier02: central-difference derivative check")

	gBar, k := 1e-3, 5.0e5
	gs := []float64{0.1 * gBar, 0.3 * gBar, 0.5 * gBar, 0.7 * gBar, 0.9 * gBar}

	for _, g := range gs {
		eps := 1e-5 * gBar
		fd := (Energy(g+eps, gBar, k) - Energy(g-eps, gBar, k)) / (2 * eps)
		an := Gradient(g, gBar, k)
		if an == 0 {
			continue
		}
		relErr := math.Abs(an-fd) / math.Abs(an)
		if relErr > 2e-2 {
			tst.Fatalf("g=%g: V' mismatch, analytic=%g fd=%g relErr=%g", g, an, fd, relErr)
		}

		eps2 := 1e-5 * gBar
		fd2 := (Gradient(g+eps2, gBar, k) - Gradient(g-eps2, gBar, k)) / (2 * eps2)
		an2 := Hessian(g, gBar, k)
		if an2 == 0 {
			continue
		}
		relErr2 := math.Abs(an2-fd2) / math.Abs(an2)
		if relErr2 > 5e-2 {
			tst.Fatalf("g=%g: V'' mismatch, analytic=%g fd=%g relErr=%g", g, an2, fd2, relErr2)
		}
	}
}

func Test_barrier03_outside_domain(tst *testing.T) {
	chk.PrintTitle("barrier03: zero outside (0,ḡ)")
	gBar := 1e-3
	if InDomain(gBar, gBar) {
		tst.Fatal("g == ḡ must not be in domain")
	}
	if InDomain(2*gBar, gBar) {
		tst.Fatal("g > ḡ must not be in domain")
	}
	if !InDomain(gBar/2, gBar) {
		tst.Fatal("g == ḡ/2 must be in domain")
	}
}
