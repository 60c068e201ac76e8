// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stiffness

import (
	"testing"

	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/internal/sparse"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
)

func Test_stiffness01_ordering(tst *testing.T) {
	chk.PrintTitle("stiffness01: takeover dominates as g -> 0")

	gBar := 1e-3
	dt := 0.01
	mass := 0.1

	makeContact := func(gap float64) constraints.ContactPair {
		return constraints.ContactPair{
			Type:    constraints.PointTriangle,
			Idx:     [4]int{0, -1, -1, -1},
			Weights: [4]float64{1, 0, 0, 0},
			Gap:     gap,
			Normal:  mesh.Vec3{0, 0, 1},
			Active:  true,
		}
	}
	massAt := func(idx int) float64 { return mass }

	// empty elastic Hessian: only inertial+takeover contribute
	trip := sparse.NewTriplet(3, 3, 0)
	hElastic := trip.Compress()

	gSmall := 0.05 * gBar
	gNormal := 0.5 * gBar

	kSmall := Contact(makeContact(gSmall), massAt, dt, hElastic, gBar, 1e-8, 1e-8)
	kNormal := Contact(makeContact(gNormal), massAt, dt, hElastic, gBar, 1e-8, 1e-8)

	if kSmall < 10*kNormal {
		tst.Fatalf("expected k(g_small)=%g >= 10*k(g_normal)=%g", kSmall, 10*kNormal)
	}
}
