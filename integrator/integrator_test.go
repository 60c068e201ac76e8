// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package integrator

import (
	"math"
	"testing"

	"github.com/Slaymish/AndoSim/collision"
	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/elasticity"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/Slaymish/AndoSim/params"
	"github.com/Slaymish/AndoSim/simstate"
	"github.com/cpmech/gosl/chk"
)

func flatSheet(tst *testing.T) (*mesh.Mesh, []mesh.Vec3) {
	rest := []mesh.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}}
	tris := []mesh.Triangle{{V0: 0, V1: 1, V2: 2}, {V0: 1, V1: 3, V2: 2}}
	m, err := mesh.New(rest, tris, mesh.DefaultMaterial())
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}
	return m, rest
}

func Test_integrator01_free_fall_above_wall_converges_in_beta(tst *testing.T) {
	chk.PrintTitle("integrator01: free-falling sheet above a wall reaches beta_max")

	m, rest := flatSheet(tst)
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}
	for i := range state.Velocities {
		state.Velocities[i] = mesh.Vec3{0, 0, -0.1}
	}

	cons := &constraints.Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 1}, 0)

	p := params.Default()
	p.Dt = 0.01

	result, err := Step(m, state, cons, elasticity.Membrane{}, collision.Detector{GapMax: p.ContactGapMax}, p)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if result.Status != OK {
		tst.Fatalf("expected an OK step far from the wall, got %v (beta=%g)", result.Status, result.Beta)
	}
	if result.Beta <= 0 {
		tst.Fatalf("beta = %g, want > 0", result.Beta)
	}
}

func Test_integrator02_step_never_penetrates_wall(tst *testing.T) {
	chk.PrintTitle("integrator02: a sheet driven into a wall stays feasible after the step")

	m, rest := flatSheet(tst)
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}
	for i := range state.Velocities {
		state.Velocities[i] = mesh.Vec3{0, 0, -50}
	}

	cons := &constraints.Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 1}, 0)

	p := params.Default()
	p.Dt = 0.01

	if _, err := Step(m, state, cons, elasticity.Membrane{}, collision.Detector{GapMax: p.ContactGapMax}, p); err != nil {
		tst.Fatalf("Step failed: %v", err)
	}

	for i, x := range state.Positions {
		gap := x[2]
		if gap < -1e-6 {
			tst.Fatalf("vertex %d penetrated the wall: gap = %g", i, gap)
		}
	}
}

func Test_integrator03_velocity_update_uses_achieved_beta(tst *testing.T) {
	chk.PrintTitle("integrator03: a fully feasible step reaches beta close to beta_max")

	m, rest := flatSheet(tst)
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}
	for i := range state.Velocities {
		state.Velocities[i] = mesh.Vec3{0, 0, -0.01}
	}

	cons := &constraints.Constraints{}
	p := params.Default()
	p.Dt = 0.01

	result, err := Step(m, state, cons, elasticity.Membrane{}, collision.Detector{GapMax: p.ContactGapMax}, p)
	if err != nil {
		tst.Fatalf("Step failed: %v", err)
	}
	if math.Abs(result.Beta-1.0) > 1e-3 && result.Status != Degraded {
		tst.Fatalf("expected beta close to 1 with no active constraints, got %g (%v)", result.Beta, result.Status)
	}
	for i, x := range state.Positions {
		disp := x.Sub(rest[i])
		reconstructed := state.Velocities[i].Scale(result.Beta * p.Dt)
		if d := reconstructed.Sub(disp); d.Dot(d) > 1e-18 {
			tst.Fatalf("vertex %d: v*beta*dt = %v, want x - x0 = %v", i, reconstructed, disp)
		}
	}
}
