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

// oneTriangle builds the single-triangle mesh used by the rest-state scenario.
func oneTriangle(tst *testing.T) (*mesh.Mesh, []mesh.Vec3) {
	rest := []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	tris := []mesh.Triangle{{V0: 0, V1: 1, V2: 2}}
	m, err := mesh.New(rest, tris, mesh.DefaultMaterial())
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}
	return m, rest
}

func Test_scenario01_rest_triangle_stays_at_rest(tst *testing.T) {
	chk.PrintTitle("scenario01: a triangle at rest with zero velocity and no gravity barely moves over 10 steps")

	m, rest := oneTriangle(tst)
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}

	cons := &constraints.Constraints{}
	p := params.Default()
	p.Dt = 0.01
	detector := collision.Detector{GapMax: p.ContactGapMax}

	maxDisp := 0.0
	for step := 0; step < 10; step++ {
		if _, err := Step(m, state, cons, elasticity.Membrane{}, detector, p); err != nil {
			tst.Fatalf("Step %d failed: %v", step, err)
		}
		for i, x := range state.Positions {
			d := x.Sub(rest[i]).Norm()
			if d > maxDisp {
				maxDisp = d
			}
		}
	}
	if maxDisp >= 1e-8 {
		tst.Fatalf("max vertex displacement = %g, want < 1e-8", maxDisp)
	}
}

func Test_scenario02_single_vertex_bounces_off_wall(tst *testing.T) {
	chk.PrintTitle("scenario02: a single vertex falling onto a wall never penetrates and rebounds")

	rest := []mesh.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}}
	tris := []mesh.Triangle{{V0: 0, V1: 1, V2: 2}}
	mat := mesh.DefaultMaterial()
	mat.Density = 0.1 / (mat.Thickness * triangleArea(rest))
	m, err := mesh.New(rest, tris, mat)
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}
	for i := range state.Velocities {
		state.Velocities[i] = mesh.Vec3{0, 0, -5}
	}

	cons := &constraints.Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 1}, 0)

	p := params.Default()
	p.Dt = 0.005
	p.WallGap = 0.1
	detector := collision.Detector{GapMax: p.ContactGapMax}

	for step := 0; step < 40; step++ {
		if _, err := Step(m, state, cons, elasticity.Membrane{}, detector, p); err != nil {
			tst.Fatalf("Step %d failed: %v", step, err)
		}
		for i, x := range state.Positions {
			if x[2] < -1e-6 {
				tst.Fatalf("step %d: vertex %d penetrated the wall, z = %g", step, i, x[2])
			}
		}
	}

	for i, x := range state.Positions {
		if x[2] <= 0.05 {
			tst.Fatalf("vertex %d: final z = %g, want > 0.05", i, x[2])
		}
	}
}

func triangleArea(v []mesh.Vec3) float64 {
	ab := v[1].Sub(v[0])
	ac := v[2].Sub(v[0])
	cross := ab.Cross(ac)
	return 0.5 * cross.Norm()
}

func Test_scenario03_pinned_edge_stays_near_rest_length_under_gravity(tst *testing.T) {
	chk.PrintTitle("scenario03: a stiff edge between a pinned vertex and a hanging one stays within 10 percent of its rest length")

	// a thin near-degenerate triangle approximates a single stiff edge:
	// v0 and v2 are both pinned close together so only v1 swings, and the
	// v0-v1 edge (length 1) is what carries the elastic restoring force.
	rest := []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0.01, 0}}
	tris := []mesh.Triangle{{V0: 0, V1: 1, V2: 2}}
	mat := mesh.DefaultMaterial()
	mat.YoungsModulus = 1e9
	mat.Density = 0.1 / (mat.Thickness * triangleArea(rest))
	m, err := mesh.New(rest, tris, mat)
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}

	cons := &constraints.Constraints{}
	cons.AddPin(0, rest[0])
	cons.AddPin(2, rest[2])

	p := params.Default()
	p.Dt = 0.005
	detector := collision.Detector{GapMax: p.ContactGapMax}
	gravity := mesh.Vec3{0, 0, -9.81}

	for step := 0; step < 400; step++ {
		state.ApplyGravity(gravity, p.Dt)
		if _, err := Step(m, state, cons, elasticity.Membrane{}, detector, p); err != nil {
			tst.Fatalf("Step %d failed: %v", step, err)
		}
		length := state.Positions[1].Sub(state.Positions[0]).Norm()
		if math.Abs(length-1.0) > 0.1 {
			tst.Fatalf("step %d: edge length = %g, want within 10%% of 1.0", step, length)
		}
	}
}

// clothGrid builds a flat n x n grid of unit-spaced triangles centered at
// (0,0,z), two triangles per quad.
func clothGrid(tst *testing.T, n int, z float64) (*mesh.Mesh, []mesh.Vec3) {
	rest := make([]mesh.Vec3, 0, n*n)
	idx := func(r, c int) int { return r*n + c }
	offset := float64(n-1) / 2.0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			rest = append(rest, mesh.Vec3{float64(c) - offset, float64(r) - offset, z})
		}
	}
	var tris []mesh.Triangle
	for r := 0; r < n-1; r++ {
		for c := 0; c < n-1; c++ {
			a, b, d, e := idx(r, c), idx(r, c+1), idx(r+1, c), idx(r+1, c+1)
			tris = append(tris, mesh.Triangle{V0: a, V1: b, V2: d})
			tris = append(tris, mesh.Triangle{V0: b, V1: e, V2: d})
		}
	}
	m, err := mesh.New(rest, tris, mesh.DefaultMaterial())
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}
	return m, rest
}

func Test_scenario04_cloth_drapes_above_ground_wall(tst *testing.T) {
	chk.PrintTitle("scenario04: a 10x10 cloth falling under gravity settles above a ground wall without penetrating it")

	m, rest := clothGrid(tst, 10, 1.0)
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}

	cons := &constraints.Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 1}, 0)

	p := params.Default()
	p.Dt = 0.01
	detector := collision.Detector{GapMax: p.ContactGapMax}
	gravity := mesh.Vec3{0, 0, -9.81}

	for step := 0; step < 200; step++ {
		state.ApplyGravity(gravity, p.Dt)
		if _, err := Step(m, state, cons, elasticity.Membrane{}, detector, p); err != nil {
			tst.Fatalf("Step %d failed: %v", step, err)
		}
		for i, x := range state.Positions {
			if x[2] <= 0 {
				tst.Fatalf("step %d: vertex %d penetrated the ground, z = %g", step, i, x[2])
			}
		}
	}

	mean := 0.0
	for _, x := range state.Positions {
		mean += x[2]
	}
	mean /= float64(len(state.Positions))
	if mean <= 0 || mean >= 0.2 {
		tst.Fatalf("final mean z = %g, want in (0, 0.2)", mean)
	}
}

func Test_property01_beta_accumulation_is_monotone_and_bounded(tst *testing.T) {
	chk.PrintTitle("property01: the beta = beta + (1-beta)*alpha recurrence never decreases and never exceeds 1")

	alphas := []float64{0, 0.3, 1.0, 0.01, 0.999, 0}
	beta := 0.0
	for _, alpha := range alphas {
		next := beta + (1.0-beta)*alpha
		if next < beta-1e-15 {
			tst.Fatalf("beta decreased from %g to %g at alpha=%g", beta, next, alpha)
		}
		if next > 1.0+1e-15 {
			tst.Fatalf("beta = %g exceeds 1 at alpha=%g", next, alpha)
		}
		beta = next
	}
}

func Test_property02_committed_step_never_violates_active_wall_gap(tst *testing.T) {
	chk.PrintTitle("property02: after every committed step, every active wall constraint has a non-negative gap")

	m, rest := flatSheet(tst)
	state, err := simstate.New(m, rest)
	if err != nil {
		tst.Fatalf("simstate.New failed: %v", err)
	}
	for i := range state.Velocities {
		state.Velocities[i] = mesh.Vec3{0, 0.2, -3}
	}

	cons := &constraints.Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 1}, 0)

	p := params.Default()
	p.Dt = 0.01
	detector := collision.Detector{GapMax: p.ContactGapMax}

	for step := 0; step < 20; step++ {
		if _, err := Step(m, state, cons, elasticity.Membrane{}, detector, p); err != nil {
			tst.Fatalf("Step %d failed: %v", step, err)
		}
		for _, w := range cons.Walls {
			if !w.Active {
				continue
			}
			for i, x := range state.Positions {
				gap := w.Normal.Dot(x) - w.Offset
				if gap < -1e-6 {
					tst.Fatalf("step %d: vertex %d violates wall gap, g = %g", step, i, gap)
				}
			}
		}
	}
}
