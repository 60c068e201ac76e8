// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package simstate holds the mutable per-vertex dynamic state:
// positions, velocities, and masses, plus the step-local predicted
// target and initial positions used by the β-accumulation driver.
package simstate

import (
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
)

// State is owned and mutated only by the integrator during a step; the
// Mesh and Constraints packages only ever borrow it read-only.
type State struct {
	Positions  []mesh.Vec3
	Velocities []mesh.Vec3
	Masses     []float64
}

// New builds a State of N vertices at the given rest positions, zero
// velocity, and masses derived from the mesh's lumped-mass model.
func New(m *mesh.Mesh, positions []mesh.Vec3) (*State, error) {
	if len(positions) != m.NumVertices() {
		return nil, chk.Err("simstate: got %d positions, mesh has %d vertices", len(positions), m.NumVertices())
	}
	masses := m.LumpedMasses()
	for i, mi := range masses {
		if mi <= 0 {
			return nil, chk.Err("simstate: vertex %d has non-positive mass %g", i, mi)
		}
	}
	return &State{
		Positions:  append([]mesh.Vec3(nil), positions...),
		Velocities: make([]mesh.Vec3, len(positions)),
		Masses:     masses,
	}, nil
}

// NumVertices returns N.
func (s *State) NumVertices() int { return len(s.Positions) }

// Flatten copies Positions into a 3N-length float64 slice, x,y,z
// interleaved per vertex: the layout every sparse/PCG/barrier routine
// assumes (vertex i occupies indices [3i, 3i+3)).
func (s *State) Flatten() []float64 {
	x := make([]float64, 3*len(s.Positions))
	for i, p := range s.Positions {
		x[3*i+0], x[3*i+1], x[3*i+2] = p[0], p[1], p[2]
	}
	return x
}

// Unflatten writes a 3N-length vector back into Positions.
func (s *State) Unflatten(x []float64) {
	for i := range s.Positions {
		s.Positions[i] = mesh.Vec3{x[3*i+0], x[3*i+1], x[3*i+2]}
	}
}

// ApplyGravity performs the explicit forward-Euler velocity update
// v ← v + g·Δt, the same external-force application the reference demos
// (demo_cloth_drape, apply_gravity) run once per frame before handing
// state to the implicit solver; gravity is an external force the
// Newton driver itself never sees.
func (s *State) ApplyGravity(gravity mesh.Vec3, dt float64) {
	delta := gravity.Scale(dt)
	for i := range s.Velocities {
		s.Velocities[i] = s.Velocities[i].Add(delta)
	}
}

// PredictedTarget computes x̂ = x₀ + Δt·v, the full-step prediction used
// to seed the β-accumulation loop's right-hand side.
func PredictedTarget(x0 []mesh.Vec3, v []mesh.Vec3, dt float64) []float64 {
	xhat := make([]float64, 3*len(x0))
	for i := range x0 {
		p := x0[i].Add(v[i].Scale(dt))
		xhat[3*i+0], xhat[3*i+1], xhat[3*i+2] = p[0], p[1], p[2]
	}
	return xhat
}

// UpdateVelocities sets v ← (x_new − x₀) / (β·Δt): velocity is derived
// from the achieved step fraction, not the nominal Δt, so it stays
// consistent even when the Newton driver only reaches β < 1.
func (s *State) UpdateVelocities(x0 []mesh.Vec3, betaDt float64) {
	if betaDt == 0 {
		for i := range s.Velocities {
			s.Velocities[i] = mesh.Vec3{}
		}
		return
	}
	inv := 1.0 / betaDt
	for i := range s.Positions {
		s.Velocities[i] = s.Positions[i].Sub(x0[i]).Scale(inv)
	}
}
