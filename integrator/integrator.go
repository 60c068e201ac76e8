// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package integrator implements the inexact-Newton β-accumulation time
// step: an outer loop that drives β from 0 toward β_max by repeatedly
// solving an inner Newton step and taking a feasible line-search step,
// then one more Newton pass (error reduction) and a velocity update
// scaled by the achieved β. Grounded on original_source/src/core/integrator.cpp's
// Integrator::step/inner_newton_step, with one deliberate behavioral
// change: the inner Newton loop returns the last line-search α it
// achieved when the iteration cap is hit, rather than a hardcoded 0.5:
// a fixed constant throws away real progress information the β
// accumulation loop needs to decide whether to keep going.
package integrator

import (
	"math"

	"github.com/Slaymish/AndoSim/barrier"
	"github.com/Slaymish/AndoSim/collision"
	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/elasticity"
	"github.com/Slaymish/AndoSim/friction"
	"github.com/Slaymish/AndoSim/internal/sparse"
	"github.com/Slaymish/AndoSim/internal/workerpool"
	"github.com/Slaymish/AndoSim/linesearch"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/Slaymish/AndoSim/params"
	"github.com/Slaymish/AndoSim/pcg"
	"github.com/Slaymish/AndoSim/simstate"
	"github.com/Slaymish/AndoSim/stiffness"
	"github.com/Slaymish/AndoSim/strainlimit"
	"github.com/cpmech/gosl/chk"
)

// Status is the outcome of one Step call.
type Status int

const (
	// OK means β reached β_max within the configured round budget.
	OK Status = iota
	// Degraded means the loop stopped with alphaFloor < β < β_max, either
	// because the round budget ran out or because a round's α fell below
	// alphaFloor: the step was taken but did not reach the target
	// feasible fraction.
	Degraded
	// Failed means the line search could never make progress (β stayed
	// at or below alphaFloor): the step is a no-op and the caller should
	// shrink Δt.
	Failed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Degraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Result reports the outcome of one full time step, mirroring the
// three-class {ok, degraded{beta, reasons}, failed{kind, detail}}
// contract: Status tags which arm is populated, Reasons/Detail carry
// the arm-specific payload and are empty on OK.
type Result struct {
	Status     Status
	Beta       float64
	BetaRounds int
	Reasons    []string // populated on Degraded: why each round stalled
	Detail     string   // populated on Failed: the terminal cause
}

// alphaFloor is the threshold below which the β loop treats a round as
// having made no real progress, mirroring the original's own
// "alpha < 1e-6" early exit from the β-accumulation loop. Distinct from
// params.MinAlpha, which governs the inner line search's own
// backtracking floor.
const alphaFloor = 1e-6

// Step advances the simulation by one Δt, mutating state in place. A
// non-nil error means the step was aborted before any mutation: State
// is left exactly as it was passed in.
func Step(m *mesh.Mesh, state *simstate.State, cons *constraints.Constraints, elasticityProvider elasticity.Provider, detector collision.Detector, p params.Params) (Result, error) {
	for _, pos := range state.Positions {
		for _, v := range pos {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Result{}, chk.Err("integrator: non-finite value in initial positions")
			}
		}
	}
	for _, w := range cons.Walls {
		if !w.Active {
			continue
		}
		for i, pos := range state.Positions {
			if barrier.WallGap(w.Normal, w.Offset, pos) < 0 {
				return Result{}, chk.Err("integrator: vertex %d already penetrates a wall before the step", i)
			}
		}
	}

	x0 := append([]mesh.Vec3(nil), state.Positions...)
	xTarget := simstate.PredictedTarget(x0, state.Velocities, p.Dt)

	cons.SetContacts(detector.Detect(m, state.Positions))

	beta := 0.0
	rounds := 0
	var reasons []string
	for beta < p.BetaMax && rounds < p.MaxBetaRounds {
		alpha := innerNewtonStep(m, state, x0, xTarget, cons, elasticityProvider, p)
		beta = beta + (1.0-beta)*alpha
		rounds++
		if alpha < alphaFloor {
			reasons = append(reasons, "line search made no progress before the beta floor")
			break
		}
	}
	if rounds >= p.MaxBetaRounds && beta < p.BetaMax {
		reasons = append(reasons, "beta-accumulation round budget exhausted")
	}

	status := OK
	switch {
	case beta <= alphaFloor:
		status = Failed
	case beta < p.BetaMax:
		status = Degraded
	}

	if status == Failed {
		return Result{Status: status, Beta: beta, BetaRounds: rounds, Detail: "no feasible step found within the round budget"}, nil
	}

	// error-reduction pass at the achieved beta
	innerNewtonStep(m, state, x0, xTarget, cons, elasticityProvider, p)
	state.UpdateVelocities(x0, beta*p.Dt)

	return Result{Status: status, Beta: beta, BetaRounds: rounds, Reasons: reasons}, nil
}

// innerNewtonStep runs up to MaxNewtonSteps Newton iterations, returning
// the step length α actually achieved on the final iteration taken. It
// never falls back to a heuristic constant: an iteration that never
// takes a feasible step returns 0, one that converges or takes a
// near-full step returns 1, and one that exhausts the iteration cap
// mid-progress returns whatever α its last line search found.
func innerNewtonStep(m *mesh.Mesh, state *simstate.State, x0 []mesh.Vec3, xTarget []float64, cons *constraints.Constraints, elasticityProvider elasticity.Provider, p params.Params) float64 {
	n := state.NumVertices()
	lastAlpha := 0.0

	for iter := 0; iter < p.MaxNewtonSteps; iter++ {
		hElastic := assembleElasticHessian(m, state, elasticityProvider, p)

		gradient := make([]float64, 3*n)
		accumulateGradient(m, state, x0, xTarget, cons, elasticityProvider, hElastic, p, gradient)

		if linf(gradient) < p.PcgTol {
			return 1.0
		}

		hessian := assembleFullHessian(m, state, cons, elasticityProvider, hElastic, p)

		negGradient := make([]float64, len(gradient))
		for i, g := range gradient {
			negGradient[i] = -g
		}
		direction := make([]float64, len(gradient))
		pcg.Solve(hessian, negGradient, direction, p.PcgTol, p.PcgMaxItersFor(n))

		lsParams := linesearch.Params{
			Extension: p.LineSearchExt,
			MinAlpha:  p.MinAlpha,
			GapMin:    p.MinGap,
			EnableCCD: p.EnableCCD,
		}
		alpha := linesearch.Search(state.Positions, direction, cons.Contacts, cons.Pins, cons.Walls, lsParams)
		if alpha < p.MinAlpha {
			return lastAlpha
		}
		lastAlpha = alpha

		scale := alpha * p.LineSearchExt
		for i := range state.Positions {
			state.Positions[i] = mesh.Vec3{
				state.Positions[i][0] + scale*direction[3*i+0],
				state.Positions[i][1] + scale*direction[3*i+1],
				state.Positions[i][2] + scale*direction[3*i+2],
			}
		}

		if alpha > 0.99 {
			return 1.0
		}
	}

	return lastAlpha
}

// assembleElasticHessian builds the mass+elastic-only compressed
// Hessian, the prerequisite every per-constraint stiffness estimate
// (stiffness.Contact/Pin/Wall) needs for its elastic term.
func assembleElasticHessian(m *mesh.Mesh, state *simstate.State, elasticityProvider elasticity.Provider, p params.Params) *sparse.Matrix {
	n := state.NumVertices()
	dim := 3 * n
	triplets := sparse.NewTriplet(dim, dim, dim*8)
	for i := 0; i < n; i++ {
		massFactor := state.Masses[i] / (p.Dt * p.Dt)
		base := 3 * i
		triplets.Put(base+0, base+0, massFactor)
		triplets.Put(base+1, base+1, massFactor)
		triplets.Put(base+2, base+2, massFactor)
	}
	elasticityProvider.HessianTriplets(m, state.Positions, p.HessianEpsilon, triplets)
	mat := triplets.Compress()
	mat.Workers = p.Workers
	return mat
}

func accumulateGradient(m *mesh.Mesh, state *simstate.State, x0 []mesh.Vec3, xTarget []float64, cons *constraints.Constraints, elasticityProvider elasticity.Provider, hElastic *sparse.Matrix, p params.Params, gradient []float64) {
	x := state.Flatten()
	dt := p.Dt
	for i := 0; i < state.NumVertices(); i++ {
		massFactor := state.Masses[i] / (dt * dt)
		for j := 0; j < 3; j++ {
			gradient[3*i+j] += massFactor * (x[3*i+j] - xTarget[3*i+j])
		}
	}

	elasticityProvider.Gradient(m, state.Positions, gradient)

	massAt := func(i int) float64 { return state.Masses[i] }
	for _, c := range cons.Contacts {
		if !c.Active {
			continue
		}
		gBar := gapBarForType(c, p)
		k := stiffness.Contact(c, massAt, dt, hElastic, gBar, p.MinGap, p.SpdEpsilon)
		barrier.AccumulateContactGradient(c, gBar, k, gradient)
		if p.EnableFriction {
			accumulateContactFriction(state, x0, c, k, p, gradient, nil)
		}
	}
	// cached once per Newton iteration rather than walking hElastic's
	// compressed storage again for every pin and every wall vertex.
	diagBlocks := hElastic.AllDiagonalBlocks3x3()
	for _, pin := range cons.Pins {
		if !pin.Active {
			continue
		}
		gBar := gapOrDefault(pin.GapMax, p.PinGapMax)
		xi := state.Positions[pin.VertexIdx]
		k := stiffness.Pin(state.Masses[pin.VertexIdx], dt, xi, pin.Target, diagBlocks[pin.VertexIdx], gBar, p.MinGap, p.SpdEpsilon)
		barrier.AccumulatePinGradient(pin.VertexIdx, pin.Target, xi, gBar, k, p.HessianEpsilon, gradient)
	}
	positions := state.Positions
	for _, w := range cons.Walls {
		if !w.Active {
			continue
		}
		// every vertex contributes to this wall's barrier independently
		// of every other vertex (each only ever touches its own 3
		// gradient slots), so the per-vertex sweep runs across
		// params.Workers goroutines with no locking.
		workerpool.ForEach(len(positions), p.Workers, func(vi int) {
			k := stiffness.Wall(state.Masses[vi], dt, p.WallGap, w.Normal, diagBlocks[vi], p.MinGap, p.SpdEpsilon)
			barrier.AccumulateWallGradient(vi, w.Normal, w.Offset, positions[vi], p.WallGap, k, gradient)
		})
	}

	if p.EnableStrainLimiting {
		cs := strainlimit.Rebuild(m, state.Positions, p.StrainTau, p.StrainLimit, hElastic)
		strainlimit.AccumulateGradient(m, cs, p.StrainLimit, gradient)
	}
}

// assembleFullHessian re-scatters the mass+elastic triplets (rebuilding
// them rather than reusing hElastic's compressed form directly, since
// sparse.Matrix has no triplet view) and adds the barrier, friction,
// and strain-limiting blocks on top.
func assembleFullHessian(m *mesh.Mesh, state *simstate.State, cons *constraints.Constraints, elasticityProvider elasticity.Provider, hElastic *sparse.Matrix, p params.Params) *sparse.Matrix {
	n := state.NumVertices()
	dim := 3 * n
	dt := p.Dt

	full := sparse.NewTriplet(dim, dim, dim*16)
	for i := 0; i < n; i++ {
		massFactor := state.Masses[i] / (dt * dt)
		base := 3 * i
		full.Put(base+0, base+0, massFactor)
		full.Put(base+1, base+1, massFactor)
		full.Put(base+2, base+2, massFactor)
	}
	elasticityProvider.HessianTriplets(m, state.Positions, p.HessianEpsilon, full)

	const tol = 1e-14
	massAt := func(i int) float64 { return state.Masses[i] }
	for _, c := range cons.Contacts {
		if !c.Active {
			continue
		}
		gBar := gapBarForType(c, p)
		k := stiffness.Contact(c, massAt, dt, hElastic, gBar, p.MinGap, p.SpdEpsilon)
		barrier.AccumulateContactHessian(c, gBar, k, tol, full)
		if p.EnableFriction {
			accumulateContactFriction(state, nil, c, k, p, nil, full)
		}
	}
	// cached once per Newton iteration rather than walking hElastic's
	// compressed storage again for every pin and every wall vertex.
	diagBlocks := hElastic.AllDiagonalBlocks3x3()
	for _, pin := range cons.Pins {
		if !pin.Active {
			continue
		}
		gBar := gapOrDefault(pin.GapMax, p.PinGapMax)
		x := state.Positions[pin.VertexIdx]
		k := stiffness.Pin(state.Masses[pin.VertexIdx], dt, x, pin.Target, diagBlocks[pin.VertexIdx], gBar, p.MinGap, p.SpdEpsilon)
		barrier.AccumulatePinHessian(pin.VertexIdx, pin.Target, x, gBar, k, p.HessianEpsilon, tol, full)
	}
	for _, w := range cons.Walls {
		if !w.Active {
			continue
		}
		// each worker scatters into its own local triplet buffer (never
		// the shared `full` buffer concurrently), concatenated at the
		// end of the phase.
		locals := workerpool.Build(n, p.Workers,
			func() *sparse.Triplet { return sparse.NewTriplet(dim, dim, 0) },
			func(vi int, local *sparse.Triplet) {
				pos := state.Positions[vi]
				k := stiffness.Wall(state.Masses[vi], dt, p.WallGap, w.Normal, diagBlocks[vi], p.MinGap, p.SpdEpsilon)
				barrier.AccumulateWallHessian(vi, w.Normal, w.Offset, pos, p.WallGap, k, tol, local)
			},
		)
		for _, local := range locals {
			full.Extend(local)
		}
	}

	if p.EnableStrainLimiting {
		cs := strainlimit.Rebuild(m, state.Positions, p.StrainTau, p.StrainLimit, hElastic)
		strainlimit.AccumulateHessian(m, cs, p.StrainLimit, tol, full)
	}

	hFull := full.Compress()
	hFull.AddRidge(p.HessianEpsilon)
	hFull.Symmetrize()
	hFull.Workers = p.Workers
	return hFull
}

// accumulateContactFriction applies the quadratic friction model at a
// contact pair's primary vertex (the point in a point-triangle pair, or
// the first edge's first vertex in an edge-edge pair), using the
// barrier stiffness k as the normal-force proxy and the vertex's
// displacement since the start of the step as the sliding signal. Only
// one of gradient/triplets is non-nil per call.
func accumulateContactFriction(state *simstate.State, x0 []mesh.Vec3, c constraints.ContactPair, barrierK float64, p params.Params, gradient []float64, triplets *sparse.Triplet) {
	vi := c.Idx[0]
	if vi < 0 {
		return
	}
	kf := friction.Stiffness(barrierK, p.FrictionMu, p.FrictionEpsilon)
	if kf == 0 {
		return
	}
	if gradient != nil {
		displacement := state.Positions[vi].Sub(x0[vi])
		g := friction.Gradient(state.Positions[vi], x0[vi], c.Normal, kf)
		if !friction.ShouldApply(friction.ExtractTangential(displacement, c.Normal), 1e-12) {
			return
		}
		base := 3 * vi
		gradient[base+0] += g[0]
		gradient[base+1] += g[1]
		gradient[base+2] += g[2]
		return
	}
	h := friction.Hessian(c.Normal, kf, 0)
	base := 3 * vi
	for r := 0; r < 3; r++ {
		for cc := 0; cc < 3; cc++ {
			triplets.Put(base+r, base+cc, h[r][cc])
		}
	}
}

func gapBarForType(c constraints.ContactPair, p params.Params) float64 {
	if c.GapMax > 0 {
		return c.GapMax
	}
	return p.ContactGapMax
}

func gapOrDefault(perVertex, fallback float64) float64 {
	if perVertex > 0 {
		return perVertex
	}
	return fallback
}

func linf(v []float64) float64 {
	m := 0.0
	for _, vi := range v {
		a := vi
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}
