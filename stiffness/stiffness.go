// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stiffness implements the per-constraint dynamic stiffness
// estimator: k = inertial + elastic + takeover, using SPD-projected,
// weighted elasticity-Hessian selectors. This is the single formulation
// used everywhere in AndoSim, resolving the several inconsistent
// compute_contact_stiffness variants found in early barrier-method
// implementations down to one, applied consistently.
package stiffness

import (
	"math"

	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/internal/sparse"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/Slaymish/AndoSim/spd"
)

// blockAt extracts the SPD-projected 3x3 elasticity Hessian block for
// vertex idx from the (mass+elastic-only) global Hessian.
func blockAt(hElastic *sparse.Matrix, idx int, epsilon float64) spd.Mat3 {
	raw := hElastic.Block3x3(idx)
	return spd.Project(spd.Mat3(raw), epsilon)
}

func quadraticForm(h spd.Mat3, n mesh.Vec3) float64 {
	var hn mesh.Vec3
	for r := 0; r < 3; r++ {
		hn[r] = h[r][0]*n[0] + h[r][1]*n[1] + h[r][2]*n[2]
	}
	v := n.Dot(hn)
	if v < 0 {
		return 0
	}
	return v
}

// Contact computes the dynamic stiffness for one contact pair:
// k = m̄/Δt² + ‖Wn̂‖·(n̂ᵀH̃n̂)⁺ + m̄/max(g,g_min)², the last (takeover)
// term only while g < ḡ.
//
// ‖Wn̂‖ is folded into the elastic term by summing the per-participant
// weighted quadratic forms, since W is the block selector that places
// wᵢ·n̂ at each participating vertex's 3-slot.
func Contact(c constraints.ContactPair, massAt func(idx int) float64, dt float64, hElastic *sparse.Matrix, gBar, minGap, spdEps float64) float64 {
	count := c.VertexCount()
	if count == 0 {
		return 0
	}

	var mBar float64
	var elastic float64
	for i := 0; i < count; i++ {
		idx := c.Idx[i]
		if idx < 0 {
			continue
		}
		mBar += massAt(idx)
		w := c.Weights[i]
		hBlock := blockAt(hElastic, idx, spdEps)
		elastic += math.Abs(w) * quadraticForm(hBlock, c.Normal)
	}
	if count > 0 {
		mBar /= float64(count)
	}

	var kInertial float64
	if dt > 0 {
		kInertial = mBar / (dt * dt)
	}

	gHat := math.Max(c.Gap, minGap)
	gHat = math.Max(gHat, 1e-12)
	var kTakeover float64
	if c.Gap < gBar {
		kTakeover = mBar / (gHat * gHat)
	}

	return kInertial + elastic + kTakeover
}

// Pin computes the dynamic stiffness for a pin constraint, using the
// offset direction x_i - target in place of n̂.
func Pin(mass, dt float64, x, target mesh.Vec3, hBlockRaw [3][3]float64, gBar, minGap, spdEps float64) float64 {
	offset := x.Sub(target)
	length := offset.Norm()
	dir := mesh.Vec3{1, 0, 0}
	if length > 1e-9 {
		dir = offset.Scale(1.0 / length)
	}

	hBlock := spd.Project(spd.Mat3(hBlockRaw), spdEps)
	elastic := quadraticForm(hBlock, dir)

	var kInertial float64
	if dt > 0 {
		kInertial = mass / (dt * dt)
	}

	gHat := math.Max(length, minGap)
	gHat = math.Max(gHat, 1e-12)
	var kTakeover float64
	if length < gBar {
		kTakeover = mass / (gHat * gHat)
	}

	return kInertial + elastic + kTakeover
}

// Wall computes the dynamic stiffness for a wall constraint, using the
// configured wall-gap constant (wallGap) in the takeover term.
func Wall(mass, dt, wallGap float64, normal mesh.Vec3, hBlockRaw [3][3]float64, minGap, spdEps float64) float64 {
	hBlock := spd.Project(spd.Mat3(hBlockRaw), spdEps)
	elastic := quadraticForm(hBlock, normal)

	var kInertial float64
	if dt > 0 {
		kInertial = mass / (dt * dt)
	}

	gHat := math.Max(wallGap, minGap)
	gHat = math.Max(gHat, 1e-12)
	kTakeover := mass / (gHat * gHat)

	return kInertial + elastic + kTakeover
}
