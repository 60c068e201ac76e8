// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package barrier implements the cubic ("weak") barrier energy and its
// chain-ruled derivatives through every constraint gap function. Output
// is additive: every Accumulate*
// function here adds into a caller-supplied gradient slice and triplet
// buffer; none of them zero what is already there.
package barrier

import (
	"math"

	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/internal/sparse"
	"github.com/Slaymish/AndoSim/mesh"
)

// safeLogEps guards the logarithm against overflow as g -> 0:
// g_safe = max(g, ε).
const safeLogEps = 1e-12

// Energy evaluates V(g, ḡ, k) = −(k/2)(g−ḡ)²·ln(g/ḡ) on g∈(0,ḡ), and 0
// outside that domain.
func Energy(g, gBar, k float64) float64 {
	if gBar <= 0 || g <= 0 || g >= gBar {
		return 0
	}
	gs := math.Max(g, safeLogEps)
	delta := g - gBar
	return -0.5 * k * delta * delta * math.Log(gs/gBar)
}

// Gradient evaluates dV/dg in closed form.
func Gradient(g, gBar, k float64) float64 {
	if gBar <= 0 || g >= gBar {
		return 0
	}
	gs := math.Max(g, safeLogEps)
	delta := g - gBar
	logTerm := math.Log(gs / gBar)
	return -k*delta*logTerm - 0.5*k*delta*delta/gs
}

// Hessian evaluates d²V/dg² in closed form.
func Hessian(g, gBar, k float64) float64 {
	if gBar <= 0 || g >= gBar {
		return 0
	}
	gs := math.Max(g, safeLogEps)
	delta := g - gBar
	logTerm := math.Log(gs / gBar)
	return -k*(logTerm+delta/gs) - 0.5*k*delta*(gs+gBar)/(gs*gs)
}

// InDomain reports whether g lies in the barrier's active domain (0,ḡ).
func InDomain(g, gBar float64) bool {
	return gBar > 0 && g > 0 && g < gBar
}

// AccumulateContactGradient adds the gradient contribution of one
// point-triangle or edge-edge contact pair into gradient (a 3N-length
// slice). ∂g/∂xᵢ = wᵢ·n for each participating vertex.
func AccumulateContactGradient(c constraints.ContactPair, gBar, k float64, gradient []float64) {
	if !InDomain(c.Gap, gBar) {
		return
	}
	dV := Gradient(c.Gap, gBar, k)
	if dV == 0 {
		return
	}
	n := c.Normal
	count := c.VertexCount()
	for i := 0; i < count; i++ {
		idx := c.Idx[i]
		if idx < 0 {
			continue
		}
		w := c.Weights[i]
		if w == 0 {
			continue
		}
		base := 3 * idx
		gradient[base+0] += dV * w * n[0]
		gradient[base+1] += dV * w * n[1]
		gradient[base+2] += dV * w * n[2]
	}
}

// AccumulateContactHessian scatters the 12×12 (or smaller, depending on
// VertexCount) barrier Hessian block for one contact pair, using the
// constant-normal approximation H ≈ V″(g)·(∂g/∂x)(∂g/∂x)ᵀ.
func AccumulateContactHessian(c constraints.ContactPair, gBar, k, tol float64, triplets *sparse.Triplet) {
	if !InDomain(c.Gap, gBar) {
		return
	}
	d2V := Hessian(c.Gap, gBar, k)
	if d2V == 0 {
		return
	}
	n := c.Normal
	count := c.VertexCount()
	for i := 0; i < count; i++ {
		wi := c.Weights[i]
		if wi == 0 {
			continue
		}
		idxI := c.Idx[i]
		for j := 0; j < count; j++ {
			wj := c.Weights[j]
			if wj == 0 {
				continue
			}
			idxJ := c.Idx[j]
			coeff := d2V * wi * wj
			baseI, baseJ := 3*idxI, 3*idxJ
			for r := 0; r < 3; r++ {
				for cc := 0; cc < 3; cc++ {
					v := coeff * n[r] * n[cc]
					if math.Abs(v) < tol {
						continue
					}
					triplets.Put(baseI+r, baseJ+cc, v)
				}
			}
		}
	}
}

// AccumulatePinGradient adds the gradient contribution of a pin
// constraint: gap = ‖x_i − target‖, gradient direction is the unit
// radial direction n = (x_i − target)/gap.
func AccumulatePinGradient(vertexIdx int, target mesh.Vec3, x mesh.Vec3, gBar, k, normalEps float64, gradient []float64) {
	diff := x.Sub(target)
	gap := diff.Norm()
	if !InDomain(gap, gBar) || gap <= normalEps {
		return
	}
	n := diff.Scale(1.0 / gap)
	dV := Gradient(gap, gBar, k)
	base := 3 * vertexIdx
	gradient[base+0] += dV * n[0]
	gradient[base+1] += dV * n[1]
	gradient[base+2] += dV * n[2]
}

// AccumulatePinHessian scatters the pin constraint's 3×3 Hessian block:
// H = V″(g)·nnᵀ + V′(g)/g·(I − nnᵀ), the standard distance-Hessian
// formula for a barrier on the distance g = ‖x_i − target‖.
func AccumulatePinHessian(vertexIdx int, target mesh.Vec3, x mesh.Vec3, gBar, k, normalEps, tol float64, triplets *sparse.Triplet) {
	diff := x.Sub(target)
	gap := diff.Norm()
	if !InDomain(gap, gBar) || gap <= normalEps {
		return
	}
	n := diff.Scale(1.0 / gap)
	dV := Gradient(gap, gBar, k)
	d2V := Hessian(gap, gBar, k)

	base := 3 * vertexIdx
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			nn := n[r] * n[c]
			identity := 0.0
			if r == c {
				identity = 1.0
			}
			val := d2V*nn + dV/gap*(identity-nn)
			if math.Abs(val) < tol {
				continue
			}
			triplets.Put(base+r, base+c, val)
		}
	}
}

// WallGap evaluates the wall gap function g = n·x − d.
func WallGap(normal mesh.Vec3, offset float64, x mesh.Vec3) float64 {
	return normal.Dot(x) - offset
}

// AccumulateWallGradient adds the gradient contribution of a wall
// constraint: gap = n·x − d, gradient is n.
func AccumulateWallGradient(vertexIdx int, normal mesh.Vec3, offset float64, x mesh.Vec3, gBar, k float64, gradient []float64) {
	gap := WallGap(normal, offset, x)
	if !InDomain(gap, gBar) {
		return
	}
	dV := Gradient(gap, gBar, k)
	base := 3 * vertexIdx
	gradient[base+0] += dV * normal[0]
	gradient[base+1] += dV * normal[1]
	gradient[base+2] += dV * normal[2]
}

// AccumulateWallHessian scatters the wall constraint's 3×3 Hessian
// block: H = V″(g)·nnᵀ (the wall gap's own Hessian is 0, since the gap
// is linear in x).
func AccumulateWallHessian(vertexIdx int, normal mesh.Vec3, offset float64, x mesh.Vec3, gBar, k, tol float64, triplets *sparse.Triplet) {
	gap := WallGap(normal, offset, x)
	if !InDomain(gap, gBar) {
		return
	}
	d2V := Hessian(gap, gBar, k)
	if d2V == 0 {
		return
	}
	base := 3 * vertexIdx
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := d2V * normal[r] * normal[c]
			if math.Abs(v) < tol {
				continue
			}
			triplets.Put(base+r, base+c, v)
		}
	}
}
