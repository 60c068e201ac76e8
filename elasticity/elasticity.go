// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elasticity implements the concrete elasticity collaborator:
// per-triangle membrane energy/gradient/Hessian plus a per-edge bending
// term. Grounded on original_source/src/core/elasticity.cpp's
// simplified ARAP-style membrane model (F computed in a per-triangle
// local frame, P = 2k(F-I), H = P*Dm_inv^T mapped back into 3D), which
// is itself explicit about being a simplified, frame-constant
// approximation rather than a full corotated/StVK model. AndoSim keeps
// that same simplification.
package elasticity

import (
	"github.com/Slaymish/AndoSim/internal/sparse"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/Slaymish/AndoSim/spd"
)

// Provider is the elasticity collaborator contract.
type Provider interface {
	Energy(m *mesh.Mesh, x []mesh.Vec3) float64
	Gradient(m *mesh.Mesh, x []mesh.Vec3, out []float64)
	HessianTriplets(m *mesh.Mesh, x []mesh.Vec3, tol float64, out *sparse.Triplet)
}

// Membrane is the default Provider: ARAP-style membrane energy plus
// simplified quadratic bending.
type Membrane struct{}

// frame recomputes the current-state local orthonormal in-plane axes
// for a triangle, the same per-call frame original_source's
// compute_gradient builds from e1=v1-v0, n=e1 x e2, t1=normalize(e1),
// t2=n x t1.
func frame(v0, v1, v2 mesh.Vec3) (t1, t2 mesh.Vec3, ok bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	n := e1.Cross(e2)
	nHat, ok1 := n.Normalized()
	t1Hat, ok2 := e1.Normalized()
	if !ok1 || !ok2 {
		return mesh.Vec3{}, mesh.Vec3{}, false
	}
	return t1Hat, nHat.Cross(t1Hat), true
}

// currentF projects the current triangle into its local 2D frame and
// multiplies by the cached rest-shape inverse, mirroring Mesh.compute_F
// in the original source.
func currentF(m *mesh.Mesh, tri mesh.Triangle, faceIdx int, x []mesh.Vec3, t1, t2 mesh.Vec3) mesh.Mat2 {
	v0, v1, v2 := x[tri.V0], x[tri.V1], x[tri.V2]
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	ds := [2][2]float64{
		{e1.Dot(t1), e2.Dot(t1)},
		{e1.Dot(t2), e2.Dot(t2)},
	}
	dmInv := m.DmInv[faceIdx]
	var f mesh.Mat2
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			f[r][c] = ds[r][0]*dmInv[0][c] + ds[r][1]*dmInv[1][c]
		}
	}
	return f
}

func shearModulus(mat mesh.Material) float64 {
	return mat.YoungsModulus / (2.0 * (1.0 + mat.PoissonRatio))
}

func faceEnergy(f mesh.Mat2, mat mesh.Material, area float64) float64 {
	mu := shearModulus(mat)
	k := area * mat.Thickness * mu
	var sq float64
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			d := f[r][c]
			if r == c {
				d -= 1
			}
			sq += d * d
		}
	}
	return k * sq
}

// bendingDelta returns the discrete curvature vector Δ = x0+x1-x2-x3 for
// one bending edge: zero only when the two triangles form a flat
// parallelogram (see mesh.BendingEdge), growing with the dihedral fold
// across the edge.
func bendingDelta(be mesh.BendingEdge, x []mesh.Vec3) mesh.Vec3 {
	var acc mesh.Vec3
	for i, v := range be.Verts {
		acc = acc.Add(x[v].Scale(be.Weights[i]))
	}
	return acc
}

// Energy sums per-triangle membrane energy plus per-edge bending
// energy. At rest F == I for every triangle, so the membrane term
// vanishes exactly; the bending term vanishes only where Δ == 0 at rest
// (see mesh.BendingEdge).
func (Membrane) Energy(m *mesh.Mesh, x []mesh.Vec3) float64 {
	total := 0.0
	for i, tri := range m.Triangles {
		t1, t2, ok := frame(x[tri.V0], x[tri.V1], x[tri.V2])
		if !ok {
			continue
		}
		f := currentF(m, tri, i, x, t1, t2)
		total += faceEnergy(f, m.Material, m.RestAreas[i])
	}
	kBend := m.Material.BendingStiffness
	if kBend > 0 {
		for _, be := range m.BendingEdges {
			delta := bendingDelta(be, x)
			total += 0.5 * kBend * delta.Dot(delta)
		}
	}
	return total
}

// Gradient adds +dE/dx into out, a 3N-length slice.
func (Membrane) Gradient(m *mesh.Mesh, x []mesh.Vec3, out []float64) {
	for i, tri := range m.Triangles {
		v0, v1, v2 := x[tri.V0], x[tri.V1], x[tri.V2]
		t1, t2, ok := frame(v0, v1, v2)
		if !ok {
			continue
		}
		f := currentF(m, tri, i, x, t1, t2)

		mu := shearModulus(m.Material)
		k := m.RestAreas[i] * m.Material.Thickness * mu
		var p mesh.Mat2
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				d := f[r][c]
				if r == c {
					d -= 1
				}
				p[r][c] = 2.0 * k * d
			}
		}
		dmInvT := transpose2(m.DmInv[i])
		h := mul2(p, dmInvT)

		f1 := t1.Scale(h[0][0]).Add(t2.Scale(h[1][0]))
		f2 := t1.Scale(h[0][1]).Add(t2.Scale(h[1][1]))
		f0 := f1.Add(f2).Scale(-1)

		addVec(out, tri.V0, f0)
		addVec(out, tri.V1, f1)
		addVec(out, tri.V2, f2)
	}

	kBend := m.Material.BendingStiffness
	if kBend > 0 {
		for _, be := range m.BendingEdges {
			delta := bendingDelta(be, x)
			for i, v := range be.Verts {
				addVec(out, v, delta.Scale(kBend*be.Weights[i]))
			}
		}
	}
}

func transpose2(m mesh.Mat2) mesh.Mat2 {
	return mesh.Mat2{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}

func mul2(a, b mesh.Mat2) mesh.Mat2 {
	var c mesh.Mat2
	for r := 0; r < 2; r++ {
		for col := 0; col < 2; col++ {
			c[r][col] = a[r][0]*b[0][col] + a[r][1]*b[1][col]
		}
	}
	return c
}

func addVec(out []float64, idx int, v mesh.Vec3) {
	out[3*idx+0] += v[0]
	out[3*idx+1] += v[1]
	out[3*idx+2] += v[2]
}

// HessianTriplets scatters the per-triangle membrane Hessian (the
// simplified, frame-constant K = k*Dm_inv^T*Dm_inv approximation of
// original_source's face_hessian) plus the bending stencil's outer
// product, each 3x3 block SPD-projected before being scattered.
func (Membrane) HessianTriplets(m *mesh.Mesh, x []mesh.Vec3, tol float64, out *sparse.Triplet) {
	const spdEps = 1e-8
	for i, tri := range m.Triangles {
		mu := shearModulus(m.Material)
		k := m.RestAreas[i] * m.Material.Thickness * mu
		dmInv := m.DmInv[i]
		var kMat [2][2]float64
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				kMat[r][c] = k * (dmInv[0][r]*dmInv[0][c] + dmInv[1][r]*dmInv[1][c])
			}
		}

		verts := [3]int{tri.V0, tri.V1, tri.V2}
		// coefficient matrix over the 3 local vertices, grounded on
		// face_hessian's v0-gets-both-edges / v1-edge0 / v2-edge1 pattern.
		coeff := [3][3]float64{
			{kMat[0][0] + kMat[1][1] + 2*kMat[0][1], -kMat[0][0], -kMat[1][1]},
			{-kMat[0][0], kMat[0][0], -kMat[0][1]},
			{-kMat[1][1], -kMat[0][1], kMat[1][1]},
		}
		scatterScaledIdentity(out, verts, coeff, tol, spdEps)
	}

	kBend := m.Material.BendingStiffness
	if kBend > 0 {
		for _, be := range m.BendingEdges {
			var coeff [4][4]float64
			for a := 0; a < 4; a++ {
				for b := 0; b < 4; b++ {
					coeff[a][b] = kBend * be.Weights[a] * be.Weights[b]
				}
			}
			scatterScaledIdentity4(out, be.Verts, coeff, tol, spdEps)
		}
	}
}

func scatterScaledIdentity(out *sparse.Triplet, verts [3]int, coeff [3][3]float64, tol, spdEps float64) {
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			c := coeff[a][b]
			block := spd.Project(spd.Mat3{{c, 0, 0}, {0, c, 0}, {0, 0, 0}}, spdEps)
			scatterBlock(out, verts[a], verts[b], block, tol)
		}
	}
}

func scatterScaledIdentity4(out *sparse.Triplet, verts [4]int, coeff [4][4]float64, tol, spdEps float64) {
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			c := coeff[a][b]
			block := spd.Project(spd.Mat3{{c, 0, 0}, {0, c, 0}, {0, 0, c}}, spdEps)
			scatterBlock(out, verts[a], verts[b], block, tol)
		}
	}
}

func scatterBlock(out *sparse.Triplet, vertA, vertB int, block spd.Mat3, tol float64) {
	baseA, baseB := 3*vertA, 3*vertB
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := block[r][c]
			if v < tol && v > -tol {
				continue
			}
			out.Put(baseA+r, baseB+c, v)
		}
	}
}
