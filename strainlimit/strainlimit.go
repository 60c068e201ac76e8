// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package strainlimit implements strain limiting with a weak barrier on
// the largest singular value of each triangle's deformation gradient,
// grounded on original_source/src/core/strain_limiting.h's
// StrainLimiting: Ψ_SL(σ) = Ψ_weak(1+τ+ε−σ, ε, k̄_SL), built on top of
// this module's own barrier package rather than re-deriving the cubic
// barrier formula a second time.
package strainlimit

import (
	"math"

	"github.com/Slaymish/AndoSim/barrier"
	"github.com/Slaymish/AndoSim/internal/sparse"
	"github.com/Slaymish/AndoSim/mesh"
)

// Constraint caches the per-triangle state needed to accumulate the
// strain-limiting gradient and Hessian for one Newton iteration, mirroring
// the rebuild/accumulate split of the original StrainLimiting API.
type Constraint struct {
	Face      int
	Gap       float64 // 1+τ+ε − σ_max
	Stiffness float64 // k̄_SL
	// dSigma holds ∂σ_max/∂x_local for the triangle's three vertices, in
	// the same order as mesh.Triangle{V0,V1,V2}.
	DSigma [3]mesh.Vec3
}

// frame mirrors elasticity's local orthonormal axes, recomputed here so
// strainlimit has no dependency on the elasticity package.
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

// largestSingularValue computes σ_max of the in-plane 2x2 matrix F
// (rows are the 3D components projected onto t1,t2, so F^T F has the
// same singular values as the true 3x2 deformation gradient) along with
// its right singular vector, via the closed-form 2x2 symmetric
// eigendecomposition of F^T F.
func largestSingularValue(f mesh.Mat2) (sigma float64, v [2]float64) {
	a := f[0][0]*f[0][0] + f[1][0]*f[1][0]
	d := f[0][1]*f[0][1] + f[1][1]*f[1][1]
	b := f[0][0]*f[0][1] + f[1][0]*f[1][1]

	trace := a + d
	diff := a - d
	disc := math.Sqrt(diff*diff + 4*b*b)
	lambda1 := 0.5 * (trace + disc)
	if lambda1 < 0 {
		lambda1 = 0
	}
	sigma = math.Sqrt(lambda1)

	if b != 0 {
		v = [2]float64{lambda1 - d, b}
	} else if a >= d {
		v = [2]float64{1, 0}
	} else {
		v = [2]float64{0, 1}
	}
	n := math.Hypot(v[0], v[1])
	if n > 1e-12 {
		v[0] /= n
		v[1] /= n
	} else {
		v = [2]float64{1, 0}
	}
	return sigma, v
}

// Rebuild scans every triangle and returns an active Constraint for
// each one whose largest stretch ratio σ lies in (1+τ, 1+τ+ε), where the
// barrier gap 1+τ+ε−σ is inside (0, ε); a triangle stretched to 1+τ+ε or
// beyond gets no Constraint.
func Rebuild(m *mesh.Mesh, x []mesh.Vec3, tau, epsilon float64, hElastic *sparse.Matrix) []Constraint {
	var out []Constraint
	limit := 1 + tau
	for i, tri := range m.Triangles {
		if m.RestAreas[i] <= 1e-12 {
			continue
		}
		v0, v1, v2 := x[tri.V0], x[tri.V1], x[tri.V2]
		t1, t2, ok := frame(v0, v1, v2)
		if !ok {
			continue
		}
		f := currentF(m, tri, i, x, t1, t2)
		sigma, v := largestSingularValue(f)
		if sigma < limit {
			continue
		}
		gap := limit + epsilon - sigma
		if gap <= 0 || gap >= epsilon {
			continue
		}

		// u = F*v / sigma, the 3D left singular direction
		fv := mesh.Vec3{
			f[0][0]*v[0] + f[0][1]*v[1],
			f[1][0]*v[0] + f[1][1]*v[1],
			0,
		}
		u := fv
		if sigma > 1e-12 {
			u = fv.Scale(1.0 / sigma)
		}

		dmInvT := transpose2(m.DmInv[i])
		// dSigma/dF = u v^T (3x2, but only the in-plane u0,u1 components
		// matter here since u2 multiplies a zero row of Dm_inv); map back
		// to 3D vertex gradients the same way elasticity maps its stress
		// tensor back, substituting u v^T for P.
		p := mesh.Mat2{{u[0] * v[0], u[0] * v[1]}, {u[1] * v[0], u[1] * v[1]}}
		h := mul2(p, dmInvT)

		d1 := t1.Scale(h[0][0]).Add(t2.Scale(h[1][0]))
		d2 := t1.Scale(h[0][1]).Add(t2.Scale(h[1][1]))
		d0 := d1.Add(d2).Scale(-1)

		faceMass := m.RestAreas[i] * m.Material.Thickness * m.Material.Density
		var elastic float64
		if hElastic != nil {
			verts := [3]int{tri.V0, tri.V1, tri.V2}
			w := relativeDirection(v0, v1, v2)
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					elastic += quadFormBlock(hElastic.BlockAt(verts[a], verts[b]), w[a], w[b])
				}
			}
			if elastic < 0 {
				elastic = 0
			}
		}
		gHat := math.Max(gap, 1e-12)
		kBar := faceMass/(gHat*gHat) + elastic

		out = append(out, Constraint{
			Face:      i,
			Gap:       gap,
			Stiffness: kBar,
			DSigma:    [3]mesh.Vec3{d0, d1, d2},
		})
	}
	return out
}

// relativeDirection returns each vertex's offset from the triangle's
// centroid, the w_r term the cross-vertex elastic coupling is
// contracted against.
func relativeDirection(v0, v1, v2 mesh.Vec3) [3]mesh.Vec3 {
	centroid := v0.Add(v1).Add(v2).Scale(1.0 / 3.0)
	return [3]mesh.Vec3{v0.Sub(centroid), v1.Sub(centroid), v2.Sub(centroid)}
}

func quadFormBlock(h [3][3]float64, a, b mesh.Vec3) float64 {
	var hb mesh.Vec3
	for r := 0; r < 3; r++ {
		hb[r] = h[r][0]*b[0] + h[r][1]*b[1] + h[r][2]*b[2]
	}
	return a.Dot(hb)
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

// AccumulateGradient adds the strain-limiting gradient contribution of
// every active constraint into gradient (a 3N-length slice).
func AccumulateGradient(m *mesh.Mesh, constraints []Constraint, epsilon float64, gradient []float64) {
	for _, c := range constraints {
		dV := barrier.Gradient(c.Gap, epsilon, c.Stiffness)
		if dV == 0 {
			continue
		}
		tri := m.Triangles[c.Face]
		verts := [3]int{tri.V0, tri.V1, tri.V2}
		for i, v := range verts {
			// gap = limit+eps-sigma, so d(gap)/dx = -DSigma and the
			// chain rule gives dV/dx = -dV*DSigma.
			g := c.DSigma[i].Scale(-dV)
			gradient[3*v+0] += g[0]
			gradient[3*v+1] += g[1]
			gradient[3*v+2] += g[2]
		}
	}
}

// AccumulateHessian scatters the constant-direction barrier Hessian
// approximation for every active constraint: H ≈ V″(gap)·(DSigma)(DSigma)ᵀ.
func AccumulateHessian(m *mesh.Mesh, constraints []Constraint, epsilon, tol float64, triplets *sparse.Triplet) {
	for _, c := range constraints {
		d2V := barrier.Hessian(c.Gap, epsilon, c.Stiffness)
		if d2V == 0 {
			continue
		}
		tri := m.Triangles[c.Face]
		verts := [3]int{tri.V0, tri.V1, tri.V2}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				da, db := c.DSigma[a], c.DSigma[b]
				baseA, baseB := 3*verts[a], 3*verts[b]
				for r := 0; r < 3; r++ {
					for cc := 0; cc < 3; cc++ {
						v := d2V * da[r] * db[cc]
						if v < tol && v > -tol {
							continue
						}
						triplets.Put(baseA+r, baseB+cc, v)
					}
				}
			}
		}
	}
}
