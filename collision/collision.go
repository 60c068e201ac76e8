// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package collision implements the concrete collision-detection
// collaborator: broad-phase candidate generation and narrow-phase
// point-triangle / edge-edge closest-point queries, grounded on
// original_source/src/core/collision.cpp's narrow_phase_point_triangle
// and narrow_phase_edge_edge (Ericson's closest-point-on-triangle and
// closest-point-between-segments algorithms) and its detect_all_collisions
// weight assignment (+1/-barycentric for point-triangle, ±1/2 for
// edge-edge). AndoSim's broad phase is a single AABB-pruned sweep rather
// than a BVH (see DESIGN.md): correct but not sublinear, which is
// acceptable for the shell sizes this barrier method targets.
package collision

import (
	"math"

	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/mesh"
)

// aabb is an axis-aligned bounding box with a margin applied on build.
type aabb struct {
	min, max mesh.Vec3
}

func (b *aabb) expand(p mesh.Vec3, margin float64) {
	for i := 0; i < 3; i++ {
		if p[i]-margin < b.min[i] {
			b.min[i] = p[i] - margin
		}
		if p[i]+margin > b.max[i] {
			b.max[i] = p[i] + margin
		}
	}
}

func emptyAABB() aabb {
	return aabb{
		min: mesh.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		max: mesh.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

func (b aabb) overlaps(o aabb) bool {
	for i := 0; i < 3; i++ {
		if b.min[i] > o.max[i] || b.max[i] < o.min[i] {
			return false
		}
	}
	return true
}

func triangleBox(x []mesh.Vec3, t mesh.Triangle, margin float64) aabb {
	b := emptyAABB()
	b.expand(x[t.V0], margin)
	b.expand(x[t.V1], margin)
	b.expand(x[t.V2], margin)
	return b
}

func edgeBox(x []mesh.Vec3, e mesh.Edge, margin float64) aabb {
	b := emptyAABB()
	b.expand(x[e.V0], margin)
	b.expand(x[e.V1], margin)
	return b
}

// Detector is the default collision provider.
type Detector struct {
	// GapMax bounds how far apart two primitives can be and still be
	// reported as a candidate contact; it should match the caller's
	// configured barrier width so the broad phase never discards a pair
	// the barrier would have activated.
	GapMax float64
}

// Detect runs the full point-triangle and edge-edge detection pipeline
// over the current positions and returns every pair within GapMax.
// Self-contacts sharing a vertex are skipped.
func (d Detector) Detect(m *mesh.Mesh, x []mesh.Vec3) []constraints.ContactPair {
	var out []constraints.ContactPair
	out = append(out, d.detectPointTriangle(m, x)...)
	out = append(out, d.detectEdgeEdge(m, x)...)
	return out
}

func sharesVertex(a, b [3]int) bool {
	for _, ai := range a {
		for _, bi := range b {
			if ai == bi {
				return true
			}
		}
	}
	return false
}

func (d Detector) detectPointTriangle(m *mesh.Mesh, x []mesh.Vec3) []constraints.ContactPair {
	var out []constraints.ContactPair
	margin := d.GapMax
	for ti, tri := range m.Triangles {
		triVerts := [3]int{tri.V0, tri.V1, tri.V2}
		box := triangleBox(x, tri, margin)
		a, b, c := x[tri.V0], x[tri.V1], x[tri.V2]
		for vi := 0; vi < m.NumVertices(); vi++ {
			if sharesVertex(triVerts, [3]int{vi, vi, vi}) {
				continue
			}
			pb := emptyAABB()
			pb.expand(x[vi], margin)
			if !box.overlaps(pb) {
				continue
			}
			gap, normal, _, witnessQ, bary, ok := closestPointTriangle(x[vi], a, b, c)
			if !ok || gap >= margin {
				continue
			}
			_ = ti
			out = append(out, constraints.ContactPair{
				Type:     constraints.PointTriangle,
				Idx:      [4]int{vi, tri.V0, tri.V1, tri.V2},
				Weights:  [4]float64{1, -bary[0], -bary[1], -bary[2]},
				Gap:      gap,
				Normal:   normal,
				WitnessA: x[vi],
				WitnessB: witnessQ,
				Active:   true,
			})
		}
	}
	return out
}

func (d Detector) detectEdgeEdge(m *mesh.Mesh, x []mesh.Vec3) []constraints.ContactPair {
	var out []constraints.ContactPair
	margin := d.GapMax
	edges := m.Edges
	for i := 0; i < len(edges); i++ {
		ei := edges[i]
		boxI := edgeBox(x, ei, margin)
		for j := i + 1; j < len(edges); j++ {
			ej := edges[j]
			if sharesVertex([3]int{ei.V0, ei.V1, ei.V1}, [3]int{ej.V0, ej.V1, ej.V1}) {
				continue
			}
			boxJ := edgeBox(x, ej, margin)
			if !boxI.overlaps(boxJ) {
				continue
			}
			gap, normal, witnessP, witnessQ, ok := closestPointSegments(x[ei.V0], x[ei.V1], x[ej.V0], x[ej.V1])
			if !ok || gap >= margin {
				continue
			}
			out = append(out, constraints.ContactPair{
				Type:     constraints.EdgeEdge,
				Idx:      [4]int{ei.V0, ei.V1, ej.V0, ej.V1},
				Weights:  [4]float64{0.5, 0.5, -0.5, -0.5},
				Gap:      gap,
				Normal:   normal,
				WitnessA: witnessP,
				WitnessB: witnessQ,
				Active:   true,
			})
		}
	}
	return out
}

// ClosestPointTriangle exports closestPointTriangle for callers (such
// as linesearch's CCD sampler) that need to re-run the same narrow-phase
// query at candidate positions without duplicating the geometry.
func ClosestPointTriangle(p, a, b, c mesh.Vec3) (gap float64, normal mesh.Vec3, witnessP, witnessQ mesh.Vec3, bary [3]float64, ok bool) {
	return closestPointTriangle(p, a, b, c)
}

// ClosestPointSegments exports closestPointSegments for the same reason.
func ClosestPointSegments(p0, p1, q0, q1 mesh.Vec3) (gap float64, normal, witnessP, witnessQ mesh.Vec3, ok bool) {
	return closestPointSegments(p0, p1, q0, q1)
}

// closestPointTriangle finds the closest point on triangle (a,b,c) to p,
// using the vertex/edge/face Voronoi-region test from Ericson's
// Real-Time Collision Detection, the same algorithm
// narrow_phase_point_triangle implements.
func closestPointTriangle(p, a, b, c mesh.Vec3) (gap float64, normal mesh.Vec3, witnessP, witnessQ mesh.Vec3, bary [3]float64, ok bool) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return finish(p, a, [3]float64{1, 0, 0})
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return finish(p, b, [3]float64{0, 1, 0})
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		q := a.Add(ab.Scale(v))
		return finish(p, q, [3]float64{1 - v, v, 0})
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return finish(p, c, [3]float64{0, 0, 1})
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		q := a.Add(ac.Scale(w))
		return finish(p, q, [3]float64{1 - w, 0, w})
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		q := b.Add(c.Sub(b).Scale(w))
		return finish(p, q, [3]float64{0, 1 - w, w})
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	q := a.Add(ab.Scale(v)).Add(ac.Scale(w))
	return finish(p, q, [3]float64{1 - v - w, v, w})
}

func finish(p, q mesh.Vec3, bary [3]float64) (gap float64, normal, witnessP, witnessQ mesh.Vec3, b [3]float64, ok bool) {
	diff := p.Sub(q)
	dist := diff.Norm()
	n := mesh.Vec3{0, 0, 1}
	if dist > 1e-10 {
		n, _ = diff.Normalized()
	}
	return dist, n, p, q, bary, true
}

// closestPointSegments finds the closest points between segments
// (p0,p1) and (q0,q1) using the standard clamped-parametric algorithm
// (Ericson, again the same algorithm narrow_phase_edge_edge implements).
func closestPointSegments(p0, p1, q0, q1 mesh.Vec3) (gap float64, normal, witnessP, witnessQ mesh.Vec3, ok bool) {
	const eps = 1e-10
	d1 := p1.Sub(p0)
	d2 := q1.Sub(q0)
	r := p0.Sub(q0)

	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	if a <= eps && e <= eps {
		witnessP, witnessQ = p0, q0
	} else if a <= eps {
		s = 0
		t = clamp01(f / e)
	} else {
		c := d1.Dot(r)
		if e <= eps {
			t = 0
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = clamp01((b*f - c*e) / denom)
			} else {
				s = 0
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
		witnessP = p0.Add(d1.Scale(s))
		witnessQ = q0.Add(d2.Scale(t))
	}

	diff := witnessP.Sub(witnessQ)
	dist := diff.Norm()
	n := mesh.Vec3{0, 0, 1}
	if dist > 1e-10 {
		n, _ = diff.Normalized()
	}
	return dist, n, witnessP, witnessQ, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
