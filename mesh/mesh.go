// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mesh holds the immutable triangulated-shell topology and its
// cached rest-state data. A Mesh is borrowed read-only by every solver;
// only simstate.State carries the mutable per-step position/velocity
// data.
package mesh

import (
	"math"

	"github.com/cpmech/gosl/chk"
)

// Vec3 is a plain 3-vector. AndoSim does not depend on an external
// linear-algebra type for dense 3-vectors: the hot loops below work
// directly on float64 triples, the same way gofem's shp package works
// directly on []float64 coordinate slices rather than a vector type.
type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}
func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
func (a Vec3) Norm() float64 { return math.Sqrt(a.Dot(a)) }
func (a Vec3) Normalized() (Vec3, bool) {
	n := a.Norm()
	if n < 1e-12 {
		return Vec3{}, false
	}
	return a.Scale(1.0 / n), true
}

// Mat2 is a plain 2x2 matrix, row-major, used for the rest-shape inverse.
type Mat2 [2][2]float64

// Triangle is a triple of vertex indices into the owning State.
type Triangle struct {
	V0, V1, V2 int
}

// Edge is a pair of vertex indices, used by edge-edge contact detection
// and as the source of the bending stencils.
type Edge struct {
	V0, V1 int
}

// Material is shared by every triangle in a Mesh.
type Material struct {
	YoungsModulus    float64 `json:"youngs_modulus"`
	PoissonRatio     float64 `json:"poisson_ratio"`
	Density          float64 `json:"density"`
	Thickness        float64 `json:"thickness"`
	BendingStiffness float64 `json:"bending_stiffness"`
}

// DefaultMaterial mirrors the original source's defaults (mesh.h Material).
func DefaultMaterial() Material {
	return Material{
		YoungsModulus:    1e6,
		PoissonRatio:     0.3,
		Density:          1000.0,
		Thickness:        0.001,
		BendingStiffness: 0.0,
	}
}

// Mesh is the immutable topology plus per-triangle rest-state data.
type Mesh struct {
	Triangles []Triangle
	Edges     []Edge
	Material  Material

	numVertices int

	DmInv     []Mat2    // per-triangle inverse rest-shape matrix
	RestAreas []float64 // per-triangle rest area, strictly positive

	// local orthonormal frame axes per triangle, used to build the 2D
	// rest-shape matrix from 3D rest positions.
	frameU []Vec3
	frameV []Vec3

	VertexToFaces [][]int // incident triangle indices per vertex

	BendingEdges []BendingEdge // interior edges with cached quadratic-bending weights
}

// BendingEdge caches a discrete quadratic-bending stencil (Bergou et
// al.-style Laplacian energy) for one interior edge: the edge's two
// endpoints plus the two opposite apex vertices of its incident
// triangles, with fixed weights (1, 1, −1, −1) so that Δ = Σ wᵢ·xᵢ is a
// discrete curvature proxy. No rest value is subtracted: Δ is zero at
// rest only when the two triangles form a flat parallelogram (as in a
// regular grid), and nonzero at rest for any other shape.
type BendingEdge struct {
	Verts   [4]int
	Weights [4]float64
}

// New builds a Mesh from rest positions and triangle connectivity,
// computing and caching all rest-state data. Returns an error for a
// degenerate rest triangle or an out-of-range vertex index.
func New(restPositions []Vec3, triangles []Triangle, mat Material) (*Mesh, error) {
	m := &Mesh{
		Triangles:   append([]Triangle(nil), triangles...),
		Material:    mat,
		numVertices: len(restPositions),
	}
	for i, t := range triangles {
		for _, idx := range [3]int{t.V0, t.V1, t.V2} {
			if idx < 0 || idx >= m.numVertices {
				return nil, chk.Err("mesh: triangle %d references out-of-range vertex %d (N=%d)", i, idx, m.numVertices)
			}
		}
	}
	if err := m.computeRestState(restPositions); err != nil {
		return nil, err
	}
	m.buildEdges()
	m.buildTopology()
	m.buildBendingEdges()
	return m, nil
}

// NumVertices returns N, the number of vertices in the owning State.
func (m *Mesh) NumVertices() int { return m.numVertices }
func (m *Mesh) NumTriangles() int { return len(m.Triangles) }
func (m *Mesh) NumEdges() int     { return len(m.Edges) }

// computeRestState builds Dm_inv, rest areas, and the local orthonormal
// frame for every triangle, grounded on original_source mesh.cpp's
// compute_rest_state: project the rest triangle into its own plane,
// build the 2x2 edge-vector matrix, and invert it.
func (m *Mesh) computeRestState(rest []Vec3) error {
	n := len(m.Triangles)
	m.DmInv = make([]Mat2, n)
	m.RestAreas = make([]float64, n)
	m.frameU = make([]Vec3, n)
	m.frameV = make([]Vec3, n)

	for i, t := range m.Triangles {
		a, b, c := rest[t.V0], rest[t.V1], rest[t.V2]
		e1 := b.Sub(a)
		e2 := c.Sub(a)
		normal := e1.Cross(e2)
		area2 := normal.Norm()
		if area2 < 1e-15 {
			return chk.Err("mesh: triangle %d has degenerate rest area", i)
		}
		area := 0.5 * area2

		u, ok := e1.Normalized()
		if !ok {
			return chk.Err("mesh: triangle %d has a zero-length rest edge", i)
		}
		nrm := normal.Scale(1.0 / area2)
		v := nrm.Cross(u) // completes the orthonormal in-plane frame

		// 2D coordinates of the rest triangle in the (u,v) frame
		e1_2d := [2]float64{e1.Dot(u), e1.Dot(v)}
		e2_2d := [2]float64{e2.Dot(u), e2.Dot(v)}

		// Dm = [e1_2d | e2_2d] (columns), invert analytically
		det := e1_2d[0]*e2_2d[1] - e1_2d[1]*e2_2d[0]
		if math.Abs(det) < 1e-15 {
			return chk.Err("mesh: triangle %d has a singular rest-shape matrix", i)
		}
		invDet := 1.0 / det
		m.DmInv[i] = Mat2{
			{e2_2d[1] * invDet, -e2_2d[0] * invDet},
			{-e1_2d[1] * invDet, e1_2d[0] * invDet},
		}
		m.RestAreas[i] = area
		m.frameU[i] = u
		m.frameV[i] = v
	}
	return nil
}

// Frame returns the cached local orthonormal in-plane axes for triangle i.
func (m *Mesh) Frame(i int) (u, v Vec3) { return m.frameU[i], m.frameV[i] }

// buildEdges derives the unique edge list from the triangles: every
// triangle edge once, whether interior (shared by two triangles) or on
// the boundary.
func (m *Mesh) buildEdges() {
	type key struct{ a, b int }
	seen := make(map[key]bool)
	for _, t := range m.Triangles {
		verts := [3]int{t.V0, t.V1, t.V2}
		for e := 0; e < 3; e++ {
			i, j := verts[e], verts[(e+1)%3]
			if i > j {
				i, j = j, i
			}
			k := key{i, j}
			if seen[k] {
				continue
			}
			seen[k] = true
			m.Edges = append(m.Edges, Edge{i, j})
		}
	}
}

func (m *Mesh) buildTopology() {
	m.VertexToFaces = make([][]int, m.numVertices)
	for fi, t := range m.Triangles {
		for _, v := range [3]int{t.V0, t.V1, t.V2} {
			m.VertexToFaces[v] = append(m.VertexToFaces[v], fi)
		}
	}
}

// buildBendingEdges finds, for every interior mesh edge, the two apex
// vertices of its incident triangles and caches the simplified
// quadratic-bending stencil Δ = x0 + x1 − x2 − x3 (the uniform-weight
// discrete bending Laplacian used by fast mass-spring cloth solvers as
// an approximation to the full cotangent-weighted hinge energy).
// Boundary edges (only one incident triangle) carry no bending term.
func (m *Mesh) buildBendingEdges() {
	type edgeKey struct{ a, b int }
	normKey := func(i, j int) edgeKey {
		if i > j {
			i, j = j, i
		}
		return edgeKey{i, j}
	}
	apexOf := make(map[edgeKey][]int)
	for _, t := range m.Triangles {
		verts := [3]int{t.V0, t.V1, t.V2}
		for e := 0; e < 3; e++ {
			i, j := verts[e], verts[(e+1)%3]
			apex := verts[(e+2)%3]
			k := normKey(i, j)
			apexOf[k] = append(apexOf[k], apex)
		}
	}
	for _, e := range m.Edges {
		apexes := apexOf[normKey(e.V0, e.V1)]
		if len(apexes) != 2 {
			continue // boundary edge: no bending stencil
		}
		m.BendingEdges = append(m.BendingEdges, BendingEdge{
			Verts:   [4]int{e.V0, e.V1, apexes[0], apexes[1]},
			Weights: [4]float64{1, 1, -1, -1},
		})
	}
}

// LumpedMasses distributes area*thickness*density one-third to each
// triangle corner, the default mass model from original_source
// state.cpp's compute_lumped_masses.
func (m *Mesh) LumpedMasses() []float64 {
	masses := make([]float64, m.numVertices)
	for i, t := range m.Triangles {
		triMass := m.RestAreas[i] * m.Material.Thickness * m.Material.Density
		share := triMass / 3.0
		masses[t.V0] += share
		masses[t.V1] += share
		masses[t.V2] += share
	}
	return masses
}
