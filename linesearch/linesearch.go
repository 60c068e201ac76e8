// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linesearch implements the constraint-only feasibility line
// search: it finds the largest α∈[0,1] such that
// x_new = x + α·extension·direction keeps every contact gap, pin gap,
// and wall gap non-negative, using sampled CCD to catch tunneling
// between x and x_new. Grounded on
// original_source/src/core/line_search.cpp's LineSearch::search and its
// conservative sampled-CCD helpers.
package linesearch

import (
	"github.com/Slaymish/AndoSim/collision"
	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/mesh"
)

const (
	reductionFactor = 0.5
	maxIterations   = 20
	ccdSamples      = 10
	ccdThreshold    = 1e-6
)

// Params bundles the line search's tunable knobs.
type Params struct {
	Extension float64
	MinAlpha  float64
	GapMin    float64
	EnableCCD bool
}

// Search performs geometric backtracking from α=1, returning the
// largest feasible step found. If no tried α is feasible (the next one
// would fall below p.MinAlpha, or maxIterations tries are used up), it
// returns 0, which callers (the Newton driver) treat as step rejection.
func Search(x0 []mesh.Vec3, direction []float64, contacts []constraints.ContactPair, pins []constraints.Pin, walls []constraints.Wall, p Params) float64 {
	alpha := 1.0
	for iter := 0; iter < maxIterations; iter++ {
		xNew := applyStep(x0, direction, alpha*p.Extension)
		if isFeasible(x0, xNew, contacts, pins, walls, p.GapMin, p.EnableCCD) {
			return alpha
		}
		alpha *= reductionFactor
		if alpha < p.MinAlpha {
			return 0
		}
	}
	return 0
}

func applyStep(x0 []mesh.Vec3, direction []float64, scale float64) []mesh.Vec3 {
	out := make([]mesh.Vec3, len(x0))
	for i, p := range x0 {
		out[i] = mesh.Vec3{
			p[0] + scale*direction[3*i+0],
			p[1] + scale*direction[3*i+1],
			p[2] + scale*direction[3*i+2],
		}
	}
	return out
}

func isFeasible(x0, xNew []mesh.Vec3, contacts []constraints.ContactPair, pins []constraints.Pin, walls []constraints.Wall, gapMin float64, enableCCD bool) bool {
	for _, c := range contacts {
		if !c.Active {
			continue
		}
		switch c.Type {
		case constraints.PointTriangle:
			if enableCCD {
				toi := ccdPointTriangle(
					x0[c.Idx[0]], xNew[c.Idx[0]],
					x0[c.Idx[1]], xNew[c.Idx[1]],
					x0[c.Idx[2]], xNew[c.Idx[2]],
					x0[c.Idx[3]], xNew[c.Idx[3]],
				)
				if toi < 1.0 {
					return false
				}
			}
			gap, _, _, _, _, ok := closestPointTriangleGap(xNew[c.Idx[0]], xNew[c.Idx[1]], xNew[c.Idx[2]], xNew[c.Idx[3]])
			if ok && gap < gapMin {
				return false
			}
			// the distance above is unsigned, so also reject a step that
			// carries the point across the triangle's plane.
			n0 := x0[c.Idx[2]].Sub(x0[c.Idx[1]]).Cross(x0[c.Idx[3]].Sub(x0[c.Idx[1]]))
			nNew := xNew[c.Idx[2]].Sub(xNew[c.Idx[1]]).Cross(xNew[c.Idx[3]].Sub(xNew[c.Idx[1]]))
			s0 := x0[c.Idx[0]].Sub(x0[c.Idx[1]]).Dot(n0)
			sNew := xNew[c.Idx[0]].Sub(xNew[c.Idx[1]]).Dot(nNew)
			if (s0 > 0 && sNew < 0) || (s0 < 0 && sNew > 0) {
				return false
			}
		case constraints.EdgeEdge:
			if enableCCD {
				toi := ccdEdgeEdge(
					x0[c.Idx[0]], xNew[c.Idx[0]],
					x0[c.Idx[1]], xNew[c.Idx[1]],
					x0[c.Idx[2]], xNew[c.Idx[2]],
					x0[c.Idx[3]], xNew[c.Idx[3]],
				)
				if toi < 1.0 {
					return false
				}
			}
			gap, ok := closestSegmentsGap(xNew[c.Idx[0]], xNew[c.Idx[1]], xNew[c.Idx[2]], xNew[c.Idx[3]])
			if ok && gap < gapMin {
				return false
			}
		}
	}

	for _, pin := range pins {
		if !pin.Active {
			continue
		}
		dist := xNew[pin.VertexIdx].Sub(pin.Target).Norm()
		if dist < gapMin {
			return false
		}
	}

	for _, w := range walls {
		if !w.Active {
			continue
		}
		for _, p := range xNew {
			if w.Normal.Dot(p)-w.Offset < gapMin {
				return false
			}
		}
	}

	return true
}

// closestPointTriangleGap and closestSegmentsGap re-run the narrow-phase
// distance query at the candidate positions; collision.Detector's
// internals are unexported, so linesearch calls through the small
// exported wrapper below instead of duplicating the geometry a third
// time.
func closestPointTriangleGap(p, a, b, c mesh.Vec3) (gap float64, normal, witnessP, witnessQ mesh.Vec3, bary [3]float64, ok bool) {
	return collision.ClosestPointTriangle(p, a, b, c)
}

func closestSegmentsGap(p0, p1, q0, q1 mesh.Vec3) (float64, bool) {
	gap, _, _, _, ok := collision.ClosestPointSegments(p0, p1, q0, q1)
	return gap, ok
}

// ccdPointTriangle conservatively samples the point/triangle trajectory
// for an intersection, returning the first time of impact found or 1.0
// if none is detected.
func ccdPointTriangle(p0, p1, a0, a1, b0, b1, c0, c1 mesh.Vec3) float64 {
	if noMotion(p0, p1, a0, a1, b0, b1, c0, c1) {
		return 1.0
	}
	for i := 1; i <= ccdSamples; i++ {
		t := float64(i) / float64(ccdSamples)
		pt := lerp(p0, p1, t)
		at := lerp(a0, a1, t)
		bt := lerp(b0, b1, t)
		ct := lerp(c0, c1, t)
		gap, _, _, _, _, ok := collision.ClosestPointTriangle(pt, at, bt, ct)
		if ok && gap < ccdThreshold {
			return t
		}
	}
	return 1.0
}

func ccdEdgeEdge(p0a, p0b, p1a, p1b, q0a, q0b, q1a, q1b mesh.Vec3) float64 {
	if noMotion(p0a, p0b, p1a, p1b, q0a, q0b, q1a, q1b) {
		return 1.0
	}
	for i := 1; i <= ccdSamples; i++ {
		t := float64(i) / float64(ccdSamples)
		p0t := lerp(p0a, p0b, t)
		p1t := lerp(p1a, p1b, t)
		q0t := lerp(q0a, q0b, t)
		q1t := lerp(q1a, q1b, t)
		gap, _, _, _, ok := collision.ClosestPointSegments(p0t, p1t, q0t, q1t)
		if ok && gap < ccdThreshold {
			return t
		}
	}
	return 1.0
}

func lerp(a, b mesh.Vec3, t float64) mesh.Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

func noMotion(pts ...mesh.Vec3) bool {
	const eps2 = 1e-12
	for i := 0; i < len(pts); i += 2 {
		d := pts[i+1].Sub(pts[i])
		if d.Dot(d) >= eps2 {
			return false
		}
	}
	return true
}
