// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linesearch

import (
	"testing"

	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
)

func Test_linesearch04_point_triangle_gap_rejected_before_penetration(tst *testing.T) {
	chk.PrintTitle("linesearch04: a step that would penetrate a close point-triangle pair backtracks to a small alpha that keeps the gap positive")

	x0 := []mesh.Vec3{{0, 0, 1e-4}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	direction := []float64{0, 0, -1.1e-3, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	contacts := []constraints.ContactPair{{
		Type:   constraints.PointTriangle,
		Idx:    [4]int{0, 1, 2, 3},
		Active: true,
	}}

	p := Params{Extension: 1.0, MinAlpha: 1e-8, GapMin: 1e-6, EnableCCD: false}
	alpha := Search(x0, direction, contacts, nil, nil, p)
	if alpha >= 0.11 {
		tst.Fatalf("alpha = %g, want < 0.11", alpha)
	}

	xNew := applyStep(x0, direction, alpha*p.Extension)
	gap, _, _, _, _, ok := closestPointTriangleGap(xNew[0], xNew[1], xNew[2], xNew[3])
	if !ok || gap <= 0 {
		tst.Fatalf("post-step gap = %g (ok=%v), want > 0", gap, ok)
	}
}

func Test_linesearch01_full_step_accepted_when_far_from_wall(tst *testing.T) {
	chk.PrintTitle("linesearch01: unconstrained step takes alpha=1")

	x0 := []mesh.Vec3{{0, 0, 5}}
	direction := []float64{0, 0, -0.01}
	walls := []constraints.Wall{{Normal: mesh.Vec3{0, 0, 1}, Offset: 0, Active: true}}

	p := Params{Extension: 1.25, MinAlpha: 1e-8, GapMin: 1e-6, EnableCCD: false}
	alpha := Search(x0, direction, nil, nil, walls, p)
	if alpha != 1.0 {
		tst.Fatalf("alpha = %g, want 1.0", alpha)
	}
}

func Test_linesearch02_backtracks_near_wall(tst *testing.T) {
	chk.PrintTitle("linesearch02: step into the wall is rejected down to a small alpha")

	x0 := []mesh.Vec3{{0, 0, 0.01}}
	direction := []float64{0, 0, -1.0}
	walls := []constraints.Wall{{Normal: mesh.Vec3{0, 0, 1}, Offset: 0, Active: true}}

	p := Params{Extension: 1.25, MinAlpha: 1e-8, GapMin: 1e-6, EnableCCD: false}
	alpha := Search(x0, direction, nil, nil, walls, p)
	if alpha >= 1.0 {
		tst.Fatalf("alpha = %g, want a reduced step", alpha)
	}
}

func Test_linesearch03_pin_constraint_accepts_step_that_keeps_gap_positive(tst *testing.T) {
	chk.PrintTitle("linesearch03: a step that carries a pinned vertex through its target is accepted when the end gap stays positive")

	x0 := []mesh.Vec3{{1, 0, 0}}
	direction := []float64{-2, 0, 0}
	pins := []constraints.Pin{{VertexIdx: 0, Target: mesh.Vec3{0, 0, 0}, Active: true}}

	p := Params{Extension: 1.0, MinAlpha: 1e-8, GapMin: 1e-6, EnableCCD: false}
	alpha := Search(x0, direction, nil, pins, nil, p)
	if alpha < p.MinAlpha {
		tst.Fatalf("alpha = %g, want a non-degenerate step", alpha)
	}
}
