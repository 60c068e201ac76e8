// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package constraints holds the three disjoint constraint lists: pins,
// walls, and per-step contact pairs. ContactPair is a tagged variant
// dispatched on Type in every hot loop, never via virtual/interface
// dispatch.
package constraints

import "github.com/Slaymish/AndoSim/mesh"

// Pin fixes a vertex near a target position.
type Pin struct {
	VertexIdx int
	Target    mesh.Vec3
	GapMax    float64 // optional per-vertex barrier width; 0 means "use params default"
	Active    bool
}

// Wall defines the feasible half-space n·x ≥ d.
type Wall struct {
	Normal mesh.Vec3 // unit normal
	Offset float64
	Active bool
}

// ContactType tags the ContactPair variant.
type ContactType int

const (
	PointTriangle ContactType = iota
	EdgeEdge
)

// ContactPair is produced fresh every step by the collision provider.
// Unused index slots are -1. Weights are the per-vertex selector
// weights wᵢ (+1 on the point, −barycentric on the triangle, ±½ on
// edges) in the same order as the Idx array.
type ContactPair struct {
	Type ContactType

	Idx     [4]int
	Weights [4]float64

	Gap    float64   // g > 0 on input: a candidate pair already in penetration is never passed in
	Normal mesh.Vec3 // unit vector, from witness point on B to witness point on A

	WitnessA mesh.Vec3 // p, closest point on primitive A
	WitnessB mesh.Vec3 // q, closest point on primitive B

	// GapMax overrides params.ContactGapMax for this pair when > 0. Wall
	// constraints are not ContactPair values at all (see Wall above,
	// which uses params.WallGap directly), so this only ever applies to
	// point-triangle and edge-edge pairs.
	GapMax float64

	Active bool
}

// VertexCount returns how many of the four index slots are populated.
func (c ContactPair) VertexCount() int {
	n := 0
	for _, idx := range c.Idx {
		if idx >= 0 {
			n++
		}
	}
	return n
}

// Constraints is the container borrowed read-only by every solver
// during one step; Contacts is rebuilt by the collision provider at the
// start of each step.
type Constraints struct {
	Pins     []Pin
	Walls    []Wall
	Contacts []ContactPair
}

// AddPin appends an active pin constraint.
func (c *Constraints) AddPin(vertexIdx int, target mesh.Vec3) {
	c.Pins = append(c.Pins, Pin{VertexIdx: vertexIdx, Target: target, Active: true})
}

// AddWall appends an active wall constraint.
func (c *Constraints) AddWall(normal mesh.Vec3, offset float64) {
	n, ok := normal.Normalized()
	if !ok {
		n = mesh.Vec3{0, 0, 1}
	}
	c.Walls = append(c.Walls, Wall{Normal: n, Offset: offset, Active: true})
}

// SetContacts replaces the dynamic contact list for the current step.
func (c *Constraints) SetContacts(contacts []ContactPair) {
	c.Contacts = contacts
}

func (c *Constraints) NumActivePins() int {
	n := 0
	for _, p := range c.Pins {
		if p.Active {
			n++
		}
	}
	return n
}

func (c *Constraints) NumActiveWalls() int {
	n := 0
	for _, w := range c.Walls {
		if w.Active {
			n++
		}
	}
	return n
}

func (c *Constraints) NumActiveContacts() int {
	n := 0
	for _, ct := range c.Contacts {
		if ct.Active {
			n++
		}
	}
	return n
}
