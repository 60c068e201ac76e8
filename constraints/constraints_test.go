// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraints

import (
	"testing"

	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
)

func Test_constraints01_add_pin_and_wall_are_active_by_default(tst *testing.T) {
	chk.PrintTitle("constraints01: AddPin/AddWall append active entries")

	cons := &Constraints{}
	cons.AddPin(0, mesh.Vec3{0, 0, 0})
	cons.AddWall(mesh.Vec3{0, 0, 1}, 0)

	if cons.NumActivePins() != 1 {
		tst.Fatalf("expected 1 active pin, got %d", cons.NumActivePins())
	}
	if cons.NumActiveWalls() != 1 {
		tst.Fatalf("expected 1 active wall, got %d", cons.NumActiveWalls())
	}
}

func Test_constraints02_add_wall_normalizes_normal(tst *testing.T) {
	chk.PrintTitle("constraints02: AddWall stores a unit normal even when given an unnormalized one")

	cons := &Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 5}, 1)
	n := cons.Walls[0].Normal
	norm := n.Dot(n)
	if diff := norm - 1.0; diff > 1e-9 || diff < -1e-9 {
		tst.Fatalf("expected a unit normal, got squared norm %g", norm)
	}
}

func Test_constraints03_add_wall_falls_back_on_zero_normal(tst *testing.T) {
	chk.PrintTitle("constraints03: AddWall falls back to +z when given a zero-length normal")

	cons := &Constraints{}
	cons.AddWall(mesh.Vec3{0, 0, 0}, 0)
	if cons.Walls[0].Normal != (mesh.Vec3{0, 0, 1}) {
		tst.Fatalf("expected fallback normal {0,0,1}, got %v", cons.Walls[0].Normal)
	}
}

func Test_constraints04_vertex_count_counts_populated_slots(tst *testing.T) {
	chk.PrintTitle("constraints04: ContactPair.VertexCount ignores unused -1 slots")

	c := ContactPair{Idx: [4]int{2, 5, -1, -1}}
	if c.VertexCount() != 2 {
		tst.Fatalf("expected 2 populated slots, got %d", c.VertexCount())
	}
}

func Test_constraints05_set_contacts_replaces_and_counts_active(tst *testing.T) {
	chk.PrintTitle("constraints05: SetContacts replaces the dynamic contact list")

	cons := &Constraints{}
	cons.SetContacts([]ContactPair{{Idx: [4]int{0, 1, -1, -1}, Active: true}, {Idx: [4]int{2, 3, -1, -1}, Active: false}})
	if len(cons.Contacts) != 2 {
		tst.Fatalf("expected 2 contacts, got %d", len(cons.Contacts))
	}
	if cons.NumActiveContacts() != 1 {
		tst.Fatalf("expected 1 active contact, got %d", cons.NumActiveContacts())
	}

	cons.SetContacts(nil)
	if len(cons.Contacts) != 0 {
		tst.Fatalf("expected SetContacts(nil) to clear the list, got %d entries", len(cons.Contacts))
	}
}
