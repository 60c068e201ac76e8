// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scene loads the JSON scene description the CLI entry point
// runs: rest mesh, initial velocities, pins, and walls. Grounded on
// gofem's inp.Data JSON-tagged configuration pattern (ReadSim's
// encoding/json.Unmarshal into a flat struct of recognized fields),
// kept separate from the params.Params record since a scene describes
// a specific simulation's topology and initial conditions, not its
// numerical tuning.
package scene

import (
	"encoding/json"
	"os"

	"github.com/Slaymish/AndoSim/constraints"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
)

// Scene is the recognized JSON scene-file option set.
type Scene struct {
	Vertices  [][3]float64 `json:"vertices"`
	Triangles [][3]int     `json:"triangles"`
	Material  mesh.Material `json:"material"`

	Velocities [][3]float64 `json:"velocities"` // optional; zero if omitted

	Pins []struct {
		VertexIdx int        `json:"vertex_idx"`
		Target    [3]float64 `json:"target"`
	} `json:"pins"`

	Walls []struct {
		Normal [3]float64 `json:"normal"`
		Offset float64    `json:"offset"`
	} `json:"walls"`

	Gravity [3]float64 `json:"gravity"`
}

// Load reads and parses a scene JSON file.
func Load(path string) (Scene, error) {
	var s Scene
	data, err := os.ReadFile(path)
	if err != nil {
		return s, chk.Err("scene: cannot read %q: %v", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, chk.Err("scene: cannot parse %q: %v", path, err)
	}
	return s, nil
}

// Build converts the scene's raw vertex/triangle/material data into a
// Mesh plus the initial positions and velocities to seed a State, and
// the pin/wall constraint lists.
func (s Scene) Build() (*mesh.Mesh, []mesh.Vec3, []mesh.Vec3, *constraints.Constraints, error) {
	rest := make([]mesh.Vec3, len(s.Vertices))
	for i, v := range s.Vertices {
		rest[i] = mesh.Vec3(v)
	}
	tris := make([]mesh.Triangle, len(s.Triangles))
	for i, t := range s.Triangles {
		tris[i] = mesh.Triangle{V0: t[0], V1: t[1], V2: t[2]}
	}
	mat := s.Material
	if mat.YoungsModulus == 0 {
		mat = mesh.DefaultMaterial()
	}
	m, err := mesh.New(rest, tris, mat)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	velocities := make([]mesh.Vec3, len(rest))
	for i, v := range s.Velocities {
		if i >= len(velocities) {
			break
		}
		velocities[i] = mesh.Vec3(v)
	}

	cons := &constraints.Constraints{}
	for _, p := range s.Pins {
		cons.AddPin(p.VertexIdx, mesh.Vec3(p.Target))
	}
	for _, w := range s.Walls {
		cons.AddWall(mesh.Vec3(w.Normal), w.Offset)
	}

	return m, rest, velocities, cons, nil
}
