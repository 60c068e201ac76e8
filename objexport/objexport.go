// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objexport writes simulation frames to Wavefront OBJ files,
// one file per frame, grounded on gofem's inp.Sim output-directory
// handling (ReadSim's "create directory on first write, key the
// filename off the scene file's base name" idiom) and gosl/io's
// Sf/FnKey string helpers, adapted from gofem's gob/json result
// snapshots to the OBJ line format: `v x y z` per vertex followed by
// `f i j k` per triangle, 1-indexed, in mesh.Mesh's own vertex/triangle
// order.
package objexport

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
)

// Writer emits one OBJ file per frame into Dir, named "<Key>_<frame>.obj".
type Writer struct {
	Dir string
	Key string

	dirReady bool
}

// NewWriter returns a Writer that will lazily create Dir on the first
// call to WriteFrame, mirroring inp.Sim's "create directory for output
// results" step at first use rather than at construction.
func NewWriter(dir, key string) *Writer {
	return &Writer{Dir: dir, Key: key}
}

// WriteFrame writes the mesh topology at the given positions to
// "<Dir>/<Key>_<frame>.obj", 1-indexed vertex/face lines in State order.
func (w *Writer) WriteFrame(m *mesh.Mesh, x []mesh.Vec3, frame int) error {
	if !w.dirReady {
		if err := os.MkdirAll(w.Dir, 0777); err != nil {
			return chk.Err("objexport: cannot create output directory %q: %v", w.Dir, err)
		}
		w.dirReady = true
	}

	path := filepath.Join(w.Dir, io.Sf("%s_%04d.obj", w.Key, frame))
	f, err := os.Create(path)
	if err != nil {
		return chk.Err("objexport: cannot create %q: %v", path, err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	for _, p := range x {
		if _, err := buf.WriteString(io.Sf("v %.9g %.9g %.9g\n", p[0], p[1], p[2])); err != nil {
			return chk.Err("objexport: write failed for %q: %v", path, err)
		}
	}
	for _, t := range m.Triangles {
		if _, err := buf.WriteString(io.Sf("f %d %d %d\n", t.V0+1, t.V1+1, t.V2+1)); err != nil {
			return chk.Err("objexport: write failed for %q: %v", path, err)
		}
	}
	return buf.Flush()
}
