// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objexport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Slaymish/AndoSim/mesh"
	"github.com/cpmech/gosl/chk"
)

func Test_objexport01_writes_vertices_and_faces(tst *testing.T) {
	chk.PrintTitle("objexport01: one frame writes v and f lines in mesh order")

	rest := []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	tris := []mesh.Triangle{{V0: 0, V1: 1, V2: 2}}
	m, err := mesh.New(rest, tris, mesh.DefaultMaterial())
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}

	dir := tst.TempDir()
	w := NewWriter(dir, "scene")
	if err := w.WriteFrame(m, rest, 0); err != nil {
		tst.Fatalf("WriteFrame failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "scene_0000.obj"))
	if err != nil {
		tst.Fatalf("cannot read written file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "v 0 0 0") {
		tst.Fatalf("missing vertex line, got:\n%s", content)
	}
	if !strings.Contains(content, "f 1 2 3") {
		tst.Fatalf("missing 1-indexed face line, got:\n%s", content)
	}
}

func Test_objexport02_creates_output_directory(tst *testing.T) {
	chk.PrintTitle("objexport02: the output directory is created lazily on first write")

	rest := []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	tris := []mesh.Triangle{{V0: 0, V1: 1, V2: 2}}
	m, err := mesh.New(rest, tris, mesh.DefaultMaterial())
	if err != nil {
		tst.Fatalf("mesh.New failed: %v", err)
	}

	dir := filepath.Join(tst.TempDir(), "nested", "frames")
	w := NewWriter(dir, "scene")
	if err := w.WriteFrame(m, rest, 1); err != nil {
		tst.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		tst.Fatalf("expected directory %q to exist: %v", dir, err)
	}
}
