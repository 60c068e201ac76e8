// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse provides the two sparse-matrix representations the
// Hessian assembly pipeline needs: an append-only Triplet buffer built
// during assembly, and a compressed Matrix consumed by PCG. The Put-based
// accumulate API mirrors gofem's own element-Jacobian assembly idiom
// (every AddToKb(Kb *la.Triplet, ...) in ele/solid/*.go calls
// Kb.Put(i, j, value) once per nonzero, and repeated Put calls on the
// same (i,j) accumulate rather than overwrite), reproduced here
// directly rather than taken as a hard dependency on gosl/la, since
// gosl's la.Triplet/CCMatrix are not present in the retrieved pack to
// introspect their exact field layout (see DESIGN.md).
package sparse

import (
	"sort"

	"github.com/Slaymish/AndoSim/internal/workerpool"
)

// Triplet is an append-only (row, col, value) buffer. Multiple Put
// calls at the same (row, col) accumulate additively, exactly like
// gofem's la.Triplet.
type Triplet struct {
	n, m      int
	rows      []int32
	cols      []int32
	vals      []float64
}

// NewTriplet allocates a triplet buffer for an n×m matrix, hinting at
// an expected nnz capacity. A fresh buffer is allocated per Newton
// iteration rather than reused, so an accurate nnzHint avoids repeated
// slice growth during assembly.
func NewTriplet(n, m, nnzHint int) *Triplet {
	return &Triplet{
		n: n, m: m,
		rows: make([]int32, 0, nnzHint),
		cols: make([]int32, 0, nnzHint),
		vals: make([]float64, 0, nnzHint),
	}
}

// Put appends one (row, col, value) entry. It never zeroes prior
// entries: every caller accumulates into the same buffer across
// several contributions to the same (row, col).
func (t *Triplet) Put(row, col int, value float64) {
	t.rows = append(t.rows, int32(row))
	t.cols = append(t.cols, int32(col))
	t.vals = append(t.vals, value)
}

// Len reports the number of entries appended so far (including
// duplicates not yet merged).
func (t *Triplet) Len() int { return len(t.vals) }

// Extend appends another triplet's entries into this one; used to
// concatenate per-worker thread-local buffers at a phase barrier.
func (t *Triplet) Extend(other *Triplet) {
	t.rows = append(t.rows, other.rows...)
	t.cols = append(t.cols, other.cols...)
	t.vals = append(t.vals, other.vals...)
}

// Matrix is the compressed symmetric form consumed by PCG: a
// compressed-sparse-row layout built by sorting and merging the triplet
// buffer's (row, col) duplicates.
type Matrix struct {
	N       int
	RowPtr  []int
	ColIdx  []int
	Vals    []float64
	diagIdx []int // index into ColIdx/Vals of the diagonal entry per row, -1 if absent

	// Workers sets the worker-pool size MulVec uses for its per-row
	// sweep (the "sparse matvec in PCG" data-parallel phase); 0 means
	// GOMAXPROCS, 1 forces the serial loop. Left at its zero value,
	// MulVec still runs in parallel across GOMAXPROCS. Callers that
	// want a specific worker count (or strict determinism via a single
	// worker) set this explicitly, mirroring params.Workers.
	Workers int
}

// Compress sorts the triplet buffer by (row, col) and merges duplicate
// entries into CSR form. Sorting by (row, col) also gives a
// deterministic assembly order, so results are bit-for-bit reproducible
// across a multi-threaded assembly phase regardless of worker
// scheduling.
func (t *Triplet) Compress() *Matrix {
	n := t.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := t.rows[order[a]], t.rows[order[b]]
		if ra != rb {
			return ra < rb
		}
		return t.cols[order[a]] < t.cols[order[b]]
	})

	rowPtr := make([]int, t.n+1)
	colIdx := make([]int, 0, n)
	vals := make([]float64, 0, n)

	i := 0
	for row := 0; row < t.n; row++ {
		rowPtr[row] = len(colIdx)
		for i < n && int(t.rows[order[i]]) == row {
			col := int(t.cols[order[i]])
			val := t.vals[order[i]]
			j := i + 1
			for j < n && int(t.rows[order[j]]) == row && int(t.cols[order[j]]) == col {
				val += t.vals[order[j]]
				j++
			}
			colIdx = append(colIdx, col)
			vals = append(vals, val)
			i = j
		}
	}
	rowPtr[t.n] = len(colIdx)

	mat := &Matrix{N: t.n, RowPtr: rowPtr, ColIdx: colIdx, Vals: vals}
	mat.cacheDiagonal()
	return mat
}

func (m *Matrix) cacheDiagonal() {
	m.diagIdx = make([]int, m.N)
	for row := 0; row < m.N; row++ {
		m.diagIdx[row] = -1
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			if m.ColIdx[k] == row {
				m.diagIdx[row] = k
				break
			}
		}
	}
}

// Diagonal returns the diagonal entry of row i, or 0 if absent.
func (m *Matrix) Diagonal(i int) float64 {
	k := m.diagIdx[i]
	if k < 0 {
		return 0
	}
	return m.Vals[k]
}

// AddRidge adds eps to every diagonal entry that is exactly zero, a
// small-ridge safeguard applied only where the Jacobi preconditioner
// would otherwise divide by zero.
func (m *Matrix) AddRidge(eps float64) {
	for i := 0; i < m.N; i++ {
		k := m.diagIdx[i]
		if k < 0 || m.Vals[k] == 0 {
			if k < 0 {
				continue // structurally absent diagonal: caller already guarantees mass term is always present
			}
			m.Vals[k] += eps
		}
	}
}

// Symmetrize computes ½(M + Mᵀ) in place. Because AndoSim's
// barrier/elastic/mass contributions are
// already built symmetrically (every block is scattered at both (i,j)
// and (j,i) or is itself symmetric), this is a cheap verification pass
// that also repairs any asymmetry introduced by floating-point summation
// order across worker buffers. Only stored entries are updated: where
// (j,i) is not stored, (i,j) is halved and no (j,i) entry is created, so
// the result equals ½(M + Mᵀ) only for a symmetric sparsity pattern.
func (m *Matrix) Symmetrize() {
	// Build a lookup from (row,col) to value for the transpose term.
	type key struct{ r, c int }
	lookup := make(map[key]float64, len(m.Vals))
	for row := 0; row < m.N; row++ {
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			lookup[key{row, m.ColIdx[k]}] = m.Vals[k]
		}
	}
	for row := 0; row < m.N; row++ {
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			col := m.ColIdx[k]
			other := lookup[key{col, row}]
			m.Vals[k] = 0.5 * (m.Vals[k] + other)
		}
	}
}

// MulVec computes y = M*x. Each row's dot product writes to its own
// disjoint y[row] slot, so the per-row sweep is run across Matrix's
// Workers goroutines with no locking, the "sparse matvec in PCG"
// data-parallel phase.
func (m *Matrix) MulVec(x []float64) []float64 {
	y := make([]float64, m.N)
	workerpool.ForEach(m.N, m.Workers, func(row int) {
		sum := 0.0
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			sum += m.Vals[k] * x[m.ColIdx[k]]
		}
		y[row] = sum
	})
	return y
}

// Block3x3 extracts the 3x3 block starting at (3*vertexIdx, 3*vertexIdx)
// by iterating compressed storage in O(nnz). Callers that need many
// blocks should prefer AllDiagonalBlocks3x3, which does the whole sweep
// once instead of once per vertex.
func (m *Matrix) Block3x3(vertexIdx int) [3][3]float64 {
	var block [3][3]float64
	base := 3 * vertexIdx
	for r := 0; r < 3; r++ {
		row := base + r
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			col := m.ColIdx[k]
			if col >= base && col < base+3 {
				block[r][col-base] = m.Vals[k]
			}
		}
	}
	return block
}

// AllDiagonalBlocks3x3 extracts every per-vertex 3x3 diagonal block in
// a single O(nnz) sweep, caching all the blocks a later stiffness or
// SPD-projection pass will need rather than re-walking the matrix once
// per vertex.
func (m *Matrix) AllDiagonalBlocks3x3() [][3][3]float64 {
	numVertices := m.N / 3
	blocks := make([][3][3]float64, numVertices)
	for row := 0; row < m.N; row++ {
		vi := row / 3
		r := row % 3
		base := 3 * vi
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			col := m.ColIdx[k]
			if col >= base && col < base+3 {
				blocks[vi][r][col-base] = m.Vals[k]
			}
		}
	}
	return blocks
}

// BlockAt extracts the 3x3 block at (3*rowVertex, 3*colVertex), on or
// off the diagonal. Block3x3(v) is BlockAt(v, v); strain-limiting's
// cross-vertex coupling term needs the off-diagonal blocks too.
func (m *Matrix) BlockAt(rowVertex, colVertex int) [3][3]float64 {
	var block [3][3]float64
	rowBase := 3 * rowVertex
	colBase := 3 * colVertex
	for r := 0; r < 3; r++ {
		row := rowBase + r
		for k := m.RowPtr[row]; k < m.RowPtr[row+1]; k++ {
			col := m.ColIdx[k]
			if col >= colBase && col < colBase+3 {
				block[r][col-colBase] = m.Vals[k]
			}
		}
	}
	return block
}
