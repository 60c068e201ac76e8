// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workerpool splits a data-parallel phase (the integrator's
// per-vertex wall barrier sweep, sparse matvec in PCG) across
// a bounded set of goroutines. Grounded on gofem's fem.Domain.Distr/Proc
// partitioning: gofem spreads Elems across MPI processes, each
// processor only ever touching its own MyCids slice and its own local
// Kb triplet; here the same static-partition discipline is downgraded
// from processes to goroutines within one process, since distributed
// execution is a non-goal but intra-step parallelism is not.
package workerpool

import (
	"runtime"
	"sync"
)

// Workers resolves the effective worker count: 0 means GOMAXPROCS.
func Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// Partition splits [0, n) into at most nWorkers contiguous ranges,
// mirroring gofem's cell.Part == o.Proc static partitioning: each
// worker gets a fixed, non-overlapping index range rather than pulling
// from a shared queue, since assembly items are uniform-cost.
func Partition(n, nWorkers int) [][2]int {
	if nWorkers > n {
		nWorkers = n
	}
	if nWorkers <= 0 {
		return nil
	}
	chunks := make([][2]int, 0, nWorkers)
	base := n / nWorkers
	rem := n % nWorkers
	start := 0
	for w := 0; w < nWorkers; w++ {
		size := base
		if w < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, [2]int{start, start + size})
		start += size
	}
	return chunks
}

// ForEach runs fn(item) over [0, n) split across nWorkers goroutines,
// for phases that only need side effects local to each item (no shared
// accumulator), e.g. sparse matvec's per-row dot product writing into
// disjoint output slots.
func ForEach(n, nWorkers int, fn func(item int)) {
	chunks := Partition(n, Workers(nWorkers))
	if len(chunks) <= 1 {
		for _, rng := range chunks {
			for item := rng[0]; item < rng[1]; item++ {
				fn(item)
			}
		}
		return
	}
	var wg sync.WaitGroup
	for _, rng := range chunks {
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for item := lo; item < hi; item++ {
				fn(item)
			}
		}(rng[0], rng[1])
	}
	wg.Wait()
}

// Build runs build(item, local) over [0, n) split across nWorkers goroutines,
// each accumulating into its own private buffer (constructed by newLocal
// once per chunk), then returns the per-chunk buffers for the caller to
// concatenate at the phase barrier: each worker owns a private buffer,
// never mutated concurrently.
func Build[T any](n, nWorkers int, newLocal func() T, build func(item int, local T)) []T {
	chunks := Partition(n, Workers(nWorkers))
	if len(chunks) == 0 {
		return nil
	}
	locals := make([]T, len(chunks))
	if len(chunks) == 1 {
		locals[0] = newLocal()
		for item := chunks[0][0]; item < chunks[0][1]; item++ {
			build(item, locals[0])
		}
		return locals
	}
	var wg sync.WaitGroup
	for ci, rng := range chunks {
		wg.Add(1)
		go func(ci, lo, hi int) {
			defer wg.Done()
			local := newLocal()
			for item := lo; item < hi; item++ {
				build(item, local)
			}
			locals[ci] = local
		}(ci, rng[0], rng[1])
	}
	wg.Wait()
	return locals
}
