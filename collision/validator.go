// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collision

import "github.com/Slaymish/AndoSim/constraints"

// Metrics summarizes one step's contact list for diagnostics and the
// feasibility invariant check, grounded on
// original_source/src/core/collision_validator.h's CollisionMetrics.
type Metrics struct {
	NumPointTriangle int
	NumEdgeEdge      int
	NumTotalContacts int

	MinGap float64
	MaxGap float64
	AvgGap float64

	NumPenetrations int
	MaxPenetration  float64
	HasPenetration  bool
}

// ComputeMetrics scans a contact list and summarizes gap statistics.
// Any contact with Gap < 0 counts as a penetration: AndoSim's feasibility
// invariant requires this never happens on an accepted step.
func ComputeMetrics(contacts []constraints.ContactPair) Metrics {
	var m Metrics
	first := true
	sum := 0.0
	for _, c := range contacts {
		if !c.Active {
			continue
		}
		switch c.Type {
		case constraints.PointTriangle:
			m.NumPointTriangle++
		case constraints.EdgeEdge:
			m.NumEdgeEdge++
		}
		m.NumTotalContacts++
		sum += c.Gap
		if first || c.Gap < m.MinGap {
			m.MinGap = c.Gap
		}
		if first || c.Gap > m.MaxGap {
			m.MaxGap = c.Gap
		}
		first = false
		if c.Gap < 0 {
			m.NumPenetrations++
			m.HasPenetration = true
			if -c.Gap > m.MaxPenetration {
				m.MaxPenetration = -c.Gap
			}
		}
	}
	if m.NumTotalContacts > 0 {
		m.AvgGap = sum / float64(m.NumTotalContacts)
	}
	return m
}

// HasPenetrations reports whether any contact in the list has a
// negative gap.
func HasPenetrations(contacts []constraints.ContactPair) bool {
	for _, c := range contacts {
		if c.Active && c.Gap < 0 {
			return true
		}
	}
	return false
}

// MaxPenetrationDepth returns the largest penetration depth across the
// contact list, or 0 if there is none.
func MaxPenetrationDepth(contacts []constraints.ContactPair) float64 {
	max := 0.0
	for _, c := range contacts {
		if c.Active && c.Gap < 0 && -c.Gap > max {
			max = -c.Gap
		}
	}
	return max
}
