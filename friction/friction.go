// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package friction implements the quadratic (regularized Coulomb)
// friction collaborator, grounded directly on
// original_source/src/core/friction.cpp's FrictionModel: friction
// energy V_f = (k_f/2)*||Δx_t||², gradient k_f*Δx_t, and Hessian
// k_f*(I - n⊗n), where Δx_t is the tangential component of the
// per-step displacement at a contact.
package friction

import (
	"math"

	"github.com/Slaymish/AndoSim/mesh"
)

const maxStiffness = 1e8

// Stiffness computes k_f = μ*|F_n|/ε², capped at a fixed ceiling to
// keep the friction block from dominating the Newton system.
func Stiffness(normalForce, mu, epsilon float64) float64 {
	epsSq := epsilon * epsilon
	if epsSq <= 0 {
		return 0
	}
	k := mu * math.Abs(normalForce) / epsSq
	if k > maxStiffness {
		return maxStiffness
	}
	return k
}

// ExtractTangential removes the normal component from a displacement:
// Δx_t = Δx - (Δx·n)n.
func ExtractTangential(displacement, normal mesh.Vec3) mesh.Vec3 {
	nc := displacement.Dot(normal)
	return displacement.Sub(normal.Scale(nc))
}

// Energy evaluates V_f for one contact.
func Energy(xCurrent, xPrevious, normal mesh.Vec3, kf float64) float64 {
	tangential := ExtractTangential(xCurrent.Sub(xPrevious), normal)
	return 0.5 * kf * tangential.Dot(tangential)
}

// Gradient evaluates ∇V_f = k_f*Δx_t.
func Gradient(xCurrent, xPrevious, normal mesh.Vec3, kf float64) mesh.Vec3 {
	tangential := ExtractTangential(xCurrent.Sub(xPrevious), normal)
	return tangential.Scale(kf)
}

// Hessian evaluates ∇²V_f = k_f*(I - n⊗n), with a small diagonal ridge
// to keep the block strictly SPD (the normal direction otherwise has a
// zero eigenvalue).
func Hessian(normal mesh.Vec3, kf, ridge float64) [3][3]float64 {
	var h [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			identity := 0.0
			if r == c {
				identity = 1.0
			}
			h[r][c] = kf*(identity-normal[r]*normal[c]) + ridge*identity
		}
	}
	return h
}

// ShouldApply reports whether tangential motion exceeds threshold.
// Friction is skipped on contacts with sub-threshold sliding, avoiding
// spurious forces from floating-point noise on an effectively static
// contact.
func ShouldApply(tangentialDisplacement mesh.Vec3, threshold float64) bool {
	return tangentialDisplacement.Norm() > threshold
}
