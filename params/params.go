// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package params holds the flat simulation configuration record consumed
// by every stage of the integrator. There is no global state anywhere in
// AndoSim: a Params value flows explicitly into every call that needs it.
package params

import (
	"encoding/json"
	"os"

	"github.com/cpmech/gosl/chk"
)

// Params is the recognized scene/run configuration option set.
type Params struct {

	// time stepping
	Dt float64 `json:"dt"` // Δt, seconds

	// β accumulation
	BetaMax        float64 `json:"beta_max"`         // early-termination threshold for the β loop
	MaxBetaRounds  int     `json:"max_beta_rounds"`  // K, cap on β-accumulation rounds
	MaxNewtonSteps int     `json:"max_newton_steps"` // cap on Newton iterations per β sub-step

	// PCG inner solve
	PcgTol      float64 `json:"pcg_tol"`       // relative L∞ residual tolerance
	PcgMaxIters int     `json:"pcg_max_iters"` // cap on PCG iterations; 0 means min(1000, 3N)

	// barrier widths
	ContactGapMax float64 `json:"contact_gap_max"` // ḡ, outer barrier width for contact constraints
	WallGap       float64 `json:"wall_gap"`         // outer barrier width for walls (also used in takeover)
	PinGapMax     float64 `json:"pin_gap_max"`      // outer barrier width for pin constraints

	// line search
	EnableCCD     bool    `json:"enable_ccd"`     // if false, line search uses a discrete gap check only
	LineSearchExt float64 `json:"line_search_ext"` // η, extension factor (default 1.25)
	MinAlpha      float64 `json:"min_alpha"`       // ε_α, floor below which a step is rejected

	// friction (collaborator)
	EnableFriction  bool    `json:"enable_friction"`
	FrictionMu      float64 `json:"friction_mu"`
	FrictionEpsilon float64 `json:"friction_epsilon"`

	// strain limiting (collaborator)
	EnableStrainLimiting bool    `json:"enable_strain_limiting"`
	StrainLimit          float64 `json:"strain_limit"`
	StrainTau            float64 `json:"strain_tau"`

	// numerical safeguards
	HessianEpsilon float64 `json:"hessian_epsilon"` // ridge added only if Jacobi would divide by zero
	MinGap         float64 `json:"min_gap"`         // g_min, floor used in the takeover term
	SpdEpsilon     float64 `json:"spd_epsilon"`     // ε, eigenvalue clamp floor for SPD projection

	// concurrency
	Workers int `json:"workers"` // worker-pool size for the parallel wall-barrier sweep and PCG matvec; 0 = GOMAXPROCS
}

// Default returns the recognized-option defaults.
func Default() Params {
	return Params{
		Dt:                   0.01,
		BetaMax:              0.999,
		MaxBetaRounds:        20,
		MaxNewtonSteps:       8,
		PcgTol:               1e-6,
		PcgMaxIters:          0,
		ContactGapMax:        1e-3,
		WallGap:              1e-3,
		PinGapMax:            1e-3,
		EnableCCD:            true,
		LineSearchExt:        1.25,
		MinAlpha:             1e-8,
		EnableFriction:       false,
		FrictionMu:           0.1,
		FrictionEpsilon:      1e-5,
		EnableStrainLimiting: false,
		StrainLimit:          0.05,
		StrainTau:            0.05,
		HessianEpsilon:       1e-8,
		MinGap:               1e-8,
		SpdEpsilon:           1e-8,
		Workers:              0,
	}
}

// Load reads a JSON scene-parameter file, starting from Default and
// overriding whatever fields the file sets. Mirrors gofem's inp.Data
// JSON-tagged configuration pattern.
func Load(path string) (Params, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, chk.Err("params: cannot read %q: %v", path, err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, chk.Err("params: cannot parse %q: %v", path, err)
	}
	return p, nil
}

// PcgMaxItersFor resolves the effective PCG iteration cap for a system of
// n vertices (3n unknowns), honoring the "0 means min(1000, 3N)" default.
func (p Params) PcgMaxItersFor(numVertices int) int {
	if p.PcgMaxIters > 0 {
		return p.PcgMaxIters
	}
	cap3n := 3 * numVertices
	if cap3n > 1000 {
		return 1000
	}
	return cap3n
}

// Validate checks invariants that are cheap to check once per run rather
// than once per step.
func (p Params) Validate() error {
	if p.Dt < 0 {
		return chk.Err("params: dt must be >= 0, got %g", p.Dt)
	}
	if p.BetaMax <= 0 || p.BetaMax > 1 {
		return chk.Err("params: beta_max must be in (0,1], got %g", p.BetaMax)
	}
	if p.ContactGapMax <= 0 {
		return chk.Err("params: contact_gap_max must be > 0, got %g", p.ContactGapMax)
	}
	if p.MaxNewtonSteps <= 0 {
		return chk.Err("params: max_newton_steps must be > 0, got %d", p.MaxNewtonSteps)
	}
	return nil
}
