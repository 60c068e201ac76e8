// Copyright 2024 The AndoSim Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command andosim runs a scene file for a fixed number of frames,
// writing one OBJ snapshot every framesPerWrite frames, frame 0 included. Grounded on gofem's root main.go
// argument-parsing idiom (io.ArgToFilename/ArgToBool/ArgToInt,
// io.ArgsTable, chk.Panic/chk.CallerInfo panic recovery); AndoSim is
// single-process, so the MPI rank-0 guards and mpi.Start/Stop calls
// that wrap gofem's version of this loop are dropped, not adapted.
package main

import (
	"github.com/Slaymish/AndoSim/collision"
	"github.com/Slaymish/AndoSim/elasticity"
	"github.com/Slaymish/AndoSim/integrator"
	"github.com/Slaymish/AndoSim/mesh"
	"github.com/Slaymish/AndoSim/objexport"
	"github.com/Slaymish/AndoSim/params"
	"github.com/Slaymish/AndoSim/scene"
	"github.com/Slaymish/AndoSim/simstate"
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/utl"
)

func main() {

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			io.PfRed("\nERROR: %v", err)
			io.Pf("See location of error below:\n")
			chk.Verbose = true
			for i := 5; i > 3; i-- {
				chk.CallerInfo(i)
			}
		}
	}()

	// read input parameters
	sceneFnamepath, sceneFnkey := io.ArgToFilename(0, "", ".json", true)
	paramsFnamepath, _ := io.ArgToFilename(1, "", ".json", false)
	nFrames := io.ArgToInt(2, 100)
	framesPerWrite := io.ArgToInt(3, 1)
	outDir, _ := io.ArgToFilename(4, "results", "", false)
	verbose := io.ArgToBool(5, true)
	doprof := io.ArgToInt(6, 0)

	if verbose {
		io.PfWhite("\nAndoSim -- implicit penetration-free thin-shell integrator\n")
		io.Pf("\n%v\n", io.ArgsTable("INPUT ARGUMENTS",
			"scene file", "sceneFnamepath", sceneFnamepath,
			"params file (optional)", "paramsFnamepath", paramsFnamepath,
			"number of frames", "nFrames", nFrames,
			"frames per OBJ write", "framesPerWrite", framesPerWrite,
			"output directory", "outDir", outDir,
			"show messages", "verbose", verbose,
			"profiling: 0=none 1=CPU 2=MEM", "doprof", doprof,
		))
	}

	// profiling?
	if doprof > 0 {
		defer utl.Prof(doprof == 2, false)()
	}

	// load scene and params
	sc, err := scene.Load(sceneFnamepath)
	if err != nil {
		chk.Panic("cannot load scene:\n%v", err)
	}
	p := params.Default()
	if paramsFnamepath != "" {
		p, err = params.Load(paramsFnamepath)
		if err != nil {
			chk.Panic("cannot load params:\n%v", err)
		}
	}
	if err := p.Validate(); err != nil {
		chk.Panic("invalid params:\n%v", err)
	}

	m, rest, velocities, cons, err := sc.Build()
	if err != nil {
		chk.Panic("cannot build scene:\n%v", err)
	}
	state, err := simstate.New(m, rest)
	if err != nil {
		chk.Panic("cannot build initial state:\n%v", err)
	}
	copy(state.Velocities, velocities)

	gravity := mesh.Vec3(sc.Gravity)
	detector := collision.Detector{GapMax: p.ContactGapMax}
	writer := objexport.NewWriter(outDir, sceneFnkey)

	// run simulation
	for frame := 0; frame < nFrames; frame++ {
		state.ApplyGravity(gravity, p.Dt)

		result, err := integrator.Step(m, state, cons, elasticity.Membrane{}, detector, p)
		if err != nil {
			chk.Panic("frame %d: step failed:\n%v", frame, err)
		}
		if result.Status == integrator.Failed {
			chk.Panic("frame %d: integrator reported a failed step: %s", frame, result.Detail)
		}
		if verbose && result.Status == integrator.Degraded {
			io.Pforan("frame %d: degraded step, beta=%g, reasons=%v\n", frame, result.Beta, result.Reasons)
		}

		if frame%framesPerWrite == 0 {
			if err := writer.WriteFrame(m, state.Positions, frame); err != nil {
				chk.Panic("frame %d: cannot write OBJ:\n%v", frame, err)
			}
		}
	}

	if verbose {
		io.Pf("\nfinished: %d frames written to %q\n", (nFrames+framesPerWrite-1)/framesPerWrite, outDir)
	}
}
