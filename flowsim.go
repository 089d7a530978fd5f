/*
Copyright © 2018 the Flowsim authors.
This file is part of Flowsim.

Flowsim is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsim is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsim.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package flowsim implements a sequential-modular simulator for
// process flowsheets: directed graphs of unit-operation blocks joined
// by material streams. Each run seeds the feed streams, orders the
// blocks by depth-first topological sort, designates the back-edges of
// recycle loops as tear streams, and sweeps the block functions inside
// a fixed-point iteration until every tear stream stabilizes, finally
// assembling a stream table and utility KPIs.
//
// The simulation state is held in a Flowsheet, and work is done by
// FlowsheetManipulator functions that are chained together in the
// InitFuncs, RunFuncs, and CleanupFuncs fields, so callers can insert
// or replace stages of the simulation without changing the kernel.
package flowsim

import (
	"fmt"

	"github.com/processmodel/flowsim/thermo"
)

// Version gives the model version number.
const Version = "0.3.1"

// FlowsheetManipulator is a function that modifies the state of a
// flowsheet simulation.
type FlowsheetManipulator func(f *Flowsheet) error

// RunStatus tracks a simulation run through its state machine.
type RunStatus int

const (
	// Uninitialized is the state before Init has run.
	Uninitialized RunStatus = iota
	// FeedsSeeded means every feed block's outlet stream has been
	// created from its specification.
	FeedsSeeded
	// Executing means block sweeps are in progress.
	Executing
	// Done means the run finished, converged or not.
	Done
	// Failed means a fatal diagnostic aborted the run.
	Failed
)

func (s RunStatus) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case FeedsSeeded:
		return "feeds-seeded"
	case Executing:
		return "executing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		panic(fmt.Errorf("flowsim: invalid run status %d", int(s)))
	}
}

// FindingCategory classifies validation and run diagnostics.
type FindingCategory int

const (
	// Connectivity findings indicate dangling or missing stream
	// endpoints.
	Connectivity FindingCategory = iota + 1
	// Parameter findings indicate a required block parameter that is
	// absent or outside its domain.
	Parameter
	// Composition findings indicate mole fractions that do not sum to
	// one within tolerance.
	Composition
	// Physical findings indicate a thermodynamically inconsistent
	// request, such as a heater target below its inlet temperature.
	Physical
	// Convergence findings indicate an iterative solver that stopped
	// at its iteration cap without meeting its tolerance.
	Convergence
)

func (c FindingCategory) String() string {
	switch c {
	case Connectivity:
		return "connectivity"
	case Parameter:
		return "parameter"
	case Composition:
		return "composition"
	case Physical:
		return "physical"
	case Convergence:
		return "convergence"
	default:
		panic(fmt.Errorf("flowsim: invalid finding category %d", int(c)))
	}
}

// MarshalText implements encoding.TextMarshaler so findings serialize
// with readable category names.
func (c FindingCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *FindingCategory) UnmarshalText(b []byte) error {
	for _, cat := range []FindingCategory{Connectivity, Parameter, Composition, Physical, Convergence} {
		if string(b) == cat.String() {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("flowsim: unknown finding category %q", b)
}

// Finding is one diagnostic produced while validating or executing a
// flowsheet. Fatal findings abort the run; the rest are warnings
// attached to the result.
type Finding struct {
	Category FindingCategory `json:"category"`
	Message  string          `json:"message"`
	Block    string          `json:"block,omitempty"`
	Stream   string          `json:"stream,omitempty"`
	Fatal    bool            `json:"fatal,omitempty"`
}

func (fd Finding) String() string {
	s := fd.Category.String() + ": "
	if fd.Block != "" {
		s += "block " + fd.Block + ": "
	}
	if fd.Stream != "" {
		s += "stream " + fd.Stream + ": "
	}
	return s + fd.Message
}

// Flowsheet is the state of one simulation run over a flowsheet graph.
// Create one with the graph and component registry filled in, append
// manipulators to the three function chains, then call Init, Run, and
// Cleanup in that order.
type Flowsheet struct {
	// InitFuncs are functions to be run in order at the beginning of
	// the simulation.
	InitFuncs []FlowsheetManipulator

	// RunFuncs are functions to be run in order during each sweep of
	// the simulation, repeating until Done is true.
	RunFuncs []FlowsheetManipulator

	// CleanupFuncs are functions to be run in order at the end of the
	// simulation.
	CleanupFuncs []FlowsheetManipulator

	// Graph is the flowsheet being simulated. It is never modified by
	// the simulation.
	Graph *Graph

	// DB is the component property registry used for every
	// thermodynamic lookup in the run.
	DB *thermo.ComponentDB

	// Done specifies whether the outer tear-stream iteration is
	// finished.
	Done bool

	// Converged reports whether every tear stream stabilized within
	// tolerance (vacuously true for acyclic flowsheets).
	Converged bool

	status RunStatus

	// order is the block execution order; tears are the back-edge
	// connections that close recycle loops.
	order []*Block
	tears []*Connection

	// live are the connections whose endpoints resolved during
	// validation, indexed by destination and source.
	live     []*Connection
	incoming map[string]map[string]*Connection // block ID → in-port name → connection
	outgoing map[string][]*Connection          // block ID → connections leaving it

	feeds     map[string]*Stream // connection ID → seeded feed stream
	streams   map[string]*Stream // connection ID → stream state, current sweep
	tearState map[string]*Stream // connection ID → tear stream value for the next sweep

	results  map[string]*BlockResult // block ID → result of the latest sweep
	findings []Finding
	sweep    int
}

// Init initializes the simulation by running the functions in
// f.InitFuncs.
func (f *Flowsheet) Init() error {
	for _, fn := range f.InitFuncs {
		if err := fn(f); err != nil {
			f.status = Failed
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running the functions in
// f.RunFuncs until f.Done is true.
func (f *Flowsheet) Run() error {
	f.status = Executing
	for !f.Done {
		for _, fn := range f.RunFuncs {
			if err := fn(f); err != nil {
				f.status = Failed
				return err
			}
		}
	}
	f.status = Done
	return nil
}

// Cleanup finishes the simulation by running the functions in
// f.CleanupFuncs.
func (f *Flowsheet) Cleanup() error {
	for _, fn := range f.CleanupFuncs {
		if err := fn(f); err != nil {
			f.status = Failed
			return err
		}
	}
	return nil
}

// Status returns the run's position in its state machine.
func (f *Flowsheet) Status() RunStatus { return f.status }

// Sweeps returns the number of completed block sweeps.
func (f *Flowsheet) Sweeps() int { return f.sweep }

// Findings returns the diagnostics recorded so far: run-level findings
// first, then the block-level findings from the latest sweep. Blocks
// outside the execution order — feeds, which run during seeding, and
// everything else when seeding aborts before the order exists — are
// reported first, in ID order.
func (f *Flowsheet) Findings() []Finding {
	o := make([]Finding, len(f.findings))
	copy(o, f.findings)
	ordered := make(map[string]bool, len(f.order))
	for _, b := range f.order {
		ordered[b.ID] = true
	}
	if f.Graph != nil {
		for _, id := range f.Graph.sortedBlockIDs() {
			if ordered[id] {
				continue
			}
			if res, ok := f.results[id]; ok {
				o = append(o, res.Findings...)
			}
		}
	}
	for _, b := range f.order {
		if res, ok := f.results[b.ID]; ok {
			o = append(o, res.Findings...)
		}
	}
	return o
}

// addFinding records a run-level diagnostic.
func (f *Flowsheet) addFinding(fd Finding) {
	f.findings = append(f.findings, fd)
}

// fatal records a fatal diagnostic and returns it as the error that
// aborts the run.
func (f *Flowsheet) fatal(fd Finding) error {
	fd.Fatal = true
	f.addFinding(fd)
	return fmt.Errorf("flowsim: %s", fd.String())
}

// RunOptions bundles the orchestration settings for a complete run.
type RunOptions struct {
	// MaxSweeps caps the outer tear-stream iteration.
	MaxSweeps int
	// TearTolerance is the maximum relative change of any tear-stream
	// variable accepted as converged.
	TearTolerance float64
	// Acceleration selects the tear-stream update method.
	Acceleration TearAcceleration
	// Economics holds the price and emission-factor table used to
	// compute the cost and emission KPIs.
	Economics Economics
	// KPIVariables maps extra KPI names to expressions over the
	// built-in run variables. The standard KPIs are always present.
	KPIVariables map[string]string
	// OutputFile, if nonempty, is where the result is written; the
	// extension selects the format (.json, .csv, or .xlsx).
	OutputFile string
	// LogChan, if non-nil, receives a status message after each sweep.
	LogChan chan *SimulationStatus
	// ConvergeChan, if non-nil, receives a message after each
	// tear-stream convergence check.
	ConvergeChan chan ConvergenceStatus
}

// DefaultRunOptions returns the standard orchestration settings.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaxSweeps:     defaultMaxSweeps,
		TearTolerance: defaultTearTolerance,
		Acceleration:  DirectSubstitution,
		Economics:     DefaultEconomics(),
	}
}

// RunFlowsheet assembles the standard manipulator chains and carries a
// flowsheet graph through a complete simulation. The returned Result
// is always populated, including for failed runs; the error reports
// the fatal diagnostic when there is one.
func RunFlowsheet(g *Graph, db *thermo.ComponentDB, opts RunOptions) (*Result, error) {
	o, err := NewOutputter(opts.OutputFile, opts.KPIVariables, opts.Economics, nil)
	if err != nil {
		return nil, err
	}
	f := &Flowsheet{
		Graph: g,
		DB:    db,
		InitFuncs: []FlowsheetManipulator{
			ValidateGraph(),
			SeedFeeds(),
			OrderBlocks(),
			o.CheckKPIVariables(),
		},
		RunFuncs: []FlowsheetManipulator{
			Log(opts.LogChan),
			ExecuteBlocks(),
			TearConvergenceCheck(opts.MaxSweeps, opts.TearTolerance, opts.Acceleration, opts.ConvergeChan),
		},
		CleanupFuncs: []FlowsheetManipulator{
			o.Output(),
		},
	}
	runErr := f.Init()
	if runErr == nil {
		runErr = f.Run()
	}
	if err := f.Cleanup(); err != nil {
		return o.Result(), err
	}
	return o.Result(), runErr
}
