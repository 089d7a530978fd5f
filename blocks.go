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

package flowsim

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/unit"
	"github.com/processmodel/flowsim/thermo"
)

const (
	// TraceFlow is the flow assigned to the fabricated empty side of a
	// single-phase flash so that both outlet streams exist, in kmol/h.
	TraceFlow = 0.001

	// compositionTolerance is how far mole fractions may sum from one
	// before a feed specification is rejected.
	compositionTolerance = 0.01

	defaultPumpEfficiency = 0.75
)

// BlockInput carries the resolved inputs of one block execution.
type BlockInput struct {
	Block *Block
	// Streams holds the stream on each connected input port, keyed by
	// port name. Unresolved ports are absent.
	Streams map[string]*Stream
	// DB is the component property registry.
	DB *thermo.ComponentDB
}

// BlockResult holds everything a block function produces.
type BlockResult struct {
	// Streams holds the outlet streams keyed by output port name.
	Streams map[string]*Stream
	// Duty is the net heat added to the block, or nil when the block
	// exchanges no heat.
	Duty *unit.Unit
	// Power is the shaft work added to the block, or nil when the
	// block does no work.
	Power *unit.Unit
	// Findings are the diagnostics raised by this execution.
	Findings []Finding
	// Skipped means the block could not run and was passed over with
	// a warning instead of aborting the simulation.
	Skipped bool
}

// BlockFunc computes a block's outlet streams from its resolved
// inlets. Implementations must not modify their inputs.
type BlockFunc func(*BlockInput) (*BlockResult, error)

// BlockFuncFor returns the implementation of the given block type.
func BlockFuncFor(t BlockType) (BlockFunc, error) {
	options := map[BlockType]BlockFunc{
		FeedBlock:          Feed,
		MixerBlock:         Mixer,
		SplitterBlock:      Splitter,
		HeaterBlock:        Heater,
		CoolerBlock:        Cooler,
		PumpBlock:          Pump,
		FlashBlock:         Flash,
		AbsorberBlock:      Absorber,
		StripperBlock:      Stripper,
		HeatExchangerBlock: HeatExchanger,
		SinkBlock:          Sink,
	}
	f, ok := options[t]
	if !ok {
		return nil, fmt.Errorf("flowsim: unknown block type %q", t)
	}
	return f, nil
}

// fatalFinding builds the result and error for a diagnostic that
// aborts the run.
func fatalFinding(fd Finding) (*BlockResult, error) {
	fd.Fatal = true
	return &BlockResult{Findings: []Finding{fd}}, fmt.Errorf("flowsim: %s", fd.String())
}

// paramFatal wraps a parameter lookup error as a fatal diagnostic.
func paramFatal(b *Block, err error) (*BlockResult, error) {
	return fatalFinding(Finding{Category: Parameter, Message: err.Error(), Block: b.ID})
}

// inlet returns the stream on the named input port, or a fatal
// connectivity diagnostic when it is unresolved.
func inlet(in *BlockInput, port string) (*Stream, *BlockResult, error) {
	s, ok := in.Streams[port]
	if !ok || s == nil {
		res, err := fatalFinding(Finding{
			Category: Connectivity,
			Message:  fmt.Sprintf("input port %q has no stream", port),
			Block:    in.Block.ID,
		})
		return nil, res, err
	}
	return s, nil, nil
}

// skipMissing builds the warn-and-skip result for a block whose
// named input port is unresolved, used by the blocks that tolerate
// partial wiring.
func skipMissing(b *Block, port string) *BlockResult {
	return &BlockResult{
		Skipped: true,
		Findings: []Finding{{
			Category: Connectivity,
			Message:  fmt.Sprintf("skipped: input port %q has no stream", port),
			Block:    b.ID,
		}},
	}
}

// Feed creates the outlet stream of a feed block from its
// temperature, pressure, flow, and composition parameters.
func Feed(in *BlockInput) (*BlockResult, error) {
	p := in.Block.Params
	compStr, err := p.String("composition", "")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if compStr == "" {
		return paramFatal(in.Block, fmt.Errorf("missing required parameter %q", "composition"))
	}
	z, err := parseComposition(compStr)
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if sum := z.Sum(); math.Abs(sum-1.) > compositionTolerance {
		return fatalFinding(Finding{
			Category: Composition,
			Message:  fmt.Sprintf("mole fractions sum to %g, want 1 within %g", sum, compositionTolerance),
			Block:    in.Block.ID,
		})
	}
	z = z.Normalize()
	T, err := p.Temperature("temperature")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	P, err := p.Pressure("pressure")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	F, err := p.Flow("flow", in.DB.MeanMolecularWeight(z))
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if T <= 0 || P <= 0 || F < 0 {
		return fatalFinding(Finding{
			Category: Physical,
			Message:  fmt.Sprintf("feed state out of range: T=%g K, P=%g Pa, flow=%g kmol/h", T, P, F),
			Block:    in.Block.ID,
		})
	}
	s := &Stream{T: T, P: P, Flow: F, Comp: z}
	s.derive(in.DB)
	phase, err := p.String("phase", "")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	switch phase {
	case "":
	case "vapor", "V":
		s.Phase, s.VaporFrac = thermo.Vapor, 1.
	case "liquid", "L":
		s.Phase, s.VaporFrac = thermo.Liquid, 0.
	default:
		return paramFatal(in.Block, fmt.Errorf("parameter %q: unknown phase %q", "phase", phase))
	}
	return &BlockResult{Streams: map[string]*Stream{"out": s}}, nil
}

// Mixer combines its inlet streams adiabatically: total flow and
// component moles are summed, the outlet pressure is the minimum
// inlet pressure, and the outlet temperature solves the mixed
// enthalpy balance.
func Mixer(in *BlockInput) (*BlockResult, error) {
	ports := make([]string, 0, len(in.Streams))
	for name, s := range in.Streams {
		if s != nil {
			ports = append(ports, name)
		}
	}
	sort.Strings(ports)
	if len(ports) == 0 {
		res, err := fatalFinding(Finding{
			Category: Connectivity,
			Message:  "no inlet streams",
			Block:    in.Block.ID,
		})
		return res, err
	}
	if len(ports) == 1 {
		return &BlockResult{Streams: map[string]*Stream{"out": in.Streams[ports[0]].Clone()}}, nil
	}

	var flow, hmix, tguess float64
	pmin := math.Inf(1)
	moles := make(thermo.Composition)
	for _, name := range ports {
		s := in.Streams[name]
		flow += s.Flow
		hmix += s.Flow * s.H
		tguess += s.Flow * s.T
		for id, x := range s.Comp {
			moles[id] += s.Flow * x
		}
		if s.Flow > 0 && s.P < pmin {
			pmin = s.P
		}
	}
	if flow <= 0 {
		// All inlets are empty, as happens on the first sweep of a
		// recycle loop seeded with zero flow.
		out := &Stream{T: thermo.TRef, P: thermo.PAtm, Comp: make(thermo.Composition)}
		return &BlockResult{Streams: map[string]*Stream{"out": out}}, nil
	}
	hmix /= flow
	tguess /= flow
	comp := moles.Normalize()

	var findings []Finding
	T, ok := solveTemperature(in.DB, comp, hmix, pmin, tguess)
	if !ok {
		findings = append(findings, Finding{
			Category: Convergence,
			Message:  fmt.Sprintf("outlet temperature iteration stopped at %d iterations", temperatureMaxIter),
			Block:    in.Block.ID,
		})
	}
	out := &Stream{T: T, P: pmin, Flow: flow, Comp: comp}
	out.derive(in.DB)
	return &BlockResult{Streams: map[string]*Stream{"out": out}, Findings: findings}, nil
}

const (
	temperatureMaxIter   = 20
	temperatureTolerance = 0.001 // kJ/mol
	temperatureStep      = 0.01  // K
	minTemperature       = 100.  // K
	maxTemperature       = 1000. // K
)

// solveTemperature finds the temperature at which the mixture's molar
// enthalpy equals target (kJ/mol) by Newton iteration with a finite
// difference derivative, reporting whether it converged.
func solveTemperature(db *thermo.ComponentDB, z thermo.Composition, target, P, guess float64) (float64, bool) {
	T := math.Min(math.Max(guess, minTemperature), maxTemperature)
	for i := 0; i < temperatureMaxIter; i++ {
		r := db.MixtureEnthalpy(z, T, P) - target
		if math.Abs(r) < temperatureTolerance {
			return T, true
		}
		d := (db.MixtureEnthalpy(z, T+temperatureStep, P) - r - target) / temperatureStep
		if d == 0 {
			return T, false
		}
		T -= r / d
		T = math.Min(math.Max(T, minTemperature), maxTemperature)
	}
	return T, false
}

// Splitter divides its inlet into two outlets by mole fraction,
// leaving the intensive state unchanged.
func Splitter(in *BlockInput) (*BlockResult, error) {
	s, res, err := inlet(in, "in")
	if err != nil {
		return res, err
	}
	frac, err := in.Block.Params.Number("fraction", 0.5)
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if frac < 0 || frac > 1 {
		return paramFatal(in.Block, fmt.Errorf("parameter %q: split fraction %g outside [0, 1]", "fraction", frac))
	}
	out1 := s.Clone()
	out1.Flow = s.Flow * frac
	out2 := s.Clone()
	out2.Flow = s.Flow * (1. - frac)
	return &BlockResult{Streams: map[string]*Stream{"out1": out1, "out2": out2}}, nil
}

// Heater raises its inlet to a target outlet temperature and reports
// the heat duty required.
func Heater(in *BlockInput) (*BlockResult, error) {
	return exchangeToTarget(in, 1.)
}

// Cooler lowers its inlet to a target outlet temperature and reports
// the (negative) heat duty required.
func Cooler(in *BlockInput) (*BlockResult, error) {
	return exchangeToTarget(in, -1.)
}

func exchangeToTarget(in *BlockInput, sign float64) (*BlockResult, error) {
	s, res, err := inlet(in, "in")
	if err != nil {
		return res, err
	}
	tout, err := in.Block.Params.Temperature("Tout")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if sign > 0 && tout <= s.T {
		return fatalFinding(Finding{
			Category: Physical,
			Message:  fmt.Sprintf("outlet temperature %g K is not above the inlet temperature %g K", tout, s.T),
			Block:    in.Block.ID,
		})
	}
	if sign < 0 && tout >= s.T {
		return fatalFinding(Finding{
			Category: Physical,
			Message:  fmt.Sprintf("outlet temperature %g K is not below the inlet temperature %g K", tout, s.T),
			Block:    in.Block.ID,
		})
	}
	out := s.Clone()
	out.T = tout
	out.derive(in.DB)
	duty := unit.Mul(molarFlow(s.Flow), molarEnergy(out.H-s.H))
	if err := duty.Check(unit.Watt); err != nil {
		return nil, fmt.Errorf("flowsim: %s duty: %v", in.Block.Type, err)
	}
	return &BlockResult{Streams: map[string]*Stream{"out": out}, Duty: duty}, nil
}

// Pump raises its inlet pressure by dP at a fixed hydraulic
// efficiency and reports the shaft power drawn. The inlet is treated
// as liquid; the work added to the stream enthalpy is neglected.
func Pump(in *BlockInput) (*BlockResult, error) {
	s, res, err := inlet(in, "in")
	if err != nil {
		return res, err
	}
	p := in.Block.Params
	dP, err := p.Pressure("dP")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if dP <= 0 {
		return paramFatal(in.Block, fmt.Errorf("parameter %q: pressure rise must be positive, have %g Pa", "dP", dP))
	}
	eff, err := p.Number("efficiency", defaultPumpEfficiency)
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if eff <= 0 || eff > 1 {
		return paramFatal(in.Block, fmt.Errorf("parameter %q: efficiency %g outside (0, 1]", "efficiency", eff))
	}
	mw := in.DB.MeanMolecularWeight(s.Comp)
	rho := in.DB.Density(s.Comp, s.T, s.P, thermo.Liquid)
	massFlow := unit.New(s.Flow*mw/3600., massFlowUnits)
	volFlow := unit.Div(massFlow, unit.New(rho, unit.KilogramPerMeter3))
	if err := volFlow.Check(unit.Meter3PerSecond); err != nil {
		return nil, fmt.Errorf("flowsim: pump flow: %v", err)
	}
	power := unit.Div(unit.Mul(volFlow, unit.New(dP, unit.Pascal)), unit.New(eff, unit.Dimless))
	if err := power.Check(unit.Watt); err != nil {
		return nil, fmt.Errorf("flowsim: pump power: %v", err)
	}
	out := s.Clone()
	out.P += dP
	out.Phase, out.VaporFrac = thermo.Liquid, 0.
	return &BlockResult{Streams: map[string]*Stream{"out": out}, Power: power}, nil
}

// Flash equilibrates its inlet at a specified temperature and
// pressure and splits it into vapor and liquid product streams. A
// single-phase result still produces both streams, with a trace flow
// fabricated on the empty side.
func Flash(in *BlockInput) (*BlockResult, error) {
	s, res, err := inlet(in, "in")
	if err != nil {
		return res, err
	}
	p := in.Block.Params
	T, err := p.Temperature("T")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	P, err := p.Pressure("P")
	if err != nil {
		return paramFatal(in.Block, err)
	}
	if T <= 0 || P <= 0 {
		return fatalFinding(Finding{
			Category: Physical,
			Message:  fmt.Sprintf("flash state out of range: T=%g K, P=%g Pa", T, P),
			Block:    in.Block.ID,
		})
	}
	fr := in.DB.Flash(s.Comp, T, P)
	var findings []Finding
	if !fr.Converged {
		findings = append(findings, Finding{
			Category: Convergence,
			Message:  "vapor fraction iteration stopped at its iteration cap",
			Block:    in.Block.ID,
		})
	}
	var fv, fl float64
	switch fr.Phase {
	case thermo.Vapor:
		fl = TraceFlow
		if s.Flow < 2.*TraceFlow {
			fl = s.Flow / 2.
		}
		fv = s.Flow - fl
	case thermo.Liquid:
		fv = TraceFlow
		if s.Flow < 2.*TraceFlow {
			fv = s.Flow / 2.
		}
		fl = s.Flow - fv
	default:
		fv = s.Flow * fr.V
		fl = s.Flow - fv
	}
	vap := &Stream{T: T, P: P, Flow: fv, Comp: fr.Vapor,
		Phase: thermo.Vapor, VaporFrac: 1., H: in.DB.MixtureEnthalpy(fr.Vapor, T, P)}
	liq := &Stream{T: T, P: P, Flow: fl, Comp: fr.Liquid,
		Phase: thermo.Liquid, VaporFrac: 0., H: in.DB.MixtureEnthalpy(fr.Liquid, T, P)}
	return &BlockResult{
		Streams:  map[string]*Stream{"vapor": vap, "liquid": liq},
		Findings: findings,
	}, nil
}

// Sink terminates a stream. It produces nothing; an unconnected sink
// is skipped with a warning.
func Sink(in *BlockInput) (*BlockResult, error) {
	if s, ok := in.Streams["in"]; !ok || s == nil {
		return skipMissing(in.Block, "in"), nil
	}
	return &BlockResult{}, nil
}
