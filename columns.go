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

	"github.com/ctessum/unit"
	"github.com/processmodel/flowsim/thermo"
)

// The separation columns use fixed split efficiencies and temperature
// approaches rather than stage-by-stage equilibrium calculations.
const (
	absorberCapture      = 0.90
	absorberGasHeat      = 5.    // K
	absorberLiquidHeat   = 10.   // K
	absorberPressureDrop = 5000. // Pa

	stripperRecovery     = 0.95
	stripperPurity       = 0.98
	stripperOverheadHeat = 15. // K
	stripperBottomsHeat  = 20. // K

	exchangerEffectiveness = 0.80

	defaultSolute = "CO2"
)

// movedStream rebuilds a stream after transferring dmoles of one
// component into (positive) or out of (negative) it, at the given
// outlet conditions.
func movedStream(db *thermo.ComponentDB, s *Stream, id string, dmoles, T, P float64, phase thermo.Phase) *Stream {
	moles := make(thermo.Composition)
	for cid, x := range s.Comp {
		moles[cid] = s.Flow * x
	}
	moles[id] += dmoles
	if moles[id] <= 0 {
		delete(moles, id)
	}
	var flow float64
	for _, m := range moles {
		flow += m
	}
	out := &Stream{T: T, P: P, Flow: flow, Comp: moles.Normalize(), Phase: phase}
	if phase == thermo.Vapor {
		out.VaporFrac = 1.
	}
	out.H = db.MixtureEnthalpy(out.Comp, T, P)
	return out
}

// Absorber transfers a fixed fraction of a solute from its gas inlet
// into its liquid inlet. The gas warms slightly and loses some
// pressure; the solvent warms more and keeps its pressure. If either
// inlet is unresolved the block is skipped with a warning.
func Absorber(in *BlockInput) (*BlockResult, error) {
	gas, ok := in.Streams["gasIn"]
	if !ok || gas == nil {
		return skipMissing(in.Block, "gasIn"), nil
	}
	liq, ok := in.Streams["liquidIn"]
	if !ok || liq == nil {
		return skipMissing(in.Block, "liquidIn"), nil
	}
	solute, err := in.Block.Params.String("solute", defaultSolute)
	if err != nil {
		return paramFatal(in.Block, err)
	}
	transfer := absorberCapture * gas.moles(solute)
	gasOut := movedStream(in.DB, gas, solute, -transfer,
		gas.T+absorberGasHeat, gas.P-absorberPressureDrop, thermo.Vapor)
	liquidOut := movedStream(in.DB, liq, solute, transfer,
		liq.T+absorberLiquidHeat, liq.P, thermo.Liquid)
	return &BlockResult{Streams: map[string]*Stream{
		"gasOut":    gasOut,
		"liquidOut": liquidOut,
	}}, nil
}

// Stripper recovers a fixed fraction of the solute in its feed into a
// high-purity overhead vapor, leaving a renormalized bottoms liquid.
// The reboiler duty is the enthalpy difference between the products
// and the feed. If the feed is unresolved the block is skipped with a
// warning.
func Stripper(in *BlockInput) (*BlockResult, error) {
	feed, ok := in.Streams["in"]
	if !ok || feed == nil {
		return skipMissing(in.Block, "in"), nil
	}
	solute, err := in.Block.Params.String("solute", defaultSolute)
	if err != nil {
		return paramFatal(in.Block, err)
	}
	stripped := stripperRecovery * feed.moles(solute)

	// The overhead carries the solute at fixed purity, with the
	// feed's most abundant other component making up the balance.
	carrier := ""
	var xc float64
	for id, x := range feed.Comp {
		if id != solute && x > xc {
			carrier, xc = id, x
		}
	}
	ovFlow := stripped / stripperPurity
	carrierMoles := ovFlow * (1. - stripperPurity)
	if carrier == "" {
		ovFlow = stripped
		carrierMoles = 0
	} else if avail := feed.moles(carrier); carrierMoles > avail {
		// A nearly pure solute feed cannot supply the full carrier
		// slip; the overhead comes out purer instead.
		carrierMoles = avail
		ovFlow = stripped + carrierMoles
	}
	ovComp := thermo.Composition{solute: 1.}
	if ovFlow > 0 && carrierMoles > 0 {
		ovComp = thermo.Composition{
			solute:  stripped / ovFlow,
			carrier: carrierMoles / ovFlow,
		}
	}

	moles := make(thermo.Composition)
	for id, x := range feed.Comp {
		moles[id] = feed.Flow * x
	}
	moles[solute] -= stripped
	if carrier != "" {
		moles[carrier] -= carrierMoles
	}
	var bFlow float64
	for id, m := range moles {
		if m <= 0 {
			delete(moles, id)
			continue
		}
		bFlow += m
	}

	overhead := &Stream{T: feed.T + stripperOverheadHeat, P: feed.P,
		Flow: ovFlow, Comp: ovComp, Phase: thermo.Vapor, VaporFrac: 1.}
	overhead.H = in.DB.MixtureEnthalpy(ovComp, overhead.T, overhead.P)
	bottoms := &Stream{T: feed.T + stripperBottomsHeat, P: feed.P,
		Flow: bFlow, Comp: moles.Normalize(), Phase: thermo.Liquid}
	bottoms.H = in.DB.MixtureEnthalpy(bottoms.Comp, bottoms.T, bottoms.P)

	duty := unit.Sub(
		unit.Add(
			unit.Mul(molarFlow(overhead.Flow), molarEnergy(overhead.H)),
			unit.Mul(molarFlow(bottoms.Flow), molarEnergy(bottoms.H)),
		),
		unit.Mul(molarFlow(feed.Flow), molarEnergy(feed.H)),
	)
	if err := duty.Check(unit.Watt); err != nil {
		return nil, fmt.Errorf("flowsim: stripper duty: %v", err)
	}
	return &BlockResult{
		Streams: map[string]*Stream{"overhead": overhead, "bottoms": bottoms},
		Duty:    duty,
	}, nil
}

// HeatExchanger moves heat from its hot inlet to its cold inlet with
// a fixed effectiveness applied to the inlet temperature approach.
// The recovered duty is internal to the flowsheet and does not count
// toward the utility KPIs. If either inlet is unresolved the block is
// skipped with a warning.
func HeatExchanger(in *BlockInput) (*BlockResult, error) {
	hot, ok := in.Streams["hotIn"]
	if !ok || hot == nil {
		return skipMissing(in.Block, "hotIn"), nil
	}
	cold, ok := in.Streams["coldIn"]
	if !ok || cold == nil {
		return skipMissing(in.Block, "coldIn"), nil
	}
	if hot.T <= cold.T {
		return &BlockResult{
			Skipped: true,
			Findings: []Finding{{
				Category: Physical,
				Message: fmt.Sprintf("skipped: hot inlet at %g K is not above cold inlet at %g K",
					hot.T, cold.T),
				Block: in.Block.ID,
			}},
		}, nil
	}
	dT := exchangerEffectiveness * (hot.T - cold.T)
	hotOut := hot.Clone()
	hotOut.T = hot.T - dT
	hotOut.derive(in.DB)
	coldOut := cold.Clone()
	coldOut.T = cold.T + dT
	coldOut.derive(in.DB)
	duty := unit.Mul(molarFlow(hot.Flow), molarEnergy(hot.H-hotOut.H))
	if err := duty.Check(unit.Watt); err != nil {
		return nil, fmt.Errorf("flowsim: exchanger duty: %v", err)
	}
	return &BlockResult{
		Streams: map[string]*Stream{"hotOut": hotOut, "coldOut": coldOut},
		Duty:    duty,
	}, nil
}
