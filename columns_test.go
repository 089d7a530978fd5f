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
	"testing"

	"github.com/processmodel/flowsim/thermo"
)

func TestAbsorber(t *testing.T) {
	gas := testStream(313.15, 105000, 1000, thermo.Composition{"CO2": 0.13, "N2": 0.87})
	liq := testStream(313.15, 105000, 500, thermo.Composition{"H2O": 0.7, "MEA": 0.3})
	res, err := Absorber(testInput(AbsorberBlock, nil,
		map[string]*Stream{"gasIn": gas, "liquidIn": liq}))
	if err != nil {
		t.Fatal(err)
	}
	gasOut, liqOut := res.Streams["gasOut"], res.Streams["liquidOut"]

	// 90% of the CO2 moves from the gas into the solvent.
	transfer := 0.90 * gas.moles("CO2")
	if have := gas.moles("CO2") - gasOut.moles("CO2"); absDifferent(have, transfer, 1.e-6) {
		t.Errorf("have %g kmol/h removed from the gas, want %g", have, transfer)
	}
	if have := liqOut.moles("CO2"); absDifferent(have, transfer, 1.e-6) {
		t.Errorf("have %g kmol/h absorbed into the solvent, want %g", have, transfer)
	}
	// Total mass is conserved across the column.
	if absDifferent(gasOut.Flow+liqOut.Flow, 1500, 1.e-6) {
		t.Errorf("flows %g + %g should sum to 1500", gasOut.Flow, liqOut.Flow)
	}

	// Temperature approaches and gas-side pressure drop.
	if gasOut.T != gas.T+5 || liqOut.T != liq.T+10 {
		t.Errorf("have outlet temperatures %g/%g, want %g/%g",
			gasOut.T, liqOut.T, gas.T+5, liq.T+10)
	}
	if gasOut.P != gas.P-5000 || liqOut.P != liq.P {
		t.Errorf("have outlet pressures %g/%g, want %g/%g",
			gasOut.P, liqOut.P, gas.P-5000, liq.P)
	}
	if gasOut.Phase != thermo.Vapor || liqOut.Phase != thermo.Liquid {
		t.Errorf("have phases %v/%v, want V/L", gasOut.Phase, liqOut.Phase)
	}
}

func TestAbsorberSkipsOnMissingInlet(t *testing.T) {
	gas := testStream(313.15, 105000, 1000, thermo.Composition{"CO2": 0.13, "N2": 0.87})
	res, err := Absorber(testInput(AbsorberBlock, nil, map[string]*Stream{"gasIn": gas}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("an absorber without a solvent should be skipped")
	}
	if len(res.Findings) != 1 || res.Findings[0].Category != Connectivity || res.Findings[0].Fatal {
		t.Errorf("have findings %v, want one connectivity warning", res.Findings)
	}
}

func TestStripper(t *testing.T) {
	feed := testStream(380, 200000, 600, thermo.Composition{"CO2": 0.2, "H2O": 0.5, "MEA": 0.3})
	res, err := Stripper(testInput(StripperBlock, nil, map[string]*Stream{"in": feed}))
	if err != nil {
		t.Fatal(err)
	}
	ov, bot := res.Streams["overhead"], res.Streams["bottoms"]

	// 95% of the solute is recovered overhead at 98% purity.
	stripped := 0.95 * feed.moles("CO2")
	if have := ov.moles("CO2"); absDifferent(have, stripped, 1.e-6) {
		t.Errorf("have %g kmol/h CO2 overhead, want %g", have, stripped)
	}
	if different(ov.Comp["CO2"], 0.98, testTolerance) {
		t.Errorf("have overhead purity %g, want 0.98", ov.Comp["CO2"])
	}
	// The balance of the overhead is the most abundant other feed
	// component.
	if different(ov.Comp["H2O"], 0.02, testTolerance) {
		t.Errorf("have overhead x_H2O=%g, want 0.02", ov.Comp["H2O"])
	}

	// Mass conservation and bottoms renormalization.
	if absDifferent(ov.Flow+bot.Flow, 600, 1.e-6) {
		t.Errorf("flows %g + %g should sum to 600", ov.Flow, bot.Flow)
	}
	if different(bot.Comp.Sum(), 1, testTolerance) {
		t.Errorf("bottoms composition sums to %g", bot.Comp.Sum())
	}

	// Temperature approaches and phase tags.
	if ov.T != feed.T+15 || bot.T != feed.T+20 {
		t.Errorf("have outlet temperatures %g/%g, want %g/%g", ov.T, bot.T, feed.T+15, feed.T+20)
	}
	if ov.Phase != thermo.Vapor || bot.Phase != thermo.Liquid {
		t.Errorf("have phases %v/%v, want V/L", ov.Phase, bot.Phase)
	}

	// Heating the products above the feed takes reboiler duty.
	if res.Duty == nil || res.Duty.Value() <= 0 {
		t.Errorf("reboiler duty should be positive, have %v", res.Duty)
	}
}

func TestStripperPureSolute(t *testing.T) {
	// With no other component in the feed the overhead cannot carry a
	// carrier, so it is pure solute.
	feed := testStream(380, 200000, 100, thermo.Composition{"CO2": 1})
	res, err := Stripper(testInput(StripperBlock, nil, map[string]*Stream{"in": feed}))
	if err != nil {
		t.Fatal(err)
	}
	ov := res.Streams["overhead"]
	if different(ov.Comp["CO2"], 1, testTolerance) {
		t.Errorf("have overhead composition %v, want pure CO2", ov.Comp)
	}
	if absDifferent(ov.Flow, 95, 1.e-6) {
		t.Errorf("have overhead flow %g, want 95", ov.Flow)
	}
}

func TestStripperNearPureSolute(t *testing.T) {
	// The feed holds less carrier than the fixed overhead purity would
	// slip, so the carrier draw is capped at what is present and the
	// overhead comes out purer. The material balance must still close.
	feed := testStream(380, 200000, 1000, thermo.Composition{"CO2": 0.99, "N2": 0.01})
	res, err := Stripper(testInput(StripperBlock, nil, map[string]*Stream{"in": feed}))
	if err != nil {
		t.Fatal(err)
	}
	ov, bt := res.Streams["overhead"], res.Streams["bottoms"]
	if absDifferent(ov.Flow+bt.Flow, 1000, 1.e-9) {
		t.Errorf("flows %g + %g should sum to 1000", ov.Flow, bt.Flow)
	}
	if absDifferent(ov.Flow*ov.Comp["N2"], 10, 1.e-9) {
		t.Errorf("have %g kmol/h N2 overhead, want all 10 in the feed", ov.Flow*ov.Comp["N2"])
	}
	if ov.Comp["CO2"] < stripperPurity {
		t.Errorf("have overhead purity %g, want at least %g", ov.Comp["CO2"], stripperPurity)
	}
	if different(bt.Comp["CO2"], 1, testTolerance) || absDifferent(bt.Flow, 49.5, 1.e-9) {
		t.Errorf("have bottoms %g kmol/h of %v, want 49.5 of pure CO2", bt.Flow, bt.Comp)
	}
}

func TestStripperSkipsOnMissingInlet(t *testing.T) {
	res, err := Stripper(testInput(StripperBlock, nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("a stripper without a feed should be skipped")
	}
}

func TestHeatExchanger(t *testing.T) {
	hot := testStream(400, 150000, 100, thermo.Composition{"H2O": 1})
	cold := testStream(300, 150000, 100, thermo.Composition{"H2O": 1})
	res, err := HeatExchanger(testInput(HeatExchangerBlock, nil,
		map[string]*Stream{"hotIn": hot, "coldIn": cold}))
	if err != nil {
		t.Fatal(err)
	}
	hotOut, coldOut := res.Streams["hotOut"], res.Streams["coldOut"]

	// 80% effectiveness on a 100 K approach moves both outlets 80 K.
	if absDifferent(hotOut.T, 320, 1.e-9) || absDifferent(coldOut.T, 380, 1.e-9) {
		t.Errorf("have outlet temperatures %g/%g, want 320/380", hotOut.T, coldOut.T)
	}
	if hotOut.Flow != hot.Flow || coldOut.Flow != cold.Flow {
		t.Error("the exchanger must not change the flows")
	}
	if res.Duty == nil || res.Duty.Value() <= 0 {
		t.Errorf("recovered duty should be positive, have %v", res.Duty)
	}
}

func TestHeatExchangerNoApproach(t *testing.T) {
	hot := testStream(300, 150000, 100, thermo.Composition{"H2O": 1})
	cold := testStream(350, 150000, 100, thermo.Composition{"H2O": 1})
	res, err := HeatExchanger(testInput(HeatExchangerBlock, nil,
		map[string]*Stream{"hotIn": hot, "coldIn": cold}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("an exchanger with an inverted approach should be skipped")
	}
	if len(res.Findings) != 1 || res.Findings[0].Category != Physical {
		t.Errorf("have findings %v, want one physical warning", res.Findings)
	}
}

func TestHeatExchangerSkipsOnMissingInlet(t *testing.T) {
	cold := testStream(300, 150000, 100, thermo.Composition{"H2O": 1})
	res, err := HeatExchanger(testInput(HeatExchangerBlock, nil,
		map[string]*Stream{"coldIn": cold}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("an exchanger without a hot inlet should be skipped")
	}
}
