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

package thermo

import (
	"math"
	"testing"
)

const testTolerance = 1.e-8

// different reports whether a and b are different beyond the given
// relative tolerance.
func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

func comp(t *testing.T, id string) *Component {
	t.Helper()
	c, ok := DefaultDB().Component(id)
	if !ok {
		t.Fatalf("component %s missing from default registry", id)
	}
	return c
}

func TestHeatCapacity(t *testing.T) {
	// Literature ideal-gas heat capacities at 298.15 K [J/mol/K].
	cases := []struct {
		id   string
		want float64
	}{
		{"N2", 29.1},
		{"O2", 29.4},
		{"CO2", 37.1},
		{"H2O", 33.6},
		{"CH4", 35.7},
	}
	for _, c := range cases {
		have := comp(t, c.id).HeatCapacity(298.15)
		if different(have, c.want, 0.02) {
			t.Errorf("%s: have %g, want %g", c.id, have, c.want)
		}
	}
	// A monatomic gas has a temperature-independent heat capacity.
	ar := comp(t, "Ar")
	if different(ar.HeatCapacity(200), ar.HeatCapacity(1200), testTolerance) {
		t.Errorf("Ar heat capacity should not vary with temperature")
	}
}

func TestEnthalpyAtReference(t *testing.T) {
	// At the reference temperature the integral term vanishes and the
	// enthalpy equals the heat of formation.
	db := DefaultDB()
	for _, id := range db.IDs() {
		c, _ := db.Component(id)
		if have := c.Enthalpy(TRef); absDifferent(have, c.Hf, 1.e-9) {
			t.Errorf("%s: have %g, want %g", id, have, c.Hf)
		}
	}
}

func TestEnthalpyIntegral(t *testing.T) {
	// Over a 50 K span the closed-form integral should agree with a
	// midpoint-rule estimate to well under a tenth of a percent.
	c := comp(t, "N2")
	have := c.Enthalpy(400) - c.Enthalpy(350)
	want := c.HeatCapacity(375) * 50 / 1000
	if different(have, want, 1.e-3) {
		t.Errorf("have %g, want %g", have, want)
	}
}

func TestVaporPressureAtBoilingPoint(t *testing.T) {
	// The Clausius–Clapeyron curve is anchored so that the saturation
	// pressure at the normal boiling point is exactly atmospheric.
	db := DefaultDB()
	for _, id := range db.IDs() {
		c, _ := db.Component(id)
		if have := c.VaporPressure(c.Tb); different(have, PAtm, testTolerance) {
			t.Errorf("%s: have %g, want %g", id, have, PAtm)
		}
	}
}

func TestVaporPressureClamp(t *testing.T) {
	if have := comp(t, "N2").VaporPressure(1000); have != maxVaporPressure {
		t.Errorf("have %g, want %g", have, maxVaporPressure)
	}
	if have := comp(t, "MEA").VaporPressure(150); have != minVaporPressure {
		t.Errorf("have %g, want %g", have, minVaporPressure)
	}
}

func TestKValueUnknownComponent(t *testing.T) {
	// Unknown components degrade to a default equilibrium ratio so the
	// run can complete.
	if have := DefaultDB().KValue("unobtainium", 300, 1.e5); have != KUnknown {
		t.Errorf("have %g, want %g", have, KUnknown)
	}
}

func TestMixtureEnthalpy(t *testing.T) {
	db := DefaultDB()
	n2 := comp(t, "N2")
	o2 := comp(t, "O2")
	z := Composition{"N2": 0.79, "O2": 0.21}
	want := 0.79*n2.Enthalpy(400) + 0.21*o2.Enthalpy(400)
	if have := db.MixtureEnthalpy(z, 400, PAtm); different(have, want, testTolerance) {
		t.Errorf("have %g, want %g", have, want)
	}

	// Unknown components contribute nothing.
	z = Composition{"N2": 0.5, "unobtainium": 0.5}
	want = 0.5 * n2.Enthalpy(400)
	if have := db.MixtureEnthalpy(z, 400, PAtm); different(have, want, testTolerance) {
		t.Errorf("with unknown component: have %g, want %g", have, want)
	}
}

func TestDensity(t *testing.T) {
	db := DefaultDB()
	z := Composition{"N2": 1}
	// Ideal-gas nitrogen at standard conditions.
	if have := db.Density(z, 298.15, PAtm, Vapor); different(have, 1.145, 1.e-3) {
		t.Errorf("vapor: have %g, want %g", have, 1.145)
	}
	if have := db.Density(z, 298.15, PAtm, Liquid); have != liquidDensity {
		t.Errorf("liquid: have %g, want %g", have, liquidDensity)
	}
}

func TestMeanMolecularWeight(t *testing.T) {
	db := DefaultDB()
	z := Composition{"CO2": 0.13, "N2": 0.87}
	want := 0.13*44.010 + 0.87*28.014
	if have := db.MeanMolecularWeight(z); different(have, want, testTolerance) {
		t.Errorf("have %g, want %g", have, want)
	}
}

func TestDeterminePhase(t *testing.T) {
	db := DefaultDB()

	phase, V := db.DeterminePhase(Composition{"CO2": 0.13, "N2": 0.87}, 313.15, 101000)
	if phase != Vapor || V != 1 {
		t.Errorf("flue gas: have %v (V=%g), want %v", phase, V, Vapor)
	}

	phase, V = db.DeterminePhase(Composition{"H2O": 1}, 298.15, PAtm)
	if phase != Liquid || V != 0 {
		t.Errorf("water: have %v (V=%g), want %v", phase, V, Liquid)
	}

	phase, V = db.DeterminePhase(Composition{"H2O": 0.5, "N2": 0.5}, 298.15, PAtm)
	if phase != VaporLiquid {
		t.Errorf("wet nitrogen: have %v, want %v", phase, VaporLiquid)
	}
	if V <= liquidBoundary || V >= vaporBoundary {
		t.Errorf("wet nitrogen: vapor fraction %g outside two-phase range", V)
	}
}

func TestCompositionNormalize(t *testing.T) {
	z := Composition{"A": 2, "B": 6}
	n := z.Normalize()
	if different(n["A"], 0.25, testTolerance) || different(n["B"], 0.75, testTolerance) {
		t.Errorf("have %v, want {A:0.25 B:0.75}", n)
	}
	if z["A"] != 2 {
		t.Error("Normalize should not modify its receiver")
	}
	if have := n.Sum(); different(have, 1, testTolerance) {
		t.Errorf("have %g, want 1", have)
	}
}
