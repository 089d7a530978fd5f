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

// rachfordRiceResidual evaluates the flash equation at V.
func rachfordRiceResidual(z Composition, K map[string]float64, V float64) float64 {
	var r float64
	for id, zi := range z {
		km1 := K[id] - 1
		r += zi * km1 / (1 + V*km1)
	}
	return r
}

func TestRachfordRice(t *testing.T) {
	z := Composition{"A": 0.5, "B": 0.5}
	K := map[string]float64{"A": 2.0, "B": 0.5}

	V, converged := RachfordRice(z, K)
	if !converged {
		t.Error("solver should converge")
	}
	if V < 0 || V > 1 {
		t.Errorf("vapor fraction %g outside [0,1]", V)
	}
	if r := rachfordRiceResidual(z, K, V); math.Abs(r) >= 1.e-6 {
		t.Errorf("residual %g should be smaller than 1e-6", r)
	}
	// This symmetric system has the analytic solution V=1/2.
	if different(V, 0.5, 1.e-5) {
		t.Errorf("have %g, want %g", V, 0.5)
	}
}

func TestRachfordRiceCapped(t *testing.T) {
	// With every K above one there is no root in [0,1]; the solver
	// must report non-convergence instead of hiding it.
	z := Composition{"A": 0.5, "B": 0.5}
	K := map[string]float64{"A": 2.0, "B": 3.0}

	V, converged := RachfordRice(z, K)
	if converged {
		t.Error("solver should report non-convergence")
	}
	if V != 1 {
		t.Errorf("have %g, want clamp at 1", V)
	}
}

func TestFlashCompositionRoundTrip(t *testing.T) {
	cases := []struct {
		z Composition
		K map[string]float64
	}{
		{
			Composition{"A": 0.5, "B": 0.5},
			map[string]float64{"A": 2.0, "B": 0.5},
		},
		{
			Composition{"A": 0.3, "B": 0.45, "C": 0.25},
			map[string]float64{"A": 3.2, "B": 0.8, "C": 0.1},
		},
	}
	for i, c := range cases {
		V, converged := RachfordRice(c.z, c.K)
		if !converged {
			t.Fatalf("case %d: solver should converge", i)
		}
		liquid, vapor := FlashComposition(c.z, c.K, V)
		for id, zi := range c.z {
			if have := V*vapor[id] + (1-V)*liquid[id]; absDifferent(have, zi, 1.e-6) {
				t.Errorf("case %d %s: have %g, want %g", i, id, have, zi)
			}
		}
	}
}

func TestFlashSinglePhase(t *testing.T) {
	db := DefaultDB()

	// Flue gas far above every boiling point flashes to all vapor
	// without troubling the solver.
	res := db.Flash(Composition{"CO2": 0.13, "N2": 0.87}, 313.15, 101000)
	if res.Phase != Vapor {
		t.Errorf("have %v, want %v", res.Phase, Vapor)
	}
	if res.V != 1 {
		t.Errorf("have V=%g, want 1", res.V)
	}
	if !res.Converged {
		t.Error("single-phase classification should count as converged")
	}
	if have := res.Vapor.Sum(); different(have, 1, testTolerance) {
		t.Errorf("vapor composition sums to %g, want 1", have)
	}
	if have := res.Liquid.Sum(); different(have, 1, testTolerance) {
		t.Errorf("trace liquid composition sums to %g, want 1", have)
	}

	res = db.Flash(Composition{"H2O": 1}, 298.15, PAtm)
	if res.Phase != Liquid || res.V != 0 {
		t.Errorf("water: have %v (V=%g), want %v", res.Phase, res.V, Liquid)
	}
}

func TestFlashTwoPhase(t *testing.T) {
	db := DefaultDB()
	z := Composition{"H2O": 0.5, "N2": 0.5}
	res := db.Flash(z, 298.15, PAtm)
	if res.Phase != VaporLiquid {
		t.Errorf("have %v, want %v", res.Phase, VaporLiquid)
	}
	if !res.Converged {
		t.Error("solver should converge")
	}
	if res.V <= liquidBoundary || res.V >= vaporBoundary {
		t.Errorf("vapor fraction %g outside two-phase range", res.V)
	}
	// The phase compositions must satisfy the equilibrium relation
	// y = K x componentwise.
	for id := range z {
		K := db.KValue(id, 298.15, PAtm)
		if have, want := res.Vapor[id], K*res.Liquid[id]; different(have, want, 1.e-6) {
			t.Errorf("%s: have %g, want %g", id, have, want)
		}
	}
	// And reconstruct the feed.
	for id, zi := range z {
		if have := res.V*res.Vapor[id] + (1-res.V)*res.Liquid[id]; absDifferent(have, zi, 1.e-6) {
			t.Errorf("%s: have %g, want %g", id, have, zi)
		}
	}
}
