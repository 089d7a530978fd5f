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
	"encoding/json"
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

func TestParamValueJSON(t *testing.T) {
	cases := []struct {
		in   string
		want ParamValue
	}{
		{`42.5`, ParamValue{Kind: NumberParam, Value: 42.5}},
		{`"CO2"`, ParamValue{Kind: StringParam, Str: "CO2"}},
		{`true`, ParamValue{Kind: BoolParam, Bool: true}},
		{`{"kind":"quantity","value":40,"unit":"degC"}`, ParamValue{Kind: QuantityParam, Value: 40, Unit: "degC"}},
		{`{"kind":"integer","value":3}`, ParamValue{Kind: IntegerParam, Int: 3}},
		{`{"kind":"choice","value":"wegstein"}`, ParamValue{Kind: ChoiceParam, Str: "wegstein"}},
	}
	for _, c := range cases {
		var have ParamValue
		if err := json.Unmarshal([]byte(c.in), &have); err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if have != c.want {
			t.Errorf("%s: have %+v, want %+v", c.in, have, c.want)
		}
		// The tagged object form round-trips.
		b, err := json.Marshal(&have)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		var again ParamValue
		if err := json.Unmarshal(b, &again); err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if again != c.want {
			t.Errorf("%s: round trip: have %+v, want %+v", c.in, again, c.want)
		}
	}

	var bad ParamValue
	if err := json.Unmarshal([]byte(`{"kind":"matrix","value":1}`), &bad); err == nil {
		t.Error("an unknown parameter kind should be rejected")
	}
}

func TestParamsTemperature(t *testing.T) {
	p := Params{
		"a": &ParamValue{Kind: QuantityParam, Value: 25, Unit: "degC"},
		"b": &ParamValue{Kind: QuantityParam, Value: 212, Unit: "degF"},
		"c": &ParamValue{Kind: NumberParam, Value: 313.15},
		"d": &ParamValue{Kind: StringParam, Str: "hot"},
	}
	if have, err := p.Temperature("a"); err != nil || different(have, 298.15, testTolerance) {
		t.Errorf("degC: have %g (%v), want 298.15", have, err)
	}
	if have, err := p.Temperature("b"); err != nil || different(have, 373.15, testTolerance) {
		t.Errorf("degF: have %g (%v), want 373.15", have, err)
	}
	if have, err := p.Temperature("c"); err != nil || different(have, 313.15, testTolerance) {
		t.Errorf("bare number: have %g (%v), want 313.15", have, err)
	}
	if _, err := p.Temperature("d"); err == nil {
		t.Error("a string parameter is not a temperature")
	}
	if _, err := p.Temperature("missing"); err == nil {
		t.Error("a missing required parameter should be an error")
	}
}

func TestParamsPressure(t *testing.T) {
	p := Params{
		"bar": &ParamValue{Kind: QuantityParam, Value: 1.05, Unit: "bar"},
		"atm": &ParamValue{Kind: QuantityParam, Value: 1, Unit: "atm"},
		"psi": &ParamValue{Kind: QuantityParam, Value: 14.7, Unit: "psi"},
		"pa":  &ParamValue{Kind: NumberParam, Value: 101000},
	}
	if have, err := p.Pressure("bar"); err != nil || different(have, 105000, testTolerance) {
		t.Errorf("bar: have %g (%v), want 105000", have, err)
	}
	if have, err := p.Pressure("atm"); err != nil || different(have, 101325, testTolerance) {
		t.Errorf("atm: have %g (%v), want 101325", have, err)
	}
	if have, err := p.Pressure("psi"); err != nil || different(have, 14.7*6894.757, testTolerance) {
		t.Errorf("psi: have %g (%v)", have, err)
	}
	if have, err := p.Pressure("pa"); err != nil || different(have, 101000, testTolerance) {
		t.Errorf("bare number: have %g (%v), want 101000", have, err)
	}
}

func TestParamsFlow(t *testing.T) {
	p := Params{
		"molar": &ParamValue{Kind: QuantityParam, Value: 1000, Unit: "kmol/h"},
		"mass":  &ParamValue{Kind: QuantityParam, Value: 1800, Unit: "kg/h"},
	}
	if have, err := p.Flow("molar", 0); err != nil || different(have, 1000, testTolerance) {
		t.Errorf("kmol/h: have %g (%v), want 1000", have, err)
	}
	// 1800 kg/h of water at 18 kg/kmol is 100 kmol/h.
	if have, err := p.Flow("mass", 18); err != nil || different(have, 100, testTolerance) {
		t.Errorf("kg/h: have %g (%v), want 100", have, err)
	}
	if _, err := p.Flow("mass", 0); err == nil {
		t.Error("a mass flow without a molecular weight should be an error")
	}
}

func TestParamsDefaults(t *testing.T) {
	p := Params{}
	if have, err := p.Number("fraction", 0.5); err != nil || have != 0.5 {
		t.Errorf("have %g (%v), want the default 0.5", have, err)
	}
	if have, err := p.String("solute", "CO2"); err != nil || have != "CO2" {
		t.Errorf("have %q (%v), want the default CO2", have, err)
	}
	if have, err := p.Bool("bypass", true); err != nil || !have {
		t.Errorf("have %v (%v), want the default true", have, err)
	}
}

func TestParseComposition(t *testing.T) {
	z, err := parseComposition("CO2:0.13,N2:0.87")
	if err != nil {
		t.Fatal(err)
	}
	if different(z["CO2"], 0.13, testTolerance) || different(z["N2"], 0.87, testTolerance) {
		t.Errorf("have %v", z)
	}

	z, err = parseComposition(`{"H2O": 0.4, "CH4": 0.6}`)
	if err != nil {
		t.Fatal(err)
	}
	if different(z["H2O"], 0.4, testTolerance) || different(z["CH4"], 0.6, testTolerance) {
		t.Errorf("have %v", z)
	}

	for _, bad := range []string{"", "CO2", "CO2:abc", ":0.5"} {
		if _, err := parseComposition(bad); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}
