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
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
	"github.com/processmodel/flowsim/thermo"
)

var (
	// amount is the amount-of-substance dimension. The unit library
	// reserves the "mol" symbol for its own base dimensions, so molar
	// quantities here carry their own.
	amount = unit.NewDimension("kmol")

	molarFlowUnits   = unit.Dimensions{amount: 1, unit.TimeDim: -1}
	molarEnergyUnits = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2, amount: -1}
	massFlowUnits    = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -1}
)

// molarFlow converts a flow in kmol/h to an SI amount flow.
func molarFlow(kmolPerHour float64) *unit.Unit {
	return unit.New(kmolPerHour/3600., molarFlowUnits)
}

// molarEnergy converts a molar enthalpy in kJ/mol to SI units
// per kmol, so that multiplying by a molarFlow yields watts.
func molarEnergy(kJPerMol float64) *unit.Unit {
	return unit.New(kJPerMol*1.0e6, molarEnergyUnits)
}

// ParamKind discriminates the variants of a ParamValue.
type ParamKind int

const (
	// QuantityParam is a physical quantity with a unit string.
	QuantityParam ParamKind = iota + 1
	// NumberParam is a dimensionless number.
	NumberParam
	// IntegerParam is an integer count.
	IntegerParam
	// StringParam is free text.
	StringParam
	// BoolParam is a flag.
	BoolParam
	// ChoiceParam is a selection from an enumerated set.
	ChoiceParam
)

var paramKindNames = map[string]ParamKind{
	"quantity": QuantityParam,
	"number":   NumberParam,
	"integer":  IntegerParam,
	"string":   StringParam,
	"boolean":  BoolParam,
	"choice":   ChoiceParam,
}

func (k ParamKind) String() string {
	for name, kind := range paramKindNames {
		if kind == k {
			return name
		}
	}
	panic(fmt.Errorf("flowsim: invalid parameter kind %d", int(k)))
}

// ParamValue is a closed tagged union over the value types a block
// parameter can hold. In JSON it is either a bare scalar, which is
// taken as a number, string, or boolean, or an object of the form
// {"kind": "quantity", "value": 40, "unit": "degC"}.
type ParamValue struct {
	Kind ParamKind
	// Value holds QuantityParam and NumberParam values.
	Value float64
	// Int holds IntegerParam values.
	Int int
	// Str holds StringParam and ChoiceParam values.
	Str string
	// Bool holds BoolParam values.
	Bool bool
	// Unit is the unit string of a QuantityParam, for example "degC",
	// "bar", or "kg/h". Empty means the base unit (K, Pa, kmol/h).
	Unit string
}

type paramValueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ParamValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if !strings.HasPrefix(s, "{") {
		// A bare scalar.
		var num float64
		if err := json.Unmarshal(b, &num); err == nil {
			*p = ParamValue{Kind: NumberParam, Value: num}
			return nil
		}
		var str string
		if err := json.Unmarshal(b, &str); err == nil {
			*p = ParamValue{Kind: StringParam, Str: str}
			return nil
		}
		var flag bool
		if err := json.Unmarshal(b, &flag); err == nil {
			*p = ParamValue{Kind: BoolParam, Bool: flag}
			return nil
		}
		return fmt.Errorf("flowsim: cannot parse parameter value %s", s)
	}
	var pj paramValueJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return fmt.Errorf("flowsim: parsing parameter value: %v", err)
	}
	kind, ok := paramKindNames[pj.Kind]
	if !ok {
		return fmt.Errorf("flowsim: unknown parameter kind %q", pj.Kind)
	}
	v := ParamValue{Kind: kind, Unit: pj.Unit}
	var err error
	switch kind {
	case QuantityParam, NumberParam:
		err = json.Unmarshal(pj.Value, &v.Value)
	case IntegerParam:
		err = json.Unmarshal(pj.Value, &v.Int)
	case StringParam, ChoiceParam:
		err = json.Unmarshal(pj.Value, &v.Str)
	case BoolParam:
		err = json.Unmarshal(pj.Value, &v.Bool)
	}
	if err != nil {
		return fmt.Errorf("flowsim: parsing %s parameter value: %v", pj.Kind, err)
	}
	*p = v
	return nil
}

// MarshalJSON implements json.Marshaler, always emitting the tagged
// object form.
func (p *ParamValue) MarshalJSON() ([]byte, error) {
	pj := paramValueJSON{Kind: p.Kind.String(), Unit: p.Unit}
	var err error
	switch p.Kind {
	case QuantityParam, NumberParam:
		pj.Value, err = json.Marshal(p.Value)
	case IntegerParam:
		pj.Value, err = json.Marshal(p.Int)
	case StringParam, ChoiceParam:
		pj.Value, err = json.Marshal(p.Str)
	case BoolParam:
		pj.Value, err = json.Marshal(p.Bool)
	default:
		err = fmt.Errorf("flowsim: invalid parameter kind %d", int(p.Kind))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(pj)
}

// Params maps parameter names to tagged values.
type Params map[string]*ParamValue

// Temperature returns the named parameter converted to kelvin.
func (p Params) Temperature(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("missing required parameter %q", name)
	}
	switch v.Kind {
	case QuantityParam:
		return toKelvin(v.Value, v.Unit)
	case NumberParam:
		return v.Value, nil
	}
	return 0, fmt.Errorf("parameter %q: want a temperature, have %s", name, v.Kind)
}

// Pressure returns the named parameter converted to pascals.
func (p Params) Pressure(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("missing required parameter %q", name)
	}
	switch v.Kind {
	case QuantityParam:
		return toPascal(v.Value, v.Unit)
	case NumberParam:
		return v.Value, nil
	}
	return 0, fmt.Errorf("parameter %q: want a pressure, have %s", name, v.Kind)
}

// Flow returns the named parameter converted to kmol/h. Mass-flow
// units are converted using the mean molecular weight meanMW in
// kg/kmol.
func (p Params) Flow(name string, meanMW float64) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("missing required parameter %q", name)
	}
	switch v.Kind {
	case QuantityParam:
		return toKmolPerHour(v.Value, v.Unit, meanMW)
	case NumberParam:
		return v.Value, nil
	}
	return 0, fmt.Errorf("parameter %q: want a flow, have %s", name, v.Kind)
}

// Number returns the named dimensionless parameter, or def when it is
// absent.
func (p Params) Number(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch v.Kind {
	case NumberParam:
		return v.Value, nil
	case IntegerParam:
		return float64(v.Int), nil
	case QuantityParam:
		if v.Unit == "" {
			return v.Value, nil
		}
		if v.Unit == "%" {
			return v.Value / 100., nil
		}
	}
	return 0, fmt.Errorf("parameter %q: want a number, have %s", name, v.Kind)
}

// String returns the named text parameter, or def when it is absent.
func (p Params) String(name, def string) (string, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	switch v.Kind {
	case StringParam, ChoiceParam:
		return v.Str, nil
	}
	return "", fmt.Errorf("parameter %q: want a string, have %s", name, v.Kind)
}

// Bool returns the named flag parameter, or def when it is absent.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	if v.Kind != BoolParam {
		return false, fmt.Errorf("parameter %q: want a boolean, have %s", name, v.Kind)
	}
	return v.Bool, nil
}

// toKelvin converts a temperature in the given unit to kelvin.
func toKelvin(v float64, units string) (float64, error) {
	switch strings.TrimSpace(units) {
	case "", "K":
		return v, nil
	case "degC", "C", "°C":
		return v + 273.15, nil
	case "degF", "F", "°F":
		return (v-32.)*5./9. + 273.15, nil
	default:
		return 0, fmt.Errorf("unsupported temperature unit %q", units)
	}
}

// toPascal converts a pressure in the given unit to pascals. All
// supported pressure units are pure scale factors, so the same
// conversion serves absolute pressures and pressure differences.
func toPascal(v float64, units string) (float64, error) {
	switch strings.TrimSpace(units) {
	case "", "Pa":
		return v, nil
	case "kPa":
		return v * 1.0e3, nil
	case "MPa":
		return v * 1.0e6, nil
	case "bar":
		return v * 1.0e5, nil
	case "mbar":
		return v * 100., nil
	case "atm":
		return v * 101325., nil
	case "psi", "psia":
		return v * 6894.757, nil
	case "mmHg", "torr":
		return v * 133.322, nil
	default:
		return 0, fmt.Errorf("unsupported pressure unit %q", units)
	}
}

// toKmolPerHour converts a flow in the given unit to kmol/h. Mass
// flows require a positive mean molecular weight.
func toKmolPerHour(v float64, units string, meanMW float64) (float64, error) {
	switch strings.TrimSpace(units) {
	case "", "kmol/h":
		return v, nil
	case "kmol/s":
		return v * 3600., nil
	case "mol/s":
		return v * 3.6, nil
	case "mol/h":
		return v / 1000., nil
	case "kg/h", "kg/s", "t/h":
	default:
		return 0, fmt.Errorf("unsupported flow unit %q", units)
	}
	if meanMW <= 0 {
		return 0, fmt.Errorf("cannot convert %q to kmol/h without a molecular weight", units)
	}
	switch strings.TrimSpace(units) {
	case "kg/h":
		return v / meanMW, nil
	case "kg/s":
		return v * 3600. / meanMW, nil
	case "t/h":
		return v * 1000. / meanMW, nil
	}
	panic("unreachable")
}

// parseComposition parses a composition given either as a JSON object
// of mole fractions or as comma-separated "component:fraction" pairs,
// for example "CO2:0.13,N2:0.87".
func parseComposition(s string) (thermo.Composition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty composition")
	}
	if strings.HasPrefix(s, "{") {
		var m map[string]float64
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("parsing composition: %v", err)
		}
		return thermo.Composition(m), nil
	}
	z := make(thermo.Composition)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid composition entry %q", pair)
		}
		id := strings.TrimSpace(kv[0])
		x, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid composition entry %q: %v", pair, err)
		}
		if id == "" {
			return nil, fmt.Errorf("invalid composition entry %q", pair)
		}
		z[id] = x
	}
	return z, nil
}
