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

// Package thermo implements an ideal-mixture thermodynamic property
// model for flowsheet simulation: polynomial heat capacities, enthalpy
// relative to the 298.15 K formation state, Clausius–Clapeyron vapor
// pressures anchored at the normal boiling point with the heat of
// vaporization estimated by Trouton's rule, Raoult's-law equilibrium
// ratios, and a Rachford–Rice flash solver.
//
// All functions in this package are pure: they read the immutable
// component registry and their arguments, and touch no other state.
// Temperatures are in K, pressures in Pa, molar quantities in kJ/mol
// unless a comment says otherwise.
package thermo

import (
	"math"
	"sort"
)

const (
	// RGas is the universal gas constant [J mol⁻¹ K⁻¹].
	RGas = 8.314462

	// TRef is the reference temperature for enthalpy calculations [K].
	TRef = 298.15

	// PAtm is standard atmospheric pressure [Pa].
	PAtm = 101325.0

	// troutonSlope estimates the molar heat of vaporization at the
	// normal boiling point as ΔHvap ≈ troutonSlope·Tb (Trouton's rule)
	// [J mol⁻¹ K⁻¹].
	troutonSlope = 85.0

	// Vapor pressure clamp bounds [Pa], to keep downstream
	// pressure ratios finite.
	minVaporPressure = 1.0
	maxVaporPressure = 1.0e9

	// KUnknown is the equilibrium ratio assumed for component IDs that
	// are missing from the registry: moderately volatile, so a run can
	// complete at reduced accuracy instead of failing.
	KUnknown = 1.0

	// liquidDensity is the constant placeholder density used for all
	// liquid mixtures [kg m⁻³].
	liquidDensity = 1000.0
)

// Phase tags a stream or flash result as all-vapor, all-liquid,
// two-phase, or solid.
type Phase string

// The recognized phase tags.
const (
	Vapor       Phase = "V"
	Liquid      Phase = "L"
	VaporLiquid Phase = "VL"
	Solid       Phase = "S"
)

// Composition maps component IDs to mole fractions. A valid
// composition sums to 1 within the tolerance enforced by callers.
type Composition map[string]float64

// Sum returns the total of all mole fractions.
func (z Composition) Sum() float64 {
	var s float64
	for _, x := range z {
		s += x
	}
	return s
}

// Clone returns an independent copy.
func (z Composition) Clone() Composition {
	o := make(Composition, len(z))
	for id, x := range z {
		o[id] = x
	}
	return o
}

// Normalize returns a copy scaled so the fractions sum to one. If the
// input sums to zero the copy is returned unscaled.
func (z Composition) Normalize() Composition {
	o := z.Clone()
	s := z.Sum()
	if s == 0 {
		return o
	}
	for id := range o {
		o[id] /= s
	}
	return o
}

// IDs returns the component IDs present in the composition, sorted.
func (z Composition) IDs() []string {
	ids := make([]string, 0, len(z))
	for id := range z {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HeatCapacity evaluates the ideal-gas heat capacity polynomial at T
// [J mol⁻¹ K⁻¹]. Extrapolation beyond the fitted range is allowed and
// unflagged.
func (c *Component) HeatCapacity(T float64) float64 {
	a := c.Cp
	return a[0] + T*(a[1]+T*(a[2]+T*(a[3]+T*a[4])))
}

// Enthalpy returns the molar enthalpy at T relative to the elemental
// reference state [kJ mol⁻¹]: the heat of formation at 298.15 K plus
// the closed-form integral of the heat capacity polynomial from
// 298.15 K to T.
func (c *Component) Enthalpy(T float64) float64 {
	a := c.Cp
	integral := func(t float64) float64 {
		return t * (a[0] + t*(a[1]/2 + t*(a[2]/3 + t*(a[3]/4 + t*a[4]/5))))
	}
	return c.Hf + (integral(T)-integral(TRef))/1000
}

// VaporPressure estimates the saturation pressure at T [Pa] with the
// Clausius–Clapeyron relation anchored at the normal boiling point,
// using Trouton's rule for the heat of vaporization. The result is
// clamped to [1 Pa, 1e9 Pa].
func (c *Component) VaporPressure(T float64) float64 {
	ΔHvap := troutonSlope * c.Tb
	p := PAtm * math.Exp(ΔHvap/RGas*(1/c.Tb-1/T))
	if p < minVaporPressure {
		return minVaporPressure
	}
	if p > maxVaporPressure {
		return maxVaporPressure
	}
	return p
}

// KValue returns the vapor-liquid equilibrium ratio y/x for the given
// component at T and P, from modified Raoult's law (ideal vapor and
// liquid). An ID missing from the registry yields KUnknown rather than
// an error.
func (db *ComponentDB) KValue(id string, T, P float64) float64 {
	c, ok := db.comps[id]
	if !ok {
		return KUnknown
	}
	return c.VaporPressure(T) / P
}

// MixtureEnthalpy returns the mole-fraction-weighted molar enthalpy of
// the mixture at T [kJ mol⁻¹]. P is accepted for interface symmetry
// but unused under the ideal-gas assumption. Unknown component IDs
// contribute nothing.
func (db *ComponentDB) MixtureEnthalpy(z Composition, T, P float64) float64 {
	_ = P
	var h float64
	for id, x := range z {
		if c, ok := db.comps[id]; ok {
			h += x * c.Enthalpy(T)
		}
	}
	return h
}

// MeanMolecularWeight returns the mole-fraction-weighted molecular
// weight of the mixture [kg kmol⁻¹]. Unknown component IDs contribute
// nothing.
func (db *ComponentDB) MeanMolecularWeight(z Composition) float64 {
	var mw float64
	for id, x := range z {
		if c, ok := db.comps[id]; ok {
			mw += x * c.MW
		}
	}
	return mw
}

// Density returns the mixture mass density [kg m⁻³]: the ideal-gas law
// for vapor, and a constant placeholder for liquid and solid phases.
func (db *ComponentDB) Density(z Composition, T, P float64, phase Phase) float64 {
	if phase == Vapor {
		return P * db.MeanMolecularWeight(z) / (RGas * T * 1000)
	}
	return liquidDensity
}

// DeterminePhase classifies the mixture at T and P, returning the phase
// tag and the equilibrium vapor fraction. If every component has K>1
// the mixture is all vapor; if every component has K<1 it is all
// liquid; otherwise the flash solver decides, with vapor fractions
// below 0.001 treated as liquid and above 0.999 as vapor.
func (db *ComponentDB) DeterminePhase(z Composition, T, P float64) (Phase, float64) {
	allAbove, allBelow := true, true
	for id, x := range z {
		if x <= 0 {
			continue
		}
		K := db.KValue(id, T, P)
		if K <= 1 {
			allAbove = false
		}
		if K >= 1 {
			allBelow = false
		}
	}
	if allAbove {
		return Vapor, 1
	}
	if allBelow {
		return Liquid, 0
	}
	res := db.Flash(z, T, P)
	return res.Phase, res.V
}
