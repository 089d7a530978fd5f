package flowsim

import "github.com/processmodel/flowsim/thermo"

// Stream is the material state carried by one flowsheet connection.
type Stream struct {
	// Conn is the ID of the connection this stream flows on.
	Conn string

	T    float64 `desc:"Temperature" units:"K"`
	P    float64 `desc:"Pressure" units:"Pa"`
	Flow float64 `desc:"Total molar flow" units:"kmol h-1"`

	// Comp holds the mole fraction of each component.
	Comp thermo.Composition `desc:"Mole fractions" units:"mol mol-1"`

	Phase thermo.Phase `desc:"Phase tag" units:""`

	H float64 `desc:"Molar enthalpy" units:"kJ mol-1"`

	VaporFrac float64 `desc:"Equilibrium vapor fraction" units:"mol mol-1"`
}

// Clone returns a deep copy of the stream.
func (s *Stream) Clone() *Stream {
	o := *s
	o.Comp = s.Comp.Clone()
	return &o
}

// moles returns the molar flow of one component in kmol/h.
func (s *Stream) moles(id string) float64 {
	return s.Flow * s.Comp[id]
}

// derive fills in the phase tag, vapor fraction, and molar enthalpy
// from the stream's composition and conditions.
func (s *Stream) derive(db *thermo.ComponentDB) {
	s.Phase, s.VaporFrac = db.DeterminePhase(s.Comp, s.T, s.P)
	s.H = db.MixtureEnthalpy(s.Comp, s.T, s.P)
}
