package thermo

import (
	"fmt"
	"sort"
	"sync"
)

// Component is an immutable physical-property record for one chemical
// species. Cp holds the coefficients of the ideal-gas heat capacity
// polynomial Cp = a + bT + cT² + dT³ + eT⁴ [J mol⁻¹ K⁻¹], fitted over
// approximately 200–1500 K.
type Component struct {
	ID      string     `toml:"id"`
	Name    string     `toml:"name"`
	Formula string     `toml:"formula"`
	MW      float64    `toml:"mw"`      // molecular weight [kg kmol⁻¹]
	Tc      float64    `toml:"tc"`      // critical temperature [K]
	Pc      float64    `toml:"pc"`      // critical pressure [Pa]
	Omega   float64    `toml:"omega"`   // acentric factor
	Tb      float64    `toml:"tb"`      // normal boiling point [K]
	Hf      float64    `toml:"hf"`      // heat of formation at 298.15 K [kJ mol⁻¹]
	Cp      [5]float64 `toml:"cp"`      // heat capacity polynomial coefficients
}

// ComponentDB is a read-only registry of components keyed by ID.
// The zero value is not usable; create one with NewComponentDB or use
// DefaultDB.
type ComponentDB struct {
	comps map[string]*Component
	ids   []string
}

// NewComponentDB creates a registry from the given component records.
// It returns an error if any record has a duplicate ID or physically
// meaningless constants.
func NewComponentDB(comps []Component) (*ComponentDB, error) {
	db := &ComponentDB{comps: make(map[string]*Component, len(comps))}
	for i := range comps {
		c := comps[i]
		if c.ID == "" {
			return nil, fmt.Errorf("thermo: component %d has an empty ID", i)
		}
		if _, ok := db.comps[c.ID]; ok {
			return nil, fmt.Errorf("thermo: duplicate component ID '%s'", c.ID)
		}
		if c.MW <= 0 {
			return nil, fmt.Errorf("thermo: component '%s': molecular weight %g must be positive", c.ID, c.MW)
		}
		if c.Tb <= 0 {
			return nil, fmt.Errorf("thermo: component '%s': normal boiling point %g must be positive", c.ID, c.Tb)
		}
		db.comps[c.ID] = &c
		db.ids = append(db.ids, c.ID)
	}
	sort.Strings(db.ids)
	return db, nil
}

// Component returns the record for the given ID and reports whether it
// exists in the registry.
func (db *ComponentDB) Component(id string) (*Component, bool) {
	c, ok := db.comps[id]
	return c, ok
}

// IDs returns the registered component IDs in sorted order.
func (db *ComponentDB) IDs() []string {
	o := make([]string, len(db.ids))
	copy(o, db.ids)
	return o
}

// Len returns the number of registered components.
func (db *ComponentDB) Len() int { return len(db.ids) }

var (
	defaultDBOnce sync.Once
	defaultDB     *ComponentDB
)

// DefaultDB returns the registry built from the reference table below.
// The registry is constructed once and shared; it is safe for
// concurrent use because it is never mutated after construction.
func DefaultDB() *ComponentDB {
	defaultDBOnce.Do(func() {
		var err error
		defaultDB, err = NewComponentDB(referenceComponents)
		if err != nil {
			panic(err)
		}
	})
	return defaultDB
}

// referenceComponents holds the built-in property table. Critical
// constants and heats of formation are gas-phase values at 298.15 K;
// heat capacity coefficients follow the polynomial form documented on
// Component.
var referenceComponents = []Component{
	{
		ID: "N2", Name: "Nitrogen", Formula: "N2",
		MW: 28.014, Tc: 126.20, Pc: 3.396e6, Omega: 0.0377, Tb: 77.36, Hf: 0,
		Cp: [5]float64{28.90, -0.1571e-2, 0.8081e-5, -2.873e-9, 0},
	},
	{
		ID: "O2", Name: "Oxygen", Formula: "O2",
		MW: 31.998, Tc: 154.58, Pc: 5.043e6, Omega: 0.0222, Tb: 90.19, Hf: 0,
		Cp: [5]float64{25.48, 1.520e-2, -0.7155e-5, 1.312e-9, 0},
	},
	{
		ID: "Ar", Name: "Argon", Formula: "Ar",
		MW: 39.948, Tc: 150.86, Pc: 4.898e6, Omega: 0, Tb: 87.30, Hf: 0,
		Cp: [5]float64{20.786, 0, 0, 0, 0},
	},
	{
		ID: "CO2", Name: "Carbon dioxide", Formula: "CO2",
		MW: 44.010, Tc: 304.13, Pc: 7.377e6, Omega: 0.2276, Tb: 194.69, Hf: -393.51,
		Cp: [5]float64{22.26, 5.981e-2, -3.501e-5, 7.469e-9, 0},
	},
	{
		ID: "CO", Name: "Carbon monoxide", Formula: "CO",
		MW: 28.010, Tc: 132.92, Pc: 3.499e6, Omega: 0.0482, Tb: 81.70, Hf: -110.53,
		Cp: [5]float64{28.16, 0.1675e-2, 0.5372e-5, -2.222e-9, 0},
	},
	{
		ID: "H2", Name: "Hydrogen", Formula: "H2",
		MW: 2.016, Tc: 33.19, Pc: 1.313e6, Omega: -0.216, Tb: 20.27, Hf: 0,
		Cp: [5]float64{29.11, -0.1916e-2, 0.4003e-5, -0.8704e-9, 0},
	},
	{
		ID: "H2O", Name: "Water", Formula: "H2O",
		MW: 18.015, Tc: 647.10, Pc: 22.064e6, Omega: 0.3449, Tb: 373.15, Hf: -241.83,
		Cp: [5]float64{32.24, 0.1923e-2, 1.055e-5, -3.595e-9, 0},
	},
	{
		ID: "CH4", Name: "Methane", Formula: "CH4",
		MW: 16.043, Tc: 190.56, Pc: 4.599e6, Omega: 0.0115, Tb: 111.66, Hf: -74.52,
		Cp: [5]float64{19.89, 5.024e-2, 1.269e-5, -11.01e-9, 0},
	},
	{
		ID: "C2H6", Name: "Ethane", Formula: "C2H6",
		MW: 30.070, Tc: 305.32, Pc: 4.872e6, Omega: 0.0995, Tb: 184.55, Hf: -83.82,
		Cp: [5]float64{6.900, 17.27e-2, -6.406e-5, 7.285e-9, 0},
	},
	{
		ID: "C3H8", Name: "Propane", Formula: "C3H8",
		MW: 44.097, Tc: 369.83, Pc: 4.248e6, Omega: 0.1523, Tb: 231.02, Hf: -104.68,
		Cp: [5]float64{-4.04, 30.48e-2, -15.72e-5, 31.74e-9, 0},
	},
	{
		ID: "NH3", Name: "Ammonia", Formula: "NH3",
		MW: 17.031, Tc: 405.65, Pc: 11.280e6, Omega: 0.2526, Tb: 239.82, Hf: -45.90,
		Cp: [5]float64{27.568, 2.5630e-2, 0.99072e-5, -6.6909e-9, 0},
	},
	{
		ID: "SO2", Name: "Sulfur dioxide", Formula: "SO2",
		MW: 64.064, Tc: 430.75, Pc: 7.884e6, Omega: 0.2451, Tb: 263.13, Hf: -296.84,
		Cp: [5]float64{25.78, 5.795e-2, -3.812e-5, 8.612e-9, 0},
	},
	{
		ID: "CH3OH", Name: "Methanol", Formula: "CH3OH",
		MW: 32.042, Tc: 512.60, Pc: 8.097e6, Omega: 0.5625, Tb: 337.85, Hf: -200.66,
		Cp: [5]float64{21.15, 7.092e-2, 2.587e-5, -28.52e-9, 0},
	},
	{
		ID: "MEA", Name: "Monoethanolamine", Formula: "C2H7NO",
		MW: 61.084, Tc: 678.20, Pc: 7.124e6, Omega: 0.7939, Tb: 443.56, Hf: -201.20,
		Cp: [5]float64{13.21, 28.11e-2, -15.94e-5, 33.00e-9, 0},
	},
}
