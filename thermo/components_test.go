package thermo

import "testing"

func TestDefaultDB(t *testing.T) {
	db := DefaultDB()
	if db.Len() < 14 {
		t.Errorf("have %d components, want at least 14", db.Len())
	}
	c, ok := db.Component("CO2")
	if !ok {
		t.Fatal("CO2 missing from default registry")
	}
	if c.MW != 44.010 {
		t.Errorf("have %g, want %g", c.MW, 44.010)
	}
	if db != DefaultDB() {
		t.Error("DefaultDB should return the same registry every time")
	}
}

func TestNewComponentDBErrors(t *testing.T) {
	valid := Component{ID: "A", Name: "A", MW: 10, Tb: 100}

	cases := []struct {
		name  string
		comps []Component
	}{
		{"duplicate ID", []Component{valid, valid}},
		{"empty ID", []Component{{Name: "x", MW: 10, Tb: 100}}},
		{"non-positive MW", []Component{{ID: "A", MW: 0, Tb: 100}}},
		{"non-positive Tb", []Component{{ID: "A", MW: 10, Tb: -7}}},
	}
	for _, c := range cases {
		if _, err := NewComponentDB(c.comps); err == nil {
			t.Errorf("%s: should be an error", c.name)
		}
	}

	if _, err := NewComponentDB([]Component{valid}); err != nil {
		t.Errorf("valid table: %v", err)
	}
}

func TestIDsIsACopy(t *testing.T) {
	db, err := NewComponentDB([]Component{
		{ID: "B", MW: 1, Tb: 1},
		{ID: "A", MW: 1, Tb: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	ids := db.IDs()
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Errorf("have %v, want sorted [A B]", ids)
	}
	ids[0] = "mutated"
	if db.IDs()[0] != "A" {
		t.Error("IDs should return a copy")
	}
}
