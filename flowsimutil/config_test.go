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

package flowsimutil

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lnashier/viper"
	"github.com/processmodel/flowsim"
)

func TestCheckOutputFile(t *testing.T) {
	if _, err := checkOutputFile(""); err == nil {
		t.Error("an empty output file should be rejected")
	}
	if _, err := checkOutputFile("output.shp"); err == nil {
		t.Error("an unsupported extension should be rejected")
	}
	if _, err := checkOutputFile("/nonexistent-dir/output.json"); err == nil {
		t.Error("a missing output directory should be rejected")
	}
	dir := t.TempDir()
	f := filepath.Join(dir, "output.json")
	have, err := checkOutputFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if have != f {
		t.Errorf("have %q, want %q", have, f)
	}
}

func TestCheckLogFile(t *testing.T) {
	if have, want := checkLogFile("", "out/result.json"), "out/result.log"; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
	if have, want := checkLogFile("run.log", "out/result.json"), "run.log"; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}

func TestCheckAcceleration(t *testing.T) {
	cases := []struct {
		in      string
		want    flowsim.TearAcceleration
		wantErr bool
	}{
		{"", flowsim.DirectSubstitution, false},
		{"direct", flowsim.DirectSubstitution, false},
		{"Wegstein", flowsim.Wegstein, false},
		{"aitken", 0, true},
	}
	for _, c := range cases {
		have, err := checkAcceleration(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("%q: unexpected error state %v", c.in, err)
			continue
		}
		if !c.wantErr && have != c.want {
			t.Errorf("%q: have %v, want %v", c.in, have, c.want)
		}
	}
}

func TestComponentDB(t *testing.T) {
	db, err := componentDB("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := db.Component("CO2"); !ok {
		t.Error("the default registry should hold CO2")
	}

	db, err = componentDB("testdata/components.toml")
	if err != nil {
		t.Fatal(err)
	}
	c, ok := db.Component("H2S")
	if !ok {
		t.Fatal("the extra component H2S should be registered")
	}
	if c.MW != 34.081 {
		t.Errorf("have MW=%g, want 34.081", c.MW)
	}
	if c.Tb != 212.84 {
		t.Errorf("have Tb=%g, want 212.84", c.Tb)
	}
	// The built-in records survive the overlay.
	if _, ok := db.Component("CO2"); !ok {
		t.Error("the built-in CO2 record should survive the overlay")
	}

	if _, err := componentDB("testdata/nonexistent.toml"); err == nil {
		t.Error("a missing components file should be an error")
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()

	cfg.Set("a", map[string]string{"x": "1"})
	if have := GetStringMapString("a", cfg); !reflect.DeepEqual(have, map[string]string{"x": "1"}) {
		t.Errorf("map[string]string: have %v", have)
	}

	cfg.Set("b", map[string]interface{}{"x": "1"})
	if have := GetStringMapString("b", cfg); !reflect.DeepEqual(have, map[string]string{"x": "1"}) {
		t.Errorf("map[string]interface{}: have %v", have)
	}

	// A JSON object, as set from a command-line argument.
	cfg.Set("c", `{"purity": "totalProduct / totalFeed"}`)
	if have := GetStringMapString("c", cfg); !reflect.DeepEqual(have, map[string]string{"purity": "totalProduct / totalFeed"}) {
		t.Errorf("json string: have %v", have)
	}
}
