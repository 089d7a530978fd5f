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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/processmodel/flowsim"
	"github.com/processmodel/flowsim/thermo"
	"github.com/spf13/cast"
)

// checkOutputFile makes sure that the output file is specified with a
// supported extension and that its directory exists, and expands any
// environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.json")`)
	}
	f = os.ExpandEnv(f)
	switch ext := strings.ToLower(filepath.Ext(f)); ext {
	case ".json", ".csv", ".xlsx":
	default:
		return f, fmt.Errorf("flowsim: the OutputFile extension must be .json, .csv, or .xlsx, not %q", ext)
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("flowsim: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// checkKPIVariables removes end lines and expands environment variables
// in the KPI expressions. An empty map is allowed; the standard
// indicators are always reported.
func checkKPIVariables(vars map[string]string) (map[string]string, error) {
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// checkAcceleration parses a tear-stream acceleration name.
func checkAcceleration(s string) (flowsim.TearAcceleration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return flowsim.DirectSubstitution, nil
	case "wegstein":
		return flowsim.Wegstein, nil
	default:
		return 0, fmt.Errorf("the TearAcceleration variable in the configuration "+
			"needs to be set to either direct or wegstein, but is currently set to `%s`", s)
	}
}

// economics unmarshals a viper configuration for the utility price and
// emission-factor table.
func economics(cfg *viper.Viper) flowsim.Economics {
	return flowsim.Economics{
		SteamPrice:       cfg.GetFloat64("Economics.SteamPrice"),
		ElectricityPrice: cfg.GetFloat64("Economics.ElectricityPrice"),
		CoolingPrice:     cfg.GetFloat64("Economics.CoolingPrice"),
		SteamCO2:         cfg.GetFloat64("Economics.SteamCO2"),
		GridCO2:          cfg.GetFloat64("Economics.GridCO2"),
	}
}

// componentsFile is the TOML layout of an extra component property
// table.
type componentsFile struct {
	Components []thermo.Component `toml:"components"`
}

// componentDB builds the component registry for a run: the built-in
// reference table, overlaid with the records from the TOML file at
// path when one is given.
func componentDB(path string) (*thermo.ComponentDB, error) {
	if path == "" {
		return thermo.DefaultDB(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flowsim: opening ComponentsFile: %v", err)
	}
	defer f.Close()
	var extra componentsFile
	if _, err := toml.DecodeReader(f, &extra); err != nil {
		return nil, fmt.Errorf("flowsim: parsing ComponentsFile: %v", err)
	}
	if len(extra.Components) == 0 {
		return nil, fmt.Errorf("flowsim: ComponentsFile %s holds no [[components]] records", path)
	}

	base := thermo.DefaultDB()
	override := make(map[string]struct{}, len(extra.Components))
	for _, c := range extra.Components {
		override[c.ID] = struct{}{}
	}
	var comps []thermo.Component
	for _, id := range base.IDs() {
		if _, ok := override[id]; ok {
			continue
		}
		c, _ := base.Component(id)
		comps = append(comps, *c)
	}
	comps = append(comps, extra.Components...)
	return thermo.NewComponentDB(comps)
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}
