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
	"net/http"
	"reflect"

	"github.com/processmodel/flowsim/thermo"
)

// maxGraphBytes caps the size of an uploaded flowsheet.
const maxGraphBytes = 10 << 20

// StreamVariables returns the name, description, and units of each
// reported stream variable, taken from the Stream struct tags.
func StreamVariables() (names, descriptions, units []string) {
	t := reflect.TypeOf(Stream{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		desc := f.Tag.Get("desc")
		if desc == "" {
			continue
		}
		names = append(names, f.Name)
		descriptions = append(descriptions, desc)
		units = append(units, f.Tag.Get("units"))
	}
	return
}

// ComponentInfo is the palette view of one component registry entry.
type ComponentInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Formula string  `json:"formula"`
	MW      float64 `json:"mw"`
	Tb      float64 `json:"tb"`
}

// Handler returns an HTTP handler exposing the simulation kernel:
//
//	POST /run         simulate the flowsheet graph in the request body
//	                  and return the Result as JSON
//	GET  /components  list the component registry
//	GET  /variables   list the reported stream variables
//	GET  /version     report the model version
//
// Failed runs still return a Result; its status and findings carry
// the diagnostics.
func Handler(db *thermo.ComponentDB, opts RunOptions) http.Handler {
	if db == nil {
		db = thermo.DefaultDB()
	}
	// The server never writes files or streams progress; those are
	// command-line concerns.
	opts.OutputFile = ""
	opts.LogChan = nil
	opts.ConvergeChan = nil

	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		g, err := LoadGraph(http.MaxBytesReader(w, r.Body, maxGraphBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := RunFlowsheet(g, db, opts)
		if result == nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, result)
	})
	mux.HandleFunc("/components", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		infos := make([]ComponentInfo, 0, db.Len())
		for _, id := range db.IDs() {
			c, _ := db.Component(id)
			infos = append(infos, ComponentInfo{
				ID:      c.ID,
				Name:    c.Name,
				Formula: c.Formula,
				MW:      c.MW,
				Tb:      c.Tb,
			})
		}
		writeJSON(w, infos)
	})
	mux.HandleFunc("/variables", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		names, descriptions, units := StreamVariables()
		type variable struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Units       string `json:"units"`
		}
		vars := make([]variable, len(names))
		for i := range names {
			vars[i] = variable{Name: names[i], Description: descriptions[i], Units: units[i]}
		}
		writeJSON(w, vars)
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": Version})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
