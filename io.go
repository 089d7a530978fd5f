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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/tealeg/xlsx"
)

// LoadGraph reads a flowsheet graph from JSON, fills in omitted
// standard ports, and checks ID uniqueness.
func LoadGraph(r io.Reader) (*Graph, error) {
	g := new(Graph)
	if err := json.NewDecoder(r).Decode(g); err != nil {
		return nil, fmt.Errorf("flowsim: parsing flowsheet: %v", err)
	}
	if err := g.normalize(); err != nil {
		return nil, err
	}
	return g, nil
}

// Economics holds the utility prices and emission factors that roll
// heat duties and shaft power into the cost and carbon KPIs.
type Economics struct {
	// SteamPrice is $ per kWh of heating duty.
	SteamPrice float64 `json:"steamPrice"`
	// ElectricityPrice is $ per kWh of shaft power.
	ElectricityPrice float64 `json:"electricityPrice"`
	// CoolingPrice is $ per kWh of heat removed.
	CoolingPrice float64 `json:"coolingPrice"`
	// SteamCO2 is kg CO₂ emitted per kWh of heating duty.
	SteamCO2 float64 `json:"steamCO2"`
	// GridCO2 is kg CO₂ emitted per kWh of electricity.
	GridCO2 float64 `json:"gridCO2"`
}

// DefaultEconomics returns generic utility prices and grid emission
// factors.
func DefaultEconomics() Economics {
	return Economics{
		SteamPrice:       0.02,
		ElectricityPrice: 0.10,
		CoolingPrice:     0.005,
		SteamCO2:         0.20,
		GridCO2:          0.45,
	}
}

// kpiBaseNames are the built-in run variables available to KPI
// expressions, matching the keys of Flowsheet.KPIValues.
var kpiBaseNames = []string{
	"CO2_emissions",
	"COM",
	"converged",
	"cooling",
	"electricity",
	"steam",
	"sweeps",
	"totalFeed",
	"totalProduct",
}

// KPIValues computes the built-in run variables from the latest
// sweep's block results:
//
//	steam          heating duty supplied by heaters and stripper
//	               reboilers [kW]
//	cooling        heat removed by coolers [kW]
//	electricity    pump shaft power [kW]
//	CO2_emissions  utility carbon footprint [kg/h]
//	COM            utility operating cost [$/h]
//	totalFeed      molar feed to the flowsheet [kmol/h]
//	totalProduct   molar flow into sinks [kmol/h]
//	sweeps         block sweeps run
//	converged      1 if the tear iteration converged, else 0
//
// Heat recovered inside the flowsheet by heat exchangers is not a
// utility and is excluded.
func (f *Flowsheet) KPIValues(econ Economics) map[string]float64 {
	var steam, cooling, electricity, totalFeed, totalProduct float64
	for _, b := range f.Graph.Blocks {
		res, ok := f.results[b.ID]
		if !ok {
			continue
		}
		switch b.Type {
		case HeaterBlock, StripperBlock:
			if res.Duty != nil {
				steam += res.Duty.Value() / 1000.
			}
		case CoolerBlock:
			if res.Duty != nil {
				cooling -= res.Duty.Value() / 1000.
			}
		case PumpBlock:
			if res.Power != nil {
				electricity += res.Power.Value() / 1000.
			}
		case FeedBlock:
			if s, ok := res.Streams["out"]; ok {
				totalFeed += s.Flow
			}
		case SinkBlock:
			if c, ok := f.incoming[b.ID]["in"]; ok {
				if s := f.streams[c.ID]; s != nil {
					totalProduct += s.Flow
				}
			}
		}
	}
	converged := 0.
	if f.Converged {
		converged = 1.
	}
	return map[string]float64{
		"steam":         steam,
		"cooling":       cooling,
		"electricity":   electricity,
		"CO2_emissions": steam*econ.SteamCO2 + electricity*econ.GridCO2,
		"COM":           steam*econ.SteamPrice + electricity*econ.ElectricityPrice + cooling*econ.CoolingPrice,
		"totalFeed":     totalFeed,
		"totalProduct":  totalProduct,
		"sweeps":        float64(f.sweep),
		"converged":     converged,
	}
}

// StreamRecord is one row of the output stream table. Pressures are
// reported in both pascals and bar; all other values keep the model's
// internal units.
type StreamRecord struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	From          string             `json:"from"`
	To            string             `json:"to"`
	Temperature   float64            `json:"temperature_K"`
	Pressure      float64            `json:"pressure_Pa"`
	PressureBar   float64            `json:"pressure_bar"`
	Flow          float64            `json:"flow_kmol_h"`
	Composition   map[string]float64 `json:"composition"`
	Phase         string             `json:"phase"`
	Enthalpy      float64            `json:"enthalpy_kJ_mol"`
	VaporFraction float64            `json:"vapor_fraction"`
}

// BlockRecord is one block's contribution to the output: its duty and
// power when it has them.
type BlockRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Type    string   `json:"type"`
	DutyKW  *float64 `json:"duty_kW,omitempty"`
	PowerKW *float64 `json:"power_kW,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
}

// Result is the complete, serializable outcome of a simulation run.
type Result struct {
	Name      string             `json:"name,omitempty"`
	Version   string             `json:"version"`
	Status    string             `json:"status"`
	Converged bool               `json:"converged"`
	Sweeps    int                `json:"sweeps"`
	Tears     []string           `json:"tearStreams,omitempty"`
	KPIs      map[string]float64 `json:"kpis"`
	Streams   []StreamRecord     `json:"streams"`
	Blocks    []BlockRecord      `json:"blocks"`
	Findings  []Finding          `json:"findings,omitempty"`
}

// Results assembles the stream table, block summaries, and findings
// of the run. KPI expressions are evaluated separately by an
// Outputter.
func (f *Flowsheet) Results() *Result {
	r := &Result{
		Name:      f.Graph.Name,
		Version:   Version,
		Status:    f.status.String(),
		Converged: f.Converged,
		Sweeps:    f.sweep,
		KPIs:      make(map[string]float64),
		Findings:  f.Findings(),
	}
	for _, c := range f.tears {
		r.Tears = append(r.Tears, c.ID)
	}
	sort.Strings(r.Tears)

	conns := make([]*Connection, len(f.live))
	copy(conns, f.live)
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	for _, c := range conns {
		s := f.streams[c.ID]
		if s == nil {
			continue
		}
		r.Streams = append(r.Streams, StreamRecord{
			ID:            c.ID,
			Name:          c.Name,
			From:          c.From.String(),
			To:            c.To.String(),
			Temperature:   s.T,
			Pressure:      s.P,
			PressureBar:   s.P / 1.0e5,
			Flow:          s.Flow,
			Composition:   s.Comp.Clone(),
			Phase:         string(s.Phase),
			Enthalpy:      s.H,
			VaporFraction: s.VaporFrac,
		})
	}

	for _, b := range f.Graph.Blocks {
		res, ok := f.results[b.ID]
		if !ok {
			continue
		}
		br := BlockRecord{ID: b.ID, Name: b.Name, Type: string(b.Type), Skipped: res.Skipped}
		if res.Duty != nil {
			kw := res.Duty.Value() / 1000.
			br.DutyKW = &kw
		}
		if res.Power != nil {
			kw := res.Power.Value() / 1000.
			br.PowerKW = &kw
		}
		r.Blocks = append(r.Blocks, br)
	}
	return r
}

// Outputter holds the output file path and the KPI expressions to be
// evaluated over the built-in run variables when the simulation
// finishes.
//
// modelVariables is generated automatically from the variables the
// requested KPI expressions reference.
//
// Functions available to the expressions are defined in the
// outputFunctions variable.
type Outputter struct {
	fileName        string
	kpiVariables    map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
	econ            Economics
	result          *Result
}

// DefaultKPIVariables requests the standard utility KPI set.
func DefaultKPIVariables() map[string]string {
	return map[string]string{
		"steam":         "steam",
		"cooling":       "cooling",
		"electricity":   "electricity",
		"CO2_emissions": "CO2_emissions",
		"COM":           "COM",
	}
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'abs(x)' which returns the absolute value of x.
//
// 'min(x, y)' and 'max(x, y)' which return the smaller and larger of
// their two arguments.
//
// 'pow(x, y)' which returns x raised to the power y.
//
// The standard KPI set is always present; kpiVariables adds to or
// overrides it. An empty fileName disables file output.
func NewOutputter(fileName string, kpiVariables map[string]string, econ Economics, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"abs": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("flowsim: got %d arguments for function 'abs', but needs 1", len(arg))
			}
			return (float64)(math.Abs(arg[0].(float64))), nil
		},
		"min": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("flowsim: got %d arguments for function 'min', but needs 2", len(args))
			}
			return (float64)(math.Min(args[0].(float64), args[1].(float64))), nil
		},
		"max": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("flowsim: got %d arguments for function 'max', but needs 2", len(args))
			}
			return (float64)(math.Max(args[0].(float64), args[1].(float64))), nil
		},
		"pow": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("flowsim: got %d arguments for function 'pow', but needs 2", len(args))
			}
			return (float64)(math.Pow(args[0].(float64), args[1].(float64))), nil
		},
	}

	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	vars := DefaultKPIVariables()
	for key, val := range kpiVariables {
		vars[key] = val
	}

	o := Outputter{
		fileName:        fileName,
		kpiVariables:    vars,
		outputFunctions: defaultOutputFuncs,
		econ:            econ,
	}

	for name, val := range o.kpiVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("flowsim: KPI %q: %v", name, err)
		}
		o.modelVariables = append(o.modelVariables, expression.Vars()...)
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	return &o, nil
}

func removeDuplicates(elements []string) []string {
	encountered := make(map[string]struct{}, len(elements))
	var result []string
	for _, e := range elements {
		if _, ok := encountered[e]; !ok {
			encountered[e] = struct{}{}
			result = append(result, e)
		}
	}
	return result
}

// CheckKPIVariables returns a function that ensures every variable
// the KPI expressions reference is a built-in run variable, so a bad
// expression fails at initialization instead of after the sweeps.
func (o *Outputter) CheckKPIVariables() FlowsheetManipulator {
	known := make(map[string]struct{}, len(kpiBaseNames))
	for _, name := range kpiBaseNames {
		known[name] = struct{}{}
	}
	return func(f *Flowsheet) error {
		for _, v := range o.modelVariables {
			if _, ok := known[v]; !ok {
				return fmt.Errorf("flowsim: KPI expressions reference unknown variable %q", v)
			}
		}
		return nil
	}
}

// Output returns a function that assembles the run's Result,
// evaluates the KPI expressions, and writes the output file when one
// was requested. The assembled Result stays available from
// o.Result().
func (o *Outputter) Output() FlowsheetManipulator {
	return func(f *Flowsheet) error {
		r := f.Results()
		vals := f.KPIValues(o.econ)
		params := make(map[string]interface{}, len(vals))
		for k, v := range vals {
			params[k] = v
		}
		for name, val := range o.kpiVariables {
			expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
			if err != nil {
				return fmt.Errorf("flowsim: KPI %q: %v", name, err)
			}
			result, err := expression.Evaluate(params)
			if err != nil {
				return fmt.Errorf("flowsim: evaluating KPI %q: %v", name, err)
			}
			v, ok := result.(float64)
			if !ok {
				return fmt.Errorf("flowsim: KPI %q yielded %T, want float64", name, result)
			}
			r.KPIs[name] = v
		}
		o.result = r
		if o.fileName == "" {
			return nil
		}
		switch strings.ToLower(filepath.Ext(o.fileName)) {
		case ".json":
			w, err := os.Create(o.fileName)
			if err != nil {
				return fmt.Errorf("flowsim: creating output file: %v", err)
			}
			if err := WriteResultJSON(w, r); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		case ".csv":
			w, err := os.Create(o.fileName)
			if err != nil {
				return fmt.Errorf("flowsim: creating output file: %v", err)
			}
			if err := WriteStreamTableCSV(w, r); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		case ".xlsx":
			return writeWorkbook(o.fileName, r)
		default:
			return fmt.Errorf("flowsim: unsupported output file extension in %q", o.fileName)
		}
	}
}

// Result returns the output assembled by the most recent run, or nil
// before Output has run.
func (o *Outputter) Result() *Result { return o.result }

// WriteResultJSON writes r as indented JSON.
func WriteResultJSON(w io.Writer, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("flowsim: marshaling result: %v", err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("flowsim: writing result: %v", err)
	}
	return nil
}

// resultComponents returns the sorted union of component IDs across
// all stream records.
func resultComponents(r *Result) []string {
	seen := make(map[string]struct{})
	for _, s := range r.Streams {
		for id := range s.Composition {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteStreamTableCSV writes the stream table with one column per
// component, followed by the KPI values.
func WriteStreamTableCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	comps := resultComponents(r)
	header := []string{"stream", "name", "from", "to", "temperature [K]",
		"pressure [bar]", "flow [kmol/h]", "phase", "enthalpy [kJ/mol]", "vapor fraction"}
	for _, id := range comps {
		header = append(header, "x "+id)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("flowsim: writing stream table: %v", err)
	}
	for _, s := range r.Streams {
		row := []string{s.ID, s.Name, s.From, s.To, formatFloat(s.Temperature),
			formatFloat(s.PressureBar), formatFloat(s.Flow), s.Phase,
			formatFloat(s.Enthalpy), formatFloat(s.VaporFraction)}
		for _, id := range comps {
			row = append(row, formatFloat(s.Composition[id]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("flowsim: writing stream table: %v", err)
		}
	}
	if err := cw.Write([]string{""}); err != nil {
		return fmt.Errorf("flowsim: writing stream table: %v", err)
	}
	if err := cw.Write([]string{"kpi", "value"}); err != nil {
		return fmt.Errorf("flowsim: writing stream table: %v", err)
	}
	kpis := make([]string, 0, len(r.KPIs))
	for name := range r.KPIs {
		kpis = append(kpis, name)
	}
	sort.Strings(kpis)
	for _, name := range kpis {
		if err := cw.Write([]string{name, formatFloat(r.KPIs[name])}); err != nil {
			return fmt.Errorf("flowsim: writing stream table: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeWorkbook writes the result as a spreadsheet with Streams,
// Blocks, KPIs, and Findings sheets.
func writeWorkbook(fileName string, r *Result) error {
	file := xlsx.NewFile()

	streams, err := file.AddSheet("Streams")
	if err != nil {
		return fmt.Errorf("flowsim: creating workbook: %v", err)
	}
	comps := resultComponents(r)
	hdr := streams.AddRow()
	for _, h := range []string{"Stream", "Name", "From", "To", "T [K]", "P [bar]",
		"Flow [kmol/h]", "Phase", "H [kJ/mol]", "Vapor fraction"} {
		hdr.AddCell().SetString(h)
	}
	for _, id := range comps {
		hdr.AddCell().SetString("x " + id)
	}
	for _, s := range r.Streams {
		row := streams.AddRow()
		row.AddCell().SetString(s.ID)
		row.AddCell().SetString(s.Name)
		row.AddCell().SetString(s.From)
		row.AddCell().SetString(s.To)
		row.AddCell().SetFloat(s.Temperature)
		row.AddCell().SetFloat(s.PressureBar)
		row.AddCell().SetFloat(s.Flow)
		row.AddCell().SetString(s.Phase)
		row.AddCell().SetFloat(s.Enthalpy)
		row.AddCell().SetFloat(s.VaporFraction)
		for _, id := range comps {
			row.AddCell().SetFloat(s.Composition[id])
		}
	}

	blocks, err := file.AddSheet("Blocks")
	if err != nil {
		return fmt.Errorf("flowsim: creating workbook: %v", err)
	}
	hdr = blocks.AddRow()
	for _, h := range []string{"Block", "Name", "Type", "Duty [kW]", "Power [kW]", "Skipped"} {
		hdr.AddCell().SetString(h)
	}
	for _, b := range r.Blocks {
		row := blocks.AddRow()
		row.AddCell().SetString(b.ID)
		row.AddCell().SetString(b.Name)
		row.AddCell().SetString(b.Type)
		if b.DutyKW != nil {
			row.AddCell().SetFloat(*b.DutyKW)
		} else {
			row.AddCell().SetString("")
		}
		if b.PowerKW != nil {
			row.AddCell().SetFloat(*b.PowerKW)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetBool(b.Skipped)
	}

	kpis, err := file.AddSheet("KPIs")
	if err != nil {
		return fmt.Errorf("flowsim: creating workbook: %v", err)
	}
	hdr = kpis.AddRow()
	hdr.AddCell().SetString("KPI")
	hdr.AddCell().SetString("Value")
	names := make([]string, 0, len(r.KPIs))
	for name := range r.KPIs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row := kpis.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetFloat(r.KPIs[name])
	}

	findings, err := file.AddSheet("Findings")
	if err != nil {
		return fmt.Errorf("flowsim: creating workbook: %v", err)
	}
	hdr = findings.AddRow()
	for _, h := range []string{"Category", "Block", "Stream", "Fatal", "Message"} {
		hdr.AddCell().SetString(h)
	}
	for _, fd := range r.Findings {
		row := findings.AddRow()
		row.AddCell().SetString(fd.Category.String())
		row.AddCell().SetString(fd.Block)
		row.AddCell().SetString(fd.Stream)
		row.AddCell().SetBool(fd.Fatal)
		row.AddCell().SetString(fd.Message)
	}

	if err := file.Save(fileName); err != nil {
		return fmt.Errorf("flowsim: writing workbook: %v", err)
	}
	return nil
}
