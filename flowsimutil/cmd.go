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

// Package flowsimutil holds the configuration and command-line glue
// for the flowsim process simulator.
package flowsimutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/lnashier/viper"
	"github.com/processmodel/flowsim"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to flowsim.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "FlowsheetFile",
			usage: `
              FlowsheetFile is the path to the flowsheet graph to simulate,
              in the JSON format produced by the graph editor. It can be a
              local path or an http(s) URL, and can include environment
              variables.`,
			shorthand:  "f",
			defaultVal: "flowsheet.json",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output file location.
              The extension selects the format: .json for the full result
              record, .csv for the stream table, or .xlsx for a workbook
              with stream, block, KPI, and finding sheets. It can include
              environment variables.`,
			defaultVal: "flowsim_output.json",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ComponentsFile",
			usage: `
              ComponentsFile is the path of a TOML file holding extra
              component property records to add to the built-in registry.
              Records with an ID already in the registry replace the
              built-in record. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags(), componentsCmd.Flags()},
		},
		{
			name: "KPIVariables",
			usage: `
              KPIVariables maps names of extra key performance indicators to
              expressions over the built-in run variables (steam, cooling,
              electricity, CO2_emissions, COM, totalFeed, totalProduct,
              sweeps, converged). The standard indicators are always
              reported.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxSweeps",
			usage: `
              MaxSweeps is the maximum number of block sweeps used to
              converge recycle tear streams. Acyclic flowsheets always
              finish in one sweep.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "TearTolerance",
			usage: `
              TearTolerance is the maximum relative change of any
              tear-stream variable between sweeps accepted as converged.`,
			defaultVal: 1.0e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "TearAcceleration",
			usage: `
              TearAcceleration selects how tear-stream guesses are updated
              between sweeps. Valid options are "direct" and "wegstein".`,
			defaultVal: "direct",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Economics.SteamPrice",
			usage: `
              Economics.SteamPrice is the price of heating duty in $ per
              kWh, used for the cost-of-manufacturing indicator.`,
			defaultVal: 0.02,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Economics.ElectricityPrice",
			usage: `
              Economics.ElectricityPrice is the price of shaft power in $
              per kWh.`,
			defaultVal: 0.10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Economics.CoolingPrice",
			usage: `
              Economics.CoolingPrice is the price of heat removal in $ per
              kWh.`,
			defaultVal: 0.005,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Economics.SteamCO2",
			usage: `
              Economics.SteamCO2 is the carbon intensity of heating duty in
              kg CO2 per kWh.`,
			defaultVal: 0.20,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "Economics.GridCO2",
			usage: `
              Economics.GridCO2 is the carbon intensity of grid electricity
              in kg CO2 per kWh.`,
			defaultVal: 0.45,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "addr",
			usage: `
              addr is the address for the simulation server to listen on.`,
			defaultVal: "localhost:8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FLOWSIM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(validateCmd)
	Root.AddCommand(componentsCmd)
	Root.AddCommand(serveCmd)
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			fmt.Printf(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("flowsim: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "flowsim",
	Short: "A sequential-modular process flowsheet simulator.",
	Long: `Flowsim simulates process flowsheets: directed graphs of unit-operation
blocks joined by material streams. Use the subcommands specified below to
access the model functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'FLOWSIM_var' where 'var' is
the name of the variable to be set. Many configuration variables are
additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of flowsim.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("flowsim v%s\n", flowsim.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a flowsheet.",
	Long: `run simulates the flowsheet graph in FlowsheetFile: it seeds the feed
streams, executes the blocks in dependency order, iterates any recycle tear
streams to convergence, and writes the resolved stream table and KPIs to
OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		kpiVars, err := checkKPIVariables(GetStringMapString("KPIVariables", Cfg))
		if err != nil {
			return err
		}
		accel, err := checkAcceleration(Cfg.GetString("TearAcceleration"))
		if err != nil {
			return err
		}
		db, err := componentDB(os.ExpandEnv(Cfg.GetString("ComponentsFile")))
		if err != nil {
			return err
		}

		return Run(
			cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			outputFile,
			maybeDownload(os.ExpandEnv(Cfg.GetString("FlowsheetFile")), outChan),
			db,
			flowsim.RunOptions{
				MaxSweeps:     Cfg.GetInt("MaxSweeps"),
				TearTolerance: Cfg.GetFloat64("TearTolerance"),
				Acceleration:  accel,
				Economics:     economics(Cfg),
				KPIVariables:  kpiVars,
				OutputFile:    outputFile,
			})
	},
	DisableAutoGenTag: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a flowsheet without simulating it.",
	Long: `validate loads the flowsheet graph in FlowsheetFile, checks its structure,
and prints every finding. The command fails if any finding is fatal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(maybeDownload(os.ExpandEnv(Cfg.GetString("FlowsheetFile")), outChan()))
		if err != nil {
			return fmt.Errorf("flowsim: problem loading flowsheet: %v", err)
		}
		g, err := flowsim.LoadGraph(f)
		f.Close()
		if err != nil {
			return err
		}
		findings := g.Validate()
		if len(findings) == 0 {
			cmd.Printf("Flowsheet %q: %d blocks, %d connections, no findings\n",
				g.Name, len(g.Blocks), len(g.Connections))
			return nil
		}
		fatal := false
		for _, fd := range findings {
			cmd.Println(fd.String())
			fatal = fatal || fd.Fatal
		}
		if fatal {
			return fmt.Errorf("flowsim: flowsheet %q is invalid", g.Name)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the component property registry.",
	Long: `components lists the active component registry: the built-in reference
table, overlaid with the records in ComponentsFile when one is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := componentDB(os.ExpandEnv(Cfg.GetString("ComponentsFile")))
		if err != nil {
			return err
		}
		cmd.Printf("%-8s %-22s %-10s %10s %10s\n", "ID", "Name", "Formula", "MW", "Tb [K]")
		for _, id := range db.IDs() {
			c, _ := db.Component(id)
			cmd.Printf("%-8s %-22s %-10s %10.3f %10.2f\n", c.ID, c.Name, c.Formula, c.MW, c.Tb)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// serveCmd is a command that starts the simulation HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulation server.",
	Long: `serve starts an HTTP server that simulates flowsheets posted to /run and
reports the component registry, the stream variables, and the model version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		accel, err := checkAcceleration(Cfg.GetString("TearAcceleration"))
		if err != nil {
			return err
		}
		db, err := componentDB(os.ExpandEnv(Cfg.GetString("ComponentsFile")))
		if err != nil {
			return err
		}
		opts := flowsim.RunOptions{
			MaxSweeps:     Cfg.GetInt("MaxSweeps"),
			TearTolerance: Cfg.GetFloat64("TearTolerance"),
			Acceleration:  accel,
			Economics:     economics(Cfg),
		}
		addr := Cfg.GetString("addr")
		cmd.Printf("flowsim server listening on http://%s\n", addr)
		return http.ListenAndServe(addr, flowsim.Handler(db, opts))
	},
	DisableAutoGenTag: true,
}
