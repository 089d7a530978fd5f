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
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/processmodel/flowsim"
	"github.com/processmodel/flowsim/thermo"
	"github.com/spf13/cobra"
)

// Run carries a flowsheet through a complete simulation.
//
// CobraCommand is the cobra.Command instance where Run is called from;
// its output stream receives the log alongside LogFile.
//
// LogFile is the path to the desired logfile location.
//
// OutputFile is the path to the desired output file location; its
// extension selects the format.
//
// FlowsheetFile is the path to the flowsheet graph to simulate.
//
// db is the component property registry; opts holds the orchestration
// settings. The progress channels in opts are replaced with ones that
// feed the log.
func Run(CobraCommand *cobra.Command, LogFile, OutputFile, FlowsheetFile string,
	db *thermo.ComponentDB, opts flowsim.RunOptions) error {

	startTime := time.Now()

	// Start a function to receive and print log messages.
	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("flowsim: problem creating log file: %v", err)
	}
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)
	cConverge := make(chan flowsim.ConvergenceStatus)
	cLog := make(chan *flowsim.SimulationStatus)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		for msg := range cConverge {
			log.Println(msg.String())
		}
		wg.Done()
	}()
	go func() {
		for msg := range cLog {
			log.Println(msg.String())
		}
		wg.Done()
	}()

	defer func() { // Wait for the logging to finish.
		close(cConverge)
		close(cLog)
		wg.Wait()
		logfile.Close()
	}()

	opts.OutputFile = OutputFile
	opts.LogChan = cLog
	opts.ConvergeChan = cConverge

	log.Println("Reading flowsheet...")
	f, err := os.Open(FlowsheetFile)
	if err != nil {
		return fmt.Errorf("flowsim: problem loading flowsheet: %v", err)
	}
	g, err := flowsim.LoadGraph(f)
	f.Close()
	if err != nil {
		return err
	}
	log.Printf("Flowsheet %q: %d blocks, %d connections", g.Name, len(g.Blocks), len(g.Connections))

	log.Println("Running simulation...")
	result, runErr := flowsim.RunFlowsheet(g, db, opts)
	if result != nil {
		logResult(result)
	}
	if runErr != nil {
		return fmt.Errorf("flowsim: problem running simulation: %v", runErr)
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %v", elapsedTime)

	return nil
}

// logResult prints the run summary: status, convergence, findings, and
// KPI values.
func logResult(r *flowsim.Result) {
	log.Printf("Run finished with status %q after %d sweep(s); converged=%v",
		r.Status, r.Sweeps, r.Converged)
	if len(r.Tears) > 0 {
		log.Printf("Tear streams: %v", r.Tears)
	}
	for _, fd := range r.Findings {
		log.Println(fd.String())
	}
	names := make([]string, 0, len(r.KPIs))
	for name := range r.KPIs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Printf("KPI %s = %g", name, r.KPIs[name])
	}
}
