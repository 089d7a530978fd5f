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
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/processmodel/flowsim/thermo"
	"gonum.org/v1/gonum/floats"
)

const (
	// defaultMaxSweeps caps the outer tear-stream iteration.
	defaultMaxSweeps = 50

	// defaultTearTolerance is the maximum relative change of any
	// tear-stream variable accepted as converged.
	defaultTearTolerance = 1.e-4
)

// TearAcceleration selects how tear-stream guesses are updated
// between sweeps.
type TearAcceleration int

const (
	// DirectSubstitution replaces each guess with the newly computed
	// value.
	DirectSubstitution TearAcceleration = iota
	// Wegstein extrapolates each tear variable from its last two
	// sweeps, with the acceleration factor clamped for stability.
	Wegstein
)

const (
	wegsteinMin = -5.
	wegsteinMax = 0.
)

// SimulationStatus is a snapshot of run progress, sent on the Log
// channel once per sweep.
type SimulationStatus struct {
	Sweep    int
	Status   RunStatus
	Blocks   int
	Tears    int
	Walltime time.Duration
}

func (s *SimulationStatus) String() string {
	return fmt.Sprintf("Sweep %-3d  status=%-12s  blocks=%d  tears=%d  walltime=%v",
		s.Sweep, s.Status, s.Blocks, s.Tears, s.Walltime)
}

// ConvergenceStatus reports the outcome of one tear-stream
// convergence check.
type ConvergenceStatus struct {
	Sweep     int
	Tears     int
	MaxDelta  float64
	Tolerance float64
	Done      bool
	Converged bool
}

func (c ConvergenceStatus) String() string {
	if c.Tears == 0 {
		return "No tear streams; flowsheet converged in a single sweep."
	}
	return fmt.Sprintf("Sweep %d: tear-stream change = %.3g (tolerance %.3g)",
		c.Sweep, c.MaxDelta, c.Tolerance)
}

// ensureTopology builds the live-connection indexes if they are not
// built yet.
func (f *Flowsheet) ensureTopology() {
	if f.incoming != nil {
		return
	}
	f.live = f.Graph.liveConnections()
	f.incoming = make(map[string]map[string]*Connection)
	f.outgoing = make(map[string][]*Connection)
	for _, c := range f.live {
		m, ok := f.incoming[c.To.Block]
		if !ok {
			m = make(map[string]*Connection)
			f.incoming[c.To.Block] = m
		}
		m[c.To.Port] = c
		f.outgoing[c.From.Block] = append(f.outgoing[c.From.Block], c)
	}
	for _, conns := range f.outgoing {
		sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	}
}

// ValidateGraph returns a function that normalizes and validates the
// flowsheet graph, records the findings, and aborts the run if any
// are fatal.
func ValidateGraph() FlowsheetManipulator {
	return func(f *Flowsheet) error {
		if f.Graph == nil {
			return fmt.Errorf("flowsim: flowsheet has no graph")
		}
		if f.DB == nil {
			f.DB = thermo.DefaultDB()
		}
		if err := f.Graph.normalize(); err != nil {
			return err
		}
		var firstFatal *Finding
		for _, fd := range f.Graph.Validate() {
			f.addFinding(fd)
			if fd.Fatal && firstFatal == nil {
				fdCopy := fd
				firstFatal = &fdCopy
			}
		}
		if firstFatal != nil {
			return fmt.Errorf("flowsim: invalid flowsheet: %s", firstFatal)
		}
		f.ensureTopology()
		return nil
	}
}

// SeedFeeds returns a function that creates the outlet stream of
// every feed block from its parameters, before any sweeps run.
func SeedFeeds() FlowsheetManipulator {
	return func(f *Flowsheet) error {
		f.ensureTopology()
		if f.results == nil {
			f.results = make(map[string]*BlockResult)
		}
		f.feeds = make(map[string]*Stream)
		for _, b := range f.Graph.Blocks {
			if b.Type != FeedBlock {
				continue
			}
			res, err := Feed(&BlockInput{Block: b, DB: f.DB})
			if res != nil {
				f.results[b.ID] = res
			}
			if err != nil {
				return err
			}
			for port, s := range res.Streams {
				for _, c := range f.outgoing[b.ID] {
					if c.From.Port != port {
						continue
					}
					out := s.Clone()
					out.Conn = c.ID
					f.feeds[c.ID] = out
				}
			}
		}
		f.status = FeedsSeeded
		return nil
	}
}

// OrderBlocks returns a function that fixes the block execution order
// by depth-first topological sort. Back-edges, which close recycle
// loops, are designated tear streams and seeded with an empty guess
// at ambient conditions.
func OrderBlocks() FlowsheetManipulator {
	const (
		white = iota // unvisited
		gray         // on the traversal stack
		black        // finished
	)
	return func(f *Flowsheet) error {
		f.ensureTopology()
		color := make(map[string]int, len(f.Graph.Blocks))
		var postorder []*Block
		var tears []*Connection
		var visit func(id string)
		visit = func(id string) {
			color[id] = gray
			for _, c := range f.outgoing[id] {
				switch color[c.To.Block] {
				case white:
					visit(c.To.Block)
				case gray:
					// A back-edge: tearing it makes the rest of the
					// loop acyclic.
					tears = append(tears, c)
				}
			}
			color[id] = black
			if b, ok := f.Graph.Block(id); ok {
				postorder = append(postorder, b)
			}
		}
		for _, id := range f.Graph.sortedBlockIDs() {
			if color[id] == white {
				visit(id)
			}
		}
		f.order = f.order[:0]
		for i := len(postorder) - 1; i >= 0; i-- {
			if postorder[i].Type == FeedBlock {
				continue // already seeded
			}
			f.order = append(f.order, postorder[i])
		}
		f.tears = tears
		f.tearState = make(map[string]*Stream, len(tears))
		for _, c := range tears {
			f.tearState[c.ID] = emptyTearStream(c.ID)
		}
		return nil
	}
}

// emptyTearStream is the initial guess for a tear stream: zero flow
// at ambient conditions with no composition.
func emptyTearStream(connID string) *Stream {
	return &Stream{
		Conn:  connID,
		T:     thermo.TRef,
		P:     thermo.PAtm,
		Comp:  make(thermo.Composition),
		Phase: thermo.Liquid,
	}
}

// ExecuteBlocks returns a function that runs one sweep: every ordered
// block executes once, reading this sweep's upstream outputs, with
// tear streams taking their value from the previous sweep's guess.
func ExecuteBlocks() FlowsheetManipulator {
	return func(f *Flowsheet) error {
		f.sweep++
		if f.results == nil {
			f.results = make(map[string]*BlockResult)
		}
		f.streams = make(map[string]*Stream, len(f.live))
		for id, s := range f.feeds {
			f.streams[id] = s.Clone()
		}
		tear := make(map[string]bool, len(f.tears))
		for _, c := range f.tears {
			tear[c.ID] = true
		}
		for _, b := range f.order {
			fn, err := BlockFuncFor(b.Type)
			if err != nil {
				return err
			}
			in := &BlockInput{Block: b, DB: f.DB, Streams: make(map[string]*Stream)}
			for port, c := range f.incoming[b.ID] {
				var s *Stream
				if tear[c.ID] {
					s = f.tearState[c.ID]
				} else {
					s = f.streams[c.ID]
				}
				if s != nil {
					in.Streams[port] = s
				}
			}
			res, err := fn(in)
			if res != nil {
				f.results[b.ID] = res
			}
			if err != nil {
				return err
			}
			for port, s := range res.Streams {
				for _, c := range f.outgoing[b.ID] {
					if c.From.Port != port {
						continue
					}
					out := s.Clone()
					out.Conn = c.ID
					f.streams[c.ID] = out
				}
			}
		}
		return nil
	}
}

// TearConvergenceCheck returns a function that compares each tear
// stream's newly computed value against the guess it was fed, sets
// Done when the largest relative change is within tolerance or the
// sweep cap is reached, and otherwise updates the guesses for the
// next sweep. A nil channel disables progress reporting.
func TearConvergenceCheck(maxSweeps int, tolerance float64, accel TearAcceleration, c chan ConvergenceStatus) FlowsheetManipulator {
	if maxSweeps <= 0 {
		maxSweeps = defaultMaxSweeps
	}
	if tolerance <= 0 {
		tolerance = defaultTearTolerance
	}
	// The previous sweep's guess/result pair for each tear, for
	// Wegstein extrapolation.
	prevX := make(map[string][]float64)
	prevG := make(map[string][]float64)
	return func(f *Flowsheet) error {
		if len(f.tears) == 0 {
			f.Done, f.Converged = true, true
			if c != nil {
				c <- ConvergenceStatus{Sweep: f.sweep, Done: true, Converged: true}
			}
			return nil
		}
		type tearPair struct {
			conn *Connection
			ids  []string
			x, g []float64
		}
		var pairs []tearPair
		var maxDelta float64
		for _, conn := range f.tears {
			g := f.streams[conn.ID]
			x := f.tearState[conn.ID]
			if g == nil {
				// The producing block was skipped; there is nothing
				// to compare or update.
				continue
			}
			ids := unionIDs(x.Comp, g.Comp)
			xv := tearVector(x, ids)
			gv := tearVector(g, ids)
			maxDelta = math.Max(maxDelta, tearDelta(xv, gv))
			pairs = append(pairs, tearPair{conn: conn, ids: ids, x: xv, g: gv})
		}
		switch {
		case maxDelta <= tolerance:
			f.Done, f.Converged = true, true
		case f.sweep >= maxSweeps:
			f.Done, f.Converged = true, false
			f.addFinding(Finding{
				Category: Convergence,
				Message: fmt.Sprintf("tear streams did not converge within %d sweeps: relative change %.3g exceeds tolerance %.3g",
					maxSweeps, maxDelta, tolerance),
			})
		default:
			for _, p := range pairs {
				next := p.g
				if accel == Wegstein &&
					len(prevX[p.conn.ID]) == len(p.x) && len(prevG[p.conn.ID]) == len(p.g) {
					next = wegsteinUpdate(prevX[p.conn.ID], prevG[p.conn.ID], p.x, p.g)
				}
				f.tearState[p.conn.ID] = streamFromVector(f.DB, p.conn.ID, p.ids, next)
				prevX[p.conn.ID] = p.x
				prevG[p.conn.ID] = p.g
			}
		}
		if c != nil {
			c <- ConvergenceStatus{
				Sweep:     f.sweep,
				Tears:     len(f.tears),
				MaxDelta:  maxDelta,
				Tolerance: tolerance,
				Done:      f.Done,
				Converged: f.Converged,
			}
		}
		return nil
	}
}

// unionIDs returns the sorted union of the component IDs in two
// compositions.
func unionIDs(a, b thermo.Composition) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		seen[id] = struct{}{}
	}
	for id := range b {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// tearVector flattens a stream into the comparison vector
// [flow, T, P, x...] with mole fractions in the order of ids.
func tearVector(s *Stream, ids []string) []float64 {
	v := make([]float64, 0, len(ids)+3)
	v = append(v, s.Flow, s.T, s.P)
	for _, id := range ids {
		v = append(v, s.Comp[id])
	}
	return v
}

// tearDelta returns the largest elementwise change from x to g,
// relative to the magnitude of x with a floor of one so that mole
// fractions are compared absolutely.
func tearDelta(x, g []float64) float64 {
	var d float64
	for i := range x {
		den := math.Max(math.Abs(x[i]), 1.)
		d = math.Max(d, math.Abs(g[i]-x[i])/den)
	}
	return d
}

// wegsteinUpdate extrapolates the next guess from the last two
// guess/result pairs, elementwise, clamping the acceleration factor
// to [wegsteinMin, wegsteinMax].
func wegsteinUpdate(xPrev, gPrev, x, g []float64) []float64 {
	dx := make([]float64, len(x))
	copy(dx, x)
	floats.Sub(dx, xPrev)
	dg := make([]float64, len(g))
	copy(dg, g)
	floats.Sub(dg, gPrev)
	next := make([]float64, len(x))
	for i := range x {
		q := 0.
		if dx[i] != 0 {
			s := dg[i] / dx[i]
			if s != 1 {
				q = s / (s - 1.)
			}
		}
		q = math.Min(math.Max(q, wegsteinMin), wegsteinMax)
		next[i] = q*x[i] + (1.-q)*g[i]
	}
	return next
}

// streamFromVector rebuilds a tear-stream guess from a comparison
// vector, clamping it into the physical domain and re-deriving the
// dependent state.
func streamFromVector(db *thermo.ComponentDB, connID string, ids []string, v []float64) *Stream {
	s := &Stream{
		Conn: connID,
		Flow: math.Max(v[0], 0),
		T:    math.Min(math.Max(v[1], minTemperature), maxTemperature),
		P:    math.Max(v[2], 1.),
	}
	xs := make([]float64, len(ids))
	copy(xs, v[3:])
	for i := range xs {
		if xs[i] < 0 {
			xs[i] = 0
		}
	}
	s.Comp = make(thermo.Composition, len(ids))
	if sum := floats.Sum(xs); sum > 0 {
		floats.Scale(1./sum, xs)
		for i, id := range ids {
			if xs[i] > 0 {
				s.Comp[id] = xs[i]
			}
		}
	}
	s.derive(db)
	return s
}

// Log returns a function that sends a status snapshot on c after each
// sweep. A nil channel disables reporting.
func Log(c chan *SimulationStatus) FlowsheetManipulator {
	startTime := time.Now()
	return func(f *Flowsheet) error {
		if c == nil {
			return nil
		}
		c <- &SimulationStatus{
			Sweep:    f.sweep + 1,
			Status:   f.status,
			Blocks:   len(f.order),
			Tears:    len(f.tears),
			Walltime: time.Since(startTime),
		}
		return nil
	}
}
