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
	"fmt"
	"sort"
)

// BlockType tags the unit operation a block performs.
type BlockType string

// The available unit-operation block types.
const (
	FeedBlock          BlockType = "feed"
	MixerBlock         BlockType = "mixer"
	SplitterBlock      BlockType = "splitter"
	HeaterBlock        BlockType = "heater"
	CoolerBlock        BlockType = "cooler"
	PumpBlock          BlockType = "pump"
	FlashBlock         BlockType = "flash"
	AbsorberBlock      BlockType = "absorber"
	StripperBlock      BlockType = "stripper"
	HeatExchangerBlock BlockType = "heatx"
	SinkBlock          BlockType = "sink"
)

// PortDirection tells whether a port accepts or produces a stream.
type PortDirection string

const (
	// In ports accept a stream.
	In PortDirection = "in"
	// Out ports produce a stream.
	Out PortDirection = "out"
)

// Port is a named attachment point on a block.
type Port struct {
	Name      string        `json:"name"`
	Direction PortDirection `json:"direction"`
}

// Block is one unit operation in a flowsheet graph.
type Block struct {
	ID     string    `json:"id"`
	Type   BlockType `json:"type"`
	Name   string    `json:"name,omitempty"`
	Params Params    `json:"params,omitempty"`
	// Ports may be omitted in the serialized form, in which case the
	// standard ports for the block type are filled in on load.
	Ports []Port `json:"ports,omitempty"`
}

// Port returns the named port.
func (b *Block) Port(name string) (Port, bool) {
	for _, p := range b.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Label returns the block's display name, falling back to its ID.
func (b *Block) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return b.ID
}

// Endpoint references one port on one block.
type Endpoint struct {
	Block string `json:"block"`
	Port  string `json:"port"`
}

func (e Endpoint) String() string { return e.Block + "." + e.Port }

// Connection is a directed stream edge from an output port to an
// input port.
type Connection struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// ComponentRef names a chemical component the flowsheet uses, so
// editors can present the palette without a property lookup.
type ComponentRef struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Formula string `json:"formula,omitempty"`
}

// Graph is a flowsheet: blocks joined by stream connections. Layout
// holds editor display state and passes through the simulation
// untouched.
type Graph struct {
	Name        string          `json:"name,omitempty"`
	Blocks      []*Block        `json:"blocks"`
	Connections []*Connection   `json:"connections"`
	Components  []ComponentRef  `json:"components,omitempty"`
	Layout      json.RawMessage `json:"layout,omitempty"`
}

// Block returns the block with the given ID.
func (g *Graph) Block(id string) (*Block, bool) {
	for _, b := range g.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// defaultPorts returns the standard port set for a block type, used
// when a serialized block omits its ports.
func defaultPorts(t BlockType) []Port {
	switch t {
	case FeedBlock:
		return []Port{{"out", Out}}
	case MixerBlock:
		return []Port{{"in1", In}, {"in2", In}, {"out", Out}}
	case SplitterBlock:
		return []Port{{"in", In}, {"out1", Out}, {"out2", Out}}
	case HeaterBlock, CoolerBlock, PumpBlock:
		return []Port{{"in", In}, {"out", Out}}
	case FlashBlock:
		return []Port{{"in", In}, {"vapor", Out}, {"liquid", Out}}
	case AbsorberBlock:
		return []Port{{"gasIn", In}, {"liquidIn", In}, {"gasOut", Out}, {"liquidOut", Out}}
	case StripperBlock:
		return []Port{{"in", In}, {"overhead", Out}, {"bottoms", Out}}
	case HeatExchangerBlock:
		return []Port{{"hotIn", In}, {"coldIn", In}, {"hotOut", Out}, {"coldOut", Out}}
	case SinkBlock:
		return []Port{{"in", In}}
	}
	return nil
}

// normalize fills in omitted ports and checks that IDs are present
// and unique. It is called on load, before validation.
func (g *Graph) normalize() error {
	blockIDs := make(map[string]struct{})
	for i, b := range g.Blocks {
		if b.ID == "" {
			return fmt.Errorf("flowsim: block %d has no ID", i)
		}
		if _, ok := blockIDs[b.ID]; ok {
			return fmt.Errorf("flowsim: duplicate block ID %q", b.ID)
		}
		blockIDs[b.ID] = struct{}{}
		if len(b.Ports) == 0 {
			b.Ports = defaultPorts(b.Type)
		}
	}
	connIDs := make(map[string]struct{})
	for i, c := range g.Connections {
		if c.ID == "" {
			return fmt.Errorf("flowsim: connection %d has no ID", i)
		}
		if _, ok := connIDs[c.ID]; ok {
			return fmt.Errorf("flowsim: duplicate connection ID %q", c.ID)
		}
		connIDs[c.ID] = struct{}{}
	}
	return nil
}

// endpointOK reports whether an endpoint names an existing port with
// the wanted direction.
func (g *Graph) endpointOK(e Endpoint, want PortDirection) bool {
	b, ok := g.Block(e.Block)
	if !ok {
		return false
	}
	p, ok := b.Port(e.Port)
	return ok && p.Direction == want
}

// Validate checks the graph's structure and returns its findings.
// Connections with dangling endpoints yield non-fatal connectivity
// findings and are ignored by the simulation; unknown block types are
// fatal.
func (g *Graph) Validate() []Finding {
	var findings []Finding
	for _, b := range g.Blocks {
		if defaultPorts(b.Type) == nil {
			findings = append(findings, Finding{
				Category: Connectivity,
				Message:  fmt.Sprintf("unknown block type %q", b.Type),
				Block:    b.ID,
				Fatal:    true,
			})
		}
	}
	seen := make(map[string]string) // destination endpoint → connection ID
	for _, c := range g.Connections {
		if !g.endpointOK(c.From, Out) {
			findings = append(findings, Finding{
				Category: Connectivity,
				Message:  fmt.Sprintf("source endpoint %s does not resolve to an output port", c.From),
				Stream:   c.ID,
			})
			continue
		}
		if !g.endpointOK(c.To, In) {
			findings = append(findings, Finding{
				Category: Connectivity,
				Message:  fmt.Sprintf("destination endpoint %s does not resolve to an input port", c.To),
				Stream:   c.ID,
			})
			continue
		}
		if prev, ok := seen[c.To.String()]; ok {
			findings = append(findings, Finding{
				Category: Connectivity,
				Message:  fmt.Sprintf("input port %s is already fed by stream %s", c.To, prev),
				Stream:   c.ID,
				Fatal:    true,
			})
			continue
		}
		seen[c.To.String()] = c.ID
	}
	return findings
}

// liveConnections returns the connections whose endpoints both
// resolve, in input order.
func (g *Graph) liveConnections() []*Connection {
	var live []*Connection
	seen := make(map[string]struct{})
	for _, c := range g.Connections {
		if !g.endpointOK(c.From, Out) || !g.endpointOK(c.To, In) {
			continue
		}
		if _, ok := seen[c.To.String()]; ok {
			continue
		}
		seen[c.To.String()] = struct{}{}
		live = append(live, c)
	}
	return live
}

// sortedBlockIDs returns every block ID in lexical order, for
// deterministic traversal.
func (g *Graph) sortedBlockIDs() []string {
	ids := make([]string, len(g.Blocks))
	for i, b := range g.Blocks {
		ids[i] = b.ID
	}
	sort.Strings(ids)
	return ids
}
