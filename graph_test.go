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
	"strings"
	"testing"
)

// conn is a test helper building a connection between two default
// ports.
func conn(id, fromBlock, fromPort, toBlock, toPort string) *Connection {
	return &Connection{
		ID:   id,
		From: Endpoint{Block: fromBlock, Port: fromPort},
		To:   Endpoint{Block: toBlock, Port: toPort},
	}
}

func TestGraphNormalize(t *testing.T) {
	g := &Graph{Blocks: []*Block{
		{ID: "f", Type: FeedBlock},
		{ID: "x", Type: FlashBlock},
	}}
	if err := g.normalize(); err != nil {
		t.Fatal(err)
	}
	b, _ := g.Block("x")
	if len(b.Ports) != 3 {
		t.Errorf("flash should get 3 default ports, have %d", len(b.Ports))
	}
	if p, ok := b.Port("vapor"); !ok || p.Direction != Out {
		t.Errorf("flash should have a vapor output port, have %+v", p)
	}

	g = &Graph{Blocks: []*Block{{ID: "a", Type: FeedBlock}, {ID: "a", Type: SinkBlock}}}
	if err := g.normalize(); err == nil {
		t.Error("duplicate block IDs should be rejected")
	}

	g = &Graph{Blocks: []*Block{{Type: FeedBlock}}}
	if err := g.normalize(); err == nil {
		t.Error("a block without an ID should be rejected")
	}
}

func TestGraphValidate(t *testing.T) {
	g := &Graph{
		Blocks: []*Block{
			{ID: "f", Type: FeedBlock},
			{ID: "s", Type: SinkBlock},
		},
		Connections: []*Connection{
			conn("ok", "f", "out", "s", "in"),
			conn("dangling", "f", "out", "ghost", "in"),
			conn("backwards", "s", "in", "f", "out"),
		},
	}
	if err := g.normalize(); err != nil {
		t.Fatal(err)
	}
	findings := g.Validate()
	if len(findings) != 2 {
		t.Fatalf("have %d findings, want 2: %v", len(findings), findings)
	}
	for _, fd := range findings {
		if fd.Category != Connectivity {
			t.Errorf("have category %v, want connectivity", fd.Category)
		}
		if fd.Fatal {
			t.Errorf("dangling endpoints should not be fatal: %v", fd)
		}
	}

	// Dangling connections are dropped from the live set.
	live := g.liveConnections()
	if len(live) != 1 || live[0].ID != "ok" {
		t.Errorf("have live connections %v, want [ok]", live)
	}
}

func TestGraphValidateUnknownBlockType(t *testing.T) {
	g := &Graph{Blocks: []*Block{{ID: "r", Type: "reactor"}}}
	if err := g.normalize(); err != nil {
		t.Fatal(err)
	}
	findings := g.Validate()
	if len(findings) != 1 || !findings[0].Fatal {
		t.Fatalf("an unknown block type should be a fatal finding, have %v", findings)
	}
	if !strings.Contains(findings[0].Message, "reactor") {
		t.Errorf("the finding should name the offending type: %q", findings[0].Message)
	}
}

func TestGraphValidateDoubleFeed(t *testing.T) {
	g := &Graph{
		Blocks: []*Block{
			{ID: "f1", Type: FeedBlock},
			{ID: "f2", Type: FeedBlock},
			{ID: "s", Type: SinkBlock},
		},
		Connections: []*Connection{
			conn("c1", "f1", "out", "s", "in"),
			conn("c2", "f2", "out", "s", "in"),
		},
	}
	if err := g.normalize(); err != nil {
		t.Fatal(err)
	}
	findings := g.Validate()
	if len(findings) != 1 || !findings[0].Fatal || findings[0].Stream != "c2" {
		t.Fatalf("feeding one port twice should be a fatal finding on c2, have %v", findings)
	}
}
