package cycles

import (
	"testing"

	"github.com/ritzau/mfa-dashboard/pkg/flow"
	"github.com/ritzau/mfa-dashboard/pkg/model"
)

func buildGraph(pairs ...[2]string) *flow.Graph {
	links := make([]model.Link, 0, len(pairs))
	for _, p := range pairs {
		links = append(links, model.Link{Source: p[0], Target: p[1], Value: 1})
	}
	index := model.NodeIndexFromLinks(links)

	indexed := make([]model.IndexedLink, 0, len(links))
	for _, l := range links {
		s, _ := index.ID(l.Source)
		t, _ := index.ID(l.Target)
		indexed = append(indexed, model.IndexedLink{Source: s, Target: t, Value: l.Value})
	}
	return flow.NewGraph(index, indexed)
}

func TestFindFlowCycles_NoCycles(t *testing.T) {
	g := buildGraph(
		[2]string{"mining", "industry"},
		[2]string{"industry", "cars"},
		[2]string{"cars", "households"},
	)

	if cycles := FindFlowCycles(g); len(cycles) != 0 {
		t.Errorf("Expected no cycles, found %v", cycles)
	}
}

func TestFindFlowCycles_SimpleCycle(t *testing.T) {
	// households feed government, government returns paper to households
	g := buildGraph(
		[2]string{"households", "government"},
		[2]string{"government", "households"},
	)

	cycles := FindFlowCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, found %d", len(cycles))
	}

	want := []string{"households", "government"}
	got := cycles[0].Nodes
	if len(got) != len(want) {
		t.Fatalf("Expected cycle %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("node %d = %q, want %q", i, got[i], want[i])
		}
	}
	if s := cycles[0].String(); s != "households <-> government" {
		t.Errorf("String() = %q", s)
	}
}

func TestFindFlowCycles_TwoCycles(t *testing.T) {
	g := buildGraph(
		[2]string{"a", "b"},
		[2]string{"b", "a"},
		[2]string{"b", "c"},
		[2]string{"c", "d"},
		[2]string{"d", "e"},
		[2]string{"e", "c"},
	)

	cycles := FindFlowCycles(g)
	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycles, found %d: %v", len(cycles), cycles)
	}
	if len(cycles[0].Nodes) != 2 || cycles[0].Nodes[0] != "a" {
		t.Errorf("Expected first cycle to be a,b; got %v", cycles[0].Nodes)
	}
	if len(cycles[1].Nodes) != 3 || cycles[1].Nodes[0] != "c" {
		t.Errorf("Expected second cycle to be c,d,e; got %v", cycles[1].Nodes)
	}
}

func TestFindFlowCycles_SelfLoopIgnored(t *testing.T) {
	g := buildGraph([2]string{"recycling", "recycling"})

	if cycles := FindFlowCycles(g); len(cycles) != 0 {
		t.Errorf("Self loops are not cycles between nodes, got %v", cycles)
	}
	if g.SelfLoops() != 1 {
		t.Errorf("Expected 1 skipped self loop, got %d", g.SelfLoops())
	}
}
