package flow

import (
	"sort"

	"github.com/ritzau/mfa-dashboard/pkg/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is the weighted flow graph behind a Sankey diagram. Node ids are node index ids;
// parallel links between the same pair are merged by summing their values.
type Graph struct {
	graph     *simple.WeightedDirectedGraph
	index     *model.NodeIndex
	selfLoops int
}

// NewGraph builds a flow graph over links whose ids come from index
func NewGraph(index *model.NodeIndex, links []model.IndexedLink) *Graph {
	g := &Graph{
		graph: simple.NewWeightedDirectedGraph(0, 0),
		index: index,
	}

	// Every indexed name becomes a node, even if all its links are self loops
	for id := 0; id < index.Len(); id++ {
		g.graph.AddNode(simple.Node(int64(id)))
	}

	for _, l := range links {
		g.AddFlow(l.Source, l.Target, l.Value)
	}
	return g
}

// AddFlow adds value to the edge source -> target. Self loops are counted but not stored
// since they carry no material between nodes.
func (g *Graph) AddFlow(source, target int, value float64) {
	if source == target {
		g.selfLoops++
		return
	}

	from, to := int64(source), int64(target)
	for _, id := range []int64{from, to} {
		if g.graph.Node(id) == nil {
			g.graph.AddNode(simple.Node(id))
		}
	}

	if existing := g.graph.WeightedEdge(from, to); existing != nil {
		value += existing.Weight()
	}
	g.graph.SetWeightedEdge(g.graph.NewWeightedEdge(g.graph.Node(from), g.graph.Node(to), value))
}

// Directed exposes the underlying graph for algorithms
func (g *Graph) Directed() graph.Directed {
	return g.graph
}

// Name resolves a graph node id to its node name
func (g *Graph) Name(id int64) string {
	name, _ := g.index.Name(int(id))
	return name
}

// SelfLoops returns how many self-referencing links were skipped
func (g *Graph) SelfLoops() int {
	return g.selfLoops
}

// Flow returns the merged value on source -> target, or 0
func (g *Graph) Flow(source, target string) float64 {
	from, ok := g.index.ID(source)
	if !ok {
		return 0
	}
	to, ok := g.index.ID(target)
	if !ok {
		return 0
	}
	if e := g.graph.WeightedEdge(int64(from), int64(to)); e != nil {
		return e.Weight()
	}
	return 0
}

// NodeRole describes where a node sits in the flow
type NodeRole string

const (
	RoleSource   NodeRole = "source"  // Only outgoing flows
	RoleSink     NodeRole = "sink"    // Only incoming flows
	RoleTransit  NodeRole = "transit" // Both
	RoleIsolated NodeRole = "isolated"
)

// NodeBalance is the mass balance of a single node
type NodeBalance struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Inflow  float64  `json:"inflow"`
	Outflow float64  `json:"outflow"`
	Net     float64  `json:"net"` // Inflow minus outflow; positive means accumulation
	Role    NodeRole `json:"role"`
}

// Balance computes inflow and outflow for every node, ordered by node id
func (g *Graph) Balance() []NodeBalance {
	nodes := g.graph.Nodes()
	balances := make([]NodeBalance, 0, nodes.Len())

	for nodes.Next() {
		id := nodes.Node().ID()
		b := NodeBalance{ID: int(id), Name: g.Name(id)}

		to := g.graph.To(id)
		for to.Next() {
			b.Inflow += g.graph.WeightedEdge(to.Node().ID(), id).Weight()
		}
		from := g.graph.From(id)
		for from.Next() {
			b.Outflow += g.graph.WeightedEdge(id, from.Node().ID()).Weight()
		}
		b.Net = b.Inflow - b.Outflow
		b.Role = role(g.graph.To(id).Len(), g.graph.From(id).Len())

		balances = append(balances, b)
	}

	sort.Slice(balances, func(i, j int) bool { return balances[i].ID < balances[j].ID })
	return balances
}

func role(in, out int) NodeRole {
	switch {
	case in == 0 && out == 0:
		return RoleIsolated
	case in == 0:
		return RoleSource
	case out == 0:
		return RoleSink
	default:
		return RoleTransit
	}
}
