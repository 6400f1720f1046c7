package cycles

import (
	"sort"
	"strings"

	"github.com/ritzau/mfa-dashboard/pkg/flow"
	"gonum.org/v1/gonum/graph/topo"
)

// FlowCycle is a set of nodes that pass material around in a loop.
// Sankey layouts cannot place these nodes left to right.
type FlowCycle struct {
	Nodes []string `json:"nodes"` // Node names, ordered by node id
}

func (c FlowCycle) String() string {
	return strings.Join(c.Nodes, " <-> ")
}

// FindFlowCycles returns every strongly connected component with more than one node,
// ordered by the smallest node id it contains
func FindFlowCycles(g *flow.Graph) []FlowCycle {
	sccs := topo.TarjanSCC(g.Directed())

	type component struct {
		ids []int64
	}
	components := make([]component, 0)
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		ids := make([]int64, 0, len(scc))
		for _, n := range scc {
			ids = append(ids, n.ID())
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		components = append(components, component{ids: ids})
	}

	sort.Slice(components, func(i, j int) bool { return components[i].ids[0] < components[j].ids[0] })

	cycles := make([]FlowCycle, 0, len(components))
	for _, c := range components {
		names := make([]string, 0, len(c.ids))
		for _, id := range c.ids {
			names = append(names, g.Name(id))
		}
		cycles = append(cycles, FlowCycle{Nodes: names})
	}
	return cycles
}
