package projector

import (
	"slices"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ConnectionGraph mirrors a projection into gonum graphs for structural queries
type ConnectionGraph struct {
	directed   *simple.DirectedGraph
	undirected *simple.UndirectedGraph
	ids        map[string]int64
	names      []string
}

// NewConnectionGraph indexes every node and link of a projection
func NewConnectionGraph(g *model.Graph) *ConnectionGraph {
	cg := &ConnectionGraph{
		directed:   simple.NewDirectedGraph(),
		undirected: simple.NewUndirectedGraph(),
		ids:        make(map[string]int64, len(g.Nodes)),
		names:      make([]string, 0, len(g.Nodes)),
	}
	for _, n := range g.Nodes {
		cg.addNode(n.ID)
	}
	for _, l := range g.Links {
		cg.addLink(l.Source, l.Target)
	}
	return cg
}

func (cg *ConnectionGraph) addNode(id string) int64 {
	if nid, ok := cg.ids[id]; ok {
		return nid
	}
	nid := int64(len(cg.names))
	cg.ids[id] = nid
	cg.names = append(cg.names, id)
	cg.directed.AddNode(simple.Node(nid))
	cg.undirected.AddNode(simple.Node(nid))
	return nid
}

func (cg *ConnectionGraph) addLink(source, target string) {
	if source == target {
		return
	}
	from := cg.addNode(source)
	to := cg.addNode(target)
	if !cg.directed.HasEdgeFromTo(from, to) {
		cg.directed.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}
	if !cg.undirected.HasEdgeBetween(from, to) {
		cg.undirected.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}
}

// Degree counts distinct neighbours in either direction
func (cg *ConnectionGraph) Degree(id string) int {
	nid, ok := cg.ids[id]
	if !ok {
		return 0
	}
	return cg.undirected.From(nid).Len()
}

// Components returns the connected components, each sorted by node id,
// largest first
func (cg *ConnectionGraph) Components() [][]string {
	return cg.named(topo.ConnectedComponents(cg.undirected))
}

// Loops returns groups of nodes that reach each other through directed
// connections, such as A causes B causes A
func (cg *ConnectionGraph) Loops() [][]string {
	var loops [][]graph.Node
	for _, scc := range topo.TarjanSCC(cg.directed) {
		if len(scc) > 1 {
			loops = append(loops, scc)
		}
	}
	return cg.named(loops)
}

func (cg *ConnectionGraph) named(groups [][]graph.Node) [][]string {
	result := make([][]string, 0, len(groups))
	for _, group := range groups {
		ids := make([]string, len(group))
		for i, n := range group {
			ids[i] = cg.names[n.ID()]
		}
		slices.Sort(ids)
		result = append(result, ids)
	}
	slices.SortStableFunc(result, func(a, b []string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return slices.Compare(a, b)
	})
	return result
}

// Stats summarises a projection
type Stats struct {
	Nodes         int                      `json:"nodes"`
	Links         int                      `json:"links"`
	NodesByKind   map[model.EntityKind]int `json:"nodesByKind"`
	Relationships map[string]int           `json:"relationships"`
	Isolated      []string                 `json:"isolated"`
	Components    int                      `json:"components"`
	Largest       int                      `json:"largestComponent"`
	Loops         [][]string               `json:"loops"`
	AverageDegree float64                  `json:"averageDegree"`
	Hub           string                   `json:"hub,omitempty"`
	HubDegree     int                      `json:"hubDegree"`
}

// ComputeStats gathers counts and structural measures for a projection
func ComputeStats(g *model.Graph) *Stats {
	stats := &Stats{
		Nodes:         len(g.Nodes),
		Links:         len(g.Links),
		NodesByKind:   make(map[model.EntityKind]int),
		Relationships: make(map[string]int),
		Isolated:      make([]string, 0),
		Loops:         make([][]string, 0),
	}
	if g.Empty() {
		return stats
	}

	cg := NewConnectionGraph(g)

	totalDegree := 0
	for _, n := range g.Nodes {
		stats.NodesByKind[n.Kind]++
		d := cg.Degree(n.ID)
		totalDegree += d
		if d == 0 {
			stats.Isolated = append(stats.Isolated, n.ID)
		}
		if d > stats.HubDegree {
			stats.Hub = n.ID
			stats.HubDegree = d
		}
	}
	for _, l := range g.Links {
		stats.Relationships[string(l.Relationship)]++
	}

	components := cg.Components()
	stats.Components = len(components)
	if len(components) > 0 {
		stats.Largest = len(components[0])
	}
	stats.Loops = cg.Loops()
	stats.AverageDegree = float64(totalDegree) / float64(len(g.Nodes))

	return stats
}
