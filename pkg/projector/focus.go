package projector

import (
	"github.com/ritzau/thoughtgraph/pkg/model"
)

// Unreachable marks nodes with no path to any selected node
const Unreachable = -1

type distanceQueueNode struct {
	nodeID   string
	distance int
}

// ComputeDistances returns the undirected hop count from every node to the
// nearest selected node. Nodes that cannot be reached get Unreachable.
func ComputeDistances(g *model.Graph, selected []string) map[string]int {
	distances := make(map[string]int, len(g.Nodes))

	adjacency := buildAdjacencyList(g)

	queue := make([]distanceQueueNode, 0, len(selected))
	for _, id := range selected {
		if !g.HasNode(id) {
			continue
		}
		if _, seen := distances[id]; seen {
			continue
		}
		distances[id] = 0
		queue = append(queue, distanceQueueNode{nodeID: id})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.nodeID] {
			if _, exists := distances[neighbor]; !exists {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: current.distance + 1})
			}
		}
	}

	for _, n := range g.Nodes {
		if _, exists := distances[n.ID]; !exists {
			distances[n.ID] = Unreachable
		}
	}
	return distances
}

// buildAdjacencyList creates an undirected adjacency list from graph links
func buildAdjacencyList(g *model.Graph) map[string][]string {
	adjacency := make(map[string][]string)
	for _, link := range g.Links {
		adjacency[link.Source] = append(adjacency[link.Source], link.Target)
		adjacency[link.Target] = append(adjacency[link.Target], link.Source)
	}
	return adjacency
}

// Focus returns the part of g within depth hops of nodeID. Node sizes are kept
// from the full graph. An unknown node yields an empty graph.
func Focus(g *model.Graph, nodeID string, depth int) *model.Graph {
	focused := model.NewGraph()
	if !g.HasNode(nodeID) || depth < 0 {
		return focused
	}

	distances := ComputeDistances(g, []string{nodeID})
	for _, n := range g.Nodes {
		if d := distances[n.ID]; d != Unreachable && d <= depth {
			focused.AddNode(n)
		}
	}
	for _, link := range g.Links {
		if focused.HasNode(link.Source) && focused.HasNode(link.Target) {
			focused.AddEdge(link)
		}
	}
	return focused
}
