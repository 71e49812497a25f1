package projector

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ritzau/thoughtgraph/pkg/model"
)

// GraphDiff represents the difference between two projections
type GraphDiff struct {
	AddedNodes    []model.Node `json:"addedNodes"`
	RemovedNodes  []string     `json:"removedNodes"`
	ModifiedNodes []model.Node `json:"modifiedNodes"`
	AddedLinks    []model.Edge `json:"addedLinks"`
	RemovedLinks  []string     `json:"removedLinks"`
	ModifiedLinks []model.Edge `json:"modifiedLinks"`
	FullGraph     bool         `json:"fullGraph"`
}

// Empty reports whether the diff carries no changes
func (d *GraphDiff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedLinks) == 0 && len(d.RemovedLinks) == 0 && len(d.ModifiedLinks) == 0
}

// GraphSnapshot is a cached projection kept for diffing
type GraphSnapshot struct {
	Hash  string
	Nodes map[string]model.Node
	Links map[string]model.Edge
}

// CreateSnapshot indexes a projection for diffing. The hash covers the JSON
// form of the graph, so a graph that cannot be encoded is an error.
func CreateSnapshot(g *model.Graph) (*GraphSnapshot, error) {
	snapshot := &GraphSnapshot{
		Nodes: make(map[string]model.Node, len(g.Nodes)),
		Links: make(map[string]model.Edge, len(g.Links)),
	}
	for _, n := range g.Nodes {
		snapshot.Nodes[n.ID] = n
	}
	for _, l := range g.Links {
		snapshot.Links[l.ID] = l
	}

	jsonData, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("hash projection: %w", err)
	}
	hash := sha256.Sum256(jsonData)
	snapshot.Hash = fmt.Sprintf("%x", hash)

	return snapshot, nil
}

// ComputeDiff computes what changed between a snapshot and a new projection.
// Without a previous snapshot the whole graph is reported as added.
// Results are in the new graph's order so consumers see stable output.
func ComputeDiff(old *GraphSnapshot, g *model.Graph) *GraphDiff {
	if old == nil {
		return &GraphDiff{
			AddedNodes:    g.Nodes,
			RemovedNodes:  []string{},
			ModifiedNodes: []model.Node{},
			AddedLinks:    g.Links,
			RemovedLinks:  []string{},
			ModifiedLinks: []model.Edge{},
			FullGraph:     true,
		}
	}

	diff := &GraphDiff{
		AddedNodes:    make([]model.Node, 0),
		RemovedNodes:  make([]string, 0),
		ModifiedNodes: make([]model.Node, 0),
		AddedLinks:    make([]model.Edge, 0),
		RemovedLinks:  make([]string, 0),
		ModifiedLinks: make([]model.Edge, 0),
	}

	newNodes := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		newNodes[n.ID] = true
		if oldNode, exists := old.Nodes[n.ID]; exists {
			if !nodesEqual(oldNode, n) {
				diff.ModifiedNodes = append(diff.ModifiedNodes, n)
			}
		} else {
			diff.AddedNodes = append(diff.AddedNodes, n)
		}
	}
	for id := range old.Nodes {
		if !newNodes[id] {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	newLinks := make(map[string]bool, len(g.Links))
	for _, l := range g.Links {
		newLinks[l.ID] = true
		if oldLink, exists := old.Links[l.ID]; exists {
			if oldLink != l {
				diff.ModifiedLinks = append(diff.ModifiedLinks, l)
			}
		} else {
			diff.AddedLinks = append(diff.AddedLinks, l)
		}
	}
	for id := range old.Links {
		if !newLinks[id] {
			diff.RemovedLinks = append(diff.RemovedLinks, id)
		}
	}

	slices.Sort(diff.RemovedNodes)
	slices.Sort(diff.RemovedLinks)
	return diff
}

// nodesEqual compares the rendered fields of two nodes
func nodesEqual(a, b model.Node) bool {
	return a.ID == b.ID &&
		a.Kind == b.Kind &&
		a.Label == b.Label &&
		a.Group == b.Group &&
		a.Color == b.Color &&
		a.Size == b.Size
}
