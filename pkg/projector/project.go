// Package projector derives the renderable graph from the record collections
// and the stored connections. Nothing it produces is persisted.
package projector

import (
	"github.com/ritzau/thoughtgraph/pkg/model"
)

// Visibility and sizing constants
const (
	// TagVisibleCount is the usage count at which an unconnected tag is shown
	TagVisibleCount = 2

	entitySizeBase   = 15
	entitySizeFactor = 5
	entitySizeMax    = 50

	tagSizeBase   = 10
	tagSizeFactor = 5
	tagSizeMax    = 40
)

// Project builds the node and link sets for a snapshot.
//
// Every content item becomes a node. Memos appear only when at least one
// connection touches them; tags appear when connected or used at least
// TagVisibleCount times. Links whose endpoints are not nodes are dropped.
func Project(snap model.Snapshot) *model.Graph {
	degree := make(map[string]int)
	for _, c := range snap.Connections {
		degree[c.SourceID]++
		if c.TargetID != c.SourceID {
			degree[c.TargetID]++
		}
	}

	g := model.NewGraph()

	for i := range snap.Contents {
		content := &snap.Contents[i]
		g.AddNode(model.Node{
			ID:        content.ID,
			Kind:      model.KindContent,
			Label:     content.Title,
			Group:     model.KindContent.Group(),
			Color:     model.NodeColor(model.KindContent.Group()),
			Size:      EntitySize(degree[content.ID]),
			SourceRef: content,
		})
	}

	for i := range snap.Memos {
		memo := &snap.Memos[i]
		if degree[memo.ID] == 0 {
			continue
		}
		g.AddNode(model.Node{
			ID:        memo.ID,
			Kind:      model.KindMemo,
			Label:     model.MemoLabel(memo.Text),
			Group:     model.KindMemo.Group(),
			Color:     model.NodeColor(model.KindMemo.Group()),
			Size:      EntitySize(degree[memo.ID]),
			SourceRef: memo,
		})
	}

	for i := range snap.Tags {
		tag := &snap.Tags[i]
		if degree[tag.ID] == 0 && tag.Count < TagVisibleCount {
			continue
		}
		g.AddNode(model.Node{
			ID:        tag.ID,
			Kind:      model.KindTag,
			Label:     tag.Name,
			Group:     model.KindTag.Group(),
			Color:     model.NodeColor(model.KindTag.Group()),
			Size:      TagSize(tag.Count),
			SourceRef: tag,
		})
	}

	for _, c := range snap.Connections {
		if !g.HasNode(c.SourceID) || !g.HasNode(c.TargetID) {
			continue
		}
		g.AddEdge(model.Edge{
			ID:           c.ID,
			Source:       c.SourceID,
			Target:       c.TargetID,
			Relationship: c.Relationship,
			Strength:     c.Strength,
			Style:        model.StyleFor(c.Relationship),
		})
	}

	return g
}

// EntitySize sizes content and memo nodes by connectivity
func EntitySize(degree int) float64 {
	return float64(min(degree*entitySizeFactor+entitySizeBase, entitySizeMax))
}

// TagSize sizes tag nodes by usage
func TagSize(count int) float64 {
	return float64(min(count*tagSizeFactor+tagSizeBase, tagSizeMax))
}
