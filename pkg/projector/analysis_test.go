package projector

import (
	"math"
	"testing"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds a -> b -> c -> d plus an isolated e
func chain() *model.Graph {
	g := model.NewGraph()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		g.AddNode(model.Node{ID: id, Kind: model.KindContent, Label: id, Group: 1, Size: 15})
	}
	g.AddEdge(model.Edge{ID: "ab", Source: "a", Target: "b", Strength: 5})
	g.AddEdge(model.Edge{ID: "bc", Source: "b", Target: "c", Strength: 5})
	g.AddEdge(model.Edge{ID: "cd", Source: "c", Target: "d", Strength: 5})
	return g
}

func TestComputeDistances(t *testing.T) {
	d := ComputeDistances(chain(), []string{"b"})
	assert.Equal(t, map[string]int{"a": 1, "b": 0, "c": 1, "d": 2, "e": Unreachable}, d)

	none := ComputeDistances(chain(), nil)
	for id, dist := range none {
		assert.Equal(t, Unreachable, dist, id)
	}
}

func TestFocus(t *testing.T) {
	tests := []struct {
		name      string
		node      string
		depth     int
		wantNodes []string
		wantLinks int
	}{
		{"depth zero", "b", 0, []string{"b"}, 0},
		{"depth one", "b", 1, []string{"a", "b", "c"}, 2},
		{"depth covers chain", "a", 5, []string{"a", "b", "c", "d"}, 3},
		{"unknown node", "zzz", 2, nil, 0},
		{"isolated node", "e", 3, []string{"e"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Focus(chain(), tt.node, tt.depth)
			var ids []string
			for _, n := range g.Nodes {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantNodes, ids)
			assert.Len(t, g.Links, tt.wantLinks)
		})
	}
}

func TestComputeDiff(t *testing.T) {
	before := chain()
	snap, err := CreateSnapshot(before)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Hash)

	full := ComputeDiff(nil, before)
	assert.True(t, full.FullGraph)
	assert.Len(t, full.AddedNodes, 5)

	after := model.NewGraph()
	for _, n := range before.Nodes {
		switch n.ID {
		case "e":
			continue
		case "a":
			n.Size = 20
		}
		after.AddNode(n)
	}
	after.AddNode(model.Node{ID: "f", Kind: model.KindMemo, Label: "f", Group: 2, Size: 20})
	after.AddEdge(model.Edge{ID: "ab", Source: "a", Target: "b", Strength: 7})
	after.AddEdge(model.Edge{ID: "af", Source: "a", Target: "f", Strength: 5})

	diff := ComputeDiff(snap, after)
	assert.False(t, diff.FullGraph)
	require.Len(t, diff.AddedNodes, 1)
	assert.Equal(t, "f", diff.AddedNodes[0].ID)
	assert.Equal(t, []string{"e"}, diff.RemovedNodes)
	require.Len(t, diff.ModifiedNodes, 1)
	assert.Equal(t, "a", diff.ModifiedNodes[0].ID)
	require.Len(t, diff.AddedLinks, 1)
	assert.Equal(t, "af", diff.AddedLinks[0].ID)
	assert.Equal(t, []string{"bc", "cd"}, diff.RemovedLinks)
	require.Len(t, diff.ModifiedLinks, 1)
	assert.Equal(t, 7, diff.ModifiedLinks[0].Strength)

	afterSnap, err := CreateSnapshot(after)
	require.NoError(t, err)
	assert.NotEqual(t, snap.Hash, afterSnap.Hash)
	same := ComputeDiff(afterSnap, after)
	assert.True(t, same.Empty())
}

func TestCreateSnapshotRejectsUnencodableGraph(t *testing.T) {
	g := chain()
	g.Nodes[0].Size = math.NaN()

	snap, err := CreateSnapshot(g)
	assert.Error(t, err)
	assert.Nil(t, snap)
}

func TestComputeStats(t *testing.T) {
	g := chain()
	g.AddEdge(model.Edge{ID: "da", Source: "d", Target: "a", Relationship: model.RelCauses})

	s := ComputeStats(g)
	assert.Equal(t, 5, s.Nodes)
	assert.Equal(t, 4, s.Links)
	assert.Equal(t, 5, s.NodesByKind[model.KindContent])
	assert.Equal(t, []string{"e"}, s.Isolated)
	assert.Equal(t, 2, s.Components)
	assert.Equal(t, 4, s.Largest)
	assert.Equal(t, [][]string{{"a", "b", "c", "d"}}, s.Loops)
	assert.InDelta(t, 8.0/5.0, s.AverageDegree, 1e-9)
	assert.Equal(t, 2, s.HubDegree)
	assert.Equal(t, 1, s.Relationships[string(model.RelCauses)])

	empty := ComputeStats(model.NewGraph())
	assert.Zero(t, empty.Components)
	assert.Empty(t, empty.Loops)
}
