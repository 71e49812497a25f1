// Package layout runs the force-directed simulation for the projected graph
// and tracks the view transform and pointer gestures around it.
//
// Physics state lives in an Arena indexed by node position; domain nodes are
// never mutated. One goroutine per simulation owns the arena.
package layout

import (
	"math"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// collisionPadding is added to half the node size to get the collision radius
const collisionPadding = 10

// Arena holds per-node physics state as parallel slices
type Arena struct {
	IDs    []string
	Pos    []r2.Vec
	Vel    []r2.Vec
	Fixed  []r2.Vec
	Pinned []bool
	Radius []float64

	index map[string]int
}

// arenaLink is a link resolved to arena indices
type arenaLink struct {
	source, target int
	distance       float64
	strength       float64
	bias           float64
}

// TargetDistance is the rest length of a link: stronger connections sit closer
func TargetDistance(strength int) float64 {
	return 100 - float64(strength)*5
}

// CollisionRadius is the radius a node occupies for collision avoidance
func CollisionRadius(size float64) float64 {
	return size/2 + collisionPadding
}

// newArena lays nodes out on a phyllotaxis spiral around center
func newArena(g *model.Graph, center r2.Vec) (*Arena, []arenaLink) {
	n := len(g.Nodes)
	a := &Arena{
		IDs:    make([]string, n),
		Pos:    make([]r2.Vec, n),
		Vel:    make([]r2.Vec, n),
		Fixed:  make([]r2.Vec, n),
		Pinned: make([]bool, n),
		Radius: make([]float64, n),
		index:  make(map[string]int, n),
	}

	const initialRadius = 10
	initialAngle := math.Pi * (3 - math.Sqrt(5))
	for i, node := range g.Nodes {
		a.IDs[i] = node.ID
		a.index[node.ID] = i
		a.Radius[i] = CollisionRadius(node.Size)

		r := initialRadius * math.Sqrt(0.5+float64(i))
		angle := float64(i) * initialAngle
		a.Pos[i] = r2.Add(center, r2.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle)})
	}

	count := make([]int, n)
	links := make([]arenaLink, 0, len(g.Links))
	for _, l := range g.Links {
		s, okS := a.index[l.Source]
		t, okT := a.index[l.Target]
		if !okS || !okT || s == t {
			continue
		}
		count[s]++
		count[t]++
		links = append(links, arenaLink{source: s, target: t, distance: TargetDistance(l.Strength)})
	}
	for i := range links {
		l := &links[i]
		cs, ct := float64(count[l.source]), float64(count[l.target])
		l.strength = 1 / math.Min(cs, ct)
		l.bias = cs / (cs + ct)
	}

	return a, links
}

// Len returns the number of nodes
func (a *Arena) Len() int {
	return len(a.IDs)
}

// Index returns the arena slot for a node id
func (a *Arena) Index(id string) (int, bool) {
	i, ok := a.index[id]
	return i, ok
}

// Pin fixes a node at p until Unpin
func (a *Arena) Pin(i int, p r2.Vec) {
	a.Pinned[i] = true
	a.Fixed[i] = p
}

// Unpin releases a pinned node
func (a *Arena) Unpin(i int) {
	a.Pinned[i] = false
	a.Fixed[i] = r2.Vec{}
}
