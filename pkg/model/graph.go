package model

// MemoLabelLimit is the number of characters of memo text shown as a label
const MemoLabelLimit = 30

// Graph is the renderable projection of the records and their connections.
// It is rebuilt from scratch on every change and never stored.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Edge `json:"links"`

	index map[string]int
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]Node, 0),
		Links: make([]Edge, 0),
		index: make(map[string]int),
	}
}

// Node represents a vertex in the knowledge graph.
// It can represent a content item, a memo or a tag.
type Node struct {
	ID    string     `json:"id"`
	Kind  EntityKind `json:"kind"`
	Label string     `json:"label"`
	Group int        `json:"group"`
	Color string     `json:"color"`
	Size  float64    `json:"size"`

	// SourceRef points back at the originating record; it is not owned by the graph
	SourceRef any `json:"-"`
}

// Edge is the rendered form of a Connection.
type Edge struct {
	ID           string       `json:"id"`
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	Relationship Relationship `json:"relationship"`
	Strength     int          `json:"strength"`
	Style        Style        `json:"style"`
}

// AddNode adds a node to the graph. If a node with the same ID exists, it is replaced.
func (g *Graph) AddNode(node Node) {
	if g.index == nil {
		g.reindex()
	}
	if i, ok := g.index[node.ID]; ok {
		g.Nodes[i] = node
		return
	}
	g.index[node.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, node)
}

// AddEdge adds an edge to the graph.
func (g *Graph) AddEdge(edge Edge) {
	g.Links = append(g.Links, edge)
}

// HasNode reports whether a node with the given id is present
func (g *Graph) HasNode(id string) bool {
	_, ok := g.NodeIndex(id)
	return ok
}

// NodeIndex returns the position of a node in Nodes
func (g *Graph) NodeIndex(id string) (int, bool) {
	if g.index == nil || len(g.index) != len(g.Nodes) {
		g.reindex()
	}
	i, ok := g.index[id]
	return i, ok
}

// Empty reports whether there is nothing to render
func (g *Graph) Empty() bool {
	return g == nil || len(g.Nodes) == 0
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.index[n.ID] = i
	}
}

// MemoLabel truncates memo text for display
func MemoLabel(text string) string {
	runes := []rune(text)
	if len(runes) <= MemoLabelLimit {
		return text
	}
	return string(runes[:MemoLabelLimit]) + "..."
}
