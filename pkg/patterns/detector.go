// Package patterns finds recurring structure in the connection set: tags that
// many connections hang off, and relationship labels used over and over.
package patterns

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ritzau/thoughtgraph/pkg/metrics"
	"github.com/ritzau/thoughtgraph/pkg/model"
)

// Fixed detection constants
const (
	// MinOccurrences is how many connections a tag or relationship needs
	MinOccurrences = 3
	// strengthScale normalises an occurrence count into [0, 1]
	strengthScale = 10.0
)

// Detector runs the pattern rules. content-chain and topic-bridge are part
// of the taxonomy but have no rule.
type Detector struct {
	now   func() time.Time
	newID func() string
}

// Option customises a Detector
type Option func(*Detector)

// WithClock overrides the pattern timestamp source
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithIDGenerator overrides pattern id generation
func WithIDGenerator(gen func() string) Option {
	return func(d *Detector) { d.newID = gen }
}

// NewDetector creates a detector
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strength normalises an occurrence count
func Strength(count int) float64 {
	return min(float64(count)/strengthScale, 1)
}

// Detect returns tag clusters followed by repeated relationships, each in
// order of first appearance. Tag names come from the snapshot's tag records
// when available.
func (d *Detector) Detect(snap model.Snapshot) []model.Pattern {
	metrics.AnalysisRuns.WithLabelValues("patterns").Inc()

	result := make([]model.Pattern, 0)
	if len(snap.Connections) == 0 {
		return result
	}

	createdAt := d.now().UTC()
	names := make(map[string]string, len(snap.Tags))
	for _, t := range snap.Tags {
		names[t.ID] = t.Name
	}

	for _, tc := range tagClusters(snap.Connections) {
		name := names[tc.key]
		if name == "" {
			name = tc.key
		}
		result = append(result, model.Pattern{
			ID:           d.newID(),
			Description:  fmt.Sprintf("Tag %q is linked by %d connections", name, tc.count),
			Type:         model.PatternTagCluster,
			RelatedNodes: []string{tc.key},
			Strength:     Strength(tc.count),
			CreatedAt:    createdAt,
		})
	}

	for _, rg := range repeatGroups(snap.Connections) {
		result = append(result, model.Pattern{
			ID:           d.newID(),
			Description:  fmt.Sprintf("Relationship %q is used by %d connections", rg.key, rg.count),
			Type:         model.PatternRepeatConnection,
			RelatedNodes: rg.nodes,
			Strength:     Strength(rg.count),
			CreatedAt:    createdAt,
		})
	}

	return result
}

type group struct {
	key   string
	count int
	nodes []string
}

// orderedGroups counts by key and remembers first-appearance order
type orderedGroups struct {
	index  map[string]int
	groups []*group
}

func newOrderedGroups() *orderedGroups {
	return &orderedGroups{index: make(map[string]int)}
}

func (o *orderedGroups) get(key string) *group {
	if i, ok := o.index[key]; ok {
		return o.groups[i]
	}
	g := &group{key: key}
	o.index[key] = len(o.groups)
	o.groups = append(o.groups, g)
	return g
}

func (o *orderedGroups) atLeast(n int) []*group {
	var result []*group
	for _, g := range o.groups {
		if g.count >= n {
			result = append(result, g)
		}
	}
	return result
}

func tagClusters(conns []model.Connection) []*group {
	tags := newOrderedGroups()
	for _, c := range conns {
		if c.SourceType == model.KindTag {
			tags.get(c.SourceID).count++
		}
		if c.TargetType == model.KindTag && c.TargetID != c.SourceID {
			tags.get(c.TargetID).count++
		}
	}
	return tags.atLeast(MinOccurrences)
}

func repeatGroups(conns []model.Connection) []*group {
	rels := newOrderedGroups()
	for _, c := range conns {
		g := rels.get(string(c.Relationship))
		g.count++
		g.nodes = append(g.nodes, c.SourceID, c.TargetID)
	}
	return rels.atLeast(MinOccurrences)
}
