package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/projector"
)

func init() {
	color.NoColor = true
}

func TestPrintPatternReport(t *testing.T) {
	tests := []struct {
		name     string
		patterns []model.Pattern
		want     []string
	}{
		{
			name: "empty",
			want: []string{"Connection Patterns", "No patterns found yet"},
		},
		{
			name: "one pattern",
			patterns: []model.Pattern{{
				Type:         model.PatternRepeatConnection,
				Description:  "Repeated supports connections",
				RelatedNodes: []string{"c1", "c2", "c3"},
				Strength:     0.3,
			}},
			want: []string{"[Repeated Relationship] Repeated supports connections", "Strength: 30%", "Nodes: c1, c2, c3", "Summary: 1 pattern(s)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintPatternReport(&buf, tt.patterns)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestPrintSuggestionReport(t *testing.T) {
	var buf bytes.Buffer
	PrintSuggestionReport(&buf, "c1", []model.SuggestedConnection{
		{TargetID: "c2", TargetLabel: "Gradient descent", Reason: "shares tag 'ml'", Confidence: 0.7},
	})

	out := buf.String()
	for _, want := range []string{"For: c1", "1. Gradient descent (c2)", "shares tag 'ml'", "Confidence: 70%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintStatsReport(t *testing.T) {
	g := model.NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(model.Node{ID: id, Kind: model.KindContent})
	}
	g.AddEdge(model.Edge{ID: "e1", Source: "a", Target: "b", Relationship: model.RelCauses})
	g.AddEdge(model.Edge{ID: "e2", Source: "b", Target: "a", Relationship: "inspired"})

	var buf bytes.Buffer
	PrintStatsReport(&buf, projector.ComputeStats(g))

	out := buf.String()
	for _, want := range []string{
		"Nodes: 3 (content 3, memos 0, tags 0)",
		"Links: 2",
		"Causes",
		"other      1",
		"ISOLATED (1):",
		"LOOPS (1):",
		"2 of 3 nodes connected",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
