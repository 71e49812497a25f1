// Package output prints human-readable console reports for the CLI.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/projector"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

func header(w io.Writer, title string) {
	bold.Fprintln(w, title)
	bold.Fprintln(w, strings.Repeat("=", len(title)))
}

// strengthColor picks green for strong findings, yellow for middling, red otherwise
func strengthColor(strength float64) *color.Color {
	switch {
	case strength >= 0.7:
		return green
	case strength >= 0.4:
		return yellow
	default:
		return red
	}
}

// PrintPatternReport prints detected patterns with their strength
func PrintPatternReport(w io.Writer, patterns []model.Pattern) {
	header(w, "Connection Patterns")
	if len(patterns) == 0 {
		yellow.Fprintln(w, "No patterns found yet. Patterns need at least 3 similar connections.")
		return
	}

	for _, p := range patterns {
		cyan.Fprintf(w, "[%s] ", p.Type.Label())
		fmt.Fprintln(w, p.Description)
		strengthColor(p.Strength).Fprintf(w, "    Strength: %.0f%%\n", p.Strength*100)
		fmt.Fprintf(w, "    Nodes: %s\n", strings.Join(p.RelatedNodes, ", "))
	}
	fmt.Fprintln(w)
	bold.Fprintf(w, "Summary: %d pattern(s)\n", len(patterns))
}

// PrintSuggestionReport prints suggested connections for one content item
func PrintSuggestionReport(w io.Writer, contentID string, suggestions []model.SuggestedConnection) {
	header(w, "Suggested Connections")
	fmt.Fprintf(w, "For: %s\n\n", contentID)
	if len(suggestions) == 0 {
		yellow.Fprintln(w, "No suggestions.")
		return
	}

	for i, s := range suggestions {
		fmt.Fprintf(w, "%d. ", i+1)
		bold.Fprintf(w, "%s", s.TargetLabel)
		fmt.Fprintf(w, " (%s)\n", s.TargetID)
		cyan.Fprintf(w, "    %s\n", s.Reason)
		strengthColor(s.Confidence).Fprintf(w, "    Confidence: %.0f%%\n", s.Confidence*100)
	}
}

// PrintStatsReport prints graph statistics
func PrintStatsReport(w io.Writer, stats *projector.Stats) {
	header(w, "Knowledge Graph")
	fmt.Fprintf(w, "Nodes: %d (content %d, memos %d, tags %d)\n", stats.Nodes,
		stats.NodesByKind[model.KindContent], stats.NodesByKind[model.KindMemo], stats.NodesByKind[model.KindTag])
	fmt.Fprintf(w, "Links: %d\n", stats.Links)
	fmt.Fprintf(w, "Components: %d (largest %d)\n", stats.Components, stats.Largest)
	fmt.Fprintf(w, "Average degree: %.2f\n", stats.AverageDegree)
	if stats.Hub != "" {
		cyan.Fprintf(w, "Hub: %s (%d neighbours)\n", stats.Hub, stats.HubDegree)
	}

	if len(stats.Relationships) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "RELATIONSHIPS:")
		for _, rel := range model.CanonicalRelationships {
			if n := stats.Relationships[string(rel)]; n > 0 {
				fmt.Fprintf(w, "  %-10s %d\n", model.StyleFor(rel).Label, n)
			}
		}
		other := 0
		for rel, n := range stats.Relationships {
			if !model.Relationship(rel).IsCanonical() {
				other += n
			}
		}
		if other > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", "other", other)
		}
	}

	if len(stats.Isolated) > 0 {
		fmt.Fprintln(w)
		yellow.Fprintf(w, "ISOLATED (%d):\n", len(stats.Isolated))
		for _, id := range stats.Isolated {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}

	if len(stats.Loops) > 0 {
		fmt.Fprintln(w)
		red.Fprintf(w, "LOOPS (%d):\n", len(stats.Loops))
		for _, loop := range stats.Loops {
			fmt.Fprintf(w, "  %s\n", strings.Join(loop, " -> "))
		}
	}

	fmt.Fprintln(w)
	if stats.Links == 0 {
		yellow.Fprintln(w, "No connections yet.")
	} else {
		green.Fprintf(w, "✓ %d of %d nodes connected\n", stats.Nodes-len(stats.Isolated), stats.Nodes)
	}
}
