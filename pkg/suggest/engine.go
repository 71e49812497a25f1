// Package suggest proposes connections a content item is probably missing,
// based on shared tags and on counterpoints.
package suggest

import (
	"fmt"

	"github.com/ritzau/thoughtgraph/pkg/metrics"
	"github.com/ritzau/thoughtgraph/pkg/model"
)

const (
	// MaxSuggestions caps the result, in insertion order
	MaxSuggestions = 5

	TagConfidence          = 0.7
	CounterpointConfidence = 0.8

	CounterpointReason = "counterpoint comparison"
)

// TagReason explains a shared-tag suggestion
func TagReason(tag string) string {
	return fmt.Sprintf("shares tag '%s'", tag)
}

// For returns suggested connections for a content item. Items already
// connected to it in either direction are never suggested. The result is
// truncated to MaxSuggestions by insertion order, not ranked by confidence.
func For(snap model.Snapshot, contentID string) []model.SuggestedConnection {
	metrics.AnalysisRuns.WithLabelValues("suggestions").Inc()
	return truncate(dedupe(candidates(snap, contentID)))
}

// candidates lists every suggestion before dedupe and truncation
func candidates(snap model.Snapshot, contentID string) []model.SuggestedConnection {
	result := make([]model.SuggestedConnection, 0)
	source, ok := snap.FindContent(contentID)
	if !ok {
		return result
	}

	connected := make(map[string]bool)
	for _, c := range snap.Connections {
		if c.SourceID == contentID {
			connected[c.TargetID] = true
		}
		if c.TargetID == contentID {
			connected[c.SourceID] = true
		}
	}
	eligible := func(other *model.Content) bool {
		return other.ID != contentID && !connected[other.ID]
	}

	for _, tag := range source.Tags {
		for i := range snap.Contents {
			other := &snap.Contents[i]
			if !eligible(other) || !other.HasTag(tag) {
				continue
			}
			result = append(result, suggestion(other, TagReason(tag), TagConfidence))
		}
	}

	if source.Counterpoint != "" {
		for i := range snap.Contents {
			other := &snap.Contents[i]
			if eligible(other) && other.Counterpoint != "" && source.SharesTag(other) {
				result = append(result, suggestion(other, CounterpointReason, CounterpointConfidence))
				break
			}
		}
	}

	return result
}

// Merge appends externally sourced suggestions that do not collide on target
// with the local ones. Nothing is re-ranked.
func Merge(local, external []model.SuggestedConnection) []model.SuggestedConnection {
	merged := make([]model.SuggestedConnection, 0, len(local)+len(external))
	merged = append(merged, local...)
	merged = append(merged, external...)
	return dedupe(merged)
}

func suggestion(target *model.Content, reason string, confidence float64) model.SuggestedConnection {
	return model.SuggestedConnection{
		TargetID:    target.ID,
		TargetType:  model.KindContent,
		TargetLabel: target.Title,
		Reason:      reason,
		Confidence:  confidence,
	}
}

// dedupe keeps the first suggestion for each target
func dedupe(in []model.SuggestedConnection) []model.SuggestedConnection {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s.TargetID] {
			continue
		}
		seen[s.TargetID] = true
		out = append(out, s)
	}
	return out
}

func truncate(in []model.SuggestedConnection) []model.SuggestedConnection {
	if len(in) > MaxSuggestions {
		return in[:MaxSuggestions]
	}
	return in
}
