package model

// Style is the rendering hint for a relationship
type Style struct {
	Color string `json:"color"`
	Label string `json:"label"`
	Dash  bool   `json:"dash"`
}

// NeutralStyle is used for relationships outside the canonical set
var NeutralStyle = Style{Color: "#9ca3af", Label: "Custom"}

// StyleFor returns the style for a relationship. Unknown relationships
// deliberately fall through to NeutralStyle.
func StyleFor(r Relationship) Style {
	switch r {
	case RelRelated:
		return Style{Color: "#3b82f6", Label: "Related"}
	case RelContrast:
		return Style{Color: "#ef4444", Label: "Contrasts", Dash: true}
	case RelCauses:
		return Style{Color: "#f59e0b", Label: "Causes"}
	case RelSupports:
		return Style{Color: "#10b981", Label: "Supports"}
	case RelQuestions:
		return Style{Color: "#8b5cf6", Label: "Questions", Dash: true}
	case RelExtends:
		return Style{Color: "#06b6d4", Label: "Extends"}
	default:
		return NeutralStyle
	}
}

// IsCanonical reports whether r is one of the predefined relationships
func (r Relationship) IsCanonical() bool {
	return StyleFor(r) != NeutralStyle
}

// Label returns the display name of a pattern type
func (t PatternType) Label() string {
	switch t {
	case PatternTagCluster:
		return "Tag Cluster"
	case PatternContentChain:
		return "Content Chain"
	case PatternTopicBridge:
		return "Topic Bridge"
	case PatternRepeatConnection:
		return "Repeated Relationship"
	default:
		return "Pattern"
	}
}

// NodeColor returns the fallback colour for a node group
func NodeColor(group int) string {
	switch group {
	case 1:
		return "#3b82f6"
	case 2:
		return "#10b981"
	case 3:
		return "#f59e0b"
	default:
		return "#6b7280"
	}
}
