package model

import "time"

// PatternType classifies a structural finding
type PatternType string

const (
	PatternTagCluster       PatternType = "tag-cluster"
	PatternContentChain     PatternType = "content-chain"
	PatternTopicBridge      PatternType = "topic-bridge"
	PatternRepeatConnection PatternType = "repeat-connection"
)

// Pattern is a derived finding over the connection set. It is recomputed on demand.
type Pattern struct {
	ID           string      `json:"id"`
	Description  string      `json:"description"`
	Type         PatternType `json:"type"`
	RelatedNodes []string    `json:"relatedNodes"`
	Strength     float64     `json:"strength"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// SuggestedConnection is a proposed, not yet committed, connection
type SuggestedConnection struct {
	TargetID    string     `json:"targetId"`
	TargetType  EntityKind `json:"targetType"`
	TargetLabel string     `json:"targetLabel"`
	Reason      string     `json:"reason"`
	Confidence  float64    `json:"confidence"`
}
