package model

import (
	"errors"
	"fmt"
	"time"
)

// Strength bounds and the default for newly created connections
const (
	MinStrength     = 1
	MaxStrength     = 10
	DefaultStrength = 5
)

var (
	// ErrSelfLoop is returned when a connection would join an entity to itself
	ErrSelfLoop = errors.New("connection source and target are the same entity")
	// ErrInvalidKind is returned for entity kinds other than content, memo or tag
	ErrInvalidKind = errors.New("invalid entity kind")
	// ErrEmptyID is returned when a source or target id is blank
	ErrEmptyID = errors.New("entity id is empty")
)

// Relationship labels a connection. Any string is accepted; the canonical
// values get dedicated styling.
type Relationship string

const (
	RelRelated   Relationship = "related"
	RelContrast  Relationship = "contrast"
	RelCauses    Relationship = "causes"
	RelSupports  Relationship = "supports"
	RelQuestions Relationship = "questions"
	RelExtends   Relationship = "extends"
)

// CanonicalRelationships lists the predefined relationship values in display order
var CanonicalRelationships = []Relationship{
	RelRelated, RelContrast, RelCauses, RelSupports, RelQuestions, RelExtends,
}

// Connection is a directed, typed, weighted edge between two entities
type Connection struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"sourceId"`
	TargetID     string       `json:"targetId"`
	SourceType   EntityKind   `json:"sourceType"`
	TargetType   EntityKind   `json:"targetType"`
	Relationship Relationship `json:"relationship"`
	Strength     int          `json:"strength"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Touches returns true if the node is either endpoint of the connection
func (c *Connection) Touches(nodeID string) bool {
	return c.SourceID == nodeID || c.TargetID == nodeID
}

// Joins returns true if the connection links a and b in either direction
func (c *Connection) Joins(a, b string) bool {
	return (c.SourceID == a && c.TargetID == b) || (c.SourceID == b && c.TargetID == a)
}

// PairKey is the ordered (source, target) key used for merge-or-create
func PairKey(sourceID, targetID string) string {
	return sourceID + "\x00" + targetID
}

// ClampStrength forces a strength into [MinStrength, MaxStrength]
func ClampStrength(s int) int {
	if s < MinStrength {
		return MinStrength
	}
	if s > MaxStrength {
		return MaxStrength
	}
	return s
}

// ValidateEndpoints checks the boundary rules for a new or patched connection
func ValidateEndpoints(sourceID, targetID string, sourceType, targetType EntityKind) error {
	if sourceID == "" || targetID == "" {
		return ErrEmptyID
	}
	if sourceID == targetID {
		return fmt.Errorf("%w: %s", ErrSelfLoop, sourceID)
	}
	if !sourceType.Valid() {
		return fmt.Errorf("%w: source %q", ErrInvalidKind, sourceType)
	}
	if !targetType.Valid() {
		return fmt.Errorf("%w: target %q", ErrInvalidKind, targetType)
	}
	return nil
}

// ConnectionPatch describes a partial update. Nil fields are left untouched.
type ConnectionPatch struct {
	SourceID     *string       `json:"sourceId,omitempty"`
	TargetID     *string       `json:"targetId,omitempty"`
	SourceType   *EntityKind   `json:"sourceType,omitempty"`
	TargetType   *EntityKind   `json:"targetType,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
	Strength     *int          `json:"strength,omitempty"`
}

// Apply returns a copy of c with the patch applied and strength re-clamped.
// Id and creation time are never changed.
func (p ConnectionPatch) Apply(c Connection) Connection {
	if p.SourceID != nil {
		c.SourceID = *p.SourceID
	}
	if p.TargetID != nil {
		c.TargetID = *p.TargetID
	}
	if p.SourceType != nil {
		c.SourceType = *p.SourceType
	}
	if p.TargetType != nil {
		c.TargetType = *p.TargetType
	}
	if p.Relationship != nil {
		c.Relationship = *p.Relationship
	}
	if p.Strength != nil {
		c.Strength = *p.Strength
	}
	c.Strength = ClampStrength(c.Strength)
	return c
}
