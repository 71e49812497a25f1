// Package model defines the entities of the knowledge connection graph:
// the inbound records (content, memos, tags), stored connections, and the
// derived projections (nodes, edges, patterns, suggestions).
package model

import (
	"fmt"
	"time"
)

// EntityKind identifies which collection an entity id belongs to
type EntityKind string

const (
	KindContent EntityKind = "content"
	KindMemo    EntityKind = "memo"
	KindTag     EntityKind = "tag"
)

// Valid reports whether k is one of the three known kinds
func (k EntityKind) Valid() bool {
	switch k {
	case KindContent, KindMemo, KindTag:
		return true
	default:
		return false
	}
}

// Group returns the default colour group used when no style applies
func (k EntityKind) Group() int {
	switch k {
	case KindContent:
		return 1
	case KindMemo:
		return 2
	case KindTag:
		return 3
	default:
		return 0
	}
}

// ParseEntityKind converts a string into an EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Content is a captured article, note or thought
type Content struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Tags         []string  `json:"tags" yaml:"tags"`
	Counterpoint string    `json:"counterpoint,omitempty" yaml:"counterpoint,omitempty"`
	Summary      string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	URL          string    `json:"url,omitempty" yaml:"url,omitempty"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
}

// HasTag returns true if the content carries the given tag
func (c *Content) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SharesTag returns true if the two contents have at least one tag in common
func (c *Content) SharesTag(other *Content) bool {
	for _, t := range c.Tags {
		if other.HasTag(t) {
			return true
		}
	}
	return false
}

// Memo is a free-text note written by the user
type Memo struct {
	ID        string    `json:"id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	Tags      []string  `json:"tags" yaml:"tags"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Tag is a label with its usage count across content and memos
type Tag struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Snapshot is a read-only view of the record collections at one point in time
type Snapshot struct {
	Contents    []Content    `json:"contents"`
	Memos       []Memo       `json:"memos"`
	Tags        []Tag        `json:"tags"`
	Connections []Connection `json:"connections"`
}

// FindContent returns the content with the given id
func (s *Snapshot) FindContent(id string) (*Content, bool) {
	for i := range s.Contents {
		if s.Contents[i].ID == id {
			return &s.Contents[i], true
		}
	}
	return nil, false
}
