// Package pubsub fans engine events out to Server-Sent Events subscribers,
// with per-topic buffering so late subscribers can catch up.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the engine
const (
	// TopicGraph carries projections and projection diffs
	TopicGraph = "graph"
	// TopicLayout carries simulation frames
	TopicLayout = "layout"
	// TopicPatterns carries pattern detector results
	TopicPatterns = "patterns"
	// TopicInteraction carries clicks and drag boundaries
	TopicInteraction = "interaction"
)

// Event types
const (
	EventGraphFull   = "full"
	EventGraphDiff   = "diff"
	EventLayoutFrame = "frame"
	EventPatterns    = "detected"
	EventInteraction = "gesture"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "graph", "layout")
	Type    string          `json:"type"`    // Event type (e.g., "full", "diff", "frame")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// KnownTopic reports whether a topic is one the engine publishes
func KnownTopic(topic string) bool {
	switch topic {
	case TopicGraph, TopicLayout, TopicPatterns, TopicInteraction:
		return true
	default:
		return false
	}
}

// ConfigureDefaults sets the buffering the engine's topics expect: the
// latest graph, frame and pattern set are replayed to new subscribers, and a
// short history of interactions is kept.
func ConfigureDefaults(p *SSEPublisher) {
	p.ConfigureTopic(TopicGraph, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicLayout, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicPatterns, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicInteraction, TopicConfig{BufferSize: 20, ReplayAll: true})
}
