// Package store is the Connection Store Adapter: create, update, delete and
// query connections on top of a pluggable Backend, enforcing the
// merge-or-create rule and the strength bounds on every write.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/metrics"
	"github.com/ritzau/thoughtgraph/pkg/model"
)

// ErrDuplicatePair is returned when an update would move a connection onto an
// ordered pair that already has a connection.
var ErrDuplicatePair = errors.New("a connection already exists for this source and target")

// Backend persists connections. Implementations must keep a lookup by ordered
// (source, target) pair in step with Put and Delete.
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string
	Get(ctx context.Context, id string) (model.Connection, bool, error)
	FindPair(ctx context.Context, sourceID, targetID string) (model.Connection, bool, error)
	// Put inserts or replaces the connection with the same id
	Put(ctx context.Context, c model.Connection) error
	// Delete removes a connection; a missing id is not an error
	Delete(ctx context.Context, id string) error
	// List returns all connections ordered by creation time, then id
	List(ctx context.Context) ([]model.Connection, error)
	Close() error
}

// Merger is implemented by backends that can be shared between processes.
// Merge inserts candidate unless its ordered pair already has a connection,
// in which case that connection's strength goes up by one, capped at
// MaxStrength. It reports whether candidate was inserted.
type Merger interface {
	Merge(ctx context.Context, candidate model.Connection) (model.Connection, bool, error)
}

// AddRequest carries the arguments of Add. A nil Strength means the default.
type AddRequest struct {
	SourceID     string             `json:"sourceId" validate:"required"`
	TargetID     string             `json:"targetId" validate:"required,nefield=SourceID"`
	SourceType   model.EntityKind   `json:"sourceType" validate:"required,oneof=content memo tag"`
	TargetType   model.EntityKind   `json:"targetType" validate:"required,oneof=content memo tag"`
	Relationship model.Relationship `json:"relationship" validate:"required"`
	Strength     *int               `json:"strength,omitempty"`
}

// Connections is the adapter the rest of the engine talks to.
type Connections struct {
	backend Backend
	locks   *keyedMutex
	now     func() time.Time
	newID   func() string
	log     *slog.Logger

	mu        sync.RWMutex
	listeners []func()
}

// Option customises a Connections adapter
type Option func(*Connections)

// WithClock overrides the creation timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Connections) { s.now = now }
}

// WithIDGenerator overrides connection id generation
func WithIDGenerator(gen func() string) Option {
	return func(s *Connections) { s.newID = gen }
}

// New wraps a backend
func New(backend Backend, opts ...Option) *Connections {
	s := &Connections{
		backend: backend,
		locks:   newKeyedMutex(),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		log:     logging.New("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a callback invoked after every successful mutation
func (s *Connections) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Connections) notify() {
	s.mu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Add creates a connection or, if one already exists for the same ordered
// pair, bumps its strength by one (capped at MaxStrength) and returns it.
// The lookup and the write happen under a per-pair lock.
func (s *Connections) Add(ctx context.Context, req AddRequest) (model.Connection, error) {
	if err := model.ValidateEndpoints(req.SourceID, req.TargetID, req.SourceType, req.TargetType); err != nil {
		return model.Connection{}, fmt.Errorf("add connection: %w", err)
	}

	unlock := s.locks.Lock(model.PairKey(req.SourceID, req.TargetID))
	result, created, err := s.mergeOrCreate(ctx, req)
	unlock()
	if err != nil {
		return model.Connection{}, err
	}

	op := "merged"
	if created {
		op = "created"
	}
	metrics.ConnectionWrites.WithLabelValues(op).Inc()
	s.log.DebugContext(ctx, "connection "+op,
		"id", result.ID, "source", result.SourceID, "target", result.TargetID, "strength", result.Strength)
	s.notify()
	return result, nil
}

// mergeOrCreate runs under the pair lock. Backends that implement Merger do
// the lookup and write as one step so writers in other processes are covered.
func (s *Connections) mergeOrCreate(ctx context.Context, req AddRequest) (model.Connection, bool, error) {
	strength := model.DefaultStrength
	if req.Strength != nil {
		strength = *req.Strength
	}
	candidate := model.Connection{
		ID:           s.newID(),
		SourceID:     req.SourceID,
		TargetID:     req.TargetID,
		SourceType:   req.SourceType,
		TargetType:   req.TargetType,
		Relationship: req.Relationship,
		Strength:     model.ClampStrength(strength),
		CreatedAt:    s.now().UTC(),
	}

	if m, ok := s.backend.(Merger); ok {
		result, created, err := m.Merge(ctx, candidate)
		if err != nil {
			return model.Connection{}, false, s.backendErr("merge", err)
		}
		return result, created, nil
	}

	existing, found, err := s.backend.FindPair(ctx, req.SourceID, req.TargetID)
	if err != nil {
		return model.Connection{}, false, s.backendErr("find_pair", err)
	}
	result := candidate
	if found {
		result = existing
		result.Strength = model.ClampStrength(existing.Strength + 1)
	}
	if err := s.backend.Put(ctx, result); err != nil {
		return model.Connection{}, false, s.backendErr("put", err)
	}
	return result, !found, nil
}

// Update applies a partial patch. Strength is re-clamped. Updating an unknown
// id is a no-op and reports found=false.
func (s *Connections) Update(ctx context.Context, id string, patch model.ConnectionPatch) (model.Connection, bool, error) {
	for {
		current, found, err := s.backend.Get(ctx, id)
		if err != nil {
			return model.Connection{}, false, s.backendErr("get", err)
		}
		if !found {
			return model.Connection{}, false, nil
		}

		next := patch.Apply(current)
		if err := model.ValidateEndpoints(next.SourceID, next.TargetID, next.SourceType, next.TargetType); err != nil {
			return model.Connection{}, true, fmt.Errorf("update connection: %w", err)
		}

		oldKey := model.PairKey(current.SourceID, current.TargetID)
		newKey := model.PairKey(next.SourceID, next.TargetID)
		unlock := s.locks.Lock(oldKey, newKey)

		// The endpoints may have moved while we waited for the lock
		latest, found, err := s.backend.Get(ctx, id)
		if err != nil {
			unlock()
			return model.Connection{}, false, s.backendErr("get", err)
		}
		if !found {
			unlock()
			return model.Connection{}, false, nil
		}
		if model.PairKey(latest.SourceID, latest.TargetID) != oldKey {
			unlock()
			continue
		}
		next = patch.Apply(latest)

		if newKey != oldKey {
			other, taken, err := s.backend.FindPair(ctx, next.SourceID, next.TargetID)
			if err != nil {
				unlock()
				return model.Connection{}, true, s.backendErr("find_pair", err)
			}
			if taken && other.ID != id {
				unlock()
				return model.Connection{}, true, fmt.Errorf("update connection %s: %w", id, ErrDuplicatePair)
			}
		}

		if err := s.backend.Put(ctx, next); err != nil {
			unlock()
			return model.Connection{}, true, s.backendErr("put", err)
		}
		unlock()

		metrics.ConnectionWrites.WithLabelValues("updated").Inc()
		s.notify()
		return next, true, nil
	}
}

// Delete removes a connection. Deleting an unknown id is a no-op.
func (s *Connections) Delete(ctx context.Context, id string) error {
	current, found, err := s.backend.Get(ctx, id)
	if err != nil {
		return s.backendErr("get", err)
	}
	if !found {
		return nil
	}

	unlock := s.locks.Lock(model.PairKey(current.SourceID, current.TargetID))
	err = s.backend.Delete(ctx, id)
	unlock()
	if err != nil {
		return s.backendErr("delete", err)
	}

	metrics.ConnectionWrites.WithLabelValues("deleted").Inc()
	s.notify()
	return nil
}

// Get returns one connection by id
func (s *Connections) Get(ctx context.Context, id string) (model.Connection, bool, error) {
	c, found, err := s.backend.Get(ctx, id)
	if err != nil {
		return model.Connection{}, false, s.backendErr("get", err)
	}
	return c, found, nil
}

// List returns every stored connection in creation order
func (s *Connections) List(ctx context.Context) ([]model.Connection, error) {
	conns, err := s.backend.List(ctx)
	if err != nil {
		return nil, s.backendErr("list", err)
	}
	return conns, nil
}

// ConnectionsFor returns all connections where the node is source or target
func (s *Connections) ConnectionsFor(ctx context.Context, nodeID string) ([]model.Connection, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]model.Connection, 0)
	for _, c := range all {
		if c.Touches(nodeID) {
			result = append(result, c)
		}
	}
	return result, nil
}

// Close releases the backend
func (s *Connections) Close() error {
	return s.backend.Close()
}

// backendErr records and logs a persistence failure and hands it back untouched
func (s *Connections) backendErr(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(s.backend.Name(), op).Inc()
	s.log.Warn("backend operation failed", "backend", s.backend.Name(), "op", op, "error", err)
	return err
}
