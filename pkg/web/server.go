// Package web serves the graph engine over HTTP: JSON endpoints for
// connections, projections and analysis, and Server-Sent Events for live
// graph, layout, pattern and interaction updates.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ritzau/thoughtgraph/pkg/layout"
	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/metrics"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/patterns"
	"github.com/ritzau/thoughtgraph/pkg/projector"
	"github.com/ritzau/thoughtgraph/pkg/pubsub"
	"github.com/ritzau/thoughtgraph/pkg/records"
	"github.com/ritzau/thoughtgraph/pkg/store"
	"golang.org/x/sync/singleflight"
)

// GraphUpdate is published on the graph topic after every reprojection.
// It carries the whole projection so a late subscriber that only gets the
// replayed event still has a complete picture.
type GraphUpdate struct {
	Hash  string               `json:"hash"`
	Graph *model.Graph         `json:"graph"`
	Diff  *projector.GraphDiff `json:"diff"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	source    *records.Source
	conns     *store.Connections
	detector  *patterns.Detector
	layout    *layout.Controller
	validate  *validator.Validate
	analyses  singleflight.Group
	log       *slog.Logger

	// refreshing serialises Refresh from read to publish so an older
	// projection never replaces a newer one
	refreshing sync.Mutex

	mu    sync.RWMutex
	graph *model.Graph
	last  *projector.GraphSnapshot
}

// Option customises a Server
type Option func(*serverOptions)

type serverOptions struct {
	layout   layout.Config
	detector *patterns.Detector
}

// WithLayoutConfig sets the simulation parameters
func WithLayoutConfig(cfg layout.Config) Option {
	return func(o *serverOptions) { o.layout = cfg }
}

// WithDetector overrides the pattern detector
func WithDetector(d *patterns.Detector) Option {
	return func(o *serverOptions) { o.detector = d }
}

// NewServer creates a new web server. Simulations started on behalf of the
// server live until ctx is done or Close is called. The server reprojects
// whenever the records or the connection store change.
func NewServer(ctx context.Context, source *records.Source, conns *store.Connections, opts ...Option) *Server {
	o := serverOptions{layout: layout.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.detector == nil {
		o.detector = patterns.NewDetector()
	}

	ssePublisher := pubsub.NewSSEPublisher()
	pubsub.ConfigureDefaults(ssePublisher)

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		source:    source,
		conns:     conns,
		detector:  o.detector,
		validate:  validator.New(),
		log:       logging.New("web"),
		graph:     model.NewGraph(),
	}
	s.layout = layout.NewController(ctx, o.layout, s.publishFrame, s.publishInteraction)

	source.OnChange(func(model.Snapshot) { s.reproject(ctx) })
	conns.OnChange(func() { s.reproject(ctx) })

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoint
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	// API routes - more specific routes must come first
	s.router.HandleFunc("/api/graph/stats", s.handleGraphStats).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")

	s.router.HandleFunc("/api/connections", s.handleListConnections).Methods("GET")
	s.router.HandleFunc("/api/connections", s.handleAddConnection).Methods("POST")
	s.router.HandleFunc("/api/connections/{id}", s.handleUpdateConnection).Methods("PATCH")
	s.router.HandleFunc("/api/connections/{id}", s.handleDeleteConnection).Methods("DELETE")
	s.router.HandleFunc("/api/nodes/{id}/connections", s.handleNodeConnections).Methods("GET")

	s.router.HandleFunc("/api/patterns", s.handlePatterns).Methods("POST")
	s.router.HandleFunc("/api/suggestions/{contentId}", s.handleSuggestions).Methods("POST")

	s.router.HandleFunc("/api/layout/refresh", s.handleLayoutRefresh).Methods("POST")
	s.router.HandleFunc("/api/layout/resize", s.handleLayoutResize).Methods("POST")
	s.router.HandleFunc("/api/layout/pointer", s.handleLayoutPointer).Methods("POST")
	s.router.HandleFunc("/api/layout/zoom", s.handleLayoutZoom).Methods("POST")
	s.router.HandleFunc("/api/layout/pan", s.handleLayoutPan).Methods("POST")
	s.router.HandleFunc("/api/layout/viewport", s.handleLayoutViewport).Methods("GET")
	s.router.HandleFunc("/api/layout/frame", s.handleLayoutFrame).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ServeHTTP lets the server be mounted or exercised directly
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Publisher exposes the event publisher, mainly for tests
func (s *Server) Publisher() pubsub.Publisher {
	return s.publisher
}

// Layout exposes the layout controller
func (s *Server) Layout() *layout.Controller {
	return s.layout
}

// Snapshot gathers the current records and connections
func (s *Server) Snapshot(ctx context.Context) (model.Snapshot, error) {
	snap := s.source.Snapshot()
	conns, err := s.conns.List(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap.Connections = conns
	return snap, nil
}

// Refresh rebuilds the projection, publishes what changed and restarts the
// layout when the graph is different from the last one.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshing.Lock()
	defer s.refreshing.Unlock()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("refresh projection: %w", err)
	}
	g := projector.Project(snap)
	next, err := projector.CreateSnapshot(g)
	if err != nil {
		return fmt.Errorf("refresh projection: %w", err)
	}

	s.mu.Lock()
	diff := projector.ComputeDiff(s.last, g)
	s.last = next
	s.graph = g
	hash := next.Hash
	s.mu.Unlock()

	metrics.GraphSize.WithLabelValues("nodes").Set(float64(len(g.Nodes)))
	metrics.GraphSize.WithLabelValues("links").Set(float64(len(g.Links)))

	if diff.Empty() {
		s.log.Debug("projection unchanged", "hash", hash)
		return nil
	}

	eventType := pubsub.EventGraphDiff
	if diff.FullGraph {
		eventType = pubsub.EventGraphFull
	}
	if err := s.publisher.Publish(pubsub.TopicGraph, eventType, GraphUpdate{Hash: hash, Graph: g, Diff: diff}); err != nil {
		s.log.Warn("failed to publish graph", "error", err)
	}
	s.log.Info("projection updated",
		"nodes", len(g.Nodes), "links", len(g.Links),
		"added", len(diff.AddedNodes), "removed", len(diff.RemovedNodes))

	s.layout.Load(g)
	return nil
}

func (s *Server) reproject(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Error("reprojection failed", "error", err)
	}
}

// currentGraph returns the latest projection; callers must not modify it
func (s *Server) currentGraph() *model.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Server) publishFrame(f layout.Frame) {
	if err := s.publisher.Publish(pubsub.TopicLayout, pubsub.EventLayoutFrame, f); err != nil {
		logging.Trace("dropped layout frame", "seq", f.Seq, "error", err)
	}
}

func (s *Server) publishInteraction(ev layout.Interaction) {
	if err := s.publisher.Publish(pubsub.TopicInteraction, pubsub.EventInteraction, ev); err != nil {
		s.log.Debug("dropped interaction", "kind", ev.Kind, "error", err)
	}
}

// Close stops the layout and disconnects all subscribers
func (s *Server) Close() error {
	s.layout.Stop()
	return s.publisher.Close()
}

// Start serves on the given port until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting web server", "url", "http://localhost"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// SSE streams end once the publisher closes their subscriptions
	if err := s.Close(); err != nil {
		s.log.Warn("closing publisher", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
