package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/ritzau/thoughtgraph/pkg/layout"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/projector"
	"github.com/ritzau/thoughtgraph/pkg/pubsub"
	"github.com/ritzau/thoughtgraph/pkg/store"
	"github.com/ritzau/thoughtgraph/pkg/suggest"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultFocusDepth is used when /api/graph gets a focus node but no depth
const DefaultFocusDepth = 2

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.currentGraph()

	focus := r.URL.Query().Get("focus")
	if focus == "" {
		writeJSON(w, http.StatusOK, g)
		return
	}

	depth := DefaultFocusDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			writeError(w, r, fmt.Errorf("%w: depth must be a non-negative integer", errBadRequest))
			return
		}
		depth = d
	}
	writeJSON(w, http.StatusOK, projector.Focus(g, focus, depth))
}

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, projector.ComputeStats(s.currentGraph()))
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.conns.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	var req store.AddRequest
	if err := s.decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := s.conns.Add(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// updateRequest mirrors model.ConnectionPatch with validation rules
type updateRequest struct {
	SourceID     *string             `json:"sourceId" validate:"omitempty,min=1"`
	TargetID     *string             `json:"targetId" validate:"omitempty,min=1"`
	SourceType   *model.EntityKind   `json:"sourceType" validate:"omitempty,oneof=content memo tag"`
	TargetType   *model.EntityKind   `json:"targetType" validate:"omitempty,oneof=content memo tag"`
	Relationship *model.Relationship `json:"relationship" validate:"omitempty,min=1"`
	Strength     *int                `json:"strength"`
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateRequest
	if err := s.decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	patch := model.ConnectionPatch{
		SourceID:     req.SourceID,
		TargetID:     req.TargetID,
		SourceType:   req.SourceType,
		TargetType:   req.TargetType,
		Relationship: req.Relationship,
		Strength:     req.Strength,
	}

	conn, found, err := s.conns.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		// Updating an unknown id is a no-op, not an error
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.conns.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodeConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.conns.ConnectionsFor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	// Concurrent requests share one detector run
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := s.analyses.Do("patterns", func() (any, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		found := s.detector.Detect(snap)
		if err := s.publisher.Publish(pubsub.TopicPatterns, pubsub.EventPatterns, found); err != nil {
			s.log.Warn("failed to publish patterns", "error", err)
		}
		return found, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.log.DebugContext(r.Context(), "patterns detected", "count", len(v.([]model.Pattern)), "shared", shared)
	writeJSON(w, http.StatusOK, v)
}

// suggestionRequest optionally carries suggestions from an external source
// to merge after the local ones
type suggestionRequest struct {
	External []model.SuggestedConnection `json:"external" validate:"dive"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	contentID := mux.Vars(r)["contentId"]

	var req suggestionRequest
	if err := s.decodeBody(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	v, err, _ := s.analyses.Do("suggest:"+contentID, func() (any, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return suggest.For(snap, contentID), nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The shared result is read-only; Merge builds a new slice
	local := v.([]model.SuggestedConnection)
	if len(req.External) > 0 {
		local = suggest.Merge(local, req.External)
	}
	writeJSON(w, http.StatusOK, local)
}

// layoutStatus reports the simulation state after a layout command
type layoutStatus struct {
	Running bool         `json:"running"`
	State   layout.State `json:"state"`
}

func (s *Server) layoutStatus() layoutStatus {
	return layoutStatus{Running: s.layout.Running(), State: s.layout.State()}
}

func (s *Server) handleLayoutRefresh(w http.ResponseWriter, r *http.Request) {
	s.layout.Refresh()
	writeJSON(w, http.StatusOK, s.layoutStatus())
}

type resizeRequest struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

func (s *Server) handleLayoutResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := s.decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	s.layout.Resize(req.Width, req.Height)
	writeJSON(w, http.StatusOK, s.layoutStatus())
}

func (s *Server) handleLayoutPointer(w http.ResponseWriter, r *http.Request) {
	var ev layout.PointerEvent
	if err := s.decodeBody(r, &ev, false); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.layout.Pointer(ev))
}

type zoomRequest struct {
	Factor float64 `json:"factor" validate:"gt=0"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (s *Server) handleLayoutZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := s.decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.layout.Zoom(req.Factor, r2.Vec{X: req.X, Y: req.Y}))
}

type panRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

func (s *Server) handleLayoutPan(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	if err := s.decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.layout.Pan(r2.Vec{X: req.DX, Y: req.DY}))
}

func (s *Server) handleLayoutViewport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.layout.Viewport())
}

func (s *Server) handleLayoutFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.layout.Frame()
	if !ok {
		frame = layout.Frame{State: s.layout.State(), Positions: []layout.Position{}}
	}
	writeJSON(w, http.StatusOK, frame)
}
