package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ritzau/thoughtgraph/pkg/layout"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/pubsub"
	"github.com/ritzau/thoughtgraph/pkg/records"
	"github.com/ritzau/thoughtgraph/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithBackend(t, store.NewMemoryBackend())
}

func newTestServerWithBackend(t *testing.T, backend store.Backend) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	lib := &records.Library{
		Contents: []model.Content{
			{ID: "c1", Title: "Ownership in Rust", Tags: []string{"ml", "rust"}},
			{ID: "c2", Title: "Gradient descent", Tags: []string{"ml"}},
			{ID: "c3", Title: "Borrow checking", Tags: []string{"rust"}},
		},
		Memos: []model.Memo{{ID: "m1", Text: "compare the two"}},
	}
	cfg := layout.DefaultConfig()
	cfg.FrameInterval = time.Millisecond

	s := NewServer(ctx, records.NewStaticSource(lib), store.New(backend), WithLayoutConfig(cfg))
	require.NoError(t, s.Refresh(ctx))
	t.Cleanup(func() {
		s.Close()
		cancel()
	})
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func link(source, target string) map[string]any {
	return map[string]any{
		"sourceId":     source,
		"targetId":     target,
		"sourceType":   "content",
		"targetType":   "content",
		"relationship": "related",
	}
}

func TestAddConnectionMergesAndReprojects(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/connections", link("c1", "c2"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[model.Connection](t, rec)
	assert.Equal(t, model.DefaultStrength, first.Strength)

	rec = do(t, s, http.MethodPost, "/api/connections", link("c1", "c2"))
	require.Equal(t, http.StatusOK, rec.Code)
	merged := decode[model.Connection](t, rec)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 6, merged.Strength)

	g := decode[model.Graph](t, do(t, s, http.MethodGet, "/api/graph", nil))
	require.Len(t, g.Links, 1)
	assert.Equal(t, 6, g.Links[0].Strength)
	assert.Len(t, g.Nodes, 5, "three contents and two shared tags; the unconnected memo stays hidden")

	conns := decode[[]model.Connection](t, do(t, s, http.MethodGet, "/api/connections", nil))
	assert.Len(t, conns, 1)
}

// stallingBackend holds one List call after it has read the connections,
// leaving the caller with data that is about to go stale
type stallingBackend struct {
	*store.MemoryBackend
	armed   atomic.Bool
	stalled chan struct{}
	release chan struct{}
}

func (b *stallingBackend) List(ctx context.Context) ([]model.Connection, error) {
	conns, err := b.MemoryBackend.List(ctx)
	if b.armed.CompareAndSwap(true, false) {
		close(b.stalled)
		<-b.release
	}
	return conns, err
}

func TestOverlappingRefreshesKeepNewestProjection(t *testing.T) {
	backend := &stallingBackend{
		MemoryBackend: store.NewMemoryBackend(),
		stalled:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	s := newTestServerWithBackend(t, backend)
	ctx := context.Background()
	backend.armed.Store(true)

	add := func(source, target string) {
		_, err := s.conns.Add(ctx, store.AddRequest{
			SourceID:     source,
			TargetID:     target,
			SourceType:   model.KindContent,
			TargetType:   model.KindContent,
			Relationship: model.RelRelated,
		})
		assert.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		add("c1", "c2")
	}()
	<-backend.stalled

	wg.Add(1)
	go func() {
		defer wg.Done()
		add("c2", "c3")
	}()
	// give the second refresh time to finish if nothing holds it back
	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	stored, err := s.conns.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	g := decode[model.Graph](t, do(t, s, http.MethodGet, "/api/graph", nil))
	assert.Len(t, g.Links, len(stored))
}

func TestAddConnectionRejectsInvalidInput(t *testing.T) {
	s := newTestServer(t)

	badKind := link("c1", "c2")
	badKind["targetType"] = "folder"

	tests := []struct {
		name string
		body any
	}{
		{"self loop", link("c1", "c1")},
		{"unknown kind", badKind},
		{"missing source", link("", "c2")},
		{"malformed json", `{"sourceId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/connections", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}

	conns := decode[[]model.Connection](t, do(t, s, http.MethodGet, "/api/connections", nil))
	assert.Empty(t, conns)
}

func TestUpdateAndDeleteConnection(t *testing.T) {
	s := newTestServer(t)

	a := decode[model.Connection](t, do(t, s, http.MethodPost, "/api/connections", link("c1", "c2")))
	b := decode[model.Connection](t, do(t, s, http.MethodPost, "/api/connections", link("c1", "c3")))

	rec := do(t, s, http.MethodPatch, "/api/connections/"+a.ID, map[string]any{"strength": 42})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.MaxStrength, decode[model.Connection](t, rec).Strength)

	rec = do(t, s, http.MethodPatch, "/api/connections/"+b.ID, map[string]any{"targetId": "c2"})
	assert.Equal(t, http.StatusConflict, rec.Code, "moving onto an occupied pair")

	rec = do(t, s, http.MethodPatch, "/api/connections/nope", map[string]any{"strength": 3})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodPatch, "/api/connections/"+a.ID, map[string]any{"sourceType": "folder"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	touching := decode[[]model.Connection](t, do(t, s, http.MethodGet, "/api/nodes/c3/connections", nil))
	require.Len(t, touching, 1)
	assert.Equal(t, b.ID, touching[0].ID)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/connections/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/connections/"+a.ID, nil).Code)

	conns := decode[[]model.Connection](t, do(t, s, http.MethodGet, "/api/connections", nil))
	require.Len(t, conns, 1)
	assert.Equal(t, b.ID, conns[0].ID)
}

func TestGraphFocusAndStats(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/connections", link("c1", "c2"))

	focused := decode[model.Graph](t, do(t, s, http.MethodGet, "/api/graph?focus=c1&depth=0", nil))
	require.Len(t, focused.Nodes, 1)
	assert.Equal(t, "c1", focused.Nodes[0].ID)

	focused = decode[model.Graph](t, do(t, s, http.MethodGet, "/api/graph?focus=c1", nil))
	assert.Len(t, focused.Nodes, 2)

	rec := do(t, s, http.MethodGet, "/api/graph?focus=c1&depth=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stats := decode[map[string]any](t, do(t, s, http.MethodGet, "/api/graph/stats", nil))
	assert.EqualValues(t, 5, stats["nodes"])
	assert.EqualValues(t, 1, stats["links"])
	assert.EqualValues(t, 4, stats["components"])
}

func TestSuggestions(t *testing.T) {
	s := newTestServer(t)

	got := decode[[]model.SuggestedConnection](t, do(t, s, http.MethodPost, "/api/suggestions/c1", nil))
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].TargetID)
	assert.Equal(t, "shares tag 'ml'", got[0].Reason)
	assert.Equal(t, "c3", got[1].TargetID)

	external := map[string]any{"external": []model.SuggestedConnection{
		{TargetID: "c2", Reason: "duplicate", Confidence: 0.9},
		{TargetID: "x9", Reason: "from elsewhere", Confidence: 0.5},
	}}
	got = decode[[]model.SuggestedConnection](t, do(t, s, http.MethodPost, "/api/suggestions/c1", external))
	require.Len(t, got, 3)
	assert.Equal(t, "shares tag 'ml'", got[0].Reason, "local suggestion wins the collision")
	assert.Equal(t, "x9", got[2].TargetID)

	got = decode[[]model.SuggestedConnection](t, do(t, s, http.MethodPost, "/api/suggestions/unknown", nil))
	assert.Empty(t, got)
}

func TestPatternsArePublished(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"c2", "c3"} {
		do(t, s, http.MethodPost, "/api/connections", link("c1", target))
	}

	sub, err := s.Publisher().Subscribe(context.Background(), pubsub.TopicPatterns)
	require.NoError(t, err)
	defer sub.Close()

	rec := do(t, s, http.MethodPost, "/api/patterns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Pattern](t, rec), "two connections stay below the threshold")

	select {
	case ev := <-sub.Events():
		assert.Equal(t, pubsub.EventPatterns, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no patterns event published")
	}
}

func TestLayoutEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/layout/zoom", map[string]any{"factor": 2, "x": 0, "y": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 2, decode[layout.Transform](t, rec).K, 1e-9)

	rec = do(t, s, http.MethodPost, "/api/layout/zoom", map[string]any{"factor": 100})
	assert.InDelta(t, layout.MaxScale, decode[layout.Transform](t, rec).K, 1e-9)

	rec = do(t, s, http.MethodPost, "/api/layout/pan", map[string]any{"dx": 10, "dy": -5})
	require.Equal(t, http.StatusOK, rec.Code)
	vp := decode[layout.Transform](t, do(t, s, http.MethodGet, "/api/layout/viewport", nil))
	assert.InDelta(t, -5, vp.Y, 1e-9)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/layout/zoom", map[string]any{"factor": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/layout/resize", map[string]any{"width": 0, "height": 10}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/layout/pointer", map[string]any{"phase": "hover"}).Code)

	rec = do(t, s, http.MethodPost, "/api/layout/resize", map[string]any{"width": 1024, "height": 768})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[layoutStatus](t, rec).Running)

	rec = do(t, s, http.MethodPost, "/api/layout/pointer", map[string]any{
		"phase": "down", "x": 1, "y": 1, "target": map[string]string{"kind": "node", "id": "c1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/layout/pointer", map[string]any{"phase": "up", "x": 1, "y": 1})
	assert.Equal(t, layout.GestureClick, decode[layout.Gesture](t, rec).Kind)

	frame := decode[layout.Frame](t, do(t, s, http.MethodGet, "/api/layout/frame", nil))
	assert.Len(t, frame.Positions, 5)
}

func TestSubscribeStreamsReplayedGraph(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/subscribe/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/subscribe/"+pubsub.TopicGraph, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended before the replayed event")
			if line == "event: "+pubsub.EventGraphFull {
				return
			}
		case <-deadline:
			t.Fatal("no replayed graph event")
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodGet, "/api/graph", nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "thoughtgraph_graph_elements")
	assert.Contains(t, rec.Body.String(), "thoughtgraph_http_request_duration_seconds")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrSelfLoop, http.StatusBadRequest},
		{model.ErrInvalidKind, http.StatusBadRequest},
		{store.ErrDuplicatePair, http.StatusConflict},
		{errBadRequest, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
