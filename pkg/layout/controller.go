package layout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// Interaction is a user action the rest of the application may react to
type Interaction struct {
	Kind   GestureKind `json:"kind"`
	Target Target      `json:"target"`
	World  r2.Vec      `json:"world"`
}

// InteractionSink receives clicks and drag boundaries
type InteractionSink func(Interaction)

// Controller owns at most one running simulation together with the viewport
// and gesture state. Loading a new graph stops the previous simulation before
// the next one starts.
type Controller struct {
	ctx    context.Context
	frames FrameSink
	events InteractionSink
	log    *slog.Logger

	mu       sync.Mutex
	cfg      Config
	handle   *Handle
	viewport *Viewport
	gesture  GestureTracker
}

// NewController creates a controller whose simulations live until ctx is done
func NewController(ctx context.Context, cfg Config, frames FrameSink, events InteractionSink) *Controller {
	if events == nil {
		events = func(Interaction) {}
	}
	return &Controller{
		ctx:      ctx,
		cfg:      cfg,
		frames:   frames,
		events:   events,
		log:      logging.New("layout"),
		viewport: NewViewport(),
	}
}

// Load replaces the running simulation with one for g. An empty graph stops
// the current simulation and leaves the controller idle.
func (c *Controller) Load(g *model.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
	c.gesture = GestureTracker{}

	c.handle = Start(c.ctx, g, c.cfg, c.frames)
	if c.handle == nil {
		c.log.Debug("empty graph, layout idle")
		if c.frames != nil {
			c.frames(Frame{State: StateIdle, Positions: []Position{}})
		}
	}
}

// Stop halts the current simulation
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
}

// Running reports whether a simulation exists, active or parked
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// State returns the current simulation phase
func (c *Controller) State() State {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return StateIdle
	}
	return h.State()
}

// Frame returns the current positions, if a simulation exists
func (c *Controller) Frame() (Frame, bool) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return Frame{}, false
	}
	return h.Frame()
}

// Refresh reheats the simulation. It reports false when there is nothing to lay out.
func (c *Controller) Refresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return false
	}
	return c.handle.Refresh()
}

// Resize tracks the container size for the current and future simulations
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Width, c.cfg.Height = width, height
	if c.handle != nil {
		c.handle.Resize(width, height)
	}
}

// Viewport returns the current view transform
func (c *Controller) Viewport() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.Transform()
}

// Zoom scales the view around a screen point
func (c *Controller) Zoom(factor float64, p r2.Vec) Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.ZoomAt(factor, p)
}

// Pan moves the view by a screen-space delta
func (c *Controller) Pan(d r2.Vec) Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.Pan(d)
}

// Pointer feeds a pointer event through gesture disambiguation. Dragging a
// node pins it under the pointer; dragging the background pans; a press
// released without moving past the threshold is reported as a click.
func (c *Controller) Pointer(ev PointerEvent) Gesture {
	c.mu.Lock()
	gesture := c.gesture.Handle(ev)
	world := c.viewport.ToWorld(gesture.Point)
	h := c.handle

	nodeTarget := gesture.Target.Kind == TargetNode && gesture.Target.ID != ""
	switch gesture.Kind {
	case GestureDragStart, GestureDrag:
		if gesture.Target.Kind == TargetBackground {
			c.viewport.Pan(gesture.Delta)
		}
	}
	c.mu.Unlock()

	switch gesture.Kind {
	case GestureDragStart:
		if nodeTarget && h != nil {
			h.Pin(gesture.Target.ID, world)
		}
		c.events(Interaction{Kind: gesture.Kind, Target: gesture.Target, World: world})

	case GestureDrag:
		if nodeTarget && h != nil {
			h.Pin(gesture.Target.ID, world)
		}

	case GestureDragEnd:
		if nodeTarget && h != nil {
			h.Unpin(gesture.Target.ID)
		}
		c.events(Interaction{Kind: gesture.Kind, Target: gesture.Target, World: world})

	case GestureClick:
		c.events(Interaction{Kind: gesture.Kind, Target: gesture.Target, World: world})
	}

	return gesture
}
