package layout

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// DragThreshold is how far, in screen pixels, the pointer must travel after
// going down before the gesture becomes a drag
const DragThreshold = 3.0

// TargetKind is what the pointer went down on
type TargetKind string

const (
	TargetNode       TargetKind = "node"
	TargetEdge       TargetKind = "edge"
	TargetBackground TargetKind = "background"
)

// Target identifies the element under the pointer
type Target struct {
	Kind TargetKind `json:"kind" validate:"omitempty,oneof=node edge background"`
	ID   string     `json:"id,omitempty"`
}

// Phase is the pointer event phase
type Phase string

const (
	PhaseDown Phase = "down"
	PhaseMove Phase = "move"
	PhaseUp   Phase = "up"
)

// PointerEvent is a raw pointer event in screen coordinates. Target is only
// read on PhaseDown.
type PointerEvent struct {
	Phase  Phase   `json:"phase" validate:"required,oneof=down move up"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Target Target  `json:"target"`
}

// GestureKind is the interpreted meaning of a pointer event
type GestureKind string

const (
	GestureNone      GestureKind = "none"
	GestureDragStart GestureKind = "drag-start"
	GestureDrag      GestureKind = "drag"
	GestureDragEnd   GestureKind = "drag-end"
	GestureClick     GestureKind = "click"
)

// Gesture is what a pointer event turned out to mean
type Gesture struct {
	Kind   GestureKind `json:"kind"`
	Target Target      `json:"target"`
	Point  r2.Vec      `json:"point"`
	// Delta is the screen movement since the previous event of this gesture
	Delta r2.Vec `json:"delta"`
}

// GestureTracker separates clicks from drags. A press becomes a drag only
// once the pointer moves past DragThreshold; releasing before that is a click.
type GestureTracker struct {
	pressed  bool
	dragging bool
	target   Target
	start    r2.Vec
	last     r2.Vec
}

// Handle interprets one pointer event
func (g *GestureTracker) Handle(ev PointerEvent) Gesture {
	p := r2.Vec{X: ev.X, Y: ev.Y}

	switch ev.Phase {
	case PhaseDown:
		target := ev.Target
		if target.Kind == "" {
			target.Kind = TargetBackground
		}
		*g = GestureTracker{pressed: true, target: target, start: p, last: p}
		return Gesture{Kind: GestureNone, Target: target, Point: p}

	case PhaseMove:
		if !g.pressed {
			return Gesture{Kind: GestureNone, Point: p}
		}
		delta := r2.Sub(p, g.last)
		g.last = p
		if g.dragging {
			return Gesture{Kind: GestureDrag, Target: g.target, Point: p, Delta: delta}
		}
		if r2.Norm(r2.Sub(p, g.start)) > DragThreshold {
			g.dragging = true
			return Gesture{Kind: GestureDragStart, Target: g.target, Point: p, Delta: r2.Sub(p, g.start)}
		}
		return Gesture{Kind: GestureNone, Target: g.target, Point: p}

	case PhaseUp:
		if !g.pressed {
			return Gesture{Kind: GestureNone, Point: p}
		}
		target, dragging := g.target, g.dragging
		*g = GestureTracker{}
		if dragging {
			return Gesture{Kind: GestureDragEnd, Target: target, Point: p}
		}
		if target.Kind == TargetNode || target.Kind == TargetEdge {
			return Gesture{Kind: GestureClick, Target: target, Point: p}
		}
		return Gesture{Kind: GestureNone, Target: target, Point: p}
	}

	return Gesture{Kind: GestureNone, Point: p}
}

// Dragging reports whether a drag is in progress
func (g *GestureTracker) Dragging() bool {
	return g.dragging
}
