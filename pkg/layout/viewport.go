package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Zoom limits
const (
	MinScale = 0.3
	MaxScale = 3.0
)

// Transform maps world coordinates to screen: screen = world*K + (X, Y)
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the zoom and pan state of the rendered container. It is
// independent of the physics.
type Viewport struct {
	t Transform
}

// NewViewport starts at scale 1 with no translation
func NewViewport() *Viewport {
	return &Viewport{t: Transform{K: 1}}
}

// Transform returns the current transform
func (v *Viewport) Transform() Transform {
	return v.t
}

// ClampScale forces a scale into [MinScale, MaxScale]
func ClampScale(k float64) float64 {
	if math.IsNaN(k) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, k))
}

// ZoomAt scales by factor, keeping the world point under the screen point p
// where it is
func (v *Viewport) ZoomAt(factor float64, p r2.Vec) Transform {
	return v.ZoomTo(v.t.K*factor, p)
}

// ZoomTo sets the scale, anchored at screen point p
func (v *Viewport) ZoomTo(k float64, p r2.Vec) Transform {
	anchor := v.ToWorld(p)
	v.t.K = ClampScale(k)
	v.t.X = p.X - anchor.X*v.t.K
	v.t.Y = p.Y - anchor.Y*v.t.K
	return v.t
}

// Pan translates the view by a screen-space delta
func (v *Viewport) Pan(d r2.Vec) Transform {
	v.t.X += d.X
	v.t.Y += d.Y
	return v.t
}

// Reset returns to the identity transform
func (v *Viewport) Reset() Transform {
	v.t = Transform{K: 1}
	return v.t
}

// ToWorld converts a screen point to world coordinates
func (v *Viewport) ToWorld(p r2.Vec) r2.Vec {
	return r2.Vec{X: (p.X - v.t.X) / v.t.K, Y: (p.Y - v.t.Y) / v.t.K}
}

// ToScreen converts a world point to screen coordinates
func (v *Viewport) ToScreen(w r2.Vec) r2.Vec {
	return r2.Vec{X: w.X*v.t.K + v.t.X, Y: w.Y*v.t.K + v.t.Y}
}
