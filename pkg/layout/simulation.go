package layout

import (
	"math"
	"time"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// State is the lifecycle phase of a simulation
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateSettling State = "settling"
)

// Alpha model constants, matching the usual d3-force defaults
const (
	AlphaMin      = 0.001
	VelocityDecay = 0.4
	// DragAlphaTarget keeps the simulation warm while a node is dragged
	DragAlphaTarget = 0.3
	// ResizeAlpha is the minimum alpha after the viewport changes size
	ResizeAlpha = 0.3
	// settleAlpha separates running from settling
	settleAlpha = 0.1
)

// AlphaDecay cools alpha from 1 to AlphaMin in about 300 ticks
var AlphaDecay = 1 - math.Pow(AlphaMin, 1.0/300)

// Config tunes the simulation
type Config struct {
	Width         float64
	Height        float64
	Charge        float64
	Theta         float64
	FrameInterval time.Duration
}

// DefaultConfig returns a strongly repulsive layout for an 800x600 view at ~60fps
func DefaultConfig() Config {
	return Config{
		Width:         800,
		Height:        600,
		Charge:        -300,
		Theta:         0.9,
		FrameInterval: 16 * time.Millisecond,
	}
}

// Simulation advances the physics for one graph. It is not safe for
// concurrent use; a Handle serialises access to it.
type Simulation struct {
	cfg         Config
	arena       *Arena
	links       []arenaLink
	center      r2.Vec
	alpha       float64
	alphaTarget float64
	ticks       uint64
}

// NewSimulation prepares a simulation with alpha 1. An empty graph yields nil.
func NewSimulation(g *model.Graph, cfg Config) *Simulation {
	if g.Empty() {
		return nil
	}
	center := r2.Vec{X: cfg.Width / 2, Y: cfg.Height / 2}
	arena, links := newArena(g, center)
	return &Simulation{
		cfg:    cfg,
		arena:  arena,
		links:  links,
		center: center,
		alpha:  1,
	}
}

// Arena exposes the physics state for reading
func (s *Simulation) Arena() *Arena {
	return s.arena
}

// Alpha returns the current temperature
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// AlphaTarget returns the temperature the simulation decays toward
func (s *Simulation) AlphaTarget() float64 {
	return s.alphaTarget
}

// Center returns the centering target
func (s *Simulation) Center() r2.Vec {
	return s.center
}

// Ticks returns the number of completed ticks
func (s *Simulation) Ticks() uint64 {
	return s.ticks
}

// State derives the lifecycle phase from alpha
func (s *Simulation) State() State {
	switch {
	case s.alphaTarget > 0 || s.alpha >= settleAlpha:
		return StateRunning
	case s.alpha >= AlphaMin:
		return StateSettling
	default:
		return StateIdle
	}
}

// Tick advances the simulation one step. It returns false without moving
// anything once the simulation is idle.
func (s *Simulation) Tick() bool {
	if s.State() == StateIdle {
		return false
	}

	s.alpha += (s.alphaTarget - s.alpha) * AlphaDecay

	a := s.arena
	applyLinks(a, s.links, s.alpha)
	if err := applyCharge(a, s.cfg.Charge, s.cfg.Theta, s.alpha); err != nil {
		// Non-finite positions; drop this tick's charge rather than poison the arena
		for i := range a.Vel {
			a.Vel[i] = r2.Vec{}
		}
	}
	applyCenter(a, s.center)
	applyCollision(a)

	for i := range a.Pos {
		if a.Pinned[i] {
			a.Pos[i] = a.Fixed[i]
			a.Vel[i] = r2.Vec{}
			continue
		}
		a.Vel[i] = r2.Scale(1-VelocityDecay, a.Vel[i])
		a.Pos[i] = r2.Add(a.Pos[i], a.Vel[i])
	}

	s.ticks++
	return true
}

// Reheat raises alpha so the layout moves again
func (s *Simulation) Reheat(alpha float64) {
	s.alpha = math.Max(s.alpha, alpha)
}

// SetAlphaTarget sets the temperature alpha decays toward
func (s *Simulation) SetAlphaTarget(target float64) {
	s.alphaTarget = target
}

// Resize moves the centering target and nudges alpha without resetting positions
func (s *Simulation) Resize(width, height float64) {
	s.cfg.Width, s.cfg.Height = width, height
	s.center = r2.Vec{X: width / 2, Y: height / 2}
	s.Reheat(ResizeAlpha)
}

// Pin fixes a node at a world position and keeps the simulation warm
func (s *Simulation) Pin(id string, p r2.Vec) bool {
	i, ok := s.arena.Index(id)
	if !ok {
		return false
	}
	s.arena.Pin(i, p)
	s.arena.Pos[i] = p
	s.alphaTarget = DragAlphaTarget
	s.Reheat(DragAlphaTarget)
	return true
}

// Unpin releases a node and lets alpha decay back to rest
func (s *Simulation) Unpin(id string) bool {
	i, ok := s.arena.Index(id)
	if !ok {
		return false
	}
	s.arena.Unpin(i)
	s.alphaTarget = 0
	return true
}

// Position is one node's place in a frame
type Position struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Pinned bool    `json:"pinned,omitempty"`
}

// Frame is the per-tick output sent to the renderer
type Frame struct {
	Seq       uint64     `json:"seq"`
	State     State      `json:"state"`
	Alpha     float64    `json:"alpha"`
	Positions []Position `json:"positions"`
}

// Frame captures the current positions
func (s *Simulation) Frame() Frame {
	a := s.arena
	positions := make([]Position, a.Len())
	for i := range positions {
		positions[i] = Position{ID: a.IDs[i], X: a.Pos[i].X, Y: a.Pos[i].Y, Pinned: a.Pinned[i]}
	}
	return Frame{Seq: s.ticks, State: s.State(), Alpha: s.alpha, Positions: positions}
}
