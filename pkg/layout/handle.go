package layout

import (
	"context"
	"sync"
	"time"

	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/metrics"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// FrameSink receives frames from the tick loop. It is called on the
// simulation goroutine and must not block for long.
type FrameSink func(Frame)

// Handle owns one running simulation. Its goroutine is the only writer to
// the arena; everything else goes through the command channel and is applied
// between ticks.
type Handle struct {
	cmds     chan func(*Simulation)
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	interval time.Duration
	sink     FrameSink
}

// Start launches a simulation for g. An empty graph starts nothing and
// returns nil.
func Start(ctx context.Context, g *model.Graph, cfg Config, sink FrameSink) *Handle {
	sim := NewSimulation(g, cfg)
	if sim == nil {
		return nil
	}
	if sink == nil {
		sink = func(Frame) {}
	}
	interval := cfg.FrameInterval
	if interval <= 0 {
		interval = DefaultConfig().FrameInterval
	}

	h := &Handle{
		cmds:     make(chan func(*Simulation)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		interval: interval,
		sink:     sink,
	}
	go h.run(ctx, sim)
	return h
}

func (h *Handle) run(ctx context.Context, sim *Simulation) {
	defer close(h.done)

	log := logging.New("layout")
	log.Debug("simulation started", "nodes", sim.Arena().Len(), "links", len(sim.links))
	metrics.LayoutRunning.Set(1)
	defer metrics.LayoutRunning.Set(0)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	active := true
	h.sink(sim.Frame())

	for {
		var tick <-chan time.Time
		if active {
			tick = ticker.C
		}

		select {
		case <-ctx.Done():
			log.Debug("simulation cancelled", "ticks", sim.Ticks())
			return

		case <-h.stop:
			log.Debug("simulation stopped", "ticks", sim.Ticks())
			return

		case cmd := <-h.cmds:
			cmd(sim)
			if !active && sim.State() != StateIdle {
				active = true
				ticker.Reset(h.interval)
				metrics.LayoutRunning.Set(1)
				log.Log(ctx, logging.LevelTrace, "simulation reheated", "alpha", sim.Alpha())
			}

		case <-tick:
			if sim.Tick() {
				metrics.LayoutTicks.Inc()
				h.sink(sim.Frame())
			}
			if sim.State() == StateIdle {
				active = false
				metrics.LayoutRunning.Set(0)
				log.Debug("simulation settled", "ticks", sim.Ticks())
			}
		}
	}
}

// do runs fn on the simulation goroutine. It returns false if the
// simulation has already stopped.
func (h *Handle) do(fn func(*Simulation)) bool {
	select {
	case h.cmds <- fn:
		return true
	case <-h.done:
		return false
	}
}

// query runs fn on the simulation goroutine and waits for its result
func query[T any](h *Handle, fn func(*Simulation) T) (T, bool) {
	reply := make(chan T, 1)
	if !h.do(func(s *Simulation) { reply <- fn(s) }) {
		var zero T
		return zero, false
	}
	return <-reply, true
}

// Refresh reheats the simulation to full temperature
func (h *Handle) Refresh() bool {
	return h.do(func(s *Simulation) { s.Reheat(1) })
}

// Resize moves the centering target
func (h *Handle) Resize(width, height float64) bool {
	return h.do(func(s *Simulation) { s.Resize(width, height) })
}

// Pin fixes a node at a world position
func (h *Handle) Pin(id string, p r2.Vec) bool {
	ok, _ := query(h, func(s *Simulation) bool { return s.Pin(id, p) })
	return ok
}

// Unpin releases a pinned node
func (h *Handle) Unpin(id string) bool {
	ok, _ := query(h, func(s *Simulation) bool { return s.Unpin(id) })
	return ok
}

// Frame returns the current positions
func (h *Handle) Frame() (Frame, bool) {
	return query(h, func(s *Simulation) Frame { return s.Frame() })
}

// State returns the simulation phase, or idle once stopped
func (h *Handle) State() State {
	state, ok := query(h, func(s *Simulation) State { return s.State() })
	if !ok {
		return StateIdle
	}
	return state
}

// Stop halts the tick loop and waits for the goroutine to exit. It is safe
// to call more than once.
func (h *Handle) Stop() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

// Done is closed once the simulation goroutine has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
