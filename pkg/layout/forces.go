package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// minDistance2 keeps the charge force finite for nearly coincident nodes
const minDistance2 = 1.0

// particle adapts an arena slot to barneshut.Particle2
type particle struct {
	pos r2.Vec
}

func (p *particle) Coord2() r2.Vec { return p.pos }
func (p *particle) Mass() float64  { return 1 }

// applyCharge adds many-body repulsion (negative charge) or attraction to
// every node's velocity, approximated with a Barnes-Hut quadtree.
func applyCharge(a *Arena, charge, theta, alpha float64) error {
	n := a.Len()
	if n < 2 {
		return nil
	}

	particles := make([]barneshut.Particle2, n)
	for i := range n {
		particles[i] = &particle{pos: a.Pos[i]}
	}
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		return err
	}

	force := func(_, _ barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		d2 := v.X*v.X + v.Y*v.Y
		if d2 == 0 {
			return r2.Vec{}
		}
		d2 = math.Max(d2, minDistance2)
		return r2.Scale(charge*m2*alpha/d2, v)
	}

	for i := range n {
		f := plane.ForceOn(particles[i], theta, force)
		a.Vel[i] = r2.Add(a.Vel[i], f)
	}
	return nil
}

// applyLinks pulls or pushes linked nodes toward their target distance
func applyLinks(a *Arena, links []arenaLink, alpha float64) {
	for _, l := range links {
		src := r2.Add(a.Pos[l.source], a.Vel[l.source])
		tgt := r2.Add(a.Pos[l.target], a.Vel[l.target])
		d := r2.Sub(tgt, src)
		length := r2.Norm(d)
		if length == 0 {
			d = jiggle(l.source, l.target)
			length = r2.Norm(d)
		}
		k := (length - l.distance) / length * alpha * l.strength
		d = r2.Scale(k, d)
		a.Vel[l.target] = r2.Sub(a.Vel[l.target], r2.Scale(l.bias, d))
		a.Vel[l.source] = r2.Add(a.Vel[l.source], r2.Scale(1-l.bias, d))
	}
}

// applyCenter translates all nodes so their mean sits on center
func applyCenter(a *Arena, center r2.Vec) {
	n := a.Len()
	if n == 0 {
		return
	}
	var sum r2.Vec
	for _, p := range a.Pos {
		sum = r2.Add(sum, p)
	}
	shift := r2.Sub(r2.Scale(1/float64(n), sum), center)
	for i := range a.Pos {
		a.Pos[i] = r2.Sub(a.Pos[i], shift)
	}
}

// applyCollision separates nodes whose radii overlap, using projected positions
func applyCollision(a *Arena) {
	n := a.Len()
	for i := range n {
		pi := r2.Add(a.Pos[i], a.Vel[i])
		ri := a.Radius[i]
		for j := i + 1; j < n; j++ {
			rj := a.Radius[j]
			r := ri + rj
			pj := r2.Add(a.Pos[j], a.Vel[j])
			d := r2.Sub(pi, pj)
			if math.Abs(d.X) >= r || math.Abs(d.Y) >= r {
				continue
			}
			l2 := d.X*d.X + d.Y*d.Y
			if l2 >= r*r {
				continue
			}
			if l2 == 0 {
				d = jiggle(i, j)
				l2 = d.X*d.X + d.Y*d.Y
			}
			l := math.Sqrt(l2)
			d = r2.Scale((r-l)/l, d)
			share := rj * rj / (ri*ri + rj*rj)
			a.Vel[i] = r2.Add(a.Vel[i], r2.Scale(share, d))
			a.Vel[j] = r2.Sub(a.Vel[j], r2.Scale(1-share, d))
		}
	}
}

// jiggle returns a tiny deterministic offset to separate coincident nodes
func jiggle(i, j int) r2.Vec {
	angle := float64(i*31+j*17) * 0.618
	return r2.Vec{X: 1e-6 * math.Cos(angle), Y: 1e-6 * math.Sin(angle)}
}
