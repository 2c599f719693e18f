package physics

import (
	"errors"
	"fmt"

	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/population"
)

// ErrCapacity is returned by Spawn when the world is full.
var ErrCapacity = errors.New("physics: world at capacity")

// Config holds the world constants.
type Config struct {
	Gravity     float64 // m/s^2, negative is down
	Restitution float64 // Fraction of normal speed kept after a bounce
	GroundHalf  float64 // Ground plane spans [-GroundHalf, GroundHalf] in X and Z
	Radius      float64 // Ball radius
	Capacity    int     // Maximum number of balls
	Iterations  int     // Contact solver passes per step
}

// DefaultConfig returns the stock world.
func DefaultConfig() Config {
	return Config{
		Gravity:     -9.81,
		Restitution: 0.6,
		GroundHalf:  5,
		Radius:      0.25,
		Capacity:    256,
		Iterations:  IterationsForTier(3),
	}
}

// IterationsForTier maps a quality tier to contact solver passes.
func IterationsForTier(tier int) int {
	return max(tier, 0) + 1
}

// restSpeed is the bounce speed below which a ball comes to rest on the ground.
const restSpeed = 0.5

// Ball is one simulated sphere.
type Ball struct {
	ID            population.ObjectID
	Pos           Vec3
	Prev          Vec3 // Position before the latest step
	Vel           Vec3
	Radius        float64
	Interpolation int
}

// World owns every ball. It implements controller.Runtime and is not safe
// for concurrent use.
type World struct {
	cfg        Config
	balls      []*Ball
	index      map[population.ObjectID]int
	nextID     population.ObjectID
	iterations int
	grid       *SpatialGrid
	steps      uint64
}

// NewWorld creates an empty world.
func NewWorld(cfg Config) *World {
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	// Cover twice the ground so balls rolling off stay in distinct cells for a while.
	span := 4 * cfg.GroundHalf
	return &World{
		cfg:        cfg,
		index:      make(map[population.ObjectID]int),
		iterations: cfg.Iterations,
		grid:       NewSpatialGrid(-span/2, -span/2, span, span, 2*cfg.Radius),
	}
}

// Spawn adds a ball at the requested elevation above the ground center.
func (w *World) Spawn(req population.SpawnRequest) (population.ObjectID, error) {
	if len(w.balls) >= w.cfg.Capacity {
		return 0, fmt.Errorf("spawn ball %d: %w", len(w.balls)+1, ErrCapacity)
	}
	w.nextID++
	pos := Vec3{Y: req.Elevation}
	b := &Ball{
		ID:            w.nextID,
		Pos:           pos,
		Prev:          pos,
		Vel:           Vec3{X: req.VelocityX, Z: req.VelocityZ},
		Radius:        w.cfg.Radius,
		Interpolation: req.Interpolation,
	}
	w.index[b.ID] = len(w.balls)
	w.balls = append(w.balls, b)
	return b.ID, nil
}

// Remove deletes a ball. Unknown IDs are ignored.
func (w *World) Remove(id population.ObjectID) {
	i, ok := w.index[id]
	if !ok {
		return
	}
	last := len(w.balls) - 1
	if i != last {
		w.balls[i] = w.balls[last]
		w.index[w.balls[i].ID] = i
	}
	w.balls[last] = nil
	w.balls = w.balls[:last]
	delete(w.index, id)
}

// SetInterpolation sets a ball's render interpolation mode.
func (w *World) SetInterpolation(id population.ObjectID, mode int) {
	if i, ok := w.index[id]; ok {
		w.balls[i].Interpolation = mode
	}
}

// Positions returns the elevation of every ball.
func (w *World) Positions() []population.Position {
	out := make([]population.Position, len(w.balls))
	for i, b := range w.balls {
		out[i] = population.Position{ID: b.ID, Elevation: b.Pos.Y}
	}
	return out
}

// Ball returns a copy of a ball.
func (w *World) Ball(id population.ObjectID) (Ball, bool) {
	i, ok := w.index[id]
	if !ok {
		return Ball{}, false
	}
	return *w.balls[i], true
}

// Len returns the number of balls.
func (w *World) Len() int { return len(w.balls) }

// Steps returns the number of completed steps.
func (w *World) Steps() uint64 { return w.steps }

// Config returns the world constants.
func (w *World) Config() Config { return w.cfg }

// SetIterations sets the contact solver passes (at least 1).
func (w *World) SetIterations(n int) {
	w.iterations = max(n, 1)
}

// Iterations returns the contact solver passes.
func (w *World) Iterations() int { return w.iterations }

// Step advances the world by dt seconds.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	for _, b := range w.balls {
		b.Prev = b.Pos
		b.Vel.Y += w.cfg.Gravity * dt
		b.Pos = b.Pos.Add(b.Vel.Scale(dt))
	}

	for range w.iterations {
		w.resolveContacts()
	}
	for _, b := range w.balls {
		w.resolveGround(b)
	}
	w.steps++
}

// OverGround reports whether p lies above the ground plane's footprint.
func (w *World) OverGround(p Vec3) bool {
	h := w.cfg.GroundHalf
	return p.X >= -h && p.X <= h && p.Z >= -h && p.Z <= h
}

// resolveGround bounces a ball off the plane. Balls that were already below
// the surface, or are off the plane's edge, keep falling.
func (w *World) resolveGround(b *Ball) {
	if !w.OverGround(b.Pos) || b.Pos.Y >= b.Radius || b.Prev.Y < 0 {
		return
	}
	b.Pos.Y = b.Radius
	if b.Vel.Y < 0 {
		b.Vel.Y = -b.Vel.Y * w.cfg.Restitution
		if b.Vel.Y < restSpeed {
			b.Vel.Y = 0
		}
	}
}

// resolveContacts separates overlapping balls and exchanges their normal
// velocities.
func (w *World) resolveContacts() {
	w.grid.Clear()
	for i, b := range w.balls {
		w.grid.Insert(b.Pos, i)
	}

	for i, a := range w.balls {
		w.grid.QueryAround(a.Pos, func(j int) bool {
			if j <= i {
				return false
			}
			w.collide(a, w.balls[j])
			return false
		})
	}
}

func (w *World) collide(a, b *Ball) {
	if !SpheresOverlap(a.Pos, a.Radius, b.Pos, b.Radius) {
		return
	}
	d := b.Pos.Sub(a.Pos)
	dist := d.Len()
	var n Vec3
	if dist == 0 {
		n = Vec3{Y: 1}
	} else {
		n = d.Scale(1 / dist)
	}

	push := (a.Radius + b.Radius - dist) / 2
	a.Pos = a.Pos.Sub(n.Scale(push))
	b.Pos = b.Pos.Add(n.Scale(push))

	// Equal masses: swap the approaching normal components.
	rel := b.Vel.Sub(a.Vel).Dot(n)
	if rel >= 0 {
		return
	}
	impulse := n.Scale(-rel * (1 + w.cfg.Restitution) / 2)
	a.Vel = a.Vel.Sub(impulse)
	b.Vel = b.Vel.Add(impulse)
}

// BodyView is a ball's render position.
type BodyView struct {
	ID     population.ObjectID
	Pos    Vec3
	Radius float64
}

// View returns render positions for every ball using each ball's
// interpolation mode. alpha is the fraction of a fixed step left in the
// scheduler's accumulator, fixedDelta the fixed step in seconds.
func (w *World) View(alpha, fixedDelta float64) []BodyView {
	out := make([]BodyView, len(w.balls))
	for i, b := range w.balls {
		out[i] = BodyView{ID: b.ID, Pos: b.render(alpha, fixedDelta), Radius: b.Radius}
	}
	return out
}

func (b *Ball) render(alpha, fixedDelta float64) Vec3 {
	switch b.Interpolation {
	case param.InterpolateLerp:
		return Lerp(b.Prev, b.Pos, alpha)
	case param.InterpolateExtrapolate:
		return b.Pos.Add(b.Vel.Scale(alpha * fixedDelta))
	default:
		return b.Pos
	}
}
