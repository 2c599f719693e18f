// Package population keeps the simulated body count converging toward a target.
package population

import (
	"math"
	"math/rand"
	"time"
)

// Population target bounds.
const (
	MinTarget = 1
	MaxTarget = 100
)

// Spawning
const (
	DefaultFloor     = -1.0 // Bodies below this elevation are culled
	SpawnSpeed       = 2.0  // Horizontal speed of new bodies
	minHeightFactor  = 0.5
	heightFactorSpan = 1.0
)

// ObjectID identifies a body owned by the external runtime.
type ObjectID uint64

// Position is the elevation of a tracked body.
type Position struct {
	ID        ObjectID
	Elevation float64
}

// SpawnRequest describes one body to create.
type SpawnRequest struct {
	Elevation     float64 // Initial height
	VelocityX     float64 // Horizontal velocity
	VelocityZ     float64
	Interpolation int // Interpolation mode for the new body
}

// NewSpawnRequest randomizes an elevation in [0.5, 1.5] x baseHeight and a
// horizontal velocity of SpawnSpeed in a random direction.
func NewSpawnRequest(rng *rand.Rand, baseHeight float64, interpolation int) SpawnRequest {
	height := baseHeight * (minHeightFactor + rng.Float64()*heightFactorSpan)
	angle := rng.Float64() * 2 * math.Pi
	return SpawnRequest{
		Elevation:     height,
		VelocityX:     math.Cos(angle) * SpawnSpeed,
		VelocityZ:     math.Sin(angle) * SpawnSpeed,
		Interpolation: interpolation,
	}
}

// SpawnFunc creates one body in the runtime. A non-nil error means the
// runtime refused and nothing was created.
type SpawnFunc func() error

// RemoveFunc removes one body from the runtime.
type RemoveFunc func(id ObjectID)

// TickResult reports what a Tick did.
type TickResult struct {
	Spawned bool
	Culled  int
}

// Config configures a Manager.
type Config struct {
	Target int           // Initial target, clamped to [MinTarget, MaxTarget]
	Floor  float64       // Cull threshold
	Start  time.Duration // Initial admission timestamp
}

// DefaultConfig returns a config with the default floor.
func DefaultConfig() Config {
	return Config{Target: MinTarget, Floor: DefaultFloor}
}

// Manager tracks target and live counts and rate-limits spawn admission.
// It holds counts only; bodies are owned by the runtime.
type Manager struct {
	target        int
	live          int
	lastAdmission time.Duration
	floor         float64

	admitted int // Total successful spawns
	culled   int // Total bodies removed below the floor
	rejected int // Total spawns refused by the runtime
}

// NewManager creates a manager with no live bodies.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		floor:         cfg.Floor,
		lastAdmission: cfg.Start,
	}
	m.SetTarget(cfg.Target)
	return m
}

// SetTarget clamps n to [MinTarget, MaxTarget] and stores it. Convergence
// happens on later ticks.
func (m *Manager) SetTarget(n int) {
	m.target = min(max(n, MinTarget), MaxTarget)
}

// Tick admits at most one spawn when live < target and more than
// minInterval has passed since the last admission, then culls every body
// below the floor.
func (m *Manager) Tick(now, minInterval time.Duration, spawn SpawnFunc, remove RemoveFunc, positions []Position) TickResult {
	var res TickResult

	if m.live < m.target && now-m.lastAdmission > minInterval {
		if err := spawn(); err != nil {
			m.rejected++
		} else {
			m.live++
			m.admitted++
			m.lastAdmission = now
			res.Spawned = true
		}
	}

	for _, p := range positions {
		if p.Elevation < m.floor {
			remove(p.ID)
			if m.live > 0 {
				m.live--
			}
			m.culled++
			res.Culled++
		}
	}

	return res
}

// ResetAll removes every listed body and zeroes the live count.
func (m *Manager) ResetAll(remove RemoveFunc, ids []ObjectID) {
	for _, id := range ids {
		remove(id)
	}
	m.live = 0
}

// Reconcile aligns the live count with the runtime's actual body count.
func (m *Manager) Reconcile(actual int) {
	m.live = max(actual, 0)
}

// Target returns the clamped target.
func (m *Manager) Target() int { return m.target }

// Live returns the live count.
func (m *Manager) Live() int { return m.live }

// Floor returns the cull threshold.
func (m *Manager) Floor() float64 { return m.floor }

// LastAdmission returns the timestamp of the most recent spawn.
func (m *Manager) LastAdmission() time.Duration { return m.lastAdmission }

// Stats holds lifetime counters.
type Stats struct {
	Admitted int
	Culled   int
	Rejected int
}

// Stats returns lifetime counters.
func (m *Manager) Stats() Stats {
	return Stats{Admitted: m.admitted, Culled: m.culled, Rejected: m.rejected}
}
