// Package engine runs the frame loop: it advances real, game and fixed time,
// runs fixed steps from an accumulator and paces frames.
package engine

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/simtuner/internal/timeutil"
)

// MaxDelta caps the game time a single frame may advance.
const MaxDelta = time.Second / 3

// DefaultDisplayHz is the refresh rate assumed when none is configured.
const DefaultDisplayHz = 60

// Time is the clock state handed to hooks.
type Time struct {
	Real          time.Duration // Wall time since start
	Unscaled      time.Duration // Sum of unscaled frame deltas
	Game          time.Duration // Sum of scaled frame deltas
	Fixed         time.Duration // Simulation time reached by fixed steps
	UnscaledDelta time.Duration
	Delta         time.Duration // Scaled, capped frame delta
	FixedDelta    time.Duration
	Alpha         float64 // Fraction of a fixed step left in the accumulator
	Frame         uint64
	FixedTicks    uint64
}

// Hooks are called on the scheduler goroutine.
type Hooks struct {
	FixedUpdate func(t Time) // Once per fixed step, before the step's simulation
	Update      func(t Time) // Once per frame
}

// Settings is the engine configuration received from the controller.
type Settings struct {
	FrameRateCap int // -1 = uncapped
	QualityTier  int
	SyncCount    int
	FixedStep    time.Duration
	TimeScale    float64
	CaptureStep  time.Duration // 0 = real time
}

// Options configures a Scheduler.
type Options struct {
	Clock     timeutil.Clock
	Logger    *log.Logger
	DisplayHz int
}

// Scheduler implements controller.EngineSink.
type Scheduler struct {
	hooks     Hooks
	clock     timeutil.Clock
	log       *log.Logger
	displayHz int

	settings Settings
	start    time.Time
	last     time.Time
	acc      time.Duration
	time     Time
}

// New creates a scheduler with stock settings (60 FPS cap, 20ms fixed step).
func New(hooks Hooks, opts Options) *Scheduler {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	hz := opts.DisplayHz
	if hz <= 0 {
		hz = DefaultDisplayHz
	}
	now := clock.Now()
	s := &Scheduler{
		hooks:     hooks,
		clock:     clock,
		log:       logger,
		displayHz: hz,
		start:     now,
		last:      now,
		settings: Settings{
			FrameRateCap: 60,
			FixedStep:    20 * time.Millisecond,
			TimeScale:    1,
		},
	}
	s.time.FixedDelta = s.settings.FixedStep
	return s
}

// SetFrameRateCap sets the target frame rate. Values <= 0 mean uncapped.
func (s *Scheduler) SetFrameRateCap(fps int) {
	s.settings.FrameRateCap = fps
}

// SetQualityTier records the quality tier.
func (s *Scheduler) SetQualityTier(tier int) {
	s.settings.QualityTier = tier
}

// SetSyncCount sets how many display refreshes each frame waits for.
func (s *Scheduler) SetSyncCount(n int) {
	if n < 0 {
		n = 0
	}
	s.settings.SyncCount = n
}

// SetFixedStep sets the fixed simulation step. Non-positive steps are ignored.
func (s *Scheduler) SetFixedStep(d time.Duration) {
	if d <= 0 {
		s.log.Warn("ignoring non-positive fixed step", "step", d)
		return
	}
	s.settings.FixedStep = d
}

// SetTimeScale sets the game time multiplier. Negative values clamp to 0.
func (s *Scheduler) SetTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	s.settings.TimeScale = scale
}

// SetCaptureStep makes every frame advance by exactly d. 0 restores real time.
func (s *Scheduler) SetCaptureStep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.settings.CaptureStep = d
}

// Settings returns the current engine configuration.
func (s *Scheduler) Settings() Settings {
	return s.settings
}

// Time returns the clock state of the latest frame.
func (s *Scheduler) Time() Time {
	return s.time
}

// DisplayHz returns the simulated display refresh rate.
func (s *Scheduler) DisplayHz() int {
	return s.displayHz
}

// FrameInterval returns the target time between frame starts, or 0 when
// frames are uncapped. Sync count wins over the frame rate cap.
func (s *Scheduler) FrameInterval() time.Duration {
	switch {
	case s.settings.SyncCount > 0:
		return time.Duration(s.settings.SyncCount) * time.Second / time.Duration(s.displayHz)
	case s.settings.FrameRateCap > 0:
		return time.Second / time.Duration(s.settings.FrameRateCap)
	default:
		return 0
	}
}

// Frame advances time by one frame, runs due fixed steps and then the
// per-frame hook.
func (s *Scheduler) Frame() {
	now := s.clock.Now()
	delta := now.Sub(s.last)
	s.last = now

	if s.settings.CaptureStep > 0 {
		delta = s.settings.CaptureStep
	}
	s.time.Real = now.Sub(s.start)
	s.time.UnscaledDelta = delta
	s.time.Unscaled += delta

	if delta > MaxDelta {
		delta = MaxDelta
	}
	scaled := time.Duration(float64(delta) * s.settings.TimeScale)
	s.time.Delta = scaled
	s.time.Game += scaled

	step := s.settings.FixedStep
	s.time.FixedDelta = step
	s.acc += scaled
	for s.acc >= step {
		s.acc -= step
		s.time.FixedTicks++
		s.time.Fixed += step
		if s.hooks.FixedUpdate != nil {
			s.hooks.FixedUpdate(s.time)
		}
		// A hook may have changed the step.
		step = s.settings.FixedStep
		s.time.FixedDelta = step
	}
	s.time.Alpha = float64(s.acc) / float64(step)

	s.time.Frame++
	if s.hooks.Update != nil {
		s.hooks.Update(s.time)
	}
}

// Run drives frames until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frameStart := s.clock.Now()
		s.Frame()

		interval := s.FrameInterval()
		if interval <= 0 {
			runtime.Gosched()
			continue
		}
		if elapsed := s.clock.Since(frameStart); elapsed < interval {
			s.clock.Sleep(interval - elapsed)
		}
	}
}
