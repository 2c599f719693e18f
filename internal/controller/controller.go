// Package controller holds the current value of every tunable parameter,
// routes operator input into them and pushes changes to the engine and the
// population manager.
package controller

import (
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/population"
	"github.com/tomz197/simtuner/internal/timeutil"
)

// EngineSink receives the engine-wide configuration.
type EngineSink interface {
	SetFrameRateCap(fps int) // -1 = uncapped
	SetQualityTier(tier int)
	SetSyncCount(n int)
	SetFixedStep(d time.Duration)
	SetTimeScale(scale float64)
	SetCaptureStep(d time.Duration) // 0 = real time
}

// Runtime owns the simulated bodies.
type Runtime interface {
	Spawn(req population.SpawnRequest) (population.ObjectID, error)
	Remove(id population.ObjectID)
	SetInterpolation(id population.ObjectID, mode int)
	Positions() []population.Position
}

// Config is the startup configuration.
type Config struct {
	Initial           param.Values
	BaseHeight        float64       // Spawn elevation is 0.5x..1.5x this
	AdmissionInterval time.Duration // Minimum time between spawns
	Floor             float64       // Cull elevation
	RateWindow        time.Duration // Tick rate sampling window
	Seed              int64         // Spawn randomness, 0 = time based
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Initial:           param.Defaults(),
		BaseHeight:        5,
		AdmissionInterval: 50 * time.Millisecond,
		Floor:             population.DefaultFloor,
		RateWindow:        time.Second,
	}
}

// Options carries optional collaborators.
type Options struct {
	Clock  timeutil.Clock // Blocks for the processing pads
	Logger *log.Logger
	Rand   *rand.Rand
}

// trigger is a queued discrete request.
type trigger struct {
	reset bool
	id    param.ID
}

// slide is a queued continuous request.
type slide struct {
	id    param.ID
	value float64
}

// Controller is the single owner of parameter state. It is driven by one
// scheduler goroutine and is not safe for concurrent use.
type Controller struct {
	cfg    Config
	params *param.Set
	pop    *population.Manager
	sink   EngineSink
	rt     Runtime
	clock  timeutil.Clock
	rng    *rand.Rand
	log    *log.Logger

	triggers []trigger
	slides   []slide

	now     time.Duration // Unscaled time of the latest frame
	window  rateWindow
	applied int // Number of settings pushes
}

// New creates a controller and pushes the initial settings.
func New(cfg Config, sink EngineSink, rt Runtime, opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	rng := opts.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Second
	}

	params := param.NewSet(cfg.Initial)
	c := &Controller{
		cfg:    cfg,
		params: params,
		pop: population.NewManager(population.Config{
			Target: params.PopulationTarget.Value(),
			Floor:  cfg.Floor,
		}),
		sink:   sink,
		rt:     rt,
		clock:  clock,
		rng:    rng,
		log:    logger,
		window: rateWindow{span: cfg.RateWindow},
	}
	c.apply()
	return c
}

// Press queues one step of the parameter's table.
func (c *Controller) Press(id param.ID) {
	c.triggers = append(c.triggers, trigger{id: id})
}

// ResetPopulation queues removal of every body.
func (c *Controller) ResetPopulation() {
	c.triggers = append(c.triggers, trigger{reset: true})
}

// PressKey maps a trigger key to a request. Reports whether the key is bound.
func (c *Controller) PressKey(b byte) bool {
	if b == 'r' || b == 'R' {
		c.ResetPopulation()
		return true
	}
	p, ok := c.params.ByKey(b)
	if !ok {
		return false
	}
	c.Press(p.ID())
	return true
}

// Slide queues a direct value replacement. The caller clamps to range.
func (c *Controller) Slide(id param.ID, value float64) {
	c.slides = append(c.slides, slide{id: id, value: value})
}

// FrameTick runs once per rendered frame with the unscaled time since start.
func (c *Controller) FrameTick(now time.Duration) {
	c.now = now
	c.window.frame(now)

	if c.processInputs() {
		c.apply()
	}

	if pad := c.params.FramePad.Value(); pad > 0 {
		c.clock.Sleep(seconds(pad))
	}
}

// FixedTick runs once per fixed step with the fixed simulation time.
func (c *Controller) FixedTick(now time.Duration) {
	c.window.fixed++

	positions := c.rt.Positions()
	c.pop.Reconcile(len(positions))
	res := c.pop.Tick(now, c.cfg.AdmissionInterval, c.spawn, c.rt.Remove, positions)
	if res.Culled > 0 {
		c.log.Debug("culled bodies below floor", "count", res.Culled, "live", c.pop.Live())
	}

	if pad := c.params.FixedPad.Value(); pad > 0 {
		c.clock.Sleep(seconds(pad))
	}
}

// processInputs drains discrete requests, then continuous ones. Reports
// whether any parameter changed.
func (c *Controller) processInputs() bool {
	changed := false

	for _, t := range c.triggers {
		if t.reset {
			c.resetPopulation()
			continue
		}
		if p := c.params.Get(t.id); p != nil {
			p.Step()
			changed = true
		}
	}
	c.triggers = c.triggers[:0]

	for _, s := range c.slides {
		if p := c.params.Get(s.id); p != nil && p.SetFloat(s.value) {
			changed = true
		}
	}
	c.slides = c.slides[:0]

	return changed
}

// apply pushes the full parameter set to every collaborator.
func (c *Controller) apply() {
	v := c.params.Values()

	c.sink.SetFrameRateCap(v.FrameRateCap)
	c.sink.SetQualityTier(v.QualityTier)
	c.sink.SetSyncCount(v.SyncCount)
	c.sink.SetFixedStep(seconds(v.FixedStep))
	c.sink.SetTimeScale(v.TimeScale)
	c.sink.SetCaptureStep(seconds(v.CaptureStep))

	c.pop.SetTarget(v.PopulationTarget)

	for _, p := range c.rt.Positions() {
		c.rt.SetInterpolation(p.ID, v.Interpolation)
	}

	c.window.reset(c.now)
	c.applied++

	c.log.Info("settings applied",
		"fps", v.FrameRateCap,
		"vsync", v.SyncCount,
		"fixed_dt", v.FixedStep,
		"time_scale", v.TimeScale,
		"capture_dt", v.CaptureStep,
		"interpolation", param.InterpolationName(v.Interpolation),
		"quality", v.QualityTier,
		"balls", v.PopulationTarget,
		"fixed_pad", v.FixedPad,
		"frame_pad", v.FramePad,
	)
}

func (c *Controller) spawn() error {
	req := population.NewSpawnRequest(c.rng, c.cfg.BaseHeight, c.params.Interpolation.Value())
	if _, err := c.rt.Spawn(req); err != nil {
		c.log.Debug("spawn refused", "err", err)
		return err
	}
	return nil
}

func (c *Controller) resetPopulation() {
	positions := c.rt.Positions()
	ids := make([]population.ObjectID, len(positions))
	for i, p := range positions {
		ids[i] = p.ID
	}
	c.pop.ResetAll(c.rt.Remove, ids)
	c.log.Info("population reset", "removed", len(ids))
}

// Values returns a copy of the current parameter values.
func (c *Controller) Values() param.Values {
	return c.params.Values()
}

// Population returns the population manager (read access for the host).
func (c *Controller) Population() *population.Manager {
	return c.pop
}

// seconds converts a parameter in seconds to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
