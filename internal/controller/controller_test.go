package controller

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/population"
	"github.com/tomz197/simtuner/internal/timeutil"
)

// engineState is what fakeSink last received.
type engineState struct {
	FrameRateCap int
	QualityTier  int
	SyncCount    int
	FixedStep    time.Duration
	TimeScale    float64
	CaptureStep  time.Duration
}

type fakeSink struct {
	state engineState
	calls int
}

func (s *fakeSink) SetFrameRateCap(fps int)        { s.state.FrameRateCap = fps; s.calls++ }
func (s *fakeSink) SetQualityTier(tier int)        { s.state.QualityTier = tier; s.calls++ }
func (s *fakeSink) SetSyncCount(n int)             { s.state.SyncCount = n; s.calls++ }
func (s *fakeSink) SetFixedStep(d time.Duration)   { s.state.FixedStep = d; s.calls++ }
func (s *fakeSink) SetTimeScale(scale float64)     { s.state.TimeScale = scale; s.calls++ }
func (s *fakeSink) SetCaptureStep(d time.Duration) { s.state.CaptureStep = d; s.calls++ }

type fakeBody struct {
	elevation float64
	interp    int
}

type fakeRuntime struct {
	bodies   map[population.ObjectID]*fakeBody
	nextID   population.ObjectID
	capacity int
	requests []population.SpawnRequest
}

func newFakeRuntime(capacity int) *fakeRuntime {
	return &fakeRuntime{bodies: map[population.ObjectID]*fakeBody{}, capacity: capacity}
}

func (r *fakeRuntime) Spawn(req population.SpawnRequest) (population.ObjectID, error) {
	if len(r.bodies) >= r.capacity {
		return 0, errors.New("runtime full")
	}
	r.nextID++
	r.bodies[r.nextID] = &fakeBody{elevation: req.Elevation, interp: req.Interpolation}
	r.requests = append(r.requests, req)
	return r.nextID, nil
}

func (r *fakeRuntime) Remove(id population.ObjectID) {
	delete(r.bodies, id)
}

func (r *fakeRuntime) SetInterpolation(id population.ObjectID, mode int) {
	if b, ok := r.bodies[id]; ok {
		b.interp = mode
	}
}

func (r *fakeRuntime) Positions() []population.Position {
	out := make([]population.Position, 0, len(r.bodies))
	for id, b := range r.bodies {
		out = append(out, population.Position{ID: id, Elevation: b.elevation})
	}
	slices.SortFunc(out, func(a, b population.Position) int { return int(a.ID) - int(b.ID) })
	return out
}

type harness struct {
	ctrl  *Controller
	sink  *fakeSink
	rt    *fakeRuntime
	clock *timeutil.MockClock
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		sink:  &fakeSink{},
		rt:    newFakeRuntime(1000),
		clock: timeutil.NewMockClock(time.Unix(0, 0)),
	}
	h.ctrl = New(cfg, h.sink, h.rt, Options{Clock: h.clock, Rand: rand.New(rand.NewSource(7))})
	return h
}

func TestNewPushesInitialSettings(t *testing.T) {
	h := newHarness(t, nil)

	want := engineState{
		FrameRateCap: 60,
		QualityTier:  3,
		SyncCount:    0,
		FixedStep:    20 * time.Millisecond,
		TimeScale:    1,
		CaptureStep:  0,
	}
	if diff := cmp.Diff(want, h.sink.state); diff != "" {
		t.Fatalf("initial engine state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, h.ctrl.Snapshot().Applied)
	assert.Equal(t, 11, h.ctrl.Snapshot().Target)
}

func TestPressIsProcessedOnFrameTick(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Press(param.FrameRateCap)
	assert.Equal(t, 60, h.sink.state.FrameRateCap, "queued until the next frame")

	h.ctrl.FrameTick(10 * time.Millisecond)
	assert.Equal(t, 90, h.sink.state.FrameRateCap)
	assert.Equal(t, 2, h.ctrl.Snapshot().Applied)

	h.ctrl.FrameTick(20 * time.Millisecond)
	assert.Equal(t, 2, h.ctrl.Snapshot().Applied, "no input, no push")
}

func TestEveryApplyPushesFullSet(t *testing.T) {
	h := newHarness(t, nil)
	before := h.sink.calls

	h.ctrl.Press(param.QualityTier)
	h.ctrl.FrameTick(time.Millisecond)

	assert.Equal(t, 6, h.sink.calls-before)
	assert.Equal(t, 4, h.sink.state.QualityTier)
}

func TestDiscreteBeforeContinuous(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Slide(param.TimeScale, 0.5)
	h.ctrl.Press(param.TimeScale)
	h.ctrl.FrameTick(time.Millisecond)

	assert.Equal(t, 0.5, h.sink.state.TimeScale, "slider wins because it is processed last")
}

func TestSlideExactInequality(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Slide(param.TimeScale, 1)
	h.ctrl.FrameTick(time.Millisecond)
	assert.Equal(t, 1, h.ctrl.Snapshot().Applied, "same value does not push")

	h.ctrl.Slide(param.TimeScale, 1.0000001)
	h.ctrl.FrameTick(2 * time.Millisecond)
	assert.Equal(t, 2, h.ctrl.Snapshot().Applied)
	assert.Equal(t, 1.0000001, h.sink.state.TimeScale)
}

func TestSlideIntegerRounds(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Slide(param.PopulationTarget, 42.4)
	h.ctrl.FrameTick(time.Millisecond)
	assert.Equal(t, 42, h.ctrl.Snapshot().Target)
	assert.Equal(t, 42, h.ctrl.Values().PopulationTarget)
}

func TestFixedTickConvergesToTarget(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Initial.PopulationTarget = 5 })

	for i := 1; i <= 5; i++ {
		h.ctrl.FixedTick(time.Duration(i) * 60 * time.Millisecond)
	}
	snap := h.ctrl.Snapshot()
	assert.Equal(t, 5, snap.Live)
	assert.Len(t, h.rt.bodies, 5)
	assert.Equal(t, 5, snap.Population.Admitted)

	for i := 6; i <= 30; i++ {
		h.ctrl.FixedTick(time.Duration(i) * 60 * time.Millisecond)
	}
	assert.Len(t, h.rt.bodies, 5, "never exceeds the target")

	for _, req := range h.rt.requests {
		assert.GreaterOrEqual(t, req.Elevation, 2.5)
		assert.Less(t, req.Elevation, 7.5)
	}
}

func TestFixedTickCullsFallenBodies(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Initial.PopulationTarget = 2 })
	h.ctrl.FixedTick(60 * time.Millisecond)
	h.ctrl.FixedTick(120 * time.Millisecond)
	require.Len(t, h.rt.bodies, 2)

	h.rt.bodies[1].elevation = -1.5
	h.rt.bodies[2].elevation = 0

	h.ctrl.FixedTick(125 * time.Millisecond)
	assert.NotContains(t, h.rt.bodies, population.ObjectID(1))
	assert.Contains(t, h.rt.bodies, population.ObjectID(2))
	assert.Equal(t, 1, h.ctrl.Snapshot().Live)
	assert.Equal(t, 1, h.ctrl.Snapshot().Population.Culled)
}

func TestSpawnRefusalIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	h.rt.capacity = 0

	h.ctrl.FixedTick(time.Second)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, 0, snap.Live)
	assert.Equal(t, 1, snap.Population.Rejected)

	h.rt.capacity = 10
	h.ctrl.FixedTick(time.Second + time.Millisecond)
	assert.Equal(t, 1, h.ctrl.Snapshot().Live, "retried on the next fixed tick")
}

func TestResetPopulation(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 4; i++ {
		h.ctrl.FixedTick(time.Duration(i) * 100 * time.Millisecond)
	}
	require.Len(t, h.rt.bodies, 4)
	applied := h.ctrl.Snapshot().Applied

	require.True(t, h.ctrl.PressKey('R'))
	h.ctrl.FrameTick(time.Second)

	assert.Empty(t, h.rt.bodies)
	assert.Equal(t, 0, h.ctrl.Snapshot().Live)
	assert.Equal(t, applied, h.ctrl.Snapshot().Applied, "reset does not push settings")
}

func TestInterpolationReachesAllBodies(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		h.ctrl.FixedTick(time.Duration(i) * 100 * time.Millisecond)
	}

	h.ctrl.PressKey('i')
	h.ctrl.FrameTick(time.Second)
	for id, b := range h.rt.bodies {
		assert.Equal(t, param.InterpolateLerp, b.interp, "body %d", id)
	}

	h.ctrl.FixedTick(2 * time.Second)
	last := h.rt.requests[len(h.rt.requests)-1]
	assert.Equal(t, param.InterpolateLerp, last.Interpolation, "new bodies get the current mode")
}

func TestProcessingPadsBlock(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Slide(param.FramePad, 0.005)
	h.ctrl.Slide(param.FixedPad, 0.02)
	h.ctrl.FrameTick(time.Millisecond)
	h.ctrl.FixedTick(time.Millisecond)

	assert.Equal(t, []time.Duration{5 * time.Millisecond, 20 * time.Millisecond}, h.clock.Sleeps())
}

func TestNoPadNoSleep(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.FrameTick(time.Millisecond)
	h.ctrl.FixedTick(time.Millisecond)
	assert.Empty(t, h.clock.Sleeps())
}

func TestTickRates(t *testing.T) {
	h := newHarness(t, nil)

	for i := 1; i <= 11; i++ {
		h.ctrl.FixedTick(time.Duration(i) * 100 * time.Millisecond)
		h.ctrl.FixedTick(time.Duration(i) * 100 * time.Millisecond)
		h.ctrl.FrameTick(time.Duration(i) * 100 * time.Millisecond)
	}
	snap := h.ctrl.Snapshot()
	assert.Equal(t, 11, snap.FrameRate)
	assert.Equal(t, 22, snap.FixedRate)
}

func TestApplyRestartsRateWindow(t *testing.T) {
	h := newHarness(t, nil)

	for i := 1; i <= 9; i++ {
		h.ctrl.FrameTick(time.Duration(i) * 100 * time.Millisecond)
	}
	h.ctrl.Press(param.SyncCount)
	h.ctrl.FrameTick(time.Second)
	h.ctrl.FrameTick(1100 * time.Millisecond)
	assert.Equal(t, 0, h.ctrl.Snapshot().FrameRate, "window restarted at 1s")
}

func TestPressKey(t *testing.T) {
	h := newHarness(t, nil)

	assert.True(t, h.ctrl.PressKey('P'))
	assert.True(t, h.ctrl.PressKey('y'))
	assert.False(t, h.ctrl.PressKey('z'))
	h.ctrl.FrameTick(time.Millisecond)

	v := h.ctrl.Values()
	assert.Equal(t, 90, v.FrameRateCap)
	assert.Equal(t, 0.005, v.FramePad)
}

func TestSnapshotRows(t *testing.T) {
	h := newHarness(t, nil)
	snap := h.ctrl.Snapshot()

	require.Len(t, snap.Rows, int(param.NumIDs))
	row, ok := snap.Row(param.PopulationTarget)
	require.True(t, ok)
	assert.Equal(t, "[B]alls", row.Label)
	assert.Equal(t, byte('b'), row.Key)
	assert.Equal(t, "11", row.Text)
	assert.Equal(t, 1.0, row.Min)
	assert.Equal(t, 100.0, row.Max)
}
