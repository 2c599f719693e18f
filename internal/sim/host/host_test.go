package host

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/timeutil"
)

func newTestHost(t *testing.T) (*Host, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	h := New(config.Defaults(), Options{Clock: clock, Rand: rand.New(rand.NewSource(1))})
	return h, clock
}

func step(h *Host, clock *timeutil.MockClock, frames int, d time.Duration) {
	for range frames {
		clock.Advance(d)
		h.Frame()
	}
}

func TestInitialSnapshot(t *testing.T) {
	h, _ := newTestHost(t)

	snap := h.GetSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Controller.Applied)
	assert.Equal(t, 60, snap.Engine.FrameRateCap)
	assert.Equal(t, 20*time.Millisecond, snap.Engine.FixedStep)
	assert.Equal(t, 4, snap.Iterations)
	assert.Equal(t, 60, snap.DisplayHz)
	assert.Empty(t, snap.Bodies)
}

func TestPopulationFillsToTarget(t *testing.T) {
	h, clock := newTestHost(t)

	step(h, clock, 100, 20*time.Millisecond)

	snap := h.GetSnapshot()
	assert.Equal(t, uint64(100), snap.Time.FixedTicks)
	assert.GreaterOrEqual(t, snap.Controller.Population.Admitted, 11)
	assert.LessOrEqual(t, snap.Controller.Live, 11)
	assert.Len(t, snap.Bodies, snap.Controller.Live)
}

func TestCommandsApplyOnNextFrame(t *testing.T) {
	h, clock := newTestHost(t)

	require.True(t, h.Send(Command{Kind: CmdPress, Param: param.FrameRateCap}))
	require.True(t, h.Send(Command{Kind: CmdSlide, Param: param.QualityTier, Value: 5}))
	require.True(t, h.Send(Command{Kind: CmdSlide, Param: param.TimeScale, Value: 0.5}))
	assert.Equal(t, 60, h.GetSnapshot().Engine.FrameRateCap, "not applied before the frame")

	step(h, clock, 1, 10*time.Millisecond)

	snap := h.GetSnapshot()
	assert.Equal(t, 90, snap.Engine.FrameRateCap)
	assert.Equal(t, 5, snap.Engine.QualityTier)
	assert.Equal(t, 6, snap.Iterations, "quality tier drives solver passes")
	assert.Equal(t, 0.5, snap.Engine.TimeScale)
	assert.Equal(t, 2, snap.Controller.Applied, "one push per frame")
}

func TestResetCommand(t *testing.T) {
	h, clock := newTestHost(t)
	step(h, clock, 50, 20*time.Millisecond)
	require.NotEmpty(t, h.GetSnapshot().Bodies)

	h.Send(Command{Kind: CmdReset})
	step(h, clock, 1, time.Millisecond)

	snap := h.GetSnapshot()
	assert.Empty(t, snap.Bodies)
	assert.Equal(t, 0, snap.Controller.Live)
}

func TestOperatorLifecycle(t *testing.T) {
	h, clock := newTestHost(t)

	a := h.RegisterOperator("alice")
	b := h.RegisterOperator("bob")
	assert.NotEqual(t, a.ID, b.ID)

	step(h, clock, 1, time.Millisecond)
	assert.Equal(t, 2, h.GetSnapshot().Operators)

	h.UnregisterOperator(a.ID)
	step(h, clock, 1, time.Millisecond)
	assert.Equal(t, 1, h.GetSnapshot().Operators)

	_, open := <-a.Events
	assert.False(t, open, "events closed on unregister")
}

func TestSendDropsWhenFull(t *testing.T) {
	h, clock := newTestHost(t)

	for range config.CommandBuffer {
		require.True(t, h.Send(Command{Kind: CmdSlide, Param: param.TimeScale, Value: 1}))
	}
	assert.False(t, h.Send(Command{Kind: CmdReset}))

	step(h, clock, 1, time.Millisecond)
	assert.Equal(t, uint64(1), h.GetSnapshot().Dropped)
	assert.True(t, h.Send(Command{Kind: CmdReset}), "queue drained by the frame")
}

func TestShutdownWaitsForOperators(t *testing.T) {
	h, _ := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op := h.RegisterOperator("carol")
	go func() {
		for ev := range op.Events {
			if ev.Type == EventShutdown {
				h.UnregisterOperator(op.ID)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return h.GetSnapshot().Operators == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	h.Shutdown(5 * time.Second)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Eventually(t, func() bool { return h.GetSnapshot().Operators == 0 }, time.Second, time.Millisecond)

	cancel()
	<-done
}
