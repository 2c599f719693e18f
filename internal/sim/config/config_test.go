package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/tomz197/simtuner/internal/param"
)

func TestLoadDefaults(t *testing.T) {
	s := Load()
	if diff := cmp.Diff(Defaults(), s); diff != "" {
		t.Fatalf("Load() without env differs from Defaults() (-want +got):\n%s", diff)
	}
	assert.Equal(t, param.Defaults(), s.Controller.Initial)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TUNER_TARGET_FPS", "120")
	t.Setenv("TUNER_FIXED_STEP", "0.01")
	t.Setenv("TUNER_TIME_SCALE", "0.5")
	t.Setenv("TUNER_INTERPOLATION", "2")
	t.Setenv("TUNER_QUALITY", "5")
	t.Setenv("TUNER_BALLS", "40")
	t.Setenv("TUNER_FRAME_PAD", "0.01")
	t.Setenv("TUNER_ADMISSION_INTERVAL", "100ms")
	t.Setenv("TUNER_SEED", "42")
	t.Setenv("TUNER_CAPACITY", "64")
	t.Setenv("TUNER_DISPLAY_HZ", "144")
	t.Setenv("TUNER_SYNC_COUNT", "not-a-number")

	s := Load()
	v := s.Controller.Initial
	assert.Equal(t, 120, v.FrameRateCap)
	assert.Equal(t, 0.01, v.FixedStep)
	assert.Equal(t, 0.5, v.TimeScale)
	assert.Equal(t, param.InterpolateExtrapolate, v.Interpolation)
	assert.Equal(t, 5, v.QualityTier)
	assert.Equal(t, 40, v.PopulationTarget)
	assert.Equal(t, 0.01, v.FramePad)
	assert.Equal(t, 0, v.SyncCount, "malformed value falls back")
	assert.Equal(t, 100*time.Millisecond, s.Controller.AdmissionInterval)
	assert.Equal(t, int64(42), s.Controller.Seed)
	assert.Equal(t, 64, s.World.Capacity)
	assert.Equal(t, 6, s.World.Iterations, "solver passes follow the quality tier")
	assert.Equal(t, 144, s.DisplayHz)
}

func TestNewLoggerLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	t.Setenv("LOG_LEVEL", "bogus")
	assert.Equal(t, log.InfoLevel, NewLogger(&buf).GetLevel())
}
