// Package config centralizes tunable simulation parameters and their
// environment overrides.
package config

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	envconfig "github.com/tomz197/simtuner/internal/config"
	"github.com/tomz197/simtuner/internal/controller"
	"github.com/tomz197/simtuner/internal/engine"
	"github.com/tomz197/simtuner/internal/physics"
)

// Side view window in world meters.
const (
	ViewMinX = -10.0
	ViewMaxX = 10.0
	ViewMinY = -2.0
	ViewMaxY = 9.0
)

// Overlay layout
const (
	MaxTermWidth  = 160 // Render area is clamped and centered beyond this
	MaxTermHeight = 50
	PanelWidth    = 34 // Width of the slider and stats panels
)

// Slider input
const (
	NudgeDivisions = 20 // Left/Right move a float slider by 1/20 of its range
	JumpDivisions  = 9  // Digit k jumps a slider to k/9 of its range
)

// Client rendering
const (
	ClientTargetFPS       = 30
	ClientTargetFrameTime = time.Second / ClientTargetFPS
)

// Host channels
const (
	CommandBuffer  = 256
	RegisterBuffer = 16
	EventBuffer    = 16
)

// Shutdown
const (
	ShutdownTimeout        = 15 * time.Second
	ShutdownDisplaySeconds = 5.0 // Seconds to show the shutdown notice before disconnecting
)

// Settings is everything the host needs at startup.
type Settings struct {
	Controller controller.Config
	World      physics.Config
	DisplayHz  int
}

// Defaults returns the stock settings.
func Defaults() Settings {
	return Settings{
		Controller: controller.DefaultConfig(),
		World:      physics.DefaultConfig(),
		DisplayHz:  engine.DefaultDisplayHz,
	}
}

// Load returns the stock settings with TUNER_* environment overrides applied.
// Out-of-range parameter values are clamped when the controller is built.
func Load() Settings {
	s := Defaults()
	v := &s.Controller.Initial

	v.FrameRateCap = envconfig.GetEnvInt("TUNER_TARGET_FPS", v.FrameRateCap)
	v.FixedStep = envconfig.GetEnvFloat("TUNER_FIXED_STEP", v.FixedStep)
	v.TimeScale = envconfig.GetEnvFloat("TUNER_TIME_SCALE", v.TimeScale)
	v.CaptureStep = envconfig.GetEnvFloat("TUNER_CAPTURE_STEP", v.CaptureStep)
	v.SyncCount = envconfig.GetEnvInt("TUNER_SYNC_COUNT", v.SyncCount)
	v.Interpolation = envconfig.GetEnvInt("TUNER_INTERPOLATION", v.Interpolation)
	v.QualityTier = envconfig.GetEnvInt("TUNER_QUALITY", v.QualityTier)
	v.PopulationTarget = envconfig.GetEnvInt("TUNER_BALLS", v.PopulationTarget)
	v.FixedPad = envconfig.GetEnvFloat("TUNER_FIXED_PAD", v.FixedPad)
	v.FramePad = envconfig.GetEnvFloat("TUNER_FRAME_PAD", v.FramePad)

	s.Controller.BaseHeight = envconfig.GetEnvFloat("TUNER_BASE_HEIGHT", s.Controller.BaseHeight)
	s.Controller.AdmissionInterval = envconfig.GetEnvDuration("TUNER_ADMISSION_INTERVAL", s.Controller.AdmissionInterval)
	s.Controller.Seed = int64(envconfig.GetEnvInt("TUNER_SEED", int(s.Controller.Seed)))

	s.World.Capacity = envconfig.GetEnvInt("TUNER_CAPACITY", s.World.Capacity)
	s.World.Iterations = physics.IterationsForTier(v.QualityTier)
	s.DisplayHz = envconfig.GetEnvInt("TUNER_DISPLAY_HZ", s.DisplayHz)
	return s
}

// NewLogger builds the process logger writing to w at LOG_LEVEL (default
// info). An unknown level falls back to info.
func NewLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	level, err := log.ParseLevel(envconfig.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
