package param

import (
	"strconv"

	"github.com/tomz197/simtuner/internal/step"
)

// Interpolation modes applied to simulated bodies.
const (
	InterpolateNone = iota
	InterpolateLerp
	InterpolateExtrapolate
)

// InterpolationName returns the overlay name of an interpolation mode.
func InterpolationName(mode int) string {
	switch mode {
	case InterpolateNone:
		return "None"
	case InterpolateLerp:
		return "Interpolate"
	case InterpolateExtrapolate:
		return "Extrapolate"
	default:
		return "Unknown"
	}
}

// Step tables cycled by the trigger keys.
var (
	FrameRateSteps   = step.NewTable(-1, 1, 10, 30, 60, 90, 120)
	FixedStepSteps   = step.NewTable(0.01, 0.02, 0.1, 0.25)
	TimeScaleSteps   = step.NewTable(0, 0.1, 0.2, 0.5, 1, 2, 5)
	CaptureStepSteps = step.NewTable(0, 0.01, 0.02, 0.1, 0.25, 0.5)
	SyncCountSteps   = step.NewTable(0, 1, 2, 3, 4)
	InterpSteps      = step.NewTable(InterpolateNone, InterpolateLerp, InterpolateExtrapolate)
	QualitySteps     = step.NewTable(0, 1, 2, 3, 4, 5)
	PopulationSteps  = step.NewTable(1, 11, 21, 41, 81, 100)
	PadSteps         = step.NewTable(0, 0.005, 0.01, 0.02, 0.05, 0.1)
)

// Population target bounds.
const (
	MinPopulation = 1
	MaxPopulation = 100
)

// Values is a plain copy of every parameter value.
type Values struct {
	FrameRateCap     int
	FixedStep        float64 // seconds
	TimeScale        float64
	CaptureStep      float64 // seconds
	SyncCount        int
	Interpolation    int
	QualityTier      int
	FixedPad         float64 // seconds
	FramePad         float64 // seconds
	PopulationTarget int
}

// Defaults returns the startup values.
func Defaults() Values {
	return Values{
		FrameRateCap:     60,
		FixedStep:        0.02,
		TimeScale:        1,
		CaptureStep:      0,
		SyncCount:        0,
		Interpolation:    InterpolateNone,
		QualityTier:      3,
		FixedPad:         0,
		FramePad:         0,
		PopulationTarget: 11,
	}
}

// Set holds every tunable parameter.
type Set struct {
	FrameRateCap     *Parameter[int]
	FixedStep        *Parameter[float64]
	TimeScale        *Parameter[float64]
	CaptureStep      *Parameter[float64]
	SyncCount        *Parameter[int]
	Interpolation    *Parameter[int]
	QualityTier      *Parameter[int]
	FixedPad         *Parameter[float64]
	FramePad         *Parameter[float64]
	PopulationTarget *Parameter[int]

	byID    [NumIDs]Tunable
	ordered []Tunable // Overlay display order
}

// NewSet builds the parameter set from initial values, clamping each into range.
func NewSet(v Values) *Set {
	s := &Set{
		FrameRateCap:     NewInt(FrameRateCap, "TargetF[P]S", 'p', -1, 120, FrameRateSteps, v.FrameRateCap),
		FixedStep:        NewFloat(FixedStep, "[F]ixed Delta Time", 'f', 0.01, 0.25, FixedStepSteps, v.FixedStep),
		TimeScale:        NewFloat(TimeScale, "Time [S]cale", 's', 0, 5, TimeScaleSteps, v.TimeScale),
		CaptureStep:      NewFloat(CaptureStep, "[C]apture Delta Time", 'c', 0, 0.5, CaptureStepSteps, v.CaptureStep),
		SyncCount:        NewInt(SyncCount, "[V]SyncCount", 'v', 0, 4, SyncCountSteps, v.SyncCount),
		Interpolation:    NewInt(Interpolation, "Body [I]nterpolation", 'i', InterpolateNone, InterpolateExtrapolate, InterpSteps, v.Interpolation),
		QualityTier:      NewInt(QualityTier, "[Q]uality Level", 'q', 0, 5, QualitySteps, v.QualityTier),
		FixedPad:         NewFloat(FixedPad, "FixedProcessing[T]ime", 't', 0, 0.1, PadSteps, v.FixedPad),
		FramePad:         NewFloat(FramePad, "FrameProcessingTime[Y]", 'y', 0, 0.1, PadSteps, v.FramePad),
		PopulationTarget: NewInt(PopulationTarget, "[B]alls", 'b', MinPopulation, MaxPopulation, PopulationSteps, v.PopulationTarget),
	}
	s.Interpolation.WithFormat(InterpolationName)
	s.FixedPad.WithFormat(formatMillis)
	s.FramePad.WithFormat(formatMillis)

	s.ordered = []Tunable{
		s.FrameRateCap,
		s.FixedStep,
		s.TimeScale,
		s.CaptureStep,
		s.SyncCount,
		s.Interpolation,
		s.QualityTier,
		s.PopulationTarget,
		s.FixedPad,
		s.FramePad,
	}
	for _, p := range s.ordered {
		s.byID[p.ID()] = p
	}
	return s
}

func formatMillis(seconds float64) string {
	return strconv.FormatFloat(seconds*1000, 'f', 1, 64) + "ms"
}

// All returns the parameters in display order.
func (s *Set) All() []Tunable {
	return s.ordered
}

// Get returns the parameter with the given ID, or nil.
func (s *Set) Get(id ID) Tunable {
	if id < 0 || id >= NumIDs {
		return nil
	}
	return s.byID[id]
}

// ByKey returns the parameter bound to a trigger key (case-insensitive).
func (s *Set) ByKey(b byte) (Tunable, bool) {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	for _, p := range s.ordered {
		if p.Key() == b {
			return p, true
		}
	}
	return nil, false
}

// Values returns a copy of the current values.
func (s *Set) Values() Values {
	return Values{
		FrameRateCap:     s.FrameRateCap.Value(),
		FixedStep:        s.FixedStep.Value(),
		TimeScale:        s.TimeScale.Value(),
		CaptureStep:      s.CaptureStep.Value(),
		SyncCount:        s.SyncCount.Value(),
		Interpolation:    s.Interpolation.Value(),
		QualityTier:      s.QualityTier.Value(),
		FixedPad:         s.FixedPad.Value(),
		FramePad:         s.FramePad.Value(),
		PopulationTarget: s.PopulationTarget.Value(),
	}
}
