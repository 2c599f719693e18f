// Package param describes the runtime-tunable simulation parameters.
package param

import (
	"fmt"
	"math"

	"github.com/tomz197/simtuner/internal/step"
)

// ID identifies a tunable parameter.
type ID int

const (
	FrameRateCap     ID = iota // Frames per second, -1 = uncapped
	FixedStep                  // Fixed step duration in seconds
	TimeScale                  // Game time multiplier
	CaptureStep                // Fixed frame delta in seconds, 0 = real time
	SyncCount                  // Display refreshes per frame, 0 = off
	Interpolation              // Body interpolation mode
	QualityTier                // Engine quality level
	FixedPad                   // Synthetic load per fixed tick in seconds
	FramePad                   // Synthetic load per frame in seconds
	PopulationTarget           // Desired number of live bodies
	NumIDs
)

var idNames = [NumIDs]string{
	FrameRateCap:     "frame_rate_cap",
	FixedStep:        "fixed_step",
	TimeScale:        "time_scale",
	CaptureStep:      "capture_step",
	SyncCount:        "sync_count",
	Interpolation:    "interpolation",
	QualityTier:      "quality_tier",
	FixedPad:         "fixed_pad",
	FramePad:         "frame_pad",
	PopulationTarget: "population_target",
}

// String returns the snake_case name used in logs and metrics.
func (id ID) String() string {
	if id < 0 || id >= NumIDs {
		return fmt.Sprintf("param(%d)", int(id))
	}
	return idNames[id]
}

// Number is the set of value types a parameter can hold.
type Number interface {
	~int | ~float64
}

// Parameter is a single tunable value with a range and a step table.
// The value always lies within [min, max].
type Parameter[T Number] struct {
	id        ID
	label     string // Overlay label, key letter in brackets
	key       byte   // Lower-case trigger key
	min, max  T
	steps     step.Table[T]
	value     T
	fromFloat func(float64) T
	format    func(T) string
	integral  bool
}

func newParameter[T Number](id ID, label string, key byte, min, max T, steps step.Table[T], initial T) *Parameter[T] {
	if min > max {
		panic(fmt.Sprintf("param %s: range [%v,%v] is inverted", id, min, max))
	}
	for _, v := range steps.Values() {
		if v < min || v > max {
			panic(fmt.Sprintf("param %s: step %v outside range [%v,%v]", id, v, min, max))
		}
	}
	p := &Parameter[T]{
		id:    id,
		label: label,
		key:   key,
		min:   min,
		max:   max,
		steps: steps,
	}
	p.value = p.clamp(initial)
	return p
}

// NewInt creates an integer parameter. Slider input is rounded half to even.
// Panics if the range is inverted or a step lies outside it.
func NewInt(id ID, label string, key byte, min, max int, steps step.Table[int], initial int) *Parameter[int] {
	p := newParameter(id, label, key, min, max, steps, initial)
	p.fromFloat = func(v float64) int { return int(math.RoundToEven(v)) }
	p.integral = true
	p.format = func(v int) string { return fmt.Sprintf("%d", v) }
	return p
}

// NewFloat creates a floating point parameter.
// Panics if the range is inverted or a step lies outside it.
func NewFloat(id ID, label string, key byte, min, max float64, steps step.Table[float64], initial float64) *Parameter[float64] {
	p := newParameter(id, label, key, min, max, steps, initial)
	p.fromFloat = func(v float64) float64 { return v }
	p.format = func(v float64) string { return fmt.Sprintf("%.2f", v) }
	return p
}

// WithFormat replaces the display formatter.
func (p *Parameter[T]) WithFormat(f func(T) string) *Parameter[T] {
	p.format = f
	return p
}

// Value returns the current value.
func (p *Parameter[T]) Value() T {
	return p.value
}

// Step advances the value to the next entry of its step table.
func (p *Parameter[T]) Step() {
	p.value = p.clamp(p.steps.Next(p.value))
}

// Set clamps v into range and stores it. Reports whether the stored value
// differs from the previous one; the comparison is exact.
func (p *Parameter[T]) Set(v T) bool {
	v = p.clamp(v)
	if v == p.value {
		return false
	}
	p.value = v
	return true
}

// SetFloat is the slider entry point.
func (p *Parameter[T]) SetFloat(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return p.Set(p.fromFloat(v))
}

// Steps returns the step table.
func (p *Parameter[T]) Steps() step.Table[T] {
	return p.steps
}

// ID returns the parameter identifier.
func (p *Parameter[T]) ID() ID { return p.id }

// Label returns the overlay label.
func (p *Parameter[T]) Label() string { return p.label }

// Key returns the trigger key.
func (p *Parameter[T]) Key() byte { return p.key }

// Float returns the value as float64.
func (p *Parameter[T]) Float() float64 { return float64(p.value) }

// Bounds returns the range as float64.
func (p *Parameter[T]) Bounds() (float64, float64) {
	return float64(p.min), float64(p.max)
}

// Fraction returns the position of the value within its range, 0..1.
func (p *Parameter[T]) Fraction() float64 {
	lo, hi := p.Bounds()
	if hi == lo {
		return 0
	}
	return (float64(p.value) - lo) / (hi - lo)
}

// Integral reports whether the parameter only takes whole values.
func (p *Parameter[T]) Integral() bool { return p.integral }

// Text returns the formatted value.
func (p *Parameter[T]) Text() string {
	return p.format(p.value)
}

func (p *Parameter[T]) clamp(v T) T {
	return min(max(v, p.min), p.max)
}

// Tunable is the type-erased view of a Parameter used by code that treats
// all parameters uniformly.
type Tunable interface {
	ID() ID
	Label() string
	Key() byte
	Step()
	SetFloat(v float64) bool
	Float() float64
	Bounds() (min, max float64)
	Fraction() float64
	Integral() bool
	Text() string
}

var (
	_ Tunable = (*Parameter[int])(nil)
	_ Tunable = (*Parameter[float64])(nil)
)
