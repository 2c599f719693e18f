package controller

import (
	"time"

	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/population"
)

// rateWindow counts frame and fixed ticks and publishes per-window totals.
type rateWindow struct {
	span      time.Duration
	start     time.Duration
	frames    int
	fixed     int
	frameRate int // Frames counted in the last complete window
	fixedRate int // Fixed ticks counted in the last complete window
}

func (w *rateWindow) frame(now time.Duration) {
	w.frames++
	if now-w.start > w.span {
		w.start = now
		w.frameRate = w.frames
		w.fixedRate = w.fixed
		w.frames = 0
		w.fixed = 0
	}
}

func (w *rateWindow) reset(now time.Duration) {
	w.start = now
	w.frames = 0
	w.fixed = 0
}

// Row is one parameter as shown on the overlay.
type Row struct {
	ID       param.ID
	Label    string
	Key      byte
	Text     string
	Value    float64
	Min      float64
	Max      float64
	Fraction float64 // Slider position, 0..1
	Integer  bool
}

// Snapshot is a read-only copy of controller state.
type Snapshot struct {
	Values     param.Values
	Rows       []Row
	FrameRate  int // Frames in the last rate window
	FixedRate  int // Fixed ticks in the last rate window
	Live       int
	Target     int
	Population population.Stats
	Applied    int // Settings pushes since start
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	all := c.params.All()
	rows := make([]Row, len(all))
	for i, p := range all {
		lo, hi := p.Bounds()
		rows[i] = Row{
			ID:       p.ID(),
			Label:    p.Label(),
			Key:      p.Key(),
			Text:     p.Text(),
			Value:    p.Float(),
			Min:      lo,
			Max:      hi,
			Fraction: p.Fraction(),
			Integer:  p.Integral(),
		}
	}
	return Snapshot{
		Values:     c.params.Values(),
		Rows:       rows,
		FrameRate:  c.window.frameRate,
		FixedRate:  c.window.fixedRate,
		Live:       c.pop.Live(),
		Target:     c.pop.Target(),
		Population: c.pop.Stats(),
		Applied:    c.applied,
	}
}

// Row returns the row for id.
func (s Snapshot) Row(id param.ID) (Row, bool) {
	for _, r := range s.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}
