// Package observability exposes host state as Prometheus metrics.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomz197/simtuner/internal/sim/host"
)

// SnapshotSource returns the latest published host snapshot. It may return nil
// before the host publishes.
type SnapshotSource func() *host.Snapshot

// Collector bundles the tuner metrics. Every value is read from the snapshot
// source at scrape time, so the host goroutine never touches Prometheus.
type Collector struct {
	gatherer prometheus.Gatherer
	source   SnapshotSource

	FrameRate prometheus.GaugeFunc
	FixedRate prometheus.GaugeFunc
	Live      prometheus.GaugeFunc
	Target    prometheus.GaugeFunc
	Operators prometheus.GaugeFunc

	Spawned  prometheus.CounterFunc
	Culled   prometheus.CounterFunc
	Rejected prometheus.CounterFunc
	Applied  prometheus.CounterFunc
	Dropped  prometheus.CounterFunc

	params *paramCollector
}

// NewCollector registers the tuner metrics against reg, defaulting to the
// global registry when nil.
func NewCollector(reg prometheus.Registerer, source SnapshotSource) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer, source: source}

	gauge := func(name, help string, read func(*host.Snapshot) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, c.read(read))
	}
	counter := func(name, help string, read func(*host.Snapshot) float64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, c.read(read))
	}

	c.FrameRate = gauge("tuner_frame_rate", "Frames counted in the last rate window.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.FrameRate) })
	c.FixedRate = gauge("tuner_fixed_rate", "Fixed ticks counted in the last rate window.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.FixedRate) })
	c.Live = gauge("tuner_bodies_live", "Bodies currently in the world.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.Live) })
	c.Target = gauge("tuner_bodies_target", "Population target.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.Target) })
	c.Operators = gauge("tuner_operators", "Connected operators.",
		func(s *host.Snapshot) float64 { return float64(s.Operators) })

	c.Spawned = counter("tuner_bodies_spawned_total", "Bodies admitted by the population manager.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.Population.Admitted) })
	c.Culled = counter("tuner_bodies_culled_total", "Bodies removed below the cull floor.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.Population.Culled) })
	c.Rejected = counter("tuner_spawns_rejected_total", "Spawn requests refused by the world.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.Population.Rejected) })
	c.Applied = counter("tuner_settings_applied_total", "Settings pushes to the engine.",
		func(s *host.Snapshot) float64 { return float64(s.Controller.Applied) })
	c.Dropped = counter("tuner_commands_dropped_total", "Operator commands dropped on a full queue.",
		func(s *host.Snapshot) float64 { return float64(s.Dropped) })

	c.params = &paramCollector{
		desc: prometheus.NewDesc("tuner_parameter_value", "Current value of each tunable parameter.",
			[]string{"param"}, nil),
		source: source,
	}

	for _, m := range []prometheus.Collector{
		c.FrameRate, c.FixedRate, c.Live, c.Target, c.Operators,
		c.Spawned, c.Culled, c.Rejected, c.Applied, c.Dropped,
		c.params,
	} {
		if err := register(reg, m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) read(fn func(*host.Snapshot) float64) func() float64 {
	return func() float64 {
		snap := c.source()
		if snap == nil {
			return 0
		}
		return fn(snap)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve runs a /metrics HTTP server on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	if logger != nil {
		logger.Info("serving metrics", "addr", addr)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// paramCollector emits one gauge sample per parameter row.
type paramCollector struct {
	desc   *prometheus.Desc
	source SnapshotSource
}

func (p *paramCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.desc
}

func (p *paramCollector) Collect(ch chan<- prometheus.Metric) {
	snap := p.source()
	if snap == nil {
		return
	}
	for _, row := range snap.Controller.Rows {
		ch <- prometheus.MustNewConstMetric(p.desc, prometheus.GaugeValue, row.Value, row.ID.String())
	}
}

func register(reg prometheus.Registerer, m prometheus.Collector) error {
	if err := reg.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return fmt.Errorf("collector already registered: %w", err)
		}
		return err
	}
	return nil
}
