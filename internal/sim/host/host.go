// Package host runs the shared simulation. One goroutine owns the scheduler,
// the physics world and the controller; operators talk to it through
// channels and read immutable snapshots.
package host

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/simtuner/internal/controller"
	"github.com/tomz197/simtuner/internal/engine"
	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/physics"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/timeutil"
)

// SimHost is the interface operator clients use to reach the host.
type SimHost interface {
	RegisterOperator(name string) *OperatorHandle
	UnregisterOperator(id int)
	Send(cmd Command) bool
	GetSnapshot() *Snapshot
}

var _ SimHost = (*Host)(nil)

// CommandKind identifies an operator request.
type CommandKind int

const (
	CmdPress CommandKind = iota // Step a parameter to its next table value
	CmdReset                    // Remove every ball
	CmdSlide                    // Set a parameter directly
)

// Command is an operator request, applied on the next frame.
type Command struct {
	Kind  CommandKind
	Param param.ID
	Value float64 // CmdSlide only
}

// EventType identifies a host-to-operator event.
type EventType int

const (
	EventShutdown EventType = iota
)

// Event is sent from the host to an operator.
type Event struct {
	Type EventType
}

// OperatorHandle represents one connected operator.
type OperatorHandle struct {
	ID     int
	Name   string
	Events chan Event // Closed when the operator is unregistered
}

// Snapshot is an immutable view of the simulation for rendering.
type Snapshot struct {
	Controller controller.Snapshot
	Bodies     []physics.BodyView
	Time       engine.Time
	Engine     engine.Settings
	DisplayHz  int
	Operators  int
	Iterations int     // Contact solver passes
	GroundHalf float64 // Ground plane half extent
	Floor      float64 // Cull elevation
	Dropped    uint64  // Commands dropped because the queue was full
}

// Options carries optional collaborators.
type Options struct {
	Clock  timeutil.Clock
	Logger *log.Logger
	Rand   *rand.Rand
}

// Host owns the simulation state.
type Host struct {
	sched *engine.Scheduler
	world *physics.World
	ctrl  *controller.Controller
	log   *log.Logger
	floor float64

	snapshot atomic.Pointer[Snapshot]
	dropped  atomic.Uint64

	operators    map[int]*OperatorHandle
	nextID       int
	commands     chan Command
	registerCh   chan *OperatorHandle
	unregisterCh chan int
	mu           sync.RWMutex
}

// hostSink forwards engine settings to the scheduler and maps the quality
// tier to physics solver passes.
type hostSink struct {
	*engine.Scheduler
	world *physics.World
}

func (s hostSink) SetQualityTier(tier int) {
	s.Scheduler.SetQualityTier(tier)
	s.world.SetIterations(physics.IterationsForTier(tier))
}

var _ controller.EngineSink = hostSink{}

// New builds a host and pushes the initial settings.
func New(settings config.Settings, opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	h := &Host{
		world:        physics.NewWorld(settings.World),
		log:          logger,
		floor:        settings.Controller.Floor,
		operators:    make(map[int]*OperatorHandle),
		nextID:       1,
		commands:     make(chan Command, config.CommandBuffer),
		registerCh:   make(chan *OperatorHandle, config.RegisterBuffer),
		unregisterCh: make(chan int, config.RegisterBuffer),
	}
	h.sched = engine.New(engine.Hooks{
		FixedUpdate: h.fixedUpdate,
		Update:      h.update,
	}, engine.Options{
		Clock:     opts.Clock,
		Logger:    logger.WithPrefix("engine"),
		DisplayHz: settings.DisplayHz,
	})
	h.ctrl = controller.New(settings.Controller, hostSink{Scheduler: h.sched, world: h.world}, h.world, controller.Options{
		Clock:  opts.Clock,
		Logger: logger.WithPrefix("controller"),
		Rand:   opts.Rand,
	})
	h.publish(h.sched.Time())
	return h
}

// Run drives the simulation until ctx is cancelled.
func (h *Host) Run(ctx context.Context) {
	h.log.Info("simulation started", "display_hz", h.sched.DisplayHz())
	h.sched.Run(ctx)
	h.log.Info("simulation stopped", "frames", h.sched.Time().Frame)
}

// Frame runs a single frame. Only for use when Run is not running.
func (h *Host) Frame() {
	h.sched.Frame()
}

// Shutdown notifies every operator and waits for them to leave, up to
// timeout. The caller cancels the Run context afterwards.
func (h *Host) Shutdown(timeout time.Duration) {
	h.mu.RLock()
	for _, op := range h.operators {
		select {
		case op.Events <- Event{Type: EventShutdown}:
		default:
		}
	}
	h.mu.RUnlock()

	deadline := time.After(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return
		case <-ticker.C:
			h.mu.RLock()
			remaining := len(h.operators)
			h.mu.RUnlock()
			if remaining == 0 {
				return
			}
		}
	}
}

// RegisterOperator registers an operator. It becomes visible on the next frame.
func (h *Host) RegisterOperator(name string) *OperatorHandle {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.mu.Unlock()

	op := &OperatorHandle{
		ID:     id,
		Name:   name,
		Events: make(chan Event, config.EventBuffer),
	}
	h.registerCh <- op
	return op
}

// UnregisterOperator removes an operator on the next frame.
func (h *Host) UnregisterOperator(id int) {
	h.unregisterCh <- id
}

// Send queues a command. Reports false if the queue was full and the
// command was dropped.
func (h *Host) Send(cmd Command) bool {
	select {
	case h.commands <- cmd:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// GetSnapshot returns the latest snapshot.
func (h *Host) GetSnapshot() *Snapshot {
	return h.snapshot.Load()
}

func (h *Host) fixedUpdate(t engine.Time) {
	h.ctrl.FixedTick(t.Fixed)
	h.world.Step(t.FixedDelta.Seconds())
}

func (h *Host) update(t engine.Time) {
	h.processRegistrations()
	h.collectCommands()
	h.ctrl.FrameTick(t.Unscaled)
	h.publish(t)
}

// processRegistrations handles pending registrations and unregistrations.
func (h *Host) processRegistrations() {
	for {
		select {
		case op := <-h.registerCh:
			h.mu.Lock()
			h.operators[op.ID] = op
			n := len(h.operators)
			h.mu.Unlock()
			h.log.Info("operator joined", "id", op.ID, "name", op.Name, "operators", n)
		case id := <-h.unregisterCh:
			h.mu.Lock()
			if op, ok := h.operators[id]; ok {
				close(op.Events)
				delete(h.operators, id)
				h.log.Info("operator left", "id", id, "name", op.Name, "operators", len(h.operators))
			}
			h.mu.Unlock()
		default:
			return
		}
	}
}

// collectCommands hands pending commands to the controller.
func (h *Host) collectCommands() {
	for {
		select {
		case cmd := <-h.commands:
			switch cmd.Kind {
			case CmdPress:
				h.ctrl.Press(cmd.Param)
			case CmdReset:
				h.ctrl.ResetPopulation()
			case CmdSlide:
				h.ctrl.Slide(cmd.Param, cmd.Value)
			}
		default:
			return
		}
	}
}

// publish stores a new snapshot for readers.
func (h *Host) publish(t engine.Time) {
	h.mu.RLock()
	operators := len(h.operators)
	h.mu.RUnlock()

	h.snapshot.Store(&Snapshot{
		Controller: h.ctrl.Snapshot(),
		Bodies:     h.world.View(t.Alpha, t.FixedDelta.Seconds()),
		Time:       t,
		Engine:     h.sched.Settings(),
		DisplayHz:  h.sched.DisplayHz(),
		Operators:  operators,
		Iterations: h.world.Iterations(),
		GroundHalf: h.world.Config().GroundHalf,
		Floor:      h.floor,
		Dropped:    h.dropped.Load(),
	})
}
