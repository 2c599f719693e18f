// Package client renders the tuning overlay for one operator and forwards
// their key presses to the shared host.
package client

import (
	"bufio"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/tomz197/simtuner/internal/draw"
	"github.com/tomz197/simtuner/internal/input"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/sim/host"
)

// Client handles rendering and input for a single connection.
type Client struct {
	host         host.SimHost
	handle       *host.OperatorHandle
	canvas       *draw.Canvas
	chunkWriter  *draw.ChunkWriter
	writer       io.Writer
	inputStream  *input.Stream
	termSizeFunc draw.TermSizeFunc
	styles       styles
	log          *log.Logger

	selector      selector
	running       bool
	shuttingDown  bool
	shutdownTimer float64 // Seconds left before disconnecting after a shutdown notice
	layout        layout
}

// ClientOptions configures the client.
type ClientOptions struct {
	TermSizeFunc draw.TermSizeFunc
	Username     string
	Renderer     *lipgloss.Renderer // Defaults to an ANSI renderer on the output
	Logger       *log.Logger
}

// NewClient creates a client registered with the given host.
func NewClient(h host.SimHost, r *bufio.Reader, w io.Writer, opts ClientOptions) *Client {
	termSizeFunc := opts.TermSizeFunc
	if termSizeFunc == nil {
		termSizeFunc = draw.DefaultTermSizeFunc
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = lipgloss.NewRenderer(w)
		renderer.SetColorProfile(termenv.ANSI)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	termWidth, termHeight, _ := termSizeFunc()
	l := computeLayout(termWidth, termHeight)
	canvas := draw.NewScaledCanvas(l.canvasWidth, l.height,
		config.ViewMaxX-config.ViewMinX, config.ViewMaxY-config.ViewMinY)
	canvas.SetOffset(l.offsetCol+l.canvasCol-1, l.offsetRow)

	return &Client{
		host:         h,
		handle:       h.RegisterOperator(opts.Username),
		canvas:       canvas,
		chunkWriter:  draw.NewChunkWriter(w, l.offsetCol, l.offsetRow),
		writer:       w,
		inputStream:  input.StartStream(r),
		termSizeFunc: termSizeFunc,
		styles:       newStyles(renderer),
		log:          logger,
		running:      true,
		layout:       l,
	}
}

// Run starts the client loop. Blocks until the operator quits or the host
// shuts down.
func (c *Client) Run() error {
	draw.HideCursor(c.writer)
	defer draw.ShowCursor(c.writer)
	draw.ClearScreen(c.writer)

	lastTime := time.Now()

	for c.running {
		frameStart := time.Now()
		delta := frameStart.Sub(lastTime)
		lastTime = frameStart

		c.processInput()
		c.processHostEvents()
		c.updateScreen()

		if c.shuttingDown {
			c.shutdownTimer -= delta.Seconds()
			if c.shutdownTimer <= 0 {
				c.running = false
			}
		}

		if err := c.drawFrame(); err != nil {
			c.host.UnregisterOperator(c.handle.ID)
			return err
		}

		elapsed := time.Since(frameStart)
		if elapsed < config.ClientTargetFrameTime {
			time.Sleep(config.ClientTargetFrameTime - elapsed)
		}
	}

	c.host.UnregisterOperator(c.handle.ID)
	draw.ClearScreen(c.writer)
	return nil
}

// processInput reads input and sends the resulting commands to the host.
func (c *Client) processInput() {
	in := input.ReadInput(c.inputStream)
	if in.Quit {
		c.running = false
		return
	}
	if c.shuttingDown {
		return
	}

	snap := c.host.GetSnapshot()
	for _, cmd := range c.selector.commands(in, snap.Controller.Rows) {
		if !c.host.Send(cmd) {
			c.log.Warn("command dropped", "operator", c.handle.ID, "kind", cmd.Kind)
		}
	}
}

// processHostEvents handles events from the host.
func (c *Client) processHostEvents() {
	for {
		select {
		case event, ok := <-c.handle.Events:
			if !ok {
				c.running = false
				return
			}
			if event.Type == host.EventShutdown && !c.shuttingDown {
				c.shuttingDown = true
				c.shutdownTimer = config.ShutdownDisplaySeconds
			}
		default:
			return
		}
	}
}

// updateScreen handles terminal resize.
func (c *Client) updateScreen() {
	termWidth, termHeight, err := c.termSizeFunc()
	if err != nil {
		return
	}
	l := computeLayout(termWidth, termHeight)
	if l == c.layout {
		return
	}
	c.layout = l
	c.chunkWriter.WriteString("\033[H\033[2J")
	c.canvas.Resize(l.canvasWidth, l.height)
	c.canvas.SetOffset(l.offsetCol+l.canvasCol-1, l.offsetRow)
	c.canvas.ForceRedraw()
	c.chunkWriter.SetOffset(l.offsetCol, l.offsetRow)
}

// layout places the panels and the side view inside the terminal.
type layout struct {
	width, height        int // Render area, clamped to the max resolution
	offsetCol, offsetRow int // Centering offset of the render area
	canvasCol            int // 1-based first column of the side view
	canvasWidth          int
	statsCol             int // 1-based first column of the stats panel
}

// computeLayout clamps the terminal to the max render resolution and splits
// it into the parameter panel, the side view and the stats panel.
func computeLayout(termWidth, termHeight int) layout {
	l := layout{
		width:  min(termWidth, config.MaxTermWidth),
		height: min(termHeight, config.MaxTermHeight),
	}
	l.offsetCol = (termWidth - l.width) / 2
	l.offsetRow = (termHeight - l.height) / 2
	l.canvasCol = config.PanelWidth + 1
	l.canvasWidth = max(l.width-2*config.PanelWidth, 0)
	l.statsCol = l.canvasCol + l.canvasWidth
	return l
}
