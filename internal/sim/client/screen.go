package client

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomz197/simtuner/internal/draw"
	"github.com/tomz197/simtuner/internal/param"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/sim/host"
)

// sliderWidth is the number of cells in a slider bar.
const sliderWidth = config.PanelWidth - 4

// styles holds the overlay text styles.
type styles struct {
	panel    lipgloss.Style
	title    lipgloss.Style
	selected lipgloss.Style
	hint     lipgloss.Style
	notice   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		panel:    r.NewStyle().Width(config.PanelWidth).PaddingLeft(1),
		title:    r.NewStyle().Bold(true),
		selected: r.NewStyle().Reverse(true),
		hint:     r.NewStyle().Faint(true),
		notice:   r.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).Padding(0, 2),
	}
}

// drawFrame draws the current frame.
func (c *Client) drawFrame() error {
	snap := c.host.GetSnapshot()

	c.canvas.Clear()
	c.drawWorld(snap)
	c.canvas.Render(c.chunkWriter)

	c.chunkWriter.WriteBlock(1, 1, c.paramPanel(snap), false)
	if c.layout.canvasWidth > 0 {
		c.chunkWriter.WriteBlock(c.layout.statsCol, 1, c.statsPanel(snap), false)
	}
	if c.shuttingDown {
		c.drawShutdownNotice()
	}

	return c.chunkWriter.Flush()
}

// drawWorld draws the side view: ground plane, cull floor and balls.
func (c *Client) drawWorld(snap *host.Snapshot) {
	toX := func(x float64) float64 { return x - config.ViewMinX }
	toY := func(y float64) float64 { return config.ViewMaxY - y }

	c.canvas.DrawLine(
		draw.Point{X: toX(-snap.GroundHalf), Y: toY(0)},
		draw.Point{X: toX(snap.GroundHalf), Y: toY(0)},
	)
	c.canvas.DrawDashed(0, config.ViewMaxX-config.ViewMinX, toY(snap.Floor))

	for _, b := range snap.Bodies {
		c.canvas.FillCircle(toX(b.Pos.X), toY(b.Pos.Y), b.Radius)
	}
}

// paramPanel renders every parameter as a label, value and slider bar.
func (c *Client) paramPanel(snap *host.Snapshot) string {
	var b strings.Builder
	b.WriteString(c.styles.title.Render("Settings"))
	b.WriteByte('\n')

	for i, row := range snap.Controller.Rows {
		line := fmt.Sprintf("%-22s %8s", row.Label, row.Text)
		bar := sliderBar(row.Fraction)
		if i == c.selector.index {
			line = c.styles.selected.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
		b.WriteString(" " + bar)
		b.WriteByte('\n')
	}
	b.WriteString(c.styles.hint.Render("[R]eset balls"))
	b.WriteByte('\n')
	b.WriteString(c.styles.hint.Render("Up/Down select  Left/Right nudge"))
	b.WriteByte('\n')
	b.WriteString(c.styles.hint.Render("0-9 jump  Esc quit"))

	return c.styles.panel.Render(b.String())
}

// statsPanel renders tick rates, clocks and host state.
func (c *Client) statsPanel(snap *host.Snapshot) string {
	t := snap.Time
	ctl := snap.Controller
	lines := []string{
		c.styles.title.Render("Stats"),
		fmt.Sprintf("FPS: %d", ctl.FrameRate),
		fmt.Sprintf("FFPS: %d", ctl.FixedRate),
		fmt.Sprintf("realT: %.2f", t.Real.Seconds()),
		fmt.Sprintf("unscaledT: %.2f", t.Unscaled.Seconds()),
		fmt.Sprintf("fixedT: %.2f", t.Fixed.Seconds()),
		fmt.Sprintf("gameT: %.2f", t.Game.Seconds()),
		fmt.Sprintf("Refresh: %dHz", snap.DisplayHz),
		"",
		fmt.Sprintf("Balls: %d / %d", ctl.Live, ctl.Target),
		fmt.Sprintf("Spawned: %d  Culled: %d", ctl.Population.Admitted, ctl.Population.Culled),
		fmt.Sprintf("Solver passes: %d", snap.Iterations),
		fmt.Sprintf("Interpolation: %s", param.InterpolationName(ctl.Values.Interpolation)),
		"",
		fmt.Sprintf("Operators: %d", snap.Operators),
	}
	return c.styles.panel.Render(strings.Join(lines, "\n"))
}

// drawShutdownNotice draws the shutdown countdown over the side view.
func (c *Client) drawShutdownNotice() {
	remaining := int(math.Ceil(c.shutdownTimer))
	box := c.styles.notice.Render(fmt.Sprintf("Host shutting down\nDisconnecting in %d seconds...", remaining))
	w := lipgloss.Width(box)
	col := max(c.layout.canvasCol+(c.layout.canvasWidth-w)/2, 1)
	row := max(c.layout.height/2-2, 1)
	c.chunkWriter.WriteBlock(col, row, box, false)
	c.canvas.ForceRedraw()
}

// sliderBar draws a fraction in [0,1] as a bar of sliderWidth cells.
func sliderBar(fraction float64) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(math.Round(fraction * sliderWidth))
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", sliderWidth-filled) + "]"
}
