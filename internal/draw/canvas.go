package draw

import (
	"io"
	"math"
	"strconv"
	"strings"
)

// noCell marks a cell whose terminal content is unknown.
const noCell rune = -1

// Canvas is a drawing buffer with 2x vertical resolution using half-block characters.
// Supports scaling from logical coordinates to actual terminal pixels.
type Canvas struct {
	termWidth      int    // Actual terminal columns
	termHeight     int    // Actual terminal rows
	subPixelHeight int    // termHeight * 2
	pixels         []bool // Flat slice: [y * termWidth + x] - true if pixel is set
	shown          []rune // Cell content last written to the terminal

	// Scaling from logical to pixel coordinates
	logicalWidth  float64
	logicalHeight float64
	scaleX        float64 // termWidth / logicalWidth
	scaleY        float64 // (termHeight*2) / logicalHeight

	// 0-based terminal offsets of the canvas' top-left cell.
	offsetCol int
	offsetRow int

	renderBuf strings.Builder
	numBuf    [20]byte
}

// NewScaledCanvas creates a canvas that scales from logical coordinates to terminal pixels.
// logicalWidth/Height define the coordinate space used by callers, with Y growing down.
func NewScaledCanvas(termWidth, termHeight int, logicalWidth, logicalHeight float64) *Canvas {
	c := &Canvas{logicalWidth: logicalWidth, logicalHeight: logicalHeight}
	c.Resize(termWidth, termHeight)
	return c
}

// Resize updates the canvas for new terminal dimensions while keeping logical size.
// A size change forces a full redraw.
func (c *Canvas) Resize(termWidth, termHeight int) {
	termWidth = max(termWidth, 0)
	termHeight = max(termHeight, 0)
	if termWidth != c.termWidth || termHeight != c.termHeight || c.shown == nil {
		c.termWidth = termWidth
		c.termHeight = termHeight
		c.subPixelHeight = termHeight * 2
		c.pixels = make([]bool, c.subPixelHeight*termWidth)
		c.shown = make([]rune, termHeight*termWidth)
		c.ForceRedraw()
	}
	c.scaleX = float64(termWidth) / c.logicalWidth
	c.scaleY = float64(c.subPixelHeight) / c.logicalHeight
}

// ForceRedraw makes the next Render write every cell.
func (c *Canvas) ForceRedraw() {
	for i := range c.shown {
		c.shown[i] = noCell
	}
}

// SetOffset sets the column and row offset of the canvas. A change forces a
// full redraw.
func (c *Canvas) SetOffset(col, row int) {
	if col != c.offsetCol || row != c.offsetRow {
		c.ForceRedraw()
	}
	c.offsetCol = col
	c.offsetRow = row
}

// OffsetCol returns the column offset.
func (c *Canvas) OffsetCol() int {
	return c.offsetCol
}

// OffsetRow returns the row offset.
func (c *Canvas) OffsetRow() int {
	return c.offsetRow
}

// Clear resets all pixels in the canvas.
func (c *Canvas) Clear() {
	clear(c.pixels)
}

// setPixel sets a pixel at actual terminal coordinates (no scaling).
func (c *Canvas) setPixel(x, y int) {
	if x >= 0 && x < c.termWidth && y >= 0 && y < c.subPixelHeight {
		c.pixels[y*c.termWidth+x] = true
	}
}

// Pixel reports whether the pixel at terminal coordinates is set.
func (c *Canvas) Pixel(x, y int) bool {
	if x < 0 || x >= c.termWidth || y < 0 || y >= c.subPixelHeight {
		return false
	}
	return c.pixels[y*c.termWidth+x]
}

// SetFloat sets a pixel using float logical coordinates (applies scaling).
func (c *Canvas) SetFloat(x, y float64) {
	c.setPixel(int(math.Round(x*c.scaleX)), int(math.Round(y*c.scaleY)))
}

// DrawLine draws a line on the canvas using Bresenham's algorithm.
// Coordinates are in logical space and get scaled to pixels.
func (c *Canvas) DrawLine(p1, p2 Point) {
	x1 := int(math.Round(p1.X * c.scaleX))
	y1 := int(math.Round(p1.Y * c.scaleY))
	x2 := int(math.Round(p2.X * c.scaleX))
	y2 := int(math.Round(p2.Y * c.scaleY))

	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		c.setPixel(x1, y1)

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// DrawDashed draws a horizontal dashed line at logical height y.
func (c *Canvas) DrawDashed(x1, x2, y float64) {
	py := int(math.Round(y * c.scaleY))
	from := int(math.Round(min(x1, x2) * c.scaleX))
	to := int(math.Round(max(x1, x2) * c.scaleX))
	for x := from; x <= to; x++ {
		if x%4 < 2 {
			c.setPixel(x, py)
		}
	}
}

// FillCircle fills a circle given in logical coordinates. At least one pixel
// is always set so small circles stay visible.
func (c *Canvas) FillCircle(cx, cy, r float64) {
	px := cx * c.scaleX
	py := cy * c.scaleY
	rx := r * c.scaleX
	ry := r * c.scaleY

	c.setPixel(int(math.Round(px)), int(math.Round(py)))
	if rx <= 0 || ry <= 0 {
		return
	}
	for y := int(math.Floor(py - ry)); y <= int(math.Ceil(py+ry)); y++ {
		for x := int(math.Floor(px - rx)); x <= int(math.Ceil(px+rx)); x++ {
			dx := (float64(x) - px) / rx
			dy := (float64(y) - py) / ry
			if dx*dx+dy*dy <= 1 {
				c.setPixel(x, y)
			}
		}
	}
}

// maxChunkSize is the maximum bytes to write at once for smooth SSH transmission.
const maxChunkSize = 1400

// cell returns the half-block character for a terminal cell.
func (c *Canvas) cell(col, row int) rune {
	top := c.pixels[row*2*c.termWidth+col]
	bottom := c.pixels[(row*2+1)*c.termWidth+col]
	switch {
	case top && bottom:
		return BlockFull
	case top:
		return BlockUpperHalf
	case bottom:
		return BlockLowerHalf
	default:
		return BlockEmpty
	}
}

// Render writes the cells that changed since the previous Render.
func (c *Canvas) Render(w io.Writer) {
	c.renderBuf.Reset()

	for row := 0; row < c.termHeight; row++ {
		cursorCol := -1 // Column the terminal cursor sits at, -1 if unknown
		for col := 0; col < c.termWidth; col++ {
			i := row*c.termWidth + col
			ch := c.cell(col, row)
			if ch == c.shown[i] {
				continue
			}
			c.shown[i] = ch
			if cursorCol != col {
				c.moveCursor(col+1+c.offsetCol, row+1+c.offsetRow)
			}
			c.renderBuf.WriteRune(ch)
			cursorCol = col + 1
		}
	}

	data := c.renderBuf.String()
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxChunkSize {
			chunk = data[:maxChunkSize]
		}
		io.WriteString(w, chunk)
		data = data[len(chunk):]
	}
}

func (c *Canvas) moveCursor(col, row int) {
	c.renderBuf.WriteString("\033[")
	c.renderBuf.Write(strconv.AppendInt(c.numBuf[:0], int64(row), 10))
	c.renderBuf.WriteByte(';')
	c.renderBuf.Write(strconv.AppendInt(c.numBuf[:0], int64(col), 10))
	c.renderBuf.WriteByte('H')
}

// LogicalWidth returns the logical width.
func (c *Canvas) LogicalWidth() float64 {
	return c.logicalWidth
}

// LogicalHeight returns the logical height.
func (c *Canvas) LogicalHeight() float64 {
	return c.logicalHeight
}

// TerminalWidth returns the actual terminal column count.
func (c *Canvas) TerminalWidth() int {
	return c.termWidth
}

// TerminalHeight returns the actual terminal row count.
func (c *Canvas) TerminalHeight() int {
	return c.termHeight
}

// LogicalToTerminal converts logical coordinates to a 1-based terminal
// position (col, row) relative to the canvas.
func (c *Canvas) LogicalToTerminal(x, y float64) (col, row int) {
	px := int(math.Round(x * c.scaleX))
	py := int(math.Round(y * c.scaleY))
	return px + 1, py/2 + 1
}
