package draw

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(c *Canvas) string {
	var buf bytes.Buffer
	c.Render(&buf)
	return buf.String()
}

func TestRenderHalfBlocks(t *testing.T) {
	c := NewScaledCanvas(4, 2, 4, 4)
	c.SetFloat(0, 0) // top half of cell (1,1)
	c.SetFloat(1, 1) // bottom half of cell (2,1)
	c.SetFloat(2, 2)
	c.SetFloat(2, 3) // both halves of cell (3,2)

	out := render(c)
	assert.Contains(t, out, "\033[1;1H"+string(BlockUpperHalf)+string(BlockLowerHalf))
	assert.Contains(t, out, "\033[2;1H  "+string(BlockFull))
}

func TestRenderOnlyWritesChanges(t *testing.T) {
	c := NewScaledCanvas(4, 2, 4, 4)
	c.SetFloat(1, 0)
	require.NotEmpty(t, render(c))

	c.Clear()
	c.SetFloat(1, 0)
	assert.Empty(t, render(c), "unchanged frame writes nothing")

	c.Clear()
	assert.Equal(t, "\033[1;2H ", render(c), "cleared pixel is blanked")

	c.ForceRedraw()
	assert.Equal(t, 2, strings.Count(render(c), "\033["), "full redraw writes one run per row")
}

func TestRenderAppliesOffset(t *testing.T) {
	c := NewScaledCanvas(2, 1, 2, 2)
	c.SetOffset(10, 5)
	c.SetFloat(0, 0)
	assert.True(t, strings.HasPrefix(render(c), "\033[6;11H"))
}

func TestScaling(t *testing.T) {
	c := NewScaledCanvas(10, 5, 20, 20)
	c.SetFloat(10, 10)
	assert.True(t, c.Pixel(5, 5))

	c.Resize(20, 10)
	assert.False(t, c.Pixel(5, 5), "resize drops pixels")
	c.SetFloat(10, 10)
	assert.True(t, c.Pixel(10, 10))
	assert.Equal(t, 20.0, c.LogicalWidth())
}

func TestFillCircle(t *testing.T) {
	c := NewScaledCanvas(20, 10, 20, 20)
	c.FillCircle(10, 10, 3)

	assert.True(t, c.Pixel(10, 10))
	assert.True(t, c.Pixel(13, 10))
	assert.True(t, c.Pixel(10, 7))
	assert.False(t, c.Pixel(13, 13), "corner of the bounding box is outside")

	tiny := NewScaledCanvas(20, 10, 20, 20)
	tiny.FillCircle(4, 4, 0.01)
	assert.True(t, tiny.Pixel(4, 4), "small circles keep one pixel")
}

func TestDrawLineAndDashed(t *testing.T) {
	c := NewScaledCanvas(10, 5, 10, 10)
	c.DrawLine(Point{0, 2}, Point{9, 2})
	for x := range 10 {
		assert.True(t, c.Pixel(x, 2))
	}

	c.Clear()
	c.DrawDashed(0, 9, 4)
	assert.True(t, c.Pixel(0, 4))
	assert.True(t, c.Pixel(1, 4))
	assert.False(t, c.Pixel(2, 4))
	assert.True(t, c.Pixel(4, 4))
}

func TestPixelOutOfBounds(t *testing.T) {
	c := NewScaledCanvas(2, 1, 2, 2)
	c.SetFloat(-5, 0)
	c.SetFloat(0, 50)
	assert.False(t, c.Pixel(-5, 0))
	assert.Equal(t, "\033[1;1H  ", render(c))
}

func TestChunkWriter(t *testing.T) {
	var out bytes.Buffer
	cw := NewChunkWriter(&out, 2, 1)

	cw.WriteAt(1, 1, "hi")
	n := cw.WriteBlock(5, 3, "a\nb", true)
	assert.Equal(t, 2, n)
	require.NoError(t, cw.Flush())

	assert.Equal(t, "\033[2;3Hhi\033[4;7Ha\033[K\033[5;7Hb\033[K", out.String())
	assert.Equal(t, 0, cw.Len())
}

func TestChunkWriterLargeFrame(t *testing.T) {
	var out bytes.Buffer
	cw := NewChunkWriter(&out, 0, 0)
	big := strings.Repeat("x", 5000)
	cw.WriteString(big)
	require.NoError(t, cw.Flush())
	assert.Equal(t, big, out.String())
}
