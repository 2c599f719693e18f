package physics

import "math"

// SpatialGrid is a uniform grid over the horizontal (X, Z) plane for
// broad-phase contact detection. Items are inserted by position and index,
// then nearby items are found through a 3x3 neighborhood lookup.
//
// Cell size must be >= the largest contact distance. Positions outside the
// covered area clamp to the edge cells, so far-away items are still found,
// only less efficiently.
type SpatialGrid struct {
	minX, minZ  float64
	invCellSize float64
	cols        int
	rows        int
	cells       [][]int // Item indices per cell, reused between steps
}

// NewSpatialGrid creates a grid covering [minX, minX+width) x [minZ, minZ+depth).
func NewSpatialGrid(minX, minZ, width, depth, cellSize float64) *SpatialGrid {
	cols := max(int(math.Ceil(width/cellSize)), 1)
	rows := max(int(math.Ceil(depth/cellSize)), 1)
	return &SpatialGrid{
		minX:        minX,
		minZ:        minZ,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]int, cols*rows),
	}
}

// Clear removes all items without releasing cell memory.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an item at the given position.
func (g *SpatialGrid) Insert(p Vec3, index int) {
	col, row := g.posToCell(p)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], index)
}

// QueryAround calls fn for each item in the 3x3 cell neighborhood of p.
// Iteration stops early when fn returns true.
func (g *SpatialGrid) QueryAround(p Vec3, fn func(index int) bool) {
	col, row := g.posToCell(p)

	for r := max(row-1, 0); r <= min(row+1, g.rows-1); r++ {
		rowOffset := r * g.cols
		for c := max(col-1, 0); c <= min(col+1, g.cols-1); c++ {
			for _, item := range g.cells[rowOffset+c] {
				if fn(item) {
					return
				}
			}
		}
	}
}

// posToCell converts a position to cell coordinates, clamped to the grid.
func (g *SpatialGrid) posToCell(p Vec3) (col, row int) {
	fx := math.Floor((p.X - g.minX) * g.invCellSize)
	fz := math.Floor((p.Z - g.minZ) * g.invCellSize)
	col = int(math.Min(math.Max(fx, 0), float64(g.cols-1)))
	row = int(math.Min(math.Max(fz, 0), float64(g.rows-1)))
	return col, row
}
