// Package spatial provides the broad-phase index used by the tick context
// for radius queries over on-pitch agents.
//
// The grid is built once per tick and is read-only afterwards. Queries write
// into caller-owned buffers, so any number of goroutines may query concurrently.
package spatial

import (
	"math"
)

// Grid provides O(1) average radius queries via fixed-size cells.
// Entities are stored as indices (not pointers) into the caller's slice.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type Grid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint32 // cells[row*cols+col] = list of entity indices
	count       int
}

// NewGrid creates a grid for the given pitch bounds.
// cellSize should be close to the most common query radius.
// maxEntities is used to preallocate cell capacity.
func NewGrid(width, height, cellSize float64, maxEntities int) *Grid {
	if cellSize <= 0 {
		cellSize = math.Max(width, height)
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
	}
}

// Insert adds an entity at position (x, y). Positions outside the pitch
// are clamped into the border cells.
func (g *Grid) Insert(entity uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entity)
	g.count++
}

// Len returns the number of inserted entities.
func (g *Grid) Len() int {
	return g.count
}

// cellOf maps a coordinate to a cell number in [0, n). Coordinates beyond
// the grid, including infinities, land in the border cells.
func (g *Grid) cellOf(v float64, n int) int {
	c := math.Floor(v * g.invCellSize)
	switch {
	case !(c >= 0):
		return 0
	case c >= float64(n):
		return n - 1
	}
	return int(c)
}

func (g *Grid) cellIndex(x, y float64) int {
	return g.cellOf(y, g.rows)*g.cols + g.cellOf(x, g.cols)
}

// QueryRadius appends to dst every entity potentially within radius of (cx, cy)
// and returns the extended slice.
//
// The candidates may include entities outside the radius;
// the caller must perform a precise distance check (narrow phase).
func (g *Grid) QueryRadius(dst []uint32, cx, cy, radius float64) []uint32 {
	if !(radius >= 0) {
		return dst
	}

	minCol := g.cellOf(cx-radius, g.cols)
	maxCol := g.cellOf(cx+radius, g.cols)
	minRow := g.cellOf(cy-radius, g.rows)
	maxRow := g.cellOf(cy+radius, g.rows)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			dst = append(dst, g.cells[row*g.cols+col]...)
		}
	}

	return dst
}
