// Package grid provides the static wall/floor layout of a battle map and the
// reading-order helpers shared by every other game package.
package grid

import (
	"fmt"
)

// Pos is a cell coordinate. X grows to the right and Y grows downward.
type Pos struct {
	X int
	Y int
}

// String returns the position as "(x,y)".
func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Add returns p translated by d.
func (p Pos) Add(d Pos) Pos {
	return Pos{X: p.X + d.X, Y: p.Y + d.Y}
}

// ReadingLess reports whether a precedes b in reading order:
// top-to-bottom, then left-to-right.
func ReadingLess(a, b Pos) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// CompareReading orders a and b by reading order for use with slices.SortFunc.
//
// Postcondition: Returns -1 if a precedes b, 1 if b precedes a, 0 if equal.
func CompareReading(a, b Pos) int {
	switch {
	case a == b:
		return 0
	case ReadingLess(a, b):
		return -1
	default:
		return 1
	}
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b Pos) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Offsets are the four orthogonal steps, listed in reading order of the
// neighbour they lead to: up, left, right, down.
var Offsets = [4]Pos{
	{X: 0, Y: -1},
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
}

// Cell is the static content of one map square.
type Cell uint8

const (
	Empty Cell = iota
	Wall
)

// String returns the map glyph of the cell.
func (c Cell) String() string {
	if c == Wall {
		return "#"
	}
	return "."
}

// Map is an immutable rectangle of cells stored row-major.
// Invariant: len(cells) == width*height.
type Map struct {
	width  int
	height int
	cells  []Cell
}

// New builds a Map from row-major cells.
//
// Precondition: width > 0, height > 0.
// Postcondition: Returns a Map owning a copy of cells, or an error if the
// dimensions do not match len(cells).
func New(width, height int, cells []Cell) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("map dimensions must be positive, got %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("map %dx%d needs %d cells, got %d", width, height, width*height, len(cells))
	}
	cp := make([]Cell, len(cells))
	copy(cp, cells)
	return &Map{width: width, height: height, cells: cp}, nil
}

// Width returns the number of columns.
func (m *Map) Width() int { return m.width }

// Height returns the number of rows.
func (m *Map) Height() int { return m.height }

// Len returns the number of cells.
func (m *Map) Len() int { return len(m.cells) }

// InBounds reports whether p lies inside the map.
func (m *Map) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.width && p.Y < m.height
}

// Index returns the row-major index of p.
//
// Precondition: m.InBounds(p).
func (m *Map) Index(p Pos) int {
	return p.Y*m.width + p.X
}

// PosOf is the inverse of Index.
//
// Precondition: 0 <= i < m.Len().
func (m *Map) PosOf(i int) Pos {
	return Pos{X: i % m.width, Y: i / m.width}
}

// At returns the cell at p. Out-of-bounds positions read as Wall.
func (m *Map) At(p Pos) Cell {
	if !m.InBounds(p) {
		return Wall
	}
	return m.cells[m.Index(p)]
}

// IsOpen reports whether p is an in-bounds floor cell.
func (m *Map) IsOpen(p Pos) bool {
	return m.At(p) == Empty
}

// Neighbors4 appends the in-bounds orthogonal neighbours of p to buf and
// returns it. Neighbours come out in reading order.
func (m *Map) Neighbors4(p Pos, buf []Pos) []Pos {
	for _, d := range Offsets {
		n := p.Add(d)
		if m.InBounds(n) {
			buf = append(buf, n)
		}
	}
	return buf
}
