// Package board holds the authoritative main map: which cells still carry a
// treasure, which cells host a treasure room, and how many treasures remain.
package board

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
)

var ErrInvalidLayout = errors.New("invalid board layout")

// Pos is a main-map coordinate. On the wire it is written "<row> <col>".
type Pos struct {
	Row int
	Col int
}

func (p Pos) Add(dRow, dCol int) Pos {
	return Pos{Row: p.Row + dRow, Col: p.Col + dCol}
}

func (p Pos) String() string {
	return fmt.Sprintf("%d, %d", p.Row, p.Col)
}

type CellKind int

const (
	KindTreasure CellKind = iota
	KindRoom
)

// Cell is one grid square. hasTreasure only ever goes from true to false.
type Cell struct {
	Pos  Pos
	Kind CellKind

	mu          sync.Mutex
	hasTreasure bool
	roomCleared atomic.Bool
}

type Board struct {
	rows      int
	cols      int
	seed      int64
	cells     [][]*Cell
	remaining atomic.Int64
}

// New lays out treasures cells chosen by a PRNG seeded with seed. Every other
// cell hosts a treasure room.
func New(rows, cols, treasures int, seed int64) (*Board, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrInvalidLayout, rows, cols)
	}
	if treasures <= 0 || treasures >= rows*cols {
		return nil, fmt.Errorf("%w: %d treasures on %d cells", ErrInvalidLayout, treasures, rows*cols)
	}

	b := &Board{
		rows:  rows,
		cols:  cols,
		seed:  seed,
		cells: make([][]*Cell, rows),
	}
	for r := 0; r < rows; r++ {
		b.cells[r] = make([]*Cell, cols)
		for c := 0; c < cols; c++ {
			b.cells[r][c] = &Cell{Pos: Pos{Row: r, Col: c}, Kind: KindRoom}
		}
	}

	rng := rand.New(rand.NewSource(seed))
	for _, idx := range rng.Perm(rows * cols)[:treasures] {
		cell := b.cells[idx/cols][idx%cols]
		cell.Kind = KindTreasure
		cell.hasTreasure = true
	}
	b.remaining.Store(int64(treasures))

	return b, nil
}

func (b *Board) Rows() int   { return b.rows }
func (b *Board) Cols() int   { return b.cols }
func (b *Board) Seed() int64 { return b.seed }

func (b *Board) InBounds(p Pos) bool {
	return p.Row >= 0 && p.Row < b.rows && p.Col >= 0 && p.Col < b.cols
}

// Cell returns nil for out-of-bounds positions.
func (b *Board) Cell(p Pos) *Cell {
	if !b.InBounds(p) {
		return nil
	}
	return b.cells[p.Row][p.Col]
}

func (b *Board) IsTreasureCell(p Pos) bool {
	cell := b.Cell(p)
	return cell != nil && cell.Kind == KindTreasure
}

func (b *Board) IsRoomCell(p Pos) bool {
	cell := b.Cell(p)
	return cell != nil && cell.Kind == KindRoom
}

// TryCollect takes the treasure at p. Among concurrent callers on the same
// cell exactly one gets true; everybody else, and every later caller, gets false.
func (b *Board) TryCollect(p Pos) bool {
	cell := b.Cell(p)
	if cell == nil || cell.Kind != KindTreasure {
		return false
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()
	if !cell.hasTreasure {
		return false
	}
	cell.hasTreasure = false
	b.remaining.Add(-1)
	return true
}

func (b *Board) HasTreasure(p Pos) bool {
	cell := b.Cell(p)
	if cell == nil {
		return false
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.hasTreasure
}

func (b *Board) Remaining() int {
	return int(b.remaining.Load())
}

func (b *Board) IsAllCollected() bool {
	return b.remaining.Load() == 0
}

// Treasures lists the cells that still carry a treasure, row-major.
func (b *Board) Treasures() []Pos {
	var out []Pos
	for _, row := range b.cells {
		for _, cell := range row {
			if cell.Kind != KindTreasure {
				continue
			}
			cell.mu.Lock()
			has := cell.hasTreasure
			cell.mu.Unlock()
			if has {
				out = append(out, cell.Pos)
			}
		}
	}
	return out
}

// RoomCells lists every cell hosting a treasure room, row-major.
func (b *Board) RoomCells() []Pos {
	var out []Pos
	for _, row := range b.cells {
		for _, cell := range row {
			if cell.Kind == KindRoom {
				out = append(out, cell.Pos)
			}
		}
	}
	return out
}

// MarkRoomCleared flags a room cell as exhausted. Only the first call returns true.
func (b *Board) MarkRoomCleared(p Pos) bool {
	cell := b.Cell(p)
	if cell == nil || cell.Kind != KindRoom {
		return false
	}
	return cell.roomCleared.CompareAndSwap(false, true)
}

func (b *Board) IsRoomCleared(p Pos) bool {
	cell := b.Cell(p)
	return cell != nil && cell.roomCleared.Load()
}
