package volume

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
)

// MaterialRef indexes an externally owned 256-entry palette.
type MaterialRef uint8

type Coord struct {
	X, Y, Z uint32
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z) }

type Extent struct {
	X, Y, Z uint32
}

// Cells is the number of addressable cells, X*Y*Z, or 0 when that count
// does not fit an int. Volumes never carry such an extent.
func (e Extent) Cells() int {
	n, _ := e.CellCount()
	return n
}

// CellCount returns X*Y*Z and whether the product fits an int.
func (e Extent) CellCount() (int, bool) {
	xy := uint64(e.X) * uint64(e.Y)
	hi, n := bits.Mul64(xy, uint64(e.Z))
	if hi != 0 || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func (e Extent) Contains(c Coord) bool {
	return c.X < e.X && c.Y < e.Y && c.Z < e.Z
}

func (e Extent) String() string { return fmt.Sprintf("%dx%dx%d", e.X, e.Y, e.Z) }

// Segment is one entry of the run-length layout: either Empty consecutive
// empty cells (Empty >= 1) or a single occupied cell (Empty == 0).
type Segment struct {
	Empty    int
	Material MaterialRef
}

func EmptyRun(n int) Segment         { return Segment{Empty: n} }
func Occupied(m MaterialRef) Segment { return Segment{Material: m} }

func (s Segment) IsEmpty() bool { return s.Empty > 0 }

// Cells returns how many grid cells the segment covers.
func (s Segment) Cells() int {
	if s.Empty > 0 {
		return s.Empty
	}
	return 1
}

func (s Segment) String() string {
	if s.Empty > 0 {
		return fmt.Sprintf("E%d", s.Empty)
	}
	return fmt.Sprintf("V%d", s.Material)
}

type Voxel struct {
	Pos      Coord
	Material MaterialRef
}

// Model is the asset-side description of a volume: its grid size, its
// placement in the parent frame and the voxels listed by the asset.
type Model struct {
	Extent    Extent
	Placement mgl32.Mat4
	Voxels    []Voxel
}
