package volume

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

type placedCell struct {
	pos   [3]int64
	m     MaterialRef
	src   int
	local Coord
}

type source struct {
	name string
	vol  *Volume
}

// Combine merges a and b into a new volume in their shared frame. Each
// occupied cell is moved by its volume's placement and rounded to the nearest
// grid point; the result is sized to the largest placed coordinate and has an
// identity placement. Cells of b overwrite cells of a at the same position.
// Rounding is half away from zero, so a cell placed at -0.4 lands on 0 while
// one placed at -0.5 lands on -1 and is rejected.
//
// A cell placed at a negative position fails with a *PlacementError. Use
// CombineAnchored for inputs that may land below the origin. Inputs are left
// untouched.
func Combine(a, b *Volume) (*Volume, error) {
	return merge([]source{{"a", a}, {"b", b}}, false)
}

// CombineAnchored is Combine for arbitrary offsets: every cell is shifted by
// the minimum placed bound and the result is placed at that bound, so cells
// keep their shared-frame positions.
func CombineAnchored(a, b *Volume) (*Volume, error) {
	return merge([]source{{"a", a}, {"b", b}}, true)
}

// CombineAll folds CombineAnchored over vols left to right in a single pass;
// later volumes win collisions.
func CombineAll(vols ...*Volume) (*Volume, error) {
	srcs := make([]source, 0, len(vols))
	for i, v := range vols {
		if v == nil {
			continue
		}
		srcs = append(srcs, source{fmt.Sprintf("volume %d", i), v})
	}
	return merge(srcs, true)
}

func merge(srcs []source, anchored bool) (*Volume, error) {
	var cells []placedCell
	for i, s := range srcs {
		var err error
		cells, err = appendPlaced(cells, i, s)
		if err != nil {
			return nil, err
		}
	}
	if len(cells) == 0 {
		return New(Extent{})
	}

	lo := cells[0].pos
	hi := cells[0].pos
	for _, c := range cells[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], c.pos[k])
			hi[k] = max(hi[k], c.pos[k])
		}
	}

	var origin [3]int64
	if anchored {
		origin = lo
	} else {
		for _, c := range cells {
			if c.pos[0] < 0 || c.pos[1] < 0 || c.pos[2] < 0 {
				s := srcs[c.src]
				return nil, &PlacementError{Source: s.name, Local: c.local, Point: s.vol.placed(c.local)}
			}
		}
	}

	var ext Extent
	dims := [3]*uint32{&ext.X, &ext.Y, &ext.Z}
	for k := 0; k < 3; k++ {
		span := hi[k] - origin[k] + 1
		if span > math.MaxUint32 {
			return nil, fmt.Errorf("%w: combined extent %d on axis %d exceeds uint32", ErrPlacement, span, k)
		}
		*dims[k] = uint32(span)
	}
	total, ok := ext.CellCount()
	if !ok {
		return nil, fmt.Errorf("%w: combined extent %s has too many cells", ErrPlacement, ext)
	}

	out, err := New(ext)
	if err != nil {
		return nil, err
	}
	if anchored {
		out.placement = mgl32.Translate3D(float32(origin[0]), float32(origin[1]), float32(origin[2]))
	}

	// Inserting into a fresh volume keeps it canonical (splitting a run never
	// leaves two empty runs side by side), so the layout can be built directly
	// from the last write per address in ascending order.
	w, h := int64(ext.X), int64(ext.Y)
	last := make(map[int]MaterialRef, len(cells))
	for _, c := range cells {
		x, y, z := c.pos[0]-origin[0], c.pos[1]-origin[1], c.pos[2]-origin[2]
		last[int(x+y*w+z*w*h)] = c.m
	}
	addrs := make([]int, 0, len(last))
	for a := range last {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)

	segs := make([]Segment, 0, 2*len(addrs)+1)
	next := 0
	for _, a := range addrs {
		if a > next {
			segs = append(segs, EmptyRun(a-next))
		}
		segs = append(segs, Occupied(last[a]))
		next = a + 1
	}
	if total > next {
		segs = append(segs, EmptyRun(total-next))
	}
	out.segments = segs
	out.occupied = len(addrs)
	return out, nil
}

// placed maps a local cell through the volume's placement.
func (v *Volume) placed(c Coord) mgl32.Vec3 {
	return v.placement.Mul4x1(mgl32.Vec4{float32(c.X), float32(c.Y), float32(c.Z), 1}).Vec3()
}

func appendPlaced(dst []placedCell, idx int, s source) ([]placedCell, error) {
	for c, mat := range s.vol.All() {
		p := s.vol.placed(c)
		var pos [3]int64
		for k := 0; k < 3; k++ {
			f := math.Round(float64(p[k]))
			if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxUint32 {
				return nil, &PlacementError{Source: s.name, Local: c, Point: p}
			}
			pos[k] = int64(f)
		}
		dst = append(dst, placedCell{pos: pos, m: mat, src: idx, local: c})
	}
	return dst, nil
}
