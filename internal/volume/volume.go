package volume

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Volume is a cuboid grid of voxels stored as a run-length segment list,
// together with the transform that places its local grid in a parent frame.
//
// A Volume has a single owner and is not safe for concurrent mutation.
type Volume struct {
	extent    Extent
	placement mgl32.Mat4
	segments  []Segment

	occupied int
	rev      uint64
}

// New returns an empty volume: one empty run spanning the whole extent.
// An extent whose cell count does not fit an int fails with ErrExtent.
func New(extent Extent) (*Volume, error) {
	n, ok := extent.CellCount()
	if !ok {
		return nil, extentError(extent)
	}
	v := &Volume{
		extent:    extent,
		placement: mgl32.Ident4(),
	}
	if n > 0 {
		v.segments = []Segment{EmptyRun(n)}
	}
	return v, nil
}

// FromSegments builds a volume with an explicit layout. The layout does not
// have to be canonical, but it must cover the extent exactly.
func FromSegments(extent Extent, placement mgl32.Mat4, segs []Segment) (*Volume, error) {
	cells, ok := extent.CellCount()
	if !ok {
		return nil, extentError(extent)
	}
	total := 0
	occupied := 0
	for i, s := range segs {
		if s.Empty < 0 {
			return nil, fmt.Errorf("%w: segment %d has negative run length %d", ErrBadLayout, i, s.Empty)
		}
		if s.Empty == 0 {
			occupied++
		}
		if s.Cells() > cells-total {
			return nil, fmt.Errorf("%w: segments cover more than the %d cells of extent %s", ErrBadLayout, cells, extent)
		}
		total += s.Cells()
	}
	if total != cells {
		return nil, fmt.Errorf("%w: segments cover %d cells, extent %s has %d", ErrBadLayout, total, extent, cells)
	}
	cp := make([]Segment, len(segs))
	copy(cp, segs)
	return &Volume{
		extent:    extent,
		placement: placement,
		segments:  cp,
		occupied:  occupied,
	}, nil
}

// FromModel inserts every listed voxel, in order, into an empty volume of the
// model's extent. Later duplicates overwrite earlier ones.
func FromModel(m Model) (*Volume, error) {
	v, err := New(m.Extent)
	if err != nil {
		return nil, err
	}
	v.placement = m.Placement
	for i, vox := range m.Voxels {
		if err := v.Insert(vox.Pos, vox.Material); err != nil {
			return nil, fmt.Errorf("model voxel %d: %w", i, err)
		}
	}
	return v, nil
}

// Clone returns a copy of v that shares no segment storage with it.
func (v *Volume) Clone() *Volume {
	cp := *v
	cp.segments = make([]Segment, len(v.segments))
	copy(cp.segments, v.segments)
	return &cp
}

func (v *Volume) Extent() Extent        { return v.extent }
func (v *Volume) Placement() mgl32.Mat4 { return v.placement }
func (v *Volume) Len() int              { return v.occupied }
func (v *Volume) SegmentCount() int     { return len(v.segments) }

// Revision changes whenever the segment list or the placement changes.
// Derived caches compare it to decide whether they are stale.
func (v *Volume) Revision() uint64 { return v.rev }

func (v *Volume) SetPlacement(m mgl32.Mat4) {
	v.placement = m
	v.rev++
}

// Segments returns a copy of the current layout.
func (v *Volume) Segments() []Segment {
	out := make([]Segment, len(v.segments))
	copy(out, v.segments)
	return out
}

// Canonical reports whether no two empty runs are adjacent.
func (v *Volume) Canonical() bool {
	for i := 1; i < len(v.segments); i++ {
		if v.segments[i-1].IsEmpty() && v.segments[i].IsEmpty() {
			return false
		}
	}
	return true
}

// Digest hashes the extent and the occupied (address, material) pairs. It
// does not depend on how empty space is split into runs.
func (v *Volume) Digest() [32]byte {
	h := sha256.New()
	var tmp [8]byte
	for _, n := range []uint32{v.extent.X, v.extent.Y, v.extent.Z} {
		binary.LittleEndian.PutUint32(tmp[:4], n)
		h.Write(tmp[:4])
	}
	addr := 0
	for _, s := range v.segments {
		if s.IsEmpty() {
			addr += s.Empty
			continue
		}
		binary.LittleEndian.PutUint64(tmp[:], uint64(addr))
		h.Write(tmp[:])
		h.Write([]byte{byte(s.Material)})
		addr++
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
