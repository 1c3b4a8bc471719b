package volume

import "iter"

// All yields every occupied cell in ascending address order. The sequence is
// lazy and can be ranged over any number of times; it must not be used while
// the volume is being mutated.
func (v *Volume) All() iter.Seq2[Coord, MaterialRef] {
	return func(yield func(Coord, MaterialRef) bool) {
		addr := 0
		for _, s := range v.segments {
			if s.IsEmpty() {
				addr += s.Empty
				continue
			}
			if !yield(v.coordOf(addr), s.Material) {
				return
			}
			addr++
		}
	}
}

func (v *Volume) Voxels() []Voxel {
	out := make([]Voxel, 0, v.occupied)
	for c, m := range v.All() {
		out = append(out, Voxel{Pos: c, Material: m})
	}
	return out
}
