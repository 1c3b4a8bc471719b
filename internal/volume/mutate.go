package volume

import "slices"

// Insert sets the cell at c to m. An empty run containing c is split into
// up to three segments so insert succeeds for every in-bounds coordinate.
func (v *Volume) Insert(c Coord, m MaterialRef) error {
	addr, err := v.address(c)
	if err != nil {
		return err
	}
	i, start := v.find(addr)
	s := v.segments[i]
	if !s.IsEmpty() {
		if s.Material != m {
			v.segments[i].Material = m
			v.rev++
		}
		return nil
	}

	k := addr - start
	repl := make([]Segment, 0, 3)
	if k > 0 {
		repl = append(repl, EmptyRun(k))
	}
	repl = append(repl, Occupied(m))
	if rest := s.Empty - k - 1; rest > 0 {
		repl = append(repl, EmptyRun(rest))
	}
	v.segments = slices.Replace(v.segments, i, i+1, repl...)
	v.occupied++
	v.rev++
	return nil
}

// Remove clears the cell at c. The freed cell is folded into a neighbouring
// empty run when there is one (the following run first), otherwise it becomes
// a run of length one. Removing an empty cell is a no-op.
func (v *Volume) Remove(c Coord) error {
	i, err := v.Locate(c)
	if err != nil {
		return err
	}
	if v.segments[i].IsEmpty() {
		return nil
	}
	switch {
	case i+1 < len(v.segments) && v.segments[i+1].IsEmpty():
		v.segments[i+1].Empty++
		v.segments = slices.Delete(v.segments, i, i+1)
	case i > 0 && v.segments[i-1].IsEmpty():
		v.segments[i-1].Empty++
		v.segments = slices.Delete(v.segments, i, i+1)
	default:
		v.segments[i] = EmptyRun(1)
	}
	v.occupied--
	v.rev++
	return nil
}

// Compress merges adjacent empty runs in one pass and returns how many
// segments were dropped. Occupancy is unchanged.
func (v *Volume) Compress() int {
	w := 0
	for _, s := range v.segments {
		if w > 0 && s.IsEmpty() && v.segments[w-1].IsEmpty() {
			v.segments[w-1].Empty += s.Empty
			continue
		}
		v.segments[w] = s
		w++
	}
	dropped := len(v.segments) - w
	if dropped > 0 {
		v.segments = v.segments[:w]
		v.rev++
	}
	return dropped
}
