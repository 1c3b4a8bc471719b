package volume

// address linearizes c row-major: x + y*X + z*X*Y.
func (v *Volume) address(c Coord) (int, error) {
	if !v.extent.Contains(c) {
		return 0, &BoundsError{Coord: c, Extent: v.extent}
	}
	w, h := int(v.extent.X), int(v.extent.Y)
	return int(c.X) + int(c.Y)*w + int(c.Z)*w*h, nil
}

func (v *Volume) coordOf(addr int) Coord {
	w, h := int(v.extent.X), int(v.extent.Y)
	return Coord{
		X: uint32(addr % w),
		Y: uint32((addr / w) % h),
		Z: uint32(addr / (w * h)),
	}
}

// find walks the layout and returns the index of the segment holding addr
// and the address at which that segment starts.
func (v *Volume) find(addr int) (idx, start int) {
	for i, s := range v.segments {
		n := s.Cells()
		if addr < start+n {
			return i, start
		}
		start += n
	}
	// Unreachable while the layout covers the extent.
	panic("volume: layout shorter than extent")
}

// Locate returns the index of the segment that contains c.
func (v *Volume) Locate(c Coord) (int, error) {
	addr, err := v.address(c)
	if err != nil {
		return 0, err
	}
	i, _ := v.find(addr)
	return i, nil
}

// Lookup returns the material at c, or ok=false when the cell is empty.
func (v *Volume) Lookup(c Coord) (m MaterialRef, ok bool, err error) {
	i, err := v.Locate(c)
	if err != nil {
		return 0, false, err
	}
	s := v.segments[i]
	if s.IsEmpty() {
		return 0, false, nil
	}
	return s.Material, true, nil
}
