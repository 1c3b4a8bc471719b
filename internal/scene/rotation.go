package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// NormalizeRotation converts a configured rotation into a stable quarter-turn
// count in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeRotation(r int) int {
	// Treat large multiples of 90 as degrees.
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot*90 degrees
// clockwise. rot must be a normalized quarter-turn count in [0,3].
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default: // 3
		return -z, x
	}
}

// QuarterTurnY is RotateXZ as an exact integer matrix, so placed voxels land
// on grid points without rounding error.
func QuarterTurnY(rot int) mgl32.Mat4 {
	xx, xz := RotateXZ(1, 0, rot)
	zx, zz := RotateXZ(0, 1, rot)
	m := mgl32.Ident4()
	m.Set(0, 0, float32(xx))
	m.Set(2, 0, float32(xz))
	m.Set(0, 2, float32(zx))
	m.Set(2, 2, float32(zz))
	return m
}

// VoxRotation decodes a MagicaVoxel packed rotation byte: bits 0-1 and 2-3
// give the column of the non-zero entry in rows 0 and 1 (row 2 takes the
// remaining column) and bits 4-6 are the signs of rows 0..2.
func VoxRotation(b uint8) (mgl32.Mat4, error) {
	c0 := int(b & 3)
	c1 := int(b>>2) & 3
	if c0 == 3 || c1 == 3 || c0 == c1 {
		return mgl32.Mat4{}, fmt.Errorf("scene: invalid vox rotation %#07b", b)
	}
	cols := [3]int{c0, c1, 3 - c0 - c1}
	m := mgl32.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, 0)
		}
		v := float32(1)
		if b&(1<<(4+row)) != 0 {
			v = -1
		}
		m.Set(row, cols[row], v)
	}
	return m, nil
}
