// Package palette holds the fixed 256-entry material table that voxel
// material references index into. Volumes only store the index; callers
// that draw or inspect voxels resolve it through a *Palette they own.
package palette

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"voxelkit.ai/internal/volume"
)

const Size = 256

type Material struct {
	Color colorful.Color // sRGB
	Alpha float64

	Roughness    float64
	Metalness    float64
	Transparency float64
	// Zero means the asset did not set the value.
	Specular float64
	IOR      float64
}

type Palette [Size]Material

// Default is used when an asset carries no palette: index 0 is transparent,
// 1..255 walk the hue wheel in bands of decreasing brightness.
func Default() *Palette {
	var p Palette
	for i := 1; i < Size; i++ {
		hue := float64((i-1)%32) * (360.0 / 32)
		band := (i - 1) / 32
		p[i] = Material{
			Color:     colorful.Hsv(hue, 0.65, 1-float64(band)*0.1),
			Alpha:     1,
			Roughness: 1,
		}
	}
	return &p
}

// FromRGBA builds a palette from 8-bit RGBA entries, one per index, with the
// asset defaults for surface values (fully rough, not metallic).
func FromRGBA(colors *[Size][4]uint8) *Palette {
	var p Palette
	for i, c := range colors {
		p[i] = Material{
			Color:     colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255},
			Alpha:     float64(c[3]) / 255,
			Roughness: 1,
		}
	}
	return &p
}

func (p *Palette) Resolve(ref volume.MaterialRef) Material {
	return p[ref]
}

// LinearRGBA returns the entry colour in linear space, as shaders expect it.
func (p *Palette) LinearRGBA(ref volume.MaterialRef) [4]float32 {
	m := p[ref]
	r, g, b := m.Color.Clamped().LinearRgb()
	return [4]float32{float32(r), float32(g), float32(b), float32(m.Alpha)}
}

func (p *Palette) Hex(ref volume.MaterialRef) string {
	return p[ref].Color.Clamped().Hex()
}

// Validate checks that surface values are within [0,1].
func (p *Palette) Validate() error {
	for i, m := range p {
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"alpha", m.Alpha},
			{"roughness", m.Roughness},
			{"metalness", m.Metalness},
			{"transparency", m.Transparency},
		} {
			if f.v < 0 || f.v > 1 {
				return fmt.Errorf("palette entry %d: %s %g out of [0,1]", i, f.name, f.v)
			}
		}
	}
	return nil
}
