// Package extract turns a volume into per-voxel draw instances.
package extract

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelkit.ai/internal/palette"
	"voxelkit.ai/internal/volume"
)

// Instance is one cube to draw.
type Instance struct {
	// Offset is the placed position of the cell's minimum corner.
	Offset    mgl32.Vec3         `json:"offset"`
	Material  volume.MaterialRef `json:"material"`
	Color     [4]float32         `json:"color"` // linear RGBA
	Roughness float32            `json:"roughness"`
	Metalness float32            `json:"metalness"`
}

// Build extracts one instance per visible occupied cell, in address order.
// Cells whose palette entry is fully transparent are skipped.
func Build(v *volume.Volume, pal *palette.Palette) []Instance {
	out := make([]Instance, 0, v.Len())
	place := v.Placement()
	for c, m := range v.All() {
		color := pal.LinearRGBA(m)
		if color[3] == 0 {
			continue
		}
		mat := pal.Resolve(m)
		out = append(out, Instance{
			Offset:    place.Mul4x1(mgl32.Vec4{float32(c.X), float32(c.Y), float32(c.Z), 1}).Vec3(),
			Material:  m,
			Color:     color,
			Roughness: float32(mat.Roughness),
			Metalness: float32(mat.Metalness),
		})
	}
	return out
}

// Cache keeps the last extraction of a volume. It rebuilds when the volume's
// revision moves or after Invalidate, which callers use when the palette
// changes underneath it.
type Cache struct {
	vol *volume.Volume
	pal *palette.Palette

	valid     bool
	rev       uint64
	instances []Instance
	builds    int
}

func NewCache(v *volume.Volume, pal *palette.Palette) *Cache {
	return &Cache{vol: v, pal: pal}
}

func (c *Cache) Instances() []Instance {
	if !c.valid || c.rev != c.vol.Revision() {
		c.instances = Build(c.vol, c.pal)
		c.rev = c.vol.Revision()
		c.valid = true
		c.builds++
	}
	return c.instances
}

func (c *Cache) Invalidate() { c.valid = false }

// Reset points the cache at another volume and palette.
func (c *Cache) Reset(v *volume.Volume, pal *palette.Palette) {
	c.vol, c.pal = v, pal
	c.Invalidate()
}

// Builds reports how many extractions the cache has run.
func (c *Cache) Builds() int { return c.builds }

func (c *Cache) Volume() *volume.Volume { return c.vol }
