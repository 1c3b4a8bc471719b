// Package vox reads MagicaVoxel .vox files: models, palette, materials and
// the scene node graph. See
// https://github.com/ephtracy/voxel-model/blob/master/MagicaVoxel-file-format-vox.txt
package vox

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"voxelkit.ai/internal/palette"
	"voxelkit.ai/internal/volume"
)

var magic = []byte("VOX ")

type Voxel struct {
	X, Y, Z uint8
	Index   uint8 // palette index, 1..255
}

type Model struct {
	Size   [3]uint32
	Voxels []Voxel
}

// VolumeModel converts the model into the volume asset description. The
// palette index is used as the material reference unchanged.
func (m Model) VolumeModel(placement mgl32.Mat4) volume.Model {
	out := volume.Model{
		Extent:    volume.Extent{X: m.Size[0], Y: m.Size[1], Z: m.Size[2]},
		Placement: placement,
		Voxels:    make([]volume.Voxel, len(m.Voxels)),
	}
	for i, v := range m.Voxels {
		out.Voxels[i] = volume.Voxel{
			Pos:      volume.Coord{X: uint32(v.X), Y: uint32(v.Y), Z: uint32(v.Z)},
			Material: volume.MaterialRef(v.Index),
		}
	}
	return out
}

func (m Model) Volume(placement mgl32.Mat4) (*volume.Volume, error) {
	return volume.FromModel(m.VolumeModel(placement))
}

type File struct {
	Version int32
	Models  []Model
	// Palette is the file palette, or palette.Default() when the file has
	// no RGBA chunk.
	Palette *palette.Palette
	// Nodes is the scene graph keyed by node id; node 0 is the root when
	// present. Files written before scene support have no nodes.
	Nodes map[int32]Node
}

// Open reads a .vox file. Paths ending in .zst are decompressed first.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}
	out, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func Parse(r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(b)
}

func ParseBytes(b []byte) (*File, error) {
	if len(b) < 8 || !bytes.Equal(b[:4], magic) {
		return nil, ErrBadHeader
	}
	hr := &reader{b: b[4:8]}
	version := hr.int32("version")
	if version != 150 && version != 200 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, version)
	}

	top, err := parseChunks(b[8:])
	if err != nil {
		return nil, err
	}
	if len(top) == 0 || top[0].ID != "MAIN" {
		return nil, fmt.Errorf("%w: missing MAIN chunk", ErrBadHeader)
	}
	chunks := top[0].Children

	out := &File{Version: version}
	if out.Models, err = parseModels(chunks); err != nil {
		return nil, err
	}
	if out.Palette, err = parsePalette(chunks); err != nil {
		return nil, err
	}
	if out.Nodes, err = parseNodes(chunks); err != nil {
		return nil, err
	}
	return out, nil
}

func parseModels(chunks []Chunk) ([]Model, error) {
	models := make([]Model, 0, 1)
	for _, c := range chunks {
		if c.ID != "PACK" {
			continue
		}
		r := &reader{b: c.Content}
		if n := r.count("PACK model count"); r.err == nil && n > 0 && n < 1<<16 {
			models = make([]Model, 0, n)
		}
	}

	var size *[3]uint32
	for _, c := range chunks {
		switch c.ID {
		case "SIZE":
			if size != nil {
				return nil, fmt.Errorf("vox: SIZE chunk %d without XYZI", len(models))
			}
			r := &reader{b: c.Content}
			x, y, z := r.count("size x"), r.count("size y"), r.count("size z")
			if r.err != nil {
				return nil, r.err
			}
			size = &[3]uint32{uint32(x), uint32(y), uint32(z)}
		case "XYZI":
			if size == nil {
				return nil, fmt.Errorf("vox: XYZI chunk %d without SIZE", len(models))
			}
			r := &reader{b: c.Content}
			n := r.count("voxel count")
			raw := r.bytes(n*4, "voxels")
			if r.err != nil {
				return nil, r.err
			}
			m := Model{Size: *size, Voxels: make([]Voxel, n)}
			for i := range m.Voxels {
				p := raw[i*4 : i*4+4]
				m.Voxels[i] = Voxel{X: p[0], Y: p[1], Z: p[2], Index: p[3]}
			}
			models = append(models, m)
			size = nil
		}
	}
	if size != nil {
		return nil, fmt.Errorf("vox: trailing SIZE chunk without XYZI")
	}
	return models, nil
}

func parsePalette(chunks []Chunk) (*palette.Palette, error) {
	var p *palette.Palette
	for _, c := range chunks {
		if c.ID != "RGBA" {
			continue
		}
		r := &reader{b: c.Content}
		raw := r.bytes(palette.Size*4, "RGBA palette")
		if r.err != nil {
			return nil, r.err
		}
		// Colour i of the chunk is palette index i+1; index 0 stays empty.
		var colors [palette.Size][4]uint8
		for i := 1; i < palette.Size; i++ {
			copy(colors[i][:], raw[(i-1)*4:i*4])
		}
		p = palette.FromRGBA(&colors)
	}
	if p == nil {
		p = palette.Default()
	}

	for _, c := range chunks {
		if c.ID != "MATL" {
			continue
		}
		r := &reader{b: c.Content}
		id := r.count("material id")
		d := r.dict("material")
		if r.err != nil {
			return nil, r.err
		}
		if id <= 0 || id >= palette.Size {
			return nil, fmt.Errorf("vox: material id %d out of range", id)
		}
		m := &p[id]
		var err error
		if m.Roughness, err = parseFloat(d, "_rough", m.Roughness); err != nil {
			return nil, err
		}
		if m.Metalness, err = parseFloat(d, "_metal", m.Metalness); err != nil {
			return nil, err
		}
		if m.Transparency, err = parseFloat(d, "_trans", m.Transparency); err != nil {
			return nil, err
		}
		if m.Specular, err = parseFloat(d, "_sp", m.Specular); err != nil {
			return nil, err
		}
		if m.IOR, err = parseFloat(d, "_ior", m.IOR); err != nil {
			return nil, err
		}
	}
	return p, nil
}
