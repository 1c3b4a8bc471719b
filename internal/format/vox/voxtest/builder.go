// Package voxtest assembles small .vox files for tests.
package voxtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelkit.ai/internal/format/vox"
)

type Builder struct {
	version  int32
	children bytes.Buffer
}

func New() *Builder { return &Builder{version: 150} }

func (b *Builder) Version(v int32) *Builder {
	b.version = v
	return b
}

// Chunk appends a raw leaf chunk under MAIN.
func (b *Builder) Chunk(id string, content []byte) *Builder {
	writeChunk(&b.children, id, content, nil)
	return b
}

func (b *Builder) Pack(n int32) *Builder {
	return b.Chunk("PACK", le(n))
}

func (b *Builder) Model(size [3]uint32, voxels ...vox.Voxel) *Builder {
	b.Chunk("SIZE", le(int32(size[0]), int32(size[1]), int32(size[2])))
	xyzi := le(int32(len(voxels)))
	for _, v := range voxels {
		xyzi = append(xyzi, v.X, v.Y, v.Z, v.Index)
	}
	return b.Chunk("XYZI", xyzi)
}

// RGBA writes a palette chunk; colors[i] becomes palette index i+1.
func (b *Builder) RGBA(colors [256][4]uint8) *Builder {
	raw := make([]byte, 0, 1024)
	for _, c := range colors {
		raw = append(raw, c[:]...)
	}
	return b.Chunk("RGBA", raw)
}

func (b *Builder) Material(id int32, attrs map[string]string) *Builder {
	return b.Chunk("MATL", append(le(id), dict(attrs)...))
}

func (b *Builder) Transform(id, child int32, t [3]int32, rot uint8) *Builder {
	raw := le(id)
	raw = append(raw, dict(nil)...)
	raw = append(raw, le(child, -1, 0, 1)...)
	raw = append(raw, dict(map[string]string{
		"_t": fmt.Sprintf("%d %d %d", t[0], t[1], t[2]),
		"_r": fmt.Sprint(rot),
	})...)
	return b.Chunk("nTRN", raw)
}

func (b *Builder) Group(id int32, children ...int32) *Builder {
	raw := le(id)
	raw = append(raw, dict(nil)...)
	raw = append(raw, le(int32(len(children)))...)
	raw = append(raw, le(children...)...)
	return b.Chunk("nGRP", raw)
}

func (b *Builder) Shape(id int32, models ...int32) *Builder {
	raw := le(id)
	raw = append(raw, dict(nil)...)
	raw = append(raw, le(int32(len(models)))...)
	for _, m := range models {
		raw = append(raw, le(m)...)
		raw = append(raw, dict(nil)...)
	}
	return b.Chunk("nSHP", raw)
}

func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	out.WriteString("VOX ")
	out.Write(le(b.version))
	writeChunk(&out, "MAIN", nil, b.children.Bytes())
	return out.Bytes()
}

// WriteFile writes the file, zstd-compressed when path ends in .zst.
func (b *Builder) WriteFile(path string) error {
	raw := b.Bytes()
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		raw = enc.EncodeAll(raw, nil)
		_ = enc.Close()
	}
	return os.WriteFile(path, raw, 0o644)
}

func writeChunk(w *bytes.Buffer, id string, content, children []byte) {
	w.WriteString(id)
	w.Write(le(int32(len(content)), int32(len(children))))
	w.Write(content)
	w.Write(children)
}

func le(vs ...int32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

func str(s string) []byte {
	return append(le(int32(len(s))), s...)
}

func dict(d map[string]string) []byte {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := le(int32(len(keys)))
	for _, k := range keys {
		out = append(out, str(k)...)
		out = append(out, str(d[k])...)
	}
	return out
}
