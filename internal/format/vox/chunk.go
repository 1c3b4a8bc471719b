package vox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrBadHeader = errors.New("vox: bad header")
	ErrTruncated = errors.New("vox: truncated data")
)

// Chunk is one node of the RIFF-style chunk tree.
type Chunk struct {
	ID       string
	Content  []byte
	Children []Chunk
}

// reader is a bounds-checked little-endian cursor over a byte slice.
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: reading %s at offset %d", ErrTruncated, what, r.off)
	}
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) bytes(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.remaining() {
		r.fail(what)
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) int32(what string) int32 {
	b := r.bytes(4, what)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// count reads a non-negative int32 length.
func (r *reader) count(what string) int {
	n := r.int32(what)
	if n < 0 && r.err == nil {
		r.err = fmt.Errorf("vox: negative %s %d at offset %d", what, n, r.off-4)
	}
	return int(n)
}

func (r *reader) string(what string) string {
	n := r.count(what + " length")
	return string(r.bytes(n, what))
}

func (r *reader) dict(what string) map[string]string {
	n := r.count(what + " size")
	if r.err != nil {
		return nil
	}
	d := make(map[string]string, min(n, 64))
	for i := 0; i < n && r.err == nil; i++ {
		k := r.string(what + " key")
		v := r.string(what + " value")
		d[k] = v
	}
	return d
}

func parseChunks(b []byte) ([]Chunk, error) {
	r := &reader{b: b}
	var out []Chunk
	for r.remaining() > 0 {
		id := string(r.bytes(4, "chunk id"))
		n := r.count("chunk content size")
		m := r.count("chunk children size")
		content := r.bytes(n, "chunk "+id+" content")
		children := r.bytes(m, "chunk "+id+" children")
		if r.err != nil {
			return nil, r.err
		}
		kids, err := parseChunks(children)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", id, err)
		}
		out = append(out, Chunk{ID: id, Content: content, Children: kids})
	}
	return out, nil
}

func parseFloat(d map[string]string, key string, def float64) (float64, error) {
	s, ok := d[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return def, fmt.Errorf("vox: bad %s value %q", key, s)
	}
	return f, nil
}
