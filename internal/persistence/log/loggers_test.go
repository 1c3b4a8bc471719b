package log

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/volume"
)

func TestJSONLZstdWriter_OneFilePerKey(t *testing.T) {
	w := NewJSONLZstdWriter(t.TempDir(), "events")
	if err := w.Write(map[string]int{"n": 0}); !errors.Is(err, ErrNoStream) {
		t.Fatalf("write before rotate: %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if err := w.Rotate(key); err != nil {
			t.Fatalf("Rotate(%s): %v", key, err)
		}
		for i := 0; i < 3; i++ {
			if err := w.Write(map[string]any{"key": key, "n": i}); err != nil {
				t.Fatalf("Write: %v", err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	type line struct {
		Key string `json:"key"`
		N   int    `json:"n"`
	}
	for _, key := range []string{"a", "b"} {
		got, err := ReadJSONL[line](w.Path(key))
		if err != nil {
			t.Fatalf("ReadJSONL(%s): %v", key, err)
		}
		if len(got) != 3 || got[2] != (line{Key: key, N: 2}) {
			t.Fatalf("%s: %+v", key, got)
		}
	}
}

func TestBuildLogger_WritesTerrain(t *testing.T) {
	piece, err := volume.FromModel(volume.Model{
		Extent:    volume.Extent{X: 2, Y: 1, Z: 1},
		Placement: mgl32.Ident4(),
		Voxels:    []volume.Voxel{{Material: 5}},
	})
	if err != nil {
		t.Fatalf("FromModel: %v", err)
	}
	tr := &terrain.Terrain{
		Name:   "yard",
		Pieces: []terrain.Piece{{Placement: "p", Asset: "crate", Model: 1, Volume: piece}},
		Merged: piece,
	}

	l := NewBuildLogger(t.TempDir())
	if err := l.Begin("b1", "yard"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := l.WriteTerrain("b1", tr); err != nil {
		t.Fatalf("WriteTerrain: %v", err)
	}
	if err := l.Fail("b1", errors.New("late failure")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadJSONL[BuildEntry](l.Path("b1"))
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	kinds := []string{KindBuildStart, KindPiece, KindMerged, KindBuildFail}
	if len(got) != len(kinds) {
		t.Fatalf("entries=%d want %d", len(got), len(kinds))
	}
	for i, k := range kinds {
		if got[i].Kind != k || got[i].BuildID != "b1" {
			t.Fatalf("entry %d: %+v", i, got[i])
		}
	}
	d := piece.Digest()
	p := got[1]
	if p.Asset != "crate" || p.Model != 1 || p.Extent != "2x1x1" || p.Voxels != 1 || p.Digest != hex.EncodeToString(d[:]) {
		t.Fatalf("piece entry: %+v", p)
	}
	if got[2].Name != "yard" || got[3].Error != "late failure" {
		t.Fatalf("merged=%+v fail=%+v", got[2], got[3])
	}
}
