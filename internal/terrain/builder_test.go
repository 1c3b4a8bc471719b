package terrain

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelkit.ai/internal/format/vox"
	"voxelkit.ai/internal/format/vox/voxtest"
	"voxelkit.ai/internal/volume"
)

// writeBar writes a 2x1x1 model with materials 1 and 2.
func writeBar(t *testing.T, dir, name string) {
	t.Helper()
	var colors [256][4]uint8
	colors[0] = [4]uint8{200, 10, 10, 255}
	b := voxtest.New().
		Model([3]uint32{2, 1, 1}, vox.Voxel{X: 0, Index: 1}, vox.Voxel{X: 1, Index: 2}).
		RGBA(colors)
	if err := b.WriteFile(filepath.Join(dir, name)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestBuilder(cfg Config) (*Builder, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg.Normalize()
	return NewBuilder(cfg, log.New(&buf, "", 0)), &buf
}

func lookup(t *testing.T, v *volume.Volume, c volume.Coord) volume.MaterialRef {
	t.Helper()
	m, ok, err := v.Lookup(c)
	if err != nil || !ok {
		t.Fatalf("lookup %s: ok=%v err=%v", c, ok, err)
	}
	return m
}

func TestRebuild_LaterPlacementWins(t *testing.T) {
	dir := t.TempDir()
	writeBar(t, dir, "bar.vox.zst")
	b, logs := newTestBuilder(Config{
		Name:   "row",
		Dir:    dir,
		Assets: []AssetSpec{{ID: "bar", Path: "bar.vox.zst"}},
		Placements: []PlacementSpec{
			{ID: "first", Asset: "bar"},
			{ID: "second", Asset: "bar", Translate: [3]int{1, 0, 0}},
		},
	})
	tr, err := b.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(tr.Pieces) != 2 || tr.Pieces[1].Placement != "second" {
		t.Fatalf("pieces=%+v", tr.Pieces)
	}
	m := tr.Merged
	if m.Extent() != (volume.Extent{X: 3, Y: 1, Z: 1}) || m.Len() != 3 {
		t.Fatalf("merged extent=%s len=%d", m.Extent(), m.Len())
	}
	for x, want := range []volume.MaterialRef{1, 1, 2} {
		if got := lookup(t, m, volume.Coord{X: uint32(x)}); got != want {
			t.Fatalf("x=%d material=%d want %d", x, got, want)
		}
	}
	if tr.Palette.Hex(1) != "#c80a0a" {
		t.Fatalf("palette not taken from asset: %s", tr.Palette.Hex(1))
	}
	if b.Current() != tr || b.Graph().Len() != 4 {
		t.Fatalf("builder state not updated")
	}
	if !strings.Contains(logs.String(), "rebuilt row: pieces=2 voxels=3") {
		t.Fatalf("log=%q", logs.String())
	}
}

func TestRebuild_ParentedRotatedPlacement(t *testing.T) {
	dir := t.TempDir()
	writeBar(t, dir, "bar.vox")
	b, _ := newTestBuilder(Config{
		Dir:    dir,
		Assets: []AssetSpec{{ID: "bar", Path: "bar.vox"}},
		Placements: []PlacementSpec{
			{ID: "base", Asset: "bar", Translate: [3]int{1, 0, 0}},
			{ID: "arm", Asset: "bar", Parent: "base", Translate: [3]int{0, 0, 5}, Rotate: 90},
		},
	})
	tr, err := b.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	m := tr.Merged
	if m.Extent() != (volume.Extent{X: 2, Y: 1, Z: 6}) {
		t.Fatalf("extent=%s", m.Extent())
	}
	if m.Placement() != mgl32.Translate3D(1, 0, 0) {
		t.Fatalf("merged placement=%v", m.Placement())
	}
	// The arm's second voxel turns from +x to -z around (1,0,5).
	if got := lookup(t, m, volume.Coord{X: 0, Z: 4}); got != 2 {
		t.Fatalf("rotated voxel material=%d", got)
	}
	if got := lookup(t, m, volume.Coord{X: 0, Z: 5}); got != 1 {
		t.Fatalf("arm origin material=%d", got)
	}
}

func TestRebuild_SelectsModelsAndCompresses(t *testing.T) {
	dir := t.TempDir()
	raw := voxtest.New().
		Model([3]uint32{1, 1, 1}, vox.Voxel{Index: 3}).
		Model([3]uint32{1, 1, 1}, vox.Voxel{Index: 4})
	if err := raw.WriteFile(filepath.Join(dir, "pair.vox")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := newTestBuilder(Config{
		Dir:        dir,
		Compress:   true,
		Assets:     []AssetSpec{{ID: "pair", Path: "pair.vox"}},
		Placements: []PlacementSpec{{ID: "p", Asset: "pair", Models: []int{1}}},
	})
	tr, err := b.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(tr.Pieces) != 1 || tr.Pieces[0].Model != 1 {
		t.Fatalf("pieces=%+v", tr.Pieces)
	}
	if got := lookup(t, tr.Merged, volume.Coord{}); got != 4 {
		t.Fatalf("material=%d want 4", got)
	}
	if !tr.Merged.Canonical() {
		t.Fatalf("merged terrain should be canonical")
	}

	b.cfg.Placements[0].Models = []int{7}
	if _, err := b.Rebuild(context.Background()); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestRebuild_FailureKeepsPreviousTerrain(t *testing.T) {
	dir := t.TempDir()
	writeBar(t, dir, "bar.vox")
	b, _ := newTestBuilder(Config{
		Dir:        dir,
		Assets:     []AssetSpec{{ID: "bar", Path: "bar.vox"}},
		Placements: []PlacementSpec{{ID: "p", Asset: "bar"}},
	})
	first, err := b.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "bar.vox")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := b.Rebuild(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want not exist", err)
	}
	if b.Current() != first {
		t.Fatalf("previous terrain should survive a failed rebuild")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Rebuild(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want canceled", err)
	}
}

func TestRebuild_RejectsModelOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeBar(t, dir, "bar.vox")
	for _, m := range []int{-1, 1} {
		b, _ := newTestBuilder(Config{
			Dir:        dir,
			Assets:     []AssetSpec{{ID: "bar", Path: "bar.vox"}},
			Placements: []PlacementSpec{{ID: "p", Asset: "bar", Models: []int{m}}},
		})
		_, err := b.Rebuild(context.Background())
		if err == nil || !strings.Contains(err.Error(), "out of range") {
			t.Fatalf("models=[%d] err=%v want out of range", m, err)
		}
		if b.Current() != nil {
			t.Fatalf("models=[%d] produced a terrain", m)
		}
	}
}

func TestRebuild_EmptyAssembly(t *testing.T) {
	b, _ := newTestBuilder(Config{})
	tr, err := b.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if tr.Merged.Len() != 0 || tr.Merged.Extent().Cells() != 0 || tr.Palette == nil {
		t.Fatalf("empty terrain: %+v", tr)
	}
}
