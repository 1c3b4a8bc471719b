package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"voxelkit.ai/internal/format/vox"
	"voxelkit.ai/internal/format/vox/voxtest"
	"voxelkit.ai/internal/persistence/indexdb"
	persistlog "voxelkit.ai/internal/persistence/log"
	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/transport/preview"
)

func newTestPipeline(t *testing.T) (*pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	asset := voxtest.New().Model([3]uint32{2, 2, 1},
		vox.Voxel{X: 0, Y: 0, Index: 1},
		vox.Voxel{X: 1, Y: 1, Index: 2},
	)
	if err := asset.WriteFile(filepath.Join(dir, "tile.vox")); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	cfgPath := filepath.Join(dir, "assembly.yaml")
	yaml := `name: courtyard
compress: true
assets:
  - id: tile
    path: tile.vox
placements:
  - id: a
    asset: tile
  - id: b
    asset: tile
    translate: [2, 0, 0]
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := terrain.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "data", "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	bl := persistlog.NewBuildLogger(filepath.Join(dir, "data"))
	t.Cleanup(func() {
		_ = bl.Close()
		_ = idx.Close()
	})
	return &pipeline{
		configPath: cfgPath,
		builder:    terrain.NewBuilder(cfg, logger),
		buildLog:   bl,
		idx:        idx,
		preview:    preview.NewServer(logger),
		logger:     logger,
	}, dir
}

func TestPipeline_RunRecordsEverySink(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if first.Terrain.Merged.Len() != 4 || first.Rendered != 4 || first.SameAs != "" {
		t.Fatalf("first=%+v", first)
	}
	if _, err := os.Stat(first.LogPath); err != nil {
		t.Fatalf("build log: %v", err)
	}
	entries, err := persistlog.ReadJSONL[persistlog.BuildEntry](first.LogPath)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	// start + two pieces + merged
	if len(entries) != 4 || entries[3].Kind != persistlog.KindMerged || entries[3].Voxels != 4 {
		t.Fatalf("entries=%+v", entries)
	}

	second, err := p.run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if second.SameAs != first.BuildID {
		t.Fatalf("SameAs=%q want %q", second.SameAs, first.BuildID)
	}
	builds, err := p.idx.Builds(ctx, 10)
	if err != nil || len(builds) != 2 {
		t.Fatalf("builds=%d err=%v", len(builds), err)
	}
}

func TestPipeline_FailureIsRecorded(t *testing.T) {
	p, dir := newTestPipeline(t)
	if err := os.Remove(filepath.Join(dir, "tile.vox")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	res, err := p.run(context.Background())
	if err == nil {
		t.Fatalf("expected build error")
	}
	builds, err := p.idx.Builds(context.Background(), 1)
	if err != nil || len(builds) != 1 || builds[0].ID != res.BuildID || builds[0].Status != indexdb.StatusFailed {
		t.Fatalf("builds=%+v err=%v", builds, err)
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	p, _ := newTestPipeline(t)
	res, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res.SameAs = "earlier"
	var buf bytes.Buffer
	printSummary(&buf, res)
	out := buf.String()
	for _, want := range []string{
		"built courtyard",
		"extent    4x2x1 (8 cells)",
		"voxels    4 (50.0% filled)",
		"drawn     4 instances",
		"unchanged since build earlier",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
