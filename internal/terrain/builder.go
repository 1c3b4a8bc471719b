// Package terrain assembles placed vox assets into one merged world volume.
package terrain

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"voxelkit.ai/internal/format/vox"
	"voxelkit.ai/internal/palette"
	"voxelkit.ai/internal/scene"
	"voxelkit.ai/internal/volume"
)

// Piece is one placed model of the assembly.
type Piece struct {
	Placement string
	Asset     string
	Model     int
	Volume    *volume.Volume
}

type Terrain struct {
	Name    string
	Pieces  []Piece
	Merged  *volume.Volume
	Palette *palette.Palette
	// Dropped counts segments removed by compression.
	Dropped int
}

// Volumes lists the placed piece volumes in placement order.
func (t *Terrain) Volumes() []*volume.Volume {
	out := make([]*volume.Volume, 0, len(t.Pieces))
	for _, p := range t.Pieces {
		out = append(out, p.Volume)
	}
	return out
}

type Builder struct {
	cfg    Config
	logger *log.Logger
	open   func(path string) (*vox.File, error)

	current *Terrain
	graph   *scene.Graph
}

func NewBuilder(cfg Config, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(log.Writer(), "[terrain] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Builder{cfg: cfg, logger: logger, open: vox.Open}
}

func (b *Builder) Name() string { return b.cfg.Name }

// Current returns the terrain of the last successful Rebuild, or nil.
func (b *Builder) Current() *Terrain { return b.current }

// Graph returns the placement tree of the last successful Rebuild.
func (b *Builder) Graph() *scene.Graph { return b.graph }

// Rebuild drops the current terrain and assembles it again from the assets on
// disk. On error the previous terrain is kept.
func (b *Builder) Rebuild(ctx context.Context) (*Terrain, error) {
	files := make(map[string]*vox.File, len(b.cfg.Assets))
	for _, a := range b.cfg.Assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := b.open(b.cfg.AssetPath(a))
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", a.ID, err)
		}
		files[a.ID] = f
	}

	t := &Terrain{Name: b.cfg.Name, Palette: palette.Default()}
	if f, ok := files[b.cfg.Palette]; ok && f.Palette != nil {
		t.Palette = f.Palette
	}

	g := scene.New()
	handles := map[string]scene.Handle{}
	for _, p := range b.cfg.Placements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent := scene.NoParent
		if p.Parent != "" {
			h, ok := handles[p.Parent]
			if !ok {
				return nil, fmt.Errorf("placement %s: unknown parent %q", p.ID, p.Parent)
			}
			parent = h
		}
		local := mgl32.Translate3D(float32(p.Translate[0]), float32(p.Translate[1]), float32(p.Translate[2])).
			Mul4(scene.QuarterTurnY(scene.NormalizeRotation(p.Rotate)))
		h, err := g.Add(parent, p.ID, local)
		if err != nil {
			return nil, fmt.Errorf("placement %s: %w", p.ID, err)
		}
		handles[p.ID] = h

		pieces, err := b.place(g, h, p, files[p.Asset])
		if err != nil {
			return nil, fmt.Errorf("placement %s: %w", p.ID, err)
		}
		t.Pieces = append(t.Pieces, pieces...)
	}

	merged, err := volume.CombineAll(t.Volumes()...)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", b.cfg.Name, err)
	}
	if b.cfg.Compress {
		t.Dropped = merged.Compress()
	}
	t.Merged = merged

	b.current = t
	b.graph = g
	b.logger.Printf("rebuilt %s: pieces=%d voxels=%d extent=%s segments=%d",
		t.Name, len(t.Pieces), merged.Len(), merged.Extent(), merged.SegmentCount())
	return t, nil
}

func (b *Builder) place(g *scene.Graph, h scene.Handle, p PlacementSpec, f *vox.File) ([]Piece, error) {
	_, insts, err := scene.FromVox(f)
	if err != nil {
		return nil, err
	}
	for _, m := range p.Models {
		if m < 0 || m >= len(f.Models) {
			return nil, fmt.Errorf("model %d out of range (asset %s has %d)", m, p.Asset, len(f.Models))
		}
	}
	var out []Piece
	for _, in := range insts {
		if len(p.Models) > 0 && !slices.Contains(p.Models, in.Model) {
			continue
		}
		child, err := g.Add(h, in.Name, in.Placement)
		if err != nil {
			return nil, err
		}
		world, err := g.World(child)
		if err != nil {
			return nil, err
		}
		v, err := f.Models[in.Model].Volume(world)
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", in.Model, err)
		}
		out = append(out, Piece{Placement: p.ID, Asset: p.Asset, Model: in.Model, Volume: v})
	}
	return out, nil
}
