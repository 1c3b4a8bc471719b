package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"voxelkit.ai/internal/persistence/indexdb"
	persistlog "voxelkit.ai/internal/persistence/log"
	"voxelkit.ai/internal/render/extract"
	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/transport/preview"
)

type buildResult struct {
	BuildID  string
	Terrain  *terrain.Terrain
	Elapsed  time.Duration
	LogPath  string
	SameAs   string // earlier build with an identical merged volume
	Rendered int
}

// pipeline runs one rebuild and fans the result out to the build log, the
// index and the preview server. Every sink is optional.
type pipeline struct {
	configPath string
	builder    *terrain.Builder
	buildLog   *persistlog.BuildLogger
	idx        *indexdb.SQLiteIndex
	preview    *preview.Server
	cache      *extract.Cache
	logger     *log.Logger
}

func (p *pipeline) run(ctx context.Context) (buildResult, error) {
	res := buildResult{BuildID: indexdb.NewBuildID()}
	start := time.Now()

	if p.buildLog != nil {
		if err := p.buildLog.Begin(res.BuildID, p.builder.Name()); err != nil {
			return res, fmt.Errorf("build log: %w", err)
		}
		res.LogPath = p.buildLog.Path(res.BuildID)
	}

	t, err := p.builder.Rebuild(ctx)
	if err != nil {
		if p.buildLog != nil {
			if lerr := p.buildLog.Fail(res.BuildID, err); lerr != nil {
				p.logger.Printf("build log: %v", lerr)
			}
		}
		if p.idx != nil {
			if ierr := p.idx.RecordFailure(ctx, res.BuildID, p.builder.Name(), p.configPath, err); ierr != nil {
				p.logger.Printf("index: %v", ierr)
			}
		}
		return res, err
	}
	res.Terrain = t
	res.Elapsed = time.Since(start)

	if p.buildLog != nil {
		if err := p.buildLog.WriteTerrain(res.BuildID, t); err != nil {
			return res, fmt.Errorf("build log: %w", err)
		}
	}
	if p.idx != nil {
		if err := p.idx.RecordTerrain(ctx, res.BuildID, p.configPath, t); err != nil {
			return res, fmt.Errorf("index: %w", err)
		}
		d := t.Merged.Digest()
		if id, ok, err := p.idx.PreviousWithDigest(ctx, fmt.Sprintf("%x", d[:]), res.BuildID); err != nil {
			p.logger.Printf("index: %v", err)
		} else if ok {
			res.SameAs = id
		}
	}

	if p.cache == nil {
		p.cache = extract.NewCache(t.Merged, t.Palette)
	} else {
		p.cache.Reset(t.Merged, t.Palette)
	}
	frame := preview.FrameFor(res.BuildID, t, p.cache)
	res.Rendered = len(frame.Instances)
	if p.preview != nil {
		p.preview.Publish(frame)
	}
	return res, nil
}
