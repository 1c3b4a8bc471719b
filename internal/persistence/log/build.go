package log

import (
	"encoding/hex"
	"path/filepath"
	"time"

	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/volume"
)

const (
	KindBuildStart = "BUILD_START"
	KindPiece      = "PIECE"
	KindMerged     = "MERGED"
	KindBuildFail  = "BUILD_FAIL"
)

// BuildEntry is one line of a build log.
type BuildEntry struct {
	BuildID string    `json:"build_id"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Name    string    `json:"name,omitempty"`

	Placement string `json:"placement,omitempty"`
	Asset     string `json:"asset,omitempty"`
	Model     int    `json:"model,omitempty"`

	Extent   string `json:"extent,omitempty"`
	Voxels   int    `json:"voxels,omitempty"`
	Segments int    `json:"segments,omitempty"`
	Dropped  int    `json:"dropped,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BuildLogger writes one compressed JSONL file per build id.
type BuildLogger struct{ w *JSONLZstdWriter }

func NewBuildLogger(dataDir string) *BuildLogger {
	return &BuildLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "builds"), "build")}
}

func (l *BuildLogger) Path(buildID string) string { return l.w.Path(buildID) }
func (l *BuildLogger) Close() error               { return l.w.Close() }

func (l *BuildLogger) Begin(buildID, name string) error {
	if err := l.w.Rotate(buildID); err != nil {
		return err
	}
	return l.w.Write(BuildEntry{BuildID: buildID, Kind: KindBuildStart, At: time.Now().UTC(), Name: name})
}

// WriteTerrain logs every piece and the merged volume of t.
func (l *BuildLogger) WriteTerrain(buildID string, t *terrain.Terrain) error {
	now := time.Now().UTC()
	for _, p := range t.Pieces {
		e := volumeEntry(buildID, KindPiece, now, p.Volume)
		e.Placement, e.Asset, e.Model = p.Placement, p.Asset, p.Model
		if err := l.w.Write(e); err != nil {
			return err
		}
	}
	e := volumeEntry(buildID, KindMerged, now, t.Merged)
	e.Name = t.Name
	e.Dropped = t.Dropped
	return l.w.Write(e)
}

func (l *BuildLogger) Fail(buildID string, err error) error {
	return l.w.Write(BuildEntry{BuildID: buildID, Kind: KindBuildFail, At: time.Now().UTC(), Error: err.Error()})
}

func volumeEntry(buildID, kind string, at time.Time, v *volume.Volume) BuildEntry {
	d := v.Digest()
	return BuildEntry{
		BuildID:  buildID,
		Kind:     kind,
		At:       at,
		Extent:   v.Extent().String(),
		Voxels:   v.Len(),
		Segments: v.SegmentCount(),
		Digest:   hex.EncodeToString(d[:]),
	}
}
