package indexdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxelkit.ai/internal/terrain"
	"voxelkit.ai/internal/volume"
)

var ErrClosed = errors.New("indexdb: closed")

// SQLiteIndex records build statistics. Volume contents are never stored;
// the JSONL build logs and the source assets remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	once   sync.Once
	closed atomic.Bool
}

type BuildRow struct {
	ID         string
	Name       string
	ConfigPath string
	Status     string
	Error      string
	Pieces     int
	Voxels     int
	Digest     string
	RecordedAt string
}

type VolumeRow struct {
	BuildID   string
	Seq       int
	Placement string
	Asset     string
	Model     int
	Merged    bool
	Extent    volume.Extent
	Voxels    int
	Segments  int
	Digest    string
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// NewBuildID returns a fresh build identifier.
func NewBuildID() string { return uuid.NewString() }

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			config_path TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			pieces INTEGER NOT NULL,
			voxels INTEGER NOT NULL,
			digest TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_digest ON builds(digest);`,
		`CREATE TABLE IF NOT EXISTS volumes (
			build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			placement TEXT NOT NULL,
			asset TEXT NOT NULL,
			model INTEGER NOT NULL,
			merged INTEGER NOT NULL,
			extent_x INTEGER NOT NULL,
			extent_y INTEGER NOT NULL,
			extent_z INTEGER NOT NULL,
			voxels INTEGER NOT NULL,
			segments INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (build_id, seq)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.db.Close()
	})
	return err
}

func digestHex(v *volume.Volume) string {
	d := v.Digest()
	return hex.EncodeToString(d[:])
}

func volumeRow(buildID string, seq int, v *volume.Volume) VolumeRow {
	return VolumeRow{
		BuildID:  buildID,
		Seq:      seq,
		Extent:   v.Extent(),
		Voxels:   v.Len(),
		Segments: v.SegmentCount(),
		Digest:   digestHex(v),
	}
}

// RecordTerrain stores the build and one row per piece plus the merged volume
// in a single transaction.
func (s *SQLiteIndex) RecordTerrain(ctx context.Context, buildID, configPath string, t *terrain.Terrain) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	rows := make([]VolumeRow, 0, len(t.Pieces)+1)
	for i, p := range t.Pieces {
		r := volumeRow(buildID, i, p.Volume)
		r.Placement, r.Asset, r.Model = p.Placement, p.Asset, p.Model
		rows = append(rows, r)
	}
	merged := volumeRow(buildID, len(t.Pieces), t.Merged)
	merged.Merged = true
	rows = append(rows, merged)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds(id,name,config_path,status,error,pieces,voxels,digest,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		buildID, t.Name, configPath, StatusOK, nil, len(t.Pieces), t.Merged.Len(), merged.Digest, now(),
	); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO volumes(build_id,seq,placement,asset,model,merged,extent_x,extent_y,extent_z,voxels,segments,digest) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.BuildID, r.Seq, r.Placement, r.Asset, r.Model, r.Merged,
			int64(r.Extent.X), int64(r.Extent.Y), int64(r.Extent.Z),
			r.Voxels, r.Segments, r.Digest,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) RecordFailure(ctx context.Context, buildID, name, configPath string, cause error) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds(id,name,config_path,status,error,pieces,voxels,digest,recorded_at) VALUES(?,?,?,?,?,0,0,NULL,?)`,
		buildID, name, configPath, StatusFailed, cause.Error(), now(),
	)
	return err
}

// Builds lists recorded builds, newest first.
func (s *SQLiteIndex) Builds(ctx context.Context, limit int) ([]BuildRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,config_path,status,COALESCE(error,''),pieces,voxels,COALESCE(digest,''),recorded_at
		 FROM builds ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BuildRow
	for rows.Next() {
		var b BuildRow
		if err := rows.Scan(&b.ID, &b.Name, &b.ConfigPath, &b.Status, &b.Error, &b.Pieces, &b.Voxels, &b.Digest, &b.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Volumes(ctx context.Context, buildID string) ([]VolumeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq,placement,asset,model,merged,extent_x,extent_y,extent_z,voxels,segments,digest
		 FROM volumes WHERE build_id=? ORDER BY seq`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VolumeRow
	for rows.Next() {
		r := VolumeRow{BuildID: buildID}
		var ex, ey, ez int64
		if err := rows.Scan(&r.Seq, &r.Placement, &r.Asset, &r.Model, &r.Merged, &ex, &ey, &ez, &r.Voxels, &r.Segments, &r.Digest); err != nil {
			return nil, err
		}
		r.Extent = volume.Extent{X: uint32(ex), Y: uint32(ey), Z: uint32(ez)}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PreviousWithDigest returns the most recent successful build other than
// exclude whose merged volume has the given digest.
func (s *SQLiteIndex) PreviousWithDigest(ctx context.Context, digest, exclude string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM builds WHERE digest=? AND status=? AND id<>? ORDER BY recorded_at DESC, rowid DESC LIMIT 1`,
		digest, StatusOK, exclude).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Fixed-width so recorded_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func now() string { return time.Now().UTC().Format(timeLayout) }
