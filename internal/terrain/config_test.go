package terrain

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

func TestLoad_AssemblyYAML(t *testing.T) {
	cfg, err := Load("../../configs/assembly.yaml")
	if err != nil {
		t.Fatalf("load assembly.yaml: %v", err)
	}
	if cfg.Name != "harbour" || !cfg.Compress || cfg.Palette != "ground" {
		t.Fatalf("unexpected header: %+v", cfg)
	}
	if len(cfg.Assets) != 3 || len(cfg.Placements) != 4 {
		t.Fatalf("assets=%d placements=%d", len(cfg.Assets), len(cfg.Placements))
	}
	if got := cfg.AssetPath(cfg.Assets[0]); got != filepath.Join("../../configs", "../assets/ground.vox") {
		t.Fatalf("asset path=%s", got)
	}
	if p := cfg.Placements[3]; p.Parent != "house_east" || p.Rotate != 90 || p.Translate != [3]int{0, 6, 0} {
		t.Fatalf("crane placement: %+v", p)
	}
}

func TestSchema_ValidatesSampleConfig(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "assembly.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join("..", "..", "configs", "assembly.yaml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	// Re-decode through JSON so numbers have the types the validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("json: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var bad any
	_ = json.Unmarshal([]byte(`{"assets":[{"id":"a"}],"placements":[]}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("expected asset without path to fail validation")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "terrain" || len(cfg.Placements) != 0 {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestConfigNormalize_FillsIDsAndPalette(t *testing.T) {
	cfg := Config{
		Assets:     []AssetSpec{{ID: " rock ", Path: "rock.vox"}},
		Placements: []PlacementSpec{{Asset: "rock"}, {Asset: "rock"}},
	}
	cfg.Normalize()
	if cfg.Name != "terrain" || cfg.Palette != "rock" {
		t.Fatalf("normalize header: %+v", cfg)
	}
	if cfg.Placements[0].ID != "rock#0" || cfg.Placements[1].ID != "rock#1" {
		t.Fatalf("placement ids: %s %s", cfg.Placements[0].ID, cfg.Placements[1].ID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	rock := AssetSpec{ID: "rock", Path: "rock.vox"}
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "dup asset", cfg: Config{Assets: []AssetSpec{rock, rock}}, want: "duplicate asset id"},
		{name: "no path", cfg: Config{Assets: []AssetSpec{{ID: "rock"}}}, want: "path must not be empty"},
		{name: "palette", cfg: Config{Palette: "sky", Assets: []AssetSpec{rock}}, want: "palette asset"},
		{name: "unknown asset", cfg: Config{Assets: []AssetSpec{rock}, Placements: []PlacementSpec{{ID: "p", Asset: "tree"}}}, want: "not found in assets"},
		{name: "forward parent", cfg: Config{Assets: []AssetSpec{rock}, Placements: []PlacementSpec{
			{ID: "a", Asset: "rock", Parent: "b"},
			{ID: "b", Asset: "rock"},
		}}, want: "declared before"},
		{name: "dup placement", cfg: Config{Assets: []AssetSpec{rock}, Placements: []PlacementSpec{
			{ID: "a", Asset: "rock"},
			{ID: "a", Asset: "rock"},
		}}, want: "duplicate placement id"},
		{name: "negative model", cfg: Config{Assets: []AssetSpec{rock}, Placements: []PlacementSpec{{ID: "a", Asset: "rock", Models: []int{-1}}}}, want: "model index"},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: err=%v want %q", c.name, err, c.want)
		}
	}
}

func TestLoad_ReportsFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("assets:\n  - id: a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), "assembly.yaml: ") {
		t.Fatalf("err=%v", err)
	}
}
