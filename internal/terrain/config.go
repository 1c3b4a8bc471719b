package terrain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Name string `yaml:"name"`
	// Palette names the asset whose palette colours the merged terrain.
	// Defaults to the first asset.
	Palette    string          `yaml:"palette,omitempty"`
	Compress   bool            `yaml:"compress"`
	Assets     []AssetSpec     `yaml:"assets"`
	Placements []PlacementSpec `yaml:"placements"`

	// Dir resolves relative asset paths; Load sets it to the config's directory.
	Dir string `yaml:"-"`
}

type AssetSpec struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

type PlacementSpec struct {
	ID    string `yaml:"id"`
	Asset string `yaml:"asset"`
	// Models selects model indices from the asset; empty places every shape
	// of the asset's scene.
	Models    []int  `yaml:"models,omitempty"`
	Translate [3]int `yaml:"translate"`
	// Rotate is a turn about the up axis, in quarter turns or degrees.
	Rotate int    `yaml:"rotate"`
	Parent string `yaml:"parent,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("assembly.yaml: %w", err)
	}
	cfg.Dir = filepath.Dir(path)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("assembly.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{Name: "terrain"}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = "terrain"
	}
	for i := range c.Assets {
		c.Assets[i].ID = strings.TrimSpace(c.Assets[i].ID)
	}
	for i := range c.Placements {
		p := &c.Placements[i]
		p.Asset = strings.TrimSpace(p.Asset)
		p.Parent = strings.TrimSpace(p.Parent)
		if strings.TrimSpace(p.ID) == "" {
			p.ID = fmt.Sprintf("%s#%d", p.Asset, i)
		}
	}
	if strings.TrimSpace(c.Palette) == "" && len(c.Assets) > 0 {
		c.Palette = c.Assets[0].ID
	}
}

func (c Config) Validate() error {
	assets := map[string]bool{}
	for _, a := range c.Assets {
		if a.ID == "" {
			return fmt.Errorf("asset id must not be empty")
		}
		if assets[a.ID] {
			return fmt.Errorf("duplicate asset id: %s", a.ID)
		}
		assets[a.ID] = true
		if strings.TrimSpace(a.Path) == "" {
			return fmt.Errorf("asset %s path must not be empty", a.ID)
		}
	}
	if c.Palette != "" && !assets[c.Palette] {
		return fmt.Errorf("palette asset %q not found in assets", c.Palette)
	}
	seen := map[string]bool{}
	for i, p := range c.Placements {
		if seen[p.ID] {
			return fmt.Errorf("duplicate placement id: %s", p.ID)
		}
		if !assets[p.Asset] {
			return fmt.Errorf("placements[%d] asset %q not found in assets", i, p.Asset)
		}
		// Parents must be declared first so the placement tree has no cycles.
		if p.Parent != "" && !seen[p.Parent] {
			return fmt.Errorf("placements[%d] parent %q must be declared before it", i, p.Parent)
		}
		for _, m := range p.Models {
			if m < 0 {
				return fmt.Errorf("placements[%d] model index %d must be >= 0", i, m)
			}
		}
		seen[p.ID] = true
	}
	return nil
}

// AssetPath resolves an asset path against Dir.
func (c Config) AssetPath(a AssetSpec) string {
	if filepath.IsAbs(a.Path) || c.Dir == "" {
		return a.Path
	}
	return filepath.Join(c.Dir, a.Path)
}
