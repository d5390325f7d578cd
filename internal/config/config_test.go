package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/engine"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine != "meanfield" {
		t.Errorf("expected engine meanfield, got %s", cfg.Engine)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	info, err := cfg.Info(nil)
	if err != nil {
		t.Fatalf("decode default info: %v", err)
	}
	if err := info.Parameters.Validate(); err != nil {
		t.Errorf("default parameters invalid: %v", err)
	}
	if info.Analysis[dynamo.KeyAC] != DefaultAC {
		t.Errorf("expected a_c %v, got %v", DefaultAC, info.Analysis[dynamo.KeyAC])
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.yaml")
	data := `
engine: meanfield
output: results
codec_policy: strict
viz:
  file_types: [svg, txt]
Parameters:
  linear: 1.5
  grid_size: [8, 4]
  integration_method: EULER
Misc:
  n_segments: 25
  path: [sweep]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Output != "results" {
		t.Errorf("expected output results, got %s", cfg.Output)
	}
	if len(cfg.Viz.FileTypes) != 2 || cfg.Viz.Width != 600 {
		t.Errorf("viz settings not merged: %+v", cfg.Viz)
	}

	info, err := cfg.Info(nil)
	if err != nil {
		t.Fatalf("decode info: %v", err)
	}
	p := info.Parameters
	if p.Linear != 1.5 {
		t.Errorf("expected linear 1.5, got %v", p.Linear)
	}
	if p.Diffusion != 0.04 {
		t.Errorf("expected default diffusion 0.04, got %v", p.Diffusion)
	}
	if len(p.GridSize) != 2 || p.GridSize[0] != 8 {
		t.Errorf("expected grid 8x4, got %v", p.GridSize)
	}
	if p.IntegrationMethod != dynamo.Euler {
		t.Errorf("expected EULER, got %v", p.IntegrationMethod)
	}
	if info.Misc.NSegments != 25 || info.Misc.Path[0] != "sweep" {
		t.Errorf("misc not merged: %+v", info.Misc)
	}
}

func TestStrictPolicyRejectsUnknownTags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CodecPolicy = "strict"
	cfg.Doc.Parameters["grid_dimension"] = "D4"
	if _, err := cfg.Info(nil); !errors.Is(err, dynamo.ErrSerializationGap) {
		t.Errorf("expected serialization gap, got %v", err)
	}

	cfg.CodecPolicy = "lenient"
	info, err := cfg.Info(nil)
	if err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	if info.Parameters.GridDimension.Valid() {
		t.Error("expected unknown grid dimension")
	}

	cfg.CodecPolicy = "sloppy"
	if _, err := cfg.Info(nil); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.yaml")
	cfg := DefaultConfig()
	cfg.Catalog = "output/catalog.db"
	info := DefaultInfo()
	info.Parameters.Linear = 1.75
	if err := cfg.SetInfo(info, nil); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Catalog != cfg.Catalog {
		t.Errorf("expected catalog %s, got %s", cfg.Catalog, loaded.Catalog)
	}
	got, err := loaded.Info(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Parameters.Linear != 1.75 {
		t.Errorf("expected linear 1.75, got %v", got.Parameters.Linear)
	}
	if got.Parameters.BoundaryConditions[3] != dynamo.Floating {
		t.Errorf("boundary conditions lost: %v", got.Parameters.BoundaryConditions)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	info, ok := GetPreset("run", "periodic")
	if !ok {
		t.Fatal("expected preset")
	}
	if info.Parameters.Diffusion != 0.1 {
		t.Errorf("expected diffusion 0.1, got %f", info.Parameters.Diffusion)
	}

	// Presets hand out fresh copies.
	info.Parameters.GridSize[0] = 99
	again, _ := GetPreset("run", "periodic")
	if again.Parameters.GridSize[0] != 12 {
		t.Error("preset was mutated through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if _, ok := GetPreset("run", "nonexistent"); ok {
		t.Error("expected no preset")
	}
	if _, ok := GetPreset("nonexistent", "default"); ok {
		t.Error("expected no preset for unknown kind")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("ensemble")
	if len(presets) != 2 || presets[0] != "critical" {
		t.Errorf("unexpected ensemble presets %v", presets)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for unknown kind")
	}
}

func TestPresetsSegmentEvenly(t *testing.T) {
	for kind, presets := range Presets {
		for name, fn := range presets {
			info := fn()
			if err := info.Parameters.Validate(); err != nil {
				t.Errorf("%s/%s: %v", kind, name, err)
				continue
			}
			n := engine.CountEpochs(info.Parameters.TFinal, info.Parameters.Dt, info.Misc.NRoundDt)
			if (n-1)%info.Misc.NSegments != 0 {
				t.Errorf("%s/%s: %d epochs do not split into %d segments", kind, name, n, info.Misc.NSegments)
			}
		}
	}
}
