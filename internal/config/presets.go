package config

import (
	"sort"

	"github.com/san-kum/dplsim/internal/dynamo"
)

// Presets holds named info records by kind ("run" or "ensemble").
var Presets = map[string]map[string]func() dynamo.Info{
	"run": {
		"default": DefaultInfo,
		"periodic": func() dynamo.Info {
			info := DefaultInfo()
			p := &info.Parameters
			p.Linear, p.Quadratic, p.Diffusion = 1.0, 2.0, 0.1
			p.TFinal, p.Dx, p.Dt = 20.0-1e-10, 0.5, 0.01
			p.GridSize = []int{12, 8}
			info.Misc.Path = []string{"periodic"}
			return info
		},
		"bounded1d": func() dynamo.Info {
			info := DefaultInfo()
			p := &info.Parameters
			p.GridDimension = dynamo.D1
			p.GridSize = []int{256}
			p.GridTopologies = []dynamo.GridTopology{dynamo.Bounded}
			p.BoundaryConditions = []dynamo.BoundaryCondition{dynamo.FixedValue, dynamo.FixedValue}
			p.BCValues = []float64{0, 0}
			p.TFinal, p.Dt = 10, 0.01
			info.Misc.Path = []string{"bounded1d"}
			return info
		},
		"seed": func() dynamo.Info {
			info := DefaultInfo()
			p := &info.Parameters
			p.InitialCondition = dynamo.SingleSeed
			p.ICValues = []float64{1, 5, 2}
			p.Linear = DefaultAC
			info.Misc.Path = []string{"seed"}
			return info
		},
	},
	"ensemble": {
		"critical": func() dynamo.Info {
			info := DefaultInfo()
			p := &info.Parameters
			p.Linear = DefaultAC
			p.TFinal, p.Dt = 100, 0.1
			p.GridSize = []int{32, 32}
			info.Misc.Path = []string{"critical"}
			info.Misc.NSegments = 10
			info.Misc.NSims = 8
			info.Misc.DaRange = 0.2
			info.Misc.DoExportComboGraphs = true
			info.Misc.DoExportComboData = true
			return info
		},
		"quick": func() dynamo.Info {
			info := DefaultInfo()
			info.Parameters.Linear = DefaultAC
			info.Misc.Path = []string{"quick"}
			info.Misc.DoExportComboGraphs = true
			info.Misc.DoExportComboData = true
			return info
		},
	},
}

// GetPreset returns a fresh copy of the named preset, or false.
func GetPreset(kind, preset string) (dynamo.Info, bool) {
	kindPresets, ok := Presets[kind]
	if !ok {
		return dynamo.Info{}, false
	}
	fn, ok := kindPresets[preset]
	if !ok {
		return dynamo.Info{}, false
	}
	return fn(), true
}

func ListPresets(kind string) []string {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(kindPresets))
	for name := range kindPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
