package codec

import (
	"fmt"
	"sort"

	"github.com/san-kum/dplsim/internal/dynamo"
)

// Section is one flat mapping of a metadata document.
type Section map[string]any

// Document is the persisted metadata layout: three flat sections.
type Document struct {
	Parameters Section `json:"Parameters" yaml:"Parameters"`
	Analysis   Section `json:"Analysis" yaml:"Analysis"`
	Misc       Section `json:"Misc" yaml:"Misc"`
}

// Parameter keys.
const (
	KeyLinear             = "linear"
	KeyQuadratic          = "quadratic"
	KeyDiffusion          = "diffusion"
	KeyNoise              = "noise"
	KeyTFinal             = "t_final"
	KeyDx                 = "dx"
	KeyDt                 = "dt"
	KeyRandomSeed         = "random_seed"
	KeyGridDimension      = "grid_dimension"
	KeyGridSize           = "grid_size"
	KeyGridTopologies     = "grid_topologies"
	KeyBoundaryConditions = "boundary_conditions"
	KeyBCValues           = "bc_values"
	KeyInitialCondition   = "initial_condition"
	KeyICValues           = "ic_values"
	KeyIntegrationMethod  = "integration_method"
)

// Misc keys.
const (
	KeyName                = "name"
	KeyPath                = "path"
	KeyEngineVersion       = "engine_version"
	KeyDateTime            = "date_time"
	KeyNRoundDt            = "n_round_dt_summation"
	KeyNSegments           = "n_segments"
	KeyNEpochs             = "n_epochs"
	KeyComputationTime     = "computation_time"
	KeyBatchID             = "batch_id"
	KeyDoExportGraphs      = "do_export_graphs"
	KeyDoExportData        = "do_export_data"
	KeyDoExportComboGraphs = "do_export_combo_graphs"
	KeyDoExportComboData   = "do_export_combo_data"
	KeyNSims               = "n_sims"
	KeyDaRange             = "da_range"
	KeyNDigits             = "n_digits"
	KeyNWorkers            = "n_workers"
)

func (c *Codec) EncodeParameters(p dynamo.Parameters) (Section, error) {
	fields := []struct {
		key string
		val any
	}{
		{KeyLinear, p.Linear},
		{KeyQuadratic, p.Quadratic},
		{KeyDiffusion, p.Diffusion},
		{KeyNoise, p.Noise},
		{KeyTFinal, p.TFinal},
		{KeyDx, p.Dx},
		{KeyDt, p.Dt},
		{KeyRandomSeed, p.RandomSeed},
		{KeyGridDimension, p.GridDimension},
		{KeyGridSize, p.GridSize},
		{KeyGridTopologies, p.GridTopologies},
		{KeyBoundaryConditions, p.BoundaryConditions},
		{KeyBCValues, p.BCValues},
		{KeyInitialCondition, p.InitialCondition},
		{KeyICValues, p.ICValues},
		{KeyIntegrationMethod, p.IntegrationMethod},
	}

	s := make(Section, len(fields))
	for _, f := range fields {
		v, err := c.ToPortable(f.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		s[f.key] = v
	}
	return s, nil
}

func (c *Codec) DecodeParameters(s Section) (dynamo.Parameters, error) {
	var p dynamo.Parameters
	var err error

	floats := map[string]*float64{
		KeyLinear:    &p.Linear,
		KeyQuadratic: &p.Quadratic,
		KeyDiffusion: &p.Diffusion,
		KeyNoise:     &p.Noise,
		KeyTFinal:    &p.TFinal,
		KeyDx:        &p.Dx,
		KeyDt:        &p.Dt,
	}
	for key, dst := range floats {
		v, ok := s[key]
		if !ok {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return p, dynamo.Configf("parameter %s: want number, got %T", key, v)
		}
		*dst = f
	}

	if v, ok := s[KeyRandomSeed]; ok {
		n, ok := asInt(v)
		if !ok {
			return p, dynamo.Configf("parameter %s: want integer, got %v", KeyRandomSeed, v)
		}
		p.RandomSeed = n
	}
	if v, ok := s[KeyGridSize]; ok && v != nil {
		ns, ok := asInts(v)
		if !ok {
			return p, dynamo.Configf("parameter %s: want integer sequence, got %v", KeyGridSize, v)
		}
		p.GridSize = ns
	}
	for key, dst := range map[string]*[]float64{KeyBCValues: &p.BCValues, KeyICValues: &p.ICValues} {
		v, ok := s[key]
		if !ok || v == nil {
			continue
		}
		fs, ok := asFloats(v)
		if !ok {
			return p, dynamo.Configf("parameter %s: want number sequence, got %v", key, v)
		}
		*dst = fs
	}

	// Absent sentinel keys leave the unknown member; a present null goes
	// through the policy.
	if v, ok := s[KeyGridDimension]; ok {
		if p.GridDimension, err = decodeSentinel[dynamo.GridDimension](c, KeyGridDimension, v); err != nil {
			return p, err
		}
	}
	if v, ok := s[KeyInitialCondition]; ok {
		if p.InitialCondition, err = decodeSentinel[dynamo.InitialCondition](c, KeyInitialCondition, v); err != nil {
			return p, err
		}
	}
	if v, ok := s[KeyIntegrationMethod]; ok {
		if p.IntegrationMethod, err = decodeSentinel[dynamo.IntegrationMethod](c, KeyIntegrationMethod, v); err != nil {
			return p, err
		}
	}
	if v, ok := s[KeyGridTopologies]; ok {
		if p.GridTopologies, err = decodeSentinels[dynamo.GridTopology](c, KeyGridTopologies, v); err != nil {
			return p, err
		}
	}
	if v, ok := s[KeyBoundaryConditions]; ok {
		if p.BoundaryConditions, err = decodeSentinels[dynamo.BoundaryCondition](c, KeyBoundaryConditions, v); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (c *Codec) EncodeAnalysis(a dynamo.Analysis) (Section, error) {
	s := make(Section, len(a))
	for k, v := range a {
		s[k] = v
	}
	return s, nil
}

func (c *Codec) DecodeAnalysis(s Section) (dynamo.Analysis, error) {
	a := make(dynamo.Analysis, len(s))
	for _, k := range sortedKeys(s) {
		f, ok := asFloat(s[k])
		if !ok {
			if err := c.gap("decode analysis "+k, s[k]); err != nil {
				return nil, err
			}
			continue
		}
		a[k] = f
	}
	return a, nil
}

func (c *Codec) EncodeMisc(m dynamo.Misc) (Section, error) {
	path, err := c.ToPortable(m.Path)
	if err != nil {
		return nil, err
	}
	if m.Path == nil {
		path = []string{}
	}
	return Section{
		KeyName:                m.Name,
		KeyPath:                path,
		KeyEngineVersion:       m.EngineVersion,
		KeyDateTime:            m.DateTime,
		KeyNRoundDt:            m.NRoundDt,
		KeyNSegments:           m.NSegments,
		KeyNEpochs:             m.NEpochs,
		KeyComputationTime:     m.ComputationTime,
		KeyBatchID:             m.BatchID,
		KeyDoExportGraphs:      m.DoExportGraphs,
		KeyDoExportData:        m.DoExportData,
		KeyDoExportComboGraphs: m.DoExportComboGraphs,
		KeyDoExportComboData:   m.DoExportComboData,
		KeyNSims:               m.NSims,
		KeyDaRange:             m.DaRange,
		KeyNDigits:             m.NDigits,
		KeyNWorkers:            m.NWorkers,
	}, nil
}

func (c *Codec) DecodeMisc(s Section) (dynamo.Misc, error) {
	var m dynamo.Misc

	for key, dst := range map[string]*string{
		KeyName:            &m.Name,
		KeyEngineVersion:   &m.EngineVersion,
		KeyDateTime:        &m.DateTime,
		KeyComputationTime: &m.ComputationTime,
		KeyBatchID:         &m.BatchID,
	} {
		v, ok := s[key]
		if !ok || v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return m, dynamo.Configf("misc %s: want string, got %T", key, v)
		}
		*dst = str
	}

	for key, dst := range map[string]*int{
		KeyNRoundDt:  &m.NRoundDt,
		KeyNSegments: &m.NSegments,
		KeyNEpochs:   &m.NEpochs,
		KeyNSims:     &m.NSims,
		KeyNDigits:   &m.NDigits,
		KeyNWorkers:  &m.NWorkers,
	} {
		v, ok := s[key]
		if !ok || v == nil {
			continue
		}
		n, ok := asInt(v)
		if !ok {
			return m, dynamo.Configf("misc %s: want integer, got %v", key, v)
		}
		*dst = n
	}

	for key, dst := range map[string]*bool{
		KeyDoExportGraphs:      &m.DoExportGraphs,
		KeyDoExportData:        &m.DoExportData,
		KeyDoExportComboGraphs: &m.DoExportComboGraphs,
		KeyDoExportComboData:   &m.DoExportComboData,
	} {
		v, ok := s[key]
		if !ok || v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return m, dynamo.Configf("misc %s: want boolean, got %T", key, v)
		}
		*dst = b
	}

	if v, ok := s[KeyDaRange]; ok && v != nil {
		f, ok := asFloat(v)
		if !ok {
			return m, dynamo.Configf("misc %s: want number, got %T", KeyDaRange, v)
		}
		m.DaRange = f
	}
	if v, ok := s[KeyPath]; ok && v != nil {
		path, ok := asStrings(v)
		if !ok {
			return m, dynamo.Configf("misc %s: want string sequence, got %v", KeyPath, v)
		}
		m.Path = path
	}
	return m, nil
}

func (c *Codec) EncodeInfo(info dynamo.Info) (Document, error) {
	p, err := c.EncodeParameters(info.Parameters)
	if err != nil {
		return Document{}, fmt.Errorf("parameters: %w", err)
	}
	a, err := c.EncodeAnalysis(info.Analysis)
	if err != nil {
		return Document{}, fmt.Errorf("analysis: %w", err)
	}
	m, err := c.EncodeMisc(info.Misc)
	if err != nil {
		return Document{}, fmt.Errorf("misc: %w", err)
	}
	return Document{Parameters: p, Analysis: a, Misc: m}, nil
}

func (c *Codec) DecodeInfo(doc Document) (dynamo.Info, error) {
	p, err := c.DecodeParameters(doc.Parameters)
	if err != nil {
		return dynamo.Info{}, fmt.Errorf("parameters: %w", err)
	}
	a, err := c.DecodeAnalysis(doc.Analysis)
	if err != nil {
		return dynamo.Info{}, fmt.Errorf("analysis: %w", err)
	}
	m, err := c.DecodeMisc(doc.Misc)
	if err != nil {
		return dynamo.Info{}, fmt.Errorf("misc: %w", err)
	}
	return dynamo.Info{Parameters: p, Analysis: a, Misc: m}, nil
}

func sortedKeys(s Section) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
