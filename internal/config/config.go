package config

import (
	"fmt"
	"maps"
	"os"

	"github.com/san-kum/dplsim/internal/codec"
	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/viz"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEngine   = "meanfield"
	DefaultOutput   = "output"
	DefaultAC       = 1.8857
	DefaultNRoundDt = 6
	DefaultSegments = 5
)

// Config is one info file: run settings at the top level plus the
// Parameters, Analysis and Misc sections of the records.
type Config struct {
	Engine      string     `yaml:"engine"`
	Output      string     `yaml:"output"`
	Catalog     string     `yaml:"catalog,omitempty"`
	CodecPolicy string     `yaml:"codec_policy"`
	Progress    bool       `yaml:"progress"`
	Snapshots   bool       `yaml:"snapshots"`
	Viz         viz.Config `yaml:"viz"`

	Doc codec.Document `yaml:"-"`
}

// DefaultInfo is a small 2-D periodic run below the critical point.
func DefaultInfo() dynamo.Info {
	return dynamo.Info{
		Parameters: dynamo.Parameters{
			Linear:             1.1895,
			Quadratic:          1.0,
			Diffusion:          0.04,
			Noise:              1.0,
			TFinal:             2.5,
			Dx:                 1,
			Dt:                 0.1,
			RandomSeed:         1,
			GridDimension:      dynamo.D2,
			GridSize:           []int{10, 5},
			GridTopologies:     []dynamo.GridTopology{dynamo.Periodic, dynamo.Periodic},
			BoundaryConditions: []dynamo.BoundaryCondition{dynamo.Floating, dynamo.Floating, dynamo.Floating, dynamo.Floating},
			BCValues:           []float64{0, 0, 0, 0},
			InitialCondition:   dynamo.RandomUniform,
			ICValues:           []float64{0, 1},
			IntegrationMethod:  dynamo.RungeKutta,
		},
		Analysis: dynamo.Analysis{dynamo.KeyAC: DefaultAC},
		Misc: dynamo.Misc{
			Path:           []string{"default"},
			NRoundDt:       DefaultNRoundDt,
			NSegments:      DefaultSegments,
			DoExportGraphs: true,
			DoExportData:   true,
			NSims:          4,
			DaRange:        0.1,
			NDigits:        5,
		},
	}
}

func DefaultConfig() *Config {
	cfg := &Config{
		Engine:      DefaultEngine,
		Output:      DefaultOutput,
		CodecPolicy: codec.Lenient.String(),
		Viz:         viz.DefaultConfig(),
	}
	if err := cfg.SetInfo(DefaultInfo(), nil); err != nil {
		panic(fmt.Sprintf("default info does not encode: %v", err))
	}
	return cfg
}

// Codec returns a codec with the configured unknown-value policy.
func (c *Config) Codec(logger *zap.Logger) (*codec.Codec, error) {
	var p codec.Policy
	switch c.CodecPolicy {
	case "", "lenient":
		p = codec.Lenient
	case "strict":
		p = codec.Strict
	default:
		return nil, dynamo.Configf("unknown codec policy %q", c.CodecPolicy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return codec.New(codec.WithPolicy(p), codec.WithLogger(logger)), nil
}

// Info decodes the record sections.
func (c *Config) Info(logger *zap.Logger) (dynamo.Info, error) {
	cd, err := c.Codec(logger)
	if err != nil {
		return dynamo.Info{}, err
	}
	return cd.DecodeInfo(c.Doc)
}

// SetInfo replaces the record sections with info.
func (c *Config) SetInfo(info dynamo.Info, logger *zap.Logger) error {
	cd, err := c.Codec(logger)
	if err != nil {
		return err
	}
	doc, err := cd.EncodeInfo(info)
	if err != nil {
		return err
	}
	c.Doc = doc
	return nil
}

func (c *Config) Validate() error {
	if c.Engine == "" {
		return dynamo.Configf("engine is required")
	}
	if c.Output == "" {
		return dynamo.Configf("output directory is required")
	}
	if err := c.Viz.Validate(); err != nil {
		return dynamo.Configf("viz: %v", err)
	}
	return nil
}

// layout is the on-disk shape: settings and record sections side by side.
type layout struct {
	Config         `yaml:",inline"`
	codec.Document `yaml:",inline"`
}

// Load reads path over DefaultConfig. Keys present in a record section
// replace the default value of that key only.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, dynamo.Configf("%s: %v", path, err)
	}
	var doc codec.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dynamo.Configf("%s: %v", path, err)
	}
	maps.Copy(cfg.Doc.Parameters, doc.Parameters)
	maps.Copy(cfg.Doc.Analysis, doc.Analysis)
	maps.Copy(cfg.Doc.Misc, doc.Misc)
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(layout{Config: *cfg, Document: cfg.Doc})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
