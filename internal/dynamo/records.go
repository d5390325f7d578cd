package dynamo

import "slices"

// Parameters is the physical parameter record of one run. It is immutable
// once the run starts; holders other than the caller only read it.
//
// Every structural field added here must also reach naming.Fingerprint or
// the full-form name, otherwise distinct records can share a name.
type Parameters struct {
	Linear    float64
	Quadratic float64
	Diffusion float64
	Noise     float64

	TFinal     float64
	Dx         float64
	Dt         float64
	RandomSeed int

	GridDimension      GridDimension
	GridSize           []int
	GridTopologies     []GridTopology
	BoundaryConditions []BoundaryCondition
	BCValues           []float64
	InitialCondition   InitialCondition
	ICValues           []float64
	IntegrationMethod  IntegrationMethod
}

func (p Parameters) Clone() Parameters {
	c := p
	c.GridSize = slices.Clone(p.GridSize)
	c.GridTopologies = slices.Clone(p.GridTopologies)
	c.BoundaryConditions = slices.Clone(p.BoundaryConditions)
	c.BCValues = slices.Clone(p.BCValues)
	c.ICValues = slices.Clone(p.ICValues)
	return c
}

// NCells is the number of grid cells, or 0 for an empty grid.
func (p Parameters) NCells() int {
	if len(p.GridSize) == 0 {
		return 0
	}
	n := 1
	for _, s := range p.GridSize {
		n *= s
	}
	return n
}

// Validate checks the structural invariants of the record. It does not judge
// physical plausibility.
func (p Parameters) Validate() error {
	if p.Dt <= 0 {
		return Configf("dt must be positive, got %g", p.Dt)
	}
	if p.Dx <= 0 {
		return Configf("dx must be positive, got %g", p.Dx)
	}
	if p.TFinal <= 0 {
		return Configf("t_final must be positive, got %g", p.TFinal)
	}
	if !p.GridDimension.Valid() {
		return Configf("unknown grid dimension %d", int(p.GridDimension))
	}
	rank := p.GridDimension.Rank()
	if len(p.GridSize) != rank {
		return Configf("grid_size has %d extents for a %s grid", len(p.GridSize), p.GridDimension)
	}
	for i, s := range p.GridSize {
		if s <= 0 {
			return Configf("grid_size[%d] must be positive, got %d", i, s)
		}
	}
	if len(p.GridTopologies) != rank {
		return Configf("grid_topologies has %d entries for a %s grid", len(p.GridTopologies), p.GridDimension)
	}
	for i, g := range p.GridTopologies {
		if !g.Valid() {
			return Configf("grid_topologies[%d] is unknown", i)
		}
	}
	if len(p.BoundaryConditions) != 2*rank {
		return Configf("boundary_conditions has %d entries, want %d", len(p.BoundaryConditions), 2*rank)
	}
	for i, b := range p.BoundaryConditions {
		if !b.Valid() {
			return Configf("boundary_conditions[%d] is unknown", i)
		}
	}
	if len(p.BCValues) != len(p.BoundaryConditions) {
		return Configf("bc_values has %d entries, want %d", len(p.BCValues), len(p.BoundaryConditions))
	}
	if !p.InitialCondition.Valid() {
		return Configf("unknown initial condition %d", int(p.InitialCondition))
	}
	if !p.IntegrationMethod.Valid() {
		return Configf("unknown integration method %d", int(p.IntegrationMethod))
	}
	return nil
}

// Analysis keys.
const (
	KeyAC     = "a_c"
	KeyBeta   = "dp_beta"
	KeyNuPerp = "dp_nu_pp"
	KeyNuPar  = "dp_nu_ll"
	KeyDelta  = "dp_delta"
	KeyZ      = "dp_z"
)

// DP universality-class exponents, Henkel et al. (2008).
var dpExponents = map[string]float64{
	KeyBeta:   0.5834,
	KeyNuPerp: 0.7333,
	KeyNuPar:  1.2950,
	KeyDelta:  0.4505,
	KeyZ:      1.7660,
}

// Analysis maps derived or theoretical quantities to values.
type Analysis map[string]float64

// NewAnalysis returns the literature constants plus the critical-point
// estimate ac.
func NewAnalysis(ac float64) Analysis {
	a := Analysis{KeyAC: ac}
	a.WithExponents()
	return a
}

// WithExponents (re)sets the literature constants, keeping caller estimates.
func (a Analysis) WithExponents() Analysis {
	for k, v := range dpExponents {
		a[k] = v
	}
	return a
}

func (a Analysis) Clone() Analysis {
	c := make(Analysis, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Misc is run bookkeeping. The run controller and persistence manager fill
// it in as the run progresses; it is frozen once saved.
type Misc struct {
	Name            string
	Path            []string
	EngineVersion   string
	DateTime        string
	NRoundDt        int
	NSegments       int
	NEpochs         int
	ComputationTime string
	BatchID         string

	DoExportGraphs      bool
	DoExportData        bool
	DoExportComboGraphs bool
	DoExportComboData   bool

	NSims    int
	DaRange  float64
	NDigits  int
	NWorkers int
}

func (m Misc) Clone() Misc {
	c := m
	c.Path = slices.Clone(m.Path)
	return c
}

// Info bundles the three records of one run or one ensemble.
type Info struct {
	Parameters Parameters
	Analysis   Analysis
	Misc       Misc
}

func (i Info) Clone() Info {
	return Info{
		Parameters: i.Parameters.Clone(),
		Analysis:   i.Analysis.Clone(),
		Misc:       i.Misc.Clone(),
	}
}
