package naming

import (
	"regexp"
	"strings"
	"testing"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario() dynamo.Parameters {
	return dynamo.Parameters{
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
		ICValues:           []float64{0, 0, 0},
		IntegrationMethod:  dynamo.RungeKutta,
	}
}

func TestDirName(t *testing.T) {
	tests := []struct {
		linear float64
		want   string
	}{
		{1.1895, "a1p18950"},
		{-0.02, "aneg0p02000"},
		{0, "a0p00000"},
		{1.8857, "a1p88570"},
		{12.345678, "a12p34568"},
	}

	for _, tt := range tests {
		p := scenario()
		p.Linear = tt.linear
		if got := DirName(p); got != tt.want {
			t.Errorf("DirName(linear=%v) = %q, want %q", tt.linear, got, tt.want)
		}
		if got := Name(p, nil, Options{Dir: true, Parent: true}); got != tt.want {
			t.Errorf("Name(Dir) = %q, want %q", got, tt.want)
		}
	}
}

func TestToken(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1p0"},
		{0.04, "0p04"},
		{-2.5, "neg2p5"},
		{0.1, "0p1"},
		{100, "100p0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Token(tt.in), "Token(%v)", tt.in)
	}
}

func TestFullName(t *testing.T) {
	p := scenario()
	name := FullName(p)

	pattern := regexp.MustCompile(`^a1p18950_b1p0_D0p04_eta1p0_x10_y5_dx1p0_dt0p1_h[0-9a-f]{12}$`)
	assert.Regexp(t, pattern, name)
	assert.NotContains(t, name, ".")
	assert.NotContains(t, name, "-")
	assert.NotContains(t, name, "/")
}

func TestNameOptions(t *testing.T) {
	p := scenario()
	te := 12.5

	withField := Name(p, nil, Options{FieldName: "rho"})
	assert.True(t, strings.HasPrefix(withField, "rho_a1p18950_"))

	withTime := Name(p, nil, Options{TEpoch: &te, Suffix: "_final"})
	assert.True(t, strings.HasSuffix(withTime, "_t00012p50_final"), withTime)

	parent := ParentName(p)
	assert.True(t, strings.HasPrefix(parent, "b1p0_"), parent)
	assert.NotContains(t, parent, "a1p18950")
}

func TestNameIsPure(t *testing.T) {
	p := scenario()
	first := FullName(p)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, FullName(p.Clone()))
	}
	// Golden fingerprint: stable across processes and builds.
	assert.Equal(t, Fingerprint(scenario()), Fingerprint(p))
}

func TestParentSharedAcrossLinearSweep(t *testing.T) {
	a := scenario()
	b := scenario()
	b.Linear = 1.5
	b.RandomSeed = 7

	assert.Equal(t, ParentName(a), ParentName(b))
	assert.NotEqual(t, FullName(a), FullName(b))
	assert.NotEqual(t, DirName(a), DirName(b))
}

func TestDistinctRecordsDistinctNames(t *testing.T) {
	mutations := map[string]func(p *dynamo.Parameters){
		"linear":      func(p *dynamo.Parameters) { p.Linear = 1.2 },
		"linear_6th":  func(p *dynamo.Parameters) { p.Linear = 1.189501 },
		"quadratic":   func(p *dynamo.Parameters) { p.Quadratic = 2 },
		"diffusion":   func(p *dynamo.Parameters) { p.Diffusion = 0.05 },
		"noise":       func(p *dynamo.Parameters) { p.Noise = 0.5 },
		"t_final":     func(p *dynamo.Parameters) { p.TFinal = 5 },
		"dx":          func(p *dynamo.Parameters) { p.Dx = 0.5 },
		"dt":          func(p *dynamo.Parameters) { p.Dt = 0.05 },
		"grid_size":   func(p *dynamo.Parameters) { p.GridSize = []int{10, 6} },
		"topology":    func(p *dynamo.Parameters) { p.GridTopologies = []dynamo.GridTopology{dynamo.Bounded, dynamo.Periodic} },
		"boundary":    func(p *dynamo.Parameters) { p.BoundaryConditions[0] = dynamo.FixedFlux },
		"bc_values":   func(p *dynamo.Parameters) { p.BCValues[2] = 0.1 },
		"initial":     func(p *dynamo.Parameters) { p.InitialCondition = dynamo.SingleSeed },
		"ic_values":   func(p *dynamo.Parameters) { p.ICValues[0] = 0.5 },
		"integration": func(p *dynamo.Parameters) { p.IntegrationMethod = dynamo.Euler },
		"dimension": func(p *dynamo.Parameters) {
			p.GridDimension = dynamo.D1
			p.GridSize = []int{10}
		},
	}

	base := FullName(scenario())
	seen := map[string]string{base: "base"}
	for field, mutate := range mutations {
		p := scenario()
		mutate(&p)
		name := FullName(p)
		if other, dup := seen[name]; dup {
			t.Errorf("%s collides with %s: %s", field, other, name)
		}
		seen[name] = field
	}
}

func TestLinearBeyondFiveDigits(t *testing.T) {
	a := scenario()
	a.Linear = 1.189501
	b := scenario()
	b.Linear = 1.189502

	assert.Equal(t, DirName(a), DirName(b))
	assert.NotEqual(t, FullName(a), FullName(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, ParentName(a), ParentName(b))
}

func TestSeedNotInName(t *testing.T) {
	a := scenario()
	b := scenario()
	b.RandomSeed = 99

	assert.Equal(t, FullName(a), FullName(b))
	assert.Equal(t, "rs1", SeedDir(a))
	assert.Equal(t, "rs99", SeedDir(b))
}
