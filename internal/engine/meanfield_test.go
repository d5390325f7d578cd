package engine

import (
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
		ICValues:           []float64{0, 1},
		IntegrationMethod:  dynamo.RungeKutta,
	}
}

func TestCountEpochs(t *testing.T) {
	tests := []struct {
		tFinal, dt float64
		n          int
		want       int
	}{
		{2.5, 0.1, 6, 26},
		{2.5, 0.1, 1, 26},
		{1, 0.25, 2, 5},
		{20 - 1e-10, 0.01, 5, 2001},
		{1, 0.001, 2, 0},
	}
	for _, tt := range tests {
		got := CountEpochs(tt.tFinal, tt.dt, tt.n)
		if got != tt.want {
			t.Errorf("CountEpochs(%v, %v, %d) = %d, want %d", tt.tFinal, tt.dt, tt.n, got, tt.want)
		}
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.3, Round(0.1+0.2, 6))
	assert.Equal(t, 2.5, Round(2.4999999999, 6))
	assert.Equal(t, -1.24, Round(-1.2351, 2))
}

func TestMeanFieldSegments(t *testing.T) {
	m := NewMeanField(scenario())
	require.True(t, m.Initialize(6))
	require.Equal(t, 26, m.NEpochs())

	require.True(t, m.Postprocess())
	assert.Equal(t, []float64{0}, m.TEpochs())
	assert.InDelta(t, 0.5, m.MeanDensities()[0], 1e-12)

	for i := 0; i < 5; i++ {
		require.True(t, m.Run(5), "segment %d", i)
	}
	require.True(t, m.Postprocess())
	assert.InDelta(t, 2.5, m.TCurrentEpoch(), 1e-12)
	assert.Len(t, m.TEpochs(), 26)
	assert.Len(t, m.MeanDensities(), 26)
	assert.Len(t, m.Density(), 50)

	ts := m.TEpochs()
	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1])
	}

	assert.False(t, m.Run(1), "past the last epoch")
}

func TestMeanFieldApproachesFixedPoint(t *testing.T) {
	for _, im := range dynamo.IntegrationMethods {
		p := scenario()
		p.Linear, p.Quadratic = 1, 2
		p.TFinal = 20
		p.IntegrationMethod = im
		p.InitialCondition = dynamo.ConstantValue
		p.ICValues = []float64{0.05}

		m := NewMeanField(p)
		require.True(t, m.Initialize(6))
		require.True(t, m.Run(m.NEpochs()-1))
		require.True(t, m.Postprocess())

		means := m.MeanDensities()
		assert.InDelta(t, 0.5, means[len(means)-1], 1e-3, "%s", im)
	}
}

func TestMeanFieldSubcriticalDecays(t *testing.T) {
	p := scenario()
	p.Linear = -0.5
	p.TFinal = 10

	m := NewMeanField(p)
	require.True(t, m.Initialize(6))
	require.True(t, m.Run(m.NEpochs()-1))
	require.True(t, m.Postprocess())

	means := m.MeanDensities()
	assert.Less(t, means[len(means)-1], 0.01)
	for i := 1; i < len(means); i++ {
		assert.LessOrEqual(t, means[i], means[i-1])
	}
}

func TestMeanFieldDiffusionConservesMass(t *testing.T) {
	p := scenario()
	p.Linear, p.Quadratic, p.Diffusion = 0, 0, 0.2
	p.InitialCondition = dynamo.SingleSeed
	p.ICValues = []float64{50, 3, 2}
	p.IntegrationMethod = dynamo.Euler

	m := NewMeanField(p)
	require.True(t, m.Initialize(6))
	require.True(t, m.Run(m.NEpochs()-1))
	require.True(t, m.Postprocess())

	assert.InDelta(t, 1.0, m.MeanDensities()[0], 1e-12)
	assert.InDelta(t, 1.0, m.MeanDensities()[m.NEpochs()-1], 1e-9)

	d := m.Density()
	seed := d[3+10*2]
	assert.Less(t, seed, 50.0)
	assert.Greater(t, d[4+10*2], 0.0)
}

func TestMeanFieldFixedValueBoundary(t *testing.T) {
	p := scenario()
	p.Linear, p.Quadratic, p.Diffusion = 0, 0, 0.5
	p.GridDimension = dynamo.D1
	p.GridSize = []int{8}
	p.GridTopologies = []dynamo.GridTopology{dynamo.Bounded}
	p.BoundaryConditions = []dynamo.BoundaryCondition{dynamo.FixedValue, dynamo.Floating}
	p.BCValues = []float64{1, 0}
	p.InitialCondition = dynamo.ConstantValue
	p.ICValues = []float64{0}

	m := NewMeanField(p)
	require.True(t, m.Initialize(6))
	require.True(t, m.Run(m.NEpochs()-1))
	require.True(t, m.Postprocess())

	d := m.Density()
	assert.Greater(t, d[0], d[7])
	assert.Greater(t, d[7], 0.0)
}

func TestMeanFieldFailures(t *testing.T) {
	m := NewMeanField(scenario())
	assert.False(t, m.Run(1), "run before initialize")
	assert.False(t, m.Postprocess(), "postprocess before initialize")

	bad := scenario()
	bad.GridSize = []int{10}
	assert.False(t, NewMeanField(bad).Initialize(6))

	seed := scenario()
	seed.InitialCondition = dynamo.SingleSeed
	seed.ICValues = []float64{1, 10, 0}
	assert.False(t, NewMeanField(seed).Initialize(6), "seed cell outside grid")

	tiny := scenario()
	tiny.Dt = 0.0001
	assert.False(t, NewMeanField(tiny).Initialize(2), "dt rounds to zero")

	assert.False(t, NewMeanField(scenario()).Initialize(-1))
}

func TestFakeFailureInjection(t *testing.T) {
	f := &Fake{Epochs: 11, FailOn: "run", FailAfter: 1}
	require.True(t, f.Initialize(6))
	require.True(t, f.Run(5))
	assert.False(t, f.Run(5))
	assert.Equal(t, 2, f.Calls("run"))
	assert.Equal(t, 5, f.Steps())
}
