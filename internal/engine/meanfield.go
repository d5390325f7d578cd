// Package engine provides steppers that advance a density grid epoch by
// epoch behind the dynamo.Stepper surface.
//
// MeanField integrates the deterministic mean-field rate equation of
// directed percolation. It draws no random numbers: a random initial
// condition starts every cell at the distribution's expected value, and the
// noise coefficient is carried but not applied.
package engine

import (
	"math"
	"slices"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/integrators"
)

const MeanFieldVersion = "meanfield/1.0.0"

type MeanField struct {
	p         dynamo.Parameters
	sys       *rateEquation
	integ     dynamo.Integrator
	nDecimals int
	nEpochs   int

	iEpoch int
	t      float64
	tNext  float64
	rho    dynamo.State

	tEpochs []float64
	means   []float64

	// Postprocessed copies handed to callers.
	outT, outMeans, outDensity []float64

	initialized bool
}

func NewMeanField(p dynamo.Parameters) *MeanField {
	return &MeanField{p: p.Clone()}
}

// Round rounds x half away from zero to n decimal digits.
func Round(x float64, n int) float64 {
	m := math.Pow(10, float64(n))
	return math.Round(x*m) / m
}

// CountEpochs counts the epochs of a run from 0 to tFinal, the initial one
// included, summing dt and rounding to nDecimals after every step so that
// accumulated error cannot add or drop an epoch. It returns 0 when dt rounds
// to zero.
func CountEpochs(tFinal, dt float64, nDecimals int) int {
	if Round(dt, nDecimals) <= 0 {
		return 0
	}
	n := 0
	for t := 0.0; t < tFinal; t = Round(t+dt, nDecimals) {
		n++
	}
	return n + 1
}

func (m *MeanField) Initialize(nDecimals int) bool {
	if nDecimals < 0 || m.p.Validate() != nil {
		return false
	}
	integ, err := integrators.For(m.p.IntegrationMethod)
	if err != nil {
		return false
	}
	nEpochs := CountEpochs(m.p.TFinal, m.p.Dt, nDecimals)
	if nEpochs == 0 {
		return false
	}

	g := newGrid(m.p)
	rho, ok := initialDensity(m.p, g)
	if !ok {
		return false
	}

	m.sys = &rateEquation{
		linear:    m.p.Linear,
		quadratic: m.p.Quadratic,
		diffusion: m.p.Diffusion,
		g:         g,
	}
	m.integ = integ
	m.nDecimals = nDecimals
	m.nEpochs = nEpochs
	m.iEpoch = 0
	m.t = 0
	m.tNext = Round(m.p.Dt, nDecimals)
	m.rho = rho
	m.tEpochs = append(make([]float64, 0, nEpochs), 0)
	m.means = append(make([]float64, 0, nEpochs), rho.Mean())
	m.outT, m.outMeans, m.outDensity = nil, nil, nil
	m.initialized = true
	return true
}

func initialDensity(p dynamo.Parameters, g *grid) (dynamo.State, bool) {
	rho := make(dynamo.State, g.cells())
	ic := p.ICValues
	fill := func(v float64) {
		for i := range rho {
			rho[i] = v
		}
	}

	switch p.InitialCondition {
	case dynamo.RandomUniform:
		if len(ic) < 2 {
			return nil, false
		}
		fill(0.5 * (ic[0] + ic[1]))
	case dynamo.RandomGaussian, dynamo.ConstantValue:
		if len(ic) < 1 {
			return nil, false
		}
		fill(ic[0])
	case dynamo.SingleSeed:
		if len(ic) < 1+g.rank {
			return nil, false
		}
		var c [3]int
		for axis := 0; axis < g.rank; axis++ {
			c[axis] = int(ic[1+axis])
			if c[axis] < 0 || c[axis] >= g.n[axis] {
				return nil, false
			}
		}
		rho[g.index(c)] = ic[0]
	default:
		return nil, false
	}
	return rho, true
}

// Run advances nSteps epochs. It fails when not initialized or when the
// steps would pass the last epoch.
func (m *MeanField) Run(nSteps int) bool {
	if !m.initialized || nSteps < 0 || m.iEpoch+nSteps > m.nEpochs-1 {
		return false
	}
	for i := 0; i < nSteps; i++ {
		next := m.integ.Step(m.sys, m.rho, m.t, m.p.Dt)
		for j, v := range next {
			if v < 0 {
				next[j] = 0
			}
		}
		if !next.IsValid() {
			return false
		}
		m.rho = next
		m.iEpoch++
		m.t = m.tNext
		m.tNext = Round(m.tNext+m.p.Dt, m.nDecimals)
		m.tEpochs = append(m.tEpochs, m.t)
		m.means = append(m.means, m.rho.Mean())
	}
	return true
}

// Postprocess publishes copies of the series so far and of the current grid.
func (m *MeanField) Postprocess() bool {
	if !m.initialized {
		return false
	}
	m.outT = slices.Clone(m.tEpochs)
	m.outMeans = slices.Clone(m.means)
	m.outDensity = slices.Clone(m.rho)
	return true
}

func (m *MeanField) NEpochs() int             { return m.nEpochs }
func (m *MeanField) TCurrentEpoch() float64   { return m.t }
func (m *MeanField) TEpochs() []float64       { return m.outT }
func (m *MeanField) MeanDensities() []float64 { return m.outMeans }
func (m *MeanField) Density() []float64       { return m.outDensity }
func (m *MeanField) Version() string          { return MeanFieldVersion }

var _ dynamo.Stepper = (*MeanField)(nil)
