package engine

import (
	"slices"
	"sync/atomic"

	"github.com/san-kum/dplsim/internal/dynamo"
)

const FakeVersion = "fake/1.0.0"

// Fake is a scripted stepper for tests. It advances time by Dt per step and
// reports a mean density of Rho(t), or 1/(1+t) when Rho is nil.
//
// Setting FailOn to "initialize", "run" or "postprocess" makes that call
// return false once it has succeeded FailAfter times.
type Fake struct {
	Epochs    int
	Dt        float64
	Cells     int
	Rho       func(t float64) float64
	FailOn    string
	FailAfter int

	calls       map[string]int
	steps       atomic.Int64
	epoch       int
	tEpochs     []float64
	means       []float64
	outT        []float64
	outMeans    []float64
	initialized bool
}

func (f *Fake) fail(call string) bool {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls[call]
	f.calls[call] = n + 1
	return f.FailOn == call && n >= f.FailAfter
}

// Calls reports how many times call was made.
func (f *Fake) Calls(call string) int { return f.calls[call] }

// Steps reports the total number of epochs advanced. Safe to read while
// another goroutine drives the stepper.
func (f *Fake) Steps() int { return int(f.steps.Load()) }

func (f *Fake) density(t float64) float64 {
	if f.Rho != nil {
		return f.Rho(t)
	}
	return 1 / (1 + t)
}

func (f *Fake) Initialize(nDecimals int) bool {
	if f.fail("initialize") {
		return false
	}
	if f.Dt == 0 {
		f.Dt = 0.1
	}
	if f.Cells == 0 {
		f.Cells = 1
	}
	f.epoch = 0
	f.tEpochs = []float64{0}
	f.means = []float64{f.density(0)}
	f.initialized = true
	return true
}

func (f *Fake) Run(nSteps int) bool {
	if f.fail("run") || !f.initialized || f.epoch+nSteps > f.Epochs-1 {
		return false
	}
	for i := 0; i < nSteps; i++ {
		f.epoch++
		t := Round(float64(f.epoch)*f.Dt, 9)
		f.tEpochs = append(f.tEpochs, t)
		f.means = append(f.means, f.density(t))
		f.steps.Add(1)
	}
	return true
}

func (f *Fake) Postprocess() bool {
	if f.fail("postprocess") || !f.initialized {
		return false
	}
	f.outT = slices.Clone(f.tEpochs)
	f.outMeans = slices.Clone(f.means)
	return true
}

func (f *Fake) NEpochs() int { return f.Epochs }

func (f *Fake) TCurrentEpoch() float64 {
	if len(f.tEpochs) == 0 {
		return 0
	}
	return f.tEpochs[len(f.tEpochs)-1]
}

func (f *Fake) TEpochs() []float64       { return f.outT }
func (f *Fake) MeanDensities() []float64 { return f.outMeans }

func (f *Fake) Density() []float64 {
	d := make([]float64, f.Cells)
	for i := range d {
		d[i] = f.density(f.TCurrentEpoch())
	}
	return d
}

func (f *Fake) Version() string { return FakeVersion }

var _ dynamo.Stepper = (*Fake)(nil)
