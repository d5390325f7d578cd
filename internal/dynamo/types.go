package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// System is a deterministic rate equation dX/dt = f(X, t).
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(sys System, x State, t float64, dt float64) State
}

// Stepper is the capability surface of an external stepping engine. Every
// bool-returning call reports failure by returning false; callers turn that
// into ErrEngineFailure.
type Stepper interface {
	// Initialize prepares the grid and counts epochs, rounding the running
	// time to nDecimals after every step.
	Initialize(nDecimals int) bool
	Run(nSteps int) bool
	Postprocess() bool
	// NEpochs is the total number of epochs, the initial one included.
	NEpochs() int
	TCurrentEpoch() float64
	// TEpochs and MeanDensities cover epochs 0 through the current one as
	// of the last Postprocess.
	TEpochs() []float64
	MeanDensities() []float64
	Density() []float64
	Version() string
}
