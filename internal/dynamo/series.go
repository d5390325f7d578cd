package dynamo

import (
	"fmt"
	"slices"
)

// TimeSeries holds epoch times and grid-mean densities sampled at segment
// boundaries. Times are strictly increasing and both slices have equal length.
type TimeSeries struct {
	TEpochs       []float64
	MeanDensities []float64
}

func NewTimeSeries(capacity int) TimeSeries {
	return TimeSeries{
		TEpochs:       make([]float64, 0, capacity),
		MeanDensities: make([]float64, 0, capacity),
	}
}

func (ts TimeSeries) Len() int { return len(ts.TEpochs) }

// Append adds one sample. It refuses a time that does not advance.
func (ts *TimeSeries) Append(t, rho float64) error {
	if n := len(ts.TEpochs); n > 0 && t <= ts.TEpochs[n-1] {
		return fmt.Errorf("epoch time %g does not advance past %g", t, ts.TEpochs[n-1])
	}
	ts.TEpochs = append(ts.TEpochs, t)
	ts.MeanDensities = append(ts.MeanDensities, rho)
	return nil
}

func (ts TimeSeries) Validate() error {
	if len(ts.TEpochs) != len(ts.MeanDensities) {
		return fmt.Errorf("t_epochs has %d samples, mean_densities has %d", len(ts.TEpochs), len(ts.MeanDensities))
	}
	for i := 1; i < len(ts.TEpochs); i++ {
		if ts.TEpochs[i] <= ts.TEpochs[i-1] {
			return fmt.Errorf("t_epochs not strictly increasing at index %d", i)
		}
	}
	return nil
}

func (ts TimeSeries) Clone() TimeSeries {
	return TimeSeries{
		TEpochs:       slices.Clone(ts.TEpochs),
		MeanDensities: slices.Clone(ts.MeanDensities),
	}
}
