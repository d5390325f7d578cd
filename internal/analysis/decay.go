package analysis

import (
	"errors"
	"math"

	"github.com/san-kum/dplsim/internal/dynamo"
)

// MinTime is the default lower time cut for decay plots and fits.
const MinTime = 0.5

type Exponents struct {
	Beta  float64
	NuPar float64
	Delta float64
}

// ExponentsFrom reads the exponents from an analysis record, falling back
// to the literature values for missing keys.
func ExponentsFrom(a dynamo.Analysis) Exponents {
	lit := dynamo.NewAnalysis(0)
	get := func(key string) float64 {
		if v, ok := a[key]; ok {
			return v
		}
		return lit[key]
	}
	return Exponents{
		Beta:  get(dynamo.KeyBeta),
		NuPar: get(dynamo.KeyNuPar),
		Delta: get(dynamo.KeyDelta),
	}
}

// Filter keeps samples with positive density at times t >= tMin.
func Filter(ts dynamo.TimeSeries, tMin float64) (t, rho []float64) {
	for i, ti := range ts.TEpochs {
		if i >= len(ts.MeanDensities) {
			break
		}
		if r := ts.MeanDensities[i]; r > 0 && ti >= tMin {
			t = append(t, ti)
			rho = append(rho, r)
		}
	}
	return t, rho
}

// Distance is |linear - ac|, or 10^-nDigits when the two coincide so that
// rescaled time stays positive.
func Distance(linear, ac float64, nDigits int) float64 {
	d := math.Abs(linear - ac)
	if d > 1e-20 {
		return d
	}
	return math.Pow(10, -float64(nDigits))
}

// Rescale maps (t, ρ) to (Δ t^ν∥, ρ t^(β/ν∥)).
func Rescale(t, rho []float64, delta float64, ex Exponents) (x, y []float64) {
	x = make([]float64, len(t))
	y = make([]float64, len(t))
	for i := range t {
		x[i] = delta * math.Pow(t[i], ex.NuPar)
		y[i] = rho[i] * math.Pow(t[i], ex.Beta/ex.NuPar)
	}
	return x, y
}

// TrendTimes spans t0 to max(t1, 10^5) in steps of 0.1 decades.
func TrendTimes(t0, t1 float64) []float64 {
	if t0 <= 0 {
		return nil
	}
	lo := math.Log10(t0)
	hi := math.Max(5, math.Log10(t1)) + 0.1
	var out []float64
	for i := 0; lo+0.1*float64(i) < hi; i++ {
		out = append(out, math.Pow(10, lo+0.1*float64(i)))
	}
	return out
}

// Trend is the critical power law scaled to pass through rho0.
func Trend(t []float64, rho0, delta float64) []float64 {
	out := make([]float64, len(t))
	for i, ti := range t {
		out[i] = math.Pow(ti, -delta) * rho0
	}
	return out
}

var ErrTooFewPoints = errors.New("analysis: need at least two positive samples")

// DecayExponent fits log ρ = c - δ log t by least squares and returns δ and
// the prefactor e^c. Non-positive samples are skipped.
func DecayExponent(t, rho []float64) (delta, prefactor float64, err error) {
	var n, sx, sy, sxx, sxy float64
	for i := range t {
		if i >= len(rho) || t[i] <= 0 || rho[i] <= 0 {
			continue
		}
		x, y := math.Log(t[i]), math.Log(rho[i])
		n++
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if n < 2 || den == 0 {
		return 0, 0, ErrTooFewPoints
	}
	slope := (n*sxy - sx*sy) / den
	intercept := (sy - slope*sx) / n
	return -slope, math.Exp(intercept), nil
}
