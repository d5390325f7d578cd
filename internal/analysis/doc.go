// Package analysis turns sampled density decay into the quantities used to
// read off directed-percolation scaling:
//
//   - [Filter]: drop empty samples and the early transient
//   - [Rescale]: collapse curves with the DP exponents
//   - [Trend]: the critical power law t^-δ through the first sample
//   - [DecayExponent]: log-log least-squares slope
//
// # Data Collapse
//
// Near the critical point a_c the mean density obeys ρ(t) ≈ t^-δ f(Δ t^ν∥),
// with Δ = |a - a_c| and δ = β/ν∥. Plotting ρ t^(β/ν∥) against Δ t^ν∥ puts
// every run of an ensemble on one of two branches:
//
//	x, y := analysis.Rescale(t, rho, analysis.Distance(a, ac, 5), analysis.ExponentsFrom(info.Analysis))
package analysis
