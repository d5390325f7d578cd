// Package viz builds the figures of a run or an ensemble and renders them.
//
//   - [Viz]: ordered figure registry, one per run or ensemble
//   - [Figure]: a line plot or a density image, rendered on demand
//   - [Config]: explicit render settings, passed to every Render call
//   - [Canvas]: braille pixel canvas for terminal density images
//
// # Formats
//
// Figures render to "svg" through package export, and to "txt" through
// asciigraph (line plots) or the braille canvas (density images).
//
//	g := viz.New()
//	g.PlotMeanDensityEvolution("rho_t_loglog", info, series, viz.PlotOptions{})
//	for _, f := range g.Figures() {
//	    f.Render(w, "svg", viz.DefaultConfig())
//	}
package viz
