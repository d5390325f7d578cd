package viz

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dplsim/internal/analysis"
	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/export"
)

type Kind int

const (
	Lines Kind = iota
	Image
)

// Figure is a drawable description; nothing is rendered until Render.
type Figure struct {
	Name string
	Kind Kind

	Plot     export.LinePlot
	Rescaled bool

	Grid  export.Heatmap
	Shape []int
}

// Viz is an ordered registry of figures keyed by name. Re-plotting a name
// replaces the figure in place.
type Viz struct {
	figures []*Figure
	index   map[string]int
}

func New() *Viz {
	return &Viz{index: make(map[string]int)}
}

func (v *Viz) add(f *Figure) *Figure {
	if i, ok := v.index[f.Name]; ok {
		v.figures[i] = f
		return f
	}
	v.index[f.Name] = len(v.figures)
	v.figures = append(v.figures, f)
	return f
}

// Figures returns the figures in the order they were first added.
func (v *Viz) Figures() []*Figure {
	if v == nil {
		return nil
	}
	out := make([]*Figure, len(v.figures))
	copy(out, v.figures)
	return out
}

func (v *Viz) Figure(name string) (*Figure, bool) {
	i, ok := v.index[name]
	if !ok {
		return nil, false
	}
	return v.figures[i], true
}

type PlotOptions struct {
	// Rescale plots the DP data collapse instead of raw decay.
	Rescale bool
	// YScale multiplies the trend line; 0 means 1.
	YScale float64
	// Linear axes instead of log-log.
	Linear bool
	// LabelDelta labels ensemble curves with 100(a-a_c) instead of a.
	LabelDelta bool
	// NDigits sets the stand-in distance at the critical point; 0 means 5.
	NDigits int
}

func (o PlotOptions) digits() int {
	if o.NDigits == 0 {
		return 5
	}
	return o.NDigits
}

// Title summarizes a run's parameters on two lines.
func Title(p dynamo.Parameters, a dynamo.Analysis, omitLinear bool) string {
	var b strings.Builder
	if omitLinear {
		fmt.Fprintf(&b, "a_c≈%.5f  ", a[dynamo.KeyAC])
	} else {
		fmt.Fprintf(&b, "a=%.5f  ", p.Linear)
	}
	fmt.Fprintf(&b, "b=%g  D=%g  η=%g", p.Quadratic, p.Diffusion, p.Noise)
	if !omitLinear {
		fmt.Fprintf(&b, "  rs=%d  a_c≈%.5f", p.RandomSeed, a[dynamo.KeyAC])
	}
	b.WriteString("\n")
	for i, n := range p.GridSize {
		fmt.Fprintf(&b, "n%c=%d  ", "xyz"[i], n)
	}
	fmt.Fprintf(&b, "Δx=%g  Δt=%g  gt:%v  bc:%v", p.Dx, p.Dt, p.GridTopologies, p.BoundaryConditions)
	return b.String()
}

func curve(ts dynamo.TimeSeries, p dynamo.Parameters, a dynamo.Analysis, opts PlotOptions) (x, y []float64) {
	t, rho := analysis.Filter(ts, analysis.MinTime)
	if !opts.Rescale {
		return t, rho
	}
	d := analysis.Distance(p.Linear, a[dynamo.KeyAC], opts.digits())
	return analysis.Rescale(t, rho, d, analysis.ExponentsFrom(a))
}

func trend(x, y []float64, a dynamo.Analysis, opts PlotOptions) (tx, ty []float64) {
	if len(x) == 0 {
		return nil, nil
	}
	if opts.Linear {
		tx = x
	} else {
		tx = analysis.TrendTimes(x[0], x[len(x)-1])
	}
	scale := opts.YScale
	if scale == 0 {
		scale = 1
	}
	ty = analysis.Trend(tx, y[0]*scale, analysis.ExponentsFrom(a).Delta)
	return tx, ty
}

func labels(rescale bool) (string, string) {
	if rescale {
		return "rescaled time |a-a_c|^ν∥ t", "rescaled grid-mean density ρ t^(β/ν∥)"
	}
	return "time t", "grid-mean density ρ(t)"
}

// PlotMeanDensityEvolution plots one run's density decay. Unless rescaled,
// the critical power law through the first sample is drawn alongside.
func (v *Viz) PlotMeanDensityEvolution(name string, info dynamo.Info, ts dynamo.TimeSeries, opts PlotOptions) *Figure {
	p, a := info.Parameters, info.Analysis
	x, y := curve(ts, p, a, opts)
	xl, yl := labels(opts.Rescale)

	plot := export.LinePlot{
		Title:  Title(p, a, false),
		XLabel: xl,
		YLabel: yl,
		LogX:   !opts.Linear,
		LogY:   !opts.Linear,
		Series: []export.Series{{X: x, Y: y, Color: "#1f4e9c", Width: 0.8}},
	}
	if !opts.Rescale {
		tx, ty := trend(x, y, a, opts)
		plot.Series = append(plot.Series, export.Series{
			Label: "t^-δ", X: tx, Y: ty, Color: "#e07020", Width: 1, Opacity: 0.5,
		})
	}
	return v.add(&Figure{Name: name, Kind: Lines, Plot: plot, Rescaled: opts.Rescale})
}

// MultiplotMeanDensityEvolution overlays every member of an ensemble,
// coloured from sub- to super-critical. When rescaled, members at the
// critical point are left out; otherwise the critical member gets the
// power-law trend.
func (v *Viz) MultiplotMeanDensityEvolution(name string, infos []dynamo.Info, series []dynamo.TimeSeries, opts PlotOptions) *Figure {
	xl, yl := labels(opts.Rescale)
	plot := export.LinePlot{XLabel: xl, YLabel: yl, LogX: !opts.Linear, LogY: !opts.Linear}
	if len(infos) > 0 {
		plot.Title = Title(infos[0].Parameters, infos[0].Analysis, true)
	}

	colors := export.Palette(len(infos))
	for i, info := range infos {
		if i >= len(series) {
			break
		}
		p, a := info.Parameters, info.Analysis
		delta := p.Linear - a[dynamo.KeyAC]
		critical := math.Abs(delta) < 1e-10
		if critical && opts.Rescale {
			continue
		}

		x, y := curve(series[i], p, a, opts)
		label := fmt.Sprintf("%.6f", p.Linear)
		if opts.LabelDelta {
			label = fmt.Sprintf("%.1f", delta*100)
		}
		plot.Series = append(plot.Series, export.Series{
			Label: label, X: x, Y: y, Color: colors[len(colors)-1-i], Width: 0.8, Opacity: 0.7,
		})
		if critical {
			tx, ty := trend(x, y, a, opts)
			plot.Series = append(plot.Series, export.Series{
				X: tx, Y: ty, Color: "#000000", Width: 2, Opacity: 0.4,
			})
		}
	}
	return v.add(&Figure{Name: name, Kind: Lines, Plot: plot, Rescaled: opts.Rescale})
}

// PlotDensityImage draws one density grid. Grids of rank three show their
// first z slice.
func (v *Viz) PlotDensityImage(name string, info dynamo.Info, t float64, density []float64) *Figure {
	p := info.Parameters
	nx, ny := 1, 1
	if len(p.GridSize) > 0 {
		nx = p.GridSize[0]
	}
	if len(p.GridSize) > 1 {
		ny = p.GridSize[1]
	}
	grid := export.Heatmap{
		Title:  fmt.Sprintf("%s\nt=%08.2f", Title(p, info.Analysis, false), t),
		Values: density,
		NX:     nx,
		NY:     ny,
	}
	return v.add(&Figure{Name: name, Kind: Image, Grid: grid, Shape: []int{nx, ny}})
}

// Render writes the figure in format ("svg" or "txt").
func (f *Figure) Render(w io.Writer, format string, cfg Config) error {
	switch format {
	case "svg":
		return f.renderSVG(w, cfg)
	case "txt":
		return f.renderText(w, cfg)
	}
	return fmt.Errorf("figure %s: unsupported format %q", f.Name, format)
}

func (f *Figure) renderSVG(w io.Writer, cfg Config) error {
	switch f.Kind {
	case Lines:
		plot := f.Plot
		plot.Width, plot.Height = cfg.Width, cfg.Height
		plot.FontFamily, plot.FontSize = cfg.FontFamily, cfg.FontSize
		if plot.LogX && plot.LogY {
			if f.Rescaled {
				plot.XLim, plot.YLim = cfg.XLimRescaled, cfg.YLimRescaled
			} else {
				plot.XLim, plot.YLim = cfg.XLimLog, cfg.YLimLog
			}
		}
		return plot.WriteSVG(w)
	case Image:
		grid := f.Grid
		grid.Width, grid.Height = cfg.Width, cfg.Height
		grid.FontFamily, grid.FontSize = cfg.FontFamily, cfg.FontSize
		return grid.WriteSVG(w)
	}
	return fmt.Errorf("figure %s: unknown kind %d", f.Name, f.Kind)
}

func (f *Figure) renderText(w io.Writer, cfg Config) error {
	var out string
	switch f.Kind {
	case Lines:
		var data [][]float64
		for _, s := range f.Plot.Series {
			ys := make([]float64, 0, len(s.Y))
			for _, y := range s.Y {
				if f.Plot.LogY {
					if y <= 0 {
						continue
					}
					y = math.Log10(y)
				}
				ys = append(ys, y)
			}
			if len(ys) > 0 {
				data = append(data, ys)
			}
		}
		if len(data) == 0 {
			out = f.Name + ": no data\n"
			break
		}
		caption := f.Name
		if f.Plot.LogY {
			caption += " (log10)"
		}
		out = asciigraph.PlotMany(data,
			asciigraph.Height(cfg.ASCIIHeight),
			asciigraph.Width(cfg.ASCIIWidth),
			asciigraph.Caption(caption),
		) + "\n"
	case Image:
		c, err := DensityCanvas(f.Grid.Values, f.Grid.NX, f.Grid.NY)
		if err != nil {
			return fmt.Errorf("figure %s: %w", f.Name, err)
		}
		out = f.Name + "\n" + c.String()
	default:
		return fmt.Errorf("figure %s: unknown kind %d", f.Name, f.Kind)
	}
	_, err := io.WriteString(w, out)
	return err
}
