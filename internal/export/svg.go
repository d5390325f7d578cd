// Package export writes figures as standalone SVG documents.
package export

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"
)

const (
	background = "#ffffff"
	axisColor  = "#333333"
	marginL    = 70.0
	marginR    = 20.0
	marginT    = 40.0
	marginB    = 50.0
)

// Series is one polyline of a line plot.
type Series struct {
	Label   string
	X, Y    []float64
	Color   string
	Width   float64
	Opacity float64
}

// Limits bounds an axis. A zero value means fit to the data.
type Limits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (l Limits) set() bool { return l.Max > l.Min }

type LinePlot struct {
	Title, XLabel, YLabel string
	Series                []Series
	LogX, LogY            bool
	XLim, YLim            Limits
	Width, Height         int
	FontFamily            string
	FontSize              float64
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (p LinePlot) tx(x float64) float64 {
	if p.LogX {
		return math.Log10(x)
	}
	return x
}

func (p LinePlot) ty(y float64) float64 {
	if p.LogY {
		return math.Log10(y)
	}
	return y
}

func (p LinePlot) usable(x, y float64) bool {
	if p.LogX && x <= 0 || p.LogY && y <= 0 {
		return false
	}
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

// bounds are in transformed (possibly log10) coordinates.
func (p LinePlot) bounds() (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	found := false
	for _, s := range p.Series {
		for i := range s.X {
			if i >= len(s.Y) || !p.usable(s.X[i], s.Y[i]) {
				continue
			}
			x, y := p.tx(s.X[i]), p.ty(s.Y[i])
			b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
			b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
			found = true
		}
	}
	if p.XLim.set() {
		b.minX, b.maxX = p.tx(p.XLim.Min), p.tx(p.XLim.Max)
	}
	if p.YLim.set() {
		b.minY, b.maxY = p.ty(p.YLim.Min), p.ty(p.YLim.Max)
	}
	if !found && !(p.XLim.set() && p.YLim.set()) {
		return b, false
	}

	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY
	if rangeX == 0 {
		rangeX = 1
		b.minX -= 0.5
		b.maxX += 0.5
	}
	if rangeY == 0 {
		rangeY = 1
		b.minY -= 0.5
		b.maxY += 0.5
	}
	if !p.XLim.set() {
		b.minX -= rangeX * 0.05
		b.maxX += rangeX * 0.05
	}
	if !p.YLim.set() {
		b.minY -= rangeY * 0.05
		b.maxY += rangeY * 0.05
	}
	return b, true
}

func header(sb *strings.Builder, width, height int, family string, size float64) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="%s" font-size="%.1f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, html.EscapeString(family), size, background))
}

// WriteSVG renders the plot. Points that cannot be shown on a log axis are
// skipped; a plot with nothing to show still yields a valid empty frame.
func (p LinePlot) WriteSVG(w io.Writer) error {
	_, err := io.WriteString(w, p.SVG())
	return err
}

func (p LinePlot) SVG() string {
	width, height := float64(p.Width), float64(p.Height)
	plotW := width - marginL - marginR
	plotH := height - marginT - marginB

	var sb strings.Builder
	header(&sb, p.Width, p.Height, p.FontFamily, p.FontSize)

	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>
`, width/2, marginT*0.6, html.EscapeString(p.Title)))
	sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s"/>
`, marginL, marginT, plotW, plotH, axisColor))
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>
`, marginL+plotW/2, height-marginB*0.25, html.EscapeString(p.XLabel)))
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle" transform="rotate(-90 %.1f %.1f)">%s</text>
`, marginL*0.3, marginT+plotH/2, marginL*0.3, marginT+plotH/2, html.EscapeString(p.YLabel)))

	b, ok := p.bounds()
	if ok {
		sx := func(x float64) float64 { return marginL + (p.tx(x)-b.minX)/(b.maxX-b.minX)*plotW }
		sy := func(y float64) float64 { return marginT + plotH - (p.ty(y)-b.minY)/(b.maxY-b.minY)*plotH }

		p.ticks(&sb, b, plotW, plotH)

		for _, s := range p.Series {
			var d strings.Builder
			for i := range s.X {
				if i >= len(s.Y) || !p.usable(s.X[i], s.Y[i]) {
					continue
				}
				cmd := " L"
				if d.Len() == 0 {
					cmd = "M"
				}
				d.WriteString(fmt.Sprintf("%s%.2f,%.2f", cmd, sx(s.X[i]), sy(s.Y[i])))
			}
			if d.Len() == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="%.2f" stroke-opacity="%.2f" d="%s"/>
`, s.Color, orDefault(s.Width, 1), orDefault(s.Opacity, 1), d.String()))
		}
	}

	p.legend(&sb, plotW)
	sb.WriteString("</svg>\n")
	return sb.String()
}

func (p LinePlot) ticks(sb *strings.Builder, b bounds, plotW, plotH float64) {
	const n = 5
	for i := 0; i <= n; i++ {
		f := float64(i) / n
		xv := b.minX + f*(b.maxX-b.minX)
		yv := b.minY + f*(b.maxY-b.minY)
		if p.LogX {
			xv = math.Pow(10, xv)
		}
		if p.LogY {
			yv = math.Pow(10, yv)
		}
		x := marginL + f*plotW
		y := marginT + plotH - f*plotH
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle" font-size="%.1f">%s</text>
`, x, marginT+plotH+14, p.FontSize*0.8, tickLabel(xv)))
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="end" font-size="%.1f">%s</text>
`, marginL-4, y+4, p.FontSize*0.8, tickLabel(yv)))
	}
}

func (p LinePlot) legend(sb *strings.Builder, plotW float64) {
	y := marginT + 14
	for _, s := range p.Series {
		if s.Label == "" {
			continue
		}
		x := marginL + plotW - 110
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"/>
<text x="%.1f" y="%.1f" font-size="%.1f">%s</text>
`, x, y-4, x+18, y-4, s.Color, x+22, y, p.FontSize*0.8, html.EscapeString(s.Label)))
		y += p.FontSize + 2
	}
}

func tickLabel(v float64) string {
	a := math.Abs(v)
	if a != 0 && (a < 1e-2 || a >= 1e4) {
		return fmt.Sprintf("%.1e", v)
	}
	return fmt.Sprintf("%.3g", v)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Heatmap is a cell grid drawn x to the right and y upward, values mapped
// onto Palette from Min to Max (data range when equal).
type Heatmap struct {
	Title         string
	Values        []float64
	NX, NY        int
	Min, Max      float64
	Width, Height int
	FontFamily    string
	FontSize      float64
}

func (h Heatmap) WriteSVG(w io.Writer) error {
	if h.NX <= 0 || h.NY <= 0 || len(h.Values) < h.NX*h.NY {
		return fmt.Errorf("heatmap: %d values do not fill a %dx%d grid", len(h.Values), h.NX, h.NY)
	}
	lo, hi := h.Min, h.Max
	if hi <= lo {
		lo, hi = h.Values[0], h.Values[0]
		for _, v := range h.Values[:h.NX*h.NY] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	width, height := float64(h.Width), float64(h.Height)
	plotW := width - marginL - marginR
	plotH := height - marginT - marginB
	cw, ch := plotW/float64(h.NX), plotH/float64(h.NY)

	var sb strings.Builder
	header(&sb, h.Width, h.Height, h.FontFamily, h.FontSize)
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>
`, width/2, marginT*0.6, html.EscapeString(h.Title)))

	for j := 0; j < h.NY; j++ {
		for i := 0; i < h.NX; i++ {
			v := (h.Values[i+h.NX*j] - lo) / span
			x := marginL + float64(i)*cw
			y := marginT + plotH - float64(j+1)*ch
			sb.WriteString(fmt.Sprintf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"/>
`, x, y, cw, ch, Shade(v)))
		}
	}
	sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="%.1f">%s .. %s</text>
`, marginL, height-marginB*0.3, h.FontSize*0.8, tickLabel(lo), tickLabel(hi)))
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Palette returns n colours running from blue to red.
func Palette(n int) []string {
	out := make([]string, n)
	for i := range out {
		f := 0.5
		if n > 1 {
			f = float64(i) / float64(n-1)
		}
		out[i] = Shade(f)
	}
	return out
}

// Shade maps f in [0, 1] onto a diverging blue-white-red ramp.
func Shade(f float64) string {
	f = math.Max(0, math.Min(1, f))
	cold := [3]float64{59, 76, 192}
	mid := [3]float64{221, 221, 221}
	hot := [3]float64{180, 4, 38}

	from, to, g := cold, mid, f*2
	if f > 0.5 {
		from, to, g = mid, hot, (f-0.5)*2
	}
	var c [3]int
	for k := range c {
		c[k] = int(math.Round(from[k] + g*(to[k]-from[k])))
	}
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
