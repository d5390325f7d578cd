package viz

import (
	"fmt"
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// bayer is an ordered-dither threshold per braille dot, in eighths.
var bayer = [4][2]float64{
	{0.5, 4.5},
	{6.5, 2.5},
	{1.5, 5.5},
	{7.5, 3.5},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800 // Empty braille char
		}
	}
	return c
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size in
// sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Dots counts the set sub-pixels of one character cell.
func (c *Canvas) Dots(col, row int) int {
	if col < 0 || row < 0 || col >= c.Width || row >= c.Height {
		return 0
	}
	n := 0
	for bits := int(c.Grid[row][col] - 0x2800); bits > 0; bits >>= 1 {
		n += bits & 1
	}
	return n
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// DensityCanvas draws an nx by ny grid, one braille character per cell and
// y upward, with each cell's density normalized to the grid's range and
// shown as 0 to 8 ordered-dither dots.
func DensityCanvas(values []float64, nx, ny int) (*Canvas, error) {
	if nx <= 0 || ny <= 0 || len(values) < nx*ny {
		return nil, fmt.Errorf("%d values do not fill a %dx%d grid", len(values), nx, ny)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values[:nx*ny] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	span := hi - lo

	c := NewCanvas(nx, ny)
	for j := 0; j < ny; j++ {
		row := ny - 1 - j
		for i := 0; i < nx; i++ {
			level := 8.0
			if span > 0 {
				level = 8 * (values[i+nx*j] - lo) / span
			}
			for sy := 0; sy < 4; sy++ {
				for sx := 0; sx < 2; sx++ {
					if level > bayer[sy][sx] {
						c.Set(2*i+sx, 4*row+sy)
					}
				}
			}
		}
	}
	return c, nil
}
