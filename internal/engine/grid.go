package engine

import "github.com/san-kum/dplsim/internal/dynamo"

// grid is a uniform cell grid of rank 1 to 3, flattened x-fastest.
// Boundary conditions are ordered lower then upper face, axis by axis.
type grid struct {
	n    [3]int
	rank int
	dx   float64
	topo []dynamo.GridTopology
	bcs  []dynamo.BoundaryCondition
	bcv  []float64
}

func newGrid(p dynamo.Parameters) *grid {
	g := &grid{
		n:    [3]int{1, 1, 1},
		rank: p.GridDimension.Rank(),
		dx:   p.Dx,
		topo: p.GridTopologies,
		bcs:  p.BoundaryConditions,
		bcv:  p.BCValues,
	}
	copy(g.n[:], p.GridSize)
	return g
}

func (g *grid) cells() int { return g.n[0] * g.n[1] * g.n[2] }

func (g *grid) index(c [3]int) int {
	return c[0] + g.n[0]*(c[1]+g.n[1]*c[2])
}

func (g *grid) coords(i int) [3]int {
	return [3]int{i % g.n[0], (i / g.n[0]) % g.n[1], i / (g.n[0] * g.n[1])}
}

// neighbor returns the density one cell along axis in direction dir (±1),
// falling back to the boundary rule past a bounded edge.
func (g *grid) neighbor(rho dynamo.State, i, axis, dir int) float64 {
	c := g.coords(i)
	c[axis] += dir
	if c[axis] >= 0 && c[axis] < g.n[axis] {
		return rho[g.index(c)]
	}
	if g.topo[axis] == dynamo.Periodic {
		c[axis] = (c[axis] + g.n[axis]) % g.n[axis]
		return rho[g.index(c)]
	}

	face := 2 * axis
	if dir > 0 {
		face++
	}
	switch g.bcs[face] {
	case dynamo.FixedValue:
		return g.bcv[face]
	case dynamo.FixedFlux:
		return rho[i] + g.bcv[face]*g.dx
	}
	return rho[i]
}

// laplacian is the second-order central difference, summed over axes.
func (g *grid) laplacian(rho dynamo.State, out dynamo.State) {
	h2 := g.dx * g.dx
	for i := range rho {
		sum := 0.0
		for axis := 0; axis < g.rank; axis++ {
			sum += g.neighbor(rho, i, axis, -1) + g.neighbor(rho, i, axis, 1) - 2*rho[i]
		}
		out[i] = sum / h2
	}
}

// rateEquation is dρ/dt = aρ - bρ² + D∇²ρ on the grid.
type rateEquation struct {
	linear, quadratic, diffusion float64
	g                            *grid
	lap                          dynamo.State
}

func (r *rateEquation) StateDim() int { return r.g.cells() }

func (r *rateEquation) Derive(rho dynamo.State, _ float64) dynamo.State {
	if len(r.lap) != len(rho) {
		r.lap = make(dynamo.State, len(rho))
	}
	d := make(dynamo.State, len(rho))
	if r.diffusion != 0 {
		r.g.laplacian(rho, r.lap)
	}
	for i, v := range rho {
		d[i] = r.linear*v - r.quadratic*v*v
		if r.diffusion != 0 {
			d[i] += r.diffusion * r.lap[i]
		}
	}
	return d
}
