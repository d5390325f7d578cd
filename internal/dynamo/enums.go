package dynamo

// Sentinel enumerations for the physical modelling choices handed to a
// stepping engine. Each is its own named type so that members of different
// enumerations never compare equal. The zero value of every type is the
// unknown member: it is what a lenient decoder yields for a tag it does not
// recognise, and it never validates.

type GridDimension int

const (
	D1 GridDimension = iota + 1
	D2
	D3
)

type GridTopology int

const (
	Bounded GridTopology = iota + 1
	Periodic
)

type BoundaryCondition int

const (
	Floating BoundaryCondition = iota + 1
	FixedValue
	FixedFlux
)

type InitialCondition int

const (
	RandomUniform InitialCondition = iota + 1
	RandomGaussian
	ConstantValue
	SingleSeed
)

type IntegrationMethod int

const (
	Euler IntegrationMethod = iota + 1
	RungeKutta
)

// Members lists, in declaration order. Tests and codecs iterate these to
// cover every member.
var (
	GridDimensions     = []GridDimension{D1, D2, D3}
	GridTopologies     = []GridTopology{Bounded, Periodic}
	BoundaryConditions = []BoundaryCondition{Floating, FixedValue, FixedFlux}
	InitialConditions  = []InitialCondition{RandomUniform, RandomGaussian, ConstantValue, SingleSeed}
	IntegrationMethods = []IntegrationMethod{Euler, RungeKutta}
)

// Tag returns the persisted tag, or "" for the unknown member.
func (d GridDimension) Tag() string {
	switch d {
	case D1:
		return "D1"
	case D2:
		return "D2"
	case D3:
		return "D3"
	}
	return ""
}

func (d GridDimension) Valid() bool    { return d.Tag() != "" }
func (d GridDimension) String() string { return tagOrUnknown(d.Tag()) }

// Rank is the number of spatial axes.
func (d GridDimension) Rank() int {
	if !d.Valid() {
		return 0
	}
	return int(d)
}

func (g GridTopology) Tag() string {
	switch g {
	case Bounded:
		return "BOUNDED"
	case Periodic:
		return "PERIODIC"
	}
	return ""
}

func (g GridTopology) Valid() bool    { return g.Tag() != "" }
func (g GridTopology) String() string { return tagOrUnknown(g.Tag()) }

func (b BoundaryCondition) Tag() string {
	switch b {
	case Floating:
		return "FLOATING"
	case FixedValue:
		return "FIXED_VALUE"
	case FixedFlux:
		return "FIXED_FLUX"
	}
	return ""
}

func (b BoundaryCondition) Valid() bool    { return b.Tag() != "" }
func (b BoundaryCondition) String() string { return tagOrUnknown(b.Tag()) }

func (i InitialCondition) Tag() string {
	switch i {
	case RandomUniform:
		return "RANDOM_UNIFORM"
	case RandomGaussian:
		return "RANDOM_GAUSSIAN"
	case ConstantValue:
		return "CONSTANT_VALUE"
	case SingleSeed:
		return "SINGLE_SEED"
	}
	return ""
}

func (i InitialCondition) Valid() bool    { return i.Tag() != "" }
func (i InitialCondition) String() string { return tagOrUnknown(i.Tag()) }

func (m IntegrationMethod) Tag() string {
	switch m {
	case Euler:
		return "EULER"
	case RungeKutta:
		return "RUNGE_KUTTA"
	}
	return ""
}

func (m IntegrationMethod) Valid() bool    { return m.Tag() != "" }
func (m IntegrationMethod) String() string { return tagOrUnknown(m.Tag()) }

func tagOrUnknown(tag string) string {
	if tag == "" {
		return "UNKNOWN"
	}
	return tag
}

// Sentinel is satisfied by every enumeration type above.
type Sentinel interface {
	Tag() string
	Valid() bool
}

var (
	_ Sentinel = GridDimension(0)
	_ Sentinel = GridTopology(0)
	_ Sentinel = BoundaryCondition(0)
	_ Sentinel = InitialCondition(0)
	_ Sentinel = IntegrationMethod(0)
)
