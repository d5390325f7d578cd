// Package naming derives deterministic run names and directory segments from
// a parameter record. Every function here is pure: the same record yields the
// same string in every process, which is what lets a re-run land in the same
// directory.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/san-kum/dplsim/internal/dynamo"
)

// Options selects the name variant.
type Options struct {
	// FieldName prefixes the full and parent forms, e.g. "rho".
	FieldName string
	// Suffix is appended verbatim.
	Suffix string
	// TEpoch, when set, appends a time-slice segment.
	TEpoch *float64
	// Parent drops the linear coefficient so that a sweep over it shares
	// one name.
	Parent bool
	// Dir selects the short directory form keyed on the linear coefficient
	// alone. It takes precedence over Parent.
	Dir bool
}

// Name returns the name of the run described by p. The analysis record is
// accepted for symmetry with the other record consumers; no analysis value
// enters the name.
func Name(p dynamo.Parameters, _ dynamo.Analysis, opts Options) string {
	if opts.Dir {
		return DirName(p)
	}

	var b strings.Builder
	if opts.FieldName != "" {
		b.WriteString(opts.FieldName)
		b.WriteByte('_')
	}
	if !opts.Parent {
		b.WriteString(DirName(p))
		b.WriteByte('_')
	}
	b.WriteString("b" + Token(p.Quadratic))
	b.WriteString("_D" + Token(p.Diffusion))
	b.WriteString("_eta" + Token(p.Noise))
	for i, axis := range []string{"x", "y", "z"} {
		if i >= len(p.GridSize) {
			break
		}
		b.WriteString("_" + axis + strconv.Itoa(p.GridSize[i]))
	}
	b.WriteString("_dx" + Token(p.Dx))
	b.WriteString("_dt" + Token(p.Dt))
	b.WriteString("_h" + fingerprint(p, !opts.Parent))
	if opts.TEpoch != nil {
		b.WriteString(escape(fmt.Sprintf("_t%08.2f", *opts.TEpoch)))
	}
	b.WriteString(opts.Suffix)
	return b.String()
}

// DirName is the directory form: "a" plus the linear coefficient to five
// decimal digits.
func DirName(p dynamo.Parameters) string {
	return "a" + Token5(p.Linear)
}

// FullName is Name with default options.
func FullName(p dynamo.Parameters) string {
	return Name(p, nil, Options{})
}

// ParentName is the ensemble group name for a sweep over the linear
// coefficient.
func ParentName(p dynamo.Parameters) string {
	return Name(p, nil, Options{Parent: true})
}

// SeedDir is the leaf segment that keeps seeds of one parameter set apart.
func SeedDir(p dynamo.Parameters) string {
	return "rs" + strconv.Itoa(p.RandomSeed)
}

// Token formats x with the shortest representation that round-trips, always
// keeping one decimal digit, then makes it path safe.
func Token(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return escape(s)
}

// Token5 formats x to exactly five decimal digits and makes it path safe.
func Token5(x float64) string {
	return escape(strconv.FormatFloat(x, 'f', 5, 64))
}

var pathSafe = strings.NewReplacer(".", "p", "-", "neg")

func escape(s string) string {
	return pathSafe.Replace(s)
}

// Fingerprint hashes every structural field that the full form does not spell
// out, so that records differing only in those fields get distinct names.
// The linear coefficient enters at full precision since the name rounds it
// to five digits. The random seed is left out; it has its own directory
// level.
func Fingerprint(p dynamo.Parameters) string {
	return fingerprint(p, true)
}

// fingerprint leaves the linear coefficient out when withLinear is false, so
// every member of a sweep shares the parent name.
func fingerprint(p dynamo.Parameters, withLinear bool) string {
	var b strings.Builder
	if withLinear {
		b.WriteString("linear=" + strconv.FormatFloat(p.Linear, 'g', -1, 64) + ";")
	}
	b.WriteString("t_final=" + strconv.FormatFloat(p.TFinal, 'g', -1, 64))
	b.WriteString(";dim=" + p.GridDimension.String())
	b.WriteString(";size=" + joinInts(p.GridSize))
	b.WriteString(";topo=")
	for i, g := range p.GridTopologies {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(g.String())
	}
	b.WriteString(";bc=")
	for i, c := range p.BoundaryConditions {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.String())
	}
	b.WriteString(";bcv=" + joinFloats(p.BCValues))
	b.WriteString(";ic=" + p.InitialCondition.String())
	b.WriteString(";icv=" + joinFloats(p.ICValues))
	b.WriteString(";im=" + p.IntegrationMethod.String())
	return fmt.Sprintf("%012x", xxhash.Sum64String(b.String())>>16)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
