// Package codec converts run records to and from a plain, storage-portable
// form: strings, numbers, booleans and ordered sequences of them.
//
// Sentinel enumerations map to fixed tag strings ("D2", "PERIODIC",
// "RUNGE_KUTTA", ...) and back. Values outside the codec's domain are
// handled by one [Policy] for every enumeration and both directions:
// [Lenient] yields a nil marker (or the unknown member, for typed decoding)
// and logs a warning, [Strict] returns [dynamo.ErrSerializationGap].
package codec

import (
	"fmt"
	"slices"

	"github.com/san-kum/dplsim/internal/dynamo"
	"go.uber.org/zap"
)

type Policy int

const (
	Lenient Policy = iota
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

type Codec struct {
	policy Policy
	logger *zap.Logger
}

type Option func(*Codec)

func WithPolicy(p Policy) Option {
	return func(c *Codec) { c.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Codec) { c.logger = l }
}

func New(opts ...Option) *Codec {
	c := &Codec{policy: Lenient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Policy() Policy { return c.policy }

// tagIndex maps every tag of every enumeration to its member. Tags are
// unique across enumerations.
var tagIndex = func() map[string]any {
	idx := make(map[string]any)
	for _, v := range dynamo.GridDimensions {
		idx[v.Tag()] = v
	}
	for _, v := range dynamo.GridTopologies {
		idx[v.Tag()] = v
	}
	for _, v := range dynamo.BoundaryConditions {
		idx[v.Tag()] = v
	}
	for _, v := range dynamo.InitialConditions {
		idx[v.Tag()] = v
	}
	for _, v := range dynamo.IntegrationMethods {
		idx[v.Tag()] = v
	}
	return idx
}()

// ToPortable converts v into its portable form. Scalars and plain lists pass
// through (lists are copied), sentinels become tags, lists of topology or
// boundary sentinels become ordered tag sequences.
func (c *Codec) ToPortable(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int, int64, float64:
		return x, nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case dynamo.GridDimension:
		return c.sentinelTag(x)
	case dynamo.GridTopology:
		return c.sentinelTag(x)
	case dynamo.BoundaryCondition:
		return c.sentinelTag(x)
	case dynamo.InitialCondition:
		return c.sentinelTag(x)
	case dynamo.IntegrationMethod:
		return c.sentinelTag(x)
	case []dynamo.GridTopology:
		return sentinelTags(c, x)
	case []dynamo.BoundaryCondition:
		return sentinelTags(c, x)
	case []float64:
		return slices.Clone(x), nil
	case []int:
		return slices.Clone(x), nil
	case []string:
		return slices.Clone(x), nil
	}
	return nil, c.gap("encode", v)
}

func (c *Codec) sentinelTag(s dynamo.Sentinel) (any, error) {
	if !s.Valid() {
		return nil, c.gap("encode", s)
	}
	return s.Tag(), nil
}

func sentinelTags[T dynamo.Sentinel](c *Codec, xs []T) (any, error) {
	out := make([]any, len(xs))
	for i, x := range xs {
		tag, err := c.sentinelTag(x)
		if err != nil {
			return nil, err
		}
		out[i] = tag
	}
	return out, nil
}

// FromPortable inverts ToPortable. Tag strings become their sentinel; other
// strings are scalars and pass through, so tag spellings are reserved.
// Sequences of tags become typed sentinel slices, numeric sequences become
// []float64. An empty sequence carries no element type and always decodes
// as []float64{}; DecodeParameters restores empty sentinel slices by key.
func (c *Codec) FromPortable(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if s, ok := tagIndex[x]; ok {
			return s, nil
		}
		return x, nil
	case bool, int, int64, float64:
		return x, nil
	case dynamo.GridDimension, dynamo.GridTopology, dynamo.BoundaryCondition,
		dynamo.InitialCondition, dynamo.IntegrationMethod:
		return x, nil
	case []float64:
		return slices.Clone(x), nil
	case []int:
		return slices.Clone(x), nil
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return c.fromList(items)
	case []dynamo.GridTopology:
		return slices.Clone(x), nil
	case []dynamo.BoundaryCondition:
		return slices.Clone(x), nil
	case []any:
		return c.fromList(x)
	}
	return nil, c.gap("decode", v)
}

func (c *Codec) fromList(items []any) (any, error) {
	if len(items) == 0 {
		return []float64{}, nil
	}
	if isNumeric(items[0]) {
		out := make([]float64, len(items))
		for i, item := range items {
			f, ok := asFloat(item)
			if !ok {
				return nil, c.gap("decode", items)
			}
			out[i] = f
		}
		return out, nil
	}

	// The first recognised tag decides the enumeration of the sequence.
	for _, item := range items {
		s, _ := item.(string)
		switch tagIndex[s].(type) {
		case dynamo.GridTopology:
			return decodeSentinels[dynamo.GridTopology](c, "sequence", items)
		case dynamo.BoundaryCondition:
			return decodeSentinels[dynamo.BoundaryCondition](c, "sequence", items)
		}
	}

	strs := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, c.gap("decode", items)
		}
		strs[i] = s
	}
	return strs, nil
}

// gap applies the unknown-value policy.
func (c *Codec) gap(direction string, v any) error {
	if c.policy == Strict {
		return fmt.Errorf("%w: cannot %s %T(%v)", dynamo.ErrSerializationGap, direction, v, v)
	}
	c.logger.Warn("value outside serialization domain, using unknown marker",
		zap.String("direction", direction),
		zap.String("type", fmt.Sprintf("%T", v)),
		zap.Any("value", v))
	return nil
}

// decodeSentinel decodes one portable value into the enumeration T. nil is
// the unknown marker a lenient encoder writes: Lenient decodes it to the
// unknown member, Strict rejects it like any other unknown value.
func decodeSentinel[T dynamo.Sentinel](c *Codec, key string, v any) (T, error) {
	var zero T
	if v == nil {
		if c.policy == Strict {
			return zero, c.gap("decode "+key, v)
		}
		return zero, nil
	}
	d, err := c.FromPortable(v)
	if err != nil {
		return zero, err
	}
	if t, ok := d.(T); ok {
		return t, nil
	}
	return zero, c.gap("decode "+key, v)
}

func decodeSentinels[T dynamo.Sentinel](c *Codec, key string, v any) ([]T, error) {
	if v == nil {
		if c.policy == Strict {
			return nil, c.gap("decode "+key, v)
		}
		return nil, nil
	}
	items, ok := asList(v)
	if !ok {
		return nil, c.gap("decode "+key, v)
	}
	out := make([]T, len(items))
	for i, item := range items {
		t, err := decodeSentinel[T](c, key, item)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
