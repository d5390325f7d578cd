package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/engine"
)

// Factory builds a fresh stepper for one run.
type Factory func(p dynamo.Parameters) dynamo.Stepper

type Registry struct {
	engines map[string]Factory
}

// DefaultEngine is the engine used when none is named.
const DefaultEngine = "meanfield"

func NewRegistry() *Registry {
	r := &Registry{
		engines: make(map[string]Factory),
	}

	r.engines["meanfield"] = func(p dynamo.Parameters) dynamo.Stepper { return engine.NewMeanField(p) }

	return r
}

// Register adds or replaces an engine.
func (r *Registry) Register(name string, f Factory) {
	r.engines[name] = f
}

func (r *Registry) GetEngine(name string) (Factory, error) {
	if name == "" {
		name = DefaultEngine
	}
	fn, ok := r.engines[name]
	if !ok {
		return nil, dynamo.Configf("unknown engine: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListEngines() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) String() string {
	return fmt.Sprintf("engines%v", r.ListEngines())
}
