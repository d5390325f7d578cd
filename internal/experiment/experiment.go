// Package experiment wires one run end to end: pick the engine, drive the
// segmented run, draw its figures and save it.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/dplsim/internal/dynamo"
	"github.com/san-kum/dplsim/internal/sim"
	"github.com/san-kum/dplsim/internal/storage"
)

type Config struct {
	Engine       string
	Info         dynamo.Info
	Name         string
	SnapshotGrid bool
	Options      []sim.Option
}

type Experiment struct {
	cfg Config
	run *sim.Run
}

func New(cfg Config) *Experiment {
	return &Experiment{cfg: cfg}
}

// Setup builds a fresh stepper from reg and the run around it.
func (e *Experiment) Setup(reg *Registry) error {
	factory, err := reg.GetEngine(e.cfg.Engine)
	if err != nil {
		return err
	}
	opts := []sim.Option{sim.WithSnapshotGrid(e.cfg.SnapshotGrid)}
	if e.cfg.Name != "" {
		opts = append(opts, sim.WithName(e.cfg.Name))
	}
	opts = append(opts, e.cfg.Options...)
	e.run = sim.New(factory(e.cfg.Info.Parameters), e.cfg.Info, opts...)
	return nil
}

// Run executes the run and draws its figures when graph export is on.
func (e *Experiment) Run(ctx context.Context) (sim.Result, error) {
	if e.run == nil {
		return sim.Result{}, fmt.Errorf("%w: experiment not set up", dynamo.ErrLifecycle)
	}

	res, err := e.run.Exec(ctx)
	if err != nil {
		return sim.Result{}, err
	}
	if e.run.Info().Misc.DoExportGraphs {
		if err := e.run.Plot(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Save persists the finished run under st.
func (e *Experiment) Save(ctx context.Context, st *storage.Store, dryRun, verbose bool) (string, error) {
	if e.run == nil {
		return "", fmt.Errorf("%w: experiment not set up", dynamo.ErrLifecycle)
	}
	return st.Save(ctx, e.run, dryRun, verbose)
}

// GetRun returns the underlying run.
func (e *Experiment) GetRun() *sim.Run {
	return e.run
}
